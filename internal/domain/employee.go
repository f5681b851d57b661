package domain

// Employee is a roster entry. The roster is loaded at startup and never mutated.
type Employee struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Title    string `json:"title"`
	Email    string `json:"email" validate:"required,email"`
	Avatar   string `json:"avatar,omitempty"`
	Finalist bool   `json:"finalist"`
}

// PublicEmployee is the roster view served to the voting page
type PublicEmployee struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	Avatar   string `json:"avatar,omitempty"`
	Finalist bool   `json:"finalist"`
}

// Public strips the email address
func (e Employee) Public() PublicEmployee {
	return PublicEmployee{
		ID:       e.ID,
		Name:     e.Name,
		Title:    e.Title,
		Avatar:   e.Avatar,
		Finalist: e.Finalist,
	}
}
