package repository

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"eotm-backend/internal/domain"
	"eotm-backend/pkg/validator"
)

//go:embed data/roster.json
var defaultRoster []byte

// rosterRepository is an immutable, ordered employee list
type rosterRepository struct {
	employees []domain.Employee
	byID      map[string]int
	byEmail   map[string]int
}

// LoadRoster reads the roster from path, or the embedded default when path is empty
func LoadRoster(path string) (RosterRepository, error) {
	data := defaultRoster
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read roster file: %w", err)
		}
		data = raw
	}

	var employees []domain.Employee
	if err := json.Unmarshal(data, &employees); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	return NewRoster(employees)
}

// NewRoster validates employees and builds the lookup indexes. Ids and emails must be unique.
func NewRoster(employees []domain.Employee) (RosterRepository, error) {
	if len(employees) == 0 {
		return nil, fmt.Errorf("roster is empty")
	}

	r := &rosterRepository{
		employees: make([]domain.Employee, 0, len(employees)),
		byID:      make(map[string]int, len(employees)),
		byEmail:   make(map[string]int, len(employees)),
	}

	for i, e := range employees {
		e.ID = strings.TrimSpace(e.ID)
		e.Email = strings.TrimSpace(e.Email)
		if err := validator.ValidateStruct(e); err != nil {
			return nil, fmt.Errorf("roster entry %d: %w", i, err)
		}

		email := domain.NormalizeRecipient(e.Email)
		if _, dup := r.byID[e.ID]; dup {
			return nil, fmt.Errorf("roster entry %d: duplicate id %q", i, e.ID)
		}
		if _, dup := r.byEmail[email]; dup {
			return nil, fmt.Errorf("roster entry %d: duplicate email %q", i, e.Email)
		}

		r.byID[e.ID] = len(r.employees)
		r.byEmail[email] = len(r.employees)
		r.employees = append(r.employees, e)
	}

	return r, nil
}

func (r *rosterRepository) All() []domain.Employee {
	out := make([]domain.Employee, len(r.employees))
	copy(out, r.employees)
	return out
}

func (r *rosterRepository) Finalists() []domain.Employee {
	var out []domain.Employee
	for _, e := range r.employees {
		if e.Finalist {
			out = append(out, e)
		}
	}
	return out
}

func (r *rosterRepository) FindByID(id string) (domain.Employee, bool) {
	idx, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return domain.Employee{}, false
	}
	return r.employees[idx], true
}

func (r *rosterRepository) FindByEmail(email string) (domain.Employee, bool) {
	idx, ok := r.byEmail[domain.NormalizeRecipient(email)]
	if !ok {
		return domain.Employee{}, false
	}
	return r.employees[idx], true
}

func (r *rosterRepository) Count() int {
	return len(r.employees)
}
