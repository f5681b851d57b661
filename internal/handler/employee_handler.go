package handler

import (
	"net/http"
	"strconv"

	"eotm-backend/internal/domain"
	"eotm-backend/internal/repository"
)

// EmployeeHandler serves the roster without email addresses
type EmployeeHandler struct {
	roster repository.RosterRepository
}

// NewEmployeeHandler creates a new employee handler
func NewEmployeeHandler(roster repository.RosterRepository) *EmployeeHandler {
	return &EmployeeHandler{roster: roster}
}

// EmployeeListResponse wraps the roster listing
type EmployeeListResponse struct {
	Employees []domain.PublicEmployee `json:"employees"`
	Total     int                     `json:"total"`
}

// List handles GET /api/employees?finalists=true
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	employees := h.roster.All()
	if finalists, _ := strconv.ParseBool(r.URL.Query().Get("finalists")); finalists {
		employees = h.roster.Finalists()
	}

	out := make([]domain.PublicEmployee, len(employees))
	for i, e := range employees {
		out[i] = e.Public()
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	respondJSON(w, http.StatusOK, EmployeeListResponse{Employees: out, Total: len(out)})
}
