package user

type Role string

const (
	RoleAdmin    Role = "admin"    // Runs payroll, manages rate tables
	RoleManager  Role = "manager"  // Approves time entries
	RoleEmployee Role = "employee" // Records own time
)

// Actor is the calling identity as asserted by the bearer token. The payroll
// engine never authenticates users itself.
type Actor struct {
	UserID     string
	EmployeeID *string
	Role       Role
}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// IsManager checks if actor may approve entries
func (a Actor) IsManager() bool {
	return a.Role == RoleManager || a.Role == RoleAdmin
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// OwnsEmployee reports whether the actor is the given employee.
func (a Actor) OwnsEmployee(employeeID string) bool {
	return a.EmployeeID != nil && *a.EmployeeID == employeeID
}
