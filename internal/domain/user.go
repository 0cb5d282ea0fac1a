package domain

import "time"

// Role enumerates user profiles consumed for authorization decisions.
type Role string

const (
	RoleStudent   Role = "ALUNO"
	RoleProfessor Role = "PROFESSOR"
	RoleAdmin     Role = "ADMIN"
)

// ValidRole reports whether the value is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleStudent, RoleProfessor, RoleAdmin:
		return true
	}
	return false
}

// User is the domain model for students, professors and administrators.
type User struct {
	ID                 string
	Name               string
	Email              string
	PasswordHash       string
	Role               Role
	RegistrationNumber *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
