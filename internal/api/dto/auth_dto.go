package dto

import (
	"time"

	"github.com/conecta-ies/solicitation-service/internal/domain"
)

// RegisterRequest payload.
type RegisterRequest struct {
	Name               string      `json:"name"`
	Email              string      `json:"email"`
	Password           string      `json:"password"`
	Role               domain.Role `json:"role"`
	RegistrationNumber *string     `json:"registrationNumber"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public user shape; the password hash never leaves the
// service.
type UserResponse struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Email              string      `json:"email"`
	Role               domain.Role `json:"role"`
	RegistrationNumber *string     `json:"registrationNumber"`
}

// AuthResponse bundles the issued token with the authenticated user.
type AuthResponse struct {
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	User        UserResponse `json:"user"`
}

// NewUserResponse maps a domain user onto the wire shape.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Role:               u.Role,
		RegistrationNumber: u.RegistrationNumber,
	}
}
