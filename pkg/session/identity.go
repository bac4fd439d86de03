package session

import (
	"github.com/ChiNguyen3107/todo-app/pkg/api"
	"github.com/ChiNguyen3107/todo-app/pkg/guard"
)

// Identity — пользователь текущей сессии.
type Identity struct {
	ID            string
	Email         string
	FullName      string
	Role          guard.Role
	EmailVerified bool
	Status        string
}

func identityFromAuth(r *api.AuthResponse) *Identity {
	return &Identity{
		ID:            r.UserID,
		Email:         r.Email,
		FullName:      r.FullName,
		Role:          guard.Role(r.Role),
		EmailVerified: r.EmailVerified,
		Status:        r.Status,
	}
}

func identityFromUser(r *api.UserResponse) *Identity {
	return &Identity{
		ID:            r.ID,
		Email:         r.Email,
		FullName:      r.FullName,
		Role:          guard.Role(r.Role),
		EmailVerified: r.EmailVerified,
		Status:        r.Status,
	}
}
