package models

import (
	"time"

	"github.com/ChiNguyen3107/todo-app/pkg/guard"
	"github.com/google/uuid"
)

// UserStatus — статус учётной записи.
type UserStatus string

const (
	StatusActive   UserStatus = "ACTIVE"
	StatusInactive UserStatus = "INACTIVE"
	StatusLocked   UserStatus = "LOCKED"
)

// Valid сообщает, известен ли статус.
func (s UserStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusLocked:
		return true
	default:
		return false
	}
}

// User - модель пользователя в системе.
type User struct {
	ID            uuid.UUID
	Email         string
	FullName      string
	PasswordHash  string
	Role          guard.Role
	Status        UserStatus
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active сообщает, может ли пользователь входить и обновлять токены.
func (u *User) Active() bool {
	return u != nil && u.Status == StatusActive
}
