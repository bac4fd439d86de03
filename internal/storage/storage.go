//go:generate mockgen -destination=../../mocks/mock_storage.go -package=mocks github.com/ChiNguyen3107/todo-app/internal/storage Storage

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ChiNguyen3107/todo-app/internal/models"
	"github.com/ChiNguyen3107/todo-app/pkg/guard"
	"github.com/google/uuid"
)

var (
	// ErrNotFound — запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/refresh-token).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя в БД.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email (без учёта регистра).
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UpdatePassword заменяет хэш пароля.
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string, now time.Time) error
	// ListUsers возвращает страницу пользователей, упорядоченную по дате создания.
	// Непустой search отбирает пользователей по подстроке email или имени (без учёта регистра).
	ListUsers(ctx context.Context, search string, limit, offset int) ([]models.User, error)
	// UpdateStatus меняет статус и возвращает обновлённую запись.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.UserStatus, now time.Time) (*models.User, error)
	// UpdateRole меняет роль и возвращает обновлённую запись.
	UpdateRole(ctx context.Context, id uuid.UUID, role guard.Role, now time.Time) (*models.User, error)
}

// RefreshTokenStorage выполняет операции над refresh-токенами.
type RefreshTokenStorage interface {
	// SaveRefreshToken сохраняет новый refresh-token в БД.
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByHash находит refresh-токен по его хэшу.
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// RevokeRefreshToken отзывает токен, если он ещё активен.
	//
	//	(true, nil)  — токен был активен и отозван этим вызовом;
	//	(false, nil) — токен уже был отозван ранее;
	//	(false, ErrNotFound) — токена нет.
	RevokeRefreshToken(ctx context.Context, hash string) (bool, error)
	// RevokeUserRefreshTokens отзывает все активные токены пользователя.
	RevokeUserRefreshTokens(ctx context.Context, userID uuid.UUID) error
	// DeleteExpiredTokens удаляет все просроченные токены.
	DeleteExpiredTokens(ctx context.Context, now time.Time) error
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	Close()
}
