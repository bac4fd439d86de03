package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ChiNguyen3107/todo-app/internal/models"
	"github.com/ChiNguyen3107/todo-app/internal/storage"
	"github.com/ChiNguyen3107/todo-app/pkg/guard"
	"github.com/ChiNguyen3107/todo-app/pkg/log"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListUsers возвращает страницу пользователей, отфильтрованную по search
// (подстрока email или имени). Некорректные limit/offset нормализуются.
func (s *Service) ListUsers(ctx context.Context, search string, limit, offset int) ([]models.User, error) {
	const op = "service.admin.ListUsers"

	switch {
	case limit <= 0:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.storage.ListUsers(ctx, strings.TrimSpace(search), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

// GetUser возвращает учётную запись по ID.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "service.admin.GetUser"

	user, err := s.storage.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// SetUserStatus меняет статус учётной записи. Перевод из ACTIVE отзывает
// все refresh-токены пользователя, так что его сессии не переживут ближайшее обновление.
func (s *Service) SetUserStatus(ctx context.Context, id uuid.UUID, status models.UserStatus) (*models.User, error) {
	const op = "service.admin.SetUserStatus"

	if !status.Valid() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidStatus)
	}

	user, err := s.storage.UpdateStatus(ctx, id, status, time.Now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if status != models.StatusActive {
		if err := s.storage.RevokeUserRefreshTokens(ctx, id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	log.From(ctx).Info("user_status_changed",
		slog.String("target_user_id", id.String()),
		slog.String("status", string(status)),
	)

	return user, nil
}

// SetUserRole меняет роль пользователя. Уже выданные access-токены сохраняют
// прежнюю роль до истечения; новая роль попадает в токен при следующем обновлении.
func (s *Service) SetUserRole(ctx context.Context, id uuid.UUID, role guard.Role) (*models.User, error) {
	const op = "service.admin.SetUserRole"

	role, ok := guard.ParseRole(string(role))
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRole)
	}

	user, err := s.storage.UpdateRole(ctx, id, role, time.Now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_role_changed",
		slog.String("target_user_id", id.String()),
		slog.String("role", string(role)),
	)

	return user, nil
}
