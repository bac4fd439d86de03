package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ChiNguyen3107/todo-app/internal/metrics"
	"github.com/ChiNguyen3107/todo-app/internal/models"
	"github.com/ChiNguyen3107/todo-app/pkg/api"
	"github.com/ChiNguyen3107/todo-app/pkg/guard"
	"github.com/google/uuid"
)

// maxBodyBytes — предел размера JSON-тела запроса.
const maxBodyBytes = 1 << 20

// AuthService — операции сервисного слоя, нужные хендлерам (service.Service).
type AuthService interface {
	Register(ctx context.Context, email, password, fullName string) (*models.TokenPair, *models.User, error)
	Login(ctx context.Context, email, password string) (*models.TokenPair, *models.User, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, *models.User, error)
	Logout(ctx context.Context, userID uuid.UUID, refreshToken string) error
	Me(ctx context.Context, userID uuid.UUID) (*models.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error

	ListUsers(ctx context.Context, search string, limit, offset int) ([]models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetUserStatus(ctx context.Context, id uuid.UUID, status models.UserStatus) (*models.User, error)
	SetUserRole(ctx context.Context, id uuid.UUID, role guard.Role) (*models.User, error)
}

// Handlers агрегирует зависимости REST-эндпойнтов.
type Handlers struct {
	svc     AuthService
	metrics *metrics.Metrics
}

// New создаёт хендлеры. m может быть nil.
func New(svc AuthService, m *metrics.Metrics) *Handlers {
	return &Handlers{svc: svc, metrics: m}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля и хвост после объекта.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(value); err != nil {
		return err
	}

	if dec.More() {
		return errors.New("trailing data after JSON object")
	}

	return nil
}

// decodeOptional — как decodeStrict, но пустое тело допустимо.
func decodeOptional(w http.ResponseWriter, r *http.Request, value any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}

	err := decodeStrict(w, r, value)
	if errors.Is(err, io.EOF) {
		return nil
	}

	return err
}

func toAuthResponse(pair *models.TokenPair, u *models.User) api.AuthResponse {
	return api.AuthResponse{
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		TokenType:       api.TokenTypeBearer,
		AccessExpiresAt: pair.AccessExpiresAt,
		UserID:          u.ID.String(),
		Email:           u.Email,
		FullName:        u.FullName,
		Role:            string(u.Role),
		EmailVerified:   u.EmailVerified,
		Status:          string(u.Status),
	}
}

func toUserResponse(u *models.User) api.UserResponse {
	return api.UserResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		FullName:      u.FullName,
		Role:          string(u.Role),
		Status:        string(u.Status),
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}
