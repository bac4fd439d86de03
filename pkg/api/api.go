// api — JSON-модели HTTP API todo-app. Общие для сервера (internal/http)
// и клиента сессии (pkg/session), чтобы обе стороны разбирали одни и те же поля.
package api

import "time"

// TokenTypeBearer — значение поля tokenType в AuthResponse.
const TokenTypeBearer = "Bearer"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest — тело logout необязательно; без refreshToken сервер
// завершает все сессии пользователя.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type SetStatusRequest struct {
	Status string `json:"status"`
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

// AuthResponse возвращается login/register/refresh-token.
type AuthResponse struct {
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
	TokenType       string    `json:"tokenType"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
	UserID          string    `json:"userId"`
	Email           string    `json:"email"`
	FullName        string    `json:"fullName"`
	Role            string    `json:"role"`
	EmailVerified   bool      `json:"emailVerified"`
	Status          string    `json:"status"`
}

type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	Role          string    `json:"role"`
	Status        string    `json:"status"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// APIError — единый формат ошибки.
// Code — короткий стабильный код для машиночитаемой обработки.
// Message — безопасное человекочитаемое описание.
// RequestID — значение X-Request-Id (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе с ошибкой.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Стабильные коды ошибок.
const (
	CodeInvalidArgument    = "invalid_argument"
	CodeInvalidCredentials = "invalid_credentials"
	CodeUnauthenticated    = "unauthenticated"
	CodeInvalidToken       = "invalid_token"
	CodeTokenExpired       = "token_expired"
	CodeAccountDisabled    = "account_disabled"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeAlreadyExists      = "already_exists"
	CodeCanceled           = "canceled"
	CodeDeadlineExceeded   = "deadline_exceeded"
	CodeInternal           = "internal"
)
