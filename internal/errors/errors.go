// errors стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимает ошибку сервисного слоя (sentinel из service/storage),
// на выход даёт:
//   - корректный HTTP-статус;
//   - стабильный code и краткое безопасное message без утечки деталей.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ChiNguyen3107/todo-app/internal/service"
	"github.com/ChiNguyen3107/todo-app/pkg/api"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

var (
	// ErrInvalidArgument — локальная ошибка разбора запроса (тело/путь/query).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrForbidden — роль не удовлетворяет требованию маршрута.
	ErrForbidden = errors.New("forbidden")
)

type mapping struct {
	target error
	status int
	code   string
	msg    string
}

// table проверяется по порядку: более конкретные причины стоят раньше общих.
// ErrUnauthenticated из Verify оборачивает ErrTokenExpired/ErrInvalidToken,
// поэтому они идут первыми и клиент получает точный code.
var table = []mapping{
	{service.ErrTokenExpired, http.StatusUnauthorized, api.CodeTokenExpired, "token expired"},
	{service.ErrInvalidToken, http.StatusUnauthorized, api.CodeInvalidToken, "invalid token"},
	{service.ErrTokenRevoked, http.StatusUnauthorized, api.CodeInvalidToken, "invalid token"},
	{service.ErrUnauthenticated, http.StatusUnauthorized, api.CodeUnauthenticated, "unauthenticated"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, api.CodeInvalidCredentials, "invalid credentials"},
	{service.ErrAccountDisabled, http.StatusForbidden, api.CodeAccountDisabled, "account disabled"},
	{ErrForbidden, http.StatusForbidden, api.CodeForbidden, "access denied"},
	{service.ErrEmailTaken, http.StatusConflict, api.CodeAlreadyExists, "email already taken"},
	{service.ErrUserNotFound, http.StatusNotFound, api.CodeNotFound, "user not found"},
	{service.ErrInvalidEmail, http.StatusBadRequest, api.CodeInvalidArgument, "invalid email"},
	{service.ErrEmptyPassword, http.StatusBadRequest, api.CodeInvalidArgument, "password is empty"},
	{service.ErrWeakPassword, http.StatusBadRequest, api.CodeInvalidArgument, "password is too weak"},
	{service.ErrSamePassword, http.StatusBadRequest, api.CodeInvalidArgument, "new password must differ from the old one"},
	{service.ErrInvalidFullName, http.StatusBadRequest, api.CodeInvalidArgument, "invalid full name"},
	{service.ErrInvalidRole, http.StatusBadRequest, api.CodeInvalidArgument, "invalid role"},
	{service.ErrInvalidStatus, http.StatusBadRequest, api.CodeInvalidArgument, "invalid status"},
	{ErrInvalidArgument, http.StatusBadRequest, api.CodeInvalidArgument, "invalid argument"},
	{context.Canceled, StatusClientClosedRequest, api.CodeCanceled, "canceled"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, api.CodeDeadlineExceeded, "deadline exceeded"},
}

// ToHTTP конвертирует ошибку в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil - это программная ошибка вызова: 500/internal,
//     чтобы не послать "200 OK" с телом ошибки и не маскировать баг;
//   - неизвестная ошибка (в т.ч. ErrRefreshTokenCollision, сбой БД) - 500/internal.
func ToHTTP(err error) (int, api.ErrorResponse) {
	if err != nil {
		for _, m := range table {
			if errors.Is(err, m.target) {
				return m.status, api.ErrorResponse{Error: api.APIError{Code: m.code, Message: m.msg}}
			}
		}
	}

	return http.StatusInternalServerError, api.ErrorResponse{
		Error: api.APIError{
			Code:    api.CodeInternal,
			Message: "internal error",
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
