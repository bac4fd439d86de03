package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionExpired — обновить пару токенов не удалось (или refresh-токена нет):
	// сессия завершена, локальное состояние очищено, нужен повторный вход.
	// Причина доступна через errors.Unwrap/errors.Is.
	ErrSessionExpired = errors.New("session expired")
	// ErrUnauthenticated — запрос получил 401 даже после успешного обновления
	// токенов. Повторно он не отправляется.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotLoggedIn — операция требует сессии, а токенов нет.
	ErrNotLoggedIn = errors.New("not logged in")
)

// APIError — ответ сервера с ошибкой (не-2xx) в формате {"error":{...}}.
// 403 (Forbidden) приходит сюда же и сессию не завершает.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}

	return fmt.Sprintf("api error: status %d: %s: %s", e.Status, e.Code, e.Message)
}
