package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ChiNguyen3107/todo-app/pkg/api"
	"github.com/ChiNguyen3107/todo-app/pkg/guard"
	"github.com/ChiNguyen3107/todo-app/pkg/redact"
)

// Login входит по e-mail и паролю и начинает новую сессию.
// Неверные учётные данные — *APIError со статусом 401 (обновление не запускается).
func (c *Client) Login(ctx context.Context, email, password string) (*Identity, error) {
	const op = "session.Client.Login"

	id, err := c.authenticate(ctx, "/auth/login", api.LoginRequest{Email: email, Password: password})
	if err != nil {
		c.log.Debug("login_failed", slog.String("email", redact.Email(email)), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// Register создаёт учётную запись и сразу начинает сессию.
func (c *Client) Register(ctx context.Context, email, password, fullName string) (*Identity, error) {
	const op = "session.Client.Register"

	id, err := c.authenticate(ctx, "/auth/register", api.RegisterRequest{
		Email:    email,
		Password: password,
		FullName: fullName,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*Identity, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}

	out, err := c.authCall(req)
	if err != nil {
		return nil, err
	}

	return c.establish(out)
}

// Logout завершает сессию: сообщает серверу (без гарантии доставки)
// и очищает локальное состояние. Вызов без активной сессии ничего не делает
// и ошибкой не считается.
func (c *Client) Logout(ctx context.Context) error {
	const op = "session.Client.Logout"

	c.mu.Lock()
	t := c.tokens
	epoch := c.epoch
	if t.Empty() {
		c.identity = nil
	}
	c.mu.Unlock()

	if t.Empty() {
		if err := c.persist(epoch, Tokens{}); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	if t.AccessToken != "" {
		c.notifyLogout(ctx, t)
	}

	if err := c.teardown(LogoutEvent{Reason: LogoutRequested}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// notifyLogout отзывает refresh-токен на сервере. Ошибка только логируется:
// локальная сессия завершается в любом случае.
func (c *Client) notifyLogout(ctx context.Context, t Tokens) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/logout", api.LogoutRequest{RefreshToken: t.RefreshToken})
	if err != nil {
		return
	}

	resp, err := c.send(req, t.AccessToken)
	if err != nil {
		c.log.Warn("logout_request_failed", slog.String("err", err.Error()))
		return
	}

	if resp.StatusCode != http.StatusNoContent {
		c.log.Debug("logout_unexpected_status", slog.Int("status", resp.StatusCode))
	}
	discard(resp)
}

// Me запрашивает текущего пользователя и обновляет Identity.
// После перезапуска с FileStore Identity появляется только после Me.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	const op = "session.Client.Me"

	var out api.UserResponse
	if err := c.GetJSON(ctx, "/auth/me", &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id := identityFromUser(&out)

	c.mu.Lock()
	if !c.tokens.Empty() {
		c.identity = id
	}
	c.mu.Unlock()

	cp := *id
	return &cp, nil
}

// ChangePassword меняет пароль. Сервер при этом отзывает все refresh-токены
// пользователя, поэтому локальная сессия тоже завершается.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	const op = "session.Client.ChangePassword"

	in := api.ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
	if err := c.PostJSON(ctx, "/auth/change-password", in, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.teardown(LogoutEvent{Reason: LogoutPasswordChanged}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetJSON выполняет GET path через Do и декодирует ответ в out (если не nil).
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// PostJSON выполняет POST path с JSON-телом in через Do.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	req, err := c.newJSONRequest(ctx, method, path, in)
	if err != nil {
		return err
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return readAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// Identity возвращает копию текущей identity.
func (c *Client) Identity() (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.identity == nil {
		return Identity{}, false
	}

	return *c.identity, true
}

// Authenticated сообщает, есть ли у клиента токены сессии.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return !c.tokens.Empty()
}

// Guard проверяет доступ к операции, требующей роль required, по текущему
// состоянию сессии. Для Unauthenticated второй результат — путь логина
// с сохранённым dest. Решение не кэшируется.
func (c *Client) Guard(required guard.Role, dest string) (guard.Decision, string) {
	c.mu.Lock()
	state := guard.State{}
	if !c.tokens.Empty() && c.identity != nil {
		state = guard.State{Authenticated: true, Role: c.identity.Role}
	}
	c.mu.Unlock()

	d := guard.Check(state, required)
	if d.Reason == guard.ReasonUnauthenticated {
		return d, guard.LoginRedirect(dest)
	}

	return d, ""
}
