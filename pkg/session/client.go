// session — клиент HTTP API todo-app, который владеет сессией пользователя:
// хранит пару токенов, подставляет access-токен в запросы и прозрачно
// обновляет пару при 401.
//
// Обновление выполняется не более одного раза одновременно: первый запрос,
// получивший 401, становится «обновляющим», остальные встают в FIFO-очередь
// и продолжают с новым токеном (или получают ErrSessionExpired) после того,
// как обновление завершится. Каждый запрос повторяется не более одного раза.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ChiNguyen3107/todo-app/pkg/api"
	"github.com/ChiNguyen3107/todo-app/pkg/guard"
	"github.com/ChiNguyen3107/todo-app/pkg/redact"
)

const (
	// DefaultRefreshPath — эндпойнт обмена refresh-токена.
	DefaultRefreshPath = "/auth/refresh-token"
	// DefaultTimeout — таймаут одного HTTP-вызова (в т.ч. обновления токенов).
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 64 << 10
)

// LogoutReason — причина завершения сессии.
type LogoutReason int

const (
	LogoutRequested LogoutReason = iota + 1
	LogoutRefreshFailed
	LogoutNoRefreshToken
	LogoutPasswordChanged
)

func (r LogoutReason) String() string {
	switch r {
	case LogoutRequested:
		return "requested"
	case LogoutRefreshFailed:
		return "refresh_failed"
	case LogoutNoRefreshToken:
		return "no_refresh_token"
	case LogoutPasswordChanged:
		return "password_changed"
	default:
		return "unknown"
	}
}

// LogoutEvent передаётся в WithOnLogout при завершении сессии.
// Redirect — точка входа, куда следует отправить пользователя.
type LogoutEvent struct {
	Reason   LogoutReason
	Err      error
	Redirect string
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient задаёт http.Client. Если у него нет собственного Timeout,
// применяется WithTimeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithStore задаёт хранилище токенов (по умолчанию MemoryStore).
func WithStore(s TokenStore) Option {
	return func(c *Client) {
		if s != nil {
			c.store = s
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTimeout — таймаут каждого вызова, включая обновление токенов.
// Истёкший таймаут обновления считается неудачным обновлением.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithOnLogout — побочный эффект завершения сессии (например, переход на логин).
func WithOnLogout(fn func(LogoutEvent)) Option {
	return func(c *Client) { c.onLogout = fn }
}

func WithRefreshPath(p string) Option {
	return func(c *Client) {
		if p != "" {
			c.refreshPath = p
		}
	}
}

// Client — сессия пользователя. Безопасен для конкурентного использования.
type Client struct {
	baseURL     string
	hc          *http.Client
	store       TokenStore
	log         *slog.Logger
	timeout     time.Duration
	onLogout    func(LogoutEvent)
	refreshPath string

	mu         sync.Mutex
	tokens     Tokens
	identity   *Identity
	refreshing bool
	queue      waitQueue
	// epoch меняется при каждой смене токенов в памяти (вход, обновление,
	// завершение сессии). Результат обновления или запись в хранилище,
	// сделанные для прошлой эпохи, отбрасываются.
	epoch uint64

	// storeMu упорядочивает записи в store. Порядок захвата: storeMu, затем mu.
	storeMu sync.Mutex
}

// New создаёт клиент для API по адресу baseURL (например, http://localhost:8080/api)
// и загружает токены из хранилища.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		hc:          http.DefaultClient,
		store:       NewMemoryStore(),
		log:         slog.Default(),
		timeout:     DefaultTimeout,
		refreshPath: DefaultRefreshPath,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.timeout > 0 && c.hc.Timeout == 0 {
		hc := *c.hc
		hc.Timeout = c.timeout
		c.hc = &hc
	}

	t, err := c.store.Load()
	if err != nil {
		c.log.Warn("session_store_load_failed", slog.String("err", err.Error()))
	} else {
		c.tokens = t
	}

	return c
}

// Do отправляет запрос с текущим access-токеном. На 401 обновляет пару
// токенов (или ждёт уже идущего обновления) и повторяет запрос один раз.
//
// Ошибки:
//   - ErrSessionExpired — обновить токены не удалось, сессия завершена;
//   - ErrUnauthenticated — 401 и после обновления;
//   - ошибки транспорта возвращаются как есть, сессия не завершается.
//
// Остальные статусы (включая 403) возвращаются вызывающему без изменений.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	const op = "session.Client.Do"

	if err := rewindable(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	access := c.accessToken()

	resp, err := c.send(req, access)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	discard(resp)

	fresh, err := c.freshToken(req.Context(), access)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Единственный повтор.
	resp, err = c.send(req, fresh)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		discard(resp)
		c.log.Warn("request_unauthenticated_after_refresh",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	return resp, nil
}

// freshToken возвращает access-токен для повтора запроса, получившего 401
// с токеном stale.
func (c *Client) freshToken(ctx context.Context, stale string) (string, error) {
	c.mu.Lock()

	// Обновление уже завершилось, пока запрос был в полёте.
	if cur := c.tokens.AccessToken; cur != "" && cur != stale {
		c.mu.Unlock()
		return cur, nil
	}

	if c.refreshing {
		w := c.queue.push()
		c.mu.Unlock()

		select {
		case out := <-w.done:
			return out.accessToken, out.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	// Сессия уже завершена (например, неудачным обновлением, пока запрос
	// был в полёте): второго обновления и второго события выхода нет.
	if c.tokens.Empty() {
		c.mu.Unlock()

		if stale == "" {
			return "", ErrNotLoggedIn
		}
		return "", fmt.Errorf("%w: session already ended", ErrSessionExpired)
	}

	rt := c.tokens.RefreshToken
	if rt == "" {
		c.mu.Unlock()

		err := fmt.Errorf("%w: no refresh token", ErrSessionExpired)
		_ = c.teardown(LogoutEvent{Reason: LogoutNoRefreshToken, Err: err})
		return "", err
	}

	c.refreshing = true
	epoch := c.epoch
	c.mu.Unlock()

	// Отмена вызывающего не прерывает обновление: его ждут другие запросы.
	out, err := c.refresh(context.WithoutCancel(ctx), rt)

	c.mu.Lock()
	c.refreshing = false
	waiters := c.queue.take()
	stillCurrent := epoch == c.epoch
	current := c.tokens.AccessToken
	if stillCurrent {
		if err == nil {
			c.tokens = Tokens{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}
			c.identity = identityFromAuth(out)
			c.epoch++
		} else {
			// Сброс в той же критической секции, что и снятие refreshing.
			c.resetLocked()
		}
		epoch = c.epoch
	}
	c.mu.Unlock()

	switch {
	case !stillCurrent && current != "":
		// Во время обновления начата новая сессия: ожидающие продолжают с её токеном.
		settle(waiters, outcome{accessToken: current})
		return current, nil

	case !stillCurrent:
		err = fmt.Errorf("%w: session ended during refresh", ErrSessionExpired)
		settle(waiters, outcome{err: err})
		return "", err

	case err != nil:
		err = fmt.Errorf("%w: %w", ErrSessionExpired, err)
		c.log.Warn("session_refresh_failed",
			slog.Int("waiters", len(waiters)),
			slog.String("err", err.Error()),
		)
		settle(waiters, outcome{err: err})
		_ = c.finishTeardown(epoch, LogoutEvent{Reason: LogoutRefreshFailed, Err: err})
		return "", err
	}

	settle(waiters, outcome{accessToken: out.AccessToken})

	if serr := c.persist(epoch, Tokens{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}); serr != nil {
		c.log.Warn("session_store_save_failed", slog.String("err", serr.Error()))
	}

	c.log.Debug("session_refreshed",
		slog.Int("waiters", len(waiters)),
		slog.String("refresh_token", redact.TokenTail(out.RefreshToken)),
	)

	return out.AccessToken, nil
}

// refresh обменивает refresh-токен на новую пару.
func (c *Client) refresh(ctx context.Context, refreshToken string) (*api.AuthResponse, error) {
	const op = "session.Client.refresh"

	req, err := c.newJSONRequest(ctx, http.MethodPost, c.refreshPath, api.RefreshTokenRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out, err := c.authCall(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// teardown очищает токены и identity и вызывает побочный эффект выхода.
// Без активной сессии ничего не делает.
func (c *Client) teardown(ev LogoutEvent) error {
	c.mu.Lock()
	if c.tokens.Empty() {
		c.identity = nil
		c.mu.Unlock()
		return nil
	}
	epoch := c.resetLocked()
	c.mu.Unlock()

	return c.finishTeardown(epoch, ev)
}

// resetLocked сбрасывает сессию в памяти и возвращает новую эпоху. Вызывать под mu.
func (c *Client) resetLocked() uint64 {
	c.tokens = Tokens{}
	c.identity = nil
	c.epoch++

	return c.epoch
}

// finishTeardown очищает хранилище и сообщает о выходе. Вызывается ровно один
// раз на каждый resetLocked.
func (c *Client) finishTeardown(epoch uint64, ev LogoutEvent) error {
	err := c.persist(epoch, Tokens{})
	if err != nil {
		c.log.Error("session_store_clear_failed", slog.String("err", err.Error()))
	}

	c.log.Info("session_ended", slog.String("reason", ev.Reason.String()))

	ev.Redirect = guard.LoginPath
	if c.onLogout != nil {
		c.onLogout(ev)
	}

	return err
}

// persist записывает t в хранилище (пустые Tokens очищают его), если токены
// в памяти не менялись с эпохи epoch. Иначе запись устарела и пропускается:
// актуальную эпоху запишет тот, кто её создал.
func (c *Client) persist(epoch uint64, t Tokens) error {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	c.mu.Lock()
	current := epoch == c.epoch
	c.mu.Unlock()

	if !current {
		c.log.Debug("session_store_write_skipped")
		return nil
	}

	if t.Empty() {
		return c.store.Clear()
	}

	return c.store.Save(t)
}

// establish запоминает новую сессию после входа или регистрации.
func (c *Client) establish(out *api.AuthResponse) (*Identity, error) {
	const op = "session.Client.establish"

	id := identityFromAuth(out)
	t := Tokens{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}

	c.mu.Lock()
	c.tokens = t
	c.identity = id
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	cp := *id
	if err := c.persist(epoch, t); err != nil {
		return &cp, fmt.Errorf("%s: %w", op, err)
	}

	return &cp, nil
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.tokens.AccessToken
}

// send отправляет копию req с заданным access-токеном.
func (c *Client) send(req *http.Request, access string) (*http.Response, error) {
	r := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}

	if access != "" {
		r.Header.Set("Authorization", "Bearer "+access)
	} else {
		r.Header.Del("Authorization")
	}

	return c.hc.Do(r)
}

// authCall выполняет запрос без обновления токенов и разбирает AuthResponse.
func (c *Client) authCall(req *http.Request) (*api.AuthResponse, error) {
	resp, err := c.send(req, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, readAPIError(resp)
	}

	var out api.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}

	if out.AccessToken == "" || out.RefreshToken == "" {
		return nil, errors.New("auth response without tokens")
	}

	return &out, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// rewindable гарантирует, что тело запроса можно отправить повторно.
func rewindable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}

	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return fmt.Errorf("buffer request body: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	req.Body, _ = req.GetBody()

	return nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

// readAPIError разбирает конверт ошибки. Тело закрывает вызывающий.
func readAPIError(resp *http.Response) error {
	e := &APIError{Status: resp.StatusCode}

	var env api.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&env); err == nil {
		e.Code = env.Error.Code
		e.Message = env.Error.Message
		e.RequestID = env.Error.RequestID
	}

	return e
}
