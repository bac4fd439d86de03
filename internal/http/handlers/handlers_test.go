package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ChiNguyen3107/todo-app/internal/http/middleware"
	"github.com/ChiNguyen3107/todo-app/internal/metrics"
	"github.com/ChiNguyen3107/todo-app/internal/models"
	"github.com/ChiNguyen3107/todo-app/internal/service"
	"github.com/ChiNguyen3107/todo-app/pkg/api"
	"github.com/ChiNguyen3107/todo-app/pkg/guard"
)

// fakeService — AuthService на функциях; незаданный метод паникует,
// чтобы тест явно показывал неожиданный вызов.
type fakeService struct {
	register       func(email, password, fullName string) (*models.TokenPair, *models.User, error)
	login          func(email, password string) (*models.TokenPair, *models.User, error)
	refresh        func(rt string) (*models.TokenPair, *models.User, error)
	logout         func(id uuid.UUID, rt string) error
	me             func(id uuid.UUID) (*models.User, error)
	changePassword func(id uuid.UUID, oldPW, newPW string) error
	listUsers      func(search string, limit, offset int) ([]models.User, error)
	getUser        func(id uuid.UUID) (*models.User, error)
	setStatus      func(id uuid.UUID, st models.UserStatus) (*models.User, error)
	setRole        func(id uuid.UUID, role guard.Role) (*models.User, error)
}

func (f *fakeService) Register(_ context.Context, email, password, fullName string) (*models.TokenPair, *models.User, error) {
	return f.register(email, password, fullName)
}

func (f *fakeService) Login(_ context.Context, email, password string) (*models.TokenPair, *models.User, error) {
	return f.login(email, password)
}

func (f *fakeService) Refresh(_ context.Context, rt string) (*models.TokenPair, *models.User, error) {
	return f.refresh(rt)
}

func (f *fakeService) Logout(_ context.Context, id uuid.UUID, rt string) error {
	return f.logout(id, rt)
}

func (f *fakeService) Me(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.me(id)
}

func (f *fakeService) ChangePassword(_ context.Context, id uuid.UUID, oldPW, newPW string) error {
	return f.changePassword(id, oldPW, newPW)
}

func (f *fakeService) ListUsers(_ context.Context, search string, limit, offset int) ([]models.User, error) {
	return f.listUsers(search, limit, offset)
}

func (f *fakeService) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.getUser(id)
}

func (f *fakeService) SetUserStatus(_ context.Context, id uuid.UUID, st models.UserStatus) (*models.User, error) {
	return f.setStatus(id, st)
}

func (f *fakeService) SetUserRole(_ context.Context, id uuid.UUID, role guard.Role) (*models.User, error) {
	return f.setRole(id, role)
}

var testUser = &models.User{
	ID:        uuid.MustParse("7f1b8f5e-2a51-4c38-9a7f-2d0c8b7a0e11"),
	Email:     "alice@example.com",
	FullName:  "Alice",
	Role:      guard.RoleUser,
	Status:    models.StatusActive,
	CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
}

var testPair = &models.TokenPair{
	AccessToken:     "access-1",
	RefreshToken:    "refresh-1",
	AccessExpiresAt: time.Date(2026, 1, 2, 3, 19, 5, 0, time.UTC),
}

func doJSON(h http.HandlerFunc, method, target, body string, claims *models.Claims) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if claims != nil {
		req = req.WithContext(middleware.WithClaims(req.Context(), claims))
	}

	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env api.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env.Error.Code
}

func TestLogin(t *testing.T) {
	t.Parallel()

	svc := &fakeService{login: func(email, password string) (*models.TokenPair, *models.User, error) {
		if email == testUser.Email && password == "Secret123" {
			return testPair, testUser, nil
		}
		return nil, nil, service.ErrInvalidCredentials
	}}
	h := New(svc, nil)

	t.Run("ok", func(t *testing.T) {
		rr := doJSON(h.Login, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"Secret123"}`, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

		var out api.AuthResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		require.Equal(t, "access-1", out.AccessToken)
		require.Equal(t, "refresh-1", out.RefreshToken)
		require.Equal(t, api.TokenTypeBearer, out.TokenType)
		require.Equal(t, testUser.ID.String(), out.UserID)
		require.Equal(t, "USER", out.Role)
		require.Equal(t, "ACTIVE", out.Status)
		require.True(t, out.AccessExpiresAt.Equal(testPair.AccessExpiresAt))
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := doJSON(h.Login, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"nope"}`, nil)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		require.Equal(t, api.CodeInvalidCredentials, errorCode(t, rr))
	})

	t.Run("unknown field", func(t *testing.T) {
		rr := doJSON(h.Login, http.MethodPost, "/auth/login", `{"email":"a","password":"b","extra":1}`, nil)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Equal(t, api.CodeInvalidArgument, errorCode(t, rr))
	})

	t.Run("trailing data", func(t *testing.T) {
		rr := doJSON(h.Login, http.MethodPost, "/auth/login", `{"email":"a","password":"b"} {}`, nil)
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestRegister(t *testing.T) {
	t.Parallel()

	var got [3]string
	svc := &fakeService{register: func(email, password, fullName string) (*models.TokenPair, *models.User, error) {
		got = [3]string{email, password, fullName}
		if email == "taken@example.com" {
			return nil, nil, service.ErrEmailTaken
		}
		return testPair, testUser, nil
	}}
	h := New(svc, nil)

	rr := doJSON(h.Register, http.MethodPost, "/auth/register",
		`{"email":"alice@example.com","password":"Secret123","fullName":"Alice"}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, [3]string{"alice@example.com", "Secret123", "Alice"}, got)

	rr = doJSON(h.Register, http.MethodPost, "/auth/register",
		`{"email":"taken@example.com","password":"Secret123","fullName":"Bob"}`, nil)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, api.CodeAlreadyExists, errorCode(t, rr))
}

func TestRefreshToken_RecordsMetrics(t *testing.T) {
	t.Parallel()

	svc := &fakeService{refresh: func(rt string) (*models.TokenPair, *models.User, error) {
		switch rt {
		case "good":
			return testPair, testUser, nil
		case "expired":
			return nil, nil, service.ErrTokenExpired
		case "revoked":
			return nil, nil, service.ErrTokenRevoked
		default:
			return nil, nil, service.ErrInvalidToken
		}
	}}
	reg := prometheus.NewRegistry()
	h := New(svc, metrics.New(reg))

	rr := doJSON(h.RefreshToken, http.MethodPost, "/auth/refresh-token", `{"refreshToken":"good"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(h.RefreshToken, http.MethodPost, "/auth/refresh-token", `{"refreshToken":"expired"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, api.CodeTokenExpired, errorCode(t, rr))

	rr = doJSON(h.RefreshToken, http.MethodPost, "/auth/refresh-token", `{"refreshToken":"revoked"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, api.CodeInvalidToken, errorCode(t, rr))

	rr = doJSON(h.RefreshToken, http.MethodPost, "/auth/refresh-token", `{"refreshToken":"garbage"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	// Серии: ok, token_expired, invalid_token (revoked и garbage в одной).
	n, err := testutil.GatherAndCount(reg, "session_refresh_total")
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestRefreshResult(t *testing.T) {
	t.Parallel()

	require.Equal(t, metrics.ResultOK, refreshResult(nil))
	require.Equal(t, api.CodeTokenExpired, refreshResult(service.ErrTokenExpired))
	require.Equal(t, api.CodeInvalidToken, refreshResult(service.ErrTokenRevoked))
	require.Equal(t, api.CodeInvalidToken, refreshResult(service.ErrInvalidToken))
	require.Equal(t, metrics.ResultError, refreshResult(context.DeadlineExceeded))
}

func TestLogout(t *testing.T) {
	t.Parallel()

	var gotID uuid.UUID
	var gotRT string
	svc := &fakeService{logout: func(id uuid.UUID, rt string) error {
		gotID, gotRT = id, rt
		return nil
	}}
	h := New(svc, nil)
	claims := &models.Claims{UserID: testUser.ID, Role: guard.RoleUser}

	rr := doJSON(h.Logout, http.MethodPost, "/auth/logout", `{"refreshToken":"rt-1"}`, claims)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, testUser.ID, gotID)
	require.Equal(t, "rt-1", gotRT)

	// Пустое тело допустимо: завершаем все сессии.
	rr = doJSON(h.Logout, http.MethodPost, "/auth/logout", "", claims)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, gotRT)

	rr = doJSON(h.Logout, http.MethodPost, "/auth/logout", `{"refreshToken":`, claims)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(h.Logout, http.MethodPost, "/auth/logout", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMe(t *testing.T) {
	t.Parallel()

	svc := &fakeService{me: func(id uuid.UUID) (*models.User, error) {
		if id == testUser.ID {
			return testUser, nil
		}
		return nil, service.ErrUserNotFound
	}}
	h := New(svc, nil)

	rr := doJSON(h.Me, http.MethodGet, "/auth/me", "", &models.Claims{UserID: testUser.ID})
	require.Equal(t, http.StatusOK, rr.Code)

	var out api.UserResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, testUser.Email, out.Email)
	require.Equal(t, "Alice", out.FullName)
	require.True(t, out.CreatedAt.Equal(testUser.CreatedAt))

	rr = doJSON(h.Me, http.MethodGet, "/auth/me", "", &models.Claims{UserID: uuid.New()})
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	svc := &fakeService{changePassword: func(_ uuid.UUID, oldPW, newPW string) error {
		if oldPW != "Secret123" {
			return service.ErrInvalidCredentials
		}
		if oldPW == newPW {
			return service.ErrSamePassword
		}
		return nil
	}}
	h := New(svc, nil)
	claims := &models.Claims{UserID: testUser.ID}

	rr := doJSON(h.ChangePassword, http.MethodPost, "/auth/change-password",
		`{"oldPassword":"Secret123","newPassword":"Secret456"}`, claims)
	require.Equal(t, http.StatusOK, rr.Code)

	var msg api.MessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msg))
	require.NotEmpty(t, msg.Message)

	rr = doJSON(h.ChangePassword, http.MethodPost, "/auth/change-password",
		`{"oldPassword":"Secret123","newPassword":"Secret123"}`, claims)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(h.ChangePassword, http.MethodPost, "/auth/change-password",
		`{"oldPassword":"wrong","newPassword":"Secret456"}`, claims)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, api.CodeInvalidCredentials, errorCode(t, rr))
}

func TestListUsers_Paging(t *testing.T) {
	t.Parallel()

	var (
		gotSearch           string
		gotLimit, gotOffset int
	)
	svc := &fakeService{listUsers: func(search string, limit, offset int) ([]models.User, error) {
		gotSearch, gotLimit, gotOffset = search, limit, offset
		return []models.User{*testUser}, nil
	}}
	h := New(svc, nil)

	rr := doJSON(h.ListUsers, http.MethodGet, "/admin/users?limit=5&offset=10&search=ali%20ce", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ali ce", gotSearch)
	require.Equal(t, 5, gotLimit)
	require.Equal(t, 10, gotOffset)

	var out []api.UserResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)

	rr = doJSON(h.ListUsers, http.MethodGet, "/admin/users", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Zero(t, gotLimit)
	require.Empty(t, gotSearch)

	rr = doJSON(h.ListUsers, http.MethodGet, "/admin/users?limit=abc", "", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminSetters_ParseIDFromPath(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		setStatus: func(id uuid.UUID, st models.UserStatus) (*models.User, error) {
			if !st.Valid() {
				return nil, service.ErrInvalidStatus
			}
			u := *testUser
			u.ID, u.Status = id, st
			return &u, nil
		},
		setRole: func(id uuid.UUID, role guard.Role) (*models.User, error) {
			r, ok := guard.ParseRole(string(role))
			if !ok {
				return nil, service.ErrInvalidRole
			}
			u := *testUser
			u.ID, u.Role = id, r
			return &u, nil
		},
	}
	h := New(svc, nil)

	r := chi.NewRouter()
	r.Put("/admin/users/{id}/status", h.SetUserStatus)
	r.Put("/admin/users/{id}/role", h.SetUserRole)

	put := func(target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, target, strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	id := uuid.New()

	rr := put("/admin/users/"+id.String()+"/status", `{"status":"LOCKED"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var out api.UserResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, id.String(), out.ID)
	require.Equal(t, "LOCKED", out.Status)

	rr = put("/admin/users/"+id.String()+"/status", `{"status":"BANNED"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = put("/admin/users/"+id.String()+"/role", `{"role":"admin"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, "ADMIN", out.Role)

	rr = put("/admin/users/not-a-uuid/role", `{"role":"ADMIN"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, api.CodeInvalidArgument, errorCode(t, rr))
}

func TestGetUser_ByPathID(t *testing.T) {
	t.Parallel()

	svc := &fakeService{getUser: func(id uuid.UUID) (*models.User, error) {
		if id != testUser.ID {
			return nil, service.ErrUserNotFound
		}
		return testUser, nil
	}}
	h := New(svc, nil)

	r := chi.NewRouter()
	r.Get("/admin/users/{id}", h.GetUser)

	get := func(target string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		return rr
	}

	rr := get("/admin/users/" + testUser.ID.String())
	require.Equal(t, http.StatusOK, rr.Code)
	var out api.UserResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, testUser.Email, out.Email)

	rr = get("/admin/users/" + uuid.NewString())
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, api.CodeNotFound, errorCode(t, rr))

	rr = get("/admin/users/42")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, api.CodeInvalidArgument, errorCode(t, rr))
}
