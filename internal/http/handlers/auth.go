package handlers

import (
	"errors"
	"net/http"

	apierrors "github.com/ChiNguyen3107/todo-app/internal/errors"
	"github.com/ChiNguyen3107/todo-app/internal/http/middleware"
	"github.com/ChiNguyen3107/todo-app/internal/metrics"
	"github.com/ChiNguyen3107/todo-app/internal/service"
	"github.com/ChiNguyen3107/todo-app/pkg/api"
)

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in api.LoginRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	pair, user, err := h.svc.Login(r.Context(), in.Email, in.Password)
	h.metrics.AuthOp("login", err)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(pair, user))
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in api.RegisterRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	pair, user, err := h.svc.Register(r.Context(), in.Email, in.Password, in.FullName)
	h.metrics.AuthOp("register", err)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse(pair, user))
}

func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var in api.RefreshTokenRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	pair, user, err := h.svc.Refresh(r.Context(), in.RefreshToken)
	h.metrics.Refresh(refreshResult(err))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(pair, user))
}

func refreshResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, service.ErrTokenExpired):
		return api.CodeTokenExpired
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrTokenRevoked):
		return api.CodeInvalidToken
	default:
		return metrics.ResultError
	}
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil {
		apierrors.WriteError(w, r, service.ErrUnauthenticated)
		return
	}

	var in api.LogoutRequest
	if err := decodeOptional(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	err := h.svc.Logout(r.Context(), claims.UserID, in.RefreshToken)
	h.metrics.AuthOp("logout", err)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil {
		apierrors.WriteError(w, r, service.ErrUnauthenticated)
		return
	}

	user, err := h.svc.Me(r.Context(), claims.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil {
		apierrors.WriteError(w, r, service.ErrUnauthenticated)
		return
	}

	var in api.ChangePasswordRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	err := h.svc.ChangePassword(r.Context(), claims.UserID, in.OldPassword, in.NewPassword)
	h.metrics.AuthOp("change_password", err)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.MessageResponse{Message: "password changed"})
}
