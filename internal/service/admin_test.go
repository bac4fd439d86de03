package service

import (
	"context"
	"testing"

	"github.com/ChiNguyen3107/todo-app/internal/models"
	"github.com/ChiNguyen3107/todo-app/internal/storage"
	"github.com/ChiNguyen3107/todo-app/pkg/guard"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestListUsers_NormalizesPaging(t *testing.T) {
	t.Parallel()

	cases := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, defaultPageSize, 0},
		{-5, -1, defaultPageSize, 0},
		{10, 30, 10, 30},
		{1000, 0, maxPageSize, 0},
	}

	for _, tc := range cases {
		svc, st := newServiceWithMock(t)
		st.EXPECT().ListUsers(gomock.Any(), "", tc.wantLimit, tc.wantOffset).Return([]models.User{}, nil)

		_, err := svc.ListUsers(context.Background(), "", tc.limit, tc.offset)
		require.NoError(t, err)
	}
}

func TestListUsers_TrimsSearch(t *testing.T) {
	t.Parallel()

	svc, st := newServiceWithMock(t)
	st.EXPECT().ListUsers(gomock.Any(), "alice", defaultPageSize, 0).
		Return([]models.User{{Email: "alice@example.com"}}, nil)

	users, err := svc.ListUsers(context.Background(), "  alice \t", 0, 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestGetUser(t *testing.T) {
	t.Parallel()

	id := uuid.New()

	t.Run("found", func(t *testing.T) {
		svc, st := newServiceWithMock(t)
		st.EXPECT().UserByID(gomock.Any(), id).Return(&models.User{ID: id, Email: "bob@example.com"}, nil)

		u, err := svc.GetUser(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, "bob@example.com", u.Email)
	})

	t.Run("not found", func(t *testing.T) {
		svc, st := newServiceWithMock(t)
		st.EXPECT().UserByID(gomock.Any(), id).Return(nil, storage.ErrNotFound)

		_, err := svc.GetUser(context.Background(), id)
		require.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestSetUserStatus(t *testing.T) {
	t.Parallel()

	id := uuid.New()

	t.Run("deactivate revokes tokens", func(t *testing.T) {
		svc, st := newServiceWithMock(t)
		st.EXPECT().UpdateStatus(gomock.Any(), id, models.StatusLocked, gomock.Any()).
			Return(&models.User{ID: id, Status: models.StatusLocked}, nil)
		st.EXPECT().RevokeUserRefreshTokens(gomock.Any(), id).Return(nil)

		u, err := svc.SetUserStatus(context.Background(), id, models.StatusLocked)
		require.NoError(t, err)
		require.Equal(t, models.StatusLocked, u.Status)
	})

	t.Run("activate keeps tokens", func(t *testing.T) {
		svc, st := newServiceWithMock(t)
		st.EXPECT().UpdateStatus(gomock.Any(), id, models.StatusActive, gomock.Any()).
			Return(&models.User{ID: id, Status: models.StatusActive}, nil)

		_, err := svc.SetUserStatus(context.Background(), id, models.StatusActive)
		require.NoError(t, err)
	})

	t.Run("invalid status", func(t *testing.T) {
		svc, _ := newServiceWithMock(t)
		_, err := svc.SetUserStatus(context.Background(), id, "BANNED")
		require.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("not found", func(t *testing.T) {
		svc, st := newServiceWithMock(t)
		st.EXPECT().UpdateStatus(gomock.Any(), id, models.StatusInactive, gomock.Any()).Return(nil, storage.ErrNotFound)

		_, err := svc.SetUserStatus(context.Background(), id, models.StatusInactive)
		require.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestSetUserRole(t *testing.T) {
	t.Parallel()

	id := uuid.New()

	svc, st := newServiceWithMock(t)
	st.EXPECT().UpdateRole(gomock.Any(), id, guard.RoleAdmin, gomock.Any()).
		Return(&models.User{ID: id, Role: guard.RoleAdmin}, nil)

	u, err := svc.SetUserRole(context.Background(), id, "admin")
	require.NoError(t, err)
	require.Equal(t, guard.RoleAdmin, u.Role)

	_, err = svc.SetUserRole(context.Background(), id, "ROOT")
	require.ErrorIs(t, err, ErrInvalidRole)

	st.EXPECT().UpdateRole(gomock.Any(), id, guard.RoleUser, gomock.Any()).Return(nil, storage.ErrNotFound)
	_, err = svc.SetUserRole(context.Background(), id, guard.RoleUser)
	require.ErrorIs(t, err, ErrUserNotFound)
}
