package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ChiNguyen3107/todo-app/internal/models"
	"github.com/ChiNguyen3107/todo-app/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, st *Storage, email string) uuid.UUID {
	t.Helper()
	u := newUser(email)
	require.NoError(t, st.SaveUser(context.Background(), u))
	return u.ID
}

// hashRefresh — sha256 → base64url, как в сервисном слое.
func hashRefresh(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func saveToken(t *testing.T, st *Storage, userID uuid.UUID, plain string, expiresAt time.Time) string {
	t.Helper()
	hash := hashRefresh(plain)
	require.NoError(t, st.SaveRefreshToken(context.Background(), &models.RefreshToken{
		TokenHash: hash,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}))
	return hash
}

func TestIntegration_SaveRefreshToken_And_GetByHash_OK(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	userID := seedUser(t, st, "user@example.com")
	exp := time.Now().UTC().Add(time.Hour)
	hash := saveToken(t, st, userID, "plain-refresh-1", exp)

	got, err := st.RefreshTokenByHash(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, hash, got.TokenHash)
	require.Equal(t, userID, got.UserID)
	require.False(t, got.Revoked)
	require.WithinDuration(t, exp, got.ExpiresAt, 2*time.Second)
}

func TestIntegration_SaveRefreshToken_UniqueViolation(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	userID := seedUser(t, st, "user@example.com")
	hash := saveToken(t, st, userID, "dup", time.Now().UTC().Add(time.Hour))

	err := st.SaveRefreshToken(context.Background(), &models.RefreshToken{
		TokenHash: hash, UserID: userID, CreatedAt: time.Now().UTC(), ExpiresAt: time.Now().UTC().Add(time.Hour),
	})
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestIntegration_RevokeRefreshToken_States(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	userID := seedUser(t, st, "user@example.com")
	hash := saveToken(t, st, userID, "to-revoke", time.Now().UTC().Add(time.Hour))

	// 1) Активный — (true, nil).
	ok, err := st.RevokeRefreshToken(ctx, hash)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := st.RefreshTokenByHash(ctx, hash)
	require.NoError(t, err)
	require.True(t, got.Revoked)

	// 2) Уже отозван — (false, nil).
	ok, err = st.RevokeRefreshToken(ctx, hash)
	require.NoError(t, err)
	require.False(t, ok)

	// 3) Не существует — (false, ErrNotFound).
	ok, err = st.RevokeRefreshToken(ctx, hashRefresh("absent"))
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.False(t, ok)
}

// TestIntegration_RevokeRefreshToken_ConcurrentSingleWinner — из N конкурентных
// попыток отозвать один токен успешна ровно одна.
func TestIntegration_RevokeRefreshToken_ConcurrentSingleWinner(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	userID := seedUser(t, st, "race@example.com")
	hash := saveToken(t, st, userID, "race", time.Now().UTC().Add(time.Hour))

	const n = 10
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			ok, err := st.RevokeRefreshToken(context.Background(), hash)
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
}

func TestIntegration_RevokeUserRefreshTokens(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	alice := seedUser(t, st, "alice@example.com")
	bob := seedUser(t, st, "bob@example.com")
	exp := time.Now().UTC().Add(time.Hour)

	a1 := saveToken(t, st, alice, "a1", exp)
	a2 := saveToken(t, st, alice, "a2", exp)
	b1 := saveToken(t, st, bob, "b1", exp)

	require.NoError(t, st.RevokeUserRefreshTokens(ctx, alice))

	for _, h := range []string{a1, a2} {
		got, err := st.RefreshTokenByHash(ctx, h)
		require.NoError(t, err)
		require.True(t, got.Revoked)
	}

	got, err := st.RefreshTokenByHash(ctx, b1)
	require.NoError(t, err)
	require.False(t, got.Revoked)
}

func TestIntegration_DeleteExpiredTokens_DeletesOnlyExpired(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	userID := seedUser(t, st, "user@example.com")
	now := time.Now().UTC()

	past := saveToken(t, st, userID, "expired-past", now.Add(-time.Minute))
	edge := saveToken(t, st, userID, "expired-now", now)
	live := saveToken(t, st, userID, "not-expired", now.Add(30*time.Minute))

	require.NoError(t, st.DeleteExpiredTokens(ctx, now))

	_, err := st.RefreshTokenByHash(ctx, past)
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.RefreshTokenByHash(ctx, edge)
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.RefreshTokenByHash(ctx, live)
	require.NoError(t, err)
}
