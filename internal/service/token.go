package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ChiNguyen3107/todo-app/internal/cache"
	"github.com/ChiNguyen3107/todo-app/internal/models"
	"github.com/ChiNguyen3107/todo-app/internal/storage"
	"github.com/ChiNguyen3107/todo-app/pkg/guard"
	"github.com/ChiNguyen3107/todo-app/pkg/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// verifyLeeway — допуск расхождения часов при проверке exp/iat.
const verifyLeeway = 5 * time.Second

type accessClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// generateAccessToken подписывает access-токен (HS256) и возвращает его вместе с моментом истечения.
func (s *Service) generateAccessToken(ctx context.Context, user *models.User, now time.Time) (string, time.Time, error) {
	const op = "service.token.generateAccessToken"

	exp := now.Add(s.cfg.AccessTokenTTL)
	claims := accessClaims{
		UserID: user.ID.String(),
		Email:  user.Email,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings(s.cfg.Audience),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		log.From(ctx).Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// Verify проверяет access-токен и возвращает его claims.
// Функция чистая: не обращается к хранилищу и никогда не обновляет токены.
// Любой отказ — ErrUnauthenticated, дополнительно обёрнутый причиной
// (ErrTokenExpired или ErrInvalidToken).
func (s *Service) Verify(accessToken string) (*models.Claims, error) {
	const op = "service.token.Verify"

	if accessToken == "" {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnauthenticated, ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(verifyLeeway),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
	}
	if len(s.cfg.Audience) > 0 {
		opts = append(opts, jwt.WithAudience(s.cfg.Audience...))
	}

	token, err := jwt.ParseWithClaims(accessToken, &accessClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, ErrInvalidToken
			}

			return []byte(s.cfg.JWTSecret), nil
		},
		opts...,
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrUnauthenticated, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnauthenticated, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnauthenticated, ErrInvalidToken)
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnauthenticated, ErrInvalidToken)
	}

	role, ok := guard.ParseRole(claims.Role)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnauthenticated, ErrInvalidToken)
	}

	return &models.Claims{UserID: uid, Email: claims.Email, Role: role}, nil
}

// hashRefresh — sha256(plain) в base64url; в хранилище попадает только хэш.
func hashRefresh(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// generateRefreshToken создаёт и сохраняет новый refresh-токен.
// Возвращает открытое значение и момент истечения.
func (s *Service) generateRefreshToken(ctx context.Context, userID uuid.UUID, now time.Time) (string, time.Time, error) {
	const (
		op          = "service.token.generateRefreshToken"
		maxAttempts = 5
	)

	lg := log.From(ctx)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			lg.Error("refresh_rand_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
		}
		plain := base64.RawURLEncoding.EncodeToString(b)

		token := &models.RefreshToken{
			TokenHash: hashRefresh(plain),
			UserID:    userID,
			CreatedAt: now,
			ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
		}

		if err := s.storage.SaveRefreshToken(ctx, token); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				// Редкая коллизия — пробуем сгенерировать заново.
				continue
			}

			lg.Error("save_refresh_token_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
		}

		s.cacheRefresh(ctx, token)

		return plain, token.ExpiresAt, nil
	}

	lg.Error("refresh_collision_exceeded", slog.String("op", op))

	return "", time.Time{}, fmt.Errorf("%s: %w", op, ErrRefreshTokenCollision)
}

// lookupRefreshToken ищет запись по хэшу: сначала в кэше, затем в БД.
//
// Отрицательный ответ кэша (revoked) принимается сразу. Положительный принимается
// только если trustCache: при ротации следом идёт атомарный отзыв в БД, который
// всё равно отсеет токен, отозванный массово (logout-all, смена пароля).
func (s *Service) lookupRefreshToken(ctx context.Context, hash string, trustCache bool) (*models.RefreshToken, error) {
	if s.rcache != nil {
		e, ok, err := s.rcache.Get(ctx, hash)
		switch {
		case err != nil:
			log.From(ctx).Warn("refresh_cache_get_failed", slog.String("err", err.Error()))
		case ok && (e.Revoked || trustCache):
			return &models.RefreshToken{
				TokenHash: hash,
				UserID:    e.UserID,
				ExpiresAt: e.ExpiresAt,
				Revoked:   e.Revoked,
			}, nil
		}
	}

	token, err := s.storage.RefreshTokenByHash(ctx, hash)
	if err != nil {
		return nil, err
	}

	s.cacheRefresh(ctx, token)

	return token, nil
}

// cacheRefresh кладёт запись в кэш. Ошибки кэша не влияют на результат операции.
func (s *Service) cacheRefresh(ctx context.Context, token *models.RefreshToken) {
	if s.rcache == nil {
		return
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return
	}

	err := s.rcache.Set(ctx, token.TokenHash, &cache.RefreshEntry{
		UserID:    token.UserID,
		Revoked:   token.Revoked,
		ExpiresAt: token.ExpiresAt,
	}, ttl)
	if err != nil {
		log.From(ctx).Warn("refresh_cache_set_failed", slog.String("err", err.Error()))
	}
}

// validateRefreshToken проверяет предъявленный refresh-токен и возвращает его запись.
func (s *Service) validateRefreshToken(ctx context.Context, plain string) (*models.RefreshToken, error) {
	const op = "service.token.validateRefreshToken"

	if plain == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	lg := log.From(ctx)

	token, err := s.lookupRefreshToken(ctx, hashRefresh(plain), !s.cfg.ReuseRefreshTokens)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_lookup_not_found", slog.String("op", op))
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		lg.Error("refresh_lookup_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if token.Revoked {
		lg.Warn("refresh_revoked",
			slog.String("op", op),
			slog.String("user_id", token.UserID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	if !time.Now().UTC().Before(token.ExpiresAt) {
		lg.Warn("refresh_expired",
			slog.String("op", op),
			slog.String("user_id", token.UserID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	return token, nil
}

// revokeRefresh атомарно отзывает токен в БД и помечает его в кэше.
func (s *Service) revokeRefresh(ctx context.Context, hash string) (bool, error) {
	revoked, err := s.storage.RevokeRefreshToken(ctx, hash)
	if err != nil {
		return false, err
	}

	if s.rcache != nil {
		if err := s.rcache.MarkRevoked(ctx, hash); err != nil {
			log.From(ctx).Warn("refresh_cache_revoke_failed", slog.String("err", err.Error()))
		}
	}

	return revoked, nil
}

// Issue выпускает новую пару токенов для пользователя.
func (s *Service) Issue(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	const op = "service.token.Issue"

	now := time.Now().UTC()

	access, accessExp, err := s.generateAccessToken(ctx, user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, refreshExp, err := s.generateRefreshToken(ctx, user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Refresh обменивает refresh-токен на новую пару.
//
// При ротации (по умолчанию) предъявленный токен отзывается атомарно: из
// конкурентных обменов одного токена успешен ровно один, остальные получают
// ErrTokenRevoked. При ReuseRefreshTokens клиент получает новый access-токен
// и тот же refresh-токен.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, *models.User, error) {
	const op = "service.token.Refresh"

	token, err := s.validateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.UserByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if !user.Active() {
		log.From(ctx).Warn("refresh_user_inactive",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
			slog.String("status", string(user.Status)),
		)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if s.cfg.ReuseRefreshTokens {
		now := time.Now().UTC()
		access, accessExp, err := s.generateAccessToken(ctx, user, now)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}

		return &models.TokenPair{
			AccessToken:      access,
			RefreshToken:     refreshToken,
			AccessExpiresAt:  accessExp,
			RefreshExpiresAt: token.ExpiresAt,
		}, user, nil
	}

	revoked, err := s.revokeRefresh(ctx, token.TokenHash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if !revoked {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	pair, err := s.Issue(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user, nil
}
