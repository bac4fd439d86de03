// service содержит бизнес-логику аутентификации todo-app:
// регистрацию/вход пользователей, выпуск/обновление/проверку токенов,
// смену пароля и администрирование учётных записей.
//
// Основные аспекты:
//   - Экземпляр Service не хранит состояние запроса и безопасен для
//     конкурентного использования, если потокобезопасно хранилище.
//   - Ошибки возвращаются как sentinel-значения, обёрнутые с op-префиксом;
//     транспорт (internal/errors) маппит их на HTTP-статусы.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ChiNguyen3107/todo-app/internal/cache"
	"github.com/ChiNguyen3107/todo-app/internal/config"
	"github.com/ChiNguyen3107/todo-app/internal/storage"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь не найден.
	// HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountDisabled — учётная запись не в статусе ACTIVE. HTTP 403.
	ErrAccountDisabled = errors.New("account disabled")

	// ErrUnauthenticated — access-токен отсутствует или не прошёл проверку.
	// Оборачивает конкретную причину (ErrInvalidToken/ErrTokenExpired). HTTP 401.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidToken — токен некорректен по формату/подписи или отсутствует
	// в хранилище. HTTP 401 (code=invalid_token).
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк. HTTP 401 (code=token_expired).
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked — refresh-токен отозван (logout/ротация/смена пароля).
	// Для клиента неотличим от ErrInvalidToken. HTTP 401.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrEmailTaken — e-mail уже занят другим пользователем. HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrRefreshTokenCollision — исчерпаны попытки сгенерировать уникальный refresh-токен. HTTP 500.
	ErrRefreshTokenCollision = errors.New("refresh token collision")

	// ErrInvalidEmail — e-mail имеет некорректный формат. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не удовлетворяет политике сложности. HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrSamePassword — новый пароль совпадает со старым. HTTP 400.
	ErrSamePassword = errors.New("new password must differ from the old one")

	// ErrInvalidFullName — пустое или слишком длинное имя. HTTP 400.
	ErrInvalidFullName = errors.New("invalid full name")

	// ErrInvalidRole — неизвестная роль. HTTP 400.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidStatus — неизвестный статус учётной записи. HTTP 400.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrUserNotFound — пользователь не найден (админ-операции, /me). HTTP 404.
	ErrUserNotFound = errors.New("user not found")
)

// Service описывает бизнес-логику аутентификации.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	rcache  cache.RefreshCache // может быть nil, если кэш не сконфигурирован
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
	}
}

// SetRefreshCache устанавливает кэш refresh-токенов (опционально).
func (s *Service) SetRefreshCache(c cache.RefreshCache) {
	s.rcache = c
}

// CleanupExpired удаляет просроченные refresh-токены. Вызывается janitor-горутиной.
func (s *Service) CleanupExpired(ctx context.Context) error {
	const op = "service.CleanupExpired"

	if err := s.storage.DeleteExpiredTokens(ctx, time.Now().UTC()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
