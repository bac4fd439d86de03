// guard реализует проверку доступа к защищённым операциям по состоянию
// аутентификации и роли. Пакет не хранит состояние: решение принимается
// заново на каждый вызов, поэтому смена роли или logout посреди сессии
// учитываются при следующей же проверке.
//
// Используется с обеих сторон:
//   - сервер (middleware.RequireRole) — по claims проверенного access-токена;
//   - клиент (session.Client.Guard) — по текущей Identity сессии.
package guard

import (
	"net/url"
	"strings"
)

// Role — роль пользователя.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole нормализует строковое представление роли.
// Возвращает false для неизвестных значений.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Satisfies сообщает, удовлетворяет ли роль r требованию required.
// Пустое требование — «любой аутентифицированный». ADMIN удовлетворяет USER.
func (r Role) Satisfies(required Role) bool {
	switch required {
	case "":
		return r == RoleUser || r == RoleAdmin
	case RoleUser:
		return r == RoleUser || r == RoleAdmin
	case RoleAdmin:
		return r == RoleAdmin
	default:
		return false
	}
}

// Reason — причина отказа.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonUnauthenticated — нет валидной identity; вызывающий отправляет на логин.
	ReasonUnauthenticated
	// ReasonForbidden — identity есть, но роли недостаточно; показываем «access denied», без логина.
	ReasonForbidden
)

func (r Reason) String() string {
	switch r {
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonForbidden:
		return "forbidden"
	default:
		return "none"
	}
}

// State — минимальное состояние сессии, нужное для решения.
type State struct {
	Authenticated bool
	Role          Role
}

// Decision — результат Check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Allow — разрешающее решение.
func Allow() Decision { return Decision{Allowed: true} }

// Deny — запрещающее решение с причиной.
func Deny(reason Reason) Decision { return Decision{Reason: reason} }

// Check принимает решение о допуске.
//
// Порядок:
//  1. нет аутентификации -> Deny(Unauthenticated) независимо от required;
//  2. роль не удовлетворяет required -> Deny(Forbidden);
//  3. иначе Allow.
func Check(state State, required Role) Decision {
	if !state.Authenticated {
		return Deny(ReasonUnauthenticated)
	}

	if !state.Role.Satisfies(required) {
		return Deny(ReasonForbidden)
	}

	return Allow()
}

// LoginPath — точка входа для редиректа неаутентифицированных пользователей.
const LoginPath = "/login"

// LoginRedirect строит путь логина с сохранением исходного адреса в ?next=.
// Пустой dest даёт просто LoginPath.
func LoginRedirect(dest string) string {
	if dest == "" || dest == LoginPath {
		return LoginPath
	}

	return LoginPath + "?next=" + url.QueryEscape(dest)
}
