package manager

import (
	"errors"
	"net/http"
	"time"
)

// Имена кук. Клиентские приложения исторически ожидают camelCase.
const (
	// AccessTokenCookie - имя куки access-токена
	AccessTokenCookie = "accessToken"
	// RefreshTokenCookie - имя куки refresh-токена
	RefreshTokenCookie = "refreshToken"
)

// ErrNoTokenCookie возвращается, когда нужная кука отсутствует в запросе
var ErrNoTokenCookie = errors.New("token cookie not found")

// TokenManager инкапсулирует выдачу и чтение токеновых кук.
// Атрибуты кук настраиваются один раз при старте приложения.
type TokenManager struct {
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration

	cookiePath     string
	cookieDomain   string
	cookieSecure   bool
	cookieHttpOnly bool
	cookieSameSite http.SameSite
}

// NewTokenManager создает новый менеджер токеновых кук
func NewTokenManager(accessTokenExpiry, refreshTokenExpiry time.Duration) *TokenManager {
	return &TokenManager{
		accessTokenExpiry:  accessTokenExpiry,
		refreshTokenExpiry: refreshTokenExpiry,
		cookiePath:         "/",
		cookieHttpOnly:     true,
		cookieSameSite:     http.SameSiteLaxMode,
	}
}

// SetProductionMode устанавливает флаг режима production для Secure cookies
func (m *TokenManager) SetProductionMode(isProduction bool) {
	m.cookieSecure = isProduction
}

// SetCookieAttributes позволяет настроить атрибуты cookie
func (m *TokenManager) SetCookieAttributes(path, domain string, secure, httpOnly bool, sameSite http.SameSite) {
	m.cookiePath = path
	m.cookieDomain = domain
	m.cookieSecure = secure
	m.cookieHttpOnly = httpOnly
	m.cookieSameSite = sameSite
}

// SetAccessTokenCookie устанавливает access-токен в HttpOnly куки
func (m *TokenManager) SetAccessTokenCookie(w http.ResponseWriter, accessToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    accessToken,
		Path:     m.cookiePath,
		Domain:   m.cookieDomain,
		HttpOnly: m.cookieHttpOnly,
		Secure:   m.cookieSecure,
		SameSite: m.cookieSameSite,
		MaxAge:   int(m.accessTokenExpiry.Seconds()),
	})
}

// SetRefreshTokenCookie устанавливает refresh-токен в HttpOnly куки
func (m *TokenManager) SetRefreshTokenCookie(w http.ResponseWriter, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    refreshToken,
		Path:     m.cookiePath,
		Domain:   m.cookieDomain,
		HttpOnly: m.cookieHttpOnly,
		Secure:   m.cookieSecure,
		SameSite: m.cookieSameSite,
		MaxAge:   int(m.refreshTokenExpiry.Seconds()),
	})
}

// GetAccessTokenFromCookie получает access-токен из куки
func (m *TokenManager) GetAccessTokenFromCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(AccessTokenCookie)
	if err != nil {
		return "", ErrNoTokenCookie
	}
	return cookie.Value, nil
}

// GetRefreshTokenFromCookie получает refresh-токен из куки
func (m *TokenManager) GetRefreshTokenFromCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(RefreshTokenCookie)
	if err != nil {
		return "", ErrNoTokenCookie
	}
	return cookie.Value, nil
}

// ClearAuthCookies удаляет обе токеновые куки (используется при logout)
func (m *TokenManager) ClearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     m.cookiePath,
			Domain:   m.cookieDomain,
			HttpOnly: m.cookieHttpOnly,
			Secure:   m.cookieSecure,
			SameSite: m.cookieSameSite,
			MaxAge:   -1,
		})
	}
}
