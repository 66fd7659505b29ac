package session

import (
	"net/http"
	"time"
)

const (
	// UserCookie имя cookie пользовательской сессии.
	UserCookie = "session_token"
	// AdminCookie имя cookie административной сессии.
	AdminCookie = "admin_session_token"
)

// SetCookie записывает токен в httpOnly-cookie с заданным сроком жизни.
func SetCookie(w http.ResponseWriter, name, token string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie удаляет cookie.
func ClearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest возвращает значение cookie или пустую строку.
func FromRequest(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
