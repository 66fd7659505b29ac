// Package logout закрывает пользовательскую и административную сессии.
package logout

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/estudarpro/estudar/internal/http/response"
	"github.com/estudarpro/estudar/internal/lib/session"
)

type Handler struct {
	secureCookie bool
}

func New(secureCookie bool) *Handler {
	return &Handler{secureCookie: secureCookie}
}

// ServeHTTP godoc
// @Summary Выход
// @Description Удаляет cookie session_token и admin_session_token.
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response
// @Router /auth/logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session.ClearCookie(w, session.UserCookie, h.secureCookie)
	session.ClearCookie(w, session.AdminCookie, h.secureCookie)
	render.JSON(w, r, response.NoSession())
}
