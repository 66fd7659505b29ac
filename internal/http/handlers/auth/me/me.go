// Package me возвращает текущего пользователя по cookie сессии.
package me

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/estudarpro/estudar/internal/http/response"
	"github.com/estudarpro/estudar/internal/lib/session"
	"github.com/estudarpro/estudar/internal/models"
)

type Service interface {
	Me(ctx context.Context, token string) (*models.User, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Текущий пользователь
// @Description Возвращает пользователя с пересчитанным состоянием пробного периода или authenticated=false.
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.AuthState "Состояние сессии без обёртки status/data"
// @Router /auth/me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context(), session.FromRequest(r, session.UserCookie))
	if err != nil {
		render.JSON(w, r, response.AuthState{Authenticated: false})
		return
	}
	render.JSON(w, r, response.AuthState{Authenticated: true, User: user})
}
