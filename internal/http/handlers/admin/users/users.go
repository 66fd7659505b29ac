// Package users отдаёт постраничный список пользователей.
package users

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/estudarpro/estudar/internal/http/response"
	"github.com/estudarpro/estudar/internal/lib/sl"
	"github.com/estudarpro/estudar/internal/models"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type Service interface {
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return def
	}
	return v
}

// ServeHTTP godoc
// @Summary Пользователи
// @Tags Admin
// @Produce  json
// @Param limit query int false "Размер страницы, по умолчанию 50, максимум 200"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response
// @Router /admin/users [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", defaultLimit)
	if limit == 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset := intParam(r, "offset", 0)

	list, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		h.log.Error("failed to list users", slog.String("op", "handlers.admin.users"),
			slog.String("request_id", middleware.GetReqID(r.Context())), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"users":  list,
		"limit":  limit,
		"offset": offset,
	}))
}
