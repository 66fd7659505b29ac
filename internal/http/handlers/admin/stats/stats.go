// Package stats отдаёт сводку для панели администратора.
package stats

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/estudarpro/estudar/internal/http/response"
	"github.com/estudarpro/estudar/internal/lib/sl"
	"github.com/estudarpro/estudar/internal/models"
)

type Service interface {
	Stats(ctx context.Context) (*models.Stats, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Статистика
// @Tags Admin
// @Produce  json
// @Success 200 {object} response.Response
// @Router /admin/stats [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Stats(r.Context())
	if err != nil {
		h.log.Error("failed to load stats", slog.String("op", "handlers.admin.stats"),
			slog.String("request_id", middleware.GetReqID(r.Context())), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(st))
}
