// Package settings читает и изменяет настройки приложения.
package settings

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/estudarpro/estudar/internal/http/response"
	"github.com/estudarpro/estudar/internal/lib/sl"
	"github.com/estudarpro/estudar/internal/models"
)

type Request struct {
	Key   string `json:"key" validate:"required,max=100"`
	Value string `json:"value" validate:"max=10000"`
}

type Service interface {
	ListSettings(ctx context.Context) ([]*models.Setting, error)
	SetSetting(ctx context.Context, key, value string) (*models.Setting, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// List godoc
// @Summary Настройки
// @Tags Admin
// @Produce  json
// @Success 200 {object} response.Response
// @Router /admin/settings [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListSettings(r.Context())
	if err != nil {
		h.log.Error("failed to list settings", slog.String("op", "handlers.admin.settings.List"),
			slog.String("request_id", middleware.GetReqID(r.Context())), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(list))
}

// Set godoc
// @Summary Изменить настройку
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body Request true "Ключ и значение"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /admin/settings [put]
func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.settings.Set"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	st, err := h.service.SetSetting(r.Context(), req.Key, req.Value)
	if err != nil {
		log.Error("failed to save setting", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	log.Info("setting saved", slog.String("key", req.Key))
	render.JSON(w, r, response.StatusOKWithData(st))
}
