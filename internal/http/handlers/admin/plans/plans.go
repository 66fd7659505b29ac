// Package plans управляет тарифами из панели администратора.
package plans

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/estudarpro/estudar/internal/http/response"
	"github.com/estudarpro/estudar/internal/lib/sl"
	"github.com/estudarpro/estudar/internal/models"
	adminservice "github.com/estudarpro/estudar/internal/services/admin"
)

// Request тело создания и изменения тарифа.
type Request struct {
	Name         string  `json:"name" validate:"required,max=100"`
	Description  string  `json:"description" validate:"max=1000"`
	Price        float64 `json:"price" validate:"gt=0"`
	DurationDays int     `json:"duration_days" validate:"gt=0"`
	IsActive     *bool   `json:"is_active"`
	SortOrder    int     `json:"sort_order"`
}

func (r Request) plan(id int64) models.Plan {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return models.Plan{
		ID:           id,
		Name:         r.Name,
		Description:  r.Description,
		Price:        r.Price,
		DurationDays: r.DurationDays,
		IsActive:     active,
		SortOrder:    r.SortOrder,
	}
}

type Service interface {
	ListPlans(ctx context.Context) ([]*models.Plan, error)
	CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error)
	UpdatePlan(ctx context.Context, p models.Plan) (*models.Plan, error)
	DeletePlan(ctx context.Context, id int64) error
}

type handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func (h *handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request) (*Request, bool) {
	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return nil, false
	}
	return &req, true
}

func planID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode id from url"))
		return 0, false
	}
	return id, true
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	if errors.Is(err, adminservice.ErrNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("plan not found"))
		return
	}
	log.Error("plan operation failed", sl.Err(err))
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, response.Error("internal error"))
}

// ListHandler GET /api/admin/plans.
type ListHandler struct{ handler }

func NewList(log *slog.Logger, service Service) *ListHandler {
	return &ListHandler{handler{log: log, service: service}}
}

// ServeHTTP godoc
// @Summary Все тарифы
// @Tags Admin
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Router /admin/plans [get]
func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPlans(r.Context())
	if err != nil {
		h.fail(w, r, h.logger(r, "handlers.admin.plans.list"), err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(list))
}

// CreateHandler POST /api/admin/plans.
type CreateHandler struct{ handler }

func NewCreate(log *slog.Logger, service Service) *CreateHandler {
	return &CreateHandler{handler{log: log, service: service, validate: validator.New()}}
}

// ServeHTTP godoc
// @Summary Создать тариф
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body Request true "Тариф"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /admin/plans [post]
func (h *CreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.plans.create")
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	p, err := h.service.CreatePlan(r.Context(), req.plan(0))
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	log.Info("plan created", slog.Int64("plan_id", p.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(p))
}

// UpdateHandler PUT /api/admin/plans/{id}.
type UpdateHandler struct{ handler }

func NewUpdate(log *slog.Logger, service Service) *UpdateHandler {
	return &UpdateHandler{handler{log: log, service: service, validate: validator.New()}}
}

// ServeHTTP godoc
// @Summary Изменить тариф
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param id path int true "ID тарифа"
// @Param request body Request true "Тариф"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/plans/{id} [put]
func (h *UpdateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.plans.update")
	id, ok := planID(w, r)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	p, err := h.service.UpdatePlan(r.Context(), req.plan(id))
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	log.Info("plan updated", slog.Int64("plan_id", id))
	render.JSON(w, r, response.StatusOKWithData(p))
}

// DeleteHandler DELETE /api/admin/plans/{id}. Тариф отключается, а не удаляется:
// на него ссылаются транзакции.
type DeleteHandler struct{ handler }

func NewDelete(log *slog.Logger, service Service) *DeleteHandler {
	return &DeleteHandler{handler{log: log, service: service}}
}

// ServeHTTP godoc
// @Summary Отключить тариф
// @Tags Admin
// @Produce  json
// @Param id path int true "ID тарифа"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/plans/{id} [delete]
func (h *DeleteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.plans.delete")
	id, ok := planID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeletePlan(r.Context(), id); err != nil {
		h.fail(w, r, log, err)
		return
	}
	log.Info("plan deactivated", slog.Int64("plan_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"id": id, "is_active": false}))
}
