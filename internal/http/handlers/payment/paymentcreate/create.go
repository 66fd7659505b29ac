// Package paymentcreate создаёт предпочтение оплаты тарифа в Mercado Pago.
package paymentcreate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/estudarpro/estudar/internal/access"
	"github.com/estudarpro/estudar/internal/http/response"
	"github.com/estudarpro/estudar/internal/lib/sl"
	"github.com/estudarpro/estudar/internal/services/payment"
)

// Request запрос на создание предпочтения оплаты.
// UserID необязателен; если передан, он должен совпадать с пользователем сессии.
type Request struct {
	PlanID int64  `json:"planId" validate:"required,gt=0"`
	UserID string `json:"userId"`
}

// Service определяет интерфейс для работы с платежами.
type Service interface {
	CreatePreference(ctx context.Context, userID string, planID int64) (*payment.Checkout, error)
}

// Handler обрабатывает запросы на создание предпочтений оплаты.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate // Валидатор структуры входящих данных
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать платеж
// @Description Создает предпочтение оплаты Mercado Pago для выбранного тарифа и возвращает ссылку на оплату
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Request true "Тариф"
// @Success 200 {object} response.Response "Ссылка на оплату"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Оплата недоступна"
// @Failure 404 {object} response.ErrorResponse "Тариф не найден"
// @Failure 503 {object} response.ErrorResponse "Платежи не настроены"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при создании платежа"
// @Router /payment/create-preference [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, ok := access.IdentityFrom(r.Context())
	if !ok {
		log.Error("identity not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if req.UserID != "" && req.UserID != id.UserID {
		log.Warn("payment for another user rejected", slog.String("user_id", id.UserID))
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.Error("forbidden"))
		return
	}
	if !access.Can(id.Role, access.CapPurchase) {
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.Error("forbidden"))
		return
	}

	checkout, err := h.service.CreatePreference(r.Context(), id.UserID, req.PlanID)
	switch {
	case errors.Is(err, payment.ErrPlanNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("plan not found"))
		return
	case errors.Is(err, payment.ErrUserNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	case errors.Is(err, payment.ErrNotConfigured):
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("payments are not configured"))
		return
	case err != nil:
		log.Error("failed to create preference", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("payment provider error"))
		return
	}

	log.Info("preference created", slog.String("reference", checkout.ExternalReference))
	render.JSON(w, r, response.StatusOKWithData(checkout))
}
