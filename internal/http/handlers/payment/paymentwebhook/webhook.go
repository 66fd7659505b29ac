// Package paymentwebhook принимает уведомления Mercado Pago.
package paymentwebhook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/estudarpro/estudar/internal/http/response"
	"github.com/estudarpro/estudar/internal/lib/sl"
	"github.com/estudarpro/estudar/internal/mercadopago"
	"github.com/estudarpro/estudar/internal/services/payment"
)

type Service interface {
	HandleWebhook(ctx context.Context, w payment.Webhook) (string, error)
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
// @Summary Уведомление Mercado Pago
// @Description Проверяет подпись x-signature и применяет статус платежа. Повторные уведомления безопасны.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Success 200 {object} response.Response "Уведомление обработано"
// @Failure 400 {object} response.ErrorResponse "Некорректное уведомление"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Failure 503 {object} response.ErrorResponse "Платежи не настроены"
// @Failure 500 {object} response.ErrorResponse "Ошибка обработки"
// @Router /webhooks/mercadopago [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var n mercadopago.Notification
	if err := render.DecodeJSON(r.Body, &n); err != nil {
		log.Error("failed to decode notification", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	result, err := h.service.HandleWebhook(r.Context(), payment.Webhook{
		Notification: n,
		Signature:    r.Header.Get("x-signature"),
		RequestID:    r.Header.Get("x-request-id"),
		DataID:       r.URL.Query().Get("data.id"),
	})
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		log.Warn("webhook signature rejected")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	case errors.Is(err, payment.ErrBadNotification):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid notification"))
		return
	case errors.Is(err, payment.ErrNotConfigured):
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("payments are not configured"))
		return
	case err != nil:
		log.Error("failed to process webhook", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("webhook processed", slog.String("type", n.Type), slog.String("result", result))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"result": result}))
}
