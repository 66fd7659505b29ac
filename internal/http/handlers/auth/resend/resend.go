// Package resend выпускает новый код взамен предыдущего.
package resend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/estudarpro/estudar/internal/http/response"
	"github.com/estudarpro/estudar/internal/lib/sl"
	authservice "github.com/estudarpro/estudar/internal/services/auth"
)

type Request struct {
	Phone string `json:"phone" validate:"required,min=8,max=20"`
}

type Service interface {
	Resend(ctx context.Context, phone string) (string, error)
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

// ServeHTTP godoc
// @Summary Отправить код повторно
// @Description Всегда создаёт новый код. Предыдущий код перестаёт приниматься.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Телефон"
// @Success 200 {object} response.Response "Код отправлен"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/resend [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.resend"

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

	id, err := h.service.Resend(r.Context(), req.Phone)
	switch {
	case errors.Is(err, authservice.ErrInvalidPhone):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid phone number"))
		return
	case errors.Is(err, authservice.ErrTooManyRequests):
		render.Status(r, http.StatusTooManyRequests)
		render.JSON(w, r, response.Error("too many codes requested, try again later"))
		return
	case err != nil:
		log.Error("failed to resend code", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to send code"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"verification_id": id,
		"message":         "verification code sent",
	}))
}
