// Package sendcode выпускает код входа и отправляет его в WhatsApp.
package sendcode

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
	Name  string `json:"name" validate:"max=100"`
	Phone string `json:"phone" validate:"required,min=8,max=20"`
}

type Service interface {
	Initiate(ctx context.Context, name, phone string) (string, error)
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
// @Summary Отправить код входа
// @Description Выпускает шестизначный код и отправляет его в WhatsApp. Возвращает идентификатор проверки, но не сам код.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Телефон и имя"
// @Success 200 {object} response.Response "Код отправлен"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/whatsapp/send [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.sendcode"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	id, err := h.service.Initiate(r.Context(), req.Name, req.Phone)
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
		log.Error("failed to issue code", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to send code"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"verification_id": id,
		"message":         "verification code sent",
	}))
}
