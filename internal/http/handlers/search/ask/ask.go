// Package ask обрабатывает вопросы к языковой модели.
package ask

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
	askservice "github.com/estudarpro/estudar/internal/services/ask"
)

type Request struct {
	Question string `json:"question" validate:"required,max=2000"`
	Context  string `json:"context" validate:"max=20000"`
}

type Service interface {
	Ask(ctx context.Context, question, extra string) (*askservice.Answer, error)
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
// @Summary Вопрос к ассистенту
// @Description Отвечает на вопрос, используя найденные статьи законов как контекст.
// @Tags Search
// @Accept  json
// @Produce  json
// @Param request body Request true "Вопрос"
// @Success 200 {object} response.Response "Ответ и источники"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 502 {object} response.ErrorResponse "Ошибка языковой модели"
// @Failure 503 {object} response.ErrorResponse "Модель не настроена"
// @Router /ask [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.search.ask"

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

	answer, err := h.service.Ask(r.Context(), req.Question, req.Context)
	switch {
	case errors.Is(err, askservice.ErrNotConfigured):
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("assistant is not configured"))
		return
	case err != nil:
		log.Error("completion failed", sl.Err(err))
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, response.Error("assistant unavailable"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(answer))
}
