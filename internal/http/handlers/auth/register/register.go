package register

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

// Request входные данные для регистрации
type Request struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"required,min=8,max=20"`
}

// Service регистрирует пользователя.
type Service interface {
	Register(ctx context.Context, name, email, phone string) (*authservice.Registration, error)
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
// @Summary Регистрация студента
// @Description Создаёт пользователя с пробным периодом и отправляет код подтверждения в WhatsApp.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Имя, email и телефон"
// @Success 200 {object} response.Response "Пользователь создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 409 {object} response.ErrorResponse "Телефон или email уже зарегистрированы"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

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
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	reg, err := h.service.Register(r.Context(), req.Name, req.Email, req.Phone)
	switch {
	case errors.Is(err, authservice.ErrInvalidPhone):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid phone number"))
		return
	case errors.Is(err, authservice.ErrUserExists):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("phone or email already registered"))
		return
	case err != nil:
		log.Error("registration failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to register user"))
		return
	}
	log.Info("user registered", slog.String("user_id", reg.User.ID), slog.Bool("code_sent", reg.CodeSent))

	message := "verification code sent"
	if !reg.CodeSent {
		message = "user created, but the verification code could not be sent; request a new one"
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user":            reg.User,
		"verification_id": reg.VerificationID,
		"code_sent":       reg.CodeSent,
		"message":         message,
	}))
}
