// Package adminlogin открывает административную сессию по email и паролю.
package adminlogin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/estudarpro/estudar/internal/http/response"
	"github.com/estudarpro/estudar/internal/lib/sl"
	"github.com/estudarpro/estudar/internal/lib/session"
	"github.com/estudarpro/estudar/internal/models"
	authservice "github.com/estudarpro/estudar/internal/services/auth"
)

type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type Service interface {
	AdminLogin(ctx context.Context, email, password string) (*models.User, string, error)
}

type Handler struct {
	log          *slog.Logger
	service      Service
	validate     *validator.Validate
	ttl          time.Duration
	secureCookie bool
}

func New(log *slog.Logger, service Service, ttl time.Duration, secureCookie bool) *Handler {
	return &Handler{
		log:          log,
		service:      service,
		validate:     validator.New(),
		ttl:          ttl,
		secureCookie: secureCookie,
	}
}

// ServeHTTP godoc
// @Summary Вход администратора
// @Description Проверяет email и пароль администратора и выставляет cookie admin_session_token на 24 часа.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные администратора"
// @Success 200 {object} response.Response "Успешная авторизация"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/admin/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.adminlogin"

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

	user, token, err := h.service.AdminLogin(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, authservice.ErrInvalidCredentials):
		log.Warn("admin login rejected")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid credentials"))
		return
	case err != nil:
		log.Error("admin login failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	session.SetCookie(w, session.AdminCookie, token, h.ttl, h.secureCookie)
	log.Info("admin session opened", slog.String("user_id", user.ID))
	render.JSON(w, r, response.Session(user))
}
