// Package verify проверяет одноразовый код и открывает пользовательскую сессию.
// Один обработчик обслуживает и подтверждение регистрации, и вход.
package verify

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
	authservice "github.com/estudarpro/estudar/internal/services/auth"
)

// Request телефон или идентификатор проверки и код.
type Request struct {
	VerificationID string `json:"verification_id" validate:"omitempty,uuid"`
	Phone          string `json:"phone" validate:"omitempty,min=8,max=20"`
	Code           string `json:"code" validate:"required,len=6,numeric"`
}

type Service interface {
	Verify(ctx context.Context, handle, phone, code string) (*authservice.Verification, error)
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
// @Summary Проверить код
// @Description Проверяет шестизначный код. При успехе выставляет cookie session_token.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Телефон или verification_id и код"
// @Success 200 {object} response.Response "Сессия открыта"
// @Failure 400 {object} response.ErrorResponse "Неверный или просроченный код"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/whatsapp/verify [post]
// @Router /auth/verify-registration [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.verify"

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
	if req.Phone == "" && req.VerificationID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("phone or verification_id is required"))
		return
	}

	res, err := h.service.Verify(r.Context(), req.VerificationID, req.Phone, req.Code)
	switch {
	case errors.Is(err, authservice.ErrInvalidOrExpiredCode), errors.Is(err, authservice.ErrInvalidCode):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid or expired code"))
		return
	case errors.Is(err, authservice.ErrInvalidPhone):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid phone number"))
		return
	case err != nil:
		log.Error("verification failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to verify code"))
		return
	}

	session.SetCookie(w, session.UserCookie, res.Token, h.ttl, h.secureCookie)
	log.Info("session opened", slog.String("user_id", res.User.ID))

	render.JSON(w, r, response.Session(res.User))
}
