// Package lawsearch обрабатывает поиск по текстам законов и юриспруденции.
package lawsearch

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/estudarpro/estudar/internal/http/response"
	"github.com/estudarpro/estudar/internal/models"
)

// Request тело POST-запроса поиска.
type Request struct {
	Query string `json:"query" validate:"max=500"`
	Type  string `json:"type" validate:"omitempty,oneof=all article jurisprudence"`
	Limit int    `json:"limit" validate:"gte=0"`
}

type Service interface {
	Search(ctx context.Context, query, typ string, limit int) *models.SearchResponse
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
// @Summary Поиск по законам
// @Description Ищет по статьям законов и фрагментам юриспруденции. Ошибки хранилища не приводят к 5xx: возвращается пустой результат с сообщением.
// @Tags Search
// @Accept  json
// @Produce  json
// @Param q query string false "Строка поиска (GET)"
// @Param type query string false "all, article или jurisprudence"
// @Param limit query int false "Количество результатов, по умолчанию 10, максимум 50"
// @Param request body Request false "Параметры поиска (POST)"
// @Success 200 {object} models.SearchResponse "Результаты поиска без обёртки status/data"
// @Failure 400 {object} response.ErrorResponse "Пустой запрос"
// @Router /search [get]
// @Router /search [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.search.lawsearch"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if r.Method == http.MethodPost {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid request body"))
			return
		}
	} else {
		q := r.URL.Query()
		req.Query = q.Get("q")
		req.Type = q.Get("type")
		// нечисловой limit трактуется как значение по умолчанию
		req.Limit, _ = strconv.Atoi(q.Get("limit"))
		if req.Limit < 0 {
			req.Limit = 0
		}
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("query is required"))
		return
	}

	res := h.service.Search(r.Context(), req.Query, req.Type, req.Limit)
	log.Debug("search served", slog.Int("total", res.Total))
	// Ответ поиска отдаётся без конверта: клиент читает results и total напрямую
	render.JSON(w, r, res)
}
