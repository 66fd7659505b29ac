// Package services отвечает на вопросы студентов с помощью языковой модели,
// подставляя в запрос найденные тексты законов.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/estudarpro/estudar/internal/llm"
	"github.com/estudarpro/estudar/internal/models"
)

const (
	contextResults = 5
	systemPrompt   = "Você é um assistente de estudos jurídicos brasileiros. " +
		"Responda em português, de forma objetiva, citando artigos de lei quando possível. " +
		"Se o contexto não for suficiente, diga isso claramente."
)

// ErrNotConfigured языковая модель не настроена.
var ErrNotConfigured = llm.ErrNotConfigured

// Completer языковая модель.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Searcher источник контекста для вопроса.
type Searcher interface {
	Search(ctx context.Context, query, typ string, limit int) *models.SearchResponse
}

// Answer ответ на вопрос.
type Answer struct {
	Answer  string                `json:"answer"`
	Sources []models.SearchResult `json:"sources"`
}

// AskService сервис вопросов.
type AskService struct {
	llm    Completer
	search Searcher
	log    *slog.Logger
}

// NewAskService создаёт новый экземпляр AskService.
func NewAskService(log *slog.Logger, completer Completer, searcher Searcher) *AskService {
	return &AskService{llm: completer, search: searcher, log: log}
}

// Ask отвечает на вопрос. Если контекст не передан, в его качестве используются
// лучшие результаты поиска по тексту вопроса.
func (s *AskService) Ask(ctx context.Context, question, extra string) (*Answer, error) {
	const op = "services.ask.Ask"

	var sources []models.SearchResult
	if strings.TrimSpace(extra) == "" {
		resp := s.search.Search(ctx, question, "", contextResults)
		sources = resp.Results
		extra = buildContext(sources)
	}

	messages := []llm.Message{{Role: "system", Content: systemPrompt}}
	if extra != "" {
		messages = append(messages, llm.Message{Role: "system", Content: "Contexto:\n" + extra})
	}
	messages = append(messages, llm.Message{Role: "user", Content: question})

	answer, err := s.llm.Complete(ctx, messages)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sources == nil {
		sources = []models.SearchResult{}
	}
	return &Answer{Answer: answer, Sources: sources}, nil
}

func buildContext(results []models.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, r.Title, r.Content)
	}
	return strings.TrimSpace(b.String())
}
