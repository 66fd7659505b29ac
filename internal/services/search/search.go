// Package services объединяет поиск по статьям законов и по фрагментам текстов
// в единый список результатов.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/estudarpro/estudar/internal/lib/sl"
	"github.com/estudarpro/estudar/internal/metrics"
	"github.com/estudarpro/estudar/internal/models"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50

	// Оценки совпадения фиксированы для каждого источника.
	lawSimilarity   = 0.9
	chunkSimilarity = 0.8

	contentLimit   = 300
	contextRunes   = 50
	maxHighlights  = 3
	minWordRunes   = 3
	ellipsis       = "..."
	degradedNotice = "A busca está temporariamente indisponível. Tente novamente em instantes."
	emptyNotice    = "Informe um termo de busca."
)

// Типы фильтра результатов.
const (
	TypeAll           = "all"
	TypeArticle       = models.ResultArticle
	TypeJurisprudence = models.ResultJurisprudence
)

// Store источник текстов законов.
type Store interface {
	SearchLaws(ctx context.Context, q string, limit int) ([]models.LawDocument, error)
	SearchChunksFullText(ctx context.Context, q string, limit int) ([]models.LawChunk, error)
	SearchChunksSubstring(ctx context.Context, q string, limit int) ([]models.LawChunk, error)
}

// Cache кеш готовых ответов.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// SearchService агрегатор поиска.
type SearchService struct {
	store Store
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewSearchService создаёт агрегатор. ttl задаёт срок жизни ответа в кеше.
func NewSearchService(log *slog.Logger, store Store, cache Cache, ttl time.Duration) *SearchService {
	return &SearchService{
		store: store,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

// NormalizeLimit приводит лимит к диапазону [1, MaxLimit], 0 означает значение по умолчанию.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// NormalizeType возвращает TypeAll для пустого или неизвестного типа.
func NormalizeType(t string) string {
	switch t = strings.ToLower(strings.TrimSpace(t)); t {
	case TypeArticle, TypeJurisprudence:
		return t
	}
	return TypeAll
}

func cacheKey(q, typ string, limit int) string {
	return "search:" + typ + ":" + strconv.Itoa(limit) + ":" + strings.ToLower(q)
}

// Search ищет query в статьях и фрагментах. Статьи всегда идут раньше фрагментов.
// Ошибки хранилища не возвращаются: ответ будет пустым, с пояснением в Message.
func (s *SearchService) Search(ctx context.Context, query, typ string, limit int) *models.SearchResponse {
	const op = "services.search.Search"
	log := s.log.With(slog.String("op", op))

	q := strings.TrimSpace(query)
	typ = NormalizeType(typ)
	limit = NormalizeLimit(limit)

	resp := &models.SearchResponse{Results: []models.SearchResult{}, Query: q, Type: typ}
	if q == "" {
		resp.Message = emptyNotice
		return resp
	}

	key := cacheKey(q, typ, limit)
	var cached models.SearchResponse
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Warn("search cache read failed", sl.Err(err))
	}
	if found {
		metrics.SearchRequests.WithLabelValues("cached").Inc()
		return &cached
	}

	perTable := max(1, limit/2)

	laws, chunks, err := s.fetch(ctx, q, perTable)
	if err != nil {
		log.Error("search query failed", slog.String("query", q), sl.Err(err))
		metrics.SearchRequests.WithLabelValues("degraded").Inc()
		resp.Message = degradedNotice
		return resp
	}

	words := highlightWords(q)
	seen := make(map[string]struct{}, len(laws)+len(chunks))
	add := func(r models.SearchResult) {
		if _, dup := seen[r.ID]; dup {
			return
		}
		seen[r.ID] = struct{}{}
		if typ != TypeAll && r.Type != typ {
			return
		}
		resp.Results = append(resp.Results, r)
	}

	for _, law := range laws {
		add(fromLaw(law, words))
	}
	for _, chunk := range chunks {
		add(fromChunk(chunk, words))
	}
	resp.LawCount = len(laws)
	resp.ChunkCount = len(chunks)
	resp.Total = len(resp.Results)

	if resp.Total == 0 {
		metrics.SearchRequests.WithLabelValues("empty").Inc()
	} else {
		metrics.SearchRequests.WithLabelValues("hit").Inc()
	}

	if err := s.cache.Set(ctx, key, resp, s.ttl); err != nil {
		log.Warn("search cache write failed", sl.Err(err))
	}
	return resp
}

// fetch выполняет оба запроса. Если полнотекстовый поиск по фрагментам ничего
// не нашёл, используется поиск по подстроке: токенизатор плохо справляется
// со ссылками вида "Art. 5º".
func (s *SearchService) fetch(ctx context.Context, q string, perTable int) ([]models.LawDocument, []models.LawChunk, error) {
	laws, err := s.store.SearchLaws(ctx, q, perTable)
	if err != nil {
		return nil, nil, fmt.Errorf("laws: %w", err)
	}

	chunks, err := s.store.SearchChunksFullText(ctx, q, perTable)
	if err != nil {
		return nil, nil, fmt.Errorf("chunks full text: %w", err)
	}
	if len(chunks) == 0 {
		chunks, err = s.store.SearchChunksSubstring(ctx, q, perTable)
		if err != nil {
			return nil, nil, fmt.Errorf("chunks substring: %w", err)
		}
	}
	return laws, chunks, nil
}

func fromLaw(law models.LawDocument, words []string) models.SearchResult {
	title := law.Title
	if law.Article != "" {
		title = law.Title + " - " + law.Article
	}
	return models.SearchResult{
		ID:         "law-" + strconv.FormatInt(law.ID, 10),
		Title:      title,
		Content:    Truncate(law.Content, contentLimit),
		Type:       models.ResultArticle,
		Source:     law.Title,
		Similarity: lawSimilarity,
		Highlights: Highlights(law.Content, words),
		Metadata: map[string]any{
			"law_id":    law.ID,
			"article":   law.Article,
			"hierarchy": law.Hierarchy,
		},
	}
}

func fromChunk(chunk models.LawChunk, words []string) models.SearchResult {
	source := chunk.LawTitle
	if source == "" {
		source = "Jurisprudência"
	}
	meta := make(map[string]any, len(chunk.Metadata)+2)
	for k, v := range chunk.Metadata {
		meta[k] = v
	}
	meta["chunk_id"] = chunk.ID
	if chunk.LawID != nil {
		meta["law_id"] = *chunk.LawID
	}
	return models.SearchResult{
		ID:         "chunk-" + strconv.FormatInt(chunk.ID, 10),
		Title:      source,
		Content:    Truncate(chunk.Content, contentLimit),
		Type:       models.ResultJurisprudence,
		Source:     source,
		Similarity: chunkSimilarity,
		Highlights: Highlights(chunk.Content, words),
		Metadata:   meta,
	}
}

// Truncate обрезает текст до n символов и добавляет многоточие, если текст был длиннее.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + ellipsis
}

// highlightWords слова запроса длиннее двух символов, без повторов.
func highlightWords(q string) []string {
	var words []string
	seen := map[string]struct{}{}
	for _, w := range strings.Fields(q) {
		if utf8.RuneCountInString(w) < minWordRunes {
			continue
		}
		lw := strings.ToLower(w)
		if _, ok := seen[lw]; ok {
			continue
		}
		seen[lw] = struct{}{}
		words = append(words, lw)
	}
	return words
}

// Highlights для каждого слова находит первое вхождение без учёта регистра
// и возвращает его вместе с 50 символами контекста с каждой стороны.
// Возвращает не больше трёх фрагментов.
func Highlights(content string, words []string) []string {
	out := []string{}
	if len(words) == 0 || content == "" {
		return out
	}

	runes := []rune(content)
	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}

	for _, w := range words {
		if len(out) == maxHighlights {
			break
		}
		needle := []rune(strings.ToLower(w))
		idx := indexRunes(lower, needle)
		if idx < 0 {
			continue
		}
		start := max(0, idx-contextRunes)
		end := min(len(runes), idx+len(needle)+contextRunes)
		out = append(out, strings.TrimSpace(string(runes[start:end])))
	}
	return out
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j := range needle {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
