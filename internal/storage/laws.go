package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/estudarpro/estudar/internal/models"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern строит шаблон ILIKE для поиска подстроки, экранируя
// символы шаблона во вводе пользователя.
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

// SearchLaws ищет подстроку в заголовке, номере статьи или тексте закона.
func (s *Storage) SearchLaws(ctx context.Context, q string, limit int) ([]models.LawDocument, error) {
	const op = "storage.SearchLaws"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT id, title, article, content, hierarchy, sort_order, created_at
			  FROM law_documents
			  WHERE title ILIKE $1 ESCAPE '\'
			     OR article ILIKE $1 ESCAPE '\'
			     OR content ILIKE $1 ESCAPE '\'
			  ORDER BY sort_order, id
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, containsPattern(q), limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.LawDocument
	for rows.Next() {
		var d models.LawDocument
		if err := rows.Scan(&d.ID, &d.Title, &d.Article, &d.Content, &d.Hierarchy, &d.SortOrder, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

const chunkSelect = `SELECT c.id, c.law_id, COALESCE(d.title, ''), c.content, c.metadata
			  FROM law_chunks c
			  LEFT JOIN law_documents d ON d.id = c.law_id `

// SearchChunksFullText ищет фрагменты полнотекстовым поиском по португальской морфологии.
func (s *Storage) SearchChunksFullText(ctx context.Context, q string, limit int) ([]models.LawChunk, error) {
	const op = "storage.SearchChunksFullText"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := chunkSelect + `
			  WHERE to_tsvector('portuguese', c.content) @@ plainto_tsquery('portuguese', $1)
			  ORDER BY ts_rank(to_tsvector('portuguese', c.content), plainto_tsquery('portuguese', $1)) DESC, c.id
			  LIMIT $2`
	result, err := s.queryChunks(ctx, query, q, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SearchChunksSubstring ищет подстроку в тексте фрагментов. Используется, когда
// полнотекстовый поиск ничего не нашёл, например для запросов вида "Art. 5º".
func (s *Storage) SearchChunksSubstring(ctx context.Context, q string, limit int) ([]models.LawChunk, error) {
	const op = "storage.SearchChunksSubstring"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := chunkSelect + `
			  WHERE c.content ILIKE $1 ESCAPE '\'
			  ORDER BY c.id
			  LIMIT $2`
	result, err := s.queryChunks(ctx, query, containsPattern(q), limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (s *Storage) queryChunks(ctx context.Context, query string, arg any, limit int) ([]models.LawChunk, error) {
	rows, err := s.DB.QueryContext(ctx, query, arg, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.LawChunk
	for rows.Next() {
		var (
			c     models.LawChunk
			lawID sql.NullInt64
			meta  []byte
		)
		if err := rows.Scan(&c.ID, &lawID, &c.LawTitle, &c.Content, &meta); err != nil {
			return nil, err
		}
		if lawID.Valid {
			c.LawID = &lawID.Int64
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &c.Metadata); err != nil {
				return nil, err
			}
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
