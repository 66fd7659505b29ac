package models

// Типы результатов поиска.
const (
	ResultArticle       = "article"
	ResultJurisprudence = "jurisprudence"
)

// SearchResult результат поиска, не хранится.
type SearchResult struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Type       string         `json:"type"`
	Source     string         `json:"source"`
	Similarity float64        `json:"similarity"`
	Highlights []string       `json:"highlights"`
	Metadata   map[string]any `json:"metadata"`
}

// SearchResponse ответ агрегатора поиска.
type SearchResponse struct {
	Results    []SearchResult `json:"results"`
	Total      int            `json:"total"`
	LawCount   int            `json:"law_count"`
	ChunkCount int            `json:"chunk_count"`
	Query      string         `json:"query"`
	Type       string         `json:"type"`
	Message    string         `json:"message,omitempty"`
}
