package models

import "time"

// LawDocument статья или раздел закона.
type LawDocument struct {
	ID        int64
	Title     string
	Article   string
	Content   string
	Hierarchy string
	SortOrder int
	CreatedAt time.Time
}

// LawChunk фрагмент текста закона, используется полнотекстовым поиском.
type LawChunk struct {
	ID       int64
	LawID    *int64
	LawTitle string // заголовок родительского закона, если он найден
	Content  string
	Metadata map[string]any
}
