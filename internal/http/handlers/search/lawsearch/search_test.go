package lawsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/estudarpro/estudar/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Search(ctx context.Context, query, typ string, limit int) *models.SearchResponse {
	args := m.Called(ctx, query, typ, limit)
	return args.Get(0).(*models.SearchResponse)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestSearchHandler_ServeHTTP(t *testing.T) {
	found := &models.SearchResponse{
		Results: []models.SearchResult{{ID: "law-1", Title: "CF - Art. 5", Type: models.ResultArticle, Similarity: 0.9}},
		Total:   1,
		Query:   "direitos",
		Type:    "all",
	}
	degraded := &models.SearchResponse{
		Results: []models.SearchResult{},
		Query:   "direitos",
		Type:    "all",
		Message: "Busca temporariamente indisponível",
	}

	tests := []struct {
		name           string
		method         string
		target         string
		body           string
		wantQuery      string
		wantType       string
		wantLimit      int
		mockResult     *models.SearchResponse
		wantStatusCode int
		wantTotal      float64
	}{
		{
			name:           "get with params",
			method:         http.MethodGet,
			target:         "/api/search?q=direitos&type=article&limit=5",
			wantQuery:      "direitos",
			wantType:       "article",
			wantLimit:      5,
			mockResult:     found,
			wantStatusCode: http.StatusOK,
			wantTotal:      1,
		},
		{
			name:           "get with bad limit",
			method:         http.MethodGet,
			target:         "/api/search?q=direitos&limit=abc",
			wantQuery:      "direitos",
			mockResult:     found,
			wantStatusCode: http.StatusOK,
			wantTotal:      1,
		},
		{
			name:           "post body",
			method:         http.MethodPost,
			target:         "/api/search",
			body:           `{"query":"direitos","limit":20}`,
			wantQuery:      "direitos",
			wantLimit:      20,
			mockResult:     found,
			wantStatusCode: http.StatusOK,
			wantTotal:      1,
		},
		{
			name:           "store failure stays 200",
			method:         http.MethodGet,
			target:         "/api/search?q=direitos",
			wantQuery:      "direitos",
			mockResult:     degraded,
			wantStatusCode: http.StatusOK,
			wantTotal:      0,
		},
		{
			name:           "empty query",
			method:         http.MethodGet,
			target:         "/api/search?q=%20%20",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "unknown type",
			method:         http.MethodPost,
			target:         "/api/search",
			body:           `{"query":"direitos","type":"doctrine"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.mockResult != nil {
				svc.On("Search", mock.Anything, tt.wantQuery, tt.wantType, tt.wantLimit).Return(tt.mockResult).Once()
			}

			req := httptest.NewRequest(tt.method, tt.target, bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			if tt.wantStatusCode == http.StatusOK {
				assert.Equal(t, tt.wantTotal, resp["total"])
				assert.Equal(t, tt.mockResult.Query, resp["query"])
				assert.Equal(t, tt.mockResult.Type, resp["type"])
				assert.IsType(t, []any{}, resp["results"])
				assert.NotContains(t, resp, "data")
				assert.NotContains(t, resp, "status")
			} else {
				assert.Equal(t, "Error", resp["status"])
			}
			svc.AssertExpectations(t)
		})
	}
}
