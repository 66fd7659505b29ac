package settings

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/estudarpro/estudar/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ListSettings(ctx context.Context) ([]*models.Setting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Setting), args.Error(1)
}

func (m *MockService) SetSetting(ctx context.Context, key, value string) (*models.Setting, error) {
	args := m.Called(ctx, key, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Setting), args.Error(1)
}

func TestSettings(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("список настроек", func(t *testing.T) {
		svc := new(MockService)
		svc.On("ListSettings", mock.Anything).Return([]*models.Setting{{Key: "support_phone", Value: "+5511"}}, nil)

		rec := httptest.NewRecorder()
		New(log, svc).List(rec, httptest.NewRequest(http.MethodGet, "/api/admin/settings", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "support_phone")
	})

	t.Run("ошибка хранилища", func(t *testing.T) {
		svc := new(MockService)
		svc.On("ListSettings", mock.Anything).Return(nil, errors.New("db down"))

		rec := httptest.NewRecorder()
		New(log, svc).List(rec, httptest.NewRequest(http.MethodGet, "/api/admin/settings", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("сохранение", func(t *testing.T) {
		svc := new(MockService)
		svc.On("SetSetting", mock.Anything, "trial_days", "5").Return(&models.Setting{Key: "trial_days", Value: "5"}, nil).Once()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/admin/settings", bytes.NewBufferString(`{"key":"trial_days","value":"5"}`))
		New(log, svc).Set(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("без ключа", func(t *testing.T) {
		svc := new(MockService)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/admin/settings", bytes.NewBufferString(`{"value":"5"}`))
		New(log, svc).Set(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "SetSetting", mock.Anything, mock.Anything, mock.Anything)
	})
}
