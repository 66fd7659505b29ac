package register

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/estudarpro/estudar/internal/models"
	authservice "github.com/estudarpro/estudar/internal/services/auth"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Register(ctx context.Context, name, email, phone string) (*authservice.Registration, error) {
	args := m.Called(ctx, name, email, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authservice.Registration), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestRegisterHandler_ServeHTTP(t *testing.T) {
	created := &authservice.Registration{
		User: &models.User{
			ID:                 "user-1",
			Name:               "Ana",
			Phone:              "+5511999998888",
			SubscriptionStatus: models.StatusTrial,
			TrialEndDate:       time.Now().Add(72 * time.Hour),
		},
		VerificationID: "challenge-1",
		CodeSent:       true,
	}
	notIssued := &authservice.Registration{User: created.User}

	tests := []struct {
		name           string
		body           string
		mockResult     *authservice.Registration
		mockErr        error
		callService    bool
		wantStatusCode int
		wantError      string
		wantID         string
		wantSent       bool
	}{
		{
			name:           "valid registration",
			body:           `{"name":"Ana","email":"ana@x.com","phone":"+5511999998888"}`,
			mockResult:     created,
			callService:    true,
			wantStatusCode: http.StatusOK,
			wantID:         "challenge-1",
			wantSent:       true,
		},
		{
			name:           "user created but code not issued",
			body:           `{"name":"Ana","phone":"+5511999998888"}`,
			mockResult:     notIssued,
			callService:    true,
			wantStatusCode: http.StatusOK,
			wantID:         "",
			wantSent:       false,
		},
		{
			name:           "invalid json body",
			body:           "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
		},
		{
			name:           "validation error - missing phone",
			body:           `{"name":"Ana"}`,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "field Phone is a required field",
		},
		{
			name:           "validation error - bad email",
			body:           `{"name":"Ana","email":"nope","phone":"+5511999998888"}`,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "field Email must be a valid email",
		},
		{
			name:           "duplicate",
			body:           `{"name":"Ana","email":"ana@x.com","phone":"+5511999998888"}`,
			mockErr:        authservice.ErrUserExists,
			callService:    true,
			wantStatusCode: http.StatusConflict,
			wantError:      "phone or email already registered",
		},
		{
			name:           "invalid phone",
			body:           `{"name":"Ana","phone":"12345678"}`,
			mockErr:        authservice.ErrInvalidPhone,
			callService:    true,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid phone number",
		},
		{
			name:           "storage error",
			body:           `{"name":"Ana","phone":"+5511999998888"}`,
			mockErr:        errors.New("db down"),
			callService:    true,
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "failed to register user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.callService {
				svc.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(tt.mockResult, tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			if tt.wantError != "" {
				assert.Equal(t, "Error", resp["status"])
				assert.Contains(t, resp["error"], tt.wantError)
			} else {
				assert.Equal(t, "OK", resp["status"])
				data := resp["data"].(map[string]any)
				assert.Equal(t, tt.wantID, data["verification_id"])
				assert.Equal(t, tt.wantSent, data["code_sent"])
				user := data["user"].(map[string]any)
				assert.Equal(t, "trial", user["subscription_status"])
			}
			svc.AssertExpectations(t)
		})
	}
}
