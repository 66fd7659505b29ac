package middlewarectx_test

import (
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

	"github.com/estudarpro/estudar/internal/access"
	"github.com/estudarpro/estudar/internal/http/middlewarectx"
	"github.com/estudarpro/estudar/internal/lib/ratelimit"
	"github.com/estudarpro/estudar/internal/lib/session"
)

type EvaluatorMock struct {
	mock.Mock
}

func (m *EvaluatorMock) Evaluate(r *http.Request) access.Decision {
	args := m.Called(r.URL.Path)
	return args.Get(0).(access.Decision)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestGate(t *testing.T) {
	identity := &access.Identity{UserID: "u1", Role: "student", Phone: "+5511999998888", SubscriptionStatus: "trial"}

	tests := []struct {
		name         string
		decision     access.Decision
		wantStatus   int
		wantLocation string
		wantCalled   bool
		wantUserID   string
	}{
		{
			name:       "allow public",
			decision:   access.Decision{Outcome: access.Allow, Class: access.ClassPublic},
			wantStatus: http.StatusOK,
			wantCalled: true,
		},
		{
			name:       "allow with identity",
			decision:   access.Decision{Outcome: access.Allow, Class: access.ClassProtected, Identity: identity},
			wantStatus: http.StatusOK,
			wantCalled: true,
			wantUserID: "u1",
		},
		{
			name:         "redirect",
			decision:     access.Decision{Outcome: access.Redirect, Class: access.ClassPremium, Location: "/payment"},
			wantStatus:   http.StatusFound,
			wantLocation: "/payment",
		},
		{
			name:       "store error fails open",
			decision:   access.Decision{Outcome: access.Error, Class: access.ClassPremium, Identity: identity, Err: errors.New("db down")},
			wantStatus: http.StatusOK,
			wantCalled: true,
			wantUserID: "u1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := new(EvaluatorMock)
			eval.On("Evaluate", "/flashcards").Return(tt.decision).Once()

			called := false
			var gotHeader string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				gotHeader = r.Header.Get(access.HeaderUserID)
				if tt.wantUserID != "" {
					id, ok := access.IdentityFrom(r.Context())
					require.True(t, ok)
					assert.Equal(t, tt.wantUserID, id.UserID)
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/flashcards", nil)
			req.Header.Set(access.HeaderUserID, "forged")
			req.Header.Set(access.HeaderUserRole, "admin")
			rec := httptest.NewRecorder()

			middlewarectx.Gate(newNoopLogger(), eval)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			if called {
				assert.Equal(t, tt.wantUserID, gotHeader)
				assert.NotEqual(t, "admin", req.Header.Get(access.HeaderUserRole))
			}
		})
	}
}

func TestRequireSession(t *testing.T) {
	codec := session.NewCodec("test_secret")
	studentToken, err := codec.Encode(session.Record{UserID: "u1", Role: "student", Kind: session.KindUser})
	require.NoError(t, err)
	adminToken, err := codec.Encode(session.Record{UserID: "a1", Role: "admin", Kind: session.KindAdmin})
	require.NoError(t, err)
	oldToken, err := codec.WithClock(func() time.Time { return time.Now().Add(-48 * time.Hour) }).
		Encode(session.Record{UserID: "a1", Role: "admin", Kind: session.KindAdmin})
	require.NoError(t, err)
	// администратор вошёл по коду из WhatsApp, пароль не проверялся
	otpAdminToken, err := codec.Encode(session.Record{UserID: "a1", Role: "admin", Kind: session.KindUser})
	require.NoError(t, err)

	tests := []struct {
		name       string
		admin      bool
		cookie     string
		token      string
		wantStatus int
	}{
		{name: "user ok", cookie: session.UserCookie, token: studentToken, wantStatus: http.StatusOK},
		{name: "user missing cookie", wantStatus: http.StatusUnauthorized},
		{name: "user garbage", cookie: session.UserCookie, token: "garbage", wantStatus: http.StatusUnauthorized},
		{name: "admin ok", admin: true, cookie: session.AdminCookie, token: adminToken, wantStatus: http.StatusOK},
		{name: "admin via user cookie", admin: true, cookie: session.UserCookie, token: adminToken, wantStatus: http.StatusUnauthorized},
		{name: "admin token as user session", cookie: session.UserCookie, token: adminToken, wantStatus: http.StatusUnauthorized},
		{name: "otp admin token in admin cookie", admin: true, cookie: session.AdminCookie, token: otpAdminToken, wantStatus: http.StatusUnauthorized},
		{name: "student with admin cookie", admin: true, cookie: session.AdminCookie, token: studentToken, wantStatus: http.StatusUnauthorized},
		{name: "expired admin", admin: true, cookie: session.AdminCookie, token: oldToken, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := middlewarectx.RequireUser(newNoopLogger(), codec, session.UserMaxAge)
			if tt.admin {
				mw = middlewarectx.RequireAdmin(newNoopLogger(), codec, session.AdminMaxAge)
			}
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, ok := access.IdentityFrom(r.Context())
				assert.True(t, ok)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: tt.cookie, Value: tt.token})
			}
			rec := httptest.NewRecorder()
			mw(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.New(0.001, 2)
	h := middlewarectx.RateLimitMiddleware(newNoopLogger(), limiter)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/whatsapp/send", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1111"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:2222"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:3333"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1111"))
}
