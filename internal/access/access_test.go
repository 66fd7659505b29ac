package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/estudarpro/estudar/internal/lib/session"
	"github.com/estudarpro/estudar/internal/models"
	"github.com/estudarpro/estudar/internal/storage"
)

type UserStoreMock struct {
	mock.Mock
}

func (m *UserStoreMock) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func testPolicy() Policy {
	return Policy{
		Bypass:         []string{"/api/", "/_next/", "/static/", "/favicon.ico"},
		Public:         []string{"/", "/login", "/register", "/payment", "/admin/login"},
		Admin:          []string{"/admin"},
		Premium:        []string{"/flashcards", "/quiz", "/search"},
		EntryPath:      "/login",
		AdminEntryPath: "/admin/login",
		PaymentPath:    "/payment",
	}
}

func TestPolicy_Classify(t *testing.T) {
	p := testPolicy()

	tests := []struct {
		path string
		want Class
	}{
		{"/api/search", ClassBypass},
		{"/_next/static/chunk.js", ClassBypass},
		{"/favicon.ico", ClassBypass},
		{"/", ClassPublic},
		{"/login", ClassPublic},
		{"/login/", ClassPublic},
		{"/loginx", ClassProtected},
		{"/admin/login", ClassPublic},
		{"/admin", ClassAdmin},
		{"/admin/plans", ClassAdmin},
		{"/administrator", ClassProtected},
		{"/flashcards", ClassPremium},
		{"/flashcards/deck/1", ClassPremium},
		{"/dashboard", ClassProtected},
		{"/profile/settings", ClassProtected},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Classify(tt.path), "got %s", p.Classify(tt.path))
		})
	}
}

func TestCan(t *testing.T) {
	assert.True(t, Can(models.RoleAdmin, CapAdmin))
	assert.True(t, Can(models.RoleAdmin, CapStudy))
	assert.False(t, Can(models.RoleStudent, CapAdmin))
	assert.True(t, Can(models.RoleStudent, CapStudy))
	assert.True(t, Can(models.RoleStudent, CapPurchase))
	assert.False(t, Can("", CapStudy))
	assert.False(t, Can("root", CapAdmin))
}

func TestIdentity_Headers(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderUserRole, "admin")
	h.Set("Accept", "text/html")

	StripHeaders(h)
	assert.Empty(t, h.Get(HeaderUserRole))
	assert.Equal(t, "text/html", h.Get("Accept"))

	id := &Identity{UserID: "u1", Role: "student", Phone: "+55", SubscriptionStatus: "trial"}
	id.Apply(h)
	assert.Equal(t, "u1", h.Get(HeaderUserID))
	assert.Equal(t, "trial", h.Get(HeaderSubscriptionStatus))

	ctx := WithIdentity(context.Background(), id)
	got, ok := IdentityFrom(ctx)
	require.True(t, ok)
	assert.Same(t, id, got)

	_, ok = IdentityFrom(context.Background())
	assert.False(t, ok)
}

type gateFixture struct {
	gate  *Gate
	codec *session.Codec
	users *UserStoreMock
	now   time.Time
}

func newGateFixture() *gateFixture {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	codec := session.NewCodec("gate-secret").WithClock(func() time.Time { return now })
	users := new(UserStoreMock)
	g := NewGate(testPolicy(), codec, users, session.UserMaxAge, session.AdminMaxAge)
	g.now = func() time.Time { return now }
	return &gateFixture{gate: g, codec: codec, users: users, now: now}
}

func (f *gateFixture) request(t *testing.T, path, cookie string, rec *session.Record) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, path, nil)
	if rec != nil {
		token, err := f.codec.Encode(*rec)
		require.NoError(t, err)
		r.AddCookie(&http.Cookie{Name: cookie, Value: token})
	}
	return r
}

func studentRecord() *session.Record {
	return &session.Record{UserID: "u1", Phone: "+5511999998888", Name: "Ana", Role: models.RoleStudent, SubscriptionStatus: models.StatusTrial, Kind: session.KindUser}
}

func TestGate_PublicAndBypass(t *testing.T) {
	f := newGateFixture()

	for _, path := range []string{"/", "/login", "/api/auth/me", "/admin/login"} {
		d := f.gate.Evaluate(f.request(t, path, "", nil))
		assert.Equal(t, Allow, d.Outcome, path)
		assert.Nil(t, d.Identity, path)
	}
	f.users.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
}

func TestGate_ProtectedRequiresSession(t *testing.T) {
	f := newGateFixture()

	d := f.gate.Evaluate(f.request(t, "/dashboard", "", nil))
	assert.Equal(t, Redirect, d.Outcome)
	assert.Equal(t, "/login?redirect=%2Fdashboard", d.Location)

	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.AddCookie(&http.Cookie{Name: session.UserCookie, Value: "eyJmb3JnZWQiOnRydWV9"})
	d = f.gate.Evaluate(r)
	assert.Equal(t, Redirect, d.Outcome, "unsigned token is not a session")

	d = f.gate.Evaluate(f.request(t, "/dashboard", session.UserCookie, studentRecord()))
	assert.Equal(t, Allow, d.Outcome)
	require.NotNil(t, d.Identity)
	assert.Equal(t, "u1", d.Identity.UserID)
}

func TestGate_ExpiredUserToken(t *testing.T) {
	f := newGateFixture()
	r := f.request(t, "/dashboard", session.UserCookie, studentRecord())

	f.gate.now = func() time.Time { return f.now.Add(session.UserMaxAge + time.Millisecond) }
	d := f.gate.Evaluate(r)
	assert.Equal(t, Redirect, d.Outcome)
}

func TestGate_PremiumTrialExpired(t *testing.T) {
	f := newGateFixture()
	f.users.On("GetUser", mock.Anything, "u1").Return(&models.User{
		ID:                 "u1",
		Role:               models.RoleStudent,
		SubscriptionStatus: models.StatusTrial,
		TrialEndDate:       f.now.Add(-time.Hour),
	}, nil)

	d := f.gate.Evaluate(f.request(t, "/flashcards", session.UserCookie, studentRecord()))
	assert.Equal(t, Redirect, d.Outcome)
	assert.Equal(t, "/payment", d.Location)

	d = f.gate.Evaluate(f.request(t, "/dashboard", session.UserCookie, studentRecord()))
	assert.Equal(t, Allow, d.Outcome, "non-premium page stays reachable")
}

func TestGate_PremiumAllowed(t *testing.T) {
	tests := []struct {
		name   string
		status string
		end    time.Duration
	}{
		{name: "trial running", status: models.StatusTrial, end: time.Hour},
		{name: "paid after trial", status: models.StatusActive, end: -time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGateFixture()
			f.users.On("GetUser", mock.Anything, "u1").Return(&models.User{
				ID: "u1", Role: models.RoleStudent, SubscriptionStatus: tt.status, TrialEndDate: f.now.Add(tt.end),
			}, nil)

			d := f.gate.Evaluate(f.request(t, "/quiz/1", session.UserCookie, studentRecord()))
			assert.Equal(t, Allow, d.Outcome)
			require.NotNil(t, d.Identity)
			assert.Equal(t, tt.status, d.Identity.SubscriptionStatus)
		})
	}
}

func TestGate_PremiumStoreError(t *testing.T) {
	f := newGateFixture()
	f.users.On("GetUser", mock.Anything, "u1").Return(nil, errors.New("connection refused"))

	d := f.gate.Evaluate(f.request(t, "/flashcards", session.UserCookie, studentRecord()))
	assert.Equal(t, Error, d.Outcome)
	assert.Error(t, d.Err)
	require.NotNil(t, d.Identity)
	assert.Equal(t, "u1", d.Identity.UserID)
}

func TestGate_PremiumUnknownUser(t *testing.T) {
	f := newGateFixture()
	f.users.On("GetUser", mock.Anything, "u1").Return(nil, fmt.Errorf("storage.GetUser: %w", storage.ErrNotFound))

	d := f.gate.Evaluate(f.request(t, "/flashcards", session.UserCookie, studentRecord()))
	assert.Equal(t, Redirect, d.Outcome)
	assert.Contains(t, d.Location, "/login")
}

func TestGate_Admin(t *testing.T) {
	f := newGateFixture()
	admin := &session.Record{UserID: "a1", Name: "Root", Role: models.RoleAdmin, Kind: session.KindAdmin}

	d := f.gate.Evaluate(f.request(t, "/admin/plans", session.AdminCookie, admin))
	assert.Equal(t, Allow, d.Outcome)
	assert.Equal(t, models.RoleAdmin, d.Identity.Role)

	d = f.gate.Evaluate(f.request(t, "/admin/plans", session.AdminCookie, studentRecord()))
	assert.Equal(t, Redirect, d.Outcome, "student token in admin cookie is rejected")
	assert.Contains(t, d.Location, "/admin/login")

	d = f.gate.Evaluate(f.request(t, "/admin", session.UserCookie, admin))
	assert.Equal(t, Redirect, d.Outcome, "admin page needs the admin cookie")

	r := f.request(t, "/admin", session.AdminCookie, admin)
	f.gate.now = func() time.Time { return f.now.Add(session.AdminMaxAge + time.Second) }
	d = f.gate.Evaluate(r)
	assert.Equal(t, Redirect, d.Outcome, "admin session lasts one day")
}

func TestGate_SessionKindMustMatchCookie(t *testing.T) {
	f := newGateFixture()

	// роль admin, но токен выпущен входом по коду
	otpAdmin := &session.Record{UserID: "a1", Name: "Root", Role: models.RoleAdmin, Kind: session.KindUser}
	d := f.gate.Evaluate(f.request(t, "/admin/dashboard", session.AdminCookie, otpAdmin))
	assert.Equal(t, Redirect, d.Outcome)
	assert.Contains(t, d.Location, "/admin/login")

	passwordAdmin := &session.Record{UserID: "a1", Name: "Root", Role: models.RoleAdmin, Kind: session.KindAdmin}
	d = f.gate.Evaluate(f.request(t, "/dashboard", session.UserCookie, passwordAdmin))
	assert.Equal(t, Redirect, d.Outcome, "admin token does not open a user session")
	assert.Contains(t, d.Location, "/login")

	noKind := &session.Record{UserID: "u1", Role: models.RoleStudent}
	d = f.gate.Evaluate(f.request(t, "/dashboard", session.UserCookie, noKind))
	assert.Equal(t, Redirect, d.Outcome)
}
