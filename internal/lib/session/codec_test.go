package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() Record {
	return Record{
		UserID:             "4f5c2a7e-3a1b-4d3e-9a57-1d2c3b4a5e6f",
		Phone:              "+5511999998888",
		Name:               "Ana",
		Role:               "student",
		SubscriptionStatus: "trial",
		TrialEndDate:       time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC),
		Kind:               KindUser,
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := NewCodec("test_secret_key_1234567890")
	fixed := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	codec.now = func() time.Time { return fixed }

	rec := testRecord()
	token, err := codec.Encode(rec)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	got, err := codec.Decode(token)
	require.NoError(t, err)

	assert.Equal(t, rec.UserID, got.UserID)
	assert.Equal(t, rec.Phone, got.Phone)
	assert.Equal(t, rec.Name, got.Name)
	assert.Equal(t, rec.Role, got.Role)
	assert.Equal(t, rec.SubscriptionStatus, got.SubscriptionStatus)
	assert.Equal(t, KindUser, got.Kind)
	assert.True(t, rec.TrialEndDate.Equal(got.TrialEndDate))
	assert.Equal(t, fixed.UnixMilli(), got.Timestamp)
	assert.True(t, fixed.Equal(got.IssueTime()))
}

func TestCodec_Decode_Invalid(t *testing.T) {
	codec := NewCodec("test_secret_key_1234567890")
	valid, err := codec.Encode(testRecord())
	require.NoError(t, err)

	other, err := NewCodec("different_secret").Encode(testRecord())
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"userId":    "u1",
		"timestamp": time.Now().UnixMilli(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	emptyUser, err := codec.Encode(Record{Role: "student"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage", token: "not-a-token"},
		{name: "base64 json without signature", token: "eyJ1c2VySWQiOiJ1MSJ9"},
		{name: "wrong secret", token: other},
		{name: "tampered", token: valid + "x"},
		{name: "alg none", token: noneToken},
		{name: "missing user id", token: emptyUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := codec.Decode(tt.token)
			assert.Nil(t, rec)
			assert.True(t, errors.Is(err, ErrMalformedToken))
		})
	}
}

func TestCodec_TamperedRoleRejected(t *testing.T) {
	codec := NewCodec("secret")
	token, err := codec.Encode(testRecord())
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId":    "4f5c2a7e-3a1b-4d3e-9a57-1d2c3b4a5e6f",
		"role":      "admin",
		"timestamp": time.Now().UnixMilli(),
	}).SignedString([]byte("guessed"))
	require.NoError(t, err)

	forgedParts := strings.Split(forged, ".")
	// чужой payload с оригинальной подписью
	_, err = codec.Decode(parts[0] + "." + forgedParts[1] + "." + parts[2])
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		issued  time.Time
		maxAge  time.Duration
		expired bool
	}{
		{name: "fresh user token", issued: now.Add(-time.Hour), maxAge: UserMaxAge, expired: false},
		{name: "user token at max age", issued: now.Add(-UserMaxAge), maxAge: UserMaxAge, expired: false},
		{name: "user token past max age", issued: now.Add(-UserMaxAge - time.Millisecond), maxAge: UserMaxAge, expired: true},
		{name: "admin token one day old", issued: now.Add(-AdminMaxAge - time.Second), maxAge: AdminMaxAge, expired: true},
		{name: "admin token fresh", issued: now.Add(-23 * time.Hour), maxAge: AdminMaxAge, expired: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Record{UserID: "u1", Timestamp: tt.issued.UnixMilli()}
			assert.Equal(t, tt.expired, IsExpired(rec, tt.maxAge, now))
		})
	}
}

func TestCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetCookie(rec, UserCookie, "tok", UserMaxAge, true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, UserCookie, c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, int(UserMaxAge.Seconds()), c.MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	assert.Equal(t, "tok", FromRequest(req, UserCookie))
	assert.Equal(t, "", FromRequest(req, AdminCookie))

	rec = httptest.NewRecorder()
	ClearCookie(rec, AdminCookie, false)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, AdminCookie, cleared[0].Name)
	assert.True(t, cleared[0].MaxAge < 0)
}

func TestCodec_Authenticate(t *testing.T) {
	issued := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	codec := NewCodec("test_secret_key_1234567890").WithClock(func() time.Time { return issued })

	admin := testRecord()
	admin.Role = "admin"
	admin.Kind = KindAdmin
	token, err := codec.Encode(admin)
	require.NoError(t, err)

	rec, err := codec.WithClock(func() time.Time { return issued.Add(23 * time.Hour) }).Authenticate(token, KindAdmin, AdminMaxAge)
	require.NoError(t, err)
	assert.Equal(t, "Ana", rec.Name)

	_, err = codec.WithClock(func() time.Time { return issued.Add(25 * time.Hour) }).Authenticate(token, KindAdmin, AdminMaxAge)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = codec.Authenticate("garbage", KindUser, UserMaxAge)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestCodec_AuthenticateKind(t *testing.T) {
	codec := NewCodec("test_secret_key_1234567890")

	// администратор, вошедший по коду, получает пользовательскую сессию
	otpAdmin := testRecord()
	otpAdmin.Role = "admin"
	otpToken, err := codec.Encode(otpAdmin)
	require.NoError(t, err)

	passwordAdmin := otpAdmin
	passwordAdmin.Kind = KindAdmin
	adminToken, err := codec.Encode(passwordAdmin)
	require.NoError(t, err)

	legacy := otpAdmin
	legacy.Kind = ""
	legacyToken, err := codec.Encode(legacy)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		kind    string
		wantErr error
	}{
		{name: "user token as user", token: otpToken, kind: KindUser},
		{name: "user token of admin role as admin", token: otpToken, kind: KindAdmin, wantErr: ErrWrongKind},
		{name: "admin token as admin", token: adminToken, kind: KindAdmin},
		{name: "admin token as user", token: adminToken, kind: KindUser, wantErr: ErrWrongKind},
		{name: "token without kind", token: legacyToken, kind: KindUser, wantErr: ErrWrongKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Authenticate(tt.token, tt.kind, UserMaxAge)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	assert.Equal(t, KindAdmin, KindForCookie(AdminCookie))
	assert.Equal(t, KindUser, KindForCookie(UserCookie))
}
