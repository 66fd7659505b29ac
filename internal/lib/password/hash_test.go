package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHashAndCompare(t *testing.T) {
	tests := []struct {
		name     string
		password string
		attempt  string
		wantErr  error
	}{
		{name: "matching password", password: "admin-pass-123", attempt: "admin-pass-123"},
		{name: "wrong password", password: "admin-pass-123", attempt: "admin-pass-124", wantErr: ErrMismatch},
		{name: "empty attempt", password: "admin-pass-123", attempt: "", wantErr: ErrMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := GetHash(tt.password)
			require.NoError(t, err)
			assert.NotEqual(t, tt.password, hash)

			err = CompareHash(hash, tt.attempt)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCompareHash_CorruptedHash(t *testing.T) {
	err := CompareHash("not-a-bcrypt-hash", "whatever")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMismatch)
}

func TestGetHash_Salted(t *testing.T) {
	h1, err := GetHash("same")
	require.NoError(t, err)
	h2, err := GetHash("same")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
