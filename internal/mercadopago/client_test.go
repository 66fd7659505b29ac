package mercadopago

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePreference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		var req PreferenceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "u1:1:x", req.ExternalReference)
		require.Len(t, req.Items, 1)
		assert.Equal(t, 29.9, req.Items[0].UnitPrice)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Preference{ID: "pref-1", InitPoint: "https://mp/checkout"})
	}))
	defer srv.Close()

	c := NewClient("token", srv.URL)
	pref, err := c.CreatePreference(context.Background(), PreferenceRequest{
		Items:             []Item{{ID: "1", Title: "Mensal", Quantity: 1, CurrencyID: "BRL", UnitPrice: 29.9}},
		ExternalReference: "u1:1:x",
	})
	require.NoError(t, err)
	assert.Equal(t, "pref-1", pref.ID)
	assert.Equal(t, "https://mp/checkout", pref.InitPoint)
}

func TestGetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/42" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(Payment{ID: 42, Status: "approved", ExternalReference: "ref"})
	}))
	defer srv.Close()

	c := NewClient("token", srv.URL)
	p, err := c.GetPayment(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "approved", p.Status)
	assert.Equal(t, "ref", p.ExternalReference)

	_, err = c.GetPayment(context.Background(), "43")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestNotConfigured(t *testing.T) {
	c := NewClient("", "http://unused")
	_, err := c.CreatePreference(context.Background(), PreferenceRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.GetPayment(context.Background(), "1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestVerifySignature(t *testing.T) {
	const secret = "whsec"
	valid := Sign(secret, "req-1", "123", "1700000000")

	tests := []struct {
		name      string
		signature string
		requestID string
		dataID    string
		wantErr   bool
	}{
		{name: "valid", signature: valid, requestID: "req-1", dataID: "123"},
		{name: "valid with spaces", signature: "ts=1700000000, v1=" + valid[len("ts=1700000000,v1="):], requestID: "req-1", dataID: "123"},
		{name: "other data id", signature: valid, requestID: "req-1", dataID: "124", wantErr: true},
		{name: "other request id", signature: valid, requestID: "req-2", dataID: "123", wantErr: true},
		{name: "missing v1", signature: "ts=1700000000", requestID: "req-1", dataID: "123", wantErr: true},
		{name: "not hex", signature: "ts=1,v1=zz", requestID: "req-1", dataID: "123", wantErr: true},
		{name: "empty", signature: "", requestID: "req-1", dataID: "123", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(secret, tt.signature, tt.requestID, tt.dataID)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSignature)
				return
			}
			assert.NoError(t, err)
		})
	}
}
