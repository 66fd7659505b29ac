// Package mercadopago клиент API Mercado Pago: предпочтения оплаты,
// получение платежей и проверка подписи уведомлений.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured не задан токен доступа.
var ErrNotConfigured = errors.New("mercadopago not configured")

// Client клиент API.
type Client struct {
	accessToken string
	apiURL      string
	httpClient  *http.Client
}

// NewClient создаёт клиент Mercado Pago.
func NewClient(accessToken, apiURL string) *Client {
	return &Client{
		accessToken: accessToken,
		apiURL:      strings.TrimRight(apiURL, "/"),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured сообщает, задан ли токен доступа.
func (c *Client) Configured() bool {
	return c.accessToken != ""
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.New("unexpected status: " + resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreatePreference создаёт предпочтение оплаты и возвращает ссылку на checkout.
func (c *Client) CreatePreference(ctx context.Context, pref PreferenceRequest) (*Preference, error) {
	const op = "mercadopago.CreatePreference"
	if !c.Configured() {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/checkout/preferences", pref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var out Preference
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

// GetPayment получает платёж по ID.
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	const op = "mercadopago.GetPayment"
	if !c.Configured() {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/v1/payments/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var out Payment
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}
