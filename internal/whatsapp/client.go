// Package whatsapp отправляет текстовые сообщения через HTTP-шлюз WhatsApp.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrNotConfigured шлюз не настроен, сообщения не отправляются.
	ErrNotConfigured = errors.New("whatsapp gateway not configured")
	// ErrRejected шлюз отклонил сообщение (4xx), повтор не поможет.
	ErrRejected = errors.New("whatsapp gateway rejected message")
)

const maxRetries = 3

// Client клиент шлюза.
type Client struct {
	apiURL     string
	token      string
	instance   string
	httpClient *http.Client
	backoff    func() backoff.BackOff
}

// NewClient создаёт клиент. Без URL или токена клиент отвечает ErrNotConfigured на каждый вызов.
func NewClient(apiURL, token, instance string) *Client {
	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		token:      token,
		instance:   instance,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			return b
		},
	}
}

// Configured сообщает, заданы ли параметры шлюза.
func (c *Client) Configured() bool {
	return c.apiURL != "" && c.token != ""
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// Send отправляет текст на номер phone. Ошибки 5xx и сетевые ошибки повторяются
// с экспоненциальной задержкой, ответы 4xx считаются окончательными.
func (c *Client) Send(ctx context.Context, phone, text string) error {
	const op = "whatsapp.Send"
	if !c.Configured() {
		return fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	body, err := json.Marshal(sendTextRequest{Number: strings.TrimPrefix(phone, "+"), Text: text})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	url := c.apiURL + "/message/sendText"
	if c.instance != "" {
		url += "/" + c.instance
	}

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("apikey", c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode >= 500:
			return errors.New("unexpected status: " + resp.Status)
		case resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrRejected, resp.Status))
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.backoff(), maxRetries), ctx)
	if err := backoff.Retry(attempt, b); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
