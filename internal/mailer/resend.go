package mailer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

const resendBaseURL = "https://api.resend.com"

// ErrMissingAPIKey is returned by Ready when no Resend key is configured.
var ErrMissingAPIKey = errors.New("RESEND_API_KEY is not set")

// Option configures the Resend client.
type Option func(*Resend)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(r *Resend) {
		r.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Resend) {
		r.http = hc
	}
}

// Resend sends mail through the Resend HTTP API.
type Resend struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewResend creates a Resend client.
func NewResend(apiKey string, opts ...Option) *Resend {
	r := &Resend{
		apiKey:  apiKey,
		baseURL: resendBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resend) Name() string { return "resend" }

func (r *Resend) Ready() error {
	if r.apiKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	CC      []string `json:"cc,omitempty"`
	BCC     []string `json:"bcc,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

func (r *Resend) Send(ctx context.Context, msg *Message) (string, error) {
	payload, err := json.Marshal(resendEmail{
		From:    msg.From,
		To:      msg.To,
		CC:      msg.CC,
		BCC:     msg.BCC,
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", eris.Wrap(err, "resend: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return "", eris.Wrap(err, "resend: create request")
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if msg.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", msg.IdempotencyKey)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "resend: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", eris.Wrap(err, "resend: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &DeliveryError{Provider: r.Name(), StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out resendResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return "", eris.Wrap(err, "resend: decode response")
		}
	}
	return out.ID, nil
}
