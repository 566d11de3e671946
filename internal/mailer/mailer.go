// Package mailer delivers composed emails through a transactional provider.
package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/Simplici0/homebuild/internal/config"
)

// Message is a provider-neutral outbound email.
type Message struct {
	From    string
	To      []string
	CC      []string
	BCC     []string
	ReplyTo string
	Subject string
	HTML    string
	Text    string

	// IdempotencyKey is forwarded to providers that deduplicate sends.
	IdempotencyKey string
}

// Sender delivers a Message and returns the provider's message id.
type Sender interface {
	Name() string
	// Ready reports a missing credential or setting without contacting the provider.
	Ready() error
	Send(ctx context.Context, msg *Message) (string, error)
}

// DeliveryError is a non-2xx answer from the provider.
type DeliveryError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: delivery failed with status %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
}

// New builds the Sender selected by cfg.Provider.
func New(ctx context.Context, cfg config.EmailConfig) (Sender, error) {
	switch cfg.Provider {
	case "", "resend":
		opts := []Option{}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		return NewResend(cfg.APIKey, opts...), nil
	case "ses":
		return NewSES(ctx, cfg.Region)
	default:
		return nil, eris.Errorf("mailer: unknown provider %q", cfg.Provider)
	}
}
