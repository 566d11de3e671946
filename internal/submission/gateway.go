// Package submission validates contact and estimator submissions, composes
// the notification and acknowledgment emails, and delivers them in two
// idempotent phases.
package submission

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/Simplici0/homebuild/internal/ledger"
	"github.com/Simplici0/homebuild/internal/mailer"
	"github.com/Simplici0/homebuild/internal/metrics"
	"github.com/Simplici0/homebuild/internal/pricing"
)

const (
	KindEstimate = "estimate"
	KindContact  = "contact"

	maxKeyLength = 200
)

// Ledger records which delivery phases of a submission have been sent.
type Ledger interface {
	Begin(ctx context.Context, key, kind string) (*ledger.Record, error)
	Get(ctx context.Context, key string) (*ledger.Record, error)
	Claim(ctx context.Context, key string, phase ledger.Phase) (bool, error)
	MarkSent(ctx context.Context, key string, phase ledger.Phase, messageID string) error
	MarkFailed(ctx context.Context, key string, phase ledger.Phase, cause error) error
}

// Receipt describes an accepted submission.
type Receipt struct {
	Key string
	// Replayed is set when both phases had already been delivered for Key.
	Replayed bool
	// Estimate holds the server-computed bands of an estimator submission.
	Estimate *pricing.Bands
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMetrics records submission and send outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithClock overrides the time source used in email bodies.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// Gateway is the server-side authority for submissions.
type Gateway struct {
	sender   mailer.Sender
	ledger   Ledger
	settings Settings
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewGateway(sender mailer.Sender, l Ledger, settings Settings, log *zap.Logger, opts ...Option) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gateway{
		sender:   sender,
		ledger:   l,
		settings: settings,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SubmitEstimateJSON validates a raw estimator payload and delivers it.
func (g *Gateway) SubmitEstimateJSON(ctx context.Context, key string, body []byte) (*Receipt, error) {
	return g.observe(KindEstimate, func() (*Receipt, error) {
		if verr := checkSchema(estimateSchema, gojsonschema.NewBytesLoader(body)); !verr.empty() {
			return nil, verr
		}
		var req EstimateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, &ValidationError{Fields: map[string][]string{"body": {"must be a valid JSON object"}}}
		}
		return g.estimate(ctx, key, &req)
	})
}

// SubmitEstimate validates an already decoded estimator payload and delivers it.
func (g *Gateway) SubmitEstimate(ctx context.Context, key string, req *EstimateRequest) (*Receipt, error) {
	return g.observe(KindEstimate, func() (*Receipt, error) {
		if verr := checkSchema(estimateSchema, gojsonschema.NewGoLoader(req)); !verr.empty() {
			return nil, verr
		}
		return g.estimate(ctx, key, req)
	})
}

// SubmitContactJSON validates a raw contact form payload and delivers it.
func (g *Gateway) SubmitContactJSON(ctx context.Context, key string, body []byte) (*Receipt, error) {
	return g.observe(KindContact, func() (*Receipt, error) {
		if verr := checkSchema(contactSchema, gojsonschema.NewBytesLoader(body)); !verr.empty() {
			return nil, verr
		}
		var req ContactRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, &ValidationError{Fields: map[string][]string{"body": {"must be a valid JSON object"}}}
		}
		return g.contact(ctx, key, &req)
	})
}

// SubmitContact validates an already decoded contact form and delivers it.
func (g *Gateway) SubmitContact(ctx context.Context, key string, req *ContactRequest) (*Receipt, error) {
	return g.observe(KindContact, func() (*Receipt, error) {
		if verr := checkSchema(contactSchema, gojsonschema.NewGoLoader(req)); !verr.empty() {
			return nil, verr
		}
		return g.contact(ctx, key, req)
	})
}

func (g *Gateway) estimate(ctx context.Context, key string, req *EstimateRequest) (*Receipt, error) {
	verr := &ValidationError{}
	key = normalizeKey(key, verr)
	details := checkEstimate(req, verr)
	if !verr.empty() {
		return nil, verr
	}

	bands := pricing.Estimate(details)
	g.compareEstimate(req.Estimate, bands)

	if err := g.checkConfig(g.settings.EstimateTo, "ESTIMATE_NOTIFY_EMAILS or NOTIFY_EMAILS"); err != nil {
		return nil, err
	}

	notify, ack, err := composeEstimate(g.settings, req, details, bands, g.now())
	if err != nil {
		return nil, eris.Wrap(err, "submission: compose estimate")
	}

	replayed, err := g.dispatch(ctx, KindEstimate, key, notify, ack)
	if err != nil {
		return nil, err
	}
	return &Receipt{Key: key, Replayed: replayed, Estimate: bands}, nil
}

func (g *Gateway) contact(ctx context.Context, key string, req *ContactRequest) (*Receipt, error) {
	verr := &ValidationError{}
	key = normalizeKey(key, verr)
	checkContact(req, verr)
	if !verr.empty() {
		return nil, verr
	}

	if err := g.checkConfig(g.settings.ContactTo, "CONTACT_NOTIFY_EMAILS or NOTIFY_EMAILS"); err != nil {
		return nil, err
	}

	notify, ack, err := composeContact(g.settings, req, g.now())
	if err != nil {
		return nil, eris.Wrap(err, "submission: compose contact")
	}

	replayed, err := g.dispatch(ctx, KindContact, key, notify, ack)
	if err != nil {
		return nil, err
	}
	return &Receipt{Key: key, Replayed: replayed}, nil
}

// checkConfig reports every missing delivery setting before anything is sent.
func (g *Gateway) checkConfig(recipients []string, recipientSetting string) error {
	var problems []string
	if len(recipients) == 0 {
		problems = append(problems, "no notification recipients ("+recipientSetting+")")
	}
	if strings.TrimSpace(g.settings.From) == "" {
		problems = append(problems, "sender address (EMAIL_FROM) is not set")
	}
	if g.sender == nil {
		problems = append(problems, "no email provider configured")
	} else if err := g.sender.Ready(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) == 0 {
		return nil
	}
	g.log.Error("email delivery is not configured", zap.Strings("problems", problems))
	return &ConfigError{Problems: problems}
}

// dispatch sends the notification and then the acknowledgment, skipping
// any phase the ledger already records as sent for key. Each phase is
// claimed before sending so concurrent requests with one key send once.
func (g *Gateway) dispatch(ctx context.Context, kind, key string, notify, ack *mailer.Message) (bool, error) {
	rec, err := g.ledger.Begin(ctx, key, kind)
	if errors.Is(err, ledger.ErrKeyConflict) {
		verr := &ValidationError{}
		verr.add("idempotencyKey", "was already used for a different submission")
		return false, verr
	}
	if err != nil {
		return false, eris.Wrap(err, "submission: begin ledger entry")
	}

	log := g.log.With(zap.String("kind", kind), zap.String("idempotency_key", key), zap.Int("attempt", rec.Attempts))
	if rec.Complete() {
		log.Info("submission already delivered")
		return true, nil
	}

	steps := []struct {
		phase ledger.Phase
		msg   *mailer.Message
	}{
		{ledger.PhaseNotify, notify},
		{ledger.PhaseAcknowledge, ack},
	}
	provider := g.sender.Name()

	for _, step := range steps {
		if rec.Sent(step.phase) {
			log.Info("phase already delivered", zap.String("phase", string(step.phase)))
			continue
		}

		claimed, err := g.ledger.Claim(ctx, key, step.phase)
		if err != nil {
			return false, eris.Wrapf(err, "submission: claim %s", step.phase)
		}
		if !claimed {
			current, err := g.ledger.Get(ctx, key)
			if err != nil {
				return false, eris.Wrapf(err, "submission: reload after %s claim", step.phase)
			}
			if current.Sent(step.phase) {
				log.Info("phase delivered by a concurrent request", zap.String("phase", string(step.phase)))
				continue
			}
			log.Warn("phase is being sent by a concurrent request", zap.String("phase", string(step.phase)))
			return false, ErrInProgress
		}

		step.msg.IdempotencyKey = key + "/" + string(step.phase)
		id, err := g.sender.Send(ctx, step.msg)
		if err != nil {
			fields := []zap.Field{
				zap.String("phase", string(step.phase)),
				zap.String("provider", provider),
				zap.Error(err),
			}
			var de *mailer.DeliveryError
			if errors.As(err, &de) {
				fields = append(fields, zap.Int("status", de.StatusCode), zap.String("body", de.Body))
			}
			log.Error("email delivery failed", fields...)
			g.metrics.EmailSend(provider, string(step.phase), "failure")

			if markErr := g.ledger.MarkFailed(context.WithoutCancel(ctx), key, step.phase, err); markErr != nil {
				log.Error("record delivery failure", zap.Error(markErr))
			}
			return false, &UpstreamError{Phase: step.phase, Err: err}
		}

		g.metrics.EmailSend(provider, string(step.phase), "success")
		if err := g.ledger.MarkSent(context.WithoutCancel(ctx), key, step.phase, id); err != nil {
			return false, eris.Wrapf(err, "submission: record %s", step.phase)
		}
		log.Info("email delivered", zap.String("phase", string(step.phase)), zap.String("message_id", id))
	}

	return false, nil
}

// compareEstimate logs when the figures a visitor saw differ from the
// server's. The server's figures are the ones emailed.
func (g *Gateway) compareEstimate(client *EstimateFigures, server *pricing.Bands) {
	if client == nil || server == nil {
		return
	}
	if math.Abs(client.Conservative-server.Conservative) < 1 &&
		math.Abs(client.Likely-server.Likely) < 1 &&
		math.Abs(client.Premium-server.Premium) < 1 {
		return
	}
	g.log.Warn("client estimate differs from server estimate",
		zap.Float64s("client", []float64{client.Conservative, client.Likely, client.Premium}),
		zap.Float64s("server", []float64{server.Conservative, server.Likely, server.Premium}),
	)
}

func (g *Gateway) observe(kind string, fn func() (*Receipt, error)) (*Receipt, error) {
	start := time.Now()
	receipt, err := fn()
	g.metrics.Submission(kind, outcomeOf(err), time.Since(start))
	return receipt, err
}

func outcomeOf(err error) string {
	var (
		verr *ValidationError
		cerr *ConfigError
		uerr *UpstreamError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &verr):
		return "invalid"
	case errors.As(err, &cerr):
		return "misconfigured"
	case errors.As(err, &uerr):
		return "upstream_error"
	case errors.Is(err, ErrInProgress):
		return "in_progress"
	}
	return "error"
}

// normalizeKey returns the caller's idempotency key, or a fresh one when
// none was supplied.
func normalizeKey(key string, verr *ValidationError) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return NewKey()
	}
	if len(key) > maxKeyLength {
		verr.add("idempotencyKey", "must be at most 200 characters")
	}
	return key
}

// NewKey returns a fresh idempotency key.
func NewKey() string {
	return uuid.NewString()
}
