package submission

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Simplici0/homebuild/internal/db"
	"github.com/Simplici0/homebuild/internal/ledger"
	"github.com/Simplici0/homebuild/internal/mailer"
	"github.com/Simplici0/homebuild/internal/metrics"
	"github.com/Simplici0/homebuild/internal/migrations"
)

type fakeSender struct {
	ready    error
	failFor  map[ledger.Phase]error
	attempts int
	sent     []*mailer.Message
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Ready() error { return f.ready }

func (f *fakeSender) Send(_ context.Context, msg *mailer.Message) (string, error) {
	f.attempts++
	for phase, err := range f.failFor {
		if strings.HasSuffix(msg.IdempotencyKey, "/"+string(phase)) {
			return "", err
		}
	}
	cp := *msg
	f.sent = append(f.sent, &cp)
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

func newLedger(t *testing.T) *ledger.Store {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrations.Up(ctx, conn))
	return ledger.New(conn)
}

func testSettings() Settings {
	return Settings{
		SiteName:   "Ridgeline Builders",
		From:       "Estimates <estimates@ridgeline.test>",
		EstimateTo: []string{"estimator@ridgeline.test"},
		ContactTo:  []string{"office@ridgeline.test"},
		BCC:        []string{"audit@ridgeline.test"},
	}
}

func newTestGateway(t *testing.T, sender *fakeSender, settings Settings) *Gateway {
	t.Helper()
	fixed := time.Date(2025, 4, 1, 15, 30, 0, 0, time.UTC)
	return NewGateway(sender, newLedger(t), settings, zaptest.NewLogger(t),
		WithClock(func() time.Time { return fixed }),
		WithMetrics(metrics.New()),
	)
}

const validEstimate = `{
  "project": "kitchen",
  "address": {"street": "12 Oak St", "city": "Springfield", "state": "IL", "zip": "62704"},
  "contact": {"firstName": "Jane", "lastName": "Doe", "email": "jane@example.com", "phone": "(555) 123-4567"},
  "details": {"sqft": 300, "kitchenFinish": "standard"},
  "estimate": {"conservative": 1, "likely": 2, "premium": 3},
  "meta": {"source": "estimator", "url": "https://ridgeline.test/estimate"}
}`

const validContact = `{
  "firstName": "Sam",
  "lastName": "Lee",
  "email": "sam@example.com",
  "phone": "555-987-6543",
  "message": "Do you build decks?"
}`

func TestSubmitEstimateJSON_Delivers(t *testing.T) {
	sender := &fakeSender{}
	g := newTestGateway(t, sender, testSettings())

	receipt, err := g.SubmitEstimateJSON(context.Background(), "key-1", []byte(validEstimate))
	require.NoError(t, err)
	assert.Equal(t, "key-1", receipt.Key)
	assert.False(t, receipt.Replayed)
	assert.InDelta(t, 45000, receipt.Estimate.Conservative, 1e-9)

	require.Len(t, sender.sent, 2)
	notify, ack := sender.sent[0], sender.sent[1]

	assert.Equal(t, []string{"estimator@ridgeline.test"}, notify.To)
	assert.Equal(t, []string{"audit@ridgeline.test"}, notify.BCC)
	assert.Equal(t, "jane@example.com", notify.ReplyTo)
	assert.Equal(t, "New Kitchen Remodel estimate request from Jane Doe", notify.Subject)
	assert.Equal(t, "key-1/notify", notify.IdempotencyKey)
	// Server figures replace the client's.
	assert.Contains(t, notify.Text, "Conservative: $45,000")
	assert.Contains(t, notify.Text, "Premium: $60,000")
	assert.Contains(t, notify.Text, "Square Feet: 300")
	assert.Contains(t, notify.Text, "Kitchen Finish: Standard")
	assert.Contains(t, notify.Text, "12 Oak St, Springfield, IL 62704")
	assert.Contains(t, notify.HTML, "mailto:jane@example.com")

	assert.Equal(t, []string{"jane@example.com"}, ack.To)
	assert.Equal(t, "key-1/acknowledge", ack.IdempotencyKey)
	assert.Contains(t, ack.Text, "Hi Jane,")
	assert.Contains(t, ack.Text, "between $45,000 and $60,000")
	assert.Contains(t, ack.Text, "(555) 123-4567")
}

func TestSubmitEstimateJSON_MissingEmail(t *testing.T) {
	sender := &fakeSender{}
	g := newTestGateway(t, sender, testSettings())

	body := strings.Replace(validEstimate, `"email": "jane@example.com", `, "", 1)
	_, err := g.SubmitEstimateJSON(context.Background(), "", []byte(body))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"is required"}, verr.Fields["contact.email"])
	assert.Zero(t, sender.attempts)
}

func TestSubmitEstimateJSON_FieldErrors(t *testing.T) {
	g := newTestGateway(t, &fakeSender{}, testSettings())

	body := `{
	  "project": "pool",
	  "address": {"street": "1 A St", "city": "B", "state": "C", "zip": "123"},
	  "contact": {"firstName": "J", "lastName": "Doe", "email": "not-an-email", "phone": "555"},
	  "estimate": {"conservative": -1, "likely": 0, "premium": 0}
	}`
	_, err := g.SubmitEstimateJSON(context.Background(), "", []byte(body))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "project")
	assert.Equal(t, []string{"must be at least 5 characters"}, verr.Fields["address.zip"])
	assert.Equal(t, []string{"must be at least 2 characters"}, verr.Fields["contact.firstName"])
	assert.Equal(t, []string{"must be a valid email address"}, verr.Fields["contact.email"])
	assert.Contains(t, verr.Fields, "contact.phone")
	assert.Equal(t, []string{"must be zero or greater"}, verr.Fields["estimate.conservative"])
}

func TestSubmitEstimateJSON_RejectsForeignDetails(t *testing.T) {
	sender := &fakeSender{}
	g := newTestGateway(t, sender, testSettings())

	body := strings.Replace(validEstimate, `"details": {"sqft": 300, "kitchenFinish": "standard"}`,
		`"details": {"sqft": -4, "roofType": "slate"}`, 1)
	_, err := g.SubmitEstimateJSON(context.Background(), "", []byte(body))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"must be zero or greater"}, verr.Fields["details.sqft"])
	assert.Equal(t, []string{"not a kitchen remodel detail"}, verr.Fields["details.roofType"])
	assert.Zero(t, sender.attempts)
}

func TestSubmitEstimateJSON_PhoneNeedsTenDigits(t *testing.T) {
	g := newTestGateway(t, &fakeSender{}, testSettings())

	body := strings.Replace(validEstimate, `"phone": "(555) 123-4567"`, `"phone": "555-123-456"`, 1)
	_, err := g.SubmitEstimateJSON(context.Background(), "", []byte(body))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"must contain at least 10 digits"}, verr.Fields["contact.phone"])
}

func TestSubmitEstimateJSON_InvalidJSON(t *testing.T) {
	g := newTestGateway(t, &fakeSender{}, testSettings())

	_, err := g.SubmitEstimateJSON(context.Background(), "", []byte(`{"project":`))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "body")
}

func TestSubmitContactJSON_NineDigitPhone(t *testing.T) {
	sender := &fakeSender{}
	g := newTestGateway(t, sender, testSettings())

	body := strings.Replace(validContact, `"555-987-6543"`, `"555987654"`, 1)
	_, err := g.SubmitContactJSON(context.Background(), "", []byte(body))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "phone")
	assert.Zero(t, sender.attempts)
}

func TestSubmitContactJSON_Delivers(t *testing.T) {
	sender := &fakeSender{}
	g := newTestGateway(t, sender, testSettings())

	receipt, err := g.SubmitContactJSON(context.Background(), "", []byte(validContact))
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.Key)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, []string{"office@ridgeline.test"}, sender.sent[0].To)
	assert.Equal(t, "sam@example.com", sender.sent[0].ReplyTo)
	assert.Contains(t, sender.sent[0].Text, "Do you build decks?")
	assert.Equal(t, "Thanks for contacting Ridgeline Builders", sender.sent[1].Subject)
}

func TestSubmit_MissingCredentialIsConfigError(t *testing.T) {
	sender := &fakeSender{ready: mailer.ErrMissingAPIKey}
	g := newTestGateway(t, sender, testSettings())

	_, err := g.SubmitContactJSON(context.Background(), "", []byte(validContact))

	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Error(), "RESEND_API_KEY")
	assert.Zero(t, sender.attempts)
}

func TestSubmit_MissingRecipientsAndSender(t *testing.T) {
	sender := &fakeSender{}
	settings := testSettings()
	settings.EstimateTo = nil
	settings.From = ""
	g := newTestGateway(t, sender, settings)

	_, err := g.SubmitEstimateJSON(context.Background(), "", []byte(validEstimate))

	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Len(t, cerr.Problems, 2)
	assert.Contains(t, cerr.Error(), "NOTIFY_EMAILS")
	assert.Contains(t, cerr.Error(), "EMAIL_FROM")
	assert.Zero(t, sender.attempts)
}

func TestSubmit_ValidationBeforeConfig(t *testing.T) {
	sender := &fakeSender{ready: mailer.ErrMissingAPIKey}
	g := newTestGateway(t, sender, testSettings())

	_, err := g.SubmitContactJSON(context.Background(), "", []byte(`{"firstName":"Sam"}`))

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSubmit_UpstreamFailureThenResume(t *testing.T) {
	ctx := context.Background()
	boom := &mailer.DeliveryError{Provider: "fake", StatusCode: 500, Body: "oops"}
	sender := &fakeSender{failFor: map[ledger.Phase]error{ledger.PhaseAcknowledge: boom}}
	g := newTestGateway(t, sender, testSettings())

	_, err := g.SubmitEstimateJSON(ctx, "key-retry", []byte(validEstimate))

	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, ledger.PhaseAcknowledge, uerr.Phase)
	assert.True(t, errors.Is(err, boom))
	require.Len(t, sender.sent, 1)

	rec, err := g.ledger.(*ledger.Store).Get(ctx, "key-retry")
	require.NoError(t, err)
	assert.True(t, rec.Sent(ledger.PhaseNotify))
	assert.Contains(t, rec.LastError, "status 500")

	// Resubmitting with the same key only sends the missing phase.
	sender.failFor = nil
	receipt, err := g.SubmitEstimateJSON(ctx, "key-retry", []byte(validEstimate))
	require.NoError(t, err)
	assert.False(t, receipt.Replayed)
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "key-retry/acknowledge", sender.sent[1].IdempotencyKey)

	// A third submission is a no-op.
	receipt, err = g.SubmitEstimateJSON(ctx, "key-retry", []byte(validEstimate))
	require.NoError(t, err)
	assert.True(t, receipt.Replayed)
	assert.Len(t, sender.sent, 2)
}

func TestSubmit_NotifyFailureSkipsAcknowledgment(t *testing.T) {
	sender := &fakeSender{failFor: map[ledger.Phase]error{ledger.PhaseNotify: errors.New("connection reset")}}
	g := newTestGateway(t, sender, testSettings())

	_, err := g.SubmitContactJSON(context.Background(), "", []byte(validContact))

	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, ledger.PhaseNotify, uerr.Phase)
	assert.Equal(t, 1, sender.attempts)
	assert.Empty(t, sender.sent)
}

func TestSubmit_KeyReusedAcrossKinds(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	g := newTestGateway(t, sender, testSettings())

	_, err := g.SubmitContactJSON(ctx, "shared", []byte(validContact))
	require.NoError(t, err)

	_, err = g.SubmitEstimateJSON(ctx, "shared", []byte(validEstimate))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "idempotencyKey")
	assert.Len(t, sender.sent, 2)
}

func TestSubmitEstimate_DecodedRequest(t *testing.T) {
	sender := &fakeSender{}
	g := newTestGateway(t, sender, testSettings())

	req := &EstimateRequest{
		Project: "roofing",
		Address: Address{Street: "9 Elm St", City: "Dayton", State: "OH", Zip: "45402"},
		Contact: Contact{FirstName: "Ana", LastName: "Ruiz", Email: "ana@example.com", Phone: "9375550100"},
		Details: map[string]any{"roofType": "slate"},
	}
	receipt, err := g.SubmitEstimate(context.Background(), "", req)
	require.NoError(t, err)
	assert.InDelta(t, 30660, receipt.Estimate.Conservative, 1e-9)
	assert.InDelta(t, 47200, receipt.Estimate.Premium, 1e-9)
	require.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent[0].Text, "Roof Type: Slate")

	req.Contact.Email = ""
	_, err = g.SubmitEstimate(context.Background(), "", req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "contact.email")
}

// gatedSender holds its first Send until release is closed.
type gatedSender struct {
	mu      sync.Mutex
	calls   int
	sent    []*mailer.Message
	entered chan struct{}
	release chan struct{}
}

func newGatedSender() *gatedSender {
	return &gatedSender{entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedSender) Name() string { return "gated" }

func (s *gatedSender) Ready() error { return nil }

func (s *gatedSender) Send(_ context.Context, msg *mailer.Message) (string, error) {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()

	if first {
		close(s.entered)
		<-s.release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.sent = append(s.sent, &cp)
	return fmt.Sprintf("msg-%d", len(s.sent)), nil
}

func (s *gatedSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestSubmitEstimate_ConcurrentSameKeySendsOnce(t *testing.T) {
	ctx := context.Background()
	sender := newGatedSender()
	g := NewGateway(sender, newLedger(t), testSettings(), zaptest.NewLogger(t))

	first := make(chan error, 1)
	go func() {
		_, err := g.SubmitEstimateJSON(ctx, "same-key", []byte(validEstimate))
		first <- err
	}()
	<-sender.entered

	_, err := g.SubmitEstimateJSON(ctx, "same-key", []byte(validEstimate))
	assert.ErrorIs(t, err, ErrInProgress)
	assert.Equal(t, "in_progress", outcomeOf(err))

	close(sender.release)
	require.NoError(t, <-first)

	receipt, err := g.SubmitEstimateJSON(ctx, "same-key", []byte(validEstimate))
	require.NoError(t, err)
	assert.True(t, receipt.Replayed)
	assert.Equal(t, 2, sender.count())
}

func TestSubmitContact_ConcurrentRequestsWithDistinctKeysBothSend(t *testing.T) {
	ctx := context.Background()
	sender := newGatedSender()
	g := NewGateway(sender, newLedger(t), testSettings(), zaptest.NewLogger(t))

	first := make(chan error, 1)
	go func() {
		_, err := g.SubmitContactJSON(ctx, "key-a", []byte(validContact))
		first <- err
	}()
	<-sender.entered

	_, err := g.SubmitContactJSON(ctx, "key-b", []byte(validContact))
	require.NoError(t, err)

	close(sender.release)
	require.NoError(t, <-first)
	assert.Equal(t, 4, sender.count())
}
