// Package ledger records the delivery phases of each submission so a
// resubmission with the same idempotency key never sends an email twice.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
)

// Phase names one of the two outbound sends of a submission.
type Phase string

const (
	PhaseNotify      Phase = "notify"
	PhaseAcknowledge Phase = "acknowledge"
)

var (
	// ErrNotFound is returned by Get for an unknown key.
	ErrNotFound = errors.New("ledger: submission not found")
	// ErrKeyConflict is returned when a key is reused for a different kind of submission.
	ErrKeyConflict = errors.New("ledger: idempotency key already used for another submission kind")
)

// ClaimTTL is how long a phase claim holds before another attempt may take
// it over. It outlasts the mail clients' request timeout.
const ClaimTTL = 2 * time.Minute

// phaseColumns names the sent and claim columns of a phase.
var phaseColumns = map[Phase]struct{ sent, claimed string }{
	PhaseNotify:      {"notified_at", "notify_claim_expires"},
	PhaseAcknowledge: {"acknowledged_at", "ack_claim_expires"},
}

// Record is the ledger row for one submission.
type Record struct {
	Key             string
	Kind            string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	NotifiedAt      *time.Time
	NotifyMessageID string
	AcknowledgedAt  *time.Time
	AckMessageID    string
	Attempts        int
	LastError       string
}

// Sent reports whether the phase has already been delivered.
func (r *Record) Sent(p Phase) bool {
	switch p {
	case PhaseNotify:
		return r.NotifiedAt != nil
	case PhaseAcknowledge:
		return r.AcknowledgedAt != nil
	}
	return false
}

// Complete reports whether both phases have been delivered.
func (r *Record) Complete() bool {
	return r.Sent(PhaseNotify) && r.Sent(PhaseAcknowledge)
}

// Store is a SQLite-backed ledger.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New returns a Store over an already-migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Begin registers an attempt for key, creating the row on first use, and
// returns the current record.
func (s *Store) Begin(ctx context.Context, key, kind string) (*Record, error) {
	now := s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (idempotency_key, kind, created_at, updated_at, attempts)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			attempts = attempts + 1,
			updated_at = excluded.updated_at
	`, key, kind, now, now)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: begin")
	}

	rec, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec.Kind != kind {
		return nil, ErrKeyConflict
	}
	return rec, nil
}

// Claim takes the right to send phase for key. It reports false when the
// phase is already sent or another attempt holds an unexpired claim.
func (s *Store) Claim(ctx context.Context, key string, phase Phase) (bool, error) {
	cols, ok := phaseColumns[phase]
	if !ok {
		return false, eris.Errorf("ledger: unknown phase %q", phase)
	}

	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET `+cols.claimed+` = ?, updated_at = ?
		WHERE idempotency_key = ? AND `+cols.sent+` IS NULL
		  AND (`+cols.claimed+` IS NULL OR `+cols.claimed+` <= ?)
	`, now.Add(ClaimTTL).UnixNano(), now, key, now.UnixNano())
	if err != nil {
		return false, eris.Wrapf(err, "ledger: claim %s", phase)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrapf(err, "ledger: claim %s", phase)
	}
	return n == 1, nil
}

// MarkSent records a successful delivery of phase, releases its claim and
// clears the last error.
func (s *Store) MarkSent(ctx context.Context, key string, phase Phase, messageID string) error {
	var query string
	switch phase {
	case PhaseNotify:
		query = `UPDATE submissions SET notified_at = ?, notify_message_id = ?, notify_claim_expires = NULL,
			last_error = NULL, updated_at = ?
			WHERE idempotency_key = ? AND notified_at IS NULL`
	case PhaseAcknowledge:
		query = `UPDATE submissions SET acknowledged_at = ?, ack_message_id = ?, ack_claim_expires = NULL,
			last_error = NULL, updated_at = ?
			WHERE idempotency_key = ? AND acknowledged_at IS NULL`
	default:
		return eris.Errorf("ledger: unknown phase %q", phase)
	}

	now := s.now().UTC()
	if _, err := s.db.ExecContext(ctx, query, now, messageID, now, key); err != nil {
		return eris.Wrapf(err, "ledger: mark %s sent", phase)
	}
	return nil
}

// MarkFailed stores the failure of phase on the record and releases its
// claim so a later attempt can retry.
func (s *Store) MarkFailed(ctx context.Context, key string, phase Phase, cause error) error {
	cols, ok := phaseColumns[phase]
	if !ok {
		return eris.Errorf("ledger: unknown phase %q", phase)
	}

	msg := string(phase)
	if cause != nil {
		msg += ": " + cause.Error()
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET last_error = ?, `+cols.claimed+` = NULL, updated_at = ? WHERE idempotency_key = ?`,
		msg, s.now().UTC(), key)
	if err != nil {
		return eris.Wrapf(err, "ledger: mark %s failed", phase)
	}
	return nil
}

// Get loads the record for key.
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	var (
		rec                  Record
		notifiedAt, ackedAt  sql.NullTime
		notifyID, ackID, msg sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT idempotency_key, kind, created_at, updated_at, notified_at, notify_message_id,
		       acknowledged_at, ack_message_id, attempts, last_error
		FROM submissions
		WHERE idempotency_key = ?
	`, key).Scan(
		&rec.Key, &rec.Kind, &rec.CreatedAt, &rec.UpdatedAt, &notifiedAt, &notifyID,
		&ackedAt, &ackID, &rec.Attempts, &msg,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "ledger: get")
	}

	if notifiedAt.Valid {
		t := notifiedAt.Time
		rec.NotifiedAt = &t
	}
	if ackedAt.Valid {
		t := ackedAt.Time
		rec.AcknowledgedAt = &t
	}
	rec.NotifyMessageID = notifyID.String
	rec.AckMessageID = ackID.String
	rec.LastError = msg.String

	return &rec, nil
}
