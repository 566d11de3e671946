package submission

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Simplici0/homebuild/internal/ledger"
)

// ErrInProgress is returned when another request holding the same
// idempotency key is sending one of its emails right now.
var ErrInProgress = errors.New("submission: delivery already in progress for this key")

// ValidationError carries field-level messages keyed by dotted JSON path
// (for example "contact.email" or "details.sqft").
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	for _, existing := range e.Fields[field] {
		if existing == msg {
			return
		}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0
}

// ConfigError reports deployment settings missing for delivery. It is
// raised before any outbound call.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "email delivery is not configured: " + strings.Join(e.Problems, "; ")
}

// UpstreamError wraps a provider failure during one delivery phase.
type UpstreamError struct {
	Phase ledger.Phase
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("email delivery failed during %s: %v", e.Phase, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
