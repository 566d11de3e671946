// Package reviews serves the business's Google reviews summary, cached and
// degrading to a neutral default when the upstream is unavailable.
package reviews

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned by a provider missing its credentials.
var ErrNotConfigured = errors.New("reviews: provider credentials not configured")

// Review is one published review.
type Review struct {
	Author    string    `json:"author"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary is the aggregate shown on the site.
type Summary struct {
	Rating  float64  `json:"rating"`
	Count   int      `json:"count"`
	Reviews []Review `json:"reviews"`
}

// Fallback is served whenever reviews cannot be fetched.
func Fallback() Summary {
	return Summary{Rating: 5, Count: 0, Reviews: []Review{}}
}

// Provider fetches the current summary from the upstream source.
type Provider interface {
	// Key identifies the reviewed location; it is the cache key.
	Key() string
	Fetch(ctx context.Context) (Summary, error)
}
