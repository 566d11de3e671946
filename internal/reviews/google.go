package reviews

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/Simplici0/homebuild/internal/config"
)

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
	gbpBaseURL     = "https://mybusiness.googleapis.com"

	businessScope   = "https://www.googleapis.com/auth/business.manage"
	defaultPageSize = 10
)

var starRatings = map[string]int{
	"ONE":   1,
	"TWO":   2,
	"THREE": 3,
	"FOUR":  4,
	"FIVE":  5,
}

// GoogleOption configures the Google provider.
type GoogleOption func(*GoogleProvider)

// WithBaseURL sets a custom Business Profile API base URL (for testing).
func WithBaseURL(u string) GoogleOption {
	return func(g *GoogleProvider) {
		g.baseURL = u
	}
}

// WithTokenURL sets a custom OAuth token endpoint (for testing).
func WithTokenURL(u string) GoogleOption {
	return func(g *GoogleProvider) {
		g.tokenURL = u
	}
}

// WithHTTPClient sets the HTTP client used for token refresh and API calls.
func WithHTTPClient(hc *http.Client) GoogleOption {
	return func(g *GoogleProvider) {
		g.base = hc
	}
}

// WithRateLimit caps outbound API calls per second.
func WithRateLimit(rps float64) GoogleOption {
	return func(g *GoogleProvider) {
		if rps > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithPageSize sets how many recent reviews are returned.
func WithPageSize(n int) GoogleOption {
	return func(g *GoogleProvider) {
		if n > 0 {
			g.pageSize = n
		}
	}
}

// GoogleProvider reads reviews from the Business Profile API using a
// long-lived refresh token.
type GoogleProvider struct {
	cfg      config.ReviewsConfig
	baseURL  string
	tokenURL string
	pageSize int
	base     *http.Client
	limiter  *rate.Limiter
	http     *http.Client
}

// NewGoogleProvider builds the provider. Missing credentials are reported
// by Fetch as ErrNotConfigured.
func NewGoogleProvider(cfg config.ReviewsConfig, opts ...GoogleOption) *GoogleProvider {
	g := &GoogleProvider{
		cfg:      cfg,
		baseURL:  gbpBaseURL,
		tokenURL: googleTokenURL,
		pageSize: defaultPageSize,
		base:     &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(g)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   googleAuthURL,
			TokenURL:  g.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{businessScope},
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, g.base)
	source := oauthCfg.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	g.http = &http.Client{
		Timeout:   g.base.Timeout,
		Transport: &oauth2.Transport{Source: source, Base: g.base.Transport},
	}
	return g
}

func (g *GoogleProvider) Key() string { return g.cfg.LocationID }

type gbpReviewsResponse struct {
	Reviews          []gbpReview `json:"reviews"`
	AverageRating    float64     `json:"averageRating"`
	TotalReviewCount int         `json:"totalReviewCount"`
}

type gbpReview struct {
	Reviewer struct {
		DisplayName     string `json:"displayName"`
		ProfilePhotoURL string `json:"profilePhotoUrl"`
		IsAnonymous     bool   `json:"isAnonymous"`
	} `json:"reviewer"`
	StarRating string    `json:"starRating"`
	Comment    string    `json:"comment"`
	CreateTime time.Time `json:"createTime"`
}

func (g *GoogleProvider) Fetch(ctx context.Context) (Summary, error) {
	if !g.cfg.Configured() {
		return Summary{}, ErrNotConfigured
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return Summary{}, eris.Wrap(err, "google reviews: rate limit wait")
	}

	endpoint := fmt.Sprintf("%s/v4/accounts/%s/locations/%s/reviews?%s",
		g.baseURL,
		url.PathEscape(g.cfg.AccountID),
		url.PathEscape(g.cfg.LocationID),
		url.Values{"pageSize": {strconv.Itoa(g.pageSize)}}.Encode(),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Summary{}, eris.Wrap(err, "google reviews: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return Summary{}, eris.Wrap(err, "google reviews: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Summary{}, eris.Wrap(err, "google reviews: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return Summary{}, eris.Errorf("google reviews: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed gbpReviewsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Summary{}, eris.Wrap(err, "google reviews: decode response")
	}

	sum := Summary{
		Rating:  parsed.AverageRating,
		Count:   parsed.TotalReviewCount,
		Reviews: make([]Review, 0, len(parsed.Reviews)),
	}
	for _, r := range parsed.Reviews {
		author := r.Reviewer.DisplayName
		if r.Reviewer.IsAnonymous || author == "" {
			author = "Google user"
		}
		sum.Reviews = append(sum.Reviews, Review{
			Author:    author,
			PhotoURL:  r.Reviewer.ProfilePhotoURL,
			Rating:    starRatings[r.StarRating],
			Comment:   r.Comment,
			CreatedAt: r.CreateTime,
		})
	}
	return sum, nil
}
