package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	defaultDBPath    = "./dev.db"
	defaultPort      = "8080"
	defaultEmailFrom = "Estimates <onboarding@resend.dev>"
	defaultCacheTTL  = time.Hour
)

// Config holds application configuration sourced from the environment,
// an optional config.yaml and a local .env file.
type Config struct {
	Env           string
	Port          string
	DBPath        string
	SessionSecret string
	SiteName      string

	Log     LogConfig
	Email   EmailConfig
	Reviews ReviewsConfig
	CORS    CORSConfig
}

// LogConfig selects the zap logger flavour.
type LogConfig struct {
	Level  string
	Format string
}

// EmailConfig holds the delivery provider and recipient lists.
type EmailConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Region   string
	From     string

	NotifyTo         []string
	EstimateNotifyTo []string
	ContactNotifyTo  []string
	CC               []string
	BCC              []string
}

// EstimateRecipients returns the estimator distribution list, falling back
// to the shared list.
func (e EmailConfig) EstimateRecipients() []string {
	if len(e.EstimateNotifyTo) > 0 {
		return e.EstimateNotifyTo
	}
	return e.NotifyTo
}

// ContactRecipients returns the contact-form distribution list, falling
// back to the shared list.
func (e EmailConfig) ContactRecipients() []string {
	if len(e.ContactNotifyTo) > 0 {
		return e.ContactNotifyTo
	}
	return e.NotifyTo
}

// ReviewsConfig holds the Google Business Profile credentials.
type ReviewsConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccountID    string
	LocationID   string
	CacheTTL     time.Duration
	RedisURL     string
}

// Configured reports whether every credential needed to fetch reviews is present.
func (r ReviewsConfig) Configured() bool {
	return r.ClientID != "" && r.ClientSecret != "" && r.RefreshToken != "" &&
		r.AccountID != "" && r.LocationID != ""
}

// CORSConfig lists the origins allowed to call the JSON API.
type CORSConfig struct {
	AllowedOrigins []string
}

// IsDev reports whether the service runs in a development environment.
func (c Config) IsDev() bool {
	return c.Env == "" || c.Env == "development" || c.Env == "dev"
}

var envBindings = map[string][]string{
	"env":                      {"APP_ENV"},
	"port":                     {"PORT"},
	"db_path":                  {"DB_PATH"},
	"session_secret":           {"SESSION_SECRET"},
	"site_name":                {"SITE_NAME"},
	"log.level":                {"LOG_LEVEL"},
	"log.format":               {"LOG_FORMAT"},
	"email.provider":           {"EMAIL_PROVIDER"},
	"email.api_key":            {"RESEND_API_KEY", "EMAIL_API_KEY"},
	"email.base_url":           {"RESEND_BASE_URL"},
	"email.region":             {"AWS_REGION"},
	"email.from":               {"EMAIL_FROM"},
	"email.notify_to":          {"NOTIFY_EMAILS"},
	"email.estimate_notify_to": {"ESTIMATE_NOTIFY_EMAILS"},
	"email.contact_notify_to":  {"CONTACT_NOTIFY_EMAILS"},
	"email.cc":                 {"NOTIFY_CC"},
	"email.bcc":                {"NOTIFY_BCC"},
	"reviews.client_id":        {"GOOGLE_CLIENT_ID"},
	"reviews.client_secret":    {"GOOGLE_CLIENT_SECRET"},
	"reviews.refresh_token":    {"GOOGLE_REFRESH_TOKEN"},
	"reviews.account_id":       {"GBP_ACCOUNT_ID"},
	"reviews.location_id":      {"GBP_LOCATION_ID"},
	"reviews.cache_ttl":        {"REVIEWS_CACHE_TTL"},
	"reviews.redis_url":        {"REDIS_URL"},
	"cors.allowed_origins":     {"CORS_ALLOWED_ORIGINS"},
}

// Load reads the configuration. Missing delivery settings are logged as
// warnings rather than failing startup; the submission gateway reports
// them per request.
func Load() (Config, error) {
	// Local development convenience; production injects real environment variables.
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return Config{}, eris.Wrapf(err, "config: bind %s", key)
		}
	}

	v.SetDefault("env", "development")
	v.SetDefault("port", defaultPort)
	v.SetDefault("db_path", defaultDBPath)
	v.SetDefault("site_name", "Our team")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("email.provider", "resend")
	v.SetDefault("email.from", defaultEmailFrom)
	v.SetDefault("email.region", "us-east-1")
	v.SetDefault("reviews.cache_ttl", defaultCacheTTL)
	v.SetDefault("cors.allowed_origins", "*")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, eris.Wrap(err, "config: read file")
		}
	}

	cfg := Config{
		Env:           v.GetString("env"),
		Port:          v.GetString("port"),
		DBPath:        v.GetString("db_path"),
		SessionSecret: v.GetString("session_secret"),
		SiteName:      v.GetString("site_name"),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Email: EmailConfig{
			Provider:         strings.ToLower(v.GetString("email.provider")),
			APIKey:           v.GetString("email.api_key"),
			BaseURL:          v.GetString("email.base_url"),
			Region:           v.GetString("email.region"),
			From:             v.GetString("email.from"),
			NotifyTo:         list(v, "email.notify_to"),
			EstimateNotifyTo: list(v, "email.estimate_notify_to"),
			ContactNotifyTo:  list(v, "email.contact_notify_to"),
			CC:               list(v, "email.cc"),
			BCC:              list(v, "email.bcc"),
		},
		Reviews: ReviewsConfig{
			ClientID:     v.GetString("reviews.client_id"),
			ClientSecret: v.GetString("reviews.client_secret"),
			RefreshToken: v.GetString("reviews.refresh_token"),
			AccountID:    v.GetString("reviews.account_id"),
			LocationID:   v.GetString("reviews.location_id"),
			CacheTTL:     v.GetDuration("reviews.cache_ttl"),
			RedisURL:     v.GetString("reviews.redis_url"),
		},
		CORS: CORSConfig{
			AllowedOrigins: list(v, "cors.allowed_origins"),
		},
	}

	if cfg.Reviews.CacheTTL <= 0 {
		cfg.Reviews.CacheTTL = defaultCacheTTL
	}

	return cfg, nil
}

// Warn logs every setting that is missing but not fatal at startup.
func (c Config) Warn(log *zap.Logger) {
	if c.SessionSecret == "" {
		log.Warn("SESSION_SECRET is not set; estimator sessions use an ephemeral key")
	}
	if c.Email.Provider == "resend" && c.Email.APIKey == "" {
		log.Warn("RESEND_API_KEY is not set; submissions will fail with a configuration error")
	}
	if len(c.Email.EstimateRecipients()) == 0 {
		log.Warn("no estimator notification recipients configured")
	}
	if len(c.Email.ContactRecipients()) == 0 {
		log.Warn("no contact notification recipients configured")
	}
	if !c.Reviews.Configured() {
		log.Warn("Google Business Profile credentials incomplete; reviews endpoint serves the fallback summary")
	}
}

// list reads a setting that may be a YAML sequence or a comma-separated string.
func list(v *viper.Viper, key string) []string {
	var raw []string
	switch v.Get(key).(type) {
	case nil:
		return nil
	case []any, []string:
		raw = v.GetStringSlice(key)
	default:
		raw = strings.Split(v.GetString(key), ",")
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
