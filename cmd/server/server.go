package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/Simplici0/homebuild/internal/metrics"
	"github.com/Simplici0/homebuild/internal/reviews"
	"github.com/Simplici0/homebuild/internal/submission"
	"github.com/Simplici0/homebuild/internal/wizard"
)

const (
	maxBodyBytes         = 64 << 10
	idempotencyKeyHeader = "Idempotency-Key"
)

// gateway is the submission surface the handlers depend on.
type gateway interface {
	SubmitEstimateJSON(ctx context.Context, key string, body []byte) (*submission.Receipt, error)
	SubmitContactJSON(ctx context.Context, key string, body []byte) (*submission.Receipt, error)
	wizard.Submitter
}

type server struct {
	gateway        gateway
	reviews        *reviews.Service
	sessions       *sessionCodec
	metrics        *metrics.Metrics
	log            *zap.Logger
	allowedOrigins []string
	ping           func(context.Context) error
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.corsHandler())
	r.Use(limitBody)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/contact", s.handleContact)
		r.Post("/estimate", s.handleEstimate)
		r.Post("/estimate/preview", s.handlePreview)
		r.Get("/reviews", s.handleReviews)

		r.Route("/wizard", func(r chi.Router) {
			r.Get("/", s.handleWizardGet)
			r.Post("/project", s.handleWizardProject)
			r.Post("/details", s.handleWizardDetails)
			r.Post("/contact", s.handleWizardContact)
			r.Post("/next", s.handleWizardNext)
			r.Post("/back", s.handleWizardBack)
			r.Post("/submit", s.handleWizardSubmit)
			r.Post("/reset", s.handleWizardReset)
		})
	})

	return r
}

func (s *server) corsHandler() func(http.Handler) http.Handler {
	allowAll := len(s.allowedOrigins) == 0
	for _, o := range s.allowedOrigins {
		if o == "*" {
			allowAll = true
		}
	}
	origins := s.allowedOrigins
	if allowAll {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", idempotencyKeyHeader},
		ExposedHeaders:   []string{idempotencyKeyHeader},
		AllowCredentials: !allowAll,
		MaxAge:           300,
	})
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.log.Error("encode response", zap.Error(err))
		status, body = http.StatusInternalServerError, []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// readBody returns the request body, writing a 413 or 400 itself on failure.
func (s *server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"})
			return nil, false
		}
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Could not read request body"})
		return nil, false
	}
	return body, true
}

// decodeBody reads an optional JSON object into v. An empty body leaves v untouched.
func (s *server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, ok := s.readBody(w, r)
	if !ok {
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Request body must be a JSON object"})
		return false
	}
	return true
}

// writeSubmissionError maps gateway errors onto the API's status codes.
func (s *server) writeSubmissionError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *submission.ValidationError
		cerr *submission.ConfigError
		uerr *submission.UpstreamError
	)
	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Please correct the highlighted fields", Fields: verr.Fields})
	case errors.As(err, &cerr):
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: cerr.Error()})
	case errors.As(err, &uerr):
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "We could not send your request. Please try again or call us directly."})
	case errors.Is(err, submission.ErrInProgress):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: "This request is already being sent"})
	default:
		s.log.Error("submission failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
