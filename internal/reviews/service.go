package reviews

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Simplici0/homebuild/internal/metrics"
)

// fetchTimeout bounds a shared refresh, which runs detached from any one
// caller's context.
const fetchTimeout = 15 * time.Second

// Service answers summary lookups from the cache, refreshing from the
// provider on a miss. It never returns an error; failures yield Fallback.
type Service struct {
	provider Provider
	cache    Cache
	log      *zap.Logger
	metrics  *metrics.Metrics
	group    singleflight.Group
}

func NewService(p Provider, c Cache, log *zap.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{provider: p, cache: c, log: log, metrics: m}
}

func (s *Service) Summary(ctx context.Context) Summary {
	if s.provider == nil {
		s.metrics.ReviewCache("fallback")
		return Fallback()
	}
	key := s.provider.Key()

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("review cache read failed", zap.Error(err))
		}
		if ok {
			s.metrics.ReviewCache("hit")
			return cached
		}
	}
	s.metrics.ReviewCache("miss")

	v, err, _ := s.group.Do(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		sum, err := s.provider.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, sum); err != nil {
				s.log.Warn("review cache write failed", zap.Error(err))
			}
		}
		return sum, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			s.log.Debug("reviews provider not configured")
		} else {
			s.log.Error("fetch reviews", zap.Error(err))
		}
		s.metrics.ReviewCache("fallback")
		return Fallback()
	}
	return v.(Summary)
}
