package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached derived payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DerivedCacheService caches expensive derived grade payloads (report
// cards, class statistics) in Redis. It is a read-through convenience
// layer: every payload can always be recomputed from submissions, so a
// cache failure degrades to a recompute, never to an error for the caller.
type DerivedCacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewDerivedCacheService constructs a derived-payload cache service.
func NewDerivedCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *DerivedCacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DerivedCacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// ReportCardKey builds the cache key for a student's term report card.
func ReportCardKey(studentID, termID string) string {
	return fmt.Sprintf("gradebook:report:%s:%s", studentID, termID)
}

// ClassStatisticsKey builds the cache key for class term statistics.
func ClassStatisticsKey(classID, termID string) string {
	return fmt.Sprintf("gradebook:stats:%s:%s", classID, termID)
}

// Enabled indicates whether the derived cache is active.
func (s *DerivedCacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached payload. It returns true on a hit; a
// backend failure is reported as a miss so callers fall through to a
// recompute.
func (s *DerivedCacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	if err := s.repo.Get(ctx, key, dest); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("derived cache get failed", zap.String("key", key), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false)
		}
		return false
	}
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(true)
	}
	return true
}

// Set stores a derived payload. Failures are logged and swallowed.
func (s *DerivedCacheService) Set(ctx context.Context, key string, value interface{}) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Set(ctx, key, value, s.defaultTTL); err != nil {
		s.logger.Warn("derived cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateStudent drops every derived payload for a student. Called after
// a grade write so report cards never serve stale aggregates.
func (s *DerivedCacheService) InvalidateStudent(ctx context.Context, studentID string) {
	s.invalidate(ctx, fmt.Sprintf("gradebook:report:%s:*", studentID))
}

// InvalidateClass drops cached statistics for a class.
func (s *DerivedCacheService) InvalidateClass(ctx context.Context, classID string) {
	s.invalidate(ctx, fmt.Sprintf("gradebook:stats:%s:*", classID))
}

func (s *DerivedCacheService) invalidate(ctx context.Context, pattern string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("derived cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
