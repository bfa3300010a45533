package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
	appErrors "github.com/noah-isme/prepdeck-marketing-api/pkg/errors"
)

// DefaultSnapshotTTL is how long a cached snapshot may be used for an initial paint.
const DefaultSnapshotTTL = 5 * time.Minute

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CacheService reads and writes timestamped snapshots. Every failure is logged and
// reported as a miss; callers never see cache errors.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	prefix  string
	clock   clockwork.Clock
	logger  *zap.Logger
}

// NewCacheService constructs a cache service. A nil repo disables caching.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, prefix string, clock clockwork.Clock, logger *zap.Logger) *CacheService {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, prefix: prefix, clock: clock, logger: logger}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.repo != nil
}

// TTL returns the freshness window.
func (s *CacheService) TTL() time.Duration {
	return s.ttl
}

// Key renders the storage key for a logical resource name.
func (s *CacheService) Key(name string) string {
	return s.prefix + name
}

// LoadFresh decodes the snapshot for name into dest when it is strictly younger than the TTL.
// It returns the snapshot time and whether dest was filled.
func (s *CacheService) LoadFresh(ctx context.Context, name string, dest interface{}) (time.Time, bool) {
	if !s.Enabled() {
		return time.Time{}, false
	}
	key := s.Key(name)
	start := s.clock.Now()

	var snap models.CachedSnapshot
	err := s.repo.Get(ctx, key, &snap)
	elapsed := s.clock.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, elapsed)
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.metrics.RecordCacheError("get")
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return time.Time{}, false
	}

	now := s.clock.Now()
	if !snap.FreshAt(now, s.ttl) {
		s.metrics.RecordCacheOperation(false, elapsed)
		s.logger.Debug("cache entry stale", zap.String("key", key), zap.Duration("age", snap.Age(now)))
		return time.Time{}, false
	}

	if err := json.Unmarshal(snap.Data, dest); err != nil {
		s.metrics.RecordCacheOperation(false, elapsed)
		s.metrics.RecordCacheError("get")
		s.logger.Warn("cache entry undecodable", zap.String("key", key), zap.Error(err))
		return time.Time{}, false
	}

	s.metrics.RecordCacheOperation(true, elapsed)
	return time.UnixMilli(snap.Timestamp), true
}

// Store persists data stamped with the current time.
func (s *CacheService) Store(ctx context.Context, name string, data interface{}) {
	if !s.Enabled() {
		return
	}
	key := s.Key(name)

	raw, err := json.Marshal(data)
	if err != nil {
		s.metrics.RecordCacheError("set")
		s.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}

	start := s.clock.Now()
	snap := models.CachedSnapshot{Data: raw, Timestamp: start.UnixMilli()}
	err = s.repo.Set(ctx, key, snap, s.ttl)
	s.metrics.ObserveCacheWrite(s.clock.Since(start))
	if err != nil {
		s.metrics.RecordCacheError("set")
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops the snapshot for name.
func (s *CacheService) Invalidate(ctx context.Context, name string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Delete(ctx, s.Key(name)); err != nil {
		s.metrics.RecordCacheError("delete")
		s.logger.Warn("cache invalidate failed", zap.String("key", s.Key(name)), zap.Error(err))
	}
}
