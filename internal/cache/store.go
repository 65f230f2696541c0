package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-matcher/internal/logger"
	"github.com/jonathan/resume-matcher/internal/metrics"
	"github.com/jonathan/resume-matcher/internal/types"
)

// KeyPrefix namespaces match entries in Redis
const KeyPrefix = "match:"

// GenerationPrefix namespaces the per-key write counters that guard fills
const GenerationPrefix = "matchgen:"

// DefaultTTL bounds how long an entry may outlive a missed invalidation
const DefaultTTL = time.Hour

// GenerationTTL is how long a write counter survives without writes
const GenerationTTL = 24 * time.Hour

// KV is the subset of Redis the cache uses
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Del(ctx context.Context, keys ...string) error
	// Incr increments a counter and refreshes its expiration
	Incr(ctx context.Context, key string, expiration time.Duration) (int64, error)
	// SetIfEqual sets key only while guardKey still holds guardValue, a missing
	// guard counting as "0". It reports whether the value was written.
	SetIfEqual(ctx context.Context, guardKey, guardValue, key string, value []byte, expiration time.Duration) (bool, error)
}

// MatchStore is the authoritative store behind the cache
type MatchStore interface {
	GetMatch(ctx context.Context, key types.MatchKey) (*types.MatchRecord, error)
	UpsertMatch(ctx context.Context, rec *types.MatchRecord) (*types.MatchRecord, error)
	DeleteMatch(ctx context.Context, key types.MatchKey) (bool, error)
	BackfillCandidate(ctx context.Context, key types.MatchKey, candidateID uuid.UUID) error
}

// Store decorates a MatchStore with a Redis read-through cache. Writes go to the
// store first, then bump the key's generation and drop the cached entry. A fill
// only lands if the generation it read before the store lookup is unchanged, so
// a record deleted or replaced mid-read is never written back. Redis failures are
// logged and degrade to the store; they never fail a call.
type Store struct {
	next    MatchStore
	kv      KV
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewStore wraps next with kv
func NewStore(next MatchStore, kv KV, ttl time.Duration, log *zap.Logger, m *metrics.Metrics) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		next:    next,
		kv:      kv,
		ttl:     ttl,
		logger:  logger.OrNop(log).Named("cache"),
		metrics: m,
	}
}

// Key returns the Redis key for a match key
func Key(key types.MatchKey) string {
	return KeyPrefix + key.String()
}

// GenerationKey returns the Redis key of a match key's write counter
func GenerationKey(key types.MatchKey) string {
	return GenerationPrefix + key.String()
}

// GetMatch serves from Redis when possible and fills it on a store hit
func (s *Store) GetMatch(ctx context.Context, key types.MatchKey) (*types.MatchRecord, error) {
	data, found, err := s.kv.Get(ctx, Key(key))
	switch {
	case err != nil:
		s.metrics.ObserveCache(metrics.CacheError)
		s.logger.Warn("redis get failed", append(logger.MatchKey(key), zap.Error(err))...)
	case found:
		var rec types.MatchRecord
		if err := json.Unmarshal(data, &rec); err == nil {
			s.metrics.ObserveCache(metrics.CacheHit)
			return &rec, nil
		}
		s.metrics.ObserveCache(metrics.CacheError)
		s.logger.Warn("dropping undecodable cache entry", logger.MatchKey(key)...)
		s.drop(ctx, key)
	default:
		s.metrics.ObserveCache(metrics.CacheMiss)
	}

	gen, guarded := s.generation(ctx, key)

	rec, err := s.next.GetMatch(ctx, key)
	if err != nil || rec == nil {
		return rec, err
	}
	if guarded {
		s.fill(ctx, rec, gen)
	}
	return rec, nil
}

// UpsertMatch writes through to the store and drops the cached entry
func (s *Store) UpsertMatch(ctx context.Context, rec *types.MatchRecord) (*types.MatchRecord, error) {
	stored, err := s.next.UpsertMatch(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, rec.Key())
	return stored, nil
}

// DeleteMatch deletes from the store and drops the cached entry
func (s *Store) DeleteMatch(ctx context.Context, key types.MatchKey) (bool, error) {
	deleted, err := s.next.DeleteMatch(ctx, key)
	if err != nil {
		return false, err
	}
	s.invalidate(ctx, key)
	return deleted, nil
}

// BackfillCandidate updates the store and drops the cached entry
func (s *Store) BackfillCandidate(ctx context.Context, key types.MatchKey, candidateID uuid.UUID) error {
	if err := s.next.BackfillCandidate(ctx, key, candidateID); err != nil {
		return err
	}
	s.invalidate(ctx, key)
	return nil
}

// generation reads the key's write counter. ok is false when Redis cannot say,
// in which case the caller must not fill.
func (s *Store) generation(ctx context.Context, key types.MatchKey) (string, bool) {
	data, found, err := s.kv.Get(ctx, GenerationKey(key))
	if err != nil {
		s.logger.Warn("redis generation read failed", append(logger.MatchKey(key), zap.Error(err))...)
		return "", false
	}
	if !found {
		return "0", true
	}
	return string(data), true
}

func (s *Store) fill(ctx context.Context, rec *types.MatchRecord, gen string) {
	key := rec.Key()
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("failed to encode cache entry", append(logger.MatchKey(key), zap.Error(err))...)
		return
	}
	stored, err := s.kv.SetIfEqual(ctx, GenerationKey(key), gen, Key(key), data, s.ttl)
	if err != nil {
		s.logger.Warn("redis set failed", append(logger.MatchKey(key), zap.Error(err))...)
		return
	}
	if !stored {
		s.logger.Debug("skipping stale cache fill", logger.MatchKey(key)...)
	}
}

// invalidate bumps the generation before dropping the entry, so a fill racing
// with this write either fails its guard or lands before the DEL
func (s *Store) invalidate(ctx context.Context, key types.MatchKey) {
	if _, err := s.kv.Incr(ctx, GenerationKey(key), GenerationTTL); err != nil {
		s.logger.Warn("redis generation bump failed", append(logger.MatchKey(key), zap.Error(err))...)
	}
	s.drop(ctx, key)
}

func (s *Store) drop(ctx context.Context, key types.MatchKey) {
	if err := s.kv.Del(ctx, Key(key)); err != nil {
		s.logger.Warn("redis del failed", append(logger.MatchKey(key), zap.Error(err))...)
	}
}
