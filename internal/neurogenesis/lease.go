package neurogenesis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ConceptLease coordinates neurogenesis across processes: the first caller
// to acquire the lease for a concept runs the pipeline, concurrent callers
// await its result. Leases expire so a crashed pipeline cannot wedge a
// concept forever.
type ConceptLease interface {
	// Acquire tries to claim the concept. ok is false when another holder
	// has it; the returned token proves ownership for Release.
	Acquire(ctx context.Context, concept string) (token string, ok bool, err error)
	// Release frees the claim if token still owns it.
	Release(ctx context.Context, concept, token string) error
}

const leasePrefix = "synapse:neurogenesis:"

// RedisLease is the production ConceptLease, a SET NX PX claim in Redis.
type RedisLease struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLease creates a lease manager from a Redis URL.
func NewRedisLease(redisURL string, ttl time.Duration, logger *zap.Logger) (*RedisLease, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl == 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLease{rdb: rdb, ttl: ttl, logger: logger}, nil
}

func (l *RedisLease) Acquire(ctx context.Context, concept string) (string, bool, error) {
	token := uuid.New().String()
	ok, err := l.rdb.SetNX(ctx, leasePrefix+concept, token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lease %s: %w", concept, err)
	}
	if ok {
		l.logger.Debug("concept lease acquired",
			zap.String("concept", concept),
			zap.Duration("ttl", l.ttl))
	}
	return token, ok, nil
}

// releaseScript deletes the lease only while we still own it, so an expired
// claim re-acquired by someone else is never clobbered.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLease) Release(ctx context.Context, concept, token string) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{leasePrefix + concept}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lease %s: %w", concept, err)
	}
	return nil
}

// Close shuts down the Redis connection.
func (l *RedisLease) Close() error {
	return l.rdb.Close()
}

// MemLease is an in-process ConceptLease for degraded mode and tests.
type MemLease struct {
	mu     sync.Mutex
	ttl    time.Duration
	claims map[string]memClaim
}

type memClaim struct {
	token   string
	expires time.Time
}

// NewMemLease creates an in-memory lease manager.
func NewMemLease(ttl time.Duration) *MemLease {
	if ttl == 0 {
		ttl = 2 * time.Minute
	}
	return &MemLease{ttl: ttl, claims: make(map[string]memClaim)}
}

func (l *MemLease) Acquire(_ context.Context, concept string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if c, ok := l.claims[concept]; ok && c.expires.After(now) {
		return "", false, nil
	}
	token := uuid.New().String()
	l.claims[concept] = memClaim{token: token, expires: now.Add(l.ttl)}
	return token, true, nil
}

func (l *MemLease) Release(_ context.Context, concept, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.claims[concept]; ok && c.token == token {
		delete(l.claims, concept)
	}
	return nil
}
