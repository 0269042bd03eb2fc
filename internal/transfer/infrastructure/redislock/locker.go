package redislock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix     = "certificate-transfer:lock:"
	defaultTTL           = 10 * time.Minute
	defaultRetryInterval = 200 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// extendScript pushes the expiry out only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// Locker serializes organization work across engine replicas.
type Locker struct {
	client        redis.UniversalClient
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
	logger        *log.Logger
}

// Option configures the locker.
type Option func(*Locker)

// WithKeyPrefix overrides the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(l *Locker) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// WithTTL bounds how long a crashed holder keeps the lock. A live holder
// extends it every third of the TTL.
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryInterval sets the polling interval while waiting.
func WithRetryInterval(interval time.Duration) Option {
	return func(l *Locker) {
		if interval > 0 {
			l.retryInterval = interval
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Locker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New constructs a locker.
func New(client redis.UniversalClient, opts ...Option) (*Locker, error) {
	if client == nil {
		return nil, errors.New("redislock: nil client")
	}
	l := &Locker{
		client:        client,
		prefix:        defaultKeyPrefix,
		ttl:           defaultTTL,
		retryInterval: defaultRetryInterval,
		logger:        log.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Lock acquires every organization in sorted order and returns a release func.
// The keys are kept alive until release is called.
func (l *Locker) Lock(ctx context.Context, orgIDs ...string) (func(), error) {
	keys := make([]string, 0, len(orgIDs))
	for _, id := range orgIDs {
		if id != "" {
			keys = append(keys, l.prefix+id)
		}
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	token := uuid.NewString()
	acquired := make([]string, 0, len(keys))
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			l.unlock(acquired[i], token)
		}
	}
	for _, key := range keys {
		if err := l.acquire(ctx, key, token); err != nil {
			release()
			return nil, err
		}
		acquired = append(acquired, key)
	}
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(stop, acquired, token)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			release()
		})
	}, nil
}

func (l *Locker) keepAlive(stop <-chan struct{}, keys []string, token string) {
	ticker := time.NewTicker(max(l.ttl/3, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, key := range keys {
				l.extend(key, token)
			}
		}
	}
}

func (l *Locker) extend(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		l.logger.Printf("redislock extend error: key=%s err=%v", key, err)
		return
	}
	if n == 0 {
		l.logger.Printf("redislock lock lost: key=%s", key)
	}
}

func (l *Locker) acquire(ctx context.Context, key, token string) error {
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("redislock: acquire %s: %w", key, err)
		}
		if ok {
			return nil
		}
		timer := time.NewTimer(l.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Locker) unlock(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
	if err != nil {
		l.logger.Printf("redislock release error: key=%s err=%v", key, err)
		return
	}
	if n == 0 {
		l.logger.Printf("redislock lock lost before release: key=%s", key)
	}
}
