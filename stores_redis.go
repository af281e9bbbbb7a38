package factorgate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/factorgate/factorgate/internal/alerts"
)

const (
	defaultRedisPrefix  = "fg"
	defaultAlertLogSize = 256
)

// RedisDurableStore is a [DurableStore] backed by a Redis hash per identity.
// Writes are immediately visible to Retrieve, satisfying the read-your-writes
// requirement rollback depends on.
type RedisDurableStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisDurableStore(redisClient redis.UniversalClient, prefix string) *RedisDurableStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisDurableStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisDurableStore) key(identity Identity) string {
	return s.prefix + ":enroll:" + string(identity)
}

func (s *RedisDurableStore) Store(ctx context.Context, identity Identity, factorType FactorType, digest []byte) error {
	if err := s.redis.HSet(ctx, s.key(identity), factorField(factorType), digest).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisDurableStore) Retrieve(ctx context.Context, identity Identity) (map[FactorType][]byte, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decodeFactorHash(fields)
}

func (s *RedisDurableStore) Delete(ctx context.Context, identity Identity, types ...FactorType) error {
	var err error
	if len(types) == 0 {
		err = s.redis.Del(ctx, s.key(identity)).Err()
	} else {
		fields := make([]string, 0, len(types))
		for _, t := range types {
			fields = append(fields, factorField(t))
		}
		err = s.redis.HDel(ctx, s.key(identity), fields...).Err()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RedisCacheStore is a [CacheStore] backed by the same hash layout as
// [RedisDurableStore] under a separate prefix, with a TTL refreshed on every
// write. Typically pointed at a nearer or cheaper Redis than the durable one.
type RedisCacheStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisCacheStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *RedisCacheStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCacheStore{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisCacheStore) key(identity Identity) string {
	return s.prefix + ":cache:" + string(identity)
}

func (s *RedisCacheStore) Store(ctx context.Context, identity Identity, factorType FactorType, digest []byte) error {
	key := s.key(identity)
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, key, factorField(factorType), digest)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisCacheStore) Retrieve(ctx context.Context, identity Identity) (map[FactorType][]byte, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decodeFactorHash(fields)
}

func (s *RedisCacheStore) Delete(ctx context.Context, identity Identity, types ...FactorType) error {
	var err error
	if len(types) == 0 {
		err = s.redis.Del(ctx, s.key(identity)).Err()
	} else {
		fields := make([]string, 0, len(types))
		for _, t := range types {
			fields = append(fields, factorField(t))
		}
		err = s.redis.HDel(ctx, s.key(identity), fields...).Err()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Hash fields carry the numeric factor type, not its name, so renaming a
// factor never strands stored digests.
func factorField(t FactorType) string {
	return strconv.Itoa(int(t))
}

func decodeFactorHash(fields map[string]string) (map[FactorType][]byte, error) {
	out := make(map[FactorType][]byte, len(fields))
	for field, value := range fields {
		n, err := strconv.Atoi(field)
		if err != nil || n < 0 || n >= int(factorTypeCount) {
			return nil, fmt.Errorf("%w: corrupt factor field %q", ErrStoreUnavailable, field)
		}
		out[FactorType(n)] = []byte(value)
	}
	return out, nil
}

// RedisAlertChannel is a durable [AlertChannel] that appends alerts to a
// capped per-merchant Redis list, newest first. It backs the LOW-priority
// route and the HIGH/CRITICAL fallbacks.
type RedisAlertChannel struct {
	redis   redis.UniversalClient
	prefix  string
	maxSize int64
}

func NewRedisAlertChannel(redisClient redis.UniversalClient, prefix string, maxSize int64) *RedisAlertChannel {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if maxSize <= 0 {
		maxSize = defaultAlertLogSize
	}
	return &RedisAlertChannel{
		redis:   redisClient,
		prefix:  prefix,
		maxSize: maxSize,
	}
}

func (c *RedisAlertChannel) Name() string { return "redis-durable" }

func (c *RedisAlertChannel) Kind() AlertChannelKind { return ChannelDurable }

func (c *RedisAlertChannel) key(merchantID string) string {
	return c.prefix + ":alerts:" + merchantID
}

func (c *RedisAlertChannel) Deliver(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	key := c.key(alert.MerchantID)
	pipe := c.redis.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, c.maxSize-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// StoredAlerts reads back the retained alerts for one merchant, newest
// first. Merchant backends poll this after an outage.
func (c *RedisAlertChannel) StoredAlerts(ctx context.Context, merchantID string, limit int64) ([]Alert, error) {
	if limit <= 0 || limit > c.maxSize {
		limit = c.maxSize
	}
	raw, err := c.redis.LRange(ctx, c.key(merchantID), 0, limit-1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := make([]Alert, 0, len(raw))
	for _, item := range raw {
		var a alerts.Alert
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			return nil, fmt.Errorf("%w: corrupt alert record", ErrStoreUnavailable)
		}
		out = append(out, a)
	}
	return out, nil
}
