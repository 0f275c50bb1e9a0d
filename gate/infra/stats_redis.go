package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"reading-gate/gate/domain"
)

// RedisStatsStore agrega decisões em hashes Redis:
//
//	<prefix>:total            allowed / duplicate / denied (cumulativo, sem TTL)
//	<prefix>:minute:<yyyymmddhhmm>  mesmos campos, expira com ttl
//	<prefix>:cause            um campo por causa de rejeição
type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	ttl    time.Duration
	// bucket: "minute" (padrão) ou "none"
	bucket string
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "gate:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	fields := []string{"denied"}
	if ev.Allowed {
		fields = []string{"allowed"}
		if ev.Duplicate {
			fields = append(fields, "duplicate")
		}
	}

	totalKey := s.prefix + ":total"
	pipe := s.rdb.Pipeline()
	for _, f := range fields {
		pipe.HIncrBy(ctx, totalKey, f, 1)
	}

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		for _, f := range fields {
			pipe.HIncrBy(ctx, bucketKey, f, 1)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if !ev.Allowed && ev.Cause != domain.CauseNone {
		pipe.HIncrBy(ctx, s.prefix+":cause", string(ev.Cause), 1)
	}

	_, err := pipe.Exec(ctx)
	return err
}

var _ domain.StatsStore = (*RedisStatsStore)(nil)
