package intel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Redis key layout shared by feed writers (ingest jobs) and this reader.
const (
	keyMalicious  = "intel:malicious"
	keyVPN        = "intel:vpn"
	keyReputation = "intel:rep:" // + ip
)

// RedisFeed reads threat intelligence maintained in Redis by an external
// ingest pipeline. It is the production implementation: multiple engine
// instances share one feed.
type RedisFeed struct {
	client     *redis.Client
	defaultRep float64
}

// RedisOption configures a RedisFeed.
type RedisOption func(*RedisFeed)

func WithRedisDefaultReputation(rep float64) RedisOption {
	return func(f *RedisFeed) { f.defaultRep = rep }
}

func NewRedisFeed(client *redis.Client, opts ...RedisOption) *RedisFeed {
	f := &RedisFeed{client: client, defaultRep: 0.5}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *RedisFeed) IsMalicious(ctx context.Context, ip string) (bool, error) {
	ok, err := f.client.SIsMember(ctx, keyMalicious, ip).Result()
	if err != nil {
		return false, fmt.Errorf("check malicious ip: %w", err)
	}
	return ok, nil
}

func (f *RedisFeed) IsVPN(ctx context.Context, ip string) (bool, error) {
	ok, err := f.client.SIsMember(ctx, keyVPN, ip).Result()
	if err != nil {
		return false, fmt.Errorf("check vpn ip: %w", err)
	}
	return ok, nil
}

func (f *RedisFeed) Reputation(ctx context.Context, ip string) (float64, error) {
	val, err := f.client.Get(ctx, keyReputation+ip).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return f.defaultRep, nil
		}
		return 0, fmt.Errorf("get ip reputation: %w", err)
	}
	rep, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ip reputation %q: %w", val, err)
	}
	return rep, nil
}

// Refresh is a no-op for the Redis feed: the ingest pipeline owns updates
// and this reader always sees the latest state.
func (f *RedisFeed) Refresh(context.Context) error { return nil }

// MarkMalicious and MarkVPN write entries; used by ingest tooling and tests.
func (f *RedisFeed) MarkMalicious(ctx context.Context, ips ...string) error {
	members := make([]any, len(ips))
	for i, ip := range ips {
		members[i] = ip
	}
	return f.client.SAdd(ctx, keyMalicious, members...).Err()
}

func (f *RedisFeed) MarkVPN(ctx context.Context, ips ...string) error {
	members := make([]any, len(ips))
	for i, ip := range ips {
		members[i] = ip
	}
	return f.client.SAdd(ctx, keyVPN, members...).Err()
}

// SetReputation stores a reputation score for an IP.
func (f *RedisFeed) SetReputation(ctx context.Context, ip string, rep float64) error {
	return f.client.Set(ctx, keyReputation+ip, strconv.FormatFloat(rep, 'f', -1, 64), 0).Err()
}
