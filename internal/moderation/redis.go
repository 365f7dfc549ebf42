package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/backy/backend/internal/model"
)

var (
	redisRatePrefix      = "rate/"
	redisSignaturePrefix = "sig/"
	redisBlocklistPrefix = "blocklist/"
)

// NewRedisClient parses redisURL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// RedisWindowStore shares fixed windows between instances. The window starts
// at the first hit and ends when the key expires (EXPIRE NX needs Redis 7).
type RedisWindowStore struct {
	Client *redis.Client
}

var _ WindowStore = (*RedisWindowStore)(nil)

func (s *RedisWindowStore) Hit(ctx context.Context, key string, window time.Duration, _ time.Time) (int, error) {
	k := redisRatePrefix + key

	// increment and stamp the window in a single round-trip
	multi := s.Client.Pipeline()
	incr := multi.Incr(ctx, k)
	multi.ExpireNX(ctx, k, window)
	if _, err := multi.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

// RedisSignatureStore keeps one sorted set of timestamps per signature,
// trimmed to Size members.
type RedisSignatureStore struct {
	Client *redis.Client
	Size   int
}

var _ SignatureStore = (*RedisSignatureStore)(nil)

func (s *RedisSignatureStore) Record(ctx context.Context, key string, horizon time.Duration, now time.Time) (bool, error) {
	k := redisSignaturePrefix + key
	cutoff := now.Add(-horizon).UnixMilli()
	size := s.Size
	if size < 1 {
		size = 16
	}

	multi := s.Client.TxPipeline()
	multi.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(cutoff, 10))
	card := multi.ZCard(ctx, k)
	multi.ZAdd(ctx, k, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()[:8]),
	})
	multi.ZRemRangeByRank(ctx, k, 0, int64(-size-1))
	multi.Expire(ctx, k, horizon)
	if _, err := multi.Exec(ctx); err != nil {
		return false, err
	}
	return card.Val() > 0, nil
}

// RedisBlocklistStore keeps one hash per site, field "kind/value".
type RedisBlocklistStore struct {
	Client *redis.Client
}

var _ BlocklistStore = (*RedisBlocklistStore)(nil)

func (s *RedisBlocklistStore) Get(ctx context.Context, siteID string, kind model.IdentityKind, value string) (*model.BlocklistEntry, error) {
	raw, err := s.Client.HGet(ctx, redisBlocklistPrefix+siteID, string(kind)+"/"+value).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var entry model.BlocklistEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *RedisBlocklistStore) Put(ctx context.Context, entry *model.BlocklistEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.Client.HSet(ctx, redisBlocklistPrefix+entry.SiteID, string(entry.Kind)+"/"+entry.Value, raw).Err()
}

func (s *RedisBlocklistStore) List(ctx context.Context, siteID string) ([]*model.BlocklistEntry, error) {
	all, err := s.Client.HGetAll(ctx, redisBlocklistPrefix+siteID).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*model.BlocklistEntry, 0, len(all))
	for _, raw := range all {
		var entry model.BlocklistEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, err
		}
		out = append(out, &entry)
	}
	sortEntries(out)
	return out, nil
}
