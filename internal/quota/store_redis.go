package quota

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"callguard/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTTL = 93 * 24 * time.Hour

// addUsageScript applies a capped charge atomically.
//
// KEYS[1] usage hash, KEYS[2] idempotency marker, KEYS[3]/KEYS[4] per-user index sets.
// ARGV: seconds, limit, updated_ms, user_a, user_b, use_idempotency, ttl_seconds, pair_key.
// Returns {used_after, applied}.
var addUsageScript = redis.NewScript(`
local used = tonumber(redis.call('HGET', KEYS[1], 'used') or '0')
if ARGV[6] == '1' and redis.call('EXISTS', KEYS[2]) == 1 then
  return {used, 0}
end

local seconds = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local room = limit - used
if room < 0 then room = 0 end
local add = seconds
if add > room then add = room end
if add < 0 then add = 0 end

used = used + add
redis.call('HSET', KEYS[1], 'used', used, 'updated_ms', ARGV[3], 'user_a', ARGV[4], 'user_b', ARGV[5])
redis.call('EXPIRE', KEYS[1], ARGV[7])

if ARGV[6] == '1' then
  redis.call('SET', KEYS[2], add, 'EX', ARGV[7])
end

redis.call('SADD', KEYS[3], ARGV[8])
redis.call('EXPIRE', KEYS[3], ARGV[7])
redis.call('SADD', KEYS[4], ARGV[8])
redis.call('EXPIRE', KEYS[4], ARGV[7])

return {used, add}
`)

// RedisStore keeps usage in Redis hashes keyed by month and pair.
// Keys expire after TTL, which must outlive the month they describe.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "callguard"
	}
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) usageKey(month, pairKey string) string {
	return utils.RedisKey(s.prefix, "quota", month, pairKey)
}

func (s *RedisStore) chargeKey(month, pairKey, idem string) string {
	return utils.RedisKey(s.prefix, "quota_charge", month, pairKey, idem)
}

func (s *RedisStore) userIndexKey(month, userID string) string {
	return utils.RedisKey(s.prefix, "quota_user", month, userID)
}

func (s *RedisStore) Get(ctx context.Context, p Pair, month string) (UsagePeriod, error) {
	vals, err := s.rdb.HGetAll(ctx, s.usageKey(month, p.Key())).Result()
	if err != nil {
		return UsagePeriod{}, err
	}
	rec := emptyPeriod(p, month)
	if err := fillFromHash(&rec, vals); err != nil {
		return UsagePeriod{}, err
	}
	return rec, nil
}

func (s *RedisStore) Add(ctx context.Context, c Charge) (UsagePeriod, int64, error) {
	pk := c.Pair.Key()
	useIdem := "0"
	if c.IdempotencyKey != "" {
		useIdem = "1"
	}
	keys := []string{
		s.usageKey(c.MonthKey, pk),
		s.chargeKey(c.MonthKey, pk, c.IdempotencyKey),
		s.userIndexKey(c.MonthKey, c.Pair.A),
		s.userIndexKey(c.MonthKey, c.Pair.B),
	}
	res, err := addUsageScript.Run(ctx, s.rdb, keys,
		c.Seconds,
		c.LimitSeconds,
		c.At.UnixMilli(),
		c.Pair.A,
		c.Pair.B,
		useIdem,
		int64(s.ttl/time.Second),
		pk,
	).Int64Slice()
	if err != nil {
		return UsagePeriod{}, 0, err
	}
	if len(res) != 2 {
		return UsagePeriod{}, 0, fmt.Errorf("unexpected script result length %d", len(res))
	}

	rec := emptyPeriod(c.Pair, c.MonthKey)
	rec.TotalUsedSeconds = res[0]
	rec.UpdatedAt = c.At
	return rec, res[1], nil
}

func (s *RedisStore) Reset(ctx context.Context, p Pair, month string, at time.Time) (UsagePeriod, error) {
	key := s.usageKey(month, p.Key())
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "used", 0, "updated_ms", at.UnixMilli(), "user_a", p.A, "user_b", p.B)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return UsagePeriod{}, err
	}
	rec := emptyPeriod(p, month)
	rec.UpdatedAt = at
	return rec, nil
}

func (s *RedisStore) ListByUser(ctx context.Context, userID, month string) ([]UsagePeriod, error) {
	pairKeys, err := s.rdb.SMembers(ctx, s.userIndexKey(month, userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(pairKeys) == 0 {
		return nil, nil
	}
	sort.Strings(pairKeys)

	cmds := make([]*redis.MapStringStringCmd, len(pairKeys))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, pk := range pairKeys {
			cmds[i] = pipe.HGetAll(ctx, s.usageKey(month, pk))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]UsagePeriod, 0, len(pairKeys))
	for i, pk := range pairKeys {
		vals := cmds[i].Val()
		if len(vals) == 0 {
			continue
		}
		rec := UsagePeriod{PairKey: pk, MonthKey: month}
		if err := fillFromHash(&rec, vals); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func fillFromHash(rec *UsagePeriod, vals map[string]string) error {
	if v, ok := vals["used"]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse used: %w", err)
		}
		rec.TotalUsedSeconds = n
	}
	if v, ok := vals["updated_ms"]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse updated_ms: %w", err)
		}
		rec.UpdatedAt = time.UnixMilli(ms).UTC()
	}
	if v := vals["user_a"]; v != "" {
		rec.UserA = v
	}
	if v := vals["user_b"]; v != "" {
		rec.UserB = v
	}
	return nil
}
