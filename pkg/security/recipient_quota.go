package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// RecipientQuota caps how many submissions may copy the same address per day,
// so the contact form cannot be used to relay mail to third parties.
type RecipientQuota struct {
	client    *goredis.Client
	maxPerDay int
	window    time.Duration
}

// Lua script for sliding window counting over every CC address at once.
// Nothing is recorded unless all keys are under the limit.
// KEYS = one quota key per address
// ARGV[1] = max count allowed
// ARGV[2] = window size in seconds
// ARGV[3] = current timestamp (nanoseconds)
// ARGV[4] = member recorded for this submission
// Returns: 0 if allowed, otherwise the 1-based index of the first key over quota
const recipientQuotaScript = `
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2]) * 1000000000
local now = tonumber(ARGV[3])

for i, key in ipairs(KEYS) do
    redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
    if redis.call('ZCARD', key) >= limit then
        return i
    end
end

for _, key in ipairs(KEYS) do
    redis.call('ZADD', key, now, ARGV[4])
    redis.call('EXPIRE', key, ARGV[2])
end
return 0
`

// NewRecipientQuota creates a quota checker. A nil client disables the check.
// Default: 20 submissions per CC address per day
func NewRecipientQuota(client *goredis.Client, perDay int) *RecipientQuota {
	if perDay <= 0 {
		perDay = 20
	}
	return &RecipientQuota{
		client:    client,
		maxPerDay: perDay,
		window:    24 * time.Hour,
	}
}

// Allow records one submission against every CC address, or against none of
// them when any address is over quota; that address is returned.
// Redis errors fail open and are returned.
func (q *RecipientQuota) Allow(ctx context.Context, ccEmails []string) (bool, string, error) {
	if q == nil || q.client == nil || len(ccEmails) == 0 {
		return true, "", nil
	}

	keys := make([]string, len(ccEmails))
	for i, addr := range ccEmails {
		keys[i] = quotaKey(addr)
	}

	result, err := q.client.Eval(ctx, recipientQuotaScript, keys,
		q.maxPerDay, int(q.window.Seconds()), time.Now().UnixNano(), uuid.NewString()).Result()
	if err != nil {
		return true, "", fmt.Errorf("recipient quota check failed: %w", err)
	}
	refused, ok := result.(int64)
	if !ok {
		return true, "", fmt.Errorf("unexpected result type from quota script")
	}
	if refused < 0 || refused > int64(len(ccEmails)) {
		return true, "", fmt.Errorf("quota script returned index %d for %d addresses", refused, len(ccEmails))
	}
	if refused > 0 {
		return false, ccEmails[refused-1], nil
	}
	return true, "", nil
}

// Addresses are hashed so the key space holds no PII
func quotaKey(addr string) string {
	return "quota:cc:" + HashValue(strings.ToLower(strings.TrimSpace(addr)))
}
