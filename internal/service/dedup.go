package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/linklytics/gateway/internal/model"
)

// HashIP hashes a visitor IP with an HMAC keyed by the process secret.
// Raw IPs are never stored or fingerprinted. An empty IP hashes to "".
func HashIP(ip, secret string) string {
	if ip == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}

// Fingerprint derives the ephemeral dedup key for a hit: hashed IP, link,
// event type, browser and the current minute bucket. Returns "" when the IP
// is unknown, which disables dedup for the hit.
func Fingerprint(linkID uuid.UUID, ipHash string, eventType model.EventType, browser string, at time.Time) string {
	if ipHash == "" {
		return ""
	}
	minute := strconv.FormatInt(at.Truncate(time.Minute).Unix(), 10)
	sum := sha256.Sum256([]byte(ipHash + "|" + linkID.String() + "|" + string(eventType) + "|" + browser + "|" + minute))
	return hex.EncodeToString(sum[:])
}

// Deduplicator gates repeat event recording within a short window.
type Deduplicator interface {
	IsDuplicate(ctx context.Context, fingerprint string) bool
	Register(ctx context.Context, fingerprint string)
}

// RedisDeduplicator keeps fingerprints in Redis under a short TTL. Purely
// advisory: any cache failure reads as "not a duplicate", so false
// negatives are possible and accepted.
type RedisDeduplicator struct {
	cache *redis.Client
	ttl   time.Duration
}

// NewRedisDeduplicator creates a deduplicator with the given window.
func NewRedisDeduplicator(cache *redis.Client, ttl time.Duration) *RedisDeduplicator {
	return &RedisDeduplicator{cache: cache, ttl: ttl}
}

func dedupKey(fingerprint string) string {
	return fmt.Sprintf("dedup:%s", fingerprint)
}

// IsDuplicate reports whether the fingerprint is registered within its window.
func (d *RedisDeduplicator) IsDuplicate(ctx context.Context, fingerprint string) bool {
	if d.cache == nil || fingerprint == "" {
		return false
	}
	n, err := d.cache.Exists(ctx, dedupKey(fingerprint)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// Register records the fingerprint for the dedup window.
func (d *RedisDeduplicator) Register(ctx context.Context, fingerprint string) {
	if d.cache == nil || fingerprint == "" {
		return
	}
	d.cache.SetNX(ctx, dedupKey(fingerprint), 1, d.ttl)
}
