package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/linklytics/gateway/internal/model"
)

func TestHashIP(t *testing.T) {
	t.Run("stable for same input", func(t *testing.T) {
		assert.Equal(t, HashIP("203.0.113.9", "s1"), HashIP("203.0.113.9", "s1"))
	})

	t.Run("differs per secret", func(t *testing.T) {
		assert.NotEqual(t, HashIP("203.0.113.9", "s1"), HashIP("203.0.113.9", "s2"))
	})

	t.Run("raw ip never appears in hash", func(t *testing.T) {
		assert.NotContains(t, HashIP("203.0.113.9", "s1"), "203.0.113.9")
	})

	t.Run("empty ip hashes to empty", func(t *testing.T) {
		assert.Empty(t, HashIP("", "s1"))
	})
}

func TestFingerprint(t *testing.T) {
	linkID := uuid.New()
	ipHash := HashIP("203.0.113.9", "secret")
	at := time.Date(2026, 3, 1, 12, 30, 5, 0, time.UTC)

	t.Run("stable inside the same minute", func(t *testing.T) {
		a := Fingerprint(linkID, ipHash, model.EventTypeClick, "chrome", at)
		b := Fingerprint(linkID, ipHash, model.EventTypeClick, "chrome", at.Add(40*time.Second))
		assert.Equal(t, a, b)
	})

	t.Run("changes across minute buckets", func(t *testing.T) {
		a := Fingerprint(linkID, ipHash, model.EventTypeClick, "chrome", at)
		b := Fingerprint(linkID, ipHash, model.EventTypeClick, "chrome", at.Add(time.Minute))
		assert.NotEqual(t, a, b)
	})

	t.Run("changes per event type", func(t *testing.T) {
		a := Fingerprint(linkID, ipHash, model.EventTypeClick, "chrome", at)
		b := Fingerprint(linkID, ipHash, model.EventTypeScan, "chrome", at)
		assert.NotEqual(t, a, b)
	})

	t.Run("changes per browser", func(t *testing.T) {
		a := Fingerprint(linkID, ipHash, model.EventTypeClick, "chrome", at)
		b := Fingerprint(linkID, ipHash, model.EventTypeClick, "firefox", at)
		assert.NotEqual(t, a, b)
	})

	t.Run("missing ip hash disables fingerprinting", func(t *testing.T) {
		assert.Empty(t, Fingerprint(linkID, "", model.EventTypeClick, "chrome", at))
	})
}

func TestRedisDeduplicator_NilSafety(t *testing.T) {
	ctx := context.Background()
	d := NewRedisDeduplicator(nil, 30*time.Second)

	assert.False(t, d.IsDuplicate(ctx, "abc"))
	d.Register(ctx, "abc") // must not panic
	assert.False(t, d.IsDuplicate(ctx, ""))
}
