package limiter

import (
	"testing"
	"time"
)

func TestWindowKey(t *testing.T) {
	now := time.Unix(1700000000, 0)

	key := windowKey("10.0.0.1", now)
	if key != "ratelimit:10.0.0.1:28333333" {
		t.Errorf("key = %q", key)
	}

	// Same minute, same bucket
	if windowKey("10.0.0.1", now.Add(30*time.Second)) != key {
		t.Error("keys within one window should match")
	}

	// Next minute rolls the bucket
	if windowKey("10.0.0.1", now.Add(time.Minute)) == key {
		t.Error("keys across windows should differ")
	}

	// Distinct identities never share a bucket
	if windowKey("10.0.0.2", now) == key {
		t.Error("keys for different identities should differ")
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("not-a-redis-url", 10); err == nil {
		t.Error("expected error for an unparseable URL")
	}
}
