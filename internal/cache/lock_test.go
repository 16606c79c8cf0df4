package cache

import (
	"context"
	"testing"
	"time"
)

func TestLockRenewInterval(t *testing.T) {
	cases := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{ttl: 15 * time.Second, want: 5 * time.Second},
		{ttl: 300 * time.Millisecond, want: 100 * time.Millisecond},
		{ttl: 6 * time.Millisecond, want: 10 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := lockRenewInterval(tc.ttl); got != tc.want {
			t.Fatalf("ttl %s: want %s got %s", tc.ttl, tc.want, got)
		}
	}
}

func TestRedisKeyLockerWithoutClient(t *testing.T) {
	locker := NewRedisKeyLocker(nil, 0, 0)
	if locker.ttl != defaultLockTTL || locker.maxWait != defaultLockTTL {
		t.Fatalf("unexpected defaults: ttl=%s maxWait=%s", locker.ttl, locker.maxWait)
	}
	if _, err := locker.Lock(context.Background(), "k"); err == nil {
		t.Fatalf("expected error without redis client")
	}
}
