package domain

import (
	"testing"
	"time"
)

func TestIdempotencyStatusValid(t *testing.T) {
	tests := []struct {
		name   string
		status IdempotencyStatus
		want   bool
	}{
		{name: "processing", status: IdempotencyStatusProcessing, want: true},
		{name: "done", status: IdempotencyStatusDone, want: true},
		{name: "failed", status: IdempotencyStatusFailed, want: true},
		{name: "invalid", status: IdempotencyStatus("broken"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.status.Valid(); got != tc.want {
				t.Fatalf("status %q valid=%v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestScopedIdempotencyKey(t *testing.T) {
	tests := []struct {
		name  string
		scope string
		key   string
		want  string
	}{
		{name: "customer", scope: "c-1", key: "add-42", want: "c-1:add-42"},
		{name: "admin", scope: "admin", key: "add-42", want: "admin:add-42"},
		{name: "no scope", scope: "", key: "add-42", want: "add-42"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ScopedIdempotencyKey(tc.scope, tc.key); got != tc.want {
				t.Fatalf("ScopedIdempotencyKey(%q, %q) = %q, want %q", tc.scope, tc.key, got, tc.want)
			}
		})
	}

	if ScopedIdempotencyKey("c-1", "k") == ScopedIdempotencyKey("c-2", "k") {
		t.Fatal("same key of different customers must not collide")
	}
}

func TestIdempotencyRecordExpired(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	record := IdempotencyRecord{Key: ScopedIdempotencyKey("c-1", "place-1"), TTLAt: now}

	if !record.Expired(now) {
		t.Fatal("record must expire exactly at ttl")
	}
	if record.Expired(now.Add(-time.Second)) {
		t.Fatal("record must stay alive before ttl")
	}
}
