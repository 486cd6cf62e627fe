package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_Burst(t *testing.T) {
	tests := []struct {
		name    string
		rpm     int
		allowed int
	}{
		{name: "burst is a tenth of the budget", rpm: 60, allowed: 6},
		{name: "burst is at least one", rpm: 5, allowed: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.rpm)
			got := 0
			for i := 0; i < tt.allowed+5; i++ {
				if l.Allow() {
					got++
				}
			}
			if got != tt.allowed {
				t.Errorf("allowed %d calls, want %d", got, tt.allowed)
			}
		})
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := New(0)
	for i := 0; i < 1000; i++ {
		if !l.Allow() {
			t.Fatalf("call %d was limited", i)
		}
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := New(1)
	if !l.Allow() {
		t.Fatal("first call should pass")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("Wait should fail before the next token")
	}
}
