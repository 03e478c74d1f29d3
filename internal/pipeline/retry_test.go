package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hntbot/biddocs/internal/llm"
)

func TestBackoff_Bounds(t *testing.T) {
	tests := []struct {
		attempt  int
		min, max time.Duration
	}{
		{0, time.Second, 1500 * time.Millisecond},
		{1, 2 * time.Second, 3 * time.Second},
		{3, 8 * time.Second, 12 * time.Second},
		{10, 30 * time.Second, 45 * time.Second},
		{70, 30 * time.Second, 45 * time.Second},
	}
	for _, tt := range tests {
		for range 20 {
			d := Backoff(tt.attempt)
			if d < tt.min || d >= tt.max {
				t.Fatalf("Backoff(%d) = %s, want [%s, %s)", tt.attempt, d, tt.min, tt.max)
			}
		}
	}
}

func TestRetry(t *testing.T) {
	transient := &llm.RetryableError{StatusCode: 503}
	noWait := func(int) time.Duration { return 0 }

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{"first try", []error{nil}, 1, false},
		{"recovers", []error{transient, transient, nil}, 3, false},
		{"exhausted", []error{transient, transient, transient, nil}, MaxRetries, true},
		{"permanent", []error{errors.New("bad request"), nil}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retry(context.Background(), discard, noWait, func() error {
				e := tt.errs[calls]
				calls++
				return e
			})
			if calls != tt.wantCalls {
				t.Errorf("expected %d calls, got %d", tt.wantCalls, calls)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("unexpected error result: %v", err)
			}
		})
	}
}

func TestRetry_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, discard, func(int) time.Duration { return time.Hour }, func() error {
		calls++
		cancel()
		return &llm.RetryableError{StatusCode: 429}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected one call, got %d", calls)
	}
}
