package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stupiduntilnot/helpdesk/internal/llm"
)

func TestBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 30 * time.Second},
		{10, 30 * time.Second},
	}
	for _, c := range cases {
		if got := Backoff(c.attempt); got != c.want {
			t.Errorf("Backoff(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &llm.ProviderError{Status: 429}, true},
		{"server error", &llm.ProviderError{Status: 503}, true},
		{"transport failure", &llm.ProviderError{Status: 0}, true},
		{"auth rejection", &llm.ProviderError{Status: 401}, false},
		{"malformed request", &llm.ProviderError{Status: 400}, false},
		{"timeout", &llm.TimeoutError{Limit: time.Minute}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, c := range cases {
		if got := Transient(c.err); got != c.want {
			t.Errorf("%s: Transient = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestDo_NoRetryOnPermanentFailure(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 3}, func() error {
		calls++
		return &llm.ProviderError{Status: 401, Message: "bad key"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 3}, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 3}, func() error {
		calls++
		if calls == 1 {
			return &llm.ProviderError{Status: 500, Message: "flaky"}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDo_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Policy{MaxRetries: 5}, func() error {
		calls++
		return &llm.ProviderError{Status: 500}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected no retries after ctx cancellation, got %d calls", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 0}, func() error {
		calls++
		return &llm.ProviderError{Status: 500}
	})
	var provErr *llm.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected last ProviderError returned, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call with MaxRetries=0, got %d", calls)
	}
}
