package retry

import (
	"testing"
	"time"

	"git.home.luguber.info/inful/easepack/internal/config"
)

func TestDelayLinear(t *testing.T) {
	p := Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 3 * time.Second, MaxRetries: 5}
	cases := []struct {
		retry int
		want  time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 3 * time.Second},
		{4, 3 * time.Second}, // capped
	}
	for _, c := range cases {
		if got := p.Delay(c.retry); got != c.want {
			t.Fatalf("retry %d: expected %s, got %s", c.retry, c.want, got)
		}
	}
}

func TestDelayExponentialCapped(t *testing.T) {
	p := Policy{Mode: config.RetryBackoffExponential, Initial: time.Second, Max: 5 * time.Second, MaxRetries: 5}
	if got := p.Delay(1); got != time.Second {
		t.Fatalf("expected 1s, got %s", got)
	}
	if got := p.Delay(2); got != 2*time.Second {
		t.Fatalf("expected 2s, got %s", got)
	}
	if got := p.Delay(4); got != 5*time.Second {
		t.Fatalf("expected cap 5s, got %s", got)
	}
}

func TestDelayFixed(t *testing.T) {
	p := Policy{Mode: config.RetryBackoffFixed, Initial: 2 * time.Second, Max: 10 * time.Second, MaxRetries: 3}
	for i := 1; i <= 3; i++ {
		if got := p.Delay(i); got != 2*time.Second {
			t.Fatalf("retry %d: expected fixed 2s, got %s", i, got)
		}
	}
}

func TestNewPolicyFallbacks(t *testing.T) {
	p := NewPolicy("bogus", 0, 0, -1)
	d := DefaultPolicy()
	if p != d {
		t.Fatalf("expected defaults for invalid input, got %+v", p)
	}
}

func TestFromConfig(t *testing.T) {
	rc := config.RetryConfig{Backoff: config.RetryBackoffExponential, InitialDelay: "500ms", MaxDelay: "10s", MaxRetries: 4}
	p := FromConfig(rc)
	if p.Mode != config.RetryBackoffExponential || p.Initial != 500*time.Millisecond || p.Max != 10*time.Second || p.MaxRetries != 4 {
		t.Fatalf("unexpected policy: %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}
}
