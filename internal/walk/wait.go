package walk

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/babelcloud/navwalk/internal/browserapi"
)

// ErrWaitTimeout is returned when a readiness probe never reports ready
var ErrWaitTimeout = errors.New("timed out waiting for page to settle")

// Probe reports whether the remote page reached the expected state
type Probe func(ctx context.Context) (bool, error)

// WaitStrategy decides how long to wait after an action that triggers
// asynchronous work on the server.
type WaitStrategy interface {
	// Wait blocks until the action settled. settle is the fixed delay
	// configured for the action; probe checks readiness.
	Wait(ctx context.Context, settle time.Duration, probe Probe) error
	Name() string
}

// FixedDelay sleeps for the configured settle time.
type FixedDelay struct{}

func (FixedDelay) Name() string { return "fixed" }

func (FixedDelay) Wait(ctx context.Context, settle time.Duration, _ Probe) error {
	return sleep(ctx, settle)
}

// Poll runs the probe until it succeeds or Timeout elapses. A connection
// failure from the probe ends the wait at once.
type Poll struct {
	Interval time.Duration
	Timeout  time.Duration
}

func (Poll) Name() string { return "poll" }

func (p Poll) Wait(ctx context.Context, _ time.Duration, probe Probe) error {
	if probe == nil {
		return nil
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	var lastErr error
	for {
		ready, err := probe(ctx)
		if ready {
			return nil
		}
		if browserapi.IsConnectionError(err) {
			return err
		}
		if err != nil {
			lastErr = err
		}
		if err := sleep(ctx, interval); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				if lastErr != nil {
					return fmt.Errorf("%w after %s: %w", ErrWaitTimeout, p.Timeout, lastErr)
				}
				return fmt.Errorf("%w after %s", ErrWaitTimeout, p.Timeout)
			}
			return err
		}
	}
}

// NewWaitStrategy builds a strategy by name
func NewWaitStrategy(name string, interval, timeout time.Duration) (WaitStrategy, error) {
	switch name {
	case "", "fixed":
		return FixedDelay{}, nil
	case "poll":
		if timeout <= 0 {
			return nil, fmt.Errorf("poll wait strategy requires a positive timeout")
		}
		return Poll{Interval: interval, Timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("unsupported wait strategy: %s", name)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pageResponds is ready once the URL endpoint answers with a 2xx status.
func pageResponds(api API, sessionID string) Probe {
	return func(ctx context.Context) (bool, error) {
		_, err := api.URL(ctx, sessionID)
		if err != nil {
			return false, err
		}
		return true, nil
	}
}

// pageAt is ready once the reported URL is on the same host as target.
func pageAt(api API, sessionID, target string) Probe {
	want := hostOf(target)
	return func(ctx context.Context) (bool, error) {
		resp, err := api.URL(ctx, sessionID)
		if err != nil {
			return false, err
		}
		current, ok := resp.Field("url")
		if !ok {
			return false, nil
		}
		return want != "" && hostOf(current) == want, nil
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
