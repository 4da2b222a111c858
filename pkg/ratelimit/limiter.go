package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Platform defaults for the paged engagement endpoints: 25 requests per
// 15-minute window, spaced 40 seconds apart so a full window's worth of
// requests always fits inside the window.
const (
	DefaultQuota   = 25
	DefaultWindow  = 15 * time.Minute
	DefaultSpacing = 40 * time.Second
)

// Limiter defines the interface for request budgeting
type Limiter interface {
	// Acquire blocks until the budget allows another request, or the
	// context is cancelled.
	Acquire(ctx context.Context) error
	// Remaining reports how many requests the current window still allows.
	Remaining() int
	// Reset starts a fresh window.
	Reset()
}

// Snapshot is a point-in-time copy of the window counters, for logging and
// run reports.
type Snapshot struct {
	RequestsInWindow int       `json:"requests_in_window"`
	WindowStartedAt  time.Time `json:"window_started_at"`
	TotalRequests    int       `json:"total_requests"`
}

// Window implements a fixed-window request budget: at most quota grants per
// window, consecutive grants spaced at least `spacing` apart, and a full
// sleep of the window remainder once the quota is spent.
//
// A Window is safe for concurrent use; several collection runs may share one
// when they share one credential.
type Window struct {
	quota   int
	window  time.Duration
	spacing time.Duration

	mu               sync.Mutex
	requestsInWindow int
	windowStartedAt  time.Time
	lastGrant        time.Time
	totalRequests    int
}

// NewWindow creates a fixed-window budget. Non-positive arguments fall back
// to the platform defaults.
func NewWindow(quota int, window, spacing time.Duration) *Window {
	if quota <= 0 {
		quota = DefaultQuota
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if spacing <= 0 {
		spacing = DefaultSpacing
	}
	return &Window{
		quota:           quota,
		window:          window,
		spacing:         spacing,
		windowStartedAt: time.Now(),
	}
}

// Acquire blocks until a request may be issued. The first grant of a fresh
// window is immediate; later grants wait out the inter-request spacing; once
// the quota is spent the caller sleeps the rest of the window. All waits
// respect ctx cancellation, so a run can only be aborted between requests,
// never mid-flight.
func (w *Window) Acquire(ctx context.Context) error {
	for {
		w.mu.Lock()
		now := time.Now()

		// Roll the window lazily once it has fully elapsed.
		if now.Sub(w.windowStartedAt) >= w.window {
			w.requestsInWindow = 0
			w.windowStartedAt = now
		}

		var wait time.Duration
		switch {
		case w.requestsInWindow >= w.quota:
			wait = w.window - now.Sub(w.windowStartedAt)
		case !w.lastGrant.IsZero():
			if since := now.Sub(w.lastGrant); since < w.spacing {
				wait = w.spacing - since
			}
		}

		if wait <= 0 {
			w.requestsInWindow++
			w.totalRequests++
			w.lastGrant = now
			w.mu.Unlock()
			return nil
		}
		w.mu.Unlock()

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// WaitForReset sleeps until the window would roll anyway or until the
// source's reset hint, whichever is later, then starts a fresh window. Used
// when the source answers 429 despite local accounting.
func (w *Window) WaitForReset(ctx context.Context, hint time.Time) error {
	w.mu.Lock()
	until := w.windowStartedAt.Add(w.window)
	if hint.After(until) {
		until = hint
	}
	w.mu.Unlock()

	if d := time.Until(until); d > 0 {
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
	w.Reset()
	return nil
}

// ResetAt reports when the current window ends and the counters roll.
func (w *Window) ResetAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.windowStartedAt.Add(w.window)
}

// Remaining reports how many grants the current window still allows.
func (w *Window) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	if time.Since(w.windowStartedAt) >= w.window {
		return w.quota
	}
	return w.quota - w.requestsInWindow
}

// Reset starts a fresh window with zero requests recorded.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.requestsInWindow = 0
	w.windowStartedAt = time.Now()
	w.lastGrant = time.Time{}
}

// Snapshot returns a copy of the current counters.
func (w *Window) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	return Snapshot{
		RequestsInWindow: w.requestsInWindow,
		WindowStartedAt:  w.windowStartedAt,
		TotalRequests:    w.totalRequests,
	}
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
