// Package ratelimit provides the fixed-window request budget the engagement
// endpoints impose.
//
// The platform allows a small fixed number of requests per wall-clock window
// (25 per 15 minutes by default here). The Window type enforces that budget
// plus an inter-request spacing, so a paginated fetch never trips the
// server-side limiter in normal operation:
//
//   - first grant of a fresh window is immediate
//   - each later grant waits out the spacing since the previous grant
//   - once the quota is spent, the caller sleeps the remainder of the window
//
// Usage:
//
//	window := ratelimit.NewWindow(25, 15*time.Minute, 40*time.Second)
//
//	for hasMore {
//	    if err := window.Acquire(ctx); err != nil {
//	        return err // cancelled between requests
//	    }
//	    page, err := fetch(cursor)
//	    ...
//	}
//
// One Window belongs to one collection run. Runs that share a credential may
// share a Window; it is mutex-guarded for exactly that case.
package ratelimit
