package collector

import (
	"context"
	"sync"
	"time"

	errs "xengage/pkg/errors"
	"xengage/pkg/logger"
	"xengage/pkg/models"
	"xengage/pkg/retry"
)

const (
	// DefaultMaxPages bounds one pagination run. At 100 items per page this
	// covers 50k records; the cap exists so a source that keeps handing out
	// cursors can never spin the run forever.
	DefaultMaxPages = 500

	// DefaultRateLimitRetries bounds how often one page is refetched after
	// the source answers 429 despite local accounting.
	DefaultRateLimitRetries = 3
)

// Pager walks one paged resource under the shared request budget. Every page
// fetch acquires the budget first, so the requests-in-window counter can
// never exceed the quota at the moment a request goes out.
type Pager struct {
	source           PageSource
	budget           Budget
	logger           logger.Logger
	maxPages         int
	rateLimitRetries int
}

// NewPager creates a pager over the given source and budget.
func NewPager(source PageSource, budget Budget, log logger.Logger) *Pager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pager{
		source:           source,
		budget:           budget,
		logger:           log,
		maxPages:         DefaultMaxPages,
		rateLimitRetries: DefaultRateLimitRetries,
	}
}

// WithLimits returns a pager with adjusted page and refetch bounds.
// Non-positive values keep the defaults.
func (p *Pager) WithLimits(maxPages, rateLimitRetries int) *Pager {
	np := *p
	if maxPages > 0 {
		np.maxPages = maxPages
	}
	if rateLimitRetries > 0 {
		np.rateLimitRetries = rateLimitRetries
	}
	return &np
}

// FetchAll walks every page of the resource and returns the records in
// arrival order. The source's ordering is a relevance ranking and stays
// authoritative for downstream tie-breaks, so nothing is re-sorted.
//
// Errors end the run for this resource but never discard what was already
// collected: the partial records come back together with the error.
func (p *Pager) FetchAll(ctx context.Context, kind models.ResourceKind) ([]models.InteractionRecord, error) {
	var items []models.InteractionRecord
	cursor := ""

	for page := 0; page < p.maxPages; page++ {
		result, err := p.fetchPage(ctx, kind, cursor)
		if err != nil {
			p.logger.WarnWithFields("pagination ended on error", map[string]interface{}{
				"resource": string(kind),
				"pages":    page,
				"items":    len(items),
				"error":    err.Error(),
			})
			return items, err
		}

		items = append(items, result.Items...)
		p.logger.DebugWithFields("page fetched", map[string]interface{}{
			"resource":    string(kind),
			"page":        page + 1,
			"page_items":  len(result.Items),
			"total_items": len(items),
			"has_more":    result.ContinuationCursor != "",
		})

		if result.ContinuationCursor == "" {
			return items, nil
		}
		cursor = result.ContinuationCursor
	}

	p.logger.WarnWithFields("pagination stopped at page cap", map[string]interface{}{
		"resource":  string(kind),
		"max_pages": p.maxPages,
		"items":     len(items),
	})
	return items, nil
}

// fetchPage acquires the budget and fetches one page. A rate-limited answer
// is recoverable: the refetch waits out the window (stretched to the source's
// reset hint) and tries again, a bounded number of times. Everything else is
// terminal for the resource.
func (p *Pager) fetchPage(ctx context.Context, kind models.ResourceKind, cursor string) (models.Page, error) {
	backoff := &windowBackoff{budget: p.budget}

	cfg := &retry.Config{
		MaxAttempts: p.rateLimitRetries + 1,
		Backoff:     backoff,
		Context:     ctx,
		Logger:      p.logger,
		RetryIf: func(err error) bool {
			if !errs.IsRateLimited(err) {
				return false
			}
			backoff.observe(err)
			return true
		},
	}

	return retry.DoWithResult(func() (models.Page, error) {
		if err := p.budget.Acquire(ctx); err != nil {
			return models.Page{}, err
		}
		return p.source.FetchPage(ctx, kind, cursor)
	}, cfg)
}

// windowBackoff sizes rate-limited refetch delays to the window remainder,
// stretched to the source's reset hint when the error carried one.
type windowBackoff struct {
	budget Budget

	mu   sync.Mutex
	hint time.Time
}

func (b *windowBackoff) observe(err error) {
	if at, ok := errs.ResetHint(err); ok {
		b.mu.Lock()
		if at.After(b.hint) {
			b.hint = at
		}
		b.mu.Unlock()
	}
}

func (b *windowBackoff) NextDelay(int) time.Duration {
	b.mu.Lock()
	hint := b.hint
	b.hint = time.Time{}
	b.mu.Unlock()

	until := b.budget.ResetAt()
	if hint.After(until) {
		until = hint
	}

	delay := time.Until(until)
	if delay < 0 {
		delay = 0
	}
	return delay
}

func (b *windowBackoff) Reset() {}
