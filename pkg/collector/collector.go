package collector

import (
	"context"
	"fmt"
	"time"

	errs "xengage/pkg/errors"
	"xengage/pkg/logger"
	"xengage/pkg/models"
	"xengage/pkg/ratelimit"
)

// Stage names the collection phase a diagnostic came from.
type Stage string

const (
	StageMetadata Stage = "metadata"
	StageLikes    Stage = "likes"
	StageReposts  Stage = "reposts"
	StageReplies  Stage = "replies"
	StageFallback Stage = "fallback"
)

// Diagnostic records a sub-step failure or anomaly that was downgraded so
// the run could continue.
type Diagnostic struct {
	Stage Stage                  `json:"stage"`
	Kind  models.InteractionKind `json:"kind,omitempty"`
	Err   string                 `json:"error"`
}

// Options control what a collection run does.
type Options struct {
	// SkipLikes and SkipReposts drop those fetches entirely. Replies are
	// never skippable; they are what the fallback machinery exists for.
	SkipLikes   bool
	SkipReposts bool

	// ForceFallback requests browser extraction regardless of post age or
	// engagement hints.
	ForceFallback bool

	// NoFallback suppresses browser extraction even when the policy asks
	// for it. The decision is still computed and reported.
	NoFallback bool

	// FallbackCap bounds how many candidates the extractor may accumulate.
	// Zero means no cap beyond the extractor's own step limit.
	FallbackCap int

	// MaxPages and RateLimitRetries tune the pager; zero keeps defaults.
	MaxPages         int
	RateLimitRetries int
}

// Request identifies the post a run collects for.
type Request struct {
	PostID  string
	PostURL string
}

// Result is everything one collection run produced.
type Result struct {
	PostID   string               `json:"post_id"`
	Metadata *models.PostMetadata `json:"metadata,omitempty"`

	Likes    []models.InteractionRecord `json:"likes"`
	Reposts  []models.InteractionRecord `json:"reposts"`
	Replies  []models.InteractionRecord `json:"replies"`
	Combined []models.InteractionRecord `json:"combined"`

	Counts      map[models.InteractionKind]int `json:"counts"`
	Decision    Decision                       `json:"decision"`
	Diagnostics []Diagnostic                   `json:"diagnostics,omitempty"`
	Requests    ratelimit.Snapshot             `json:"requests"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Empty reports whether the run collected nothing at all. Callers present
// this as a distinct outcome from a populated export.
func (r *Result) Empty() bool {
	return len(r.Combined) == 0
}

func (r *Result) diag(stage Stage, kind models.InteractionKind, msg string) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Stage: stage, Kind: kind, Err: msg})
}

// Collector sequences one post's collection: metadata, the three paged
// fetches, the fallback decision and merge. Each sub-step failure is
// downgraded to a diagnostic; no single resource kind can abort the run.
type Collector struct {
	source    PageSource
	window    *ratelimit.Window
	extractor Extractor
	opts      Options
	logger    logger.Logger
	now       func() time.Time
}

// New creates a collector. extractor may be nil when no browser is
// available; fallback is then reported as skipped. window may be nil to get
// the platform default budget.
func New(source PageSource, window *ratelimit.Window, extractor Extractor, opts Options, log logger.Logger) *Collector {
	if log == nil {
		log = logger.GetLogger()
	}
	if window == nil {
		window = ratelimit.NewWindow(0, 0, 0)
	}
	return &Collector{
		source:    source,
		window:    window,
		extractor: extractor,
		opts:      opts,
		logger:    log,
		now:       time.Now,
	}
}

// Run executes the collection pipeline for one post. The returned result is
// always usable, also on error: cancellation and sub-step failures leave the
// partial data in place so the caller can still export it.
func (c *Collector) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{
		PostID:    req.PostID,
		StartedAt: c.now(),
	}

	c.logger.InfoWithFields("collection started", map[string]interface{}{
		"post_id":      req.PostID,
		"skip_likes":   c.opts.SkipLikes,
		"skip_reposts": c.opts.SkipReposts,
	})

	res.Metadata = c.fetchMetadata(ctx, res)
	if err := ctx.Err(); err != nil {
		return c.finish(res), err
	}

	pager := NewPager(c.source, c.window, c.logger).
		WithLimits(c.opts.MaxPages, c.opts.RateLimitRetries)

	var hints models.EngagementCounts
	if res.Metadata != nil {
		hints = res.Metadata.Engagement
	}

	if c.opts.SkipLikes {
		c.logger.Info("skipping likes collection")
	} else {
		res.Likes = c.fetchKind(ctx, pager, models.ResourceLikes, res)
		c.noteHintMismatch(res, models.ResourceLikes, len(res.Likes), hints.Likes)
	}
	if err := ctx.Err(); err != nil {
		return c.finish(res), err
	}

	if c.opts.SkipReposts {
		c.logger.Info("skipping reposts collection")
	} else {
		res.Reposts = c.fetchKind(ctx, pager, models.ResourceReposts, res)
		c.noteHintMismatch(res, models.ResourceReposts, len(res.Reposts), hints.Reposts)
	}
	if err := ctx.Err(); err != nil {
		return c.finish(res), err
	}

	res.Replies = c.fetchReplies(ctx, pager, res)
	if err := ctx.Err(); err != nil {
		return c.finish(res), err
	}

	ageDays := 0.0
	if res.Metadata != nil {
		ageDays = res.Metadata.AgeDays(c.now())
	}
	res.Decision = Decide(ageDays, len(res.Replies), hints.Replies, c.opts.ForceFallback)
	c.logger.InfoWithFields("fallback decision", map[string]interface{}{
		"should_fallback": res.Decision.ShouldFallback,
		"reason":          string(res.Decision.Reason),
		"age_days":        fmt.Sprintf("%.1f", ageDays),
		"api_replies":     len(res.Replies),
		"reply_hint":      hints.Replies,
	})

	if res.Decision.ShouldFallback {
		c.runFallback(ctx, req, res)
		if err := ctx.Err(); err != nil {
			return c.finish(res), err
		}
	}

	return c.finish(res), nil
}

// fetchMetadata looks up post age and engagement hints. The lookup is not
// charged against the paged-request budget (separate API bucket). Failure
// is a diagnostic, not a run failure: the policy then sees age 0 and no
// hints.
func (c *Collector) fetchMetadata(ctx context.Context, res *Result) *models.PostMetadata {
	source, ok := c.source.(MetadataSource)
	if !ok {
		return nil
	}

	meta, err := source.FetchPostMetadata(ctx)
	if err != nil {
		res.diag(StageMetadata, "", err.Error())
		c.logger.WarnWithFields("post metadata unavailable", map[string]interface{}{
			"post_id": res.PostID,
			"error":   err.Error(),
		})
		return nil
	}

	c.logger.InfoWithFields("post metadata fetched", map[string]interface{}{
		"post_id":    meta.PostID,
		"author":     meta.AuthorHandle,
		"created_at": meta.CreatedAt,
		"likes":      meta.Engagement.Likes,
		"reposts":    meta.Engagement.Reposts,
		"replies":    meta.Engagement.Replies,
	})
	return meta
}

// fetchKind runs one paged fetch, downgrading errors to diagnostics and
// keeping whatever was collected before the failure.
func (c *Collector) fetchKind(ctx context.Context, pager *Pager, kind models.ResourceKind, res *Result) []models.InteractionRecord {
	items, err := pager.FetchAll(ctx, kind)
	if err != nil {
		res.diag(stageFor(kind), kind.Kind(), err.Error())
		c.logger.WarnWithFields("fetch failed, continuing with partial data", map[string]interface{}{
			"resource": string(kind),
			"items":    len(items),
			"error":    err.Error(),
		})
	}
	return items
}

// fetchReplies walks the reply query strategies in order. The first strategy
// whose full pagination run yields any record is authoritative; later
// strategies are never unioned in. A terminal error ends the walk.
func (c *Collector) fetchReplies(ctx context.Context, pager *Pager, res *Result) []models.InteractionRecord {
	source, ok := c.source.(ReplyStrategySource)
	if !ok {
		return c.fetchKind(ctx, pager, models.ResourceReplies, res)
	}

	strategies := source.ReplyStrategies()
	if strategies <= 0 {
		return c.fetchKind(ctx, pager, models.ResourceReplies, res)
	}
	for i := 0; i < strategies; i++ {
		source.SelectReplyStrategy(i)
		if i > 0 {
			c.logger.InfoWithFields("no replies found, widening query", map[string]interface{}{
				"strategy": i + 1,
				"of":       strategies,
			})
		}

		items, err := pager.FetchAll(ctx, models.ResourceReplies)
		if err != nil {
			res.diag(StageReplies, models.KindReply, err.Error())
			c.logger.WarnWithFields("replies fetch failed, continuing with partial data", map[string]interface{}{
				"strategy": i + 1,
				"items":    len(items),
				"error":    err.Error(),
			})
			return items
		}
		if len(items) > 0 || i == strategies-1 {
			return items
		}
	}
	return nil
}

// noteHintMismatch records the zero-results-with-nonzero-hint anomaly for
// likes and reposts. For replies the same signal feeds the fallback decision
// instead.
func (c *Collector) noteHintMismatch(res *Result, kind models.ResourceKind, got, hint int) {
	if got != 0 || hint <= 0 {
		return
	}
	if len(res.Diagnostics) > 0 && res.Diagnostics[len(res.Diagnostics)-1].Stage == stageFor(kind) {
		// The fetch already failed; a mismatch note on top would be noise.
		return
	}

	res.diag(stageFor(kind), kind.Kind(), fmt.Sprintf("zero records returned while the engagement hint reports %d", hint))
	c.logger.WarnWithFields("engagement hint mismatch", map[string]interface{}{
		"resource": string(kind),
		"returned": got,
		"hint":     hint,
	})
}

// runFallback drives the browser extractor and merges its candidates into
// the reply set. RenderUnavailable means "fallback skipped", never "zero
// replies": the API reply set always stands.
func (c *Collector) runFallback(ctx context.Context, req Request, res *Result) {
	if c.opts.NoFallback {
		res.diag(StageFallback, models.KindReply, fmt.Sprintf("fallback suggested (%s) but disabled by configuration", res.Decision.Reason))
		c.logger.Info("fallback suggested but disabled, keeping API results only")
		return
	}
	if c.extractor == nil {
		res.diag(StageFallback, models.KindReply, "no browser extractor configured, fallback skipped")
		c.logger.Warn("fallback requested but no extractor is configured")
		return
	}

	candidates, err := c.extractor.Collect(ctx, req.PostURL, res.Replies, c.opts.FallbackCap)
	if err != nil {
		res.diag(StageFallback, models.KindReply, err.Error())
		if errs.IsRenderUnavailable(err) {
			c.logger.WarnWithFields("browser render unavailable, fallback skipped", map[string]interface{}{
				"post_url": req.PostURL,
				"error":    err.Error(),
			})
		} else {
			c.logger.WarnWithFields("fallback extraction failed", map[string]interface{}{
				"post_url":   req.PostURL,
				"candidates": len(candidates),
				"error":      err.Error(),
			})
		}
	}
	if len(candidates) == 0 {
		return
	}

	secondary := make([]models.InteractionRecord, 0, len(candidates))
	for _, cand := range candidates {
		secondary = append(secondary, cand.Record())
	}

	before := len(res.Replies)
	res.Replies = Merge(res.Replies, secondary)
	c.logger.InfoWithFields("fallback candidates merged", map[string]interface{}{
		"candidates": len(candidates),
		"net_new":    len(res.Replies) - before,
		"replies":    len(res.Replies),
	})
}

// finish assembles the combined set and counters. Also called on abort so a
// cancelled run still reports coherently.
func (c *Collector) finish(res *Result) *Result {
	res.Combined = make([]models.InteractionRecord, 0, len(res.Likes)+len(res.Reposts)+len(res.Replies))
	res.Combined = append(res.Combined, res.Likes...)
	res.Combined = append(res.Combined, res.Reposts...)
	res.Combined = append(res.Combined, res.Replies...)

	res.Counts = map[models.InteractionKind]int{
		models.KindLike:   len(res.Likes),
		models.KindRepost: len(res.Reposts),
		models.KindReply:  len(res.Replies),
	}
	res.Requests = c.window.Snapshot()
	res.FinishedAt = c.now()

	if res.Empty() {
		c.logger.WarnWithFields("collection finished with no records", map[string]interface{}{
			"post_id":     res.PostID,
			"diagnostics": len(res.Diagnostics),
		})
	} else {
		c.logger.InfoWithFields("collection finished", map[string]interface{}{
			"post_id":  res.PostID,
			"likes":    res.Counts[models.KindLike],
			"reposts":  res.Counts[models.KindRepost],
			"replies":  res.Counts[models.KindReply],
			"combined": len(res.Combined),
			"requests": res.Requests.TotalRequests,
		})
	}
	return res
}

func stageFor(kind models.ResourceKind) Stage {
	switch kind {
	case models.ResourceLikes:
		return StageLikes
	case models.ResourceReposts:
		return StageReposts
	default:
		return StageReplies
	}
}
