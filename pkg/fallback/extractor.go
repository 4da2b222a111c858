package fallback

import (
	"context"
	"fmt"
	"time"

	errs "xengage/pkg/errors"
	"xengage/pkg/logger"
	"xengage/pkg/models"
)

const (
	// DefaultStabilityThreshold is how many consecutive reveal steps may
	// yield nothing new before the page is considered fully loaded.
	DefaultStabilityThreshold = 3

	// DefaultMaxRevealSteps bounds the total wall-clock cost of one
	// extraction regardless of how the page behaves.
	DefaultMaxRevealSteps = 30

	// DefaultSettleDelay is the wait between a reveal action and the
	// extraction that follows it. Lazy-loaded content needs this long to
	// land; extracting immediately reads a stale DOM and undercounts.
	DefaultSettleDelay = 1500 * time.Millisecond

	// provisionalTextKeyLen mirrors the cross-source merge rule's text
	// prefix length.
	provisionalTextKeyLen = 50
)

// Renderer is the browser collaborator the extractor drives. Open failing
// means the fallback cannot run at all and must surface as RenderUnavailable.
type Renderer interface {
	Open(ctx context.Context, postURL string) error
	Reveal(ctx context.Context) error
	Extract(ctx context.Context) ([]models.RawFragment, error)
	Close() error
}

// Extractor collects reply candidates from a rendered conversation page by
// repeatedly revealing more content until the page stabilizes.
type Extractor struct {
	renderer Renderer
	resolver *Resolver
	logger   logger.Logger

	settle    time.Duration
	threshold int
	maxSteps  int
}

// NewExtractor creates an extractor with the default tuning.
func NewExtractor(renderer Renderer, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Extractor{
		renderer:  renderer,
		resolver:  NewResolver(),
		logger:    log,
		settle:    DefaultSettleDelay,
		threshold: DefaultStabilityThreshold,
		maxSteps:  DefaultMaxRevealSteps,
	}
}

// WithTuning returns a copy with the given knobs. Non-positive values keep
// the defaults.
func (e *Extractor) WithTuning(settle time.Duration, threshold, maxSteps int) *Extractor {
	out := *e
	if settle > 0 {
		out.settle = settle
	}
	if threshold > 0 {
		out.threshold = threshold
	}
	if maxSteps > 0 {
		out.maxSteps = maxSteps
	}
	return &out
}

// Collect opens the post page and walks the reveal loop. Each step reveals
// more content, waits for it to settle, extracts every visible fragment and
// resolves identities; fragments with no resolvable handle are silently
// dropped. A step yielding zero net-new candidates bumps the stability
// counter, any net-new resets it. The loop stops when the counter reaches
// the threshold, the candidate count reaches limit, or the step budget runs
// out.
//
// prior is the API's reply set, passed for the overlap log line only; it
// never filters the output. Mid-loop failures return the candidates
// accumulated so far together with the error.
func (e *Extractor) Collect(ctx context.Context, postURL string, prior []models.InteractionRecord, limit int) ([]models.Candidate, error) {
	if e.renderer == nil {
		return nil, errs.RenderUnavailable("no renderer configured")
	}
	if err := e.renderer.Open(ctx, postURL); err != nil {
		if errs.IsRenderUnavailable(err) {
			return nil, err
		}
		return nil, errs.RenderUnavailable("opening %s: %v", postURL, err)
	}
	defer e.renderer.Close()

	e.logger.InfoWithFields("browser extraction started", map[string]interface{}{
		"post_url":    postURL,
		"api_replies": len(prior),
		"limit":       limit,
		"max_steps":   e.maxSteps,
	})

	seen := make(map[string]struct{})
	var out []models.Candidate
	stable := 0
	discarded := 0
	reason := "step limit reached"

	for step := 1; step <= e.maxSteps; step++ {
		if err := e.renderer.Reveal(ctx); err != nil {
			return out, fmt.Errorf("reveal step %d: %w", step, err)
		}
		if err := e.wait(ctx); err != nil {
			return out, err
		}
		fragments, err := e.renderer.Extract(ctx)
		if err != nil {
			return out, fmt.Errorf("extract step %d: %w", step, err)
		}

		net := 0
		for _, frag := range fragments {
			identity, ok := e.resolver.Resolve(frag)
			if !ok {
				discarded++
				continue
			}
			key := provisionalKey(frag.SourceID, identity.Handle, frag.Text)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, newCandidate(frag, identity))
			net++
			if limit > 0 && len(out) >= limit {
				break
			}
		}

		if net == 0 {
			stable++
		} else {
			stable = 0
		}
		e.logger.DebugWithFields("reveal step finished", map[string]interface{}{
			"step":         step,
			"fragments":    len(fragments),
			"net_new":      net,
			"candidates":   len(out),
			"stable_steps": stable,
		})

		if stable >= e.threshold {
			reason = "content stabilized"
			break
		}
		if limit > 0 && len(out) >= limit {
			reason = "candidate limit reached"
			break
		}
	}

	e.logger.InfoWithFields("browser extraction finished", map[string]interface{}{
		"candidates":       len(out),
		"discarded":        discarded,
		"expected_overlap": expectedOverlap(prior, out),
		"stopped":          reason,
	})
	return out, nil
}

func (e *Extractor) wait(ctx context.Context) error {
	timer := time.NewTimer(e.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// provisionalKey is the within-run identity used for net-new counting: the
// reply id when present, else handle plus a text prefix. It mirrors the
// cross-source merge rule so the overlap log stays meaningful.
func provisionalKey(sourceID, handle, text string) string {
	if sourceID != "" {
		return "id:" + sourceID
	}
	return "ht:" + models.NormalizeHandle(handle) + ":" + textPrefix(text)
}

func textPrefix(s string) string {
	runes := []rune(s)
	if len(runes) > provisionalTextKeyLen {
		runes = runes[:provisionalTextKeyLen]
	}
	return string(runes)
}

func newCandidate(frag models.RawFragment, identity models.UserIdentity) models.Candidate {
	cand := models.Candidate{
		Identity: identity,
		Text:     frag.Text,
		SourceID: frag.SourceID,
	}
	if frag.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, frag.Timestamp); err == nil {
			cand.ObservedAt = ts
		}
	}
	return cand
}

// expectedOverlap counts candidates that look like records the API already
// returned, by reply id or by handle plus text prefix. Informational only;
// the real merge happens downstream.
func expectedOverlap(prior []models.InteractionRecord, candidates []models.Candidate) int {
	if len(prior) == 0 || len(candidates) == 0 {
		return 0
	}

	ids := make(map[string]struct{}, len(prior))
	composites := make(map[string]struct{}, len(prior))
	for _, rec := range prior {
		if rec.ReplySourceID != "" {
			ids[rec.ReplySourceID] = struct{}{}
		}
		composites[compositeKey(rec.Identity.Handle, rec.ReplyText)] = struct{}{}
	}

	n := 0
	for _, cand := range candidates {
		if cand.SourceID != "" {
			if _, ok := ids[cand.SourceID]; ok {
				n++
				continue
			}
		}
		if _, ok := composites[compositeKey(cand.Identity.Handle, cand.Text)]; ok {
			n++
		}
	}
	return n
}

func compositeKey(handle, text string) string {
	return models.NormalizeHandle(handle) + ":" + textPrefix(text)
}
