package collector

import (
	"context"
	"time"

	"xengage/pkg/models"
)

// PageSource fetches one page of a paged engagement resource. Implementations
// wrap the platform API; the collector never builds requests itself.
type PageSource interface {
	FetchPage(ctx context.Context, kind models.ResourceKind, cursor string) (models.Page, error)
}

// MetadataSource is implemented by sources that can also look up the post's
// metadata. The lookup lives in its own API bucket and is not charged against
// the paged-request budget.
type MetadataSource interface {
	FetchPostMetadata(ctx context.Context) (*models.PostMetadata, error)
}

// ReplyStrategySource is implemented by sources that expose more than one
// reply query strategy. The collector walks strategies in order and treats
// the first one that yields any record as authoritative.
type ReplyStrategySource interface {
	ReplyStrategies() int
	SelectReplyStrategy(i int)
}

// Extractor is the browser-driven fallback invoked when the eligibility
// policy asks for it. prior is diagnostic input only; implementations must
// not use it to filter output.
type Extractor interface {
	Collect(ctx context.Context, postURL string, prior []models.InteractionRecord, limit int) ([]models.Candidate, error)
}

// Budget is the slice of the rate window the pager depends on. Acquire must
// be called immediately before every page fetch.
type Budget interface {
	Acquire(ctx context.Context) error
	ResetAt() time.Time
}
