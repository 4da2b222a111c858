package models

import (
	"strings"
	"time"
)

// InteractionKind labels which engagement surface a record came from.
type InteractionKind string

const (
	KindLike   InteractionKind = "Like"
	KindRepost InteractionKind = "Repost"
	KindReply  InteractionKind = "Reply"
)

// ResourceKind names the paged API resources the collector walks.
type ResourceKind string

const (
	ResourceLikes   ResourceKind = "likes"
	ResourceReposts ResourceKind = "reposts"
	ResourceReplies ResourceKind = "replies"
)

// Kind maps a paged resource to the interaction kind its records carry.
func (r ResourceKind) Kind() InteractionKind {
	switch r {
	case ResourceLikes:
		return KindLike
	case ResourceReposts:
		return KindRepost
	default:
		return KindReply
	}
}

// UserIdentity identifies one account. PlatformUserID is authoritative when
// present (API records always carry it); browser-sourced identities may have
// only a handle. Handles are stored without the leading "@".
type UserIdentity struct {
	Handle         string `json:"handle"`
	DisplayName    string `json:"display_name"`
	PlatformUserID string `json:"platform_user_id,omitempty"`
}

// NormalizeHandle strips a leading "@" and lowercases for comparison.
// Display forms keep their original casing; only matching is folded.
func NormalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}

// SameHandle reports whether two handles refer to the same account.
func SameHandle(a, b string) bool {
	return NormalizeHandle(a) == NormalizeHandle(b)
}

// InteractionRecord is one collected engagement. ReplyText, ReplySourceID and
// ObservedAt are populated only for Reply records, and only when the source
// had them. Records are never mutated after creation; merging allocates new
// slices.
type InteractionRecord struct {
	Identity      UserIdentity    `json:"identity"`
	Kind          InteractionKind `json:"kind"`
	ReplyText     string          `json:"reply_text,omitempty"`
	ReplySourceID string          `json:"reply_source_id,omitempty"`
	ObservedAt    time.Time       `json:"observed_at,omitempty"`
}

// Page is one fetch result from a paged resource. An empty ContinuationCursor
// means this was the last page.
type Page struct {
	Items              []InteractionRecord
	ContinuationCursor string
}

// EngagementCounts are the public metric hints attached to a post.
type EngagementCounts struct {
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
	Replies int `json:"replies"`
	Quotes  int `json:"quotes"`
}

// PostMetadata is the per-post context fetched once before collection starts.
type PostMetadata struct {
	PostID       string           `json:"post_id"`
	AuthorID     string           `json:"author_id"`
	AuthorHandle string           `json:"author_handle"`
	CreatedAt    time.Time        `json:"created_at"`
	Engagement   EngagementCounts `json:"engagement"`
}

// AgeDays returns the post age at now, in fractional days.
func (m PostMetadata) AgeDays(now time.Time) float64 {
	return now.Sub(m.CreatedAt).Hours() / 24
}

// RawFragment is what the browser renderer hands back for one visible reply.
// Every field is best-effort and may be empty, truncated or noisy; nothing is
// trusted until identity resolution accepts the fragment.
type RawFragment struct {
	SourceID    string `json:"source_id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	ProfileURL  string `json:"profile_url"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
}

// Candidate is a fragment that survived identity resolution. Candidates are
// still browser-derived heuristics, not yet merged records.
type Candidate struct {
	Identity   UserIdentity
	Text       string
	SourceID   string
	ObservedAt time.Time
}

// Record converts a candidate into a Reply interaction record.
func (c Candidate) Record() InteractionRecord {
	return InteractionRecord{
		Identity:      c.Identity,
		Kind:          KindReply,
		ReplyText:     c.Text,
		ReplySourceID: c.SourceID,
		ObservedAt:    c.ObservedAt,
	}
}
