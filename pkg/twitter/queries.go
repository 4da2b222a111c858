package twitter

import (
	"context"
	"sync"

	errs "xengage/pkg/errors"
	"xengage/pkg/models"
)

// PostSource adapts a Client to one post's paged resources. It also owns the
// reply search strategies: recent search has no direct replied-by endpoint,
// so replies come from query operators of decreasing precision. The first
// strategy whose full walk yields any record is authoritative.
type PostSource struct {
	client *Client
	postID string

	mu      sync.Mutex
	queries []string
	active  int
}

// NewPostSource builds a source for one post id.
func NewPostSource(client *Client, postID string) *PostSource {
	return &PostSource{
		client:  client,
		postID:  postID,
		queries: ReplyQueries(postID),
	}
}

// PostID returns the post this source reads.
func (s *PostSource) PostID() string {
	return s.postID
}

// FetchPage fetches one page of the given resource.
func (s *PostSource) FetchPage(ctx context.Context, kind models.ResourceKind, cursor string) (models.Page, error) {
	switch kind {
	case models.ResourceLikes:
		return s.client.FetchLikersPage(ctx, s.postID, cursor)
	case models.ResourceReposts:
		return s.client.FetchRepostersPage(ctx, s.postID, cursor)
	case models.ResourceReplies:
		return s.fetchRepliesPage(ctx, cursor)
	default:
		return models.Page{}, errs.New(errs.ErrorTypeUnknown, 0, "unknown resource %q", kind)
	}
}

// FetchPostMetadata fetches the post's author, age and public counters.
func (s *PostSource) FetchPostMetadata(ctx context.Context) (*models.PostMetadata, error) {
	return s.client.LookupPost(ctx, s.postID)
}

// ReplyStrategies reports how many reply query strategies this source has.
func (s *PostSource) ReplyStrategies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

// SelectReplyStrategy switches subsequent reply pages to strategy i.
// Out-of-range values are clamped.
func (s *PostSource) SelectReplyStrategy(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 {
		i = 0
	}
	if i >= len(s.queries) {
		i = len(s.queries) - 1
	}
	s.active = i
}

func (s *PostSource) activeQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[s.active]
}

func (s *PostSource) fetchRepliesPage(ctx context.Context, cursor string) (models.Page, error) {
	page, err := s.client.FetchRepliesPage(ctx, s.activeQuery(), cursor)
	if err != nil {
		return models.Page{}, err
	}

	// The widest conversation query matches the root post too; a post is not
	// a reply to itself.
	kept := page.Items[:0]
	for _, rec := range page.Items {
		if rec.ReplySourceID == s.postID {
			continue
		}
		kept = append(kept, rec)
	}
	page.Items = kept
	return page, nil
}
