package fallback

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "xengage/pkg/errors"
	"xengage/pkg/logger"
	"xengage/pkg/models"
)

// scriptedRenderer plays back one DOM view per extract call. When the script
// runs out it keeps returning the last view, like a page that stopped
// loading new content.
type scriptedRenderer struct {
	views [][]models.RawFragment

	openErr     error
	revealErrAt int
	revealErr   error
	extractErr  error

	opened   string
	reveals  int
	extracts int
	closed   bool
}

func (r *scriptedRenderer) Open(ctx context.Context, postURL string) error {
	r.opened = postURL
	return r.openErr
}

func (r *scriptedRenderer) Reveal(ctx context.Context) error {
	r.reveals++
	if r.revealErrAt > 0 && r.reveals >= r.revealErrAt {
		return r.revealErr
	}
	return nil
}

func (r *scriptedRenderer) Extract(ctx context.Context) ([]models.RawFragment, error) {
	if r.extractErr != nil {
		return nil, r.extractErr
	}
	r.extracts++
	if len(r.views) == 0 {
		return nil, nil
	}
	idx := r.extracts - 1
	if idx >= len(r.views) {
		idx = len(r.views) - 1
	}
	return r.views[idx], nil
}

func (r *scriptedRenderer) Close() error {
	r.closed = true
	return nil
}

func frag(handle, text, id string) models.RawFragment {
	return models.RawFragment{SourceID: id, Handle: handle, Text: text}
}

func fastExtractor(r Renderer) (*Extractor, *logger.TestLogger) {
	log := logger.NewTestLogger()
	e := NewExtractor(r, log).WithTuning(time.Millisecond, 0, 0)
	return e, log
}

func TestExtractorStopsWhenContentStabilizes(t *testing.T) {
	view1 := []models.RawFragment{
		frag("alice", "first", "501"),
		frag("bob", "second", "502"),
		frag("carol", "third", "503"),
	}
	view2 := append(append([]models.RawFragment{}, view1...),
		frag("dave", "fourth", "504"),
		frag("erin", "fifth", "505"),
	)
	// Net-new per step: 3, 2, 0, 0, 0. With a threshold of three zero
	// steps the loop must stop after the fifth.
	renderer := &scriptedRenderer{views: [][]models.RawFragment{view1, view2, view2, view2, view2}}

	e, _ := fastExtractor(renderer)
	candidates, err := e.Collect(context.Background(), "https://x.com/alice/status/1001", nil, 0)

	require.NoError(t, err)
	require.Len(t, candidates, 5)
	assert.Equal(t, 5, renderer.reveals)
	assert.Equal(t, 5, renderer.extracts)
	assert.True(t, renderer.closed)
	assert.Equal(t, "https://x.com/alice/status/1001", renderer.opened)

	// Accumulation preserves first-seen order.
	assert.Equal(t, "alice", candidates[0].Identity.Handle)
	assert.Equal(t, "erin", candidates[4].Identity.Handle)
	assert.Equal(t, "504", candidates[3].SourceID)
}

func TestExtractorHonorsLimit(t *testing.T) {
	var views [][]models.RawFragment
	var all []models.RawFragment
	for i := 0; i < 10; i++ {
		for j := 0; j < 3; j++ {
			n := i*3 + j
			all = append(all, frag(fmt.Sprintf("user%d", n), "text", fmt.Sprintf("%d", 600+n)))
		}
		views = append(views, append([]models.RawFragment{}, all...))
	}
	renderer := &scriptedRenderer{views: views}

	e, _ := fastExtractor(renderer)
	candidates, err := e.Collect(context.Background(), "https://x.com/a/status/1", nil, 4)

	require.NoError(t, err)
	assert.Len(t, candidates, 4)
	assert.Equal(t, 2, renderer.reveals, "the limit lands mid second step")
}

func TestExtractorStopsAtStepBudget(t *testing.T) {
	var views [][]models.RawFragment
	var all []models.RawFragment
	for i := 0; i < 10; i++ {
		all = append(all, frag(fmt.Sprintf("user%d", i), "text", fmt.Sprintf("%d", 700+i)))
		views = append(views, append([]models.RawFragment{}, all...))
	}
	// Every step yields one new candidate, so only the step budget stops it.
	renderer := &scriptedRenderer{views: views}

	e, log := fastExtractor(renderer)
	e = e.WithTuning(0, 0, 4)
	candidates, err := e.Collect(context.Background(), "https://x.com/a/status/1", nil, 0)

	require.NoError(t, err)
	assert.Len(t, candidates, 4)
	assert.Equal(t, 4, renderer.reveals)
	assert.True(t, log.HasMessage("browser extraction finished"))
}

func TestExtractorOpenFailure(t *testing.T) {
	t.Run("renderer error passes through", func(t *testing.T) {
		want := errs.RenderUnavailable("no usable browser")
		renderer := &scriptedRenderer{openErr: want}

		e, _ := fastExtractor(renderer)
		candidates, err := e.Collect(context.Background(), "https://x.com/a/status/1", nil, 0)

		require.Error(t, err)
		assert.Same(t, want, err)
		assert.Empty(t, candidates)
		assert.Zero(t, renderer.reveals)
		assert.False(t, renderer.closed, "a session that never opened is not closed")
	})

	t.Run("untyped error is wrapped", func(t *testing.T) {
		renderer := &scriptedRenderer{openErr: errors.New("exec chrome: not found")}

		e, _ := fastExtractor(renderer)
		_, err := e.Collect(context.Background(), "https://x.com/a/status/1", nil, 0)

		require.Error(t, err)
		assert.True(t, errs.IsRenderUnavailable(err))
		assert.Contains(t, err.Error(), "exec chrome: not found")
	})

	t.Run("nil renderer", func(t *testing.T) {
		e := NewExtractor(nil, logger.NewTestLogger())
		_, err := e.Collect(context.Background(), "https://x.com/a/status/1", nil, 0)
		assert.True(t, errs.IsRenderUnavailable(err))
	})
}

func TestExtractorDiscardsUnresolvableFragments(t *testing.T) {
	view := []models.RawFragment{
		frag("alice", "resolvable", "501"),
		{DisplayName: "Ghost", Text: "nothing identifying here"},
	}
	renderer := &scriptedRenderer{views: [][]models.RawFragment{view, view, view, view}}

	e, _ := fastExtractor(renderer)
	candidates, err := e.Collect(context.Background(), "https://x.com/a/status/1", nil, 0)

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "alice", candidates[0].Identity.Handle)
}

func TestExtractorPriorNeverFiltersOutput(t *testing.T) {
	prior := []models.InteractionRecord{
		{
			Identity:      models.UserIdentity{Handle: "alice"},
			Kind:          models.KindReply,
			ReplyText:     "first",
			ReplySourceID: "501",
		},
	}
	view := []models.RawFragment{
		frag("alice", "first", "501"), // identical to the API record
		frag("bob", "second", "502"),
	}
	renderer := &scriptedRenderer{views: [][]models.RawFragment{view, view, view, view}}

	e, log := fastExtractor(renderer)
	candidates, err := e.Collect(context.Background(), "https://x.com/a/status/1", prior, 0)

	require.NoError(t, err)
	assert.Len(t, candidates, 2, "overlap with the API set is the merger's business, not ours")
	assert.True(t, log.HasMessage("browser extraction finished"))
}

func TestExtractorKeepsPartialOnRevealFailure(t *testing.T) {
	view := []models.RawFragment{
		frag("alice", "first", "501"),
		frag("bob", "second", "502"),
	}
	renderer := &scriptedRenderer{
		views:       [][]models.RawFragment{view},
		revealErrAt: 2,
		revealErr:   errors.New("target crashed"),
	}

	e, _ := fastExtractor(renderer)
	candidates, err := e.Collect(context.Background(), "https://x.com/a/status/1", nil, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reveal step 2")
	assert.Len(t, candidates, 2, "candidates from completed steps survive the failure")
	assert.True(t, renderer.closed)
}

func TestExtractorContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	renderer := &scriptedRenderer{views: [][]models.RawFragment{{frag("alice", "first", "501")}}}

	e, _ := fastExtractor(renderer)
	candidates, err := e.Collect(ctx, "https://x.com/a/status/1", nil, 0)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, candidates)
}

func TestExtractorParsesTimestamps(t *testing.T) {
	view := []models.RawFragment{
		{SourceID: "501", Handle: "alice", Text: "first", Timestamp: "2026-08-20T12:34:56Z"},
		{SourceID: "502", Handle: "bob", Text: "second", Timestamp: "yesterday-ish"},
	}
	renderer := &scriptedRenderer{views: [][]models.RawFragment{view, view, view, view}}

	e, _ := fastExtractor(renderer)
	candidates, err := e.Collect(context.Background(), "https://x.com/a/status/1", nil, 0)

	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, time.Date(2026, 8, 20, 12, 34, 56, 0, time.UTC), candidates[0].ObservedAt)
	assert.True(t, candidates[1].ObservedAt.IsZero(), "unparsable timestamps stay zero")
}

func TestProvisionalKey(t *testing.T) {
	// The reply id dominates when present.
	assert.Equal(t, provisionalKey("501", "alice", "text"), provisionalKey("501", "someoneelse", "other"))
	assert.NotEqual(t, provisionalKey("501", "alice", "text"), provisionalKey("502", "alice", "text"))

	// Without ids the composite folds handle case and cuts text at the
	// prefix length.
	long := make([]rune, provisionalTextKeyLen)
	for i := range long {
		long[i] = 'x'
	}
	base := string(long)
	assert.Equal(t, provisionalKey("", "Alice", base+"tail-a"), provisionalKey("", "alice", base+"tail-b"))
	assert.NotEqual(t, provisionalKey("", "alice", "short-a"), provisionalKey("", "alice", "short-b"))
}

func TestExpectedOverlap(t *testing.T) {
	prior := []models.InteractionRecord{
		{Identity: models.UserIdentity{Handle: "alice"}, ReplyText: "first", ReplySourceID: "501"},
		{Identity: models.UserIdentity{Handle: "bob"}, ReplyText: "second"},
	}
	candidates := []models.Candidate{
		// Matched by reply id, by handle+prefix composite, and not at all.
		{Identity: models.UserIdentity{Handle: "alice"}, Text: "first", SourceID: "501"},
		{Identity: models.UserIdentity{Handle: "BOB"}, Text: "second"},
		{Identity: models.UserIdentity{Handle: "carol"}, Text: "new"},
	}

	assert.Equal(t, 2, expectedOverlap(prior, candidates))
	assert.Equal(t, 0, expectedOverlap(nil, candidates))
	assert.Equal(t, 0, expectedOverlap(prior, nil))
}
