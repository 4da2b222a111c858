package twitter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "xengage/pkg/errors"
	"xengage/pkg/logger"
	"xengage/pkg/models"
	"xengage/pkg/retry"
)

// newTestClient wires a client to an httptest server with fast retries.
func newTestClient(t *testing.T, handler http.Handler, opts Options) (*Client, *logger.TestLogger, func()) {
	t.Helper()

	srv := httptest.NewServer(handler)
	opts.BaseURL = srv.URL
	if opts.BearerToken == "" {
		opts.BearerToken = "test-token"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}

	log := logger.NewTestLogger()
	client := NewClient(opts, log)
	client.netRetry.Backoff = &retry.ConstantBackoff{Delay: time.Millisecond}

	return client, log, srv.Close
}

func TestFetchLikersPage(t *testing.T) {
	var (
		mu       sync.Mutex
		gotAuth  string
		gotQuery map[string]string
	)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		gotQuery = map[string]string{
			"max_results":      r.URL.Query().Get("max_results"),
			"user.fields":      r.URL.Query().Get("user.fields"),
			"pagination_token": r.URL.Query().Get("pagination_token"),
		}
		mu.Unlock()

		assert.Equal(t, "/tweets/1001/liking_users", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"data": [
				{"id": "11", "name": "Alice Doe", "username": "AliceDoe"},
				{"id": "12", "name": "Bob", "username": "bob_b"}
			],
			"meta": {"result_count": 2, "next_token": "page2"}
		}`)
	})

	client, _, done := newTestClient(t, handler, Options{PageSize: 50})
	defer done()

	page, err := client.FetchLikersPage(context.Background(), "1001", "")
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "50", gotQuery["max_results"])
	assert.Equal(t, "id,name,username", gotQuery["user.fields"])
	assert.Empty(t, gotQuery["pagination_token"])
	mu.Unlock()

	require.Len(t, page.Items, 2)
	assert.Equal(t, "page2", page.ContinuationCursor)

	first := page.Items[0]
	assert.Equal(t, models.KindLike, first.Kind)
	assert.Equal(t, "alicedoe", first.Identity.Handle)
	assert.Equal(t, "Alice Doe", first.Identity.DisplayName)
	assert.Equal(t, "11", first.Identity.PlatformUserID)
	assert.True(t, first.ObservedAt.IsZero(), "likes carry no observation time")
	assert.Empty(t, first.ReplyText)
	assert.Empty(t, first.ReplySourceID)

	// A continuation fetch forwards the cursor.
	_, err = client.FetchLikersPage(context.Background(), "1001", "page2")
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, "page2", gotQuery["pagination_token"])
	mu.Unlock()
}

func TestFetchRepostersPage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tweets/1001/retweeted_by", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"data": [{"id": "21", "name": "Carol", "username": "carol"}],
			"meta": {"result_count": 1}
		}`)
	})

	client, _, done := newTestClient(t, handler, Options{})
	defer done()

	page, err := client.FetchRepostersPage(context.Background(), "1001", "")
	require.NoError(t, err)

	require.Len(t, page.Items, 1)
	assert.Equal(t, models.KindRepost, page.Items[0].Kind)
	assert.Empty(t, page.ContinuationCursor, "last page has no cursor")
}

func TestFetchRepliesPage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, RecentSearchPath, r.URL.Path)
		assert.Equal(t, "in_reply_to_tweet_id:1001", r.URL.Query().Get("query"))
		assert.Equal(t, "author_id", r.URL.Query().Get("expansions"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"data": [
				{
					"id": "501",
					"author_id": "31",
					"text": "great thread",
					"conversation_id": "1001",
					"created_at": "2026-08-20T12:34:56.000Z"
				},
				{
					"id": "502",
					"author_id": "99",
					"text": "orphaned reply",
					"conversation_id": "1001",
					"created_at": "2026-08-20T13:00:00.000Z"
				}
			],
			"includes": {
				"users": [{"id": "31", "name": "Dana", "username": "DanaReplies"}]
			},
			"meta": {"result_count": 2}
		}`)
	})

	client, log, done := newTestClient(t, handler, Options{})
	defer done()

	page, err := client.FetchRepliesPage(context.Background(), "in_reply_to_tweet_id:1001", "")
	require.NoError(t, err)

	// The author of 502 is missing from the expansion, so only 501 survives.
	require.Len(t, page.Items, 1)
	rec := page.Items[0]
	assert.Equal(t, models.KindReply, rec.Kind)
	assert.Equal(t, "danareplies", rec.Identity.Handle)
	assert.Equal(t, "501", rec.ReplySourceID)
	assert.Equal(t, "great thread", rec.ReplyText)
	assert.Equal(t, time.Date(2026, 8, 20, 12, 34, 56, 0, time.UTC), rec.ObservedAt.UTC())

	assert.True(t, log.HasMessage("reply author missing from expansion"))
}

func TestFetchPageErrorStatuses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected errs.ErrorType
	}{
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			expected: errs.ErrorTypeUnauthorized,
		},
		{
			name:     "forbidden",
			status:   http.StatusForbidden,
			expected: errs.ErrorTypeForbidden,
		},
		{
			name:     "not found",
			status:   http.StatusNotFound,
			expected: errs.ErrorTypeNotFound,
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			expected: errs.ErrorTypeRateLimited,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			expected: errs.ErrorTypeServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			var mu sync.Mutex

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				calls++
				mu.Unlock()
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"title":"error"}`)
			})

			client, _, done := newTestClient(t, handler, Options{})
			defer done()

			_, err := client.FetchLikersPage(context.Background(), "1001", "")
			require.Error(t, err)
			assert.Equal(t, tt.expected, errs.TypeOf(err))

			// Non-network failures surface immediately; the caller decides.
			mu.Lock()
			assert.Equal(t, 1, calls)
			mu.Unlock()
		})
	}
}

func TestRateLimitResetHint(t *testing.T) {
	reset := time.Now().Add(2 * time.Minute).Truncate(time.Second)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-reset", fmt.Sprintf("%d", reset.Unix()))
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"title":"Too Many Requests"}`)
	})

	client, _, done := newTestClient(t, handler, Options{})
	defer done()

	_, err := client.FetchLikersPage(context.Background(), "1001", "")
	require.Error(t, err)
	require.True(t, errs.IsRateLimited(err))

	hint, ok := errs.ResetHint(err)
	require.True(t, ok)
	assert.WithinDuration(t, reset, hint, time.Second)
}

func TestLookupPost(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tweets/1001", r.URL.Path)
		assert.Equal(t, metadataTweetFields, r.URL.Query().Get("tweet.fields"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"data": {
				"id": "1001",
				"author_id": "7",
				"created_at": "2026-08-18T09:00:00.000Z",
				"public_metrics": {
					"retweet_count": 4,
					"reply_count": 9,
					"like_count": 120,
					"quote_count": 1
				}
			},
			"includes": {
				"users": [{"id": "7", "name": "Author", "username": "TheAuthor"}]
			}
		}`)
	})

	client, _, done := newTestClient(t, handler, Options{})
	defer done()

	meta, err := client.LookupPost(context.Background(), "1001")
	require.NoError(t, err)

	assert.Equal(t, "1001", meta.PostID)
	assert.Equal(t, "7", meta.AuthorID)
	assert.Equal(t, "theauthor", meta.AuthorHandle)
	assert.Equal(t, time.Date(2026, 8, 18, 9, 0, 0, 0, time.UTC), meta.CreatedAt.UTC())
	assert.Equal(t, 120, meta.Engagement.Likes)
	assert.Equal(t, 4, meta.Engagement.Reposts)
	assert.Equal(t, 9, meta.Engagement.Replies)
	assert.Equal(t, 1, meta.Engagement.Quotes)
}

func TestLookupPostNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"errors": [{
				"title": "Not Found Error",
				"detail": "Could not find tweet with id: [1001].",
				"type": "https://api.twitter.com/2/problems/resource-not-found"
			}]
		}`)
	})

	client, _, done := newTestClient(t, handler, Options{})
	defer done()

	meta, err := client.LookupPost(context.Background(), "1001")
	require.Error(t, err)
	assert.Nil(t, meta)
	assert.Equal(t, errs.ErrorTypeNotFound, errs.TypeOf(err))
	assert.Contains(t, err.Error(), "Could not find tweet")
}

func TestMetricsHook(t *testing.T) {
	type observation struct {
		endpoint    string
		success     bool
		rateLimited bool
	}

	var (
		mu   sync.Mutex
		seen []observation
	)

	var status int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(atomic.LoadInt32(&status)))
		fmt.Fprint(w, `{"meta":{"result_count":0}}`)
	})

	client, _, done := newTestClient(t, handler, Options{
		Metrics: func(endpoint string, success, rateLimited bool) {
			mu.Lock()
			seen = append(seen, observation{endpoint, success, rateLimited})
			mu.Unlock()
		},
	})
	defer done()

	atomic.StoreInt32(&status, http.StatusOK)
	_, err := client.FetchLikersPage(context.Background(), "1001", "")
	require.NoError(t, err)

	atomic.StoreInt32(&status, http.StatusTooManyRequests)
	_, err = client.FetchLikersPage(context.Background(), "1001", "")
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, "/tweets/1001/liking_users", seen[0].endpoint)
	assert.True(t, seen[0].success)
	assert.False(t, seen[0].rateLimited)
	assert.False(t, seen[1].success)
	assert.True(t, seen[1].rateLimited)
}

func TestNetworkErrorRetries(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)

	// Hijack and drop every connection so the client sees a transport error.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()

		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	})

	client, _, done := newTestClient(t, handler, Options{RetryAttempts: 3})
	defer done()

	_, err := client.FetchLikersPage(context.Background(), "1001", "")
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))

	mu.Lock()
	assert.Equal(t, 3, calls)
	mu.Unlock()
}

func TestNewClientDefaults(t *testing.T) {
	tests := []struct {
		name     string
		pageSize int
		expected int
	}{
		{
			name:     "zero uses default",
			pageSize: 0,
			expected: DefaultPageSize,
		},
		{
			name:     "negative uses default",
			pageSize: -1,
			expected: DefaultPageSize,
		},
		{
			name:     "above maximum uses default",
			pageSize: 500,
			expected: DefaultPageSize,
		},
		{
			name:     "custom within bounds",
			pageSize: 25,
			expected: 25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(Options{PageSize: tt.pageSize}, logger.NewTestLogger())
			assert.Equal(t, tt.expected, client.PageSize())
		})
	}
}
