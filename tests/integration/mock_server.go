package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// userFixture is one account the mock endpoints serve.
type userFixture struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// replyFixture is one reply tweet the recent-search endpoint serves.
type replyFixture struct {
	ID        string
	Text      string
	CreatedAt time.Time
	Author    userFixture
}

// PostFixture describes one post and its engagement as the API would see it.
type PostFixture struct {
	ID        string
	Author    userFixture
	CreatedAt time.Time

	Likers    []userFixture
	Reposters []userFixture
	Replies   []replyFixture

	// Hint overrides for public_metrics; zero derives the counter from the
	// fixture slices. Setting a hint above the slice length simulates the
	// search horizon hiding engagement the counters still report.
	LikeHint   int
	RepostHint int
	ReplyHint  int

	// MinReplyStrategy is the first reply query that returns data: 0 serves
	// the direct-reply query, 2 makes the collector widen all the way to the
	// bare conversation query.
	MinReplyStrategy int
}

// MockAPIServer simulates the X API v2 read endpoints with realistic
// envelopes, pagination, auth checks and injectable failures.
type MockAPIServer struct {
	server *httptest.Server

	mu             sync.RWMutex
	posts          map[string]*PostFixture
	errorResponses map[string]int
	rateLimitOnce  map[string]bool

	requestCount  int32
	rateLimitHits int32
}

// NewMockAPIServer creates a mock API server with no posts configured.
func NewMockAPIServer() *MockAPIServer {
	m := &MockAPIServer{
		posts:          make(map[string]*PostFixture),
		errorResponses: make(map[string]int),
		rateLimitOnce:  make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/tweets/search/recent", m.handleRecentSearch)
	mux.HandleFunc("/tweets/{id}/liking_users", m.handleLikingUsers)
	mux.HandleFunc("/tweets/{id}/retweeted_by", m.handleRetweetedBy)
	mux.HandleFunc("/tweets/{id}", m.handleLookup)

	m.server = httptest.NewServer(mux)
	return m
}

// AddPost registers a post fixture.
func (m *MockAPIServer) AddPost(post *PostFixture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[post.ID] = post
}

// URL returns the base URL clients should use instead of the real API.
func (m *MockAPIServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPIServer) Close() {
	m.server.Close()
}

// SetErrorResponse makes one endpoint path answer with the given status.
func (m *MockAPIServer) SetErrorResponse(path string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorResponses[path] = code
}

// RateLimitNextRequest makes the next request to the path answer 429 with a
// reset hint; the request after that succeeds normally.
func (m *MockAPIServer) RateLimitNextRequest(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimitOnce[path] = true
}

// RequestCount returns the total number of requests served.
func (m *MockAPIServer) RequestCount() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

// RateLimitHits returns how many 429 responses were sent.
func (m *MockAPIServer) RateLimitHits() int {
	return int(atomic.LoadInt32(&m.rateLimitHits))
}

// gate applies the per-request checks every endpoint shares: counting, auth
// and injected failures. It reports whether the handler may proceed.
func (m *MockAPIServer) gate(w http.ResponseWriter, r *http.Request) bool {
	atomic.AddInt32(&m.requestCount, 1)

	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"title":  "Unauthorized",
			"detail": "Authenticating with OAuth 2.0 Application-Only is forbidden for this endpoint.",
		})
		return false
	}

	m.mu.Lock()
	code := m.errorResponses[r.URL.Path]
	limited := m.rateLimitOnce[r.URL.Path]
	if limited {
		delete(m.rateLimitOnce, r.URL.Path)
	}
	m.mu.Unlock()

	if limited {
		atomic.AddInt32(&m.rateLimitHits, 1)
		w.Header().Set("x-rate-limit-remaining", "0")
		w.Header().Set("x-rate-limit-reset", strconv.FormatInt(time.Now().Unix(), 10))
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"title":  "Too Many Requests",
			"detail": "Too Many Requests",
		})
		return false
	}

	if code > 0 {
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"title":  http.StatusText(code),
			"detail": fmt.Sprintf("injected %d for %s", code, r.URL.Path),
		})
		return false
	}

	return true
}

// post looks up a fixture, writing the API's not-found envelope when missing.
func (m *MockAPIServer) post(w http.ResponseWriter, id string) *PostFixture {
	m.mu.RLock()
	post := m.posts[id]
	m.mu.RUnlock()

	if post == nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"errors": []map[string]string{{
				"title":  "Not Found Error",
				"detail": fmt.Sprintf("Could not find tweet with id: [%s].", id),
			}},
		})
	}
	return post
}

// handleLookup serves GET /tweets/{id} with public metrics and the author
// expansion.
func (m *MockAPIServer) handleLookup(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}
	post := m.post(w, r.PathValue("id"))
	if post == nil {
		return
	}

	likes, reposts, replies := len(post.Likers), len(post.Reposters), len(post.Replies)
	if post.LikeHint > 0 {
		likes = post.LikeHint
	}
	if post.RepostHint > 0 {
		reposts = post.RepostHint
	}
	if post.ReplyHint > 0 {
		replies = post.ReplyHint
	}

	writeJSON(w, map[string]interface{}{
		"data": map[string]interface{}{
			"id":         post.ID,
			"author_id":  post.Author.ID,
			"created_at": post.CreatedAt.Format(time.RFC3339),
			"public_metrics": map[string]int{
				"like_count":    likes,
				"retweet_count": reposts,
				"reply_count":   replies,
				"quote_count":   0,
			},
		},
		"includes": map[string]interface{}{
			"users": []userFixture{post.Author},
		},
	})
}

// handleLikingUsers serves GET /tweets/{id}/liking_users with pagination.
func (m *MockAPIServer) handleLikingUsers(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}
	post := m.post(w, r.PathValue("id"))
	if post == nil {
		return
	}
	m.writeUserPage(w, r, post.Likers)
}

// handleRetweetedBy serves GET /tweets/{id}/retweeted_by with pagination.
func (m *MockAPIServer) handleRetweetedBy(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}
	post := m.post(w, r.PathValue("id"))
	if post == nil {
		return
	}
	m.writeUserPage(w, r, post.Reposters)
}

// writeUserPage slices one page out of a user list, honoring max_results and
// pagination_token.
func (m *MockAPIServer) writeUserPage(w http.ResponseWriter, r *http.Request, users []userFixture) {
	start, size := pageBounds(r, "pagination_token")
	end := start + size
	if end > len(users) {
		end = len(users)
	}
	if start > len(users) {
		start = len(users)
	}

	chunk := users[start:end]
	meta := map[string]interface{}{"result_count": len(chunk)}
	if end < len(users) {
		meta["next_token"] = cursorToken(end)
	}

	body := map[string]interface{}{"meta": meta}
	if len(chunk) > 0 {
		body["data"] = chunk
	}
	writeJSON(w, body)
}

// handleRecentSearch serves GET /tweets/search/recent for the three reply
// query shapes. Queries below the fixture's MinReplyStrategy return empty
// pages, mimicking direct-reply queries that miss thread replies. The widest
// conversation query also returns the root post itself, as the real endpoint
// does.
func (m *MockAPIServer) handleRecentSearch(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}

	query := r.URL.Query().Get("query")
	postID, strategy := parseReplyQuery(query)
	if postID == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"title":  "Invalid Request",
			"detail": fmt.Sprintf("unsupported query: %s", query),
		})
		return
	}

	post := m.post(w, postID)
	if post == nil {
		return
	}

	if strategy < post.MinReplyStrategy {
		writeJSON(w, map[string]interface{}{"meta": map[string]int{"result_count": 0}})
		return
	}

	tweets := make([]map[string]interface{}, 0, len(post.Replies)+1)
	seen := make(map[string]bool)
	var authors []userFixture

	addAuthor := func(u userFixture) {
		if !seen[u.ID] {
			seen[u.ID] = true
			authors = append(authors, u)
		}
	}

	// The bare conversation_id query matches the conversation root too.
	if strategy >= 2 {
		tweets = append(tweets, map[string]interface{}{
			"id":              post.ID,
			"text":            "root post",
			"author_id":       post.Author.ID,
			"conversation_id": post.ID,
			"created_at":      post.CreatedAt.Format(time.RFC3339),
		})
		addAuthor(post.Author)
	}
	for _, reply := range post.Replies {
		tweets = append(tweets, map[string]interface{}{
			"id":              reply.ID,
			"text":            reply.Text,
			"author_id":       reply.Author.ID,
			"conversation_id": post.ID,
			"created_at":      reply.CreatedAt.Format(time.RFC3339),
		})
		addAuthor(reply.Author)
	}

	start, size := pageBounds(r, "next_token")
	end := start + size
	if end > len(tweets) {
		end = len(tweets)
	}
	if start > len(tweets) {
		start = len(tweets)
	}

	chunk := tweets[start:end]
	meta := map[string]interface{}{"result_count": len(chunk)}
	if end < len(tweets) {
		meta["next_token"] = cursorToken(end)
	}

	body := map[string]interface{}{"meta": meta}
	if len(chunk) > 0 {
		body["data"] = chunk
		body["includes"] = map[string]interface{}{"users": authors}
	}
	writeJSON(w, body)
}

// parseReplyQuery recognizes the three reply query shapes and returns the
// post id plus the strategy index the shape corresponds to.
func parseReplyQuery(query string) (string, int) {
	switch {
	case strings.HasPrefix(query, "in_reply_to_tweet_id:"):
		return strings.TrimPrefix(query, "in_reply_to_tweet_id:"), 0
	case strings.HasPrefix(query, "conversation_id:") && strings.HasSuffix(query, " is:reply"):
		id := strings.TrimPrefix(query, "conversation_id:")
		return strings.TrimSuffix(id, " is:reply"), 1
	case strings.HasPrefix(query, "conversation_id:"):
		return strings.TrimPrefix(query, "conversation_id:"), 2
	default:
		return "", 0
	}
}

// pageBounds reads the cursor and page size from a request.
func pageBounds(r *http.Request, tokenParam string) (start, size int) {
	size = 100
	if v, err := strconv.Atoi(r.URL.Query().Get("max_results")); err == nil && v > 0 {
		size = v
	}
	if token := r.URL.Query().Get(tokenParam); token != "" {
		if v, err := strconv.Atoi(strings.TrimPrefix(token, "cursor-")); err == nil {
			start = v
		}
	}
	return start, size
}

func cursorToken(offset int) string {
	return fmt.Sprintf("cursor-%d", offset)
}

func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}
