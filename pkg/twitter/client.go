package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	errs "xengage/pkg/errors"
	"xengage/pkg/logger"
	"xengage/pkg/models"
	"xengage/pkg/retry"
)

// MetricsHook observes every API response. Implementations must be fast and
// must not block; the client calls it inline.
type MetricsHook func(endpoint string, success, rateLimited bool)

// Options configures a Client.
type Options struct {
	// BaseURL overrides the API base URL (tests point this at a local server)
	BaseURL string
	// BearerToken authenticates every request (app-only auth)
	BearerToken string
	// Timeout bounds each HTTP round trip
	Timeout time.Duration
	// UserAgent overrides the default User-Agent header
	UserAgent string
	// PageSize is the per-page result count to request (1..100)
	PageSize int
	// RetryAttempts bounds transient-failure retries per request
	RetryAttempts int
	// Metrics is an optional per-response observer
	Metrics MetricsHook
}

// Client is an X API v2 client for the engagement read endpoints.
type Client struct {
	http     *resty.Client
	logger   logger.Logger
	metrics  MetricsHook
	pageSize int
	retrier  *retry.HTTPRetrier
	netRetry retry.Config
}

// NewClient creates a new API client
func NewClient(opts Options, log logger.Logger) *Client {
	// Use default logger if none provided
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	if opts.PageSize <= 0 || opts.PageSize > MaxPageSize {
		opts.PageSize = DefaultPageSize
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseURL)
	httpClient.SetAuthToken(opts.BearerToken)
	httpClient.SetHeader("Accept", "application/json")
	if opts.UserAgent != "" {
		httpClient.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}

	c := &Client{
		http:     httpClient,
		logger:   log,
		metrics:  opts.Metrics,
		pageSize: opts.PageSize,
		retrier:  retry.NewHTTPRetrier(opts.RetryAttempts, log),
		netRetry: retry.Config{
			MaxAttempts: opts.RetryAttempts,
			Backoff:     retry.DefaultExponentialBackoff(),
			// Only errors that never reached the server; everything else
			// is the caller's to classify (the pager owns 429 handling).
			RetryIf: func(err error) bool {
				return errs.TypeOf(err) == errs.ErrorTypeNetwork
			},
			Logger: log,
		},
	}

	httpClient.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		c.observe(resp)
		return nil
	})

	return c
}

// observe logs the completed round trip and feeds the metrics hook.
func (c *Client) observe(resp *resty.Response) {
	endpoint := resp.Request.URL
	if resp.Request.RawRequest != nil {
		endpoint = resp.Request.RawRequest.URL.Path
	}

	c.logger.DebugWithFields("API request completed", map[string]interface{}{
		"method":   resp.Request.Method,
		"endpoint": endpoint,
		"status":   resp.StatusCode(),
		"duration": resp.Time(),
	})

	if c.metrics != nil {
		c.metrics(endpoint, resp.IsSuccess(), resp.StatusCode() == http.StatusTooManyRequests)
	}
}

// PageSize reports the per-page result count the client requests.
func (c *Client) PageSize() int {
	return c.pageSize
}

// FetchLikersPage fetches one page of the users who liked a post.
func (c *Client) FetchLikersPage(ctx context.Context, postID, cursor string) (models.Page, error) {
	return c.fetchUserPage(ctx, LikingUsersPath(postID), models.KindLike, cursor)
}

// FetchRepostersPage fetches one page of the users who reposted a post.
func (c *Client) FetchRepostersPage(ctx context.Context, postID, cursor string) (models.Page, error) {
	return c.fetchUserPage(ctx, RetweetedByPath(postID), models.KindRepost, cursor)
}

// fetchUserPage walks one page of a user-list endpoint (liking_users,
// retweeted_by) and maps the wire users into interaction records.
func (c *Client) fetchUserPage(ctx context.Context, path string, kind models.InteractionKind, cursor string) (models.Page, error) {
	var out usersResponse

	err := retry.Do(func() error {
		req := c.http.R().
			SetContext(ctx).
			SetQueryParam("max_results", strconv.Itoa(c.pageSize)).
			SetQueryParam("user.fields", userFields)
		if cursor != "" {
			req.SetQueryParam("pagination_token", cursor)
		}

		resp, err := req.Get(path)
		if err != nil {
			return errs.New(errs.ErrorTypeNetwork, 0, "request failed: %v", err)
		}
		if err := c.checkResponse(resp); err != nil {
			return err
		}
		return c.decode(resp, &out)
	}, c.retryConfig(ctx))
	if err != nil {
		return models.Page{}, err
	}

	page := models.Page{ContinuationCursor: out.Meta.NextToken}
	for _, u := range out.Data {
		page.Items = append(page.Items, models.InteractionRecord{
			Identity: models.UserIdentity{
				Handle:         models.NormalizeHandle(u.Username),
				DisplayName:    u.Name,
				PlatformUserID: u.ID,
			},
			Kind: kind,
		})
	}
	return page, nil
}

// FetchRepliesPage fetches one page of the recent-search results for a reply
// query. Reply records carry the reply text, the reply post id and the reply
// creation time.
func (c *Client) FetchRepliesPage(ctx context.Context, query, cursor string) (models.Page, error) {
	var out searchResponse

	err := retry.Do(func() error {
		req := c.http.R().
			SetContext(ctx).
			SetQueryParam("query", query).
			SetQueryParam("max_results", strconv.Itoa(c.pageSize)).
			SetQueryParam("tweet.fields", tweetFields).
			SetQueryParam("expansions", "author_id").
			SetQueryParam("user.fields", userFields)
		if cursor != "" {
			req.SetQueryParam("next_token", cursor)
		}

		resp, err := req.Get(RecentSearchPath)
		if err != nil {
			return errs.New(errs.ErrorTypeNetwork, 0, "request failed: %v", err)
		}
		if err := c.checkResponse(resp); err != nil {
			return err
		}
		return c.decode(resp, &out)
	}, c.retryConfig(ctx))
	if err != nil {
		return models.Page{}, err
	}

	users := make(map[string]userObject)
	if out.Includes != nil {
		for _, u := range out.Includes.Users {
			users[u.ID] = u
		}
	}

	page := models.Page{ContinuationCursor: out.Meta.NextToken}
	for _, tw := range out.Data {
		u, ok := users[tw.AuthorID]
		if !ok {
			// No author expansion means no resolvable identity; skip rather
			// than emit a record without a handle.
			c.logger.WarnWithFields("reply author missing from expansion", map[string]interface{}{
				"reply_id":  tw.ID,
				"author_id": tw.AuthorID,
			})
			continue
		}
		page.Items = append(page.Items, models.InteractionRecord{
			Identity: models.UserIdentity{
				Handle:         models.NormalizeHandle(u.Username),
				DisplayName:    u.Name,
				PlatformUserID: u.ID,
			},
			Kind:          models.KindReply,
			ReplyText:     tw.Text,
			ReplySourceID: tw.ID,
			ObservedAt:    tw.CreatedAt,
		})
	}
	return page, nil
}

// LookupPost fetches a post's metadata: author, creation time and public
// engagement counters. This lookup sits in its own API bucket, so rate limit
// responses here are retried with a long backoff instead of the collection
// window.
func (c *Client) LookupPost(ctx context.Context, postID string) (*models.PostMetadata, error) {
	var out tweetResponse

	err := c.retrier.DoWithErrorType(ctx, func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("tweet.fields", metadataTweetFields).
			SetQueryParam("expansions", "author_id").
			SetQueryParam("user.fields", userFields).
			Get(TweetLookupPath(postID))
		if err != nil {
			return errs.New(errs.ErrorTypeNetwork, 0, "request failed: %v", err)
		}
		if err := c.checkResponse(resp); err != nil {
			return err
		}
		return c.decode(resp, &out)
	})
	if err != nil {
		return nil, err
	}

	if out.Data == nil {
		if len(out.Errors) > 0 {
			return nil, errs.New(errs.ErrorTypeNotFound, http.StatusOK, "post %s: %s", postID, out.Errors[0].Detail)
		}
		return nil, errs.New(errs.ErrorTypeNotFound, http.StatusOK, "post %s not found", postID)
	}

	meta := &models.PostMetadata{
		PostID:    out.Data.ID,
		AuthorID:  out.Data.AuthorID,
		CreatedAt: out.Data.CreatedAt,
	}
	if out.Includes != nil && len(out.Includes.Users) > 0 {
		meta.AuthorHandle = models.NormalizeHandle(out.Includes.Users[0].Username)
	}
	if pm := out.Data.PublicMetrics; pm != nil {
		meta.Engagement = models.EngagementCounts{
			Likes:   pm.LikeCount,
			Reposts: pm.RetweetCount,
			Replies: pm.ReplyCount,
			Quotes:  pm.QuoteCount,
		}
	}
	return meta, nil
}

// retryConfig copies the transient-retry base with the call's context.
func (c *Client) retryConfig(ctx context.Context) *retry.Config {
	cfg := c.netRetry
	cfg.Context = ctx
	return &cfg
}

// decode unmarshals a response body, classifying failures as parsing errors.
func (c *Client) decode(resp *resty.Response, target interface{}) error {
	if err := json.Unmarshal(resp.Body(), target); err != nil {
		c.logger.ErrorWithFields("failed to parse API response", map[string]interface{}{
			"status":       resp.StatusCode(),
			"error":        err.Error(),
			"body_preview": bodyPreview(resp.Body()),
		})
		return errs.New(errs.ErrorTypeParsing, resp.StatusCode(), "failed to parse response: %v", err)
	}
	return nil
}

// checkResponse maps non-2xx responses onto the error taxonomy.
func (c *Client) checkResponse(resp *resty.Response) error {
	status := resp.StatusCode()
	if resp.IsSuccess() {
		return nil
	}

	endpoint := resp.Request.URL
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status":   status,
			"endpoint": endpoint,
		})
	case http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", map[string]interface{}{
			"status":   status,
			"endpoint": endpoint,
		})
	case http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status":   status,
			"endpoint": endpoint,
			"reset":    resp.Header().Get("x-rate-limit-reset"),
		})
	default:
		c.logger.ErrorWithFields("unexpected API error", map[string]interface{}{
			"status":   status,
			"endpoint": endpoint,
		})
	}

	var resetAt time.Time
	if status == http.StatusTooManyRequests {
		resetAt = errs.ParseRateLimitReset(resp.Header().Get("x-rate-limit-reset"), time.Now())
	}
	return errs.FromStatusCode(status, bodyPreview(resp.Body()), resetAt)
}

// bodyPreview truncates a response body for log and error messages.
func bodyPreview(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
