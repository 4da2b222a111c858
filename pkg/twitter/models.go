package twitter

import "time"

// userObject is the API v2 user object subset the collection endpoints return.
type userObject struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// tweetObject is the API v2 tweet object subset the search and lookup
// endpoints return.
type tweetObject struct {
	ID             string         `json:"id"`
	AuthorID       string         `json:"author_id"`
	Text           string         `json:"text"`
	ConversationID string         `json:"conversation_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	PublicMetrics  *publicMetrics `json:"public_metrics,omitempty"`
}

// publicMetrics carries a post's engagement counters.
type publicMetrics struct {
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	LikeCount    int `json:"like_count"`
	QuoteCount   int `json:"quote_count"`
}

// pageMeta is the pagination envelope shared by the paged endpoints.
type pageMeta struct {
	ResultCount int    `json:"result_count"`
	NextToken   string `json:"next_token,omitempty"`
}

// includes holds expanded objects referenced from the primary data.
type includes struct {
	Users []userObject `json:"users"`
}

// apiError is one entry of a partial-error response.
type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

// usersResponse is the envelope for liking_users and retweeted_by.
type usersResponse struct {
	Data   []userObject `json:"data"`
	Meta   pageMeta     `json:"meta"`
	Errors []apiError   `json:"errors,omitempty"`
}

// searchResponse is the envelope for recent search.
type searchResponse struct {
	Data     []tweetObject `json:"data"`
	Includes *includes     `json:"includes,omitempty"`
	Meta     pageMeta      `json:"meta"`
	Errors   []apiError    `json:"errors,omitempty"`
}

// tweetResponse is the envelope for a single post lookup.
type tweetResponse struct {
	Data     *tweetObject `json:"data"`
	Includes *includes    `json:"includes,omitempty"`
	Errors   []apiError   `json:"errors,omitempty"`
}
