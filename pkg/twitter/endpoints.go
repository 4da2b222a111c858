package twitter

import (
	"fmt"
	"strings"
)

const (
	// BaseURL is the base URL for the X API v2
	BaseURL = "https://api.twitter.com/2"

	// RecentSearchPath is the endpoint for recent tweet search (7-day horizon)
	RecentSearchPath = "/tweets/search/recent"

	// DefaultPageSize is the default number of results to request per page
	DefaultPageSize = 100

	// MaxPageSize is the endpoint maximum for liking_users / retweeted_by / search
	MaxPageSize = 100

	// userFields are the user object fields every request asks for
	userFields = "id,name,username"

	// tweetFields are the tweet object fields the search endpoint asks for
	tweetFields = "author_id,created_at,text,conversation_id"

	// metadataTweetFields are the fields the single-post lookup asks for
	metadataTweetFields = "author_id,created_at,public_metrics"
)

// LikingUsersPath returns the endpoint path for a post's liking users
func LikingUsersPath(postID string) string {
	return fmt.Sprintf("/tweets/%s/liking_users", postID)
}

// RetweetedByPath returns the endpoint path for a post's reposters
func RetweetedByPath(postID string) string {
	return fmt.Sprintf("/tweets/%s/retweeted_by", postID)
}

// TweetLookupPath returns the endpoint path for a single post lookup
func TweetLookupPath(postID string) string {
	return fmt.Sprintf("/tweets/%s", postID)
}

// PostURL constructs the public web URL for a post. The /i/ form resolves
// without knowing the author's handle.
func PostURL(postID string) string {
	if postID == "" {
		return ""
	}
	return fmt.Sprintf("https://x.com/i/status/%s", postID)
}

// ReplyQueries returns the recent-search queries that can surface a post's
// repliers, in preference order: direct replies first, then thread replies,
// then the whole conversation.
func ReplyQueries(postID string) []string {
	return []string{
		fmt.Sprintf("in_reply_to_tweet_id:%s", postID),
		fmt.Sprintf("conversation_id:%s is:reply", postID),
		fmt.Sprintf("conversation_id:%s", postID),
	}
}

// IsValidPostID checks if a string looks like a post id (all digits)
func IsValidPostID(id string) bool {
	if id == "" || len(id) > 25 {
		return false
	}
	for _, char := range id {
		if char < '0' || char > '9' {
			return false
		}
	}
	return true
}

// ExtractPostID accepts a bare post id or any post URL form
// (x.com/<user>/status/<id>, twitter.com/..., trailing /photo/1, query
// strings) and returns the id.
func ExtractPostID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty post id")
	}

	id := input
	if idx := strings.Index(input, "/status/"); idx >= 0 {
		id = input[idx+len("/status/"):]
		// Drop query string and any trailing path segments
		if q := strings.IndexAny(id, "?#"); q >= 0 {
			id = id[:q]
		}
		if s := strings.Index(id, "/"); s >= 0 {
			id = id[:s]
		}
	}

	if !IsValidPostID(id) {
		return "", fmt.Errorf("not a post id or post URL: %q", input)
	}
	return id, nil
}
