package twitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointPaths(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{
			name:     "liking users",
			path:     LikingUsersPath("123456"),
			expected: "/tweets/123456/liking_users",
		},
		{
			name:     "retweeted by",
			path:     RetweetedByPath("123456"),
			expected: "/tweets/123456/retweeted_by",
		},
		{
			name:     "tweet lookup",
			path:     TweetLookupPath("123456"),
			expected: "/tweets/123456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.path)
		})
	}
}

func TestPostURL(t *testing.T) {
	tests := []struct {
		name     string
		postID   string
		expected string
	}{
		{
			name:     "valid id",
			postID:   "1234567890",
			expected: "https://x.com/i/status/1234567890",
		},
		{
			name:     "empty id",
			postID:   "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PostURL(tt.postID))
		})
	}
}

func TestReplyQueries(t *testing.T) {
	queries := ReplyQueries("987654321")

	assert.Len(t, queries, 3)
	assert.Equal(t, "in_reply_to_tweet_id:987654321", queries[0])
	assert.Equal(t, "conversation_id:987654321 is:reply", queries[1])
	assert.Equal(t, "conversation_id:987654321", queries[2])
}

func TestIsValidPostID(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		expected bool
	}{
		{
			name:     "valid snowflake id",
			id:       "1234567890123456789",
			expected: true,
		},
		{
			name:     "short numeric id",
			id:       "42",
			expected: true,
		},
		{
			name:     "empty",
			id:       "",
			expected: false,
		},
		{
			name:     "contains letters",
			id:       "12345abc",
			expected: false,
		},
		{
			name:     "contains separator",
			id:       "12345-678",
			expected: false,
		},
		{
			name:     "too long",
			id:       "12345678901234567890123456",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidPostID(tt.id))
		})
	}
}

func TestExtractPostID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "bare id",
			input:    "1234567890123456789",
			expected: "1234567890123456789",
		},
		{
			name:     "x.com URL",
			input:    "https://x.com/someone/status/1234567890123456789",
			expected: "1234567890123456789",
		},
		{
			name:     "twitter.com URL",
			input:    "https://twitter.com/someone/status/1234567890123456789",
			expected: "1234567890123456789",
		},
		{
			name:     "URL with query string",
			input:    "https://x.com/someone/status/1234567890123456789?s=20&t=abc",
			expected: "1234567890123456789",
		},
		{
			name:     "URL with fragment",
			input:    "https://x.com/someone/status/1234567890123456789#replies",
			expected: "1234567890123456789",
		},
		{
			name:     "URL with photo suffix",
			input:    "https://x.com/someone/status/1234567890123456789/photo/1",
			expected: "1234567890123456789",
		},
		{
			name:     "URL without scheme",
			input:    "x.com/someone/status/1234567890123456789",
			expected: "1234567890123456789",
		},
		{
			name:     "surrounding whitespace",
			input:    "  1234567890123456789  ",
			expected: "1234567890123456789",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "not a post URL",
			input:   "https://x.com/someone",
			wantErr: true,
		},
		{
			name:    "alphanumeric junk",
			input:   "not-an-id",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ExtractPostID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestURLConstruction(t *testing.T) {
	t.Run("base URL is HTTPS", func(t *testing.T) {
		assert.Contains(t, BaseURL, "https://")
		assert.Contains(t, BaseURL, "api.twitter.com")
	})

	t.Run("endpoint paths start with slash", func(t *testing.T) {
		assert.Equal(t, "/", string(RecentSearchPath[0]))
		assert.Equal(t, "/", string(LikingUsersPath("1")[0]))
		assert.Equal(t, "/", string(RetweetedByPath("1")[0]))
	})

	t.Run("page sizes are within endpoint bounds", func(t *testing.T) {
		assert.Greater(t, DefaultPageSize, 0)
		assert.LessOrEqual(t, DefaultPageSize, MaxPageSize)
		assert.LessOrEqual(t, MaxPageSize, 100)
	})
}

func BenchmarkExtractPostID(b *testing.B) {
	input := "https://x.com/someone/status/1234567890123456789?s=20"
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = ExtractPostID(input)
	}
}

func BenchmarkIsValidPostID(b *testing.B) {
	id := "1234567890123456789"
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = IsValidPostID(id)
	}
}
