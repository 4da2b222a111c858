package fallback

// X.com DOM selectors.
// These are isolated here because X changes their DOM frequently.
// Update these when extraction breaks.

const (
	// Conversation page selectors
	ConversationContainer = `article[data-testid="tweet"]`
	ReplyArticle          = `article[data-testid="tweet"]`

	// Reply content selectors
	ReplyText      = `[data-testid="tweetText"]`
	ReplyAuthor    = `[data-testid="User-Name"]`
	ReplyTimestamp = `time`
	StatusLink     = `a[href*="/status/"]`

	// "Show more replies" and "Show probable spam" live in plain cells
	// between reply articles
	ShowMoreButton = `[data-testid="cellInnerDiv"] [role="button"]`
)
