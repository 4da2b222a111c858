// Package twitter provides a client for the X API v2 engagement read
// endpoints.
//
// This package includes:
//   - A resty-based HTTP client with bearer-token auth and error mapping
//   - Paged fetchers for liking users, reposters and reply search results
//   - A post metadata lookup for age and public engagement counters
//   - Helper functions for endpoint paths, reply queries and post id parsing
//
// Example usage:
//
//	client := twitter.NewClient(twitter.Options{
//	    BearerToken: token,
//	    Timeout:     30 * time.Second,
//	}, log)
//
//	// Walk the users who liked a post
//	cursor := ""
//	for {
//	    page, err := client.FetchLikersPage(ctx, postID, cursor)
//	    if err != nil {
//	        if errs.IsRateLimited(err) {
//	            // Wait out the window and refetch
//	        }
//	        return err
//	    }
//	    records = append(records, page.Items...)
//	    if page.ContinuationCursor == "" {
//	        break
//	    }
//	    cursor = page.ContinuationCursor
//	}
//
// PostSource bundles the three paged resources of a single post behind one
// cursor-driven interface and owns the reply query strategy order.
package twitter
