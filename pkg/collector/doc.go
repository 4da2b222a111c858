// Package collector orchestrates the collection of interactions for one post.
//
// The collector package coordinates the paged API fetches, the shared request
// budget, the fallback decision for replies, and the merge of browser-sourced
// candidates into the API result set.
//
// Architecture:
//
// The Collector struct is the main component that:
//   - Fetches post metadata for age and engagement hints
//   - Walks likers, reposters and repliers through a rate-limited pager
//   - Decides whether the browser reply fallback should run
//   - Merges fallback candidates into the reply set without duplicates
//   - Downgrades sub-step failures to diagnostics so a run never loses
//     already-collected data
//
// Usage:
//
//	source := twitter.NewPostSource(client, postID)
//	window := ratelimit.NewWindow(0, 0, 0) // platform defaults
//
//	c := collector.New(source, window, extractor, collector.Options{}, log)
//	res, err := c.Run(ctx, collector.Request{
//	    PostID:  postID,
//	    PostURL: twitter.PostURL(postID),
//	})
//	if err != nil {
//	    // res still carries whatever was collected before the abort
//	}
//
// Rate Limiting:
//
// Every paged request acquires from one shared fixed window (default 25
// requests per 15 minutes with 40 seconds between requests). A 429 from the
// source suspends pagination until the window rolls, then resumes from the
// same cursor; the pager gives up on the resource after a bounded number of
// such recoveries.
//
// Fallback:
//
// Replies older than the search horizon are invisible to the API. When the
// post is past that horizon, or the API returns zero replies against a
// nonzero reply count on the post, the collector invokes the configured
// browser extractor and merges its candidates after the API records.
package collector
