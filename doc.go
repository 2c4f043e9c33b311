// Package reddit provides a Go client for the Reddit API with OAuth2
// authentication, adaptive rate limiting, lazy pagination, comment trees,
// and polling streams.
//
// # Overview
//
// The package covers the read surface of the API (listings, search, comment
// trees, user and subreddit info) plus a small write surface (self posts,
// replies, stickies). Authentication, token refresh, rate-limit pacing, and
// retries all happen inside the client; callers just issue operations.
//
// # Quick Start
//
// Basic setup requires Reddit API credentials:
//
//	client, err := reddit.NewClient(&reddit.Config{
//		ClientID:     "your-client-id",
//		ClientSecret: "your-client-secret",
//		UserAgent:    "myapp/1.0 by /u/yourusername",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	posts, err := client.GetHot(ctx, &types.PostsRequest{
//		Subreddit:  "golang",
//		Pagination: types.Pagination{Limit: 25},
//	})
//
// # Authentication
//
// The credential fields in Config select the OAuth2 grant flow:
//
//   - Username and Password present: script-app password grant, acting as
//     that user.
//   - ClientSecret absent: installed-app grant, identified by a device id.
//   - Otherwise: application-only client_credentials grant, read-only
//     public data.
//
// Tokens are fetched lazily on the first request and refreshed before they
// expire; concurrent operations share a single refresh. Call Connect to
// verify credentials eagerly.
//
// # Rate Limiting
//
// Every request passes through a dual budget: a small burst allowance that
// lets short spikes through unthrottled, and a sustained budget reconciled
// from the X-Ratelimit-* response headers. When the service advertises a
// shrinking window, requests are spread across the time left in it, and a
// Retry-After header pauses all traffic for the advised duration.
//
// # Pagination
//
// Reddit paginates with cursors called fullnames ("t3_abc123"). Page
// operations like GetPosts return the cursors alongside the items; the
// Listing iterator hides them entirely:
//
//	listing := client.NewPostListing(&types.PostsRequest{Subreddit: "golang"})
//	for {
//		post, ok, err := listing.Next(ctx)
//		if err != nil || !ok {
//			break
//		}
//		fmt.Println(post.Title)
//	}
//
// Pages are fetched only as the iterator crosses page boundaries.
//
// # Comment Trees
//
// GetComments returns a CommentTree whose nodes are in one of three states:
// a loaded comment, a removed comment, or a More placeholder standing in for
// replies the service truncated. ExpandMore fetches a placeholder's comments
// and splices them into the tree in place:
//
//	resp, err := client.GetComments(ctx, &types.CommentsRequest{
//		Subreddit: "golang", PostID: "abc123",
//	})
//	for _, more := range resp.Tree.MoreRefs() {
//		if err := client.ExpandMore(ctx, resp.Tree, more); err != nil {
//			break
//		}
//	}
//
// # Streams
//
// StreamNewPosts and StreamComments poll a feed and yield each item at most
// once, deduplicating across polls with a bounded window of seen ids and a
// creation-time watermark:
//
//	stream := client.StreamNewPosts("golang", 10*time.Second)
//	for {
//		batch, err := stream.NextBatch(ctx)
//		if err != nil {
//			break
//		}
//		for _, post := range batch {
//			fmt.Println(post.Title)
//		}
//	}
//
// # Error Handling
//
// Failures surface as typed errors from the pkg/errors package: AuthError,
// RateLimitError, ServerError, TransportError, APIError, ParseError, and
// ConfigError. Transient classes are retried internally with exponential
// backoff before being returned; errors.IsRetryable reports whether retrying
// a whole operation later could help.
//
// # Logging
//
// Set Config.Logger to a *slog.Logger to see token refreshes, throttling
// decisions, and retries at debug level. A nil logger keeps the client silent.
package reddit
