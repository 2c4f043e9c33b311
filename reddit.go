package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jamesprial/go-reddit-client/internal"
	rederrors "github.com/jamesprial/go-reddit-client/pkg/errors"
	"github.com/jamesprial/go-reddit-client/pkg/types"
)

const (
	// DefaultBaseURL is the OAuth API host every authenticated call goes to.
	DefaultBaseURL = "https://oauth.reddit.com/"

	// DefaultAuthURL is the host that issues access tokens.
	DefaultAuthURL = "https://www.reddit.com/"

	defaultUserAgent = "go-reddit-client/1.0"
)

// RateLimitConfig tunes the client-side request budget. The zero value uses
// Reddit's documented defaults.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained budget assumed until the service
	// advertises its own via response headers. Defaults to 60.
	RequestsPerMinute float64

	// Burst is the number of requests that may be sent back to back without
	// pacing. Defaults to 10.
	Burst int
}

// RetryConfig tunes how transient failures are retried.
type RetryConfig struct {
	// MaxAttempts caps the total tries per request, first attempt included.
	MaxAttempts int

	// BaseDelay is the first backoff pause; later pauses double up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Config holds everything needed to build a Client. ClientID is always
// required; the other credential fields select the grant flow:
//
//   - Username and Password present: script-app password grant.
//   - ClientSecret absent: installed-app grant, identified by DeviceID
//     (one is generated when empty).
//   - Otherwise: application-only client_credentials grant.
type Config struct {
	Username string
	Password string

	ClientID     string
	ClientSecret string

	// DeviceID identifies an installation for the installed-app grant.
	DeviceID string

	// UserAgent is sent on every request. Reddit asks for a descriptive
	// value; a generic default is used when empty.
	UserAgent string

	// BaseURL overrides the API host, AuthURL the token host. Mostly for tests.
	BaseURL string
	AuthURL string

	// HTTPClient is used for all traffic. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger receives structured debug output. Silent when nil.
	Logger *slog.Logger

	RateLimit RateLimitConfig
	Retry     RetryConfig
}

func (c *Config) grant() string {
	switch {
	case c.Username != "" && c.Password != "":
		return internal.GrantPassword
	case c.ClientSecret == "":
		return internal.GrantInstalledClient
	default:
		return internal.GrantClientCredentials
	}
}

// Client is the top-level Reddit API client. It is safe for concurrent use.
type Client struct {
	api    *internal.Client
	auth   *internal.Authenticator
	parser *internal.Parser
	logger *slog.Logger
}

// NewClient validates the config and builds a client. No network traffic
// happens here; the first request (or an explicit Connect) obtains the token.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, &rederrors.ConfigError{Field: "Config", Message: "config is required"}
	}
	if cfg.ClientID == "" {
		return nil, &rederrors.ConfigError{Field: "ClientID", Message: "client id is required"}
	}
	if cfg.Username != "" && cfg.Password == "" || cfg.Username == "" && cfg.Password != "" {
		return nil, &rederrors.ConfigError{Field: "Username", Message: "username and password must be set together"}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}

	policy := internal.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}

	auth, err := internal.NewAuthenticator(cfg.HTTPClient, internal.AuthConfig{
		Username:     cfg.Username,
		Password:     cfg.Password,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		DeviceID:     cfg.DeviceID,
		UserAgent:    userAgent,
		BaseURL:      authURL,
		Grant:        cfg.grant(),
		Retry:        policy,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	limiter := internal.NewRateLimiter(internal.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	}, logger)

	api, err := internal.NewClient(cfg.HTTPClient, auth, limiter, baseURL, userAgent, policy, logger)
	if err != nil {
		return nil, err
	}

	return &Client{
		api:    api,
		auth:   auth,
		parser: internal.NewParser(),
		logger: logger,
	}, nil
}

// Connect eagerly obtains an access token, verifying the credentials.
// Calling it is optional; every operation fetches a token on demand.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.auth.Token(ctx)
	return err
}

// IsConnected reports whether the client currently holds an unexpired token.
func (c *Client) IsConnected() bool {
	cred := c.auth.Current()
	return cred != nil && !cred.ExpiresWithin(0)
}

// Me returns the account the client is authenticated as. Only meaningful for
// user-context grants; application-only tokens get a 401 here.
func (c *Client) Me(ctx context.Context) (*types.AccountData, error) {
	req, err := c.api.NewRequest(ctx, http.MethodGet, "api/v1/me", nil)
	if err != nil {
		return nil, err
	}

	// This endpoint returns the account fields without the kind/data envelope.
	body, err := c.api.DoRaw(req)
	if err != nil {
		return nil, err
	}

	var account types.AccountData
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, &rederrors.ParseError{Operation: "me", Err: err}
	}
	return &account, nil
}

// GetUser returns the public account info for a username.
func (c *Client) GetUser(ctx context.Context, username string) (*types.AccountData, error) {
	if err := internal.ValidateUsername(username); err != nil {
		return nil, &rederrors.ConfigError{Field: "username", Message: err.Error()}
	}

	req, err := c.api.NewRequest(ctx, http.MethodGet, "user/"+url.PathEscape(username)+"/about", nil)
	if err != nil {
		return nil, err
	}

	var thing types.Thing
	if _, err := c.api.Do(req, &thing); err != nil {
		return nil, err
	}
	return c.parser.ParseAccount(&thing)
}

// GetSubreddit returns metadata about a subreddit.
func (c *Client) GetSubreddit(ctx context.Context, name string) (*types.SubredditData, error) {
	if err := internal.ValidateSubreddit(name); err != nil {
		return nil, &rederrors.ConfigError{Field: "subreddit", Message: err.Error()}
	}

	req, err := c.api.NewRequest(ctx, http.MethodGet, "r/"+url.PathEscape(name)+"/about", nil)
	if err != nil {
		return nil, err
	}

	var thing types.Thing
	if _, err := c.api.Do(req, &thing); err != nil {
		return nil, err
	}
	return c.parser.ParseSubreddit(&thing)
}

// GetPost fetches a single post by its fullname, e.g. "t3_abc123".
func (c *Client) GetPost(ctx context.Context, fullname string) (*types.Post, error) {
	if err := internal.ValidateFullname(fullname); err != nil {
		return nil, &rederrors.ConfigError{Field: "fullname", Message: err.Error()}
	}

	req, err := c.api.NewRequest(ctx, http.MethodGet, "by_id/"+url.PathEscape(fullname), nil)
	if err != nil {
		return nil, err
	}

	var thing types.Thing
	if _, err := c.api.Do(req, &thing); err != nil {
		return nil, err
	}
	posts, err := c.parser.ExtractPosts(&thing)
	if err != nil {
		return nil, &rederrors.ParseError{Operation: "by_id", Err: err}
	}
	if len(posts) == 0 {
		return nil, &rederrors.ParseError{Operation: "by_id", Message: fmt.Sprintf("no post with fullname %q", fullname)}
	}
	return posts[0], nil
}

// GetPosts fetches one page of a subreddit listing. Leave Subreddit empty for
// the front page. The response carries the cursors for adjacent pages; for
// hands-off iteration use NewPostListing instead.
func (c *Client) GetPosts(ctx context.Context, request *types.PostsRequest) (*types.PostsResponse, error) {
	if request == nil {
		request = &types.PostsRequest{}
	}
	if request.Subreddit != "" {
		if err := internal.ValidateSubreddit(request.Subreddit); err != nil {
			return nil, &rederrors.ConfigError{Field: "subreddit", Message: err.Error()}
		}
	}

	sort := request.Sort
	if sort == "" {
		sort = types.SortHot
	}

	path := string(sort)
	if request.Subreddit != "" {
		path = "r/" + url.PathEscape(request.Subreddit) + "/" + string(sort)
	}

	query, err := paginationValues(request.Pagination)
	if err != nil {
		return nil, err
	}
	if request.Time != "" && (sort == types.SortTop || sort == types.SortControversial) {
		query.Set("t", string(request.Time))
	}

	return c.fetchPostPage(ctx, path, query)
}

// GetHot fetches hot posts for a subreddit (or the front page).
func (c *Client) GetHot(ctx context.Context, request *types.PostsRequest) (*types.PostsResponse, error) {
	return c.getSorted(ctx, request, types.SortHot)
}

// GetNew fetches the newest posts for a subreddit (or the front page).
func (c *Client) GetNew(ctx context.Context, request *types.PostsRequest) (*types.PostsResponse, error) {
	return c.getSorted(ctx, request, types.SortNew)
}

// GetRising fetches rising posts for a subreddit (or the front page).
func (c *Client) GetRising(ctx context.Context, request *types.PostsRequest) (*types.PostsResponse, error) {
	return c.getSorted(ctx, request, types.SortRising)
}

// GetTop fetches top posts, optionally narrowed by request.Time.
func (c *Client) GetTop(ctx context.Context, request *types.PostsRequest) (*types.PostsResponse, error) {
	return c.getSorted(ctx, request, types.SortTop)
}

// GetControversial fetches controversial posts, optionally narrowed by request.Time.
func (c *Client) GetControversial(ctx context.Context, request *types.PostsRequest) (*types.PostsResponse, error) {
	return c.getSorted(ctx, request, types.SortControversial)
}

func (c *Client) getSorted(ctx context.Context, request *types.PostsRequest, sort types.Sort) (*types.PostsResponse, error) {
	if request == nil {
		request = &types.PostsRequest{}
	}
	r := *request
	r.Sort = sort
	return c.GetPosts(ctx, &r)
}

// Search runs a post search. With a Subreddit set the search is restricted to
// it, otherwise it spans the whole site.
func (c *Client) Search(ctx context.Context, request *types.SearchRequest) (*types.PostsResponse, error) {
	if request == nil || request.Query == "" {
		return nil, &rederrors.ConfigError{Field: "query", Message: "search query is required"}
	}

	path := "search"
	query, err := paginationValues(request.Pagination)
	if err != nil {
		return nil, err
	}
	query.Set("q", request.Query)
	if request.Subreddit != "" {
		if err := internal.ValidateSubreddit(request.Subreddit); err != nil {
			return nil, &rederrors.ConfigError{Field: "subreddit", Message: err.Error()}
		}
		path = "r/" + url.PathEscape(request.Subreddit) + "/search"
		query.Set("restrict_sr", "1")
	}
	if request.Sort != "" {
		query.Set("sort", request.Sort)
	}

	return c.fetchPostPage(ctx, path, query)
}

// GetUserPosts fetches one page of a user's submitted posts.
func (c *Client) GetUserPosts(ctx context.Context, request *types.UserContentRequest) (*types.PostsResponse, error) {
	if request == nil {
		return nil, &rederrors.ConfigError{Field: "username", Message: "username is required"}
	}
	if err := internal.ValidateUsername(request.Username); err != nil {
		return nil, &rederrors.ConfigError{Field: "username", Message: err.Error()}
	}

	query, err := paginationValues(request.Pagination)
	if err != nil {
		return nil, err
	}
	return c.fetchPostPage(ctx, "user/"+url.PathEscape(request.Username)+"/submitted", query)
}

// GetUserComments fetches one page of a user's comment history.
func (c *Client) GetUserComments(ctx context.Context, request *types.UserContentRequest) (*types.CommentListResponse, error) {
	if request == nil {
		return nil, &rederrors.ConfigError{Field: "username", Message: "username is required"}
	}
	if err := internal.ValidateUsername(request.Username); err != nil {
		return nil, &rederrors.ConfigError{Field: "username", Message: err.Error()}
	}

	query, err := paginationValues(request.Pagination)
	if err != nil {
		return nil, err
	}
	return c.fetchCommentPage(ctx, "user/"+url.PathEscape(request.Username)+"/comments", query)
}

// GetRecentComments fetches one page of the flat newest-comments feed of a
// subreddit, the feed StreamComments polls.
func (c *Client) GetRecentComments(ctx context.Context, subreddit string, p types.Pagination) (*types.CommentListResponse, error) {
	if err := internal.ValidateSubreddit(subreddit); err != nil {
		return nil, &rederrors.ConfigError{Field: "subreddit", Message: err.Error()}
	}

	query, err := paginationValues(p)
	if err != nil {
		return nil, err
	}
	return c.fetchCommentPage(ctx, "r/"+url.PathEscape(subreddit)+"/comments", query)
}

// CommentsResponse is the result of GetComments: the post itself and its
// comment tree. Truncated branches surface as More nodes in the tree; expand
// them with ExpandMore.
type CommentsResponse struct {
	Post *types.Post
	Tree *CommentTree
}

// GetComments fetches a post and its comment tree.
func (c *Client) GetComments(ctx context.Context, request *types.CommentsRequest) (*CommentsResponse, error) {
	if request == nil {
		return nil, &rederrors.ConfigError{Field: "request", Message: "request is required"}
	}
	if err := internal.ValidateSubreddit(request.Subreddit); err != nil {
		return nil, &rederrors.ConfigError{Field: "subreddit", Message: err.Error()}
	}
	if !internal.IsValidBase36(request.PostID) {
		return nil, &rederrors.ConfigError{Field: "postID", Message: fmt.Sprintf("invalid post id: %q", request.PostID)}
	}

	query, err := paginationValues(request.Pagination)
	if err != nil {
		return nil, err
	}
	if request.Sort != "" {
		query.Set("sort", request.Sort)
	}

	path := "r/" + url.PathEscape(request.Subreddit) + "/comments/" + url.PathEscape(request.PostID)
	req, err := c.api.NewRequest(ctx, http.MethodGet, withQuery(path, query), nil)
	if err != nil {
		return nil, err
	}

	// The comments endpoint returns a two-element array, not a single Thing.
	body, err := c.api.DoRaw(req)
	if err != nil {
		return nil, err
	}

	var things []*types.Thing
	if err := json.Unmarshal(body, &things); err != nil {
		return nil, &rederrors.ParseError{Operation: "comments", Err: err}
	}

	post, nodes, err := c.parser.ExtractPostAndComments(things)
	if err != nil {
		return nil, &rederrors.ParseError{Operation: "comments", Err: err}
	}

	return &CommentsResponse{
		Post: post,
		Tree: &CommentTree{LinkID: fullname("t3", request.PostID), Children: nodes},
	}, nil
}

// GetMoreComments loads comments referenced by a More placeholder. The
// returned nodes are nested under each other where parent relationships allow,
// but they are not attached to any tree; use ExpandMore for in-place expansion.
func (c *Client) GetMoreComments(ctx context.Context, request *types.MoreCommentsRequest) ([]*types.CommentNode, error) {
	if request == nil {
		return nil, &rederrors.ConfigError{Field: "request", Message: "request is required"}
	}
	if err := internal.ValidateFullname(request.LinkID); err != nil {
		return nil, &rederrors.ConfigError{Field: "linkID", Message: err.Error()}
	}
	if len(request.CommentIDs) == 0 {
		return nil, nil
	}

	var nodes []*types.CommentNode
	for _, chunk := range internal.ChunkIDs(request.CommentIDs) {
		batch, err := c.fetchMoreChildren(ctx, request, chunk)
		if err != nil {
			return nodes, err
		}
		nodes = append(nodes, batch...)
	}
	return nestNodes(nodes), nil
}

func (c *Client) fetchMoreChildren(ctx context.Context, request *types.MoreCommentsRequest, ids []string) ([]*types.CommentNode, error) {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("link_id", request.LinkID)
	form.Set("children", strings.Join(ids, ","))
	if request.Sort != "" {
		form.Set("sort", request.Sort)
	}
	if request.Depth > 0 {
		form.Set("depth", strconv.Itoa(request.Depth))
	}
	if request.Limit > 0 {
		form.Set("limit_children", strconv.Itoa(request.Limit))
	}

	resp, err := c.postForm(ctx, "api/morechildren", form)
	if err != nil {
		return nil, err
	}

	var data struct {
		Things []*types.Thing `json:"things"`
	}
	if err := json.Unmarshal(resp, &data); err != nil {
		return nil, &rederrors.ParseError{Operation: "morechildren", Err: err}
	}

	nodes := make([]*types.CommentNode, 0, len(data.Things))
	for _, thing := range data.Things {
		node, err := c.parser.ParseCommentNode(thing)
		if err != nil {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// ExpandMore fetches the comments behind a More placeholder and splices them
// into the tree where the placeholder sat. Child ids within the batch are
// fetched in service order; expanding can itself surface new More nodes.
func (c *Client) ExpandMore(ctx context.Context, tree *CommentTree, more *types.MoreRef) error {
	if tree == nil || more == nil {
		return &rederrors.ConfigError{Field: "more", Message: "tree and more are required"}
	}

	nodes, err := c.GetMoreComments(ctx, &types.MoreCommentsRequest{
		LinkID:     tree.LinkID,
		CommentIDs: more.Children,
	})
	if err != nil {
		return err
	}

	if !tree.spliceMore(more.ID, nodes) {
		return &rederrors.StateError{Message: fmt.Sprintf("more node %q is not in the tree", more.ID)}
	}
	return nil
}

// SubmitSelf creates a self (text) post.
func (c *Client) SubmitSelf(ctx context.Context, request *types.SubmitRequest) (*types.SubmitResult, error) {
	if request == nil {
		return nil, &rederrors.ConfigError{Field: "request", Message: "request is required"}
	}
	if err := internal.ValidateSubreddit(request.Subreddit); err != nil {
		return nil, &rederrors.ConfigError{Field: "subreddit", Message: err.Error()}
	}
	if request.Title == "" {
		return nil, &rederrors.ConfigError{Field: "title", Message: "title is required"}
	}

	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("kind", "self")
	form.Set("sr", request.Subreddit)
	form.Set("title", request.Title)
	form.Set("text", request.Text)
	form.Set("sendreplies", strconv.FormatBool(request.SendReplies))

	resp, err := c.postForm(ctx, "api/submit", form)
	if err != nil {
		return nil, err
	}

	var result types.SubmitResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, &rederrors.ParseError{Operation: "submit", Err: err}
	}
	return &result, nil
}

// Reply comments on a post, another comment, or a private message, identified
// by its fullname. It returns the created comment.
func (c *Client) Reply(ctx context.Context, request *types.ReplyRequest) (*types.Comment, error) {
	if request == nil {
		return nil, &rederrors.ConfigError{Field: "request", Message: "request is required"}
	}
	if err := internal.ValidateFullname(request.ParentFullname); err != nil {
		return nil, &rederrors.ConfigError{Field: "parent", Message: err.Error()}
	}
	if request.Text == "" {
		return nil, &rederrors.ConfigError{Field: "text", Message: "text is required"}
	}

	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("thing_id", request.ParentFullname)
	form.Set("text", request.Text)

	resp, err := c.postForm(ctx, "api/comment", form)
	if err != nil {
		return nil, err
	}

	var data struct {
		Things []*types.Thing `json:"things"`
	}
	if err := json.Unmarshal(resp, &data); err != nil {
		return nil, &rederrors.ParseError{Operation: "comment", Err: err}
	}
	if len(data.Things) == 0 {
		return nil, &rederrors.ParseError{Operation: "comment", Message: "response contained no comment"}
	}
	return c.parser.ParseComment(data.Things[0])
}

// SendMessage sends a private message. Requires a user-context grant; the
// recipient is a bare username.
func (c *Client) SendMessage(ctx context.Context, request *types.MessageRequest) error {
	if request == nil {
		return &rederrors.ConfigError{Field: "request", Message: "request is required"}
	}
	if err := internal.ValidateUsername(request.To); err != nil {
		return &rederrors.ConfigError{Field: "to", Message: err.Error()}
	}
	if request.Subject == "" {
		return &rederrors.ConfigError{Field: "subject", Message: "subject is required"}
	}
	if request.Text == "" {
		return &rederrors.ConfigError{Field: "text", Message: "text is required"}
	}

	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("to", request.To)
	form.Set("subject", request.Subject)
	form.Set("text", request.Text)

	_, err := c.postForm(ctx, "api/compose", form)
	return err
}

// SetSticky stickies or unstickies a post. Reddit has two sticky slots per
// subreddit; Slot 0 lets the service pick.
func (c *Client) SetSticky(ctx context.Context, request *types.StickyRequest) error {
	if request == nil {
		return &rederrors.ConfigError{Field: "request", Message: "request is required"}
	}
	if err := internal.ValidateFullname(request.ID); err != nil {
		return &rederrors.ConfigError{Field: "id", Message: err.Error()}
	}
	if request.Slot != 0 {
		if err := internal.ValidateStickySlot(request.Slot); err != nil {
			return &rederrors.ConfigError{Field: "slot", Message: err.Error()}
		}
	}

	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("id", request.ID)
	form.Set("state", strconv.FormatBool(request.State))
	if request.Slot != 0 {
		form.Set("num", strconv.Itoa(request.Slot))
	}

	_, err := c.postForm(ctx, "api/set_subreddit_sticky", form)
	return err
}

// NewPostListing returns a lazy iterator over a post listing. The request's
// After cursor seeds the first page; pages after that follow the cursors the
// service returns.
func (c *Client) NewPostListing(request *types.PostsRequest) *Listing[*types.Post] {
	base := types.PostsRequest{}
	if request != nil {
		base = *request
	}
	return NewListing(func(ctx context.Context, after string) ([]*types.Post, string, error) {
		r := base
		if after != "" {
			r.After = after
		}
		page, err := c.GetPosts(ctx, &r)
		if err != nil {
			return nil, "", err
		}
		return page.Posts, page.AfterFullname, nil
	})
}

// NewSearchListing returns a lazy iterator over search results.
func (c *Client) NewSearchListing(request *types.SearchRequest) *Listing[*types.Post] {
	base := types.SearchRequest{}
	if request != nil {
		base = *request
	}
	return NewListing(func(ctx context.Context, after string) ([]*types.Post, string, error) {
		r := base
		if after != "" {
			r.After = after
		}
		page, err := c.Search(ctx, &r)
		if err != nil {
			return nil, "", err
		}
		return page.Posts, page.AfterFullname, nil
	})
}

// NewUserPostsListing returns a lazy iterator over a user's submissions.
func (c *Client) NewUserPostsListing(request *types.UserContentRequest) *Listing[*types.Post] {
	base := types.UserContentRequest{}
	if request != nil {
		base = *request
	}
	return NewListing(func(ctx context.Context, after string) ([]*types.Post, string, error) {
		r := base
		if after != "" {
			r.After = after
		}
		page, err := c.GetUserPosts(ctx, &r)
		if err != nil {
			return nil, "", err
		}
		return page.Posts, page.AfterFullname, nil
	})
}

// NewRecentCommentsListing returns a lazy iterator over a subreddit's flat
// newest-comments feed.
func (c *Client) NewRecentCommentsListing(subreddit string, p types.Pagination) *Listing[*types.Comment] {
	return NewListing(func(ctx context.Context, after string) ([]*types.Comment, string, error) {
		page := p
		if after != "" {
			page.After = after
		}
		resp, err := c.GetRecentComments(ctx, subreddit, page)
		if err != nil {
			return nil, "", err
		}
		return resp.Comments, resp.AfterFullname, nil
	})
}

// StreamNewPosts polls a subreddit's new listing and yields each post at most
// once. Pass interval 0 for the default cadence.
func (c *Client) StreamNewPosts(subreddit string, interval time.Duration) *Stream[*types.Post] {
	fetch := func(ctx context.Context) ([]*types.Post, error) {
		page, err := c.GetNew(ctx, &types.PostsRequest{
			Subreddit:  subreddit,
			Pagination: types.Pagination{Limit: internal.MaxListingLimit},
		})
		if err != nil {
			return nil, err
		}
		return page.Posts, nil
	}
	return NewStream(fetch,
		func(p *types.Post) string { return p.ID },
		func(p *types.Post) time.Time { return p.CreatedTime() },
		interval, internal.MaxListingLimit, c.logger)
}

// StreamComments polls a subreddit's flat comment feed and yields each
// comment at most once. Pass interval 0 for the default cadence.
func (c *Client) StreamComments(subreddit string, interval time.Duration) *Stream[*types.Comment] {
	fetch := func(ctx context.Context) ([]*types.Comment, error) {
		page, err := c.GetRecentComments(ctx, subreddit, types.Pagination{Limit: internal.MaxListingLimit})
		if err != nil {
			return nil, err
		}
		return page.Comments, nil
	}
	return NewStream(fetch,
		func(cm *types.Comment) string { return cm.ID },
		func(cm *types.Comment) time.Time { return cm.CreatedTime() },
		interval, internal.MaxListingLimit, c.logger)
}

// fetchPostPage runs a GET against a listing endpoint and extracts the posts.
func (c *Client) fetchPostPage(ctx context.Context, path string, query url.Values) (*types.PostsResponse, error) {
	req, err := c.api.NewRequest(ctx, http.MethodGet, withQuery(path, query), nil)
	if err != nil {
		return nil, err
	}

	var thing types.Thing
	if _, err := c.api.Do(req, &thing); err != nil {
		return nil, err
	}

	listing, err := c.parser.ParseListing(&thing)
	if err != nil {
		return nil, &rederrors.ParseError{Operation: path, Err: err}
	}
	posts, err := c.parser.ExtractPosts(&thing)
	if err != nil {
		return nil, &rederrors.ParseError{Operation: path, Err: err}
	}

	return &types.PostsResponse{
		Posts:          posts,
		AfterFullname:  listing.AfterFullname,
		BeforeFullname: listing.BeforeFullname,
	}, nil
}

// fetchCommentPage runs a GET against a flat comment listing endpoint.
func (c *Client) fetchCommentPage(ctx context.Context, path string, query url.Values) (*types.CommentListResponse, error) {
	req, err := c.api.NewRequest(ctx, http.MethodGet, withQuery(path, query), nil)
	if err != nil {
		return nil, err
	}

	var thing types.Thing
	if _, err := c.api.Do(req, &thing); err != nil {
		return nil, err
	}

	resp, err := c.parser.ExtractFlatComments(&thing)
	if err != nil {
		return nil, &rederrors.ParseError{Operation: path, Err: err}
	}
	return resp, nil
}

// postForm submits a form to one of the api_type=json write endpoints and
// returns the inner json.data payload after surfacing any api-level errors.
func (c *Client) postForm(ctx context.Context, path string, form url.Values) (json.RawMessage, error) {
	req, err := c.api.NewRequest(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.api.DoRaw(req)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		JSON struct {
			Errors [][]any         `json:"errors"`
			Data   json.RawMessage `json:"data"`
		} `json:"json"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &rederrors.ParseError{Operation: path, Err: err}
	}
	if len(envelope.JSON.Errors) > 0 {
		return nil, &rederrors.APIError{
			StatusCode: http.StatusOK,
			Body:       formatAPIErrors(envelope.JSON.Errors),
		}
	}
	return envelope.JSON.Data, nil
}

// formatAPIErrors flattens Reddit's [code, message, field] error triplets.
func formatAPIErrors(errs [][]any) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		fields := make([]string, 0, len(e))
		for _, f := range e {
			if s, ok := f.(string); ok && s != "" {
				fields = append(fields, s)
			}
		}
		parts = append(parts, strings.Join(fields, ": "))
	}
	return strings.Join(parts, "; ")
}

// paginationValues converts pagination fields to query parameters.
func paginationValues(p types.Pagination) (url.Values, error) {
	if err := internal.ValidateLimit(p.Limit); err != nil {
		return nil, &rederrors.ConfigError{Field: "limit", Message: err.Error()}
	}
	if p.After != "" && p.Before != "" {
		return nil, &rederrors.ConfigError{Field: "pagination", Message: "after and before cannot be combined"}
	}

	query := url.Values{}
	if p.Limit > 0 {
		query.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.After != "" {
		query.Set("after", p.After)
	}
	if p.Before != "" {
		query.Set("before", p.Before)
	}
	return query, nil
}

func withQuery(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

// fullname joins a type prefix and a base36 id, leaving already-prefixed ids alone.
func fullname(kind, id string) string {
	if strings.HasPrefix(id, kind+"_") {
		return id
	}
	return kind + "_" + id
}

// nestNodes attaches flat morechildren results to their parents where the
// parent is part of the same batch, returning the remaining roots in order.
func nestNodes(nodes []*types.CommentNode) []*types.CommentNode {
	byFullname := make(map[string]*types.CommentNode, len(nodes))
	for _, node := range nodes {
		if node.Kind != types.CommentMore && node.Comment != nil {
			byFullname[node.Comment.Name] = node
		}
	}

	roots := make([]*types.CommentNode, 0, len(nodes))
	for _, node := range nodes {
		parentID := ""
		switch {
		case node.Kind == types.CommentMore && node.More != nil:
			parentID = node.More.ParentID
		case node.Comment != nil:
			parentID = node.Comment.ParentID
		}
		if parent, ok := byFullname[parentID]; ok && parent.Kind == types.CommentLoaded {
			parent.Comment.Replies = append(parent.Comment.Replies, node)
			continue
		}
		roots = append(roots, node)
	}
	return roots
}
