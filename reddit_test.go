package reddit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesprial/go-reddit-client/internal"
	rederrors "github.com/jamesprial/go-reddit-client/pkg/errors"
	"github.com/jamesprial/go-reddit-client/pkg/types"
)

// newTestServer serves the token endpoint plus whatever routes the test
// registers, and returns a client pointed at it.
func newTestServer(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()

	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"test-token","token_type":"bearer","expires_in":3600,"scope":"*"}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{
		ClientID:     "id",
		ClientSecret: "secret",
		UserAgent:    "test/1.0",
		BaseURL:      server.URL,
		AuthURL:      server.URL,
		HTTPClient:   server.Client(),
		RateLimit:    RateLimitConfig{RequestsPerMinute: 60000, Burst: 100},
	})
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	var cfgErr *rederrors.ConfigError

	_, err := NewClient(nil)
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewClient(&Config{})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "ClientID", cfgErr.Field)

	_, err = NewClient(&Config{ClientID: "id", Username: "user"})
	require.ErrorAs(t, err, &cfgErr)
}

func TestConfigGrantSelection(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"script app", Config{ClientID: "id", ClientSecret: "s", Username: "u", Password: "p"}, internal.GrantPassword},
		{"installed app", Config{ClientID: "id"}, internal.GrantInstalledClient},
		{"app only", Config{ClientID: "id", ClientSecret: "s"}, internal.GrantClientCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.grant())
		})
	}
}

func TestConnectAndIsConnected(t *testing.T) {
	client := newTestServer(t, http.NewServeMux())

	assert.False(t, client.IsConnected())
	require.NoError(t, client.Connect(context.Background()))
	assert.True(t, client.IsConnected())
}

func TestMe(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":"abc","name":"testuser","link_karma":100,"comment_karma":200}`)
	})
	client := newTestServer(t, mux)

	me, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "testuser", me.Name)
	assert.Equal(t, 100, me.LinkKarma)
}

func TestGetSubreddit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/r/golang/about", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"kind":"t5","data":{"display_name":"golang","subscribers":300000}}`)
	})
	client := newTestServer(t, mux)

	sub, err := client.GetSubreddit(context.Background(), "golang")
	require.NoError(t, err)
	assert.Equal(t, "golang", sub.DisplayName)
	assert.Equal(t, int64(300000), sub.Subscribers)

	_, err = client.GetSubreddit(context.Background(), "r/golang")
	var cfgErr *rederrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestGetPostsBuildsQuery(t *testing.T) {
	var gotPath, gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/r/golang/top", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"kind":"Listing","data":{"after":"t3_next","children":[
			{"kind":"t3","data":{"id":"p1","title":"hello"}}
		]}}`)
	})
	client := newTestServer(t, mux)

	page, err := client.GetTop(context.Background(), &types.PostsRequest{
		Subreddit:  "golang",
		Time:       types.TimeWeek,
		Pagination: types.Pagination{Limit: 50, After: "t3_prev"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/r/golang/top", gotPath)
	assert.Contains(t, gotQuery, "limit=50")
	assert.Contains(t, gotQuery, "after=t3_prev")
	assert.Contains(t, gotQuery, "t=week")
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "hello", page.Posts[0].Title)
	assert.Equal(t, "t3_next", page.AfterFullname)
}

func TestGetPostsFrontPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/hot", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"kind":"Listing","data":{"children":[]}}`)
	})
	client := newTestServer(t, mux)

	page, err := client.GetPosts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
}

func TestSearch(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/r/golang/search", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"kind":"Listing","data":{"children":[]}}`)
	})
	client := newTestServer(t, mux)

	_, err := client.Search(context.Background(), &types.SearchRequest{
		Subreddit: "golang",
		Query:     "generics",
		Sort:      "top",
	})
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "q=generics")
	assert.Contains(t, gotQuery, "restrict_sr=1")
	assert.Contains(t, gotQuery, "sort=top")

	_, err = client.Search(context.Background(), &types.SearchRequest{Subreddit: "golang"})
	var cfgErr *rederrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestGetCommentsBuildsTree(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/r/golang/comments/p1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"kind":"Listing","data":{"children":[
				{"kind":"t3","data":{"id":"p1","name":"t3_p1","title":"the post"}}
			]}},
			{"kind":"Listing","data":{"children":[
				{"kind":"t1","data":{"id":"c1","name":"t1_c1","author":"alice","body":"top level","replies":{
					"kind":"Listing","data":{"children":[
						{"kind":"t1","data":{"id":"c2","name":"t1_c2","author":"[deleted]","body":"[removed]","replies":""}}
					]}
				}}},
				{"kind":"more","data":{"id":"m1","name":"t1_m1","parent_id":"t3_p1","count":2,"children":["x","y"]}}
			]}}
		]`)
	})
	client := newTestServer(t, mux)

	resp, err := client.GetComments(context.Background(), &types.CommentsRequest{
		Subreddit: "golang",
		PostID:    "p1",
	})
	require.NoError(t, err)

	assert.Equal(t, "the post", resp.Post.Title)
	assert.Equal(t, "t3_p1", resp.Tree.LinkID)
	require.Len(t, resp.Tree.Children, 2)

	top := resp.Tree.Children[0]
	assert.Equal(t, types.CommentLoaded, top.Kind)
	require.Len(t, top.Comment.Replies, 1)
	assert.Equal(t, types.CommentRemoved, top.Comment.Replies[0].Kind)

	assert.Equal(t, types.CommentMore, resp.Tree.Children[1].Kind)
	assert.Equal(t, []string{"x", "y"}, resp.Tree.Children[1].More.Children)
}

func TestExpandMoreSplicesIntoTree(t *testing.T) {
	var childrenParam string
	mux := http.NewServeMux()
	mux.HandleFunc("/r/golang/comments/p1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"kind":"Listing","data":{"children":[{"kind":"t3","data":{"id":"p1","name":"t3_p1"}}]}},
			{"kind":"Listing","data":{"children":[
				{"kind":"t1","data":{"id":"c1","name":"t1_c1","body":"root","replies":""}},
				{"kind":"more","data":{"id":"m1","name":"t1_m1","parent_id":"t3_p1","count":2,"children":["x","y"]}}
			]}}
		]`)
	})
	mux.HandleFunc("/api/morechildren", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		childrenParam = r.PostForm.Get("children")
		assert.Equal(t, "t3_p1", r.PostForm.Get("link_id"))
		fmt.Fprint(w, `{"json":{"errors":[],"data":{"things":[
			{"kind":"t1","data":{"id":"x","name":"t1_x","parent_id":"t3_p1","body":"expanded x","replies":""}},
			{"kind":"t1","data":{"id":"y","name":"t1_y","parent_id":"t1_x","body":"expanded y","replies":""}}
		]}}}`)
	})
	client := newTestServer(t, mux)

	resp, err := client.GetComments(context.Background(), &types.CommentsRequest{
		Subreddit: "golang",
		PostID:    "p1",
	})
	require.NoError(t, err)

	mores := resp.Tree.MoreRefs()
	require.Len(t, mores, 1)

	require.NoError(t, client.ExpandMore(context.Background(), resp.Tree, mores[0]))
	assert.Equal(t, "x,y", childrenParam, "children are requested in the ref's order")

	// m1 is gone; x took its place at top level, y nested under x.
	assert.Empty(t, resp.Tree.MoreRefs())
	require.Len(t, resp.Tree.Children, 2)
	x := resp.Tree.Children[1]
	assert.Equal(t, "expanded x", x.Comment.Body)
	require.Len(t, x.Comment.Replies, 1)
	assert.Equal(t, "expanded y", x.Comment.Replies[0].Comment.Body)
}

func TestExpandMoreMissingFromTree(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/morechildren", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"json":{"errors":[],"data":{"things":[]}}}`)
	})
	client := newTestServer(t, mux)

	tree := &CommentTree{LinkID: "t3_p1"}
	more := &types.MoreRef{Children: []string{"x"}}
	more.ID = "ghost"

	err := client.ExpandMore(context.Background(), tree, more)
	var stateErr *rederrors.StateError
	require.ErrorAs(t, err, &stateErr)
}

func TestSubmitSelf(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/submit", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "self", r.PostForm.Get("kind"))
		assert.Equal(t, "golang", r.PostForm.Get("sr"))
		assert.Equal(t, "a title", r.PostForm.Get("title"))
		fmt.Fprint(w, `{"json":{"errors":[],"data":{"id":"newpost","name":"t3_newpost","url":"https://reddit.com/r/golang/comments/newpost/"}}}`)
	})
	client := newTestServer(t, mux)

	result, err := client.SubmitSelf(context.Background(), &types.SubmitRequest{
		Subreddit: "golang",
		Title:     "a title",
		Text:      "body",
	})
	require.NoError(t, err)
	assert.Equal(t, "t3_newpost", result.Fullname)
}

func TestSubmitSelfSurfacesAPIErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/submit", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"json":{"errors":[["SUBREDDIT_NOTALLOWED","not allowed to post there","sr"]]}}`)
	})
	client := newTestServer(t, mux)

	_, err := client.SubmitSelf(context.Background(), &types.SubmitRequest{
		Subreddit: "golang",
		Title:     "a title",
	})
	var apiErr *rederrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Body, "SUBREDDIT_NOTALLOWED")
}

func TestReply(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/comment", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "t3_p1", r.PostForm.Get("thing_id"))
		assert.Equal(t, "nice post", r.PostForm.Get("text"))
		fmt.Fprint(w, `{"json":{"errors":[],"data":{"things":[
			{"kind":"t1","data":{"id":"c9","name":"t1_c9","body":"nice post","replies":""}}
		]}}}`)
	})
	client := newTestServer(t, mux)

	comment, err := client.Reply(context.Background(), &types.ReplyRequest{
		ParentFullname: "t3_p1",
		Text:           "nice post",
	})
	require.NoError(t, err)
	assert.Equal(t, "c9", comment.ID)
}

func TestSendMessage(t *testing.T) {
	var form struct{ to, subject, text string }
	mux := http.NewServeMux()
	mux.HandleFunc("/api/compose", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form.to = r.PostForm.Get("to")
		form.subject = r.PostForm.Get("subject")
		form.text = r.PostForm.Get("text")
		fmt.Fprint(w, `{"json":{"errors":[]}}`)
	})
	client := newTestServer(t, mux)

	require.NoError(t, client.SendMessage(context.Background(), &types.MessageRequest{
		To: "gopher", Subject: "hi", Text: "hello there",
	}))
	assert.Equal(t, "gopher", form.to)
	assert.Equal(t, "hi", form.subject)
	assert.Equal(t, "hello there", form.text)

	var cfgErr *rederrors.ConfigError
	err := client.SendMessage(context.Background(), &types.MessageRequest{To: "u/gopher", Subject: "hi", Text: "x"})
	require.ErrorAs(t, err, &cfgErr)
	err = client.SendMessage(context.Background(), &types.MessageRequest{To: "gopher", Text: "x"})
	require.ErrorAs(t, err, &cfgErr)
}

func TestSendMessageSurfacesAPIErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/compose", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"json":{"errors":[["USER_DOESNT_EXIST","that user doesn't exist","to"]]}}`)
	})
	client := newTestServer(t, mux)

	err := client.SendMessage(context.Background(), &types.MessageRequest{
		To: "nobody", Subject: "hi", Text: "hello",
	})
	var apiErr *rederrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Body, "USER_DOESNT_EXIST")
}

func TestGetPost(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/by_id/t3_p1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"kind":"Listing","data":{"children":[
			{"kind":"t3","data":{"id":"p1","name":"t3_p1","title":"hello"}}
		]}}`)
	})
	client := newTestServer(t, mux)

	post, err := client.GetPost(context.Background(), "t3_p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", post.ID)
	assert.Equal(t, "hello", post.Title)

	_, err = client.GetPost(context.Background(), "p1")
	var cfgErr *rederrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestGetPostNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/by_id/t3_gone", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"kind":"Listing","data":{"children":[]}}`)
	})
	client := newTestServer(t, mux)

	_, err := client.GetPost(context.Background(), "t3_gone")
	var parseErr *rederrors.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestSetSticky(t *testing.T) {
	var form struct{ id, state, num string }
	mux := http.NewServeMux()
	mux.HandleFunc("/api/set_subreddit_sticky", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form.id = r.PostForm.Get("id")
		form.state = r.PostForm.Get("state")
		form.num = r.PostForm.Get("num")
		fmt.Fprint(w, `{"json":{"errors":[]}}`)
	})
	client := newTestServer(t, mux)

	require.NoError(t, client.SetSticky(context.Background(), &types.StickyRequest{
		ID: "t3_p1", State: true, Slot: 2,
	}))
	assert.Equal(t, "t3_p1", form.id)
	assert.Equal(t, "true", form.state)
	assert.Equal(t, "2", form.num)

	err := client.SetSticky(context.Background(), &types.StickyRequest{ID: "t3_p1", Slot: 3})
	var cfgErr *rederrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewPostListingPaginates(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/r/golang/new", func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			assert.Empty(t, r.URL.Query().Get("after"))
			fmt.Fprint(w, `{"kind":"Listing","data":{"after":"t3_p2","children":[
				{"kind":"t3","data":{"id":"p1"}},
				{"kind":"t3","data":{"id":"p2"}}
			]}}`)
		case 2:
			assert.Equal(t, "t3_p2", r.URL.Query().Get("after"))
			fmt.Fprint(w, `{"kind":"Listing","data":{"after":"","children":[
				{"kind":"t3","data":{"id":"p3"}}
			]}}`)
		default:
			t.Error("listing fetched past its final page")
		}
	})
	client := newTestServer(t, mux)

	listing := client.NewPostListing(&types.PostsRequest{Subreddit: "golang", Sort: types.SortNew})
	posts, err := listing.Collect(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "p3", posts[2].ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStreamNewPostsAgainstServer(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/r/golang/new", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			fmt.Fprint(w, `{"kind":"Listing","data":{"children":[
				{"kind":"t3","data":{"id":"p2","created_utc":200}},
				{"kind":"t3","data":{"id":"p1","created_utc":100}}
			]}}`)
			return
		}
		fmt.Fprint(w, `{"kind":"Listing","data":{"children":[
			{"kind":"t3","data":{"id":"p3","created_utc":300}},
			{"kind":"t3","data":{"id":"p2","created_utc":200}}
		]}}`)
	})
	client := newTestServer(t, mux)

	stream := client.StreamNewPosts("golang", 0)

	first, err := stream.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "p1", first[0].ID)

	second, err := stream.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "p3", second[0].ID)
}

func TestGetUserPosts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/gopher/submitted", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"kind":"Listing","data":{"children":[{"kind":"t3","data":{"id":"p1"}}]}}`)
	})
	client := newTestServer(t, mux)

	page, err := client.GetUserPosts(context.Background(), &types.UserContentRequest{Username: "gopher"})
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)

	_, err = client.GetUserPosts(context.Background(), &types.UserContentRequest{Username: "u/gopher"})
	var cfgErr *rederrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestGetRecentComments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/r/golang/comments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"kind":"Listing","data":{"after":"t1_c2","children":[
			{"kind":"t1","data":{"id":"c1","body":"one"}},
			{"kind":"t1","data":{"id":"c2","body":"two"}}
		]}}`)
	})
	client := newTestServer(t, mux)

	page, err := client.GetRecentComments(context.Background(), "golang", types.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Comments, 2)
	assert.Equal(t, "t1_c2", page.AfterFullname)
}

func TestPaginationRejectsAfterAndBefore(t *testing.T) {
	client := newTestServer(t, http.NewServeMux())

	_, err := client.GetPosts(context.Background(), &types.PostsRequest{
		Subreddit:  "golang",
		Pagination: types.Pagination{After: "t3_a", Before: "t3_b"},
	})
	var cfgErr *rederrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
