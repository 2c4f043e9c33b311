package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RedditObject defines the common behavior for all Reddit API objects like
// Posts, Comments, and Subreddits.
type RedditObject interface {
	GetID() string
	GetName() string
}

// ThingData holds the common fields for Reddit objects.
// It can be embedded into specific types like Post and Comment.
type ThingData struct {
	ID   string `json:"id"`   // ID (without prefix)
	Name string `json:"name"` // Full name (e.g., "t3_abc123")
}

// GetID returns the object's ID.
func (td ThingData) GetID() string {
	return td.ID
}

// GetName returns the object's full name.
func (td ThingData) GetName() string {
	return td.Name
}

// Thing is the base envelope for all Reddit API objects. It provides a common
// structure for different types of content like comments, links, and subreddits.
type Thing struct {
	ThingData
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Votable is an embeddable struct for things that can be voted on.
type Votable struct {
	Ups   int `json:"ups"`
	Downs int `json:"downs"`
	// Likes indicates the user's vote: true for upvote, false for downvote, null for no vote.
	Likes *bool `json:"likes"`
}

// Created is an embeddable struct for things that have a creation time.
type Created struct {
	Created    float64 `json:"created"`
	CreatedUTC float64 `json:"created_utc"`
}

// CreatedTime returns the UTC creation time as a time.Time.
func (c Created) CreatedTime() time.Time {
	secs := int64(c.CreatedUTC)
	nanos := int64((c.CreatedUTC - float64(secs)) * float64(time.Second))
	return time.Unix(secs, nanos).UTC()
}

// Edited represents a field that can be a boolean or a timestamp.
// If IsEdited is true and Timestamp is 0, it was an old edit marked as `true`.
// If IsEdited is true and Timestamp is non-zero, it's a modern edit with a timestamp.
// If IsEdited is false, the item was not edited.
type Edited struct {
	IsEdited  bool
	Timestamp float64
}

// UnmarshalJSON implements json.Unmarshaler to handle mixed types for the "edited" field.
func (e *Edited) UnmarshalJSON(data []byte) error {
	s := strings.ToLower(string(data))
	switch s {
	case "false", "null":
		e.IsEdited = false
		e.Timestamp = 0
		return nil
	case "true":
		e.IsEdited = true
		e.Timestamp = 0
		return nil
	}

	var timestamp float64
	if err := json.Unmarshal(data, &timestamp); err == nil {
		e.IsEdited = true
		e.Timestamp = timestamp
		return nil
	}

	return fmt.Errorf("unrecognized type for 'edited' field: %s", s)
}

// ListingData contains the data for a Listing, which is used for pagination.
type ListingData struct {
	BeforeFullname string   `json:"before"` // Reddit fullname for pagination (previous page)
	AfterFullname  string   `json:"after"`  // Reddit fullname for pagination (next page)
	Modhash        string   `json:"modhash"`
	Children       []*Thing `json:"children"` // Raw Things with kind+data, parsed by caller
}

// Pagination captures the shared pagination behaviour for Reddit listing endpoints.
// Reddit uses "fullnames" for pagination, which are strings like "t3_abc123" where
// "t3" indicates the type (link/post) and "abc123" is the item ID.
type Pagination struct {
	// Limit specifies the number of items to retrieve.
	// Reddit enforces a maximum of 100 items per request.
	// If 0 or not specified, Reddit's default limit (usually 25) is used.
	Limit int

	// After specifies the Reddit fullname after which to get items.
	// Used for forward pagination. Cannot be used together with Before.
	After string

	// Before specifies the Reddit fullname before which to get items.
	// Used for backward pagination. Cannot be used together with After.
	Before string
}

// Sort identifies a post sort order for listing endpoints.
type Sort string

const (
	SortHot           Sort = "hot"
	SortNew           Sort = "new"
	SortRising        Sort = "rising"
	SortTop           Sort = "top"
	SortControversial Sort = "controversial"
)

// TimeFilter narrows top and controversial sorts to a time window.
type TimeFilter string

const (
	TimeHour  TimeFilter = "hour"
	TimeDay   TimeFilter = "day"
	TimeWeek  TimeFilter = "week"
	TimeMonth TimeFilter = "month"
	TimeYear  TimeFilter = "year"
	TimeAll   TimeFilter = "all"
)

// PostsRequest describes a request to retrieve posts from a subreddit (or the front page).
// The Subreddit field can be left blank to target the front page.
type PostsRequest struct {
	Subreddit string

	// Sort selects the listing order. Defaults to SortHot when empty.
	Sort Sort

	// Time narrows SortTop and SortControversial listings. Ignored for other sorts.
	Time TimeFilter

	Pagination
}

// SearchRequest describes a search within a subreddit.
type SearchRequest struct {
	Subreddit string
	Query     string

	// Sort can be "relevance", "hot", "new", "top" or "comments".
	Sort string

	Pagination
}

// UserContentRequest describes a request for a user's submission history.
type UserContentRequest struct {
	Username string
	Pagination
}

// CommentsRequest describes a request to retrieve comments for a specific post.
type CommentsRequest struct {
	Subreddit string
	PostID    string

	// Sort specifies the comment sort order.
	// Valid values: "confidence" (default), "new", "top", "controversial", "old", "qa".
	Sort string

	Pagination
}

// MoreCommentsRequest describes a request to expand previously truncated comment trees.
// Pass the post identifier (link) together with the comment identifiers you want to load.
type MoreCommentsRequest struct {
	LinkID     string
	CommentIDs []string

	// Sort specifies the comment sort order, same values as CommentsRequest.Sort.
	Sort string

	// Depth specifies the maximum depth of comment replies to retrieve.
	// 0 means no limit, 1 means only top-level comments, 2 means one level of replies, etc.
	Depth int

	// Limit specifies the maximum number of comments to retrieve.
	Limit int
}

// SubmitRequest describes a self-post submission.
type SubmitRequest struct {
	Subreddit string
	Title     string
	Text      string

	// SendReplies controls whether replies land in the submitter's inbox.
	SendReplies bool
}

// ReplyRequest describes a comment on a thing. The parent can be a post,
// a comment, or a private message, identified by fullname.
type ReplyRequest struct {
	ParentFullname string
	Text           string
}

// MessageRequest describes a private message to another user.
type MessageRequest struct {
	// To is the recipient's username, without a u/ prefix.
	To      string
	Subject string
	Text    string
}

// StickyRequest describes stickying or unstickying a post in a subreddit.
type StickyRequest struct {
	// ID is the fullname of the post.
	ID string
	// State is true to sticky, false to unsticky.
	State bool
	// Slot is the optional sticky slot to fill, 1 or 2. 0 leaves the choice to Reddit.
	Slot int
}

// SubredditData contains the data for a Subreddit.
type SubredditData struct {
	ThingData
	AccountsActive       int     `json:"accounts_active"`
	CommentScoreHideMins int     `json:"comment_score_hide_mins"`
	Description          string  `json:"description"`
	DescriptionHTML      string  `json:"description_html"`
	DisplayName          string  `json:"display_name"`
	HeaderImg            *string `json:"header_img"`
	HeaderSize           []int   `json:"header_size"`
	HeaderTitle          *string `json:"header_title"`
	Over18               bool    `json:"over18"`
	PublicDescription    string  `json:"public_description"`
	Subscribers          int64   `json:"subscribers"`
	SubmissionType       string  `json:"submission_type"`
	SubredditType        string  `json:"subreddit_type"`
	Title                string  `json:"title"`
	URL                  string  `json:"url"`
	UserIsBanned         *bool   `json:"user_is_banned"`
	UserIsContributor    *bool   `json:"user_is_contributor"`
	UserIsModerator      *bool   `json:"user_is_moderator"`
	UserIsSubscriber     *bool   `json:"user_is_subscriber"`
}

// MessageData contains the data for a private Message.
type MessageData struct {
	ThingData
	Created
	Author      string          `json:"author"`
	Body        string          `json:"body"`
	BodyHTML    string          `json:"body_html"`
	Context     string          `json:"context"`
	New         bool            `json:"new"`
	ParentID    *string         `json:"parent_id"`
	RepliesData json.RawMessage `json:"replies"` // Raw replies data, handled separately
	Subject     string          `json:"subject"`
	Subreddit   *string         `json:"subreddit"`
	WasComment  bool            `json:"was_comment"`
}

// AccountData contains the data for a user Account.
type AccountData struct {
	ThingData
	Created
	CommentKarma     int    `json:"comment_karma"`
	HasMail          *bool  `json:"has_mail"`
	HasVerifiedEmail *bool  `json:"has_verified_email"`
	InboxCount       int    `json:"inbox_count,omitempty"`
	IsFriend         bool   `json:"is_friend"`
	IsGold           bool   `json:"is_gold"`
	IsMod            bool   `json:"is_mod"`
	LinkKarma        int    `json:"link_karma"`
	Modhash          string `json:"modhash,omitempty"`
	Over18           bool   `json:"over_18"`
}

// Post represents a Reddit post with all its fields.
type Post struct {
	ThingData
	Votable
	Created
	Author            string          `json:"author"`
	Clicked           bool            `json:"clicked"`
	Domain            string          `json:"domain"`
	Hidden            bool            `json:"hidden"`
	IsSelf            bool            `json:"is_self"`
	LinkFlairCSSClass *string         `json:"link_flair_css_class"`
	LinkFlairText     *string         `json:"link_flair_text"`
	Locked            bool            `json:"locked"`
	Media             json.RawMessage `json:"media"`
	NumComments       int             `json:"num_comments"`
	Over18            bool            `json:"over_18"`
	Permalink         string          `json:"permalink"`
	Saved             bool            `json:"saved"`
	Score             int             `json:"score"`
	SelfText          string          `json:"selftext"`
	SelfTextHTML      *string         `json:"selftext_html"`
	Subreddit         string          `json:"subreddit"`
	SubredditID       string          `json:"subreddit_id"`
	Thumbnail         string          `json:"thumbnail"`
	Title             string          `json:"title"`
	URL               string          `json:"url"`
	Edited            Edited          `json:"edited"` // Can be a boolean or a float64 timestamp
	Distinguished     *string         `json:"distinguished"`
	Stickied          bool            `json:"stickied"`
}

// Comment represents a loaded Reddit comment with all its fields.
type Comment struct {
	ThingData
	Votable
	Created
	Author      string         `json:"author"`
	Body        string         `json:"body"`
	BodyHTML    string         `json:"body_html"`
	Edited      Edited         `json:"edited"` // Can be a boolean (for old comments) or a float64 timestamp
	Gilded      int            `json:"gilded"`
	IsSubmitter bool           `json:"is_submitter"`
	LinkID      string         `json:"link_id"`
	ParentID    string         `json:"parent_id"`
	Replies     []*CommentNode `json:"-"` // Parsed by Parser from the raw replies field
	Saved       bool           `json:"saved"`
	Score       int            `json:"score"`
	ScoreHidden bool           `json:"score_hidden"`
	Stickied    bool           `json:"stickied"`
	Subreddit   string         `json:"subreddit"`
	SubredditID string         `json:"subreddit_id"`
}

// CommentKind discriminates the three states a node in a comment tree can be in.
type CommentKind int

const (
	// CommentLoaded is a fully fetched comment, possibly with replies.
	CommentLoaded CommentKind = iota
	// CommentMore is a placeholder for comment ids that have not been fetched yet.
	CommentMore
	// CommentRemoved is a deleted or removed comment. It never has children.
	CommentRemoved
)

// String returns the kind as a short label.
func (k CommentKind) String() string {
	switch k {
	case CommentLoaded:
		return "loaded"
	case CommentMore:
		return "more"
	case CommentRemoved:
		return "removed"
	default:
		return fmt.Sprintf("CommentKind(%d)", int(k))
	}
}

// MoreRef references additional comment ids that were truncated from a listing
// and can be fetched on demand.
type MoreRef struct {
	ThingData
	ParentID string   `json:"parent_id"`
	Count    int      `json:"count"`
	Children []string `json:"children"` // ids without the t1_ prefix, in service order
}

// CommentNode is one node of a comment tree. Exactly one of Comment and More
// is populated, selected by Kind: Comment for CommentLoaded and CommentRemoved,
// More for CommentMore. Callers switching on Kind must handle all three cases.
type CommentNode struct {
	Kind    CommentKind
	Comment *Comment
	More    *MoreRef
}

// SubmitResult reports what Reddit created for a successful submission.
type SubmitResult struct {
	ID       string `json:"id"`   // base36 id of the new post
	Fullname string `json:"name"` // e.g. "t3_abc123"
	URL      string `json:"url"`  // comments page URL
}

// PostsResponse represents a collection of posts with pagination info.
type PostsResponse struct {
	Posts          []*Post
	AfterFullname  string // Reddit fullname (e.g. "t3_abc123") of last item for next page
	BeforeFullname string // Reddit fullname (e.g. "t3_abc123") of first item for prev page
}

// CommentListResponse represents a flat page of comments with pagination info,
// as returned by r/<sub>/comments.
type CommentListResponse struct {
	Comments       []*Comment
	AfterFullname  string
	BeforeFullname string
}
