package internal

import (
	"encoding/json"
	"fmt"

	"github.com/jamesprial/go-reddit-client/pkg/types"
)

// Parser handles parsing of Reddit API responses into typed structures.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// ParseThing determines the type of a Thing and returns the appropriate typed struct.
func (p *Parser) ParseThing(thing *types.Thing) (interface{}, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}

	switch thing.Kind {
	case "Listing":
		return p.ParseListing(thing)
	case "t1":
		return p.ParseComment(thing)
	case "t2":
		return p.ParseAccount(thing)
	case "t3":
		return p.ParseLink(thing)
	case "t4":
		return p.ParseMessage(thing)
	case "t5":
		return p.ParseSubreddit(thing)
	case "more":
		return p.ParseMore(thing)
	default:
		return nil, fmt.Errorf("unknown kind: %s", thing.Kind)
	}
}

// ParseListing extracts a ListingData from a Thing of kind "Listing".
func (p *Parser) ParseListing(thing *types.Thing) (*types.ListingData, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != "Listing" {
		return nil, fmt.Errorf("expected Listing, got %s", thing.Kind)
	}

	var listing types.ListingData
	if err := json.Unmarshal(thing.Data, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse Listing data: %w", err)
	}
	return &listing, nil
}

// ParseLink extracts a Post from a Thing of kind "t3".
func (p *Parser) ParseLink(thing *types.Thing) (*types.Post, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != "t3" {
		return nil, fmt.Errorf("expected t3 (Link), got %s", thing.Kind)
	}

	var post types.Post
	if err := json.Unmarshal(thing.Data, &post); err != nil {
		return nil, fmt.Errorf("failed to parse Link data: %w", err)
	}

	return &post, nil
}

// ParseComment extracts a Comment from a Thing of kind "t1", including its
// reply forest. Reddit sends the replies field as either a nested Listing
// Thing or an empty string when there are none.
func (p *Parser) ParseComment(thing *types.Thing) (*types.Comment, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != "t1" {
		return nil, fmt.Errorf("expected t1 (Comment), got %s", thing.Kind)
	}

	var comment types.Comment
	if err := json.Unmarshal(thing.Data, &comment); err != nil {
		return nil, fmt.Errorf("failed to parse Comment data: %w", err)
	}

	var rawData struct {
		Replies json.RawMessage `json:"replies"`
	}
	if err := json.Unmarshal(thing.Data, &rawData); err == nil && len(rawData.Replies) > 0 && string(rawData.Replies) != `""` {
		var repliesThing types.Thing
		if err := json.Unmarshal(rawData.Replies, &repliesThing); err == nil && repliesThing.Kind == "Listing" {
			replies, err := p.ExtractCommentForest(&repliesThing)
			if err == nil {
				comment.Replies = replies
			}
		}
	}

	return &comment, nil
}

// ParseCommentNode classifies a child of a comment listing into one of the
// three tree node states: a loaded comment, a removed comment, or a
// placeholder for not-yet-fetched ids.
func (p *Parser) ParseCommentNode(thing *types.Thing) (*types.CommentNode, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}

	switch thing.Kind {
	case "t1":
		comment, err := p.ParseComment(thing)
		if err != nil {
			return nil, err
		}
		kind := types.CommentLoaded
		if isRemoved(comment) {
			kind = types.CommentRemoved
			// Removed comments are terminal leaves.
			comment.Replies = nil
		}
		return &types.CommentNode{Kind: kind, Comment: comment}, nil
	case "more":
		more, err := p.ParseMore(thing)
		if err != nil {
			return nil, err
		}
		return &types.CommentNode{Kind: types.CommentMore, More: more}, nil
	default:
		return nil, fmt.Errorf("expected t1 or more, got %s", thing.Kind)
	}
}

// isRemoved reports whether a comment was deleted by its author or removed
// by a moderator. Reddit blanks the author and replaces the body.
func isRemoved(c *types.Comment) bool {
	return c.Author == "[deleted]" && (c.Body == "[deleted]" || c.Body == "[removed]")
}

// ParseSubreddit extracts a SubredditData from a Thing of kind "t5".
func (p *Parser) ParseSubreddit(thing *types.Thing) (*types.SubredditData, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != "t5" {
		return nil, fmt.Errorf("expected t5 (Subreddit), got %s", thing.Kind)
	}

	var subreddit types.SubredditData
	if err := json.Unmarshal(thing.Data, &subreddit); err != nil {
		return nil, fmt.Errorf("failed to parse Subreddit data: %w", err)
	}
	return &subreddit, nil
}

// ParseAccount extracts an AccountData from a Thing of kind "t2".
func (p *Parser) ParseAccount(thing *types.Thing) (*types.AccountData, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != "t2" {
		return nil, fmt.Errorf("expected t2 (Account), got %s", thing.Kind)
	}

	var account types.AccountData
	if err := json.Unmarshal(thing.Data, &account); err != nil {
		return nil, fmt.Errorf("failed to parse Account data: %w", err)
	}
	return &account, nil
}

// ParseMessage extracts a MessageData from a Thing of kind "t4".
func (p *Parser) ParseMessage(thing *types.Thing) (*types.MessageData, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != "t4" {
		return nil, fmt.Errorf("expected t4 (Message), got %s", thing.Kind)
	}

	var message types.MessageData
	if err := json.Unmarshal(thing.Data, &message); err != nil {
		return nil, fmt.Errorf("failed to parse Message data: %w", err)
	}
	return &message, nil
}

// ParseMore extracts a MoreRef from a Thing of kind "more".
func (p *Parser) ParseMore(thing *types.Thing) (*types.MoreRef, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != "more" {
		return nil, fmt.Errorf("expected more, got %s", thing.Kind)
	}

	var more types.MoreRef
	if err := json.Unmarshal(thing.Data, &more); err != nil {
		return nil, fmt.Errorf("failed to parse More data: %w", err)
	}
	return &more, nil
}

// ExtractPosts extracts all Post objects from a listing Thing.
func (p *Parser) ExtractPosts(listing *types.Thing) ([]*types.Post, error) {
	listingData, err := p.ParseListing(listing)
	if err != nil {
		return nil, err
	}

	posts := make([]*types.Post, 0, len(listingData.Children))
	for _, child := range listingData.Children {
		if child.Kind == "t3" {
			post, err := p.ParseLink(child)
			if err != nil {
				continue
			}
			posts = append(posts, post)
		}
	}
	return posts, nil
}

// ExtractCommentForest converts a comment listing Thing into an ordered
// forest of CommentNodes, preserving the order the service returned.
func (p *Parser) ExtractCommentForest(thing *types.Thing) ([]*types.CommentNode, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}

	// A bare t1 is treated as a forest of one.
	if thing.Kind == "t1" || thing.Kind == "more" {
		node, err := p.ParseCommentNode(thing)
		if err != nil {
			return nil, err
		}
		return []*types.CommentNode{node}, nil
	}

	if thing.Kind != "Listing" {
		return nil, fmt.Errorf("expected Listing, t1 or more, got %s", thing.Kind)
	}

	listingData, err := p.ParseListing(thing)
	if err != nil {
		return nil, err
	}

	nodes := make([]*types.CommentNode, 0, len(listingData.Children))
	for _, child := range listingData.Children {
		node, err := p.ParseCommentNode(child)
		if err != nil {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// ExtractFlatComments extracts the comments of a flat listing page (as
// returned by r/<sub>/comments) together with its pagination cursors.
func (p *Parser) ExtractFlatComments(listing *types.Thing) (*types.CommentListResponse, error) {
	listingData, err := p.ParseListing(listing)
	if err != nil {
		return nil, err
	}

	comments := make([]*types.Comment, 0, len(listingData.Children))
	for _, child := range listingData.Children {
		if child.Kind != "t1" {
			continue
		}
		comment, err := p.ParseComment(child)
		if err != nil {
			continue
		}
		comments = append(comments, comment)
	}

	return &types.CommentListResponse{
		Comments:       comments,
		AfterFullname:  listingData.AfterFullname,
		BeforeFullname: listingData.BeforeFullname,
	}, nil
}

// ExtractPostAndComments parses the typical response from the comments
// endpoint, which contains [post_listing, comments_listing]. The post may be
// nil if Reddit only returned the comments listing.
func (p *Parser) ExtractPostAndComments(response []*types.Thing) (*types.Post, []*types.CommentNode, error) {
	if len(response) == 0 {
		return nil, nil, fmt.Errorf("empty response")
	}

	if len(response) >= 2 {
		var post *types.Post
		posts, err := p.ExtractPosts(response[0])
		if err == nil && len(posts) > 0 {
			post = posts[0]
		}

		nodes, err := p.ExtractCommentForest(response[1])
		if err != nil {
			if post != nil {
				return post, nil, fmt.Errorf("failed to extract comments: %w", err)
			}
			return nil, nil, fmt.Errorf("failed to extract both post and comments")
		}

		return post, nodes, nil
	}

	// Single listing: just comments, no post.
	nodes, err := p.ExtractCommentForest(response[0])
	if err != nil {
		posts, perr := p.ExtractPosts(response[0])
		if perr != nil || len(posts) == 0 {
			return nil, nil, fmt.Errorf("failed to extract data from single listing: %w", err)
		}
		return posts[0], nil, nil
	}

	return nil, nodes, nil
}
