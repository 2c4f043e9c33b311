package reddit

import (
	"github.com/jamesprial/go-reddit-client/pkg/types"
)

// CommentTree is the comment forest of a single post. Children hold the
// top-level nodes in the order Reddit returned them; deeper replies hang off
// each loaded comment's Replies slice.
type CommentTree struct {
	// LinkID is the fullname of the post the tree belongs to, e.g. "t3_abc123".
	LinkID string

	// Children are the top-level nodes of the forest.
	Children []*types.CommentNode
}

// Walk visits every node in the tree depth-first, parents before children,
// siblings in listing order. Returning false from fn stops the walk.
func (t *CommentTree) Walk(fn func(node *types.CommentNode, depth int) bool) {
	walkNodes(t.Children, 0, fn)
}

func walkNodes(nodes []*types.CommentNode, depth int, fn func(*types.CommentNode, int) bool) bool {
	for _, node := range nodes {
		if !fn(node, depth) {
			return false
		}
		// Only loaded comments have children; removed comments and More
		// placeholders are leaves even if a stray Replies slice is attached.
		if node.Kind == types.CommentLoaded && node.Comment != nil {
			if !walkNodes(node.Comment.Replies, depth+1, fn) {
				return false
			}
		}
	}
	return true
}

// Comments flattens the tree into the loaded comments in walk order. More
// placeholders and removed comments are skipped.
func (t *CommentTree) Comments() []*types.Comment {
	var out []*types.Comment
	t.Walk(func(node *types.CommentNode, _ int) bool {
		if node.Kind == types.CommentLoaded {
			out = append(out, node.Comment)
		}
		return true
	})
	return out
}

// MoreRefs collects every unexpanded placeholder in walk order. Expanding
// them with Client.ExpandMore replaces each in place.
func (t *CommentTree) MoreRefs() []*types.MoreRef {
	var out []*types.MoreRef
	t.Walk(func(node *types.CommentNode, _ int) bool {
		if node.Kind == types.CommentMore && node.More != nil {
			out = append(out, node.More)
		}
		return true
	})
	return out
}

// Filter returns the nodes for which keep reports true, in walk order. The
// returned slice shares nodes with the tree; it is a view, not a copy.
func (t *CommentTree) Filter(keep func(node *types.CommentNode) bool) []*types.CommentNode {
	var out []*types.CommentNode
	t.Walk(func(node *types.CommentNode, _ int) bool {
		if keep(node) {
			out = append(out, node)
		}
		return true
	})
	return out
}

// Find returns the node whose comment or placeholder carries the given id
// (without the t1_ prefix), or nil.
func (t *CommentTree) Find(id string) *types.CommentNode {
	var found *types.CommentNode
	t.Walk(func(node *types.CommentNode, _ int) bool {
		if nodeID(node) == id {
			found = node
			return false
		}
		return true
	})
	return found
}

// Count returns the number of nodes currently in the tree, including removed
// comments and More placeholders. It says nothing about how many comments the
// post has on the server.
func (t *CommentTree) Count() int {
	n := 0
	t.Walk(func(*types.CommentNode, int) bool {
		n++
		return true
	})
	return n
}

// Depth returns the maximum nesting depth of the tree: 0 for an empty tree,
// 1 for top-level comments only.
func (t *CommentTree) Depth() int {
	max := 0
	t.Walk(func(_ *types.CommentNode, depth int) bool {
		if depth+1 > max {
			max = depth + 1
		}
		return true
	})
	return max
}

func nodeID(node *types.CommentNode) string {
	switch {
	case node.Kind == types.CommentMore && node.More != nil:
		return node.More.ID
	case node.Comment != nil:
		return node.Comment.ID
	}
	return ""
}

// spliceMore replaces the placeholder carrying moreID with the given nodes,
// keeping sibling order. It searches every child slice in the tree and
// reports whether a replacement happened.
func (t *CommentTree) spliceMore(moreID string, replacement []*types.CommentNode) bool {
	if spliceInSlice(&t.Children, moreID, replacement) {
		return true
	}
	done := false
	t.Walk(func(node *types.CommentNode, _ int) bool {
		if node.Kind == types.CommentLoaded && node.Comment != nil {
			if spliceInSlice(&node.Comment.Replies, moreID, replacement) {
				done = true
				return false
			}
		}
		return true
	})
	return done
}

func spliceInSlice(nodes *[]*types.CommentNode, moreID string, replacement []*types.CommentNode) bool {
	for i, node := range *nodes {
		if node.Kind == types.CommentMore && node.More != nil && node.More.ID == moreID {
			out := make([]*types.CommentNode, 0, len(*nodes)-1+len(replacement))
			out = append(out, (*nodes)[:i]...)
			out = append(out, replacement...)
			out = append(out, (*nodes)[i+1:]...)
			*nodes = out
			return true
		}
	}
	return false
}
