package thread

import (
	"sort"

	"go.uber.org/zap"

	"github.com/mikael1979/filu-x/document"
)

// Node is one post in a reconstructed reply forest.
type Node struct {
	Post    *document.Post
	Replies []*Node
}

// Forest is a set of reply trees in deterministic order.
type Forest struct {
	Roots []*Node
}

// Warning is a degraded-render condition found during reconstruction.
// Warnings never fail the reconstruction; renderers decide what to show.
type Warning struct {
	PostID string
	Reason string
}

type builder struct {
	log *zap.Logger
}

// Option configures reconstruction.
type Option func(*builder)

func WithLogger(log *zap.Logger) Option {
	return func(b *builder) {
		if log != nil {
			b.log = log
		}
	}
}

// Reconstruct builds the reply forest for a set of posts.
//
// Roots are posts with no reply_to, or whose reply_to is not among the given
// posts. Replies are ordered by (created_at, id). Reply cycles cannot be
// rendered as trees: traversal stops where a post repeats, the cycle is
// reported as a Warning, and a deterministic member of the cycle is promoted
// to a root so its posts still render.
func Reconstruct(posts []*document.Post, opts ...Option) (*Forest, []Warning) {
	b := &builder{log: zap.NewNop()}
	for _, o := range opts {
		o(b)
	}

	byID := make(map[string]*document.Post, len(posts))
	for _, p := range posts {
		if p == nil || p.ID == "" {
			continue
		}
		byID[p.ID] = p
	}

	children := make(map[string][]*document.Post)
	var roots []*document.Post
	for _, p := range byID {
		if p.ReplyTo == "" || byID[p.ReplyTo] == nil {
			roots = append(roots, p)
			continue
		}
		children[p.ReplyTo] = append(children[p.ReplyTo], p)
	}
	sortPosts(roots)
	for _, c := range children {
		sortPosts(c)
	}

	var warnings []Warning
	visited := make(map[string]bool, len(byID))
	forest := &Forest{}

	for _, root := range roots {
		node, w := b.buildTree(root, children, visited)
		warnings = append(warnings, w...)
		forest.Roots = append(forest.Roots, node)
	}

	// Posts left unvisited sit on reply cycles with no path from any root.
	// Promote a deterministic member of each cycle so nothing is silently
	// dropped.
	for {
		entry := firstUnvisited(byID, visited)
		if entry == nil {
			break
		}
		warnings = append(warnings, Warning{PostID: entry.ID, Reason: "reply cycle detected"})
		b.log.Warn("reply cycle detected", zap.String("post_id", entry.ID))
		node, w := b.buildTree(entry, children, visited)
		warnings = append(warnings, w...)
		forest.Roots = append(forest.Roots, node)
	}

	return forest, warnings
}

// buildTree is an iterative depth-first construction; the explicit stack
// keeps deep threads from exhausting the goroutine stack.
func (b *builder) buildTree(root *document.Post, children map[string][]*document.Post, visited map[string]bool) (*Node, []Warning) {
	var warnings []Warning
	rootNode := &Node{Post: root}
	visited[root.ID] = true

	type frame struct{ node *Node }
	stack := []frame{{node: rootNode}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range children[f.node.Post.ID] {
			if visited[child.ID] {
				warnings = append(warnings, Warning{PostID: child.ID, Reason: "reply cycle detected"})
				b.log.Warn("reply cycle detected", zap.String("post_id", child.ID))
				continue
			}
			visited[child.ID] = true
			cn := &Node{Post: child}
			f.node.Replies = append(f.node.Replies, cn)
			stack = append(stack, frame{node: cn})
		}
	}
	return rootNode, warnings
}

// Walk visits every node depth-first, passing the nesting depth for
// renderers. Returning false from fn stops the walk.
func (f *Forest) Walk(fn func(n *Node, depth int) bool) {
	type frame struct {
		node  *Node
		depth int
	}
	var stack []frame
	for i := len(f.Roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: f.Roots[i], depth: 0})
	}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(fr.node, fr.depth) {
			return
		}
		for i := len(fr.node.Replies) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: fr.node.Replies[i], depth: fr.depth + 1})
		}
	}
}

func sortPosts(posts []*document.Post) {
	sort.Slice(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.ID < b.ID
	})
}

func firstUnvisited(byID map[string]*document.Post, visited map[string]bool) *document.Post {
	var best *document.Post
	for id, p := range byID {
		if visited[id] {
			continue
		}
		if best == nil {
			best = p
			continue
		}
		if p.CreatedAt < best.CreatedAt ||
			(p.CreatedAt == best.CreatedAt && p.ID < best.ID) {
			best = p
		}
	}
	return best
}
