// Package rtree implements a generic R-tree keyed by 2-D rectangles, using the quadratic
// split heuristic. Stored rectangles must not contain one another; Add rejects a rectangle
// that would break that rule.
package rtree

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/pcindex/utils"
)

const (
	// DefaultMinChildren is the minimum fill of a non-root node for NewDefault.
	DefaultMinChildren = 2
	// DefaultMaxChildren is the maximum fill of a node for NewDefault.
	DefaultMaxChildren = 8
)

// ErrContainedRect is returned by Add when the rectangle contains, or is contained by,
// a rectangle already stored.
var ErrContainedRect = errors.New("rectangle contains or is contained by a stored rectangle")

type entry[T comparable] struct {
	rect  r2.Rect
	child *node[T]
	data  T
}

type node[T comparable] struct {
	leaf    bool
	parent  *node[T]
	entries []entry[T]
}

func (n *node[T]) bounds() r2.Rect {
	rect := r2.EmptyRect()
	for _, e := range n.entries {
		rect = rect.Union(e.rect)
	}
	return rect
}

func (n *node[T]) indexOf(child *node[T]) int {
	for i, e := range n.entries {
		if e.child == child {
			return i
		}
	}
	return -1
}

// Tree is an R-tree mapping rectangles to values. It is not safe for concurrent
// modification.
type Tree[T comparable] struct {
	root        *node[T]
	minChildren int
	maxChildren int
	size        int
}

// New returns an empty tree whose non-root nodes hold between minChildren and
// maxChildren entries. minChildren must be at least 2 and at most half of maxChildren.
func New[T comparable](minChildren, maxChildren int) (*Tree[T], error) {
	if minChildren < 2 {
		return nil, utils.NewInvalidConfigurationError("min children above one", minChildren)
	}
	if minChildren > maxChildren/2 {
		return nil, errors.Wrapf(utils.ErrInvalidConfiguration,
			"min children %d must be at most half of max children %d", minChildren, maxChildren)
	}
	return &Tree[T]{root: &node[T]{leaf: true}, minChildren: minChildren, maxChildren: maxChildren}, nil
}

// NewDefault returns an empty tree with DefaultMinChildren and DefaultMaxChildren.
func NewDefault[T comparable]() *Tree[T] {
	return &Tree[T]{root: &node[T]{leaf: true}, minChildren: DefaultMinChildren, maxChildren: DefaultMaxChildren}
}

// Len returns the number of stored rectangles.
func (t *Tree[T]) Len() int {
	return t.size
}

// Empty reports whether nothing is stored.
func (t *Tree[T]) Empty() bool {
	return t.size == 0
}

// Clear removes everything.
func (t *Tree[T]) Clear() {
	t.root = &node[T]{leaf: true}
	t.size = 0
}

// RootRect returns the bounds of everything stored, or an empty rectangle.
func (t *Tree[T]) RootRect() r2.Rect {
	if t.size == 0 {
		return r2.EmptyRect()
	}
	return t.root.bounds()
}

// Add stores data under rect.
func (t *Tree[T]) Add(rect r2.Rect, data T) error {
	if !rect.IsValid() || rect.IsEmpty() {
		return utils.NewInvalidArgumentError("rectangle %v is empty", rect)
	}
	var conflict error
	t.search(func(r r2.Rect) bool { return r.Intersects(rect) }, func(e entry[T]) {
		if conflict == nil && (e.rect.Contains(rect) || rect.Contains(e.rect)) {
			conflict = errors.Wrapf(ErrContainedRect, "%v and stored %v", rect, e.rect)
		}
	})
	if conflict != nil {
		return conflict
	}
	t.insert(entry[T]{rect: rect, data: data})
	t.size++
	return nil
}

// Remove deletes the entry stored under exactly rect with data and reports whether it
// was found.
func (t *Tree[T]) Remove(rect r2.Rect, data T) bool {
	leaf, i := t.find(rect, data)
	if leaf == nil {
		return false
	}
	leaf.entries = append(leaf.entries[:i], leaf.entries[i+1:]...)
	t.size--
	t.condense(leaf)
	return true
}

// SearchRect returns the values of every stored rectangle sharing a point with rect,
// boundaries included.
func (t *Tree[T]) SearchRect(rect r2.Rect) []T {
	var found []T
	t.search(func(r r2.Rect) bool { return r.Intersects(rect) }, func(e entry[T]) {
		found = append(found, e.data)
	})
	return found
}

// SearchPoint returns the values of every stored rectangle containing p, boundaries
// included.
func (t *Tree[T]) SearchPoint(p r2.Point) []T {
	var found []T
	t.search(func(r r2.Rect) bool { return r.ContainsPoint(p) }, func(e entry[T]) {
		found = append(found, e.data)
	})
	return found
}

func (t *Tree[T]) search(match func(r2.Rect) bool, visit func(entry[T])) {
	stack := []*node[T]{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range n.entries {
			if !match(e.rect) {
				continue
			}
			if n.leaf {
				visit(e)
			} else {
				stack = append(stack, e.child)
			}
		}
	}
}

func (t *Tree[T]) find(rect r2.Rect, data T) (*node[T], int) {
	stack := []*node[T]{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for i, e := range n.entries {
			if n.leaf {
				if e.rect == rect && e.data == data {
					return n, i
				}
			} else if e.rect.Contains(rect) {
				stack = append(stack, e.child)
			}
		}
	}
	return nil, -1
}

func (t *Tree[T]) insert(e entry[T]) {
	n := t.chooseLeaf(e.rect)
	n.entries = append(n.entries, e)
	t.adjust(n)
}

// chooseLeaf descends into the child needing the least enlargement, breaking ties by
// smaller area.
func (t *Tree[T]) chooseLeaf(rect r2.Rect) *node[T] {
	n := t.root
	for !n.leaf {
		best := 0
		bestGrowth := enlargement(n.entries[0].rect, rect)
		for i := 1; i < len(n.entries); i++ {
			growth := enlargement(n.entries[i].rect, rect)
			if growth < bestGrowth || (growth == bestGrowth && area(n.entries[i].rect) < area(n.entries[best].rect)) {
				best, bestGrowth = i, growth
			}
		}
		n = n.entries[best].child
	}
	return n
}

// adjust walks from n to the root refreshing bounds and splitting overfull nodes.
func (t *Tree[T]) adjust(n *node[T]) {
	for {
		var sibling *node[T]
		if len(n.entries) > t.maxChildren {
			sibling = t.split(n)
		}
		parent := n.parent
		if parent == nil {
			if sibling != nil {
				root := &node[T]{entries: []entry[T]{
					{rect: n.bounds(), child: n},
					{rect: sibling.bounds(), child: sibling},
				}}
				n.parent, sibling.parent = root, root
				t.root = root
			}
			return
		}
		parent.entries[parent.indexOf(n)].rect = n.bounds()
		if sibling != nil {
			sibling.parent = parent
			parent.entries = append(parent.entries, entry[T]{rect: sibling.bounds(), child: sibling})
		}
		n = parent
	}
}

// condense removes underfull nodes on the path from n to the root and reinserts the
// values they held.
func (t *Tree[T]) condense(n *node[T]) {
	var orphans []entry[T]
	for n.parent != nil {
		parent := n.parent
		i := parent.indexOf(n)
		if len(n.entries) < t.minChildren {
			parent.entries = append(parent.entries[:i], parent.entries[i+1:]...)
			orphans = append(orphans, leafEntries(n)...)
		} else {
			parent.entries[i].rect = n.bounds()
		}
		n = parent
	}
	for !t.root.leaf && len(t.root.entries) == 1 {
		t.root = t.root.entries[0].child
		t.root.parent = nil
	}
	if !t.root.leaf && len(t.root.entries) == 0 {
		t.root = &node[T]{leaf: true}
	}
	for _, e := range orphans {
		t.insert(e)
	}
}

func leafEntries[T comparable](n *node[T]) []entry[T] {
	var out []entry[T]
	stack := []*node[T]{n}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.leaf {
			out = append(out, top.entries...)
			continue
		}
		for _, e := range top.entries {
			stack = append(stack, e.child)
		}
	}
	return out
}

// split moves part of n's entries into a new sibling using the quadratic heuristic.
func (t *Tree[T]) split(n *node[T]) *node[T] {
	remaining := append([]entry[T](nil), n.entries...)
	s1, s2 := pickSeeds(remaining)
	groupA := []entry[T]{remaining[s1]}
	groupB := []entry[T]{remaining[s2]}
	rectA, rectB := remaining[s1].rect, remaining[s2].rect
	// s1 < s2, so removing s2 first keeps s1 in place.
	remaining = append(remaining[:s2], remaining[s2+1:]...)
	remaining = append(remaining[:s1], remaining[s1+1:]...)

	for len(remaining) > 0 {
		if len(groupA)+len(remaining) == t.minChildren {
			groupA = append(groupA, remaining...)
			break
		}
		if len(groupB)+len(remaining) == t.minChildren {
			groupB = append(groupB, remaining...)
			break
		}

		next, bestDiff := 0, -1.0
		for i, e := range remaining {
			diff := enlargement(rectA, e.rect) - enlargement(rectB, e.rect)
			if diff < 0 {
				diff = -diff
			}
			if diff > bestDiff {
				next, bestDiff = i, diff
			}
		}
		e := remaining[next]
		remaining = append(remaining[:next], remaining[next+1:]...)

		growA, growB := enlargement(rectA, e.rect), enlargement(rectB, e.rect)
		toA := growA < growB ||
			(growA == growB && area(rectA) < area(rectB)) ||
			(growA == growB && area(rectA) == area(rectB) && len(groupA) <= len(groupB))
		if toA {
			groupA = append(groupA, e)
			rectA = rectA.Union(e.rect)
		} else {
			groupB = append(groupB, e)
			rectB = rectB.Union(e.rect)
		}
	}

	n.entries = groupA
	sibling := &node[T]{leaf: n.leaf, parent: n.parent, entries: groupB}
	if !n.leaf {
		for _, e := range n.entries {
			e.child.parent = n
		}
		for _, e := range sibling.entries {
			e.child.parent = sibling
		}
	}
	return sibling
}

// pickSeeds returns the pair of entries that would waste the most area together.
func pickSeeds[T comparable](entries []entry[T]) (int, int) {
	s1, s2 := 0, 1
	worst := math.Inf(-1)
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			waste := area(entries[i].rect.Union(entries[j].rect)) - area(entries[i].rect) - area(entries[j].rect)
			if waste > worst {
				s1, s2, worst = i, j, waste
			}
		}
	}
	return s1, s2
}

func area(r r2.Rect) float64 {
	if r.IsEmpty() {
		return 0
	}
	s := r.Size()
	return s.X * s.Y
}

func enlargement(existing, added r2.Rect) float64 {
	return area(existing.Union(added)) - area(existing)
}
