package granite

import (
	"github.com/akmonengine/granite/actor"
)

// treeNode is one node of the dynamic AABB tree. Leaves carry the
// payload of the object they bound; internal nodes bound their two
// children. A leaf's bounds are owned by the object and rewritten
// before every build.
type treeNode struct {
	bounds   actor.AABB
	children [2]*treeNode
	payload  ObjectRef
	index    uint32 // position in the leaf pool
	slot     int32  // index into the live-leaf list, -1 for internal nodes
}

func (n *treeNode) isLeaf() bool { return n.children[0] == nil }

// aabbTree is a dynamic bounding-volume hierarchy rebuilt from scratch
// every frame: leaves persist across frames, the internal hierarchy
// does not.
type aabbTree struct {
	leafPool     []treeNode
	freeLeaves   []uint32
	leaves       []*treeNode // packed list of live leaves
	internalPool []treeNode
	internalUsed int
	scratch      []*treeNode
	root         *treeNode
}

func newAABBTree(maxLeafNodes, maxInternalNodes int) *aabbTree {
	t := &aabbTree{
		leafPool:     make([]treeNode, maxLeafNodes),
		freeLeaves:   make([]uint32, maxLeafNodes),
		leaves:       make([]*treeNode, 0, maxLeafNodes),
		internalPool: make([]treeNode, maxInternalNodes),
		scratch:      make([]*treeNode, 0, maxLeafNodes),
	}
	for i := range t.freeLeaves {
		t.freeLeaves[i] = uint32(maxLeafNodes - i - 1)
	}
	return t
}

func (t *aabbTree) createLeaf(bounds actor.AABB, payload ObjectRef) (*treeNode, error) {
	if len(t.freeLeaves) == 0 {
		return nil, ErrCapacityExceeded
	}
	index := t.freeLeaves[len(t.freeLeaves)-1]
	t.freeLeaves = t.freeLeaves[:len(t.freeLeaves)-1]
	node := &t.leafPool[index]
	*node = treeNode{bounds: bounds, payload: payload, index: index, slot: int32(len(t.leaves))}
	t.leaves = append(t.leaves, node)
	return node, nil
}

func (t *aabbTree) destroyLeaf(node *treeNode) {
	if node.slot < 0 {
		panic(ErrInvalidHandle)
	}
	last := t.leaves[len(t.leaves)-1]
	t.leaves[node.slot] = last
	last.slot = node.slot
	t.leaves = t.leaves[:len(t.leaves)-1]
	t.freeLeaves = append(t.freeLeaves, node.index)
	node.slot = -1
}

// build rebuilds the hierarchy over the current leaf set by recursive
// longest-axis median splits.
func (t *aabbTree) build() error {
	t.internalUsed = 0
	if len(t.leaves) == 0 {
		t.root = nil
		return nil
	}
	if len(t.leaves)-1 > len(t.internalPool) {
		return ErrCapacityExceeded
	}
	t.scratch = t.scratch[:0]
	t.scratch = append(t.scratch, t.leaves...)
	t.root = t.buildRange(t.scratch)
	return nil
}

func (t *aabbTree) buildRange(nodes []*treeNode) *treeNode {
	if len(nodes) == 1 {
		return nodes[0]
	}
	bounds := nodes[0].bounds
	for _, n := range nodes[1:] {
		bounds = bounds.Union(n.bounds)
	}
	extents := bounds.Extents()
	axis := 0
	if extents.Y() > extents[axis] {
		axis = 1
	}
	if extents.Z() > extents[axis] {
		axis = 2
	}
	mid := len(nodes) / 2
	partitionByCenter(nodes, mid, axis)
	parent := &t.internalPool[t.internalUsed]
	t.internalUsed++
	parent.bounds = bounds
	parent.slot = -1
	parent.children[0] = t.buildRange(nodes[:mid])
	parent.children[1] = t.buildRange(nodes[mid:])
	return parent
}

// partitionByCenter quickselects nodes so that nodes[k] holds the k-th
// leaf by bounds center on the given axis, smaller centers first.
func partitionByCenter(nodes []*treeNode, k, axis int) {
	lo, hi := 0, len(nodes)-1
	for lo < hi {
		pivot := nodes[(lo+hi)/2].bounds.Center()[axis]
		i, j := lo, hi
		for i <= j {
			for nodes[i].bounds.Center()[axis] < pivot {
				i++
			}
			for nodes[j].bounds.Center()[axis] > pivot {
				j--
			}
			if i <= j {
				nodes[i], nodes[j] = nodes[j], nodes[i]
				i++
				j--
			}
		}
		if k <= j {
			hi = j
		} else if k >= i {
			lo = i
		} else {
			return
		}
	}
}

// forEachOverlappingLeafPair visits every unordered pair of leaves with
// overlapping bounds exactly once, never visiting self-pairs.
func (t *aabbTree) forEachOverlappingLeafPair(visit func(first, second ObjectRef)) {
	if t.root == nil || t.root.isLeaf() {
		return
	}
	var crossPairs func(a, b *treeNode)
	crossPairs = func(a, b *treeNode) {
		if !a.bounds.Overlaps(b.bounds) {
			return
		}
		aLeaf, bLeaf := a.isLeaf(), b.isLeaf()
		switch {
		case aLeaf && bLeaf:
			visit(a.payload, b.payload)
		case !aLeaf && (bLeaf || a.bounds.Volume() >= b.bounds.Volume()):
			crossPairs(a.children[0], b)
			crossPairs(a.children[1], b)
		default:
			crossPairs(a, b.children[0])
			crossPairs(a, b.children[1])
		}
	}
	var selfPairs func(n *treeNode)
	selfPairs = func(n *treeNode) {
		if n.isLeaf() {
			return
		}
		selfPairs(n.children[0])
		selfPairs(n.children[1])
		crossPairs(n.children[0], n.children[1])
	}
	selfPairs(t.root)
}
