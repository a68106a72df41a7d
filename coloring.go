package granite

import "github.com/akmonengine/granite/container"

// colorGroupRange is one color's slice of the flat pair-pointer array.
type colorGroupRange struct {
	begin uint32
	end   uint32
}

// colorGroupStorage re-indexes the pairs of all awake islands by
// color so the solver can iterate color-major. Colors are used densely
// from zero: the first empty color ends iteration.
type colorGroupStorage struct {
	pairs  *container.List[*neighborPair]
	ranges []colorGroupRange
}

func newColorGroupStorage(maxPairs int) *colorGroupStorage {
	return &colorGroupStorage{
		pairs:  container.NewList[*neighborPair](maxPairs),
		ranges: make([]colorGroupRange, MaxColors),
	}
}

func (s *colorGroupStorage) clear() {
	s.pairs.Clear()
	clear(s.ranges)
}

// count registers one pair on a color during coloring; reserve turns
// the counts into ranges.
func (s *colorGroupStorage) count(color uint16) {
	s.ranges[color].end++
}

func (s *colorGroupStorage) reserve() error {
	for i := range s.ranges {
		group := &s.ranges[i]
		if group.end == 0 {
			return nil
		}
		index := uint32(s.pairs.Len())
		if err := s.pairs.Resize(s.pairs.Len() + int(group.end)); err != nil {
			return ErrCapacityExceeded
		}
		group.begin = index
		group.end = index
	}
	return nil
}

func (s *colorGroupStorage) pushBack(pair *neighborPair) {
	group := &s.ranges[pair.color]
	s.pairs.Slice()[group.end] = pair
	group.end++
}

func (s *colorGroupStorage) group(color int) []*neighborPair {
	g := s.ranges[color]
	return s.pairs.Slice()[g.begin:g.end]
}

// colorNeighborGroup greedily colors one island's pairs by BFS: each
// popped pair takes the lowest color not already used by a pair it
// shares an object with.
func (w *World) colorNeighborGroup(groupIndex int) error {
	group := w.groups.group(groupIndex)
	begin, end := int(group.pairsBegin), int(group.pairsEnd)
	if begin == end {
		return nil
	}
	for i := begin; i != end; i++ {
		w.groups.pair(i).color = colorUnmarked
	}
	seed := w.groups.pair(begin)
	seed.color = colorMarked
	if err := w.coloringFringe.PushBack(seed); err != nil {
		return ErrCapacityExceeded
	}
	for !w.coloringFringe.Empty() {
		pair := w.coloringFringe.PopFront()
		var neighbors [2][]*neighborPair
		switch pair.kind {
		case pairParticleParticle:
			neighbors[0] = w.particleNeighborPairs(pair.objects[0])
			neighbors[1] = w.particleNeighborPairs(pair.objects[1])
		case pairParticleRigidBody:
			neighbors[0] = w.particleNeighborPairs(pair.objects[0])
			neighbors[1] = w.rigidBodyNeighborPairs(pair.objects[1])
		case pairParticleStaticBody:
			neighbors[0] = w.particleNeighborPairs(pair.objects[0])
		case pairRigidBodyRigidBody:
			neighbors[0] = w.rigidBodyNeighborPairs(pair.objects[0])
			neighbors[1] = w.rigidBodyNeighborPairs(pair.objects[1])
		case pairRigidBodyStaticBody:
			neighbors[0] = w.rigidBodyNeighborPairs(pair.objects[0])
		}
		w.coloringBits.Reset()
		for i := 0; i != 2; i++ {
			for _, neighbor := range neighbors[i] {
				if neighbor.color == colorUnmarked {
					neighbor.color = colorMarked
					if err := w.coloringFringe.PushBack(neighbor); err != nil {
						return ErrCapacityExceeded
					}
				} else if neighbor.color != colorMarked {
					w.coloringBits.Set(int(neighbor.color))
				}
			}
		}
		color := w.coloringBits.FirstClear()
		if color < 0 {
			return ErrColoringExhausted
		}
		pair.color = uint16(color)
		w.colorGroups.count(uint16(color))
	}
	return nil
}

// assignColorGroups re-scans the awake islands' pairs into the color
// table in one pass.
func (w *World) assignColorGroups() {
	for _, groupIndex := range w.awakeGroups.Slice() {
		group := w.groups.group(int(groupIndex))
		for i := int(group.pairsBegin); i != int(group.pairsEnd); i++ {
			w.colorGroups.pushBack(w.groups.pair(i))
		}
	}
}
