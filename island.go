package granite

import "github.com/akmonengine/granite/container"

// neighborGroup is one island: a contiguous range of the flat object
// list and a contiguous range of the flat pair-pointer list.
type neighborGroup struct {
	objectsBegin uint32
	objectsEnd   uint32
	pairsBegin   uint32
	pairsEnd     uint32
}

// neighborGroupStorage stores all islands of a frame as flat lists
// sliced by per-group ranges.
type neighborGroupStorage struct {
	objects *container.List[dynamicObject]
	pairs   *container.List[*neighborPair]
	groups  *container.List[neighborGroup]
}

func newNeighborGroupStorage(maxObjects, maxPairs, maxGroups int) *neighborGroupStorage {
	return &neighborGroupStorage{
		objects: container.NewList[dynamicObject](maxObjects),
		pairs:   container.NewList[*neighborPair](maxPairs),
		groups:  container.NewList[neighborGroup](maxGroups),
	}
}

func (s *neighborGroupStorage) clear() {
	s.objects.Clear()
	s.pairs.Clear()
	s.groups.Clear()
}

func (s *neighborGroupStorage) beginGroup() error {
	if err := s.groups.PushBack(neighborGroup{
		objectsBegin: uint32(s.objects.Len()),
		objectsEnd:   uint32(s.objects.Len()),
		pairsBegin:   uint32(s.pairs.Len()),
		pairsEnd:     uint32(s.pairs.Len()),
	}); err != nil {
		return ErrCapacityExceeded
	}
	return nil
}

func (s *neighborGroupStorage) addObject(object dynamicObject) error {
	if err := s.objects.PushBack(object); err != nil {
		return ErrCapacityExceeded
	}
	s.groups.At(s.groups.Len() - 1).objectsEnd++
	return nil
}

func (s *neighborGroupStorage) addPair(pair *neighborPair) error {
	if err := s.pairs.PushBack(pair); err != nil {
		return ErrCapacityExceeded
	}
	s.groups.At(s.groups.Len() - 1).pairsEnd++
	return nil
}

func (s *neighborGroupStorage) objectCount() int { return s.objects.Len() }

func (s *neighborGroupStorage) object(i int) dynamicObject { return *s.objects.At(i) }

func (s *neighborGroupStorage) pair(i int) *neighborPair { return *s.pairs.At(i) }

func (s *neighborGroupStorage) groupCount() int { return s.groups.Len() }

func (s *neighborGroupStorage) group(i int) neighborGroup { return *s.groups.At(i) }

// findNeighborGroups flood-fills the contact graph into islands. Every
// unmarked dynamic object seeds a group; the group's object list
// doubles as the BFS fringe, consumed by a cursor shared across all
// groups. Pairs against static bodies join the pair list but are never
// traversed.
func (w *World) findNeighborGroups() error {
	w.particles.forEach(func(_ uint32, data *particleData) {
		data.marked = false
	})
	w.rigidBodies.forEach(func(_ uint32, data *rigidBodyData) {
		data.marked = false
	})
	fringeIndex := 0
	var err error
	seed := func(object dynamicObject) {
		if err != nil {
			return
		}
		if err = w.groups.beginGroup(); err != nil {
			return
		}
		if err = w.groups.addObject(object); err != nil {
			return
		}
		for fringeIndex != w.groups.objectCount() && err == nil {
			err = w.visitGroupObject(w.groups.object(fringeIndex))
			fringeIndex++
		}
	}
	w.particles.forEach(func(index uint32, data *particleData) {
		if !data.marked {
			data.marked = true
			seed(dynamicObject{kind: dynamicKindParticle, index: index})
		}
	})
	w.rigidBodies.forEach(func(index uint32, data *rigidBodyData) {
		if !data.marked {
			data.marked = true
			seed(dynamicObject{kind: dynamicKindRigidBody, index: index})
		}
	})
	return err
}

// visitGroupObject expands one fringe object: unmarked dynamic
// neighbors join the group's object list, unmarked pairs its pair
// list.
func (w *World) visitGroupObject(object dynamicObject) error {
	var pairs []*neighborPair
	if object.kind == dynamicKindParticle {
		pairs = w.particleNeighborPairs(object.index)
	} else {
		pairs = w.rigidBodyNeighborPairs(object.index)
	}
	for _, pair := range pairs {
		switch pair.kind {
		case pairParticleParticle:
			other := pair.objects[0]
			if other == object.index {
				other = pair.objects[1]
			}
			if err := w.visitGroupNeighbor(dynamicObject{kind: dynamicKindParticle, index: other}, pair); err != nil {
				return err
			}
		case pairParticleRigidBody:
			neighbor := dynamicObject{kind: dynamicKindRigidBody, index: pair.objects[1]}
			if object.kind == dynamicKindRigidBody {
				neighbor = dynamicObject{kind: dynamicKindParticle, index: pair.objects[0]}
			}
			if err := w.visitGroupNeighbor(neighbor, pair); err != nil {
				return err
			}
		case pairRigidBodyRigidBody:
			other := pair.objects[0]
			if other == object.index {
				other = pair.objects[1]
			}
			if err := w.visitGroupNeighbor(dynamicObject{kind: dynamicKindRigidBody, index: other}, pair); err != nil {
				return err
			}
		case pairParticleStaticBody, pairRigidBodyStaticBody:
			if err := w.groups.addPair(pair); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *World) visitGroupNeighbor(neighbor dynamicObject, pair *neighborPair) error {
	var marked *bool
	if neighbor.kind == dynamicKindParticle {
		marked = &w.particles.at(neighbor.index).marked
	} else {
		marked = &w.rigidBodies.at(neighbor.index).marked
	}
	if !*marked {
		*marked = true
		if err := w.groups.addObject(neighbor); err != nil {
			return err
		}
	}
	if pair.color == colorUnmarked {
		pair.color = colorMarked
		if err := w.groups.addPair(pair); err != nil {
			return err
		}
	}
	return nil
}
