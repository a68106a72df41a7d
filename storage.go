package granite

// objectStorage is a slot-allocated pool with stable 32-bit indices.
// Free indices are handed out low-first so the first creations land on
// 0, 1, 2, ...; destroyed slots are reused most-recently-freed first.
// The three object storages of a world are instantiations of this one
// type.
type objectStorage[T any] struct {
	items       []T
	freeIndices []uint32
	occupied    []bool
}

func newObjectStorage[T any](capacity int) *objectStorage[T] {
	s := &objectStorage[T]{
		items:       make([]T, capacity),
		freeIndices: make([]uint32, capacity),
		occupied:    make([]bool, capacity),
	}
	for i := range s.freeIndices {
		s.freeIndices[i] = uint32(capacity - i - 1)
	}
	return s
}

func (s *objectStorage[T]) create(data T) (uint32, error) {
	if len(s.freeIndices) == 0 {
		return 0, ErrCapacityExceeded
	}
	index := s.freeIndices[len(s.freeIndices)-1]
	s.freeIndices = s.freeIndices[:len(s.freeIndices)-1]
	s.items[index] = data
	s.occupied[index] = true
	return index, nil
}

func (s *objectStorage[T]) destroy(index uint32) {
	if !s.occupied[index] {
		panic(ErrInvalidHandle)
	}
	s.freeIndices = append(s.freeIndices, index)
	s.occupied[index] = false
}

func (s *objectStorage[T]) at(index uint32) *T {
	return &s.items[index]
}

func (s *objectStorage[T]) count() int {
	return len(s.items) - len(s.freeIndices)
}

// forEach visits live slots in ascending index order, stopping once
// every live slot has been seen.
func (s *objectStorage[T]) forEach(f func(index uint32, data *T)) {
	remaining := s.count()
	for i := 0; i < len(s.items) && remaining > 0; i++ {
		if s.occupied[i] {
			f(uint32(i), &s.items[i])
			remaining--
		}
	}
}
