package types

import (
	"fmt"
	"sync"

	"github.com/goccy/go-json"
)

// Set is a concurrency safe insertion ordered set
type Set[T comparable] struct {
	mu       sync.RWMutex
	elements map[T]int
	order    []T
}

func NewSet[T comparable](elements ...T) *Set[T] {
	set := &Set[T]{
		elements: make(map[T]int),
	}
	set.Insert(elements...)
	return set
}

func (s *Set[T]) Insert(elements ...T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, elem := range elements {
		if _, found := s.elements[elem]; !found {
			s.elements[elem] = len(s.order)
			s.order = append(s.order, elem)
		}
	}
}

func (s *Set[T]) Exists(element T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, found := s.elements[element]
	return found
}

func (s *Set[T]) Remove(element T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, found := s.elements[element]
	if !found {
		return
	}

	delete(s.elements, element)
	s.order = append(s.order[:idx], s.order[idx+1:]...)
	for i := idx; i < len(s.order); i++ {
		s.elements[s.order[i]] = i
	}
}

func (s *Set[T]) Array() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Set[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.order)
}

// ProperSubsetOf reports whether s contains elements missing from other
func (s *Set[T]) ProperSubsetOf(other *Set[T]) bool {
	for _, elem := range s.Array() {
		if !other.Exists(elem) {
			return true
		}
	}
	return false
}

func (s *Set[T]) Difference(other *Set[T]) *Set[T] {
	diff := NewSet[T]()
	for _, elem := range s.Array() {
		if !other.Exists(elem) {
			diff.Insert(elem)
		}
	}
	return diff
}

func (s *Set[T]) String() string {
	return fmt.Sprintf("%v", s.Array())
}

func (s *Set[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Array())
}

func (s *Set[T]) UnmarshalJSON(data []byte) error {
	var elements []T
	if err := json.Unmarshal(data, &elements); err != nil {
		return err
	}

	s.mu.Lock()
	s.elements = make(map[T]int)
	s.order = nil
	s.mu.Unlock()

	s.Insert(elements...)
	return nil
}
