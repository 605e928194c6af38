package model

import "sync"

// Selection is the ordered set of currently chosen element keys.
type Selection struct {
	mu   sync.RWMutex
	keys []string
	set  map[string]struct{}
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{set: make(map[string]struct{})}
}

// Select adds key to the selection. It returns false if already selected.
func (s *Selection) Select(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[key]; ok {
		return false
	}
	s.set[key] = struct{}{}
	s.keys = append(s.keys, key)
	return true
}

// Deselect removes key. It returns false if key was not selected.
func (s *Selection) Deselect(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[key]; !ok {
		return false
	}
	delete(s.set, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether key is selected.
func (s *Selection) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.set[key]
	return ok
}

// Keys returns the selected keys in selection order.
func (s *Selection) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.keys...)
}

// Len returns the number of selected keys.
func (s *Selection) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// IsEmpty reports whether nothing is selected.
func (s *Selection) IsEmpty() bool {
	return s.Len() == 0
}

// Clear deselects everything and returns the previous keys.
func (s *Selection) Clear() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.keys
	s.keys = nil
	s.set = make(map[string]struct{})
	return prev
}

// Set replaces the selection with keys, in order.
func (s *Selection) Set(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = s.keys[:0]
	s.set = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := s.set[k]; ok {
			continue
		}
		s.set[k] = struct{}{}
		s.keys = append(s.keys, k)
	}
}
