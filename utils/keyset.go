package utils

// KeySet tracks string keys already seen.
// Not safe for concurrent use; the pipeline runs on a single goroutine.
type KeySet struct {
	seen map[string]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// Add returns true if key was newly added, false if already present.
func (s *KeySet) Add(key string) bool {
	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains reports whether key has been added.
func (s *KeySet) Contains(key string) bool {
	_, exists := s.seen[key]
	return exists
}
