package contextstore

import "sync"

// Store owns the working data and step index of the running session.
// Every Set swaps in a new root, so a root obtained from Data is never
// modified afterwards.
type Store struct {
	mu        sync.RWMutex
	data      map[string]interface{}
	stepIndex int
}

// NewStore creates a store seeded with initial data
func NewStore(initial map[string]interface{}) *Store {
	if initial == nil {
		initial = map[string]interface{}{}
	}
	return &Store{data: initial}
}

// Data returns the current root. Callers must treat it as read-only.
func (s *Store) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Get returns the value at path, or nil when absent
func (s *Store) Get(path string) interface{} {
	return Get(s.Data(), path)
}

// Lookup returns the value at path and whether it exists
func (s *Store) Lookup(path string) (interface{}, bool) {
	return Lookup(s.Data(), path)
}

// Set stores value at path and returns the new root
func (s *Store) Set(path string, value interface{}) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = Set(s.data, path, value)
	return s.data
}

// Replace swaps the whole root
func (s *Store) Replace(data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
}

// Reset clears the data and the step index together
func (s *Store) Reset() {
	s.mu.Lock()
	s.data = map[string]interface{}{}
	s.stepIndex = 0
	s.mu.Unlock()
}

// StepIndex returns the index of the step currently reading the store
func (s *Store) StepIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stepIndex
}

// SetStepIndex records the index of the step currently reading the store
func (s *Store) SetStepIndex(i int) {
	s.mu.Lock()
	s.stepIndex = i
	s.mu.Unlock()
}

// Interpolate renders tmpl against the current data
func (s *Store) Interpolate(tmpl string) string {
	return Interpolate(s.Data(), tmpl)
}
