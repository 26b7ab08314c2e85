package idgen

import (
	"fmt"
	"sync"
)

// Sequential is a deterministic Generator for tests: it returns
// "<prefix>_<n>" with a monotonically increasing counter per prefix.
type Sequential struct {
	mu      sync.Mutex
	counter map[string]int
}

// NewSequential creates an empty Sequential generator.
func NewSequential() *Sequential {
	return &Sequential{counter: make(map[string]int)}
}

// NewID returns the next deterministic ID for prefix.
func (s *Sequential) NewID(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter[prefix]++
	return fmt.Sprintf("%s_%d", prefix, s.counter[prefix])
}
