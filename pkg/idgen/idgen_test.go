package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUUIDGenerator_NewID_HasPrefix(t *testing.T) {
	var g UUIDGenerator
	id := g.NewID(PrefixSession)

	assert.True(t, strings.HasPrefix(id, "sess_"))
	assert.Len(t, strings.TrimPrefix(id, "sess_"), 36)
}

func TestUUIDGenerator_NewID_Unique(t *testing.T) {
	var g UUIDGenerator
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := g.NewID(PrefixRecallPoint)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestSequential_NewID_IncrementsPerPrefix(t *testing.T) {
	s := NewSequential()

	assert.Equal(t, "sess_1", s.NewID(PrefixSession))
	assert.Equal(t, "sess_2", s.NewID(PrefixSession))
	assert.Equal(t, "rp_1", s.NewID(PrefixRecallPoint))
}
