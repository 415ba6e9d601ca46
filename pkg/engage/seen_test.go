package engage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeenSetEvictsOldestFirst(t *testing.T) {
	s := newSeenSet(2)

	s.Add("a")
	s.Add("b")
	s.Add("a")
	assert.Equal(t, 2, s.Len())

	s.Add("c")
	assert.False(t, s.Contains("a"))
	assert.True(t, s.Contains("b"))
	assert.True(t, s.Contains("c"))
	assert.Equal(t, 2, s.Len())
}
