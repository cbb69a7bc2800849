package id

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsSortedAndUnique(t *testing.T) {
	const n = 1000
	ids := make([]string, n)
	for i := range ids {
		ids[i] = New()
	}

	assert.True(t, sort.StringsAreSorted(ids), "ids must be lexicographically increasing")

	seen := make(map[string]struct{}, n)
	for _, s := range ids {
		assert.Len(t, s, 26)
		_, dup := seen[s]
		assert.False(t, dup, "duplicate id %s", s)
		seen[s] = struct{}{}
	}
}
