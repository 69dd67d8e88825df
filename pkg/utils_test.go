package pkg_test

import (
	"testing"

	"github.com/cabinetdb/cabinet/pkg"
	"gotest.tools/assert"
)

func TestFilter(t *testing.T) {
	even := pkg.Filter([]int{1, 2, 3, 4, 5}, func(n int) bool { return n%2 == 0 })
	assert.DeepEqual(t, even, []int{2, 4})

	none := pkg.Filter([]int{1, 3}, func(n int) bool { return n%2 == 0 })
	assert.Equal(t, len(none), 0)
}

func TestNumToInt(t *testing.T) {
	assert.Equal(t, pkg.NumToInt(42), 42)
	assert.Equal(t, pkg.NumToInt(42.9), 42)
	assert.Equal(t, pkg.NumToInt("nope"), 0)
}

func TestMap(t *testing.T) {
	m := pkg.Map[string, int]{}
	m.Set("a", 1)
	assert.Equal(t, m.Get("a"), 1)
	assert.Assert(t, m.Has("a"))
	m.Delete("a")
	assert.Assert(t, !m.Has("a"))
}
