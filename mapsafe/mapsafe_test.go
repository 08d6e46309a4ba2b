package mapsafe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	m := map[string]any{
		"imgsz":    640,
		"opset":    int64(12),
		"batch":    4.0,
		"frac":     2.5,
		"dynamic":  true,
		"half":     "true",
		"simplify": "nope",
		"device":   "cpu",
		"tags":     []string{"a"},
	}

	assert.Equal(t, 640, Get(m, "imgsz", 0))
	assert.Equal(t, 12, Get(m, "opset", 0))
	assert.Equal(t, 4, Get(m, "batch", 0))
	assert.Equal(t, 7, Get(m, "frac", 7))
	assert.InDelta(t, 640.0, Get(m, "imgsz", 0.0), 1e-9)
	assert.InDelta(t, 2.5, Get(m, "frac", 0.0), 1e-9)
	assert.True(t, Get(m, "dynamic", false))
	assert.True(t, Get(m, "half", false))
	assert.False(t, Get(m, "simplify", false))
	assert.Equal(t, "cpu", Get(m, "device", ""))
	assert.Equal(t, "", Get(m, "imgsz", ""))
	assert.Equal(t, []string{"a"}, Get[[]string](m, "tags", nil))
	assert.Equal(t, "fallback", Get(m, "missing", "fallback"))
	assert.Equal(t, 1, Get[int](nil, "imgsz", 1))
}
