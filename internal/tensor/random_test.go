package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandU_Float(t *testing.T) {
	x := New[float32](2, 16, 16)
	x.RandU(-1, 2)
	distinct := map[float32]struct{}{}
	for _, v := range x.Raw() {
		require.GreaterOrEqual(t, v, float32(-1))
		require.LessOrEqual(t, v, float32(2))
		distinct[v] = struct{}{}
	}
	assert.Greater(t, len(distinct), 1)
}

func TestRandU_Int32Inclusive(t *testing.T) {
	x := New[int32](1, 32, 32)
	x.RandU(-2, 2)
	seen := map[int32]bool{}
	for _, v := range x.Raw() {
		require.GreaterOrEqual(t, v, int32(-2))
		require.LessOrEqual(t, v, int32(2))
		seen[v] = true
	}
	// 1024 draws over 5 values
	assert.Len(t, seen, 5)
}

func TestRandU_Uint8FullRange(t *testing.T) {
	x := New[uint8](4, 64, 64)
	x.RandU(0, 255)
	sawHigh := false
	for _, v := range x.Raw() {
		if v > 200 {
			sawHigh = true
		}
	}
	assert.True(t, sawHigh)

	y := NewVector[uint8](8)
	y.RandU(7, 7)
	for _, v := range y.Raw() {
		assert.Equal(t, uint8(7), v)
	}
}

func TestRandU_InvalidRange(t *testing.T) {
	x := NewVector[int32](4)
	requirePanicContains(t, "RandU: max", func() { x.RandU(3, 1) })
}

func TestRandN(t *testing.T) {
	x := New[float32](1, 100, 100)
	RandN(x, 5, 2)

	var sum, sq float64
	for _, v := range x.Raw() {
		sum += float64(v)
	}
	n := float64(x.Size())
	mean := sum / n
	for _, v := range x.Raw() {
		d := float64(v) - mean
		sq += d * d
	}
	std := math.Sqrt(sq / n)

	assert.InDelta(t, 5.0, mean, 0.2)
	assert.InDelta(t, 2.0, std, 0.2)

	requirePanicContains(t, "negative", func() { RandN(x, 0, -1) })
}
