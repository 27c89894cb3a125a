package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor_VisitsEveryItemOnce(t *testing.T) {
	for _, workers := range []int{1, 3, 16} {
		prev := SetWorkers(workers)

		const n = 101
		var hits [n]int32
		For(n, func(i int) {
			atomic.AddInt32(&hits[i], 1)
		})
		for i, h := range hits {
			require.Equal(t, int32(1), h, "item %d with %d workers", i, workers)
		}

		SetWorkers(prev)
	}
}

func TestFor_Empty(t *testing.T) {
	called := false
	For(0, func(int) { called = true })
	assert.False(t, called)
}

func TestFor_PanicPropagates(t *testing.T) {
	prev := SetWorkers(4)
	defer SetWorkers(prev)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		wp, ok := r.(*WorkerPanic)
		require.True(t, ok, "expected *WorkerPanic, got %T", r)
		assert.Equal(t, "boom", wp.Value)
		assert.Contains(t, wp.Error(), "boom")
	}()

	For(8, func(i int) {
		if i == 5 {
			panic("boom")
		}
	})
	t.Fatal("For should have panicked")
}

func TestSetWorkers_Clamp(t *testing.T) {
	prev := SetWorkers(0)
	defer SetWorkers(prev)
	assert.Equal(t, 1, Workers())
}
