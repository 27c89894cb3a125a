// Package parallel provides the fork-join loop used by the tensor and layer
// packages. Work items are split into contiguous chunks, one per worker.
package parallel

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// numWorkers defines the default parallelism for CPU loops
var numWorkers atomic.Int64

func init() {
	numWorkers.Store(int64(runtime.NumCPU()))
}

// Workers returns the current worker limit.
func Workers() int {
	return int(numWorkers.Load())
}

// SetWorkers overrides the worker limit and returns the previous value.
// Values below 1 are clamped to 1.
func SetWorkers(n int) int {
	if n < 1 {
		n = 1
	}
	return int(numWorkers.Swap(int64(n)))
}

// For calls fn(i) for every i in [0, n). Iterations run concurrently, so fn
// must only write to memory owned by item i.
//
// A panic inside fn is recovered on the worker and re-raised on the calling
// goroutine once every worker has returned.
func For(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	workers := Workers()
	if workers > n {
		workers = n
	}
	if workers == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	itemsPerWorker := (n + workers - 1) / workers

	var g errgroup.Group
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		start := w * itemsPerWorker
		end := start + itemsPerWorker
		if start >= n {
			break
		}
		if end > n {
			end = n
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &WorkerPanic{Start: start, End: end, Value: r}
				}
			}()
			for i := start; i < end; i++ {
				fn(i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		panic(err)
	}
}

// WorkerPanic carries a panic raised inside a For body back to the caller.
type WorkerPanic struct {
	Start, End int
	Value      any
}

func (p *WorkerPanic) Error() string {
	return fmt.Sprintf("parallel: worker for items [%d, %d) panicked: %v", p.Start, p.End, p.Value)
}
