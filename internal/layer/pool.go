package layer

import (
	"sync"
)

// colPool recycles im2col buffers between forward calls. Buffers are not
// zeroed: ConvIm2Col writes every cell.
type colPool struct {
	pool sync.Pool
}

var colBuffers = &colPool{}

// get returns a buffer of exactly size elements.
func (p *colPool) get(size int) []float32 {
	if v := p.pool.Get(); v != nil {
		buf := *(v.(*[]float32))
		if cap(buf) >= size {
			colPoolHits.Inc()
			return buf[:size]
		}
	}
	colPoolMisses.Inc()
	return make([]float32, size)
}

// put returns a buffer to the pool.
func (p *colPool) put(buf []float32) {
	if buf != nil {
		p.pool.Put(&buf)
	}
}
