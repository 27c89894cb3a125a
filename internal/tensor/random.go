package tensor

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// newSource returns a freshly seeded generator for one fill call.
func newSource() rand.Source {
	return rand.NewPCG(rand.Uint64(), rand.Uint64())
}

// RandU fills the tensor with independent draws from the uniform distribution
// on [min, max]. Integer element types draw inclusively through an int64
// range so uint8 needs no narrow distribution.
func (t *Tensor[T]) RandU(min, max T) {
	t.mustNotEmpty("RandU")
	if max < min {
		fatalf("RandU: max %v < min %v", max, min)
	}
	src := newSource()

	switch any(min).(type) {
	case float32:
		dist := distuv.Uniform{Min: float64(min), Max: float64(max), Src: src}
		for i := range t.data {
			t.data[i] = T(dist.Rand())
		}
	default:
		r := rand.New(src)
		lo := int64(min)
		span := int64(max) - lo + 1
		for i := range t.data {
			t.data[i] = T(lo + r.Int64N(span))
		}
	}
}

// RandN fills a float tensor with independent draws from the normal
// distribution with the given mean and standard deviation.
func RandN(t *Tensor[float32], mean, stddev float32) {
	t.mustNotEmpty("RandN")
	if stddev < 0 {
		fatalf("RandN: standard deviation %v is negative", stddev)
	}
	dist := distuv.Normal{Mu: float64(mean), Sigma: float64(stddev), Src: newSource()}
	for i := range t.data {
		t.data[i] = float32(dist.Rand())
	}
}
