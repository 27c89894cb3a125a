// Package simd holds unrolled float32 vector kernels used on the layer hot path.
package simd

// AddScalar performs dst += val for float32 vectors
func AddScalar(dst []float32, val float32) {
	// Unrolled loop for better pipelining
	i := 0
	for ; i <= len(dst)-4; i += 4 {
		dst[i] += val
		dst[i+1] += val
		dst[i+2] += val
		dst[i+3] += val
	}
	// Handle remainder
	for ; i < len(dst); i++ {
		dst[i] += val
	}
}

// DotProduct computes the dot product of two float32 vectors
func DotProduct(a, b []float32) float32 {
	var sum float32
	i := 0
	for ; i <= len(a)-4; i += 4 {
		sum += a[i] * b[i]
		sum += a[i+1] * b[i+1]
		sum += a[i+2] * b[i+2]
		sum += a[i+3] * b[i+3]
	}
	for ; i < len(a); i++ {
		sum += a[i] * b[i]
	}
	return sum
}
