package simd

import (
	"testing"
)

func TestAddScalar(t *testing.T) {
	dst := []float32{1, 2, 3, 4, 5}
	expected := []float32{1.5, 2.5, 3.5, 4.5, 5.5}

	AddScalar(dst, 0.5)

	for i, v := range dst {
		if v != expected[i] {
			t.Errorf("AddScalar(%d) = %f, want %f", i, v, expected[i])
		}
	}
}

func TestDotProduct(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5}
	b := []float32{2, 3, 4, 5, 6}
	// 2 + 6 + 12 + 20 + 30 = 70
	var expected float32 = 70

	result := DotProduct(a, b)

	if result != expected {
		t.Errorf("DotProduct = %f, want %f", result, expected)
	}
}

func TestAddScalar_Empty(t *testing.T) {
	// Should not panic
	AddScalar(nil, 1)
}
