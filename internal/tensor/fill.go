package tensor

// Fill sets every element to value.
func (t *Tensor[T]) Fill(value T) {
	t.mustNotEmpty("Fill")
	for i := range t.data {
		t.data[i] = value
	}
}

// Ones fills the tensor with the multiplicative identity.
func (t *Tensor[T]) Ones() {
	t.Fill(1)
}

// FillValues copies values into the tensor. values must hold exactly Size()
// elements.
//
// With rowMajor false the buffer is copied in physical order. With rowMajor
// true it is read channel by channel, each plane row-major (width fastest),
// and transposed into the column-major plane.
func (t *Tensor[T]) FillValues(values []T, rowMajor bool) {
	t.mustNotEmpty("FillValues")
	if len(values) != len(t.data) {
		fatalf("FillValues: got %d values for tensor of size %d", len(values), len(t.data))
	}
	if !rowMajor {
		copy(t.data, values)
		return
	}

	rows, cols := t.rows, t.cols
	plane := rows * cols
	for ch := 0; ch < t.channels; ch++ {
		src := values[ch*plane : (ch+1)*plane]
		dst := t.data[ch*plane : (ch+1)*plane]
		for r := 0; r < rows; r++ {
			row := src[r*cols : (r+1)*cols]
			for c, v := range row {
				dst[c*rows+r] = v
			}
		}
	}
}

// Values returns a copy of the elements, in physical order or, with rowMajor
// true, channel by channel with each plane row-major. It is the inverse of
// FillValues.
func (t *Tensor[T]) Values(rowMajor bool) []T {
	t.mustNotEmpty("Values")
	out := make([]T, len(t.data))
	if !rowMajor {
		copy(out, t.data)
		return out
	}

	rows, cols := t.rows, t.cols
	plane := rows * cols
	for ch := 0; ch < t.channels; ch++ {
		src := t.data[ch*plane : (ch+1)*plane]
		dst := out[ch*plane : (ch+1)*plane]
		for c := 0; c < cols; c++ {
			col := src[c*rows : (c+1)*rows]
			for r, v := range col {
				dst[r*cols+c] = v
			}
		}
	}
	return out
}

// Transform replaces every element x with f(x).
func (t *Tensor[T]) Transform(f func(T) T) {
	t.mustNotEmpty("Transform")
	for i, v := range t.data {
		t.data[i] = f(v)
	}
}
