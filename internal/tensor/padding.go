package tensor

// Padding grows every channel plane by pads = {top, bottom, left, right}
// rows/cols filled with value. The source data lands at offset (top, left)
// and the logical shape is recomputed from the new dims.
func (t *Tensor[T]) Padding(pads []int, value T) {
	t.mustNotEmpty("Padding")
	if len(pads) != 4 {
		fatalf("Padding: expected 4 pad amounts (top, bottom, left, right), got %d", len(pads))
	}
	top, bottom, left, right := pads[0], pads[1], pads[2], pads[3]
	if top < 0 || bottom < 0 || left < 0 || right < 0 {
		fatalf("Padding: pad amounts must be non-negative, got %v", pads)
	}

	rows, cols := t.rows, t.cols
	newRows := rows + top + bottom
	newCols := cols + left + right
	newPlane := newRows * newCols

	newData := make([]T, newPlane*t.channels)
	for i := range newData {
		newData[i] = value
	}

	plane := rows * cols
	for ch := 0; ch < t.channels; ch++ {
		for c := 0; c < cols; c++ {
			src := t.data[ch*plane+c*rows : ch*plane+(c+1)*rows]
			start := ch*newPlane + (c+left)*newRows + top
			copy(newData[start:start+rows], src)
		}
	}

	t.data = newData
	t.rows = newRows
	t.cols = newCols
	t.rawShapes = canonicalShape(t.channels, newRows, newCols)
}
