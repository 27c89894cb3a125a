package tensor

import (
	"github.com/23skdu/longbow-mosaic/internal/parallel"
)

// Reshape changes the tensor to a logical shape of 1 to 3 dims holding the
// same number of elements.
//
// With rowMajor false the physical buffer is reinterpreted under the new dims
// without moving data. With rowMajor true the elements keep their row-major
// order (as seen through Values(true)) and are redistributed into the new
// physical layout via Review.
func (t *Tensor[T]) Reshape(shapes []int, rowMajor bool) {
	t.mustNotEmpty("Reshape")
	if len(shapes) == 0 || len(shapes) > 3 {
		fatalf("Reshape: shape must have 1 to 3 dims, got %d (%v)", len(shapes), shapes)
	}
	total := 1
	for _, s := range shapes {
		if s < 1 {
			fatalf("Reshape: dims must be positive, got %v", shapes)
		}
		total *= s
	}
	if total != len(t.data) {
		fatalf("Reshape: shape %v holds %d elements, tensor has %d", shapes, total, len(t.data))
	}

	channels, rows, cols := 1, 1, 1
	switch len(shapes) {
	case 3:
		channels, rows, cols = shapes[0], shapes[1], shapes[2]
	case 2:
		rows, cols = shapes[0], shapes[1]
	case 1:
		cols = shapes[0]
	}

	if rowMajor {
		t.Review([]int{channels, rows, cols})
	} else {
		t.channels, t.rows, t.cols = channels, rows, cols
	}
	t.rawShapes = append([]int(nil), shapes...)
}

// Flatten reshapes the tensor to a 1-D vector of Size() elements.
func (t *Tensor[T]) Flatten(rowMajor bool) {
	t.mustNotEmpty("Flatten")
	t.Reshape([]int{len(t.data)}, rowMajor)
}

// Review redistributes the elements into a new (channels, rows, cols)
// physical layout so that the row-major sequence of the tensor is preserved.
//
// Source element (ch, r, c) has row-major position
// p = ch*rows*cols + r*cols + c and moves to destination channel
// p / plane, row (p % plane) / newCols, col (p % plane) % newCols, where
// plane = newRows*newCols. Source channels are processed in parallel; the
// mapping is a bijection so no two writes share a destination cell.
func (t *Tensor[T]) Review(shapes []int) {
	t.mustNotEmpty("Review")
	if len(shapes) != 3 {
		fatalf("Review: expected 3 dims (channels, rows, cols), got %d (%v)", len(shapes), shapes)
	}
	targetChannels, targetRows, targetCols := shapes[0], shapes[1], shapes[2]
	checkDims("Review", targetChannels, targetRows, targetCols)
	if targetChannels*targetRows*targetCols != len(t.data) {
		fatalf("Review: shape %v holds %d elements, tensor has %d",
			shapes, targetChannels*targetRows*targetCols, len(t.data))
	}

	srcRows, srcCols := t.rows, t.cols
	srcPlane := srcRows * srcCols
	planeSize := targetRows * targetCols
	newData := make([]T, len(t.data))

	parallel.For(t.channels, func(ch int) {
		planeStart := ch * srcPlane
		for c := 0; c < srcCols; c++ {
			col := t.data[planeStart+c*srcRows : planeStart+(c+1)*srcRows]
			for r, v := range col {
				pos := planeStart + r*srcCols + c
				destChannel := pos / planeSize
				rem := pos - destChannel*planeSize
				destRow := rem / targetCols
				destCol := rem - destRow*targetCols
				newData[destChannel*planeSize+destCol*targetRows+destRow] = v
			}
		}
	})

	t.data = newData
	t.channels, t.rows, t.cols = targetChannels, targetRows, targetCols
	t.rawShapes = canonicalShape(targetChannels, targetRows, targetCols)
}
