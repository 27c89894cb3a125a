// Package tensor provides the dense 3-axis container used by the inference
// layers.
//
// Storage is a single contiguous slice holding channels × rows × cols
// elements. Each channel plane is laid out column-major: element (ch, r, c)
// lives at ch*rows*cols + c*rows + r. This physical order never changes once
// a buffer is allocated; FillValues and Values convert to and from the
// row-major order model files are serialized in.
//
// Alongside the physical dims every tensor carries a logical shape of 1 to 3
// dims ({n}, {rows, cols} or {channels, rows, cols}) for consumers that think
// in vector/matrix/volume terms.
//
// Precondition violations (empty storage, out of range index, shape mismatch)
// are fatal: they are logged at panic level and the call panics with a
// diagnostic naming the violated invariant.
package tensor

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Number is the set of element types a Tensor can hold.
type Number interface {
	float32 | int32 | uint8
}

// Tensor is an owning container over a dense channels × rows × cols array.
// The zero value is an empty tensor.
type Tensor[T Number] struct {
	rows     int
	cols     int
	channels int
	data     []T

	rawShapes []int
}

// New creates a zeroed tensor with the given channels, rows and cols.
func New[T Number](channels, rows, cols int) *Tensor[T] {
	checkDims("New", channels, rows, cols)
	t := alloc[T](channels, rows, cols)
	t.rawShapes = canonicalShape(channels, rows, cols)
	return t
}

// NewVector creates a 1-D tensor of the given size, stored as a single row.
func NewVector[T Number](size int) *Tensor[T] {
	checkDims("NewVector", 1, 1, size)
	t := alloc[T](1, 1, size)
	t.rawShapes = []int{size}
	return t
}

// NewMatrix creates a single-channel rows × cols tensor.
func NewMatrix[T Number](rows, cols int) *Tensor[T] {
	checkDims("NewMatrix", 1, rows, cols)
	t := alloc[T](1, rows, cols)
	t.rawShapes = canonicalShape(1, rows, cols)
	return t
}

// NewFromShape creates a tensor from a logical shape of 1 to 3 dims. Missing
// leading dims are taken as 1, so {n} becomes (1, 1, n) and {r, c} becomes
// (1, r, c) in (channels, rows, cols) order.
func NewFromShape[T Number](shapes []int) *Tensor[T] {
	if len(shapes) == 0 || len(shapes) > 3 {
		fatalf("NewFromShape: shape must have 1 to 3 dims, got %d (%v)", len(shapes), shapes)
	}
	padded := []int{1, 1, 1}
	copy(padded[3-len(shapes):], shapes)
	return New[T](padded[0], padded[1], padded[2])
}

func alloc[T Number](channels, rows, cols int) *Tensor[T] {
	return &Tensor[T]{
		rows:     rows,
		cols:     cols,
		channels: channels,
		data:     make([]T, channels*rows*cols),
	}
}

// canonicalShape collapses leading singleton dims.
func canonicalShape(channels, rows, cols int) []int {
	switch {
	case channels == 1 && rows == 1:
		return []int{cols}
	case channels == 1:
		return []int{rows, cols}
	default:
		return []int{channels, rows, cols}
	}
}

func checkDims(op string, channels, rows, cols int) {
	if channels < 1 || rows < 1 || cols < 1 {
		fatalf("%s: dims must be positive, got channels=%d rows=%d cols=%d", op, channels, rows, cols)
	}
}

// fatalf reports a violated precondition and panics with the diagnostic.
func fatalf(format string, args ...any) {
	log.Panic().Str("component", "tensor").Msgf(format, args...)
}

func (t *Tensor[T]) mustNotEmpty(op string) {
	if t.Empty() {
		fatalf("%s: tensor is empty", op)
	}
}

// Empty reports whether the tensor has no storage.
func (t *Tensor[T]) Empty() bool {
	return len(t.data) == 0
}

// Rows returns the number of rows of each channel plane.
func (t *Tensor[T]) Rows() int {
	t.mustNotEmpty("Rows")
	return t.rows
}

// Cols returns the number of columns of each channel plane.
func (t *Tensor[T]) Cols() int {
	t.mustNotEmpty("Cols")
	return t.cols
}

// Channels returns the number of channel planes.
func (t *Tensor[T]) Channels() int {
	t.mustNotEmpty("Channels")
	return t.channels
}

// Size returns the total element count.
func (t *Tensor[T]) Size() int {
	t.mustNotEmpty("Size")
	return len(t.data)
}

// PlaneSize returns rows*cols.
func (t *Tensor[T]) PlaneSize() int {
	t.mustNotEmpty("PlaneSize")
	return t.rows * t.cols
}

// Shapes returns the physical dims as {channels, rows, cols}.
func (t *Tensor[T]) Shapes() []int {
	t.mustNotEmpty("Shapes")
	return []int{t.channels, t.rows, t.cols}
}

// RawShapes returns a copy of the logical shape.
func (t *Tensor[T]) RawShapes() []int {
	if len(t.rawShapes) == 0 || len(t.rawShapes) > 3 {
		fatalf("RawShapes: logical shape must have 1 to 3 dims, got %v", t.rawShapes)
	}
	out := make([]int, len(t.rawShapes))
	copy(out, t.rawShapes)
	return out
}

func (t *Tensor[T]) offset(channel, row, col int) int {
	if channel < 0 || channel >= t.channels || row < 0 || row >= t.rows || col < 0 || col >= t.cols {
		fatalf("At: index (%d, %d, %d) out of bound for shape (%d, %d, %d)",
			channel, row, col, t.channels, t.rows, t.cols)
	}
	return channel*t.rows*t.cols + col*t.rows + row
}

// At returns the element at (channel, row, col).
func (t *Tensor[T]) At(channel, row, col int) T {
	return t.data[t.offset(channel, row, col)]
}

// Set writes the element at (channel, row, col).
func (t *Tensor[T]) Set(channel, row, col int, v T) {
	t.data[t.offset(channel, row, col)] = v
}

// Index returns the element at a flat offset into physical storage.
func (t *Tensor[T]) Index(offset int) T {
	if offset < 0 || offset >= len(t.data) {
		fatalf("Index: offset %d out of bound for size %d", offset, len(t.data))
	}
	return t.data[offset]
}

// SetIndex writes the element at a flat offset into physical storage.
func (t *Tensor[T]) SetIndex(offset int, v T) {
	if offset < 0 || offset >= len(t.data) {
		fatalf("SetIndex: offset %d out of bound for size %d", offset, len(t.data))
	}
	t.data[offset] = v
}

// Raw returns the backing storage. Writes through the slice are visible to
// the tensor until its storage is next replaced.
func (t *Tensor[T]) Raw() []T {
	t.mustNotEmpty("Raw")
	return t.data
}

// RawFrom returns the backing storage starting at offset.
func (t *Tensor[T]) RawFrom(offset int) []T {
	t.mustNotEmpty("RawFrom")
	if offset < 0 || offset >= len(t.data) {
		fatalf("RawFrom: offset %d out of bound for size %d", offset, len(t.data))
	}
	return t.data[offset:]
}

// MatrixRaw returns the column-major rows × cols plane of one channel.
func (t *Tensor[T]) MatrixRaw(channel int) []T {
	t.mustNotEmpty("MatrixRaw")
	if channel < 0 || channel >= t.channels {
		fatalf("MatrixRaw: channel %d out of bound for %d channels", channel, t.channels)
	}
	plane := t.rows * t.cols
	return t.data[channel*plane : (channel+1)*plane]
}

// SetData replaces the backing storage. The replacement must describe the
// same physical dims; resizing goes through Reshape or Padding.
func (t *Tensor[T]) SetData(data []T, rows, cols, channels int) {
	if rows != t.rows || cols != t.cols || channels != t.channels {
		fatalf("SetData: dims (%d, %d, %d) != (%d, %d, %d)",
			channels, rows, cols, t.channels, t.rows, t.cols)
	}
	if len(data) != rows*cols*channels {
		fatalf("SetData: data length %d != %d", len(data), rows*cols*channels)
	}
	t.data = data
}

// Clone returns a deep copy.
func (t *Tensor[T]) Clone() *Tensor[T] {
	out := &Tensor[T]{
		rows:      t.rows,
		cols:      t.cols,
		channels:  t.channels,
		data:      make([]T, len(t.data)),
		rawShapes: make([]int, len(t.rawShapes)),
	}
	copy(out.data, t.data)
	copy(out.rawShapes, t.rawShapes)
	return out
}

// Show logs every channel plane at info level.
func (t *Tensor[T]) Show() {
	t.mustNotEmpty("Show")
	for ch := 0; ch < t.channels; ch++ {
		var sb strings.Builder
		for r := 0; r < t.rows; r++ {
			for c := 0; c < t.cols; c++ {
				if c > 0 {
					sb.WriteByte(' ')
				}
				fmt.Fprint(&sb, t.data[ch*t.rows*t.cols+c*t.rows+r])
			}
			sb.WriteByte('\n')
		}
		log.Info().Int("channel", ch).Msg("\n" + sb.String())
	}
}
