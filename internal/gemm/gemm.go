// Package gemm wraps the gonum blas32 routines used by the convolution layer.
// The pure Go implementation is used unless the netlib backend is compiled in.
package gemm

import (
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// ColMajor wraps a column-major rows×cols buffer as the row-major cols×rows
// blas32.General that shares its memory.
func ColMajor(rows, cols int, data []float32) blas32.General {
	if len(data) < rows*cols {
		log.Panic().Int("rows", rows).Int("cols", cols).Int("len", len(data)).
			Msg("gemm: buffer too small for column-major matrix")
	}
	return blas32.General{
		Rows:   cols,
		Cols:   rows,
		Stride: rows,
		Data:   data[:rows*cols],
	}
}

// RowVecMat computes dst = w · m, a 1×K by K×N product, where m is a K×N
// column-major matrix passed as its row-major N×K view (see ColMajor).
// dst must have length N and is overwritten.
func RowVecMat(dst, w []float32, m blas32.General) {
	k, n := m.Cols, m.Rows
	if len(w) != k {
		log.Panic().Int("weights", len(w)).Int("k", k).Msg("gemm: row vector length mismatch")
	}
	if len(dst) != n {
		log.Panic().Int("dst", len(dst)).Int("n", n).Msg("gemm: destination length mismatch")
	}
	if k == 0 || n == 0 {
		return
	}

	a := blas32.General{Rows: 1, Cols: k, Stride: k, Data: w}
	c := blas32.General{Rows: 1, Cols: n, Stride: n, Data: dst}
	blas32.Gemm(blas.NoTrans, blas.Trans, 1, a, m, 0, c)
}
