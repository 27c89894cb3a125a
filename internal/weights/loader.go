// Package weights reads and writes convolution parameters as raw
// little-endian float32 blobs: every kernel in [out][in/groups][kh][kw]
// row-major order, followed by one bias value per kernel when the layer has
// bias.
package weights

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-mosaic/internal/layer"
	"github.com/23skdu/longbow-mosaic/internal/tensor"
)

// ErrTrailingData is returned when a blob holds more values than the layer
// needs.
var ErrTrailingData = errors.New("trailing data after weights")

// Loader fills the parameters of a convolution layer.
type Loader struct {
	Layer *layer.ConvolutionLayer
}

// NewLoader creates a new weight loader for the given layer.
func NewLoader(l *layer.ConvolutionLayer) *Loader {
	return &Loader{Layer: l}
}

// LoadFromRawBinary loads kernels and bias from a raw binary file.
func (l *Loader) LoadFromRawBinary(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := l.Load(file); err != nil {
		return fmt.Errorf("load weights %s: %w", path, err)
	}
	log.Info().Str("layer", l.Layer.Name()).Str("path", path).Msg("Loaded convolution weights")
	return nil
}

// Load reads kernels and bias from r. The layer is only updated when the
// whole blob is valid.
func (l *Loader) Load(r io.Reader) error {
	cfg := l.Layer.Config()
	kernelSize := cfg.KernelChannels() * cfg.KernelH * cfg.KernelW

	data, err := readFloats(r, cfg.OutChannels*kernelSize)
	if err != nil {
		return fmt.Errorf("failed to load kernels: %w", err)
	}
	kernels, err := layer.KernelsFromRowMajor(cfg,
		[]int{cfg.OutChannels, cfg.KernelChannels(), cfg.KernelH, cfg.KernelW}, data)
	if err != nil {
		return err
	}

	var bias []*tensor.Tensor[float32]
	if cfg.UseBias {
		values, err := readFloats(r, cfg.OutChannels)
		if err != nil {
			return fmt.Errorf("failed to load bias: %w", err)
		}
		if bias, err = layer.BiasFromValues(cfg, values); err != nil {
			return err
		}
	}

	var extra [1]byte
	if n, _ := io.ReadFull(r, extra[:]); n != 0 {
		return ErrTrailingData
	}

	if err := l.Layer.SetWeights(kernels); err != nil {
		return err
	}
	if cfg.UseBias {
		return l.Layer.SetBias(bias)
	}
	return nil
}

// Save writes the layer parameters to w in the format Load reads.
func (l *Loader) Save(w io.Writer) error {
	for k, kernel := range l.Layer.Weights() {
		if err := binary.Write(w, binary.LittleEndian, kernel.Values(true)); err != nil {
			return fmt.Errorf("failed to write kernel %d: %w", k, err)
		}
	}
	for k, b := range l.Layer.Bias() {
		if err := binary.Write(w, binary.LittleEndian, b.Index(0)); err != nil {
			return fmt.Errorf("failed to write bias %d: %w", k, err)
		}
	}
	return nil
}

// SaveToRawBinary writes the layer parameters to path.
func (l *Loader) SaveToRawBinary(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := l.Save(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func readFloats(r io.Reader, n int) ([]float32, error) {
	data := make([]float32, n)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, err
	}
	return data, nil
}
