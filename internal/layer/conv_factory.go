package layer

import (
	"errors"
	"fmt"

	"github.com/23skdu/longbow-mosaic/internal/manifest"
	"github.com/23skdu/longbow-mosaic/internal/tensor"
)

// ConvolutionType is the operator type name convolution layers register under.
const ConvolutionType = "nn.Conv2d"

// ErrUnsupportedPadding is returned for padding modes other than zeros.
var ErrUnsupportedPadding = errors.New("unsupported padding mode")

func init() {
	Register(ConvolutionType, CreateConvolution)
}

// CreateConvolution builds a ConvolutionLayer from an nn.Conv2d description.
//
// Parameters: in_channels, out_channels, groups (ints), kernel_size, stride,
// padding, dilation (int pairs, height first), bias (bool) and an optional
// padding_mode that must be "zeros". Attributes: weight with shape
// [out_channels, in_channels/groups, kernel_h, kernel_w] and, when bias is
// set, bias with shape [out_channels], both row-major.
func CreateConvolution(op *manifest.Layer) (Layer, error) {
	cfg, err := ParseConvolutionConfig(op)
	if err != nil {
		return nil, err
	}

	weightAttr, err := op.Attr("weight")
	if err != nil {
		return nil, err
	}
	weights, err := KernelsFromRowMajor(cfg, weightAttr.Shape, weightAttr.Data)
	if err != nil {
		return nil, err
	}

	var bias []*tensor.Tensor[float32]
	if cfg.UseBias {
		biasAttr, err := op.Attr("bias")
		if err != nil {
			return nil, err
		}
		bias, err = BiasFromValues(cfg, biasAttr.Data)
		if err != nil {
			return nil, err
		}
	}

	return NewConvolutionLayer(cfg, weights, bias)
}

// ParseConvolutionConfig reads the hyperparameters of an nn.Conv2d description.
func ParseConvolutionConfig(op *manifest.Layer) (Config, error) {
	cfg := Config{Name: op.Name}
	var err error

	if cfg.InChannels, err = op.Int("in_channels"); err != nil {
		return cfg, err
	}
	if cfg.OutChannels, err = op.Int("out_channels"); err != nil {
		return cfg, err
	}
	if cfg.Groups, err = op.Int("groups"); err != nil {
		return cfg, err
	}
	if cfg.UseBias, err = op.Bool("bias"); err != nil {
		return cfg, err
	}

	pairs := []struct {
		name string
		h, w *int
	}{
		{"kernel_size", &cfg.KernelH, &cfg.KernelW},
		{"stride", &cfg.StrideH, &cfg.StrideW},
		{"padding", &cfg.PaddingH, &cfg.PaddingW},
		{"dilation", &cfg.DilationH, &cfg.DilationW},
	}
	for _, p := range pairs {
		vs, err := op.Ints(p.name, 2)
		if err != nil {
			return cfg, err
		}
		*p.h, *p.w = vs[0], vs[1]
	}

	if _, ok := op.Params["padding_mode"]; ok {
		mode, err := op.Str("padding_mode")
		if err != nil {
			return cfg, err
		}
		if mode != "zeros" {
			return cfg, fmt.Errorf("%w: %q", ErrUnsupportedPadding, mode)
		}
	}

	return cfg, cfg.Validate()
}

// KernelsFromRowMajor splits a row-major [out, in/groups, kh, kw] weight blob
// into one kernel tensor per output channel.
func KernelsFromRowMajor(cfg Config, shape []int, data []float32) ([]*tensor.Tensor[float32], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	want := []int{cfg.OutChannels, cfg.KernelChannels(), cfg.KernelH, cfg.KernelW}
	if len(shape) != 4 || shape[0] != want[0] || shape[1] != want[1] || shape[2] != want[2] || shape[3] != want[3] {
		return nil, fmt.Errorf("%w: weight shape %v, want %v", ErrInvalidConfig, shape, want)
	}
	kernelSize := want[1] * want[2] * want[3]
	if len(data) != kernelSize*want[0] {
		return nil, fmt.Errorf("%w: weight data has %d values, want %d", ErrInvalidConfig, len(data), kernelSize*want[0])
	}

	kernels := make([]*tensor.Tensor[float32], cfg.OutChannels)
	for k := range kernels {
		kernel := tensor.New[float32](want[1], want[2], want[3])
		kernel.FillValues(data[k*kernelSize:(k+1)*kernelSize], true)
		kernels[k] = kernel
	}
	return kernels, nil
}

// BiasFromValues wraps one bias value per output channel in a 1-element tensor.
func BiasFromValues(cfg Config, values []float32) ([]*tensor.Tensor[float32], error) {
	if len(values) != cfg.OutChannels {
		return nil, fmt.Errorf("%w: bias has %d values, want %d", ErrInvalidConfig, len(values), cfg.OutChannels)
	}
	bias := make([]*tensor.Tensor[float32], len(values))
	for k, v := range values {
		b := tensor.NewVector[float32](1)
		b.SetIndex(0, v)
		bias[k] = b
	}
	return bias, nil
}
