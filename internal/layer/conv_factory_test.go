package layer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-mosaic/internal/manifest"
	"github.com/23skdu/longbow-mosaic/internal/tensor"
)

func convOp() *manifest.Layer {
	return &manifest.Layer{
		Name: "conv1",
		Type: ConvolutionType,
		Params: map[string]manifest.Param{
			"in_channels":  manifest.IntParam(2),
			"out_channels": manifest.IntParam(2),
			"groups":       manifest.IntParam(1),
			"bias":         manifest.BoolParam(true),
			"kernel_size":  manifest.IntsParam(2, 2),
			"stride":       manifest.IntsParam(1, 1),
			"padding":      manifest.IntsParam(0, 0),
			"dilation":     manifest.IntsParam(1, 1),
			"padding_mode": manifest.StringParam("zeros"),
		},
		Attrs: map[string]manifest.Attribute{
			"weight": {
				Shape: []int{2, 2, 2, 2},
				Data: []float32{
					1, 0, 0, 0, 0, 0, 0, 0, // kernel 0 picks channel 0 top-left
					0, 0, 0, 0, 0, 0, 0, 1, // kernel 1 picks channel 1 bottom-right
				},
			},
			"bias": {Shape: []int{2}, Data: []float32{10, -10}},
		},
	}
}

func TestCreateConvolution(t *testing.T) {
	l, err := Create(convOp())
	require.NoError(t, err)
	require.Equal(t, "conv1", l.Name())

	conv, ok := l.(*ConvolutionLayer)
	require.True(t, ok)
	cfg := conv.Config()
	assert.Equal(t, 2, cfg.KernelH)
	assert.Equal(t, 2, cfg.KernelW)
	assert.True(t, cfg.UseBias)

	in := tensor.New[float32](2, 3, 3)
	in.FillValues([]float32{
		1, 2, 3, 4, 5, 6, 7, 8, 9,
		11, 12, 13, 14, 15, 16, 17, 18, 19,
	}, true)
	out := tensor.New[float32](2, 2, 2)
	l.Forward(context.Background(), []*tensor.Tensor[float32]{in}, []*tensor.Tensor[float32]{out})

	assert.Equal(t, []float32{
		11, 12, 14, 15,
		5, 6, 8, 9,
	}, out.Values(true))
}

func TestCreateConvolution_Errors(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		op := convOp()
		op.Type = "nn.Nope"
		_, err := Create(op)
		assert.ErrorIs(t, err, ErrUnknownLayer)
	})

	t.Run("missing param", func(t *testing.T) {
		op := convOp()
		delete(op.Params, "stride")
		_, err := Create(op)
		assert.ErrorIs(t, err, manifest.ErrParamMissing)
	})

	t.Run("wrong param type", func(t *testing.T) {
		op := convOp()
		op.Params["groups"] = manifest.BoolParam(true)
		_, err := Create(op)
		assert.ErrorIs(t, err, manifest.ErrParamType)
	})

	t.Run("padding mode", func(t *testing.T) {
		op := convOp()
		op.Params["padding_mode"] = manifest.StringParam("reflect")
		_, err := Create(op)
		assert.ErrorIs(t, err, ErrUnsupportedPadding)
	})

	t.Run("invalid groups", func(t *testing.T) {
		op := convOp()
		op.Params["groups"] = manifest.IntParam(3)
		_, err := Create(op)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("missing weight", func(t *testing.T) {
		op := convOp()
		delete(op.Attrs, "weight")
		_, err := Create(op)
		assert.ErrorIs(t, err, manifest.ErrAttrMissing)
	})

	t.Run("weight shape", func(t *testing.T) {
		op := convOp()
		op.Attrs["weight"] = manifest.Attribute{Shape: []int{2, 8}, Data: make([]float32, 16)}
		_, err := Create(op)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("missing bias", func(t *testing.T) {
		op := convOp()
		delete(op.Attrs, "bias")
		_, err := Create(op)
		assert.ErrorIs(t, err, manifest.ErrAttrMissing)
	})

	t.Run("bias ignored when disabled", func(t *testing.T) {
		op := convOp()
		op.Params["bias"] = manifest.BoolParam(false)
		delete(op.Attrs, "bias")
		l, err := Create(op)
		require.NoError(t, err)
		assert.Nil(t, l.(*ConvolutionLayer).Bias())
	})
}

func TestParseConvolutionConfig_NoPaddingMode(t *testing.T) {
	op := convOp()
	delete(op.Params, "padding_mode")
	cfg, err := ParseConvolutionConfig(op)
	require.NoError(t, err)
	assert.Equal(t, "conv1", cfg.Name)
	assert.Equal(t, 1, cfg.Groups)
}

func TestKernelsFromRowMajor(t *testing.T) {
	cfg := DefaultConfig(2, 1, 2, 3)
	data := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	kernels, err := KernelsFromRowMajor(cfg, []int{1, 2, 2, 3}, data)
	require.NoError(t, err)
	require.Len(t, kernels, 1)
	assert.Equal(t, []int{2, 2, 3}, kernels[0].Shapes())
	assert.Equal(t, float32(6), kernels[0].At(0, 1, 2))
	assert.Equal(t, float32(10), kernels[0].At(1, 1, 0))

	_, err = KernelsFromRowMajor(cfg, []int{1, 2, 2, 3}, data[:11])
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg.Groups = 0
	_, err = KernelsFromRowMajor(cfg, []int{1, 2, 2, 3}, data)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBiasFromValues(t *testing.T) {
	cfg := DefaultConfig(1, 3, 1, 1)
	bias, err := BiasFromValues(cfg, []float32{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, bias, 3)
	assert.Equal(t, float32(2), bias[1].Index(0))

	_, err = BiasFromValues(cfg, []float32{1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

var registerOnce sync.Once

func TestRegistry(t *testing.T) {
	assert.Contains(t, RegisteredTypes(), ConvolutionType)

	assert.Panics(t, func() { Register(ConvolutionType, CreateConvolution) })
	assert.Panics(t, func() { Register("test.Nil", nil) })

	registerOnce.Do(func() {
		Register("test.Identity", func(op *manifest.Layer) (Layer, error) {
			return &ConvolutionLayer{cfg: Config{Name: op.Name}}, nil
		})
	})
	l, err := Create(&manifest.Layer{Name: "id", Type: "test.Identity"})
	require.NoError(t, err)
	assert.Equal(t, "id", l.Name())

	types := RegisteredTypes()
	assert.IsIncreasing(t, types)
}
