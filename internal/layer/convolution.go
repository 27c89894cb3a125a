package layer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/23skdu/longbow-mosaic/internal/gemm"
	"github.com/23skdu/longbow-mosaic/internal/parallel"
	"github.com/23skdu/longbow-mosaic/internal/simd"
	"github.com/23skdu/longbow-mosaic/internal/tensor"
)

const convLayerType = "conv2d"

var tracer = otel.Tracer("mosaic-layer")

// ensure interface compliance
var _ Layer = (*ConvolutionLayer)(nil)

// ConvolutionLayer computes a grouped, strided, dilated 2D convolution with
// zero padding by lowering each group to im2col + GEMM.
//
// Kernels are (KernelChannels, KernelH, KernelW) tensors, one per output
// channel. Kernel k belongs to group k / (OutChannels/Groups) and reads input
// channels [g*KernelChannels, (g+1)*KernelChannels).
type ConvolutionLayer struct {
	cfg     Config
	weights []*tensor.Tensor[float32]
	bias    []*tensor.Tensor[float32]

	// kernelMatrices holds one flattened row vector per kernel, derived from
	// weights by InitIm2ColWeight.
	kernelMatrices [][]float32
}

// NewConvolutionLayer validates cfg against the supplied kernels and bias and
// derives the flattened weight rows. bias is ignored unless cfg.UseBias is
// set, in which case it must hold one non-empty tensor per kernel.
func NewConvolutionLayer(cfg Config, weights, bias []*tensor.Tensor[float32]) (*ConvolutionLayer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkKernels(cfg, weights); err != nil {
		return nil, err
	}
	if cfg.UseBias {
		if err := checkBias(cfg, bias); err != nil {
			return nil, err
		}
	}

	c := &ConvolutionLayer{cfg: cfg, weights: weights}
	if cfg.UseBias {
		c.bias = bias
	}
	c.InitIm2ColWeight()
	return c, nil
}

func checkKernels(cfg Config, weights []*tensor.Tensor[float32]) error {
	if len(weights) != cfg.OutChannels {
		return fmt.Errorf("%w: got %d kernels for %d out channels", ErrInvalidConfig, len(weights), cfg.OutChannels)
	}
	for k, w := range weights {
		if w == nil || w.Empty() {
			return fmt.Errorf("%w: kernel %d is empty", ErrInvalidConfig, k)
		}
		if w.Channels() != cfg.KernelChannels() || w.Rows() != cfg.KernelH || w.Cols() != cfg.KernelW {
			return fmt.Errorf("%w: kernel %d has shape %v, want [%d %d %d]",
				ErrInvalidConfig, k, w.Shapes(), cfg.KernelChannels(), cfg.KernelH, cfg.KernelW)
		}
	}
	return nil
}

func checkBias(cfg Config, bias []*tensor.Tensor[float32]) error {
	if len(bias) != cfg.OutChannels {
		return fmt.Errorf("%w: got %d bias tensors for %d out channels", ErrInvalidConfig, len(bias), cfg.OutChannels)
	}
	for k, b := range bias {
		if b == nil || b.Empty() {
			return fmt.Errorf("%w: bias %d is empty", ErrInvalidConfig, k)
		}
	}
	return nil
}

// Name returns the configured layer name.
func (c *ConvolutionLayer) Name() string {
	return c.cfg.Name
}

// Config returns the layer hyperparameters.
func (c *ConvolutionLayer) Config() Config {
	return c.cfg
}

// Weights returns the kernel tensors. After modifying them call SetWeights so
// the flattened rows are rebuilt.
func (c *ConvolutionLayer) Weights() []*tensor.Tensor[float32] {
	return c.weights
}

// Bias returns the bias tensors, nil when the layer has no bias.
func (c *ConvolutionLayer) Bias() []*tensor.Tensor[float32] {
	return c.bias
}

// SetWeights replaces the kernels and rebuilds the flattened rows.
func (c *ConvolutionLayer) SetWeights(weights []*tensor.Tensor[float32]) error {
	if err := checkKernels(c.cfg, weights); err != nil {
		return err
	}
	c.weights = weights
	c.InitIm2ColWeight()
	return nil
}

// SetBias replaces the bias tensors of a layer configured with UseBias.
func (c *ConvolutionLayer) SetBias(bias []*tensor.Tensor[float32]) error {
	if !c.cfg.UseBias {
		return fmt.Errorf("%w: layer %q has no bias", ErrInvalidConfig, c.cfg.Name)
	}
	if err := checkBias(c.cfg, bias); err != nil {
		return err
	}
	c.bias = bias
	return nil
}

// fatalf reports a violated precondition and panics with the diagnostic.
func fatalf(format string, args ...any) {
	log.Panic().Str("component", "conv").Msgf(format, args...)
}

// InitIm2ColWeight flattens every kernel into one row vector of length
// channels*rows*cols. Each channel plane is copied whole, in its column-major
// order, so the row lines up with the im2col matrix rows.
func (c *ConvolutionLayer) InitIm2ColWeight() {
	kernelCount := len(c.weights)
	if kernelCount == 0 {
		fatalf("InitIm2ColWeight: kernel count must be greater than zero")
	}
	kernelH := c.weights[0].Rows()
	kernelW := c.weights[0].Cols()
	kernelC := c.weights[0].Channels()
	rowLen := kernelH * kernelW

	for k, kernel := range c.weights {
		if kernel.Rows() != kernelH || kernel.Cols() != kernelW || kernel.Channels() != kernelC {
			fatalf("InitIm2ColWeight: kernel %d has shape %v, kernel 0 has [%d %d %d]",
				k, kernel.Shapes(), kernelC, kernelH, kernelW)
		}
	}

	groups := c.cfg.Groups
	if kernelCount%groups != 0 {
		fatalf("InitIm2ColWeight: kernel count %d is not divisible by groups %d", kernelCount, groups)
	}

	kernelMatrices := make([][]float32, kernelCount)
	for k, kernel := range c.weights {
		row := make([]float32, rowLen*kernelC)
		for ic := 0; ic < kernelC; ic++ {
			copy(row[ic*rowLen:(ic+1)*rowLen], kernel.MatrixRaw(ic))
		}
		kernelMatrices[k] = row
	}

	c.kernelMatrices = kernelMatrices
}

// ComputeOutputSize returns the output height and width for an input of
// inputH × inputW and a kernelH × kernelW kernel:
// (input + 2*padding - dilation*(kernel-1) - 1) / stride + 1 per axis.
func (c *ConvolutionLayer) ComputeOutputSize(inputH, inputW, kernelH, kernelW int) (int, int) {
	if kernelH <= 0 || kernelW <= 0 {
		fatalf("ComputeOutputSize: kernel size must be greater than zero, got %dx%d", kernelH, kernelW)
	}
	spanH := inputH + 2*c.cfg.PaddingH - c.cfg.DilationH*(kernelH-1) - 1
	spanW := inputW + 2*c.cfg.PaddingW - c.cfg.DilationW*(kernelW-1) - 1
	if spanH < 0 || spanW < 0 {
		fatalf("ComputeOutputSize: dilated kernel %dx%d does not fit padded input %dx%d",
			kernelH, kernelW, inputH+2*c.cfg.PaddingH, inputW+2*c.cfg.PaddingW)
	}
	return spanH/c.cfg.StrideH + 1, spanW/c.cfg.StrideW + 1
}

// ConvIm2Col lowers the input channels of one group into a
// (channelsPerGroup*kernelH*kernelW) × (outputH*outputW) matrix. Column j is
// output location (j % outputH, j / outputH): output height advances fastest.
// Within a column the values run per input channel, per kernel column, per
// kernel row, which matches the flattened kernel rows.
//
// The matrix is stored column-major and returned as its row-major
// (outputH*outputW) × K view for the GEMM. The backing buffer comes from a
// pool; ComputeOutput returns it.
func (c *ConvolutionLayer) ConvIm2Col(input *tensor.Tensor[float32], kernelH, kernelW, inputH, inputW,
	channelsPerGroup, outputH, outputW, group int) blas32.General {
	if input == nil || input.Empty() {
		fatalf("ConvIm2Col: input tensor is empty")
	}
	if input.Rows() != inputH || input.Cols() != inputW {
		fatalf("ConvIm2Col: input is %dx%d, expected %dx%d", input.Rows(), input.Cols(), inputH, inputW)
	}
	if (group+1)*channelsPerGroup > input.Channels() {
		fatalf("ConvIm2Col: group %d needs channels [%d, %d), input has %d",
			group, group*channelsPerGroup, (group+1)*channelsPerGroup, input.Channels())
	}

	rowLen := kernelH * kernelW
	colLen := outputH * outputW
	k := channelsPerGroup * rowLen
	buf := colBuffers.get(k * colLen)

	strideH, strideW := c.cfg.StrideH, c.cfg.StrideW
	padH, padW := c.cfg.PaddingH, c.cfg.PaddingW
	dilH, dilW := c.cfg.DilationH, c.cfg.DilationW

	parallel.For(channelsPerGroup, func(ic int) {
		plane := input.MatrixRaw(ic + group*channelsPerGroup)
		channelRow := ic * rowLen
		currentCol := 0
		for w, iw := 0, 0; w < outputW; w, iw = w+1, iw+strideW {
			for r, ih := 0, 0; r < outputH; r, ih = r+1, ih+strideH {
				dst := buf[currentCol*k+channelRow : currentCol*k+channelRow+rowLen]
				currentCol++
				i := 0
				for kw := 0; kw < kernelW*dilW; kw += dilW {
					x := iw + kw - padW
					for kh := 0; kh < kernelH*dilH; kh += dilH {
						y := ih + kh - padH
						if x >= 0 && x < inputW && y >= 0 && y < inputH {
							dst[i] = plane[x*inputH+y]
						} else {
							// only zero padding is supported
							dst[i] = 0
						}
						i++
					}
				}
			}
		}
	})

	return gemm.ColMajor(k, colLen, buf)
}

// ConvGemmBias multiplies the flattened row of kernel
// group*kernelCountGroup+kernelIndex by the im2col matrix and writes the
// 1 × (outputH*outputW) result straight into that kernel's output channel
// plane, then adds its bias.
func (c *ConvolutionLayer) ConvGemmBias(inputMatrix blas32.General, output *tensor.Tensor[float32],
	group, kernelIndex, kernelCountGroup, outputH, outputW int) {
	if inputMatrix.Rows == 0 || inputMatrix.Cols == 0 {
		fatalf("ConvGemmBias: im2col matrix is empty")
	}
	if output == nil || output.Empty() {
		fatalf("ConvGemmBias: output tensor is empty")
	}
	if output.Rows() != outputH || output.Cols() != outputW {
		fatalf("ConvGemmBias: output plane is %dx%d, expected %dx%d",
			output.Rows(), output.Cols(), outputH, outputW)
	}

	kernelIndex += group * kernelCountGroup
	if kernelIndex >= len(c.kernelMatrices) {
		fatalf("ConvGemmBias: kernel index %d out of bound for %d kernels", kernelIndex, len(c.kernelMatrices))
	}

	plane := output.MatrixRaw(kernelIndex)
	gemm.RowVecMat(plane, c.kernelMatrices[kernelIndex], inputMatrix)
	c.AddBias(plane, kernelIndex)
}

// AddBias adds the bias of kernel kernelIndex to every element of plane. It
// is a no-op for layers without bias.
func (c *ConvolutionLayer) AddBias(plane []float32, kernelIndex int) {
	if !c.cfg.UseBias {
		return
	}
	if kernelIndex < 0 || kernelIndex >= len(c.bias) {
		fatalf("AddBias: kernel index %d out of bound for %d bias tensors", kernelIndex, len(c.bias))
	}
	simd.AddScalar(plane, c.bias[kernelIndex].Index(0))
}

// ComputeOutput runs one group: the im2col matrix is built once, then every
// kernel of the group is multiplied in parallel. Each kernel writes its own
// output plane.
func (c *ConvolutionLayer) ComputeOutput(input, output *tensor.Tensor[float32], kernelH, kernelW,
	kernelCountGroup, inputH, inputW, channelsPerGroup, outputH, outputW, group int) {
	start := time.Now()
	inputMatrix := c.ConvIm2Col(input, kernelH, kernelW, inputH, inputW, channelsPerGroup, outputH, outputW, group)
	defer colBuffers.put(inputMatrix.Data)
	LayerDuration.WithLabelValues(convLayerType, "im2col").Observe(time.Since(start).Seconds())

	start = time.Now()
	parallel.For(kernelCountGroup, func(k int) {
		c.ConvGemmBias(inputMatrix, output, group, k, kernelCountGroup, outputH, outputW)
	})
	LayerDuration.WithLabelValues(convLayerType, "gemm").Observe(time.Since(start).Seconds())
}

// Forward convolves every input into the output at the same index. Outputs
// must be pre-allocated with shape (OutChannels, outH, outW) as given by
// ComputeOutputSize; they are written in place and never resized.
func (c *ConvolutionLayer) Forward(ctx context.Context, inputs, outputs []*tensor.Tensor[float32]) {
	_, span := tracer.Start(ctx, "ConvolutionLayer.Forward", trace.WithAttributes(
		attribute.String("layer", c.cfg.Name),
		attribute.Int("batch", len(inputs)),
		attribute.Int("groups", c.cfg.Groups),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		LayerDuration.WithLabelValues(convLayerType, "forward").Observe(time.Since(start).Seconds())
	}()

	if len(inputs) == 0 {
		fatalf("Forward: %s: input batch is empty", c.cfg.Name)
	}
	if len(inputs) != len(outputs) {
		fatalf("Forward: %s: %d inputs but %d outputs", c.cfg.Name, len(inputs), len(outputs))
	}
	if len(c.kernelMatrices) != len(c.weights) {
		fatalf("Forward: %s: flattened weights are not initialized", c.cfg.Name)
	}

	kernel := c.weights[0]
	kernelH, kernelW, kernelC := kernel.Rows(), kernel.Cols(), kernel.Channels()
	kernelCount := len(c.weights)
	groups := c.cfg.Groups
	kernelCountGroup := kernelCount / groups

	for i, input := range inputs {
		if input == nil || input.Empty() {
			fatalf("Forward: %s: input %d is empty", c.cfg.Name, i)
		}
		inputC, inputH, inputW := input.Channels(), input.Rows(), input.Cols()
		if inputC != kernelC*groups {
			fatalf("Forward: %s: input %d has %d channels, expected %d (kernel channels %d x groups %d)",
				c.cfg.Name, i, inputC, kernelC*groups, kernelC, groups)
		}

		outputH, outputW := c.ComputeOutputSize(inputH, inputW, kernelH, kernelW)
		output := outputs[i]
		if output == nil || output.Empty() {
			fatalf("Forward: %s: output %d is empty", c.cfg.Name, i)
		}
		if output.Channels() != kernelCount || output.Rows() != outputH || output.Cols() != outputW {
			fatalf("Forward: %s: output %d has shape %v, expected [%d %d %d]",
				c.cfg.Name, i, output.Shapes(), kernelCount, outputH, outputW)
		}

		for g := 0; g < groups; g++ {
			c.ComputeOutput(input, output, kernelH, kernelW, kernelCountGroup,
				inputH, inputW, kernelC, outputH, outputW, g)
		}
	}

	forwardTotal.WithLabelValues(convLayerType).Inc()
	log.Debug().
		Str("layer", c.cfg.Name).
		Int("batch", len(inputs)).
		Dur("elapsed", time.Since(start)).
		Msg("Convolution forward complete")
}
