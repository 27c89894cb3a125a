package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-mosaic/internal/layer"
	"github.com/23skdu/longbow-mosaic/internal/manifest"
	"github.com/23skdu/longbow-mosaic/internal/tensor"
	"github.com/23skdu/longbow-mosaic/internal/weights"
)

type runOptions struct {
	LayerPath   string
	WeightsPath string
	InputPath   string
	RandomDims  string
}

// run loads the layer and its input, runs one forward pass and writes the
// result to w as an Arrow IPC stream.
func run(ctx context.Context, opts runOptions, w io.Writer) error {
	op, err := manifest.LoadLayer(opts.LayerPath)
	if err != nil {
		return err
	}
	l, err := layer.Create(op)
	if err != nil {
		return err
	}
	conv, ok := l.(*layer.ConvolutionLayer)
	if !ok {
		return fmt.Errorf("layer %q of type %s is not a convolution", op.Name, op.Type)
	}

	if opts.WeightsPath != "" {
		if err := weights.NewLoader(conv).LoadFromRawBinary(opts.WeightsPath); err != nil {
			return err
		}
	}

	input, err := loadInput(opts)
	if err != nil {
		return err
	}

	output, err := forward(ctx, conv, input)
	if err != nil {
		return err
	}

	rec := buildRecord(memory.NewGoAllocator(), output)
	defer rec.Release()
	return writeArrowStream(w, rec)
}

func loadInput(opts runOptions) (*tensor.Tensor[float32], error) {
	if opts.RandomDims != "" {
		dims, err := parseDims(opts.RandomDims)
		if err != nil {
			return nil, err
		}
		t := tensor.NewFromShape[float32](dims)
		tensor.RandN(t, 0, 1)
		return t, nil
	}

	payload, err := manifest.LoadTensor(opts.InputPath)
	if err != nil {
		return nil, err
	}
	t := tensor.NewFromShape[float32](payload.Shape)
	t.FillValues(payload.Data, true)
	return t, nil
}

// forward checks the input against the layer before running it, so file
// mismatches surface as errors instead of panics.
func forward(ctx context.Context, conv *layer.ConvolutionLayer, input *tensor.Tensor[float32]) (*tensor.Tensor[float32], error) {
	cfg := conv.Config()
	if input.Channels() != cfg.InChannels {
		return nil, fmt.Errorf("input has %d channels, layer %q expects %d", input.Channels(), cfg.Name, cfg.InChannels)
	}
	spanH := input.Rows() + 2*cfg.PaddingH - cfg.DilationH*(cfg.KernelH-1) - 1
	spanW := input.Cols() + 2*cfg.PaddingW - cfg.DilationW*(cfg.KernelW-1) - 1
	if spanH < 0 || spanW < 0 {
		return nil, fmt.Errorf("input %dx%d is smaller than the dilated kernel of layer %q",
			input.Rows(), input.Cols(), cfg.Name)
	}

	outH, outW := conv.ComputeOutputSize(input.Rows(), input.Cols(), cfg.KernelH, cfg.KernelW)
	output := tensor.New[float32](cfg.OutChannels, outH, outW)

	start := time.Now()
	conv.Forward(ctx, []*tensor.Tensor[float32]{input}, []*tensor.Tensor[float32]{output})
	log.Info().
		Str("layer", cfg.Name).
		Ints("input", input.Shapes()).
		Ints("output", output.Shapes()).
		Dur("elapsed", time.Since(start)).
		Msg("Convolution complete")
	return output, nil
}

// parseDims parses a comma separated shape such as "3,32,32".
func parseDims(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) > 3 {
		return nil, fmt.Errorf("shape %q has more than 3 dims", s)
	}
	dims := make([]int, len(parts))
	for i, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("shape %q: %w", s, err)
		}
		if d < 1 {
			return nil, fmt.Errorf("shape %q: dims must be positive", s)
		}
		dims[i] = d
	}
	return dims, nil
}

// outputSchema is one row per output channel holding its plane row-major.
var outputSchema = arrow.NewSchema(
	[]arrow.Field{
		{Name: "channel", Type: arrow.PrimitiveTypes.Int32},
		{Name: "values", Type: arrow.ListOf(arrow.PrimitiveTypes.Float32)},
	},
	nil,
)

func buildRecord(pool memory.Allocator, t *tensor.Tensor[float32]) arrow.RecordBatch {
	channelBuilder := array.NewInt32Builder(pool)
	defer channelBuilder.Release()

	valuesBuilder := array.NewListBuilder(pool, arrow.PrimitiveTypes.Float32)
	defer valuesBuilder.Release()
	floatBuilder := valuesBuilder.ValueBuilder().(*array.Float32Builder)

	values := t.Values(true)
	plane := t.PlaneSize()
	for ch := 0; ch < t.Channels(); ch++ {
		channelBuilder.Append(int32(ch))
		valuesBuilder.Append(true)
		floatBuilder.AppendValues(values[ch*plane:(ch+1)*plane], nil)
	}

	channelArr := channelBuilder.NewArray()
	defer channelArr.Release()
	valuesArr := valuesBuilder.NewArray()
	defer valuesArr.Release()

	return array.NewRecordBatch(outputSchema, []arrow.Array{channelArr, valuesArr}, int64(t.Channels()))
}

func writeArrowStream(w io.Writer, rec arrow.RecordBatch) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()))
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}
