//go:build ignore

// gen_layer writes a randomly initialized nn.Conv2d description and a matching
// random input tensor for trying out cmd/mosaic.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/23skdu/longbow-mosaic/internal/layer"
	"github.com/23skdu/longbow-mosaic/internal/manifest"
	"github.com/23skdu/longbow-mosaic/internal/tensor"
)

func main() {
	inC := flag.Int("in", 3, "Input channels")
	outC := flag.Int("out", 8, "Output channels")
	kernel := flag.Int("kernel", 3, "Square kernel size")
	stride := flag.Int("stride", 1, "Stride")
	padding := flag.Int("padding", 1, "Zero padding")
	groups := flag.Int("groups", 1, "Groups")
	size := flag.Int("size", 32, "Square input size")
	layerOut := flag.String("layer-out", "conv.cbor", "Layer description output path")
	inputOut := flag.String("input-out", "input.cbor", "Input tensor output path")
	flag.Parse()

	weightShape := []int{*outC, *inC / *groups, *kernel, *kernel}
	w := tensor.NewVector[float32](manifest.Volume(weightShape))
	tensor.RandN(w, 0, 0.1)
	b := tensor.NewVector[float32](*outC)
	b.RandU(-0.1, 0.1)

	op := &manifest.Layer{
		Name: "conv",
		Type: layer.ConvolutionType,
		Params: map[string]manifest.Param{
			"in_channels":  manifest.IntParam(*inC),
			"out_channels": manifest.IntParam(*outC),
			"groups":       manifest.IntParam(*groups),
			"bias":         manifest.BoolParam(true),
			"kernel_size":  manifest.IntsParam(*kernel, *kernel),
			"stride":       manifest.IntsParam(*stride, *stride),
			"padding":      manifest.IntsParam(*padding, *padding),
			"dilation":     manifest.IntsParam(1, 1),
			"padding_mode": manifest.StringParam("zeros"),
		},
		Attrs: map[string]manifest.Attribute{
			"weight": {Shape: weightShape, Data: w.Raw()},
			"bias":   {Shape: []int{*outC}, Data: b.Raw()},
		},
	}
	if _, err := layer.ParseConvolutionConfig(op); err != nil {
		log.Fatalf("Invalid layer: %v", err)
	}

	in := tensor.New[float32](*inC, *size, *size)
	tensor.RandN(in, 0, 1)

	write(*layerOut, op)
	write(*inputOut, &manifest.Tensor{Shape: in.Shapes(), Data: in.Values(true)})
}

func write(path string, v any) {
	f, err := os.Create(path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := manifest.Encode(f, v); err != nil {
		log.Fatal(err)
	}
}
