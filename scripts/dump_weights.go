//go:build ignore

package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/23skdu/longbow-mosaic/internal/layer"
	"github.com/23skdu/longbow-mosaic/internal/manifest"
	"github.com/23skdu/longbow-mosaic/internal/weights"
)

// KernelDump holds the summary of a loaded kernel for verification
type KernelDump struct {
	Kernel   int       `json:"kernel"`
	Shape    []int     `json:"shape"`
	FirstFew []float32 `json:"first_few"`
	LastFew  []float32 `json:"last_few"`
	Sum      float32   `json:"sum"`
	Bias     *float32  `json:"bias,omitempty"`
}

func main() {
	layerPath := flag.String("layer", "conv.cbor", "Path to CBOR layer description")
	weightsPath := flag.String("weights", "", "Optional raw weights overriding the inline ones")
	flag.Parse()

	op, err := manifest.LoadLayer(*layerPath)
	if err != nil {
		log.Fatalf("Failed to load layer: %v", err)
	}
	l, err := layer.Create(op)
	if err != nil {
		log.Fatalf("Failed to create layer: %v", err)
	}
	conv, ok := l.(*layer.ConvolutionLayer)
	if !ok {
		log.Fatalf("Layer %s is not a convolution", op.Type)
	}
	if *weightsPath != "" {
		if err := weights.NewLoader(conv).LoadFromRawBinary(*weightsPath); err != nil {
			log.Fatalf("Failed to load weights: %v", err)
		}
	}

	dumps := []KernelDump{}
	for k, kernel := range conv.Weights() {
		data := kernel.Values(true)
		count := min(5, len(data))
		kd := KernelDump{
			Kernel:   k,
			Shape:    kernel.Shapes(),
			FirstFew: data[:count],
			LastFew:  data[len(data)-count:],
		}
		for _, v := range data {
			kd.Sum += v
		}
		if bias := conv.Bias(); bias != nil {
			b := bias[k].Index(0)
			kd.Bias = &b
		}
		dumps = append(dumps, kd)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dumps); err != nil {
		log.Fatal(err)
	}
}
