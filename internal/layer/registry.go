package layer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/23skdu/longbow-mosaic/internal/manifest"
	"github.com/23skdu/longbow-mosaic/internal/tensor"
)

// ErrUnknownLayer is returned by Create for an unregistered operator type.
var ErrUnknownLayer = errors.New("unknown layer type")

// Layer is an operator that can run a forward pass over a batch.
type Layer interface {
	Name() string
	Forward(ctx context.Context, inputs, outputs []*tensor.Tensor[float32])
}

// Creator builds a Layer from its description.
type Creator func(op *manifest.Layer) (Layer, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Creator{}
)

// Register associates an operator type name with its creator. Registering
// the same name twice panics.
func Register(layerType string, creator Creator) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if creator == nil {
		panic("layer: Register creator is nil for " + layerType)
	}
	if _, dup := registry[layerType]; dup {
		panic("layer: Register called twice for " + layerType)
	}
	registry[layerType] = creator
}

// Create instantiates the layer described by op.
func Create(op *manifest.Layer) (Layer, error) {
	registryMu.RLock()
	creator, ok := registry[op.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, op.Type)
	}
	l, err := creator(op)
	if err != nil {
		return nil, fmt.Errorf("create %s layer %q: %w", op.Type, op.Name, err)
	}
	return l, nil
}

// RegisteredTypes lists the registered operator type names, sorted.
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
