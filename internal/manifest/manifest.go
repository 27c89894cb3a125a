// Package manifest defines the CBOR documents the CLI reads: layer descriptions
// (operator type, typed parameters, weight attributes) and input tensors.
// All tensor payloads are row-major.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

var (
	// ErrParamMissing is returned when a required parameter is absent.
	ErrParamMissing = errors.New("parameter missing")
	// ErrParamType is returned when a parameter holds a different kind of value.
	ErrParamType = errors.New("parameter has wrong type")
	// ErrAttrMissing is returned when a required weight attribute is absent.
	ErrAttrMissing = errors.New("attribute missing")
	// ErrShape is returned when a payload does not match its declared shape.
	ErrShape = errors.New("shape mismatch")
)

// Param is a single typed layer parameter. Exactly one field is set.
type Param struct {
	Int  *int    `cbor:"i,omitempty"`
	Ints []int   `cbor:"ia,omitempty"`
	Bool *bool   `cbor:"b,omitempty"`
	Str  *string `cbor:"s,omitempty"`
}

// IntParam returns a Param holding v.
func IntParam(v int) Param { return Param{Int: &v} }

// IntsParam returns a Param holding vs.
func IntsParam(vs ...int) Param { return Param{Ints: vs} }

// BoolParam returns a Param holding v.
func BoolParam(v bool) Param { return Param{Bool: &v} }

// StringParam returns a Param holding v.
func StringParam(v string) Param { return Param{Str: &v} }

// Attribute is a named weight blob with its logical shape.
type Attribute struct {
	Shape []int     `cbor:"shape"`
	Data  []float32 `cbor:"data"`
}

// Layer describes one operator instance.
type Layer struct {
	Name   string               `cbor:"name"`
	Type   string               `cbor:"type"`
	Params map[string]Param     `cbor:"params"`
	Attrs  map[string]Attribute `cbor:"attrs,omitempty"`
}

// Tensor is a row-major tensor payload with a 1 to 3 dim shape.
type Tensor struct {
	Shape []int     `cbor:"shape"`
	Data  []float32 `cbor:"data"`
}

func (l *Layer) param(name string) (Param, error) {
	p, ok := l.Params[name]
	if !ok {
		return Param{}, fmt.Errorf("%s: %q: %w", l.Name, name, ErrParamMissing)
	}
	return p, nil
}

// Int returns an integer parameter.
func (l *Layer) Int(name string) (int, error) {
	p, err := l.param(name)
	if err != nil {
		return 0, err
	}
	if p.Int == nil {
		return 0, fmt.Errorf("%s: %q is not an int: %w", l.Name, name, ErrParamType)
	}
	return *p.Int, nil
}

// Ints returns an integer-array parameter, checking its length when want > 0.
func (l *Layer) Ints(name string, want int) ([]int, error) {
	p, err := l.param(name)
	if err != nil {
		return nil, err
	}
	if p.Ints == nil {
		return nil, fmt.Errorf("%s: %q is not an int array: %w", l.Name, name, ErrParamType)
	}
	if want > 0 && len(p.Ints) != want {
		return nil, fmt.Errorf("%s: %q has %d values, want %d: %w", l.Name, name, len(p.Ints), want, ErrParamType)
	}
	return p.Ints, nil
}

// Bool returns a boolean parameter.
func (l *Layer) Bool(name string) (bool, error) {
	p, err := l.param(name)
	if err != nil {
		return false, err
	}
	if p.Bool == nil {
		return false, fmt.Errorf("%s: %q is not a bool: %w", l.Name, name, ErrParamType)
	}
	return *p.Bool, nil
}

// Str returns a string parameter.
func (l *Layer) Str(name string) (string, error) {
	p, err := l.param(name)
	if err != nil {
		return "", err
	}
	if p.Str == nil {
		return "", fmt.Errorf("%s: %q is not a string: %w", l.Name, name, ErrParamType)
	}
	return *p.Str, nil
}

// Attr returns a weight attribute after checking that its data matches its
// shape.
func (l *Layer) Attr(name string) (Attribute, error) {
	a, ok := l.Attrs[name]
	if !ok {
		return Attribute{}, fmt.Errorf("%s: %q: %w", l.Name, name, ErrAttrMissing)
	}
	if n := Volume(a.Shape); n != len(a.Data) {
		return Attribute{}, fmt.Errorf("%s: %q shape %v holds %d values, got %d: %w",
			l.Name, name, a.Shape, n, len(a.Data), ErrShape)
	}
	return a, nil
}

// Volume returns the product of dims, or 0 for an empty shape.
func Volume(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Validate checks that the payload has 1 to 3 positive dims matching its data.
func (t *Tensor) Validate() error {
	if len(t.Shape) == 0 || len(t.Shape) > 3 {
		return fmt.Errorf("tensor shape must have 1 to 3 dims, got %v: %w", t.Shape, ErrShape)
	}
	for _, d := range t.Shape {
		if d < 1 {
			return fmt.Errorf("tensor dims must be positive, got %v: %w", t.Shape, ErrShape)
		}
	}
	if n := Volume(t.Shape); n != len(t.Data) {
		return fmt.Errorf("tensor shape %v holds %d values, got %d: %w", t.Shape, n, len(t.Data), ErrShape)
	}
	return nil
}

// Decode reads one CBOR document into v.
func Decode(r io.Reader, v any) error {
	if err := cbor.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode cbor: %w", err)
	}
	return nil
}

// Encode writes v as one CBOR document.
func Encode(w io.Writer, v any) error {
	if err := cbor.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode cbor: %w", err)
	}
	return nil
}

// LoadLayer reads a layer description file.
func LoadLayer(path string) (*Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var l Layer
	if err := Decode(f, &l); err != nil {
		return nil, fmt.Errorf("load layer %s: %w", path, err)
	}
	if l.Type == "" {
		return nil, fmt.Errorf("load layer %s: missing type", path)
	}
	return &l, nil
}

// LoadTensor reads and validates a tensor payload file.
func LoadTensor(path string) (*Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var t Tensor
	if err := Decode(f, &t); err != nil {
		return nil, fmt.Errorf("load tensor %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("load tensor %s: %w", path, err)
	}
	return &t, nil
}
