package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayer() *Layer {
	return &Layer{
		Name: "conv1",
		Type: "nn.Conv2d",
		Params: map[string]Param{
			"groups":       IntParam(2),
			"kernel_size":  IntsParam(3, 3),
			"bias":         BoolParam(true),
			"padding_mode": StringParam("zeros"),
		},
		Attrs: map[string]Attribute{
			"bias": {Shape: []int{2}, Data: []float32{0.5, -0.5}},
			"bad":  {Shape: []int{3}, Data: []float32{1}},
		},
	}
}

func TestLayer_Params(t *testing.T) {
	l := testLayer()

	g, err := l.Int("groups")
	require.NoError(t, err)
	assert.Equal(t, 2, g)

	ks, err := l.Ints("kernel_size", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3}, ks)

	b, err := l.Bool("bias")
	require.NoError(t, err)
	assert.True(t, b)

	mode, err := l.Str("padding_mode")
	require.NoError(t, err)
	assert.Equal(t, "zeros", mode)

	_, err = l.Int("stride")
	assert.ErrorIs(t, err, ErrParamMissing)

	_, err = l.Int("kernel_size")
	assert.ErrorIs(t, err, ErrParamType)

	_, err = l.Ints("kernel_size", 3)
	assert.ErrorIs(t, err, ErrParamType)

	_, err = l.Bool("groups")
	assert.ErrorIs(t, err, ErrParamType)
}

func TestLayer_Attr(t *testing.T) {
	l := testLayer()

	a, err := l.Attr("bias")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.5}, a.Data)

	_, err = l.Attr("weight")
	assert.ErrorIs(t, err, ErrAttrMissing)

	_, err = l.Attr("bad")
	assert.ErrorIs(t, err, ErrShape)
}

func TestEncodeDecode_Layer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testLayer()))

	var got Layer
	require.NoError(t, Decode(&buf, &got))
	assert.Equal(t, "conv1", got.Name)
	g, err := got.Int("groups")
	require.NoError(t, err)
	assert.Equal(t, 2, g)
	assert.Equal(t, []float32{0.5, -0.5}, got.Attrs["bias"].Data)
}

func TestTensor_Validate(t *testing.T) {
	assert.NoError(t, (&Tensor{Shape: []int{2, 3}, Data: make([]float32, 6)}).Validate())
	assert.ErrorIs(t, (&Tensor{Shape: nil}).Validate(), ErrShape)
	assert.ErrorIs(t, (&Tensor{Shape: []int{1, 1, 1, 1}, Data: make([]float32, 1)}).Validate(), ErrShape)
	assert.ErrorIs(t, (&Tensor{Shape: []int{2, 0}}).Validate(), ErrShape)
	assert.ErrorIs(t, (&Tensor{Shape: []int{2, 2}, Data: make([]float32, 3)}).Validate(), ErrShape)
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()

	layerPath := filepath.Join(dir, "layer.cbor")
	f, err := os.Create(layerPath)
	require.NoError(t, err)
	require.NoError(t, Encode(f, testLayer()))
	require.NoError(t, f.Close())

	l, err := LoadLayer(layerPath)
	require.NoError(t, err)
	assert.Equal(t, "nn.Conv2d", l.Type)

	tensorPath := filepath.Join(dir, "input.cbor")
	f, err = os.Create(tensorPath)
	require.NoError(t, err)
	require.NoError(t, Encode(f, &Tensor{Shape: []int{1, 2, 2}, Data: []float32{1, 2, 3, 4}}))
	require.NoError(t, f.Close())

	in, err := LoadTensor(tensorPath)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2}, in.Shape)

	_, err = LoadLayer(filepath.Join(dir, "missing.cbor"))
	assert.Error(t, err)
}
