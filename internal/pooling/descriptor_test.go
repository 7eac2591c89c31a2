package pooling

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-ml/kiln/internal/backend"
	"github.com/kiln-ml/kiln/internal/tensor"
)

func descFor(shape tensor.Shape, dtype tensor.DataType) tensor.Descriptor {
	d := tensor.Descriptor{
		Rank:   len(shape),
		DType:  dtype,
		Layout: tensor.LayoutCanonical,
		Device: tensor.CPU,
	}
	copy(d.Dims[:], shape)
	return d
}

func TestBuildDescriptor_PropagationKind(t *testing.T) {
	src := descFor(tensor.Shape{1, 2, 4, 4}, tensor.Float32)
	dst := descFor(tensor.Shape{1, 2, 2, 2}, tensor.Float32)

	tests := []struct {
		name     string
		poolType PoolType
		training bool
		wantKind backend.PropKind
	}{
		{"max training", Max, true, backend.Training},
		{"max inference", Max, false, backend.Inference},
		// Averaging needs no backward state, so even training requests
		// compile the cheaper inference plan.
		{"avg training", Avg, true, backend.Inference},
		{"avg inference", Avg, false, backend.Inference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := NewParams(tt.poolType, [2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0})
			desc, err := buildDescriptor(params, tt.training, src, dst)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, desc.Kind)
		})
	}
}

func TestBuildDescriptor_Algorithm(t *testing.T) {
	src := descFor(tensor.Shape{1, 2, 4, 4}, tensor.Float32)
	dst := descFor(tensor.Shape{1, 2, 2, 2}, tensor.Float32)

	params := NewParams(Max, [2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0})
	desc, err := buildDescriptor(params, false, src, dst)
	require.NoError(t, err)
	assert.Equal(t, backend.AlgMax, desc.Alg)

	params.Type = Avg
	desc, err = buildDescriptor(params, false, src, dst)
	require.NoError(t, err)
	assert.Equal(t, backend.AlgAvgIncludePadding, desc.Alg)

	params.CountIncludePad = false
	desc, err = buildDescriptor(params, false, src, dst)
	require.NoError(t, err)
	assert.Equal(t, backend.AlgAvgExcludePadding, desc.Alg)
}

func TestBuildDescriptor_BadRank(t *testing.T) {
	src := descFor(tensor.Shape{2, 4, 4}, tensor.Float32)
	dst := descFor(tensor.Shape{2, 2, 2}, tensor.Float32)

	params := NewParams(Max, [2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0})
	_, err := buildDescriptor(params, false, src, dst)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

// TestBuildDescriptor_NormalizesLayout checks that descriptors handed to the
// engine are always canonical, whatever layout the caller's tensors carry.
func TestBuildDescriptor_NormalizesLayout(t *testing.T) {
	src := descFor(tensor.Shape{1, 8, 4, 4}, tensor.Float32)
	src.Layout = tensor.LayoutBlocked8c
	dst := descFor(tensor.Shape{1, 8, 2, 2}, tensor.Float32)

	params := NewParams(Max, [2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0})
	desc, err := buildDescriptor(params, false, src, dst)
	require.NoError(t, err)
	assert.Equal(t, tensor.LayoutCanonical, desc.Src.Layout)
	assert.Equal(t, tensor.LayoutCanonical, desc.Dst.Layout)
}

func TestBuildDescriptor_FullConventionPadding(t *testing.T) {
	src := descFor(tensor.Shape{1, 2, 5, 5}, tensor.Float32)
	dst := descFor(tensor.Shape{1, 2, 3, 3}, tensor.Float32)

	params := NewParams(Max, [2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0})
	params.Convention = Full

	desc, err := buildDescriptor(params, false, src, dst)
	require.NoError(t, err)
	assert.Equal(t, [2]int{0, 0}, desc.PadLow)
	assert.Equal(t, [2]int{1, 1}, desc.PadHigh)
}
