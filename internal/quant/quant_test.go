package quant

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomVectors(n, dim int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for d := range v {
			v[d] = float32(r.Float64()*2 - 1)
		}
		out[i] = v
	}
	return out
}

func TestScalarQuantizer_RoundTrip_WithinTolerance(t *testing.T) {
	const dim = 16
	samples := randomVectors(200, dim, 1)

	q := NewScalarQuantizer(dim)
	require.NoError(t, q.Train(samples))

	mins := make([]float32, dim)
	maxs := make([]float32, dim)
	for i := range mins {
		mins[i] = float32(math.Inf(1))
		maxs[i] = float32(math.Inf(-1))
	}
	for _, v := range samples {
		for i, val := range v {
			if val < mins[i] {
				mins[i] = val
			}
			if val > maxs[i] {
				maxs[i] = val
			}
		}
	}

	for _, v := range samples {
		code, err := q.Quantize(v)
		require.NoError(t, err)
		recon, err := q.Dequantize(code)
		require.NoError(t, err)
		for i := range v {
			tolerance := (maxs[i]-mins[i])/255.0 + 1e-4
			diff := math.Abs(float64(recon[i] - v[i]))
			assert.LessOrEqualf(t, diff, float64(tolerance), "dim %d: recon=%v orig=%v", i, recon[i], v[i])
		}
	}
}

func TestScalarQuantizer_Quantize_RefusesUntrained(t *testing.T) {
	q := NewScalarQuantizer(4)
	_, err := q.Quantize([]float32{1, 2, 3, 4})
	assert.Error(t, err)
}

func TestProductQuantizer_ConstructionFailsOnIndivisibleDimension(t *testing.T) {
	_, err := NewProductQuantizer(10, 8, 16)
	assert.Error(t, err)
}

func TestProductQuantizer_AsymmetricDistance_NearExactForQueryEqualsMember(t *testing.T) {
	const dim = 16
	samples := randomVectors(300, dim, 2)

	q, err := NewProductQuantizer(dim, 4, 32)
	require.NoError(t, err)
	require.NoError(t, q.Train(samples))

	v := samples[0]
	code, err := q.Encode(v)
	require.NoError(t, err)
	decoded, err := q.Decode(code)
	require.NoError(t, err)

	table, err := q.PrecomputeQueryTable(v)
	require.NoError(t, err)
	asym, err := table.AsymmetricDistance(code)
	require.NoError(t, err)

	exact := euclidean(v, decoded)
	if exact == 0 {
		assert.InDelta(t, 0, asym, 1e-4)
		return
	}
	ratio := math.Abs(float64(asym-exact)) / float64(exact)
	assert.LessOrEqualf(t, ratio, 0.01, "asym=%v exact=%v", asym, exact)
}

func TestProductQuantizer_Encode_RefusesUntrained(t *testing.T) {
	q, err := NewProductQuantizer(8, 2, 4)
	require.NoError(t, err)
	_, err = q.Encode(make([]float32, 8))
	assert.Error(t, err)
}
