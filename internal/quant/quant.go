// Package quant implements the two vector quantizers vectorfs trains on a
// sample of embeddings: a scalar quantizer (SQ) and a product quantizer
// (PQ). Both refuse to encode until trained, matching the teacher's
// pattern of fatal-at-construction, safe-at-inference components.
package quant

import (
	"fmt"
	"math"

	"github.com/Aman-CERP/vectorfs/internal/verrors"
)

// ScalarQuantizer maps each dimension independently to a byte via a
// per-dimension min/max affine transform.
type ScalarQuantizer struct {
	dim     int
	mins    []float32
	maxs    []float32
	trained bool
}

// NewScalarQuantizer constructs an untrained quantizer for the given
// dimension.
func NewScalarQuantizer(dim int) *ScalarQuantizer {
	return &ScalarQuantizer{dim: dim}
}

// Train records per-dimension scale/offset from a sample of vectors.
func (q *ScalarQuantizer) Train(samples [][]float32) error {
	if len(samples) == 0 {
		return verrors.InvalidArgument("scalar quantizer training requires at least one sample")
	}
	mins := make([]float32, q.dim)
	maxs := make([]float32, q.dim)
	for i := range mins {
		mins[i] = float32(math.Inf(1))
		maxs[i] = float32(math.Inf(-1))
	}
	for _, v := range samples {
		if len(v) != q.dim {
			return verrors.InvalidArgument(fmt.Sprintf("sample dimension %d does not match quantizer dimension %d", len(v), q.dim))
		}
		for i, val := range v {
			if val < mins[i] {
				mins[i] = val
			}
			if val > maxs[i] {
				maxs[i] = val
			}
		}
	}
	q.mins = mins
	q.maxs = maxs
	q.trained = true
	return nil
}

// Quantize linearly maps v onto [0,255] per dimension, rounding to nearest
// with saturation.
func (q *ScalarQuantizer) Quantize(v []float32) ([]byte, error) {
	if !q.trained {
		return nil, verrors.Configuration("scalar quantizer not trained", nil)
	}
	if len(v) != q.dim {
		return nil, verrors.InvalidArgument(fmt.Sprintf("vector dimension %d does not match quantizer dimension %d", len(v), q.dim))
	}
	out := make([]byte, q.dim)
	for i, val := range v {
		out[i] = q.quantizeDim(i, val)
	}
	return out, nil
}

func (q *ScalarQuantizer) quantizeDim(i int, val float32) byte {
	span := q.maxs[i] - q.mins[i]
	if span == 0 {
		return 0
	}
	scaled := (val - q.mins[i]) / span * 255.0
	if scaled < 0 {
		return 0
	}
	if scaled > 255 {
		return 255
	}
	return byte(math.Round(float64(scaled)))
}

// Dequantize reconstructs a float32 vector from codes.
func (q *ScalarQuantizer) Dequantize(u []byte) ([]float32, error) {
	if !q.trained {
		return nil, verrors.Configuration("scalar quantizer not trained", nil)
	}
	if len(u) != q.dim {
		return nil, verrors.InvalidArgument(fmt.Sprintf("code length %d does not match quantizer dimension %d", len(u), q.dim))
	}
	out := make([]float32, q.dim)
	for i, b := range u {
		span := q.maxs[i] - q.mins[i]
		out[i] = q.mins[i] + float32(b)/255.0*span
	}
	return out, nil
}

// ApproxDistance reconstructs both codes and returns their Euclidean
// distance. Acceptable as a baseline (spec §9); not a tight bound.
func (q *ScalarQuantizer) ApproxDistance(u1, u2 []byte) (float32, error) {
	v1, err := q.Dequantize(u1)
	if err != nil {
		return 0, err
	}
	v2, err := q.Dequantize(u2)
	if err != nil {
		return 0, err
	}
	return euclidean(v1, v2), nil
}

// Dimensions returns the vector width the quantizer was constructed for.
func (q *ScalarQuantizer) Dimensions() int { return q.dim }

// Trained reports whether Train has been called successfully.
func (q *ScalarQuantizer) Trained() bool { return q.trained }

func euclidean(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}
