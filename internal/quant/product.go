package quant

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/Aman-CERP/vectorfs/internal/verrors"
)

const (
	// DefaultSubspaces is the default number of PQ subspaces (M).
	DefaultSubspaces = 8
	// DefaultCentroids is the default per-subspace codebook size (k).
	DefaultCentroids = 256
	// MaxKMeansIterations bounds k-means training per subspace.
	MaxKMeansIterations = 100
	// ConvergenceThreshold stops k-means early when centroid shift drops
	// below this value.
	ConvergenceThreshold = 1e-6
)

// ProductQuantizer partitions a vector into M equal subvectors and
// clusters each subspace independently into k centroids. There is no
// teacher equivalent to ground this on — the teacher never trains
// codebooks — so the k-means loop below is built directly from spec.md
// §4.2's algorithm description.
type ProductQuantizer struct {
	dim        int
	subspaces  int
	centroids  int
	subDim     int
	codebooks  [][][]float32 // [subspace][centroid][subDim]
	trained    bool
	randSource *rand.Rand
}

// NewProductQuantizer constructs an untrained PQ. It fails construction
// if dim is not evenly divisible by subspaces.
func NewProductQuantizer(dim, subspaces, centroids int) (*ProductQuantizer, error) {
	if subspaces <= 0 {
		subspaces = DefaultSubspaces
	}
	if centroids <= 0 {
		centroids = DefaultCentroids
	}
	if dim%subspaces != 0 {
		return nil, verrors.InvalidArgument(fmt.Sprintf("dimension %d not divisible by subspace count %d", dim, subspaces))
	}
	return &ProductQuantizer{
		dim:        dim,
		subspaces:  subspaces,
		centroids:  centroids,
		subDim:     dim / subspaces,
		randSource: rand.New(rand.NewSource(1)),
	}, nil
}

// Train clusters each subspace of samples independently via k-means.
// Training on fewer than k vectors picks random samples with replacement
// to seed the codebook.
func (q *ProductQuantizer) Train(samples [][]float32) error {
	if len(samples) == 0 {
		return verrors.InvalidArgument("product quantizer training requires at least one sample")
	}
	for _, v := range samples {
		if len(v) != q.dim {
			return verrors.InvalidArgument(fmt.Sprintf("sample dimension %d does not match quantizer dimension %d", len(v), q.dim))
		}
	}

	codebooks := make([][][]float32, q.subspaces)
	for s := 0; s < q.subspaces; s++ {
		sub := make([][]float32, len(samples))
		for i, v := range samples {
			sub[i] = v[s*q.subDim : (s+1)*q.subDim]
		}
		codebooks[s] = q.trainSubspace(sub)
	}
	q.codebooks = codebooks
	q.trained = true
	return nil
}

// trainSubspace runs Lloyd's k-means on subvectors, seeding centroids by
// sampling with replacement when fewer samples than centroids exist.
func (q *ProductQuantizer) trainSubspace(sub [][]float32) [][]float32 {
	centroids := make([][]float32, q.centroids)
	for c := 0; c < q.centroids; c++ {
		idx := q.randSource.Intn(len(sub))
		centroids[c] = append([]float32(nil), sub[idx]...)
	}

	assignments := make([]int, len(sub))
	for iter := 0; iter < MaxKMeansIterations; iter++ {
		for i, v := range sub {
			assignments[i] = nearestCentroid(v, centroids)
		}

		newCentroids := make([][]float32, q.centroids)
		counts := make([]int, q.centroids)
		for c := range newCentroids {
			newCentroids[c] = make([]float32, q.subDim)
		}
		for i, v := range sub {
			c := assignments[i]
			counts[c]++
			for d, val := range v {
				newCentroids[c][d] += val
			}
		}
		var maxShift float64
		for c := range newCentroids {
			if counts[c] == 0 {
				newCentroids[c] = centroids[c]
				continue
			}
			for d := range newCentroids[c] {
				newCentroids[c][d] /= float32(counts[c])
			}
			maxShift = math.Max(maxShift, float64(euclidean(newCentroids[c], centroids[c])))
		}
		centroids = newCentroids
		if maxShift < ConvergenceThreshold {
			break
		}
	}
	return centroids
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best := 0
	bestDist := euclidean(v, centroids[0])
	for c := 1; c < len(centroids); c++ {
		d := euclidean(v, centroids[c])
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

// Encode returns the nearest-centroid index per subspace as a u8[M] code.
func (q *ProductQuantizer) Encode(v []float32) ([]byte, error) {
	if !q.trained {
		return nil, verrors.Configuration("product quantizer not trained", nil)
	}
	if len(v) != q.dim {
		return nil, verrors.InvalidArgument(fmt.Sprintf("vector dimension %d does not match quantizer dimension %d", len(v), q.dim))
	}
	code := make([]byte, q.subspaces)
	for s := 0; s < q.subspaces; s++ {
		sub := v[s*q.subDim : (s+1)*q.subDim]
		code[s] = byte(nearestCentroid(sub, q.codebooks[s]))
	}
	return code, nil
}

// Decode concatenates the centroid for each subspace's code.
func (q *ProductQuantizer) Decode(code []byte) ([]float32, error) {
	if !q.trained {
		return nil, verrors.Configuration("product quantizer not trained", nil)
	}
	if len(code) != q.subspaces {
		return nil, verrors.InvalidArgument(fmt.Sprintf("code length %d does not match subspace count %d", len(code), q.subspaces))
	}
	out := make([]float32, 0, q.dim)
	for s, c := range code {
		out = append(out, q.codebooks[s][int(c)]...)
	}
	return out, nil
}

// QueryTable precomputes, for a query vector, the distance from each
// subspace of the query to every centroid in that subspace's codebook
// (dim × k floats, here [subspace][centroid]).
type QueryTable struct {
	table [][]float32
}

// PrecomputeQueryTable builds the asymmetric-distance table for query v.
func (q *ProductQuantizer) PrecomputeQueryTable(v []float32) (*QueryTable, error) {
	if !q.trained {
		return nil, verrors.Configuration("product quantizer not trained", nil)
	}
	if len(v) != q.dim {
		return nil, verrors.InvalidArgument(fmt.Sprintf("vector dimension %d does not match quantizer dimension %d", len(v), q.dim))
	}
	table := make([][]float32, q.subspaces)
	for s := 0; s < q.subspaces; s++ {
		sub := v[s*q.subDim : (s+1)*q.subDim]
		row := make([]float32, q.centroids)
		for c := 0; c < q.centroids; c++ {
			d := euclidean(sub, q.codebooks[s][c])
			row[c] = d * d
		}
		table[s] = row
	}
	return &QueryTable{table: table}, nil
}

// AsymmetricDistance returns sqrt(Σ table[s][code[s]]) for a PQ code,
// never reinterpreting the code bytes as floats (spec.md §9 open question
// 2: the quantized search path must always go through this function).
func (t *QueryTable) AsymmetricDistance(code []byte) (float32, error) {
	if len(code) != len(t.table) {
		return 0, verrors.InvalidArgument(fmt.Sprintf("code length %d does not match table subspace count %d", len(code), len(t.table)))
	}
	var sum float64
	for s, c := range code {
		sum += float64(t.table[s][c])
	}
	return float32(math.Sqrt(sum)), nil
}

// Dimensions returns the vector width the quantizer was constructed for.
func (q *ProductQuantizer) Dimensions() int { return q.dim }

// Subspaces returns M.
func (q *ProductQuantizer) Subspaces() int { return q.subspaces }

// Trained reports whether Train has been called successfully.
func (q *ProductQuantizer) Trained() bool { return q.trained }
