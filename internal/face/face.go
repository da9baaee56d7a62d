// Package face turns recipient photos into comparable embeddings. The model
// itself lives behind a Provider; this package only does the vector math for
// multi-frame enrollment and lookup.
package face

import (
	"context"
	"errors"
	"math"
	"sort"
)

// MatchThreshold is the minimum cosine similarity for an identification hit.
const MatchThreshold = 0.35

var (
	ErrNoFaceDetected = errors.New("no face detected")
	ErrUnavailable    = errors.New("face model not available")
	ErrNoUsableFrames = errors.New("no usable frames")
)

// Frame is one embedded photo. Vector is L2-normalized by the provider;
// Quality weights the frame during enrollment (detector confidence, face
// size, sharpness folded into one score by the model service).
type Frame struct {
	Vector  []float32
	Quality float64
}

// Provider embeds a single image.
type Provider interface {
	Embed(ctx context.Context, image []byte) (Frame, error)
}

// Cosine returns the cosine similarity of two L2-normalized vectors.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Centroid folds enrollment frames into one representative embedding.
// Frames are quality-weighted; when five or more are present, the bottom
// 20% by similarity to the preliminary centroid are dropped as outliers,
// as long as at least three frames survive.
func Centroid(frames []Frame) ([]float32, error) {
	frames = usable(frames)
	if len(frames) == 0 {
		return nil, ErrNoUsableFrames
	}

	c := weightedMean(frames)

	if len(frames) >= 5 {
		sims := make([]float64, len(frames))
		for i, f := range frames {
			sims[i] = Cosine(f.Vector, c)
		}
		thresh := quantile(sims, 0.2)
		var kept []Frame
		for i, f := range frames {
			if sims[i] >= thresh {
				kept = append(kept, f)
			}
		}
		if len(kept) >= 3 {
			c = weightedMean(kept)
		}
	}
	return c, nil
}

func usable(frames []Frame) []Frame {
	var out []Frame
	var dim int
	for _, f := range frames {
		if len(f.Vector) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(f.Vector)
		}
		if len(f.Vector) != dim {
			continue
		}
		if f.Quality <= 0 {
			f.Quality = 1e-6
		}
		out = append(out, f)
	}
	return out
}

func weightedMean(frames []Frame) []float32 {
	var total float64
	for _, f := range frames {
		total += f.Quality
	}
	dim := len(frames[0].Vector)
	sum := make([]float64, dim)
	for _, f := range frames {
		w := f.Quality / total
		for i, v := range f.Vector {
			sum[i] += w * float64(v)
		}
	}
	return normalize(sum)
}

func normalize(v []float64) []float32 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm) + 1e-12
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}

// quantile returns the q-th quantile of values with linear interpolation
// between order statistics.
func quantile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
