package face

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func unit(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func TestCosine(t *testing.T) {
	a := unit(4, 0)
	require.InDelta(t, 1.0, Cosine(a, a), 1e-9)
	require.InDelta(t, 0.0, Cosine(a, unit(4, 1)), 1e-9)
	require.Zero(t, Cosine(a, unit(3, 0)))
}

func TestCentroidSingleFrame(t *testing.T) {
	c, err := Centroid([]Frame{{Vector: []float32{3, 4}, Quality: 1}})
	require.NoError(t, err)
	// Renormalized to unit length.
	require.InDelta(t, 0.6, float64(c[0]), 1e-6)
	require.InDelta(t, 0.8, float64(c[1]), 1e-6)
}

func TestCentroidWeighting(t *testing.T) {
	// A heavily weighted frame dominates the centroid direction.
	c, err := Centroid([]Frame{
		{Vector: unit(2, 0), Quality: 9},
		{Vector: unit(2, 1), Quality: 1},
	})
	require.NoError(t, err)
	require.Greater(t, float64(c[0]), float64(c[1]))
	require.InDelta(t, 1.0, Cosine(c, c), 1e-6)
}

func TestCentroidTrimsOutlier(t *testing.T) {
	// Four near-identical frames and one pointing elsewhere. With five
	// frames the outlier falls below the 20th percentile and is dropped.
	frames := []Frame{
		{Vector: unit(3, 0), Quality: 1},
		{Vector: unit(3, 0), Quality: 1},
		{Vector: unit(3, 0), Quality: 1},
		{Vector: unit(3, 0), Quality: 1},
		{Vector: unit(3, 2), Quality: 1},
	}
	c, err := Centroid(frames)
	require.NoError(t, err)
	require.InDelta(t, 1.0, float64(c[0]), 1e-6)
	require.InDelta(t, 0.0, float64(c[2]), 1e-6)
}

func TestCentroidKeepsOutlierBelowFiveFrames(t *testing.T) {
	frames := []Frame{
		{Vector: unit(3, 0), Quality: 1},
		{Vector: unit(3, 0), Quality: 1},
		{Vector: unit(3, 2), Quality: 1},
	}
	c, err := Centroid(frames)
	require.NoError(t, err)
	// No trimming pass: the off-axis frame still contributes.
	require.Greater(t, float64(c[2]), 0.0)
}

func TestCentroidSkipsUnusableFrames(t *testing.T) {
	frames := []Frame{
		{Vector: nil, Quality: 1},
		{Vector: unit(3, 1), Quality: 0},
		{Vector: unit(4, 0), Quality: 1}, // dimension mismatch, dropped
	}
	c, err := Centroid(frames)
	require.NoError(t, err)
	require.Len(t, c, 3)
	require.InDelta(t, 1.0, float64(c[1]), 1e-6)

	_, err = Centroid(nil)
	require.ErrorIs(t, err, ErrNoUsableFrames)
}

func TestStubProviderDeterministic(t *testing.T) {
	p := StubProvider{Dim: 16}

	a, err := p.Embed(context.Background(), []byte("photo-bytes"))
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), []byte("photo-bytes"))
	require.NoError(t, err)
	require.Equal(t, a.Vector, b.Vector)
	require.InDelta(t, 1.0, Cosine(a.Vector, a.Vector), 1e-6)

	other, err := p.Embed(context.Background(), []byte("different"))
	require.NoError(t, err)
	require.Less(t, Cosine(a.Vector, other.Vector), 0.999)

	_, err = p.Embed(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoFaceDetected)
}
