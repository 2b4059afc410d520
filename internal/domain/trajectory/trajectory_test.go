package trajectory

import (
	"math/rand"
	"testing"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detection(frame int, lx, ly, rx, ry float64) *entity.FrameDetection {
	return &entity.FrameDetection{
		FrameIndex: frame,
		Landmarks: map[entity.NamedLandmark]entity.LandmarkSample{
			entity.LeftHip:  {X: lx, Y: ly, Visibility: 0.9},
			entity.RightHip: {X: rx, Y: ry, Visibility: 0.9},
		},
	}
}

func pt(frame int, x, y float64) entity.TrajectoryPoint {
	return entity.TrajectoryPoint{FrameIndex: frame, X: x, Y: y}
}

func TestMidpoint(t *testing.T) {
	mid, ok := Midpoint(detection(0, 0.2, 0.4, 0.6, 0.8))
	require.True(t, ok)
	assert.InDelta(t, 0.4, mid.X, 1e-12)
	assert.InDelta(t, 0.6, mid.Y, 1e-12)

	d := detection(0, 0.2, 0.4, 0.6, 0.8)
	delete(d.Landmarks, entity.RightHip)
	_, ok = Midpoint(d)
	assert.False(t, ok)

	_, ok = Midpoint(nil)
	assert.False(t, ok)
}

func TestAggregatorKeepsGapsAndOrder(t *testing.T) {
	agg := NewAggregator()
	assert.True(t, agg.Add(detection(0, 0.1, 0.1, 0.3, 0.3)))
	assert.False(t, agg.Add(&entity.FrameDetection{FrameIndex: 1}))
	assert.True(t, agg.Add(detection(4, 0.5, 0.5, 0.5, 0.5)))
	assert.False(t, agg.Add(detection(4, 0.5, 0.5, 0.5, 0.5)), "duplicate index")
	assert.False(t, agg.Add(detection(2, 0.5, 0.5, 0.5, 0.5)), "out of order")

	points := agg.Points()
	require.Len(t, points, 2)
	assert.Equal(t, 0, points[0].FrameIndex)
	assert.Equal(t, 4, points[1].FrameIndex)

	points[0].X = 99
	assert.NotEqual(t, 99.0, agg.Points()[0].X)
}

func TestSmoothShortTrajectoryUnchanged(t *testing.T) {
	in := []entity.TrajectoryPoint{pt(0, 0.1, 0.9), pt(1, 0.9, 0.1), pt(2, 0.5, 0.5)}
	assert.Equal(t, in, Smooth(in, DefaultWindowSize))
}

func TestSmoothShrinkingWindow(t *testing.T) {
	in := []entity.TrajectoryPoint{
		pt(0, 0, 0), pt(1, 1, 1), pt(2, 2, 2), pt(3, 3, 3), pt(4, 4, 4), pt(6, 10, 10),
	}
	out := Smooth(in, 5)
	require.Len(t, out, len(in))

	// window [0,3)
	assert.InDelta(t, 1.0, out[0].X, 1e-12)
	// window [0,4)
	assert.InDelta(t, 1.5, out[1].X, 1e-12)
	// window [0,5)
	assert.InDelta(t, 2.0, out[2].Y, 1e-12)
	// window [1,6)
	assert.InDelta(t, 4.0, out[3].X, 1e-12)
	// window [3,6)
	assert.InDelta(t, 17.0/3.0, out[5].X, 1e-12)
	assert.Equal(t, 6, out[5].FrameIndex)
}

func TestSmoothPreservesLengthAndIndices(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := DefaultWindowSize; n < 60; n++ {
		in := make([]entity.TrajectoryPoint, n)
		frame := 0
		for i := range in {
			frame += 1 + rng.Intn(3)
			in[i] = entity.TrajectoryPoint{FrameIndex: frame, X: rng.Float64(), Y: rng.Float64()}
		}

		out := Smooth(in, DefaultWindowSize)
		require.Len(t, out, n)
		for i := range in {
			assert.Equal(t, in[i].FrameIndex, out[i].FrameIndex)
			assert.GreaterOrEqual(t, out[i].X, 0.0)
			assert.LessOrEqual(t, out[i].X, 1.0)
		}
		assert.Equal(t, out, Smooth(in, DefaultWindowSize), "smoothing is deterministic")
	}
}
