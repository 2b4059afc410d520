package trajectory

import (
	"github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"
	"gonum.org/v1/gonum/stat"
)

const DefaultWindowSize = 5

// Smooth applies a centered moving average of windowSize points. The window
// shrinks at the ends of the sequence instead of padding. Frame indices and
// length are preserved; trajectories shorter than the window are returned as is.
func Smooth(points []entity.TrajectoryPoint, windowSize int) []entity.TrajectoryPoint {
	if windowSize < 1 || len(points) < windowSize {
		return points
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}

	half := windowSize / 2
	out := make([]entity.TrajectoryPoint, len(points))
	for i, p := range points {
		start := max(0, i-half)
		end := min(len(points), i+half+1)
		out[i] = entity.TrajectoryPoint{
			FrameIndex: p.FrameIndex,
			X:          stat.Mean(xs[start:end], nil),
			Y:          stat.Mean(ys[start:end], nil),
		}
	}
	return out
}
