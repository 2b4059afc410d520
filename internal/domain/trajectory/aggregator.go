// Package trajectory reduces per-frame pose detections to a smoothed hip path.
package trajectory

import "github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"

// Midpoint returns the mean of both hip landmarks, or false when either is missing.
func Midpoint(d *entity.FrameDetection) (entity.Point, bool) {
	if d == nil {
		return entity.Point{}, false
	}
	left, ok := d.Landmarks[entity.LeftHip]
	if !ok {
		return entity.Point{}, false
	}
	right, ok := d.Landmarks[entity.RightHip]
	if !ok {
		return entity.Point{}, false
	}
	return entity.Point{
		X: (left.X + right.X) / 2,
		Y: (left.Y + right.Y) / 2,
	}, true
}

// Aggregator builds an append-only trajectory ordered by frame index. It is
// owned by a single pipeline run and is not safe for concurrent use.
type Aggregator struct {
	points []entity.TrajectoryPoint
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add appends the hip midpoint of d. Frames without a midpoint, and frames
// that do not advance the frame index, are left out and reported as false.
func (a *Aggregator) Add(d *entity.FrameDetection) bool {
	mid, ok := Midpoint(d)
	if !ok {
		return false
	}
	if n := len(a.points); n > 0 && d.FrameIndex <= a.points[n-1].FrameIndex {
		return false
	}
	a.points = append(a.points, entity.TrajectoryPoint{
		FrameIndex: d.FrameIndex,
		X:          mid.X,
		Y:          mid.Y,
	})
	return true
}

func (a *Aggregator) Len() int {
	return len(a.points)
}

// Points returns a copy of the trajectory collected so far.
func (a *Aggregator) Points() []entity.TrajectoryPoint {
	out := make([]entity.TrajectoryPoint, len(a.points))
	copy(out, a.points)
	return out
}
