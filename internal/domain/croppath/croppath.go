// Package croppath turns a smoothed trajectory into per-frame crop origins.
//
// A CropPath is a pure numeric function: knots at trajectory frame indices,
// linear interpolation between them and flat extrapolation outside them.
// Serializing it for a particular render engine is left to the caller.
package croppath

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"
)

// Knot is an exact crop origin at a trajectory frame index.
type Knot struct {
	Frame int
	Value int
}

// Axis is a piecewise-linear origin function along one image axis.
type Axis struct {
	knots []Knot
}

// At evaluates the axis at frame.
func (a Axis) At(frame int) int {
	k := a.knots
	if len(k) == 0 {
		return 0
	}
	if frame <= k[0].Frame {
		return k[0].Value
	}
	last := k[len(k)-1]
	if frame >= last.Frame {
		return last.Value
	}

	j := sort.Search(len(k), func(i int) bool { return k[i].Frame > frame })
	lo, hi := k[j-1], k[j]
	if lo.Frame == frame {
		return lo.Value
	}
	t := float64(frame-lo.Frame) / float64(hi.Frame-lo.Frame)
	return int(math.Round(float64(lo.Value) + float64(hi.Value-lo.Value)*t))
}

func (a Axis) Knots() []Knot {
	return slices.Clone(a.knots)
}

// CropPath gives the top-left origin of a Size x Size window for every frame.
type CropPath struct {
	Size int
	X    Axis
	Y    Axis
}

func (p *CropPath) At(frame int) (x, y int) {
	return p.X.At(frame), p.Y.At(frame)
}

// LastFrame is the highest knot frame index.
func (p *CropPath) LastFrame() int {
	if len(p.X.knots) == 0 {
		return 0
	}
	return p.X.knots[len(p.X.knots)-1].Frame
}

// Origin maps a normalized coordinate to the window origin that centers the
// window on it, clamped so the window stays inside [0, dimension).
func Origin(coord float64, dimension, outputSize int) int {
	v := coord*float64(dimension) - float64(outputSize/2)
	v = math.Max(0, math.Min(v, float64(dimension-outputSize)))
	return int(math.Round(v))
}

// Compile builds the crop path for points, which must be ordered by strictly
// increasing frame index.
func Compile(points []entity.TrajectoryPoint, meta entity.VideoMetadata, outputSize int) (*CropPath, error) {
	if len(points) == 0 {
		return nil, entity.ErrNoTrajectory
	}
	if outputSize <= 0 || outputSize > meta.Width || outputSize > meta.Height {
		return nil, fmt.Errorf("%w: size %d, video %dx%d", entity.ErrOutputTooLarge, outputSize, meta.Width, meta.Height)
	}

	xs := make([]Knot, len(points))
	ys := make([]Knot, len(points))
	for i, p := range points {
		if i > 0 && p.FrameIndex <= points[i-1].FrameIndex {
			return nil, fmt.Errorf("compile crop path: frame %d after %d", p.FrameIndex, points[i-1].FrameIndex)
		}
		xs[i] = Knot{Frame: p.FrameIndex, Value: Origin(p.X, meta.Width, outputSize)}
		ys[i] = Knot{Frame: p.FrameIndex, Value: Origin(p.Y, meta.Height, outputSize)}
	}

	return &CropPath{
		Size: outputSize,
		X:    Axis{knots: xs},
		Y:    Axis{knots: ys},
	}, nil
}
