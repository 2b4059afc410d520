package port

import (
	"context"
	"image"
)

// RawLandmark is one entry of a detector's per-subject landmark array.
type RawLandmark struct {
	X          float64
	Y          float64
	Visibility *float64
}

// LandmarkProvider runs a pose-landmark model on a single image and returns
// one landmark array per detected subject, primary subject first.
type LandmarkProvider interface {
	Detect(ctx context.Context, img image.Image) ([][]RawLandmark, error)
}
