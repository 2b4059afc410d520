package port

import (
	"context"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/croppath"
	"github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"
)

type TranscodeRequest struct {
	InputPath  string
	OutputPath string
	Path       *croppath.CropPath
	Metadata   entity.VideoMetadata
	// SampleFPS is the rate the crop path knots were sampled at.
	SampleFPS float64
}

// ProgressFunc receives a non-decreasing completion fraction in [0,1].
type ProgressFunc func(fraction float64)

type Transcoder interface {
	Transcode(ctx context.Context, req TranscodeRequest, onProgress ProgressFunc) (string, error)
}
