package usecase

import (
	"context"
	"fmt"
	"image"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"
	"github.com/fiapx/fiapx-autocrop-service/internal/domain/port"
)

// PoseExtractor adapts a raw landmark provider to named frame detections.
type PoseExtractor struct {
	provider port.LandmarkProvider
}

func NewPoseExtractor(provider port.LandmarkProvider) *PoseExtractor {
	return &PoseExtractor{provider: provider}
}

// Detect returns the named landmarks of the primary subject in img, or nil
// when no subject was found. Landmarks missing from the raw result are left
// out, so the detection may be incomplete.
func (e *PoseExtractor) Detect(ctx context.Context, img image.Image, frameIndex int, timestampMicros int64) (*entity.FrameDetection, error) {
	poses, err := e.provider.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detect frame %d: %w", frameIndex, err)
	}
	if len(poses) == 0 {
		return nil, nil
	}

	raw := poses[0]
	landmarks := make(map[entity.NamedLandmark]entity.LandmarkSample, len(entity.RequiredLandmarks))
	for _, l := range entity.RequiredLandmarks {
		idx := l.ModelIndex()
		if idx >= len(raw) {
			continue
		}
		sample := entity.LandmarkSample{X: raw[idx].X, Y: raw[idx].Y}
		if raw[idx].Visibility != nil {
			sample.Visibility = *raw[idx].Visibility
		}
		landmarks[l] = sample
	}
	if len(landmarks) == 0 {
		return nil, nil
	}

	return &entity.FrameDetection{
		FrameIndex:      frameIndex,
		TimestampMicros: timestampMicros,
		Landmarks:       landmarks,
	}, nil
}
