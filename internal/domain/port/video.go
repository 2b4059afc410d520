package port

import (
	"context"
	"image"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"
)

type MetadataReader interface {
	ReadMetadata(ctx context.Context, videoPath string) (entity.VideoMetadata, error)
}

// FrameDecoder returns the frame closest to timestampMicros. A nil image with
// a nil error means the decoder has no frame for that timestamp.
type FrameDecoder interface {
	FrameAt(ctx context.Context, videoPath string, timestampMicros int64) (image.Image, error)
}
