package port

import (
	"context"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"
)

type StatusPublisher interface {
	PublishStatus(ctx context.Context, status entity.CropStatusMessage) error
}

// DLQPublisher forwards an undeliverable raw message with the reason it was rejected.
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, body []byte, reason string) error
}
