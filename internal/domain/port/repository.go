package port

import (
	"context"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"
	"github.com/google/uuid"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.CropJob) error
	Update(ctx context.Context, job *entity.CropJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.CropJob, error)
}
