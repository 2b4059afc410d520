package postgres

import (
	"context"
	"fmt"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.CropJob) error {
	query := `
		INSERT INTO crop_jobs (
			id, user_id, video_key, output_key, status, output_size,
			sampled_frames, trajectory_points, file_size, video_duration,
			attempt, max_attempts, error_kind, error_message,
			created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.VideoKey, job.OutputKey, string(job.Status), job.OutputSize,
		job.SampledFrames, job.TrajectoryPoints, job.FileSize, job.VideoDuration,
		job.Attempt, job.MaxAttempts, job.ErrorKind, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert crop job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.CropJob) error {
	query := `
		UPDATE crop_jobs SET
			status=$2, output_key=$3, sampled_frames=$4, trajectory_points=$5,
			video_duration=$6, attempt=$7, error_kind=$8, error_message=$9,
			updated_at=$10, completed_at=$11
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.OutputKey, job.SampledFrames, job.TrajectoryPoints,
		job.VideoDuration, job.Attempt, job.ErrorKind, job.ErrorMessage,
		job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update crop job: %w", err)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.CropJob, error) {
	query := `
		SELECT id, user_id, video_key, output_key, status, output_size,
			sampled_frames, trajectory_points, file_size, video_duration,
			attempt, max_attempts, error_kind, error_message,
			created_at, updated_at, completed_at
		FROM crop_jobs WHERE id=$1`

	job := &entity.CropJob{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.VideoKey, &job.OutputKey, &status, &job.OutputSize,
		&job.SampledFrames, &job.TrajectoryPoints, &job.FileSize, &job.VideoDuration,
		&job.Attempt, &job.MaxAttempts, &job.ErrorKind, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find crop job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}
