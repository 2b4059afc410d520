package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

type CropJob struct {
	ID               uuid.UUID
	UserID           string
	VideoKey         string
	OutputKey        string
	Status           JobStatus
	OutputSize       int
	SampledFrames    int
	TrajectoryPoints int
	FileSize         int64
	VideoDuration    float64
	Attempt          int
	MaxAttempts      int
	ErrorKind        string
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

func NewCropJob(userID, videoKey string, fileSize int64, outputSize, maxAttempts int) *CropJob {
	now := time.Now().UTC()
	return &CropJob{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		OutputSize:  outputSize,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *CropJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.ErrorKind = ""
	j.ErrorMessage = ""
	j.UpdatedAt = time.Now().UTC()
}

func (j *CropJob) MarkCompleted(outputKey string, sampledFrames, trajectoryPoints int, duration float64) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.OutputKey = outputKey
	j.SampledFrames = sampledFrames
	j.TrajectoryPoints = trajectoryPoints
	j.VideoDuration = duration
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *CropJob) MarkFailed(kind, errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorKind = kind
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *CropJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
