package entity

import "github.com/google/uuid"

// CropRequestMessage is the inbound message from the video.autocrop queue.
type CropRequestMessage struct {
	JobID      uuid.UUID `json:"job_id"`
	UserID     string    `json:"user_id"`
	VideoKey   string    `json:"video_key"`
	FileSize   int64     `json:"file_size"`
	UserEmail  string    `json:"user_email"`
	OutputSize int       `json:"output_size,omitempty"`
}

// CropStatusMessage is the outbound message published with the video.autocrop.status routing key.
type CropStatusMessage struct {
	JobID            uuid.UUID `json:"job_id"`
	UserID           string    `json:"user_id"`
	Status           JobStatus `json:"status"`
	VideoKey         string    `json:"video_key"`
	OutputKey        string    `json:"output_key,omitempty"`
	SampledFrames    int       `json:"sampled_frames,omitempty"`
	TrajectoryPoints int       `json:"trajectory_points,omitempty"`
	OutputSize       int       `json:"output_size"`
	Duration         float64   `json:"duration_seconds,omitempty"`
	ErrorKind        string    `json:"error_kind,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	Attempt          int       `json:"attempt"`
	MaxAttempts      int       `json:"max_attempts"`
}
