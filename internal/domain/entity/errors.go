package entity

import "errors"

var (
	ErrMetadataUnavailable  = errors.New("video metadata unavailable")
	ErrDetectionUnavailable = errors.New("pose detection unavailable")
	ErrNoTrajectory         = errors.New("no hip trajectory detected")
	ErrTranscodeFailed      = errors.New("transcode failed")
	ErrOutputTooLarge       = errors.New("crop size exceeds video bounds")
	ErrPipelineBusy         = errors.New("pipeline already running")
)

// ErrorKind maps err to the short kind stored on jobs and published in status messages.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMetadataUnavailable):
		return "MetadataUnavailable"
	case errors.Is(err, ErrDetectionUnavailable):
		return "DetectionUnavailable"
	case errors.Is(err, ErrNoTrajectory):
		return "NoTrajectory"
	case errors.Is(err, ErrTranscodeFailed):
		return "TranscodeFailed"
	case errors.Is(err, ErrOutputTooLarge):
		return "OutputTooLarge"
	default:
		return "Internal"
	}
}

// IsPermanent reports whether retrying the same input can never succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrMetadataUnavailable) ||
		errors.Is(err, ErrDetectionUnavailable) ||
		errors.Is(err, ErrNoTrajectory) ||
		errors.Is(err, ErrOutputTooLarge)
}
