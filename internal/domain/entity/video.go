package entity

// VideoMetadata describes a source video after rotation normalization.
type VideoMetadata struct {
	Width          int
	Height         int
	DurationMicros int64
	FPS            float64
}

func (m VideoMetadata) DurationSeconds() float64 {
	return float64(m.DurationMicros) / 1e6
}
