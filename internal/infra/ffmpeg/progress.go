package ffmpeg

import (
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/port"
)

// progressTracker turns `-progress` key=value lines into completion fractions.
type progressTracker struct {
	durationMicros int64
	last           float64
	onProgress     port.ProgressFunc
}

func newProgressTracker(durationMicros int64, onProgress port.ProgressFunc) *progressTracker {
	return &progressTracker{durationMicros: durationMicros, onProgress: onProgress}
}

func (p *progressTracker) Line(line string) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return
	}

	var fraction float64
	switch key {
	// out_time_ms is reported in microseconds as well.
	case "out_time_us", "out_time_ms":
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || p.durationMicros <= 0 {
			return
		}
		fraction = min(max(float64(us)/float64(p.durationMicros), 0), 1)
	case "progress":
		if value != "end" {
			return
		}
		fraction = 1
	default:
		return
	}

	if fraction > p.last {
		p.last = fraction
		if p.onProgress != nil {
			p.onProgress(fraction)
		}
	}
}
