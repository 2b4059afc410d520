package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"
	"go.uber.org/zap"
)

const defaultFPS = 30

type Prober struct {
	logger *zap.Logger
}

func NewProber(logger *zap.Logger) *Prober {
	return &Prober{logger: logger}
}

func (p *Prober) ReadMetadata(ctx context.Context, videoPath string) (entity.VideoMetadata, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,avg_frame_rate,r_frame_rate:stream_tags=rotate:stream_side_data=rotation:format=duration",
		"-of", "json",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return entity.VideoMetadata{}, fmt.Errorf("%w: ffprobe: %v", entity.ErrMetadataUnavailable, err)
	}

	meta, err := parseProbe(output)
	if err != nil {
		return entity.VideoMetadata{}, fmt.Errorf("%w: %v", entity.ErrMetadataUnavailable, err)
	}

	p.logger.Debug("video probed",
		zap.Int("width", meta.Width),
		zap.Int("height", meta.Height),
		zap.Float64("fps", meta.FPS),
		zap.Float64("duration", meta.DurationSeconds()),
	)
	return meta, nil
}

type probeOutput struct {
	Streams []struct {
		Width        int               `json:"width"`
		Height       int               `json:"height"`
		AvgFrameRate string            `json:"avg_frame_rate"`
		RFrameRate   string            `json:"r_frame_rate"`
		Tags         map[string]string `json:"tags"`
		SideDataList []struct {
			Rotation float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbe(data []byte) (entity.VideoMetadata, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return entity.VideoMetadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return entity.VideoMetadata{}, fmt.Errorf("no video stream")
	}

	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return entity.VideoMetadata{}, fmt.Errorf("invalid dimensions %dx%d", s.Width, s.Height)
	}

	rotation := 0
	if v, ok := s.Tags["rotate"]; ok {
		rotation, _ = strconv.Atoi(v)
	}
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			rotation = int(sd.Rotation)
		}
	}

	width, height := s.Width, s.Height
	if r := ((rotation % 360) + 360) % 360; r == 90 || r == 270 {
		width, height = height, width
	}

	fps := parseRate(s.AvgFrameRate)
	if fps <= 0 {
		fps = parseRate(s.RFrameRate)
	}
	if fps <= 0 {
		fps = defaultFPS
	}

	var durationMicros int64
	if d, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64); err == nil && d > 0 {
		durationMicros = int64(math.Round(d * 1e6))
	}

	return entity.VideoMetadata{
		Width:          width,
		Height:         height,
		DurationMicros: durationMicros,
		FPS:            fps,
	}, nil
}

// parseRate parses ffprobe rationals such as "30000/1001".
func parseRate(rate string) float64 {
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
