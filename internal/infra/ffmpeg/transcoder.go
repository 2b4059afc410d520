package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"
	"github.com/fiapx/fiapx-autocrop-service/internal/domain/port"
	"go.uber.org/zap"
)

type TranscoderConfig struct {
	Preset string
	CRF    int
}

// Transcoder renders the cropped video with libx264, copying audio.
type Transcoder struct {
	cfg    TranscoderConfig
	logger *zap.Logger
}

func NewTranscoder(cfg TranscoderConfig, logger *zap.Logger) *Transcoder {
	if cfg.Preset == "" {
		cfg.Preset = "fast"
	}
	if cfg.CRF <= 0 {
		cfg.CRF = 23
	}
	return &Transcoder{cfg: cfg, logger: logger}
}

func (t *Transcoder) args(req port.TranscodeRequest, scriptPath string) []string {
	return []string{
		"-y",
		"-v", "error",
		"-nostats",
		"-progress", "pipe:1",
		"-i", req.InputPath,
		"-filter_complex_script", scriptPath,
		"-map", "[v]",
		"-map", "0:a?",
		"-c:v", "libx264",
		"-preset", t.cfg.Preset,
		"-crf", strconv.Itoa(t.cfg.CRF),
		"-c:a", "copy",
		req.OutputPath,
	}
}

func (t *Transcoder) Transcode(ctx context.Context, req port.TranscodeRequest, onProgress port.ProgressFunc) (string, error) {
	scale := 1.0
	if req.SampleFPS > 0 && req.Metadata.FPS > 0 {
		scale = req.SampleFPS / req.Metadata.FPS
	}

	// Per-frame expressions for long videos exceed argv limits, so the
	// filtergraph goes through a script file.
	scriptPath := req.OutputPath + ".filter"
	if err := os.WriteFile(scriptPath, []byte(FilterGraph(req.Path, scale)), 0644); err != nil {
		return "", fmt.Errorf("write filter script: %w", err)
	}
	defer os.Remove(scriptPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", t.args(req, scriptPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: start ffmpeg: %v", entity.ErrTranscodeFailed, err)
	}

	tracker := newProgressTracker(req.Metadata.DurationMicros, onProgress)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		tracker.Line(scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("%w: ffmpeg error: %v, output: %s", entity.ErrTranscodeFailed, err, stderr.String())
	}

	info, err := os.Stat(req.OutputPath)
	if err != nil || info.Size() == 0 {
		return "", fmt.Errorf("%w: output missing at %s", entity.ErrTranscodeFailed, req.OutputPath)
	}

	t.logger.Info("cropped video rendered",
		zap.String("output", req.OutputPath),
		zap.Int("size", req.Path.Size),
		zap.Int64("bytes", info.Size()),
		zap.Float64("frame_scale", scale),
	)
	return req.OutputPath, nil
}
