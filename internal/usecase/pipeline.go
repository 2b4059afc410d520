package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/croppath"
	"github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"
	"github.com/fiapx/fiapx-autocrop-service/internal/domain/port"
	"github.com/fiapx/fiapx-autocrop-service/internal/domain/trajectory"
	"github.com/fiapx/fiapx-autocrop-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Transcode progress is republished only after it advances by more than this.
const progressStep = 0.01

type PipelineConfig struct {
	Sampler         SamplerConfig
	SmoothingWindow int
}

type PipelineInput struct {
	VideoPath  string
	OutputPath string
	OutputSize int
}

type PipelineResult struct {
	OutputPath       string
	Metadata         entity.VideoMetadata
	SampledFrames    int
	TrajectoryPoints int
	Path             *croppath.CropPath
}

// Pipeline runs sample → detect → aggregate → smooth → compile → transcode
// for one video at a time. Its state is published as whole snapshots and can
// be read from any goroutine while Run is in progress.
type Pipeline struct {
	metadata   port.MetadataReader
	sampler    *FrameSampler
	extractor  *PoseExtractor
	transcoder port.Transcoder
	logger     *zap.Logger
	cfg        PipelineConfig

	state    atomic.Pointer[entity.PipelineState]
	running  atomic.Bool
	observer func(entity.PipelineState)
}

func NewPipeline(
	metadata port.MetadataReader,
	decoder port.FrameDecoder,
	poses port.LandmarkProvider,
	transcoder port.Transcoder,
	logger *zap.Logger,
	cfg PipelineConfig,
) *Pipeline {
	if cfg.SmoothingWindow <= 0 {
		cfg.SmoothingWindow = trajectory.DefaultWindowSize
	}
	p := &Pipeline{
		metadata:   metadata,
		sampler:    NewFrameSampler(decoder, cfg.Sampler),
		extractor:  NewPoseExtractor(poses),
		transcoder: transcoder,
		logger:     logger,
		cfg:        cfg,
	}
	p.state.Store(&entity.PipelineState{Phase: entity.PhaseIdle})
	return p
}

// Observe registers fn to receive every published snapshot on the goroutine
// calling Run. It must be set before Run.
func (p *Pipeline) Observe(fn func(entity.PipelineState)) {
	p.observer = fn
}

func (p *Pipeline) State() entity.PipelineState {
	return *p.state.Load()
}

func (p *Pipeline) publish(s entity.PipelineState) {
	p.state.Store(&s)
	if p.observer != nil {
		p.observer(s)
	}
}

func (p *Pipeline) fail(err error) (*PipelineResult, error) {
	prev := p.State()
	p.publish(entity.PipelineState{
		Phase:            entity.PhaseFailed,
		Progress:         prev.Progress,
		ProcessedFrames:  prev.ProcessedFrames,
		TotalFrames:      prev.TotalFrames,
		TrajectoryPoints: prev.TrajectoryPoints,
		Err:              err,
	})
	return nil, err
}

// Run processes in.VideoPath from Idle to Done or Failed. Only one run may be
// in flight per Pipeline; a finished Pipeline can be run again.
func (p *Pipeline) Run(ctx context.Context, in PipelineInput) (*PipelineResult, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, entity.ErrPipelineBusy
	}
	defer p.running.Store(false)

	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "Pipeline.Run")
	defer span.End()

	p.publish(entity.PipelineState{Phase: entity.PhaseIdle})

	meta, err := p.metadata.ReadMetadata(ctx, in.VideoPath)
	if err != nil {
		return p.fail(fmt.Errorf("%w: %v", entity.ErrMetadataUnavailable, err))
	}
	if in.OutputSize <= 0 || in.OutputSize > meta.Width || in.OutputSize > meta.Height {
		return p.fail(fmt.Errorf("%w: size %d, video %dx%d", entity.ErrOutputTooLarge, in.OutputSize, meta.Width, meta.Height))
	}
	span.SetAttributes(
		attribute.Int("video.width", meta.Width),
		attribute.Int("video.height", meta.Height),
		attribute.Float64("video.duration_seconds", meta.DurationSeconds()),
	)

	points, processed, err := p.detect(ctx, in.VideoPath, meta)
	if err != nil {
		return p.fail(err)
	}
	if len(points) == 0 {
		return p.fail(entity.ErrNoTrajectory)
	}

	detected := p.State()
	next := func(phase entity.Phase) {
		p.publish(entity.PipelineState{
			Phase:            phase,
			ProcessedFrames:  detected.ProcessedFrames,
			TotalFrames:      detected.TotalFrames,
			TrajectoryPoints: len(points),
		})
	}

	next(entity.PhaseSmoothing)
	smoothed := trajectory.Smooth(points, p.cfg.SmoothingWindow)

	next(entity.PhaseCompiling)
	compileStart := time.Now()
	path, err := croppath.Compile(smoothed, meta, in.OutputSize)
	if err != nil {
		return p.fail(err)
	}
	metrics.JobProcessingDuration.WithLabelValues("compile").Observe(time.Since(compileStart).Seconds())

	next(entity.PhaseTranscoding)
	output, err := p.transcode(ctx, in, meta, path, detected, len(points))
	if err != nil {
		return p.fail(err)
	}

	p.publish(entity.PipelineState{
		Phase:            entity.PhaseDone,
		Progress:         1,
		ProcessedFrames:  detected.ProcessedFrames,
		TotalFrames:      detected.TotalFrames,
		TrajectoryPoints: len(points),
		OutputPath:       output,
	})

	return &PipelineResult{
		OutputPath:       output,
		Metadata:         meta,
		SampledFrames:    processed,
		TrajectoryPoints: len(points),
		Path:             path,
	}, nil
}

func (p *Pipeline) detect(ctx context.Context, videoPath string, meta entity.VideoMetadata) ([]entity.TrajectoryPoint, int, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "detect_poses")
	defer span.End()
	start := time.Now()

	p.publish(entity.PipelineState{Phase: entity.PhaseDetecting})

	agg := trajectory.NewAggregator()
	seq := p.sampler.Sample(videoPath, meta.DurationMicros)
	processed, total, failed := 0, 0, 0

	for seq.Next(ctx) {
		frame := seq.Frame()
		total = max(total, frame.Index+1)
		metrics.FramesSampledTotal.Inc()

		det, err := p.extractor.Detect(ctx, frame.Image, frame.Index, frame.TimestampMicros)
		switch {
		case err != nil:
			failed++
			metrics.DetectionsTotal.WithLabelValues("error").Inc()
			p.logger.Debug("frame detection failed", zap.Int("frame", frame.Index), zap.Error(err))
		case det == nil:
			metrics.DetectionsTotal.WithLabelValues("none").Inc()
		case !det.Complete():
			metrics.DetectionsTotal.WithLabelValues("incomplete").Inc()
		default:
			agg.Add(det)
			metrics.DetectionsTotal.WithLabelValues("complete").Inc()
		}

		processed++
		p.publish(entity.PipelineState{
			Phase:            entity.PhaseDetecting,
			Progress:         float64(processed) / float64(max(total, 1)),
			ProcessedFrames:  processed,
			TotalFrames:      total,
			TrajectoryPoints: agg.Len(),
		})
	}
	if err := seq.Err(); err != nil {
		return nil, processed, err
	}
	metrics.JobProcessingDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	p.publish(entity.PipelineState{
		Phase:            entity.PhaseAggregated,
		Progress:         1,
		ProcessedFrames:  processed,
		TotalFrames:      total,
		TrajectoryPoints: agg.Len(),
	})
	span.SetAttributes(
		attribute.Int("frames.processed", processed),
		attribute.Int("frames.failed", failed),
		attribute.Int("trajectory.points", agg.Len()),
	)

	if processed > 0 && failed == processed {
		return nil, processed, fmt.Errorf("%w: all %d frames failed", entity.ErrDetectionUnavailable, failed)
	}
	return agg.Points(), processed, nil
}

func (p *Pipeline) transcode(
	ctx context.Context,
	in PipelineInput,
	meta entity.VideoMetadata,
	path *croppath.CropPath,
	detected entity.PipelineState,
	points int,
) (string, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "transcode")
	defer span.End()
	start := time.Now()

	last := 0.0
	onProgress := func(fraction float64) {
		if fraction-last <= progressStep {
			return
		}
		last = fraction
		p.publish(entity.PipelineState{
			Phase:            entity.PhaseTranscoding,
			Progress:         fraction,
			ProcessedFrames:  detected.ProcessedFrames,
			TotalFrames:      detected.TotalFrames,
			TrajectoryPoints: points,
		})
	}

	output, err := p.transcoder.Transcode(ctx, port.TranscodeRequest{
		InputPath:  in.VideoPath,
		OutputPath: in.OutputPath,
		Path:       path,
		Metadata:   meta,
		SampleFPS:  p.sampler.cfg.TargetFPS,
	}, onProgress)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return "", ctx.Err()
	case errors.Is(err, entity.ErrTranscodeFailed):
		return "", err
	default:
		return "", fmt.Errorf("%w: %v", entity.ErrTranscodeFailed, err)
	}
	if output == "" {
		return "", fmt.Errorf("%w: no output produced", entity.ErrTranscodeFailed)
	}

	metrics.JobProcessingDuration.WithLabelValues("transcode").Observe(time.Since(start).Seconds())
	return output, nil
}
