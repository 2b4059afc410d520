package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"
	"github.com/fiapx/fiapx-autocrop-service/internal/domain/port"
	"github.com/fiapx/fiapx-autocrop-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// MediaServices groups the video and pose collaborators a pipeline run needs.
type MediaServices struct {
	Metadata   port.MetadataReader
	Decoder    port.FrameDecoder
	Poses      port.LandmarkProvider
	Transcoder port.Transcoder
}

type ProcessCropUseCase struct {
	repo      port.JobRepository
	storage   port.VideoStorage
	media     MediaServices
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	cfg       ProcessCropConfig
}

type ProcessCropConfig struct {
	TempDir    string
	MaxRetries int
	OutputSize int
	Pipeline   PipelineConfig
}

func NewProcessCropUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	media MediaServices,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ProcessCropConfig,
) *ProcessCropUseCase {
	return &ProcessCropUseCase{
		repo:      repo,
		storage:   storage,
		media:     media,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

func (uc *ProcessCropUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessCropUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.CropRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}
	if msg.OutputSize <= 0 {
		msg.OutputSize = uc.cfg.OutputSize
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
		attribute.Int("job.output_size", msg.OutputSize),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewCropJob(msg.UserID, msg.VideoKey, msg.FileSize, msg.OutputSize, uc.cfg.MaxRetries)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, job.ErrorKind, "max retries exceeded", log)
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.processCropPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.JobProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *ProcessCropUseCase) processCropPipeline(
	ctx context.Context,
	job *entity.CropJob,
	msg entity.CropRequestMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.cfg.TempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download source video from MinIO
	dlStart := time.Now()
	ctx2, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input.mp4")
	if err := uc.storage.DownloadVideo(ctx2, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "Internal", "download_video: "+err.Error(), log)
	}
	spanDl.End()
	metrics.JobProcessingDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Track the subject and render the cropped video
	pipeline := NewPipeline(uc.media.Metadata, uc.media.Decoder, uc.media.Poses, uc.media.Transcoder, log, uc.cfg.Pipeline)
	pipeline.Observe(phaseLogger(log))

	result, err := pipeline.Run(ctx, PipelineInput{
		VideoPath:  videoPath,
		OutputPath: filepath.Join(workDir, "cropped.mp4"),
		OutputSize: msg.OutputSize,
	})
	if err != nil {
		if ctx.Err() != nil {
			log.Warn("pipeline interrupted", zap.Error(err))
			return fmt.Errorf("run pipeline: %w", err)
		}
		kind := entity.ErrorKind(err)
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		log.Error("pipeline failed", zap.String("error_kind", kind), zap.Error(err))
		if entity.IsPermanent(err) {
			return uc.handlePermanentFailure(ctx, job, msg, rawMsg, kind, err.Error(), log)
		}
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, kind, err.Error(), log)
	}

	// Upload cropped video to MinIO
	upStart := time.Now()
	ctx3, spanUp := tracer.Start(ctx, "upload_cropped")
	outputKey := fmt.Sprintf("%s/cropped_%s.mp4", msg.UserID, job.ID.String())
	outFile, err := os.Open(result.OutputPath)
	if err != nil {
		spanUp.End()
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "Internal", "open_output: "+err.Error(), log)
	}
	outStat, _ := outFile.Stat()
	if err := uc.storage.UploadCroppedVideo(ctx3, outputKey, outFile, outStat.Size()); err != nil {
		outFile.Close()
		spanUp.End()
		log.Error("cropped video upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "Internal", "upload_cropped: "+err.Error(), log)
	}
	outFile.Close()
	spanUp.End()
	metrics.JobProcessingDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	// Mark completed
	job.MarkCompleted(outputKey, result.SampledFrames, result.TrajectoryPoints, result.Metadata.DurationSeconds())
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("sampled_frames", result.SampledFrames),
		zap.Int("trajectory_points", result.TrajectoryPoints),
		zap.Float64("duration_secs", result.Metadata.DurationSeconds()),
		zap.String("output_key", outputKey),
	)

	return nil
}

// phaseLogger logs each phase change once rather than every progress tick.
func phaseLogger(log *zap.Logger) func(entity.PipelineState) {
	var last entity.Phase
	return func(s entity.PipelineState) {
		if s.Phase == last {
			return
		}
		last = s.Phase
		log.Debug("pipeline phase",
			zap.String("phase", string(s.Phase)),
			zap.Int("processed_frames", s.ProcessedFrames),
			zap.Int("trajectory_points", s.TrajectoryPoints),
		)
	}
}

func (uc *ProcessCropUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.CropJob,
	msg entity.CropRequestMessage,
	rawMsg []byte,
	kind string,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(kind, errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, kind, errMsg, log)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *ProcessCropUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.CropJob,
	msg entity.CropRequestMessage,
	rawMsg []byte,
	kind string,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(kind, errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, log)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, port.FailureNotice{
			UserEmail:    msg.UserEmail,
			JobID:        job.ID.String(),
			VideoKey:     msg.VideoKey,
			ErrorKind:    kind,
			ErrorMessage: errMsg,
		})
	}

	return nil
}

func (uc *ProcessCropUseCase) publishStatus(ctx context.Context, job *entity.CropJob, log *zap.Logger) {
	status := entity.CropStatusMessage{
		JobID:            job.ID,
		UserID:           job.UserID,
		Status:           job.Status,
		VideoKey:         job.VideoKey,
		OutputKey:        job.OutputKey,
		SampledFrames:    job.SampledFrames,
		TrajectoryPoints: job.TrajectoryPoints,
		OutputSize:       job.OutputSize,
		Duration:         job.VideoDuration,
		ErrorKind:        job.ErrorKind,
		ErrorMessage:     job.ErrorMessage,
		Attempt:          job.Attempt,
		MaxAttempts:      job.MaxAttempts,
	}
	if err := uc.publisher.PublishStatus(ctx, status); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
