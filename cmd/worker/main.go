package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fiapx/fiapx-autocrop-service/internal/infra/config"
	"github.com/fiapx/fiapx-autocrop-service/internal/infra/email"
	"github.com/fiapx/fiapx-autocrop-service/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-autocrop-service/internal/infra/metrics"
	miniostorage "github.com/fiapx/fiapx-autocrop-service/internal/infra/minio"
	"github.com/fiapx/fiapx-autocrop-service/internal/infra/poseworker"
	"github.com/fiapx/fiapx-autocrop-service/internal/infra/postgres"
	"github.com/fiapx/fiapx-autocrop-service/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-autocrop-service/internal/infra/tracing"
	"github.com/fiapx/fiapx-autocrop-service/internal/usecase"
	"github.com/fiapx/fiapx-autocrop-service/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const serviceName = "fiapx-autocrop-service"

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting " + serviceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, serviceName, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	fatalOnErr(postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir), "run migrations")

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		UploadBucket: cfg.MinIOUploadBucket,
		OutputBucket: cfg.MinIOOutputBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	defer pub.Close()

	statusPub := rabbitmq.NewStatusPublisher(pub, cfg.RabbitMQStatusKey)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	poses := poseworker.NewProvider(poseworker.Config{
		Command: cfg.PoseWorkerCmd,
		Args:    cfg.PoseWorkerArgs,
		Timeout: cfg.PoseWorkerTimeout,
	}, log.Named("pose"))
	defer poses.Close()

	media := usecase.MediaServices{
		Metadata: ffmpeg.NewProber(log),
		Decoder:  ffmpeg.NewFrameDecoder(),
		Poses:    poses,
		Transcoder: ffmpeg.NewTranscoder(ffmpeg.TranscoderConfig{
			Preset: cfg.FFmpegPreset,
			CRF:    cfg.FFmpegCRF,
		}, log),
	}

	uc := usecase.NewProcessCropUseCase(
		postgres.NewJobRepository(pool),
		storage,
		media,
		statusPub, dlqPub,
		email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log),
		log,
		usecase.ProcessCropConfig{
			TempDir:    cfg.TempDir,
			MaxRetries: cfg.MaxRetries,
			OutputSize: cfg.CropOutputSize,
			Pipeline: usecase.PipelineConfig{
				Sampler: usecase.SamplerConfig{
					TargetFPS: cfg.SampleFPS,
					MaxWidth:  cfg.SampleMaxWidth,
					MaxHeight: cfg.SampleMaxHeight,
				},
				SmoothingWindow: cfg.SmoothingWindow,
			},
		},
	)

	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQCropQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		RoutingKey:  cfg.RabbitMQCropKey,
		StatusKey:   cfg.RabbitMQStatusKey,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info(serviceName+" started, consuming messages", zap.String("queue", cfg.RabbitMQCropQueue))

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info(serviceName + " stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
