package integration

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"
	"github.com/fiapx/fiapx-autocrop-service/internal/infra/email"
	"github.com/fiapx/fiapx-autocrop-service/internal/infra/ffmpeg"
	miniostorage "github.com/fiapx/fiapx-autocrop-service/internal/infra/minio"
	"github.com/fiapx/fiapx-autocrop-service/internal/infra/poseworker"
	"github.com/fiapx/fiapx-autocrop-service/internal/infra/postgres"
	"github.com/fiapx/fiapx-autocrop-service/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-autocrop-service/internal/usecase"
	"github.com/fiapx/fiapx-autocrop-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"go.uber.org/zap"
)

const (
	exchange    = "fiapx.video"
	cropQueue   = "video.autocrop"
	statusQueue = "video.autocrop.status"
	dlq         = "video.autocrop.dlq"
)

// TestHelperProcess is the stand-in pose worker: every frame shows one
// subject standing at the center of the picture.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("FAKE_POSE_WORKER") != "1" {
		return
	}
	defer os.Exit(0)

	type landmark struct {
		X          float64 `json:"x"`
		Y          float64 `json:"y"`
		Visibility float64 `json:"visibility"`
	}
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	enc := json.NewEncoder(os.Stdout)
	for scanner.Scan() {
		var req struct {
			Seq uint64 `json:"seq"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			os.Exit(2)
		}
		pose := make([]landmark, 33)
		for i := range pose {
			pose[i] = landmark{X: 0.5, Y: 0.5, Visibility: 0.99}
		}
		enc.Encode(map[string]any{"seq": req.Seq, "poses": [][]landmark{pose}})
	}
}

type infra struct {
	pgConnStr     string
	rmqURL        string
	minioEndpoint string
	pool          *pgxpool.Pool
	rmqConn       *amqp.Connection
	storage       *miniostorage.Storage
	log           *zap.Logger
}

func startInfra(ctx context.Context, t *testing.T) *infra {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { pgContainer.Terminate(context.Background()) })

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rmqContainer, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { rmqContainer.Terminate(context.Background()) })

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { minioContainer.Terminate(context.Background()) })

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	require.NoError(t, postgres.RunMigrations(pgConnStr, "../../migrations"))
	// A second run finds nothing to apply.
	require.NoError(t, postgres.RunMigrations(pgConnStr, "../../migrations"))

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     minioEndpoint,
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		UploadBucket: "uploads",
		OutputBucket: "crops",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	t.Cleanup(func() { rmqConn.Close() })

	log, err := logger.New("debug")
	require.NoError(t, err)

	return &infra{
		pgConnStr:     pgConnStr,
		rmqURL:        rmqURL,
		minioEndpoint: minioEndpoint,
		pool:          pool,
		rmqConn:       rmqConn,
		storage:       storage,
		log:           log,
	}
}

func (in *infra) startWorker(ctx context.Context, t *testing.T, media usecase.MediaServices) {
	t.Helper()

	pub, err := rabbitmq.NewPublisher(in.rmqConn, exchange)
	require.NoError(t, err)

	uc := usecase.NewProcessCropUseCase(
		postgres.NewJobRepository(in.pool),
		in.storage,
		media,
		rabbitmq.NewStatusPublisher(pub, statusQueue),
		rabbitmq.NewDLQPublisher(pub, dlq),
		email.NewSMTPNotifier("localhost", 1025, "test@test.local", in.log),
		in.log,
		usecase.ProcessCropConfig{
			TempDir:    t.TempDir(),
			MaxRetries: 3,
			OutputSize: 480,
			Pipeline: usecase.PipelineConfig{
				Sampler: usecase.SamplerConfig{TargetFPS: 5, MaxWidth: 640, MaxHeight: 480},
			},
		},
	)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         in.rmqURL,
		Queue:       cropQueue,
		Exchange:    exchange,
		DLQ:         dlq,
		StatusQueue: statusQueue,
		RoutingKey:  cropQueue,
		StatusKey:   statusQueue,
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 100,
	}, uc.Execute, in.log)
	require.NoError(t, err)

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		consumer.Start(consumerCtx)
	}()
	t.Cleanup(func() {
		consumerCancel()
		<-done
		consumer.Close()
	})

	time.Sleep(500 * time.Millisecond)
}

func (in *infra) publish(ctx context.Context, t *testing.T, body []byte) {
	t.Helper()
	ch, err := in.rmqConn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	err = ch.PublishWithContext(ctx, exchange, cropQueue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	require.NoError(t, err)
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}
}

func TestAutoCropEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	requireFFmpeg(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	in := startInfra(ctx, t)

	// 2s landscape source with an audio track.
	srcPath := filepath.Join(t.TempDir(), "source.mp4")
	out, err := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-f", "lavfi", "-i", "testsrc=duration=2:size=1280x720:rate=25",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=2",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-c:a", "aac", "-shortest",
		srcPath,
	).CombinedOutput()
	require.NoError(t, err, string(out))

	minioClient, err := miniogo.New(in.minioEndpoint, &miniogo.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)

	videoKey := "testuser/source.mp4"
	_, err = minioClient.FPutObject(ctx, "uploads", videoKey, srcPath, miniogo.PutObjectOptions{ContentType: "video/mp4"})
	require.NoError(t, err)

	t.Setenv("FAKE_POSE_WORKER", "1")
	poses := poseworker.NewProvider(poseworker.Config{
		Command: os.Args[0],
		Args:    []string{"-test.run=^TestHelperProcess$"},
	}, in.log)
	defer poses.Close()

	prober := ffmpeg.NewProber(in.log)
	in.startWorker(ctx, t, usecase.MediaServices{
		Metadata:   prober,
		Decoder:    ffmpeg.NewFrameDecoder(),
		Poses:      poses,
		Transcoder: ffmpeg.NewTranscoder(ffmpeg.TranscoderConfig{Preset: "ultrafast"}, in.log),
	})

	statusCh, err := in.rmqConn.Channel()
	require.NoError(t, err)
	defer statusCh.Close()
	statusMsgs, err := statusCh.Consume(statusQueue, "", true, false, false, false, nil)
	require.NoError(t, err)

	jobID := uuid.New()
	info, err := os.Stat(srcPath)
	require.NoError(t, err)
	body, err := json.Marshal(entity.CropRequestMessage{
		JobID:     jobID,
		UserID:    "testuser",
		VideoKey:  videoKey,
		FileSize:  info.Size(),
		UserEmail: "test@test.local",
	})
	require.NoError(t, err)
	in.publish(ctx, t, body)

	var status entity.CropStatusMessage
	select {
	case d := <-statusMsgs:
		require.NoError(t, json.Unmarshal(d.Body, &status))
	case <-time.After(3 * time.Minute):
		t.Fatal("timeout waiting for status message")
	}

	require.Equal(t, entity.JobStatusCompleted, status.Status, status.ErrorMessage)
	assert.Equal(t, jobID, status.JobID)
	assert.Equal(t, 480, status.OutputSize)
	assert.Greater(t, status.SampledFrames, 0)
	assert.Equal(t, status.SampledFrames, status.TrajectoryPoints)
	assert.Equal(t, "testuser/cropped_"+jobID.String()+".mp4", status.OutputKey)

	croppedPath := filepath.Join(t.TempDir(), "cropped.mp4")
	require.NoError(t, minioClient.FGetObject(ctx, "crops", status.OutputKey, croppedPath, miniogo.GetObjectOptions{}))

	meta, err := prober.ReadMetadata(ctx, croppedPath)
	require.NoError(t, err)
	assert.Equal(t, 480, meta.Width)
	assert.Equal(t, 480, meta.Height)
	assert.InDelta(t, 2.0, meta.DurationSeconds(), 0.2)

	var dbStatus string
	var dbPoints int
	err = in.pool.QueryRow(ctx,
		"SELECT status, trajectory_points FROM crop_jobs WHERE id=$1", jobID,
	).Scan(&dbStatus, &dbPoints)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", dbStatus)
	assert.Equal(t, status.TrajectoryPoints, dbPoints)
}

func TestAutoCropMalformedMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	in := startInfra(ctx, t)
	in.startWorker(ctx, t, usecase.MediaServices{
		Metadata:   ffmpeg.NewProber(in.log),
		Decoder:    ffmpeg.NewFrameDecoder(),
		Poses:      poseworker.NewProvider(poseworker.Config{Command: "false"}, in.log),
		Transcoder: ffmpeg.NewTranscoder(ffmpeg.TranscoderConfig{}, in.log),
	})

	in.publish(ctx, t, []byte(`{invalid json`))
	time.Sleep(2 * time.Second)

	dlqCh, err := in.rmqConn.Channel()
	require.NoError(t, err)
	defer dlqCh.Close()

	msg, ok, err := dlqCh.Get(dlq, true)
	require.NoError(t, err)
	require.True(t, ok, "malformed message should be in DLQ")
	assert.Equal(t, `{invalid json`, string(msg.Body))
	assert.Contains(t, msg.Headers["x-dlq-reason"], "unmarshal_error")
}
