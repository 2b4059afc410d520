package usecase

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"sync"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"
	"github.com/fiapx/fiapx-autocrop-service/internal/domain/port"
	"github.com/google/uuid"
)

type fakeDecoder struct {
	mu      sync.Mutex
	width   int
	height  int
	missing map[int64]bool
	err     error
	calls   []int64
}

func (d *fakeDecoder) FrameAt(_ context.Context, _ string, ts int64) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, ts)
	if d.err != nil {
		return nil, d.err
	}
	if d.missing[ts] {
		return nil, nil
	}
	w, h := d.width, d.height
	if w == 0 {
		w, h = 320, 240
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

type fakeMetadata struct {
	meta entity.VideoMetadata
	err  error
}

func (m *fakeMetadata) ReadMetadata(context.Context, string) (entity.VideoMetadata, error) {
	return m.meta, m.err
}

// fakePoses answers each call through fn, which receives the zero-based call number.
type fakePoses struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) ([][]port.RawLandmark, error)
}

func (p *fakePoses) Detect(context.Context, image.Image) ([][]port.RawLandmark, error) {
	p.mu.Lock()
	call := p.calls
	p.calls++
	p.mu.Unlock()
	return p.fn(call)
}

func rawPose(n int, hipX, hipY float64) []port.RawLandmark {
	vis := 0.8
	out := make([]port.RawLandmark, n)
	for i := range out {
		out[i] = port.RawLandmark{X: 0.5, Y: 0.5, Visibility: &vis}
	}
	for _, idx := range []int{entity.LeftHip.ModelIndex(), entity.RightHip.ModelIndex()} {
		if idx < n {
			out[idx].X, out[idx].Y = hipX, hipY
		}
	}
	return out
}

func constantPose(hipX, hipY float64) *fakePoses {
	return &fakePoses{fn: func(int) ([][]port.RawLandmark, error) {
		return [][]port.RawLandmark{rawPose(33, hipX, hipY)}, nil
	}}
}

type fakeTranscoder struct {
	mu       sync.Mutex
	progress []float64
	err      error
	block    chan struct{}
	started  chan struct{}
	requests []port.TranscodeRequest
}

func (t *fakeTranscoder) Transcode(ctx context.Context, req port.TranscodeRequest, onProgress port.ProgressFunc) (string, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	t.mu.Unlock()

	if t.started != nil {
		close(t.started)
	}
	if t.block != nil {
		select {
		case <-t.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	for _, p := range t.progress {
		onProgress(p)
	}
	if t.err != nil {
		return "", t.err
	}
	if err := os.WriteFile(req.OutputPath, []byte("mp4"), 0644); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

type fakeRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]entity.CropJob
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: map[uuid.UUID]entity.CropJob{}}
}

func (r *fakeRepo) Create(_ context.Context, job *entity.CropJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeRepo) Update(_ context.Context, job *entity.CropJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.CropJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &job, nil
}

type fakeStorage struct {
	downloadErr error
	uploads     map[string][]byte
}

func (s *fakeStorage) DownloadVideo(_ context.Context, _ string, destPath string) error {
	if s.downloadErr != nil {
		return s.downloadErr
	}
	return os.WriteFile(destPath, []byte("source"), 0644)
}

func (s *fakeStorage) UploadCroppedVideo(_ context.Context, key string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if s.uploads == nil {
		s.uploads = map[string][]byte{}
	}
	s.uploads[key] = data
	return nil
}

type fakePublisher struct {
	statuses []entity.CropStatusMessage
}

func (p *fakePublisher) PublishStatus(_ context.Context, status entity.CropStatusMessage) error {
	p.statuses = append(p.statuses, status)
	return nil
}

type fakeDLQ struct {
	bodies  [][]byte
	reasons []string
}

func (d *fakeDLQ) PublishToDLQ(_ context.Context, body []byte, reason string) error {
	d.bodies = append(d.bodies, body)
	d.reasons = append(d.reasons, reason)
	return nil
}

type fakeNotifier struct {
	notices []port.FailureNotice
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, notice port.FailureNotice) error {
	n.notices = append(n.notices, notice)
	return nil
}
