package usecase

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/port"
	"golang.org/x/image/draw"
)

type SamplerConfig struct {
	TargetFPS float64
	MaxWidth  int
	MaxHeight int
}

// SampledFrame is a downsampled image taken at a fixed sampling step.
type SampledFrame struct {
	Index           int
	TimestampMicros int64
	Image           image.Image
}

// FrameSampler walks a video timeline at a fixed rate.
type FrameSampler struct {
	decoder port.FrameDecoder
	cfg     SamplerConfig
}

func NewFrameSampler(decoder port.FrameDecoder, cfg SamplerConfig) *FrameSampler {
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 30
	}
	return &FrameSampler{decoder: decoder, cfg: cfg}
}

// Step is the timestamp distance between consecutive samples.
func (s *FrameSampler) Step() int64 {
	return int64(1_000_000 / s.cfg.TargetFPS)
}

// Sample returns a lazy sequence over videoPath. Every call starts a new walk
// from frame 0; a sequence itself cannot be rewound.
func (s *FrameSampler) Sample(videoPath string, durationMicros int64) *FrameSequence {
	return &FrameSequence{
		sampler:  s,
		path:     videoPath,
		duration: durationMicros,
		step:     s.Step(),
	}
}

// FrameSequence yields frames one at a time. The image of the previous frame
// is released when Next is called again.
type FrameSequence struct {
	sampler  *FrameSampler
	path     string
	duration int64
	step     int64

	index int
	cur   SampledFrame
	err   error
	done  bool
}

// Next advances to the next decodable frame. Cancellation is observed between
// frames; a decode already in progress runs to completion.
func (q *FrameSequence) Next(ctx context.Context) bool {
	q.cur = SampledFrame{}
	for !q.done {
		if err := ctx.Err(); err != nil {
			return q.finish(err)
		}

		ts := int64(q.index) * q.step
		if ts > q.duration {
			return q.finish(nil)
		}
		idx := q.index
		q.index++

		img, err := q.sampler.decoder.FrameAt(context.WithoutCancel(ctx), q.path, ts)
		if err != nil {
			return q.finish(fmt.Errorf("decode frame %d: %w", idx, err))
		}
		if img == nil {
			continue
		}

		q.cur = SampledFrame{
			Index:           idx,
			TimestampMicros: ts,
			Image:           Downsample(img, q.sampler.cfg.MaxWidth, q.sampler.cfg.MaxHeight),
		}
		return true
	}
	return false
}

func (q *FrameSequence) finish(err error) bool {
	q.done = true
	q.err = err
	return false
}

func (q *FrameSequence) Frame() SampledFrame {
	return q.cur
}

func (q *FrameSequence) Err() error {
	return q.err
}

// Downsample scales img to fit within maxWidth x maxHeight keeping its aspect
// ratio. Images already inside the box, or a non-positive box, pass through.
func Downsample(img image.Image, maxWidth, maxHeight int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxWidth <= 0 || maxHeight <= 0 || (w <= maxWidth && h <= maxHeight) {
		return img
	}

	ratio := math.Min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	dst := image.NewRGBA(image.Rect(0, 0, max(1, int(float64(w)*ratio)), max(1, int(float64(h)*ratio))))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
