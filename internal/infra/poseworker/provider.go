// Package poseworker runs a pose-landmark model in an external process.
//
// The worker is started on first use and talks JSON lines: one request with a
// base64 JPEG per frame on stdin, one response per request on stdout. A worker
// that stops answering is killed and restarted on the next call.
package poseworker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/entity"
	"github.com/fiapx/fiapx-autocrop-service/internal/domain/port"
	"go.uber.org/zap"
)

const maxResponseSize = 4 << 20

type Config struct {
	Command     string
	Args        []string
	JPEGQuality int
	Timeout     time.Duration
}

type Provider struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
	seq    uint64
}

func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 85
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Provider{cfg: cfg, logger: logger}
}

type readResult struct {
	line []byte
	err  error
}

func (p *Provider) Detect(ctx context.Context, img image.Image) ([][]port.RawLandmark, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil {
		if err := p.start(); err != nil {
			return nil, fmt.Errorf("%w: start pose worker: %v", entity.ErrDetectionUnavailable, err)
		}
	}

	p.seq++
	req, err := encodeRequest(p.seq, img, p.cfg.JPEGQuality)
	if err != nil {
		return nil, err
	}
	if _, err := p.stdin.Write(req); err != nil {
		p.stop()
		return nil, fmt.Errorf("write to pose worker: %w", err)
	}

	ch := make(chan readResult, 1)
	stdout := p.stdout
	go func() {
		if stdout.Scan() {
			ch <- readResult{line: bytes.Clone(stdout.Bytes())}
			return
		}
		err := stdout.Err()
		if err == nil {
			err = io.EOF
		}
		ch <- readResult{err: err}
	}()

	timer := time.NewTimer(p.cfg.Timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			p.stop()
			return nil, fmt.Errorf("read from pose worker: %w", r.err)
		}
		return decodeResponse(r.line, p.seq)
	case <-ctx.Done():
		p.stop()
		return nil, ctx.Err()
	case <-timer.C:
		p.stop()
		return nil, fmt.Errorf("pose worker timed out after %s", p.cfg.Timeout)
	}
}

func (p *Provider) start() error {
	if p.cfg.Command == "" {
		return errors.New("no pose worker command configured")
	}

	cmd := exec.Command(p.cfg.Command, p.cfg.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.cfg.Command, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxResponseSize)

	p.cmd = cmd
	p.stdin = stdin
	p.stdout = scanner

	go p.logStderr(stderr)
	go func() {
		if err := cmd.Wait(); err != nil {
			p.logger.Warn("pose worker exited", zap.Int("pid", cmd.Process.Pid), zap.Error(err))
		}
	}()

	p.logger.Info("pose worker started", zap.String("command", p.cfg.Command), zap.Int("pid", cmd.Process.Pid))
	return nil
}

func (p *Provider) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.logger.Debug("pose worker", zap.String("stderr", scanner.Text()))
	}
}

// stop kills the worker; the next Detect starts a fresh one.
func (p *Provider) stop() {
	if p.cmd == nil {
		return
	}
	p.stdin.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.cmd = nil
	p.stdin = nil
	p.stdout = nil
}

func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stop()
	return nil
}
