package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Source opens one continuous PCM stream from an audio input. The stream stays
// open for the whole session; only segment finalization restarts.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FFmpegSource captures the microphone through an ffmpeg child process that
// writes raw s16le PCM to stdout.
type FFmpegSource struct {
	Binary      string
	InputFormat string
	Device      string
	Format      Format
	StopTimeout time.Duration
}

// DefaultInput returns the ffmpeg input format and device for the platform.
func DefaultInput(goos string) (format, device string) {
	switch goos {
	case "darwin":
		return "avfoundation", ":default"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

func NewFFmpegSource(binary, inputFormat, device string, format Format) *FFmpegSource {
	defFormat, defDevice := DefaultInput(runtime.GOOS)
	if binary == "" {
		binary = "ffmpeg"
	}
	if inputFormat == "" {
		inputFormat = defFormat
	}
	if device == "" {
		device = defDevice
	}
	return &FFmpegSource{
		Binary:      binary,
		InputFormat: inputFormat,
		Device:      device,
		Format:      format,
		StopTimeout: 3 * time.Second,
	}
}

// Args builds the ffmpeg command line.
func (s *FFmpegSource) Args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", s.InputFormat,
		"-i", s.Device,
		"-ac", strconv.Itoa(s.Format.Channels),
		"-ar", strconv.Itoa(s.Format.SampleRate),
		"-acodec", "pcm_s" + strconv.Itoa(s.Format.BitDepth) + "le",
		"-f", "s" + strconv.Itoa(s.Format.BitDepth) + "le",
		"pipe:1",
	}
}

// CheckFFmpeg reports whether the ffmpeg binary can be found.
func (s *FFmpegSource) CheckFFmpeg() error {
	if _, err := exec.LookPath(s.Binary); err != nil {
		return fmt.Errorf("%w: %s not found in PATH", ErrCaptureUnavailable, s.Binary)
	}
	return nil
}

func (s *FFmpegSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bin, err := exec.LookPath(s.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH", ErrCaptureUnavailable, s.Binary)
	}

	// Lifetime is owned by the returned stream, not by ctx.
	cmd := exec.Command(bin, s.Args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderr := &tailWriter{limit: 2048}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting ffmpeg: %v", ErrCaptureUnavailable, err)
	}

	return &ffmpegStream{
		cmd:         cmd,
		stdout:      stdout,
		stderr:      stderr,
		stopTimeout: s.StopTimeout,
		exited:      make(chan struct{}),
	}, nil
}

type ffmpegStream struct {
	cmd         *exec.Cmd
	stdout      io.ReadCloser
	stderr      *tailWriter
	stopTimeout time.Duration

	waitOnce  sync.Once
	closeOnce sync.Once
	closing   atomic.Bool
	exited    chan struct{}
	waitErr   error
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if err != nil && errors.Is(err, io.EOF) {
		// All reads are done once stdout hits EOF, so Wait is safe here.
		s.waitOnce.Do(func() {
			s.waitErr = s.cmd.Wait()
			close(s.exited)
		})
		if s.waitErr != nil && !s.interrupted() {
			return n, fmt.Errorf("ffmpeg exited: %v: %s", s.waitErr, s.stderr.String())
		}
	}
	return n, err
}

// Close asks ffmpeg to flush and exit; the reader observes EOF afterwards.
func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		if s.cmd.Process == nil {
			return
		}
		if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
			_ = s.cmd.Process.Kill()
			return
		}
		go func() {
			select {
			case <-s.exited:
			case <-time.After(s.stopTimeout):
				_ = s.cmd.Process.Kill()
			}
		}()
	})
	return nil
}

// interrupted reports whether the exit was requested through Close, in which
// case a non-zero exit status is expected and not a capture fault.
func (s *ffmpegStream) interrupted() bool {
	return s.closing.Load()
}

// tailWriter keeps the last limit bytes written to it.
type tailWriter struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	if over := len(w.buf) - w.limit; over > 0 {
		w.buf = w.buf[over:]
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.TrimSpace(string(w.buf))
}
