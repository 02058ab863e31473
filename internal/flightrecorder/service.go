// Package flightrecorder keeps a rolling execution trace in memory and writes it to disk when a request runs past
// its deadline.
package flightrecorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/trace"
	"sync/atomic"
	"time"

	"github.com/myrjola/vitalplan/internal/errors"
)

const (
	defaultMinAge   = 2 * time.Minute
	defaultMaxBytes = 32 << 20
	defaultCooldown = 15 * time.Minute
)

var ErrNotDirectory = errors.NewSentinel("traces path is not a directory")

// Recorder writes at most one trace per cooldown period.
type Recorder struct {
	logger    *slog.Logger
	recorder  *trace.FlightRecorder
	dir       string
	cooldown  time.Duration
	lastWrite atomic.Int64
	now       func() time.Time
}

// Config tunes a Recorder. Zero values get defaults.
type Config struct {
	Dir      string
	MinAge   time.Duration
	MaxBytes uint64
	Cooldown time.Duration
}

// New creates a Recorder writing traces to cfg.Dir, creating the directory when missing.
func New(cfg Config, logger *slog.Logger) (*Recorder, error) {
	stat, err := os.Stat(cfg.Dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err = os.MkdirAll(cfg.Dir, 0o700); err != nil { //nolint:mnd // owner only.
			return nil, errors.Wrap(err, "create traces directory", slog.String("dir", cfg.Dir))
		}
	case err != nil:
		return nil, errors.Wrap(err, "stat traces directory", slog.String("dir", cfg.Dir))
	case !stat.IsDir():
		return nil, errors.Wrap(ErrNotDirectory, "check traces directory", slog.String("dir", cfg.Dir))
	}

	if cfg.MinAge <= 0 {
		cfg.MinAge = defaultMinAge
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	return &Recorder{
		logger:    logger,
		recorder:  trace.NewFlightRecorder(trace.FlightRecorderConfig{MinAge: cfg.MinAge, MaxBytes: cfg.MaxBytes}),
		dir:       cfg.Dir,
		cooldown:  cfg.Cooldown,
		lastWrite: atomic.Int64{},
		now:       time.Now,
	}, nil
}

func (r *Recorder) Start(ctx context.Context) error {
	if err := r.recorder.Start(); err != nil {
		return fmt.Errorf("start flight recorder: %w", err)
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder started",
		slog.String("dir", r.dir), slog.Duration("cooldown", r.cooldown))
	return nil
}

func (r *Recorder) Stop(ctx context.Context) {
	r.recorder.Stop()
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder stopped")
}

// Capture writes the buffered trace to a file named after reason. It returns the file path, or an empty string
// when the cooldown skipped the capture or writing failed.
func (r *Recorder) Capture(ctx context.Context, reason string) string {
	now := r.now()
	last := r.lastWrite.Load()
	if last != 0 && now.Sub(time.Unix(0, last)) < r.cooldown {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "skipped trace capture during cooldown",
			slog.Time("last_capture", time.Unix(0, last)))
		return ""
	}
	if !r.lastWrite.CompareAndSwap(last, now.UnixNano()) {
		return ""
	}

	path := filepath.Join(r.dir, fmt.Sprintf("%s-%s.trace", reason, now.UTC().Format("20060102-150405")))
	written, err := r.write(path)
	if err != nil {
		r.logger.LogAttrs(ctx, slog.LevelError, "failed to capture trace", errors.SlogError(err))
		return ""
	}
	r.logger.LogAttrs(ctx, slog.LevelWarn, "captured trace",
		slog.String("file", path), slog.Int64("bytes", written))
	return path
}

func (r *Recorder) write(path string) (_ int64, err error) {
	file, err := os.Create(path) //nolint:gosec // path is built from a constant reason and a timestamp.
	if err != nil {
		return 0, errors.Wrap(err, "create trace file", slog.String("file", path))
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()
	written, err := r.recorder.WriteTo(file)
	if err != nil {
		return 0, errors.Wrap(err, "write trace", slog.String("file", path))
	}
	return written, nil
}
