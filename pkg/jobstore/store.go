// Package jobstore manages the on-disk staging area for community
// detection jobs.
//
// Each job owns a directory <base>/<job_id>/ holding the uploaded edge
// list and whatever transient output the external tool writes next to it.
// The directory exists only while its job is live: it is created during
// submission, consumed by the worker, and removed (best effort) the moment
// the job reaches a terminal state.
package jobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// EdgeFileName is the staged input filename inside a job directory.
const EdgeFileName = "edgefile.txt"

// Job directories are group writable so an out-of-process tool running
// under a shared group can write its output next to the input.
const dirMode = 0o775

// Config controls the store's filesystem behavior.
type Config struct {
	// BasePath is the directory under which job directories are created.
	BasePath string

	// DirWaitCount is the number of existence checks performed after
	// creating a job directory before giving up. Defends against
	// eventually-consistent network mounts.
	// Default: 10
	DirWaitCount int

	// DirWaitInterval is the sleep between existence checks.
	// Default: 100ms
	DirWaitInterval time.Duration

	// InputWaitCount bounds the worker-side wait for the staged input
	// file, which may race with submission across process boundaries.
	// Default: 60
	InputWaitCount int

	// InputWaitInterval is the sleep between input checks.
	// Default: 100ms
	InputWaitInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.DirWaitCount <= 0 {
		c.DirWaitCount = 10
	}
	if c.DirWaitInterval <= 0 {
		c.DirWaitInterval = 100 * time.Millisecond
	}
	if c.InputWaitCount <= 0 {
		c.InputWaitCount = 60
	}
	if c.InputWaitInterval <= 0 {
		c.InputWaitInterval = 100 * time.Millisecond
	}
}

// Store creates, stages, and removes per-job directories.
type Store struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.BasePath) == "" {
		return nil, fmt.Errorf("job base path is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Store{cfg: cfg, logger: logger}, nil
}

func (s *Store) BasePath() string {
	return s.cfg.BasePath
}

func (s *Store) JobDir(jobID string) string {
	return filepath.Join(s.cfg.BasePath, jobID)
}

func (s *Store) EdgeFilePath(jobID string) string {
	return filepath.Join(s.JobDir(jobID), EdgeFileName)
}

// CreateJobDir creates the job directory and polls until it is visible.
//
// The poll is a bounded consistency wait, not an indefinite spin: after
// DirWaitCount checks the creation is declared failed.
func (s *Store) CreateJobDir(jobID string) (string, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return "", fmt.Errorf("job id is required")
	}

	dir := s.JobDir(jobID)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}
	// MkdirAll applies the process umask; force the group-writable bits.
	if err := os.Chmod(dir, dirMode); err != nil {
		return "", fmt.Errorf("chmod job dir: %w", err)
	}

	for i := 0; ; i++ {
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		}
		if i >= s.cfg.DirWaitCount {
			return "", fmt.Errorf("job dir %s did not appear after %d checks", dir, s.cfg.DirWaitCount)
		}
		s.logger.Debug("waiting for job dir to appear", zap.String("dir", dir))
		time.Sleep(s.cfg.DirWaitInterval)
	}
}

// StageInput writes the uploaded edge list into the job directory.
//
// The write goes to a temporary name and is renamed into place only after
// a successful flush, so a concurrent reader of EdgeFileName sees either
// the complete file or no file at all.
func (s *Store) StageInput(jobID string, r io.Reader) (string, error) {
	final := s.EdgeFilePath(jobID)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, dirMode)
	if err != nil {
		return "", fmt.Errorf("create temp edge file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write temp edge file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("flush temp edge file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close temp edge file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename edge file: %w", err)
	}
	return final, nil
}

// WaitForInput blocks until the staged edge file is visible or the bounded
// wait is exhausted. Submission and execution may run on different hosts
// sharing the base path, so the file can lag the directory.
func (s *Store) WaitForInput(ctx context.Context, jobID string) (string, error) {
	path := s.EdgeFilePath(jobID)
	for i := 0; ; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		if i >= s.cfg.InputWaitCount {
			return "", fmt.Errorf("edge file %s did not appear after %d checks", path, s.cfg.InputWaitCount)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.cfg.InputWaitInterval):
		}
	}
}

// RemoveJobDir recursively deletes the job directory.
//
// Removal is best effort: by the time cleanup runs the job's outcome has
// already been decided, so a failure here is logged and swallowed.
func (s *Store) RemoveJobDir(jobID string) {
	dir := s.JobDir(jobID)
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("failed to remove job dir",
			zap.String("dir", dir),
			zap.Error(err))
	}
}
