// Package jobqueue owns the asynchronous job lifecycle: submission,
// queueing, serial execution by workers, state transitions, cancellation,
// and the guaranteed cleanup of each job's staging directory.
//
// The HTTP layer and the workers communicate only through this package's
// record table; neither holds references into the other.
package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3leaps/commundetect/pkg/jobstore"
	"github.com/3leaps/commundetect/pkg/runner"
	"github.com/3leaps/commundetect/pkg/treecodec"
)

// ErrNotFound is returned for unknown, expired, or already-cleaned jobs.
var ErrNotFound = errors.New("job not found")

// ErrQueueFull is returned when the submission queue cannot accept work.
var ErrQueueFull = errors.New("job queue is full")

// The external tool writes its tree next to the staged input, named after
// the input's basename.
const treeFileName = "edgefile.tree"

// Config controls the manager's execution behavior.
type Config struct {
	// Workers is the number of worker goroutines. Each worker executes
	// jobs strictly serially to bound resource contention from the
	// external tool.
	// Default: 1
	Workers int

	// QueueSize is the submission queue capacity.
	// Default: 64
	QueueSize int

	// Command is the external tool binary or wrapper script.
	// Default: "infomap"
	Command string

	// ExecTimeout is the hard wall-clock budget per job.
	// Default: 120s
	ExecTimeout time.Duration

	// RecordTTL is how long terminal job records stay queryable before
	// the sweeper drops them. Expired ids report ErrNotFound.
	// Default: 1h
	RecordTTL time.Duration

	// SweepInterval is how often expired records are collected.
	// Default: 1m
	SweepInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if strings.TrimSpace(c.Command) == "" {
		c.Command = "infomap"
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = 120 * time.Second
	}
	if c.RecordTTL <= 0 {
		c.RecordTTL = time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
}

// SubmitRequest carries one accepted submission into the queue.
type SubmitRequest struct {
	Algorithm   string
	Directed    bool
	RootNetwork string

	// EdgeList is the uploaded edge-list content. It is staged to disk
	// synchronously during Submit.
	EdgeList io.Reader
}

// Manager runs the job state machine.
type Manager struct {
	cfg    Config
	store  *jobstore.Store
	logger *zap.Logger
	inst   Instrumentation

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	jobs    map[string]*Job
	cancels map[string]context.CancelFunc

	queue chan string
}

// New creates a manager. Call Start before submitting work and Stop to
// drain it. inst may be nil.
func New(cfg Config, store *jobstore.Store, logger *zap.Logger, inst Instrumentation) *Manager {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		inst:    inst,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]*Job),
		cancels: make(map[string]context.CancelFunc),
		queue:   make(chan string, cfg.QueueSize),
	}
}

// Start launches the workers and the record sweeper.
func (m *Manager) Start() {
	for i := 0; i < m.cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	m.wg.Add(1)
	go m.sweeper()
}

// Stop cancels running jobs and waits for the workers to exit or ctx to
// expire, whichever comes first.
func (m *Manager) Stop(ctx context.Context) error {
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit accepts a job: creates and verifies its directory, stages the
// edge list atomically, registers the record, and enqueues it.
//
// Any failure here happens before the caller has a job id, so it
// propagates as an error (an HTTP 500 at the submission endpoint) and
// leaves nothing dangling.
func (m *Manager) Submit(req SubmitRequest) (string, error) {
	if req.EdgeList == nil {
		return "", fmt.Errorf("edge list is required")
	}

	id := uuid.New().String()

	if _, err := m.store.CreateJobDir(id); err != nil {
		return "", err
	}
	if _, err := m.store.StageInput(id, req.EdgeList); err != nil {
		m.store.RemoveJobDir(id)
		return "", err
	}

	job := &Job{
		ID:          id,
		Algorithm:   strings.TrimSpace(req.Algorithm),
		Directed:    req.Directed,
		RootNetwork: req.RootNetwork,
		State:       StatePending,
		Message:     "task submitted",
		CreatedAt:   time.Now().UTC(),
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	select {
	case m.queue <- id:
	default:
		m.mu.Lock()
		delete(m.jobs, id)
		m.mu.Unlock()
		m.store.RemoveJobDir(id)
		return "", ErrQueueFull
	}

	if m.inst != nil {
		m.inst.JobSubmitted()
	}
	m.logger.Info("job submitted",
		zap.String("job_id", id),
		zap.String("algorithm", job.Algorithm),
		zap.Bool("directed", job.Directed))
	return id, nil
}

// Get returns a snapshot of the job record.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *job, nil
}

// Cancel revokes a queued job or terminates a running one. Once a job is
// terminal and cleaned up, cancellation reports ErrNotFound.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok || job.State.Terminal() {
		m.mu.Unlock()
		return ErrNotFound
	}

	wasPending := job.State == StatePending
	now := time.Now().UTC()
	job.State = StateRevoked
	job.Message = "task cancelled"
	job.Result = ""
	job.EndedAt = &now
	stop := m.cancels[id]
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	if wasPending {
		// Never picked up by a worker, so the worker's cleanup path
		// will not run for it.
		m.store.RemoveJobDir(id)
	} else if m.inst != nil {
		// Only started jobs hold an active-job slot to release.
		m.inst.JobFinished(StatusError)
	}
	m.logger.Info("job cancelled", zap.String("job_id", id))
	return nil
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case id := <-m.queue:
			m.runJob(id)
		}
	}
}

// runJob executes one job end to end. The job directory is removed on
// every exit path, including panics inside the execution steps.
func (m *Manager) runJob(id string) {
	job, err := m.Get(id)
	if err != nil || job.State.Terminal() {
		// Revoked while still queued; directory is already gone.
		return
	}

	jobCtx, stop := context.WithCancel(m.ctx)
	m.mu.Lock()
	m.cancels[id] = stop
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.cancels, id)
		m.mu.Unlock()
		stop()
	}()
	defer m.store.RemoveJobDir(id)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("job execution panicked",
				zap.String("job_id", id),
				zap.Any("panic", r))
			m.finish(id, StateFailure, fmt.Sprintf("internal error: %v", r), "")
		}
	}()

	m.transition(id, StateStarted, "staging input")
	if m.inst != nil {
		m.inst.JobStarted()
	}

	if !AlgorithmSupported(job.Algorithm) {
		m.finish(id, StateFailure,
			fmt.Sprintf("algorithm %q is not supported by this service", job.Algorithm), "")
		return
	}

	edgePath, err := m.store.WaitForInput(jobCtx, id)
	if err != nil {
		if jobCtx.Err() != nil {
			// Cancelled or shutting down; the record already says so.
			return
		}
		m.finish(id, StateFailure, fmt.Sprintf("staged input never appeared: %v", err), "")
		return
	}

	zeroIndexed, err := m.scanForZeroEndpoints(edgePath)
	if err != nil {
		m.finish(id, StateFailure, fmt.Sprintf("unable to scan edge list: %v", err), "")
		return
	}

	m.transition(id, StateProcessing, "running algorithm")

	args := []string{jobstore.EdgeFileName, ".", "--tree"}
	if job.Directed {
		args = append(args, "-d")
	}
	if zeroIndexed {
		args = append(args, "-z")
	}

	res, err := runner.Run(jobCtx, runner.Spec{
		Command: m.cfg.Command,
		Args:    args,
		Workdir: m.store.JobDir(id),
		Timeout: m.cfg.ExecTimeout,
	})
	if m.isRevoked(id) {
		// Cancelled mid-run; discard whatever the tool produced.
		return
	}
	if err != nil {
		m.finish(id, StateFailure, fmt.Sprintf("unable to run algorithm: %v", err), "")
		return
	}
	if res.TimedOut {
		m.finish(id, StateFailure,
			fmt.Sprintf("algorithm did not finish within %s and was terminated", m.cfg.ExecTimeout), "")
		return
	}
	if res.ExitCode != 0 {
		m.finish(id, StateFailure,
			fmt.Sprintf("algorithm exited with code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr)), "")
		return
	}

	result, err := m.parseTree(id)
	if err != nil {
		m.finish(id, StateFailure, err.Error(), "")
		return
	}

	m.finish(id, StateSuccess, "", result)
	m.logger.Info("job finished",
		zap.String("job_id", id),
		zap.Duration("duration", res.Duration))
}

func (m *Manager) scanForZeroEndpoints(edgePath string) (bool, error) {
	f, err := os.Open(edgePath)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()
	return treecodec.HasZeroEndpoint(f)
}

func (m *Manager) parseTree(id string) (string, error) {
	path := filepath.Join(m.store.JobDir(id), treeFileName)
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("algorithm produced no tree output: %v", err)
	}
	defer func() { _ = f.Close() }()

	result, err := treecodec.Parse(f)
	if err != nil {
		return "", fmt.Errorf("unable to parse tree output: %v", err)
	}
	return result, nil
}

// transition moves a live job to a non-terminal state. Terminal jobs are
// left alone so cancellation cannot be overwritten.
func (m *Manager) transition(id string, state State, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.State.Terminal() {
		return
	}
	job.State = state
	job.Message = message
}

// finish records a terminal outcome. A job already terminal (revoked in a
// race with completion) keeps its first outcome; a cancelled job is never
// resurrected into success.
func (m *Manager) finish(id string, state State, message, result string) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok || job.State.Terminal() {
		m.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	job.State = state
	job.Message = message
	job.Result = result
	job.EndedAt = &now
	m.mu.Unlock()

	if m.inst != nil {
		m.inst.JobFinished(PublicStatus(state))
	}
	if state == StateFailure {
		m.logger.Warn("job failed",
			zap.String("job_id", id),
			zap.String("message", message))
	}
}

func (m *Manager) isRevoked(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	return ok && job.State == StateRevoked
}

// sweeper drops terminal records once they outlive RecordTTL. Swept ids
// report ErrNotFound afterwards, the same as ids that never existed.
func (m *Manager) sweeper() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sweepExpired(time.Now().UTC())
		}
	}
}

func (m *Manager) sweepExpired(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, job := range m.jobs {
		if job.State.Terminal() && job.EndedAt != nil && now.Sub(*job.EndedAt) > m.cfg.RecordTTL {
			delete(m.jobs, id)
		}
	}
}
