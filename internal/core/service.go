package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunTimeout is the maximum duration of one conversion run.
var RunTimeout = 30 * time.Minute

// ServiceConfig tunes a Service.
type ServiceConfig struct {
	// DispatchInterval staggers row starts. A negative value picks
	// DefaultDispatchInterval; zero starts every row at once.
	DispatchInterval time.Duration

	// MaxConcurrentRuns and MaxWait size the RunLimiter; zero picks its
	// defaults.
	MaxConcurrentRuns int
	MaxWait           time.Duration

	// MaxFileSize rejects larger exports; zero accepts any size.
	MaxFileSize int64
}

// Service runs conversions on behalf of browser sessions. Each session owns
// one Controller; a new run on a session supersedes that session's previous
// run. Finished runs are saved to the RunStore.
type Service struct {
	source  CardSource
	store   RunStore
	limiter *RunLimiter
	cfg     ServiceConfig
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	ctrl     *Controller
	lastUsed time.Time
}

// NewService creates a Service resolving cards against source. store may be
// nil, in which case runs are not kept.
func NewService(source CardSource, store RunStore, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DispatchInterval < 0 {
		cfg.DispatchInterval = DefaultDispatchInterval
	}
	return &Service{
		source:   source,
		store:    store,
		limiter:  NewRunLimiter(cfg.MaxConcurrentRuns, cfg.MaxWait),
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// StartRun begins converting the export read from input on the given
// session and returns the run id immediately. Use Snapshot or Subscribe to
// follow it.
//
// Runs that fail before any lookup (no input, unreadable or oversized
// input) fail synchronously: the session's state moves to Failed and the
// error is returned along with the run id.
func (s *Service) StartRun(ctx context.Context, sessionID, fileName string, input io.Reader) (string, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	runID := uuid.New().String()
	ctrl := s.controller(sessionID)
	run := ctrl.Begin(runID)
	started := time.Now()

	if input == nil {
		defer s.limiter.Release()
		_, err := run.Execute(ctx, nil)
		s.save(ctx, sessionID, fileName, started, BatchResult{}, err, runID)
		return runID, err
	}

	data, err := s.readAll(input)
	if err != nil {
		defer s.limiter.Release()
		_, err = run.Execute(ctx, failingReader{err})
		s.save(ctx, sessionID, fileName, started, BatchResult{}, err, runID)
		return runID, err
	}

	go func() {
		defer s.limiter.Release()

		runCtx, cancel := context.WithTimeout(context.Background(), RunTimeout)
		defer cancel()

		result, err := run.Execute(runCtx, bytes.NewReader(data))
		if errors.Is(err, ErrSuperseded) {
			s.logger.Info("run superseded", "run_id", runID, "session", sessionID)
			return
		}
		s.save(runCtx, sessionID, fileName, started, result, err, runID)
	}()

	return runID, nil
}

// Snapshot returns the state of the session's latest run. Unknown sessions
// are idle.
func (s *Service) Snapshot(sessionID string) Snapshot {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()

	if !ok {
		return Snapshot{State: StateIdle, Progress: Progress{State: StateIdle}}
	}
	return sess.ctrl.Snapshot()
}

// Subscribe returns progress updates for the session's current run.
// See Controller.Subscribe.
func (s *Service) Subscribe(sessionID string) <-chan Progress {
	return s.controller(sessionID).Subscribe()
}

// ListRuns returns the session's most recent finished runs, newest first.
func (s *Service) ListRuns(ctx context.Context, sessionID string, limit int) ([]RunRecord, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListRuns(ctx, sessionID, limit)
}

// GetRun returns a finished run owned by the session.
func (s *Service) GetRun(ctx context.Context, sessionID, runID string) (RunRecord, error) {
	if s.store == nil {
		return RunRecord{}, ErrRunNotFound
	}
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return RunRecord{}, err
	}
	if run.SessionID != sessionID {
		return RunRecord{}, ErrRunNotFound
	}
	return run, nil
}

// LimiterStatus reports run slot occupancy.
func (s *Service) LimiterStatus() RunLimiterStatus {
	return s.limiter.Status()
}

// Wait blocks until every active run has finished or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) controller(sessionID string) *Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		logger := s.logger.With("session", sessionID)
		sess = &session{ctrl: NewController(s.source, s.cfg.DispatchInterval, logger)}
		s.sessions[sessionID] = sess
	}
	sess.lastUsed = time.Now()
	return sess.ctrl
}

// pruneSessions forgets sessions idle for longer than maxIdle whose
// controller is not running.
func (s *Service) pruneSessions(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, sess := range s.sessions {
		if sess.lastUsed.After(cutoff) {
			continue
		}
		if st := sess.ctrl.Snapshot().State; st == StateValidating || st == StateRunning {
			continue
		}
		delete(s.sessions, id)
		pruned++
	}
	return pruned
}

func (s *Service) readAll(r io.Reader) ([]byte, error) {
	if s.cfg.MaxFileSize <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("file too large: exceeds %d bytes", s.cfg.MaxFileSize)
	}
	return data, nil
}

// save records a finished run. Storage errors are logged, not returned.
func (s *Service) save(ctx context.Context, sessionID, fileName string, started time.Time, result BatchResult, runErr error, runID string) {
	if s.store == nil || errors.Is(runErr, ErrSuperseded) {
		return
	}

	rec := RunRecord{
		ID:         runID,
		SessionID:  sessionID,
		FileName:   fileName,
		State:      StateCompleted,
		Variant:    result.Variant,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
		Stats:      result.Stats,
		Records:    result.Records,
		Missing:    result.Missing,
	}
	if runErr != nil {
		rec.State = StateFailed
		rec.Records, rec.Missing, rec.Stats = nil, nil, Stats{}
		rec.Error = NewErrorInfo(runErr)
	}

	if err := s.store.SaveRun(ctx, rec); err != nil {
		s.logger.Error("failed to save run", "run_id", runID, "error", err)
	}
}

// failingReader fails every read with err.
type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }
