package services

import (
	"context"
	"fmt"
	"log/slog"

	"taskify/backend/internal/monitoring"
)

type SagaState string

const (
	StatePending      SagaState = "PENDING"
	StateRemoteSynced SagaState = "REMOTE_SYNCED"
	StateDone         SagaState = "DONE"
	StateFailed       SagaState = "FAILED"
)

type StepFunc func(ctx context.Context) error

type sagaStep struct {
	name       string
	remote     bool
	action     StepFunc
	compensate StepFunc
}

// Saga runs the local and remote writes of one sync operation in order.
// When a step fails, the compensations of the steps that already
// completed run in reverse order and the step's error is returned.
// Nothing is retried.
type Saga struct {
	kind    string
	state   SagaState
	steps   []sagaStep
	logger  *slog.Logger
	metrics *monitoring.SyncMetrics
}

func NewSaga(kind string, logger *slog.Logger, metrics *monitoring.SyncMetrics) *Saga {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saga{
		kind:    kind,
		state:   StatePending,
		logger:  logger.With("operation", kind),
		metrics: metrics,
	}
}

// Remote adds a step that writes to the DAV server. Its success moves the
// saga to REMOTE_SYNCED.
func (s *Saga) Remote(name string, action, compensate StepFunc) *Saga {
	s.steps = append(s.steps, sagaStep{name: name, remote: true, action: action, compensate: compensate})
	return s
}

func (s *Saga) Local(name string, action, compensate StepFunc) *Saga {
	s.steps = append(s.steps, sagaStep{name: name, action: action, compensate: compensate})
	return s
}

func (s *Saga) State() SagaState {
	return s.state
}

func (s *Saga) Run(ctx context.Context) error {
	var done []sagaStep

	for _, step := range s.steps {
		if err := step.action(ctx); err != nil {
			s.state = StateFailed
			s.logger.Error("sync step failed", "step", step.name, "error", err)

			compensated := s.compensate(ctx, done)
			switch {
			case len(done) == 0:
				s.record("failed")
			case compensated:
				s.record("compensated")
			default:
				s.record("compensation_failed")
			}
			return fmt.Errorf("%s: %w", step.name, err)
		}

		done = append(done, step)
		if step.remote {
			s.state = StateRemoteSynced
		}
		s.logger.Debug("sync step done", "step", step.name, "state", string(s.state))
	}

	s.state = StateDone
	s.record("done")
	return nil
}

// compensate reports whether every compensation succeeded. It keeps going
// after a failed compensation so later rollbacks still get a chance.
func (s *Saga) compensate(ctx context.Context, done []sagaStep) bool {
	// The request may already be cancelled; rollbacks still have to run.
	ctx = context.WithoutCancel(ctx)

	failed := 0
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.compensate == nil {
			continue
		}
		if err := step.compensate(ctx); err != nil {
			failed++
			s.logger.Error("compensation failed", "step", step.name, "error", err)
			continue
		}
		s.logger.Info("compensation applied", "step", step.name)
	}
	return failed == 0
}

func (s *Saga) record(outcome string) {
	if s.metrics != nil {
		s.metrics.Record(s.kind, outcome)
	}
}
