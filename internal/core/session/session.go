// Package session implements the flow session state machine that tracks
// progress through one scenario's steps.
//
// States move Idle -> Playing -> (Paused | Completed) -> Idle. Recording a
// step result and advancing the index happen under one lock, so an observer
// never sees the index ahead of the recorded steps.
package session

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stepflow/stepflow/internal/core/plugin"
	"github.com/stepflow/stepflow/internal/infrastructure/metrics"
)

// Status is the lifecycle state of a session
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPlaying   Status = "playing"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// StepRecord is the captured outcome of one executed step
type StepRecord struct {
	NodeID       string           `json:"nodeId,omitempty" msgpack:"nodeId"`
	Result       interface{}      `json:"result,omitempty" msgpack:"result"`
	Conversation []plugin.Message `json:"conversation,omitempty" msgpack:"conversation"`
	CompletedAt  time.Time        `json:"completedAt,omitempty" msgpack:"completedAt"`
}

// Snapshot is the serialized form of a session. The first three fields are
// the interchange shape; the rest let a cached session resume.
type Snapshot struct {
	IsPlaying        bool         `json:"isPlaying" msgpack:"isPlaying"`
	CurrentStepIndex int          `json:"currentStepIndex" msgpack:"currentStepIndex"`
	TemporarySteps   []StepRecord `json:"temporarySteps" msgpack:"temporarySteps"`
	ScenarioID       string       `json:"scenarioId,omitempty" msgpack:"scenarioId"`
	Status           Status       `json:"status,omitempty" msgpack:"status"`
	StepCount        int          `json:"stepCount,omitempty" msgpack:"stepCount"`
}

// Machine is the flow session. One Machine is owned per runtime.
type Machine struct {
	mu         sync.RWMutex
	status     Status
	scenarioID string
	index      int
	stepCount  int
	steps      []StepRecord
	logger     *zap.Logger
}

// NewMachine creates an idle session
func NewMachine(logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{status: StatusIdle, logger: logger.Named("session")}
}

// Start begins playing scenarioID with stepCount steps. A paused session
// for the same scenario resumes at its recorded index; anything else starts
// fresh, discarding the steps of a session for another scenario.
func (m *Machine) Start(scenarioID string, stepCount int) (resumed bool, err error) {
	if scenarioID == "" {
		return false, ErrNoScenario
	}
	if stepCount <= 0 {
		return false, ErrEmptyScenario
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == StatusPlaying && m.scenarioID == scenarioID {
		return false, ErrAlreadyPlaying
	}

	if m.status == StatusPaused && m.scenarioID == scenarioID && len(m.steps) > 0 && m.index < stepCount {
		m.status = StatusPlaying
		m.stepCount = stepCount
		m.logger.Info("session resumed",
			zap.String("scenarioID", scenarioID),
			zap.Int("stepIndex", m.index),
			zap.Int("recorded", len(m.steps)))
		metrics.SessionTransition("resume")
		metrics.AddActiveSessions(1)
		return true, nil
	}

	if m.scenarioID != "" && m.scenarioID != scenarioID && len(m.steps) > 0 {
		m.logger.Info("discarding stale session",
			zap.String("scenarioID", m.scenarioID),
			zap.Int("recorded", len(m.steps)))
		metrics.SessionTransition("discard")
	}
	if m.status == StatusPlaying {
		metrics.AddActiveSessions(-1)
	}

	m.scenarioID = scenarioID
	m.stepCount = stepCount
	m.index = 0
	m.steps = []StepRecord{}
	m.status = StatusPlaying
	m.logger.Info("session started", zap.String("scenarioID", scenarioID), zap.Int("steps", stepCount))
	metrics.SessionTransition("start")
	metrics.AddActiveSessions(1)
	return false, nil
}

// RecordStepResult stores the result of the step at index and advances in
// the same critical section. index must be the current step; results for
// any other step are rejected with ErrStaleStep. It reports whether the
// session completed.
func (m *Machine) RecordStepResult(index int, rec StepRecord) (completed bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusPlaying {
		return false, ErrNotPlaying
	}
	if index != m.index {
		return false, fmt.Errorf("%w: got %d, current is %d", ErrStaleStep, index, m.index)
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now().UTC()
	}
	for len(m.steps) <= index {
		m.steps = append(m.steps, StepRecord{})
	}
	m.steps[index] = rec
	metrics.SessionTransition("record")
	return m.advanceLocked(), nil
}

// Advance moves to the next step without recording a result
func (m *Machine) Advance() (completed bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusPlaying {
		return false, ErrNotPlaying
	}
	return m.advanceLocked(), nil
}

func (m *Machine) advanceLocked() bool {
	if m.index+1 < m.stepCount {
		m.index++
		return false
	}
	m.status = StatusCompleted
	m.index = 0
	m.logger.Info("session completed",
		zap.String("scenarioID", m.scenarioID),
		zap.Int("recorded", len(m.steps)))
	metrics.SessionTransition("complete")
	metrics.AddActiveSessions(-1)
	return true
}

// Stop ends a playing session. With persist the index and recorded steps
// are kept for a later Start; without it they are discarded. Stop(false)
// also discards a paused or completed session.
func (m *Machine) Stop(persist bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if persist {
		if m.status != StatusPlaying {
			return ErrNotPlaying
		}
		m.status = StatusPaused
		m.logger.Info("session paused",
			zap.String("scenarioID", m.scenarioID),
			zap.Int("stepIndex", m.index))
		metrics.SessionTransition("pause")
		metrics.AddActiveSessions(-1)
		return nil
	}

	if m.status == StatusPlaying {
		metrics.AddActiveSessions(-1)
	}
	m.resetLocked()
	metrics.SessionTransition("stop")
	return nil
}

// Reset returns the machine to idle
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusPlaying {
		metrics.AddActiveSessions(-1)
	}
	m.resetLocked()
}

func (m *Machine) resetLocked() {
	m.status = StatusIdle
	m.scenarioID = ""
	m.index = 0
	m.stepCount = 0
	m.steps = []StepRecord{}
}

// SetStepCount updates the number of steps after the scenario changed.
// A session whose index no longer fits is completed.
func (m *Machine) SetStepCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepCount = n
	if m.status == StatusPlaying && m.index >= n {
		m.index = n - 1
		if n <= 0 {
			m.index = 0
		}
		m.advanceLocked()
	}
}

// Status returns the current state
func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsPlaying reports whether a step is being executed
func (m *Machine) IsPlaying() bool {
	return m.Status() == StatusPlaying
}

// ScenarioID returns the scenario the session belongs to, or ""
func (m *Machine) ScenarioID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scenarioID
}

// CurrentStepIndex returns the index of the current step
func (m *Machine) CurrentStepIndex() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index
}

// Steps returns a copy of the recorded steps
func (m *Machine) Steps() []StepRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copySteps(m.steps)
}

// Snapshot captures the session for caching or export
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		IsPlaying:        m.status == StatusPlaying,
		CurrentStepIndex: m.index,
		TemporarySteps:   copySteps(m.steps),
		ScenarioID:       m.scenarioID,
		Status:           m.status,
		StepCount:        m.stepCount,
	}
}

// Restore loads a snapshot. A snapshot taken while playing is restored as
// paused so that the next Start resumes it.
func (m *Machine) Restore(s Snapshot) error {
	if s.CurrentStepIndex < 0 {
		return fmt.Errorf("%w: negative step index %d", ErrInvalidSnapshot, s.CurrentStepIndex)
	}
	status := s.Status
	switch status {
	case "":
		status = StatusIdle
		if s.IsPlaying || len(s.TemporarySteps) > 0 {
			status = StatusPaused
		}
	case StatusPlaying:
		status = StatusPaused
	case StatusIdle, StatusPaused, StatusCompleted:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidSnapshot, s.Status)
	}
	if status == StatusPaused && s.ScenarioID == "" {
		status = StatusIdle
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusPlaying {
		metrics.AddActiveSessions(-1)
	}
	if status == StatusIdle {
		m.resetLocked()
		return nil
	}
	m.status = status
	m.scenarioID = s.ScenarioID
	m.index = s.CurrentStepIndex
	m.stepCount = s.StepCount
	m.steps = copySteps(s.TemporarySteps)
	m.logger.Debug("session restored",
		zap.String("scenarioID", s.ScenarioID),
		zap.String("status", string(status)),
		zap.Int("stepIndex", s.CurrentStepIndex))
	return nil
}

func copySteps(in []StepRecord) []StepRecord {
	out := make([]StepRecord, len(in))
	copy(out, in)
	return out
}
