package scan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrWorkflowActive is returned when a new workflow is requested while
// another one is still live. The client runs exactly one scan session at
// a time.
var ErrWorkflowActive = errors.New("another scan workflow is active")

// ErrWorkflowNotFound is returned for unknown workflow IDs.
var ErrWorkflowNotFound = errors.New("scan workflow not found")

// Manager routes events to live workflow controllers and enforces the
// one-active-session invariant.
type Manager struct {
	gateway   Gateway
	extractor Extractor
	logger    *slog.Logger
	timeout   time.Duration

	mu          sync.Mutex
	controllers map[string]*Controller
}

// ManagerConfig configures the workflow manager.
type ManagerConfig struct {
	Gateway        Gateway
	Extractor      Extractor
	Logger         *slog.Logger
	ExtractTimeout time.Duration
}

// NewManager creates a workflow manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		gateway:     cfg.Gateway,
		extractor:   cfg.Extractor,
		logger:      cfg.Logger,
		timeout:     cfg.ExtractTimeout,
		controllers: make(map[string]*Controller),
	}
}

// Start creates a new workflow for the named book. A workflow that is
// still interactive blocks new ones; completed workflows are closed
// implicitly (their sessions stay completed) and closed ones are pruned.
func (m *Manager) Start(ctx context.Context, bookName string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, ctrl := range m.controllers {
		switch ctrl.Snapshot().State.Phase {
		case PhaseClosed:
			delete(m.controllers, id)
		case PhaseComplete:
			if err := ctrl.Close(ctx); err != nil {
				m.logger.Warn("failed to close completed workflow", "workflow_id", id, "error", err)
			}
			delete(m.controllers, id)
		default:
			return nil, ErrWorkflowActive
		}
	}

	ctrl := NewController(ControllerConfig{
		BookName:       bookName,
		Gateway:        m.gateway,
		Extractor:      m.extractor,
		Logger:         m.logger,
		ExtractTimeout: m.timeout,
	})
	m.controllers[ctrl.ID()] = ctrl
	m.logger.Info("scan workflow created", "workflow_id", ctrl.ID(), "book", bookName)
	return ctrl, nil
}

// Get returns the controller for a workflow ID.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctrl, ok := m.controllers[id]
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	return ctrl, nil
}

// List returns snapshots of all live workflows.
func (m *Manager) List() []Snapshot {
	m.mu.Lock()
	ctrls := make([]*Controller, 0, len(m.controllers))
	for _, ctrl := range m.controllers {
		ctrls = append(ctrls, ctrl)
	}
	m.mu.Unlock()

	snaps := make([]Snapshot, 0, len(ctrls))
	for _, ctrl := range ctrls {
		snaps = append(snaps, ctrl.Snapshot())
	}
	return snaps
}

// Close dismisses a workflow and removes it from the manager.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	ctrl, ok := m.controllers[id]
	if ok {
		delete(m.controllers, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrWorkflowNotFound
	}
	return ctrl.Close(ctx)
}

// Shutdown closes every live workflow, cancelling unfinished sessions.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	ctrls := make([]*Controller, 0, len(m.controllers))
	for _, ctrl := range m.controllers {
		ctrls = append(ctrls, ctrl)
	}
	m.controllers = make(map[string]*Controller)
	m.mu.Unlock()

	for _, ctrl := range ctrls {
		if err := ctrl.Close(ctx); err != nil {
			m.logger.Warn("failed to close workflow during shutdown",
				"workflow_id", ctrl.ID(), "error", err)
		}
	}
}
