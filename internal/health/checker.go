package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/zsiec/mediatime/internal/logger"
)

// Status represents the health status of a component.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// DefaultCheckTimeout bounds a single check run by the Manager.
const DefaultCheckTimeout = 5 * time.Second

// Check represents a health check result.
type Check struct {
	Name        string                 `json:"name"`
	Status      Status                 `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"-"`
	DurationMS  float64                `json:"duration_ms"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// Checker is the interface that health checkers must implement.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// DegradedError marks a check that still works but not fully. Checkers
// return it to report StatusDegraded instead of StatusDown.
type DegradedError struct {
	Reason string
}

func (e *DegradedError) Error() string { return e.Reason }

// Manager runs the registered checkers and keeps their latest results.
type Manager struct {
	checkers []Checker
	results  map[string]*Check
	timeout  time.Duration
	mu       sync.RWMutex
	logger   logger.Logger
}

// NewManager creates a health check manager.
func NewManager(log logger.Logger) *Manager {
	return &Manager{
		checkers: make([]Checker, 0),
		results:  make(map[string]*Check),
		timeout:  DefaultCheckTimeout,
		logger:   log.WithField("component", "health"),
	}
}

// SetTimeout changes the per-check timeout.
func (m *Manager) SetTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.timeout = d
	}
}

// Register adds a health checker.
func (m *Manager) Register(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
	m.logger.WithField("checker", checker.Name()).Debug("Registered health checker")
}

// Checkers returns the names of the registered checkers in order.
func (m *Manager) Checkers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.checkers))
	for i, c := range m.checkers {
		names[i] = c.Name()
	}
	return names
}

// RunChecks executes all registered checks concurrently.
func (m *Manager) RunChecks(ctx context.Context) map[string]*Check {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	timeout := m.timeout
	m.mu.RUnlock()

	var wg sync.WaitGroup
	resultsChan := make(chan *Check, len(checkers))

	for _, checker := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			resultsChan <- m.run(ctx, c, timeout)
		}(checker)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make(map[string]*Check, len(checkers))
	for check := range resultsChan {
		results[check.Name] = check
		m.mu.Lock()
		m.results[check.Name] = check
		m.mu.Unlock()
	}
	return results
}

func (m *Manager) run(ctx context.Context, c Checker, timeout time.Duration) *Check {
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := c.Check(checkCtx)
	duration := time.Since(start)

	check := &Check{
		Name:        c.Name(),
		Status:      StatusOK,
		LastChecked: time.Now(),
		Duration:    duration,
		DurationMS:  float64(duration.Microseconds()) / 1000,
	}

	fields := logger.Fields{"checker": c.Name(), "duration": duration}
	var degraded *DegradedError
	switch {
	case err == nil:
		m.logger.WithFields(fields).Debug("Health check passed")
	case errors.As(err, &degraded):
		check.Status = StatusDegraded
		check.Message = degraded.Reason
		m.logger.WithFields(fields).Warn("Health check degraded")
	case errors.Is(err, context.DeadlineExceeded):
		check.Status = StatusDown
		check.Message = "Health check timed out"
		m.logger.WithFields(fields).WithError(err).Error("Health check failed")
	default:
		check.Status = StatusDown
		check.Message = err.Error()
		m.logger.WithFields(fields).WithError(err).Error("Health check failed")
	}
	return check
}

// GetResults returns copies of the latest results.
func (m *Manager) GetResults() map[string]*Check {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make(map[string]*Check, len(m.results))
	for k, v := range m.results {
		checkCopy := *v
		results[k] = &checkCopy
	}
	return results
}

// GetOverallStatus folds the latest results: any down check is down, any
// degraded one is degraded. With no results yet the status is down.
func (m *Manager) GetOverallStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.results) == 0 {
		return StatusDown
	}

	status := StatusOK
	for _, check := range m.results {
		switch check.Status {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// FailingChecks returns the names of checks whose last result was not ok,
// sorted.
func (m *Manager) FailingChecks() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name, check := range m.results {
		if check.Status != StatusOK {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// StartPeriodicChecks runs the checks every interval until ctx is done.
func (m *Manager) StartPeriodicChecks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.RunChecks(ctx)

	for {
		select {
		case <-ticker.C:
			m.RunChecks(ctx)
		case <-ctx.Done():
			m.logger.Info("Stopping periodic health checks")
			return
		}
	}
}
