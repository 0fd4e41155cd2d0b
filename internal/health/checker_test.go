package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsiec/mediatime/internal/logger"
)

// mockChecker is a mock implementation of Checker for testing
type mockChecker struct {
	name  string
	err   error
	delay time.Duration
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

func newTestManager() *Manager {
	return NewManager(logger.NewNullLogger())
}

func TestManager(t *testing.T) {
	t.Run("Register and RunChecks", func(t *testing.T) {
		manager := newTestManager()
		manager.Register(&mockChecker{name: "checker1"})
		manager.Register(&mockChecker{name: "checker2", err: errors.New("checker2 failed")})
		manager.Register(&mockChecker{name: "checker3", err: &DegradedError{Reason: "slow"}})

		results := manager.RunChecks(context.Background())
		require.Len(t, results, 3)

		assert.Equal(t, StatusOK, results["checker1"].Status)
		assert.Empty(t, results["checker1"].Message)

		assert.Equal(t, StatusDown, results["checker2"].Status)
		assert.Contains(t, results["checker2"].Message, "checker2 failed")

		assert.Equal(t, StatusDegraded, results["checker3"].Status)
		assert.Equal(t, "slow", results["checker3"].Message)

		assert.Equal(t, []string{"checker1", "checker2", "checker3"}, manager.Checkers())
		assert.Equal(t, []string{"checker2", "checker3"}, manager.FailingChecks())
	})

	t.Run("GetResults returns copies", func(t *testing.T) {
		manager := newTestManager()
		manager.Register(&mockChecker{name: "test"})
		manager.RunChecks(context.Background())

		results := manager.GetResults()
		require.Contains(t, results, "test")
		results["test"].Status = StatusDown

		assert.Equal(t, StatusOK, manager.GetResults()["test"].Status)
	})

	t.Run("timeout", func(t *testing.T) {
		manager := newTestManager()
		manager.SetTimeout(20 * time.Millisecond)
		manager.Register(&mockChecker{name: "slow", delay: time.Second})

		start := time.Now()
		results := manager.RunChecks(context.Background())
		assert.Less(t, time.Since(start), 500*time.Millisecond)

		assert.Equal(t, StatusDown, results["slow"].Status)
		assert.Equal(t, "Health check timed out", results["slow"].Message)
	})

	t.Run("concurrent execution", func(t *testing.T) {
		manager := newTestManager()
		for _, name := range []string{"a", "b", "c", "d"} {
			manager.Register(&mockChecker{name: name, delay: 50 * time.Millisecond})
		}

		start := time.Now()
		results := manager.RunChecks(context.Background())
		assert.Len(t, results, 4)
		assert.Less(t, time.Since(start), 150*time.Millisecond)
	})
}

func TestGetOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		checkers []*mockChecker
		want     Status
	}{
		{"no results", nil, StatusDown},
		{"all ok", []*mockChecker{{name: "a"}, {name: "b"}}, StatusOK},
		{"one degraded", []*mockChecker{{name: "a"}, {name: "b", err: &DegradedError{Reason: "x"}}}, StatusDegraded},
		{"down wins", []*mockChecker{{name: "a", err: &DegradedError{Reason: "x"}}, {name: "b", err: assert.AnError}}, StatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := newTestManager()
			for _, c := range tt.checkers {
				manager.Register(c)
			}
			manager.RunChecks(context.Background())
			assert.Equal(t, tt.want, manager.GetOverallStatus())
		})
	}
}

func TestStartPeriodicChecks(t *testing.T) {
	manager := newTestManager()
	counter := &countingChecker{}
	manager.Register(counter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		manager.StartPeriodicChecks(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return counter.calls() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("periodic checks did not stop")
	}
}

type countingChecker struct {
	mu sync.Mutex
	n  int
}

func (c *countingChecker) Name() string { return "counting" }

func (c *countingChecker) Check(context.Context) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *countingChecker) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
