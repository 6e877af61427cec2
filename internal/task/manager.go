package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Task type identifiers used as the name attribute in task logs.
const (
	// TypeStoryGeneration identifies the background scene pipeline for a story.
	TypeStoryGeneration = "story_generation"

	// TypeCoverGeneration identifies background cover image generation.
	TypeCoverGeneration = "cover_generation"
)

// Work is a unit of background work. It receives a context that is
// cancelled when the task is replaced, cancelled explicitly, or the
// manager shuts down.
type Work func(ctx context.Context) error

// handle tracks one live background task in the registry.
type handle struct {
	key    string
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager runs keyed background tasks. Starting work under a key that is
// already running cancels the prior task and replaces its handle, so the
// registry never holds more than one live handle per key. Handles are
// removed by a completion hook when their work finishes, whatever the
// outcome.
type Manager struct {
	logger *slog.Logger

	mu      sync.Mutex
	handles map[string]*handle
	wg      sync.WaitGroup
}

// NewManager creates a task manager.
func NewManager(logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Manager{
		logger:  logger.With(slog.String("component", "task_manager")),
		handles: make(map[string]*handle),
	}, nil
}

// Start launches work under the given key, cancelling any task that is
// still running with the same key. The work runs on a context detached
// from the caller's request so it survives the HTTP response.
func (m *Manager) Start(key, name string, work Work) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{
		key:    key,
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	prev := m.handles[key]
	m.handles[key] = h
	m.wg.Add(1)
	m.mu.Unlock()

	log := m.logger.With(slog.String("task_key", key), slog.String("task_name", name))

	if prev != nil {
		log.Info("cancelling prior task for key")
		prev.cancel()
	}

	log.Debug("starting background task")

	go func() {
		defer m.wg.Done()
		defer close(h.done)

		err := runWork(ctx, work)
		m.finish(h, log, err)
	}()
}

// IsRunning reports whether a live task exists for the key.
func (m *Manager) IsRunning(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handles[key] != nil
}

// Cancel requests cancellation of the task registered under the key and
// returns whether one was found. It does not wait for the task to stop;
// the completion hook removes the handle once the work winds down.
func (m *Manager) Cancel(key string) bool {
	m.mu.Lock()
	h := m.handles[key]
	m.mu.Unlock()

	if h == nil {
		return false
	}
	h.cancel()
	return true
}

// ActiveCount returns the number of live handles in the registry.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

// Shutdown cancels every live task and waits for them to finish, or
// until the context expires.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	count := len(m.handles)
	for _, h := range m.handles {
		h.cancel()
	}
	m.mu.Unlock()

	if count > 0 {
		m.logger.Info("shutting down background tasks", slog.Int("active_count", count))
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("task manager shutdown: %w", ctx.Err())
	}
}

// finish is the completion hook: it removes the handle from the registry
// and logs the task outcome. A handle that was already replaced by a
// newer Start for the same key is left alone so the live handle survives.
func (m *Manager) finish(h *handle, log *slog.Logger, err error) {
	m.mu.Lock()
	if m.handles[h.key] == h {
		delete(m.handles, h.key)
	}
	m.mu.Unlock()

	switch {
	case err == nil:
		log.Info("background task completed")
	case errors.Is(err, context.Canceled):
		log.Info("background task cancelled")
	default:
		log.Error("background task failed", slog.String("error", err.Error()))
	}
}

// runWork executes the work and converts a panic into an error so a
// misbehaving task cannot take down the manager or its siblings.
func runWork(ctx context.Context, work Work) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("background task panicked: %v", r)
		}
	}()
	return work(ctx)
}
