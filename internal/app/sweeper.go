// internal/app/sweeper.go
package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Task is a periodic background job.
type Task struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Sweeper runs each task on its own ticker until stopped.
type Sweeper struct {
	tasks   []Task
	log     *zap.Logger
	running atomic.Bool
	runs    atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(log *zap.Logger, tasks ...Task) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{tasks: tasks, log: log}
}

// Start launches the loops. A second Start is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	if s.running.Swap(true) {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	for _, t := range s.tasks {
		if t.Every <= 0 || t.Run == nil {
			s.log.Warn("sweeper task skipped", zap.String("task", t.Name))
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
}

func (s *Sweeper) loop(ctx context.Context, t Task) {
	defer s.wg.Done()
	ticker := time.NewTicker(t.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runs.Inc()
			if err := t.Run(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("sweeper task failed", zap.String("task", t.Name), zap.Error(err))
			}
		}
	}
}

// Stop cancels every loop and waits for in-flight runs.
func (s *Sweeper) Stop() {
	if !s.running.Swap(false) {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	cancel()
	s.wg.Wait()
}

// Running reports whether the loops are live.
func (s *Sweeper) Running() bool { return s.running.Load() }

// Runs is the number of task executions so far.
func (s *Sweeper) Runs() int64 { return s.runs.Load() }
