// Package autosave coalesces bursts of itinerary edits into infrequent persistence calls.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/app/observability/metrics"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

// SaveFunc persists the latest state. It is called with no scheduler lock held and
// must read the state at call time, not at scheduling time.
type SaveFunc func(ctx context.Context) error

type Config struct {
	// Window is the quiet period measured from the most recent edit.
	Window time.Duration
	// StatusDisplay is how long saved/error stays visible before reverting to idle.
	StatusDisplay time.Duration
	// SaveTimeout bounds a timer-triggered save.
	SaveTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Window:        time.Second,
		StatusDisplay: 2 * time.Second,
		SaveTimeout:   10 * time.Second,
	}
}

// Scheduler is a trailing-edge debouncer with an idle/saving/saved/error status.
// Saves never overlap; a failed save leaves the pending flag set and is retried
// only by the next edit or an explicit Flush.
type Scheduler struct {
	cfg    Config
	save   SaveFunc
	logger *slog.Logger
	attrs  metric.MeasurementOption

	saveMu sync.Mutex

	mu          sync.Mutex
	timer       *time.Timer
	statusTimer *time.Timer
	statusSeq   uint64
	dirtyGen    uint64
	pending     bool
	status      types.SaveStatus
	stopped     bool
}

func NewScheduler(cfg Config, save SaveFunc, logger *slog.Logger) *Scheduler {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.StatusDisplay <= 0 {
		cfg.StatusDisplay = def.StatusDisplay
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = def.SaveTimeout
	}
	return &Scheduler{
		cfg:    cfg,
		save:   save,
		logger: logger,
		attrs:  metric.WithAttributes(attribute.String("trigger", "autosave")),
		status: types.SaveStatusIdle,
	}
}

// MarkDirty records a pending change and restarts the quiet period.
func (s *Scheduler) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.pending = true
	s.dirtyGen++
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.Window, s.fire)
}

func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Scheduler) Status() types.SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Flush cancels the pending timer and saves now if there are unsaved changes.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.run(ctx)
}

// Discard drops pending changes without saving them, as a reload does.
func (s *Scheduler) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = false
	s.dirtyGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Stop cancels all timers. Further edits are not scheduled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.statusTimer != nil {
		s.statusTimer.Stop()
		s.statusTimer = nil
	}
}

func (s *Scheduler) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SaveTimeout)
	defer cancel()
	if err := s.run(ctx); err != nil {
		s.logger.WarnContext(ctx, "Autosave failed, changes kept pending", slog.Any("error", err))
	}
}

func (s *Scheduler) run(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return nil
	}
	gen := s.dirtyGen
	s.setStatusLocked(types.SaveStatusSaving)
	s.mu.Unlock()

	m := metrics.Get()
	m.AutosaveAttemptsTotal.Add(ctx, 1, s.attrs)
	start := time.Now()
	err := s.save(ctx)
	m.AutosaveDurationSeconds.Record(ctx, time.Since(start).Seconds(), s.attrs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		m.AutosaveFailuresTotal.Add(ctx, 1, s.attrs)
		s.setStatusLocked(types.SaveStatusError)
		return err
	}
	// an edit that arrived while saving is not covered by this save
	if s.dirtyGen == gen {
		s.pending = false
	}
	s.setStatusLocked(types.SaveStatusSaved)
	s.logger.DebugContext(ctx, "Autosave completed", slog.Duration("latency", time.Since(start)), slog.Bool("pending", s.pending))
	return nil
}

func (s *Scheduler) setStatusLocked(status types.SaveStatus) {
	s.status = status
	s.statusSeq++
	if s.statusTimer != nil {
		s.statusTimer.Stop()
		s.statusTimer = nil
	}
	if status != types.SaveStatusSaved && status != types.SaveStatusError {
		return
	}
	if s.stopped {
		s.status = types.SaveStatusIdle
		return
	}
	seq := s.statusSeq
	s.statusTimer = time.AfterFunc(s.cfg.StatusDisplay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.statusSeq == seq {
			s.status = types.SaveStatusIdle
		}
	})
}
