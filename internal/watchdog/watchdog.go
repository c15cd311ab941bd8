package watchdog

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/mason50x/sentinel/internal/tracker"
)

// Listener is notified when the derived activity flag flips. The tracker is
// pull-based, so timeout-driven transitions (the agent going idle with no
// further events) are only observable by re-evaluating on a schedule; the
// watchdog is that schedule.
type Listener func(status tracker.Status)

// Watchdog periodically re-derives the activity flag and reports
// transitions. It never mutates tracker state.
type Watchdog struct {
	tracker  *tracker.Tracker
	schedule string
	log      *logrus.Entry

	cron *cron.Cron

	mu         sync.Mutex
	lastActive bool
	started    bool

	listeners   []Listener
	listenersMu sync.RWMutex
}

// New creates a watchdog for the given tracker. The schedule is a 6-field
// cron expression (with seconds), e.g. "*/15 * * * * *".
func New(tr *tracker.Tracker, schedule string, log *logrus.Entry) *Watchdog {
	return &Watchdog{
		tracker:  tr,
		schedule: schedule,
		log:      log,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// AddListener registers a transition listener
func (w *Watchdog) AddListener(listener Listener) {
	w.listenersMu.Lock()
	defer w.listenersMu.Unlock()

	w.listeners = append(w.listeners, listener)
}

// Start begins the periodic check
func (w *Watchdog) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return nil
	}

	if _, err := w.cron.AddFunc(w.schedule, w.check); err != nil {
		return fmt.Errorf("invalid watchdog schedule %q: %w", w.schedule, err)
	}

	w.lastActive = w.tracker.Active()
	w.cron.Start()
	w.started = true

	w.log.WithField("schedule", w.schedule).Info("watchdog started")
	return nil
}

// Stop halts the periodic check. Safe to call multiple times.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}

	w.cron.Stop()
	w.started = false
}

// check re-derives the activity flag and fans out on a transition.
func (w *Watchdog) check() {
	status := w.tracker.Snapshot()

	w.mu.Lock()
	changed := status.IsActive != w.lastActive
	w.lastActive = status.IsActive
	w.mu.Unlock()

	if !changed {
		return
	}

	w.log.WithFields(logrus.Fields{
		"active":       status.IsActive,
		"active_tasks": status.ActiveTaskCount,
	}).Info("activity transition")

	w.notify(status)
}

func (w *Watchdog) notify(status tracker.Status) {
	w.listenersMu.RLock()
	listeners := make([]Listener, len(w.listeners))
	copy(listeners, w.listeners)
	w.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener(status)
	}
}
