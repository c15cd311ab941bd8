package tracker

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mason50x/sentinel/internal/events"
)

// DefaultInactivityTimeout is the grace window after the last recorded
// activity during which the agent is still considered active.
const DefaultInactivityTimeout = 120 * time.Second

// DefaultHistorySize is the number of received events retained for
// diagnostic inspection.
const DefaultHistorySize = 50

// Session is the coarse "agent is engaged" marker. At most one exists at a
// time; it is opened by a session-start event and closed by session-end.
type Session struct {
	ID string `json:"id"`
}

// TaskHandle is one outstanding tool invocation, keyed by the correlation
// id supplied by the event source.
type TaskHandle struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	ToolName  string    `json:"toolName,omitempty"`
}

// Status is a point-in-time view of the tracker, shaped for the polling
// consumer.
type Status struct {
	IsActive            bool       `json:"isActive"`
	LastActivityAt      *time.Time `json:"lastActivityAt"`
	Session             *Session   `json:"session"`
	ActiveTaskCount     int        `json:"activeTaskCount"`
	TimeSinceActivityMs *int64     `json:"timeSinceActivity"`
	InactivityTimeoutMs int64      `json:"inactivityTimeoutMs"`
}

// StatusHook is called after every submitted event with a fresh snapshot.
type StatusHook func(status Status)

// Options configures a Tracker. The zero value is usable; unset fields fall
// back to defaults.
type Options struct {
	// InactivityTimeout is the domain timeout applied by Active.
	InactivityTimeout time.Duration

	// HistorySize caps the diagnostic event history.
	HistorySize int

	// Now overrides the clock, for tests that advance virtual time.
	Now func() time.Time
}

// Tracker derives a single isActive boolean from heterogeneous agent
// lifecycle events. All state lives behind one mutex so each Submit is
// observed atomically by concurrent Snapshot/History readers; activity is
// always derived fresh from (session, tasks, lastActivity, now) rather than
// cached, so a read can never see a stale flag.
type Tracker struct {
	mu           sync.RWMutex
	session      *Session
	tasks        map[string]TaskHandle
	lastActivity time.Time
	history      *historyRing

	timeout time.Duration
	now     func() time.Time

	hooks   []StatusHook
	hooksMu sync.RWMutex
}

// New creates a tracker. Construct one per process (or per test) and hand it
// to the transport layer; there is no package-level instance.
func New(opts Options) *Tracker {
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = DefaultInactivityTimeout
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Tracker{
		tasks:   make(map[string]TaskHandle),
		history: newHistoryRing(opts.HistorySize),
		timeout: opts.InactivityTimeout,
		now:     opts.Now,
	}
}

// Submit ingests one decoded event. It never fails: unrecognized kinds are
// treated as generic activity and a task event without a correlation id
// skips the per-task bookkeeping but still counts as activity. Every call
// appends a history record.
func (t *Tracker) Submit(ev events.Event) {
	t.mu.Lock()

	now := t.now()
	kind := events.ParseKind(ev.Kind)

	switch kind {
	case events.KindSessionStart:
		id := ev.SessionID
		if id == "" {
			id = "active"
		}
		t.session = &Session{ID: id}
		t.lastActivity = now

	case events.KindSessionEnd:
		t.session = nil
		t.tasks = make(map[string]TaskHandle)

	case events.KindTaskStart:
		if ev.TaskID != "" {
			t.tasks[ev.TaskID] = TaskHandle{
				ID:        ev.TaskID,
				StartedAt: now,
				ToolName:  ev.ToolName,
			}
		}
		t.lastActivity = now

	case events.KindTaskEnd:
		if ev.TaskID != "" {
			delete(t.tasks, ev.TaskID)
		}
		t.lastActivity = now

	default:
		// stop, heartbeat and unknown kinds only refresh the activity
		// timestamp. A stop does not flip the tracker inactive: the
		// inactivity timeout provides a grace period instead, evaluated
		// at query time.
		t.lastActivity = now
	}

	t.history.push(Record{
		ID:         uuid.NewString(),
		Kind:       kind,
		RawKind:    ev.Kind,
		SessionID:  ev.SessionID,
		TaskID:     ev.TaskID,
		ToolName:   ev.ToolName,
		ReceivedAt: now,
	})

	status := t.statusLocked(now)
	t.mu.Unlock()

	t.notifyHooks(status)
}

// Active reports whether the agent is currently considered active. The
// answer is derived fresh on every call:
//
//  1. no session and no tasks        -> false
//  2. any in-flight task             -> true, regardless of elapsed time
//  3. activity within the timeout    -> true
//  4. otherwise                      -> false
func (t *Tracker) Active() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.activeLocked(t.now())
}

// Snapshot returns the current status view. Side-effect free.
func (t *Tracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.statusLocked(t.now())
}

// History returns the retained event records, most recent first.
func (t *Tracker) History() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.history.newestFirst()
}

// Subscribe registers a hook invoked after every Submit with the resulting
// status. Hooks run on their own goroutine so a slow consumer cannot block
// event ingestion.
func (t *Tracker) Subscribe(hook StatusHook) {
	t.hooksMu.Lock()
	defer t.hooksMu.Unlock()

	t.hooks = append(t.hooks, hook)
}

func (t *Tracker) activeLocked(now time.Time) bool {
	if t.session == nil && len(t.tasks) == 0 {
		return false
	}
	if len(t.tasks) > 0 {
		return true
	}
	if !t.lastActivity.IsZero() && now.Sub(t.lastActivity) < t.timeout {
		return true
	}
	return false
}

func (t *Tracker) statusLocked(now time.Time) Status {
	status := Status{
		IsActive:            t.activeLocked(now),
		ActiveTaskCount:     len(t.tasks),
		InactivityTimeoutMs: t.timeout.Milliseconds(),
	}

	if t.session != nil {
		session := *t.session
		status.Session = &session
	}

	if !t.lastActivity.IsZero() {
		last := t.lastActivity
		status.LastActivityAt = &last

		since := now.Sub(last).Milliseconds()
		status.TimeSinceActivityMs = &since
	}

	return status
}

func (t *Tracker) notifyHooks(status Status) {
	t.hooksMu.RLock()
	hooks := make([]StatusHook, len(t.hooks))
	copy(hooks, t.hooks)
	t.hooksMu.RUnlock()

	for _, hook := range hooks {
		go hook(status)
	}
}
