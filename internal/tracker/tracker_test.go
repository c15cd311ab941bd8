package tracker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mason50x/sentinel/internal/events"
)

// fakeClock provides virtual time for timeout tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker(clock *fakeClock) *Tracker {
	return New(Options{
		InactivityTimeout: 2 * time.Minute,
		Now:               clock.Now,
	})
}

func TestSessionStartActivates(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	tr.Submit(events.Event{Kind: "session-start", SessionID: "s1"})

	status := tr.Snapshot()
	if !status.IsActive {
		t.Errorf("Expected tracker to be active after session-start")
	}
	if status.Session == nil || status.Session.ID != "s1" {
		t.Errorf("Expected session id s1, got %+v", status.Session)
	}
}

func TestSessionStartWithoutIDDefaultsToActive(t *testing.T) {
	tr := newTestTracker(newFakeClock())

	tr.Submit(events.Event{Kind: "SessionStart"})

	status := tr.Snapshot()
	if status.Session == nil || status.Session.ID != "active" {
		t.Errorf("Expected default session id 'active', got %+v", status.Session)
	}
}

func TestSessionEndIdempotent(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	tr.Submit(events.Event{Kind: "session-start", SessionID: "s1"})
	tr.Submit(events.Event{Kind: "task-start", TaskID: "t1"})

	tr.Submit(events.Event{Kind: "session-end"})
	first := tr.Snapshot()

	tr.Submit(events.Event{Kind: "session-end"})
	second := tr.Snapshot()

	if first.IsActive || second.IsActive {
		t.Errorf("Expected inactive after session-end, got %v then %v", first.IsActive, second.IsActive)
	}
	if first.Session != nil || second.Session != nil {
		t.Errorf("Expected session cleared after session-end")
	}
	if first.ActiveTaskCount != 0 || second.ActiveTaskCount != 0 {
		t.Errorf("Expected tasks cleared after session-end")
	}
}

func TestTaskLifecycleWithoutSession(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	tr.Submit(events.Event{Kind: "task-start", TaskID: "t1"})
	if !tr.Active() {
		t.Fatalf("Expected active while task is in flight")
	}

	tr.Submit(events.Event{Kind: "task-end", TaskID: "t1"})

	status := tr.Snapshot()
	if status.ActiveTaskCount != 0 {
		t.Errorf("Expected 0 in-flight tasks, got %d", status.ActiveTaskCount)
	}
	// No session and no tasks: inactive immediately, no timeout grace.
	if status.IsActive {
		t.Errorf("Expected inactive after last task-end with no session")
	}
}

func TestTasksDrainInAnyOrder(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	ids := []string{"t1", "t2", "t3", "t4"}
	for _, id := range ids {
		tr.Submit(events.Event{Kind: "task-start", TaskID: id})
	}

	// End out of order.
	for _, id := range []string{"t3", "t1", "t4", "t2"} {
		tr.Submit(events.Event{Kind: "task-end", TaskID: id})
	}

	status := tr.Snapshot()
	if status.ActiveTaskCount != 0 {
		t.Errorf("Expected all tasks drained, got %d", status.ActiveTaskCount)
	}
	if status.IsActive {
		t.Errorf("Expected inactive after draining all tasks with no session")
	}
}

func TestTaskInsertOverwrites(t *testing.T) {
	tr := newTestTracker(newFakeClock())

	tr.Submit(events.Event{Kind: "task-start", TaskID: "t1", ToolName: "Read"})
	tr.Submit(events.Event{Kind: "task-start", TaskID: "t1", ToolName: "Write"})

	if got := tr.Snapshot().ActiveTaskCount; got != 1 {
		t.Errorf("Expected duplicate task id to overwrite, got %d entries", got)
	}
}

func TestTaskEventWithoutIDStillCountsAsActivity(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	tr.Submit(events.Event{Kind: "session-start"})
	clock.Advance(119 * time.Second)

	tr.Submit(events.Event{Kind: "task-start"}) // no task id

	status := tr.Snapshot()
	if status.ActiveTaskCount != 0 {
		t.Errorf("Expected no task bookkeeping without an id, got %d", status.ActiveTaskCount)
	}

	// The activity timestamp was refreshed, so the timeout window restarts.
	clock.Advance(119 * time.Second)
	if !tr.Active() {
		t.Errorf("Expected active: id-less task event should refresh last activity")
	}
}

func TestInactivityTimeoutBoundary(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	tr.Submit(events.Event{Kind: "session-start"})

	clock.Advance(2*time.Minute - time.Millisecond)
	if !tr.Active() {
		t.Errorf("Expected active just before the timeout elapses")
	}

	clock.Advance(time.Millisecond)
	if tr.Active() {
		t.Errorf("Expected inactive once now - lastActivity >= timeout")
	}
}

func TestInFlightTaskOverridesTimeout(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	tr.Submit(events.Event{Kind: "task-start", TaskID: "t1"})

	clock.Advance(10 * time.Hour)
	if !tr.Active() {
		t.Errorf("Expected active while a task is in flight, regardless of elapsed time")
	}
}

func TestStopKeepsGracePeriod(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	tr.Submit(events.Event{Kind: "session-start"})
	clock.Advance(time.Minute)
	tr.Submit(events.Event{Kind: "stop"})

	// A stop refreshes the activity timestamp but does not flip the flag;
	// the timeout provides the grace period.
	clock.Advance(2*time.Minute - time.Millisecond)
	if !tr.Active() {
		t.Errorf("Expected active within the grace period after stop")
	}

	clock.Advance(2 * time.Millisecond)
	if tr.Active() {
		t.Errorf("Expected inactive after the grace period expires")
	}
}

func TestUnknownKindIsGenericActivity(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	tr.Submit(events.Event{Kind: "session-start"})
	clock.Advance(119 * time.Second)
	tr.Submit(events.Event{Kind: "SomeFutureHookName"})

	clock.Advance(119 * time.Second)
	if !tr.Active() {
		t.Errorf("Expected unknown kinds to refresh last activity")
	}

	records := tr.History()
	if records[0].Kind != events.KindUnknown {
		t.Errorf("Expected unknown kind in history, got %s", records[0].Kind)
	}
}

func TestHeartbeatAloneNeverActivates(t *testing.T) {
	tr := newTestTracker(newFakeClock())

	tr.Submit(events.Event{Kind: "heartbeat"})

	// No session and no tasks short-circuits the derivation.
	if tr.Active() {
		t.Errorf("Expected inactive: heartbeats without a session or task never activate")
	}
}

func TestHistoryBoundAndOrder(t *testing.T) {
	tr := newTestTracker(newFakeClock())

	for i := 0; i < 60; i++ {
		tr.Submit(events.Event{Kind: "heartbeat", ToolName: fmt.Sprintf("ev-%d", i)})
	}

	records := tr.History()
	if len(records) != 50 {
		t.Fatalf("Expected exactly 50 retained records, got %d", len(records))
	}
	if records[0].ToolName != "ev-59" {
		t.Errorf("Expected most recent record first, got %s", records[0].ToolName)
	}
	if records[49].ToolName != "ev-10" {
		t.Errorf("Expected oldest retained record to be ev-10, got %s", records[49].ToolName)
	}
}

func TestEveryKindIsRecorded(t *testing.T) {
	tr := newTestTracker(newFakeClock())

	tr.Submit(events.Event{Kind: "session-start"})
	tr.Submit(events.Event{Kind: "session-end"})
	tr.Submit(events.Event{Kind: "whatever"})

	if got := len(tr.History()); got != 3 {
		t.Errorf("Expected 3 history records, got %d", got)
	}
}

func TestSnapshotFields(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)

	empty := tr.Snapshot()
	if empty.LastActivityAt != nil || empty.TimeSinceActivityMs != nil {
		t.Errorf("Expected nil activity fields on a fresh tracker")
	}
	if empty.InactivityTimeoutMs != 120000 {
		t.Errorf("Expected timeout of 120000ms, got %d", empty.InactivityTimeoutMs)
	}

	tr.Submit(events.Event{Kind: "session-start", SessionID: "s1"})
	clock.Advance(5 * time.Second)

	status := tr.Snapshot()
	if status.LastActivityAt == nil {
		t.Fatalf("Expected last activity to be set")
	}
	if status.TimeSinceActivityMs == nil || *status.TimeSinceActivityMs != 5000 {
		t.Errorf("Expected 5000ms since activity, got %v", status.TimeSinceActivityMs)
	}
}

func TestSubscribeHookFires(t *testing.T) {
	tr := newTestTracker(newFakeClock())

	got := make(chan Status, 1)
	tr.Subscribe(func(status Status) {
		got <- status
	})

	tr.Submit(events.Event{Kind: "session-start", SessionID: "s1"})

	select {
	case status := <-got:
		if !status.IsActive {
			t.Errorf("Expected hook to observe active status")
		}
	case <-time.After(time.Second):
		t.Fatalf("Expected status hook to fire after Submit")
	}
}

func TestConcurrentSubmitAndRead(t *testing.T) {
	tr := New(Options{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Submit(events.Event{Kind: "task-start", TaskID: fmt.Sprintf("t-%d-%d", n, j)})
				tr.Submit(events.Event{Kind: "task-end", TaskID: fmt.Sprintf("t-%d-%d", n, j)})
			}
		}(i)
	}

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				tr.Snapshot()
				tr.History()
				tr.Active()
			}
		}()
	}

	wg.Wait()

	if got := tr.Snapshot().ActiveTaskCount; got != 0 {
		t.Errorf("Expected all tasks drained, got %d", got)
	}
}
