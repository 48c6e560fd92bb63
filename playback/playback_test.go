package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"otmitm/application/bot"
	"otmitm/domain/actionsmap"
	"otmitm/domain/world"
)

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

type recordingInjector struct {
	mu    sync.Mutex
	sent  int
	onUse func()
}

func (r *recordingInjector) InjectToServer(payload []byte) {
	r.mu.Lock()
	r.sent++
	r.mu.Unlock()
	if r.onUse != nil {
		r.onUse()
	}
}
func (r *recordingInjector) InjectToClient([]byte) {}

func (r *recordingInjector) Sent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent
}

// TestPlaybackRetrySucceedsOnFirstAttempt is the S5 scenario: a
// walk_to node whose position converges onto the target within a few
// polls should complete without needing a retry.
func TestPlaybackRetrySucceedsOnFirstAttempt(t *testing.T) {
	w := world.New()
	w.SetPosition(world.Position{X: 95, Y: 200, Z: 7})

	inj := &recordingInjector{}
	bc := &bot.Context{World: w, Injector: inj, Log: nopLogger{}}

	go func() {
		time.Sleep(80 * time.Millisecond)
		w.SetPosition(world.Position{X: 97, Y: 200, Z: 7})
		time.Sleep(80 * time.Millisecond)
		w.SetPosition(world.Position{X: 100, Y: 200, Z: 7})
	}()

	e := NewEngine(w)
	m := actionsmap.ActionsMap{Nodes: []actionsmap.Node{
		{Type: actionsmap.NodeWalkTo, Target: actionsmap.Position{X: 100, Y: 200, Z: 7}},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	e.Start(ctx, bc, m, Options{})

	deadline := time.After(3 * time.Second)
	for e.Running() {
		select {
		case <-deadline:
			t.Fatal("playback did not finish in time")
		case <-time.After(20 * time.Millisecond):
		}
	}

	if got := len(e.FailedNodes()); got != 0 {
		t.Errorf("FailedNodes() len = %d, want 0", got)
	}
}

// TestPlaybackCancelWalkEscape is the S6 scenario: repeated
// CANCEL_WALK events at a fixed position trigger a directional escape
// attempt, and if the player never moves the node is recorded failed
// without halting playback.
func TestPlaybackCancelWalkEscape(t *testing.T) {
	w := world.New()
	stuck := world.Position{X: 150, Y: 150, Z: 7}
	w.SetPosition(stuck)

	inj := &recordingInjector{}
	bc := &bot.Context{World: w, Injector: inj, Log: nopLogger{}}

	stop := make(chan struct{})
	go func() {
		for i := 0; i < 6; i++ {
			select {
			case <-stop:
				return
			case <-time.After(60 * time.Millisecond):
			}
			w.AppendEvent(world.Event{At: time.Now(), Kind: world.EventCancelWalk})
		}
	}()
	defer close(stop)

	e := NewEngine(w)
	m := actionsmap.ActionsMap{Nodes: []actionsmap.Node{
		{Type: actionsmap.NodeWalkTo, Target: actionsmap.Position{X: 160, Y: 150, Z: 7}},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.Start(ctx, bc, m, Options{})

	deadline := time.After(4 * time.Second)
	for e.Running() {
		select {
		case <-deadline:
			t.Fatal("playback did not finish in time")
		case <-time.After(20 * time.Millisecond):
		}
	}

	failed := e.FailedNodes()
	if len(failed) != 1 || failed[0] != 0 {
		t.Errorf("FailedNodes() = %v, want [0]", failed)
	}
}

func TestFloorSkipJumpsToMatchingZ(t *testing.T) {
	w := world.New()
	w.SetPosition(world.Position{X: 10, Y: 10, Z: 8})
	e := NewEngine(w)
	bc := &bot.Context{World: w, Injector: &recordingInjector{}, Log: nopLogger{}}

	nodes := []actionsmap.Node{
		{Type: actionsmap.NodeWalkTo, Target: actionsmap.Position{X: 1, Y: 1, Z: 7}},
		{Type: actionsmap.NodeWalkTo, Target: actionsmap.Position{X: 2, Y: 2, Z: 8}},
	}
	got := e.floorSkip(bc, nodes, 0)
	if got != 1 {
		t.Errorf("floorSkip = %d, want 1", got)
	}
}

func TestPauseOnMonsterResumesWhenGone(t *testing.T) {
	w := world.New()
	w.SetAttackTargetID(42)
	w.UpsertCreature(world.Creature{ID: 42, Position: world.Position{X: 5, Y: 5, Z: 7}}, time.Now())

	bc := &bot.Context{World: w, Injector: &recordingInjector{}, Log: nopLogger{}}
	e := NewEngine(w)

	go func() {
		time.Sleep(100 * time.Millisecond)
		w.RemoveCreature(42)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := e.gatePauseOnMonster(ctx, bc); err != nil {
		t.Fatalf("gatePauseOnMonster error = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("gatePauseOnMonster took too long to resume after target removed")
	}
}
