// Package playback implements the C11 playback engine: it executes a
// compiled actionsmap.ActionsMap one node at a time against the live
// world model, with per-node-type retry budgets, stuck detection, and
// pluggable targeting strategies.
//
// New code off spec section 4.11; no teacher analogue. The per-node
// state machine and cancellation-respecting sleeps follow the same
// shape as tasks.Host's task goroutines (context.Context as the only
// cancellation signal, bot.Context.Sleep as the only suspension
// point), so a running playback looks, to the rest of the system,
// like any other hosted task.
package playback

import (
	"context"
	"sync"
	"time"

	"otmitm/application/bot"
	"otmitm/domain/actionsmap"
	"otmitm/domain/world"
	"otmitm/wire/opcode"
)

const (
	walkTolerance      = 2
	exactTopOffSteps   = 6
	stuckCycles        = 2
	lureWaitTimeout    = 60 * time.Second
	pauseResumeTimeout = 60 * time.Second
	pauseStillHPWindow = 5 * time.Second
)

// Strategy names a targeting strategy, pluggable per run.
type Strategy string

const (
	StrategyNone           Strategy = "none"
	StrategyPauseOnMonster Strategy = "pause_on_monster"
	StrategyLure           Strategy = "lure"
)

// Signal is wait_for_position's outcome.
type Signal int

const (
	SignalArrived Signal = iota
	SignalFloorChanged
	SignalCancelWalk
	SignalTimeout
)

// Options configures one playback run.
type Options struct {
	Loop         bool
	Strategy     Strategy
	LureDistance int
	LureCount    int
}

// Engine runs one actionsmap.ActionsMap at a time. Only one playback
// may be active; Start preempts any run already in progress.
type Engine struct {
	world *world.Model

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	failed  []int
}

// NewEngine constructs a playback engine bound to the given world
// model.
func NewEngine(w *world.Model) *Engine {
	return &Engine{world: w}
}

// Running reports whether a playback is currently executing.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// FailedNodes returns the indices recorded as failed during the most
// recent run, for minimap rendering.
func (e *Engine) FailedNodes() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int, len(e.failed))
	copy(out, e.failed)
	return out
}

// Stop cancels any in-progress playback.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Start begins executing m in a background goroutine, preempting any
// run already in progress. bc is the task-equivalent capability set
// used to inject packets and read the world model.
func (e *Engine) Start(parent context.Context, bc *bot.Context, m actionsmap.ActionsMap, opts Options) {
	e.Stop()

	ctx, cancel := context.WithCancel(parent)
	e.mu.Lock()
	e.cancel = cancel
	e.running = true
	e.failed = nil
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
		}()
		e.run(ctx, bc, m, opts)
	}()
}

func (e *Engine) run(ctx context.Context, bc *bot.Context, m actionsmap.ActionsMap, opts Options) {
	for {
		i := 0
		for i < len(m.Nodes) {
			if ctx.Err() != nil {
				return
			}
			n := m.Nodes[i]

			if skipped := e.floorSkip(bc, m.Nodes, i); skipped != i {
				i = skipped
				continue
			}

			if err := e.gate(ctx, bc, m.Nodes, i, opts); err != nil {
				return
			}

			if !e.runNode(ctx, bc, n) {
				e.recordFailure(i)
			}
			i++
		}
		if !opts.Loop {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (e *Engine) recordFailure(idx int) {
	e.mu.Lock()
	e.failed = append(e.failed, idx)
	e.mu.Unlock()
}

// floorSkip implements the pre-node check: if the player's z disagrees
// with node i's expected z, scan forward for the first node whose
// expected z matches and resume there.
func (e *Engine) floorSkip(bc *bot.Context, nodes []actionsmap.Node, i int) int {
	playerZ := bc.World.Position().Z
	if nodes[i].Target.Z == playerZ {
		return i
	}
	for j := i; j < len(nodes); j++ {
		if nodes[j].Target.Z == playerZ {
			return j
		}
	}
	return i
}

// gate consults the active targeting strategy before executing node i.
func (e *Engine) gate(ctx context.Context, bc *bot.Context, nodes []actionsmap.Node, i int, opts Options) error {
	switch opts.Strategy {
	case StrategyPauseOnMonster:
		return e.gatePauseOnMonster(ctx, bc)
	case StrategyLure:
		return e.gateLure(ctx, bc, nodes, i, opts)
	default:
		return nil
	}
}

func (e *Engine) gatePauseOnMonster(ctx context.Context, bc *bot.Context) error {
	id := bc.World.AttackTargetID()
	if id == 0 {
		return nil
	}
	if _, ok := bc.World.Creature(id); !ok {
		return nil
	}

	deadline := time.Now().Add(pauseResumeTimeout)
	startHP := bc.World.Stats().HP
	lastHPChange := time.Now()
	for time.Now().Before(deadline) {
		if err := bc.Sleep(ctx, 500*time.Millisecond); err != nil {
			return err
		}
		if _, ok := bc.World.Creature(id); !ok {
			return nil
		}
		hp := bc.World.Stats().HP
		if hp != startHP {
			startHP = hp
			lastHPChange = time.Now()
		}
		if time.Since(lastHPChange) > pauseStillHPWindow {
			return nil
		}
	}
	return nil
}

func (e *Engine) gateLure(ctx context.Context, bc *bot.Context, nodes []actionsmap.Node, i int, opts Options) error {
	bc.World.SetLureActive(true)
	nextIsFloorChange := i+1 < len(nodes) && nodes[i+1].Target.Z != nodes[i].Target.Z

	deadline := time.Now().Add(lureWaitTimeout)
	for time.Now().Before(deadline) {
		near := nearbyMonsterCount(bc.World, nodes[i].Target, opts.LureDistance)
		if near >= opts.LureCount || (nextIsFloorChange && near >= 1) {
			bc.World.SetLureActive(false)
			return nil
		}
		if err := bc.Sleep(ctx, 200*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

func nearbyMonsterCount(w *world.Model, target actionsmap.Position, radius int) int {
	count := 0
	for _, c := range w.Creatures() {
		if int(c.Position.Z) != int(target.Z) {
			continue
		}
		if manhattan(c.Position.X, c.Position.Y, target.X, target.Y) <= radius {
			count++
		}
	}
	return count
}

func manhattan(x1, y1, x2, y2 uint16) int {
	dx := int(x1) - int(x2)
	if dx < 0 {
		dx = -dx
	}
	dy := int(y1) - int(y2)
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// runNode dispatches to the node type's strategy, returning true on
// success.
func (e *Engine) runNode(ctx context.Context, bc *bot.Context, n actionsmap.Node) bool {
	switch n.Type {
	case actionsmap.NodeWalkTo:
		if n.Exact {
			return e.walkToExact(ctx, bc, n)
		}
		return e.walkToNonExact(ctx, bc, n)
	case actionsmap.NodeUseItem:
		if n.FloorChange {
			return e.useItemFloorChange(ctx, bc, n)
		}
		return e.useItemSameFloor(ctx, bc, n)
	case actionsmap.NodeUseItemEx:
		return e.useItemEx(ctx, bc, n)
	case actionsmap.NodeWalkSteps:
		return e.walkSteps(ctx, bc, n)
	}
	return false
}

func groundThing(target actionsmap.Position, itemID uint16, stackPos uint8) opcode.Thing {
	return opcode.Thing{Pos: opcode.Position{X: target.X, Y: target.Y, Z: target.Z}, ItemID: itemID, StackPos: stackPos}
}

// stuckTracker counts consecutive CANCEL_WALK signals observed at the
// same position across retry attempts, for the >=2-cycles stuck rule.
type stuckTracker struct {
	pos         world.Position
	hasPos      bool
	consecutive int
}

// observe records one CancelWalk signal at pos and reports whether the
// stuck threshold has now been reached.
func (s *stuckTracker) observe(pos world.Position) bool {
	if s.hasPos && pos == s.pos {
		s.consecutive++
	} else {
		s.consecutive = 1
		s.pos = pos
		s.hasPos = true
	}
	return s.consecutive >= stuckCycles
}

func (s *stuckTracker) reset() {
	s.consecutive = 0
	s.hasPos = false
}

// walkToNonExact sends a ground-click so the server pathfinds, and
// accepts arrival within tolerance.
func (e *Engine) walkToNonExact(ctx context.Context, bc *bot.Context, n actionsmap.Node) bool {
	const retries = 5
	var stuck stuckTracker
	for attempt := 0; attempt < retries; attempt++ {
		bc.UseItem(groundThing(n.Target, n.ItemID, 0), 0)
		sig := e.waitForPosition(ctx, bc, n.Target, 3*time.Second, walkTolerance)
		switch sig {
		case SignalArrived, SignalFloorChanged:
			return true
		case SignalCancelWalk:
			if stuck.observe(bc.World.Position()) {
				if e.directionalEscape(ctx, bc) {
					stuck.reset()
					continue
				}
				return false
			}
		case SignalTimeout:
		}
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

// walkToExact pathfinds close, then tops off with single-step walks to
// land on the target tile exactly.
func (e *Engine) walkToExact(ctx context.Context, bc *bot.Context, n actionsmap.Node) bool {
	const retries = 5
	var stuck stuckTracker
	for attempt := 0; attempt < retries; attempt++ {
		bc.UseItem(groundThing(n.Target, n.ItemID, 0), 0)
		sig := e.waitForPosition(ctx, bc, n.Target, 3*time.Second, walkTolerance)
		if sig == SignalCancelWalk && stuck.observe(bc.World.Position()) {
			if e.directionalEscape(ctx, bc) {
				stuck.reset()
				continue
			}
			return false
		}
		if ctx.Err() != nil {
			return false
		}

		for step := 0; step < exactTopOffSteps; step++ {
			pos := bc.World.Position()
			if positionEquals(pos, n.Target) {
				return true
			}
			dir, ok := stepToward(pos, n.Target)
			if !ok {
				break
			}
			bc.Walk(dir)
			if err := bc.Sleep(ctx, 400*time.Millisecond); err != nil {
				return false
			}
		}
		if positionEquals(bc.World.Position(), n.Target) {
			return true
		}
	}
	return false
}

// useItemFloorChange clicks once, optionally re-clicks after 0.5s if z
// hasn't changed, and succeeds on an observed z change or floor_change
// event.
func (e *Engine) useItemFloorChange(ctx context.Context, bc *bot.Context, n actionsmap.Node) bool {
	const retries = 5
	startZ := bc.World.Position().Z
	start := time.Now()
	floorChanged := func() bool {
		if bc.World.Position().Z != startZ {
			return true
		}
		for _, ev := range bc.World.Events() {
			if (ev.Kind == world.EventFloorChangeUp || ev.Kind == world.EventFloorChangeDown) && ev.At.After(start) {
				return true
			}
		}
		return false
	}
	for attempt := 0; attempt < retries; attempt++ {
		bc.UseItem(groundThing(n.Target, n.ItemID, n.StackPos), 0)
		if err := bc.Sleep(ctx, 500*time.Millisecond); err != nil {
			return false
		}
		if floorChanged() {
			return true
		}
		bc.UseItem(groundThing(n.Target, n.ItemID, n.StackPos), 0)
		if err := bc.Sleep(ctx, 500*time.Millisecond); err != nil {
			return false
		}
		if floorChanged() {
			return true
		}
	}
	return false
}

// useItemSameFloor clicks, then re-clicks if no observable effect
// (tile transform at target or a position change) occurs.
func (e *Engine) useItemSameFloor(ctx context.Context, bc *bot.Context, n actionsmap.Node) bool {
	const retries = 5
	startPos := bc.World.Position()
	for attempt := 0; attempt < retries; attempt++ {
		before := len(bc.World.TileUpdates())
		bc.UseItem(groundThing(n.Target, n.ItemID, n.StackPos), 0)
		if err := bc.Sleep(ctx, 600*time.Millisecond); err != nil {
			return false
		}
		if tileUpdatedAt(bc.World, n.Target, before) {
			return true
		}
		if bc.World.Position() != startPos {
			return true
		}
	}
	return false
}

func tileUpdatedAt(w *world.Model, target actionsmap.Position, sinceLen int) bool {
	updates := w.TileUpdates()
	for i := sinceLen; i < len(updates); i++ {
		u := updates[i]
		if u.X == target.X && u.Y == target.Y && u.Z == target.Z {
			return true
		}
	}
	return false
}

// useItemEx sends once and succeeds if the player ends up adjacent to
// the target within 5s.
func (e *Engine) useItemEx(ctx context.Context, bc *bot.Context, n actionsmap.Node) bool {
	from := opcode.Thing{Pos: opcode.Position{X: n.Target.X, Y: n.Target.Y, Z: n.Target.Z}, ItemID: n.ItemID, StackPos: n.StackPos}
	to := opcode.Thing{Pos: opcode.Position{X: n.ToPos.X, Y: n.ToPos.Y, Z: n.ToPos.Z}}
	bc.UseItemEx(from, to)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		pos := bc.World.Position()
		if manhattan(pos.X, pos.Y, n.Target.X, n.Target.Y) <= 1 && pos.Z == n.Target.Z {
			return true
		}
		if err := bc.Sleep(ctx, 100*time.Millisecond); err != nil {
			return false
		}
	}
	return false
}

// walkSteps issues a fixed stepwise walk at 2.5Hz.
func (e *Engine) walkSteps(ctx context.Context, bc *bot.Context, n actionsmap.Node) bool {
	for _, dir := range n.Steps {
		bc.Walk(dir)
		if err := bc.Sleep(ctx, 400*time.Millisecond); err != nil {
			return false
		}
	}
	pos := bc.World.Position()
	return manhattan(pos.X, pos.Y, n.Target.X, n.Target.Y) <= walkTolerance || pos.Z == n.Target.Z
}

func positionEquals(p world.Position, target actionsmap.Position) bool {
	return p.X == target.X && p.Y == target.Y && p.Z == target.Z
}

// waitForPosition polls the world model every 50ms for up to timeout.
// Besides the polled position, each tick consults server_events (a
// floor-change event since the call began yields SignalFloorChanged
// even if the polled z has not moved) and CancelWalkTime (a cancel-walk
// newer than at entry yields SignalCancelWalk).
func (e *Engine) waitForPosition(ctx context.Context, bc *bot.Context, target actionsmap.Position, timeout time.Duration, tolerance int) Signal {
	start := time.Now()
	startZ := bc.World.Position().Z
	lastCancelAt := bc.World.CancelWalkTime()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return SignalTimeout
		case <-ticker.C:
			pos := bc.World.Position()
			if pos.X == target.X && pos.Y == target.Y && pos.Z == target.Z {
				return SignalArrived
			}
			if manhattan(pos.X, pos.Y, target.X, target.Y) <= tolerance && pos.Z == target.Z {
				return SignalArrived
			}
			if pos.Z != startZ {
				return SignalFloorChanged
			}
			for _, ev := range bc.World.Events() {
				if (ev.Kind == world.EventFloorChangeUp || ev.Kind == world.EventFloorChangeDown) && ev.At.After(start) {
					return SignalFloorChanged
				}
			}

			cw := bc.World.CancelWalkTime()
			if cw.After(lastCancelAt) {
				return SignalCancelWalk
			}

			if time.Since(start) > timeout {
				return SignalTimeout
			}
		}
	}
}

// directionalEscape tries N/E/S/W in order, walking one step and
// checking for movement; returns true the instant one succeeds.
func (e *Engine) directionalEscape(ctx context.Context, bc *bot.Context) bool {
	dirs := []uint8{opcode.ClientWalkNorth, opcode.ClientWalkEast, opcode.ClientWalkSouth, opcode.ClientWalkWest}
	start := bc.World.Position()
	for _, d := range dirs {
		bc.Walk(d)
		if err := bc.Sleep(ctx, 400*time.Millisecond); err != nil {
			return false
		}
		if bc.World.Position() != start {
			return true
		}
	}
	return false
}

// stepToward returns the single-step direction opcode that reduces
// the distance from pos to target, preferring to resolve the larger
// axis offset first.
func stepToward(pos world.Position, target actionsmap.Position) (uint8, bool) {
	dx := int(target.X) - int(pos.X)
	dy := int(target.Y) - int(pos.Y)
	if dx == 0 && dy == 0 {
		return 0, false
	}
	if abs(dx) >= abs(dy) {
		if dx > 0 {
			return opcode.ClientWalkEast, true
		}
		if dx < 0 {
			return opcode.ClientWalkWest, true
		}
	}
	if dy > 0 {
		return opcode.ClientWalkSouth, true
	}
	return opcode.ClientWalkNorth, true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
