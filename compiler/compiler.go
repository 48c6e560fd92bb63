// Package compiler implements the C10 build_actions_map pipeline: it
// turns a raw recording.Recording into an executable
// actionsmap.ActionsMap through classify, group, build-path, simplify,
// mark-exact, and dedup passes.
//
// New code off spec section 4.10; no teacher analogue (TunGo has no
// navigation domain). Grounded on the pack's general "deterministic
// pure transform over a slice" shape used throughout
// domain/world and wire/opcode in this repo — no hidden state, no
// clock reads, so the same recording always compiles to the same map
// (required by the determinism property tested in compiler_test.go).
package compiler

import (
	"otmitm/domain/actionsmap"
	"otmitm/domain/recording"
)

// defaultGroundItemID is used for a map-click walk node when no
// nearby use-item waypoint supplies a better one.
const defaultGroundItemID = 4449

// maxGap is the simplification threshold: points within this
// Manhattan distance of the last kept point are dropped unless the
// boundary rule forces them to stay.
const maxGap = 3

// nearbyItemWindow bounds how far (in raw-waypoint index) the
// path-builder looks for a use-item supplying a better ground item id.
const nearbyItemWindow = 3

type rawKind int

const (
	rawWalk rawKind = iota
	rawMapClickWalk
	rawInteraction
	rawUseItemEx
)

type rawNode struct {
	kind     rawKind
	pos      actionsmap.Position
	toPos    actionsmap.Position
	itemID   uint16
	stackPos uint8
}

// Build runs the full compile pipeline over r.
func Build(r recording.Recording) actionsmap.ActionsMap {
	raw := classify(r.Waypoints)
	groups := group(raw)
	path := buildPath(groups)
	simplified := simplify(path)
	marked := markExact(simplified)
	deduped := dedup(marked)
	return actionsmap.ActionsMap{Name: r.Name, Nodes: deduped}
}

func manhattan(a, b actionsmap.Position) int {
	dx := int(a.X) - int(b.X)
	if dx < 0 {
		dx = -dx
	}
	dy := int(a.Y) - int(b.Y)
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

func toActionPos(p recording.Position) actionsmap.Position {
	return actionsmap.Position{X: p.X, Y: p.Y, Z: p.Z}
}

// classify labels each raw waypoint. use_item is a map-click walk if
// its target tile is more than 1 Manhattan step from the player's
// position at submission time, otherwise a close interaction.
func classify(wps []recording.Waypoint) []rawNode {
	out := make([]rawNode, 0, len(wps))
	for _, wp := range wps {
		switch wp.Kind {
		case recording.KindWalk, recording.KindAutoWalk:
			out = append(out, rawNode{kind: rawWalk, pos: toActionPos(wp.Pos)})
		case recording.KindUseItem:
			itemPos := toActionPos(wp.Pos)
			playerPos := toActionPos(wp.PlayerPos)
			if manhattan(itemPos, playerPos) > 1 {
				out = append(out, rawNode{kind: rawMapClickWalk, pos: itemPos, itemID: wp.ItemID, stackPos: wp.StackPos})
			} else {
				out = append(out, rawNode{kind: rawInteraction, pos: itemPos, itemID: wp.ItemID, stackPos: wp.StackPos})
			}
		case recording.KindUseItemEx:
			out = append(out, rawNode{kind: rawUseItemEx, pos: toActionPos(wp.Pos), toPos: toActionPos(wp.ToPos), itemID: wp.ItemID, stackPos: wp.StackPos})
		case recording.KindServerEvent:
			// Position-only marker: folded into the surrounding walk
			// run's path so floor-change boundaries are visible to
			// the simplify phase, without producing its own node.
			out = append(out, rawNode{kind: rawWalk, pos: toActionPos(wp.PlayerPos)})
		}
	}
	return out
}

// group implements phase 2: consecutive map-click waypoints form one
// run in which targets seen >=2 times become interactions (use_item)
// rather than walk clicks; consecutive walk waypoints form one run of
// walk points. Non-walk nodes (interaction, use_item_ex) pass through
// unchanged, breaking the current run.
func group(raw []rawNode) []interface{} {
	var out []interface{}
	i := 0
	for i < len(raw) {
		switch raw[i].kind {
		case rawWalk:
			j := i
			var run []rawNode
			for j < len(raw) && raw[j].kind == rawWalk {
				run = append(run, raw[j])
				j++
			}
			out = append(out, run)
			i = j
		case rawMapClickWalk:
			j := i
			var run []rawNode
			for j < len(raw) && raw[j].kind == rawMapClickWalk {
				run = append(run, raw[j])
				j++
			}
			out = append(out, classifyMapClickRun(run))
			i = j
		default:
			out = append(out, raw[i])
			i++
		}
	}
	return out
}

// classifyMapClickRun counts occurrences of each target position
// within the run; targets seen twice or more become interaction
// nodes, the rest remain walk points.
func classifyMapClickRun(run []rawNode) []rawNode {
	counts := make(map[actionsmap.Position]int, len(run))
	for _, n := range run {
		counts[n.pos]++
	}
	out := make([]rawNode, len(run))
	for i, n := range run {
		if counts[n.pos] >= 2 {
			n.kind = rawInteraction
		} else {
			n.kind = rawWalk
		}
		out[i] = n
	}
	return out
}

// buildPath implements phase 3: it walks the grouped sequence,
// emitting actionsmap.Node values in order. Walk runs are flattened
// into deduplicated-by-position point lists carrying a ground item id
// (the run's own click item if present, else a nearby interaction's
// item within nearbyItemWindow, else the default).
func buildPath(groups []interface{}) []actionsmap.Node {
	var out []actionsmap.Node
	for _, g := range groups {
		switch v := g.(type) {
		case []rawNode:
			out = append(out, buildWalkRun(v)...)
		case rawNode:
			switch v.kind {
			case rawInteraction:
				out = append(out, actionsmap.Node{Type: actionsmap.NodeUseItem, Target: v.pos, ItemID: v.itemID, StackPos: v.stackPos})
			case rawUseItemEx:
				out = append(out, actionsmap.Node{Type: actionsmap.NodeUseItemEx, Target: v.pos, ToPos: v.toPos, ItemID: v.itemID, StackPos: v.stackPos})
			}
		}
	}
	return out
}

func buildWalkRun(run []rawNode) []actionsmap.Node {
	seen := make(map[actionsmap.Position]bool, len(run))
	out := make([]actionsmap.Node, 0, len(run))
	for i, n := range run {
		if n.kind == rawInteraction {
			out = append(out, actionsmap.Node{Type: actionsmap.NodeUseItem, Target: n.pos, ItemID: n.itemID, StackPos: n.stackPos})
			continue
		}
		if seen[n.pos] {
			continue
		}
		seen[n.pos] = true
		itemID := n.itemID
		if itemID == 0 {
			itemID = nearbyItemID(run, i)
		}
		out = append(out, actionsmap.Node{Type: actionsmap.NodeWalkTo, Target: n.pos, ItemID: itemID})
	}
	return out
}

func nearbyItemID(run []rawNode, idx int) uint16 {
	lo := idx - nearbyItemWindow
	if lo < 0 {
		lo = 0
	}
	hi := idx + nearbyItemWindow
	if hi >= len(run) {
		hi = len(run) - 1
	}
	for k := lo; k <= hi; k++ {
		if run[k].itemID != 0 {
			return run[k].itemID
		}
	}
	return defaultGroundItemID
}

// simplify implements phase 4: a Douglas-Peucker-like pass that keeps
// the first point, always keeps the last, and keeps any point at
// least maxGap Manhattan steps from the last kept one — except that a
// z-change boundary is never dropped regardless of distance.
func simplify(nodes []actionsmap.Node) []actionsmap.Node {
	if len(nodes) == 0 {
		return nodes
	}
	out := make([]actionsmap.Node, 0, len(nodes))
	lastKeptIdx := -1

	for i, n := range nodes {
		if n.Type != actionsmap.NodeWalkTo {
			out = append(out, n)
			lastKeptIdx = -1
			continue
		}

		isLast := i == len(nodes)-1 || nodes[i+1].Type != actionsmap.NodeWalkTo
		isFirstOfRun := lastKeptIdx == -1

		// Boundary rule: the last point before a z-change and the
		// first point after are always kept, regardless of distance.
		isFirstAfterZChange := i > 0 && nodes[i-1].Type == actionsmap.NodeWalkTo && nodes[i-1].Target.Z != n.Target.Z
		isLastBeforeZChange := i+1 < len(nodes) && nodes[i+1].Type == actionsmap.NodeWalkTo && nodes[i+1].Target.Z != n.Target.Z

		keep := isFirstOfRun || isLast || isFirstAfterZChange || isLastBeforeZChange
		if !keep {
			last := out[lastKeptIdx]
			keep = manhattan(n.Target, last.Target) >= maxGap
		}

		if keep {
			out = append(out, n)
			lastKeptIdx = len(out) - 1
		}
	}
	return out
}

// markExact implements phase 5: a walk_to whose successor is an
// interaction node or a different-z walk_to gets exact=true. It also
// flags a use_item node as a floor-change device when its successor's
// z differs from its own, so playback knows to expect a z change
// rather than a tile transform.
func markExact(nodes []actionsmap.Node) []actionsmap.Node {
	out := make([]actionsmap.Node, len(nodes))
	copy(out, nodes)
	for i := range out {
		if i+1 >= len(out) {
			continue
		}
		next := out[i+1]
		switch out[i].Type {
		case actionsmap.NodeWalkTo:
			if next.Type != actionsmap.NodeWalkTo || next.Target.Z != out[i].Target.Z {
				out[i].Exact = true
			}
		case actionsmap.NodeUseItem:
			if next.Target.Z != out[i].Target.Z {
				out[i].FloorChange = true
			}
		}
	}
	return out
}

// dedup implements phase 6: collapse consecutive nodes with the same
// type and target. The kept node inherits the Exact and FloorChange
// flags of any node collapsed into it.
func dedup(nodes []actionsmap.Node) []actionsmap.Node {
	out := make([]actionsmap.Node, 0, len(nodes))
	for _, n := range nodes {
		if len(out) > 0 {
			last := out[len(out)-1]
			if last.Type == n.Type && last.Target == n.Target {
				out[len(out)-1].Exact = last.Exact || n.Exact
				out[len(out)-1].FloorChange = last.FloorChange || n.FloorChange
				continue
			}
		}
		out = append(out, n)
	}
	return out
}
