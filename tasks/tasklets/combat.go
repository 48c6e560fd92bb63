package tasklets

import (
	"context"
	"path/filepath"
	"time"

	"otmitm/application/bot"
	"otmitm/domain/world"
	"otmitm/tasks"
)

// CombatParams configures which creatures the combat task engages.
type CombatParams struct {
	// NamesToAttack restricts targeting to creatures whose name
	// exactly matches one of these; an empty list attacks anything.
	NamesToAttack []string `json:"names_to_attack"`
	// MaxRange is the Manhattan distance within which a creature is
	// considered a valid target.
	MaxRange int `json:"max_range"`
	// CheckIntervalMS bounds how often the creature map is rescanned.
	CheckIntervalMS int `json:"check_interval_ms"`
}

func defaultCombatParams() CombatParams {
	return CombatParams{MaxRange: 7, CheckIntervalMS: 300}
}

// combat is the C9 combat task: while enabled, it selects the nearest
// eligible creature and keeps bc.World.AttackTargetID current, driving
// the server-side attack with the wire Attack opcode. It clears
// AttackTargetID once the creature is no longer known or the player
// enters a protection zone (no attack-cancel message is sent), so the playback engine's
// pause_on_monster targeting strategy (playback/playback.go) observes
// a consistent AttackTargetID regardless of whether combat or a human
// operator set it.
type combat struct {
	params CombatParams
}

// NewCombatFactory returns a tasks.Factory constructing a fresh combat
// task from tasksConfigDir/combat.json each time.
func NewCombatFactory(tasksConfigDir string) tasks.Factory {
	return func() (tasks.Task, error) {
		p := defaultCombatParams()
		path := filepath.Join(tasksConfigDir, "combat.json")
		if err := loadParams(path, &p); err != nil {
			return nil, err
		}
		return combat{params: p}, nil
	}
}

func (combat) Name() string { return "combat" }

func (c combat) Run(ctx context.Context, bc *bot.Context) error {
	interval := time.Duration(c.params.CheckIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 300 * time.Millisecond
	}

	var currentTarget uint32
	for {
		if bc.World.InProtectionZone() {
			if currentTarget != 0 {
				currentTarget = 0
				bc.World.SetAttackTargetID(0)
			}
		} else if currentTarget == 0 || !c.stillEligible(bc.World, currentTarget) {
			if next, ok := c.selectTarget(bc.World); ok {
				currentTarget = next
				bc.World.SetAttackTargetID(next)
				bc.Attack(next)
			} else if currentTarget != 0 {
				currentTarget = 0
				bc.World.SetAttackTargetID(0)
			}
		}

		if err := bc.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func (c combat) stillEligible(w *world.Model, id uint32) bool {
	cr, ok := w.Creature(id)
	if !ok {
		return false
	}
	return c.inRange(w, cr) && c.nameMatches(cr.Name)
}

func (c combat) selectTarget(w *world.Model) (uint32, bool) {
	playerPos := w.Position()
	best := uint32(0)
	bestDist := -1
	for _, cr := range w.Creatures() {
		if !c.nameMatches(cr.Name) {
			continue
		}
		if int(cr.Position.Z) != int(playerPos.Z) {
			continue
		}
		dist := manhattan(cr.Position.X, cr.Position.Y, playerPos.X, playerPos.Y)
		if dist > c.params.MaxRange {
			continue
		}
		if bestDist == -1 || dist < bestDist {
			best, bestDist = cr.ID, dist
		}
	}
	return best, bestDist != -1
}

func (c combat) inRange(w *world.Model, cr world.Creature) bool {
	p := w.Position()
	if int(cr.Position.Z) != int(p.Z) {
		return false
	}
	return manhattan(cr.Position.X, cr.Position.Y, p.X, p.Y) <= c.params.MaxRange
}

func (c combat) nameMatches(name string) bool {
	if len(c.params.NamesToAttack) == 0 {
		return true
	}
	for _, n := range c.params.NamesToAttack {
		if n == name {
			return true
		}
	}
	return false
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
