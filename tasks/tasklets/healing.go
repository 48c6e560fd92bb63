package tasklets

import (
	"context"
	"path/filepath"
	"time"

	"otmitm/application/bot"
	"otmitm/tasks"
	"otmitm/wire/opcode"
)

// HealingParams configures the healing task's thresholds and the
// item/position it uses to heal.
type HealingParams struct {
	// HPPercentThreshold triggers a heal item use once current HP
	// drops to or below this percentage of max HP.
	HPPercentThreshold int `json:"hp_percent_threshold"`
	// ManaPercentThreshold triggers a mana item use, independent of HP.
	ManaPercentThreshold int `json:"mana_percent_threshold"`
	// HealItemID/HealStackPos identify the inventory potion/rune used
	// for HP recovery; ManaItemID/ManaStackPos for mana recovery.
	HealItemID   uint16 `json:"heal_item_id"`
	HealStackPos uint8  `json:"heal_stack_pos"`
	ManaItemID   uint16 `json:"mana_item_id"`
	ManaStackPos uint8  `json:"mana_stack_pos"`
	// CheckIntervalMS bounds how often stats are polled.
	CheckIntervalMS int `json:"check_interval_ms"`
}

func defaultHealingParams() HealingParams {
	return HealingParams{
		HPPercentThreshold:   70,
		ManaPercentThreshold: 30,
		HealItemID:           7618, // great health potion, per fusion32-forgottenserver's default item ids
		ManaItemID:           7620,
		CheckIntervalMS:      200,
	}
}

// healing is the C9 healing task: it polls player stats and uses a
// configured potion/rune whenever HP or mana drops under threshold.
// Grounded on spec section 4.9's BotContext capability surface
// (UseItem + Sleep are the only primitives it needs) and the
// playback engine's "poll the world model, sleep cancellation-safely"
// loop shape (playback/playback.go's waitForPosition).
type healing struct {
	params HealingParams
}

// NewHealingFactory returns a tasks.Factory that constructs a fresh
// healing task, reloading its parameter file (tasksConfigDir/
// healing.json) each time so a restart picks up on-disk edits.
func NewHealingFactory(tasksConfigDir string) tasks.Factory {
	return func() (tasks.Task, error) {
		p := defaultHealingParams()
		path := filepath.Join(tasksConfigDir, "healing.json")
		if err := loadParams(path, &p); err != nil {
			return nil, err
		}
		return healing{params: p}, nil
	}
}

func (healing) Name() string { return "healing" }

func (h healing) Run(ctx context.Context, bc *bot.Context) error {
	interval := time.Duration(h.params.CheckIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}

	var lastHeal, lastMana time.Time
	const cooldown = 1 * time.Second

	for {
		stats := bc.World.Stats()
		if stats.MaxHP > 0 {
			pct := int(stats.HP) * 100 / int(stats.MaxHP)
			if pct <= h.params.HPPercentThreshold && time.Since(lastHeal) > cooldown {
				bc.UseItem(opcode.Thing{ItemID: h.params.HealItemID, StackPos: h.params.HealStackPos}, 0)
				lastHeal = time.Now()
			}
		}
		if stats.MaxMana > 0 && h.params.ManaItemID != 0 {
			pct := int(stats.Mana) * 100 / int(stats.MaxMana)
			if pct <= h.params.ManaPercentThreshold && time.Since(lastMana) > cooldown {
				bc.UseItem(opcode.Thing{ItemID: h.params.ManaItemID, StackPos: h.params.ManaStackPos}, 0)
				lastMana = time.Now()
			}
		}

		if err := bc.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
