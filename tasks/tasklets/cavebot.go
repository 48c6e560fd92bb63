package tasklets

import (
	"context"
	"fmt"
	"path/filepath"

	"otmitm/application/bot"
	"otmitm/compiler"
	"otmitm/domain/recording"
	"otmitm/playback"
	"otmitm/tasks"
)

// CavebotParams names the recording to compile and replay, and the
// playback options to replay it with.
type CavebotParams struct {
	RecordingName string `json:"recording_name"`
	Loop          bool   `json:"loop"`
	Strategy      string `json:"strategy"` // "none", "pause_on_monster", "lure"
	LureDistance  int    `json:"lure_distance"`
	LureCount     int    `json:"lure_count"`
}

func defaultCavebotParams() CavebotParams {
	return CavebotParams{Strategy: "none"}
}

// cavebot is the C9 pathing task: it loads a named recording, compiles
// it to an actionsmap.ActionsMap (C10's compiler), and drives
// playback.Engine against the live world model for as long as it
// remains enabled. Grounded on recording/compiler/playback being
// built as three independently testable layers (domain/recording,
// compiler, playback) with this task doing nothing but wiring them,
// the same "thin task, capability-rich BotContext" shape healing and
// combat use.
type cavebot struct {
	params CavebotParams
	store  *recording.Store
	engine *playback.Engine
}

// NewCavebotFactory returns a tasks.Factory constructing a fresh
// cavebot task from tasksConfigDir/cavebot.json, resolving recordings
// against store and executing them on engine. engine is shared across
// factory calls (restart reuses the same playback.Engine instance,
// since Engine.Start already preempts any run in progress).
func NewCavebotFactory(tasksConfigDir string, store *recording.Store, engine *playback.Engine) tasks.Factory {
	return func() (tasks.Task, error) {
		p := defaultCavebotParams()
		path := filepath.Join(tasksConfigDir, "cavebot.json")
		if err := loadParams(path, &p); err != nil {
			return nil, err
		}
		return cavebot{params: p, store: store, engine: engine}, nil
	}
}

func (cavebot) Name() string { return "cavebot" }

func (c cavebot) Run(ctx context.Context, bc *bot.Context) error {
	if c.params.RecordingName == "" {
		return fmt.Errorf("tasklets: cavebot has no recording_name configured")
	}
	rec, err := c.store.Load(c.params.RecordingName)
	if err != nil {
		return fmt.Errorf("tasklets: cavebot: load recording %q: %w", c.params.RecordingName, err)
	}
	m := compiler.Build(rec)

	opts := playback.Options{
		Loop:         c.params.Loop,
		Strategy:     playback.Strategy(c.params.Strategy),
		LureDistance: c.params.LureDistance,
		LureCount:    c.params.LureCount,
	}
	c.engine.Start(ctx, bc, m, opts)

	<-ctx.Done()
	c.engine.Stop()
	return ctx.Err()
}
