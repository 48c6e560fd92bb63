// Package supervisor wires every other package into one running
// process: the two relay listeners (login/game), the world model, the
// packet scanner, the recorder, the task host and its tasklets, the
// playback engine, and the optional boundary collaborators (dashboard,
// bridge, memory patcher).
//
// Grounded on the teacher's cmd/client or cmd/server top-level wiring
// (constructing every infrastructure piece once and handing references
// down), adapted here into an explicit Supervisor type rather than a
// bare func main body, since this process owns several independently
// cancellable background loops (two relay listeners, a dashboard
// server, a bridge listener, a recorder tick loop) that the CLI's
// dashboard.Controller surface needs a stable receiver to call back
// into.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"otmitm/application/bot"
	"otmitm/application/logging"
	"otmitm/bridge"
	"otmitm/compiler"
	"otmitm/config"
	"otmitm/dashboard"
	"otmitm/domain/actionsmap"
	"otmitm/domain/recording"
	"otmitm/domain/world"
	"otmitm/memorypatch"
	"otmitm/playback"
	recorderpkg "otmitm/recording"
	"otmitm/relay"
	"otmitm/scanner"
	"otmitm/tasks"
	"otmitm/tasks/tasklets"
	"otmitm/wire/opcode"
)

const recorderTickInterval = 500 * time.Millisecond

// Supervisor owns every long-lived component of one proxy process.
type Supervisor struct {
	cfg config.Config
	log logging.Logger

	world *world.Model

	loginListener *relay.Listener
	gameListener  *relay.Listener
	stats         *relay.Stats

	recorder       *recorderpkg.Recorder
	recordingStore *recording.Store
	playbackEngine *playback.Engine

	taskHost        *tasks.Host
	settingsManager *tasks.SettingsManager

	bridgeListener *bridge.Listener
	patcher        *memorypatch.Patcher

	dashboardServer *dashboard.Server

	connected bool
}

// New constructs a Supervisor from cfg, registering the built-in
// tasklets (healing, combat, cavebot) and wiring every component
// together. It does not start any network listener; call Run for
// that.
func New(cfg config.Config, log logging.Logger) (*Supervisor, error) {
	keys, err := cfg.RSAKeys()
	if err != nil {
		return nil, fmt.Errorf("supervisor: load RSA keys: %w", err)
	}

	w := world.New()
	stats := &relay.Stats{}

	injector := bot.InjectorAdapter{}
	bc := &bot.Context{World: w, Log: log}
	bc.Injector = &injector

	settings := tasks.NewSettingsManager(cfg.SettingsPath)
	host := tasks.NewHost(log, bc, settings)
	recStore := recording.NewStore(cfg.RecordingsDir)
	rec := recorderpkg.NewRecorder(w)
	engine := playback.NewEngine(w)

	if err := host.Register("healing", tasklets.NewHealingFactory(cfg.TasksConfigDir)); err != nil {
		return nil, fmt.Errorf("supervisor: register healing: %w", err)
	}
	if err := host.Register("combat", tasklets.NewCombatFactory(cfg.TasksConfigDir)); err != nil {
		return nil, fmt.Errorf("supervisor: register combat: %w", err)
	}
	if err := host.Register("cavebot", tasklets.NewCavebotFactory(cfg.TasksConfigDir, recStore, engine)); err != nil {
		return nil, fmt.Errorf("supervisor: register cavebot: %w", err)
	}

	loginCfg := relay.Config{
		ListenAddr:     cfg.LoginListenAddr,
		UpstreamAddr:   cfg.LoginUpstreamAddr,
		RSAKeys:        keys,
		ServerIPToHide: cfg.ServerIP(),
		LoginTimeout:   cfg.LoginTimeout(),
	}
	gameCfg := loginCfg
	gameCfg.ListenAddr = cfg.GameListenAddr
	gameCfg.UpstreamAddr = cfg.GameUpstreamAddr

	loginListener := relay.NewListener(relay.RoleLogin, loginCfg, log, stats)
	gameListener := relay.NewListener(relay.RoleGame, gameCfg, log, stats)

	s := &Supervisor{
		cfg:             cfg,
		log:             log,
		world:           w,
		loginListener:   loginListener,
		gameListener:    gameListener,
		stats:           stats,
		recorder:        rec,
		recordingStore:  recStore,
		playbackEngine:  engine,
		taskHost:        host,
		settingsManager: settings,
	}

	injector.ToServer = func(payload []byte) { gameListener.Inject(relay.Injection{Target: relay.TargetServer, Payload: payload}) }
	injector.ToClient = func(payload []byte) { gameListener.Inject(relay.Injection{Target: relay.TargetClient, Payload: payload}) }

	gameListener.SetScanner(func(payload []byte, now time.Time) {
		scanner.Scan(w, payload, now)
	})
	gameListener.AddObserver(rec.Observe)
	gameListener.SetOnLoginSuccess(func() {
		s.connected = true
		host.StartAllEnabled()
	})
	gameListener.SetOnDisconnect(func() {
		s.connected = false
		host.ResetSessionState()
		engine.Stop()
	})

	if cfg.BridgeSocketPath != "" {
		s.bridgeListener = bridge.NewListener(cfg.BridgeSocketPath, w, log)
	}
	if cfg.MemoryPatch.Enabled {
		s.patcher = memorypatch.NewPatcher(memorypatch.NewLinuxCommander(), log)
	}
	if cfg.DashboardAddr != "" {
		s.dashboardServer = dashboard.NewServer(s, s, log)
	}

	return s, nil
}

// Run starts every configured component and blocks until ctx is
// cancelled or a fatal component error occurs, matching the relay's
// own errgroup.WithContext shape for joining independent loops.
func (s *Supervisor) Run(ctx context.Context) error {
	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error { return s.loginListener.Serve(gctx) })
	grp.Go(func() error { return s.gameListener.Serve(gctx) })

	grp.Go(func() error {
		ticker := time.NewTicker(recorderTickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.recorder.Tick()
				s.world.PruneStaleCreatures(time.Now(), 120*time.Second)
			}
		}
	})

	if s.bridgeListener != nil {
		grp.Go(func() error { return s.bridgeListener.Serve(gctx) })
	}
	if s.dashboardServer != nil {
		grp.Go(func() error { return s.dashboardServer.Start(s.cfg.DashboardAddr) })
	}
	if s.patcher != nil && s.cfg.MemoryPatch.ProcessName != "" {
		grp.Go(func() error {
			s.runMemoryPatchLoop(gctx)
			return nil
		})
	}

	return grp.Wait()
}

// runMemoryPatchLoop periodically attempts to locate the configured
// client process and patch its server IP reference. It is a
// best-effort outward collaborator: every failure is logged and
// never torn down the rest of the process.
func (s *Supervisor) runMemoryPatchLoop(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pid, err := memorypatch.FindProcessByName(s.cfg.MemoryPatch.ProcessName)
			if err != nil {
				s.log.Printf("memorypatch: %v", err)
				continue
			}
			needle := s.cfg.MemoryPatch.ServerIPToHide
			if needle == "" {
				needle = s.cfg.ServerIPToHide
			}
			n, err := s.patcher.PatchServerIP(pid, needle)
			if err != nil {
				s.log.Printf("memorypatch: pid %d: %v", pid, err)
				continue
			}
			if n > 0 {
				s.log.Printf("memorypatch: patched %d occurrence(s) in pid %d", n, pid)
			}
		}
	}
}

// BuildState implements dashboard.StateProvider.
func (s *Supervisor) BuildState() dashboard.State {
	stats := s.world.Stats()
	client, server := s.stats.Snapshot()

	creatures := s.world.Creatures()
	cs := make([]dashboard.CreatureState, 0, len(creatures))
	for _, c := range creatures {
		cs = append(cs, dashboard.CreatureState{
			ID: c.ID, Name: c.Name, X: c.Position.X, Y: c.Position.Y, Z: c.Position.Z,
			Health: c.Health, Source: c.Source,
		})
	}

	var actions []dashboard.ActionState
	for _, t := range s.taskHost.List() {
		actions = append(actions, dashboard.ActionState{Name: t.Name, Enabled: t.Enabled, Running: t.Running})
	}

	pos := s.world.Position()
	return dashboard.State{
		Connected: s.connected,
		Player: dashboard.PlayerState{
			ID: s.world.PlayerID(), X: pos.X, Y: pos.Y, Z: pos.Z,
			HP: stats.HP, MaxHP: stats.MaxHP, Mana: stats.Mana, MaxMana: stats.MaxMana,
			Level: stats.Level, Soul: stats.Soul,
		},
		Creatures:         cs,
		PacketsFromClient: client,
		PacketsFromServer: server,
		Actions:           actions,
		Cavebot: dashboard.CavebotState{
			Running:     s.playbackEngine.Running(),
			FailedNodes: s.playbackEngine.FailedNodes(),
		},
	}
}

var _ dashboard.Controller = (*Supervisor)(nil)

// StartBot implements dashboard.Controller.
func (s *Supervisor) StartBot() error {
	s.taskHost.StartAllEnabled()
	return nil
}

func (s *Supervisor) Walk(dirOpcode uint8, steps int) error {
	if steps < 1 {
		steps = 1
	}
	for i := 0; i < steps; i++ {
		s.gameListener.Inject(relay.Injection{Target: relay.TargetServer, Payload: opcode.BuildWalk(dirOpcode)})
	}
	return nil
}

func (s *Supervisor) Turn(dirOpcode uint8) error {
	s.gameListener.Inject(relay.Injection{Target: relay.TargetServer, Payload: opcode.BuildTurn(dirOpcode)})
	return nil
}

func (s *Supervisor) Say(talkType uint8, text string) error {
	s.gameListener.Inject(relay.Injection{Target: relay.TargetServer, Payload: opcode.BuildSay(talkType, text)})
	return nil
}

func (s *Supervisor) Attack(creatureID uint32) error {
	s.world.SetAttackTargetID(creatureID)
	s.gameListener.Inject(relay.Injection{Target: relay.TargetServer, Payload: opcode.BuildAttack(creatureID)})
	return nil
}

func (s *Supervisor) Follow(creatureID uint32) error {
	s.gameListener.Inject(relay.Injection{Target: relay.TargetServer, Payload: opcode.BuildFollow(creatureID)})
	return nil
}

func (s *Supervisor) UseItem(x, y uint16, z uint8, itemID uint16, stackPos, index uint8) error {
	t := opcode.Thing{Pos: opcode.Position{X: x, Y: y, Z: z}, ItemID: itemID, StackPos: stackPos}
	s.gameListener.Inject(relay.Injection{Target: relay.TargetServer, Payload: opcode.BuildUseItem(t, index)})
	return nil
}

func (s *Supervisor) MoveItem(fromX, fromY uint16, fromZ uint8, itemID uint16, stackPos uint8, toX, toY uint16, toZ uint8, count uint8) error {
	from := opcode.Thing{Pos: opcode.Position{X: fromX, Y: fromY, Z: fromZ}, ItemID: itemID, StackPos: stackPos}
	to := opcode.Position{X: toX, Y: toY, Z: toZ}
	s.gameListener.Inject(relay.Injection{Target: relay.TargetServer, Payload: opcode.BuildMoveThing(from, to, count)})
	return nil
}

func (s *Supervisor) LookAt(x, y uint16, z uint8, itemID uint16, stackPos uint8) error {
	t := opcode.Thing{Pos: opcode.Position{X: x, Y: y, Z: z}, ItemID: itemID, StackPos: stackPos}
	s.gameListener.Inject(relay.Injection{Target: relay.TargetServer, Payload: opcode.BuildLook(t)})
	return nil
}

func (s *Supervisor) SetFightModes(fight, chase, secure uint8) error {
	s.gameListener.Inject(relay.Injection{Target: relay.TargetServer, Payload: opcode.BuildSetFightModes(fight, chase, secure)})
	return nil
}

func (s *Supervisor) Logout() error {
	s.gameListener.Inject(relay.Injection{Target: relay.TargetServer, Payload: opcode.BuildLogout()})
	return nil
}

func (s *Supervisor) ToggleAction(name string, enabled bool) error {
	return s.taskHost.Toggle(name, enabled, s.connected)
}

func (s *Supervisor) RestartAction(name string) error {
	return s.taskHost.Restart(name)
}

func (s *Supervisor) StartRecording(name string) error {
	s.recorder.Start(name)
	return nil
}

func (s *Supervisor) StopRecording() error {
	rec := s.recorder.Stop()
	return s.recordingStore.Save(rec)
}

func (s *Supervisor) PlayRecording(name string, loop bool) error {
	rec, err := s.recordingStore.Load(name)
	if err != nil {
		return fmt.Errorf("play_recording: %w", err)
	}
	m := compiler.Build(rec)
	s.startPlayback(m, loop)
	return nil
}

func (s *Supervisor) startPlayback(m actionsmap.ActionsMap, loop bool) {
	bc := &bot.Context{
		World: s.world,
		Log:   s.log,
		Injector: bot.InjectorAdapter{
			ToServer: func(payload []byte) { s.gameListener.Inject(relay.Injection{Target: relay.TargetServer, Payload: payload}) },
			ToClient: func(payload []byte) { s.gameListener.Inject(relay.Injection{Target: relay.TargetClient, Payload: payload}) },
		},
	}
	s.playbackEngine.Start(context.Background(), bc, m, playback.Options{Loop: loop, Strategy: playback.StrategyNone})
}

func (s *Supervisor) StopPlayback() error {
	s.playbackEngine.Stop()
	return nil
}

func (s *Supervisor) ListRecordings() ([]string, error) {
	return s.recordingStore.List()
}

func (s *Supervisor) DeleteRecording(name string) error {
	return s.recordingStore.Delete(name)
}
