// Package tasks implements the C9 task host: dynamic discovery,
// toggling, and reload of cooperative automation tasks running over a
// shared bot.Context, plus fsnotify-based visibility of on-disk source
// edits.
package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"otmitm/application/bot"
	"otmitm/application/logging"
)

// Task is one cooperative automation routine. Factory returns a fresh
// instance so Restart can pick up edits without mutating shared state
// across reloads.
type Task interface {
	Name() string
	Run(ctx context.Context, bc *bot.Context) error
}

// Factory builds a Task from its current on-disk/in-memory
// definition. Restart calls Factory again so "effects of source edits
// on disk become visible on restart" without this host caring how a
// given Task is implemented (Go source requires a process restart to
// truly hot-reload; Factory is the seam a future dynamic-loading
// implementation would replace).
type Factory func() (Task, error)

// LogRing is a small fixed-capacity ring buffer of a task's recent log
// lines, surfaced by the dashboard and CLI.
type LogRing struct {
	mu    sync.Mutex
	lines []string
	cap   int
}

func newLogRing(capacity int) *LogRing {
	return &LogRing{cap: capacity}
}

func (r *LogRing) append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	if len(r.lines) > r.cap {
		r.lines = r.lines[len(r.lines)-r.cap:]
	}
}

// Lines returns a snapshot of the ring.
func (r *LogRing) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// ringLogger adapts a LogRing plus the host's base logger into a
// logging.Logger passed to each task's bot.Context.
type ringLogger struct {
	name string
	ring *LogRing
	base logging.Logger
}

func (l ringLogger) Printf(format string, v ...any) {
	line := fmt.Sprintf(format, v...)
	l.ring.append(line)
	l.base.Printf("[%s] %s", l.name, line)
}

type registration struct {
	name    string
	factory Factory

	mu      sync.Mutex
	enabled bool
	running bool
	cancel  context.CancelFunc
	ring    *LogRing
}

// Host dynamically discovers tasks by name and manages their
// lifecycle: toggle, restart, and the once-per-session start_all_enabled
// sweep.
type Host struct {
	log      logging.Logger
	bc       *bot.Context
	settings *SettingsManager

	mu    sync.Mutex
	tasks map[string]*registration

	startedAllOnce bool

	watcher *fsnotify.Watcher
}

// NewHost constructs a task host bound to the given bot context and
// settings file.
func NewHost(log logging.Logger, bc *bot.Context, settings *SettingsManager) *Host {
	return &Host{
		log:      log,
		bc:       bc,
		settings: settings,
		tasks:    make(map[string]*registration),
	}
}

// Register adds a task by name with its factory. Its enabled flag is
// loaded from the settings file, defaulting to disabled.
func (h *Host) Register(name string, factory Factory) error {
	sf, err := h.settings.Load()
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks[name] = &registration{
		name:    name,
		factory: factory,
		enabled: sf.Actions[name].Enabled,
		ring:    newLogRing(200),
	}
	return nil
}

// WatchSourceDir starts an fsnotify watch on dir so an on-disk edit to
// a task's params file is treated the same as an operator-issued
// Restart(name): the edited file's base name (minus extension) is the
// task name, matching the "<tasksConfigDir>/<name>.json" path every
// tasklet factory in tasks/tasklets reads from.
func (h *Host) WatchSourceDir(dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}
	h.watcher = w
	go func() {
		for event := range w.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := strings.TrimSuffix(filepath.Base(event.Name), filepath.Ext(event.Name))
			h.log.Printf("tasks: source edit detected: %s", event.Name)
			if !h.isRunning(name) {
				continue
			}
			if err := h.Restart(name); err != nil {
				h.log.Printf("tasks: %s: restart on source edit failed: %v", name, err)
			}
		}
	}()
	return nil
}

// isRunning reports whether the named task is currently running, so
// WatchSourceDir only restarts tasks an operator already has enabled
// and started, the same gate Toggle applies on an off->on transition.
func (h *Host) isRunning(name string) bool {
	h.mu.Lock()
	reg, ok := h.tasks[name]
	h.mu.Unlock()
	if !ok {
		return false
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.running
}

// Close stops the fsnotify watcher, if any.
func (h *Host) Close() error {
	if h.watcher != nil {
		return h.watcher.Close()
	}
	return nil
}

// Toggle persists the enabled setting and starts or stops the task on
// an off->on or on->off transition, provided a session is connected.
func (h *Host) Toggle(name string, enabled bool, sessionConnected bool) error {
	if err := h.settings.SetEnabled(name, enabled); err != nil {
		return err
	}

	h.mu.Lock()
	reg, ok := h.tasks[name]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("tasks: unknown task %q", name)
	}

	reg.mu.Lock()
	wasEnabled := reg.enabled
	reg.enabled = enabled
	reg.mu.Unlock()

	if !wasEnabled && enabled && sessionConnected {
		return h.start(reg)
	}
	if wasEnabled && !enabled {
		h.stop(reg)
	}
	return nil
}

// Restart stops the task (cancelling cooperatively), reloads it via
// Factory so edits made on disk since the last start are picked up,
// then starts it again.
func (h *Host) Restart(name string) error {
	h.mu.Lock()
	reg, ok := h.tasks[name]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("tasks: unknown task %q", name)
	}
	h.stop(reg)
	return h.start(reg)
}

// StartAllEnabled runs once per session login, starting every
// registered task whose persisted setting is enabled. Subsequent
// calls are no-ops until ResetSessionState is called.
func (h *Host) StartAllEnabled() {
	h.mu.Lock()
	if h.startedAllOnce {
		h.mu.Unlock()
		return
	}
	h.startedAllOnce = true
	regs := make([]*registration, 0, len(h.tasks))
	for _, r := range h.tasks {
		regs = append(regs, r)
	}
	h.mu.Unlock()

	for _, reg := range regs {
		reg.mu.Lock()
		enabled := reg.enabled
		reg.mu.Unlock()
		if enabled {
			_ = h.start(reg)
		}
	}
}

// ResetSessionState clears the start_all_enabled latch and stops
// every running task; called on session preempt/disconnect.
func (h *Host) ResetSessionState() {
	h.mu.Lock()
	h.startedAllOnce = false
	regs := make([]*registration, 0, len(h.tasks))
	for _, r := range h.tasks {
		regs = append(regs, r)
	}
	h.mu.Unlock()

	for _, reg := range regs {
		h.stop(reg)
	}
}

// TaskState is one task's current state tuple.
type TaskState struct {
	Name    string
	Enabled bool
	Running bool
}

// List returns a snapshot of every registered task's state.
func (h *Host) List() []TaskState {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]TaskState, 0, len(h.tasks))
	for _, r := range h.tasks {
		r.mu.Lock()
		out = append(out, TaskState{Name: r.name, Enabled: r.enabled, Running: r.running})
		r.mu.Unlock()
	}
	return out
}

// LogsFor returns the recent log lines for a task, or nil if unknown.
func (h *Host) LogsFor(name string) []string {
	h.mu.Lock()
	reg, ok := h.tasks[name]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return reg.ring.Lines()
}

func (h *Host) start(reg *registration) error {
	reg.mu.Lock()
	if reg.running {
		reg.mu.Unlock()
		return nil
	}
	t, err := reg.factory()
	if err != nil {
		reg.mu.Unlock()
		h.log.Printf("tasks: %s: factory error: %v", reg.name, err)
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	reg.running = true
	reg.cancel = cancel
	reg.mu.Unlock()

	taskBC := &bot.Context{World: h.bc.World, Injector: h.bc.Injector, Log: ringLogger{name: reg.name, ring: reg.ring, base: h.log}}

	go func() {
		defer func() {
			if p := recover(); p != nil {
				h.log.Printf("tasks: %s: panic: %v", reg.name, p)
			}
			reg.mu.Lock()
			reg.running = false
			reg.mu.Unlock()
		}()
		if err := t.Run(ctx, taskBC); err != nil && ctx.Err() == nil {
			h.log.Printf("tasks: %s: exited with error: %v", reg.name, err)
		}
	}()
	return nil
}

func (h *Host) stop(reg *registration) {
	reg.mu.Lock()
	cancel := reg.cancel
	reg.running = false
	reg.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
