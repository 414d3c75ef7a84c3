package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/example/deskcap/assets"
	"github.com/example/deskcap/internal/actor"
	"github.com/example/deskcap/internal/artifact"
	"github.com/example/deskcap/internal/capture"
	"github.com/example/deskcap/internal/clipboard"
	"github.com/example/deskcap/internal/dispatch"
	"github.com/example/deskcap/internal/history"
	"github.com/example/deskcap/internal/notify"
	"github.com/example/deskcap/internal/orchestrator"
	"github.com/example/deskcap/internal/platform"
	"github.com/example/deskcap/internal/process"
	"github.com/example/deskcap/internal/settings"
)

// engine wires the capture components around one event loop.
type engine struct {
	loop       *actor.Loop
	settings   *settings.Reactor
	session    *platform.Session
	center     *notify.Center
	dispatcher *dispatch.Dispatcher
	runner     *process.Supervisor
	orch       *orchestrator.Orchestrator
	journal    *history.Store
	host       *daemonHost
	picker     *settingsPicker
	icon       string
	logger     *slog.Logger

	// background outlives single requests; commands that pick a region
	// after the client has been answered run under it.
	background context.Context
}

func newEngine(settingsPath string, logger *slog.Logger) (*engine, error) {
	reactor, err := settings.Open(settingsPath, logger.With("component", "settings"))
	if err != nil {
		return nil, err
	}
	e := &engine{
		loop:     actor.New(logger.With("component", "loop")),
		settings: reactor,
		host:     &daemonHost{logger: logger.With("component", "host")},
		logger:   logger,
	}
	e.runner = process.New(e.loop, logger.With("component", "process"))
	e.picker = &settingsPicker{runner: e.runner}
	e.picker.update(reactor.Snapshot())

	var backend notify.Backend = offlineBackend{}
	var hold orchestrator.DisplayHold
	if session, err := platform.Dial(logger.With("component", "platform")); err != nil {
		logger.Warn("desktop session unavailable, notifications disabled", "err", err)
	} else {
		e.session = session
		backend = session
		hold = session
	}
	e.center = notify.NewCenter(backend, notify.LoadPreferences(), logger.With("component", "notify"))
	e.dispatcher = dispatch.New(clipboard.System{}, e.center, e.runner, e.loop, logger.With("component", "dispatch"))

	var journal orchestrator.Journal
	if path, err := history.DefaultPath(); err != nil {
		logger.Warn("history disabled", "err", err)
	} else if store, err := history.Open(path, logger.With("component", "history")); err != nil {
		logger.Warn("history disabled", "path", path, "err", err)
	} else {
		e.journal = store
		journal = store
		e.dispatcher.OnDelete = store.RecordDelete
	}

	desktop := &capture.Desktop{Selector: e.picker, Logger: logger.With("component", "capture")}
	e.orch = orchestrator.New(orchestrator.Deps{
		Loop:       e.loop,
		Settings:   reactor,
		Mechanism:  desktop,
		Selector:   e.picker,
		Dispatcher: e.dispatcher,
		Runner:     e.runner,
		Host:       e.host,
		Hold:       hold,
		Journal:    journal,
		Logger:     logger.With("component", "orchestrator"),
	})
	desktop.OnTick = e.orch.Tick
	desktop.OnShutter = e.orch.Shutter

	if dir, err := os.UserCacheDir(); err == nil {
		if icon, err := assets.InstallIcon(filepath.Join(dir, "deskcap")); err == nil {
			e.icon = icon
		} else {
			logger.Debug("install icon", "err", err)
		}
	}
	return e, nil
}

// start begins watching settings and notification signals and probes for
// a file manager. It must run before the loop starts draining.
func (e *engine) start(ctx context.Context) {
	e.background = ctx
	e.settings.Watch(e.loop, e.settingsChanged)
	if e.session != nil {
		e.session.Subscribe(func(ev platform.Event) {
			e.loop.Post(func() { e.notificationEvent(ev) })
		})
	}
	e.loop.Post(func() {
		e.orch.DetectFileManager(func(fm string) { e.dispatcher.FileManager = fm })
	})
}

func (e *engine) close() {
	if e.session != nil {
		if err := e.session.Close(); err != nil {
			e.logger.Debug("close session", "err", err)
		}
	}
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			e.logger.Debug("close history", "err", err)
		}
	}
}

func (e *engine) settingsChanged(c settings.Change) {
	e.logger.Info("settings changed", "keys", c.Keys)
	e.picker.update(c.Current)
	if c.Hotkeys {
		for _, key := range settings.HotkeyKeys {
			if c.Current.Hotkey(key) != c.Previous.Hotkey(key) {
				e.logger.Info("hotkey changed", "key", key, "binding", c.Current.Hotkey(key))
			}
		}
	}
	if c.Structural {
		e.host.Rebuild()
	}
}

func (e *engine) notificationEvent(ev platform.Event) {
	switch ev := ev.(type) {
	case platform.ActionInvoked:
		err := e.dispatcher.HandleResponse(ev.ID, ev.Action, e.settings.Snapshot())
		switch {
		case errors.Is(err, dispatch.ErrUnknownNotification):
			e.logger.Debug("action for foreign notification", "id", ev.ID)
		case err != nil:
			e.logger.Warn("notification action failed", "id", ev.ID, "action", ev.Action, "err", err)
		}
	case platform.Closed:
		e.dispatcher.Closed(ev.ID)
		e.center.Forget(ev.ID)
	}
}

// Execute runs one control request.
func (e *engine) Execute(ctx context.Context, line string, stdout, stderr io.Writer) (bool, error) {
	req, err := parseRequest(line)
	if err != nil {
		return false, err
	}
	switch req.verb {
	case "capture", "repeat":
		return false, e.capture(ctx, req.kind, stdout)
	case "quit":
		return true, nil
	case "status":
		return false, e.status(ctx, stdout)
	}

	var handleErr error
	if err := e.loop.Call(ctx, func() { handleErr = e.handle(ctx, req, stdout) }); err != nil {
		return false, err
	}
	return false, handleErr
}

// handle runs the non-blocking requests on the loop.
func (e *engine) handle(ctx context.Context, req request, stdout io.Writer) error {
	switch req.verb {
	case "record":
		_, wasRecording := e.orch.Recording()
		if err := e.orch.ToggleRecording(); err != nil {
			return err
		}
		if wasRecording {
			fmt.Fprintln(stdout, "stopping recording")
		} else if path, ok := e.orch.Recording(); ok {
			fmt.Fprintf(stdout, "recording to %s\n", path)
		}
	case "run":
		return e.orch.RunCommand(e.background, req.command, req.mode, req.capture)
	case "demo":
		if e.icon == "" {
			return errors.New("demo icon unavailable")
		}
		_, err := e.orch.Demo(e.icon)
		return err
	case "open":
		dir, err := e.orch.OpenFolder(req.mode)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, dir)
	case "set":
		return e.settings.Set(req.key, req.value)
	case "reload":
		c, err := e.settings.Reload()
		if err != nil {
			return err
		}
		if len(c.Keys) > 0 {
			e.settingsChanged(c)
		}
		fmt.Fprintf(stdout, "%d setting(s) changed\n", len(c.Keys))
	}
	return nil
}

func (e *engine) capture(ctx context.Context, kind capture.Kind, stdout io.Writer) error {
	type outcome struct {
		a   *artifact.Artifact
		err error
	}
	ch := make(chan outcome, 1)
	if err := e.loop.Call(ctx, func() {
		e.orch.Capture(ctx, kind, func(a *artifact.Artifact, err error) {
			ch <- outcome{a, err}
		})
	}); err != nil {
		return err
	}
	select {
	case out := <-ch:
		if out.err != nil {
			return out.err
		}
		fmt.Fprintln(stdout, out.a.Path)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *engine) status(ctx context.Context, stdout io.Writer) error {
	var lines []string
	err := e.loop.Call(ctx, func() {
		snap := e.settings.Snapshot()
		lines = append(lines,
			"settings: "+e.settings.Path(),
			"screenshots: "+snap.CameraSaveDir,
			"recordings: "+snap.RecorderSaveDir,
			fmt.Sprintf("busy: %t (%d capture(s) pending)", e.host.busy, e.orch.Busy()),
		)
		if a := e.orch.LastCapture(); a != nil {
			lines = append(lines, fmt.Sprintf("last capture: %s (%s, %s)", a.Path, a.Kind, a.CreatedAt.Format(time.DateTime)))
		}
		if path, ok := e.orch.Recording(); ok {
			lines = append(lines, "recording: "+path)
		}
		if e.dispatcher.FileManager != "" {
			lines = append(lines, "file manager: "+e.dispatcher.FileManager)
		}
		var hotkeys []string
		for _, key := range settings.HotkeyKeys {
			if b := snap.Hotkey(key); b != "" {
				hotkeys = append(hotkeys, "hotkey "+key+": "+b)
			}
		}
		sort.Strings(hotkeys)
		lines = append(lines, hotkeys...)
	})
	if err != nil {
		return err
	}
	for _, l := range lines {
		fmt.Fprintln(stdout, l)
	}
	return nil
}

// daemonHost stands in for a menu: it has nothing to draw and keeps the
// state the status request reports.
type daemonHost struct {
	logger    *slog.Logger
	busy      bool
	recording bool
	repeat    bool
}

func (h *daemonHost) CloseMenu() {}

func (h *daemonHost) ShowRepeat(visible bool) { h.repeat = visible }

func (h *daemonHost) SetBusy(busy bool) {
	h.busy = busy
	h.logger.Debug("busy", "busy", busy)
}

func (h *daemonHost) SetRecording(recording bool) {
	h.recording = recording
	h.logger.Info("recording", "active", recording)
}

func (h *daemonHost) Rebuild() {
	h.logger.Debug("rebuild requested")
}

// settingsPicker runs the configured picker command. Select is called off
// the loop, so the command is guarded.
type settingsPicker struct {
	runner *process.Supervisor

	mu      sync.Mutex
	command []string
}

func (p *settingsPicker) update(snap settings.Snapshot) {
	var argv []string
	if snap.PickerCommand != "" {
		split, err := p.runner.Split(snap.PickerCommand)
		if err == nil {
			argv = split
		}
	}
	p.mu.Lock()
	p.command = argv
	p.mu.Unlock()
}

func (p *settingsPicker) Select(ctx context.Context, mode capture.HelperMode) (capture.Selection, error) {
	p.mu.Lock()
	argv := p.command
	p.mu.Unlock()
	sel := &capture.PickerSelector{Runner: p.runner, Command: argv}
	return sel.Select(ctx, mode)
}

// offlineBackend stands in when no desktop session is reachable.
type offlineBackend struct{}

func (offlineBackend) Notify(platform.Notification) (uint32, error) {
	return 0, platform.ErrUnsupported
}

func (offlineBackend) CloseNotification(uint32) error { return platform.ErrUnsupported }
