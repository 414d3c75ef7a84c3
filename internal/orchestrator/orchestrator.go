// Package orchestrator turns capture requests into artifacts: it resolves
// the destination, drives the capture mechanism and hands the result to
// the dispatcher. Every exported method runs on the event loop.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/deskcap/internal/artifact"
	"github.com/example/deskcap/internal/capture"
	"github.com/example/deskcap/internal/dispatch"
	"github.com/example/deskcap/internal/process"
	"github.com/example/deskcap/internal/savepath"
	"github.com/example/deskcap/internal/settings"
)

// ErrNothingToRepeat is returned by a repeat request before any capture
// has completed.
var ErrNothingToRepeat = errors.New("no previous capture to repeat")

// screenGrace lets the host's menu disappear before a plain screen grab.
const screenGrace = 150 * time.Millisecond

// Loop runs functions on the event loop.
type Loop interface {
	Post(fn func()) bool
	After(d time.Duration, fn func()) *time.Timer
}

// Settings provides the live snapshot and accepts write-backs.
type Settings interface {
	Snapshot() settings.Snapshot
	Set(key string, value any) error
}

// Dispatcher handles finished captures.
type Dispatcher interface {
	Dispatch(a *artifact.Artifact, snap settings.Snapshot) (dispatch.Result, error)
}

// Runner launches external commands.
type Runner interface {
	Split(command string) ([]string, error)
	Run(command string)
	RunTracked(command string, h process.Handlers) *process.Handle
	RunArgs(argv []string, h process.Handlers) *process.Handle
}

// Host is whatever presents deskcap to the user: a menu, a tray icon or
// just the daemon's status.
type Host interface {
	CloseMenu()
	ShowRepeat(visible bool)
	SetBusy(busy bool)
	SetRecording(recording bool)
	Rebuild()
}

// DisplayHold keeps the display awake while recording.
type DisplayHold interface {
	Inhibit(app, reason string) (uint32, error)
	Uninhibit(cookie uint32) error
}

// Journal records finished captures and recordings.
type Journal interface {
	RecordCapture(a *artifact.Artifact)
	RecordRecording(path string, started, stopped time.Time)
}

// Deps are the collaborators of an Orchestrator. Hold, Journal and
// Selector may be nil.
type Deps struct {
	Loop       Loop
	Settings   Settings
	Mechanism  capture.Mechanism
	Selector   capture.Selector
	Dispatcher Dispatcher
	Runner     Runner
	Host       Host
	Hold       DisplayHold
	Journal    Journal
	ScreenSize func() (int, int)
	Logger     *slog.Logger
}

// Orchestrator owns lastCapture and the running recorder.
type Orchestrator struct {
	Deps
	logger *slog.Logger
	now    func() time.Time

	last     *artifact.Artifact
	rec      *recording
	inflight int
}

// New creates an Orchestrator.
func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.ScreenSize == nil {
		deps.ScreenSize = capture.ScreenSize
	}
	return &Orchestrator{Deps: deps, logger: logger, now: time.Now}
}

// LastCapture returns the most recent successful capture, or nil.
func (o *Orchestrator) LastCapture() *artifact.Artifact { return o.last }

// Busy reports the number of captures waiting on the mechanism.
func (o *Orchestrator) Busy() int { return o.inflight }

// Capture starts a capture of kind. done is called on the loop with the
// artifact, or with the error that dropped the request.
func (o *Orchestrator) Capture(ctx context.Context, kind capture.Kind, done func(*artifact.Artifact, error)) {
	if done == nil {
		done = func(*artifact.Artifact, error) {}
	}
	snap := o.Settings.Snapshot()

	var (
		opts capture.Options
		sel  *capture.Selection
	)
	if _, ok := kind.(capture.Repeat); ok {
		if o.last == nil {
			o.logger.Info("repeat requested before any capture")
			done(nil, ErrNothingToRepeat)
			return
		}
		kind, opts, sel = o.last.Kind, o.last.Options, o.last.Selection
		if snap.DelaySeconds == 0 {
			o.Host.CloseMenu()
		}
	} else {
		opts = optionsFrom(snap)
	}

	path, err := savepath.Resolve(snap.CameraSaveDir, snap.CameraSavePrefix, "png", kind.Tag())
	if err != nil {
		o.logger.Error("capture dropped", "kind", kind.String(), "err", err)
		done(nil, err)
		return
	}
	opts.Filename = path

	invoke := func() { o.invoke(ctx, kind, opts, sel, snap, done) }
	if _, plain := kind.(capture.Screen); plain && opts.TimerSeconds == 0 {
		o.Host.CloseMenu()
		o.Loop.After(screenGrace, invoke)
		return
	}
	invoke()
}

func (o *Orchestrator) invoke(ctx context.Context, kind capture.Kind, opts capture.Options, sel *capture.Selection, snap settings.Snapshot, done func(*artifact.Artifact, error)) {
	o.logger.Debug("invoking capture", "kind", kind.String(), "path", opts.Filename, "delay", opts.TimerSeconds)
	o.inflight++
	go func() {
		res, err := o.Mechanism.Capture(ctx, kind, opts, sel)
		posted := o.Loop.Post(func() {
			o.inflight--
			o.complete(kind, opts, sel, snap, res, err, done)
		})
		if !posted {
			o.logger.Warn("capture result dropped", "kind", kind.String(), "path", opts.Filename)
		}
	}()
}

func (o *Orchestrator) complete(kind capture.Kind, opts capture.Options, sel *capture.Selection, snap settings.Snapshot, res capture.Result, err error, done func(*artifact.Artifact, error)) {
	if err != nil {
		o.logger.Error("capture failed", "kind", kind.String(), "err", err)
		done(nil, err)
		return
	}
	if res.Selection != nil {
		sel = res.Selection
	}
	if res.Path == "" {
		res.Path = opts.Filename
	}
	a := artifact.New(kind, res.Path, opts, sel)
	if repeatable(kind) {
		o.last = a
	}
	_, plain := kind.(capture.Screen)
	o.Host.ShowRepeat(!plain)
	o.logger.Info("capture saved", "kind", kind.String(), "path", a.Path)
	if o.Journal != nil {
		o.Journal.RecordCapture(a)
	}

	result, err := o.Dispatcher.Dispatch(a, snap)
	if err != nil {
		o.logger.Warn("dispatch incomplete", "path", a.Path, "err", err)
	}
	o.apply(result.State)
	if opts.OpenAfter {
		o.open(a.FileURI())
	}
	done(a, nil)
}

// repeatable reports whether a capture of kind becomes the repeat target.
// Whole-screen and whole-monitor grabs need no stored geometry.
func repeatable(kind capture.Kind) bool {
	switch kind.(type) {
	case capture.Screen, capture.Monitor:
		return false
	}
	return true
}

func (o *Orchestrator) apply(sc dispatch.StateChange) {
	if sc.ClearCopyData {
		if err := o.Settings.Set(settings.KeyCopyData, false); err != nil {
			o.logger.Warn("clear copy-data", "err", err)
		}
	}
	if sc.Rebuild {
		o.Host.Rebuild()
	}
}

// Tick plays the countdown sound. It may be called from any goroutine.
func (o *Orchestrator) Tick(remaining int, opts capture.Options) {
	o.Loop.Post(func() {
		o.logger.Debug("capture countdown", "remaining", remaining)
		if opts.PlayTimerSound && opts.TimerSound != "" {
			o.Runner.Run(opts.TimerSound)
		}
	})
}

// Shutter plays the shutter sound. It may be called from any goroutine.
func (o *Orchestrator) Shutter(opts capture.Options) {
	o.Loop.Post(func() {
		if opts.PlayShutterSound && opts.ShutterSound != "" {
			o.Runner.Run(opts.ShutterSound)
		}
	})
}

func optionsFrom(snap settings.Snapshot) capture.Options {
	return capture.Options{
		IncludeCursor:      snap.IncludeCursor,
		UseFlash:           snap.UseCameraFlash,
		IncludeWindowFrame: snap.IncludeWindowFrame,
		IncludeStyles:      snap.IncludeStyles,
		WindowAsArea:       snap.CaptureWindowAsArea,
		PlayShutterSound:   snap.PlayShutterSound,
		PlayTimerSound:     snap.PlayTimerIntervalSound,
		SendNotification:   snap.SendNotification,
		OpenAfter:          snap.OpenAfter && !snap.CopyData,
		TimerSeconds:       snap.DelaySeconds,
		TimerSound:         snap.TimerSoundCommand,
		ShutterSound:       snap.ShutterSoundCommand,
	}
}
