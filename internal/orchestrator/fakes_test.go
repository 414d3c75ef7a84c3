package orchestrator

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/example/deskcap/internal/actor"
	"github.com/example/deskcap/internal/artifact"
	"github.com/example/deskcap/internal/capture"
	"github.com/example/deskcap/internal/dispatch"
	"github.com/example/deskcap/internal/process"
	"github.com/example/deskcap/internal/settings"
)

func startLoop(t *testing.T) *actor.Loop {
	t.Helper()
	l := actor.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = l.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func onLoop(t *testing.T, l *actor.Loop, fn func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Call(ctx, fn); err != nil {
		t.Fatalf("loop call: %v", err)
	}
}

type fakeSettings struct {
	snap settings.Snapshot
	sets map[string]any
}

func (s *fakeSettings) Snapshot() settings.Snapshot { return s.snap }

func (s *fakeSettings) Set(key string, value any) error {
	if s.sets == nil {
		s.sets = map[string]any{}
	}
	s.sets[key] = value
	if key == settings.KeyCopyData {
		s.snap.CopyData = value.(bool)
	}
	return nil
}

type mechanismCall struct {
	kind capture.Kind
	opts capture.Options
	sel  *capture.Selection
}

type fakeMechanism struct {
	mu     sync.Mutex
	calls  []mechanismCall
	result *capture.Selection
	err    error
	gate   chan struct{}
}

func (m *fakeMechanism) Capture(_ context.Context, kind capture.Kind, opts capture.Options, sel *capture.Selection) (capture.Result, error) {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mechanismCall{kind, opts, sel})
	if m.err != nil {
		return capture.Result{}, m.err
	}
	out := sel
	if out == nil {
		out = m.result
	}
	return capture.Result{Path: opts.Filename, Selection: out}, nil
}

func (m *fakeMechanism) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *fakeMechanism) call(i int) mechanismCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[i]
}

type fakeDispatcher struct {
	artifacts []*artifact.Artifact
	snaps     []settings.Snapshot
	state     dispatch.StateChange
}

func (d *fakeDispatcher) Dispatch(a *artifact.Artifact, snap settings.Snapshot) (dispatch.Result, error) {
	d.artifacts = append(d.artifacts, a)
	d.snaps = append(d.snaps, snap)
	return dispatch.Result{NotificationID: uint32(len(d.artifacts)), State: d.state}, nil
}

type fakeRunner struct {
	mu         sync.Mutex
	runs       []string
	tracked    []string
	args       [][]string
	failLaunch bool
	trackedCh  chan string
}

func (r *fakeRunner) Split(command string) ([]string, error) {
	return []string{command}, nil
}

func (r *fakeRunner) Run(command string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, command)
}

func (r *fakeRunner) RunTracked(command string, h process.Handlers) *process.Handle {
	r.mu.Lock()
	r.tracked = append(r.tracked, command)
	fail := r.failLaunch
	r.mu.Unlock()
	if fail && h.OnFailure != nil {
		h.OnFailure(command, process.ErrLaunchFailed)
	} else if h.OnStart != nil {
		h.OnStart(1)
	}
	if r.trackedCh != nil {
		r.trackedCh <- command
	}
	return nil
}

func (r *fakeRunner) RunArgs(argv []string, h process.Handlers) *process.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.args = append(r.args, argv)
	return nil
}

func (r *fakeRunner) snapshot() (runs, tracked []string, args [][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.runs...), append([]string(nil), r.tracked...), append([][]string(nil), r.args...)
}

type fakeHost struct {
	closeMenu  int
	repeat     []bool
	busy       []bool
	rebuilds   int
	recordings chan bool
}

func (h *fakeHost) CloseMenu()        { h.closeMenu++ }
func (h *fakeHost) ShowRepeat(v bool) { h.repeat = append(h.repeat, v) }
func (h *fakeHost) SetBusy(v bool)    { h.busy = append(h.busy, v) }
func (h *fakeHost) Rebuild()          { h.rebuilds++ }

func (h *fakeHost) SetRecording(v bool) {
	if h.recordings != nil {
		h.recordings <- v
	}
}

type fakeSelector struct {
	sel capture.Selection
	err error
}

func (s *fakeSelector) Select(context.Context, capture.HelperMode) (capture.Selection, error) {
	return s.sel, s.err
}

type fixture struct {
	loop       *actor.Loop
	settings   *fakeSettings
	mechanism  *fakeMechanism
	dispatcher *fakeDispatcher
	runner     *fakeRunner
	host       *fakeHost
	o          *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		loop: startLoop(t),
		settings: &fakeSettings{snap: settings.Snapshot{
			CameraSaveDir:      t.TempDir(),
			RecorderSaveDir:    t.TempDir(),
			CameraSavePrefix:   "shot_%TYPE_%Y%M%D-%H%I%S",
			RecorderSavePrefix: "cast_%Y%M%D-%H%I%S",
			SendNotification:   true,
			CopyToClipboard:    settings.ClipboardPath,
		}},
		mechanism:  &fakeMechanism{result: &capture.Selection{Rect: image.Rect(1, 2, 30, 40)}},
		dispatcher: &fakeDispatcher{},
		runner:     &fakeRunner{},
		host:       &fakeHost{},
	}
	f.o = New(Deps{
		Loop:       f.loop,
		Settings:   f.settings,
		Mechanism:  f.mechanism,
		Selector:   &fakeSelector{},
		Dispatcher: f.dispatcher,
		Runner:     f.runner,
		Host:       f.host,
		ScreenSize: func() (int, int) { return 1920, 1080 },
	})
	return f
}

type outcome struct {
	a   *artifact.Artifact
	err error
}

// capture runs one request to completion.
func (f *fixture) capture(t *testing.T, kind capture.Kind) outcome {
	t.Helper()
	ch := make(chan outcome, 1)
	onLoop(t, f.loop, func() {
		f.o.Capture(context.Background(), kind, func(a *artifact.Artifact, err error) {
			ch <- outcome{a, err}
		})
	})
	select {
	case out := <-ch:
		return out
	case <-time.After(5 * time.Second):
		t.Fatalf("capture of %v never completed", kind)
	}
	return outcome{}
}

var errBoom = errors.New("boom")
