package orchestrator

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/deskcap/internal/capture"
	"github.com/example/deskcap/internal/cmdtemplate"
)

func TestRunCommandAreaHelper(t *testing.T) {
	f := newFixture(t)
	f.o.Selector = &fakeSelector{sel: capture.Selection{Rect: image.Rect(10, 20, 111, 70)}}
	f.runner.trackedCh = make(chan string, 1)

	var err error
	onLoop(t, f.loop, func() {
		err = f.o.RunCommand(testContext(t), "#DC_AREA_HELPER# scrot {X_Y} {WIDTH}x{HEIGHT}", cmdtemplate.ModeCamera, true)
	})
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	select {
	case got := <-f.runner.trackedCh:
		if got != "scrot 10,20 101x50" {
			t.Fatalf("command = %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("command never ran")
	}
}

func TestRunCommandWindowHelperTokens(t *testing.T) {
	f := newFixture(t)
	win := &capture.WindowInfo{ID: 77, Frame: 76, Class: "Firefox", Title: "Docs"}
	f.o.Selector = &fakeSelector{sel: capture.Selection{Rect: image.Rect(0, 0, 641, 480), Window: win}}
	f.runner.trackedCh = make(chan string, 1)
	onLoop(t, f.loop, func() {
		_ = f.o.RunCommand(testContext(t), "#DC_WINDOW_HELPER# rec {X_WINDOW_ID} {NICEWIDTH}x{NICEHEIGHT} {WM_CLASS}", cmdtemplate.ModeRecorder, true)
	})
	if got := <-f.runner.trackedCh; got != "rec 77 642x480 Firefox" {
		t.Fatalf("command = %q", got)
	}
}

func TestRunCommandCancelledSelectionRunsNothing(t *testing.T) {
	f := newFixture(t)
	f.o.Selector = &fakeSelector{err: capture.ErrSelectionCancelled}
	onLoop(t, f.loop, func() {
		_ = f.o.RunCommand(testContext(t), "#DC_AREA_HELPER# scrot", cmdtemplate.ModeCamera, true)
	})
	time.Sleep(50 * time.Millisecond)
	onLoop(t, f.loop, func() {})
	if _, tracked, _ := f.runner.snapshot(); len(tracked) != 0 {
		t.Fatalf("tracked = %v", tracked)
	}
}

func TestRunCommandGeneralTokens(t *testing.T) {
	f := newFixture(t)
	f.settings.snap.DelaySeconds = 0
	onLoop(t, f.loop, func() {
		_ = f.o.RunCommand(testContext(t), "grab {SCREEN_DIMENSIONS} {DIRECTORY} {DELAY}", cmdtemplate.ModeCamera, true)
	})
	_, tracked, _ := f.runner.snapshot()
	want := "grab 1920x1080 " + f.settings.snap.CameraSaveDir + " "
	if len(tracked) != 1 || tracked[0] != want {
		t.Fatalf("tracked = %q, want %q", tracked, want)
	}
	if f.host.closeMenu != 1 {
		t.Fatalf("menu not closed")
	}
	if len(f.host.busy) != 1 || !f.host.busy[0] {
		t.Fatalf("busy = %v", f.host.busy)
	}
}

func TestRunCommandNotCaptureStripsMarker(t *testing.T) {
	f := newFixture(t)
	onLoop(t, f.loop, func() {
		_ = f.o.RunCommand(testContext(t), "#DC_AREA_HELPER# notify-send {FILENAME}", cmdtemplate.ModeRecorder, false)
	})
	runs, tracked, _ := f.runner.snapshot()
	if len(tracked) != 0 || len(runs) != 1 || !strings.HasPrefix(runs[0], "notify-send cast_") {
		t.Fatalf("runs=%v tracked=%v", runs, tracked)
	}
}

func TestRunCommandLaunchFailureAlerts(t *testing.T) {
	f := newFixture(t)
	f.runner.failLaunch = true
	onLoop(t, f.loop, func() {
		_ = f.o.RunCommand(testContext(t), "missing-tool <a>", cmdtemplate.ModeCamera, true)
	})
	_, _, args := f.runner.snapshot()
	if len(args) != 1 || args[0][0] != "zenity" {
		t.Fatalf("args = %v", args)
	}
	text := args[0][len(args[0])-1]
	if !strings.Contains(text, "missing-tool &lt;a&gt;") {
		t.Fatalf("alert text = %q", text)
	}
	if len(f.host.busy) != 1 || f.host.busy[0] {
		t.Fatalf("busy = %v", f.host.busy)
	}
}

func TestRunCommandEmpty(t *testing.T) {
	f := newFixture(t)
	var err error
	onLoop(t, f.loop, func() {
		err = f.o.RunCommand(testContext(t), "#DC_AREA_HELPER# ", cmdtemplate.ModeCamera, true)
	})
	if err == nil {
		t.Fatalf("empty command accepted")
	}
}

func TestOpenFolderCreatesDirectory(t *testing.T) {
	f := newFixture(t)
	f.settings.snap.RecorderSaveDir = filepath.Join(t.TempDir(), "casts")
	var (
		dir string
		err error
	)
	onLoop(t, f.loop, func() { dir, err = f.o.OpenFolder(cmdtemplate.ModeRecorder) })
	if err != nil {
		t.Fatal(err)
	}
	if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", statErr)
	}
	_, _, args := f.runner.snapshot()
	if len(args) != 1 || args[0][1] != "file://"+dir {
		t.Fatalf("args = %v", args)
	}
}

func TestFileManagerFrom(t *testing.T) {
	tests := map[string]string{
		"nemo.desktop\n":             "nemo",
		"nautilus.desktop":           "nautilus",
		"org.gnome.Nautilus.desktop": "",
		"thunar.desktop":             "",
		"":                           "",
	}
	for in, want := range tests {
		if got := fileManagerFrom(in); got != want {
			t.Errorf("fileManagerFrom(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDemoIsNotLastCapture(t *testing.T) {
	f := newFixture(t)
	var err error
	onLoop(t, f.loop, func() { _, err = f.o.Demo("/usr/share/icons/deskcap.png") })
	if err != nil {
		t.Fatal(err)
	}
	if len(f.dispatcher.artifacts) != 1 {
		t.Fatalf("demo not dispatched")
	}
	a := f.dispatcher.artifacts[0]
	if !a.Demo || a.Path != "/usr/share/icons/deskcap.png" || a.Dir != f.settings.snap.CameraSaveDir {
		t.Fatalf("demo artifact = %+v", a)
	}
	if f.o.LastCapture() != nil {
		t.Fatalf("demo became the last capture")
	}
	out := f.capture(t, capture.Repeat{})
	if !errors.Is(out.err, ErrNothingToRepeat) {
		t.Fatalf("repeat after demo = %v", out.err)
	}
}
