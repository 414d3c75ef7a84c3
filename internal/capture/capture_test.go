package capture

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeSelector struct {
	sel   Selection
	err   error
	calls []HelperMode
}

func (f *fakeSelector) Select(_ context.Context, mode HelperMode) (Selection, error) {
	f.calls = append(f.calls, mode)
	return f.sel, f.err
}

type fakeRunner struct {
	out  string
	err  error
	argv []string
}

func (f *fakeRunner) Output(_ context.Context, argv []string) ([]byte, error) {
	f.argv = argv
	return []byte(f.out), f.err
}

func stubDisplays(t *testing.T, rects ...image.Rectangle) *[]image.Rectangle {
	t.Helper()
	prevGrab, prevNum, prevBounds, prevSleep := grabRect, numDisplays, displayBounds, sleep
	t.Cleanup(func() {
		grabRect, numDisplays, displayBounds, sleep = prevGrab, prevNum, prevBounds, prevSleep
	})
	var grabbed []image.Rectangle
	grabRect = func(r image.Rectangle) (*image.RGBA, error) {
		grabbed = append(grabbed, r)
		return image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy())), nil
	}
	numDisplays = func() int { return len(rects) }
	displayBounds = func(i int) image.Rectangle { return rects[i] }
	sleep = func(context.Context, time.Duration) error { return nil }
	return &grabbed
}

func decodeSize(t *testing.T, path string) image.Point {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open result: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return img.Bounds().Size()
}

func TestDesktopScreenUsesAllDisplays(t *testing.T) {
	grabbed := stubDisplays(t, image.Rect(0, 0, 20, 10), image.Rect(20, 0, 40, 15))
	out := filepath.Join(t.TempDir(), "shot.png")

	d := &Desktop{}
	res, err := d.Capture(context.Background(), Screen{}, Options{Filename: out}, nil)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if res.Path != out {
		t.Fatalf("path = %q", res.Path)
	}
	if len(*grabbed) != 1 || (*grabbed)[0] != image.Rect(0, 0, 40, 15) {
		t.Fatalf("grabbed %v", *grabbed)
	}
	if size := decodeSize(t, out); size != image.Pt(40, 15) {
		t.Fatalf("image size = %v", size)
	}
}

func TestDesktopMonitorOutOfRange(t *testing.T) {
	stubDisplays(t, image.Rect(0, 0, 20, 10))
	d := &Desktop{}
	_, err := d.Capture(context.Background(), Monitor{Index: 2}, Options{Filename: filepath.Join(t.TempDir(), "m.png")}, nil)
	if !errors.Is(err, ErrMechanism) {
		t.Fatalf("err = %v, want ErrMechanism", err)
	}
}

func TestDesktopAreaPromptsOnceAndReusesSelection(t *testing.T) {
	grabbed := stubDisplays(t, image.Rect(0, 0, 200, 100))
	sel := &fakeSelector{sel: Selection{Rect: image.Rect(10, 20, 111, 70)}}
	d := &Desktop{Selector: sel}
	dir := t.TempDir()

	res, err := d.Capture(context.Background(), Area{}, Options{Filename: filepath.Join(dir, "a.png")}, nil)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(sel.calls) != 1 || sel.calls[0] != HelperArea {
		t.Fatalf("selector calls = %v", sel.calls)
	}
	if _, err := d.Capture(context.Background(), Area{}, Options{Filename: filepath.Join(dir, "b.png")}, res.Selection); err != nil {
		t.Fatalf("repeat Capture: %v", err)
	}
	if len(sel.calls) != 1 {
		t.Fatalf("selection was not reused: %v", sel.calls)
	}
	if len(*grabbed) != 2 || (*grabbed)[1] != image.Rect(10, 20, 111, 70) {
		t.Fatalf("grabbed %v", *grabbed)
	}
}

func TestDesktopWindowAsAreaCropsFrame(t *testing.T) {
	grabbed := stubDisplays(t, image.Rect(0, 0, 200, 100))
	win := &WindowInfo{ID: 5, Frame: 4, Rect: image.Rect(12, 30, 62, 80), FrameRect: image.Rect(10, 10, 64, 82)}
	d := &Desktop{}
	opts := Options{Filename: filepath.Join(t.TempDir(), "w.png"), WindowAsArea: true, IncludeWindowFrame: true}
	if _, err := d.Capture(context.Background(), Window{}, opts, &Selection{Rect: win.Rect, Window: win}); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(*grabbed) != 1 || (*grabbed)[0] != win.FrameRect {
		t.Fatalf("grabbed %v, want frame rect", *grabbed)
	}
}

func TestDesktopWindowFallsBackToCrop(t *testing.T) {
	t.Setenv("XDG_SESSION_TYPE", "x11")
	t.Setenv("WAYLAND_DISPLAY", "")
	grabbed := stubDisplays(t, image.Rect(0, 0, 200, 100))
	prev := grabWindow
	var asked uint32
	grabWindow = func(id uint32) (*image.RGBA, error) {
		asked = id
		return nil, errors.New("BadMatch")
	}
	t.Cleanup(func() { grabWindow = prev })

	win := &WindowInfo{ID: 5, Frame: 4, Rect: image.Rect(12, 30, 62, 80), FrameRect: image.Rect(10, 10, 64, 82)}
	d := &Desktop{}
	opts := Options{Filename: filepath.Join(t.TempDir(), "w.png")}
	if _, err := d.Capture(context.Background(), Window{}, opts, &Selection{Rect: win.Rect, Window: win}); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if asked != 5 {
		t.Fatalf("direct capture asked for %d, want client id 5", asked)
	}
	if len(*grabbed) != 1 || (*grabbed)[0] != win.Rect {
		t.Fatalf("grabbed %v", *grabbed)
	}
}

func TestDesktopWindowStyles(t *testing.T) {
	t.Setenv("XDG_SESSION_TYPE", "x11")
	t.Setenv("WAYLAND_DISPLAY", "")
	stubDisplays(t, image.Rect(0, 0, 200, 100))
	prev := grabWindow
	grabWindow = func(uint32) (*image.RGBA, error) {
		return image.NewRGBA(image.Rect(0, 0, 50, 40)), nil
	}
	t.Cleanup(func() { grabWindow = prev })

	win := &WindowInfo{ID: 5, Frame: 4, Rect: image.Rect(0, 0, 50, 40), FrameRect: image.Rect(0, 0, 50, 40)}
	dir := t.TempDir()
	d := &Desktop{}
	styled := Options{Filename: filepath.Join(dir, "styled.png"), IncludeStyles: true}
	if _, err := d.Capture(context.Background(), Window{}, styled, &Selection{Rect: win.Rect, Window: win}); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if size := decodeSize(t, styled.Filename); size.X <= 50 || size.Y <= 40 {
		t.Fatalf("styled window size = %v", size)
	}

	plain := Options{Filename: filepath.Join(dir, "plain.png")}
	if _, err := d.Capture(context.Background(), Window{}, plain, &Selection{Rect: win.Rect, Window: win}); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if size := decodeSize(t, plain.Filename); size != image.Pt(50, 40) {
		t.Fatalf("plain window size = %v", size)
	}
}

func TestDesktopCountdownTicks(t *testing.T) {
	stubDisplays(t, image.Rect(0, 0, 4, 4))
	var ticks []int
	d := &Desktop{OnTick: func(remaining int, _ Options) { ticks = append(ticks, remaining) }}
	opts := Options{Filename: filepath.Join(t.TempDir(), "s.png"), TimerSeconds: 3}
	if _, err := d.Capture(context.Background(), Screen{}, opts, nil); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(ticks) != 3 || ticks[0] != 3 || ticks[2] != 1 {
		t.Fatalf("ticks = %v", ticks)
	}
}

func TestDesktopCancelledSelection(t *testing.T) {
	stubDisplays(t, image.Rect(0, 0, 4, 4))
	d := &Desktop{Selector: &fakeSelector{err: ErrSelectionCancelled}}
	_, err := d.Capture(context.Background(), Area{}, Options{Filename: filepath.Join(t.TempDir(), "a.png")}, nil)
	if !errors.Is(err, ErrSelectionCancelled) || !errors.Is(err, ErrMechanism) {
		t.Fatalf("err = %v", err)
	}
}

func TestDesktopCompositorSurfaceMovesPortalFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "portal.png")
	if err := os.WriteFile(src, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	prev := portalShot
	portalShot = func(context.Context, bool) (string, error) { return src, nil }
	t.Cleanup(func() { portalShot = prev })

	dst := filepath.Join(dir, "ui.png")
	d := &Desktop{}
	if _, err := d.Capture(context.Background(), CompositorSurface{}, Options{Filename: dst}, nil); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if data, err := os.ReadFile(dst); err != nil || string(data) != "png" {
		t.Fatalf("destination = %q, %v", data, err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("portal file still present: %v", err)
	}
}

func TestDesktopRejectsRepeat(t *testing.T) {
	d := &Desktop{}
	if _, err := d.Capture(context.Background(), Repeat{}, Options{Filename: "/tmp/x.png"}, nil); !errors.Is(err, ErrMechanism) {
		t.Fatalf("err = %v", err)
	}
}

func TestPickerSelectorArea(t *testing.T) {
	runner := &fakeRunner{out: "10 20 101 50 0\n"}
	p := &PickerSelector{Runner: runner}
	sel, err := p.Select(context.Background(), HelperArea)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Rect != image.Rect(10, 20, 111, 70) {
		t.Fatalf("rect = %v", sel.Rect)
	}
	if sel.Window != nil {
		t.Fatalf("area selection carried a window")
	}
	if runner.argv[0] != "slop" {
		t.Fatalf("argv = %v", runner.argv)
	}
}

func TestPickerSelectorWindow(t *testing.T) {
	prev := describeWindowByID
	describeWindowByID = func(id uint32) (WindowInfo, error) {
		return WindowInfo{ID: id, Frame: id + 1, Title: "Terminal", Class: "XTerm", Rect: image.Rect(1, 2, 3, 4)}, nil
	}
	t.Cleanup(func() { describeWindowByID = prev })

	p := &PickerSelector{Runner: &fakeRunner{out: "0 0 640 480 0x3a00007"}}
	sel, err := p.Select(context.Background(), HelperWindow)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Window == nil || sel.Window.ID != 0x3a00007 || sel.Window.Title != "Terminal" {
		t.Fatalf("window = %+v", sel.Window)
	}
	if sel.Rect != image.Rect(1, 2, 3, 4) {
		t.Fatalf("rect = %v, want window rect", sel.Rect)
	}
}

func TestPickerSelectorCancelled(t *testing.T) {
	p := &PickerSelector{Runner: &fakeRunner{err: errors.New("exit status 1")}}
	if _, err := p.Select(context.Background(), HelperArea); !errors.Is(err, ErrSelectionCancelled) {
		t.Fatalf("err = %v", err)
	}
	p = &PickerSelector{Runner: &fakeRunner{out: "0 0 0 0 0"}}
	if _, err := p.Select(context.Background(), HelperArea); !errors.Is(err, ErrSelectionCancelled) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		args    []string
		want    Kind
		wantErr bool
	}{
		{[]string{"screen"}, Screen{}, false},
		{[]string{"Window"}, Window{}, false},
		{[]string{"area"}, Area{}, false},
		{[]string{"ui"}, CompositorSurface{}, false},
		{[]string{"monitor", "1"}, Monitor{Index: 1}, false},
		{[]string{"repeat"}, Repeat{}, false},
		{[]string{"monitor"}, nil, true},
		{[]string{"monitor", "-1"}, nil, true},
		{[]string{"toaster"}, nil, true},
		{nil, nil, true},
	}
	for _, tc := range tests {
		got, err := ParseKind(tc.args)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseKind(%v) = %v, want error", tc.args, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseKind(%v) = %v, %v", tc.args, got, err)
		}
	}
}

func TestKindTags(t *testing.T) {
	tags := map[Kind]string{
		Screen{}:            "screen",
		Window{}:            "window",
		Area{}:              "area",
		CompositorSurface{}: "ui",
		Monitor{Index: 3}:   "monitor",
	}
	for k, want := range tags {
		if k.Tag() != want {
			t.Fatalf("%v.Tag() = %q, want %q", k, k.Tag(), want)
		}
	}
}

func TestSelectWindow(t *testing.T) {
	windows := []WindowInfo{
		{Index: 0, ID: 0x10, Frame: 0x11, Title: "Editor", Class: "Code"},
		{Index: 1, ID: 0x20, Title: "Shell", Class: "XTerm", Active: true},
	}
	tests := []struct {
		selector string
		wantID   uint32
		wantErr  bool
	}{
		{"", 0x20, false},
		{"active", 0x20, false},
		{"id:0x10", 0x10, false},
		{"0x11", 0x10, false},
		{"class:xterm", 0x20, false},
		{"title:edit", 0x10, false},
		{"1", 0x20, false},
		{"shell", 0x20, false},
		{"5", 0, true},
		{"nothing", 0, true},
	}
	for _, tc := range tests {
		got, err := SelectWindow(tc.selector, windows)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("SelectWindow(%q) = %+v, want error", tc.selector, got)
			}
			continue
		}
		if err != nil || got.ID != tc.wantID {
			t.Fatalf("SelectWindow(%q) = %#x, %v", tc.selector, got.ID, err)
		}
	}
}
