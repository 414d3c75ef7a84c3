// Package capture grabs screen pixels for the supported capture kinds and
// writes them to disk.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/kbinani/screenshot"

	"github.com/example/deskcap/internal/render"
)

var (
	grabRect      = screenshot.CaptureRect
	numDisplays   = screenshot.NumActiveDisplays
	displayBounds = screenshot.GetDisplayBounds
	grabWindow    = func(id uint32) (*image.RGBA, error) { return backend.CaptureWindowImage(id) }
	portalShot    = portalScreenshot
	sleep         = sleepContext
)

// Desktop captures through kbinani/screenshot, X11 and the desktop portal.
type Desktop struct {
	Selector Selector
	Logger   *slog.Logger
	// OnTick is called once per remaining second of a delayed capture.
	OnTick func(remaining int, opts Options)
	// OnShutter is called right before the pixels are grabbed.
	OnShutter func(opts Options)
}

// Capture implements Mechanism.
func (d *Desktop) Capture(ctx context.Context, kind Kind, opts Options, sel *Selection) (Result, error) {
	if opts.Filename == "" {
		return Result{}, fmt.Errorf("%w: no destination file", ErrMechanism)
	}
	if _, ok := kind.(Repeat); ok {
		return Result{}, fmt.Errorf("%w: repeat must be resolved before capture", ErrMechanism)
	}
	sel, err := d.selection(ctx, kind, sel)
	if err != nil {
		return Result{}, err
	}
	if err := d.countdown(ctx, opts); err != nil {
		return Result{}, err
	}
	if d.OnShutter != nil {
		d.OnShutter(opts)
	}

	var img *image.RGBA
	switch k := kind.(type) {
	case Screen:
		img, err = grabRect(ScreenBounds())
	case Monitor:
		if k.Index >= numDisplays() {
			return Result{}, fmt.Errorf("%w: monitor %d not connected", ErrMechanism, k.Index)
		}
		img, err = grabRect(displayBounds(k.Index))
	case Window:
		img, err = d.grabWindow(*sel.Window, opts)
		if err == nil && opts.IncludeStyles && !opts.WindowAsArea {
			img = render.Decorate(img, render.WindowStyle)
		}
	case Area:
		img, err = grabRect(sel.Rect)
	case CompositorSurface:
		if err := d.compositorShot(ctx, opts.Filename); err != nil {
			return Result{}, err
		}
		return Result{Path: opts.Filename}, nil
	default:
		return Result{}, fmt.Errorf("%w: unsupported kind %v", ErrMechanism, kind)
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v: %w", ErrMechanism, kind, err)
	}
	if err := writePNG(opts.Filename, img); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrMechanism, err)
	}
	return Result{Path: opts.Filename, Selection: sel}, nil
}

func (d *Desktop) selection(ctx context.Context, kind Kind, sel *Selection) (*Selection, error) {
	var mode HelperMode
	switch kind.(type) {
	case Window:
		mode = HelperWindow
	case Area:
		mode = HelperArea
	default:
		return nil, nil
	}
	if sel != nil && (mode == HelperArea || sel.Window != nil) {
		return sel, nil
	}
	if d.Selector == nil {
		return nil, fmt.Errorf("%w: no %s selector configured", ErrMechanism, mode)
	}
	picked, err := d.Selector.Select(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: select %s: %w", ErrMechanism, mode, err)
	}
	if mode == HelperWindow && picked.Window == nil {
		return nil, fmt.Errorf("%w: no window selected", ErrMechanism)
	}
	if picked.Rect.Empty() {
		return nil, fmt.Errorf("%w: empty %s selection", ErrMechanism, mode)
	}
	return &picked, nil
}

func (d *Desktop) countdown(ctx context.Context, opts Options) error {
	for remaining := opts.TimerSeconds; remaining > 0; remaining-- {
		if d.OnTick != nil {
			d.OnTick(remaining, opts)
		}
		if err := sleep(ctx, time.Second); err != nil {
			return err
		}
	}
	return nil
}

func (d *Desktop) grabWindow(win WindowInfo, opts Options) (*image.RGBA, error) {
	id, rect := win.ID, win.Rect
	if opts.IncludeWindowFrame {
		id, rect = win.Frame, win.FrameRect
	}
	if opts.WindowAsArea || runningOnWayland() {
		return grabRect(rect)
	}
	img, err := grabWindow(id)
	if err == nil {
		return img, nil
	}
	d.logger().Debug("direct window capture failed, cropping screen", "window", id, "err", err)
	return grabRect(rect)
}

func (d *Desktop) compositorShot(ctx context.Context, dst string) error {
	src, err := portalShot(ctx, false)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMechanism, err)
	}
	if err := moveFile(src, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrMechanism, err)
	}
	return nil
}

func (d *Desktop) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// ScreenBounds is the union of all active displays.
func ScreenBounds() image.Rectangle {
	var bounds image.Rectangle
	for i := 0; i < numDisplays(); i++ {
		bounds = bounds.Union(displayBounds(i))
	}
	return bounds
}

// ScreenSize returns the width and height of ScreenBounds.
func ScreenSize() (int, int) {
	b := ScreenBounds()
	return b.Dx(), b.Dy()
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("remove portal file", "path", src, "err", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
