// Package cmdtemplate expands placeholder tokens in user-configured
// capture commands.
package cmdtemplate

import (
	"strconv"
	"strings"

	"github.com/example/deskcap/internal/capture"
)

// Mode selects which directory and filename {DIRECTORY} and {FILENAME}
// refer to.
type Mode int

const (
	ModeCamera Mode = iota
	ModeRecorder
)

// ParseMode accepts "camera" or "recorder".
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "camera", "screenshot", "":
		return ModeCamera, true
	case "recorder", "record":
		return ModeRecorder, true
	}
	return ModeCamera, false
}

// Helper markers recognised at the very start of a command.
const (
	WindowHelperMarker = "#DC_WINDOW_HELPER#"
	AreaHelperMarker   = "#DC_AREA_HELPER#"
)

// Context carries the values for the general tokens.
type Context struct {
	Mode             Mode
	DelaySeconds     int
	ScreenWidth      int
	ScreenHeight     int
	CameraDir        string
	RecorderDir      string
	CameraFilename   string
	RecorderFilename string
}

type replacement struct {
	token string
	value string
}

// Expand substitutes the general tokens. Each token replaces its first
// occurrence only, in declaration order; unknown tokens are kept.
func Expand(cmd string, c Context) string {
	delay := ""
	if c.DelaySeconds > 0 {
		delay = strconv.Itoa(c.DelaySeconds)
	}
	dir, filename := c.CameraDir, c.CameraFilename
	if c.Mode == ModeRecorder {
		dir, filename = c.RecorderDir, c.RecorderFilename
	}
	return replaceFirst(cmd, []replacement{
		{"{DELAY}", delay},
		{"{DIRECTORY}", dir},
		{"{SCREEN_DIMENSIONS}", strconv.Itoa(c.ScreenWidth) + "x" + strconv.Itoa(c.ScreenHeight)},
		{"{SCREEN_WIDTH}", strconv.Itoa(c.ScreenWidth)},
		{"{SCREEN_HEIGHT}", strconv.Itoa(c.ScreenHeight)},
		{"{RECORDER_DIR}", c.RecorderDir},
		{"{SCREENSHOT_DIR}", c.CameraDir},
		{"{FILENAME}", filename},
	})
}

// ExpandInteractive substitutes the geometry tokens from sel, plus the
// window tokens when sel carries a window.
func ExpandInteractive(cmd string, sel capture.Selection) string {
	x, y := sel.Rect.Min.X, sel.Rect.Min.Y
	w, h := sel.Rect.Dx(), sel.Rect.Dy()
	reps := []replacement{
		{"{X}", strconv.Itoa(x)},
		{"{Y}", strconv.Itoa(y)},
		{"{X_Y}", strconv.Itoa(x) + "," + strconv.Itoa(y)},
		{"{WIDTH}", strconv.Itoa(w)},
		{"{HEIGHT}", strconv.Itoa(h)},
		{"{NICEWIDTH}", strconv.Itoa(NiceDimension(w))},
		{"{NICEHEIGHT}", strconv.Itoa(NiceDimension(h))},
	}
	if win := sel.Window; win != nil {
		reps = append(reps,
			replacement{"{X_WINDOW_ID}", strconv.FormatUint(uint64(win.ID), 10)},
			replacement{"{X_WINDOW_FRAME}", strconv.FormatUint(uint64(win.Frame), 10)},
			replacement{"{WM_CLASS}", win.Class},
			replacement{"{WINDOW_TITLE}", win.Title},
		)
	}
	return replaceFirst(cmd, reps)
}

// ParseHelper detects a helper marker at the start of cmd and returns the
// requested mode with the marker and one following space removed.
func ParseHelper(cmd string) (capture.HelperMode, string) {
	for _, m := range []struct {
		marker string
		mode   capture.HelperMode
	}{
		{WindowHelperMarker, capture.HelperWindow},
		{AreaHelperMarker, capture.HelperArea},
	} {
		if strings.HasPrefix(cmd, m.marker) {
			return m.mode, strings.TrimPrefix(cmd[len(m.marker):], " ")
		}
	}
	return capture.HelperNone, cmd
}

// NiceDimension rounds odd sizes up to the next even number, as most video
// encoders require.
func NiceDimension(n int) int {
	if n%2 == 0 {
		return n
	}
	return n + 1
}

func replaceFirst(cmd string, reps []replacement) string {
	for _, r := range reps {
		cmd = strings.Replace(cmd, r.token, r.value, 1)
	}
	return cmd
}
