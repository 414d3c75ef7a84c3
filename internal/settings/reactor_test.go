package settings

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	prev := userHome
	userHome = func() (string, error) { return home, nil }
	t.Cleanup(func() { userHome = prev })
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	return home
}

func writeSettings(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readStored(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		t.Fatalf("stored settings invalid: %v", err)
	}
	return m
}

func TestOpenCreatesDefaults(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, ".config", "deskcap", "settings.yaml")

	r, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	snap := r.Snapshot()
	if snap.CameraSaveDir != filepath.Join(home, "Pictures") {
		t.Fatalf("camera dir = %q", snap.CameraSaveDir)
	}
	if snap.RecorderSaveDir != filepath.Join(home, "Videos") {
		t.Fatalf("recorder dir = %q", snap.RecorderSaveDir)
	}
	if snap.CopyToClipboard != ClipboardPath || !snap.SendNotification || snap.RecorderFramerate != 30 {
		t.Fatalf("unexpected defaults: %+v", snap)
	}
	stored := readStored(t, path)
	if stored[KeyCameraSaveDir] != filepath.Join(home, "Pictures") {
		t.Fatalf("normalized dir not written back: %v", stored[KeyCameraSaveDir])
	}
}

func TestUserDirsOverrideSpecialDir(t *testing.T) {
	home := isolateHome(t)
	writeSettings(t, filepath.Join(home, ".config", "user-dirs.dirs"),
		"# written by xdg-user-dirs-update\nXDG_PICTURES_DIR=\"$HOME/Bilder\"\nXDG_VIDEOS_DIR=\"$HOME/Filme\"\n")
	if got := SpecialDir(PicturesDir); got != filepath.Join(home, "Bilder") {
		t.Fatalf("pictures = %q", got)
	}
	if got := SpecialDir(VideosDir); got != filepath.Join(home, "Filme") {
		t.Fatalf("videos = %q", got)
	}
}

func TestUserDirsExpandHomeForms(t *testing.T) {
	home := isolateHome(t)
	writeSettings(t, filepath.Join(home, ".config", "user-dirs.dirs"),
		"XDG_PICTURES_DIR=\"${HOME}/Shots\"\nXDG_VIDEOS_DIR=\"/srv/films\"\n")
	if got := SpecialDir(PicturesDir); got != filepath.Join(home, "Shots") {
		t.Fatalf("pictures = %q", got)
	}
	if got := SpecialDir(VideosDir); got != "/srv/films" {
		t.Fatalf("videos = %q", got)
	}
	if got := NormalizeDir("", PicturesDir); got != filepath.Join(home, "Shots") {
		t.Fatalf("empty dir = %q", got)
	}
}

func TestNormalizeDirUncreatable(t *testing.T) {
	if _, err := os.Stat("/proc/self"); err != nil {
		t.Skip("no procfs")
	}
	home := isolateHome(t)
	if got := NormalizeDir("/proc/deskcap/shots", PicturesDir); got != filepath.Join(home, "Pictures") {
		t.Fatalf("NormalizeDir = %q", got)
	}
}

func TestNormalizeDir(t *testing.T) {
	home := isolateHome(t)
	file := filepath.Join(home, "not-a-dir")
	writeSettings(t, file, "x")
	tests := []struct {
		raw  string
		want string
	}{
		{"", filepath.Join(home, "Pictures")},
		{"   ", filepath.Join(home, "Pictures")},
		{"/tmp//shots", "/tmp/shots"},
		{"~/shots", filepath.Join(home, "shots")},
		{"~", home},
		{"file://" + home + "/srv/shots", filepath.Join(home, "srv", "shots")},
		{"file://relative/shots", filepath.Join(home, "Pictures")},
		{"relative", filepath.Join(home, "Pictures")},
		{file, filepath.Join(home, "Pictures")},
		{file + "/shots", filepath.Join(home, "Pictures")},
	}
	for _, tc := range tests {
		if got := NormalizeDir(tc.raw, PicturesDir); got != tc.want {
			t.Fatalf("NormalizeDir(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestReloadReportsChanges(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "settings.yaml")
	writeSettings(t, path, "camera-save-dir: /tmp/shots\nrecorder-save-dir: /tmp/casts\ndelay-seconds: 0\n")
	r, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	writeSettings(t, path, "camera-save-dir: /tmp/shots\nrecorder-save-dir: /tmp/casts\ndelay-seconds: 5\nkb-cs-area: <Super>a\n")
	change, err := r.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !slices.Equal(change.Keys, []string{KeyDelaySeconds, "kb-cs-area"}) {
		t.Fatalf("keys = %v", change.Keys)
	}
	if change.Structural {
		t.Fatalf("plain change reported as structural")
	}
	if !change.Hotkeys {
		t.Fatalf("hotkey change not flagged")
	}
	if change.Previous.DelaySeconds != 0 || change.Current.DelaySeconds != 5 {
		t.Fatalf("delay %d -> %d", change.Previous.DelaySeconds, change.Current.DelaySeconds)
	}
	if r.Snapshot().Hotkey("kb-cs-area") != "<Super>a" {
		t.Fatalf("hotkey = %q", r.Snapshot().Hotkey("kb-cs-area"))
	}
}

func TestPreviousSnapshotIsUnaffectedByReload(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "settings.yaml")
	writeSettings(t, path, "camera-save-dir: /tmp/a\nrecorder-save-dir: /tmp/v\n")
	r, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	held := r.Snapshot()
	writeSettings(t, path, "camera-save-dir: /tmp/b\nrecorder-save-dir: /tmp/v\n")
	if _, err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if held.CameraSaveDir != "/tmp/a" || held.Values()[KeyCameraSaveDir] != "/tmp/a" {
		t.Fatalf("held snapshot mutated: %q", held.CameraSaveDir)
	}
	if r.Snapshot().CameraSaveDir != "/tmp/b" {
		t.Fatalf("current = %q", r.Snapshot().CameraSaveDir)
	}
}

func TestStructuralChangeAndCopyToggle(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "settings.yaml")
	writeSettings(t, path, "camera-save-dir: /tmp/a\nrecorder-save-dir: /tmp/v\nshow-copy-toggle: true\ncopy-data: true\n")
	r, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !r.Snapshot().CopyData {
		t.Fatalf("copy-data should start on")
	}

	writeSettings(t, path, "camera-save-dir: /tmp/a\nrecorder-save-dir: /tmp/v\nshow-copy-toggle: false\ncopy-data: true\n")
	change, err := r.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !change.Structural {
		t.Fatalf("show-copy-toggle change not structural")
	}
	if change.Current.CopyData {
		t.Fatalf("copy-data not forced off")
	}
	if stored := readStored(t, path); stored[KeyCopyData] != false {
		t.Fatalf("copy-data not persisted: %v", stored[KeyCopyData])
	}

	// The write-back is observed as a no-op.
	again, err := r.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(again.Keys) != 0 {
		t.Fatalf("write-back produced further changes: %v", again.Keys)
	}
}

func TestDirWriteBackConverges(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "settings.yaml")
	writeSettings(t, path, "camera-save-dir: /tmp/a\nrecorder-save-dir: /tmp/v\n")
	r, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	writeSettings(t, path, "camera-save-dir: \"file:///tmp//b\"\nrecorder-save-dir: /tmp/v\n")
	change, err := r.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if change.Current.CameraSaveDir != "/tmp/b" {
		t.Fatalf("camera dir = %q", change.Current.CameraSaveDir)
	}
	if stored := readStored(t, path); stored[KeyCameraSaveDir] != "/tmp/b" {
		t.Fatalf("stored = %v", stored[KeyCameraSaveDir])
	}
	again, err := r.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(again.Keys) != 0 {
		t.Fatalf("second reload changed %v", again.Keys)
	}
}

func TestCorruptFileKeepsLastSnapshot(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "settings.yaml")
	writeSettings(t, path, "camera-save-dir: /tmp/a\nrecorder-save-dir: /tmp/v\ndelay-seconds: 2\n")
	r, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	writeSettings(t, path, "delay-seconds: [unterminated\n")
	if _, err := r.Reload(); !errors.Is(err, ErrConfigurationCorrupt) {
		t.Fatalf("err = %v, want ErrConfigurationCorrupt", err)
	}
	if r.Snapshot().DelaySeconds != 2 {
		t.Fatalf("snapshot replaced after corrupt read")
	}
	if err := r.Set(KeyDelaySeconds, 4); !errors.Is(err, ErrConfigurationCorrupt) {
		t.Fatalf("Set on corrupt file = %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "unterminated") {
		t.Fatalf("corrupt file was overwritten")
	}
}

func TestSetPersists(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "settings.yaml")
	writeSettings(t, path, "camera-save-dir: /tmp/a\nrecorder-save-dir: /tmp/v\ncopy-data: true\n")
	r, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := r.Set(KeyCopyData, false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if r.Snapshot().CopyData {
		t.Fatalf("snapshot not updated")
	}
	if stored := readStored(t, path); stored[KeyCopyData] != false || stored[KeyCameraSaveDir] != "/tmp/a" {
		t.Fatalf("stored = %v", stored)
	}
	if err := r.Set("no-such-key", 1); err == nil {
		t.Fatalf("unknown key accepted")
	}
}

func TestClipboardModeOutOfRange(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "settings.yaml")
	writeSettings(t, path, "camera-save-dir: /tmp/a\nrecorder-save-dir: /tmp/v\ncopy-to-clipboard: 9\n")
	r, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.Snapshot().CopyToClipboard != ClipboardPath {
		t.Fatalf("mode = %v", r.Snapshot().CopyToClipboard)
	}
}

type lockedPoster struct {
	mu sync.Mutex
}

func (p *lockedPoster) Post(fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
	return true
}

func TestWatchDeliversChanges(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "settings.yaml")
	writeSettings(t, path, "camera-save-dir: /tmp/a\nrecorder-save-dir: /tmp/v\ndelay-seconds: 0\n")
	r, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	changes := make(chan Change, 4)
	r.Watch(&lockedPoster{}, func(c Change) { changes <- c })

	writeSettings(t, path, "camera-save-dir: /tmp/a\nrecorder-save-dir: /tmp/v\ndelay-seconds: 7\n")
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Current.DelaySeconds == 7 {
				return
			}
		case <-deadline:
			t.Fatalf("no change delivered")
		}
	}
}

func TestSetReportsChange(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "settings.yaml")
	writeSettings(t, path, "camera-save-dir: /tmp/a\nrecorder-save-dir: /tmp/v\nshow-copy-toggle: true\ncopy-data: true\n")
	r, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var got []Change
	var mu sync.Mutex
	r.Watch(&lockedPoster{}, func(c Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})

	if err := r.Set(KeyShowCopyToggle, false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 {
		t.Fatalf("Set reported no change")
	}
	c := got[0]
	if !c.Structural || c.Current.ShowCopyToggle || c.Current.CopyData {
		t.Fatalf("change = %+v", c)
	}
	if !slices.Contains(c.Keys, KeyShowCopyToggle) {
		t.Fatalf("keys = %v", c.Keys)
	}
}
