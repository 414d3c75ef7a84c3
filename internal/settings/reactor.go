// Package settings keeps the live configuration snapshot in sync with the
// settings file.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/example/deskcap/internal/config"
)

// ErrConfigurationCorrupt means the settings file could not be read or
// parsed. The previous snapshot stays in effect.
var ErrConfigurationCorrupt = errors.New("configuration corrupt")

// Poster runs a function on the owner's event loop.
type Poster interface {
	Post(fn func()) bool
}

// Change describes one rebuild of the snapshot.
type Change struct {
	Previous Snapshot
	Current  Snapshot
	Keys     []string
	// Structural is set when a key affecting the host's layout changed.
	Structural bool
	// Hotkeys is set when any kb-* binding changed.
	Hotkeys bool
}

// Reactor owns the current Snapshot. All methods other than Watch must be
// called from the owner's event loop.
type Reactor struct {
	path    string
	logger  *slog.Logger
	current  Snapshot
	watcher  *viper.Viper
	onChange func(Change)
}

// Open loads path, creating it with defaults when missing, and normalizes
// directory settings.
func Open(path string, logger *slog.Logger) (*Reactor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := config.Write(path, Defaults()); err != nil {
			return nil, err
		}
		logger.Info("created settings file", "path", path)
	}
	r := &Reactor{path: path, logger: logger}
	v, err := r.read()
	if err != nil {
		return nil, err
	}
	snap, writeBack := r.build(v)
	r.current = snap
	if len(writeBack) > 0 {
		if err := r.persist(writeBack); err != nil {
			logger.Warn("write back normalized settings", "err", err)
		}
	}
	return r, nil
}

// Path returns the settings file path.
func (r *Reactor) Path() string { return r.path }

// Snapshot returns the current snapshot.
func (r *Reactor) Snapshot() Snapshot { return r.current }

// Watch starts watching the settings file. Each change event posts a
// Reload to poster and hands the result to onChange.
// Set reports through the same onChange.
func (r *Reactor) Watch(poster Poster, onChange func(Change)) {
	r.onChange = onChange
	w := viper.New()
	w.SetConfigFile(r.path)
	w.SetConfigType("yaml")
	if err := w.ReadInConfig(); err != nil {
		r.logger.Warn("settings watcher initial read", "err", err)
	}
	w.OnConfigChange(func(e fsnotify.Event) {
		poster.Post(func() {
			r.logger.Debug("settings file changed", "op", e.Op.String())
			change, err := r.Reload()
			if err != nil {
				r.logger.Error("settings reload", "err", err)
				return
			}
			r.report(change)
		})
	})
	w.WatchConfig()
	r.watcher = w
}

// Reload rebuilds the snapshot from disk.
func (r *Reactor) Reload() (Change, error) {
	v, err := r.read()
	if err != nil {
		return Change{}, err
	}
	prev := r.current
	snap, writeBack := r.build(v)
	r.current = snap
	if len(writeBack) > 0 {
		if err := r.persist(writeBack); err != nil {
			r.logger.Warn("write back normalized settings", "err", err)
		}
	}
	change := Change{Previous: prev, Current: snap, Keys: changedKeys(prev, snap)}
	for _, k := range change.Keys {
		if structuralKeys[k] {
			change.Structural = true
		}
		if strings.HasPrefix(k, "kb-") {
			change.Hotkeys = true
		}
	}
	return change, nil
}

// Set stores one key, updates the snapshot immediately and reports the
// change to the Watch subscriber. The file watcher will observe the write
// and find nothing further to report.
func (r *Reactor) Set(key string, value any) error {
	if _, ok := Defaults()[key]; !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	if err := r.persist(config.Values{key: value}); err != nil {
		return err
	}
	change, err := r.Reload()
	if err != nil {
		return err
	}
	r.report(change)
	return nil
}

func (r *Reactor) report(c Change) {
	if len(c.Keys) > 0 && r.onChange != nil {
		r.onChange(c)
	}
}

func (r *Reactor) read() (*viper.Viper, error) {
	v := viper.New()
	for k, def := range Defaults() {
		v.SetDefault(k, def)
	}
	v.SetConfigFile(r.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigurationCorrupt, r.path, err)
	}
	return v, nil
}

// build derives a snapshot and the normalized values that differ from
// what is stored.
func (r *Reactor) build(v *viper.Viper) (Snapshot, config.Values) {
	snap := snapshotFrom(v)
	writeBack := config.Values{}

	camera := NormalizeDir(snap.CameraSaveDir, PicturesDir)
	recorder := NormalizeDir(snap.RecorderSaveDir, VideosDir)
	if camera != snap.CameraSaveDir {
		writeBack[KeyCameraSaveDir] = camera
	}
	if recorder != snap.RecorderSaveDir {
		writeBack[KeyRecorderSaveDir] = recorder
	}
	snap = snap.withDirs(camera, recorder)

	if !snap.ShowCopyToggle && snap.CopyData {
		snap = snap.withCopyData(false)
		writeBack[KeyCopyData] = false
	}
	return snap, writeBack
}

func (r *Reactor) persist(updates config.Values) error {
	v, err := r.read()
	if err != nil {
		return err
	}
	stored := config.Values{}
	for _, k := range v.AllKeys() {
		stored[k] = v.Get(k)
	}
	for k, val := range updates {
		stored[k] = val
	}
	r.logger.Debug("persisting settings", "keys", updates.Keys())
	return config.Write(r.path, stored)
}
