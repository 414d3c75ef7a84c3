package settings

import (
	"fmt"
	"maps"
	"sort"

	"github.com/spf13/viper"
)

// ClipboardMode selects what is copied after a capture.
type ClipboardMode int

const (
	ClipboardOff       ClipboardMode = 0
	ClipboardPath      ClipboardMode = 1
	ClipboardDirectory ClipboardMode = 2
	ClipboardFilename  ClipboardMode = 3
	ClipboardImageData ClipboardMode = 4
)

func (m ClipboardMode) String() string {
	switch m {
	case ClipboardOff:
		return "off"
	case ClipboardPath:
		return "path"
	case ClipboardDirectory:
		return "directory"
	case ClipboardFilename:
		return "filename"
	case ClipboardImageData:
		return "image-data"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Snapshot is an immutable view of every setting at one point in time.
type Snapshot struct {
	IncludeCursor          bool
	OpenAfter              bool
	DelaySeconds           int
	CameraSaveDir          string
	RecorderSaveDir        string
	CameraSavePrefix       string
	RecorderSavePrefix     string
	CaptureWindowAsArea    bool
	IncludeWindowFrame     bool
	UseCameraFlash         bool
	PlayShutterSound       bool
	PlayTimerIntervalSound bool
	CopyToClipboard        ClipboardMode
	CopyData               bool
	ShowCopyToggle         bool
	CopyDataAutoOff        bool
	SendNotification       bool
	IncludeStyles          bool
	ShowDeleteAction       bool
	ShowCopyPathAction     bool
	ShowCopyDataAction     bool
	UseSymbolicIcon        bool
	RecorderFramerate      int
	RecorderFileExtension  string
	RecorderPipeline       string
	ClipboardImageHelper   string
	CustomActionCommand    string
	PickerCommand          string
	ShutterSoundCommand    string
	TimerSoundCommand      string

	hotkeys map[string]string
	values  map[string]any
}

// Hotkey returns the binding stored under a kb-* key.
func (s Snapshot) Hotkey(key string) string { return s.hotkeys[key] }

// Values returns a copy of the raw key/value view.
func (s Snapshot) Values() map[string]any { return maps.Clone(s.values) }

func snapshotFrom(v *viper.Viper) Snapshot {
	s := Snapshot{
		IncludeCursor:          v.GetBool(KeyIncludeCursor),
		OpenAfter:              v.GetBool(KeyOpenAfter),
		DelaySeconds:           max(v.GetInt(KeyDelaySeconds), 0),
		CameraSaveDir:          v.GetString(KeyCameraSaveDir),
		RecorderSaveDir:        v.GetString(KeyRecorderSaveDir),
		CameraSavePrefix:       v.GetString(KeyCameraSavePrefix),
		RecorderSavePrefix:     v.GetString(KeyRecorderSavePrefix),
		CaptureWindowAsArea:    v.GetBool(KeyCaptureWindowAsArea),
		IncludeWindowFrame:     v.GetBool(KeyIncludeWindowFrame),
		UseCameraFlash:         v.GetBool(KeyUseCameraFlash),
		PlayShutterSound:       v.GetBool(KeyPlayShutterSound),
		PlayTimerIntervalSound: v.GetBool(KeyPlayTimerIntervalSound),
		CopyToClipboard:        ClipboardMode(v.GetInt(KeyCopyToClipboard)),
		CopyData:               v.GetBool(KeyCopyData),
		ShowCopyToggle:         v.GetBool(KeyShowCopyToggle),
		CopyDataAutoOff:        v.GetBool(KeyCopyDataAutoOff),
		SendNotification:       v.GetBool(KeySendNotification),
		IncludeStyles:          v.GetBool(KeyIncludeStyles),
		ShowDeleteAction:       v.GetBool(KeyShowDeleteAction),
		ShowCopyPathAction:     v.GetBool(KeyShowCopyPathAction),
		ShowCopyDataAction:     v.GetBool(KeyShowCopyDataAction),
		UseSymbolicIcon:        v.GetBool(KeyUseSymbolicIcon),
		RecorderFramerate:      v.GetInt(KeyRecorderFramerate),
		RecorderFileExtension:  v.GetString(KeyRecorderFileExtension),
		RecorderPipeline:       v.GetString(KeyRecorderPipeline),
		ClipboardImageHelper:   v.GetString(KeyClipboardImageHelper),
		CustomActionCommand:    v.GetString(KeyCustomActionCommand),
		PickerCommand:          v.GetString(KeyPickerCommand),
		ShutterSoundCommand:    v.GetString(KeyShutterSoundCommand),
		TimerSoundCommand:      v.GetString(KeyTimerSoundCommand),
		hotkeys:                make(map[string]string, len(HotkeyKeys)),
		values:                 make(map[string]any),
	}
	if s.CopyToClipboard < ClipboardOff || s.CopyToClipboard > ClipboardImageData {
		s.CopyToClipboard = ClipboardPath
	}
	for _, k := range HotkeyKeys {
		s.hotkeys[k] = v.GetString(k)
	}
	for k := range Defaults() {
		s.values[k] = v.Get(k)
	}
	return s
}

func (s Snapshot) withDirs(camera, recorder string) Snapshot {
	s.CameraSaveDir, s.RecorderSaveDir = camera, recorder
	s.values = maps.Clone(s.values)
	s.values[KeyCameraSaveDir] = camera
	s.values[KeyRecorderSaveDir] = recorder
	return s
}

func (s Snapshot) withCopyData(on bool) Snapshot {
	s.CopyData = on
	s.values = maps.Clone(s.values)
	s.values[KeyCopyData] = on
	return s
}

// changedKeys lists keys whose raw values differ between a and b.
func changedKeys(a, b Snapshot) []string {
	var keys []string
	for k := range Defaults() {
		if fmt.Sprint(a.values[k]) != fmt.Sprint(b.values[k]) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
