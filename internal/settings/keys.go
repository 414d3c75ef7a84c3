package settings

import "github.com/example/deskcap/internal/config"

// Setting keys.
const (
	KeyIncludeCursor          = "include-cursor"
	KeyOpenAfter              = "open-after"
	KeyDelaySeconds           = "delay-seconds"
	KeyCameraSaveDir          = "camera-save-dir"
	KeyRecorderSaveDir        = "recorder-save-dir"
	KeyCameraSavePrefix       = "camera-save-prefix"
	KeyRecorderSavePrefix     = "recorder-save-prefix"
	KeyCaptureWindowAsArea    = "capture-window-as-area"
	KeyIncludeWindowFrame     = "include-window-frame"
	KeyUseCameraFlash         = "use-camera-flash"
	KeyPlayShutterSound       = "play-shutter-sound"
	KeyPlayTimerIntervalSound = "play-timer-interval-sound"
	KeyCopyToClipboard        = "copy-to-clipboard"
	KeyCopyData               = "copy-data"
	KeyShowCopyToggle         = "show-copy-toggle"
	KeyCopyDataAutoOff        = "copy-data-auto-off"
	KeySendNotification       = "send-notification"
	KeyIncludeStyles          = "include-styles"
	KeyShowDeleteAction       = "show-delete-action"
	KeyShowCopyPathAction     = "show-copy-path-action"
	KeyShowCopyDataAction     = "show-copy-data-action"
	KeyUseSymbolicIcon        = "use-symbolic-icon"
	KeyRecorderFramerate      = "recorder-framerate"
	KeyRecorderFileExtension  = "recorder-file-extension"
	KeyRecorderPipeline       = "recorder-pipeline"
	KeyClipboardImageHelper   = "clipboard-image-helper"
	KeyCustomActionCommand    = "custom-action-command"
	KeyPickerCommand          = "picker-command"
	KeyShutterSoundCommand    = "shutter-sound-command"
	KeyTimerSoundCommand      = "timer-sound-command"
)

// HotkeyKeys lists the keybinding settings handed to the window manager.
var HotkeyKeys = []string{
	"kb-cs-screen",
	"kb-cs-window",
	"kb-cs-area",
	"kb-cs-ui",
	"kb-cs-monitor-0",
	"kb-cs-monitor-1",
	"kb-cs-monitor-2",
	"kb-cs-repeat",
	"kb-recorder-stop",
}

// structuralKeys change what the host renders rather than capture behaviour.
var structuralKeys = map[string]bool{
	KeyShowCopyToggle:  true,
	KeyUseSymbolicIcon: true,
}

// Defaults returns the value of every known key before user overrides.
func Defaults() config.Values {
	v := config.Values{
		KeyIncludeCursor:          false,
		KeyOpenAfter:              false,
		KeyDelaySeconds:           0,
		KeyCameraSaveDir:          "",
		KeyRecorderSaveDir:        "",
		KeyCameraSavePrefix:       "Screenshot_%TYPE_%Y%M%D-%H%I%S",
		KeyRecorderSavePrefix:     "Screencast_%Y%M%D-%H%I%S",
		KeyCaptureWindowAsArea:    false,
		KeyIncludeWindowFrame:     true,
		KeyUseCameraFlash:         true,
		KeyPlayShutterSound:       true,
		KeyPlayTimerIntervalSound: true,
		KeyCopyToClipboard:        int(ClipboardPath),
		KeyCopyData:               false,
		KeyShowCopyToggle:         true,
		KeyCopyDataAutoOff:        true,
		KeySendNotification:       true,
		KeyIncludeStyles:          true,
		KeyShowDeleteAction:       true,
		KeyShowCopyPathAction:     true,
		KeyShowCopyDataAction:     true,
		KeyUseSymbolicIcon:        false,
		KeyRecorderFramerate:      30,
		KeyRecorderFileExtension:  "webm",
		KeyRecorderPipeline:       "",
		KeyClipboardImageHelper:   "",
		KeyCustomActionCommand:    "",
		KeyPickerCommand:          "",
		KeyShutterSoundCommand:    "canberra-gtk-play --id=camera-shutter",
		KeyTimerSoundCommand:      "canberra-gtk-play --id=complete",
	}
	for _, k := range HotkeyKeys {
		v[k] = ""
	}
	return v
}
