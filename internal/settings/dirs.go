package settings

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Special directory names as used in user-dirs.dirs.
const (
	PicturesDir = "PICTURES"
	VideosDir   = "VIDEOS"
)

var userHome = os.UserHomeDir

// SpecialDir resolves an XDG user directory such as PICTURES, falling back
// to ~/Pictures style defaults when user-dirs.dirs does not name it.
func SpecialDir(name string) string {
	home, _ := userHome()
	if path := userDirsEntry(home, name); path != "" {
		return path
	}
	fallback := "Pictures"
	if name == VideosDir {
		fallback = "Videos"
	}
	return filepath.Join(home, fallback)
}

func userDirsEntry(home, name string) string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(home, ".config")
	}
	data, err := os.ReadFile(filepath.Join(base, "user-dirs.dirs"))
	if err != nil {
		return ""
	}
	// godotenv only expands variables defined in the file itself.
	body := strings.NewReplacer("${HOME}", home, "$HOME", home).Replace(string(data))
	entries, err := godotenv.Unmarshal(body)
	if err != nil {
		return ""
	}
	value := strings.TrimSpace(entries["XDG_"+name+"_DIR"])
	if value == "" || !filepath.IsAbs(value) {
		return ""
	}
	return filepath.Clean(value)
}

// NormalizeDir cleans a configured save directory. An empty or unusable
// value resolves to the special directory.
func NormalizeDir(raw, special string) string {
	dir := strings.TrimSpace(raw)
	if dir == "" {
		return SpecialDir(special)
	}
	switch {
	case strings.HasPrefix(dir, "file:///"):
		dir = dir[len("file://"):]
	case strings.HasPrefix(dir, "file://"):
		dir = dir[len("file://"):]
	}
	for strings.Contains(dir, "//") {
		dir = strings.ReplaceAll(dir, "//", "/")
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := userHome()
		if err != nil {
			return SpecialDir(special)
		}
		dir = home + dir[1:]
	}
	if !validDir(dir) {
		return SpecialDir(special)
	}
	return dir
}

func validDir(dir string) bool {
	if !filepath.IsAbs(dir) {
		return false
	}
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		return info.IsDir()
	case !os.IsNotExist(err):
		return false
	}
	return creatable(filepath.Dir(dir))
}

// creatable reports whether directories can be made below the nearest
// existing ancestor of dir.
func creatable(dir string) bool {
	for {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return false
			}
			probe, err := os.MkdirTemp(dir, ".deskcap-")
			if err != nil {
				return false
			}
			return os.Remove(probe) == nil
		}
		if !os.IsNotExist(err) {
			return false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}
