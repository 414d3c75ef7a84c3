// Package assets embeds the deskcap icon.
package assets

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

//go:embed icons/*.png
var embeddedIcons embed.FS

var (
	loadIconsOnce sync.Once
	loadIconsErr  error

	pngData = map[int][]byte{}
)

func loadIcons() {
	entries, err := fs.ReadDir(embeddedIcons, "icons")
	if err != nil {
		loadIconsErr = err
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		base := strings.TrimSuffix(name, ".png")
		idx := strings.LastIndex(base, "-")
		if idx == -1 || idx == len(base)-1 {
			continue
		}
		size, err := strconv.Atoi(base[idx+1:])
		if err != nil {
			continue
		}
		data, err := embeddedIcons.ReadFile("icons/" + name)
		if err != nil {
			loadIconsErr = err
			return
		}
		pngData[size] = data
	}
}

func ensureIcons() error {
	loadIconsOnce.Do(loadIcons)
	return loadIconsErr
}

// IconPNG returns a copy of the raw PNG bytes for the requested icon size.
func IconPNG(size int) ([]byte, error) {
	if err := ensureIcons(); err != nil {
		return nil, err
	}
	data, ok := pngData[size]
	if !ok {
		return nil, fmt.Errorf("icon %dpx not embedded", size)
	}
	return bytes.Clone(data), nil
}

// IconSizes lists the icon sizes embedded in the binary.
func IconSizes() []int {
	if err := ensureIcons(); err != nil {
		return nil
	}
	sizes := make([]int, 0, len(pngData))
	for size := range pngData {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)
	return sizes
}

// InstallIcon writes the largest embedded icon to dir and returns its
// path. Notification servers need a file they can read; an existing
// identical file is left alone.
func InstallIcon(dir string) (string, error) {
	sizes := IconSizes()
	if len(sizes) == 0 {
		return "", fmt.Errorf("no icon embedded: %v", loadIconsErr)
	}
	size := sizes[len(sizes)-1]
	data, err := IconPNG(size)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("deskcap-%d.png", size))
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return path, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
