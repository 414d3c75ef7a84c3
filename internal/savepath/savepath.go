// Package savepath turns a destination directory and filename template into
// a verified, writable capture path.
package savepath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrPathUnavailable means the destination directory is missing and
	// could not be created, or the path is occupied by something else.
	ErrPathUnavailable = errors.New("save directory unavailable")
	// ErrWritePermissionDenied means the probe file could not be created.
	ErrWritePermissionDenied = errors.New("cannot write capture file")
)

var now = time.Now

// Expand substitutes the date tokens and the kind tag in template using t.
// An empty tag strips the %TYPE token together with a trailing separator.
func Expand(template string, t time.Time, tag string) string {
	if tag == "" {
		template = strings.ReplaceAll(template, "%TYPE_", "")
		template = strings.ReplaceAll(template, "%TYPE-", "")
		template = strings.ReplaceAll(template, "%TYPE", "")
	}
	replacer := []struct {
		token string
		value string
	}{
		{"%Y", strconv.Itoa(t.Year())},
		{"%M", pad(int(t.Month()))},
		{"%D", pad(t.Day())},
		{"%H", pad(t.Hour())},
		{"%I", pad(t.Minute())},
		{"%S", pad(t.Second())},
		{"%m", pad(t.Nanosecond() / int(time.Millisecond))},
		{"%TYPE", tag},
	}
	for _, r := range replacer {
		template = strings.ReplaceAll(template, r.token, r.value)
	}
	return template
}

// Filename expands template at the current time.
func Filename(template, tag string) string {
	return Expand(template, now(), tag)
}

// Resolve returns dir/<expanded template>.<ext> after making sure dir exists
// and that a file can be created at the returned path. The probe file is
// removed again before returning.
func Resolve(dir, template, ext, tag string) (string, error) {
	if err := ensureDir(dir); err != nil {
		return "", err
	}
	name := Filename(template, tag)
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		name += "." + ext
	}
	path := filepath.Join(dir, name)
	if err := probe(path); err != nil {
		return "", err
	}
	return path, nil
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: empty directory", ErrPathUnavailable)
	}
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", ErrPathUnavailable, dir)
		}
		return nil
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %w", ErrPathUnavailable, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %w", ErrPathUnavailable, err)
	}
}

func probe(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWritePermissionDenied, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWritePermissionDenied, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: remove probe: %w", ErrWritePermissionDenied, err)
	}
	return nil
}

func pad(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
