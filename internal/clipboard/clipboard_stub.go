//go:build !(linux || freebsd || openbsd || netbsd || dragonfly)

package clipboard

import "errors"

var errUnsupported = errors.New("clipboard operations are not supported on this platform")

func WritePNG([]byte) error { return errUnsupported }

func WriteText(string) error { return errUnsupported }
