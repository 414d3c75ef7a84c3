//go:build !(linux || freebsd || openbsd || netbsd || dragonfly)

package capture

import (
	"context"
	"errors"
)

func portalScreenshot(context.Context, bool) (string, error) {
	return "", errors.New("compositor surface capture needs the xdg desktop portal")
}
