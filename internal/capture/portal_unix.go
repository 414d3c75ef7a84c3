//go:build linux || freebsd || openbsd || netbsd || dragonfly

package capture

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	portalDest      = "org.freedesktop.portal.Desktop"
	portalPath      = "/org/freedesktop/portal/desktop"
	portalResponse  = "org.freedesktop.portal.Request.Response"
	portalShotCall  = "org.freedesktop.portal.Screenshot.Screenshot"
	portalCancelled = 1
)

var portalHandleToken = func() string {
	return fmt.Sprintf("deskcap_%d", time.Now().UnixNano())
}

// portalScreenshot asks the desktop portal for a compositor screenshot and
// returns the path of the file the portal wrote.
func portalScreenshot(ctx context.Context, interactive bool) (string, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return "", fmt.Errorf("dbus connect: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			slog.Debug("dbus close", "err", cerr)
		}
	}()

	sigc := make(chan *dbus.Signal, 4)
	conn.Signal(sigc)
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.portal.Request"),
		dbus.WithMatchMember("Response"),
	); err != nil {
		return "", fmt.Errorf("portal screenshot subscribe: %w", err)
	}

	var handle dbus.ObjectPath
	obj := conn.Object(portalDest, portalPath)
	call := obj.CallWithContext(ctx, portalShotCall, 0, "", portalScreenshotOptions(interactive))
	if call.Err != nil {
		return "", fmt.Errorf("portal screenshot call: %w", call.Err)
	}
	if err := call.Store(&handle); err != nil {
		return "", fmt.Errorf("portal screenshot response: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case sig, ok := <-sigc:
			if !ok {
				return "", fmt.Errorf("portal screenshot: bus closed")
			}
			if sig.Path != handle || sig.Name != portalResponse {
				continue
			}
			return parsePortalResponse(sig.Body)
		}
	}
}

func portalScreenshotOptions(interactive bool) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(portalHandleToken()),
		"modal":        dbus.MakeVariant(interactive),
		"interactive":  dbus.MakeVariant(interactive),
	}
}

func parsePortalResponse(body []any) (string, error) {
	if len(body) < 2 {
		return "", fmt.Errorf("portal screenshot: malformed response")
	}
	if code, ok := body[0].(uint32); ok && code != 0 {
		if code == portalCancelled {
			return "", fmt.Errorf("portal screenshot: cancelled")
		}
		return "", fmt.Errorf("portal screenshot: response code %d", code)
	}
	results, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return "", fmt.Errorf("portal screenshot: malformed results")
	}
	raw, ok := results["uri"]
	if !ok {
		return "", fmt.Errorf("portal screenshot: response missing image uri")
	}
	uri, ok := raw.Value().(string)
	if !ok {
		return "", fmt.Errorf("portal screenshot: uri is %T", raw.Value())
	}
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" {
		return u.Path, nil
	}
	return strings.TrimPrefix(uri, "file://"), nil
}
