package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
)

// ErrSelectionCancelled is returned when the user aborts a picker.
var ErrSelectionCancelled = errors.New("selection cancelled")

// OutputRunner runs a helper to completion and returns its stdout.
type OutputRunner interface {
	Output(ctx context.Context, argv []string) ([]byte, error)
}

// DefaultPickerCommand prints "x y width height window-id" for the picked
// rectangle. Clicking picks a window, dragging picks an area.
var DefaultPickerCommand = []string{"slop", "-f", "%x %y %w %h %i"}

var describeWindowByID = DescribeWindow

// PickerSelector runs an external picker such as slop.
type PickerSelector struct {
	Runner  OutputRunner
	Command []string
}

// Select implements Selector.
func (p *PickerSelector) Select(ctx context.Context, mode HelperMode) (Selection, error) {
	argv := p.Command
	if len(argv) == 0 {
		argv = DefaultPickerCommand
	}
	out, err := p.Runner.Output(ctx, argv)
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %w", ErrSelectionCancelled, err)
	}
	rect, windowID, err := parsePickerOutput(string(out))
	if err != nil {
		return Selection{}, err
	}
	sel := Selection{Rect: rect}
	if mode != HelperWindow {
		return sel, nil
	}
	if windowID == 0 {
		return Selection{}, fmt.Errorf("picker returned no window")
	}
	info, err := describeWindowByID(windowID)
	if err != nil {
		return Selection{}, err
	}
	sel.Window = &info
	sel.Rect = info.Rect
	return sel, nil
}

func parsePickerOutput(out string) (image.Rectangle, uint32, error) {
	fields := strings.Fields(out)
	if len(fields) < 4 {
		return image.Rectangle{}, 0, fmt.Errorf("%w: picker printed %q", ErrSelectionCancelled, strings.TrimSpace(out))
	}
	var nums [4]int
	for i := range nums {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return image.Rectangle{}, 0, fmt.Errorf("picker field %d: %w", i, err)
		}
		nums[i] = n
	}
	if nums[2] <= 0 || nums[3] <= 0 {
		return image.Rectangle{}, 0, fmt.Errorf("%w: empty selection", ErrSelectionCancelled)
	}
	rect := image.Rect(nums[0], nums[1], nums[0]+nums[2], nums[1]+nums[3])
	var id uint32
	if len(fields) > 4 {
		if parsed, err := ParseWindowID(fields[4]); err == nil {
			id = parsed
		}
	}
	return rect, id, nil
}
