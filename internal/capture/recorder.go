package capture

import (
	"strconv"
	"strings"
)

// DefaultPipeline encodes to WebM when no pipeline is configured.
const DefaultPipeline = "videoconvert ! queue ! vp8enc cpu-used=5 deadline=1 min_quantizer=13 max_quantizer=13 ! queue ! webmmux"

// Recording describes a screencast to start.
type Recording struct {
	Filename      string
	Framerate     int
	Pipeline      string
	IncludeCursor bool
}

// RecorderArgs builds the gst-launch command line for r. The recorder is
// stopped with SIGINT, which -e turns into a clean end of stream.
func RecorderArgs(r Recording) []string {
	framerate := r.Framerate
	if framerate <= 0 {
		framerate = 30
	}
	pipeline := r.Pipeline
	if strings.TrimSpace(pipeline) == "" {
		pipeline = DefaultPipeline
	}
	argv := []string{
		"gst-launch-1.0", "-e",
		"ximagesrc", "use-damage=false", "show-pointer=" + strconv.FormatBool(r.IncludeCursor),
		"!", "video/x-raw,framerate=" + strconv.Itoa(framerate) + "/1",
		"!",
	}
	argv = append(argv, strings.Fields(pipeline)...)
	return append(argv, "!", "filesink", "location="+r.Filename)
}
