package capture

import (
	"strings"
	"testing"
)

func TestRecorderArgs(t *testing.T) {
	got := strings.Join(RecorderArgs(Recording{Filename: "/tmp/v.webm", Framerate: 15, Pipeline: "x264enc ! mp4mux", IncludeCursor: true}), " ")
	want := "gst-launch-1.0 -e ximagesrc use-damage=false show-pointer=true ! video/x-raw,framerate=15/1 ! x264enc ! mp4mux ! filesink location=/tmp/v.webm"
	if got != want {
		t.Fatalf("args = %q\nwant   %q", got, want)
	}
}

func TestRecorderArgsBlankPipelineUsesDefault(t *testing.T) {
	for _, pipeline := range []string{"", "   \t"} {
		got := strings.Join(RecorderArgs(Recording{Filename: "/tmp/v.webm", Pipeline: pipeline}), " ")
		if !strings.Contains(got, "webmmux") || !strings.Contains(got, "framerate=30/1") {
			t.Fatalf("pipeline %q produced %q", pipeline, got)
		}
	}
}
