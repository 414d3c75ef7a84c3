package render

import (
	"image"
	"image/color"
	"testing"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestDecorateGrowsCanvas(t *testing.T) {
	img := solid(20, 10, color.RGBA{R: 255, A: 255})
	out := Decorate(img, Style{ShadowRadius: 4, ShadowOffset: image.Pt(0, 3), ShadowOpacity: 0.5})
	if got, want := out.Bounds(), image.Rect(0, 0, 28, 18); got != want {
		t.Fatalf("bounds = %v, want %v", got, want)
	}
	if got := out.RGBAAt(4, 4); got != (color.RGBA{R: 255, A: 255}) {
		t.Fatalf("window pixel = %v", got)
	}
	if got := out.RGBAAt(14, 15); got.A == 0 || got.R != 0 {
		t.Fatalf("shadow pixel below window = %v", got)
	}
	if img.Bounds() != image.Rect(0, 0, 20, 10) {
		t.Fatalf("source modified")
	}
}

func TestDecorateWithoutShadow(t *testing.T) {
	img := solid(3, 3, color.RGBA{G: 255, A: 255})
	if out := Decorate(img, Style{ShadowRadius: 8}); out != img {
		t.Fatalf("zero opacity should return the input")
	}
	if out := Decorate(nil, WindowStyle); out != nil {
		t.Fatalf("nil input = %v", out)
	}
}

func TestShadowFadesOut(t *testing.T) {
	img := solid(10, 10, color.RGBA{B: 255, A: 255})
	out := Decorate(img, Style{ShadowRadius: 6, ShadowOpacity: 1})
	near := out.RGBAAt(5, 16).A
	far := out.RGBAAt(5, 21).A
	if near <= far {
		t.Fatalf("shadow alpha near=%d far=%d", near, far)
	}
}

func TestBlurLine(t *testing.T) {
	src := []uint8{0, 0, 90, 0, 0}
	dst := make([]uint8, len(src))
	blurLine(src, dst, 1)
	want := []uint8{0, 30, 30, 30, 0}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("blurLine = %v, want %v", dst, want)
		}
	}
}
