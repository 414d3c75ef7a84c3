// Package render decorates window captures the way the compositor draws
// them on screen.
package render

import (
	"image"
	"image/color"
	"image/draw"
)

// Style describes the decoration added around a window capture.
type Style struct {
	ShadowRadius  int
	ShadowOffset  image.Point
	ShadowOpacity float64
}

// WindowStyle is the soft drop shadow used for "include styles".
var WindowStyle = Style{
	ShadowRadius:  18,
	ShadowOffset:  image.Pt(0, 6),
	ShadowOpacity: 0.5,
}

// Decorate returns img composited over its blurred shadow on a transparent
// canvas with a zero origin. img itself is not modified; a style without a
// visible shadow returns img unchanged.
func Decorate(img *image.RGBA, s Style) *image.RGBA {
	if img == nil || img.Bounds().Empty() || s.ShadowOpacity <= 0 {
		return img
	}
	opacity := min(s.ShadowOpacity, 1)
	radius := max(s.ShadowRadius, 0)

	src := img.Bounds()
	padded := src.Inset(-radius)
	shadow := padded.Add(s.ShadowOffset)
	canvas := src.Union(shadow)

	mask := alphaMask(img, padded)
	boxBlur(mask, radius)

	dst := image.NewRGBA(canvas.Sub(canvas.Min))
	tint := image.NewUniform(color.RGBA{A: uint8(opacity*255 + 0.5)})
	draw.DrawMask(dst, shadow.Sub(canvas.Min), tint, image.Point{}, mask, image.Point{}, draw.Over)
	draw.Draw(dst, src.Sub(canvas.Min), img, src.Min, draw.Over)
	return dst
}

// alphaMask copies the alpha channel of img into a zero-based mask the size
// of padded.
func alphaMask(img *image.RGBA, padded image.Rectangle) *image.Alpha {
	mask := image.NewAlpha(padded.Sub(padded.Min))
	src := img.Bounds()
	for y := src.Min.Y; y < src.Max.Y; y++ {
		for x := src.Min.X; x < src.Max.X; x++ {
			if a := img.RGBAAt(x, y).A; a != 0 {
				mask.SetAlpha(x-padded.Min.X, y-padded.Min.Y, color.Alpha{A: a})
			}
		}
	}
	return mask
}

// boxBlur blurs m in place, horizontally then vertically.
func boxBlur(m *image.Alpha, radius int) {
	if radius <= 0 {
		return
	}
	w, h := m.Bounds().Dx(), m.Bounds().Dy()
	line := make([]uint8, max(w, h))
	for y := 0; y < h; y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+w]
		blurLine(row, line[:w], radius)
		copy(row, line[:w])
	}
	col := make([]uint8, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = m.Pix[y*m.Stride+x]
		}
		blurLine(col, line[:h], radius)
		for y := 0; y < h; y++ {
			m.Pix[y*m.Stride+x] = line[y]
		}
	}
}

// blurLine writes the running mean of src over a window of radius into dst,
// clamping the window at both ends.
func blurLine(src, dst []uint8, radius int) {
	n := len(src)
	prefix := make([]int, n+1)
	for i, v := range src {
		prefix[i+1] = prefix[i] + int(v)
	}
	for i := 0; i < n; i++ {
		lo, hi := max(i-radius, 0), min(i+radius, n-1)
		dst[i] = uint8((prefix[hi+1] - prefix[lo]) / (hi - lo + 1))
	}
}
