//go:build linux || freebsd || openbsd || netbsd || dragonfly

package capture

import (
	"fmt"
	"image"

	"github.com/jezek/xgb/xproto"
)

// xImageToRGBA converts a ZPixmap reply in BGR(A) byte order.
func xImageToRGBA(setup *xproto.SetupInfo, reply *xproto.GetImageReply, width, height int, what string) (*image.RGBA, error) {
	switch {
	case setup == nil:
		return nil, fmt.Errorf("xproto setup unavailable")
	case width <= 0 || height <= 0:
		return nil, fmt.Errorf("%s has empty geometry", what)
	case reply == nil || len(reply.Data) == 0:
		return nil, fmt.Errorf("%s pixels: empty image data", what)
	}
	bpp := bytesPerPixel(setup, reply.Depth)
	if bpp < 3 {
		return nil, fmt.Errorf("unsupported %s depth %d", what, reply.Depth)
	}
	stride := len(reply.Data) / height
	if stride*height != len(reply.Data) || stride < width*bpp {
		return nil, fmt.Errorf("%s pixels: unexpected stride", what)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		src := reply.Data[y*stride:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < width; x++ {
			s := src[x*bpp:]
			d := dst[x*4:]
			d[0], d[1], d[2] = s[2], s[1], s[0]
			// Depth 24 visuals leave the fourth byte undefined.
			d[3] = 0xFF
			if bpp >= 4 && reply.Depth == 32 {
				d[3] = s[3]
			}
		}
	}
	return img, nil
}

func bytesPerPixel(setup *xproto.SetupInfo, depth byte) int {
	for _, format := range setup.PixmapFormats {
		if format.Depth == depth {
			return int(format.BitsPerPixel) / 8
		}
	}
	return 0
}
