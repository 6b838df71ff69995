// Package usage estimates how much of a rendered page carries color ink.
package usage

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// Sections is the number of horizontal bands a page is split into.
const Sections = 12

// ScanFile decodes the image at path and counts its used sections.
func ScanFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}
	return Scan(img), nil
}

// Scan splits img into Sections bands of height/Sections rows and counts the
// bands holding at least one pixel whose red, green and blue values differ.
// Rows past Sections*(height/Sections) belong to no band and are not read.
func Scan(img image.Image) int {
	b := img.Bounds()
	band := b.Dy() / Sections
	if band == 0 {
		return 0
	}
	chroma := chromaAt(img)
	used := 0
	for s := 0; s < Sections; s++ {
		y0 := b.Min.Y + s*band
		if bandHasChroma(chroma, b.Min.X, b.Max.X, y0, y0+band) {
			used++
		}
	}
	return used
}

func bandHasChroma(chroma func(x, y int) bool, x0, x1, y0, y1 int) bool {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if chroma(x, y) {
				return true
			}
		}
	}
	return false
}

// chromaAt picks a per-pixel test for the concrete image type. Channels are
// compared at 8 bits.
func chromaAt(img image.Image) func(x, y int) bool {
	switch im := img.(type) {
	case *image.Gray, *image.Gray16:
		return func(int, int) bool { return false }
	case *image.RGBA:
		return func(x, y int) bool {
			i := im.PixOffset(x, y)
			p := im.Pix[i : i+3 : i+3]
			return p[0] != p[1] || p[1] != p[2]
		}
	case *image.NRGBA:
		return func(x, y int) bool {
			i := im.PixOffset(x, y)
			p := im.Pix[i : i+3 : i+3]
			return p[0] != p[1] || p[1] != p[2]
		}
	default:
		return func(x, y int) bool {
			r, g, b, _ := img.At(x, y).RGBA()
			r, g, b = r>>8, g>>8, b>>8
			return r != g || g != b
		}
	}
}
