package normalize

import "github.com/local/pisoprint/internal/paper"

// Rect is a PDF rectangle in default user space.
type Rect struct {
	LLX, LLY, URX, URY float64
}

func (r Rect) Width() float64  { return r.URX - r.LLX }
func (r Rect) Height() float64 { return r.URY - r.LLY }

// normRotate folds any multiple of 90 into 0, 90, 180 or 270.
func normRotate(rotate int) int {
	r := rotate % 360
	if r < 0 {
		r += 360
	}
	return r - r%90
}

// Displayed returns the width and height of box as a viewer shows it.
func Displayed(box Rect, rotate int) (w, h float64) {
	switch normRotate(rotate) {
	case 90, 270:
		return box.Height(), box.Width()
	default:
		return box.Width(), box.Height()
	}
}

// CanvasBox returns the page box that turns box into a canvas of size p while
// leaving the content unscaled: horizontally centered and top-aligned in the
// displayed orientation. Content taller than the canvas extends past its
// bottom edge.
func CanvasBox(box Rect, rotate int, p paper.Size) Rect {
	W, H := p.Width(), p.Height()
	switch normRotate(rotate) {
	case 90:
		// displayed top is the unrotated left edge
		y0 := box.LLY - (W-box.Height())/2
		return Rect{LLX: box.LLX, LLY: y0, URX: box.LLX + H, URY: y0 + W}
	case 180:
		// displayed top is the unrotated bottom edge
		x0 := box.LLX - (W-box.Width())/2
		return Rect{LLX: x0, LLY: box.LLY, URX: x0 + W, URY: box.LLY + H}
	case 270:
		// displayed top is the unrotated right edge
		y0 := box.LLY - (W-box.Height())/2
		return Rect{LLX: box.URX - H, LLY: y0, URX: box.URX, URY: y0 + W}
	default:
		x0 := box.LLX - (W-box.Width())/2
		return Rect{LLX: x0, LLY: box.URY - H, URX: x0 + W, URY: box.URY}
	}
}
