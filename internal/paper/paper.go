package paper

import (
	"fmt"
	"strings"
)

// Size is one of the fixed paper canvases pages are reflowed onto.
type Size string

const (
	Letter Size = "letter"
	Legal  Size = "legal"
)

// LegalHeightThreshold is the page height (points) above which a source is
// treated as legal-sized.
const LegalHeightThreshold = 900.0

var dims = map[Size][2]float64{
	Letter: {612, 792},
	Legal:  {612, 1008},
}

// All returns every supported size in a stable order.
func All() []Size { return []Size{Letter, Legal} }

// Parse maps a user supplied value to a Size.
func Parse(s string) (Size, error) {
	sz := Size(strings.ToLower(strings.TrimSpace(s)))
	if !sz.Valid() {
		return "", fmt.Errorf("unknown paper size %q", s)
	}
	return sz, nil
}

func (s Size) Valid() bool {
	_, ok := dims[s]
	return ok
}

// Width in points.
func (s Size) Width() float64 { return dims[s][0] }

// Height in points.
func (s Size) Height() float64 { return dims[s][1] }

func (s Size) String() string { return string(s) }

// Classify guesses the nominal paper of a page from its displayed dimensions.
// The result is a hint for preselecting a canvas, never a constraint.
func Classify(width, height float64) Size {
	if height > LegalHeightThreshold {
		return Legal
	}
	if width == Legal.Width() && height == Legal.Height() {
		return Legal
	}
	return Letter
}
