package pdftest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_OpensWithMuPDF(t *testing.T) {
	pdf := Build(
		Page{Width: 612, Height: 792},
		Page{Width: 300, Height: 400, Boxes: []Box{{X: 10, Y: 10, W: 50, H: 50, Fill: Red}}},
	)
	bounds, err := Bounds(pdf)
	require.NoError(t, err)
	require.Len(t, bounds, 2)
	assert.Equal(t, 612, bounds[0].Dx())
	assert.Equal(t, 792, bounds[0].Dy())
	assert.Equal(t, 300, bounds[1].Dx())
	assert.Equal(t, 400, bounds[1].Dy())
}

func TestBuild_RotatedPageSwapsBounds(t *testing.T) {
	bounds, err := Bounds(Build(Page{Width: 612, Height: 792, Rotate: 90}))
	require.NoError(t, err)
	require.Len(t, bounds, 1)
	assert.Equal(t, 792, bounds[0].Dx())
	assert.Equal(t, 612, bounds[0].Dy())
}
