package estimator

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pisoprint/internal/cache"
	"github.com/local/pisoprint/internal/imagerender"
	"github.com/local/pisoprint/internal/paper"
	"github.com/local/pisoprint/internal/selection"
)

func TestCost(t *testing.T) {
	tests := []struct {
		name   string
		color  Color
		pages  int
		used   int
		copies int
		want   int64
	}{
		{"bw no ink", BW, 3, 0, 2, 30},
		{"color with sections", Full, 2, 4, 1, 22},
		{"half rounds up", BW, 1, 1, 1, 6},
		{"rounded once after copies", BW, 1, 1, 3, 17},
		{"many copies", Full, 5, 24, 10, 620},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Cost(tt.color, tt.pages, tt.used, tt.copies))
		})
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("bw")
	require.NoError(t, err)
	assert.Equal(t, BW, c)

	_, err = ParseColor("sepia")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

// writePage writes a 24x48 raster whose first `colored` bands hold a red pixel.
func writePage(t *testing.T, path string, colored int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, color.White)
		}
	}
	for s := 0; s < colored; s++ {
		img.Set(3, s*4+1, color.RGBA{R: 220, G: 10, B: 10, A: 255})
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func setup(t *testing.T, colored map[int]int) *cache.Manager {
	t.Helper()
	c, err := cache.New(t.TempDir())
	require.NoError(t, err)
	for page, n := range colored {
		writePage(t, c.RasterPath(paper.Letter, "doc", page), n)
	}
	return c
}

func TestEstimate_BW(t *testing.T) {
	c := setup(t, map[int]int{1: 3, 2: 5, 3: 12})
	before, err := os.ReadFile(c.RasterPath(paper.Letter, "doc", 1))
	require.NoError(t, err)

	req := Request{Paper: paper.Letter, BaseName: "doc", Color: BW, Pages: selection.PageSet{1, 2, 3}, Copies: 2}
	got, err := New(c).Estimate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.BaseRate)
	assert.Equal(t, 0, got.UsedSections)
	assert.Equal(t, 3, got.TotalPages)
	assert.Equal(t, int64(30), got.TotalCost)
	assert.Empty(t, got.MissingPages)

	// the color raster is untouched, so a color estimate still sees the ink
	after, err := os.ReadFile(c.RasterPath(paper.Letter, "doc", 1))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	_, err = os.Stat(imagerender.GrayPath(c.RasterPath(paper.Letter, "doc", 1)))
	assert.NoError(t, err)
}

func TestEstimate_Color(t *testing.T) {
	c := setup(t, map[int]int{1: 1, 2: 3})
	e := New(c)
	req := Request{Paper: paper.Letter, BaseName: "doc", Color: Full, Pages: selection.PageSet{1, 2}, Copies: 1}

	got, err := e.Estimate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 4, got.UsedSections)
	assert.Equal(t, int64(22), got.TotalCost)

	// a bw estimate in between does not change the color result
	req.Color = BW
	_, err = e.Estimate(context.Background(), req)
	require.NoError(t, err)
	req.Color = Full
	again, err := e.Estimate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestEstimate_PageOneDoesNotMatchPageTen(t *testing.T) {
	c := setup(t, map[int]int{10: 2})
	req := Request{Paper: paper.Letter, BaseName: "doc", Color: Full, Pages: selection.PageSet{1}, Copies: 1}
	_, err := New(c).Estimate(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoCachedImages)
}

func TestEstimate_MissingPagesReported(t *testing.T) {
	c := setup(t, map[int]int{1: 2})
	req := Request{Paper: paper.Letter, BaseName: "doc", Color: Full, Pages: selection.PageSet{1, 2, 3}, Copies: 1}
	got, err := New(c).Estimate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, got.MissingPages)
	assert.Equal(t, 3, got.TotalPages)
	assert.Equal(t, 2, got.UsedSections)
	assert.Equal(t, int64(31), got.TotalCost)
}

func TestEstimate_OtherPaperIsEmpty(t *testing.T) {
	c := setup(t, map[int]int{1: 2})
	req := Request{Paper: paper.Legal, BaseName: "doc", Color: Full, Pages: selection.PageSet{1}, Copies: 1}
	_, err := New(c).Estimate(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoCachedImages)
}

func TestEstimate_InvalidRequest(t *testing.T) {
	e := New(setup(t, nil))
	valid := Request{Paper: paper.Letter, BaseName: "doc", Color: BW, Pages: selection.PageSet{1}, Copies: 1}

	cases := map[string]func(r *Request){
		"paper":  func(r *Request) { r.Paper = "a4" },
		"base":   func(r *Request) { r.BaseName = "" },
		"color":  func(r *Request) { r.Color = "sepia" },
		"pages":  func(r *Request) { r.Pages = nil },
		"copies": func(r *Request) { r.Copies = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := valid
			mutate(&r)
			_, err := e.Estimate(context.Background(), r)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}
