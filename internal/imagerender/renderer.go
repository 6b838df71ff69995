package imagerender

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"

	"github.com/local/pisoprint/internal/cache"
	"github.com/local/pisoprint/internal/metrics"
	"github.com/local/pisoprint/internal/paper"
)

// DPI is the fixed raster resolution of cached pages.
const DPI = 150

// Page is one cached raster.
type Page struct {
	Index  int    `json:"index"`
	Path   string `json:"-"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Rasterizer renders normalized documents into the cache.
type Rasterizer struct {
	cache *cache.Manager
	dpi   float64
}

func New(c *cache.Manager) *Rasterizer {
	return &Rasterizer{cache: c, dpi: DPI}
}

// Rasterize renders every page of pdf into the cache directory for p, naming
// files after baseName. The caller clears the cache beforehand.
func (r *Rasterizer) Rasterize(ctx context.Context, pdf []byte, p paper.Size, baseName string) ([]Page, error) {
	start := time.Now()
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := make([]Page, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		img, err := doc.ImageDPI(i, r.dpi)
		if err != nil {
			return pages, fmt.Errorf("failed to render page %d: %w", i+1, err)
		}
		path := r.cache.RasterPath(p, baseName, i+1)
		if err := writePNG(path, img); err != nil {
			return pages, fmt.Errorf("failed to write page %d: %w", i+1, err)
		}
		b := img.Bounds()
		pages = append(pages, Page{Index: i + 1, Path: path, Name: filepath.Base(path), Width: b.Dx(), Height: b.Dy()})
	}

	metrics.AddPagesRendered(p.String(), len(pages))
	metrics.ObserveStage("rasterize", p.String(), time.Since(start))
	log.Info().
		Str("base_name", baseName).
		Str("paper", p.String()).
		Int("pages", len(pages)).
		Float64("dpi", r.dpi).
		Dur("took", time.Since(start)).
		Msg("rasterized document")
	return pages, nil
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(b)
	draw.Draw(g, b, img, b.Min, draw.Src)
	return g
}

// writePNG encodes img next to path and renames it into place so readers
// never observe a partial file.
func writePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".render-*.png")
	if err != nil {
		return err
	}
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
