// Package estimator prices a page selection from its cached rasters.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/local/pisoprint/internal/cache"
	"github.com/local/pisoprint/internal/imagerender"
	"github.com/local/pisoprint/internal/metrics"
	"github.com/local/pisoprint/internal/paper"
	"github.com/local/pisoprint/internal/selection"
	"github.com/local/pisoprint/internal/usage"
)

var (
	// ErrNoCachedImages means none of the requested pages has a cached raster.
	ErrNoCachedImages = errors.New("no cached images found for the requested pages")
	ErrInvalidRequest = errors.New("invalid estimate request")
)

type Color string

const (
	BW   Color = "bw"
	Full Color = "color"
)

// ParseColor accepts "bw" and "color".
func ParseColor(s string) (Color, error) {
	switch Color(s) {
	case BW, Full:
		return Color(s), nil
	}
	return "", fmt.Errorf("%w: color %q", ErrInvalidRequest, s)
}

var (
	sectionRate = decimal.RequireFromString("0.50")
	colorRate   = decimal.NewFromInt(10)
	bwRate      = decimal.NewFromInt(5)
)

// BaseRate is the per-page price for a color mode.
func BaseRate(c Color) decimal.Decimal {
	if c == Full {
		return colorRate
	}
	return bwRate
}

type Request struct {
	Paper    paper.Size
	BaseName string
	Color    Color
	Pages    selection.PageSet
	Copies   int
}

func (r Request) validate() error {
	switch {
	case !r.Paper.Valid():
		return fmt.Errorf("%w: paper size %q", ErrInvalidRequest, r.Paper)
	case r.BaseName == "":
		return fmt.Errorf("%w: missing base name", ErrInvalidRequest)
	case r.Color != BW && r.Color != Full:
		return fmt.Errorf("%w: color %q", ErrInvalidRequest, r.Color)
	case len(r.Pages) == 0:
		return fmt.Errorf("%w: no pages selected", ErrInvalidRequest)
	case r.Copies < 1:
		return fmt.Errorf("%w: copies must be at least 1", ErrInvalidRequest)
	}
	return nil
}

type CostBreakdown struct {
	BaseRate     int64 `json:"baseRate"`
	UsedSections int   `json:"usedSections"`
	TotalPages   int   `json:"totalPages"`
	Copies       int   `json:"copies"`
	TotalCost    int64 `json:"totalCost"`
	MissingPages []int `json:"missingPages"`
}

// Cost computes round((baseRate*totalPages + usedSections*0.50) * copies).
// Rounding happens once, after every multiplication.
func Cost(c Color, totalPages, usedSections, copies int) int64 {
	sum := BaseRate(c).Mul(decimal.NewFromInt(int64(totalPages))).
		Add(sectionRate.Mul(decimal.NewFromInt(int64(usedSections))))
	return sum.Mul(decimal.NewFromInt(int64(copies))).Round(0).IntPart()
}

type Estimator struct {
	cache *cache.Manager
}

func New(c *cache.Manager) *Estimator {
	return &Estimator{cache: c}
}

// Estimate scans the cached raster of every requested page and prices the
// selection. Pages without a raster are reported in MissingPages; the call
// fails with ErrNoCachedImages only when no page matched at all.
func (e *Estimator) Estimate(ctx context.Context, req Request) (CostBreakdown, error) {
	if err := req.validate(); err != nil {
		return CostBreakdown{}, err
	}
	start := time.Now()

	var (
		used    int
		missing = []int{}
		matched int
	)
	err := e.cache.Shared(func() error {
		index, err := e.cache.Index(req.Paper, req.BaseName)
		if err != nil {
			return fmt.Errorf("list cache: %w", err)
		}
		for _, page := range req.Pages {
			if err := ctx.Err(); err != nil {
				return err
			}
			path, ok := index[page]
			if !ok {
				missing = append(missing, page)
				continue
			}
			if req.Color == BW {
				if path, err = imagerender.GrayVariant(path); err != nil {
					return fmt.Errorf("page %d: %w", page, err)
				}
			}
			n, err := usage.ScanFile(path)
			if err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			used += n
			matched++
		}
		return nil
	})
	if err != nil {
		metrics.IncEstimate(string(req.Color), "error")
		return CostBreakdown{}, err
	}
	if matched == 0 {
		metrics.IncEstimate(string(req.Color), "no_images")
		return CostBreakdown{}, fmt.Errorf("%w: %s on %s", ErrNoCachedImages, req.BaseName, req.Paper)
	}
	if len(missing) > 0 {
		metrics.AddMissingPages(len(missing))
		log.Warn().
			Str("base_name", req.BaseName).
			Str("paper", req.Paper.String()).
			Ints("missing_pages", missing).
			Msg("PartialMatchGap: requested pages have no cached raster")
	}

	out := CostBreakdown{
		BaseRate:     BaseRate(req.Color).IntPart(),
		UsedSections: used,
		TotalPages:   len(req.Pages),
		Copies:       req.Copies,
		TotalCost:    Cost(req.Color, len(req.Pages), used, req.Copies),
		MissingPages: missing,
	}
	metrics.IncEstimate(string(req.Color), "ok")
	metrics.ObserveStage("estimate", req.Paper.String(), time.Since(start))
	log.Info().
		Str("base_name", req.BaseName).
		Str("paper", req.Paper.String()).
		Str("color", string(req.Color)).
		Int("pages", out.TotalPages).
		Int("used_sections", used).
		Int64("total_cost", out.TotalCost).
		Msg("estimate computed")
	return out, nil
}
