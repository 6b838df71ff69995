package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog/log"

	"github.com/local/pisoprint/internal/paper"
)

// ErrMalformedDocument is returned for sources that cannot be parsed or have
// no pages.
var ErrMalformedDocument = errors.New("malformed document")

// Info describes an un-normalized source document.
type Info struct {
	PageCount int
	// Displayed size of page 1 in points.
	Width, Height float64
}

// NominalSize is the paper the first page most likely was meant for.
func (i Info) NominalSize() paper.Size { return paper.Classify(i.Width, i.Height) }

// Normalizer reflows every page of a PDF onto a fixed paper canvas.
// It is safe for concurrent use; each call works on its own parsed context.
type Normalizer struct{}

func New() *Normalizer {
	api.DisableConfigDir()
	return &Normalizer{}
}

func (n *Normalizer) read(src []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(src), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if ctx.PageCount <= 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrMalformedDocument)
	}
	return ctx, nil
}

// pageBox returns the visible box and rotation of page pageNr (1-based),
// following inherited attributes.
func pageBox(ctx *model.Context, pageNr int) (types.Dict, Rect, int, error) {
	d, _, inh, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return nil, Rect{}, 0, fmt.Errorf("%w: page %d: %v", ErrMalformedDocument, pageNr, err)
	}
	if d == nil || inh == nil || inh.MediaBox == nil {
		return nil, Rect{}, 0, fmt.Errorf("%w: page %d has no media box", ErrMalformedDocument, pageNr)
	}
	r := inh.MediaBox
	if inh.CropBox != nil {
		r = inh.CropBox
	}
	return d, Rect{LLX: r.LL.X, LLY: r.LL.Y, URX: r.UR.X, URY: r.UR.Y}, inh.Rotate, nil
}

// Inspect reads page count and first page geometry without modifying src.
func (n *Normalizer) Inspect(src []byte) (Info, error) {
	ctx, err := n.read(src)
	if err != nil {
		return Info{}, err
	}
	_, box, rot, err := pageBox(ctx, 1)
	if err != nil {
		return Info{}, err
	}
	w, h := Displayed(box, rot)
	return Info{PageCount: ctx.PageCount, Width: w, Height: h}, nil
}

// Normalize returns a copy of src where every page is exactly the size of p.
func (n *Normalizer) Normalize(src []byte, p paper.Size) ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("unknown paper size %q", p)
	}
	ctx, err := n.read(src)
	if err != nil {
		return nil, err
	}

	for i := 1; i <= ctx.PageCount; i++ {
		d, box, rot, err := pageBox(ctx, i)
		if err != nil {
			return nil, err
		}
		if err := clipToBox(ctx, d, i, box); err != nil {
			return nil, err
		}
		c := CanvasBox(box, rot, p)
		arr := types.NewRectangle(c.LLX, c.LLY, c.URX, c.URY).Array()
		// CropBox is inheritable, so it is pinned on the page rather than removed.
		d["MediaBox"] = arr
		d["CropBox"] = arr
		delete(d, "BleedBox")
		delete(d, "TrimBox")
		delete(d, "ArtBox")
	}

	var out bytes.Buffer
	if err := api.WriteContext(ctx, &out); err != nil {
		return nil, fmt.Errorf("write normalized pdf: %w", err)
	}
	log.Debug().Str("paper", p.String()).Int("pages", ctx.PageCount).Int("bytes", out.Len()).Msg("normalized document")
	return out.Bytes(), nil
}

// clipToBox rewrites the page content inside a clip of the original visible
// box, so drawing that was off-page stays hidden once the page box grows.
func clipToBox(ctx *model.Context, d types.Dict, pageNr int, box Rect) error {
	content, err := ctx.PageContent(d, pageNr)
	if errors.Is(err, model.ErrNoContent) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: page %d: %v", ErrMalformedDocument, pageNr, err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "q %.4f %.4f %.4f %.4f re W n\n", box.LLX, box.LLY, box.URX-box.LLX, box.URY-box.LLY)
	buf.Write(content)
	buf.WriteString("\nQ\n")

	sd, err := ctx.NewStreamDictForBuf(buf.Bytes())
	if err != nil {
		return err
	}
	if err := sd.Encode(); err != nil {
		return fmt.Errorf("encode page %d content: %w", pageNr, err)
	}
	ref, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return err
	}
	d["Contents"] = *ref
	return nil
}

// NormalizeFile normalizes src and writes the result to outPath atomically.
func (n *Normalizer) NormalizeFile(src []byte, p paper.Size, outPath string) ([]byte, error) {
	b, err := n.Normalize(src, p)
	if err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".norm-*.pdf")
	if err != nil {
		return nil, err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}
	if err := os.Rename(tmp.Name(), outPath); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}
	return b, nil
}
