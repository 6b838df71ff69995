package pdftest

import (
	"image"

	fitz "github.com/gen2brain/go-fitz"
)

// Bounds opens a PDF with MuPDF and returns every page's displayed bounds in
// points, rotation applied.
func Bounds(pdf []byte) ([]image.Rectangle, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	out := make([]image.Rectangle, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		r, err := doc.Bound(i)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
