// Package pdftest builds small, valid PDF documents for tests and reads back the
// page geometry MuPDF reports for them.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// RGB is a fill color with channels in [0,1].
type RGB struct{ R, G, B float64 }

var (
	Black = RGB{0, 0, 0}
	Gray  = RGB{0.5, 0.5, 0.5}
	Red   = RGB{1, 0, 0}
	Blue  = RGB{0, 0, 1}
)

// Box is a filled rectangle drawn on a page, in page space.
type Box struct {
	X, Y, W, H float64
	Fill       RGB
}

// Page describes one fixture page.
type Page struct {
	Width, Height float64
	Rotate        int
	Boxes         []Box
}

// Build renders pages into a complete PDF file with a correct xref table.
func Build(pages ...Page) []byte {
	var buf bytes.Buffer
	var offsets []int

	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	// 1: catalog, 2: page tree, then a (page, content) pair per page.
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	var kids bytes.Buffer
	for i := range pages {
		fmt.Fprintf(&kids, "%d 0 R ", 3+2*i)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [ %s] /Count %d >>", kids.String(), len(pages)))

	for i, p := range pages {
		content := contentStream(p.Boxes)
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] /Rotate %d /Resources << >> /Contents %d 0 R >>",
			num(p.Width), num(p.Height), p.Rotate, 4+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// WriteFile builds pages into dir/name and returns the path.
func WriteFile(dir, name string, pages ...Page) (string, error) {
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, Build(pages...), 0o644); err != nil {
		return "", err
	}
	return p, nil
}

func contentStream(boxes []Box) string {
	var b bytes.Buffer
	for _, bx := range boxes {
		fmt.Fprintf(&b, "%s %s %s rg %s %s %s %s re f\n",
			num(bx.Fill.R), num(bx.Fill.G), num(bx.Fill.B),
			num(bx.X), num(bx.Y), num(bx.W), num(bx.H))
	}
	return b.String()
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
