package filetype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pisoprint/internal/pdftest"
)

func TestRequirePDF(t *testing.T) {
	d := New()
	pdf := pdftest.Build(pdftest.Page{Width: 612, Height: 792})

	require.NoError(t, d.RequirePDF(pdf, "doc.pdf"))
	assert.Equal(t, "application/pdf", d.Detect(pdf).MIMEType)
	assert.Equal(t, ".pdf", d.Detect(pdf).Extension)

	err := d.RequirePDF([]byte("\x89PNG\r\n\x1a\n0000000000000"), "doc.pdf")
	assert.ErrorIs(t, err, ErrNotPDF)

	err = d.RequirePDF([]byte("hello world"), "notes.pdf")
	assert.ErrorIs(t, err, ErrNotPDF)
}
