// Package filetype rejects uploads that are not PDF documents.
package filetype

import (
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// ErrNotPDF carries the message shown to the user.
var ErrNotPDF = errors.New("Only PDF files are allowed")

const pdfMIME = "application/pdf"

// Info is what detection found, by magic bytes and not by file name.
type Info struct {
	MIMEType  string
	Extension string
}

// Detector sniffs content using magic bytes.
type Detector struct{}

func New() *Detector {
	return &Detector{}
}

// Detect sniffs the leading bytes of data.
func (d *Detector) Detect(data []byte) Info {
	m := mimetype.Detect(data)
	return Info{MIMEType: m.String(), Extension: m.Extension()}
}

// RequirePDF returns ErrNotPDF unless data starts like a PDF document. The
// client-declared name and content type are only logged.
func (d *Detector) RequirePDF(data []byte, filename string) error {
	m := mimetype.Detect(data)
	if !m.Is(pdfMIME) {
		log.Warn().Str("file", filename).Str("mime", m.String()).Msg("rejected non-PDF upload")
		return fmt.Errorf("%w: detected %s", ErrNotPDF, m.String())
	}
	log.Debug().Str("file", filename).Str("mime", m.String()).Msg("detected file type")
	return nil
}
