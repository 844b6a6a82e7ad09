// Package documents renders the portal's printable PDFs: application
// exports, course certificates and event tickets.
package documents

import (
	"io"

	"github.com/go-pdf/fpdf"
)

const (
	creator     = "Christ Life Ministries Portal"
	fontFamily  = "Helvetica"
	blankValue  = "-"
	dateLayout  = "2 January 2006"
	stampLayout = "2 January 2006 15:04"
)

// newDocument returns a page-less A4 document in millimetres with the core
// font translator for cp1252 text.
func newDocument(orientation, title string) (*fpdf.Fpdf, func(string) string) {
	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator(creator, true)
	pdf.SetAuthor("Christ Life Ministries", true)
	return pdf, pdf.UnicodeTranslatorFromDescriptor("")
}

func write(pdf *fpdf.Fpdf, w io.Writer) error {
	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func orBlank(value string) string {
	if value == "" {
		return blankValue
	}
	return value
}
