package documents

import (
	"io"
	"time"
)

// CertificateData is what a certificate shows.
type CertificateData struct {
	Number        string
	RecipientName string
	CourseTitle   string
	IssuedAt      time.Time
}

// CertificatePDF renders a one-page landscape A4 certificate.
func CertificatePDF(w io.Writer, data CertificateData) error {
	pdf, tr := newDocument("L", "Certificate "+data.Number)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	width, height := pdf.GetPageSize()

	pdf.SetDrawColor(140, 110, 40)
	pdf.SetLineWidth(1.5)
	pdf.Rect(10, 10, width-20, height-20, "D")
	pdf.SetLineWidth(0.4)
	pdf.Rect(14, 14, width-28, height-28, "D")

	pdf.SetTextColor(40, 40, 40)
	pdf.SetXY(20, 35)
	pdf.SetFont(fontFamily, "B", 30)
	pdf.CellFormat(width-40, 14, tr("Certificate of Completion"), "", 1, "C", false, 0, "")

	pdf.SetX(20)
	pdf.SetFont(fontFamily, "", 14)
	pdf.CellFormat(width-40, 18, tr("This certifies that"), "", 1, "C", false, 0, "")

	pdf.SetX(20)
	pdf.SetFont(fontFamily, "B", 26)
	pdf.CellFormat(width-40, 16, tr(orBlank(data.RecipientName)), "", 1, "C", false, 0, "")

	if data.CourseTitle != "" {
		pdf.SetX(20)
		pdf.SetFont(fontFamily, "", 14)
		pdf.CellFormat(width-40, 14, tr("has successfully completed"), "", 1, "C", false, 0, "")
		pdf.SetX(20)
		pdf.SetFont(fontFamily, "B", 20)
		pdf.CellFormat(width-40, 12, tr(data.CourseTitle), "", 1, "C", false, 0, "")
	}

	pdf.SetXY(20, height-50)
	pdf.SetFont(fontFamily, "", 11)
	pdf.CellFormat((width-40)/2, 8, tr("Issued "+data.IssuedAt.UTC().Format(dateLayout)), "", 0, "L", false, 0, "")
	pdf.CellFormat((width-40)/2, 8, tr("Certificate No. "+data.Number), "", 1, "R", false, 0, "")

	pdf.SetXY(20, height-38)
	pdf.SetFont(fontFamily, "I", 11)
	pdf.CellFormat(width-40, 8, tr("Christ Life Ministries"), "", 1, "C", false, 0, "")
	return write(pdf, w)
}
