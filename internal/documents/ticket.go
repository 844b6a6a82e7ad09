package documents

import (
	"io"
	"time"
)

// TicketData is what an event ticket shows.
type TicketData struct {
	TicketNumber  string
	AttendeeName  string
	EventTitle    string
	Location      string
	StartsAt      time.Time
	PaymentStatus string
}

// TicketPDF renders an A4 portrait ticket with the registration details.
func TicketPDF(w io.Writer, data TicketData) error {
	pdf, tr := newDocument("P", "Ticket "+data.TicketNumber)
	pdf.AddPage()
	width, _ := pdf.GetPageSize()

	pdf.SetDrawColor(30, 60, 110)
	pdf.SetLineWidth(0.8)
	pdf.Rect(20, 20, width-40, 110, "D")

	pdf.SetXY(28, 28)
	pdf.SetFont(fontFamily, "B", 20)
	pdf.CellFormat(width-56, 12, tr(orBlank(data.EventTitle)), "", 1, "L", false, 0, "")

	rows := []Line{
		{Label: "Ticket", Value: data.TicketNumber},
		{Label: "Attendee", Value: data.AttendeeName},
		{Label: "Date", Value: data.StartsAt.UTC().Format(stampLayout)},
		{Label: "Venue", Value: data.Location},
		{Label: "Payment", Value: data.PaymentStatus},
	}
	for _, row := range rows {
		pdf.SetX(28)
		pdf.SetFont(fontFamily, "B", 12)
		pdf.CellFormat(35, 10, tr(row.Label), "", 0, "L", false, 0, "")
		pdf.SetFont(fontFamily, "", 12)
		pdf.CellFormat(width-91, 10, tr(orBlank(row.Value)), "", 1, "L", false, 0, "")
	}

	pdf.SetXY(28, 118)
	pdf.SetFont(fontFamily, "I", 9)
	pdf.CellFormat(width-56, 6, tr("Please present this ticket at the entrance."), "", 1, "L", false, 0, "")
	return write(pdf, w)
}
