package applications

import (
	"io"
	"strings"
	"time"

	"github.com/christlifeministries/portal/internal/models"
)

var csvHeader = []string{
	"ID", "Full Name", "Email", "Phone", "ID Number", "Program", "Course",
	"Status", "Payment Status", "Fee", "Currency", "Submitted At", "Reviewed By", "Reviewed At",
}

// ExportCSV writes a header and one row per application. Every field is
// quoted and embedded quotes are doubled.
func ExportCSV(w io.Writer, applications []models.Application) error {
	if err := writeQuotedRow(w, csvHeader); err != nil {
		return err
	}
	for _, application := range applications {
		reviewedAt := ""
		if application.ReviewedAt != nil {
			reviewedAt = application.ReviewedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			application.ID,
			application.FullName,
			application.Email,
			application.Phone,
			application.IDNumber,
			application.ProgramType.Label(),
			application.CourseID,
			string(application.Status),
			string(application.PaymentStatus),
			application.Fee.StringFixed(2),
			application.Currency,
			application.CreatedAt.UTC().Format(time.RFC3339),
			application.ReviewedBy,
			reviewedAt,
		}
		if err := writeQuotedRow(w, row); err != nil {
			return err
		}
	}
	return nil
}

func writeQuotedRow(w io.Writer, fields []string) error {
	quoted := make([]string, len(fields))
	for i, field := range fields {
		quoted[i] = `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	_, err := io.WriteString(w, strings.Join(quoted, ",")+"\n")
	return err
}
