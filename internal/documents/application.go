package documents

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/christlifeministries/portal/internal/forms"
	"github.com/christlifeministries/portal/internal/models"
)

// Line is one label/value row of an exported section.
type Line struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Section is a titled block of an application export.
type Section struct {
	Title string `json:"title"`
	Lines []Line `json:"lines"`
}

var sectionOrder = []struct {
	section forms.Section
	title   string
}{
	{forms.SectionPersonal, "Personal Information"},
	{forms.SectionProgram, "Program Details"},
	{forms.SectionReferences, "References"},
	{forms.SectionDeclarations, "Declarations"},
}

// ApplicationSections lays an application out in export order: personal
// information, program details, references, declarations, documents and a
// dump of every submitted field sorted by key. Sections with no fields for
// the program are omitted, except documents and the dump.
func ApplicationSections(application models.Application) []Section {
	values := forms.Values(application.FormData)
	definition, err := forms.Lookup(forms.FormType(application.ProgramType))

	var sections []Section
	if err == nil {
		for _, entry := range sectionOrder {
			var lines []Line
			for _, step := range definition.Steps {
				if step.Section != entry.section {
					continue
				}
				for _, field := range step.Fields {
					lines = append(lines, Line{Label: field.Label, Value: fieldValue(field, values)})
				}
			}
			if len(lines) > 0 {
				sections = append(sections, Section{Title: entry.title, Lines: lines})
			}
		}
	}

	sections = append(sections, Section{Title: "Documents", Lines: []Line{
		{Label: "ID document", Value: orBlank(application.IDDocumentURL)},
		{Label: "Payment proof", Value: orBlank(application.PaymentProofURL)},
	}})

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	dump := make([]Line, 0, len(keys))
	for _, key := range keys {
		dump = append(dump, Line{Label: key, Value: orBlank(values.String(key))})
	}
	return append(sections, Section{Title: "All Submitted Fields", Lines: dump})
}

func fieldValue(field forms.Field, values forms.Values) string {
	text := values.String(field.Name)
	if field.Accepted {
		switch strings.ToLower(text) {
		case "true", "yes", "on", "1":
			return "Yes"
		}
		return "No"
	}
	return orBlank(text)
}

// ApplicationPDF renders a portrait A4 export of one application.
func ApplicationPDF(w io.Writer, application models.Application) error {
	title := application.ProgramType.Label() + " Application"
	pdf, tr := newDocument("P", title)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	summary := fmt.Sprintf("Reference %s | Status: %s | Payment: %s | Submitted %s",
		application.ID, application.Status, application.PaymentStatus, application.CreatedAt.UTC().Format(stampLayout))
	pdf.MultiCell(0, 5, tr(summary), "", "L", false)
	pdf.Ln(4)

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	labelWidth := 60.0
	valueWidth := pageWidth - left - right - labelWidth

	for _, section := range ApplicationSections(application) {
		pdf.SetFont(fontFamily, "B", 12)
		pdf.SetFillColor(230, 236, 245)
		pdf.CellFormat(0, 8, tr(section.Title), "", 1, "L", true, 0, "")
		pdf.Ln(1)
		for _, line := range section.Lines {
			y := pdf.GetY()
			pdf.SetFont(fontFamily, "B", 9)
			pdf.MultiCell(labelWidth, 5, tr(line.Label), "", "L", false)
			labelBottom := pdf.GetY()
			pdf.SetXY(left+labelWidth, y)
			pdf.SetFont(fontFamily, "", 9)
			pdf.MultiCell(valueWidth, 5, tr(line.Value), "", "L", false)
			if labelBottom > pdf.GetY() {
				pdf.SetY(labelBottom)
			}
		}
		pdf.Ln(3)
	}
	return write(pdf, w)
}
