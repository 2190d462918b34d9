package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// AdmitCardEntry is one printable admit card.
type AdmitCardEntry struct {
	HallTicketNo  string
	StudentName   string
	ClassName     string
	ExamCenter    string
	ReportingTime string
}

// AdmitCardSheet groups the cards for one timetable.
type AdmitCardSheet struct {
	SchoolName string
	ExamName   string
	DateRange  string
	Cards      []AdmitCardEntry
}

// AdmitCardPDF renders admit card batches into a printable PDF.
type AdmitCardPDF struct{}

// NewAdmitCardPDF constructs the renderer.
func NewAdmitCardPDF() *AdmitCardPDF {
	return &AdmitCardPDF{}
}

// Render produces one bordered card per student, three per page.
func (e *AdmitCardPDF) Render(sheet AdmitCardSheet) ([]byte, error) {
	if len(sheet.Cards) == 0 {
		return nil, fmt.Errorf("admit card sheet requires at least one card")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)

	const cardHeight = 80.0
	for i, card := range sheet.Cards {
		if i%3 == 0 {
			pdf.AddPage()
		}

		top := 15 + float64(i%3)*(cardHeight+10)
		pdf.SetXY(10, top)
		pdf.Rect(10, top, 190, cardHeight, "D")

		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(190, 10, sheet.SchoolName, "", 1, "C", false, 0, "")
		pdf.SetFont("Arial", "B", 11)
		pdf.SetX(10)
		pdf.CellFormat(190, 8, fmt.Sprintf("ADMIT CARD - %s", sheet.ExamName), "", 1, "C", false, 0, "")
		if sheet.DateRange != "" {
			pdf.SetFont("Arial", "", 9)
			pdf.SetX(10)
			pdf.CellFormat(190, 6, sheet.DateRange, "", 1, "C", false, 0, "")
		}
		pdf.Ln(2)

		pdf.SetFont("Arial", "", 10)
		for _, line := range [][2]string{
			{"Hall Ticket No", card.HallTicketNo},
			{"Student", card.StudentName},
			{"Class", card.ClassName},
			{"Exam Center", card.ExamCenter},
			{"Reporting Time", card.ReportingTime},
		} {
			pdf.SetX(15)
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(45, 7, line[0], "", 0, "", false, 0, "")
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(135, 7, line[1], "", 1, "", false, 0, "")
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render admit card pdf: %w", err)
	}
	return buf.Bytes(), nil
}
