// Package receipt renders tuition receipts and salary slips as PDF documents.
package receipt

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"schoolhub-server-go/models"
)

// ContentType is the MIME type of the documents written by this package
const ContentType = "application/pdf"

// Party is a named person printed on a receipt (student, class, teacher)
type Party struct {
	Label string
	Value string
}

type line struct {
	label  string
	amount float64
}

type document struct {
	school  string
	title   string
	number  string
	month   string
	created time.Time
	parties []Party
	lines   []line
	total   float64
	paid    bool
	paidAt  *time.Time
	note    string
}

// FormatMoney renders an amount with thousands separators, e.g. 1,250,000.50
func FormatMoney(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// Tuition writes the receipt for a tuition bill. student and class are display names.
func Tuition(w io.Writer, school string, r models.TuitionReceipt, student, class string) error {
	doc := document{
		school:  school,
		title:   "TUITION RECEIPT",
		number:  r.Number,
		month:   r.Month,
		created: r.CreatedAt,
		parties: []Party{{"Student", student}, {"Class", class}},
		lines: []line{
			{fmt.Sprintf("%d session(s) x %s", r.Sessions, FormatMoney(r.UnitPrice)), float64(r.Sessions) * r.UnitPrice},
		},
		total:  r.Amount,
		paid:   r.Paid,
		paidAt: r.PaidAt,
		note:   r.Note,
	}
	if r.Discount > 0 {
		doc.lines = append(doc.lines, line{"Discount", -r.Discount})
	}
	return doc.render(w)
}

// Salary writes the payslip for a salary receipt. teacher is a display name.
func Salary(w io.Writer, school string, r models.SalaryReceipt, teacher string) error {
	doc := document{
		school:  school,
		title:   "SALARY SLIP",
		number:  r.Number,
		month:   r.Month,
		created: r.CreatedAt,
		parties: []Party{{"Teacher", teacher}},
		lines: []line{
			{fmt.Sprintf("%d session(s) x %s", r.Sessions, FormatMoney(r.Rate)), float64(r.Sessions) * r.Rate},
		},
		total:  r.Amount,
		paid:   r.Paid,
		paidAt: r.PaidAt,
		note:   r.Note,
	}
	if r.Bonus > 0 {
		doc.lines = append(doc.lines, line{"Bonus", r.Bonus})
	}
	if r.Deduction > 0 {
		doc.lines = append(doc.lines, line{"Deduction", -r.Deduction})
	}
	return doc.render(w)
}

func (d document) render(w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetTitle(d.title+" "+d.number, true)
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Header
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 7, tr(d.school))
	pdf.Ln(8)
	pdf.SetDrawColor(40, 145, 108)
	pdf.SetLineWidth(0.5)
	pdf.Line(12, pdf.GetY(), 136, pdf.GetY())
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, d.title, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, "No. "+d.number, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	info := append([]Party{{"Month", d.month}, {"Issued", d.created.Format("2006-01-02")}}, d.parties...)
	for _, p := range info {
		pdf.SetFont("Arial", "", 10)
		pdf.Cell(30, 6, p.Label+":")
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, tr(p.Value))
		pdf.Ln(6)
	}
	pdf.Ln(3)

	// Line items
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(40, 145, 108)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(84, 7, "DESCRIPTION", "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 7, "AMOUNT", "1", 1, "R", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "", 9)
	pdf.SetFillColor(245, 245, 245)
	for i, l := range d.lines {
		fill := i%2 == 0
		pdf.CellFormat(84, 7, tr(l.label), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(40, 7, FormatMoney(l.amount), "1", 1, "R", fill, 0, "")
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(84, 8, "TOTAL", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, FormatMoney(d.total), "1", 1, "R", false, 0, "")
	pdf.Ln(5)

	status := "UNPAID"
	if d.paid {
		status = "PAID"
		if d.paidAt != nil {
			status += " on " + d.paidAt.Format("2006-01-02")
		}
		pdf.SetTextColor(40, 145, 108)
	} else {
		pdf.SetTextColor(200, 40, 40)
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, status, "", 1, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	if d.note != "" {
		pdf.Ln(2)
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 5, tr("Note: "+d.note), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render %s %s: %w", strings.ToLower(d.title), d.number, err)
	}
	return nil
}
