// Package export renders recorded check history as a PDF report.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tickle-go/internal/models"

	"github.com/phpdave11/gofpdf"
)

const fontFamily = "Helvetica"

// Report is the content of one PDF export.
type Report struct {
	GeneratedAt time.Time
	Summaries   []models.SiteSummary
	// Histories are optional per-site detail sections.
	Histories []models.SiteHistory
}

func WriteFile(path string, report Report) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir export: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create pdf: %w", err)
	}

	if err := Render(file, report); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

func Render(w io.Writer, report Report) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle("tickle-go - Uptime Report", false)

	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 9, "tickle-go - Uptime Report", "", 1, "L", false, 0, "")

	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated at: %s", fmtTime(report.GeneratedAt)), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	sectionTitle(pdf, "Sites")
	if len(report.Summaries) == 0 {
		empty(pdf)
	} else {
		summaryTable(pdf, report.Summaries)
	}
	pdf.Ln(2)

	for _, history := range report.Histories {
		sectionTitle(pdf, "History: "+safeText(history.Name))
		if len(history.Histories) == 0 {
			empty(pdf)
			continue
		}
		historyTable(pdf, history.Histories)
		pdf.Ln(2)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}

	return nil
}

func summaryTable(pdf *gofpdf.Fpdf, summaries []models.SiteSummary) {
	widths := []float64{52, 22, 46, 22, 40}
	header(pdf, widths, "Site", "Status", "Last check", "Uptime", "Checks (up/total)")

	pdf.SetFont(fontFamily, "", 9)
	pdf.SetTextColor(30, 30, 30)
	for _, s := range summaries {
		row(pdf, widths,
			safeText(s.Name),
			string(s.Status),
			fmtTime(s.CheckedAt),
			fmt.Sprintf("%.1f%%", s.Uptime()),
			fmt.Sprintf("%d/%d", s.UpChecks, s.Checks),
		)
	}
}

func historyTable(pdf *gofpdf.Fpdf, records []models.CheckRecord) {
	widths := []float64{46, 22, 22, 92}
	header(pdf, widths, "Checked at", "Status", "Duration", "Detail")

	pdf.SetFont(fontFamily, "", 9)
	pdf.SetTextColor(30, 30, 30)
	for _, r := range records {
		detail := safeText(r.Detail)
		if detail == "" {
			detail = "-"
		}
		row(pdf, widths,
			fmtTime(r.CheckedAt),
			string(r.Status),
			fmt.Sprintf("%.1fs", float64(r.DurationMS)/1000),
			truncate(detail, 60),
		)
	}
}

func header(pdf *gofpdf.Fpdf, widths []float64, titles ...string) {
	pdf.SetFont(fontFamily, "B", 9)
	pdf.SetFillColor(235, 235, 235)
	pdf.SetTextColor(0, 0, 0)
	for i, title := range titles {
		pdf.CellFormat(widths[i], 6, title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}

func row(pdf *gofpdf.Fpdf, widths []float64, values ...string) {
	for i, value := range values {
		pdf.CellFormat(widths[i], 5.5, value, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont(fontFamily, "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(pdf.GetX(), pdf.GetY(), 196, pdf.GetY())
	pdf.Ln(2)
}

func empty(pdf *gofpdf.Fpdf) {
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(90, 90, 90)
	pdf.MultiCell(0, 5, "(empty)", "", "L", false)
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// safeText keeps printable ASCII; the core fonts cannot render anything else.
func safeText(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(s)
	s = strings.TrimSpace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 32 && r <= 126 {
			b.WriteRune(r)
		} else {
			b.WriteRune('?')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
