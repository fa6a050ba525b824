// Package export renders itineraries as printable documents.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/types"
)

const (
	pageWidth    = 170.0
	labelWidth   = 30.0
	durationCell = 25.0
	costCell     = 35.0
)

// FormatVND renders an integer amount with dot thousands separators, as in 1.250.000 VND.
func FormatVND(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String() + " VND"
	}
	return b.String() + " VND"
}

func formatDuration(minutes int) string {
	switch {
	case minutes <= 0:
		return "-"
	case minutes < 60:
		return fmt.Sprintf("%d min", minutes)
	case minutes%60 == 0:
		return fmt.Sprintf("%d h", minutes/60)
	default:
		return fmt.Sprintf("%d h %d min", minutes/60, minutes%60)
	}
}

// WritePDF renders the resolved itinerary with its day and trip totals to w.
func WritePDF(w io.Writer, resp *types.ItineraryResponse) error {
	if resp == nil {
		return fmt.Errorf("%w: nothing to export", types.ErrValidation)
	}
	it := resp.Itinerary

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	// header bar
	pdf.SetFillColor(13, 24, 37)
	pdf.Rect(0, 0, 210, 38, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(20, 10)
	title := it.Destination
	if title == "" {
		title = "Itinerary"
	}
	pdf.CellFormat(pageWidth, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetX(20)
	subtitle := fmt.Sprintf("%d days | %s version", resp.Totals.Days, resp.Shown)
	pdf.CellFormat(pageWidth, 6, tr(subtitle), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetY(46)

	sectionHeader := func(title string) {
		pdf.SetFillColor(240, 236, 225)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(pageWidth, 8, tr(title), "", 1, "L", true, 0, "")
		pdf.Ln(2)
	}

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(labelWidth, 6, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(pageWidth-labelWidth, 6, tr(value), "", "L", false)
	}

	if it.Summary != "" {
		sectionHeader("Overview")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(40, 40, 40)
		pdf.MultiCell(pageWidth, 5, tr(it.Summary), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(4)
	}

	for _, day := range it.Days {
		heading := fmt.Sprintf("Day %d", day.DayNumber)
		if day.Theme != "" {
			heading += ": " + day.Theme
		}
		sectionHeader(heading)
		if day.Description != "" {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.MultiCell(pageWidth, 5, tr(day.Description), "", "L", false)
			pdf.Ln(1)
		}

		if len(day.Activities) == 0 {
			pdf.SetFont("Helvetica", "I", 10)
			pdf.CellFormat(pageWidth, 6, "No activities planned", "", 1, "L", false, 0, "")
		}
		for _, a := range day.Activities {
			name := a.Name
			if a.Optional {
				name += " (optional)"
			}
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(labelWidth, 6, tr(strings.ToUpper(string(a.TimeSlot))), "", 0, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.CellFormat(pageWidth-labelWidth-durationCell-costCell, 6, tr(name), "", 0, "L", false, 0, "")
			pdf.CellFormat(durationCell, 6, formatDuration(a.DurationMinutes), "", 0, "R", false, 0, "")
			pdf.CellFormat(costCell, 6, FormatVND(a.Cost), "", 1, "R", false, 0, "")
			if a.Location != "" {
				pdf.SetFont("Helvetica", "", 8)
				pdf.SetTextColor(110, 110, 110)
				pdf.SetX(20 + labelWidth)
				pdf.CellFormat(pageWidth-labelWidth, 4, tr(a.Location), "", 1, "L", false, 0, "")
				pdf.SetTextColor(0, 0, 0)
			}
		}

		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(pageWidth-costCell, 7, "Day total", "T", 0, "R", false, 0, "")
		pdf.CellFormat(costCell, 7, FormatVND(day.DayTotal), "T", 1, "R", false, 0, "")
		pdf.Ln(4)
	}

	sectionHeader("Trip totals")
	row("Days", strconv.Itoa(resp.Totals.Days))
	row("Activities", strconv.Itoa(resp.Totals.Activities))

	pdf.SetFillColor(212, 168, 67)
	pdf.SetTextColor(13, 24, 37)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(55, 9, "TOTAL ESTIMATE", "", 0, "L", true, 0, "")
	pdf.CellFormat(pageWidth-55, 9, FormatVND(resp.Totals.Cost), "", 1, "L", true, 0, "")
	pdf.SetTextColor(0, 0, 0)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render itinerary pdf: %w", err)
	}
	return nil
}
