package export

import (
	"fmt"
	"io"
	"time"

	"marketplace/internal/models"

	"github.com/xuri/excelize/v2"
)

const bookingsSheet = "Bookings"

var bookingHeaders = []string{
	"ID", "Date", "Listing", "City", "Price", "Customer", "Status", "Created", "Updated",
}

var statusFill = map[string]string{
	models.StatusPending:   "#FFEB9C",
	models.StatusAccepted:  "#C6EFCE",
	models.StatusRejected:  "#FFC7CE",
	models.StatusCancelled: "#EDEDED",
}

// FileName returns the attachment name for a provider export.
func FileName(providerID int64, now time.Time) string {
	return fmt.Sprintf("bookings_%d_%s.xlsx", providerID, now.Format("2006-01-02"))
}

// WriteProviderBookings renders bookings as an XLSX workbook into w.
func WriteProviderBookings(w io.Writer, bookings []models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating header style: %w", err)
	}

	for i, header := range bookingHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(bookingsSheet, cell, header)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(bookingHeaders), 1)
	_ = f.SetCellStyle(bookingsSheet, "A1", lastHeader, headerStyle)

	styles := make(map[string]int, len(statusFill))
	for status, color := range statusFill {
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("error creating status style: %w", err)
		}
		styles[status] = style
	}

	for i := range bookings {
		b := &bookings[i]
		row := i + 2
		values := []interface{}{
			b.ID,
			b.BookingDate,
			b.ListingTitle,
			b.ListingCity,
			b.ListingPrice,
			b.CustomerName,
			b.Status,
			b.CreatedAt.Format("2006-01-02 15:04"),
			b.UpdatedAt.Format("2006-01-02 15:04"),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(bookingsSheet, start, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
		if style, ok := styles[b.Status]; ok {
			cell, _ := excelize.CoordinatesToCellName(7, row)
			_ = f.SetCellStyle(bookingsSheet, cell, cell, style)
		}
	}

	_ = f.SetColWidth(bookingsSheet, "A", "A", 8)
	_ = f.SetColWidth(bookingsSheet, "B", "B", 12)
	_ = f.SetColWidth(bookingsSheet, "C", "C", 30)
	_ = f.SetColWidth(bookingsSheet, "D", "F", 18)
	_ = f.SetColWidth(bookingsSheet, "G", "G", 12)
	_ = f.SetColWidth(bookingsSheet, "H", "I", 18)
	_ = f.SetPanes(bookingsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	_ = f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}
