package reports

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// visitRow is one line of the export sheet.
type visitRow struct {
	ID        int64
	Manager   string
	Client    string
	City      string
	Departure string
	Return    string
	Status    string
	Legalized float64
}

// ExportXLSX writes the visit summary workbook to w. One sheet lists every
// visit with its legalized expense total; a second sheet carries the status
// counts so the spreadsheet matches the dashboard figures.
func (s *Service) ExportXLSX(ctx context.Context, w io.Writer) error {
	rows, err := s.exportRows()
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Visitas"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Gestor", "Cliente", "Ciudad", "Salida", "Regreso", "Estado", "Total legalizado"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		values := []any{row.ID, row.Manager, row.Client, row.City, row.Departure, row.Return, row.Status, row.Legalized}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	byStatus, err := s.visitRepo.CountByStatus()
	if err != nil {
		return err
	}
	const statusSheet = "Resumen"
	if _, err := f.NewSheet(statusSheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}
	f.SetCellValue(statusSheet, "A1", "Estado")
	f.SetCellValue(statusSheet, "B1", "Visitas")
	line := 2
	for status, count := range byStatus {
		f.SetCellValue(statusSheet, fmt.Sprintf("A%d", line), status)
		f.SetCellValue(statusSheet, fmt.Sprintf("B%d", line), count)
		line++
	}

	if err := f.Write(w); err != nil {
		s.logger.Error("Failed to write export workbook", zap.Error(err))
		return fmt.Errorf("failed to write export workbook: %w", err)
	}

	s.logger.Info("Visit summary exported", zap.Int("rows", len(rows)))
	return nil
}

func (s *Service) exportRows() ([]visitRow, error) {
	rows, err := s.db.Query(`
		SELECT v.id, u.email, v.client_name, v.city,
			strftime('%Y-%m-%d %H:%M', v.departure),
			strftime('%Y-%m-%d %H:%M', v.return_date),
			v.status, COALESCE(i.total, 0)
		FROM visits v
		JOIN users u ON u.id = v.manager_id
		LEFT JOIN invoices i ON i.visit_id = v.id
		ORDER BY v.created_at DESC
	`)
	if err != nil {
		s.logger.Error("Failed to query export rows", zap.Error(err))
		return nil, fmt.Errorf("failed to query export rows: %w", err)
	}
	defer rows.Close()

	var out []visitRow
	for rows.Next() {
		var r visitRow
		if err := rows.Scan(&r.ID, &r.Manager, &r.Client, &r.City, &r.Departure, &r.Return, &r.Status, &r.Legalized); err != nil {
			return nil, fmt.Errorf("failed to scan export row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
