package attendance

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/warp/workday/generic"
)

const exportSheet = "Sessions"

var exportHeader = []string{
	"Employee ID", "Employee", "Work date", "Start", "End",
	"Pause (min)", "Worked (h)", "Closing note",
	"Correction reason", "Corrected by", "Corrected at",
}

// ExportXLSX writes every closed session with a work date in [from, to]
// to a single-sheet workbook. HR only. Returns the file and a suggested
// file name.
func (s *Service) ExportXLSX(ctx context.Context, actor generic.Actor, from, to generic.Date) (*bytes.Buffer, string, error) {
	if err := requireHR(actor); err != nil {
		return nil, "", err
	}
	if to.Before(from) {
		return nil, "", &generic.InvalidRangeError{Start: from, End: to}
	}

	sessions, err := s.Store.ListSessions(ctx, SessionFilter{From: from, To: to, ClosedOnly: true})
	if err != nil {
		return nil, "", generic.WrapStorage("list sessions", err)
	}
	employees, err := s.Store.ListEmployees(ctx)
	if err != nil {
		return nil, "", generic.WrapStorage("list employees", err)
	}
	names := make(map[generic.EmployeeID]string, len(employees))
	for _, e := range employees {
		names[e.ID] = e.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := s.fillWorkbook(f, sessions, names); err != nil {
		s.Logger.Error("build attendance workbook", zap.Error(err))
		return nil, "", fmt.Errorf("build workbook: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.Logger.Error("write attendance workbook", zap.Error(err))
		return nil, "", fmt.Errorf("write workbook: %w", err)
	}

	s.Logger.Info("attendance exported",
		zap.String("actor", string(actor.EmployeeID)),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("rows", len(sessions)),
	)
	return buf, fmt.Sprintf("attendance_%s_%s.xlsx", from, to), nil
}

// fillWorkbook writes the header and one row per session to the export sheet.
func (s *Service) fillWorkbook(f *excelize.File, sessions []Session, names map[generic.EmployeeID]string) error {
	idx, err := f.NewSheet(exportSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	header := make([]any, len(exportHeader))
	for i, title := range exportHeader {
		header[i] = title
	}
	if err := setRow(f, 1, header); err != nil {
		return err
	}
	first, err := cell(0, 1)
	if err != nil {
		return err
	}
	last, err := cell(len(exportHeader)-1, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(exportSheet, first, last, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	for _, w := range []struct {
		from, to string
		width    float64
	}{
		{"A", "B", 24},
		{"C", "G", 12},
		{"H", "I", 36},
	} {
		if err := f.SetColWidth(exportSheet, w.from, w.to, w.width); err != nil {
			return fmt.Errorf("column width %s:%s: %w", w.from, w.to, err)
		}
	}

	for i := range sessions {
		sess := &sessions[i]
		worked := sess.Elapsed(*sess.EndTime).Hours()

		values := []any{
			string(sess.EmployeeID),
			names[sess.EmployeeID],
			sess.WorkDate.String(),
			s.clockTime(sess.StartTime),
			s.clockTime(*sess.EndTime),
			sess.AccumulatedPauseSeconds / 60,
			fmt.Sprintf("%.2f", worked),
			sess.ClosingNote,
			sess.CorrectionReason,
			string(sess.CorrectedBy),
			"",
		}
		if sess.CorrectedAt != nil {
			values[10] = sess.CorrectedAt.In(s.Location).Format("2006-01-02 15:04")
		}
		if err := setRow(f, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	start, err := cell(0, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, start, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func (s *Service) clockTime(t time.Time) string { return t.In(s.Location).Format("15:04") }

// cell converts zero-based column and one-based row to an A1 reference.
func cell(col, row int) (string, error) {
	name, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return "", fmt.Errorf("cell %d,%d: %w", col, row, err)
	}
	return name, nil
}
