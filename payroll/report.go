package payroll

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/staffing-engine/generic"
)

const (
	registerSheet = "Register"
	skippedSheet  = "Skipped"
)

var registerColumns = []string{
	"Payment ID", "Worker ID", "Worker", "Kind", "Period Start", "Period End",
	"Days", "Hours", "Billable Hours", "Gross", "Bonus", "Deduction", "Net",
	"Avg Hourly", "Status", "Reviewed", "Skipped", "Info",
}

var skippedColumns = []string{"Payment ID", "Worker ID", "Record ID", "Assignment ID", "Date", "Reason", "Detail"}

// ExportRegister writes an xlsx payroll register of every non-cancelled
// payment record overlapping period. A second sheet lists skipped attendance.
func ExportRegister(ctx context.Context, store generic.Store, period generic.Period, w io.Writer) error {
	if err := period.Validate(); err != nil {
		return err
	}
	payments, err := store.ListPayments(ctx, generic.PaymentFilter{Window: &period})
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}

	names := make(map[generic.WorkerID]string)
	for _, p := range payments {
		if _, ok := names[p.WorkerID]; ok {
			continue
		}
		worker, err := store.GetWorker(ctx, p.WorkerID)
		if err != nil {
			names[p.WorkerID] = ""
			continue
		}
		names[p.WorkerID] = worker.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", registerSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(skippedSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", skippedSheet, err)
	}
	if err := writeHeader(f, registerSheet, registerColumns); err != nil {
		return err
	}
	if err := writeHeader(f, skippedSheet, skippedColumns); err != nil {
		return err
	}

	gross, net := decimal.Zero, decimal.Zero
	row, skipRow := 2, 2
	for _, p := range payments {
		kind := "Salary"
		if p.IsAdvance {
			kind = "Advance"
		}
		values := []interface{}{
			string(p.ID), int64(p.WorkerID), names[p.WorkerID], kind,
			p.Period.Start.String(), p.Period.End.String(),
			p.DaysWorked.InexactFloat64(), p.HoursWorked.InexactFloat64(), p.BillableHours.InexactFloat64(),
			p.GrossSalary.InexactFloat64(), p.Bonus.InexactFloat64(), p.Deduction.InexactFloat64(),
			p.NetSalary.InexactFloat64(), p.AverageHourlyRate.InexactFloat64(),
			string(p.Status), p.Reviewed, p.SkippedCount, p.Info,
		}
		if err := writeRow(f, registerSheet, row, values); err != nil {
			return err
		}
		row++
		gross = gross.Add(p.GrossSalary)
		net = net.Add(p.NetSalary)

		for _, sk := range p.SkippedDetail {
			date := ""
			if sk.Date != nil {
				date = sk.Date.String()
			}
			if err := writeRow(f, skippedSheet, skipRow, []interface{}{
				string(p.ID), int64(p.WorkerID), sk.RecordID, string(sk.AssignmentID), date, string(sk.Reason), sk.Detail,
			}); err != nil {
				return err
			}
			skipRow++
		}
	}

	totals := make([]interface{}, len(registerColumns))
	totals[0] = "TOTAL"
	totals[9] = gross.InexactFloat64()
	totals[12] = net.InexactFloat64()
	if err := writeRow(f, registerSheet, row, totals); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write register: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, columns []string) error {
	values := make([]interface{}, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	if err := writeRow(f, sheet, 1, values); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil
	}
	end, _ := excelize.CoordinatesToCellName(len(columns), 1)
	_ = f.SetCellStyle(sheet, "A1", end, style)
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for i, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
