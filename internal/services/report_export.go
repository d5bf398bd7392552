package services

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// WriteDailyReportXLSX renders a daily report as a two-sheet workbook.
func WriteDailyReportXLSX(w io.Writer, r *DailyReport) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	const channels = "Channels"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return err
	}
	if _, err := f.NewSheet(channels); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Day", r.Day.Format("2006-01-02")},
		{"New users", r.NewUsers},
		{"Deposits", r.Deposits.Count, r.Deposits.Amount},
		{"Withdrawals", r.Withdrawals.Count, r.Withdrawals.Amount},
		{"Pending", r.Pending},
		{},
		{"Kind", "Count", "Amount"},
	}
	for _, k := range r.ByKind {
		rows = append(rows, []interface{}{k.Kind, k.Count, k.Amount})
	}
	if err := writeRows(f, summary, rows); err != nil {
		return err
	}

	channelRows := [][]interface{}{{"ID", "Number", "Capacity", "Filled", "Fill %", "Active"}}
	for _, ch := range r.Channels {
		channelRows = append(channelRows, []interface{}{
			ch.ID, ch.Number, ch.Capacity, ch.Filled, fmt.Sprintf("%.1f", ch.FillPercent()), ch.Active,
		})
	}
	if err := writeRows(f, channels, channelRows); err != nil {
		return err
	}

	_, err := f.WriteTo(w)
	return err
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
