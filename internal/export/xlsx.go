package export

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"happydash/internal/engine"
	"happydash/internal/models"
)

const (
	SheetRecords     = "Records"
	SheetTop         = "Top"
	SheetTrend       = "Trend"
	SheetCorrelation = "Correlation"
)

// Workbook writes the year's view and its derivations as an XLSX workbook.
func Workbook(w io.Writer, view engine.View, d *models.DashboardData) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetRecords); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetTop, SheetTrend, SheetCorrelation} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	steps := []func(*excelize.File) error{
		func(f *excelize.File) error { return writeRecords(f, view) },
		func(f *excelize.File) error { return writeTop(f, d.TopN) },
		func(f *excelize.File) error { return writeTrend(f, d.Trend) },
		func(f *excelize.File) error { return writeCorrelation(f, d.Correlation) },
	}
	for _, step := range steps {
		if err := step(f); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRecords(f *excelize.File, view engine.View) error {
	header := []any{
		engine.ColCountry, engine.ColYear, engine.ColScore, engine.ColGDP,
		engine.ColSocial, engine.ColHealth, engine.ColFreedom, engine.ColCorruption,
	}
	if err := setRow(f, SheetRecords, 1, header); err != nil {
		return err
	}
	for i, r := range view.Records() {
		row := []any{r.Country, r.Year, r.Score, cell(r.GDP), cell(r.Social), cell(r.Health), cell(r.Freedom), cell(r.Corruption)}
		if err := setRow(f, SheetRecords, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeTop(f *excelize.File, top []models.TopItem) error {
	if err := setRow(f, SheetTop, 1, []any{"Rank", engine.ColCountry, engine.ColScore}); err != nil {
		return err
	}
	for i, it := range top {
		if err := setRow(f, SheetTop, i+2, []any{it.Rank, it.Country, it.Score}); err != nil {
			return err
		}
	}
	return nil
}

func writeTrend(f *excelize.File, trend []models.TrendPoint) error {
	if err := setRow(f, SheetTrend, 1, []any{engine.ColYear, "Average Happiness Score", "Countries"}); err != nil {
		return err
	}
	for i, p := range trend {
		if err := setRow(f, SheetTrend, i+2, []any{p.Year, p.MeanScore, p.Countries}); err != nil {
			return err
		}
	}
	return nil
}

// writeCorrelation leaves undefined cells blank.
func writeCorrelation(f *excelize.File, m models.CorrelationMatrix) error {
	header := make([]any, 0, len(m.Columns)+1)
	header = append(header, "")
	for _, c := range m.Columns {
		header = append(header, c)
	}
	if err := setRow(f, SheetCorrelation, 1, header); err != nil {
		return err
	}
	for i, name := range m.Columns {
		row := make([]any, 0, len(m.Columns)+1)
		row = append(row, name)
		for _, v := range m.Cells[i] {
			if v == nil {
				row = append(row, nil)
				continue
			}
			row = append(row, *v)
		}
		if err := setRow(f, SheetCorrelation, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	axis, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, axis, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// cell keeps missing factors out of the sheet instead of writing NaN.
func cell(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
