package engine

import (
	"math"

	"happydash/internal/models"
)

// View is the subsequence of a Dataset for one year, as row indices in
// dataset order. It is cheap to build and never mutated.
type View struct {
	ds   *Dataset
	Year int
	Rows []int
}

// Filter scans the dataset once and keeps the rows whose year equals year.
func Filter(ds *Dataset, year int) View {
	if year < math.MinInt32 || year > math.MaxInt32 {
		return View{ds: ds, Year: year, Rows: []int{}}
	}
	y := int32(year)
	rows := make([]int, 0, 256)
	for i, v := range ds.Years {
		if v == y {
			rows = append(rows, i)
		}
	}
	return View{ds: ds, Year: year, Rows: rows}
}

func (v View) Len() int { return len(v.Rows) }

func (v View) Empty() bool { return len(v.Rows) == 0 }

func (v View) Record(k int) models.Record { return v.ds.Row(v.Rows[k]) }

func (v View) Records() []models.Record {
	out := make([]models.Record, len(v.Rows))
	for k, i := range v.Rows {
		out[k] = v.ds.Row(i)
	}
	return out
}

// column gathers one numeric column over the view.
func (v View) column(col []float64) []float64 {
	out := make([]float64, len(v.Rows))
	for k, i := range v.Rows {
		out[k] = col[i]
	}
	return out
}

func (v View) Scores() []float64 { return v.column(v.ds.Scores) }
