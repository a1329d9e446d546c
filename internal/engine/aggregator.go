package engine

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/stat"

	"happydash/internal/models"
)

const (
	DefaultTopN = 10
	DefaultBins = 20
)

// CorrelationColumns are the numeric columns of the correlation heatmap, in order.
var CorrelationColumns = []string{ColScore, ColGDP, ColSocial, ColHealth, ColFreedom, ColCorruption}

type number interface {
	constraints.Integer | constraints.Float
}

func mean[T number](xs []T) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	n := float64(len(xs))
	var sum float64
	for _, x := range xs {
		sum += float64(x)
	}
	if !math.IsInf(sum, 0) {
		return sum / n, true
	}
	// Scores near the float64 limits overflow the total; sum x/n instead.
	var m float64
	for _, x := range xs {
		m += float64(x) / n
	}
	return m, true
}

// --- HEADLINE METRICS ---

func MeanHappiness(v View) (float64, error) {
	m, ok := mean(v.Scores())
	if !ok {
		return 0, fmt.Errorf("mean happiness for %d: %w", v.Year, ErrNoData)
	}
	return m, nil
}

// HappiestCountry returns the highest scoring record; ties go to the first
// occurrence in dataset order.
func HappiestCountry(v View) (models.Record, error) {
	if v.Empty() {
		return models.Record{}, fmt.Errorf("happiest country for %d: %w", v.Year, ErrNoData)
	}
	best := v.Rows[0]
	for _, i := range v.Rows[1:] {
		if v.ds.Scores[i] > v.ds.Scores[best] {
			best = i
		}
	}
	return v.ds.Row(best), nil
}

func DistinctCountries(v View) int {
	seen := make(map[int32]struct{}, v.Len())
	for _, i := range v.Rows {
		seen[v.ds.CountryIDs[i]] = struct{}{}
	}
	return len(seen)
}

// --- RANKINGS & SERIES ---

// TopN sorts the view by score, descending and stable, and keeps at most n rows.
func TopN(v View, n int) []models.Record {
	rows := slices.Clone(v.Rows)
	sort.SliceStable(rows, func(a, b int) bool {
		return v.ds.Scores[rows[a]] > v.ds.Scores[rows[b]]
	})
	if n >= 0 && len(rows) > n {
		rows = rows[:n]
	}
	out := make([]models.Record, len(rows))
	for k, i := range rows {
		out[k] = v.ds.Row(i)
	}
	return out
}

// YearlyTrend averages the score per year over the whole dataset, ascending by
// year. It ignores any year selection.
func YearlyTrend(ds *Dataset) []models.TrendPoint {
	type acc struct {
		scores []float64
	}
	byYear := make(map[int32]*acc)
	for i, y := range ds.Years {
		a, ok := byYear[y]
		if !ok {
			a = &acc{}
			byYear[y] = a
		}
		a.scores = append(a.scores, ds.Scores[i])
	}

	out := make([]models.TrendPoint, 0, len(byYear))
	for y, a := range byYear {
		m, _ := mean(a.scores)
		out = append(out, models.TrendPoint{Year: int(y), MeanScore: m, Countries: len(a.scores)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

func Scatter(v View) []models.ScatterPoint {
	out := make([]models.ScatterPoint, 0, v.Len())
	for _, i := range v.Rows {
		if math.IsNaN(v.ds.GDP[i]) {
			continue
		}
		out = append(out, models.ScatterPoint{Country: v.ds.Country(i), GDP: v.ds.GDP[i], Score: v.ds.Scores[i]})
	}
	return out
}

// Histogram splits [min, max] of the view's scores into equal-width bins; the
// last bin is closed on the right. A constant view is centred in a unit-wide range.
// A range too wide (or too narrow) for float64 bins yields no bins.
func Histogram(v View, bins int) []models.HistogramBin {
	if v.Empty() || bins <= 0 {
		return nil
	}
	scores := v.Scores()
	lo, hi := slices.Min(scores), slices.Max(scores)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / float64(bins)
	if !(width > 0) || math.IsInf(width, 0) {
		return nil
	}

	out := make([]models.HistogramBin, bins)
	for b := range out {
		out[b].Min = lo + float64(b)*width
		out[b].Max = lo + float64(b+1)*width
	}
	out[bins-1].Max = hi

	for _, s := range scores {
		b := min(max(int((s-lo)/width), 0), bins-1)
		out[b].Count++
	}
	return out
}

// --- CORRELATION ---

// Correlation computes pairwise Pearson coefficients over CorrelationColumns
// using pairwise-complete rows. Cells with fewer than two pairs or a
// zero-variance side stay nil.
func Correlation(v View) models.CorrelationMatrix {
	cols := [][]float64{
		v.column(v.ds.Scores),
		v.column(v.ds.GDP),
		v.column(v.ds.Social),
		v.column(v.ds.Health),
		v.column(v.ds.Freedom),
		v.column(v.ds.Corruption),
	}
	n := len(cols)
	m := models.CorrelationMatrix{
		Columns: slices.Clone(CorrelationColumns),
		Cells:   make([][]*float64, n),
	}
	for i := range m.Cells {
		m.Cells[i] = make([]*float64, n)
	}

	if v.Len() < 2 {
		m.Warnings = append(m.Warnings, fmt.Sprintf("correlation needs at least 2 rows, year %d has %d", v.Year, v.Len()))
		return m
	}
	for i, c := range cols {
		if constant(c) {
			m.Warnings = append(m.Warnings, fmt.Sprintf("zero variance in %q", CorrelationColumns[i]))
		}
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			r, ok := pearson(cols[i], cols[j])
			if !ok {
				continue
			}
			if i == j {
				r = 1
			}
			m.Cells[i][j] = &r
			m.Cells[j][i] = &r
		}
	}
	return m
}

func pearson(x, y []float64) (float64, bool) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for k := range x {
		if math.IsNaN(x[k]) || math.IsNaN(y[k]) {
			continue
		}
		xs = append(xs, x[k])
		ys = append(ys, y[k])
	}
	if len(xs) < 2 || constant(xs) || constant(ys) {
		return 0, false
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, r)), true
}

// constant reports whether the non-NaN values of xs are all equal (or absent).
func constant(xs []float64) bool {
	first := math.NaN()
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		if math.IsNaN(first) {
			first = x
			continue
		}
		if x != first {
			return false
		}
	}
	return true
}

// --- DASHBOARD ---

type Options struct {
	TopN int
	Bins int
}

func (o Options) withDefaults() Options {
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.Bins <= 0 {
		o.Bins = DefaultBins
	}
	return o
}

// Build derives every data product for one year. Each derivation is
// independent: an empty view or a degenerate correlation only marks its own section.
func Build(ds *Dataset, year int, opts Options) *models.DashboardData {
	opts = opts.withDefaults()
	v := Filter(ds, year)
	return &models.DashboardData{
		Year:        year,
		Headline:    Summarize(v),
		Trend:       YearlyTrend(ds),
		TopN:        TopItems(v, opts.TopN),
		Scatter:     Scatter(v),
		Histogram:   Histogram(v, opts.Bins),
		Correlation: Correlation(v),
	}
}

// Summarize fills the three headline widgets, leaving undefined ones nil.
func Summarize(v View) models.Headline {
	h := models.Headline{CountryCount: DistinctCountries(v), NoData: v.Empty()}
	if m, err := MeanHappiness(v); err == nil {
		h.MeanScore = &m
	}
	if r, err := HappiestCountry(v); err == nil {
		h.HappiestCountry = &r.Country
	}
	return h
}

func TopItems(v View, n int) []models.TopItem {
	recs := TopN(v, n)
	out := make([]models.TopItem, len(recs))
	for k, r := range recs {
		out[k] = models.TopItem{Rank: k + 1, Country: r.Country, Score: r.Score}
	}
	return out
}
