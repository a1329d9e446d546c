package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// row is a compact fixture line: country, year, score, gdp and the four factors.
type row struct {
	country string
	year    int32
	score   float64
	factors [5]float64
}

func newDataset(rows ...row) *Dataset {
	ds := &Dataset{}
	ids := map[string]int32{}
	for _, r := range rows {
		id, ok := ids[r.country]
		if !ok {
			id = int32(len(ds.CountryDict))
			ids[r.country] = id
			ds.CountryDict = append(ds.CountryDict, r.country)
		}
		ds.CountryIDs = append(ds.CountryIDs, id)
		ds.Years = append(ds.Years, r.year)
		ds.Scores = append(ds.Scores, r.score)
		ds.GDP = append(ds.GDP, r.factors[0])
		ds.Social = append(ds.Social, r.factors[1])
		ds.Health = append(ds.Health, r.factors[2])
		ds.Freedom = append(ds.Freedom, r.factors[3])
		ds.Corruption = append(ds.Corruption, r.factors[4])
	}
	return ds
}

// multiYear spans 2015-2019 with uneven country counts per year.
func multiYear() *Dataset {
	var rows []row
	for y := int32(2015); y <= 2019; y++ {
		for c := 0; c < int(y-2015)*4+3; c++ {
			s := 3 + math.Mod(float64(c)*1.37+float64(y), 6)
			rows = append(rows, row{
				country: fmt.Sprintf("C%02d", c),
				year:    y,
				score:   s,
				factors: [5]float64{s / 5, 1 + float64(c%3)/10, 0.5 + s/20, float64(c%4) / 8, 0.1 * float64(c%5)},
			})
		}
	}
	return newDataset(rows...)
}

func TestConcreteExample(t *testing.T) {
	ds := newDataset(
		row{"A", 2018, 6.0, [5]float64{1.0, 1.1, 0.8, 0.5, 0.1}},
		row{"B", 2018, 7.0, [5]float64{1.2, 1.3, 0.9, 0.6, 0.3}},
	)
	v := Filter(ds, 2018)
	require.Equal(t, 2, v.Len())

	m, err := MeanHappiness(v)
	require.NoError(t, err)
	assert.InDelta(t, 6.5, m, 1e-12)

	best, err := HappiestCountry(v)
	require.NoError(t, err)
	assert.Equal(t, "B", best.Country)

	top := TopN(v, DefaultTopN)
	require.Len(t, top, 2)
	assert.Equal(t, "B", top[0].Country)
	assert.Equal(t, "A", top[1].Country)

	assert.Equal(t, 2, DistinctCountries(v))
}

func TestFilterCorrectness(t *testing.T) {
	ds := multiYear()
	lo, hi := ds.YearRange()
	for y := lo; y <= hi; y++ {
		v := Filter(ds, y)
		want := 0
		for _, dy := range ds.Years {
			if int(dy) == y {
				want++
			}
		}
		assert.Equal(t, want, v.Len(), "year %d", y)
		for _, r := range v.Records() {
			assert.Equal(t, y, r.Year)
		}
		assert.True(t, sort.IntsAreSorted(v.Rows), "view keeps dataset order")
	}
}

func TestTopNBound(t *testing.T) {
	ds := multiYear()
	for _, y := range ds.ObservedYears() {
		v := Filter(ds, y)
		top := TopN(v, 10)
		assert.Len(t, top, min(10, v.Len()), "year %d", y)
		assert.True(t, sort.SliceIsSorted(top, func(i, j int) bool { return top[i].Score > top[j].Score }))
	}
}

func TestTopNStableTies(t *testing.T) {
	ds := newDataset(
		row{country: "X", year: 2019, score: 5},
		row{country: "Y", year: 2019, score: 7},
		row{country: "Z", year: 2019, score: 7},
	)
	top := TopN(Filter(ds, 2019), 10)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"Y", "Z", "X"}, []string{top[0].Country, top[1].Country, top[2].Country})

	best, err := HappiestCountry(Filter(ds, 2019))
	require.NoError(t, err)
	assert.Equal(t, "Y", best.Country)
}

func TestMeanBounds(t *testing.T) {
	ds := multiYear()
	for _, y := range ds.ObservedYears() {
		v := Filter(ds, y)
		m, err := MeanHappiness(v)
		require.NoError(t, err)
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, s := range v.Scores() {
			lo, hi = math.Min(lo, s), math.Max(hi, s)
		}
		assert.GreaterOrEqual(t, m, lo)
		assert.LessOrEqual(t, m, hi)
	}
}

func TestTrendIgnoresSelection(t *testing.T) {
	ds := multiYear()
	first := Build(ds, 2015, Options{}).Trend
	for _, y := range ds.ObservedYears() {
		assert.Equal(t, first, Build(ds, y, Options{}).Trend)
	}

	require.Len(t, first, 5)
	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].Year, first[i].Year)
	}
	assert.Equal(t, 3, first[0].Countries)
}

func TestYearlyTrendMeans(t *testing.T) {
	ds := newDataset(
		row{country: "A", year: 2016, score: 4},
		row{country: "A", year: 2015, score: 6},
		row{country: "B", year: 2016, score: 6},
	)
	trend := YearlyTrend(ds)
	require.Len(t, trend, 2)
	assert.Equal(t, 2015, trend[0].Year)
	assert.InDelta(t, 6.0, trend[0].MeanScore, 1e-12)
	assert.Equal(t, 2016, trend[1].Year)
	assert.InDelta(t, 5.0, trend[1].MeanScore, 1e-12)
}

func TestEmptyYearDefense(t *testing.T) {
	ds := newDataset(
		row{country: "A", year: 2015, score: 5},
		row{country: "B", year: 2017, score: 6},
	)
	require.NoError(t, ValidateYear(ds, 2016))

	v := Filter(ds, 2016)
	assert.True(t, v.Empty())

	_, err := MeanHappiness(v)
	assert.True(t, errors.Is(err, ErrNoData))

	_, err = HappiestCountry(v)
	assert.True(t, errors.Is(err, ErrNoData))

	d := Build(ds, 2016, Options{})
	assert.True(t, d.Headline.NoData)
	assert.Nil(t, d.Headline.MeanScore)
	assert.Nil(t, d.Headline.HappiestCountry)
	assert.Zero(t, d.Headline.CountryCount)
	assert.Empty(t, d.TopN)
	assert.Empty(t, d.Histogram)
	assert.Len(t, d.Trend, 2)
	assert.NotEmpty(t, d.Correlation.Warnings)
}

func TestValidateYear(t *testing.T) {
	ds := multiYear()
	assert.NoError(t, ValidateYear(ds, 2019))
	assert.ErrorIs(t, ValidateYear(ds, 2014), ErrYearOutOfRange)
	assert.ErrorIs(t, ValidateYear(ds, 2020), ErrYearOutOfRange)

	sel := ds.YearSelection()
	assert.Equal(t, 2015, sel.Min)
	assert.Equal(t, 2019, sel.Max)
	assert.Equal(t, 2019, sel.Default)
}

func TestCorrelationSymmetry(t *testing.T) {
	ds := multiYear()
	for _, y := range ds.ObservedYears() {
		m := Correlation(Filter(ds, y))
		require.Len(t, m.Cells, len(CorrelationColumns))
		for i := range m.Cells {
			if d := m.Cells[i][i]; d != nil {
				assert.InDelta(t, 1.0, *d, 1e-9)
			}
			for j := range m.Cells {
				a, b := m.Cells[i][j], m.Cells[j][i]
				if a == nil || b == nil {
					assert.Nil(t, a)
					assert.Nil(t, b)
					continue
				}
				assert.Equal(t, *a, *b)
				assert.LessOrEqual(t, math.Abs(*a), 1.0)
			}
		}
	}
}

func TestCorrelationDegenerate(t *testing.T) {
	one := newDataset(row{"A", 2018, 6.0, [5]float64{1, 1, 1, 1, 1}})
	m := Correlation(Filter(one, 2018))
	for i := range m.Cells {
		for j := range m.Cells[i] {
			assert.Nil(t, m.Cells[i][j])
		}
	}
	assert.NotEmpty(t, m.Warnings)

	// Social support is constant: its row and column are undefined, the rest is not.
	flat := newDataset(
		row{"A", 2018, 6.0, [5]float64{1.0, 1.0, 0.8, 0.5, 0.1}},
		row{"B", 2018, 7.0, [5]float64{1.2, 1.0, 0.9, 0.6, 0.3}},
		row{"C", 2018, 5.0, [5]float64{0.7, 1.0, 0.6, 0.2, 0.2}},
	)
	m = Correlation(Filter(flat, 2018))
	social := 2
	for k := range m.Cells {
		assert.Nil(t, m.Cells[social][k])
		assert.Nil(t, m.Cells[k][social])
	}
	require.NotNil(t, m.Cells[0][1])
	assert.Greater(t, *m.Cells[0][1], 0.9)
	assert.Contains(t, m.Warnings[0], ColSocial)
}

func TestCorrelationSkipsMissingPairs(t *testing.T) {
	ds := newDataset(
		row{"A", 2018, 6.0, [5]float64{1.0, 1.1, 0.8, 0.5, math.NaN()}},
		row{"B", 2018, 7.0, [5]float64{1.2, 1.3, 0.9, 0.6, 0.3}},
		row{"C", 2018, 5.0, [5]float64{0.8, 1.0, 0.6, 0.2, 0.1}},
	)
	m := Correlation(Filter(ds, 2018))
	corr := 5
	require.NotNil(t, m.Cells[0][corr])
	assert.InDelta(t, 1.0, *m.Cells[0][corr], 1e-9)
	require.NotNil(t, m.Cells[corr][corr])
}

func TestHistogram(t *testing.T) {
	ds := newDataset(
		row{country: "A", year: 2019, score: 2},
		row{country: "B", year: 2019, score: 4},
		row{country: "C", year: 2019, score: 4},
		row{country: "D", year: 2019, score: 12},
	)
	bins := Histogram(Filter(ds, 2019), 5)
	require.Len(t, bins, 5)
	assert.Equal(t, 2.0, bins[0].Min)
	assert.Equal(t, 12.0, bins[4].Max)
	assert.Equal(t, []int{1, 2, 0, 0, 1}, []int{bins[0].Count, bins[1].Count, bins[2].Count, bins[3].Count, bins[4].Count})

	total := 0
	for _, b := range Histogram(Filter(multiYear(), 2019), DefaultBins) {
		total += b.Count
	}
	assert.Equal(t, Filter(multiYear(), 2019).Len(), total)
}

func TestHistogramConstant(t *testing.T) {
	ds := newDataset(row{country: "A", year: 2019, score: 5}, row{country: "B", year: 2019, score: 5})
	bins := Histogram(Filter(ds, 2019), DefaultBins)
	require.Len(t, bins, DefaultBins)
	assert.Equal(t, 4.5, bins[0].Min)
	assert.Equal(t, 5.5, bins[DefaultBins-1].Max)

	filled := 0
	for _, b := range bins {
		if b.Count > 0 {
			filled++
			assert.Equal(t, 2, b.Count)
		}
	}
	assert.Equal(t, 1, filled)
}

func TestHistogramExtremeRange(t *testing.T) {
	wide := newDataset(row{country: "A", year: 2019, score: -1e308}, row{country: "B", year: 2019, score: 1e308})
	assert.Empty(t, Histogram(Filter(wide, 2019), DefaultBins))

	flat := newDataset(row{country: "A", year: 2019, score: 1e308}, row{country: "B", year: 2019, score: 1e308})
	assert.Empty(t, Histogram(Filter(flat, 2019), DefaultBins))

	big := newDataset(row{country: "A", year: 2019, score: 0}, row{country: "B", year: 2019, score: 1e300})
	bins := Histogram(Filter(big, 2019), 4)
	require.Len(t, bins, 4)
	assert.Equal(t, 1, bins[0].Count)
	assert.Equal(t, 1, bins[3].Count)
}

func TestMeanDoesNotOverflow(t *testing.T) {
	ds := newDataset(row{country: "A", year: 2019, score: 1e308}, row{country: "B", year: 2019, score: 1e308})
	m, err := MeanHappiness(Filter(ds, 2019))
	require.NoError(t, err)
	assert.InEpsilon(t, 1e308, m, 1e-12)
}

func TestScatterSkipsMissingGDP(t *testing.T) {
	ds := newDataset(
		row{"A", 2018, 6.0, [5]float64{math.NaN()}},
		row{"B", 2018, 7.0, [5]float64{1.2}},
	)
	pts := Scatter(Filter(ds, 2018))
	require.Len(t, pts, 1)
	assert.Equal(t, "B", pts[0].Country)
}

func TestBuild(t *testing.T) {
	ds := multiYear()
	d := Build(ds, 2019, Options{TopN: 3, Bins: 4})

	assert.Equal(t, 2019, d.Year)
	assert.False(t, d.Headline.NoData)
	require.NotNil(t, d.Headline.MeanScore)
	require.NotNil(t, d.Headline.HappiestCountry)
	assert.Equal(t, Filter(ds, 2019).Len(), d.Headline.CountryCount)
	require.Len(t, d.TopN, 3)
	assert.Equal(t, 1, d.TopN[0].Rank)
	assert.Equal(t, *d.Headline.HappiestCountry, d.TopN[0].Country)
	assert.Len(t, d.Histogram, 4)
	assert.Len(t, d.Scatter, d.Headline.CountryCount)
}
