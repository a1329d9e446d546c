package render

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"happydash/internal/models"
)

func ptr[T any](v T) *T { return &v }

func sampleDashboard() *models.DashboardData {
	one := 1.0
	cells := make([][]*float64, 6)
	for i := range cells {
		cells[i] = make([]*float64, 6)
		cells[i][i] = &one
	}
	cells[0][1], cells[1][0] = ptr(0.8), ptr(0.8)

	return &models.DashboardData{
		Year: 2019,
		Trend: []models.TrendPoint{
			{Year: 2015, MeanScore: 5.37}, {Year: 2016, MeanScore: 5.38}, {Year: 2017, MeanScore: 5.35},
		},
		TopN: []models.TopItem{
			{Rank: 1, Country: "Finland", Score: 7.769},
			{Rank: 2, Country: "Denmark", Score: 7.6},
		},
		Scatter: []models.ScatterPoint{
			{Country: "Finland", GDP: 1.34, Score: 7.769},
			{Country: "Denmark", GDP: 1.383, Score: 7.6},
		},
		Histogram: []models.HistogramBin{{Min: 7.6, Max: 7.68, Count: 1}, {Min: 7.68, Max: 7.769, Count: 1}},
		Correlation: models.CorrelationMatrix{
			Columns: []string{"Happiness Score", "GDP per capita", "Social support", "Healthy life expectancy", "Freedom", "Perceptions of corruption"},
			Cells:   cells,
		},
	}
}

func TestChartsArePNG(t *testing.T) {
	d := sampleDashboard()
	for _, name := range Charts {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Chart(name, d, &buf))
			_, err := png.Decode(&buf)
			require.NoError(t, err)
		})
	}
}

func TestChartsRenderEmptyViews(t *testing.T) {
	d := &models.DashboardData{Year: 2016}
	for _, name := range Charts {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Chart(name, d, &buf))
			assert.NotZero(t, buf.Len())
		})
	}
}

func TestUnknownChart(t *testing.T) {
	err := Chart("pie", sampleDashboard(), &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrUnknownChart)
}

func TestPage(t *testing.T) {
	var buf bytes.Buffer
	err := Page(&buf, PageData{
		Title:      "World Happiness Dashboard",
		DataSource: "World Happiness Report",
		Year:       2019,
		Range:      models.YearRange{Min: 2015, Max: 2019, Default: 2019},
		Headline: models.Headline{
			MeanScore:       ptr(5.4071),
			HappiestCountry: ptr("Côte <d'Ivoire>"),
			CountryCount:    156,
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `min="2015" max="2019" step="1" value="2019"`)
	assert.Contains(t, out, ">5.41<")
	assert.Contains(t, out, "Côte &lt;d&#39;Ivoire&gt;")
	assert.Contains(t, out, ">156<")
	assert.Equal(t, len(Charts), strings.Count(out, "<img "))
	assert.Contains(t, out, "/api/charts/heatmap?year=2019")
}

func TestPageNoData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Page(&buf, PageData{
		Year:     2016,
		Range:    models.YearRange{Min: 2015, Max: 2017},
		Headline: models.Headline{NoData: true},
	}))
	assert.Equal(t, 2, strings.Count(buf.String(), noDataText))
	assert.Contains(t, buf.String(), ">0<")
}
