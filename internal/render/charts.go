package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"happydash/internal/models"
)

// Chart names accepted by Chart.
const (
	ChartTrend     = "trend"
	ChartTop       = "top"
	ChartScatter   = "scatter"
	ChartHistogram = "histogram"
	ChartHeatmap   = "heatmap"
)

var Charts = []string{ChartTrend, ChartTop, ChartScatter, ChartHistogram, ChartHeatmap}

var ErrUnknownChart = errors.New("unknown chart")

var (
	blue   = color.RGBA{R: 0x2E, G: 0x86, B: 0xC1, A: 0xFF}
	green  = color.RGBA{R: 0x28, G: 0xB4, B: 0x63, A: 0xFF}
	orange = color.RGBA{R: 0xF5, G: 0xB0, B: 0x41, A: 0xFF}
	grey   = color.Gray{Y: 0xC8}
)

// Chart renders one of the five dashboard charts for d as PNG.
func Chart(name string, d *models.DashboardData, w io.Writer) error {
	switch name {
	case ChartTrend:
		return Trend(d.Trend, w)
	case ChartTop:
		return TopN(d.TopN, d.Year, w)
	case ChartScatter:
		return Scatter(d.Scatter, d.Year, w)
	case ChartHistogram:
		return Histogram(d.Histogram, d.Year, w)
	case ChartHeatmap:
		return Heatmap(d.Correlation, d.Year, w)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChart, name)
	}
}

// Trend draws the per-year mean score as a line with markers.
func Trend(points []models.TrendPoint, w io.Writer) error {
	const title = "Global Happiness Trend"
	if len(points) == 0 {
		return save(noData(title), 10, 4, w)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Average Happiness Score"
	p.X.Tick.Marker = yearTicks{}

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = float64(pt.Year)
		xys[i].Y = pt.MeanScore
	}
	line, marks, err := plotter.NewLinePoints(xys)
	if err != nil {
		return fmt.Errorf("trend line: %w", err)
	}
	line.Color = blue
	line.Width = vg.Points(2)
	marks.GlyphStyle.Shape = draw.CircleGlyph{}
	marks.GlyphStyle.Color = blue
	marks.GlyphStyle.Radius = vg.Points(4)

	p.Add(plotter.NewGrid(), line, marks)
	return save(p, 10, 4, w)
}

// TopN draws horizontal bars with rank 1 at the top.
func TopN(items []models.TopItem, year int, w io.Writer) error {
	title := fmt.Sprintf("Top %d Happiest Countries (%d)", len(items), year)
	if len(items) == 0 {
		return save(noData(title), 6, 4, w)
	}

	n := len(items)
	values := make(plotter.Values, n)
	names := make([]string, n)
	for i, it := range items {
		// Bar 0 sits at the bottom of the axis.
		values[n-1-i] = it.Score
		names[n-1-i] = it.Country
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Happiness Score"

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return fmt.Errorf("top bars: %w", err)
	}
	bars.Horizontal = true
	bars.Color = green
	bars.LineStyle.Width = vg.Length(0)

	p.Add(plotter.NewGrid(), bars)
	p.NominalY(names...)
	return save(p, 6, 4, w)
}

// Scatter plots GDP per capita against happiness score.
func Scatter(points []models.ScatterPoint, year int, w io.Writer) error {
	title := fmt.Sprintf("GDP per Capita vs Happiness (%d)", year)
	if len(points) == 0 {
		return save(noData(title), 8, 5, w)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "GDP per Capita"
	p.Y.Label.Text = "Happiness Score"

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = pt.GDP
		xys[i].Y = pt.Score
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("scatter: %w", err)
	}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Color = blue
	s.GlyphStyle.Radius = vg.Points(3)

	p.Add(plotter.NewGrid(), s)
	return save(p, 8, 5, w)
}

// Histogram draws precomputed bins of the score distribution.
func Histogram(bins []models.HistogramBin, year int, w io.Writer) error {
	title := fmt.Sprintf("Happiness Score Distribution (%d)", year)
	if len(bins) == 0 {
		return save(noData(title), 6, 4, w)
	}

	h := &plotter.Histogram{
		Bins:      make([]plotter.HistogramBin, len(bins)),
		Width:     bins[0].Max - bins[0].Min,
		FillColor: orange,
		LineStyle: plotter.DefaultLineStyle,
	}
	for i, b := range bins {
		h.Bins[i] = plotter.HistogramBin{Min: b.Min, Max: b.Max, Weight: float64(b.Count)}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Happiness Score"
	p.Y.Label.Text = "Number of Countries"
	p.Add(plotter.NewGrid(), h)
	return save(p, 6, 4, w)
}

// Heatmap draws the correlation matrix with every cell annotated; undefined
// cells are grey and labelled "n/a".
func Heatmap(m models.CorrelationMatrix, year int, w io.Writer) error {
	title := fmt.Sprintf("Correlation Between Happiness Factors (%d)", year)
	n := len(m.Columns)
	if n == 0 {
		return save(noData(title), 8, 5, w)
	}

	cm := moreland.SmoothBlueRed()
	cm.SetMin(-1)
	cm.SetMax(1)

	g := corrGrid{m: m}
	hm := plotter.NewHeatMap(g, cm.Palette(255))
	hm.Min, hm.Max = -1, 1
	hm.NaN = grey

	xys := make(plotter.XYs, 0, n*n)
	labels := make([]string, 0, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			xys = append(xys, plotter.XY{X: g.X(c), Y: g.Y(r)})
			if z := g.Z(c, r); math.IsNaN(z) {
				labels = append(labels, "n/a")
			} else {
				labels = append(labels, strconv.FormatFloat(z, 'f', 2, 64))
			}
		}
	}
	annot, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return fmt.Errorf("heatmap labels: %w", err)
	}
	for i := range annot.TextStyle {
		annot.TextStyle[i].XAlign = draw.XCenter
		annot.TextStyle[i].YAlign = draw.YCenter
	}

	p := plot.New()
	p.Title.Text = title
	p.Add(hm, annot)

	xNames := make([]string, n)
	yNames := make([]string, n)
	for i, col := range m.Columns {
		xNames[i] = col
		yNames[n-1-i] = col
	}
	p.NominalX(xNames...)
	p.NominalY(yNames...)
	p.X.Tick.Label.Rotation = math.Pi / 6
	p.X.Tick.Label.XAlign = draw.XRight
	return save(p, 8, 5, w)
}

// corrGrid adapts a CorrelationMatrix to plotter.GridXYZ. Grid rows grow
// upwards, so matrix row 0 maps to the last grid row and is drawn on top.
type corrGrid struct {
	m models.CorrelationMatrix
}

func (g corrGrid) Dims() (c, r int) { return len(g.m.Columns), len(g.m.Columns) }

func (g corrGrid) Z(c, r int) float64 {
	if cell := g.m.Cells[len(g.m.Columns)-1-r][c]; cell != nil {
		return *cell
	}
	return math.NaN()
}

// Min and Max pin the colour scale to the full coefficient range.
func (g corrGrid) Min() float64 { return -1 }
func (g corrGrid) Max() float64 { return 1 }

func (g corrGrid) X(c int) float64 { return float64(c) }

func (g corrGrid) Y(r int) float64 { return float64(r) }

// yearTicks labels whole years only.
type yearTicks struct{}

func (yearTicks) Ticks(lo, hi float64) []plot.Tick {
	var ticks []plot.Tick
	for y := math.Ceil(lo); y <= hi; y++ {
		ticks = append(ticks, plot.Tick{Value: y, Label: strconv.Itoa(int(y))})
	}
	return ticks
}

func noData(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.HideAxes()

	msg, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    []plotter.XY{{X: 0.5, Y: 0.5}},
		Labels: []string{"No data available"},
	})
	if err == nil {
		msg.TextStyle[0].XAlign = draw.XCenter
		msg.TextStyle[0].YAlign = draw.YCenter
		p.Add(msg)
	}
	return p
}

func save(p *plot.Plot, wInch, hInch float64, w io.Writer) error {
	wt, err := p.WriterTo(vg.Length(wInch)*vg.Inch, vg.Length(hInch)*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}
