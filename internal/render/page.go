package render

import (
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"

	"happydash/internal/models"
)

const noDataText = "No data available"

type PageData struct {
	Title      string
	DataSource string
	Year       int
	Range      models.YearRange
	Headline   models.Headline
}

var pageTemplate = fasttemplate.New(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{title}}</title>
<style>
body{font-family:sans-serif;margin:2rem;color:#222}
.kpis{display:flex;gap:2rem;margin:1rem 0}
.kpi{border:1px solid #ddd;border-radius:6px;padding:1rem;min-width:12rem}
.kpi .label{font-size:.85rem;color:#666}
.kpi .value{font-size:1.6rem}
.charts img{max-width:100%;margin:1rem 0;display:block}
</style>
</head>
<body>
<h1>{{title}} ({{min}}&ndash;{{max}})</h1>
<p>Explore global happiness trends and the key factors that influence well-being across countries and years.</p>
<form method="get" action="/">
<label for="year">Select Year: <output id="year-out">{{year}}</output></label>
<input type="range" id="year" name="year" min="{{min}}" max="{{max}}" step="1" value="{{year}}"
 oninput="document.getElementById('year-out').value=this.value" onchange="this.form.submit()">
</form>
<h2>Key Indicators</h2>
<div class="kpis">
<div class="kpi"><div class="label">Average Happiness Score</div><div class="value">{{mean}}</div></div>
<div class="kpi"><div class="label">Happiest Country</div><div class="value">{{happiest}}</div></div>
<div class="kpi"><div class="label">Countries Analyzed</div><div class="value">{{count}}</div></div>
</div>
<div class="charts">
{{charts}}
</div>
<hr>
<p><strong>How to use this dashboard:</strong> adjust the year using the slider to explore how happiness levels and contributing factors change over time.</p>
<p><strong>Data Source:</strong> {{source}} ({{min}}&ndash;{{max}})</p>
</body>
</html>
`, "{{", "}}")

// Page writes the HTML dashboard for one year.
func Page(w io.Writer, d PageData) error {
	year := strconv.Itoa(d.Year)

	mean := noDataText
	if d.Headline.MeanScore != nil {
		mean = strconv.FormatFloat(*d.Headline.MeanScore, 'f', 2, 64)
	}
	happiest := noDataText
	if d.Headline.HappiestCountry != nil {
		happiest = html.EscapeString(*d.Headline.HappiestCountry)
	}

	var charts strings.Builder
	for _, c := range Charts {
		fmt.Fprintf(&charts, "<img src=\"/api/charts/%s?year=%s\" alt=\"%s chart\">\n", c, year, c)
	}

	_, err := pageTemplate.Execute(w, map[string]any{
		"title":    html.EscapeString(d.Title),
		"source":   html.EscapeString(d.DataSource),
		"year":     year,
		"min":      strconv.Itoa(d.Range.Min),
		"max":      strconv.Itoa(d.Range.Max),
		"mean":     mean,
		"happiest": happiest,
		"count":    strconv.Itoa(d.Headline.CountryCount),
		"charts":   charts.String(),
	})
	return err
}
