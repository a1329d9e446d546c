package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `Country,Year,Happiness Score,GDP per capita,Social support,Healthy life expectancy,Freedom,Perceptions of corruption
Switzerland,2015,7.587,1.39651,1.34951,0.94143,0.66557,0.41978
Togo,2015,2.839,0.20868,0.13995,0.28443,0.36453,0.10731
Finland,2019,7.769,1.34,1.587,0.986,0.596,0.393
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "happiness.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0o644))
	t.Setenv("HAPPINESS_DATA_PATH", csvPath)
	t.Setenv("HAPPINESS_LOGGING_LEVEL", "error")

	year, outPath, chartName = 0, "", "trend"
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSummaryDefaultsToLatestYear(t *testing.T) {
	out, err := execute(t, "summary")
	require.NoError(t, err)

	var got struct {
		Year     int `json:"year"`
		Headline struct {
			HappiestCountry *string `json:"happiest_country"`
			CountryCount    int     `json:"country_count"`
		} `json:"headline"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2019, got.Year)
	require.NotNil(t, got.Headline.HappiestCountry)
	assert.Equal(t, "Finland", *got.Headline.HappiestCountry)
	assert.Equal(t, 1, got.Headline.CountryCount)
}

func TestSummaryGapYear(t *testing.T) {
	out, err := execute(t, "summary", "--year", "2017")
	require.NoError(t, err)
	assert.Contains(t, out, `"no_data": true`)
	assert.Contains(t, out, `"mean_score": null`)
}

func TestSummaryYearOutOfRange(t *testing.T) {
	_, err := execute(t, "summary", "--year", "2030")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in [2015, 2019]")
}

func TestRenderAndExport(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "heat.png")
	_, err := execute(t, "render", "--chart", "heatmap", "--year", "2015", "--out", png)
	require.NoError(t, err)
	b, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(b[:4]))

	xlsx := filepath.Join(dir, "out.xlsx")
	_, err = execute(t, "export", "--year", "2015", "--out", xlsx)
	require.NoError(t, err)
	b, err = os.ReadFile(xlsx)
	require.NoError(t, err)
	assert.Equal(t, "PK", string(b[:2]))
}

func TestRenderUnknownChartLeavesNoFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "pie.png")
	_, err := execute(t, "render", "--chart", "pie", "--out", out)
	require.Error(t, err)
	assert.NoFileExists(t, out)
}

func TestMissingDataFile(t *testing.T) {
	_, err := execute(t, "summary")
	require.NoError(t, err)

	t.Setenv("HAPPINESS_DATA_PATH", filepath.Join(t.TempDir(), "missing.csv"))
	rootCmd.SetArgs([]string{"summary"})
	err = rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.csv")
}
