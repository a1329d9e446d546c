package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"happydash/internal/engine"
	"happydash/internal/export"
	"happydash/internal/render"
)

var (
	year      int
	outPath   string
	chartName string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the headline metrics for a year as JSON",
	RunE:  runSummary,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the year's records and derived tables to an XLSX workbook",
	RunE:  runExport,
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render one dashboard chart to a PNG file",
	Long: `Renders one of the dashboard charts for the selected year.

Charts: trend, top, scatter, histogram, heatmap`,
	RunE: runRender,
}

func init() {
	for _, c := range []*cobra.Command{summaryCmd, exportCmd, renderCmd} {
		c.Flags().IntVar(&year, "year", 0, "year to select (default: latest)")
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "output .xlsx path (default: world_happiness_<year>.xlsx)")
	renderCmd.Flags().StringVarP(&outPath, "out", "o", "", "output .png path (default: <chart>_<year>.png)")
	renderCmd.Flags().StringVar(&chartName, "chart", render.ChartTrend, "chart to render")
}

// selectYear loads the dataset and resolves --year against it.
func selectYear(cmd *cobra.Command) (*engine.Dataset, int, error) {
	ds, err := newLoader().Load(cmd.Context())
	if err != nil {
		return nil, 0, err
	}
	if year == 0 {
		_, hi := ds.YearRange()
		return ds, hi, nil
	}
	if err := engine.ValidateYear(ds, year); err != nil {
		return nil, 0, err
	}
	return ds, year, nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	ds, y, err := selectYear(cmd)
	if err != nil {
		return err
	}
	v := engine.Filter(ds, y)
	out, err := json.MarshalIndent(map[string]any{
		"year":     y,
		"headline": engine.Summarize(v),
		"top":      engine.TopItems(v, cfg.Dashboard.TopN),
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func runExport(cmd *cobra.Command, args []string) error {
	ds, y, err := selectYear(cmd)
	if err != nil {
		return err
	}
	path := outPath
	if path == "" {
		path = fmt.Sprintf("world_happiness_%d.xlsx", y)
	}
	return writeFile(path, func(f *os.File) error {
		return export.Workbook(f, engine.Filter(ds, y), engine.Build(ds, y, settings().Options))
	})
}

func runRender(cmd *cobra.Command, args []string) error {
	ds, y, err := selectYear(cmd)
	if err != nil {
		return err
	}
	path := outPath
	if path == "" {
		path = fmt.Sprintf("%s_%d.png", chartName, y)
	}
	d := engine.Build(ds, y, settings().Options)
	return writeFile(path, func(f *os.File) error {
		return render.Chart(chartName, d, f)
	})
}

func writeFile(path string, fill func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("wrote file", zap.String("path", path))
	return nil
}
