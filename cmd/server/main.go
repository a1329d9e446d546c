package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"happydash/internal/api"
	"happydash/internal/config"
	"happydash/internal/engine"
	"happydash/internal/logging"
	"happydash/internal/metrics"
)

var (
	// Global flags
	configPath string
	debug      bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "happydash",
	Short: "World Happiness dashboard",
	Long: `happydash loads the combined World Happiness CSV once and serves a
year-filtered dashboard: headline metrics, a yearly trend, the top countries,
GDP vs score, the score distribution and a factor correlation heatmap.

Configuration comes from --config (YAML) and HAPPINESS_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging, debug)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd, summaryCmd, exportCmd, renderCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func settings() api.Settings {
	return api.Settings{
		Options:    engine.Options{TopN: cfg.Dashboard.TopN, Bins: cfg.Dashboard.HistogramBins},
		Title:      cfg.Dashboard.Title,
		DataSource: cfg.Dashboard.DataSource,
	}
}

func newLoader() *engine.Loader {
	return engine.NewLoader(engine.FileSource{Path: cfg.Data.Path},
		engine.WithLogger(logger),
		engine.WithChunk(cfg.Data.Chunk))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Handler starts with NIL data; the API is live but answers 503 until loaded
	m := metrics.New()
	h := api.NewHandler(nil, settings(), m, logger)
	e := api.NewServer(cfg, h, m, logger)

	g, ctx := errgroup.WithContext(ctx)

	// 2. Load in the background. A failed load is fatal: routes report it
	// and the process exits non-zero.
	g.Go(func() error {
		logger.Info("loading dataset", zap.String("path", cfg.Data.Path))
		t0 := time.Now()
		ds, err := newLoader().Load(ctx)
		if err != nil {
			h.SetError(err)
			logger.Error("dataset load failed", zap.Error(err))
			return err
		}
		m.ObserveLoad(time.Since(t0), ds.Len(), ds.Dropped)
		h.SetData(ds)
		lo, hi := ds.YearRange()
		logger.Info("dataset ready",
			zap.Int("rows", ds.Len()),
			zap.Int("dropped", ds.Dropped),
			zap.Int("min_year", lo),
			zap.Int("max_year", hi),
			zap.Duration("elapsed", time.Since(t0)))
		return nil
	})

	// 3. Start the server immediately
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
