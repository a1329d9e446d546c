package api

import (
	"bytes"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"happydash/internal/apperrors"
	"happydash/internal/engine"
	"happydash/internal/export"
	"happydash/internal/metrics"
	"happydash/internal/models"
	"happydash/internal/render"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Settings are the presentation knobs the handler needs.
type Settings struct {
	Options    engine.Options
	Title      string
	DataSource string
}

// Handler serves the dashboard. It starts without data and answers 503 until
// SetData (or 500 after SetError) is called.
type Handler struct {
	data    atomic.Pointer[engine.Dataset]
	loadErr atomic.Pointer[error]

	settings Settings
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewHandler(ds *engine.Dataset, settings Settings, m *metrics.Metrics, log *zap.Logger) *Handler {
	h := &Handler{settings: settings, metrics: m, log: log.Named("api")}
	if ds != nil {
		h.data.Store(ds)
	}
	return h
}

func (h *Handler) SetData(ds *engine.Dataset) { h.data.Store(ds) }

// SetError records a fatal load failure so every data route reports it.
func (h *Handler) SetError(err error) { h.loadErr.Store(&err) }

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.GetIndex)
	e.GET("/healthz", h.GetHealth)

	api := e.Group("/api")
	api.GET("/years", h.GetYears)
	api.GET("/dashboard", h.GetDashboard)
	api.GET("/summary", h.GetSummary)
	api.GET("/top", h.GetTop)
	api.GET("/trend", h.GetTrend)
	api.GET("/scatter", h.GetScatter)
	api.GET("/histogram", h.GetHistogram)
	api.GET("/correlation", h.GetCorrelation)
	api.GET("/records", h.GetRecords)
	api.GET("/charts/:name", h.GetChart)
	api.GET("/export", h.GetExport)
}

// --- HELPERS ---

func (h *Handler) dataset() (*engine.Dataset, error) {
	if p := h.loadErr.Load(); p != nil {
		return nil, apperrors.DatasetUnavailable(*p)
	}
	ds := h.data.Load()
	if ds == nil {
		return nil, apperrors.ErrDatasetLoading
	}
	return ds, nil
}

// selection resolves the dataset and the ?year= parameter (default: latest year).
func (h *Handler) selection(c echo.Context) (*engine.Dataset, int, error) {
	ds, err := h.dataset()
	if err != nil {
		return nil, 0, err
	}
	raw := c.QueryParam("year")
	if raw == "" {
		_, hi := ds.YearRange()
		return ds, hi, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return nil, 0, apperrors.InvalidParameter("year", err)
	}
	if err := engine.ValidateYear(ds, year); err != nil {
		return nil, 0, err
	}
	return ds, year, nil
}

// notModified sets the ETag and reports whether the client already has it.
func notModified(c echo.Context, tag string) bool {
	c.Response().Header().Set("ETag", tag)
	return c.Request().Header.Get("If-None-Match") == tag
}

func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *Handler) build(ds *engine.Dataset, year int) *models.DashboardData {
	d := engine.Build(ds, year, h.settings.Options)
	if d.Headline.NoData {
		h.metrics.EmptyViews.Inc()
		h.log.Debug("empty selection", zap.Int("year", year))
	}
	return d
}

// --- HANDLERS ---

func (h *Handler) GetHealth(c echo.Context) error {
	if p := h.loadErr.Load(); p != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"status": "failed", "error": (*p).Error()})
	}
	if h.data.Load() == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "loading"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetIndex(c echo.Context) error {
	ds, year, err := h.selection(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	err = render.Page(&buf, render.PageData{
		Title:      h.settings.Title,
		DataSource: h.settings.DataSource,
		Year:       year,
		Range:      ds.YearSelection(),
		Headline:   engine.Summarize(engine.Filter(ds, year)),
	})
	if err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (h *Handler) GetYears(c echo.Context) error {
	ds, err := h.dataset()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ds.YearSelection())
}

func (h *Handler) GetDashboard(c echo.Context) error {
	ds, year, err := h.selection(c)
	if err != nil {
		return err
	}
	if notModified(c, ds.ETag(year)) {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSON(http.StatusOK, h.build(ds, year))
}

func (h *Handler) GetSummary(c echo.Context) error {
	ds, year, err := h.selection(c)
	if err != nil {
		return err
	}
	v := engine.Filter(ds, year)
	if v.Empty() {
		h.metrics.EmptyViews.Inc()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"year":     year,
		"headline": engine.Summarize(v),
	})
}

// returns the Top N countries for the year
func (h *Handler) GetTop(c echo.Context) error {
	ds, year, err := h.selection(c)
	if err != nil {
		return err
	}
	limit, _ := getPaginationParams(c, h.settings.Options.TopN)
	if limit <= 0 {
		limit = engine.DefaultTopN
	}
	return c.JSON(http.StatusOK, engine.TopItems(engine.Filter(ds, year), limit))
}

// trend across all years; the year parameter is ignored
func (h *Handler) GetTrend(c echo.Context) error {
	ds, err := h.dataset()
	if err != nil {
		return err
	}
	if notModified(c, ds.ETag(0)) {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSON(http.StatusOK, engine.YearlyTrend(ds))
}

func (h *Handler) GetScatter(c echo.Context) error {
	ds, year, err := h.selection(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, engine.Scatter(engine.Filter(ds, year)))
}

func (h *Handler) GetHistogram(c echo.Context) error {
	ds, year, err := h.selection(c)
	if err != nil {
		return err
	}
	bins := h.settings.Options.Bins
	if raw := c.QueryParam("bins"); raw != "" {
		bins, err = strconv.Atoi(raw)
		if err != nil || bins <= 0 || bins > 200 {
			return apperrors.InvalidParameter("bins", fmt.Errorf("want an integer in [1, 200], got %q", raw))
		}
	}
	if bins <= 0 {
		bins = engine.DefaultBins
	}
	return c.JSON(http.StatusOK, engine.Histogram(engine.Filter(ds, year), bins))
}

func (h *Handler) GetCorrelation(c echo.Context) error {
	ds, year, err := h.selection(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, engine.Correlation(engine.Filter(ds, year)))
}

func (h *Handler) GetRecords(c echo.Context) error {
	ds, year, err := h.selection(c)
	if err != nil {
		return err
	}
	records := engine.Filter(ds, year).Records()
	total := len(records)
	limit, offset := getPaginationParams(c, total)

	if offset >= total {
		return c.JSON(http.StatusOK, map[string]any{
			"data": []models.Record{}, "total": total, "limit": limit, "offset": offset,
		})
	}
	end := min(offset+limit, total)

	return c.JSON(http.StatusOK, map[string]any{
		"data":   records[offset:end],
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) GetChart(c echo.Context) error {
	name := strings.TrimSuffix(c.Param("name"), ".png")
	if !slices.Contains(render.Charts, name) {
		return apperrors.NotFound(fmt.Sprintf("chart %q", name))
	}
	ds, year, err := h.selection(c)
	if err != nil {
		return err
	}
	if notModified(c, ds.ETagFor(year, name)) {
		return c.NoContent(http.StatusNotModified)
	}

	var buf bytes.Buffer
	if err := render.Chart(name, h.build(ds, year), &buf); err != nil {
		return fmt.Errorf("render %s chart: %w", name, err)
	}
	h.metrics.Renders.WithLabelValues(name).Inc()
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

func (h *Handler) GetExport(c echo.Context) error {
	ds, year, err := h.selection(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.Workbook(&buf, engine.Filter(ds, year), h.build(ds, year)); err != nil {
		return fmt.Errorf("export %d: %w", year, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="world_happiness_%d.xlsx"`, year))
	return c.Blob(http.StatusOK, mimeXLSX, buf.Bytes())
}
