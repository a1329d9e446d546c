package engine

import (
	"bufio"
	"context"
	encsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/csv"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
)

// Source column names. Extra columns in the file are tolerated and ignored.
const (
	ColCountry    = "Country"
	ColYear       = "Year"
	ColScore      = "Happiness Score"
	ColGDP        = "GDP per capita"
	ColSocial     = "Social support"
	ColHealth     = "Healthy life expectancy"
	ColFreedom    = "Freedom"
	ColCorruption = "Perceptions of corruption"
)

// Rows whose year falls outside [MinYear, MaxYear] are dropped at load time.
const (
	MinYear = 1900
	MaxYear = 2200
)

var requiredColumns = []string{
	ColCountry, ColYear, ColScore, ColGDP, ColSocial, ColHealth, ColFreedom, ColCorruption,
}

var nullValues = []string{"", "NA", "N/A", "nan", "NaN", "null"}

// --- 1. SOURCES ---

// Source yields the raw CSV bytes.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	Name() string
}

type FileSource struct {
	Path string
}

func (f FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	return os.Open(f.Path)
}

func (f FileSource) Name() string { return f.Path }

// --- 2. MEMOIZED LOADER ---

// Loader parses its Source at most once. Every Load after the first returns the
// same *Dataset (or the same error) without touching the Source again.
type Loader struct {
	src   Source
	log   *zap.Logger
	mem   memory.Allocator
	chunk int

	once sync.Once
	ds   *Dataset
	err  error
}

type LoaderOption func(*Loader)

func WithLogger(l *zap.Logger) LoaderOption {
	return func(ld *Loader) { ld.log = l }
}

func WithAllocator(mem memory.Allocator) LoaderOption {
	return func(ld *Loader) { ld.mem = mem }
}

// WithChunk sets how many CSV rows go into one Arrow record batch.
func WithChunk(n int) LoaderOption {
	return func(ld *Loader) { ld.chunk = n }
}

func NewLoader(src Source, opts ...LoaderOption) *Loader {
	ld := &Loader{
		src:   src,
		log:   zap.NewNop(),
		mem:   memory.NewGoAllocator(),
		chunk: 512,
	}
	for _, o := range opts {
		o(ld)
	}
	return ld
}

func (ld *Loader) Load(ctx context.Context) (*Dataset, error) {
	ld.once.Do(func() {
		ld.ds, ld.err = ld.load(ctx)
	})
	return ld.ds, ld.err
}

func (ld *Loader) load(ctx context.Context) (*Dataset, error) {
	start := time.Now()
	name := ld.src.Name()
	ld.log.Info("loading dataset", zap.String("source", name))

	rc, err := ld.src.Open(ctx)
	if err != nil {
		kind := KindRead
		if errors.Is(err, fs.ErrNotExist) {
			kind = KindNotFound
		}
		return nil, &LoadError{Kind: kind, Source: name, Err: err}
	}
	defer rc.Close()

	ds, err := ld.parse(rc)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Source = name
			return nil, le
		}
		return nil, &LoadError{Kind: KindParse, Source: name, Err: err}
	}

	if ds.Dropped > 0 {
		ld.log.Warn("dropped rows without country, year or happiness score",
			zap.String("source", name), zap.Int("dropped", ds.Dropped))
	}
	ld.log.Info("dataset loaded",
		zap.String("source", name),
		zap.Int("rows", ds.Len()),
		zap.Int("countries", len(ds.CountryDict)),
		zap.Duration("elapsed", time.Since(start)))
	return ds, nil
}

// --- 3. PARSER ---

func (ld *Loader) parse(r io.Reader) (*Dataset, error) {
	hasher := xxh3.New()
	br := bufio.NewReader(io.TeeReader(r, hasher))

	// A. Header
	line, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{Kind: KindRead, Err: err}
	}
	line = strings.TrimPrefix(line, "\ufeff")
	if strings.TrimSpace(line) == "" {
		return nil, &LoadError{Kind: KindEmpty, Err: errors.New("missing header row")}
	}
	header, err := encsv.NewReader(strings.NewReader(line)).Read()
	if err != nil {
		return nil, &LoadError{Kind: KindParse, Err: fmt.Errorf("header: %w", err)}
	}

	schema, pos, err := buildSchema(header)
	if err != nil {
		return nil, err
	}

	// B. Body (Arrow record batches)
	rdr := csv.NewReader(
		io.MultiReader(strings.NewReader(line), br),
		schema,
		csv.WithHeader(true),
		csv.WithChunk(ld.chunk),
		csv.WithAllocator(ld.mem),
		csv.WithNullReader(true, nullValues...),
	)
	defer rdr.Release()

	ds := &Dataset{}
	countries := make(map[string]int32)
	for rdr.Next() {
		appendRecord(ds, countries, rdr.Record(), pos)
	}
	if err := rdr.Err(); err != nil {
		return nil, &LoadError{Kind: KindParse, Err: err}
	}

	// The csv reader stops at EOF, drain anyway so the fingerprint covers every byte.
	if _, err := io.Copy(io.Discard, br); err != nil {
		return nil, &LoadError{Kind: KindRead, Err: err}
	}
	ds.Fingerprint = hasher.Sum64()

	if ds.Len() == 0 {
		return nil, &LoadError{Kind: KindEmpty, Err: fmt.Errorf("no usable rows (%d dropped)", ds.Dropped)}
	}
	return ds, nil
}

// columnPos maps each required column to its index in the file.
type columnPos map[string]int

// buildSchema types the required columns and leaves everything else as string.
// Year is read as float64 so "2015.0" style exports survive.
func buildSchema(header []string) (*arrow.Schema, columnPos, error) {
	pos := make(columnPos, len(requiredColumns))
	fields := make([]arrow.Field, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		fields[i] = arrow.Field{Name: fmt.Sprintf("c%d_%s", i, name), Type: arrow.BinaryTypes.String, Nullable: true}
		if !isRequired(name) {
			continue
		}
		if _, dup := pos[name]; dup {
			continue
		}
		pos[name] = i
		if name != ColCountry {
			fields[i].Type = arrow.PrimitiveTypes.Float64
		}
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := pos[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &LoadError{
			Kind: KindMissingColumn,
			Err:  fmt.Errorf("missing required columns: %s", strings.Join(missing, ", ")),
		}
	}
	return arrow.NewSchema(fields, nil), pos, nil
}

func isRequired(name string) bool {
	for _, c := range requiredColumns {
		if c == name {
			return true
		}
	}
	return false
}

func appendRecord(ds *Dataset, countries map[string]int32, rec arrow.Record, pos columnPos) {
	country := rec.Column(pos[ColCountry]).(*array.String)
	year := rec.Column(pos[ColYear]).(*array.Float64)
	score := rec.Column(pos[ColScore]).(*array.Float64)
	gdp := rec.Column(pos[ColGDP]).(*array.Float64)
	social := rec.Column(pos[ColSocial]).(*array.Float64)
	health := rec.Column(pos[ColHealth]).(*array.Float64)
	freedom := rec.Column(pos[ColFreedom]).(*array.Float64)
	corruption := rec.Column(pos[ColCorruption]).(*array.Float64)

	for j := 0; j < int(rec.NumRows()); j++ {
		if year.IsNull(j) || score.IsNull(j) || country.IsNull(j) {
			ds.Dropped++
			continue
		}
		y, s := year.Value(j), score.Value(j)
		name := strings.TrimSpace(country.Value(j))
		if !validYear(y) || !finite(s) || name == "" {
			ds.Dropped++
			continue
		}

		id, ok := countries[name]
		if !ok {
			id = int32(len(ds.CountryDict))
			str := strings.Clone(name) // Arrow strings alias record memory
			ds.CountryDict = append(ds.CountryDict, str)
			countries[str] = id
		}

		ds.CountryIDs = append(ds.CountryIDs, id)
		ds.Years = append(ds.Years, int32(y))
		ds.Scores = append(ds.Scores, s)
		ds.GDP = append(ds.GDP, floatOrNaN(gdp, j))
		ds.Social = append(ds.Social, floatOrNaN(social, j))
		ds.Health = append(ds.Health, floatOrNaN(health, j))
		ds.Freedom = append(ds.Freedom, floatOrNaN(freedom, j))
		ds.Corruption = append(ds.Corruption, floatOrNaN(corruption, j))
	}
}

// floatOrNaN maps nulls and infinities to NaN so they count as missing.
func floatOrNaN(col *array.Float64, j int) float64 {
	if col.IsNull(j) || !finite(col.Value(j)) {
		return math.NaN()
	}
	return col.Value(j)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// validYear accepts whole calendar years in [MinYear, MaxYear].
func validYear(y float64) bool {
	return finite(y) && y == math.Trunc(y) && y >= MinYear && y <= MaxYear
}
