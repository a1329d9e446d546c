package engine

import (
	"fmt"
	"slices"

	"happydash/internal/models"
)

// Dataset holds the happiness table in Struct-of-Arrays format.
// It is built once by the Loader and never mutated afterwards.
type Dataset struct {
	// Data Columns (Flat Arrays)
	Years      []int32
	Scores     []float64
	GDP        []float64
	Social     []float64
	Health     []float64
	Freedom    []float64
	Corruption []float64

	// Dictionary Encoded IDs (0..N)
	CountryIDs []int32

	// Dictionary (ID -> String)
	CountryDict []string

	// Rows rejected at load time (null year or score)
	Dropped int

	// xxh3 of the source bytes
	Fingerprint uint64
}

func (ds *Dataset) Len() int { return len(ds.Years) }

func (ds *Dataset) Country(i int) string {
	return ds.CountryDict[ds.CountryIDs[i]]
}

// Row materializes row i as a Record.
func (ds *Dataset) Row(i int) models.Record {
	return models.Record{
		Country:    ds.Country(i),
		Year:       int(ds.Years[i]),
		Score:      ds.Scores[i],
		GDP:        ds.GDP[i],
		Social:     ds.Social[i],
		Health:     ds.Health[i],
		Freedom:    ds.Freedom[i],
		Corruption: ds.Corruption[i],
	}
}

// YearRange returns the smallest and largest observed year.
// An empty dataset yields (0, 0); the Loader never produces one.
func (ds *Dataset) YearRange() (int, int) {
	if ds.Len() == 0 {
		return 0, 0
	}
	lo, hi := ds.Years[0], ds.Years[0]
	for _, y := range ds.Years[1:] {
		lo = min(lo, y)
		hi = max(hi, y)
	}
	return int(lo), int(hi)
}

// ObservedYears lists the distinct observed years in ascending order.
func (ds *Dataset) ObservedYears() []int {
	seen := make(map[int32]struct{})
	out := make([]int, 0, 8)
	for _, y := range ds.Years {
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		out = append(out, int(y))
	}
	slices.Sort(out)
	return out
}

// YearSelection describes the slider: bounds plus the default (latest) year.
func (ds *Dataset) YearSelection() models.YearRange {
	lo, hi := ds.YearRange()
	return models.YearRange{Min: lo, Max: hi, Default: hi, Years: ds.ObservedYears()}
}

// ValidateYear rejects selections outside the observed range. Gap years inside
// the range are valid and produce empty views.
func ValidateYear(ds *Dataset, year int) error {
	lo, hi := ds.YearRange()
	if year < lo || year > hi {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrYearOutOfRange, year, lo, hi)
	}
	return nil
}

// ETag identifies a derived response: same dataset bytes and same year.
func (ds *Dataset) ETag(year int) string {
	return fmt.Sprintf(`"%016x-%d"`, ds.Fingerprint, year)
}

// ETagFor is ETag for one representation of the year, such as a chart name.
func (ds *Dataset) ETagFor(year int, variant string) string {
	return fmt.Sprintf(`"%016x-%d-%s"`, ds.Fingerprint, year, variant)
}
