package models

import (
	"math"

	"github.com/goccy/go-json"
)

// Record is one row of the source table: one country in one year.
type Record struct {
	Country    string  `json:"country"`
	Year       int     `json:"year"`
	Score      float64 `json:"happiness_score"`
	GDP        float64 `json:"gdp_per_capita"`
	Social     float64 `json:"social_support"`
	Health     float64 `json:"healthy_life_expectancy"`
	Freedom    float64 `json:"freedom"`
	Corruption float64 `json:"perceptions_of_corruption"`
}

// MarshalJSON writes missing factors (NaN) as null.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Country    string   `json:"country"`
		Year       int      `json:"year"`
		Score      float64  `json:"happiness_score"`
		GDP        *float64 `json:"gdp_per_capita"`
		Social     *float64 `json:"social_support"`
		Health     *float64 `json:"healthy_life_expectancy"`
		Freedom    *float64 `json:"freedom"`
		Corruption *float64 `json:"perceptions_of_corruption"`
	}{r.Country, r.Year, r.Score, finite(r.GDP), finite(r.Social), finite(r.Health), finite(r.Freedom), finite(r.Corruption)})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

type DashboardData struct {
	Year        int               `json:"year"`
	Headline    Headline          `json:"headline"`
	Trend       []TrendPoint      `json:"trend"`
	TopN        []TopItem         `json:"top"`
	Scatter     []ScatterPoint    `json:"scatter"`
	Histogram   []HistogramBin    `json:"histogram"`
	Correlation CorrelationMatrix `json:"correlation"`
}

// Headline holds the three metric widgets. Nil pointers mean "no data available"
// for the selected year; they are never defaulted to zero.
type Headline struct {
	MeanScore       *float64 `json:"mean_score"`
	HappiestCountry *string  `json:"happiest_country"`
	CountryCount    int      `json:"country_count"`
	NoData          bool     `json:"no_data"`
}

type TopItem struct {
	Rank    int     `json:"rank"`
	Country string  `json:"country"`
	Score   float64 `json:"happiness_score"`
}

type TrendPoint struct {
	Year      int     `json:"year"`
	MeanScore float64 `json:"mean_score"`
	Countries int     `json:"countries"`
}

type ScatterPoint struct {
	Country string  `json:"country"`
	GDP     float64 `json:"gdp_per_capita"`
	Score   float64 `json:"happiness_score"`
}

type HistogramBin struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// CorrelationMatrix is a square matrix over Columns. A nil cell is undefined:
// too few complete pairs or a zero-variance column.
type CorrelationMatrix struct {
	Columns  []string     `json:"columns"`
	Cells    [][]*float64 `json:"cells"`
	Warnings []string     `json:"warnings,omitempty"`
}

type YearRange struct {
	Min     int   `json:"min"`
	Max     int   `json:"max"`
	Default int   `json:"default"`
	Years   []int `json:"years"`
}
