package ingest

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/lox/airwatch/internal/csvutil"
	"github.com/lox/airwatch/internal/metrics"
	"github.com/lox/airwatch/internal/models"
	"github.com/lox/airwatch/internal/series"
)

// DefaultCity is the city substring kept when the source has a city column.
const DefaultCity = "delhi"

var ErrColumnNotFound = errors.New("column not found")

var (
	DatetimeColumns = []string{"Datetime", "datetime", "date_time", "timestamp", "time", "DateTime", "date"}
	AQIColumns      = []string{"AQI", "aqi", "overall_aqi", "AQI_Value", "Air Quality Index"}
	CityColumns     = []string{"City", "city", "location", "Location"}
)

// DetectColumn returns the first candidate present in names. Matching is
// exact and case-sensitive.
func DetectColumn(names, candidates []string) (string, bool) {
	for _, c := range candidates {
		for _, n := range names {
			if n == c {
				return c, true
			}
		}
	}
	return "", false
}

type NormalizeOptions struct {
	City string
}

type NormalizeResult struct {
	DatetimeColumn string
	AQIColumn      string
	CityColumn     string

	RowsRead        int
	DroppedDatetime int
	DroppedAQI      int
	DroppedCity     int

	Records []models.DailyRecord
}

// Normalize reads an arbitrary AQI CSV and collapses it to one mean value per
// calendar date, sorted ascending.
func Normalize(r io.Reader, opts NormalizeOptions) (*NormalizeResult, error) {
	df, err := csvutil.StringFrame(r)
	if err != nil {
		return nil, err
	}

	names := df.Names()
	result := &NormalizeResult{RowsRead: df.Nrow()}

	var ok bool
	if result.DatetimeColumn, ok = DetectColumn(names, DatetimeColumns); !ok {
		return nil, fmt.Errorf("%w: no datetime column in %v", ErrColumnNotFound, names)
	}
	if result.AQIColumn, ok = DetectColumn(names, AQIColumns); !ok {
		return nil, fmt.Errorf("%w: no AQI column in %v", ErrColumnNotFound, names)
	}
	result.CityColumn, _ = DetectColumn(names, CityColumns)

	city := strings.ToLower(opts.City)
	if city == "" {
		city = DefaultCity
	}

	dates := df.Col(result.DatetimeColumn).Records()
	values := df.Col(result.AQIColumn).Records()
	var cities []string
	if result.CityColumn != "" {
		cities = df.Col(result.CityColumn).Records()
	}

	type acc struct {
		sum   float64
		count int
	}
	days := make(map[time.Time]*acc)

	for i := range dates {
		if cities != nil && !strings.Contains(strings.ToLower(cities[i]), city) {
			result.DroppedCity++
			continue
		}
		t, err := dateparse.ParseAny(strings.TrimSpace(dates[i]))
		if err != nil {
			result.DroppedDatetime++
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(values[i]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			result.DroppedAQI++
			continue
		}
		day := series.Day(t)
		a, ok := days[day]
		if !ok {
			a = &acc{}
			days[day] = a
		}
		a.sum += v
		a.count++
	}

	result.Records = make([]models.DailyRecord, 0, len(days))
	for day, a := range days {
		result.Records = append(result.Records, models.DailyRecord{Date: day, AQI: a.sum / float64(a.count)})
	}
	series.SortByDate(result.Records)

	metrics.RowsNormalized.WithLabelValues("kept").Add(float64(result.RowsRead - result.dropped()))
	metrics.RowsNormalized.WithLabelValues("bad_datetime").Add(float64(result.DroppedDatetime))
	metrics.RowsNormalized.WithLabelValues("bad_aqi").Add(float64(result.DroppedAQI))
	metrics.RowsNormalized.WithLabelValues("city_mismatch").Add(float64(result.DroppedCity))

	return result, nil
}

func (r *NormalizeResult) dropped() int {
	return r.DroppedDatetime + r.DroppedAQI + r.DroppedCity
}

// LogPreview writes the first n normalized days and the total row count.
func (r *NormalizeResult) LogPreview(n int) {
	log.Printf("normalize: columns datetime=%q aqi=%q city=%q", r.DatetimeColumn, r.AQIColumn, r.CityColumn)
	for i, rec := range r.Records {
		if i >= n {
			break
		}
		log.Printf("normalize:   %s  %.2f", rec.Date.Format(series.DateLayout), rec.AQI)
	}
	log.Printf("normalize: %d rows read, %d dropped, %d days", r.RowsRead, r.dropped(), len(r.Records))
}
