// Package series reads and writes the canonical daily AQI series and builds
// the scaled, windowed views the forecaster trains on.
package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/araddon/dateparse"

	"github.com/lox/airwatch/internal/csvutil"
	"github.com/lox/airwatch/internal/models"
)

const (
	DateColumn = "date"
	AQIColumn  = "aqi"
	DateLayout = "2006-01-02"
)

var ErrMissingColumn = errors.New("missing column")

// Load reads a canonical daily CSV from disk.
func Load(path string) ([]models.DailyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open series: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a canonical daily CSV (date,aqi) and returns the records sorted
// by date.
func Read(r io.Reader) ([]models.DailyRecord, error) {
	df, err := csvutil.StringFrame(r)
	if err != nil {
		return nil, err
	}

	if !hasColumn(df.Names(), DateColumn) {
		return nil, fmt.Errorf("%w %q in %v", ErrMissingColumn, DateColumn, df.Names())
	}
	if !hasColumn(df.Names(), AQIColumn) {
		return nil, fmt.Errorf("%w %q in %v", ErrMissingColumn, AQIColumn, df.Names())
	}

	dates := df.Col(DateColumn).Records()
	values := df.Col(AQIColumn).Records()

	records := make([]models.DailyRecord, 0, len(dates))
	for i := range dates {
		t, err := dateparse.ParseAny(dates[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: parse date %q: %w", i+1, dates[i], err)
		}
		v, err := strconv.ParseFloat(values[i], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("row %d: invalid aqi %q", i+1, values[i])
		}
		records = append(records, models.DailyRecord{Date: Day(t), AQI: v})
	}

	SortByDate(records)
	return records, nil
}

// Write emits records in canonical form.
func Write(w io.Writer, records []models.DailyRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{DateColumn, AQIColumn}); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{r.Date.Format(DateLayout), strconv.FormatFloat(r.AQI, 'f', -1, 64)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save writes records to path, creating or truncating the file.
func Save(path string, records []models.DailyRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Day truncates t to its calendar date, expressed as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func SortByDate(records []models.DailyRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
}

// Values extracts the AQI column.
func Values(records []models.DailyRecord) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.AQI
	}
	return out
}

func hasColumn(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
