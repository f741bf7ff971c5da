package api

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/lox/airwatch/internal/aqi"
	"github.com/lox/airwatch/internal/csvutil"
)

// CategoryColumn is appended to downloaded rows.
const CategoryColumn = "AQI_Category"

var ErrNoNumericColumn = errors.New("no numeric column to use as AQI")

var (
	DateColumns = []string{"date", "Date", "datetime", "Datetime", "timestamp", "Timestamp"}
	AQIColumns  = []string{"aqi", "AQI", "Aqi", "pm2_5_aqi", "PM2.5_AQI"}
)

// Row is one source row with a usable AQI value.
type Row struct {
	Date     time.Time
	HasDate  bool
	AQI      float64
	Category aqi.Category
	Values   []string
}

// Dataset is the dashboard's view of an AQI CSV. DateColumn is empty when the
// file has no recognised date column.
type Dataset struct {
	Columns    []string
	DateColumn string
	AQIColumn  string
	Rows       []Row
}

func LoadDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data: %w", err)
	}
	defer f.Close()
	return ReadDataset(f)
}

// ReadDataset detects the date and AQI columns, drops rows without a numeric
// AQI and orders rows by date with undated rows last.
func ReadDataset(r io.Reader) (*Dataset, error) {
	records, err := csvutil.ReadRecords(r)
	if err != nil {
		return nil, err
	}
	raw, err := csvutil.Frame(records, csvutil.StringOptions()...)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Columns: raw.Names()}
	ds.DateColumn = firstPresent(ds.Columns, DateColumns)
	ds.AQIColumn = firstPresent(ds.Columns, AQIColumns)
	if ds.AQIColumn == "" {
		typed, err := csvutil.Frame(records)
		if err != nil {
			return nil, err
		}
		ds.AQIColumn = firstNumeric(typed)
		if ds.AQIColumn == "" {
			return nil, fmt.Errorf("%w in %v", ErrNoNumericColumn, ds.Columns)
		}
	}

	rows := raw.Records()[1:]
	aqiIdx := indexOf(ds.Columns, ds.AQIColumn)
	dateIdx := indexOf(ds.Columns, ds.DateColumn)

	for _, rec := range rows {
		v, ok := parseNumber(rec[aqiIdx])
		if !ok {
			continue
		}
		row := Row{AQI: v, Category: aqi.CategoryOf(v), Values: rec}
		if dateIdx >= 0 {
			if t, err := dateparse.ParseAny(strings.TrimSpace(rec[dateIdx])); err == nil {
				row.Date = t
				row.HasDate = true
			}
		}
		ds.Rows = append(ds.Rows, row)
	}

	if ds.DateColumn != "" {
		sort.SliceStable(ds.Rows, func(i, j int) bool {
			a, b := ds.Rows[i], ds.Rows[j]
			if a.HasDate != b.HasDate {
				return a.HasDate
			}
			return a.Date.Before(b.Date)
		})
	}
	return ds, nil
}

// DateRange returns the first and last calendar dates present.
func (d *Dataset) DateRange() (first, last time.Time, ok bool) {
	for _, r := range d.Rows {
		if !r.HasDate {
			continue
		}
		day := calendarDay(r.Date)
		if !ok || day.Before(first) {
			first = day
		}
		if !ok || day.After(last) {
			last = day
		}
		ok = true
	}
	return first, last, ok
}

func firstPresent(names, candidates []string) string {
	for _, c := range candidates {
		if indexOf(names, c) >= 0 {
			return c
		}
	}
	return ""
}

func firstNumeric(df dataframe.DataFrame) string {
	for i, t := range df.Types() {
		if t == series.Int || t == series.Float {
			return df.Names()[i]
		}
	}
	return ""
}

func indexOf(names []string, name string) int {
	if name == "" {
		return -1
	}
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
