package api

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"time"

	"github.com/lox/airwatch/internal/aqi"
)

const (
	AllCategories = "All"
	previewRows   = 50
	dateLayout    = "2006-01-02"
)

// Filter is the dashboard selection taken from query parameters. Zero dates
// mean the full range.
type Filter struct {
	Start    time.Time
	End      time.Time
	Category string
}

// ParseFilter reads start, end and category. Malformed dates are ignored.
func ParseFilter(q url.Values) Filter {
	f := Filter{Category: q.Get("category")}
	if f.Category == "" {
		f.Category = AllCategories
	}
	if t, err := time.Parse(dateLayout, q.Get("start")); err == nil {
		f.Start = t
	}
	if t, err := time.Parse(dateLayout, q.Get("end")); err == nil {
		f.End = t
	}
	return f
}

type KPIs struct {
	Latest  string
	Average string
	Max     string
	Min     string
}

type CategoryCount struct {
	Category aqi.Category
	Count    int
}

// View is a filtered dataset ready for rendering.
type View struct {
	Dataset    *Dataset
	Rows       []Row
	HasDates   bool
	MinDate    string
	MaxDate    string
	Start      string
	End        string
	Category   string
	Categories []string
	KPIs       KPIs
}

// Apply narrows the dataset to the date range, then to the category. The
// category options come from the date-filtered rows.
func (d *Dataset) Apply(f Filter) *View {
	v := &View{Dataset: d, Category: f.Category}

	rows := d.Rows
	if d.DateColumn != "" {
		if first, last, ok := d.DateRange(); ok {
			v.HasDates = true
			start, end := clampDate(f.Start, first, last, first), clampDate(f.End, first, last, last)
			v.MinDate, v.MaxDate = first.Format(dateLayout), last.Format(dateLayout)
			v.Start, v.End = start.Format(dateLayout), end.Format(dateLayout)

			rows = nil
			for _, r := range d.Rows {
				if !r.HasDate {
					continue
				}
				day := calendarDay(r.Date)
				if !day.Before(start) && !day.After(end) {
					rows = append(rows, r)
				}
			}
		} else {
			rows = nil
		}
	}

	seen := make(map[string]bool)
	for _, r := range rows {
		seen[string(r.Category)] = true
	}
	v.Categories = []string{AllCategories}
	for _, c := range sortedKeys(seen) {
		v.Categories = append(v.Categories, c)
	}

	if f.Category != AllCategories {
		var kept []Row
		for _, r := range rows {
			if string(r.Category) == f.Category {
				kept = append(kept, r)
			}
		}
		rows = kept
	}

	v.Rows = rows
	v.KPIs = computeKPIs(rows)
	return v
}

// Preview returns the last rows of the selection.
func (v *View) Preview() []Row {
	if len(v.Rows) <= previewRows {
		return v.Rows
	}
	return v.Rows[len(v.Rows)-previewRows:]
}

// CategoryCounts returns row counts per category, ordered by name.
func (v *View) CategoryCounts() []CategoryCount {
	counts := make(map[string]int)
	for _, r := range v.Rows {
		counts[string(r.Category)]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for _, c := range sortedKeys(counts) {
		out = append(out, CategoryCount{Category: aqi.Category(c), Count: counts[c]})
	}
	return out
}

// Query encodes the selection for links back into the dashboard.
func (v *View) Query() string {
	q := url.Values{}
	if v.Start != "" {
		q.Set("start", v.Start)
	}
	if v.End != "" {
		q.Set("end", v.End)
	}
	if v.Category != "" && v.Category != AllCategories {
		q.Set("category", v.Category)
	}
	return q.Encode()
}

func computeKPIs(rows []Row) KPIs {
	if len(rows) == 0 {
		return KPIs{Latest: "NA", Average: "NA", Max: "NA", Min: "NA"}
	}
	sum, hi, lo := 0.0, math.Inf(-1), math.Inf(1)
	for _, r := range rows {
		sum += r.AQI
		hi = math.Max(hi, r.AQI)
		lo = math.Min(lo, r.AQI)
	}
	return KPIs{
		Latest:  formatAQI(rows[len(rows)-1].AQI),
		Average: formatAQI(sum / float64(len(rows))),
		Max:     formatAQI(hi),
		Min:     formatAQI(lo),
	}
}

func formatAQI(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "NA"
	}
	return fmt.Sprintf("%.0f", v)
}

func clampDate(t, lo, hi, def time.Time) time.Time {
	if t.IsZero() {
		return def
	}
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
