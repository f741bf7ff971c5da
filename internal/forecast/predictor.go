package forecast

import (
	"fmt"
	"time"

	"github.com/lox/airwatch/internal/aqi"
	"github.com/lox/airwatch/internal/models"
	"github.com/lox/airwatch/internal/series"
)

type Point struct {
	Date     string       `json:"date"`
	AQI      float64      `json:"aqi"`
	Category aqi.Category `json:"category"`
}

// Result is an auto-regressive forecast following the last observed day.
type Result struct {
	LastObserved string  `json:"last_observed"`
	Points       []Point `json:"points"`
}

func (r *Result) Values() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.AQI
	}
	return out
}

// Predict rolls the model forward horizon steps from the last window of the
// series, feeding each scaled prediction back as the newest input.
func Predict(a *Artifact, records []models.DailyRecord, horizon int) (*Result, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("invalid horizon %d", horizon)
	}
	if len(records) < a.Window {
		return nil, fmt.Errorf("%w: %d days, need at least %d", ErrSeriesTooShort, len(records), a.Window)
	}

	sorted := make([]models.DailyRecord, len(records))
	copy(sorted, records)
	series.SortByDate(sorted)

	input := series.Tail(a.Scaler.TransformAll(series.Values(sorted)), a.Window)
	scaled := make([]float64, 0, horizon)
	for range horizon {
		next := a.Model.Predict(input)
		scaled = append(scaled, next)
		input = append(input[1:], next)
	}

	last := sorted[len(sorted)-1].Date
	result := &Result{LastObserved: last.Format(series.DateLayout)}
	for i, v := range a.Scaler.InverseAll(scaled) {
		result.Points = append(result.Points, Point{
			Date:     last.AddDate(0, 0, i+1).Format(series.DateLayout),
			AQI:      v,
			Category: aqi.CategoryOf(v),
		})
	}
	return result, nil
}

// Records converts a result into store rows for the given run.
func (r *Result) Records(runID string) []models.Forecast {
	out := make([]models.Forecast, 0, len(r.Points))
	for i, p := range r.Points {
		d, _ := parseDay(p.Date)
		out = append(out, models.Forecast{
			RunID:         runID,
			ValidDate:     d,
			DayOfForecast: i + 1,
			AQI:           p.AQI,
			Category:      string(p.Category),
		})
	}
	return out
}

func parseDay(s string) (time.Time, error) {
	return time.Parse(series.DateLayout, s)
}
