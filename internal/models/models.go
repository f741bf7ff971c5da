package models

import (
	"database/sql"
	"time"
)

// DailyRecord is one row of the canonical daily series.
type DailyRecord struct {
	Date time.Time // UTC midnight
	AQI  float64
}

// Reading is a single realtime pollutant reading from the air-quality API.
type Reading struct {
	ID        int64
	City      string   `validate:"required"`
	Date      string   `validate:"required,datetime=2006-01-02"`
	PM25      *float64 `validate:"omitempty,gte=0"`
	FetchedAt time.Time
	RawJSON   string
}

type ForecastRun struct {
	ID           string
	GeneratedAt  time.Time
	ModelPath    string
	SourcePath   string
	Window       int
	Horizon      int
	LastObserved time.Time
	Advisory     sql.NullString
}

type Forecast struct {
	ID            int64
	RunID         string
	ValidDate     time.Time
	DayOfForecast int
	AQI           float64
	Category      string
}
