package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lox/airwatch/internal/models"
)

const dateLayout = "2006-01-02"

// Store persists readings and runs. loc is the zone readings are dated in
// and the zone fetch times are returned in.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(db *sql.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc}
}

// InsertReading stores a realtime reading, dating it from its fetch time when
// Date is empty. Returns false when the same city/date/fetch time already
// exists.
func (s *Store) InsertReading(r *models.Reading) (bool, error) {
	if r.Date == "" {
		r.Date = r.FetchedAt.In(s.loc).Format(dateLayout)
	}
	var pm25 sql.NullFloat64
	if r.PM25 != nil {
		pm25 = sql.NullFloat64{Float64: *r.PM25, Valid: true}
	}
	result, err := s.db.Exec(`
		INSERT INTO readings (city, date, pm25, fetched_at, raw_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(city, date, fetched_at) DO NOTHING
	`, r.City, r.Date, pm25, r.FetchedAt.UTC(), r.RawJSON)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		r.ID, _ = result.LastInsertId()
	}
	return n > 0, nil
}

func (s *Store) GetLatestReading(city string) (*models.Reading, error) {
	row := s.db.QueryRow(`
		SELECT id, city, date, pm25, fetched_at, raw_json
		FROM readings
		WHERE city = ?
		ORDER BY fetched_at DESC
		LIMIT 1
	`, city)

	var r models.Reading
	var pm25 sql.NullFloat64
	var raw sql.NullString
	err := row.Scan(&r.ID, &r.City, &r.Date, &pm25, &r.FetchedAt, &raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if pm25.Valid {
		v := pm25.Float64
		r.PM25 = &v
	}
	r.RawJSON = raw.String
	r.FetchedAt = r.FetchedAt.In(s.loc)
	return &r, nil
}

// GetReadingsForDate returns every reading recorded for city on date, oldest
// fetch first.
func (s *Store) GetReadingsForDate(city, date string) ([]models.Reading, error) {
	rows, err := s.db.Query(`
		SELECT id, city, date, pm25, fetched_at
		FROM readings
		WHERE city = ? AND date = ?
		ORDER BY fetched_at
	`, city, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var r models.Reading
		var pm25 sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.City, &r.Date, &pm25, &r.FetchedAt); err != nil {
			return nil, err
		}
		r.FetchedAt = r.FetchedAt.In(s.loc)
		if pm25.Valid {
			v := pm25.Float64
			r.PM25 = &v
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// InsertForecastRun stores a run and its forecast rows in one transaction.
// An empty run ID is replaced by a fresh UUID.
func (s *Store) InsertForecastRun(run *models.ForecastRun, forecasts []models.Forecast) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO forecast_runs (id, generated_at, model_path, source_path, window_size, horizon, last_observed, advisory)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.GeneratedAt.UTC(), run.ModelPath, run.SourcePath, run.Window, run.Horizon,
		run.LastObserved.Format(dateLayout), run.Advisory); err != nil {
		return fmt.Errorf("insert forecast run: %w", err)
	}

	for i := range forecasts {
		f := &forecasts[i]
		f.RunID = run.ID
		result, err := tx.Exec(`
			INSERT INTO forecasts (run_id, valid_date, day_of_forecast, aqi, category)
			VALUES (?, ?, ?, ?, ?)
		`, f.RunID, f.ValidDate.Format(dateLayout), f.DayOfForecast, f.AQI, f.Category)
		if err != nil {
			return fmt.Errorf("insert forecast %s: %w", f.ValidDate.Format(dateLayout), err)
		}
		f.ID, _ = result.LastInsertId()
	}

	return tx.Commit()
}

// GetLatestForecast returns the most recently generated run and its rows, or
// nil when no forecast has been stored.
func (s *Store) GetLatestForecast() (*models.ForecastRun, []models.Forecast, error) {
	var run models.ForecastRun
	var lastObserved string
	err := s.db.QueryRow(`
		SELECT id, generated_at, model_path, source_path, window_size, horizon, last_observed, advisory
		FROM forecast_runs
		ORDER BY generated_at DESC
		LIMIT 1
	`).Scan(&run.ID, &run.GeneratedAt, &run.ModelPath, &run.SourcePath, &run.Window, &run.Horizon,
		&lastObserved, &run.Advisory)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if run.LastObserved, err = time.Parse(dateLayout, lastObserved); err != nil {
		return nil, nil, fmt.Errorf("parse last_observed: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT id, run_id, valid_date, day_of_forecast, aqi, category
		FROM forecasts
		WHERE run_id = ?
		ORDER BY day_of_forecast
	`, run.ID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var forecasts []models.Forecast
	for rows.Next() {
		var f models.Forecast
		var validDate string
		if err := rows.Scan(&f.ID, &f.RunID, &validDate, &f.DayOfForecast, &f.AQI, &f.Category); err != nil {
			return nil, nil, err
		}
		if f.ValidDate, err = time.Parse(dateLayout, validDate); err != nil {
			return nil, nil, fmt.Errorf("parse valid_date: %w", err)
		}
		forecasts = append(forecasts, f)
	}
	return &run, forecasts, rows.Err()
}
