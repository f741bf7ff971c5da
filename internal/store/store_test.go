package store

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/airwatch/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	return setupTestStoreIn(t, time.UTC)
}

func setupTestStoreIn(t *testing.T, loc *time.Location) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db, loc)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func ptr[T any](v T) *T { return &v }

func TestMigrate_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}
}

func TestInsertAndGetLatestReading(t *testing.T) {
	store := setupTestStore(t)

	if r, err := store.GetLatestReading("Delhi"); err != nil || r != nil {
		t.Fatalf("GetLatestReading on empty store = %v, %v; want nil, nil", r, err)
	}

	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	first := &models.Reading{City: "Delhi", Date: "2024-03-01", PM25: ptr(180.5), FetchedAt: base}
	second := &models.Reading{City: "Delhi", Date: "2024-03-01", FetchedAt: base.Add(time.Hour)}

	for _, r := range []*models.Reading{first, second} {
		inserted, err := store.InsertReading(r)
		if err != nil {
			t.Fatalf("InsertReading: %v", err)
		}
		if !inserted {
			t.Fatalf("InsertReading(%v) was not inserted", r.FetchedAt)
		}
	}

	dup, err := store.InsertReading(&models.Reading{City: "Delhi", Date: "2024-03-01", FetchedAt: base})
	if err != nil {
		t.Fatalf("InsertReading duplicate: %v", err)
	}
	if dup {
		t.Error("duplicate reading should not be inserted")
	}

	latest, err := store.GetLatestReading("Delhi")
	if err != nil {
		t.Fatalf("GetLatestReading: %v", err)
	}
	if latest == nil || latest.PM25 != nil {
		t.Fatalf("latest = %+v, want reading with nil PM25", latest)
	}

	day, err := store.GetReadingsForDate("Delhi", "2024-03-01")
	if err != nil {
		t.Fatalf("GetReadingsForDate: %v", err)
	}
	if len(day) != 2 {
		t.Fatalf("len(day) = %d, want 2", len(day))
	}
	if day[0].PM25 == nil || *day[0].PM25 != 180.5 {
		t.Errorf("day[0].PM25 = %v, want 180.5", day[0].PM25)
	}
}

func TestInsertReading_DatesInStoreZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	store := setupTestStoreIn(t, ist)

	// 20:00 UTC is already the next day in India.
	fetched := time.Date(2024, 1, 5, 20, 0, 0, 0, time.UTC)
	r := &models.Reading{City: "Delhi", PM25: ptr(99.0), FetchedAt: fetched}
	if _, err := store.InsertReading(r); err != nil {
		t.Fatalf("InsertReading: %v", err)
	}
	if r.Date != "2024-01-06" {
		t.Errorf("Date = %q, want 2024-01-06", r.Date)
	}

	latest, err := store.GetLatestReading("Delhi")
	if err != nil {
		t.Fatalf("GetLatestReading: %v", err)
	}
	if latest.Date != "2024-01-06" {
		t.Errorf("stored Date = %q, want 2024-01-06", latest.Date)
	}
	if !latest.FetchedAt.Equal(fetched) || latest.FetchedAt.Location() != ist {
		t.Errorf("FetchedAt = %v, want %v in IST", latest.FetchedAt, fetched)
	}
}

func TestIngestRunLifecycle(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.StartIngestRun("openaq", "latest", ptr("Delhi"))
	if err != nil {
		t.Fatalf("StartIngestRun: %v", err)
	}
	run.Success = false
	run.HTTPStatus = sql.NullInt64{Int64: 503, Valid: true}
	run.ErrorMessage = sql.NullString{String: "status 503", Valid: true}
	if err := store.CompleteIngestRun(run); err != nil {
		t.Fatalf("CompleteIngestRun: %v", err)
	}

	failed, err := store.GetRecentIngestErrors(10)
	if err != nil {
		t.Fatalf("GetRecentIngestErrors: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("len(failed) = %d, want 1", len(failed))
	}
	if failed[0].HTTPStatus.Int64 != 503 || failed[0].City.String != "Delhi" {
		t.Errorf("failed[0] = %+v", failed[0])
	}
	if !failed[0].FinishedAt.Valid {
		t.Error("FinishedAt should be set")
	}

	if err := store.CompleteIngestRun(nil); err != nil {
		t.Errorf("CompleteIngestRun(nil) = %v, want nil", err)
	}
}

func TestRawPayloadDedupe(t *testing.T) {
	store := setupTestStore(t)
	payload := []byte(`{"results":[{"city":"Delhi","measurements":[{"parameter":"pm25","value":92}]}]}`)

	id, err := store.StoreRawPayload(nil, "openaq", "latest", ptr("Delhi"), payload)
	if err != nil {
		t.Fatalf("StoreRawPayload: %v", err)
	}
	if id == 0 {
		t.Fatal("first payload should be stored")
	}

	again, err := store.StoreRawPayload(nil, "openaq", "latest", ptr("Delhi"), payload)
	if err != nil {
		t.Fatalf("StoreRawPayload duplicate: %v", err)
	}
	if again != 0 {
		t.Errorf("duplicate payload id = %d, want 0", again)
	}

	got, err := store.GetRawPayload(id)
	if err != nil {
		t.Fatalf("GetRawPayload: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("payload = %s, want %s", got, payload)
	}
}

func TestCleanupOldRawPayloads(t *testing.T) {
	store := setupTestStore(t)

	oldID, err := store.StoreRawPayload(nil, "openaq", "latest", ptr("Delhi"), []byte(`{"results":[1]}`))
	if err != nil {
		t.Fatalf("StoreRawPayload: %v", err)
	}
	if _, err := store.StoreRawPayload(nil, "openaq", "latest", ptr("Delhi"), []byte(`{"results":[2]}`)); err != nil {
		t.Fatalf("StoreRawPayload: %v", err)
	}
	if _, err := store.db.Exec(`UPDATE raw_payloads SET fetched_at = '2000-01-01 00:00:00' WHERE id = ?`, oldID); err != nil {
		t.Fatal(err)
	}

	n, err := store.CleanupOldRawPayloads(90)
	if err != nil {
		t.Fatalf("CleanupOldRawPayloads: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestForecastRunRoundTrip(t *testing.T) {
	store := setupTestStore(t)

	run, rows, err := store.GetLatestForecast()
	if err != nil || run != nil || rows != nil {
		t.Fatalf("GetLatestForecast on empty store = %v, %v, %v", run, rows, err)
	}

	last := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	older := &models.ForecastRun{
		GeneratedAt:  time.Date(2024, 4, 1, 6, 0, 0, 0, time.UTC),
		ModelPath:    "model/aqi_lstm.json",
		SourcePath:   "data/delhi_aqi_clean.csv",
		Window:       30,
		Horizon:      1,
		LastObserved: last,
	}
	if err := store.InsertForecastRun(older, []models.Forecast{
		{ValidDate: last.AddDate(0, 0, 1), DayOfForecast: 1, AQI: 120, Category: "Moderate"},
	}); err != nil {
		t.Fatalf("InsertForecastRun(older): %v", err)
	}
	if older.ID == "" {
		t.Fatal("run ID should be assigned")
	}

	newer := &models.ForecastRun{
		GeneratedAt:  older.GeneratedAt.Add(time.Hour),
		ModelPath:    "model/aqi_lstm.json",
		SourcePath:   "data/delhi_aqi_clean.csv",
		Window:       30,
		Horizon:      2,
		LastObserved: last,
		Advisory:     sql.NullString{String: "Limit outdoor activity.", Valid: true},
	}
	forecasts := []models.Forecast{
		{ValidDate: last.AddDate(0, 0, 1), DayOfForecast: 1, AQI: 210.4, Category: "Poor"},
		{ValidDate: last.AddDate(0, 0, 2), DayOfForecast: 2, AQI: 198.2, Category: "Moderate"},
	}
	if err := store.InsertForecastRun(newer, forecasts); err != nil {
		t.Fatalf("InsertForecastRun(newer): %v", err)
	}

	run, rows, err = store.GetLatestForecast()
	if err != nil {
		t.Fatalf("GetLatestForecast: %v", err)
	}
	if run.ID != newer.ID {
		t.Errorf("run.ID = %s, want %s", run.ID, newer.ID)
	}
	if !run.LastObserved.Equal(last) || run.Advisory.String != "Limit outdoor activity." {
		t.Errorf("run = %+v", run)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[1].ValidDate.Format("2006-01-02") != "2024-04-02" || rows[1].Category != "Moderate" {
		t.Errorf("rows[1] = %+v", rows[1])
	}
}
