package forecast

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/lox/airwatch/internal/aqi"
	"github.com/lox/airwatch/internal/models"
)

func syntheticSeries(days int) []models.DailyRecord {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := make([]models.DailyRecord, days)
	for i := range records {
		records[i] = models.DailyRecord{
			Date: start.AddDate(0, 0, i),
			AQI:  200 + 80*math.Sin(float64(i)/5),
		}
	}
	return records
}

func smallConfig() TrainConfig {
	cfg := DefaultTrainConfig()
	cfg.Window = 5
	cfg.Hidden = []int{4, 3}
	cfg.Epochs = 3
	cfg.BatchSize = 8
	return cfg
}

func TestDefaultTrainConfig(t *testing.T) {
	cfg := DefaultTrainConfig()
	if cfg.Window != 30 {
		t.Errorf("Window = %d, want 30", cfg.Window)
	}
	if len(cfg.Hidden) != 2 || cfg.Hidden[0] != 64 || cfg.Hidden[1] != 32 {
		t.Errorf("Hidden = %v, want [64 32]", cfg.Hidden)
	}
	if cfg.Epochs != 20 || cfg.BatchSize != 32 {
		t.Errorf("Epochs/BatchSize = %d/%d, want 20/32", cfg.Epochs, cfg.BatchSize)
	}
}

func TestTrain_TooShort(t *testing.T) {
	cfg := smallConfig()
	_, err := Train(syntheticSeries(cfg.Window), cfg)
	if !errors.Is(err, ErrSeriesTooShort) {
		t.Fatalf("err = %v, want ErrSeriesTooShort", err)
	}
}

func TestTrain_Artifact(t *testing.T) {
	cfg := smallConfig()
	a, err := Train(syntheticSeries(40), cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if a.Samples != 35 {
		t.Errorf("Samples = %d, want 35", a.Samples)
	}
	if a.Epochs != cfg.Epochs {
		t.Errorf("Epochs = %d, want %d", a.Epochs, cfg.Epochs)
	}
	if a.Scaler.Min >= a.Scaler.Max {
		t.Errorf("Scaler = %+v, want min < max", a.Scaler)
	}
}

func TestPredict_HorizonLength(t *testing.T) {
	cfg := smallConfig()
	a, err := Train(syntheticSeries(30), cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	for _, days := range []int{cfg.Window, cfg.Window + 1, 60} {
		result, err := Predict(a, syntheticSeries(days), DefaultHorizon)
		if err != nil {
			t.Fatalf("Predict(%d days): %v", days, err)
		}
		if len(result.Points) != DefaultHorizon {
			t.Errorf("Predict(%d days) returned %d points, want %d", days, len(result.Points), DefaultHorizon)
		}
	}
}

func TestPredict_DatesAndCategories(t *testing.T) {
	cfg := smallConfig()
	a, err := Train(syntheticSeries(30), cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	records := syntheticSeries(30)
	result, err := Predict(a, records, 3)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	if result.LastObserved != "2024-01-30" {
		t.Errorf("LastObserved = %s, want 2024-01-30", result.LastObserved)
	}
	wantDates := []string{"2024-01-31", "2024-02-01", "2024-02-02"}
	for i, p := range result.Points {
		if p.Date != wantDates[i] {
			t.Errorf("Points[%d].Date = %s, want %s", i, p.Date, wantDates[i])
		}
		if p.Category != aqi.CategoryOf(p.AQI) {
			t.Errorf("Points[%d].Category = %s, want %s", i, p.Category, aqi.CategoryOf(p.AQI))
		}
	}

	rows := result.Records("run-1")
	if len(rows) != 3 || rows[0].DayOfForecast != 1 || rows[0].RunID != "run-1" {
		t.Errorf("Records = %+v", rows)
	}
}

func TestPredict_TooShort(t *testing.T) {
	cfg := smallConfig()
	a, err := Train(syntheticSeries(30), cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	_, err = Predict(a, syntheticSeries(cfg.Window-1), DefaultHorizon)
	if !errors.Is(err, ErrSeriesTooShort) {
		t.Fatalf("err = %v, want ErrSeriesTooShort", err)
	}
}

func TestArtifact_SaveLoad(t *testing.T) {
	cfg := smallConfig()
	a, err := Train(syntheticSeries(30), cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	path := filepath.Join(t.TempDir(), "model", "aqi_lstm.json")
	if err := SaveArtifact(path, a); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}
	loaded, err := LoadArtifact(path)
	if err != nil {
		t.Fatalf("LoadArtifact: %v", err)
	}
	if loaded.Scaler != a.Scaler || loaded.Window != a.Window {
		t.Errorf("loaded = window %d scaler %+v, want window %d scaler %+v", loaded.Window, loaded.Scaler, a.Window, a.Scaler)
	}

	records := syntheticSeries(30)
	want, _ := Predict(a, records, DefaultHorizon)
	got, err := Predict(loaded, records, DefaultHorizon)
	if err != nil {
		t.Fatalf("Predict with loaded model: %v", err)
	}
	for i := range want.Points {
		if got.Points[i].AQI != want.Points[i].AQI {
			t.Errorf("Points[%d] = %v, want %v", i, got.Points[i].AQI, want.Points[i].AQI)
		}
	}
}

func TestLoadArtifact_Missing(t *testing.T) {
	if _, err := LoadArtifact(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing model file")
	}
}
