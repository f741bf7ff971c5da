package ingest

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/lox/airwatch/internal/series"
)

func TestDetectColumn(t *testing.T) {
	tests := []struct {
		name       string
		names      []string
		candidates []string
		want       string
		wantOK     bool
	}{
		{"first candidate wins", []string{"date", "Datetime"}, DatetimeColumns, "Datetime", true},
		{"later candidate", []string{"City", "timestamp", "AQI"}, DatetimeColumns, "timestamp", true},
		{"case sensitive", []string{"DATETIME", "Aqi"}, DatetimeColumns, "", false},
		{"aqi with spaces", []string{"Date", "Air Quality Index"}, AQIColumns, "Air Quality Index", true},
		{"aqi precedence", []string{"aqi", "AQI"}, AQIColumns, "AQI", true},
		{"city lower", []string{"location", "city"}, CityColumns, "city", true},
		{"none", []string{"PM2.5"}, AQIColumns, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectColumn(tt.names, tt.candidates)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("DetectColumn(%v) = %q, %v; want %q, %v", tt.names, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNormalize_DailyMean(t *testing.T) {
	input := `Datetime,City,AQI
2024-03-02 09:00:00,Delhi,100
2024-03-01 08:00:00,Delhi,200
2024-03-01 20:00:00,New Delhi,300
2024-03-01 12:00:00,Mumbai,50
2024-03-02 18:00:00,delhi,120
`
	result, err := Normalize(strings.NewReader(input), NormalizeOptions{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if result.DatetimeColumn != "Datetime" || result.AQIColumn != "AQI" || result.CityColumn != "City" {
		t.Errorf("columns = %q %q %q", result.DatetimeColumn, result.AQIColumn, result.CityColumn)
	}
	if result.RowsRead != 5 || result.DroppedCity != 1 {
		t.Errorf("RowsRead = %d, DroppedCity = %d; want 5, 1", result.RowsRead, result.DroppedCity)
	}

	want := []struct {
		date string
		aqi  float64
	}{
		{"2024-03-01", 250},
		{"2024-03-02", 110},
	}
	if len(result.Records) != len(want) {
		t.Fatalf("len(Records) = %d, want %d", len(result.Records), len(want))
	}
	for i, w := range want {
		got := result.Records[i]
		if got.Date.Format(series.DateLayout) != w.date || math.Abs(got.AQI-w.aqi) > 1e-9 {
			t.Errorf("Records[%d] = %s %.2f, want %s %.2f", i, got.Date.Format(series.DateLayout), got.AQI, w.date, w.aqi)
		}
	}
}

func TestNormalize_NoCityColumnKeepsAllRows(t *testing.T) {
	input := `date,aqi
2024-01-01,80
2024-01-01,100
2024-01-02,60
`
	result, err := Normalize(strings.NewReader(input), NormalizeOptions{City: "Kolkata"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(result.Records) != 2 || result.Records[0].AQI != 90 {
		t.Errorf("Records = %+v", result.Records)
	}
}

func TestNormalize_CustomCity(t *testing.T) {
	input := `timestamp,location,overall_aqi
2024-01-01T10:00:00Z,Mumbai Bandra,70
2024-01-01T11:00:00Z,Delhi,300
`
	result, err := Normalize(strings.NewReader(input), NormalizeOptions{City: "MUMBAI"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(result.Records) != 1 || result.Records[0].AQI != 70 {
		t.Errorf("Records = %+v, want single Mumbai row", result.Records)
	}
}

func TestNormalize_DropsBadRows(t *testing.T) {
	input := `Datetime,AQI
2024-03-01 08:00:00,150
not a date,90
2024-03-01 09:00:00,n/a
2024-03-02 09:00:00,
`
	result, err := Normalize(strings.NewReader(input), NormalizeOptions{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if result.DroppedDatetime != 1 {
		t.Errorf("DroppedDatetime = %d, want 1", result.DroppedDatetime)
	}
	if result.DroppedAQI != 2 {
		t.Errorf("DroppedAQI = %d, want 2", result.DroppedAQI)
	}
	if len(result.Records) != 1 || result.Records[0].AQI != 150 {
		t.Errorf("Records = %+v, want one day at 150", result.Records)
	}
}

func TestNormalize_MissingColumns(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no datetime", "City,AQI\nDelhi,100\n"},
		{"no aqi", "Datetime,PM2.5\n2024-01-01,100\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(strings.NewReader(tt.input), NormalizeOptions{})
			if !errors.Is(err, ErrColumnNotFound) {
				t.Fatalf("err = %v, want ErrColumnNotFound", err)
			}
		})
	}
}

func TestNormalize_LenientInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCol  string
		wantDays int
		wantAQI  float64
	}{
		{"byte order mark", "\ufeffDatetime,AQI\n2024-01-01 10:00,100\n", "Datetime", 1, 100},
		{"short row padded", "Datetime,AQI,Note\n2024-01-01 10:00,100\n2024-01-01 12:00,200,haze\n", "Datetime", 1, 150},
		{"duplicate header keeps first", "date,date,AQI\n2024-01-01,junk,80\n", "date", 1, 80},
		{"header only", "Datetime,AQI\n", "Datetime", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Normalize(strings.NewReader(tt.input), NormalizeOptions{})
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if result.DatetimeColumn != tt.wantCol {
				t.Errorf("DatetimeColumn = %q, want %q", result.DatetimeColumn, tt.wantCol)
			}
			if len(result.Records) != tt.wantDays {
				t.Fatalf("len(Records) = %d, want %d", len(result.Records), tt.wantDays)
			}
			if tt.wantDays > 0 && result.Records[0].AQI != tt.wantAQI {
				t.Errorf("AQI = %v, want %v", result.Records[0].AQI, tt.wantAQI)
			}
		})
	}
}

func TestNormalize_OutputRoundTrips(t *testing.T) {
	input := "Datetime,AQI\n2024-03-02,95\n2024-03-01,210.25\n"
	result, err := Normalize(strings.NewReader(input), NormalizeOptions{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	var buf strings.Builder
	if err := series.Write(&buf, result.Records); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "date,aqi\n2024-03-01,210.25\n2024-03-02,95\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}
