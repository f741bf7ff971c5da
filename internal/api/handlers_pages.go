package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/lox/airwatch/internal/aqi"
	"github.com/lox/airwatch/internal/metrics"
)

type IndexData struct {
	*View
	City     string
	Source   string
	Forecast *ForecastPanel
}

type ForecastPanel struct {
	GeneratedAt  time.Time     `json:"generated_at"`
	LastObserved string        `json:"last_observed"`
	Days         []ForecastDay `json:"days"`
	Advisory     string        `json:"advisory,omitempty"`
}

type ForecastDay struct {
	Date     string       `json:"date"`
	AQI      float64      `json:"aqi"`
	Category aqi.Category `json:"category"`
}

type ErrorData struct {
	City    string
	Source  string
	Message string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	metrics.DashboardRequests.WithLabelValues("index").Inc()

	view, err := s.load(r)
	if err != nil {
		log.Printf("dashboard: load %s: %v", s.dataPath, err)
		w.WriteHeader(http.StatusInternalServerError)
		s.render(w, "error.html", ErrorData{City: s.city, Source: s.dataPath, Message: err.Error()})
		return
	}

	data := IndexData{View: view, City: s.city, Source: filepath.Base(s.dataPath)}
	if panel, err := s.latestForecast(); err != nil {
		log.Printf("dashboard: latest forecast: %v", err)
	} else {
		data.Forecast = panel
	}
	s.render(w, "index.html", data)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("dashboard: render %s: %v", name, err)
	}
}

// latestForecast returns nil without error when no store is configured or no
// forecast has been stored.
func (s *Server) latestForecast() (*ForecastPanel, error) {
	if s.store == nil {
		return nil, nil
	}
	run, rows, err := s.store.GetLatestForecast()
	if err != nil || run == nil {
		return nil, err
	}
	panel := &ForecastPanel{
		GeneratedAt:  run.GeneratedAt,
		LastObserved: run.LastObserved.Format(dateLayout),
		Advisory:     run.Advisory.String,
	}
	for _, f := range rows {
		panel.Days = append(panel.Days, ForecastDay{
			Date:     f.ValidDate.Format(dateLayout),
			AQI:      f.AQI,
			Category: aqi.Category(f.Category),
		})
	}
	return panel, nil
}

type HealthStatus struct {
	Status              string         `json:"status"`
	DataRows            int            `json:"data_rows"`
	LatestDate          string         `json:"latest_date,omitempty"`
	ForecastGeneratedAt *time.Time     `json:"forecast_generated_at,omitempty"`
	Realtime            *RealtimeState `json:"realtime,omitempty"`
	Errors              []string       `json:"errors,omitempty"`
}

// RealtimeState summarises the fetcher's stored readings for the city.
type RealtimeState struct {
	LatestDate    string    `json:"latest_date,omitempty"`
	LatestPM25    *float64  `json:"latest_pm25,omitempty"`
	FetchedAt     time.Time `json:"fetched_at,omitempty"`
	ReadingsToday int       `json:"readings_today"`
	RecentErrors  []string  `json:"recent_errors,omitempty"`
}

const recentIngestErrors = 5

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "ok"}

	ds, err := LoadDataset(s.dataPath)
	if err != nil {
		health.Errors = append(health.Errors, "data: "+err.Error())
	} else {
		health.DataRows = len(ds.Rows)
		if _, last, ok := ds.DateRange(); ok {
			health.LatestDate = last.Format(dateLayout)
		}
	}

	panel, err := s.latestForecast()
	if err != nil {
		health.Errors = append(health.Errors, "forecast: "+err.Error())
	} else if panel != nil {
		health.ForecastGeneratedAt = &panel.GeneratedAt
	}

	if s.store != nil {
		rt, err := s.realtime()
		if err != nil {
			health.Errors = append(health.Errors, "realtime: "+err.Error())
		} else {
			health.Realtime = rt
		}
	}

	if len(health.Errors) > 0 {
		health.Status = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		log.Printf("health: write response: %v", err)
	}
}

func (s *Server) realtime() (*RealtimeState, error) {
	rt := &RealtimeState{}
	latest, err := s.store.GetLatestReading(s.city)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		rt.LatestDate = latest.Date
		rt.LatestPM25 = latest.PM25
		rt.FetchedAt = latest.FetchedAt
		today, err := s.store.GetReadingsForDate(s.city, latest.Date)
		if err != nil {
			return nil, err
		}
		rt.ReadingsToday = len(today)
	}

	failed, err := s.store.GetRecentIngestErrors(recentIngestErrors)
	if err != nil {
		return nil, err
	}
	for _, run := range failed {
		rt.RecentErrors = append(rt.RecentErrors, fmt.Sprintf("%s %s: %s",
			run.StartedAt.Format(time.RFC3339), run.City.String, run.ErrorMessage.String))
	}
	return rt, nil
}
