package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/lox/airwatch/internal/aqi"
	"github.com/lox/airwatch/internal/metrics"
)

type SeriesPoint struct {
	Date     string       `json:"date,omitempty"`
	AQI      float64      `json:"aqi"`
	Category aqi.Category `json:"category"`
}

type SeriesResponse struct {
	DateColumn string        `json:"date_column,omitempty"`
	AQIColumn  string        `json:"aqi_column"`
	Start      string        `json:"start,omitempty"`
	End        string        `json:"end,omitempty"`
	Category   string        `json:"category"`
	KPIs       KPIs          `json:"kpis"`
	Points     []SeriesPoint `json:"points"`
}

func (s *Server) handleAPISeries(w http.ResponseWriter, r *http.Request) {
	metrics.DashboardRequests.WithLabelValues("api_series").Inc()
	view, err := s.load(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := SeriesResponse{
		DateColumn: view.Dataset.DateColumn,
		AQIColumn:  view.Dataset.AQIColumn,
		Start:      view.Start,
		End:        view.End,
		Category:   view.Category,
		KPIs:       view.KPIs,
		Points:     make([]SeriesPoint, 0, len(view.Rows)),
	}
	for _, row := range view.Rows {
		p := SeriesPoint{AQI: row.AQI, Category: row.Category}
		if row.HasDate {
			p.Date = row.Date.Format(dateLayout)
		}
		resp.Points = append(resp.Points, p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleAPIForecast(w http.ResponseWriter, r *http.Request) {
	metrics.DashboardRequests.WithLabelValues("api_forecast").Inc()
	panel, err := s.latestForecast()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if panel == nil {
		http.Error(w, "no forecast available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(panel)
}

// handleDownload returns the filtered rows with their original columns plus
// the derived category.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	metrics.DashboardRequests.WithLabelValues("download").Inc()
	view, err := s.load(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(s.city)))

	cw := csv.NewWriter(w)
	cw.Write(append(append([]string{}, view.Dataset.Columns...), CategoryColumn))
	for _, row := range view.Rows {
		cw.Write(append(append([]string{}, row.Values...), string(row.Category)))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Printf("dashboard: write download: %v", err)
	}
}

func downloadName(city string) string {
	city = strings.ToLower(strings.TrimSpace(city))
	city = strings.Join(strings.Fields(city), "_")
	if city == "" {
		city = "city"
	}
	return fmt.Sprintf("filtered_%s_aqi.csv", city)
}
