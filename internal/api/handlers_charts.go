package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/lox/airwatch/internal/chart"
	"github.com/lox/airwatch/internal/metrics"
)

func (s *Server) handleTrendChart(w http.ResponseWriter, r *http.Request) {
	metrics.DashboardRequests.WithLabelValues("trend").Inc()
	view, err := s.load(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !view.HasDates {
		http.Error(w, "no date column found, cannot plot trend over time", http.StatusNotFound)
		return
	}

	points := make([]chart.TrendPoint, len(view.Rows))
	for i, row := range view.Rows {
		points[i] = chart.TrendPoint{Date: row.Date, AQI: row.AQI}
	}
	data, err := chart.Trend(points, fmt.Sprintf("AQI over time (%s)", view.Dataset.AQIColumn))
	s.writePNG(w, data, err)
}

func (s *Server) handleCategoryChart(w http.ResponseWriter, r *http.Request) {
	metrics.DashboardRequests.WithLabelValues("categories").Inc()
	view, err := s.load(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	counts := view.CategoryCounts()
	bars := make([]chart.Bar, len(counts))
	for i, c := range counts {
		bars[i] = chart.Bar{Label: string(c.Category), Value: float64(c.Count), Color: c.Category.RGBA()}
	}
	data, err := chart.Bars(bars, "Category counts")
	s.writePNG(w, data, err)
}

func (s *Server) writePNG(w http.ResponseWriter, data []byte, err error) {
	if err != nil {
		log.Printf("dashboard: render chart: %v", err)
		http.Error(w, "chart rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}
