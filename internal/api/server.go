package api

import (
	"context"
	"html/template"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/airwatch/internal/store"
)

// Server is the AQI dashboard. The data file is re-read on every request so
// each page reflects the file as it is on disk.
type Server struct {
	store    *store.Store
	dataPath string
	city     string
	port     string
	tmpl     *template.Template
}

// NewServer builds a dashboard over the CSV at dataPath. The store is optional
// and only feeds the forecast panel.
func NewServer(store *store.Store, dataPath, city, port string) *Server {
	return &Server{
		store:    store,
		dataPath: dataPath,
		city:     city,
		port:     port,
		tmpl:     newTemplates(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/chart/trend.png", s.handleTrendChart)
	mux.HandleFunc("/chart/categories.png", s.handleCategoryChart)
	mux.HandleFunc("/download.csv", s.handleDownload)
	mux.HandleFunc("/api/series", s.handleAPISeries)
	mux.HandleFunc("/api/forecast", s.handleAPIForecast)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           handlers.LoggingHandler(os.Stdout, s.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) load(r *http.Request) (*View, error) {
	ds, err := LoadDataset(s.dataPath)
	if err != nil {
		return nil, err
	}
	return ds.Apply(ParseFilter(r.URL.Query())), nil
}
