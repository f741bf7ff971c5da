package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/lox/airwatch/internal/advisory"
	"github.com/lox/airwatch/internal/api"
	"github.com/lox/airwatch/internal/forecast"
	"github.com/lox/airwatch/internal/ingest"
	"github.com/lox/airwatch/internal/models"
	"github.com/lox/airwatch/internal/series"
)

type OpenAQFlags struct {
	BaseURL string `help:"Air-quality API base URL." default:"https://api.openaq.org/v2" env:"OPENAQ_BASE_URL"`
	APIKey  string `help:"Air-quality API key." env:"OPENAQ_API_KEY"`
}

type FetchCmd struct {
	OpenAQFlags `embed:""`
}

func (c *FetchCmd) Run(g *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := ingest.NewOpenAQ(c.BaseURL, c.APIKey, g.location())
	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	var reading *models.Reading
	if st != nil {
		reading, err = ingest.NewIngester(st, client).FetchAndStore(ctx, g.City)
	} else {
		reading, _, _, err = client.FetchLatest(ctx, g.City)
	}
	if err != nil {
		return err
	}

	out := struct {
		Date string   `json:"date"`
		City string   `json:"city"`
		PM25 *float64 `json:"pm25"`
	}{reading.Date, reading.City, reading.PM25}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

type NormalizeCmd struct {
	Source string `arg:"" optional:"" help:"Raw CSV path, http(s) or ftp URL." default:"data/processed_aqi_data.csv"`
	Output string `short:"o" help:"Daily series output path." default:"data/delhi_aqi.csv" type:"path"`
}

func (c *NormalizeCmd) Run(g *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	rc, err := ingest.OpenSource(ctx, c.Source)
	if err != nil {
		return err
	}
	defer rc.Close()

	result, err := ingest.Normalize(rc, ingest.NormalizeOptions{City: g.City})
	if err != nil {
		return err
	}
	if err := series.Save(c.Output, result.Records); err != nil {
		return err
	}

	log.Printf("normalize: converted %s to daily AQI", c.Source)
	log.Printf("normalize: saved %s", c.Output)
	result.LogPreview(10)
	return nil
}

type ServeCmd struct {
	OpenAQFlags `embed:""`

	Data string        `help:"Daily AQI CSV to visualise." default:"data/delhi_aqi.csv" type:"path"`
	Port string        `help:"HTTP server port." default:"8080" env:"PORT"`
	Poll time.Duration `help:"Fetch the latest reading at this interval (requires --db). Zero disables." default:"0s"`
}

func (c *ServeCmd) Run(g *Globals) error {
	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if c.Poll > 0 {
		if st == nil {
			return errors.New("--poll requires --db")
		}
		poller := ingest.NewPoller(ingest.NewIngester(st, ingest.NewOpenAQ(c.BaseURL, c.APIKey, g.location())), []string{g.City}, c.Poll)
		if err := poller.Start(); err != nil {
			return fmt.Errorf("start poller: %w", err)
		}
		defer poller.Stop()
	}

	server := api.NewServer(st, c.Data, g.City, c.Port)
	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}

type TrainCmd struct {
	Data         string  `help:"Daily AQI CSV." default:"data/delhi_aqi.csv" type:"path"`
	Model        string  `help:"Model artifact output path." default:"model/aqi_lstm.json" type:"path"`
	Window       int     `help:"Input window length in days." default:"30"`
	Epochs       int     `help:"Training epochs." default:"20"`
	BatchSize    int     `help:"Mini-batch size." default:"32"`
	LearningRate float64 `help:"Adam learning rate." default:"0.001"`
	Seed         uint64  `help:"Random seed for initialisation and shuffling." default:"42"`
}

func (c *TrainCmd) Run(g *Globals) error {
	records, err := series.Load(c.Data)
	if err != nil {
		return err
	}

	cfg := forecast.DefaultTrainConfig()
	cfg.Window = c.Window
	cfg.Epochs = c.Epochs
	cfg.BatchSize = c.BatchSize
	cfg.LearningRate = c.LearningRate
	cfg.Seed = c.Seed

	artifact, err := forecast.Train(records, cfg)
	if err != nil {
		return err
	}
	if err := forecast.SaveArtifact(c.Model, artifact); err != nil {
		return err
	}
	log.Printf("train: model trained and saved to %s (%d samples, loss %.6f)", c.Model, artifact.Samples, artifact.FinalLoss)
	return nil
}

type PredictCmd struct {
	Data      string `help:"Daily AQI CSV." default:"data/delhi_aqi.csv" type:"path"`
	Model     string `help:"Model artifact path." default:"model/aqi_lstm.json" type:"path"`
	Horizon   int    `help:"Days to forecast." default:"7"`
	Out       string `help:"Optional CSV output path for the forecast." type:"path"`
	OpenAIKey string `name:"openai-key" help:"OpenAI API key for a written advisory." env:"OPENAI_API_KEY"`
}

func (c *PredictCmd) Run(g *Globals) error {
	artifact, err := forecast.LoadArtifact(c.Model)
	if err != nil {
		return err
	}
	records, err := series.Load(c.Data)
	if err != nil {
		return err
	}
	result, err := forecast.Predict(artifact, records, c.Horizon)
	if err != nil {
		return err
	}

	values := make([]string, len(result.Points))
	for i, v := range result.Values() {
		values[i] = strconv.FormatFloat(v, 'f', 2, 64)
	}
	fmt.Printf("NEXT %d DAYS AQI: [%s]\n", c.Horizon, strings.Join(values, " "))

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tAQI\tCATEGORY")
	for _, p := range result.Points {
		fmt.Fprintf(tw, "%s\t%.0f\t%s\n", p.Date, p.AQI, p.Category)
	}
	tw.Flush()

	text := c.writeAdvisory(g.City, result)
	if text != "" {
		fmt.Println()
		fmt.Println(text)
	}

	if c.Out != "" {
		if err := writeForecastCSV(c.Out, result); err != nil {
			return err
		}
		log.Printf("predict: wrote %s", c.Out)
	}

	st, closeDB, err := g.openStore()
	if err != nil {
		return err
	}
	defer closeDB()
	if st == nil {
		return nil
	}

	lastObserved, err := time.Parse(series.DateLayout, result.LastObserved)
	if err != nil {
		return err
	}
	run := &models.ForecastRun{
		GeneratedAt:  time.Now().UTC(),
		ModelPath:    c.Model,
		SourcePath:   c.Data,
		Window:       artifact.Window,
		Horizon:      c.Horizon,
		LastObserved: lastObserved,
		Advisory:     sql.NullString{String: text, Valid: text != ""},
	}
	if err := st.InsertForecastRun(run, result.Records("")); err != nil {
		return fmt.Errorf("store forecast: %w", err)
	}
	log.Printf("predict: stored forecast run %s", run.ID)
	return nil
}

func (c *PredictCmd) writeAdvisory(city string, result *forecast.Result) string {
	if c.OpenAIKey == "" {
		return advisory.Fallback(result)
	}
	a, err := advisory.NewAdvisor(c.OpenAIKey)
	if err != nil {
		log.Printf("predict: advisory disabled: %v", err)
		return advisory.Fallback(result)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	text, err := a.Write(ctx, city, result)
	if err != nil {
		log.Printf("predict: advisory: %v", err)
		return advisory.Fallback(result)
	}
	return text
}

func writeForecastCSV(path string, result *forecast.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	cw := csv.NewWriter(f)
	cw.Write([]string{"date", "aqi", "category"})
	for _, p := range result.Points {
		cw.Write([]string{p.Date, strconv.FormatFloat(p.AQI, 'f', 2, 64), string(p.Category)})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
