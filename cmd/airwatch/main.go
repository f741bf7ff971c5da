package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/airwatch/internal/store"
)

// Globals are flags shared by every command.
type Globals struct {
	DB       string `help:"Path to the SQLite run log. Empty disables it." env:"AIRWATCH_DB"`
	City     string `help:"City to fetch and filter on." default:"Delhi" env:"AIRWATCH_CITY"`
	Timezone string `help:"Time zone used for reading dates." default:"Asia/Kolkata" env:"AIRWATCH_TZ"`
}

type CLI struct {
	Globals

	Fetch     FetchCmd     `cmd:"" help:"Fetch the latest PM2.5 reading for the city."`
	Normalize NormalizeCmd `cmd:"" help:"Convert a raw AQI CSV into the daily series."`
	Serve     ServeCmd     `cmd:"" help:"Serve the AQI dashboard."`
	Train     TrainCmd     `cmd:"" help:"Train the forecasting model on the daily series."`
	Predict   PredictCmd   `cmd:"" help:"Forecast the next days of AQI."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("airwatch"),
		kong.Description("Air quality ingestion, dashboard and forecasting."),
		kong.UsageOnError(),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)
	if err := ctx.Run(&cli.Globals); err != nil {
		log.Fatalf("%s: %v", ctx.Command(), err)
	}
}

func (g *Globals) location() *time.Location {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		log.Printf("Warning: could not load %s timezone, using UTC: %v", g.Timezone, err)
		return time.UTC
	}
	return loc
}

// openStore returns nil when no database path is configured.
func (g *Globals) openStore() (*store.Store, func(), error) {
	if g.DB == "" {
		return nil, func() {}, nil
	}

	db, err := sql.Open("sqlite", g.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db, g.location())
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, func() { db.Close() }, nil
}
