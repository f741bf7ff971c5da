package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/lox/airwatch/internal/metrics"
	"github.com/lox/airwatch/internal/models"
	"github.com/lox/airwatch/internal/store"
)

const (
	sourceOpenAQ   = "openaq"
	endpointLatest = "latest"
)

// Ingester fetches readings and records them, together with an audit row and
// the raw payload, in the store.
type Ingester struct {
	store  *store.Store
	openaq *OpenAQ
}

func NewIngester(store *store.Store, openaq *OpenAQ) *Ingester {
	return &Ingester{store: store, openaq: openaq}
}

// FetchAndStore fetches the latest reading for city. The reading is returned
// even when storing it fails.
func (in *Ingester) FetchAndStore(ctx context.Context, city string) (*models.Reading, error) {
	run, err := in.store.StartIngestRun(sourceOpenAQ, endpointLatest, &city)
	if err != nil {
		log.Printf("ingest: start run for %s: %v", city, err)
	}

	reading, rawJSON, fetchResult, err := in.openaq.FetchLatest(ctx, city)

	if run != nil {
		run.Success = err == nil
		if fetchResult != nil {
			run.HTTPStatus = sql.NullInt64{Int64: int64(fetchResult.HTTPStatus), Valid: fetchResult.HTTPStatus > 0}
			run.ResponseSizeBytes = sql.NullInt64{Int64: int64(fetchResult.ResponseSize), Valid: fetchResult.ResponseSize > 0}
			run.RecordsParsed = sql.NullInt64{Int64: int64(fetchResult.RecordCount), Valid: true}
		}
		if err != nil {
			run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		}
	}

	if len(rawJSON) > 0 && run != nil {
		if _, err := in.store.StoreRawPayload(&run.ID, sourceOpenAQ, endpointLatest, &city, []byte(rawJSON)); err != nil {
			log.Printf("ingest: store raw payload %s: %v", city, err)
		}
	}

	if err != nil {
		in.complete(run)
		return nil, err
	}

	inserted, err := in.store.InsertReading(reading)
	if err != nil {
		if run != nil {
			run.Success = false
			run.ErrorMessage = sql.NullString{String: fmt.Sprintf("insert: %v", err), Valid: true}
		}
		in.complete(run)
		return reading, fmt.Errorf("insert reading: %w", err)
	}

	if run != nil && inserted {
		run.RecordsStored = sql.NullInt64{Int64: 1, Valid: true}
	}
	in.complete(run)
	if inserted {
		metrics.ReadingsIngested.WithLabelValues(city).Inc()
	}

	if reading.PM25 != nil {
		log.Printf("ingest: %s %s pm25=%.1f", city, reading.Date, *reading.PM25)
	} else {
		log.Printf("ingest: %s %s no pm25 measurement", city, reading.Date)
	}
	return reading, nil
}

func (in *Ingester) complete(run *store.IngestRun) {
	if err := in.store.CompleteIngestRun(run); err != nil {
		log.Printf("ingest: complete run: %v", err)
	}
}

// PruneRawPayloads drops archived responses older than retentionDays.
func (in *Ingester) PruneRawPayloads(retentionDays int) {
	n, err := in.store.CleanupOldRawPayloads(retentionDays)
	if err != nil {
		log.Printf("ingest: prune raw payloads: %v", err)
		return
	}
	if n > 0 {
		log.Printf("ingest: pruned %d raw payloads older than %d days", n, retentionDays)
	}
}
