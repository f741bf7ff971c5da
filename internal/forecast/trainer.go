package forecast

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lox/airwatch/internal/lstm"
	"github.com/lox/airwatch/internal/metrics"
	"github.com/lox/airwatch/internal/models"
	"github.com/lox/airwatch/internal/series"
)

const (
	DefaultWindow  = 30
	DefaultHorizon = 7
)

var ErrSeriesTooShort = errors.New("series too short")

type TrainConfig struct {
	Window       int
	Hidden       []int
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         uint64
}

func DefaultTrainConfig() TrainConfig {
	fit := lstm.DefaultFitConfig()
	return TrainConfig{
		Window:       DefaultWindow,
		Hidden:       []int{64, 32},
		Epochs:       fit.Epochs,
		BatchSize:    fit.BatchSize,
		LearningRate: fit.LearningRate,
		Seed:         fit.Seed,
	}
}

// Train fits the scaler over the whole series, frames it into windows and
// fits a fresh model.
func Train(records []models.DailyRecord, cfg TrainConfig) (*Artifact, error) {
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("invalid window %d", cfg.Window)
	}
	if len(records) <= cfg.Window {
		return nil, fmt.Errorf("%w: %d days, need more than %d", ErrSeriesTooShort, len(records), cfg.Window)
	}

	sorted := make([]models.DailyRecord, len(records))
	copy(sorted, records)
	series.SortByDate(sorted)

	values := series.Values(sorted)
	scaler := series.FitScaler(values)
	inputs, targets := series.Windows(scaler.TransformAll(values), cfg.Window)

	model, err := lstm.New(cfg.Hidden, cfg.Seed)
	if err != nil {
		return nil, err
	}

	log.Printf("train: %d days, %d windows of %d, layers %v", len(sorted), len(inputs), cfg.Window, cfg.Hidden)
	history, err := model.Fit(inputs, targets, lstm.FitConfig{
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		LearningRate: cfg.LearningRate,
		Seed:         cfg.Seed,
		OnEpoch: func(epoch int, loss float64) {
			log.Printf("train: epoch %d/%d loss %.6f", epoch, cfg.Epochs, loss)
			metrics.TrainingLoss.Set(loss)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}

	return &Artifact{
		Version:   artifactVersion,
		Window:    cfg.Window,
		Scaler:    scaler,
		Model:     model,
		TrainedAt: time.Now().UTC(),
		Samples:   len(inputs),
		Epochs:    len(history),
		FinalLoss: history[len(history)-1],
	}, nil
}
