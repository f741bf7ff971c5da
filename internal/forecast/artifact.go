package forecast

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lox/airwatch/internal/lstm"
	"github.com/lox/airwatch/internal/series"
)

const artifactVersion = 1

// Artifact is the persisted output of a training run. The scaler travels
// with the weights so predictions are inverse-transformed with the exact
// bounds the model was trained on.
type Artifact struct {
	Version   int           `json:"version"`
	Window    int           `json:"window"`
	Scaler    series.Scaler `json:"scaler"`
	Model     *lstm.Model   `json:"model"`
	TrainedAt time.Time     `json:"trained_at"`
	Samples   int           `json:"samples"`
	Epochs    int           `json:"epochs"`
	FinalLoss float64       `json:"final_loss"`
}

func SaveArtifact(path string, a *Artifact) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create model dir: %w", err)
		}
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if a.Version != artifactVersion {
		return nil, fmt.Errorf("unsupported model version %d", a.Version)
	}
	if a.Window <= 0 {
		return nil, fmt.Errorf("model has invalid window %d", a.Window)
	}
	if a.Model == nil {
		return nil, fmt.Errorf("model file %s has no weights", path)
	}
	if err := a.Model.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}
