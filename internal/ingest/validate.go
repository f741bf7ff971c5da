package ingest

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/lox/airwatch/internal/models"
)

var validate = validator.New()

// ValidateReading rejects readings with a malformed date, an empty city or
// a negative concentration.
func ValidateReading(r *models.Reading) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid reading: %w", err)
	}
	return nil
}
