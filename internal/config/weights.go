package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dometrics/dometrics/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// LoadWeights returns the default weights when path is empty, otherwise the full weight
// set decoded from a YAML file. The file replaces the defaults as a whole; it must be
// complete and valid.
func LoadWeights(path string) (domain.ScoringWeights, error) {
	if path == "" {
		return domain.DefaultWeights(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ScoringWeights{}, fmt.Errorf("failed to read weights file: %w", err)
	}

	return ParseWeights(data)
}

// ParseWeights decodes and validates a YAML weight set. Unknown keys are rejected.
func ParseWeights(data []byte) (domain.ScoringWeights, error) {
	var w domain.ScoringWeights
	if err := decodeStrict(data, &w); err != nil {
		return domain.ScoringWeights{}, fmt.Errorf("failed to parse weights: %w", err)
	}
	if w.Version == "" {
		return domain.ScoringWeights{}, fmt.Errorf("weights file must set a version")
	}
	if err := w.Validate(); err != nil {
		return domain.ScoringWeights{}, fmt.Errorf("invalid weights %s: %w", w.Version, err)
	}
	return w, nil
}

// MarshalWeights renders a weight set in the same YAML layout LoadWeights reads.
func MarshalWeights(w domain.ScoringWeights) ([]byte, error) {
	return yaml.Marshal(w)
}

func decodeStrict(data []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}
