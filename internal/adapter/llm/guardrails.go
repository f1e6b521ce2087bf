package llm

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/dometrics/dometrics/internal/core/ports"
	"github.com/dometrics/dometrics/internal/metrics"
	"github.com/rs/zerolog"
)

// Guardrails provides rule-based checks around the LLM call: names that can not be
// registered are never sent, and implausible answers are pulled back before the engine
// sanitizes them.

// ErrSkipped is returned when a pre-LLM guardrail decides not to call the model.
var ErrSkipped = errors.New("skipped by guardrail")

const maxLabelLength = 63

// GuardrailConfig controls guardrail behavior
type GuardrailConfig struct {
	MaxCurrentValue             float64 // Upper bound for current_value (default: 10,000,000)
	MaxProjectionRatio          float64 // projected_value may not exceed current × ratio (default: 5)
	MaxConfidenceWithoutReasons float64 // Confidence cap when the model gives no reasoning (default: 60)
}

// DefaultGuardrailConfig returns the default configuration
func DefaultGuardrailConfig() GuardrailConfig {
	return GuardrailConfig{
		MaxCurrentValue:             10_000_000,
		MaxProjectionRatio:          5,
		MaxConfidenceWithoutReasons: 60,
	}
}

// ApplyPreLLMGuardrails returns an error wrapping ErrSkipped when the request is not
// worth a model call.
func ApplyPreLLMGuardrails(req ports.ValuationRequest) error {
	name := strings.ToLower(strings.TrimSpace(req.Name))
	tld := strings.ToLower(strings.TrimSpace(req.TLD))

	var reason string
	switch {
	case name == "" || tld == "":
		reason = "missing name or TLD"
	case len(name) > maxLabelLength:
		reason = fmt.Sprintf("label longer than %d characters", maxLabelLength)
	case strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-"):
		reason = "label starts or ends with a hyphen"
	case !isValidLabel(name):
		reason = "label contains invalid characters"
	}

	if reason == "" {
		return nil
	}
	metrics.RecordGuardrail("pre", "skip")
	return fmt.Errorf("%w: %s", ErrSkipped, reason)
}

// ApplyPostLLMGuardrails caps implausible values in place and returns the result.
func ApplyPostLLMGuardrails(result *domain.OracleValuation, config GuardrailConfig, log zerolog.Logger) *domain.OracleValuation {
	// Guardrail 1: current value ceiling
	if present(result.CurrentValue) && *result.CurrentValue > config.MaxCurrentValue {
		log.Warn().Float64("current_value", *result.CurrentValue).Msg("guardrail: capping current value")
		metrics.RecordGuardrail("post", "cap")
		result.CurrentValue = float64Ptr(config.MaxCurrentValue)
	}

	// Guardrail 2: projection may not run away from the current value
	if present(result.CurrentValue) && present(result.ProjectedValue) && *result.CurrentValue > 0 {
		ceiling := *result.CurrentValue * config.MaxProjectionRatio
		if *result.ProjectedValue > ceiling {
			log.Warn().
				Float64("projected_value", *result.ProjectedValue).
				Float64("ceiling", ceiling).
				Msg("guardrail: capping projected value")
			metrics.RecordGuardrail("post", "cap")
			result.ProjectedValue = float64Ptr(ceiling)
		}
	}

	// Guardrail 3: an unexplained answer does not get high confidence
	result.Reasoning = strings.TrimSpace(result.Reasoning)
	if result.Reasoning == "" && present(result.Confidence) && *result.Confidence > config.MaxConfidenceWithoutReasons {
		log.Warn().Float64("confidence", *result.Confidence).Msg("guardrail: no reasoning, downgrading confidence")
		metrics.RecordGuardrail("post", "downgrade")
		result.Confidence = float64Ptr(config.MaxConfidenceWithoutReasons)
	}

	// Guardrail 4: unnamed factors are useless as explainers
	factors := result.Factors[:0]
	for _, f := range result.Factors {
		if strings.TrimSpace(f.Name) == "" {
			continue
		}
		factors = append(factors, f)
	}
	result.Factors = factors

	return result
}

// Helper functions

func isValidLabel(label string) bool {
	for _, r := range label {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}

func present(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

func float64Ptr(v float64) *float64 {
	return &v
}
