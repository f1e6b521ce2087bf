package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dometrics/dometrics/internal/adapter/resilient"
	"github.com/dometrics/dometrics/internal/config"
	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/dometrics/dometrics/internal/core/ports"
	"github.com/dometrics/dometrics/internal/metrics"
	"github.com/rs/zerolog"
)

const clientName = "llm-oracle"

// ErrDisabled is returned by Valuate when the oracle is not configured.
var ErrDisabled = errors.New("LLM valuation is not enabled")

// valuationResponse is the JSON object the model is asked to produce. Every number is a
// pointer so a missing field can be told apart from zero.
type valuationResponse struct {
	CurrentValue   *float64 `json:"current_value"`
	ProjectedValue *float64 `json:"projected_value"`
	Confidence     *float64 `json:"confidence"`
	Breakdown      struct {
		Keyword      *float64 `json:"keyword"`
		Brandability *float64 `json:"brandability"`
		Memorability *float64 `json:"memorability"`
		SEO          *float64 `json:"seo"`
	} `json:"breakdown"`
	Factors []struct {
		Name        string  `json:"name"`
		Impact      float64 `json:"impact"`
		Description string  `json:"description"`
	} `json:"factors"`
	Reasoning string `json:"reasoning"`
}

// Valuator asks a chat-completions endpoint for a dollar valuation of a domain.
type Valuator struct {
	apiURL     string
	apiKey     string
	model      string
	client     *resilient.Client
	enabled    bool
	guardrails GuardrailConfig
	log        zerolog.Logger
}

var _ ports.ValuationOracle = (*Valuator)(nil)

// NewValuator creates a Valuator. It is enabled only when cfg.Enabled is set and an API
// key is present.
func NewValuator(cfg config.LLMConfig, log zerolog.Logger) *Valuator {
	return &Valuator{
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		client:     resilient.New(clientName, cfg.Timeout, cfg.Resilience.ToClientConfig(), log),
		enabled:    cfg.Enabled && cfg.APIKey != "",
		guardrails: DefaultGuardrailConfig(),
		log:        log.With().Str("component", "llm_valuator").Logger(),
	}
}

func (v *Valuator) Name() string { return clientName }

// IsEnabled returns whether LLM valuation is enabled
func (v *Valuator) IsEnabled() bool {
	return v.enabled
}

// Valuate returns the model's raw valuation. Range checks beyond the guardrails are
// left to domain.SanitizeOracleValuation.
func (v *Valuator) Valuate(ctx context.Context, req ports.ValuationRequest) (*domain.OracleValuation, error) {
	if !v.enabled {
		return nil, ErrDisabled
	}

	if err := ApplyPreLLMGuardrails(req); err != nil {
		return nil, err
	}

	response, err := v.callLLM(ctx, v.buildPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("failed to call LLM: %w", err)
	}

	result, err := v.parseResponse(response)
	if err != nil {
		metrics.RecordUpstreamError(clientName, "parse")
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	result = ApplyPostLLMGuardrails(result, v.guardrails, v.log)

	v.log.Debug().
		Str("domain", req.Name+"."+req.TLD).
		Bool("has_current", result.CurrentValue != nil).
		Int("factors", len(result.Factors)).
		Msg("LLM valuation received")

	return result, nil
}

func (v *Valuator) buildPrompt(req ports.ValuationRequest) string {
	var sb strings.Builder

	sb.WriteString("You are a domain name appraiser. Estimate the market value of the following domain and explain the main drivers.\n\n")

	sb.WriteString(fmt.Sprintf("**Domain:** %s.%s\n", req.Name, req.TLD))
	sb.WriteString(fmt.Sprintf("**Open offers:** %d\n", req.OfferCount))
	sb.WriteString(fmt.Sprintf("**Events (7 days / 30 days):** %d / %d\n", req.Activity7d, req.Activity30d))
	sb.WriteString(fmt.Sprintf("**Days to expiry:** %.0f\n\n", req.DaysToExpiry))

	sb.WriteString("**Computed scores (0-100):**\n")
	sb.WriteString(fmt.Sprintf("- Risk: %.1f (higher is riskier)\n", req.Risk))
	sb.WriteString(fmt.Sprintf("- Rarity: %.1f\n", req.Rarity))
	sb.WriteString(fmt.Sprintf("- Momentum: %.1f (50 is flat)\n\n", req.Momentum))

	sb.WriteString("**Task:**\n")
	sb.WriteString("Respond with a single JSON object in the following format:\n")
	sb.WriteString("```json\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"current_value\": USD,\n")
	sb.WriteString("  \"projected_value\": USD in 6 months,\n")
	sb.WriteString("  \"confidence\": 0-100,\n")
	sb.WriteString("  \"breakdown\": {\"keyword\": 0-100, \"brandability\": 0-100, \"memorability\": 0-100, \"seo\": 0-100},\n")
	sb.WriteString("  \"factors\": [{\"name\": \"...\", \"impact\": USD, \"description\": \"...\"}],\n")
	sb.WriteString("  \"reasoning\": \"One or two sentences\"\n")
	sb.WriteString("}\n")
	sb.WriteString("```\n\n")

	sb.WriteString("**Important Guidelines:**\n")
	sb.WriteString("1. Short names and exact keyword matches are worth the most\n")
	sb.WriteString("2. Offers and recent trading activity are evidence of real demand\n")
	sb.WriteString("3. A domain close to expiry or with a high risk score is worth less\n")
	sb.WriteString("4. Be conservative: most domains are worth under $1,000\n")

	return sb.String()
}

func (v *Valuator) callLLM(ctx context.Context, prompt string) (string, error) {
	requestBody := map[string]interface{}{
		"model": v.model,
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": "You are an expert domain name appraiser. Provide valuations in JSON format.",
			},
			{
				"role":    "user",
				"content": prompt,
			},
		},
		"temperature": 0.2,
		"max_tokens":  800,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.apiURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", v.apiKey))

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("LLM API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}

	return response.Choices[0].Message.Content, nil
}

func (v *Valuator) parseResponse(response string) (*domain.OracleValuation, error) {
	jsonStr := extractJSON(response)

	var parsed valuationResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w (response: %s)", err, jsonStr)
	}

	result := &domain.OracleValuation{
		CurrentValue:   parsed.CurrentValue,
		ProjectedValue: parsed.ProjectedValue,
		Confidence:     parsed.Confidence,
		Keyword:        parsed.Breakdown.Keyword,
		Brandability:   parsed.Breakdown.Brandability,
		Memorability:   parsed.Breakdown.Memorability,
		SEO:            parsed.Breakdown.SEO,
		Reasoning:      parsed.Reasoning,
	}
	for _, f := range parsed.Factors {
		result.Factors = append(result.Factors, domain.ScoreFactor{
			Name:         f.Name,
			Value:        f.Impact,
			Weight:       1,
			Contribution: f.Impact,
			Description:  f.Description,
		})
	}

	return result, nil
}

// extractJSON strips a markdown code fence if the model wrapped its answer in one.
func extractJSON(response string) string {
	jsonStr := response
	if idx := strings.Index(response, "```json"); idx != -1 {
		jsonStr = response[idx+7:]
		if endIdx := strings.Index(jsonStr, "```"); endIdx != -1 {
			jsonStr = jsonStr[:endIdx]
		}
	} else if idx := strings.Index(response, "```"); idx != -1 {
		jsonStr = response[idx+3:]
		if endIdx := strings.Index(jsonStr, "```"); endIdx != -1 {
			jsonStr = jsonStr[:endIdx]
		}
	}
	return strings.TrimSpace(jsonStr)
}
