package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dometrics/dometrics/internal/adapter/resilient"
	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/dometrics/dometrics/internal/core/ports"
)

const (
	slackPostMessageURL = "https://slack.com/api/chat.postMessage"
	maxFactorLines      = 3
)

type SlackNotifier struct {
	botToken    string
	channel     string
	mentionTeam string
	apiURL      string
	client      *resilient.Client
}

var _ ports.Notifier = (*SlackNotifier)(nil)

// NewSlackNotifier posts through client, so Slack outages trip its breaker and 5xx
// answers are retried.
func NewSlackNotifier(botToken, channel, mentionTeam string, client *resilient.Client) *SlackNotifier {
	return &SlackNotifier{
		botToken:    botToken,
		channel:     channel,
		mentionTeam: mentionTeam,
		apiURL:      slackPostMessageURL,
		client:      client,
	}
}

// NotifyHighRisk sends alert for a domain whose risk score crossed the threshold
func (s *SlackNotifier) NotifyHighRisk(alert ports.ScoreAlert) error {
	payload := SlackMessage{
		Channel: s.channel,
		Blocks:  s.buildHighRiskBlocks(alert),
		Text:    fmt.Sprintf("🚨 High risk domain: %s (risk %.0f)", alert.Domain, alert.Risk),
	}

	return s.sendMessage(payload)
}

// NotifyExpiring sends alert for a domain close to expiry
func (s *SlackNotifier) NotifyExpiring(alert ports.ScoreAlert) error {
	payload := SlackMessage{
		Channel: s.channel,
		Blocks:  s.buildExpiringBlocks(alert),
		Text:    fmt.Sprintf("⏳ %s expires in %.0f days", alert.Domain, alert.DaysToExpiry),
	}

	return s.sendMessage(payload)
}

// Build Slack blocks for a high risk domain
func (s *SlackNotifier) buildHighRiskBlocks(alert ports.ScoreAlert) []SlackBlock {
	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackText{
				Type: "plain_text",
				Text: "🚨 High Risk Domain",
			},
		},
		{
			Type: "section",
			Fields: []SlackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Domain*\n`%s`", alert.Domain)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Risk*\n%.1f/100", alert.Risk)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Forecast*\n%.1f/100", alert.Forecast)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Value*\n$%s (%s)", formatDollars(alert.CurrentValue), alert.ValuationSource)},
			},
		},
	}

	if len(alert.TopFactors) > 0 {
		blocks = append(blocks,
			SlackBlock{Type: "divider"},
			SlackBlock{
				Type: "section",
				Text: &SlackText{
					Type: "mrkdwn",
					Text: "*🔍 Top Risk Factors*\n" + formatFactors(alert.TopFactors),
				},
			},
		)
	}

	return append(blocks, s.footer(alert)...)
}

// Build Slack blocks for an expiring domain
func (s *SlackNotifier) buildExpiringBlocks(alert ports.ScoreAlert) []SlackBlock {
	urgency := "🟡"
	if alert.DaysToExpiry < 7 {
		urgency = "🔴"
	}

	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackText{
				Type: "plain_text",
				Text: fmt.Sprintf("%s Domain Expiring Soon", urgency),
			},
		},
		{
			Type: "section",
			Fields: []SlackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Domain*\n`%s`", alert.Domain)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Days to Expiry*\n%.1f", alert.DaysToExpiry)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Rarity*\n%.1f/100", alert.Rarity)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Value*\n$%s", formatDollars(alert.CurrentValue))},
			},
		},
		{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: "*✅ Recommended Actions*\n• Renew the domain\n• Confirm auto-renew is enabled at the registrar",
			},
		},
	}

	return append(blocks, s.footer(alert)...)
}

func (s *SlackNotifier) footer(alert ports.ScoreAlert) []SlackBlock {
	blocks := []SlackBlock{
		{
			Type: "context",
			Elements: []SlackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("Source: *%s*", alert.Source)},
			},
		},
	}

	if s.mentionTeam != "" {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("🔔 %s", s.mentionTeam),
			},
		})
	}

	return blocks
}

func formatFactors(factors []domain.ScoreFactor) string {
	var sb strings.Builder
	for i, f := range factors {
		if i >= maxFactorLines {
			break
		}
		sb.WriteString(fmt.Sprintf("• *%s* (%+.1f): %s\n", f.Name, f.Contribution, f.Description))
	}
	return sb.String()
}

func formatDollars(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	if len(s) <= 3 {
		return s
	}
	var sb strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		sb.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}

// Send message to Slack
func (s *SlackNotifier) sendMessage(msg SlackMessage) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.botToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack message: %w", err)
	}
	defer resp.Body.Close()

	// chat.postMessage reports most failures with a 200 and ok=false
	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("slack API error: %s", result.Error)
	}

	return nil
}

// Slack API structures

type SlackMessage struct {
	Channel string       `json:"channel"`
	Blocks  []SlackBlock `json:"blocks"`
	Text    string       `json:"text"` // Fallback text
}

type SlackBlock struct {
	Type     string      `json:"type"`
	Text     *SlackText  `json:"text,omitempty"`
	Fields   []SlackText `json:"fields,omitempty"`
	Elements []SlackText `json:"elements,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
