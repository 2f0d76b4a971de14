package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/valter-silva-au/growth-brain/pkg/models"
)

// Notifier sends threshold alert notifications to an external channel.
type Notifier interface {
	Notify(alerts []models.Alert) error
}

// slackNotifier posts alert digests to a Slack incoming webhook.
type slackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a Notifier that posts to the given webhook URL.
func NewSlackNotifier(webhookURL string) Notifier {
	return &slackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{},
	}
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify posts the given alerts to the webhook. Info-level alerts are
// filtered out; an empty digest makes no request and returns nil.
func (s *slackNotifier) Notify(alerts []models.Alert) error {
	notable := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.Severity != models.SeverityInfo && !a.Resolved {
			notable = append(notable, a)
		}
	}
	if len(notable) == 0 {
		return nil
	}

	msg := s.buildMessage(notable)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling slack message: %w", err)
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *slackNotifier) buildMessage(alerts []models.Alert) slackMessage {
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "Growth Brain Alert Digest"},
		},
	}

	for i, alert := range alerts {
		if i > 0 {
			blocks = append(blocks, slackBlock{Type: "divider"})
		}
		text := fmt.Sprintf("%s *[%s]* %s\nmetric `%s` at %.2f (threshold %.2f)\n_%s_",
			severityEmoji(alert.Severity),
			strings.ToUpper(string(alert.Severity)),
			alert.Message,
			alert.Metric,
			alert.Value,
			alert.Threshold,
			alert.Time.Format("2006-01-02 15:04 UTC"),
		)
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: text},
		})
	}

	return slackMessage{Blocks: blocks}
}

func severityEmoji(severity models.AlertSeverity) string {
	switch severity {
	case models.SeverityCritical:
		return "\U0001f6a8"
	case models.SeverityError:
		return "\U0001f534"
	case models.SeverityWarning:
		return "\U0001f7e1"
	default:
		return "\U0001f535"
	}
}
