// Package notify sends review and refresh notifications to a Mattermost webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aimd54/component-directory/internal/config"
	"github.com/aimd54/component-directory/internal/models"
	"github.com/aimd54/component-directory/internal/service/policy"
	"github.com/aimd54/component-directory/pkg/logger"
)

const (
	botUsername = "Component Directory"

	colorGood    = "#2eb886"
	colorWarning = "#daa038"
	colorDanger  = "#a30200"
)

// Client handles Mattermost webhook notifications.
type Client struct {
	webhookURL string
	channel    string
	enabled    bool
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new Mattermost client.
func NewClient(cfg *config.MattermostConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		enabled:    cfg.Enabled && cfg.WebhookURL != "",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Message represents a Mattermost message payload.
type Message struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment.
type Attachment struct {
	Fallback  string  `json:"fallback,omitempty"`
	Color     string  `json:"color,omitempty"`
	Title     string  `json:"title,omitempty"`
	TitleLink string  `json:"title_link,omitempty"`
	Text      string  `json:"text,omitempty"`
	Fields    []Field `json:"fields,omitempty"`
	Footer    string  `json:"footer,omitempty"`
}

// Field represents a message field.
type Field struct {
	Short bool   `json:"short"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// SendMessage sends a message to Mattermost.
func (c *Client) SendMessage(msg *Message) error {
	if !c.enabled {
		c.log.Debug().Msg("Mattermost is disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}
	if msg.Username == "" {
		msg.Username = botUsername
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Mattermost: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mattermost returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent message to Mattermost")

	return nil
}

// NotifyReview posts the AI verdict for a package and any status change it caused.
func (c *Client) NotifyReview(pkg *models.Package, decision policy.Decision) error {
	if !c.enabled {
		return nil
	}

	color := colorWarning
	switch pkg.AIReviewStatus {
	case models.AIReviewPassed:
		color = colorGood
	case models.AIReviewFailed:
		color = colorDanger
	}

	passed := 0
	var failing []string
	for _, crit := range pkg.AIReviewCriteria {
		if crit.Passed {
			passed++
		} else {
			failing = append(failing, crit.Name)
		}
	}

	fields := []Field{
		{Short: true, Title: "Verdict", Value: pkg.AIReviewStatus},
		{Short: true, Title: "Criteria", Value: fmt.Sprintf("%d/%d passed", passed, len(pkg.AIReviewCriteria))},
	}
	if len(failing) > 0 {
		fields = append(fields, Field{Title: "Failing", Value: strings.Join(failing, ", ")})
	}
	if decision.Changed {
		fields = append(fields, Field{
			Title: "Status",
			Value: fmt.Sprintf("%s → **%s** (%s)", decision.From, decision.To, decision.Reason),
		})
	}

	return c.SendMessage(&Message{
		Attachments: []Attachment{{
			Fallback:  fmt.Sprintf("AI review of %s: %s", pkg.Name, pkg.AIReviewStatus),
			Color:     color,
			Title:     "AI review: " + pkg.Name,
			TitleLink: pkg.NpmURL,
			Text:      pkg.AIReviewSummary,
			Fields:    fields,
			Footer:    fmt.Sprintf("%s · %s", pkg.AIReviewProvider, pkg.AIReviewModel),
		}},
	})
}

// NotifyRefreshRun posts a summary of a refresh run with its failed packages.
func (c *Client) NotifyRefreshRun(log *models.RefreshLog) error {
	if !c.enabled {
		return nil
	}

	color := colorWarning
	if log.Status == models.RefreshStatusFailed {
		color = colorDanger
	}

	trigger := "Scheduled"
	if log.IsManual {
		trigger = "Manual"
	}

	var text strings.Builder
	for i, e := range log.Errors {
		if i == 10 {
			fmt.Fprintf(&text, "_…and %d more_\n", len(log.Errors)-i)
			break
		}
		fmt.Fprintf(&text, "• `%s`: %s\n", e.PackageName, e.Error)
	}

	return c.SendMessage(&Message{
		Attachments: []Attachment{{
			Fallback: fmt.Sprintf("%s refresh %s: %d of %d packages failed", trigger, log.Status, log.PackagesFailed, log.PackagesProcessed),
			Color:    color,
			Title:    fmt.Sprintf("%s refresh %s", trigger, log.Status),
			Text:     text.String(),
			Fields: []Field{
				{Short: true, Title: "Processed", Value: fmt.Sprintf("%d", log.PackagesProcessed)},
				{Short: true, Title: "Failed", Value: fmt.Sprintf("%d", log.PackagesFailed)},
			},
			Footer: "run " + log.RunID,
		}},
	})
}
