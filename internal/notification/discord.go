package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string
	Enabled    bool
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(notification *Notification) error {
	if !d.enabled {
		return nil
	}

	var embed map[string]interface{}
	if notification.Type == NotifyDecision && notification.Alert != nil && notification.Decision != nil {
		embed = d.decisionEmbed(notification)
	} else {
		color := 0x3498db
		if notification.Type == NotifyError {
			color = 0xff0000
		}
		embed = map[string]interface{}{
			"title":       notification.Title,
			"description": notification.Message,
			"color":       color,
			"timestamp":   notification.Timestamp.Format(time.RFC3339),
		}
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}

// decisionEmbed builds the rich embed for an ensemble decision: a details
// section from the alert, the recommendation with trade levels, and the
// consensus reasoning as notes.
func (d *DiscordNotifier) decisionEmbed(n *Notification) map[string]interface{} {
	a := n.Alert
	dec := n.Decision

	interval := a.Interval
	if interval == "" {
		interval = "?"
	}
	pattern := a.Pattern
	if pattern == "" {
		pattern = "?"
	}

	var detail strings.Builder
	fmt.Fprintf(&detail, "**Timeframe:** %s\n**Current Price:** %s", interval, fmtLevel(a.Price))
	if a.IBHigh != nil {
		fmt.Fprintf(&detail, "\n**IB High:** %s\n**IB Low:** %s", fmtLevel(a.IBHigh), fmtLevel(a.IBLow))
	}
	if a.BoxHigh != nil {
		fmt.Fprintf(&detail, "\n**Box High:** %s\n**Box Low:** %s", fmtLevel(a.BoxHigh), fmtLevel(a.BoxLow))
	}

	rep := dec.Representative()
	var entry, stop, tp1, tp2 *float64
	var singleOption, verticalSpread, notes string
	if rep != nil {
		entry, stop, tp1, tp2 = rep.Entry, rep.Stop, rep.TP1, rep.TP2
		singleOption = rep.SingleOption
		verticalSpread = rep.VerticalSpread
		notes = rep.Notes
	}

	recommendation := fmt.Sprintf(
		"**Direction:** %s\n**Confidence:** %s %s\n**Entry:** %s\n**Stop:** %s\n**TP1:** %s\n**TP2:** %s\n**Single Option:** %s\n**Vertical Spread:** %s",
		dec.Direction,
		confidenceEmoji(dec.Confidence), dec.Confidence,
		fmtLevel(entry), fmtLevel(stop), fmtLevel(tp1), fmtLevel(tp2),
		orNA(singleOption), orNA(verticalSpread),
	)

	if notes == "" {
		notes = dec.Reasoning
	}

	fields := []map[string]interface{}{
		{"name": "📊 Details", "value": detail.String(), "inline": false},
		{"name": "🎯 Recommendation", "value": recommendation, "inline": false},
		{"name": "📝 Notes", "value": orNA(notes), "inline": false},
	}

	return map[string]interface{}{
		"title":     fmt.Sprintf("%s %s %s", directionEmoji(dec.Direction), a.Ticker, pattern),
		"color":     directionColor(dec.Direction),
		"fields":    fields,
		"footer":    map[string]interface{}{"text": "TradingView AI Agent"},
		"timestamp": n.Timestamp.Format(time.RFC3339),
	}
}
