package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tradingview-agent/internal/alert"
	"tradingview-agent/internal/ensemble"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifyDecision NotificationType = "decision"
	NotifyError    NotificationType = "error"
	NotifyInfo     NotificationType = "info"
)

// Notification represents a notification message
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Alert     *alert.Alert
	Decision  *ensemble.EnsembleDecision
	Timestamp time.Time
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager manages multiple notification providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates a new notification manager
func NewManager() *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   true,
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendDecision sends an ensemble decision notification
func (m *Manager) SendDecision(a *alert.Alert, d *ensemble.EnsembleDecision) error {
	return m.Send(&Notification{
		Type:      NotifyDecision,
		Title:     fmt.Sprintf("%s %s %s", directionEmoji(d.Direction), a.Ticker, a.Pattern),
		Message:   d.Reasoning,
		Alert:     a,
		Decision:  d,
		Timestamp: time.Now().UTC(),
	})
}

// SendError sends an error notification
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Notification{
		Type:      NotifyError,
		Title:     fmt.Sprintf("⚠️ %s", title),
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func directionEmoji(d ensemble.Direction) string {
	switch d {
	case ensemble.DirectionLong:
		return "🟢"
	case ensemble.DirectionShort:
		return "🔴"
	default:
		return "🟡"
	}
}

func directionColor(d ensemble.Direction) int {
	switch d {
	case ensemble.DirectionLong:
		return 0x00ff00
	case ensemble.DirectionShort:
		return 0xff0000
	default:
		return 0xffff00
	}
}

func confidenceEmoji(c ensemble.Confidence) string {
	switch c {
	case ensemble.ConfidenceHigh:
		return "🎯"
	case ensemble.ConfidenceMedium:
		return "⚠️"
	case ensemble.ConfidenceLow:
		return "🔍"
	default:
		return "❓"
	}
}

// fmtLevel renders a price level, or "n/a" when absent.
func fmtLevel(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("$%.2f", *v)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "n/a"
	}
	return s
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(notification *Notification) error {
	if !t.enabled {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n\n%s", notification.Title, notification.Message)
	if d := notification.Decision; d != nil {
		fmt.Fprintf(&b, "\n\nDirection: %s\nConfidence: %s", d.Direction, d.Confidence)
	}

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       b.String(),
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}
