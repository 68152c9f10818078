// Package alert models inbound TradingView webhook alerts and the tolerant
// numeric parsing they require. TradingView templates interpolate plot values
// as strings, so every numeric field may arrive as a number, a string with
// stray whitespace or a percent sign, or not at all.
package alert

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AdditionalData carries auxiliary signal metadata forwarded by the alert
// script. It is used only to enrich the prompt context, never for control flow.
type AdditionalData struct {
	RSI           *float64 `json:"rsi,omitempty"`
	VolumeRatio   *float64 `json:"volume_ratio,omitempty"`
	TrendStrength *float64 `json:"trend_strength,omitempty"`
	ETFMode       bool     `json:"etf_mode,omitempty"`
}

// Alert is the immutable value built once per inbound webhook payload.
// Numeric fields are either a valid finite number or nil, never a raw string.
type Alert struct {
	ID         string          `json:"id"`
	Ticker     string          `json:"ticker"`
	Interval   string          `json:"interval,omitempty"`
	Pattern    string          `json:"pattern,omitempty"`
	Price      *float64        `json:"price,omitempty"`
	IBHigh     *float64        `json:"ib_high,omitempty"`
	IBLow      *float64        `json:"ib_low,omitempty"`
	BoxHigh    *float64        `json:"box_high,omitempty"`
	BoxLow     *float64        `json:"box_low,omitempty"`
	ATR        *float64        `json:"atr,omitempty"`
	Message    string          `json:"message,omitempty"`
	Additional *AdditionalData `json:"additional_data,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// FromPayload builds an Alert from a decoded webhook JSON object. Recognized
// keys follow the TradingView alert templates: ticker/symbol, pattern/strategy
// and close/price/current_price are accepted as aliases. Unparseable numerics
// become absent rather than failing the whole alert.
func FromPayload(payload map[string]interface{}) *Alert {
	a := &Alert{
		ID:         uuid.New().String(),
		Ticker:     firstString(payload, "ticker", "symbol"),
		Interval:   stringField(payload, "interval"),
		Pattern:    firstString(payload, "pattern", "strategy"),
		Price:      firstFloat(payload, "close", "price", "current_price"),
		IBHigh:     ToFloat(payload["ib_high"]),
		IBLow:      ToFloat(payload["ib_low"]),
		BoxHigh:    ToFloat(payload["box_high"]),
		BoxLow:     ToFloat(payload["box_low"]),
		ATR:        ToFloat(payload["atr"]),
		Message:    stringField(payload, "message"),
		ReceivedAt: time.Now().UTC(),
	}

	a.Ticker = strings.ToUpper(strings.TrimSpace(a.Ticker))
	if a.Ticker == "" {
		a.Ticker = "UNKNOWN"
	}
	a.Pattern = strings.TrimSpace(a.Pattern)

	if extra, ok := payload["additional_data"].(map[string]interface{}); ok {
		a.Additional = &AdditionalData{
			RSI:           ToFloat(extra["rsi"]),
			VolumeRatio:   ToFloat(extra["volume_ratio"]),
			TrendStrength: ToFloat(extra["trend_strength"]),
			ETFMode:       boolField(extra, "etf_mode"),
		}
	}

	return a
}

// IBRange returns the inside-bar range when both bounds are present.
func (a *Alert) IBRange() *float64 {
	if a.IBHigh == nil || a.IBLow == nil {
		return nil
	}
	r := *a.IBHigh - *a.IBLow
	return &r
}

// ToFloat converts webhook values to a float pointer. It tolerates numeric
// strings with percent signs and surrounding whitespace; anything that does
// not parse to a finite number becomes nil.
func ToFloat(v interface{}) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case float32:
		f := float64(val)
		return &f
	case int:
		f := float64(val)
		return &f
	case int64:
		f := float64(val)
		return &f
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(val, "%", ""))
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func firstFloat(payload map[string]interface{}, keys ...string) *float64 {
	for _, k := range keys {
		if f := ToFloat(payload[k]); f != nil {
			return f
		}
	}
	return nil
}

func firstString(payload map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := stringField(payload, k); s != "" {
			return s
		}
	}
	return ""
}

func stringField(payload map[string]interface{}, key string) string {
	if s, ok := payload[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func boolField(payload map[string]interface{}, key string) bool {
	switch v := payload[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}
