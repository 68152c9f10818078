package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventAlertReceived     EventType = "ALERT_RECEIVED"
	EventDecisionReady     EventType = "DECISION_READY"
	EventMarketClosed      EventType = "MARKET_CLOSED"
	EventBacktestProcessed EventType = "BACKTEST_PROCESSED"
	EventServerStarted     EventType = "SERVER_STARTED"
	EventError             EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishAlertReceived publishes an alert received event
func (eb *EventBus) PublishAlertReceived(ticker, pattern, interval string) {
	eb.Publish(Event{
		Type: EventAlertReceived,
		Data: map[string]interface{}{
			"ticker":   ticker,
			"pattern":  pattern,
			"interval": interval,
		},
	})
}

// PublishDecisionReady publishes an ensemble decision event
func (eb *EventBus) PublishDecisionReady(ticker, pattern, direction, confidence, reasoning string) {
	eb.Publish(Event{
		Type: EventDecisionReady,
		Data: map[string]interface{}{
			"ticker":     ticker,
			"pattern":    pattern,
			"direction":  direction,
			"confidence": confidence,
			"reasoning":  reasoning,
		},
	})
}

// PublishMarketClosed publishes an event for an alert rejected outside market hours
func (eb *EventBus) PublishMarketClosed(ticker, status, message string) {
	eb.Publish(Event{
		Type: EventMarketClosed,
		Data: map[string]interface{}{
			"ticker":  ticker,
			"status":  status,
			"message": message,
		},
	})
}

// PublishBacktestProcessed publishes a backtest ingestion event
func (eb *EventBus) PublishBacktestProcessed(ticker string, patterns, totalTrades int) {
	eb.Publish(Event{
		Type: EventBacktestProcessed,
		Data: map[string]interface{}{
			"ticker":       ticker,
			"patterns":     patterns,
			"total_trades": totalTrades,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
