package eventhandler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/edupredict/student-insight/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ALERT INBOX
// Keeps the most recent teacher alerts so late-joining dashboards can show
// what was raised while they were away.
// ═══════════════════════════════════════════════════════════════════════════

// Alert is a raised teacher alert.
type Alert struct {
	Count    int       `json:"count"`
	Message  string    `json:"message"`
	RaisedAt time.Time `json:"raisedAt"`
}

// AlertInbox is a bounded list of recent alerts, newest first.
type AlertInbox struct {
	mu     sync.RWMutex
	alerts []Alert
	limit  int
	logger *slog.Logger
}

// NewAlertInbox creates an inbox holding at most limit alerts.
func NewAlertInbox(limit int, logger *slog.Logger) *AlertInbox {
	if limit <= 0 {
		limit = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertInbox{limit: limit, logger: logger.With("handler", "alert_inbox")}
}

// Handle implements shared.EventHandler for EventHighRiskAlert.
func (b *AlertInbox) Handle(event shared.Event) error {
	alert := Alert{RaisedAt: event.OccurredAt()}

	switch e := event.(type) {
	case shared.HighRiskAlertEvent:
		alert.Count = e.HighRiskCount
		alert.Message = e.Message
	default:
		// relayed from another instance
		payload := event.Payload()
		alert.Message, _ = payload["message"].(string)
		switch n := payload["high_risk_count"].(type) {
		case float64:
			alert.Count = int(n)
		case int:
			alert.Count = n
		}
	}

	b.logger.Warn("teacher alert raised", "count", alert.Count)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerts = append([]Alert{alert}, b.alerts...)
	if len(b.alerts) > b.limit {
		b.alerts = b.alerts[:b.limit]
	}
	return nil
}

// EventType returns the event this handler consumes.
func (b *AlertInbox) EventType() shared.EventType {
	return shared.EventHighRiskAlert
}

// Recent returns a copy of the stored alerts, newest first.
func (b *AlertInbox) Recent() []Alert {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Alert, len(b.alerts))
	copy(out, b.alerts)
	return out
}

// ═══════════════════════════════════════════════════════════════════════════
// AUDIT LOG
// ═══════════════════════════════════════════════════════════════════════════

// AuditLogger writes every domain event to the log.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new AuditLogger.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger.With("handler", "audit")}
}

// Handle implements shared.EventHandler.
func (a *AuditLogger) Handle(event shared.Event) error {
	attrs := make([]any, 0, 6+2*len(event.Payload()))
	attrs = append(attrs,
		"event_type", event.EventType(),
		"aggregate_id", event.AggregateID(),
		"occurred_at", event.OccurredAt(),
	)
	for k, v := range event.Payload() {
		attrs = append(attrs, k, v)
	}
	a.logger.Info("domain event", attrs...)
	return nil
}
