package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Roster events are published by the command side after a
// successful write; alert and session events are published by handlers.
const (
	// Roster events
	EventStudentAdded     EventType = "roster.student_added"
	EventStudentUpdated   EventType = "roster.student_updated"
	EventStudentDeleted   EventType = "roster.student_deleted"
	EventRosterImported   EventType = "roster.imported"
	EventAttendanceMarked EventType = "roster.attendance_marked"

	// Alert events
	EventHighRiskAlert EventType = "alert.high_risk"

	// Session events
	EventUserSignedIn  EventType = "session.signed_in"
	EventUserSignedUp  EventType = "session.signed_up"
	EventUserSignedOut EventType = "session.signed_out"

	// Face events
	EventFaceRegistered EventType = "face.registered"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Roster Events
// ═══════════════════════════════════════════════════════════════════════════

// StudentChangedEvent is emitted when a roster record is added, overwritten or deleted.
type StudentChangedEvent struct {
	BaseEvent
	Name           string  `json:"name"`
	PredictedScore float64 `json:"predicted_score"`
	RiskLevel      string  `json:"risk_level"`
	ActorID        string  `json:"actor_id,omitempty"`
}

// Payload implements Event interface.
func (e StudentChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"name":            e.Name,
		"predicted_score": e.PredictedScore,
		"risk_level":      e.RiskLevel,
		"actor_id":        e.ActorID,
	}
}

// NewStudentChangedEvent creates a roster change event of the given type.
func NewStudentChangedEvent(eventType EventType, studentID, name string, score float64, risk, actorID string) StudentChangedEvent {
	return StudentChangedEvent{
		BaseEvent:      NewBaseEvent(eventType, studentID),
		Name:           name,
		PredictedScore: score,
		RiskLevel:      risk,
		ActorID:        actorID,
	}
}

// RosterImportedEvent is emitted after a CSV import finishes.
type RosterImportedEvent struct {
	BaseEvent
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Payload implements Event interface.
func (e RosterImportedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"imported": e.Imported,
		"skipped":  e.Skipped,
	}
}

// NewRosterImportedEvent creates a new RosterImportedEvent. The aggregate is the importing user.
func NewRosterImportedEvent(actorID string, imported, skipped int) RosterImportedEvent {
	return RosterImportedEvent{
		BaseEvent: NewBaseEvent(EventRosterImported, actorID),
		Imported:  imported,
		Skipped:   skipped,
	}
}

// AttendanceMarkedEvent is emitted after a successful face verification updates attendance.
type AttendanceMarkedEvent struct {
	BaseEvent
	MatchedID     string  `json:"matched_id"`
	NewAttendance float64 `json:"new_attendance"`
}

// Payload implements Event interface.
func (e AttendanceMarkedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"matched_id":     e.MatchedID,
		"new_attendance": e.NewAttendance,
	}
}

// NewAttendanceMarkedEvent creates a new AttendanceMarkedEvent.
func NewAttendanceMarkedEvent(studentID, matchedID string, attendance float64) AttendanceMarkedEvent {
	return AttendanceMarkedEvent{
		BaseEvent:     NewBaseEvent(EventAttendanceMarked, studentID),
		MatchedID:     matchedID,
		NewAttendance: attendance,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Alert Events
// ═══════════════════════════════════════════════════════════════════════════

// HighRiskAlertEvent carries the teacher notification raised for a snapshot.
type HighRiskAlertEvent struct {
	BaseEvent
	HighRiskCount int    `json:"high_risk_count"`
	Message       string `json:"message"`
}

// Payload implements Event interface.
func (e HighRiskAlertEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"high_risk_count": e.HighRiskCount,
		"message":         e.Message,
	}
}

// NewHighRiskAlertEvent creates a new HighRiskAlertEvent. The aggregate is the roster itself.
func NewHighRiskAlertEvent(count int, message string) HighRiskAlertEvent {
	return HighRiskAlertEvent{
		BaseEvent:     NewBaseEvent(EventHighRiskAlert, "roster"),
		HighRiskCount: count,
		Message:       message,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionEvent is emitted on sign-in, sign-up and sign-out.
type SessionEvent struct {
	BaseEvent
	Email string `json:"email"`
	Role  string `json:"role"`
	Demo  bool   `json:"demo,omitempty"`
}

// Payload implements Event interface.
func (e SessionEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email": e.Email,
		"role":  e.Role,
		"demo":  e.Demo,
	}
}

// NewSessionEvent creates a session event of the given type.
func NewSessionEvent(eventType EventType, userID, email, role string, demo bool) SessionEvent {
	return SessionEvent{
		BaseEvent: NewBaseEvent(eventType, userID),
		Email:     email,
		Role:      role,
		Demo:      demo,
	}
}

// FaceRegisteredEvent is emitted when a student registers a face profile.
type FaceRegisteredEvent struct {
	BaseEvent
	SubjectID string `json:"subject_id"`
}

// Payload implements Event interface.
func (e FaceRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"subject_id": e.SubjectID}
}

// NewFaceRegisteredEvent creates a new FaceRegisteredEvent.
func NewFaceRegisteredEvent(userID, subjectID string) FaceRegisteredEvent {
	return FaceRegisteredEvent{
		BaseEvent: NewBaseEvent(EventFaceRegistered, userID),
		SubjectID: subjectID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport.
type EventEnvelope struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
