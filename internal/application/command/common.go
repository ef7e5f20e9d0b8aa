package command

import (
	"log/slog"

	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
)

// requireStaff allows admins and teachers.
func requireStaff(actor *identity.Session) error {
	return actor.Require(identity.CanManageRoster)
}

func actorID(actor *identity.Session) string {
	if actor == nil {
		return ""
	}
	return actor.UserID
}

// eventSink publishes events after a committed write. Publishing failures
// are logged and never fail the command.
type eventSink struct {
	publisher shared.EventPublisher
	logger    *slog.Logger
}

func newEventSink(publisher shared.EventPublisher, logger *slog.Logger) eventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return eventSink{publisher: publisher, logger: logger}
}

func (s eventSink) publish(events ...shared.Event) {
	if s.publisher == nil {
		return
	}
	for _, e := range events {
		if err := s.publisher.Publish(e); err != nil {
			s.logger.Warn("failed to publish event", "event_type", e.EventType(), "error", err)
		}
	}
}
