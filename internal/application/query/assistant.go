package query

import (
	"context"
	"strings"

	"github.com/edupredict/student-insight/internal/application/assistant"
	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
)

// maxQuestionLength bounds an assistant question.
const maxQuestionLength = 500

// AskAssistantQuery is one chat message.
type AskAssistantQuery struct {
	Actor   *identity.Session
	Message string
}

// Validate validates the query.
func (q *AskAssistantQuery) Validate() error {
	if q.Actor == nil {
		return shared.ErrSessionExpired
	}
	q.Message = strings.TrimSpace(q.Message)
	if q.Message == "" {
		return shared.NewDomainError("assistant", "Ask", shared.ErrEmptyValue, "message is required")
	}
	if len(q.Message) > maxQuestionLength {
		return shared.NewDomainError("assistant", "Ask", shared.ErrValueOutOfRange, "message is too long")
	}
	return nil
}

// AssistantHandler answers from the synchronized roster.
type AssistantHandler struct {
	roster RosterSource
}

// NewAssistantHandler creates a new AssistantHandler.
func NewAssistantHandler(roster RosterSource) *AssistantHandler {
	return &AssistantHandler{roster: roster}
}

// Ask executes AskAssistantQuery.
func (h *AssistantHandler) Ask(_ context.Context, q AskAssistantQuery) (*assistant.Reply, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	reply := assistant.Respond(q.Actor, h.roster.Snapshot(), q.Message)
	return &reply, nil
}

// Suggestions returns the quick-reply chips.
func (h *AssistantHandler) Suggestions() []assistant.Suggestion {
	return assistant.Suggestions()
}
