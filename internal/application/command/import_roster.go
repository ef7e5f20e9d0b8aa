package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
	"github.com/edupredict/student-insight/internal/infrastructure/rostercsv"
)

// ══════════════════════════════════════════════════════════════════════════════
// IMPORT ROSTER
// Adds one record per valid CSV line. A bad line is logged and skipped; it
// never aborts the rest of the file.
// ══════════════════════════════════════════════════════════════════════════════

// ImportRosterCommand imports a roster CSV.
type ImportRosterCommand struct {
	Actor *identity.Session
	CSV   io.Reader
}

// ImportRosterResult reports what was imported.
type ImportRosterResult struct {
	Imported int                    `json:"imported"`
	Skipped  int                    `json:"skipped"`
	Failed   []*rostercsv.LineError `json:"failed,omitempty"`
	Message  string                 `json:"message"`
}

// ImportMessage is the confirmation text for n imported students.
func ImportMessage(n int) string {
	return fmt.Sprintf("✅ Imported %d students successfully", n)
}

// ImportRosterHandler handles ImportRosterCommand.
type ImportRosterHandler struct {
	repo   student.Repository
	model  *student.ScoreModel
	events eventSink
	logger *slog.Logger
}

// NewImportRosterHandler creates a new ImportRosterHandler.
func NewImportRosterHandler(repo student.Repository, model *student.ScoreModel, publisher shared.EventPublisher, logger *slog.Logger) *ImportRosterHandler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "roster_import")
	return &ImportRosterHandler{
		repo:   repo,
		model:  model,
		events: newEventSink(publisher, logger),
		logger: logger,
	}
}

// Handle executes the import.
func (h *ImportRosterHandler) Handle(ctx context.Context, cmd ImportRosterCommand) (*ImportRosterResult, error) {
	if err := requireStaff(cmd.Actor); err != nil {
		return nil, fmt.Errorf("import_roster: %w", err)
	}
	if cmd.CSV == nil {
		return nil, shared.ErrEmptyImport
	}

	parsed, err := rostercsv.Parse(cmd.CSV)
	if err != nil {
		return nil, fmt.Errorf("import_roster: %w", err)
	}

	result := &ImportRosterResult{Skipped: parsed.Skipped, Failed: parsed.Errors}
	for _, le := range parsed.Errors {
		h.logger.Warn("import line rejected", "line", le.Line, "error", le.Err)
	}

	for _, row := range parsed.Rows {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("import_roster: %w", err)
		}

		in := StudentInput{
			RollNo:     row.RollNo,
			Name:       row.Name,
			Attendance: Num(row.Attendance),
			StudyHours: Num(row.StudyHours),
			PastScore:  Num(row.PastScore),
		}
		if err := validateStruct("import_roster", in); err != nil {
			h.reject(result, row, err)
			continue
		}

		if _, err := h.repo.Add(ctx, buildRecord(h.model, in)); err != nil {
			h.reject(result, row, err)
			continue
		}
		result.Imported++
	}

	result.Message = ImportMessage(result.Imported)
	h.logger.Info("roster imported",
		"imported", result.Imported,
		"skipped", result.Skipped,
		"failed", len(result.Failed),
		"actor", actorID(cmd.Actor),
	)
	h.events.publish(shared.NewRosterImportedEvent(actorID(cmd.Actor), result.Imported, result.Skipped+len(result.Failed)))

	return result, nil
}

func (h *ImportRosterHandler) reject(result *ImportRosterResult, row rostercsv.Row, err error) {
	h.logger.Warn("import line rejected", "line", row.Line, "error", err)
	result.Failed = append(result.Failed, &rostercsv.LineError{Line: row.Line, Text: row.Name, Err: err})
}
