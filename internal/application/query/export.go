package query

import (
	"bytes"
	"context"
	"fmt"

	"github.com/edupredict/student-insight/internal/domain/identity"
	"github.com/edupredict/student-insight/internal/domain/student"
	"github.com/edupredict/student-insight/internal/infrastructure/rostercsv"
)

// ExportRosterQuery renders the roster as CSV. Staff only.
type ExportRosterQuery struct {
	Actor *identity.Session
}

// ExportDTO is a ready-to-download file.
type ExportDTO struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportHandler handles ExportRosterQuery.
type ExportHandler struct {
	repo student.Repository
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(repo student.Repository) *ExportHandler {
	return &ExportHandler{repo: repo}
}

// Handle executes the query. Records are written in id order.
func (h *ExportHandler) Handle(ctx context.Context, q ExportRosterQuery) (*ExportDTO, error) {
	if err := q.Actor.Require(identity.CanManageRoster); err != nil {
		return nil, err
	}

	records, err := h.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("export_roster: %w", err)
	}
	student.SortByID(records)

	var buf bytes.Buffer
	if err := rostercsv.Export(&buf, records); err != nil {
		return nil, fmt.Errorf("export_roster: %w", err)
	}
	return &ExportDTO{
		Filename:    rostercsv.Filename,
		ContentType: "text/csv; charset=utf-8",
		Data:        buf.Bytes(),
	}, nil
}
