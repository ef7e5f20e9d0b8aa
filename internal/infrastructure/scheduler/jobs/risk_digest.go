package jobs

import (
	"context"
	"log/slog"

	"github.com/edupredict/student-insight/internal/domain/student"
)

// Snapshotter returns the mirrored roster.
type Snapshotter interface {
	Snapshot() []student.Record
}

// RiskDigest is the per-tier head count logged by RiskDigestJob.
type RiskDigest struct {
	Total  int
	ByRisk map[student.RiskLevel]int
}

// RiskDigestJob logs how many students sit in each risk tier so operators
// can follow the trend without opening the dashboard.
type RiskDigestJob struct {
	roster Snapshotter
	logger *slog.Logger
	last   RiskDigest
}

func NewRiskDigestJob(roster Snapshotter, logger *slog.Logger) *RiskDigestJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RiskDigestJob{roster: roster, logger: logger.With("job", "risk_digest")}
}

func (j *RiskDigestJob) Name() string { return "risk_digest" }

func (j *RiskDigestJob) Description() string {
	return "Log student counts per risk tier"
}

func (j *RiskDigestJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d := Digest(j.roster.Snapshot())
	j.last = d
	j.logger.Info("risk digest",
		"total", d.Total,
		"high", d.ByRisk[student.RiskHigh],
		"medium", d.ByRisk[student.RiskMedium],
		"low", d.ByRisk[student.RiskLow],
	)
	return nil
}

// Last returns the digest computed by the previous run. Only safe to call
// when no run is in progress.
func (j *RiskDigestJob) Last() RiskDigest {
	return j.last
}

// Digest counts records per risk tier. Every tier is present in the map.
func Digest(records []student.Record) RiskDigest {
	d := RiskDigest{Total: len(records), ByRisk: make(map[student.RiskLevel]int, len(student.RiskLevels))}
	for _, level := range student.RiskLevels {
		d.ByRisk[level] = 0
	}
	for i := range records {
		d.ByRisk[records[i].RiskLevel]++
	}
	return d
}
