package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptforge/backend/internal/models"
)

// Service persists one action_runs row per post-action dispatch. Telemetry is
// best-effort: a failed insert is logged, never propagated, so it can never
// fail a run that otherwise succeeded.
type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func (s *Service) RecordRun(ctx context.Context, run models.ActionRun) {
	_, err := s.db.Exec(ctx,
		`INSERT INTO action_runs (node_row_id, user_id, action_id, success, created_count, error, details, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.NodeRowID, run.UserID, run.ActionID, run.Success, run.CreatedCount,
		run.Error, run.Details, run.DurationMs,
	)
	if err != nil {
		slog.Error("insert action run", "action", run.ActionID, "node", run.NodeRowID, "error", err)
	}
}

type RunQuery struct {
	ActionID  string
	Success   *bool
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

func (s *Service) ListRuns(ctx context.Context, q RunQuery) ([]models.ActionRun, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}

	query := `SELECT id, node_row_id, user_id, action_id, success, created_count, error, details, duration_ms, created_at
			  FROM action_runs WHERE 1=1`
	var args []interface{}
	argIdx := 1

	if q.ActionID != "" {
		query += fmt.Sprintf(" AND action_id = $%d", argIdx)
		args = append(args, q.ActionID)
		argIdx++
	}
	if q.Success != nil {
		query += fmt.Sprintf(" AND success = $%d", argIdx)
		args = append(args, *q.Success)
		argIdx++
	}
	if q.StartDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *q.StartDate)
		argIdx++
	}
	if q.EndDate != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *q.EndDate)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query action runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ActionRun
	for rows.Next() {
		var r models.ActionRun
		if err := rows.Scan(&r.ID, &r.NodeRowID, &r.UserID, &r.ActionID, &r.Success, &r.CreatedCount, &r.Error, &r.Details, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// RunSummary aggregates outcomes per action id.
type RunSummary struct {
	ActionID     string `json:"action_id"`
	TotalRuns    int    `json:"total_runs"`
	Failures     int    `json:"failures"`
	TotalCreated int    `json:"total_created"`
	AvgDuration  int    `json:"avg_duration_ms"`
}

func (s *Service) GetRunSummary(ctx context.Context, startDate, endDate *time.Time) ([]RunSummary, error) {
	query := `SELECT action_id, COUNT(*) as total_runs,
			         COUNT(*) FILTER (WHERE NOT success) as failures,
			         COALESCE(SUM(created_count), 0) as total_created,
			         COALESCE(AVG(duration_ms), 0)::int as avg_duration_ms
			  FROM action_runs WHERE 1=1`
	var args []interface{}
	argIdx := 1

	if startDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *startDate)
		argIdx++
	}
	if endDate != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *endDate)
		argIdx++
	}

	query += " GROUP BY action_id ORDER BY total_runs DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run summary: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var rs RunSummary
		if err := rows.Scan(&rs.ActionID, &rs.TotalRuns, &rs.Failures, &rs.TotalCreated, &rs.AvgDuration); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		summaries = append(summaries, rs)
	}
	return summaries, nil
}
