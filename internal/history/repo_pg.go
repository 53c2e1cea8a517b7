package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const runColumns = `id, user_id, model, model_class, file_ids, prompt, artifact_kind,
       processing_time_seconds, input_tokens, output_tokens, reasoning_tokens, total_tokens, created_at`

// Create inserts a run.
func (r *PGRepo) Create(ctx context.Context, run Run) error {
	const query = `
INSERT INTO analysis_runs (
	id, user_id, model, model_class, file_ids, prompt, artifact_kind,
	processing_time_seconds, input_tokens, output_tokens, reasoning_tokens, total_tokens, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	fileIDs, err := json.Marshal(nonNilIDs(run.FileIDs))
	if err != nil {
		return fmt.Errorf("encode file ids: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, query,
		run.ID,
		run.UserID,
		run.Model,
		run.ModelClass,
		string(fileIDs),
		run.Prompt,
		run.ArtifactKind,
		run.ProcessingTimeSeconds,
		run.InputTokens,
		run.OutputTokens,
		run.ReasoningTokens,
		run.TotalTokens,
		run.CreatedAt,
	)
	return err
}

// ListByUser returns runs newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Run, error) {
	query := `
SELECT ` + runColumns + `
FROM analysis_runs
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetByID returns one of the user's runs.
func (r *PGRepo) GetByID(ctx context.Context, userID, runID string) (Run, error) {
	query := `
SELECT ` + runColumns + `
FROM analysis_runs
WHERE id = $1 AND user_id = $2
LIMIT 1`
	run, err := scanRun(r.DB.QueryRowContext(ctx, query, runID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return run, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var fileIDs []byte
	if err := row.Scan(
		&run.ID,
		&run.UserID,
		&run.Model,
		&run.ModelClass,
		&fileIDs,
		&run.Prompt,
		&run.ArtifactKind,
		&run.ProcessingTimeSeconds,
		&run.InputTokens,
		&run.OutputTokens,
		&run.ReasoningTokens,
		&run.TotalTokens,
		&run.CreatedAt,
	); err != nil {
		return Run{}, err
	}
	if len(fileIDs) > 0 {
		if err := json.Unmarshal(fileIDs, &run.FileIDs); err != nil {
			return Run{}, fmt.Errorf("decode file ids: %w", err)
		}
	}
	run.CreatedAt = run.CreatedAt.UTC()
	return run, nil
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

var _ Repo = (*PGRepo)(nil)
