package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/baselinegate/baselinegate/pkg/models"
)

// AnalysisRecord is the durable record of a finished analysis job. Both
// successes and failures are persisted so job status survives restarts.
type AnalysisRecord struct {
	ID          uuid.UUID
	JobID       string
	TenantID    string
	UserID      string
	RepoURL     string
	Status      string
	Result      *models.AnalysisResult
	ErrorCode   *string
	ErrorDetail *string
	CreditCost  int
	CreatedAt   time.Time
}

// CreateAnalysisParams contains parameters for persisting an analysis.
type CreateAnalysisParams struct {
	JobID       string
	TenantID    string
	UserID      string
	RepoURL     string
	Status      string
	Result      *models.AnalysisResult
	ErrorCode   *string
	ErrorDetail *string
	CreditCost  int
}

// analysisColumns is the standard column list for analysis queries.
const analysisColumns = `id, job_id, tenant_id, user_id, repo_url, status, result, error_code, error_detail, credit_cost, created_at`

// scanAnalysis scans a row into an AnalysisRecord and unmarshals the result JSON.
func scanAnalysis(row pgx.Row) (*AnalysisRecord, error) {
	var a AnalysisRecord
	var resultJSON []byte
	err := row.Scan(
		&a.ID, &a.JobID, &a.TenantID, &a.UserID, &a.RepoURL,
		&a.Status, &resultJSON, &a.ErrorCode, &a.ErrorDetail, &a.CreditCost, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalResult(resultJSON, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func unmarshalResult(resultJSON []byte, a *AnalysisRecord) error {
	if resultJSON != nil {
		a.Result = &models.AnalysisResult{}
		return json.Unmarshal(resultJSON, a.Result)
	}
	return nil
}

// CreateAnalysis stores a finished analysis.
func (db *DB) CreateAnalysis(ctx context.Context, params CreateAnalysisParams) (*AnalysisRecord, error) {
	var resultJSON []byte
	var err error
	if params.Result != nil {
		resultJSON, err = json.Marshal(params.Result)
		if err != nil {
			return nil, err
		}
	}

	row := db.pool.QueryRow(ctx,
		`INSERT INTO analyses (job_id, tenant_id, user_id, repo_url, status, result, error_code, error_detail, credit_cost)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (job_id) DO UPDATE
		 SET status = EXCLUDED.status, result = EXCLUDED.result,
		     error_code = EXCLUDED.error_code, error_detail = EXCLUDED.error_detail,
		     credit_cost = EXCLUDED.credit_cost
		 RETURNING `+analysisColumns,
		params.JobID, params.TenantID, params.UserID, params.RepoURL, params.Status,
		resultJSON, params.ErrorCode, params.ErrorDetail, params.CreditCost,
	)
	return scanAnalysis(row)
}

// GetAnalysisByJobID retrieves a persisted analysis by its job ID.
func (db *DB) GetAnalysisByJobID(ctx context.Context, jobID string) (*AnalysisRecord, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE job_id = $1`,
		jobID,
	)
	return scanAnalysis(row)
}

// ListTenantAnalysesParams contains parameters for listing analyses.
type ListTenantAnalysesParams struct {
	TenantID string
	Limit    int
	Offset   int
	Status   *string
}

// ListTenantAnalyses returns a tenant's analyses ordered by creation date descending.
func (db *DB) ListTenantAnalyses(ctx context.Context, params ListTenantAnalysesParams) ([]AnalysisRecord, error) {
	if params.Limit <= 0 {
		params.Limit = 50
	}

	var rows pgx.Rows
	var err error

	if params.Status != nil {
		rows, err = db.pool.Query(ctx,
			`SELECT `+analysisColumns+` FROM analyses
			 WHERE tenant_id = $1 AND status = $2
			 ORDER BY created_at DESC
			 LIMIT $3 OFFSET $4`,
			params.TenantID, *params.Status, params.Limit, params.Offset,
		)
	} else {
		rows, err = db.pool.Query(ctx,
			`SELECT `+analysisColumns+` FROM analyses
			 WHERE tenant_id = $1
			 ORDER BY created_at DESC
			 LIMIT $2 OFFSET $3`,
			params.TenantID, params.Limit, params.Offset,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		var a AnalysisRecord
		var resultJSON []byte
		if err := rows.Scan(
			&a.ID, &a.JobID, &a.TenantID, &a.UserID, &a.RepoURL,
			&a.Status, &resultJSON, &a.ErrorCode, &a.ErrorDetail, &a.CreditCost, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := unmarshalResult(resultJSON, &a); err != nil {
			return nil, err
		}
		records = append(records, a)
	}
	return records, rows.Err()
}

// CountTenantAnalyses returns the total number of analyses for a tenant.
func (db *DB) CountTenantAnalyses(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM analyses WHERE tenant_id = $1`,
		tenantID,
	).Scan(&count)
	return count, err
}

// DeleteOldAnalyses deletes analyses created before the given time.
func (db *DB) DeleteOldAnalyses(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := db.pool.Exec(ctx,
		`DELETE FROM analyses WHERE created_at < $1`,
		olderThan,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
