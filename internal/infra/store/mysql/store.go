package mysql

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	domainstore "github.com/privoscope/privoscope/internal/domain/store"
	"github.com/privoscope/privoscope/internal/infra/store/minio"
)

// Store implements the Result Store Adapter (C5) on MySQL for stage
// results and MinIO for report blobs. Idempotence on put_stage_result is
// enforced via a content_hash column: a re-put with identical content
// leaves the row untouched (spec §4.5, §8 Property 9).
type Store struct {
	db    *sql.DB
	blobs *minio.Store
}

// New composes a Store from an already-connected DB and blob store.
func New(db *sql.DB, blobs *minio.Store) *Store {
	return &Store{db: db, blobs: blobs}
}

var _ domainstore.ResultStore = (*Store)(nil)

// Ping reports whether the underlying MySQL connection is reachable,
// satisfying middleware.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates the stage_results, scan_runs, and scan_errors tables
// if they do not exist. Deployments are expected to run migrations; this is
// a convenience for local/dev setups.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddls := []string{
		`CREATE TABLE IF NOT EXISTS stage_results (
  correlation_id VARCHAR(64) NOT NULL,
  stage_id VARCHAR(32) NOT NULL,
  content_hash CHAR(64) NOT NULL,
  payload LONGBLOB NOT NULL,
  updated_at DATETIME NOT NULL,
  PRIMARY KEY (correlation_id, stage_id)
);`,
		`CREATE TABLE IF NOT EXISTS scan_runs (
  correlation_id VARCHAR(64) NOT NULL,
  tenant_id VARCHAR(128) NOT NULL,
  triggered_at DATETIME NOT NULL,
  status VARCHAR(32) NOT NULL,
  compliance_score INT NOT NULL,
  total_violations INT NOT NULL,
  duration_ms BIGINT NOT NULL,
  PRIMARY KEY (correlation_id),
  KEY idx_scan_runs_tenant (tenant_id, triggered_at, correlation_id)
);`,
		`CREATE TABLE IF NOT EXISTS scan_errors (
  id BIGINT AUTO_INCREMENT PRIMARY KEY,
  tenant_id VARCHAR(128) NOT NULL,
  correlation_id VARCHAR(64) NOT NULL,
  stage_id VARCHAR(32) NOT NULL,
  code VARCHAR(64) NOT NULL,
  message TEXT NOT NULL,
  created_at DATETIME NOT NULL,
  KEY idx_scan_errors_scan (tenant_id, correlation_id, created_at)
);`,
	}
	for _, ddl := range ddls {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

// PutStageResult upserts payload under (correlationID, stageID). Re-putting
// identical content is a no-op: the UPDATE clause only overwrites payload
// when the content hash differs.
func (s *Store) PutStageResult(ctx context.Context, correlationID, stageID string, payload []byte) error {
	hash := contentHash(payload)
	const q = `
INSERT INTO stage_results (correlation_id, stage_id, content_hash, payload, updated_at)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  payload = IF(content_hash = VALUES(content_hash), payload, VALUES(payload)),
  content_hash = VALUES(content_hash),
  updated_at = IF(content_hash = VALUES(content_hash), updated_at, VALUES(updated_at));`
	_, err := s.db.ExecContext(ctx, q, correlationID, stageID, hash, payload, time.Now().UTC())
	return err
}

// GetStageResult retrieves a previously persisted stage result.
func (s *Store) GetStageResult(ctx context.Context, correlationID, stageID string) ([]byte, bool, error) {
	const q = `SELECT payload FROM stage_results WHERE correlation_id = ? AND stage_id = ? LIMIT 1;`
	row := s.db.QueryRowContext(ctx, q, correlationID, stageID)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

// PutReport stores a report blob via the MinIO-backed blob store.
func (s *Store) PutReport(ctx context.Context, correlationID string, payload []byte, contentType string) (string, error) {
	return s.blobs.PutReport(ctx, correlationID, payload, contentType)
}

// GetReport retrieves a previously persisted report blob by locator.
func (s *Store) GetReport(ctx context.Context, locator string) ([]byte, string, error) {
	return s.blobs.GetReport(ctx, locator)
}

// SaveScanRecord upserts one run into the tenant-scoped history index.
func (s *Store) SaveScanRecord(ctx context.Context, rec domainstore.ScanRecord) error {
	const q = `
INSERT INTO scan_runs (correlation_id, tenant_id, triggered_at, status, compliance_score, total_violations, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  status=VALUES(status), compliance_score=VALUES(compliance_score),
  total_violations=VALUES(total_violations), duration_ms=VALUES(duration_ms);`
	_, err := s.db.ExecContext(ctx, q, rec.CorrelationID, rec.TenantID, rec.TriggeredAt, rec.Status, rec.ComplianceScore, rec.TotalViolations, rec.DurationMS)
	return err
}

// PaginateScans returns one offset-paginated page of a tenant's run history.
func (s *Store) PaginateScans(ctx context.Context, tenantID string, page, pageSize int) (domainstore.PaginatedScans, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT correlation_id, tenant_id, triggered_at, status, compliance_score, total_violations, duration_ms
FROM scan_runs
WHERE tenant_id = ?
ORDER BY triggered_at DESC, correlation_id DESC
LIMIT ? OFFSET ?;`
	rows, err := s.db.QueryContext(ctx, q, tenantID, pageSize, offset)
	if err != nil {
		return domainstore.PaginatedScans{}, fmt.Errorf("querying scan runs: %w", err)
	}
	defer rows.Close()

	var data []domainstore.ScanRecord
	for rows.Next() {
		var rec domainstore.ScanRecord
		if err := rows.Scan(&rec.CorrelationID, &rec.TenantID, &rec.TriggeredAt, &rec.Status, &rec.ComplianceScore, &rec.TotalViolations, &rec.DurationMS); err != nil {
			return domainstore.PaginatedScans{}, fmt.Errorf("scanning scan run row: %w", err)
		}
		data = append(data, rec)
	}
	if err := rows.Err(); err != nil {
		return domainstore.PaginatedScans{}, fmt.Errorf("iterating scan run rows: %w", err)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scan_runs WHERE tenant_id = ?;`, tenantID).Scan(&total); err != nil {
		return domainstore.PaginatedScans{}, fmt.Errorf("counting scan runs: %w", err)
	}

	return domainstore.PaginatedScans{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// CursorScans returns runs strictly before (cursorTime, cursorID).
func (s *Store) CursorScans(ctx context.Context, tenantID string, cursorTime time.Time, cursorID string, pageSize int) ([]domainstore.ScanRecord, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	const q = `
SELECT correlation_id, tenant_id, triggered_at, status, compliance_score, total_violations, duration_ms
FROM scan_runs
WHERE tenant_id = ?
  AND (triggered_at < ? OR (triggered_at = ? AND correlation_id < ?))
ORDER BY triggered_at DESC, correlation_id DESC
LIMIT ?;`
	rows, err := s.db.QueryContext(ctx, q, tenantID, cursorTime, cursorTime, cursorID, pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domainstore.ScanRecord
	for rows.Next() {
		var rec domainstore.ScanRecord
		if err := rows.Scan(&rec.CorrelationID, &rec.TenantID, &rec.TriggeredAt, &rec.Status, &rec.ComplianceScore, &rec.TotalViolations, &rec.DurationMS); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordScanError appends one audit-trail row.
func (s *Store) RecordScanError(ctx context.Context, entry domainstore.ScanErrorEntry) error {
	const q = `
INSERT INTO scan_errors (tenant_id, correlation_id, stage_id, code, message, created_at)
VALUES (?, ?, ?, ?, ?, ?);`
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, q, entry.TenantID, entry.CorrelationID, entry.StageID, entry.Code, entry.Message, created)
	return err
}

// ListScanErrors retrieves the audit trail for one run.
func (s *Store) ListScanErrors(ctx context.Context, tenantID, correlationID string, limit int) ([]domainstore.ScanErrorEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT tenant_id, correlation_id, stage_id, code, message, created_at
FROM scan_errors
WHERE tenant_id = ? AND correlation_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := s.db.QueryContext(ctx, q, tenantID, correlationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domainstore.ScanErrorEntry
	for rows.Next() {
		var e domainstore.ScanErrorEntry
		if err := rows.Scan(&e.TenantID, &e.CorrelationID, &e.StageID, &e.Code, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func contentHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
