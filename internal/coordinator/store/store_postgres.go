package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tessera/internal/coordinator/models"
	"tessera/internal/platform/stream"
	id "tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
)

const createOperationsTableSQL = `
CREATE TABLE IF NOT EXISTS operations (
	nonce              TEXT PRIMARY KEY,
	type               TEXT NOT NULL,
	status             TEXT NOT NULL,
	consensus_position BIGINT,
	result_json        JSONB,
	error              TEXT NOT NULL DEFAULT '',
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_operations_status ON operations (status);
CREATE INDEX IF NOT EXISTS idx_operations_position ON operations (consensus_position)`

// operationListLimit bounds admin listings.
const operationListLimit = 200

// PostgresStore persists operation records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed operation store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the operations table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createOperationsTableSQL); err != nil {
		return fmt.Errorf("ensure operations schema: %w", err)
	}
	return nil
}

func marshalResult(res *models.Result) (any, error) {
	if res == nil {
		return nil, nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal operation result: %w", err)
	}
	return data, nil
}

func scanOperation(row rowScanner) (*models.OperationRecord, error) {
	var rec models.OperationRecord
	var position sql.NullInt64
	var resultJSON []byte
	err := row.Scan(&rec.Nonce, &rec.Type, &rec.Status, &position, &resultJSON, &rec.Error, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if position.Valid {
		p := position.Int64
		rec.ConsensusPosition = &p
	}
	if len(resultJSON) > 0 {
		var res models.Result
		if err := json.Unmarshal(resultJSON, &res); err != nil {
			return nil, fmt.Errorf("unmarshal operation result: %w", err)
		}
		rec.Result = &res
	}
	return &rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a new operation record; an existing nonce is a duplicate.
func (s *PostgresStore) Create(ctx context.Context, rec *models.OperationRecord) error {
	resultJSON, err := marshalResult(rec.Result)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO operations (nonce, type, status, consensus_position, result_json, error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (nonce) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		rec.Nonce, rec.Type, rec.Status, positionArg(rec), resultJSON, rec.Error, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create operation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create operation: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("operation %q already recorded: %w", rec.Nonce, sentinel.ErrDuplicate)
	}
	return nil
}

func positionArg(rec *models.OperationRecord) sql.NullInt64 {
	if rec.ConsensusPosition == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *rec.ConsensusPosition, Valid: true}
}

func (s *PostgresStore) FindByNonce(ctx context.Context, nonce id.Nonce) (*models.OperationRecord, error) {
	query := `
		SELECT nonce, type, status, consensus_position, result_json, error, updated_at
		FROM operations WHERE nonce = $1
	`
	rec, err := scanOperation(s.db.QueryRowContext(ctx, query, nonce))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("operation %q not found: %w", nonce, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find operation: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Update(ctx context.Context, rec *models.OperationRecord) error {
	resultJSON, err := marshalResult(rec.Result)
	if err != nil {
		return err
	}
	query := `
		UPDATE operations SET
			status = $2,
			consensus_position = $3,
			result_json = $4,
			error = $5,
			updated_at = $6
		WHERE nonce = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		rec.Nonce, rec.Status, positionArg(rec), resultJSON, rec.Error, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update operation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update operation: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("operation %q not found: %w", rec.Nonce, sentinel.ErrNotFound)
	}
	return nil
}

// ResumePosition returns the log position consumption should restart from:
// the earliest position of an unfinished record, else one past the highest
// position seen, else the start of the log.
func (s *PostgresStore) ResumePosition(ctx context.Context) (stream.Position, error) {
	query := `
		SELECT COALESCE(
			(SELECT MIN(consensus_position) FROM operations
			 WHERE status IN ('SUBMITTED', 'EXECUTING') AND consensus_position IS NOT NULL),
			(SELECT MAX(consensus_position) + 1 FROM operations),
			0)
	`
	var position int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&position); err != nil {
		return stream.PositionStart, fmt.Errorf("resume position: %w", err)
	}
	return stream.Position(position), nil
}

// ListByStatuses returns records in any of the given statuses, most
// recently updated first.
func (s *PostgresStore) ListByStatuses(ctx context.Context, statuses []models.OperationStatus) ([]*models.OperationRecord, error) {
	names := make([]string, 0, len(statuses))
	for _, st := range statuses {
		names = append(names, st.String())
	}
	query := `
		SELECT nonce, type, status, consensus_position, result_json, error, updated_at
		FROM operations
		WHERE status = ANY($1)
		ORDER BY updated_at DESC, nonce
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(names), operationListLimit)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	out := make([]*models.OperationRecord, 0)
	for rows.Next() {
		rec, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return out, nil
}
