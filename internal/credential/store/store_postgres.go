package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tessera/internal/credential/models"
	id "tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
)

const createCredentialsTableSQL = `
CREATE TABLE IF NOT EXISTS credentials (
	holder          TEXT PRIMARY KEY,
	max_quota       BIGINT NOT NULL,
	total_accrued   BIGINT NOT NULL,
	remaining_quota BIGINT NOT NULL,
	cap_reached     BOOLEAN NOT NULL,
	active          BOOLEAN NOT NULL,
	lifecycle_count INTEGER NOT NULL,
	issued_at       TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
)`

const createAccrualEventsTableSQL = `
CREATE TABLE IF NOT EXISTS accrual_events (
	id          BIGSERIAL PRIMARY KEY,
	holder      TEXT NOT NULL,
	amount      BIGINT NOT NULL,
	cumulative  BIGINT NOT NULL,
	remaining   BIGINT NOT NULL,
	op_nonce    TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_accrual_events_holder ON accrual_events (holder, id)`

const createTerminationEventsTableSQL = `
CREATE TABLE IF NOT EXISTS termination_events (
	id            BIGSERIAL PRIMARY KEY,
	holder        TEXT NOT NULL,
	refund_amount BIGINT NOT NULL,
	fee_amount    BIGINT NOT NULL,
	op_nonce      TEXT NOT NULL,
	occurred_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_termination_events_holder ON termination_events (holder, id)`

const credentialColumns = `holder, max_quota, total_accrued, remaining_quota, cap_reached, active, lifecycle_count, issued_at, updated_at`

// PostgresStore persists credentials and event history in PostgreSQL.
// Execute serializes per-holder mutations with SELECT ... FOR UPDATE.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed credential store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the credential tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{
		createCredentialsTableSQL,
		createAccrualEventsTableSQL,
		createTerminationEventsTableSQL,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure credential schema: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*models.Credential, error) {
	var cred models.Credential
	err := row.Scan(
		&cred.Holder,
		&cred.MaxQuota,
		&cred.TotalAccrued,
		&cred.RemainingQuota,
		&cred.CapReached,
		&cred.Active,
		&cred.LifecycleCount,
		&cred.IssuedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *PostgresStore) FindByHolder(ctx context.Context, holder id.Holder) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE holder = $1`
	cred, err := scanCredential(s.db.QueryRowContext(ctx, query, holder))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("credential not found for holder %q: %w", holder, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return cred, nil
}

// Create inserts the credential row, replacing a terminated row if one
// exists. The upsert's WHERE clause refuses to overwrite an active row, so a
// zero-row result means an active credential collision.
func (s *PostgresStore) Create(ctx context.Context, cred *models.Credential) error {
	query := `
		INSERT INTO credentials (` + credentialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (holder) DO UPDATE SET
			max_quota = EXCLUDED.max_quota,
			total_accrued = EXCLUDED.total_accrued,
			remaining_quota = EXCLUDED.remaining_quota,
			cap_reached = EXCLUDED.cap_reached,
			active = EXCLUDED.active,
			lifecycle_count = EXCLUDED.lifecycle_count,
			issued_at = EXCLUDED.issued_at,
			updated_at = EXCLUDED.updated_at
		WHERE credentials.active = FALSE
	`
	res, err := s.db.ExecContext(ctx, query,
		cred.Holder,
		cred.MaxQuota,
		cred.TotalAccrued,
		cred.RemainingQuota,
		cred.CapReached,
		cred.Active,
		cred.LifecycleCount,
		cred.IssuedAt,
		cred.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("active credential exists for holder %q: %w", cred.Holder, sentinel.ErrConflict)
	}
	return nil
}

// Execute atomically validates and mutates the holder's credential inside a
// transaction. The row lock from SELECT ... FOR UPDATE is held during both
// callbacks, and the update commits only after CheckInvariants passes.
func (s *PostgresStore) Execute(
	ctx context.Context,
	holder id.Holder,
	validateFn func(*models.Credential) error,
	mutateFn func(*models.Credential),
) (*models.Credential, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin credential tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE holder = $1 FOR UPDATE`
	cred, err := scanCredential(tx.QueryRowContext(ctx, query, holder))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("credential not found for holder %q: %w", holder, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("lock credential: %w", err)
	}

	if err := validateFn(cred); err != nil {
		return nil, err
	}
	mutateFn(cred)
	if err := cred.CheckInvariants(); err != nil {
		return nil, err
	}

	update := `
		UPDATE credentials SET
			max_quota = $2,
			total_accrued = $3,
			remaining_quota = $4,
			cap_reached = $5,
			active = $6,
			lifecycle_count = $7,
			updated_at = $8
		WHERE holder = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		cred.Holder,
		cred.MaxQuota,
		cred.TotalAccrued,
		cred.RemainingQuota,
		cred.CapReached,
		cred.Active,
		cred.LifecycleCount,
		cred.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update credential: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit credential tx: %w", err)
	}
	return cred, nil
}

func (s *PostgresStore) AppendAccrualEvent(ctx context.Context, ev *models.AccrualEvent) error {
	query := `
		INSERT INTO accrual_events (holder, amount, cumulative, remaining, op_nonce, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		ev.Holder, ev.Amount, ev.Cumulative, ev.Remaining, ev.OpNonce, ev.OccurredAt,
	).Scan(&ev.ID)
	if err != nil {
		return fmt.Errorf("append accrual event: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendTerminationEvent(ctx context.Context, ev *models.TerminationEvent) error {
	query := `
		INSERT INTO termination_events (holder, refund_amount, fee_amount, op_nonce, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		ev.Holder, ev.RefundAmount, ev.FeeAmount, ev.OpNonce, ev.OccurredAt,
	).Scan(&ev.ID)
	if err != nil {
		return fmt.Errorf("append termination event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAccrualEvents(ctx context.Context, holder id.Holder) ([]models.AccrualEvent, error) {
	query := `
		SELECT id, holder, amount, cumulative, remaining, op_nonce, occurred_at
		FROM accrual_events
		WHERE holder = $1
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, holder)
	if err != nil {
		return nil, fmt.Errorf("list accrual events: %w", err)
	}
	defer rows.Close()

	events := make([]models.AccrualEvent, 0)
	for rows.Next() {
		var ev models.AccrualEvent
		if err := rows.Scan(&ev.ID, &ev.Holder, &ev.Amount, &ev.Cumulative, &ev.Remaining, &ev.OpNonce, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan accrual event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accrual events: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) ListTerminationEvents(ctx context.Context, holder id.Holder) ([]models.TerminationEvent, error) {
	query := `
		SELECT id, holder, refund_amount, fee_amount, op_nonce, occurred_at
		FROM termination_events
		WHERE holder = $1
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, holder)
	if err != nil {
		return nil, fmt.Errorf("list termination events: %w", err)
	}
	defer rows.Close()

	events := make([]models.TerminationEvent, 0)
	for rows.Next() {
		var ev models.TerminationEvent
		if err := rows.Scan(&ev.ID, &ev.Holder, &ev.RefundAmount, &ev.FeeAmount, &ev.OpNonce, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan termination event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list termination events: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials ORDER BY holder`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	creds := make([]*models.Credential, 0)
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return creds, nil
}
