package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sharehunt/shares-sniper/pkg/types"
)

// PostgresStore backs all three store interfaces with a shared PostgreSQL
// connection.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS positions (
		token_address TEXT PRIMARY KEY,
		total_amount  BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id            SERIAL PRIMARY KEY,
		token_address TEXT NOT NULL,
		amount        BIGINT NOT NULL,
		tx_hash       TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS candidates (
		token_address    TEXT PRIMARY KEY,
		address_checksum TEXT NOT NULL,
		curve_index      INT NOT NULL,
		multiplier       TEXT NOT NULL,
		tx_hash          TEXT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL,
		last_checked     TIMESTAMPTZ NOT NULL,
		status           TEXT NOT NULL,
		creator_handle   TEXT,
		follower_count   BIGINT NOT NULL DEFAULT 0,
		is_verified      BOOLEAN NOT NULL DEFAULT FALSE,
		bought_tx_hash   TEXT,
		bought_at        TIMESTAMPTZ,
		ignored_at       TIMESTAMPTZ,
		last_error       TEXT,
		poll_attempts    INT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS candidates_status_idx ON candidates (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS checkpoint (
		id           INT PRIMARY KEY,
		block_number BIGINT NOT NULL
	)`,
}

// NewPostgresStore connects, verifies, and migrates the database.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, stmt := range schemaStatements {
		_, err = db.Exec(stmt)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	cfg.Logger.Info("postgres-store-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStore{db: db, logger: cfg.Logger}, nil
}

// Positions returns the position-ledger view of the store.
func (p *PostgresStore) Positions() PositionLedger { return &postgresPositions{db: p.db} }

// Candidates returns the candidate-store view of the store.
func (p *PostgresStore) Candidates() CandidateStore { return &postgresCandidates{db: p.db} }

// Checkpoint returns the checkpoint-store view of the store.
func (p *PostgresStore) Checkpoint() CheckpointStore { return &postgresCheckpoint{db: p.db} }

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	p.logger.Info("closing-postgres-store")
	return p.db.Close()
}

// postgresPositions is the PositionLedger view.
type postgresPositions struct {
	db *sql.DB
}

// Get returns the position for a token, or ErrNotFound.
func (p *postgresPositions) Get(ctx context.Context, token string) (*types.Position, error) {
	token = types.NormalizeAddress(token)

	var total uint64
	err := p.db.QueryRowContext(ctx,
		`SELECT total_amount FROM positions WHERE token_address = $1`, token,
	).Scan(&total)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select position: %w", err)
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT amount, tx_hash, created_at FROM purchases
		 WHERE token_address = $1 ORDER BY created_at`, token)
	if err != nil {
		return nil, fmt.Errorf("select purchases: %w", err)
	}
	defer rows.Close()

	pos := &types.Position{TokenAddress: token, TotalAmount: total}
	for rows.Next() {
		var pu types.Purchase
		err = rows.Scan(&pu.Amount, &pu.TxHash, &pu.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		pos.Purchases = append(pos.Purchases, pu)
	}

	return pos, rows.Err()
}

// Add appends a confirmed purchase, creating the position if needed.
func (p *postgresPositions) Add(ctx context.Context, token string, amount uint64, txHash string) error {
	token = types.NormalizeAddress(token)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO positions (token_address, total_amount) VALUES ($1, $2)
		 ON CONFLICT (token_address) DO UPDATE SET total_amount = positions.total_amount + $2`,
		token, amount)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO purchases (token_address, amount, tx_hash, created_at) VALUES ($1, $2, $3, $4)`,
		token, amount, txHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}

	return tx.Commit()
}

// Remove subtracts a sold amount. A position that reaches zero is deleted.
func (p *postgresPositions) Remove(ctx context.Context, token string, amount uint64) error {
	token = types.NormalizeAddress(token)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var total uint64
	err = tx.QueryRowContext(ctx,
		`SELECT total_amount FROM positions WHERE token_address = $1 FOR UPDATE`, token,
	).Scan(&total)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("select position: %w", err)
	}

	if amount > total {
		return fmt.Errorf("remove %d exceeds held amount %d for %s", amount, total, token)
	}

	remaining := total - amount
	if remaining == 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM purchases WHERE token_address = $1`, token)
		if err != nil {
			return fmt.Errorf("delete purchases: %w", err)
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM positions WHERE token_address = $1`, token)
		if err != nil {
			return fmt.Errorf("delete position: %w", err)
		}
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE positions SET total_amount = $2 WHERE token_address = $1`, token, remaining)
		if err != nil {
			return fmt.Errorf("update position: %w", err)
		}
	}

	return tx.Commit()
}

// List returns all open positions, purchases omitted.
func (p *postgresPositions) List(ctx context.Context) ([]types.Position, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT token_address, total_amount FROM positions ORDER BY token_address`)
	if err != nil {
		return nil, fmt.Errorf("select positions: %w", err)
	}
	defer rows.Close()

	var positions []types.Position
	for rows.Next() {
		var pos types.Position
		err = rows.Scan(&pos.TokenAddress, &pos.TotalAmount)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, pos)
	}

	return positions, rows.Err()
}

func (p *postgresPositions) Close() error { return nil }

const candidateColumns = `token_address, address_checksum, curve_index, multiplier, tx_hash,
	created_at, last_checked, status, creator_handle, follower_count, is_verified,
	bought_tx_hash, bought_at, ignored_at, last_error, poll_attempts`

// postgresCandidates is the CandidateStore view.
type postgresCandidates struct {
	db *sql.DB
}

// Create inserts a new candidate row.
func (p *postgresCandidates) Create(ctx context.Context, c *types.Candidate) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO candidates (`+candidateColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		types.NormalizeAddress(c.TokenAddress), c.AddressChecksum, c.CurveIndex, c.Multiplier,
		c.TxHash, c.CreatedAt, c.LastChecked, c.Status, c.CreatorHandle, c.FollowerCount,
		c.IsVerified, c.BoughtTxHash, c.BoughtAt, c.IgnoredAt, c.LastError, c.PollAttempts)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("candidate %s: %w", c.TokenAddress, ErrDuplicate)
		}
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

// Get returns the candidate for a token, or ErrNotFound.
func (p *postgresCandidates) Get(ctx context.Context, token string) (*types.Candidate, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE token_address = $1`,
		types.NormalizeAddress(token))
	return scanCandidate(row)
}

// Update overwrites all mutable fields for c.TokenAddress.
func (p *postgresCandidates) Update(ctx context.Context, c *types.Candidate) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE candidates SET last_checked = $2, status = $3, creator_handle = $4,
			follower_count = $5, is_verified = $6, bought_tx_hash = $7, bought_at = $8,
			ignored_at = $9, last_error = $10, poll_attempts = $11
		 WHERE token_address = $1`,
		types.NormalizeAddress(c.TokenAddress), c.LastChecked, c.Status, c.CreatorHandle,
		c.FollowerCount, c.IsVerified, c.BoughtTxHash, c.BoughtAt, c.IgnoredAt,
		c.LastError, c.PollAttempts)
	if err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}

	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByStatus returns candidates in any of the given statuses, oldest first.
func (p *postgresCandidates) ListByStatus(ctx context.Context, statuses ...types.CandidateStatus) ([]types.Candidate, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(statuses))
	placeholders := ""
	for i, s := range statuses {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += fmt.Sprintf("$%d", i+1)
		args = append(args, s)
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates
		 WHERE status IN (`+placeholders+`) ORDER BY created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}
	defer rows.Close()

	var out []types.Candidate
	for rows.Next() {
		c, scanErr := scanCandidate(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, *c)
	}

	return out, rows.Err()
}

// Delete removes the candidate row.
func (p *postgresCandidates) Delete(ctx context.Context, token string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM candidates WHERE token_address = $1`, types.NormalizeAddress(token))
	if err != nil {
		return fmt.Errorf("delete candidate: %w", err)
	}
	return nil
}

// CountByStatus returns candidate counts keyed by status.
func (p *postgresCandidates) CountByStatus(ctx context.Context) (map[types.CandidateStatus]int, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM candidates GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count candidates: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.CandidateStatus]int)
	for rows.Next() {
		var status types.CandidateStatus
		var n int
		err = rows.Scan(&status, &n)
		if err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}

	return counts, rows.Err()
}

func (p *postgresCandidates) Close() error { return nil }

// postgresCheckpoint is the CheckpointStore view.
type postgresCheckpoint struct {
	db *sql.DB
}

// LastBlock returns the stored checkpoint, or ErrNotFound.
func (p *postgresCheckpoint) LastBlock(ctx context.Context) (uint64, error) {
	var block uint64
	err := p.db.QueryRowContext(ctx,
		`SELECT block_number FROM checkpoint WHERE id = 1`).Scan(&block)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("select checkpoint: %w", err)
	}
	return block, nil
}

// SaveLastBlock stores a new checkpoint.
func (p *postgresCheckpoint) SaveLastBlock(ctx context.Context, block uint64) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO checkpoint (id, block_number) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET block_number = $1`, block)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (p *postgresCheckpoint) Close() error { return nil }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCandidate(row rowScanner) (*types.Candidate, error) {
	var c types.Candidate
	var handle, boughtTx, lastErr sql.NullString
	var boughtAt, ignoredAt sql.NullTime

	err := row.Scan(&c.TokenAddress, &c.AddressChecksum, &c.CurveIndex, &c.Multiplier,
		&c.TxHash, &c.CreatedAt, &c.LastChecked, &c.Status, &handle, &c.FollowerCount,
		&c.IsVerified, &boughtTx, &boughtAt, &ignoredAt, &lastErr, &c.PollAttempts)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan candidate: %w", err)
	}

	c.CreatorHandle = handle.String
	c.BoughtTxHash = boughtTx.String
	c.LastError = lastErr.String
	if boughtAt.Valid {
		t := boughtAt.Time
		c.BoughtAt = &t
	}
	if ignoredAt.Valid {
		t := ignoredAt.Time
		c.IgnoredAt = &t
	}

	return &c, nil
}
