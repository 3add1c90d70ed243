package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS deployments (
	network     TEXT        NOT NULL,
	artifact    TEXT        NOT NULL,
	label       TEXT        NOT NULL DEFAULT '',
	address     TEXT        NOT NULL,
	tx_hash     TEXT        NOT NULL,
	deployer    TEXT        NOT NULL,
	args        JSONB       NOT NULL DEFAULT '[]',
	libraries   JSONB       NOT NULL DEFAULT '{}',
	abi_ref     TEXT        NOT NULL DEFAULT '',
	deployed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (network, artifact, label)
);

CREATE TABLE IF NOT EXISTS migrations (
	network      TEXT        NOT NULL,
	step_id      TEXT        NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (network, step_id)
);
`

// PostgresStore keeps deployment records in PostgreSQL so several operators can
// share one registry. It still assumes a single deployer per network.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and creates the tables if needed.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create registry schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, network string, name Name) (*Record, error) {
	query := `
		SELECT artifact, label, address, tx_hash, deployer, args, libraries, abi_ref, deployed_at
		FROM deployments
		WHERE network = $1 AND artifact = $2 AND label = $3
	`

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, network, name.Artifact, name.Label))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s on %s", ErrNotFound, name, network)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment %s: %w", name, err)
	}
	return rec, nil
}

func (s *PostgresStore) Put(ctx context.Context, network string, rec *Record) error {
	if err := rec.Name.Validate(); err != nil {
		return err
	}

	argsJSON, err := json.Marshal(nonNilArgs(rec.Args))
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}
	libsJSON, err := json.Marshal(nonNilLibs(rec.Libraries))
	if err != nil {
		return fmt.Errorf("failed to marshal libraries: %w", err)
	}

	query := `
		INSERT INTO deployments (
			network, artifact, label, address, tx_hash, deployer,
			args, libraries, abi_ref, deployed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (network, artifact, label) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		network,
		rec.Name.Artifact,
		rec.Name.Label,
		rec.Address.Hex(),
		rec.TxHash.Hex(),
		rec.Deployer.Hex(),
		argsJSON,
		libsJSON,
		rec.ABIRef,
		rec.DeployedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save deployment %s: %w", rec.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s on %s", ErrExists, rec.Name, network)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, network string, name Name) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM deployments WHERE network = $1 AND artifact = $2 AND label = $3`,
		network, name.Artifact, name.Label,
	)
	if err != nil {
		return fmt.Errorf("failed to delete deployment %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s on %s", ErrNotFound, name, network)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, network string) ([]*Record, error) {
	query := `
		SELECT artifact, label, address, tx_hash, deployer, args, libraries, abi_ref, deployed_at
		FROM deployments
		WHERE network = $1
	`

	rows, err := s.pool.Query(ctx, query, network)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deployments: %w", err)
	}

	sortRecords(records)
	return records, nil
}

func (s *PostgresStore) StepDone(ctx context.Context, network, id string) (bool, error) {
	var done bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM migrations WHERE network = $1 AND step_id = $2)`,
		network, id,
	).Scan(&done)
	if err != nil {
		return false, fmt.Errorf("failed to query step %s: %w", id, err)
	}
	return done, nil
}

func (s *PostgresStore) MarkStep(ctx context.Context, network, id string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO migrations (network, step_id) VALUES ($1, $2) ON CONFLICT (network, step_id) DO NOTHING`,
		network, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark step %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec                       Record
		address, txHash, deployer string
		argsJSON, libsJSON        []byte
		deployedAt                time.Time
	)

	err := row.Scan(
		&rec.Name.Artifact,
		&rec.Name.Label,
		&address,
		&txHash,
		&deployer,
		&argsJSON,
		&libsJSON,
		&rec.ABIRef,
		&deployedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Address = common.HexToAddress(address)
	rec.TxHash = common.HexToHash(txHash)
	rec.Deployer = common.HexToAddress(deployer)
	rec.DeployedAt = deployedAt

	if err := json.Unmarshal(argsJSON, &rec.Args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	if err := json.Unmarshal(libsJSON, &rec.Libraries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal libraries: %w", err)
	}
	if len(rec.Args) == 0 {
		rec.Args = nil
	}
	if len(rec.Libraries) == 0 {
		rec.Libraries = nil
	}
	return &rec, nil
}

func nonNilArgs(args []string) []string {
	if args == nil {
		return []string{}
	}
	return args
}

func nonNilLibs(libs map[string]common.Address) map[string]common.Address {
	if libs == nil {
		return map[string]common.Address{}
	}
	return libs
}
