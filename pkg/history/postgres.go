package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ravi-parthasarathy/workbench/pkg/execution"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS workbench_runs (
    id          TEXT PRIMARY KEY,
    project     TEXT NOT NULL,
    status      TEXT NOT NULL,
    dags        INT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS workbench_run_nodes (
    run_id      TEXT NOT NULL REFERENCES workbench_runs(id) ON DELETE CASCADE,
    seq         INT NOT NULL,
    dag_id      TEXT NOT NULL,
    node        TEXT NOT NULL,
    node_rank   INT NOT NULL,
    executed    BOOLEAN NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    duration_ns BIGINT NOT NULL,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_workbench_runs_started ON workbench_runs(started_at DESC);
`

// PGStore implements Store using PostgreSQL via pgx.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore returns a PGStore backed by the given pool.
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// Open connects to dsn and makes sure the schema exists.
func Open(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect history db: %w", err)
	}
	s := NewPGStore(pool)
	if err := s.CreateSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return s, nil
}

// Close releases the pool.
func (s *PGStore) Close() { s.db.Close() }

// CreateSchema creates the history tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the history tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS workbench_run_nodes, workbench_runs CASCADE;`)
	return err
}

// SaveRun stores a run and its node outcomes in one transaction.
func (s *PGStore) SaveRun(ctx context.Context, project string, res *execution.BatchResult) error {
	run, nodes := summarise(project, res)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO workbench_runs (id, project, status, dags, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Project, string(run.Status), run.DAGs, run.Started, run.Finished,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for i, n := range nodes {
		batch.Queue(
			`INSERT INTO workbench_run_nodes (run_id, seq, dag_id, node, node_rank, executed, error, duration_ns)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			n.RunID, i, n.DAG, n.Node, n.Rank, n.Executed, n.Error, int64(n.Duration),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert run nodes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PGStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id, project, status, dags, started_at, finished_at
	      FROM workbench_runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		if err := rows.Scan(&r.ID, &r.Project, &status, &r.DAGs, &r.Started, &r.Finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = execution.Status(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *PGStore) Nodes(ctx context.Context, runID string) ([]NodeRecord, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT true FROM workbench_runs WHERE id = $1`, runID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT run_id, dag_id, node, node_rank, executed, error, duration_ns
		 FROM workbench_run_nodes WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run nodes: %w", err)
	}
	defer rows.Close()

	var nodes []NodeRecord
	for rows.Next() {
		var n NodeRecord
		var ns int64
		if err := rows.Scan(&n.RunID, &n.DAG, &n.Node, &n.Rank, &n.Executed, &n.Error, &ns); err != nil {
			return nil, fmt.Errorf("scan run node: %w", err)
		}
		n.Duration = time.Duration(ns)
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
