package rowstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore backs the row store capability with a single generic table,
// keyed by tenant and logical table name, storing each row as JSONB. This
// lets new logical tables appear without a schema migration. Every logical
// table, artifacts included, is read and written here; this store never
// touches the tables created by internal/platform/migrations.
type PostgresStore struct {
	db *sqlx.DB
}

const createRowsTableSQL = `
CREATE TABLE IF NOT EXISTS capability_rows (
	id          BIGSERIAL PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	table_name  TEXT NOT NULL,
	data        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_capability_rows_scope ON capability_rows(tenant_id, table_name);
`

// NewPostgresStore wraps an established *sql.DB (see internal/platform/database)
// and ensures the generic row table exists.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	sx := sqlx.NewDb(db, "postgres")
	if _, err := sx.ExecContext(ctx, createRowsTableSQL); err != nil {
		return nil, wrap("init", err)
	}
	return &PostgresStore{db: sx}, nil
}

func (s *PostgresStore) Insert(ctx context.Context, tenantID, table string, row Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return wrap("Insert", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO capability_rows (tenant_id, table_name, data) VALUES ($1, $2, $3)`,
		tenantID, table, data)
	if err != nil {
		return wrap("Insert", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, tenantID, table string, filter Filter, limit int) ([]Row, error) {
	query := `SELECT data FROM capability_rows WHERE tenant_id = $1 AND table_name = $2`
	args := []any{tenantID, table}

	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, wrap("Query", err)
		}
		query += fmt.Sprintf(" AND data @> $%d", len(args)+1)
		args = append(args, filterJSON)
	}

	query += " ORDER BY id ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var raw [][]byte
	if err := s.db.SelectContext(ctx, &raw, query, args...); err != nil {
		return nil, wrap("Query", err)
	}

	rows := make([]Row, 0, len(raw))
	for _, r := range raw {
		var row Row
		if err := json.Unmarshal(r, &row); err != nil {
			return nil, wrap("Query", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *PostgresStore) Update(ctx context.Context, tenantID, table string, filter Filter, patch Row) (int, error) {
	query := `SELECT id, data FROM capability_rows WHERE tenant_id = $1 AND table_name = $2`
	args := []any{tenantID, table}
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return 0, wrap("Update", err)
		}
		query += " AND data @> $3"
		args = append(args, filterJSON)
	}

	type idRow struct {
		ID   int64  `db:"id"`
		Data []byte `db:"data"`
	}
	var matches []idRow
	if err := s.db.SelectContext(ctx, &matches, query, args...); err != nil {
		return 0, wrap("Update", err)
	}
	if len(matches) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, wrap("Update", err)
	}
	defer tx.Rollback()

	for _, m := range matches {
		var row Row
		if err := json.Unmarshal(m.Data, &row); err != nil {
			return 0, wrap("Update", err)
		}
		for k, v := range patch {
			row[k] = v
		}
		data, err := json.Marshal(row)
		if err != nil {
			return 0, wrap("Update", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE capability_rows SET data = $1 WHERE id = $2`, data, m.ID); err != nil {
			return 0, wrap("Update", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, wrap("Update", err)
	}
	return len(matches), nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
