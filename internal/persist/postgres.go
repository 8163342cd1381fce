package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres stores client state rows keyed by (namespace, key), so several
// shoppers can share one database.
type Postgres struct {
	db        *sql.DB
	namespace string
}

func NewPostgres(dsn, namespace string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if namespace == "" {
		namespace = "default"
	}
	p := &Postgres{db: db, namespace: namespace}
	if err := p.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS client_state (
		namespace  TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (namespace, key)
	)`)
	if err != nil {
		return fmt.Errorf("create client_state: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := p.db.QueryRowContext(ctx, `SELECT value FROM client_state WHERE namespace=$1 AND key=$2`, p.namespace, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	observe("postgres", "get", err)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO client_state (namespace, key, value, updated_at) VALUES ($1,$2,$3,now())
		ON CONFLICT (namespace, key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`, p.namespace, key, value)
	observe("postgres", "set", err)
	return err
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM client_state WHERE namespace=$1 AND key=$2`, p.namespace, key)
	observe("postgres", "delete", err)
	return err
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }
