package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"agora/core/internal/domain"
	"agora/core/internal/ident"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	kind       TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	author     TEXT        NOT NULL,
	version    BIGINT      NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	payload    JSONB       NOT NULL,
	PRIMARY KEY (kind, id)
)`

// PostgresStore is the durable backend. Per-id serialization comes from row
// locks (SELECT ... FOR UPDATE) instead of in-process mutexes, so the same
// optimistic-versioning semantics hold across processes.
type PostgresStore struct {
	db  *sql.DB
	ids *ident.Provider
}

func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

func NewPostgres(ctx context.Context, db *sql.DB, ids *ident.Provider) (*PostgresStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure records table: %w", err)
	}
	return &PostgresStore{db: db, ids: ids}, nil
}

func (s *PostgresStore) Create(ctx context.Context, rec domain.Record) error {
	meta := rec.Meta()
	if meta.ID == "" || meta.Kind == "" {
		return domain.ValidationError("record is missing id or kind", nil)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", meta.Kind, meta.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (kind, id, author, version, created_at, updated_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, meta.Kind, meta.ID, meta.AuthorAddress, meta.Version, meta.CreatedAt, meta.UpdatedAt, payload)
	if isDuplicateKey(err) {
		return domain.ConflictError("id " + meta.ID + " already exists for kind " + string(meta.Kind))
	}
	if err != nil {
		return fmt.Errorf("insert %s %s: %w", meta.Kind, meta.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, kind domain.Kind, id string) (domain.Record, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM records WHERE kind=$1 AND id=$2`, kind, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	return decodeRecord(kind, payload)
}

func (s *PostgresStore) List(ctx context.Context, kind domain.Kind) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM records WHERE kind=$1 ORDER BY created_at, id`, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		rec, err := decodeRecord(kind, payload)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, kind domain.Kind, id, actor string, expected int64, mutate Mutator) (domain.Record, error) {
	return s.write(ctx, kind, id, func(rec domain.Record) error {
		meta := rec.Meta()
		if meta.AuthorAddress != actor {
			return domain.AuthorizationError("only the author may modify " + id)
		}
		if expected != AnyVersion && meta.Version != expected {
			return domain.ConflictError("version changed since read")
		}
		if err := mutate(rec); err != nil {
			return err
		}
		meta.Version++
		meta.UpdatedAt = s.ids.Now()
		return nil
	})
}

func (s *PostgresStore) Mutate(ctx context.Context, kind domain.Kind, id string, mutate Mutator) (domain.Record, error) {
	return s.write(ctx, kind, id, mutate)
}

// write runs apply against the row under FOR UPDATE and persists the result.
func (s *PostgresStore) write(ctx context.Context, kind domain.Kind, id string, apply Mutator) (domain.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	var payload []byte
	err = tx.QueryRowContext(ctx,
		`SELECT payload FROM records WHERE kind=$1 AND id=$2 FOR UPDATE`, kind, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundError(kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s %s: %w", kind, id, err)
	}

	rec, err := decodeRecord(kind, payload)
	if err != nil {
		return nil, err
	}
	if err := apply(rec); err != nil {
		return nil, err
	}

	meta := rec.Meta()
	next, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", kind, id, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE records SET author=$3, version=$4, updated_at=$5, payload=$6
		WHERE kind=$1 AND id=$2
	`, kind, id, meta.AuthorAddress, meta.Version, meta.UpdatedAt, next); err != nil {
		return nil, fmt.Errorf("update %s %s: %w", kind, id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit %s %s: %w", kind, id, err)
	}
	return rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, kind domain.Kind, id, actor string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	var author string
	err = tx.QueryRowContext(ctx,
		`SELECT author FROM records WHERE kind=$1 AND id=$2 FOR UPDATE`, kind, id).Scan(&author)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError(kind, id)
	}
	if err != nil {
		return fmt.Errorf("lock %s %s: %w", kind, id, err)
	}
	if author != actor {
		return domain.AuthorizationError("only the author may delete " + id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE kind=$1 AND id=$2`, kind, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	return tx.Commit()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func decodeRecord(kind domain.Kind, payload []byte) (domain.Record, error) {
	factory := factories[kind]
	if factory == nil {
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	rec := factory()
	if err := json.Unmarshal(payload, rec); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return rec, nil
}

// 23505 = unique_violation
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
