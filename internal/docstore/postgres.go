package docstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ongbase/be-hiring-workflow/internal/errors"
)

// Postgres stores documents in a single JSONB table. The status field is
// lifted into its own column so status queries and compare-and-swap
// transitions stay indexable.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool and verifies the connection.
func NewPostgres(ctx context.Context, dsn string, maxConns, minConns int32) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "invalid database DSN")
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Unavailable("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Unavailable("ping", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// EnsureSchema creates the documents table when it does not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS documents (
			collection  TEXT        NOT NULL,
			id          TEXT        NOT NULL,
			status      TEXT        NOT NULL DEFAULT '',
			data        JSONB       NOT NULL,
			version     BIGINT      NOT NULL DEFAULT 1,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (collection, id)
		);
		CREATE INDEX IF NOT EXISTS idx_documents_status
			ON documents (collection, status);
	`
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return errors.Unavailable("ensure_schema", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (*Document, error) {
	query := `
		SELECT id, status, data, version, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2
	`
	doc, err := scanDocument(p.pool.QueryRow(ctx, query, collection, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound(collection, id)
	}
	if err != nil {
		return nil, errors.Unavailable("get", err)
	}
	return doc, nil
}

func (p *Postgres) Insert(ctx context.Context, collection, id, status string, data []byte) error {
	query := `
		INSERT INTO documents (collection, id, status, data)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := p.pool.Exec(ctx, query, collection, id, status, data); err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errors.AlreadyExists(collection, id)
		}
		return errors.Unavailable("insert", err)
	}
	return nil
}

func (p *Postgres) Put(ctx context.Context, collection, id, status string, data []byte) error {
	query := `
		INSERT INTO documents (collection, id, status, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, id) DO UPDATE
		SET status = EXCLUDED.status,
		    data = EXCLUDED.data,
		    version = documents.version + 1,
		    updated_at = NOW()
	`
	if _, err := p.pool.Exec(ctx, query, collection, id, status, data); err != nil {
		return errors.Unavailable("put", err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, collection string) ([]*Document, error) {
	query := `
		SELECT id, status, data, version, created_at, updated_at
		FROM documents
		WHERE collection = $1
		ORDER BY created_at ASC
	`
	rows, err := p.pool.Query(ctx, query, collection)
	if err != nil {
		return nil, errors.Unavailable("list", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (p *Postgres) Query(ctx context.Context, collection, field, value string) ([]*Document, error) {
	var rows pgx.Rows
	var err error
	if field == "status" {
		query := `
			SELECT id, status, data, version, created_at, updated_at
			FROM documents
			WHERE collection = $1 AND status = $2
			ORDER BY created_at ASC
		`
		rows, err = p.pool.Query(ctx, query, collection, value)
	} else {
		query := `
			SELECT id, status, data, version, created_at, updated_at
			FROM documents
			WHERE collection = $1 AND data->>$2 = $3
			ORDER BY created_at ASC
		`
		rows, err = p.pool.Query(ctx, query, collection, field, value)
	}
	if err != nil {
		return nil, errors.Unavailable("query", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (p *Postgres) CountByField(ctx context.Context, collection, field string) (map[string]int, error) {
	var query string
	args := []any{collection}
	if field == "status" {
		query = `
			SELECT status, COUNT(*)
			FROM documents
			WHERE collection = $1
			GROUP BY status
		`
	} else {
		query = `
			SELECT COALESCE(data->>$2, ''), COUNT(*)
			FROM documents
			WHERE collection = $1
			GROUP BY 1
		`
		args = append(args, field)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Unavailable("count_by_field", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, errors.Unavailable("count_by_field", err)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Unavailable("count_by_field", err)
	}
	return counts, nil
}

// WriteConditional re-reads the document under a row lock, checks the
// expected status when one is given, merges the patch and writes back. The
// patch never changes the lifted status column.
func (p *Postgres) WriteConditional(ctx context.Context, collection, id, expectedStatus string, patch map[string]any) error {
	return p.inTransaction(ctx, "write_conditional", func(tx pgx.Tx) error {
		body, status, _, err := lockDocument(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		if expectedStatus != "" && status != expectedStatus {
			return errors.StaleState(expectedStatus, status)
		}
		applyPatch(body, patch)
		return writeBody(ctx, tx, collection, id, status, body)
	})
}

func (p *Postgres) AppendToArray(ctx context.Context, collection, id, fieldPath string, entry any) error {
	return p.inTransaction(ctx, "append_to_array", func(tx pgx.Tx) error {
		body, status, _, err := lockDocument(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		appendAt(body, fieldPath, entry)
		return writeBody(ctx, tx, collection, id, status, body)
	})
}

// ApplyTransition performs the status compare-and-swap, the payload merge and
// the history append in one transaction. Either all three land or none does.
func (p *Postgres) ApplyTransition(ctx context.Context, collection, id string, t Transition) error {
	return p.inTransaction(ctx, "apply_transition", func(tx pgx.Tx) error {
		body, status, version, err := lockDocument(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		if status != t.ExpectedStatus {
			return errors.StaleState(t.ExpectedStatus, status)
		}
		if t.ExpectedVersion != 0 && version != t.ExpectedVersion {
			return errors.StaleVersion(t.ExpectedVersion, version)
		}

		applyPatch(body, t.Patch)
		for path, entry := range t.Append {
			appendAt(body, path, entry)
		}
		body["status"] = t.NewStatus
		if t.HistoryEntry != nil {
			appendAt(body, "history", t.HistoryEntry)
		}
		return writeBody(ctx, tx, collection, id, t.NewStatus, body)
	})
}

// ── internals ─────────────────────────────────────────────────────────────────

func (p *Postgres) inTransaction(ctx context.Context, op string, fn func(pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return errors.Unavailable(op, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Unavailable(op, err)
	}
	return nil
}

func lockDocument(ctx context.Context, tx pgx.Tx, collection, id string) (map[string]any, string, int64, error) {
	query := `
		SELECT status, data, version
		FROM documents
		WHERE collection = $1 AND id = $2
		FOR UPDATE
	`
	var status string
	var raw []byte
	var version int64
	err := tx.QueryRow(ctx, query, collection, id).Scan(&status, &raw, &version)
	if err == pgx.ErrNoRows {
		return nil, "", 0, errors.NotFound(collection, id)
	}
	if err != nil {
		return nil, "", 0, errors.Unavailable("lock_document", err)
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, "", 0, errors.Wrap(err, errors.ErrCodeInternal, "corrupt document body")
	}
	return body, status, version, nil
}

func writeBody(ctx context.Context, tx pgx.Tx, collection, id, status string, body map[string]any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode document body")
	}
	query := `
		UPDATE documents
		SET status = $3, data = $4, version = version + 1, updated_at = NOW()
		WHERE collection = $1 AND id = $2
	`
	if _, err := tx.Exec(ctx, query, collection, id, status, raw); err != nil {
		return errors.Unavailable("write_document", err)
	}
	return nil
}

type documentScanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc documentScanner) (*Document, error) {
	doc := &Document{}
	var createdAt, updatedAt time.Time
	if err := sc.Scan(&doc.ID, &doc.Status, &doc.Data, &doc.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.CreatedAt = createdAt
	doc.UpdatedAt = updatedAt
	return doc, nil
}

func scanDocuments(rows pgx.Rows) ([]*Document, error) {
	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, errors.Unavailable("scan_document", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Unavailable("scan_document", err)
	}
	return docs, nil
}
