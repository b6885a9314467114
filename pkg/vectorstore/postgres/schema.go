// Package postgres provides a PostgreSQL [vectorstore.Store] backed by the
// pgvector extension.
//
// Each collection lives in its own table with a fixed-dimension vector column
// and an HNSW index using cosine distance. A catalog table records the
// dimension of every collection so that handles can be reopened by name.
//
// Usage:
//
//	store, err := postgres.Open(ctx, dsn, 1536)
//	if err != nil { … }
//	defer store.Close()
//
//	docs, _ := store.GetCollection(ctx, "docs", vectorstore.Definition{})
//	_ = docs.Upsert(ctx, vectorstore.Record{Key: "a", Vector: vec})
package postgres

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
)

// catalogTable stores one row per collection.
const catalogTable = "aibridge_collections"

const ddlCatalog = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS aibridge_collections (
    name        TEXT         PRIMARY KEY,
    dimensions  INTEGER      NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// validName restricts collection names so the derived table and index
// identifiers stay within PostgreSQL's 63 byte limit.
var validName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,40}$`)

// tableName returns the quoted table identifier for a collection.
func tableName(collection string) string {
	return pgx.Identifier{"aibridge_vs_" + collection}.Sanitize()
}

// ddlCollection returns the DDL for one collection table and its HNSW index.
// The vector dimension is baked into the column type.
func ddlCollection(collection string, dimensions int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    key         TEXT         PRIMARY KEY,
    content     TEXT         NOT NULL DEFAULT '',
    metadata    JSONB        NOT NULL DEFAULT '{}',
    embedding   vector(%d)   NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS %s
    ON %s USING hnsw (embedding vector_cosine_ops);
`,
		tableName(collection),
		dimensions,
		pgx.Identifier{"aibridge_vs_" + collection + "_hnsw"}.Sanitize(),
		tableName(collection),
	)
}

// Migrate installs the pgvector extension and the collection catalog. It is
// idempotent and safe to call on every start.
func Migrate(ctx context.Context, db Querier) error {
	if _, err := db.Exec(ctx, ddlCatalog); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
