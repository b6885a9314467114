package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/aibridge/pkg/vectorstore"
)

// Compile-time interface checks.
var (
	_ vectorstore.Store      = (*Store)(nil)
	_ vectorstore.Collection = (*Collection)(nil)
	_ vectorstore.Pinger     = (*Store)(nil)
)

// Querier abstracts the pgx methods the store needs. *pgxpool.Pool and
// pgx.Tx both satisfy it, as does a pgxmock pool.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a pgvector-backed [vectorstore.Store]. All methods are safe for
// concurrent use.
type Store struct {
	db          Querier
	pool        *pgxpool.Pool
	defaultDims int
}

// Open connects to the database at dsn, registers pgvector types on every
// connection and runs [Migrate].
//
// defaultDims is applied to collections declared with zero dimensions. It
// should match the output of the configured embedding model (e.g. 1536 for
// text-embedding-3-small).
func Open(ctx context.Context, dsn string, defaultDims int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	s := New(pool, defaultDims)
	s.pool = pool
	return s, nil
}

// New wraps an existing connection. The caller owns db and must have run
// [Migrate]; [Store.Close] does not close it.
func New(db Querier, defaultDims int) *Store {
	return &Store{db: db, defaultDims: defaultDims}
}

// Ping runs a trivial query. It implements [vectorstore.Pinger].
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close releases the pool created by [Open].
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// GetCollection implements [vectorstore.Store]. It records the collection in
// the catalog, then creates its table and index if missing.
func (s *Store) GetCollection(ctx context.Context, name string, def vectorstore.Definition) (vectorstore.Collection, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("postgres: invalid collection name %q", name)
	}
	if def.Dimensions == 0 {
		def.Dimensions = s.defaultDims
	}
	if def.Dimensions <= 0 {
		return nil, fmt.Errorf("postgres: collection %q: dimensions must be positive", name)
	}

	const insert = `
		INSERT INTO aibridge_collections (name, dimensions)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`
	if _, err := s.db.Exec(ctx, insert, name, def.Dimensions); err != nil {
		return nil, fmt.Errorf("postgres: register collection %q: %w", name, err)
	}

	dims, err := s.dimensions(ctx, name)
	if err != nil {
		return nil, err
	}
	if dims != def.Dimensions {
		return nil, fmt.Errorf("postgres: collection %q has %d dimensions, requested %d: %w",
			name, dims, def.Dimensions, vectorstore.ErrDimensionMismatch)
	}

	if _, err := s.db.Exec(ctx, ddlCollection(name, dims)); err != nil {
		return nil, fmt.Errorf("postgres: create collection %q: %w", name, err)
	}
	return s.handle(name, dims), nil
}

// Collection implements [vectorstore.Store].
func (s *Store) Collection(ctx context.Context, name string) (vectorstore.Collection, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("postgres: %q: %w", name, vectorstore.ErrCollectionNotFound)
	}
	dims, err := s.dimensions(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.handle(name, dims), nil
}

func (s *Store) dimensions(ctx context.Context, name string) (int, error) {
	var dims int
	err := s.db.QueryRow(ctx, `SELECT dimensions FROM `+catalogTable+` WHERE name = $1`, name).Scan(&dims)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("postgres: %q: %w", name, vectorstore.ErrCollectionNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: lookup collection %q: %w", name, err)
	}
	return dims, nil
}

func (s *Store) handle(name string, dims int) *Collection {
	return &Collection{
		db:    s.db,
		name:  name,
		table: tableName(name),
		def:   vectorstore.Definition{Dimensions: dims},
	}
}

// Collection is a handle on one collection table.
type Collection struct {
	db    Querier
	name  string
	table string
	def   vectorstore.Definition
}

// Name implements [vectorstore.Collection].
func (c *Collection) Name() string { return c.name }

// Definition implements [vectorstore.Collection].
func (c *Collection) Definition() vectorstore.Definition { return c.def }

// Upsert implements [vectorstore.Collection]. An existing record with the
// same key is completely replaced.
func (c *Collection) Upsert(ctx context.Context, rec vectorstore.Record) error {
	if rec.Key == "" {
		return fmt.Errorf("postgres: upsert into %q: record key must not be empty", c.name)
	}
	if len(rec.Vector) != c.def.Dimensions {
		return fmt.Errorf("postgres: upsert %q into %q: vector has %d dimensions, want %d: %w",
			rec.Key, c.name, len(rec.Vector), c.def.Dimensions, vectorstore.ErrDimensionMismatch)
	}
	meta, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: upsert %q into %q: %w", rec.Key, c.name, err)
	}

	q := fmt.Sprintf(`
		INSERT INTO %s (key, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
		    content    = EXCLUDED.content,
		    metadata   = EXCLUDED.metadata,
		    embedding  = EXCLUDED.embedding,
		    updated_at = now()`, c.table)

	if _, err := c.db.Exec(ctx, q, rec.Key, rec.Content, meta, pgvector.NewVector(rec.Vector)); err != nil {
		return fmt.Errorf("postgres: upsert %q into %q: %w", rec.Key, c.name, err)
	}
	return nil
}

// Get implements [vectorstore.Collection].
func (c *Collection) Get(ctx context.Context, key string) (vectorstore.Record, error) {
	q := fmt.Sprintf(`SELECT key, content, metadata, embedding FROM %s WHERE key = $1`, c.table)

	var (
		rec  vectorstore.Record
		meta []byte
		vec  pgvector.Vector
	)
	err := c.db.QueryRow(ctx, q, key).Scan(&rec.Key, &rec.Content, &meta, &vec)
	if errors.Is(err, pgx.ErrNoRows) {
		return vectorstore.Record{}, fmt.Errorf("postgres: get %q from %q: %w", key, c.name, vectorstore.ErrNotFound)
	}
	if err != nil {
		return vectorstore.Record{}, fmt.Errorf("postgres: get %q from %q: %w", key, c.name, err)
	}
	if rec.Metadata, err = unmarshalMetadata(meta); err != nil {
		return vectorstore.Record{}, fmt.Errorf("postgres: get %q from %q: %w", key, c.name, err)
	}
	rec.Vector = vec.Slice()
	return rec, nil
}

// Delete implements [vectorstore.Collection].
func (c *Collection) Delete(ctx context.Context, key string) error {
	tag, err := c.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, c.table), key)
	if err != nil {
		return fmt.Errorf("postgres: delete %q from %q: %w", key, c.name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: delete %q from %q: %w", key, c.name, vectorstore.ErrNotFound)
	}
	return nil
}

// Search implements [vectorstore.Collection]. The score is 1 minus the
// pgvector cosine distance, so higher is closer.
func (c *Collection) Search(ctx context.Context, query []float32, topK int) ([]vectorstore.SearchResult, error) {
	if len(query) != c.def.Dimensions {
		return nil, fmt.Errorf("postgres: search %q: query has %d dimensions, want %d: %w",
			c.name, len(query), c.def.Dimensions, vectorstore.ErrDimensionMismatch)
	}

	q := fmt.Sprintf(`
		SELECT key, content, metadata, embedding,
		       1 - (embedding <=> $1) AS score
		FROM   %s
		ORDER  BY embedding <=> $1
		LIMIT  $2`, c.table)

	rows, err := c.db.Query(ctx, q, pgvector.NewVector(query), vectorstore.NormalizeTopK(topK))
	if err != nil {
		return nil, fmt.Errorf("postgres: search %q: %w", c.name, err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (vectorstore.SearchResult, error) {
		var (
			sr   vectorstore.SearchResult
			meta []byte
			vec  pgvector.Vector
		)
		if err := row.Scan(&sr.Record.Key, &sr.Record.Content, &meta, &vec, &sr.Score); err != nil {
			return vectorstore.SearchResult{}, err
		}
		md, err := unmarshalMetadata(meta)
		if err != nil {
			return vectorstore.SearchResult{}, err
		}
		sr.Record.Metadata = md
		sr.Record.Vector = vec.Slice()
		return sr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: search %q: scan rows: %w", c.name, err)
	}
	if results == nil {
		results = []vectorstore.SearchResult{}
	}
	return results, nil
}

func marshalMetadata(md map[string]any) ([]byte, error) {
	if len(md) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return b, nil
}

func unmarshalMetadata(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var md map[string]any
	if err := json.Unmarshal(b, &md); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if len(md) == 0 {
		return nil, nil
	}
	return md, nil
}
