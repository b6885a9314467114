package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/aibridge/pkg/vectorstore"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func expectMet(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTableName_Sanitized(t *testing.T) {
	if got := tableName("docs"); got != `"aibridge_vs_docs"` {
		t.Errorf("tableName: got %s", got)
	}
	ddl := ddlCollection("docs", 3)
	if !strings.Contains(ddl, "vector(3)") || !strings.Contains(ddl, "vector_cosine_ops") {
		t.Errorf("unexpected DDL: %s", ddl)
	}
}

func TestMigrate(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	if err := Migrate(context.Background(), mock); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	expectMet(t, mock)
}

func TestGetCollection_CreatesTable(t *testing.T) {
	mock := newMock(t)
	s := New(mock, 3)

	mock.ExpectExec("INSERT INTO aibridge_collections").
		WithArgs("docs", 3).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT dimensions FROM aibridge_collections").
		WithArgs("docs").
		WillReturnRows(pgxmock.NewRows([]string{"dimensions"}).AddRow(3))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "aibridge_vs_docs"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	c, err := s.GetCollection(context.Background(), "docs", vectorstore.Definition{})
	if err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	if c.Name() != "docs" || c.Definition().Dimensions != 3 {
		t.Errorf("handle: got %s/%d", c.Name(), c.Definition().Dimensions)
	}
	expectMet(t, mock)
}

func TestGetCollection_DimensionMismatch(t *testing.T) {
	mock := newMock(t)
	s := New(mock, 3)

	mock.ExpectExec("INSERT INTO aibridge_collections").
		WithArgs("docs", 4).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT dimensions FROM aibridge_collections").
		WithArgs("docs").
		WillReturnRows(pgxmock.NewRows([]string{"dimensions"}).AddRow(3))

	_, err := s.GetCollection(context.Background(), "docs", vectorstore.Definition{Dimensions: 4})
	if !errors.Is(err, vectorstore.ErrDimensionMismatch) {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}
	expectMet(t, mock)
}

func TestGetCollection_InvalidName(t *testing.T) {
	mock := newMock(t)
	s := New(mock, 3)
	for _, name := range []string{"", "bad name", "drop;table", strings.Repeat("x", 41)} {
		if _, err := s.GetCollection(context.Background(), name, vectorstore.Definition{}); err == nil {
			t.Errorf("GetCollection(%q): expected error", name)
		}
	}
	// No expectations set: pgxmock fails if any query ran.
	expectMet(t, mock)
}

func TestCollection_NotFound(t *testing.T) {
	mock := newMock(t)
	s := New(mock, 3)

	mock.ExpectQuery("SELECT dimensions FROM aibridge_collections").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Collection(context.Background(), "missing")
	if !errors.Is(err, vectorstore.ErrCollectionNotFound) {
		t.Fatalf("got %v, want ErrCollectionNotFound", err)
	}
	expectMet(t, mock)
}

func TestUpsert(t *testing.T) {
	mock := newMock(t)
	c := New(mock, 2).handle("docs", 2)

	mock.ExpectExec(`INSERT INTO "aibridge_vs_docs"`).
		WithArgs("a", "hello", []byte(`{"lang":"en"}`), pgvector.NewVector([]float32{1, 0})).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := c.Upsert(context.Background(), vectorstore.Record{
		Key:      "a",
		Content:  "hello",
		Metadata: map[string]any{"lang": "en"},
		Vector:   []float32{1, 0},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	expectMet(t, mock)
}

func TestUpsert_DimensionMismatchSkipsQuery(t *testing.T) {
	mock := newMock(t)
	c := New(mock, 2).handle("docs", 2)

	err := c.Upsert(context.Background(), vectorstore.Record{Key: "a", Vector: []float32{1, 0, 0}})
	if !errors.Is(err, vectorstore.ErrDimensionMismatch) {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}
	expectMet(t, mock)
}

func TestGet(t *testing.T) {
	mock := newMock(t)
	c := New(mock, 2).handle("docs", 2)

	mock.ExpectQuery("SELECT key, content, metadata, embedding FROM").
		WithArgs("a").
		WillReturnRows(pgxmock.NewRows([]string{"key", "content", "metadata", "embedding"}).
			AddRow("a", "hello", []byte(`{"lang":"en"}`), pgvector.NewVector([]float32{1, 0})))

	rec, err := c.Get(context.Background(), "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Key != "a" || rec.Content != "hello" || rec.Metadata["lang"] != "en" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if len(rec.Vector) != 2 || rec.Vector[0] != 1 {
		t.Errorf("Vector: got %v", rec.Vector)
	}
	expectMet(t, mock)
}

func TestGet_NotFound(t *testing.T) {
	mock := newMock(t)
	c := New(mock, 2).handle("docs", 2)

	mock.ExpectQuery("SELECT key, content, metadata, embedding FROM").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := c.Get(context.Background(), "missing"); !errors.Is(err, vectorstore.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	expectMet(t, mock)
}

func TestDelete(t *testing.T) {
	mock := newMock(t)
	c := New(mock, 2).handle("docs", 2)

	mock.ExpectExec(`DELETE FROM "aibridge_vs_docs"`).
		WithArgs("a").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM "aibridge_vs_docs"`).
		WithArgs("a").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := c.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := c.Delete(context.Background(), "a"); !errors.Is(err, vectorstore.ErrNotFound) {
		t.Fatalf("second Delete: got %v, want ErrNotFound", err)
	}
	expectMet(t, mock)
}

func TestSearch(t *testing.T) {
	mock := newMock(t)
	c := New(mock, 2).handle("docs", 2)

	columns := []string{"key", "content", "metadata", "embedding", "score"}
	mock.ExpectQuery("SELECT key, content, metadata, embedding").
		WithArgs(pgvector.NewVector([]float32{1, 0}), vectorstore.DefaultTopK).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("east", "", []byte(`{}`), pgvector.NewVector([]float32{1, 0}), 1.0).
			AddRow("north", "", []byte(`{}`), pgvector.NewVector([]float32{0, 1}), 0.0))

	results, err := c.Search(context.Background(), []float32{1, 0}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Record.Key != "east" || results[0].Score != 1.0 {
		t.Errorf("first result: got %+v", results[0])
	}
	if results[0].Record.Metadata != nil {
		t.Errorf("empty metadata should decode to nil, got %v", results[0].Record.Metadata)
	}
	expectMet(t, mock)
}

func TestSearch_Empty(t *testing.T) {
	mock := newMock(t)
	c := New(mock, 2).handle("docs", 2)

	mock.ExpectQuery("SELECT key, content, metadata, embedding").
		WithArgs(pgxmock.AnyArg(), 3).
		WillReturnRows(pgxmock.NewRows([]string{"key", "content", "metadata", "embedding", "score"}))

	results, err := c.Search(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", results)
	}
	expectMet(t, mock)
}

func TestPing(t *testing.T) {
	t.Parallel()

	down := errors.New("connection refused")
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "reachable"},
		{name: "unreachable", err: down, wantErr: down},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := newMock(t)
			q := mock.ExpectQuery("SELECT 1")
			if tt.err != nil {
				q.WillReturnError(tt.err)
			} else {
				q.WillReturnRows(pgxmock.NewRows([]string{"one"}).AddRow(1))
			}

			err := New(mock, 3).Ping(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Ping() = %v, want %v", err, tt.wantErr)
			}
			expectMet(t, mock)
		})
	}
}
