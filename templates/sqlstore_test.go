package templates

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zeptools/gw-typst/db/sqldb"
)

// fakeSQL answers the two template queries from a map and records them.
type fakeSQL struct {
	dbType  string
	bodies  map[string]string
	nulls   map[string]bool
	names   []string
	queries []string
}

func (f *fakeSQL) Init() error                { return nil }
func (f *fakeSQL) Close() error               { return nil }
func (f *fakeSQL) GetConf() *sqldb.Conf       { return &sqldb.Conf{Type: f.dbType} }
func (f *fakeSQL) GetDSN() string             { return "" }
func (f *fakeSQL) Ping(context.Context) error { return nil }

func (f *fakeSQL) QueryRows(_ context.Context, query string, _ ...any) (sqldb.Rows, error) {
	f.queries = append(f.queries, query)
	return &fakeRows{items: f.names, pos: -1}, nil
}

func (f *fakeSQL) QueryRow(_ context.Context, query string, args ...any) sqldb.Row {
	f.queries = append(f.queries, query)
	name := args[0].(string)
	if f.nulls[name] {
		return fakeRow{ok: true}
	}
	body, ok := f.bodies[name]
	return fakeRow{body: body, ok: ok}
}

// fakeRow scans like database/sql: a nil body is NULL.
type fakeRow struct {
	body any
	ok   bool
}

func (r fakeRow) Scan(dest ...any) error {
	if !r.ok {
		return sqldb.ErrNoRows
	}
	if sc, ok := dest[0].(sql.Scanner); ok {
		return sc.Scan(r.body)
	}
	*dest[0].(*string) = r.body.(string)
	return nil
}

type fakeRows struct {
	items []string
	pos   int
}

func (r *fakeRows) Next() bool { r.pos++; return r.pos < len(r.items) }
func (r *fakeRows) Scan(dest ...any) error {
	*dest[0].(*string) = r.items[r.pos]
	return nil
}
func (r *fakeRows) Close() error { return nil }
func (r *fakeRows) Err() error   { return nil }

func TestSQLStore(t *testing.T) {
	db := &fakeSQL{
		dbType: "pgsql",
		bodies: map[string]string{"invoice": "= Invoice", "bad": "\xff"},
		nulls:  map[string]bool{"draft": true},
		names:  []string{"invoice", "letter"},
	}
	s, err := NewSQLStore(db, "docs.templates")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if body, err := s.Lookup(ctx, "invoice"); err != nil || body != "= Invoice" {
		t.Errorf("Lookup(invoice) = %q, %v", body, err)
	}
	if _, err := s.Lookup(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(missing) error = %v", err)
	}
	for _, name := range []string{"draft", "bad"} {
		if _, err := s.Lookup(ctx, name); !errors.Is(err, ErrUnreadable) {
			t.Errorf("Lookup(%s) error = %v", name, err)
		}
	}
	names, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"invoice", "letter"}, names); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
	if got, want := db.queries[0], "SELECT body FROM docs.templates WHERE name = $1"; got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
}

func TestSQLStoreMySQLPlaceholders(t *testing.T) {
	db := &fakeSQL{dbType: "mysql"}
	s, err := NewSQLStore(db, "")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = s.Lookup(context.Background(), "x")
	if got, want := db.queries[0], "SELECT body FROM typst_templates WHERE name = ?"; got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
}

func TestSQLStoreRejectsTableName(t *testing.T) {
	if _, err := NewSQLStore(&fakeSQL{dbType: "mysql"}, "t; DROP TABLE x"); err == nil {
		t.Error("NewSQLStore accepted an unsafe table name")
	}
}
