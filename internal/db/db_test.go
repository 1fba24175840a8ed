package db

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenAppliesPragmas(t *testing.T) {
	database, err := Open(context.Background(), filepath.Join(t.TempDir(), "pragmas.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	var foreignKeys int
	if err := database.QueryRow(`PRAGMA foreign_keys`).Scan(&foreignKeys); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Fatalf("foreign_keys = %d, want 1", foreignKeys)
	}

	var journal string
	if err := database.QueryRow(`PRAGMA journal_mode`).Scan(&journal); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journal != "wal" {
		t.Fatalf("journal_mode = %q, want wal", journal)
	}
}

func TestDSNBeginsImmediateTransactions(t *testing.T) {
	for _, path := range []string{"app.db", "file:app.db?cache=shared"} {
		got := dsn(path)
		_, raw, ok := strings.Cut(got, "?")
		if !ok {
			t.Fatalf("dsn(%q) = %q, missing query", path, got)
		}
		q, err := url.ParseQuery(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", got, err)
		}
		if q.Get("_txlock") != "immediate" {
			t.Fatalf("dsn(%q) _txlock = %q, want immediate", path, q.Get("_txlock"))
		}
		if len(q["_pragma"]) != len(pragmas) {
			t.Fatalf("dsn(%q) pragmas = %v", path, q["_pragma"])
		}
	}
}
