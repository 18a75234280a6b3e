package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		path string
		opts Options
		want string
	}{
		{"no params", "./jobs.db", Options{}, "./jobs.db"},
		{"defaults", "./jobs.db", DefaultOptions(), "./jobs.db?_busy_timeout=5000&_foreign_keys=on"},
		{"file uri", "file::memory:?cache=shared", Options{ForeignKeys: true}, "file::memory:?cache=shared&_foreign_keys=on"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildDSN(tt.path, tt.opts); got != tt.want {
				t.Errorf("buildDSN = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"./jobs.db", false},
		{":memory:", false},
		{"file::memory:?cache=shared", false},
		{"", true},
		{"   ", true},
		{"./jobs.db?cache=shared", true},
	}

	for _, tt := range tests {
		err := ValidatePath(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePath(%q) err = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
	}
}

func TestConnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	path := filepath.Join(t.TempDir(), "jobs.db")
	db, err := Dialer(DefaultOptions())(ctx, path)
	if err != nil {
		if strings.Contains(err.Error(), "cgo") {
			t.Skip("sqlite3 driver built without cgo")
		}
		t.Fatalf("Connect: %v", err)
	}

	if !db.Live() {
		t.Error("new connection not live")
	}
	var mode string
	if err := db.Raw().QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	if err := db.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if db.Live() {
		t.Error("closed connection reports live")
	}
}
