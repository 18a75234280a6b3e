package mysql

import (
	"context"
	"testing"
	"time"
)

func TestValidateDSN(t *testing.T) {
	tests := []struct {
		dsn     string
		wantErr bool
	}{
		{"jobs:secret@tcp(localhost:3306)/jobboard", false},
		{"jobs:secret@tcp(localhost:3306)/jobboard?parseTime=true", false},
		{"jobs@unix(/var/run/mysqld/mysqld.sock)/jobboard", false},
		{"jobs:secret@tcp(localhost:3306)/jobboard?timeout=soon", true},
		{"not a dsn", true},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			err := ValidateDSN(tt.dsn)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDSN(%q) err = %v, wantErr %v", tt.dsn, err, tt.wantErr)
			}
		})
	}
}

func TestNilDB(t *testing.T) {
	var d *DB
	if d.Live() {
		t.Error("nil DB reports live")
	}
	if err := d.Close(context.Background()); err != nil {
		t.Errorf("Close on nil DB: %v", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("dials the network")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := Dialer(DefaultPoolConfig())(ctx, "jobs@tcp(127.0.0.1:1)/jobboard"); err == nil {
		t.Fatal("expected an error dialing a closed port")
	}
}
