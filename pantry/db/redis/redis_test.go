package redis

import (
	"context"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"redis://localhost:6379", false},
		{"redis://:secret@localhost:6379/2", false},
		{"rediss://cache.internal:6380", false},
		{"http://localhost:6379", true},
		{"redis://localhost:6379/notadb", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) err = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if c.Live() {
		t.Error("nil client reports live")
	}
	if err := c.Close(context.Background()); err != nil {
		t.Errorf("Close on nil client: %v", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("dials the network")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := Dialer(Options{})(ctx, "redis://127.0.0.1:1"); err == nil {
		t.Fatal("expected an error dialing a closed port")
	}
}
