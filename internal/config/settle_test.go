package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/illuminode/internal/session"
)

func TestLoadSettleDelays(t *testing.T) {
	path := writeTemp(t, "settle.toml", `
[settle]
default = "80ms"
sequence = 300
array_distance = "1s"
`)

	d, err := LoadSettleDelays(path)
	if err != nil {
		t.Fatalf("LoadSettleDelays() error = %v", err)
	}

	want := session.DefaultSettleDelays()
	want.Default = 80 * time.Millisecond
	want.Sequence = 300 * time.Millisecond
	want.ArrayDistance = time.Second
	if d != want {
		t.Errorf("LoadSettleDelays() = %+v, want %+v", d, want)
	}
}

func TestLoadSettleDelaysEmptyTable(t *testing.T) {
	path := writeTemp(t, "settle.toml", "# nothing here\n")

	d, err := LoadSettleDelays(path)
	if err != nil {
		t.Fatalf("LoadSettleDelays() error = %v", err)
	}
	if d != session.DefaultSettleDelays() {
		t.Errorf("expected defaults, got %+v", d)
	}
}

func TestLoadSettleDelaysErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "[settle]\nblink = 10\n", "unknown settle key"},
		{"negative", "[settle]\nclear = -10\n", "negative"},
		{"bad duration", "[settle]\nclear = \"soon\"\n", "settle.clear"},
		{"wrong type", "[settle]\nclear = true\n", "unsupported"},
		{"bad toml", "[settle\n", "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, "settle.toml", tt.content)
			_, err := LoadSettleDelays(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadSettleDelays(filepath.Join(t.TempDir(), "none.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
