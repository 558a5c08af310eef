package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"spartispese/internal/config"
	applog "spartispese/internal/log"
)

func TestCreateBackend(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"memory", Config{Type: MemoryBackend, DataDirectory: t.TempDir()}},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "test.db")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFactory(applog.Discard())
			res, err := f.CreateBackend(context.Background(), tt.config)
			if err != nil {
				t.Fatalf("CreateBackend: %v", err)
			}
			if res.Publisher != nil {
				t.Error("publisher created without AMQP URL")
			}
			if err := res.Repository.Ping(context.Background()); err != nil {
				t.Errorf("Ping: %v", err)
			}
			cats, err := res.Repository.Categories(context.Background())
			if err != nil || len(cats) == 0 || cats[0].ID != 0 {
				t.Errorf("Categories = %v, %v", cats, err)
			}
			if err := res.Cleanup(); err != nil {
				t.Errorf("Cleanup: %v", err)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite with path", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"unknown type", Config{Type: "sheets"}, true},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://localhost", AMQPExchange: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateListsValidTypes(t *testing.T) {
	err := Config{Type: "sheets"}.Validate()
	if err == nil || !strings.Contains(err.Error(), "valid: sqlite, memory") {
		t.Fatalf("got %v", err)
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "a.db", SeedDir: "seed"})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "a.db" || cfg.DataDirectory != "seed" {
		t.Errorf("unexpected config %+v", cfg)
	}
}
