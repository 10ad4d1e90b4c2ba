package postgres

import (
	"testing"
	"time"
)

func TestPoolConfig(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantMax      int32
		wantMin      int32
		wantLifetime time.Duration
		wantDB       string
	}{
		{
			name:         "defaults",
			cfg:          Config{DSN: "postgres://u:p@localhost:5432/todo"},
			wantMax:      25,
			wantLifetime: 5 * time.Minute,
			wantDB:       "todo",
		},
		{
			name:         "sqlalchemy driver suffix",
			cfg:          Config{DSN: "postgresql+psycopg2://u:p@localhost/neon", MaxConns: 4, MinConns: 9},
			wantMax:      4,
			wantMin:      4,
			wantLifetime: 5 * time.Minute,
			wantDB:       "neon",
		},
		{
			name:         "explicit lifetime",
			cfg:          Config{DSN: "host=localhost dbname=todo", MaxConnLifetime: time.Minute},
			wantMax:      25,
			wantLifetime: time.Minute,
			wantDB:       "todo",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := tt.cfg.poolConfig()
			if err != nil {
				t.Fatalf("poolConfig() error: %v", err)
			}
			if pc.MaxConns != tt.wantMax || pc.MinConns != tt.wantMin {
				t.Errorf("conns = %d/%d, want %d/%d", pc.MaxConns, pc.MinConns, tt.wantMax, tt.wantMin)
			}
			if pc.MaxConnLifetime != tt.wantLifetime {
				t.Errorf("MaxConnLifetime = %v, want %v", pc.MaxConnLifetime, tt.wantLifetime)
			}
			if pc.ConnConfig.Database != tt.wantDB {
				t.Errorf("Database = %q, want %q", pc.ConnConfig.Database, tt.wantDB)
			}
		})
	}
}

func TestPoolConfigRejectsBadDSN(t *testing.T) {
	if _, err := (Config{DSN: "postgres://%zz"}).poolConfig(); err == nil {
		t.Error("poolConfig() = nil error for a malformed DSN")
	}
}
