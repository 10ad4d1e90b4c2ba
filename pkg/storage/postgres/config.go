package postgres

import (
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds PostgreSQL pool settings.
type Config struct {
	// DSN is a postgres:// URL or key=value connection string. SQLAlchemy
	// driver suffixes such as "postgresql+psycopg2://" are accepted.
	DSN string

	MaxConns int32 // default: 25
	MinConns int32 // default: 0

	// MaxConnLifetime recycles connections, which serverless databases
	// such as Neon require. Default: 5 minutes.
	MaxConnLifetime time.Duration

	// MigrateOnStart applies the embedded schema on New.
	MigrateOnStart bool
}

var driverSuffix = regexp.MustCompile(`^(postgres(?:ql)?)\+[a-z0-9]+://`)

// poolConfig parses the DSN and applies the pool limits.
func (c Config) poolConfig() (*pgxpool.Config, error) {
	dsn := driverSuffix.ReplaceAllString(c.DSN, "$1://")
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	pc.MaxConns = 25
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		pc.MinConns = min(c.MinConns, pc.MaxConns)
	}
	pc.MaxConnLifetime = 5 * time.Minute
	if c.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = c.MaxConnLifetime
	}
	// Idle connections are checked regularly rather than on every checkout.
	pc.HealthCheckPeriod = 30 * time.Second
	return pc, nil
}
