// Package registry opens a storage.Backend from a DSN.
package registry

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/FranksOps/catalogsync/internal/storage"
	"github.com/FranksOps/catalogsync/internal/storage/jsonbackend"
	"github.com/FranksOps/catalogsync/internal/storage/postgres"
	"github.com/FranksOps/catalogsync/internal/storage/sqlite"
)

// Open selects a backend by the DSN scheme:
//
//	postgres://… or postgresql://…  PostgreSQL
//	sqlite://path or file:path      SQLite
//	json://path                     JSON snapshot file
//	memory://                       in-memory snapshot
func Open(ctx context.Context, dsn string) (storage.Backend, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.New(ctx, dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.New(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.New(dsn)
	case strings.HasPrefix(dsn, "json://"):
		return jsonbackend.New(strings.TrimPrefix(dsn, "json://"))
	case dsn == "memory://" || dsn == "memory:":
		return jsonbackend.New("")
	default:
		return nil, fmt.Errorf("unsupported store dsn %q", Redact(dsn))
	}
}

// Redact returns dsn with any password masked, for logs and errors.
func Redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		// Not URL shaped, e.g. a key=value connection string.
		if strings.Contains(strings.ToLower(dsn), "password") {
			return "xxxxx"
		}
		return dsn
	}
	if _, ok := u.User.Password(); !ok {
		return dsn
	}
	return u.Redacted()
}
