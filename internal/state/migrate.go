package state

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// errNotOpened is returned by every operation on a store before Open.
var errNotOpened = errors.New("history store not opened")

// provider builds a goose provider over the embedded migrations. Debug
// records from goose go to the store logger.
func (s *SQLiteStore) provider() (*goose.Provider, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, s.db, sub, goose.WithSlog(s.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare migrations: %w", err)
	}
	return p, nil
}

// Migrate applies pending schema migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	p, err := s.provider()
	if err != nil {
		return err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate history store: %w", err)
	}
	for _, r := range results {
		s.logger.Debug("applied migration",
			slog.Int64("version", r.Source.Version),
			slog.Duration("took", r.Duration))
	}
	return nil
}

// MigrationVersion returns the schema version of the open database.
func (s *SQLiteStore) MigrationVersion(ctx context.Context) (int64, error) {
	p, err := s.provider()
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}
