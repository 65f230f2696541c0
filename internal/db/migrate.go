package db

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/jonathan/resume-matcher/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLogger adapts zap to migrate.Logger
type migrationLogger struct {
	log *zap.SugaredLogger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.log.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (l migrationLogger) Verbose() bool {
	return false
}

// Migrate applies the embedded migrations. version 0 migrates to the latest;
// a negative version rolls everything back.
func Migrate(databaseURL string, version int, log *zap.Logger) error {
	log = logger.OrNop(log).Named("migrate")

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrationURL(databaseURL))
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()
	m.Log = migrationLogger{log: log.Sugar()}

	switch {
	case version < 0:
		err = m.Down()
	case version > 0:
		err = m.Migrate(uint(version))
	default:
		err = m.Up()
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("No new migrations to apply")
		return nil
	}
	if err != nil {
		current, dirty, _ := m.Version()
		return fmt.Errorf("failed to apply migrations (version %d, dirty=%t): %w", current, dirty, err)
	}

	current, _, _ := m.Version()
	log.Info("Successfully applied migrations", zap.Uint("version", current))
	return nil
}

// migrationURL rewrites a postgres:// URL to the pgx5:// scheme the driver registers
func migrationURL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}
