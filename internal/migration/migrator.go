// Package migration applies the embedded schema with goose.
package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/config"
	"github.com/NovaByteCorp/deliverypro/internal/database"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var migrations embed.FS

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// Module provides the Migrator.
var Module = fx.Provide(New)

// Migrator wraps goose operations.
type Migrator struct {
	db      *bun.DB
	dialect string
	logger  *zap.Logger
}

// New constructs a goose-backed migrator on the writer pool.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{db: conns.Writer, dialect: dialect, logger: logger.Named("migration")}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	return m.run(func() error {
		if err := goose.UpContext(ctx, m.db.DB, migrationsDir); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to apply")
				return nil
			}
			return err
		}
		m.logger.Info("migrations applied")
		return nil
	})
}

// Down rolls back migrations. Steps <=0 defaults to 1; all=true rolls everything back.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	return m.run(func() error {
		if all {
			if err := goose.DownToContext(ctx, m.db.DB, migrationsDir, 0); err != nil && !isNoMigrationErr(err) {
				return err
			}
			m.logger.Info("migrations rolled back", zap.String("mode", "all"))
			return nil
		}

		if steps <= 0 {
			steps = 1
		}
		for i := 0; i < steps; i++ {
			if err := goose.DownContext(ctx, m.db.DB, migrationsDir); err != nil {
				if isNoMigrationErr(err) {
					m.logger.Info("no migrations to rollback", zap.Int("rolled_back", i))
					return nil
				}
				return err
			}
		}
		m.logger.Info("migrations rolled back", zap.Int("steps", steps))
		return nil
	})
}

// Version reports the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	var version int64
	err := m.run(func() error {
		v, err := goose.GetDBVersionContext(ctx, m.db.DB)
		version = v
		return err
	})
	return version, err
}

func (m *Migrator) run(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{m.logger.Sugar()})
	if err := goose.SetDialect(m.dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	return fn()
}

// gooseLogger routes goose output through zap.
type gooseLogger struct {
	s *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.s.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.s.Fatalf(strings.TrimSuffix(format, "\n"), v...)
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case "postgres", "pg":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoCurrentVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "no migration") || strings.Contains(msg, "no current version")
}
