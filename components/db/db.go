// Package db is the storage collaborator. Plugins declare model registrations
// before Init; Init opens the connection by URL scheme and migrates every
// registered model, mirroring the discover → preload → init ordering the
// lifecycle orchestrator enforces.
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// registration is one RegisterModel call: the declaring path (for logs and
// duplicate detection) and the gorm model structs to migrate.
type registration struct {
	path   string
	models []any
}

// Database owns the gorm connection and the model registration list.
type Database struct {
	url    string
	logger *zap.Logger

	gdb           *gorm.DB
	active        bool
	registrations []registration
}

// New creates an unopened Database for the given URL. Supported schemes:
// sqlite://, postgres://, mysql://.
func New(url string, logger *zap.Logger) *Database {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Database{
		url:    url,
		logger: logger.With(zap.String("component", "db")),
	}
}

// RegisterModel records gorm models under a declaring path. Must be called
// before Init; registrations after Init are a caller bug and are rejected.
func (d *Database) RegisterModel(path string, models ...any) error {
	if d.active {
		return fmt.Errorf("cannot register model %q: database already initialized", path)
	}
	d.registrations = append(d.registrations, registration{path: path, models: models})
	d.logger.Info("registered model module",
		zap.String("path", path),
		zap.Int("models", len(models)),
	)
	return nil
}

// ModelPaths returns the declaring paths registered so far.
func (d *Database) ModelPaths() []string {
	paths := make([]string, len(d.registrations))
	for i, reg := range d.registrations {
		paths[i] = reg.path
	}
	return paths
}

// Init opens the connection and auto-migrates every registered model.
// Re-initializing an active database is an error until Close.
func (d *Database) Init(ctx context.Context) error {
	if d.active {
		return errors.New("database already initialized")
	}
	dialector, err := dialectorFor(d.url)
	if err != nil {
		return err
	}
	d.logger.Info("initializing database",
		zap.Int("model_modules", len(d.registrations)),
	)
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	var all []any
	for _, reg := range d.registrations {
		all = append(all, reg.models...)
	}
	if len(all) > 0 {
		if err := gdb.WithContext(ctx).AutoMigrate(all...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	d.gdb = gdb
	d.active = true
	d.logger.Info("database initialized")
	return nil
}

// DB returns the gorm handle (nil before Init).
func (d *Database) DB() *gorm.DB { return d.gdb }

// Active reports whether Init has completed.
func (d *Database) Active() bool { return d.active }

// Close shuts the underlying connection pool down.
func (d *Database) Close() error {
	if !d.active {
		d.logger.Warn("database not active, nothing to close")
		return nil
	}
	sqlDB, err := d.gdb.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	d.active = false
	d.logger.Info("database closed")
	return sqlDB.Close()
}

// dialectorFor picks a gorm dialector from the URL scheme.
func dialectorFor(url string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(url, "sqlite://")), nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), nil
	case strings.HasPrefix(url, "mysql://"):
		return mysql.Open(strings.TrimPrefix(url, "mysql://")), nil
	default:
		return nil, fmt.Errorf("unsupported database url scheme: %s", url)
	}
}
