// Package orm implements the repository interfaces with gorm.
//
// One Store serves users, jokes, comments and likes over a single connection
// pool. The dialect is picked from Config.Driver:
//
//   - "sqlite"   embedded database through modernc.org/sqlite (pure Go driver,
//     registered as "sqlite"); ":memory:" gives a throwaway database for tests
//   - "mysql"    gorm.io/driver/mysql
//   - "postgres" gorm.io/driver/postgres (pgx underneath)
//
// The schema is owned by gorm's AutoMigrate and the struct tags in package model.
package orm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// Registers the pure Go "sqlite" database/sql driver used by the sqlite dialect.
	_ "modernc.org/sqlite"

	"github.com/HarveyThePooka404/jokes/internal/model"
)

const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	// modernc registers itself under this name; gorm's sqlite dialect would
	// otherwise open "sqlite3".
	sqliteDriverName = "sqlite"
)

// Config selects the dialect and tunes the connection pool.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Debug logs every SQL statement through gorm's logger.
	Debug bool
}

// Store wraps a gorm.DB and implements every repository interface.
type Store struct {
	db *gorm.DB
}

// New opens the database, verifies the connection and migrates the schema.
func New(ctx context.Context, cfg Config) (*Store, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("orm: opening %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("orm: getting sql.DB: %w", err)
	}

	if isMemory(cfg) {
		// Every new connection to ":memory:" is a brand new, empty database.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("orm: pinging %s database: %w", cfg.Driver, err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("orm: running migrations: %w", err)
	}

	return s, nil
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return sqlite.New(sqlite.Config{
			DriverName: sqliteDriverName,
			DSN:        sqliteDSN(cfg.DSN),
		}), nil
	case DriverMySQL:
		return mysql.Open(cfg.DSN), nil
	case DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("orm: unsupported driver %q", cfg.Driver)
	}
}

// sqliteDSN appends the connection pragmas modernc understands. Foreign keys
// are off by default in SQLite; WAL lets readers proceed during a write.
func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = ":memory:"
	}
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}

	pragmas := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)"}
	if !strings.Contains(dsn, ":memory:") {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(pragmas, "&")
}

func isMemory(cfg Config) bool {
	return (cfg.Driver == DriverSQLite || cfg.Driver == "") &&
		(cfg.DSN == "" || strings.Contains(cfg.DSN, ":memory:"))
}

func (s *Store) migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&model.User{},
		&model.Joke{},
		&model.Comment{},
		&model.LikedJoke{},
	)
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("orm: getting sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("orm: getting sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// isUniqueViolation recognises duplicate-key errors. mysql and postgres errors
// are translated by gorm; the modernc driver's are matched by message.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
