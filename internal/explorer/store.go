// Package explorer serves a clustered corpus over HTTP for visualization.
// It materializes pipeline checkpoints into a SQLite database and exposes
// clusters, conversations, and full-text summary search.
package explorer

import (
	"database/sql"
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	_ "github.com/mattn/go-sqlite3" // SQLite driver with FTS5 support
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the explorer database. Raw SQL access is kept for FTS5
// queries that GORM cannot express.
type Store struct {
	DB    *gorm.DB
	sqlDB *sql.DB
}

// StoreConfig holds database configuration.
type StoreConfig struct {
	Path     string
	MaxConns int
	LogLevel logger.LogLevel
}

// NewStore opens the explorer database with WAL mode enabled and the
// schema migrated.
func NewStore(cfg StoreConfig) (*Store, error) {
	dsn := cfg.Path + "?_foreign_keys=ON"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger:      logger.Default.LogMode(cfg.LogLevel),
		PrepareStmt: true,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// WAL and synchronous are set after migrations, on the raw connection,
	// to avoid GORM transaction wrapping.
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("set synchronous mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &Store{DB: db, sqlDB: sqlDB}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// RawDB returns the underlying *sql.DB for FTS5 queries.
func (s *Store) RawDB() *sql.DB {
	return s.sqlDB
}

func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&ConversationRecord{},
					&MessageRecord{},
					&SummaryRecord{},
					&ClusterRecord{},
					&ClusterConversation{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"conversations", "messages", "summaries",
					"clusters", "cluster_conversations",
				)
			},
		},
		{
			ID: "002_summaries_fts",
			Migrate: func(tx *gorm.DB) error {
				sqls := []string{
					`CREATE VIRTUAL TABLE IF NOT EXISTS summaries_fts USING fts5(
						summary,
						content='summaries',
						content_rowid='rowid'
					)`,
					`CREATE TRIGGER IF NOT EXISTS summaries_ai AFTER INSERT ON summaries BEGIN
						INSERT INTO summaries_fts(rowid, summary)
						VALUES (new.rowid, new.summary);
					END`,
					`CREATE TRIGGER IF NOT EXISTS summaries_ad AFTER DELETE ON summaries BEGIN
						INSERT INTO summaries_fts(summaries_fts, rowid, summary)
						VALUES('delete', old.rowid, old.summary);
					END`,
				}
				for _, s := range sqls {
					if err := tx.Exec(s).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				sqls := []string{
					"DROP TRIGGER IF EXISTS summaries_ad",
					"DROP TRIGGER IF EXISTS summaries_ai",
					"DROP TABLE IF EXISTS summaries_fts",
				}
				for _, s := range sqls {
					if err := tx.Exec(s).Error; err != nil {
						return err
					}
				}
				return nil
			},
		},
	})
	return m.Migrate()
}
