package store

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"engram/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// runMigrations applies forward-only schema migrations under goose, then
// verifies the database isn't ahead of what this binary's migration set
// supports — the schema_version check the spec requires at startup.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}

	migrations, err := goose.CollectMigrations(migrationsDir, 0, goose.MaxVersion)
	if err != nil {
		return fmt.Errorf("collect migrations: %w", err)
	}
	var latest int64
	for _, m := range migrations {
		if m.Version > latest {
			latest = m.Version
		}
	}

	dbVersion, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dbVersion > latest {
		return domain.NewError("Store.Migrate", domain.ErrSchemaMismatch,
			fmt.Sprintf("db schema at version %d, binary supports up to %d", dbVersion, latest))
	}

	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// ensureMeta writes the embedding dimension and FTS tokenizer choice into the
// meta table on first run, and verifies them against the running config on
// subsequent runs.
func ensureMeta(db *sql.DB, embeddingDim int) error {
	const tokenizer = "unicode61"

	row := db.QueryRow(`SELECT value FROM meta WHERE key = 'embedding_dim'`)
	var existing string
	switch err := row.Scan(&existing); err {
	case sql.ErrNoRows:
		_, err := db.Exec(`INSERT INTO meta(key, value) VALUES ('embedding_dim', ?), ('fts_tokenizer', ?)`,
			fmt.Sprintf("%d", embeddingDim), tokenizer)
		return err
	case nil:
		if existing != fmt.Sprintf("%d", embeddingDim) {
			return domain.NewError("Store.Migrate", domain.ErrSchemaMismatch,
				fmt.Sprintf("store was created with embedding dimension %s, configured dimension is %d", existing, embeddingDim))
		}
		return nil
	default:
		return err
	}
}
