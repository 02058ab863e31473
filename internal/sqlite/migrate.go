package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"
)

// Queries comparing the live schema against the attached schemaTarget database. The single parameter is the
// sqlite_schema type: table, index or trigger.
const (
	queryRemoved = `SELECT live.name
FROM sqlite_schema AS live
         LEFT JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = ?
  AND target.type IS NULL
  AND live.name NOT LIKE 'sqlite_%'`
	queryAdded = `SELECT target.sql
FROM schemaTarget.sqlite_schema AS target
         LEFT JOIN sqlite_schema AS live ON live.name = target.name AND live.type = target.type
WHERE target.type = ?
  AND live.type IS NULL
  AND target.name NOT LIKE 'sqlite_%'`
	// ALTER TABLE RENAME quotes the table name, so quotes are ignored in the comparison.
	queryChanged = `SELECT live.name, target.sql
FROM sqlite_schema AS live
         JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = ?
  AND live.name NOT LIKE 'sqlite_%'
  AND REPLACE(live.sql, '"', '') <> REPLACE(target.sql, '"', '')`
	// Column names are quoted since some of them may be SQLite keywords.
	queryCommonColumns = `SELECT '"' || target.name || '"'
FROM PRAGMA_TABLE_INFO(:table_name) AS live
         JOIN PRAGMA_TABLE_INFO(:table_name, 'schemaTarget') AS target ON target.name = live.name`
)

// migrateTo makes the live schema match schemaDefinition declaratively: removed tables are dropped, new ones created,
// changed ones rebuilt with the 12-step procedure from https://www.sqlite.org/lang_altertable.html#otheralter,
// and indexes and triggers synchronised afterwards.
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) error {
	start := time.Now()

	detach, err := db.attachSchemaTarget(ctx, schemaDefinition)
	if err != nil {
		return fmt.Errorf("attach schema target: %w", err)
	}
	defer detach()

	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	defer db.enableForeignKeys(ctx)

	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		if err = db.migrateTables(ctx, tx); err != nil {
			return fmt.Errorf("migrate tables: %w", err)
		}
		for _, typ := range []string{"trigger", "index"} {
			if err = db.migrateEntities(ctx, tx, typ); err != nil {
				return fmt.Errorf("migrate %s: %w", typ, err)
			}
		}
		if _, err = tx.ExecContext(ctx, "PRAGMA foreign_key_check"); err != nil {
			return fmt.Errorf("foreign key check: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrated database", slog.Duration("duration", time.Since(start)))
	return nil
}

// enableForeignKeys turns foreign key enforcement back on. Continuing without it risks silent corruption, so the
// process is interrupted when it fails.
func (db *Database) enableForeignKeys(ctx context.Context) {
	if _, err := db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.logger.LogAttrs(ctx, slog.LevelError, "exit to avoid data corruption", slog.Any("error", err))
		if err = syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
			os.Exit(1)
		}
	}
}

// attachSchemaTarget creates the target schema in a scratch in-memory database and attaches it as schemaTarget.
func (db *Database) attachSchemaTarget(ctx context.Context, schemaDefinition string) (func(), error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", rand.Text())
	target, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open schema target: %w", err)
	}
	defer func() {
		if closeErr := target.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close schema target", slog.Any("error", closeErr))
		}
	}()
	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		return nil, fmt.Errorf("create schema target: %w", err)
	}
	if _, err = db.ReadWrite.ExecContext(ctx, "ATTACH DATABASE ? AS schemaTarget", dsn); err != nil {
		return nil, fmt.Errorf("attach database: %w", err)
	}
	return func() {
		if _, detachErr := db.ReadWrite.ExecContext(ctx, "DETACH DATABASE schemaTarget"); detachErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to detach schema target", slog.Any("error", detachErr))
		}
	}, nil
}

func (db *Database) migrateTables(ctx context.Context, tx *sql.Tx) error {
	removed, err := queryStrings(ctx, tx, queryRemoved, "table")
	if err != nil {
		return fmt.Errorf("query removed tables: %w", err)
	}
	for _, table := range removed {
		if err = db.exec(ctx, tx, "dropping table", fmt.Sprintf("DROP TABLE %s", table)); err != nil {
			return err
		}
	}

	added, err := queryStrings(ctx, tx, queryAdded, "table")
	if err != nil {
		return fmt.Errorf("query added tables: %w", err)
	}
	for _, createSQL := range added {
		if err = db.exec(ctx, tx, "creating table", createSQL); err != nil {
			return err
		}
	}

	changed, err := queryChangedEntities(ctx, tx, "table")
	if err != nil {
		return fmt.Errorf("query changed tables: %w", err)
	}
	for _, table := range changed {
		if err = db.rebuildTable(ctx, tx, table); err != nil {
			return fmt.Errorf("rebuild table %s: %w", table.name, err)
		}
	}
	return nil
}

// rebuildTable creates the new definition under a temporary name, copies the shared columns over and swaps the
// tables.
func (db *Database) rebuildTable(ctx context.Context, tx *sql.Tx, table changedEntity) error {
	tempName := table.name + "_migration_temp"
	if err := db.exec(ctx, tx, "creating table under temporary name",
		strings.Replace(table.newSQL, table.name, tempName, 1)); err != nil {
		return err
	}

	columns, err := queryStrings(ctx, tx, queryCommonColumns, sql.Named("table_name", table.name))
	if err != nil {
		return fmt.Errorf("query common columns: %w", err)
	}
	common := strings.Join(columns, ", ")
	steps := []struct{ msg, query string }{
		{"copying data", fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", tempName, common, common, table.name)},
		{"dropping old table", fmt.Sprintf("DROP TABLE %s", table.name)},
		{"renaming new table", fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tempName, table.name)},
	}
	for _, step := range steps {
		if err = db.exec(ctx, tx, step.msg, step.query); err != nil {
			return err
		}
	}
	return nil
}

// migrateEntities synchronises indexes or triggers. Changed entities are dropped and recreated.
func (db *Database) migrateEntities(ctx context.Context, tx *sql.Tx, typ string) error {
	removed, err := queryStrings(ctx, tx, queryRemoved, typ)
	if err != nil {
		return fmt.Errorf("query removed: %w", err)
	}
	for _, name := range removed {
		if err = db.exec(ctx, tx, "dropping "+typ, fmt.Sprintf("DROP %s %s", strings.ToUpper(typ), name)); err != nil {
			return err
		}
	}

	changed, err := queryChangedEntities(ctx, tx, typ)
	if err != nil {
		return fmt.Errorf("query changed: %w", err)
	}
	for _, entity := range changed {
		if err = db.exec(ctx, tx, "dropping changed "+typ,
			fmt.Sprintf("DROP %s %s", strings.ToUpper(typ), entity.name)); err != nil {
			return err
		}
	}

	// Changed entities were dropped above, so they show up as added here.
	added, err := queryStrings(ctx, tx, queryAdded, typ)
	if err != nil {
		return fmt.Errorf("query added: %w", err)
	}
	for _, createSQL := range added {
		if err = db.exec(ctx, tx, "creating "+typ, createSQL); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) exec(ctx context.Context, tx *sql.Tx, msg string, query string) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, msg, slog.String("query", query))
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return nil
}

type changedEntity struct {
	name   string
	newSQL string
}

func queryChangedEntities(ctx context.Context, tx *sql.Tx, typ string) ([]changedEntity, error) {
	return queryRows(ctx, tx, func(rows *sql.Rows) (changedEntity, error) {
		var e changedEntity
		err := rows.Scan(&e.name, &e.newSQL)
		return e, err
	}, queryChanged, typ)
}

func queryStrings(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	return queryRows(ctx, tx, func(rows *sql.Rows) (string, error) {
		var s string
		err := rows.Scan(&s)
		return s, err
	}, query, args...)
}

func queryRows[T any](
	ctx context.Context,
	tx *sql.Tx,
	scan func(*sql.Rows) (T, error),
	query string,
	args ...any,
) (_ []T, err error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()
	var results []T
	for rows.Next() {
		var result T
		if result, err = scan(rows); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		results = append(results, result)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return results, nil
}
