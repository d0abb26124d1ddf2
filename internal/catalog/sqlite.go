package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"pagevault/internal/catalog/migrations"
	"pagevault/internal/pv"
)

// SQLiteCatalog stores project versions in a SQLite database. A version
// and its pages are inserted in one transaction; the primary key on
// (project, version) rejects duplicates.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens the database at path (or ":memory:"), applies
// pending migrations and verifies the schema version.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating catalog: %w", err)
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog schema out of date: %w", err)
	}
	return &SQLiteCatalog{db: db}, nil
}

// OpenConnection opens a SQLite connection with foreign keys enforced.
// The pool is limited to one connection: SQLite serializes writers anyway,
// and an in-memory database exists only on the connection that created it.
// Transactions begin IMMEDIATE so a writer holds the write lock from its
// first read, and other processes wait on busy_timeout instead of racing.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

func (c *SQLiteCatalog) Publish(ctx context.Context, project *pv.Project, base string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return pv.NewStorageError("starting transaction", err)
	}
	defer tx.Rollback()

	var latest string
	err = tx.QueryRowContext(ctx,
		"SELECT version FROM versions WHERE project = ? ORDER BY created_at DESC, version DESC LIMIT 1",
		project.Name).Scan(&latest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return pv.NewStorageError("reading latest version", err)
	}
	if err := pv.CheckBase(project.Name, base, latest); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO versions (project, version, created_at) VALUES (?, ?, ?)",
		project.Name, project.Version, project.CreatedAt.UTC().UnixNano())
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %s", pv.ErrAlreadyExists, project.Ref())
		}
		return pv.NewStorageError("inserting version", err)
	}

	for i, page := range project.Pages {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO pages (project, version, position, name, title, content_hash) VALUES (?, ?, ?, ?, ?, ?)",
			project.Name, project.Version, i, page.Name, page.Title, page.ContentHash)
		if err != nil {
			return pv.NewStorageError("inserting page "+page.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return pv.NewStorageError("committing transaction", err)
	}
	return nil
}

func (c *SQLiteCatalog) Get(ctx context.Context, name, version string) (*pv.Project, error) {
	var createdAt int64
	err := c.db.QueryRowContext(ctx,
		"SELECT created_at FROM versions WHERE project = ? AND version = ?",
		name, version).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", pv.ErrNotFound, pv.FormatRef(name, version))
		}
		return nil, pv.NewStorageError("reading version", err)
	}

	p := &pv.Project{
		Name:      name,
		Version:   version,
		CreatedAt: time.Unix(0, createdAt).UTC(),
	}
	if p.Pages, err = c.pages(ctx, name, version); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *SQLiteCatalog) List(ctx context.Context, name string) ([]*pv.Project, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT version, created_at FROM versions WHERE project = ? ORDER BY created_at DESC, version DESC",
		name)
	if err != nil {
		return nil, pv.NewStorageError("listing versions", err)
	}

	result := []*pv.Project{}
	for rows.Next() {
		var (
			version   string
			createdAt int64
		)
		if err := rows.Scan(&version, &createdAt); err != nil {
			rows.Close()
			return nil, pv.NewStorageError("scanning version", err)
		}
		result = append(result, &pv.Project{
			Name:      name,
			Version:   version,
			CreatedAt: time.Unix(0, createdAt).UTC(),
		})
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, pv.NewStorageError("listing versions", err)
	}

	// Pages are read after the cursor is closed; the pool has a single connection.
	for _, p := range result {
		if p.Pages, err = c.pages(ctx, name, p.Version); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (c *SQLiteCatalog) Projects(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT DISTINCT project FROM versions ORDER BY project")
	if err != nil {
		return nil, pv.NewStorageError("listing projects", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, pv.NewStorageError("scanning project", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, pv.NewStorageError("listing projects", err)
	}
	return names, nil
}

func (c *SQLiteCatalog) pages(ctx context.Context, name, version string) ([]pv.Page, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT name, title, content_hash FROM pages WHERE project = ? AND version = ? ORDER BY position",
		name, version)
	if err != nil {
		return nil, pv.NewStorageError("reading pages", err)
	}
	defer rows.Close()

	pages := []pv.Page{}
	for rows.Next() {
		var p pv.Page
		if err := rows.Scan(&p.Name, &p.Title, &p.ContentHash); err != nil {
			return nil, pv.NewStorageError("scanning page", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, pv.NewStorageError("reading pages", err)
	}
	return pages, nil
}

// BackupTo writes a consistent copy of the database to destPath using
// VACUUM INTO. destPath must not exist.
func (c *SQLiteCatalog) BackupTo(ctx context.Context, destPath string) error {
	if _, err := c.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return pv.NewStorageError("backing up catalog", err)
	}
	return nil
}

// Close closes the database connection.
func (c *SQLiteCatalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

var _ pv.Catalog = (*SQLiteCatalog)(nil)
