package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS workspace (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    path        TEXT NOT NULL,
    name        TEXT NOT NULL,
    iut_address TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS projects (
    name    TEXT PRIMARY KEY,
    idx     INTEGER NOT NULL UNIQUE,
    version TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS test_cases (
    project     TEXT NOT NULL REFERENCES projects(name),
    idx         INTEGER NOT NULL,
    name        TEXT NOT NULL,
    description TEXT NOT NULL,
    active      INTEGER NOT NULL,
    in_tss      INTEGER NOT NULL,
    script      BLOB,
    PRIMARY KEY (project, name)
)`,
	`CREATE TABLE IF NOT EXISTS pics (
    project TEXT NOT NULL REFERENCES projects(name),
    entry   TEXT NOT NULL,
    value   INTEGER NOT NULL,
    PRIMARY KEY (project, entry)
)`,
	`CREATE TABLE IF NOT EXISTS pixit (
    project TEXT NOT NULL REFERENCES projects(name),
    param   TEXT NOT NULL,
    value   TEXT NOT NULL,
    PRIMARY KEY (project, param)
)`,
}

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadWorkspace replaces all state with ws in a single transaction.
func (s *SQLiteStore) LoadWorkspace(ctx context.Context, ws *Workspace) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"pixit", "pics", "test_cases", "projects", "workspace"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO workspace (id, path, name, iut_address) VALUES (1, ?, ?, ?)",
		ws.Path, ws.Name, ws.IUTAddress,
	); err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}

	for i, p := range ws.Projects {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO projects (name, idx, version) VALUES (?, ?, ?)",
			p.Name, i, p.Version,
		); err != nil {
			return fmt.Errorf("insert project %s: %w", p.Name, err)
		}

		for j, tc := range p.TestCases {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO test_cases (project, idx, name, description, active, in_tss, script)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				p.Name, j, tc.Name, tc.Description, tc.Active, tc.InTSS, tc.Script,
			); err != nil {
				return fmt.Errorf("insert test case %s: %w", tc.Name, err)
			}
		}

		for entry, value := range p.Pics {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO pics (project, entry, value) VALUES (?, ?, ?)",
				p.Name, entry, value,
			); err != nil {
				return fmt.Errorf("insert pics %s: %w", entry, err)
			}
		}

		for param, value := range p.Pixit {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO pixit (project, param, value) VALUES (?, ?, ?)",
				p.Name, param, value,
			); err != nil {
				return fmt.Errorf("insert pixit %s: %w", param, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit workspace: %w", err)
	}
	return nil
}

// GetWorkspaceInfo returns the loaded workspace, or ErrNotFound before the
// first LoadWorkspace.
func (s *SQLiteStore) GetWorkspaceInfo(ctx context.Context) (*WorkspaceInfo, error) {
	info := &WorkspaceInfo{}
	err := s.db.QueryRowContext(ctx,
		"SELECT path, name, iut_address FROM workspace WHERE id = 1",
	).Scan(&info.Path, &info.Name, &info.IUTAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	return info, nil
}

// ProjectCount returns the number of loaded projects.
func (s *SQLiteStore) ProjectCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects").Scan(&n); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return n, nil
}

// GetProjectByIndex returns the project at the given load position.
func (s *SQLiteStore) GetProjectByIndex(ctx context.Context, index int) (*Project, error) {
	return s.getProject(ctx, "SELECT idx, name, version FROM projects WHERE idx = ?", index)
}

// GetProject returns the named project.
func (s *SQLiteStore) GetProject(ctx context.Context, name string) (*Project, error) {
	return s.getProject(ctx, "SELECT idx, name, version FROM projects WHERE name = ?", name)
}

func (s *SQLiteStore) getProject(ctx context.Context, query string, arg any) (*Project, error) {
	p := &Project{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&p.Index, &p.Name, &p.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListTestCases returns the test cases of project in load order.
func (s *SQLiteStore) ListTestCases(ctx context.Context, project string) ([]*TestCase, error) {
	if _, err := s.GetProject(ctx, project); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT project, idx, name, description, active, in_tss, script
		FROM test_cases WHERE project = ? ORDER BY idx`, project,
	)
	if err != nil {
		return nil, fmt.Errorf("list test cases: %w", err)
	}
	defer rows.Close()

	var out []*TestCase
	for rows.Next() {
		tc := &TestCase{}
		if err := rows.Scan(&tc.Project, &tc.Index, &tc.Name, &tc.Description, &tc.Active, &tc.InTSS, &tc.Script); err != nil {
			return nil, fmt.Errorf("scan test case: %w", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate test cases: %w", err)
	}
	return out, nil
}

// GetTestCase returns one test case by name.
func (s *SQLiteStore) GetTestCase(ctx context.Context, project, name string) (*TestCase, error) {
	tc := &TestCase{}
	err := s.db.QueryRowContext(ctx,
		`SELECT project, idx, name, description, active, in_tss, script
		FROM test_cases WHERE project = ? AND name = ?`, project, name,
	).Scan(&tc.Project, &tc.Index, &tc.Name, &tc.Description, &tc.Active, &tc.InTSS, &tc.Script)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get test case: %w", err)
	}
	return tc, nil
}

// SetPics updates an existing PICS entry.
func (s *SQLiteStore) SetPics(ctx context.Context, project, entry string, value bool) (bool, error) {
	return s.setValue(ctx, "pics", "entry", project, entry, value)
}

// GetPics returns the value of a PICS entry.
func (s *SQLiteStore) GetPics(ctx context.Context, project, entry string) (bool, error) {
	var v bool
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM pics WHERE project = ? AND entry = ?", project, entry,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get pics: %w", err)
	}
	return v, nil
}

// SetPixit updates an existing PIXIT parameter.
func (s *SQLiteStore) SetPixit(ctx context.Context, project, param, value string) (bool, error) {
	return s.setValue(ctx, "pixit", "param", project, param, value)
}

// GetPixit returns the value of a PIXIT parameter.
func (s *SQLiteStore) GetPixit(ctx context.Context, project, param string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM pixit WHERE project = ? AND param = ?", project, param,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get pixit: %w", err)
	}
	return v, nil
}

// ListPics returns all PICS entries of project.
func (s *SQLiteStore) ListPics(ctx context.Context, project string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT entry, value FROM pics WHERE project = ?", project)
	if err != nil {
		return nil, fmt.Errorf("list pics: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var k string
		var v bool
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan pics: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pics: %w", err)
	}
	return out, nil
}

// ListPixit returns all PIXIT parameters of project.
func (s *SQLiteStore) ListPixit(ctx context.Context, project string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT param, value FROM pixit WHERE project = ?", project)
	if err != nil {
		return nil, fmt.Errorf("list pixit: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan pixit: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pixit: %w", err)
	}
	return out, nil
}

// setValue updates one keyed value, reporting whether it changed. Rows
// matching the current value are not counted as affected.
func (s *SQLiteStore) setValue(ctx context.Context, table, keyCol, project, key string, value any) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE "+table+" SET value = ? WHERE project = ? AND "+keyCol+" = ? AND value != ?",
		value, project, key, value,
	)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", table, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return true, nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx,
		"SELECT 1 FROM "+table+" WHERE project = ? AND "+keyCol+" = ?", project, key,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", table, err)
	}
	return false, nil
}
