package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"nsref/internal/engine/imports"
	"nsref/internal/shared/util"

	_ "modernc.org/sqlite"
)

const (
	sqliteDriverName   = "sqlite"
	schemaVersion      = 2
	DefaultBusyTimeout = 5 * time.Second
)

// Store persists scanned module import tables in sqlite so unchanged files
// need not be tokenized again across runs. Rows are keyed by project and
// path; a module is only returned when its content hash still matches.
type Store struct {
	db         *sql.DB
	projectKey string

	hashStmt       *sql.Stmt
	namespacesStmt *sql.Stmt
	importsStmt    *sql.Stmt
	declsStmt      *sql.Stmt
}

func Open(path, projectKey string) (*Store, error) {
	return OpenWithTimeout(path, projectKey, DefaultBusyTimeout)
}

func OpenWithTimeout(path, projectKey string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("module store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("module store path %q is a directory, expected file", cleanPath)
	}
	if err := util.EnsureParentDir(cleanPath); err != nil {
		return nil, fmt.Errorf("create module store directory for %q: %w", cleanPath, err)
	}
	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite module store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite module store %q: %w", cleanPath, err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	key := strings.TrimSpace(projectKey)
	if key == "" {
		key = "default"
	}

	s := &Store{db: db, projectKey: key}
	if err := s.prepare(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) prepare() error {
	var err error
	if s.hashStmt, err = s.db.Prepare(`SELECT hash FROM modules WHERE project_key = ? AND path = ?`); err != nil {
		return fmt.Errorf("prepare hash stmt: %w", err)
	}
	if s.namespacesStmt, err = s.db.Prepare(`SELECT namespace FROM namespaces
WHERE project_key = ? AND path = ?
ORDER BY ord`); err != nil {
		return fmt.Errorf("prepare namespaces stmt: %w", err)
	}
	if s.importsStmt, err = s.db.Prepare(`SELECT namespace, kind, alias, target, line FROM imports
WHERE project_key = ? AND path = ?
ORDER BY namespace, kind, alias`); err != nil {
		return fmt.Errorf("prepare imports stmt: %w", err)
	}
	if s.declsStmt, err = s.db.Prepare(`SELECT namespace, kind, name, line FROM declarations
WHERE project_key = ? AND path = ?
ORDER BY ord`); err != nil {
		return fmt.Errorf("prepare declarations stmt: %w", err)
	}
	return nil
}

func (s *Store) ProjectKey() string {
	return s.projectKey
}

// Load returns the module stored for path when its hash equals hash. A
// missing row or a stale hash reports false without error.
func (s *Store) Load(path, hash string) (*imports.Module, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("store not initialized")
	}
	var stored string
	err := s.hashStmt.QueryRow(s.projectKey, path).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load module hash for %q: %w", path, err)
	}
	if stored != hash {
		slog.Debug("stored module is stale", "path", path)
		return nil, false, nil
	}

	mod := imports.NewModule(path)
	if err := s.loadNamespaces(mod); err != nil {
		return nil, false, err
	}
	if err := s.loadImports(mod); err != nil {
		return nil, false, err
	}
	if err := s.loadDeclarations(mod); err != nil {
		return nil, false, err
	}
	return mod, true, nil
}

func (s *Store) loadNamespaces(mod *imports.Module) error {
	rows, err := s.namespacesStmt.Query(s.projectKey, mod.Path)
	if err != nil {
		return fmt.Errorf("query namespaces for %q: %w", mod.Path, err)
	}
	defer rows.Close()
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return fmt.Errorf("scan namespace row: %w", err)
		}
		mod.Ensure(ns)
	}
	return rows.Err()
}

func (s *Store) loadImports(mod *imports.Module) error {
	rows, err := s.importsStmt.Query(s.projectKey, mod.Path)
	if err != nil {
		return fmt.Errorf("query imports for %q: %w", mod.Path, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ns, kindText string
			imp          imports.Import
		)
		if err := rows.Scan(&ns, &kindText, &imp.Alias, &imp.Name, &imp.Line); err != nil {
			return fmt.Errorf("scan import row: %w", err)
		}
		kind, ok := imports.ParseKind(kindText)
		if !ok {
			return fmt.Errorf("unknown import kind %q stored for %q", kindText, mod.Path)
		}
		if err := mod.Ensure(ns).Add(kind, imp); err != nil {
			return fmt.Errorf("restore import %q for %q: %w", imp.Alias, mod.Path, err)
		}
	}
	return rows.Err()
}

func (s *Store) loadDeclarations(mod *imports.Module) error {
	rows, err := s.declsStmt.Query(s.projectKey, mod.Path)
	if err != nil {
		return fmt.Errorf("query declarations for %q: %w", mod.Path, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ns, kind string
			decl     imports.Declaration
		)
		if err := rows.Scan(&ns, &kind, &decl.Name, &decl.Line); err != nil {
			return fmt.Errorf("scan declaration row: %w", err)
		}
		decl.Kind = imports.DeclarationKind(kind)
		mod.Ensure(ns).Declare(decl)
	}
	return rows.Err()
}

// Save replaces whatever is stored for path with mod.
func (s *Store) Save(path, hash string, mod *imports.Module) error {
	if s == nil || s.db == nil || mod == nil {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin module save tx: %w", err)
	}
	if err := deletePath(tx, s.projectKey, path); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := insertModule(tx, s.projectKey, path, hash, mod); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit module save tx: %w", err)
	}
	return nil
}

func (s *Store) Delete(path string) error {
	if s == nil || s.db == nil {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin module delete tx: %w", err)
	}
	if err := deletePath(tx, s.projectKey, path); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit module delete tx: %w", err)
	}
	return nil
}

// Prune removes every stored module whose path is not in paths. An empty
// set clears the project.
func (s *Store) Prune(paths []string) error {
	if s == nil || s.db == nil {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin module prune tx: %w", err)
	}
	if len(paths) == 0 {
		if _, err := tx.Exec(`DELETE FROM modules WHERE project_key = ?`, s.projectKey); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear modules for empty path set: %w", err)
		}
	} else {
		if err := loadTempPaths(tx, s.projectKey, paths); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`DELETE FROM modules WHERE project_key = ? AND path NOT IN (SELECT path FROM current_paths WHERE project_key = ?)`, s.projectKey, s.projectKey); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete stale modules: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit module prune tx: %w", err)
	}
	return nil
}

// Paths lists the stored module paths of the project, sorted.
func (s *Store) Paths() ([]string, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	rows, err := s.db.Query(`SELECT path FROM modules WHERE project_key = ? ORDER BY path`, s.projectKey)
	if err != nil {
		return nil, fmt.Errorf("query module paths: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan module path: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	for _, stmt := range []*sql.Stmt{s.hashStmt, s.namespacesStmt, s.importsStmt, s.declsStmt} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	var version int
	_ = db.QueryRow(`PRAGMA user_version`).Scan(&version)

	if version == 0 {
		_, err := db.Exec(`
CREATE TABLE modules (
  project_key TEXT NOT NULL,
  path TEXT NOT NULL,
  hash TEXT NOT NULL,
  scanned_at INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (project_key, path)
);

CREATE TABLE namespaces (
  project_key TEXT NOT NULL,
  path TEXT NOT NULL,
  ord INTEGER NOT NULL,
  namespace TEXT NOT NULL,
  PRIMARY KEY (project_key, path, namespace),
  FOREIGN KEY (project_key, path) REFERENCES modules(project_key, path) ON DELETE CASCADE
);

CREATE TABLE imports (
  project_key TEXT NOT NULL,
  path TEXT NOT NULL,
  namespace TEXT NOT NULL,
  kind TEXT NOT NULL,
  alias TEXT NOT NULL,
  target TEXT NOT NULL,
  line INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (project_key, path, namespace, kind, alias),
  FOREIGN KEY (project_key, path) REFERENCES modules(project_key, path) ON DELETE CASCADE
);
CREATE INDEX idx_imports_target ON imports(project_key, target);

PRAGMA user_version = 1;
`)
		if err != nil {
			return fmt.Errorf("create v1 schema: %w", err)
		}
		version = 1
	}

	if version < 2 {
		_, err := db.Exec(`
CREATE TABLE declarations (
  project_key TEXT NOT NULL,
  path TEXT NOT NULL,
  ord INTEGER NOT NULL,
  namespace TEXT NOT NULL,
  kind TEXT NOT NULL,
  name TEXT NOT NULL,
  line INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (project_key, path, ord),
  FOREIGN KEY (project_key, path) REFERENCES modules(project_key, path) ON DELETE CASCADE
);
CREATE INDEX idx_declarations_name ON declarations(project_key, namespace, name);
PRAGMA user_version = 2;
`)
		if err != nil {
			return fmt.Errorf("schema v2 migration: %w", err)
		}
		slog.Debug("module store schema migrated", "version", schemaVersion)
	}
	return nil
}

func deletePath(tx *sql.Tx, projectKey, path string) error {
	if _, err := tx.Exec(`DELETE FROM modules WHERE project_key = ? AND path = ?`, projectKey, path); err != nil {
		return fmt.Errorf("delete module rows for path %q: %w", path, err)
	}
	return nil
}

func insertModule(tx *sql.Tx, projectKey, path, hash string, mod *imports.Module) error {
	if _, err := tx.Exec(`INSERT INTO modules (project_key, path, hash, scanned_at) VALUES (?, ?, ?, ?)`,
		projectKey, path, hash, time.Now().Unix()); err != nil {
		return fmt.Errorf("insert module %q: %w", path, err)
	}

	nsStmt, err := tx.Prepare(`INSERT INTO namespaces (project_key, path, ord, namespace) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare namespace insert: %w", err)
	}
	defer nsStmt.Close()
	impStmt, err := tx.Prepare(`INSERT INTO imports (project_key, path, namespace, kind, alias, target, line) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare import insert: %w", err)
	}
	defer impStmt.Close()
	declStmt, err := tx.Prepare(`INSERT INTO declarations (project_key, path, ord, namespace, kind, name, line) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare declaration insert: %w", err)
	}
	defer declStmt.Close()

	ord := 0
	for i, tbl := range mod.Tables {
		if _, err := nsStmt.Exec(projectKey, path, i, tbl.Namespace); err != nil {
			return fmt.Errorf("insert namespace %q: %w", tbl.Namespace, err)
		}
		for _, kind := range []imports.Kind{imports.KindType, imports.KindFunction, imports.KindConst} {
			for _, imp := range tbl.Imports(kind) {
				if _, err := impStmt.Exec(projectKey, path, tbl.Namespace, kind.String(), imp.Alias, imp.Name, imp.Line); err != nil {
					return fmt.Errorf("insert import %q: %w", imp.Alias, err)
				}
			}
		}
		for _, decl := range tbl.Declarations {
			if _, err := declStmt.Exec(projectKey, path, ord, tbl.Namespace, string(decl.Kind), decl.Name, decl.Line); err != nil {
				return fmt.Errorf("insert declaration %q: %w", decl.Name, err)
			}
			ord++
		}
	}
	return nil
}

func loadTempPaths(tx *sql.Tx, projectKey string, paths []string) error {
	if _, err := tx.Exec(`CREATE TEMP TABLE IF NOT EXISTS current_paths (
  project_key TEXT NOT NULL,
  path TEXT NOT NULL,
  PRIMARY KEY (project_key, path)
)`); err != nil {
		return fmt.Errorf("create temp paths table: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM current_paths WHERE project_key = ?`, projectKey); err != nil {
		return fmt.Errorf("clear temp paths table: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO current_paths (project_key, path) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare temp path insert: %w", err)
	}
	defer stmt.Close()
	for _, p := range paths {
		if _, err := stmt.Exec(projectKey, p); err != nil {
			return fmt.Errorf("insert temp path: %w", err)
		}
	}
	return nil
}
