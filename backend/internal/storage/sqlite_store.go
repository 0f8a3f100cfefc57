package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"lifegraph/backend/internal/graph"
	apperrors "lifegraph/backend/pkg/errors"
	"lifegraph/backend/pkg/logger"
)

// openDB is a package-level var to allow test injection
var openDB = sql.Open

const schema = `
	CREATE TABLE IF NOT EXISTS entities (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		properties  TEXT NOT NULL DEFAULT '{}',
		created_at  TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS triplets (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		subject    TEXT NOT NULL,
		predicate  TEXT NOT NULL,
		object     TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 1.0,
		source     TEXT,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS graph_metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entities_type   ON entities(entity_type);
	CREATE INDEX IF NOT EXISTS idx_entities_name   ON entities(name);
	CREATE INDEX IF NOT EXISTS idx_triplets_subject   ON triplets(subject);
	CREATE INDEX IF NOT EXISTS idx_triplets_predicate ON triplets(predicate);
	CREATE INDEX IF NOT EXISTS idx_triplets_object    ON triplets(object);
`

const (
	entityColumns  = `id, name, entity_type, properties, created_at`
	tripletColumns = `subject, predicate, object, confidence, source, created_at`
)

// SQLiteStore keeps the graph in a single-file relational database
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) base + ".db" and migrates the schema
func NewSQLiteStore(base string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = logger.Get()
	}
	path := withSuffix(base, ".db")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.NewStorageFailed("open", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, apperrors.NewStorageFailed("open", err)
	}
	// One connection keeps the file single-writer
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, apperrors.NewStorageFailed(fmt.Sprintf("pragma %q", p), err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.NewStorageFailed("migrate", err)
	}

	log.Debug("Opened SQLite store", zap.String("path", path))
	return &SQLiteStore{db: db, path: path, logger: log}, nil
}

// Path returns the database file location
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveGraph replaces the stored graph in one transaction
func (s *SQLiteStore) SaveGraph(ctx context.Context, g *graph.KnowledgeGraph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageFailed("save", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"triplets", "entities", "graph_metadata"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return apperrors.NewStorageFailed("save", err)
		}
	}

	if err := insertEntities(ctx, tx, g.Entities()); err != nil {
		return apperrors.NewStorageFailed("save entities", err)
	}
	if err := insertTriplets(ctx, tx, g.Triplets()); err != nil {
		return apperrors.NewStorageFailed("save triplets", err)
	}
	if err := insertMetadata(ctx, tx, g.Metadata); err != nil {
		return apperrors.NewStorageFailed("save metadata", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageFailed("save", err)
	}
	s.logger.Info("Saved graph to SQLite",
		zap.String("path", s.path),
		zap.Int("entities", g.EntityCount()),
		zap.Int("triplets", g.TripletCount()),
	)
	return nil
}

func insertEntities(ctx context.Context, tx *sql.Tx, entities []graph.Entity) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entities (`+entityColumns+`) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entities {
		props, err := json.Marshal(e.Properties)
		if err != nil {
			return fmt.Errorf("entity %s properties: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.Name, string(e.Type), string(props), formatTime(e.CreatedAt)); err != nil {
			return fmt.Errorf("entity %s: %w", e.ID, err)
		}
	}
	return nil
}

func insertTriplets(ctx context.Context, tx *sql.Tx, triplets []graph.Triplet) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO triplets (`+tripletColumns+`) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range triplets {
		var source sql.NullString
		if t.Source != "" {
			source = sql.NullString{String: t.Source, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, t.Subject, string(t.Predicate), t.Object, t.Confidence, source, formatTime(t.CreatedAt)); err != nil {
			return err
		}
	}
	return nil
}

func insertMetadata(ctx context.Context, tx *sql.Tx, metadata map[string]interface{}) error {
	for k, v := range metadata {
		value, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("metadata %s: %w", k, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO graph_metadata (key, value) VALUES (?, ?)`, k, string(value)); err != nil {
			return err
		}
	}
	return nil
}

// LoadGraph reads the whole graph; an empty database yields an empty graph
func (s *SQLiteStore) LoadGraph(ctx context.Context) (*graph.KnowledgeGraph, error) {
	g := graph.New()

	entities, err := s.QueryEntities(ctx, EntityFilter{})
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		g.AddEntity(e)
	}

	triplets, err := s.QueryTriplets(ctx, TripletFilter{})
	if err != nil {
		return nil, err
	}
	for _, t := range triplets {
		g.AddTriplet(t)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM graph_metadata ORDER BY rowid`)
	if err != nil {
		return nil, apperrors.NewStorageFailed("load metadata", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, apperrors.NewStorageFailed("load metadata", err)
		}
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, apperrors.NewStorageFailed("load metadata", fmt.Errorf("key %s: %w", key, err))
		}
		g.Metadata[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageFailed("load metadata", err)
	}
	return g, nil
}

// QueryEntities filters by type in SQL and by name pattern in Go
func (s *SQLiteStore) QueryEntities(ctx context.Context, filter EntityFilter) ([]graph.Entity, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Type != "" {
		where = append(where, "entity_type = ?")
		args = append(args, string(filter.Type))
	}
	// The name pattern is applied in Go: SQLite's lower() folds ASCII only.

	query := `SELECT ` + entityColumns + ` FROM entities` + whereClause(where) + ` ORDER BY rowid`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageFailed("query entities", err)
	}
	defer rows.Close()

	var out []graph.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, apperrors.NewStorageFailed("query entities", err)
		}
		if filter.Match(e) {
			out = append(out, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageFailed("query entities", err)
	}
	return out, nil
}

// QueryTriplets filters triplets in SQL
func (s *SQLiteStore) QueryTriplets(ctx context.Context, filter TripletFilter) ([]graph.Triplet, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Subject != "" {
		where = append(where, "subject = ?")
		args = append(args, filter.Subject)
	}
	if filter.Predicate != "" {
		where = append(where, "predicate = ?")
		args = append(args, string(filter.Predicate))
	}
	if filter.Object != "" {
		where = append(where, "object = ?")
		args = append(args, filter.Object)
	}

	query := `SELECT ` + tripletColumns + ` FROM triplets` + whereClause(where) + ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageFailed("query triplets", err)
	}
	defer rows.Close()

	var out []graph.Triplet
	for rows.Next() {
		t, err := scanTriplet(rows)
		if err != nil {
			return nil, apperrors.NewStorageFailed("query triplets", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageFailed("query triplets", err)
	}
	return out, nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func scanEntity(rows *sql.Rows) (graph.Entity, error) {
	var (
		e                        graph.Entity
		kind, props, createdText string
	)
	if err := rows.Scan(&e.ID, &e.Name, &kind, &props, &createdText); err != nil {
		return e, err
	}

	t, err := graph.ParseEntityType(kind)
	if err != nil {
		return e, err
	}
	e.Type = t

	e.Properties = make(map[string]interface{})
	if props != "" {
		if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
			return e, fmt.Errorf("entity %s properties: %w", e.ID, err)
		}
	}

	if e.CreatedAt, err = parseTime(createdText); err != nil {
		return e, fmt.Errorf("entity %s: %w", e.ID, err)
	}
	return e, nil
}

func scanTriplet(rows *sql.Rows) (graph.Triplet, error) {
	var (
		t                  graph.Triplet
		predicate, created string
		source             sql.NullString
	)
	if err := rows.Scan(&t.Subject, &predicate, &t.Object, &t.Confidence, &source, &created); err != nil {
		return t, err
	}

	p, err := graph.ParseRelationType(predicate)
	if err != nil {
		return t, err
	}
	t.Predicate = p
	t.Source = source.String

	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, err
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
