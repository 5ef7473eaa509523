package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/steveyegge/focusboard/internal/schema"
)

// DB implements Gateway over a SQL database. The embedded variant uses
// SQLite with WAL mode; the remote variant (remote.go) shares all query
// code and differs only in how the connection is opened.
type DB struct {
	conn *sql.DB
	path string
}

// sectionLiterals is the closed set the section CHECK constraint
// accepts. It must stay in lockstep with the taxonomy's sections.toml;
// taxonomy.CheckDrift compares the two at startup.
var sectionLiterals = []string{
	"big_three",
	"urgent",
	"otras_tareas",
	"en_espera",
	"completadas",
	"inbox_tasks",
	"monthly",
	"shopping",
	"devoluciones",
}

// Open creates an embedded database connection at the specified path.
//
// The database is opened with WAL mode for concurrent reads. If it
// doesn't exist it is created along with the schema. The caller MUST
// call Close() when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := openSQL("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, err
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// openSQL opens and pings a connection with the given driver.
func openSQL(driver, dsn string) (*sql.DB, error) {
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection after checkpointing the WAL.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if db.path != "" {
		if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
		}
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// InitSchema creates the tasks relation if it doesn't exist. Idempotent.
//
// The page and section columns carry CHECK constraints; a write with a
// value outside the literal set fails atomically with no partial commit.
func (db *DB) InitSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		notes TEXT,
		page TEXT NOT NULL CHECK (page IN ('inbox', 'daily', 'weekly')),
		section TEXT NOT NULL CHECK (section IN (%s)),
		section_order INTEGER NOT NULL CHECK (section_order >= 1),
		scheduled_date TEXT,
		deadline TEXT,
		completed INTEGER NOT NULL DEFAULT 0,
		completed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(user_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_scope ON tasks(user_id, page, section, section_order);
	CREATE INDEX IF NOT EXISTS idx_tasks_scheduled ON tasks(scheduled_date);
	CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(completed);
	`, quoteLiterals(sectionLiterals))

	if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// ListTasks implements Gateway.ListTasks.
func (db *DB) ListTasks(ctx context.Context, ownerID string) ([]*schema.Task, error) {
	query := `
	SELECT id, user_id, title, notes, page, section, section_order,
	       scheduled_date, deadline, completed, completed_at,
	       created_at, updated_at
	FROM tasks
	WHERE user_id = ?
	ORDER BY page ASC, section ASC, section_order ASC, created_at ASC
	`

	rows, err := db.conn.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// GetTask implements Gateway.GetTask.
func (db *DB) GetTask(ctx context.Context, id string) (*schema.Task, error) {
	query := `
	SELECT id, user_id, title, notes, page, section, section_order,
	       scheduled_date, deadline, completed, completed_at,
	       created_at, updated_at
	FROM tasks
	WHERE id = ?
	`

	task, err := scanTask(db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return task, nil
}

// UpsertTask implements Gateway.UpsertTask.
func (db *DB) UpsertTask(ctx context.Context, task *schema.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	query := `
	INSERT INTO tasks (
		id, user_id, title, notes, page, section, section_order,
		scheduled_date, deadline, completed, completed_at,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		notes = excluded.notes,
		page = excluded.page,
		section = excluded.section,
		section_order = excluded.section_order,
		scheduled_date = excluded.scheduled_date,
		deadline = excluded.deadline,
		completed = excluded.completed,
		completed_at = excluded.completed_at,
		updated_at = excluded.updated_at
	`

	_, err := db.conn.ExecContext(ctx, query,
		task.ID,
		task.OwnerID,
		task.Title,
		task.Notes,
		string(task.Page),
		task.Section,
		task.SectionOrder,
		timeToNullString(task.ScheduledDate),
		timeToNullString(task.Deadline),
		boolToInt(task.Completed),
		timeToNullString(task.CompletedAt),
		task.CreatedAt.Format(time.RFC3339),
		task.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", task.ID, err)
	}
	return nil
}

// UpdateTask implements Gateway.UpdateTask. Only the non-nil fields are
// written; updated_at is always refreshed. Returns ErrNotFound when the
// row does not exist.
func (db *DB) UpdateTask(ctx context.Context, id string, fields TaskFields) error {
	if fields.IsZero() {
		return nil
	}

	var sets []string
	var args []interface{}

	if fields.Page != nil {
		sets = append(sets, "page = ?")
		args = append(args, string(*fields.Page))
	}
	if fields.Section != nil {
		sets = append(sets, "section = ?")
		args = append(args, *fields.Section)
	}
	if fields.SectionOrder != nil {
		sets = append(sets, "section_order = ?")
		args = append(args, *fields.SectionOrder)
	}
	if fields.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *fields.Title)
	}
	if fields.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *fields.Notes)
	}
	if fields.Completed != nil {
		sets = append(sets, "completed = ?", "completed_at = ?")
		args = append(args, boolToInt(*fields.Completed), timeToNullString(fields.CompletedAt))
	}
	if fields.ScheduledDate != nil || fields.ClearScheduledDate {
		sets = append(sets, "scheduled_date = ?")
		args = append(args, timeToNullString(fields.ScheduledDate))
	}
	if fields.Deadline != nil || fields.ClearDeadline {
		sets = append(sets, "deadline = ?")
		args = append(args, timeToNullString(fields.Deadline))
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339))
	args = append(args, id)

	query := "UPDATE tasks SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteTask implements Gateway.DeleteTask. Returns nil if the task
// doesn't exist (idempotent).
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

var sectionCheckRe = regexp.MustCompile(`section\s+IN\s*\(([^)]*)\)`)

// SectionConstraint implements Gateway.SectionConstraint by parsing the
// live table definition out of sqlite_master.
func (db *DB) SectionConstraint(ctx context.Context) ([]string, error) {
	var ddl string
	err := db.conn.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = 'tasks'`).Scan(&ddl)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tasks relation does not exist")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read table definition: %w", err)
	}

	m := sectionCheckRe.FindStringSubmatch(ddl)
	if m == nil {
		return nil, fmt.Errorf("tasks relation has no section CHECK constraint")
	}

	var literals []string
	for _, part := range strings.Split(m[1], ",") {
		lit := strings.Trim(strings.TrimSpace(part), "'\"")
		if lit != "" {
			literals = append(literals, lit)
		}
	}
	return literals, nil
}

// TaskCount returns the total number of task rows.
func (db *DB) TaskCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanTask scans one task row.
func scanTask(row rowScanner) (*schema.Task, error) {
	var task schema.Task
	var notes sql.NullString
	var page string
	var scheduled, deadline, completedAt sql.NullString
	var completed int
	var createdAt, updatedAt string

	err := row.Scan(
		&task.ID,
		&task.OwnerID,
		&task.Title,
		&notes,
		&page,
		&task.Section,
		&task.SectionOrder,
		&scheduled,
		&deadline,
		&completed,
		&completedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Notes = notes.String
	task.Page = schema.Page(page)
	task.Completed = completed != 0
	task.ScheduledDate = nullStringToTime(scheduled)
	task.Deadline = nullStringToTime(deadline)
	task.CompletedAt = nullStringToTime(completedAt)

	if task.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("task %s: bad created_at %q: %w", task.ID, createdAt, err)
	}
	if task.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("task %s: bad updated_at %q: %w", task.ID, updatedAt, err)
	}
	return &task, nil
}

// scanTasks scans all task rows from a query result.
func scanTasks(rows *sql.Rows) ([]*schema.Task, error) {
	var tasks []*schema.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

func quoteLiterals(literals []string) string {
	quoted := make([]string, len(literals))
	for i, lit := range literals {
		quoted[i] = "'" + lit + "'"
	}
	return strings.Join(quoted, ", ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
