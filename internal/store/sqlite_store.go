package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	_ "modernc.org/sqlite"

	"github.com/driptext/driptext/internal/textseg"
	"github.com/driptext/driptext/internal/tracker"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore persists texts, portions, users, assignments and
// submissions. It backs both the service's text catalog and the
// tracker registry (it implements tracker.Store).
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// SaveText inserts a text together with its portions. Texts are
// immutable once segmented, so there is no update path.
func (s *SQLiteStore) SaveText(ctx context.Context, t *textseg.Text) error {
	if t == nil {
		return fmt.Errorf("text is nil")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(
		ctx,
		`INSERT INTO texts (id, title, author, source_lang, target_lang, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.Title,
		t.Author,
		t.SourceLang.String(),
		t.TargetLang.String(),
		t.Content,
		t.CreatedAt,
	); err != nil {
		return err
	}
	for _, p := range t.Portions {
		if _, err = tx.ExecContext(
			ctx,
			`INSERT INTO portions (text_id, idx, content) VALUES (?, ?, ?)`,
			t.ID,
			p.Index,
			p.Content,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadTexts returns all texts with their portions in index order.
func (s *SQLiteStore) LoadTexts(ctx context.Context) ([]*textseg.Text, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, title, author, source_lang, target_lang, content, created_at
		 FROM texts
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*textseg.Text)
	ret := make([]*textseg.Text, 0)
	for rows.Next() {
		var t textseg.Text
		var sourceLang, targetLang string
		if err := rows.Scan(&t.ID, &t.Title, &t.Author, &sourceLang, &targetLang, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.SourceLang = parseLang(sourceLang)
		t.TargetLang = parseLang(targetLang)
		byID[t.ID] = &t
		ret = append(ret, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := s.db.QueryContext(
		ctx,
		`SELECT text_id, idx, content FROM portions ORDER BY text_id, idx ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var p textseg.Portion
		if err := prows.Scan(&p.TextID, &p.Index, &p.Content); err != nil {
			return nil, err
		}
		if t, ok := byID[p.TextID]; ok {
			t.Portions = append(t.Portions, p)
		}
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func parseLang(s string) language.Tag {
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und
	}
	return tag
}

func (s *SQLiteStore) LoadUsers(ctx context.Context) ([]*tracker.User, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, email, phone, preferred, created_at FROM users ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*tracker.User, 0)
	for rows.Next() {
		var u tracker.User
		var preferred string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &preferred, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Preferred = tracker.ChannelType(preferred)
		ret = append(ret, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) UpsertUser(ctx context.Context, u *tracker.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO users (id, name, email, phone, preferred, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			email=excluded.email,
			phone=excluded.phone,
			preferred=excluded.preferred`,
		u.ID,
		u.Name,
		u.Email,
		u.Phone,
		string(u.Preferred),
		u.CreatedAt,
	)
	return err
}

// LoadAssignments returns all assignments with their submissions
// attached.
func (s *SQLiteStore) LoadAssignments(ctx context.Context) ([]*tracker.Assignment, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, user_id, text_id, cursor, portion_count, policy, version, created_at, updated_at
		 FROM assignments
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*tracker.Assignment)
	ret := make([]*tracker.Assignment, 0)
	for rows.Next() {
		var a tracker.Assignment
		var policy string
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.TextID,
			&a.Cursor,
			&a.PortionCount,
			&policy,
			&a.Version,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		a.Policy = tracker.DuplicatePolicy(policy)
		a.Submissions = make(map[int]tracker.Submission)
		byID[a.ID] = &a
		ret = append(ret, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	srows, err := s.db.QueryContext(
		ctx,
		`SELECT assignment_id, portion_index, content, received_at FROM submissions`,
	)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var sub tracker.Submission
		if err := srows.Scan(&sub.AssignmentID, &sub.PortionIndex, &sub.Content, &sub.ReceivedAt); err != nil {
			return nil, err
		}
		if a, ok := byID[sub.AssignmentID]; ok {
			a.Submissions[sub.PortionIndex] = sub
		}
	}
	if err := srows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) UpsertAssignment(ctx context.Context, a *tracker.Assignment) error {
	if a == nil {
		return fmt.Errorf("assignment is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO assignments (id, user_id, text_id, cursor, portion_count, policy, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			cursor=excluded.cursor,
			portion_count=excluded.portion_count,
			policy=excluded.policy,
			version=excluded.version,
			updated_at=excluded.updated_at`,
		a.ID,
		a.UserID,
		a.TextID,
		a.Cursor,
		a.PortionCount,
		string(a.Policy),
		a.Version,
		a.CreatedAt,
		a.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) UpsertSubmission(ctx context.Context, sub tracker.Submission) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO submissions (assignment_id, portion_index, content, received_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(assignment_id, portion_index) DO UPDATE SET
			content=excluded.content,
			received_at=excluded.received_at`,
		sub.AssignmentID,
		sub.PortionIndex,
		sub.Content,
		sub.ReceivedAt,
	)
	return err
}
