// Package todostore persists to-do lists in PostgreSQL.
package todostore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Item statuses.
const (
	StatusPending = "pending"
	StatusDone    = "done"
)

// Item is a single to-do entry.
type Item struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	Category    string     `json:"category"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store wraps a PostgreSQL connection pool.
type Store struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// New creates a Store with a pgx connection pool.
func New(dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("PostgreSQL connected")
	return &Store{db: pool, logger: logger}, nil
}

// Migrate reads and executes all .up.sql files from the migrations directory.
func (s *Store) Migrate(ctx context.Context, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(migrationsDir, f))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		s.logger.Info("Migration applied", zap.String("file", f))
	}
	return nil
}

const itemColumns = "id, text, category, status, created_at, completed_at"

// GetAll returns every to-do item ordered by creation time.
func (s *Store) GetAll(ctx context.Context) ([]Item, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+itemColumns+" FROM todos ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("get todos: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// GetPending returns only items with status 'pending'.
func (s *Store) GetPending(ctx context.Context) ([]Item, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+itemColumns+" FROM todos WHERE status = $1 ORDER BY created_at ASC",
		StatusPending)
	if err != nil {
		return nil, fmt.Errorf("get pending todos: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// Add creates and persists a new item in the given category.
func (s *Store) Add(ctx context.Context, text, category string) (Item, error) {
	if category == "" {
		category = "General"
	}
	item := Item{
		ID:       strings.ReplaceAll(uuid.New().String(), "-", "")[:8],
		Text:     text,
		Category: category,
		Status:   StatusPending,
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO todos (id, text, category, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		item.ID, item.Text, item.Category, item.Status,
	).Scan(&item.CreatedAt)
	if err != nil {
		return Item{}, fmt.Errorf("add todo: %w", err)
	}
	return item, nil
}

// Toggle inverts an item's status between pending and done, stamping
// completed_at on completion. Returns nil when the ID does not exist.
func (s *Store) Toggle(ctx context.Context, id string) (*Item, error) {
	var item Item
	err := s.db.QueryRow(ctx, `
		UPDATE todos
		SET status = CASE WHEN status = 'done' THEN 'pending' ELSE 'done' END,
		    completed_at = CASE WHEN status = 'done' THEN NULL ELSE now() END
		WHERE id = $1
		RETURNING `+itemColumns,
		id,
	).Scan(&item.ID, &item.Text, &item.Category, &item.Status, &item.CreatedAt, &item.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("toggle todo %s: %w", id, err)
	}
	return &item, nil
}

// DeleteItem removes an item by ID. Reports whether anything was deleted.
func (s *Store) DeleteItem(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM todos WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete todo %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteCategory removes every item in a category (case-insensitive match).
// Returns the count of deleted items.
func (s *Store) DeleteCategory(ctx context.Context, category string) (int, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM todos WHERE lower(category) = lower($1)", category)
	if err != nil {
		return 0, fmt.Errorf("delete category %s: %w", category, err)
	}
	return int(tag.RowsAffected()), nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.db.Close()
}

func scanItems(rows pgx.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.Text, &item.Category, &item.Status,
			&item.CreatedAt, &item.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
