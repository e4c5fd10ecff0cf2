// Package sqlite provides a SQLite-backed gathering storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mtanaka/courseforge/internal/gatherings/storage"
	"github.com/mtanaka/courseforge/internal/gatherings/storage/sqlite/migrations"
	sqlitemigrate "github.com/mtanaka/courseforge/internal/platform/storage/sqlitemigrate"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists gathering state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite gathering store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateGathering inserts one gathering record.
func (s *Store) CreateGathering(ctx context.Context, gathering storage.Gathering) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(gathering.ID)
	title := strings.TrimSpace(gathering.Title)
	if id == "" {
		return fmt.Errorf("gathering id is required")
	}
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if gathering.StartTime.IsZero() {
		return fmt.Errorf("start time is required")
	}
	if gathering.EndTime.Before(gathering.StartTime) {
		return fmt.Errorf("end time must not precede start time")
	}
	createdAt := gathering.CreatedAt.UTC()
	updatedAt := gathering.UpdatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO gatherings (
		   id, title, html, start_time, end_time, is_draft, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		title,
		gathering.HTML,
		toMillis(gathering.StartTime),
		toMillis(gathering.EndTime),
		boolToInt(gathering.IsDraft),
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "gatherings.id") {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create gathering: %w", err)
	}
	return nil
}

// GetGathering returns one gathering by ID.
func (s *Store) GetGathering(ctx context.Context, id string) (storage.Gathering, error) {
	if err := ctx.Err(); err != nil {
		return storage.Gathering{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Gathering{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Gathering{}, fmt.Errorf("gathering id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, title, html, start_time, end_time, is_draft, created_at, updated_at
		   FROM gatherings
		  WHERE id = ?`,
		id,
	)
	gathering, err := scanGathering(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Gathering{}, storage.ErrNotFound
		}
		return storage.Gathering{}, fmt.Errorf("get gathering: %w", err)
	}
	return gathering, nil
}

// UpdateGathering replaces the mutable fields of one gathering.
func (s *Store) UpdateGathering(ctx context.Context, gathering storage.Gathering) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(gathering.ID)
	title := strings.TrimSpace(gathering.Title)
	if id == "" {
		return fmt.Errorf("gathering id is required")
	}
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if gathering.EndTime.Before(gathering.StartTime) {
		return fmt.Errorf("end time must not precede start time")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE gatherings
		    SET title = ?, html = ?, start_time = ?, end_time = ?, is_draft = ?, updated_at = ?
		  WHERE id = ?`,
		title,
		gathering.HTML,
		toMillis(gathering.StartTime),
		toMillis(gathering.EndTime),
		boolToInt(gathering.IsDraft),
		time.Now().UTC().UnixMilli(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update gathering: %w", err)
	}
	return requireRowAffected(result, "update gathering")
}

// DeleteGathering removes one gathering by ID.
func (s *Store) DeleteGathering(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("gathering id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM gatherings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete gathering: %w", err)
	}
	return requireRowAffected(result, "delete gathering")
}

// ListGatherings returns all gatherings ordered by start time, newest first.
func (s *Store) ListGatherings(ctx context.Context) ([]storage.Gathering, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, title, html, start_time, end_time, is_draft, created_at, updated_at
		   FROM gatherings
		  ORDER BY start_time DESC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list gatherings: %w", err)
	}
	defer rows.Close()

	var gatherings []storage.Gathering
	for rows.Next() {
		gathering, err := scanGathering(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list gatherings: %w", err)
		}
		gatherings = append(gatherings, gathering)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list gatherings: %w", err)
	}
	return gatherings, nil
}

// SetGatheringDraftStatus updates only the draft flag of one gathering.
func (s *Store) SetGatheringDraftStatus(ctx context.Context, id string, isDraft bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("gathering id is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE gatherings SET is_draft = ?, updated_at = ? WHERE id = ?`,
		boolToInt(isDraft),
		time.Now().UTC().UnixMilli(),
		id,
	)
	if err != nil {
		return fmt.Errorf("set gathering draft status: %w", err)
	}
	return requireRowAffected(result, "set gathering draft status")
}

// AddNewsItem inserts one news item, replacing a previous entry for the same
// resource.
func (s *Store) AddNewsItem(ctx context.Context, item storage.NewsItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	resourceKey := strings.TrimSpace(item.ResourceKey)
	if resourceKey == "" {
		return fmt.Errorf("resource key is required")
	}
	createdAt := item.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO news_items (resource_key, url, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (resource_key) DO UPDATE SET url = excluded.url, created_at = excluded.created_at`,
		resourceKey,
		item.URL,
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("add news item: %w", err)
	}
	return nil
}

// RemoveNewsItem deletes the news item for one resource, if any.
func (s *Store) RemoveNewsItem(ctx context.Context, resourceKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	resourceKey = strings.TrimSpace(resourceKey)
	if resourceKey == "" {
		return fmt.Errorf("resource key is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM news_items WHERE resource_key = ?`, resourceKey); err != nil {
		return fmt.Errorf("remove news item: %w", err)
	}
	return nil
}

// ListNewsItems returns up to limit news items, newest first.
func (s *Store) ListNewsItems(ctx context.Context, limit int) ([]storage.NewsItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT resource_key, url, created_at
		   FROM news_items
		  ORDER BY created_at DESC, resource_key ASC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list news items: %w", err)
	}
	defer rows.Close()

	var items []storage.NewsItem
	for rows.Next() {
		var item storage.NewsItem
		var createdAt int64
		if err := rows.Scan(&item.ResourceKey, &item.URL, &createdAt); err != nil {
			return nil, fmt.Errorf("list news items: %w", err)
		}
		item.CreatedAt = fromMillis(createdAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list news items: %w", err)
	}
	return items, nil
}

func scanGathering(scan func(dest ...any) error) (storage.Gathering, error) {
	var gathering storage.Gathering
	var startTime, endTime, createdAt, updatedAt int64
	var isDraft int
	err := scan(
		&gathering.ID,
		&gathering.Title,
		&gathering.HTML,
		&startTime,
		&endTime,
		&isDraft,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return storage.Gathering{}, err
	}
	gathering.StartTime = fromMillis(startTime)
	gathering.EndTime = fromMillis(endTime)
	gathering.IsDraft = isDraft != 0
	gathering.CreatedAt = fromMillis(createdAt)
	gathering.UpdatedAt = fromMillis(updatedAt)
	return gathering, nil
}

func requireRowAffected(result sql.Result, operation string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, column)
}

var _ storage.GatheringStore = (*Store)(nil)
var _ storage.NewsStore = (*Store)(nil)
