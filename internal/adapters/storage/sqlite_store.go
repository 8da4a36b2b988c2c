package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the email and category stores.
// Classification state is kept as a JSON document next to the scalar
// columns the queries need.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Create tables if they don't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS emails (
			owner TEXT NOT NULL,
			id TEXT NOT NULL,
			thread_id TEXT,
			subject TEXT,
			sender TEXT,
			snippet TEXT,
			body TEXT,
			date TIMESTAMP,
			is_read BOOLEAN NOT NULL DEFAULT 0,
			is_archived BOOLEAN NOT NULL DEFAULT 0,
			category TEXT,
			classification TEXT,
			phase2_complete BOOLEAN NOT NULL DEFAULT 0,
			PRIMARY KEY (owner, id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create emails table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_emails_thread ON emails(owner, thread_id, date)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create thread index: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS categories (
			owner TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'normal',
			patterns TEXT,
			keywords TEXT,
			phrases TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			position INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (owner, id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create categories table: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// SaveEmail inserts or replaces an email
func (s *SQLiteStore) SaveEmail(ctx context.Context, email *core.Email) error {
	clsJSON, err := json.Marshal(email.Classification)
	if err != nil {
		return fmt.Errorf("failed to encode classification: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO emails
			(owner, id, thread_id, subject, sender, snippet, body, date,
			 is_read, is_archived, category, classification, phase2_complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, email.Owner, email.ID, email.ThreadID, email.Subject, email.From,
		email.Snippet, email.Body, email.Date.UTC().Format(time.RFC3339Nano),
		email.IsRead, email.IsArchived, email.Category, string(clsJSON),
		phase2Complete(&email.Classification))
	if err != nil {
		return fmt.Errorf("failed to insert email: %w", err)
	}
	return nil
}

// GetEmail retrieves one email by owner and id
func (s *SQLiteStore) GetEmail(ctx context.Context, owner, id string) (*core.Email, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT owner, id, thread_id, subject, sender, snippet, body, date,
		       is_read, is_archived, category, classification
		FROM emails
		WHERE owner = ? AND id = ?
	`, owner, id)
	return scanEmail(row)
}

// UpdateClassification atomically writes the category and classification
// state of one email
func (s *SQLiteStore) UpdateClassification(ctx context.Context, owner, id, category string, cls core.Classification) error {
	clsJSON, err := json.Marshal(cls)
	if err != nil {
		return fmt.Errorf("failed to encode classification: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE emails
		SET category = ?, classification = ?, phase2_complete = ?
		WHERE owner = ? AND id = ?
	`, category, string(clsJSON), phase2Complete(&cls), owner, id)
	if err != nil {
		return fmt.Errorf("failed to update classification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ListEmails returns all emails of an owner
func (s *SQLiteStore) ListEmails(ctx context.Context, owner string) ([]core.Email, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, id, thread_id, subject, sender, snippet, body, date,
		       is_read, is_archived, category, classification
		FROM emails
		WHERE owner = ?
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query emails: %w", err)
	}
	defer rows.Close()
	return scanEmails(rows)
}

// ListThreadMessages returns the messages of one thread within [from, to),
// ordered chronologically
func (s *SQLiteStore) ListThreadMessages(ctx context.Context, owner, threadID string, from, to time.Time) ([]core.Email, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, id, thread_id, subject, sender, snippet, body, date,
		       is_read, is_archived, category, classification
		FROM emails
		WHERE owner = ? AND (thread_id = ? OR (thread_id = '' AND id = ?))
		  AND date >= ? AND date < ?
		ORDER BY date ASC
	`, owner, threadID, threadID,
		from.UTC().Format(time.RFC3339Nano), to.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to query thread messages: %w", err)
	}
	defer rows.Close()
	return scanEmails(rows)
}

// ListUnrefinedIDs returns the ids of emails whose phase 2 pass has not
// completed, optionally filtered by current category
func (s *SQLiteStore) ListUnrefinedIDs(ctx context.Context, owner, category string) ([]string, error) {
	query := `SELECT id FROM emails WHERE owner = ? AND phase2_complete = 0`
	args := []interface{}{owner}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query unrefined emails: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListActiveCategories returns the active categories of an owner in
// declaration order
func (s *SQLiteStore) ListActiveCategories(ctx context.Context, owner string) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, priority, patterns, keywords, phrases
		FROM categories
		WHERE owner = ? AND is_active = 1
		ORDER BY position ASC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var cat core.Category
		var priority string
		var patterns, keywords, phrases sql.NullString
		if err := rows.Scan(&cat.ID, &cat.Name, &priority, &patterns, &keywords, &phrases); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cat.Owner = owner
		cat.Priority = core.Priority(priority)
		cat.IsActive = true
		if patterns.Valid && patterns.String != "" {
			if err := json.Unmarshal([]byte(patterns.String), &cat.Patterns); err != nil {
				return nil, fmt.Errorf("failed to decode patterns for category %s: %w", cat.ID, err)
			}
		}
		if keywords.Valid && keywords.String != "" {
			if err := json.Unmarshal([]byte(keywords.String), &cat.Keywords); err != nil {
				return nil, fmt.Errorf("failed to decode keywords for category %s: %w", cat.ID, err)
			}
		}
		if phrases.Valid && phrases.String != "" {
			if err := json.Unmarshal([]byte(phrases.String), &cat.Phrases); err != nil {
				return nil, fmt.Errorf("failed to decode phrases for category %s: %w", cat.ID, err)
			}
		}
		categories = append(categories, cat)
	}
	return categories, rows.Err()
}

// SaveCategory inserts or replaces a category rule
func (s *SQLiteStore) SaveCategory(ctx context.Context, cat *core.Category, position int) error {
	patterns, err := json.Marshal(cat.Patterns)
	if err != nil {
		return fmt.Errorf("failed to encode patterns: %w", err)
	}
	keywords, err := json.Marshal(cat.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}
	phrases, err := json.Marshal(cat.Phrases)
	if err != nil {
		return fmt.Errorf("failed to encode phrases: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO categories
			(owner, id, name, priority, patterns, keywords, phrases, is_active, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cat.Owner, cat.ID, cat.Name, string(cat.EffectivePriority()),
		string(patterns), string(keywords), string(phrases), cat.IsActive, position)
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func phase2Complete(cls *core.Classification) bool {
	return cls.Phase2 != nil && cls.Phase2.IsComplete
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEmailRow(scanner rowScanner) (*core.Email, error) {
	var email core.Email
	var threadID, subject, sender, snippet, body, category, clsJSON sql.NullString
	var date string

	err := scanner.Scan(&email.Owner, &email.ID, &threadID, &subject, &sender,
		&snippet, &body, &date, &email.IsRead, &email.IsArchived, &category, &clsJSON)
	if err != nil {
		return nil, err
	}

	email.ThreadID = threadID.String
	email.Subject = subject.String
	email.From = sender.String
	email.Snippet = snippet.String
	email.Body = body.String
	email.Category = category.String

	if parsed, err := time.Parse(time.RFC3339Nano, date); err == nil {
		email.Date = parsed
	}
	if clsJSON.Valid && clsJSON.String != "" {
		if err := json.Unmarshal([]byte(clsJSON.String), &email.Classification); err != nil {
			return nil, fmt.Errorf("failed to decode classification for email %s: %w", email.ID, err)
		}
	}
	return &email, nil
}

func scanEmail(row *sql.Row) (*core.Email, error) {
	email, err := scanEmailRow(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan email: %w", err)
	}
	return email, nil
}

func scanEmails(rows *sql.Rows) ([]core.Email, error) {
	var emails []core.Email
	for rows.Next() {
		email, err := scanEmailRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		emails = append(emails, *email)
	}
	return emails, rows.Err()
}
