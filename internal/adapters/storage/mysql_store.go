package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the email and category stores.
// The DSN must enable parseTime so DATETIME columns scan into time.Time.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore creates a new MySQL store
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	// Create tables if they don't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS emails (
			owner VARCHAR(191) NOT NULL,
			id VARCHAR(191) NOT NULL,
			thread_id VARCHAR(191),
			subject TEXT,
			sender TEXT,
			snippet TEXT,
			body LONGTEXT,
			date DATETIME(6),
			is_read TINYINT(1) NOT NULL DEFAULT 0,
			is_archived TINYINT(1) NOT NULL DEFAULT 0,
			category VARCHAR(191),
			classification JSON,
			phase2_complete TINYINT(1) NOT NULL DEFAULT 0,
			PRIMARY KEY (owner, id),
			INDEX idx_emails_thread (owner, thread_id, date)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create emails table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS categories (
			owner VARCHAR(191) NOT NULL,
			id VARCHAR(191) NOT NULL,
			name VARCHAR(255) NOT NULL,
			priority VARCHAR(16) NOT NULL DEFAULT 'normal',
			patterns JSON,
			keywords JSON,
			phrases JSON,
			is_active TINYINT(1) NOT NULL DEFAULT 1,
			position INT NOT NULL DEFAULT 0,
			PRIMARY KEY (owner, id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create categories table: %w", err)
	}

	return &MySQLStore{db: db, logger: logger}, nil
}

// SaveEmail inserts or replaces an email
func (s *MySQLStore) SaveEmail(ctx context.Context, email *core.Email) error {
	clsJSON, err := json.Marshal(email.Classification)
	if err != nil {
		return fmt.Errorf("failed to encode classification: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		REPLACE INTO emails
			(owner, id, thread_id, subject, sender, snippet, body, date,
			 is_read, is_archived, category, classification, phase2_complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, email.Owner, email.ID, email.ThreadID, email.Subject, email.From,
		email.Snippet, email.Body, email.Date.UTC(),
		email.IsRead, email.IsArchived, email.Category, string(clsJSON),
		phase2Complete(&email.Classification))
	if err != nil {
		return fmt.Errorf("failed to insert email: %w", err)
	}
	return nil
}

// GetEmail retrieves one email by owner and id
func (s *MySQLStore) GetEmail(ctx context.Context, owner, id string) (*core.Email, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT owner, id, thread_id, subject, sender, snippet, body, date,
		       is_read, is_archived, category, classification
		FROM emails
		WHERE owner = ? AND id = ?
	`, owner, id)

	email, err := s.scanEmail(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan email: %w", err)
	}
	return email, nil
}

// UpdateClassification atomically writes the category and classification
// state of one email
func (s *MySQLStore) UpdateClassification(ctx context.Context, owner, id, category string, cls core.Classification) error {
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
		// REPLACE-free update: verify the row exists, MySQL reports zero
		// affected rows for no-op updates too.
		var exists int
		check := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM emails WHERE owner = ? AND id = ?`, owner, id)
		if err := check.Scan(&exists); err == sql.ErrNoRows {
			return core.ErrNotFound
		} else if err != nil {
			return fmt.Errorf("failed to verify email: %w", err)
		}
	}
	return nil
}

// ListEmails returns all emails of an owner
func (s *MySQLStore) ListEmails(ctx context.Context, owner string) ([]core.Email, error) {
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
	return s.scanEmails(rows)
}

// ListThreadMessages returns the messages of one thread within [from, to),
// ordered chronologically
func (s *MySQLStore) ListThreadMessages(ctx context.Context, owner, threadID string, from, to time.Time) ([]core.Email, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, id, thread_id, subject, sender, snippet, body, date,
		       is_read, is_archived, category, classification
		FROM emails
		WHERE owner = ? AND (thread_id = ? OR (thread_id = '' AND id = ?))
		  AND date >= ? AND date < ?
		ORDER BY date ASC
	`, owner, threadID, threadID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query thread messages: %w", err)
	}
	defer rows.Close()
	return s.scanEmails(rows)
}

// ListUnrefinedIDs returns the ids of emails whose phase 2 pass has not
// completed, optionally filtered by current category
func (s *MySQLStore) ListUnrefinedIDs(ctx context.Context, owner, category string) ([]string, error) {
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
func (s *MySQLStore) ListActiveCategories(ctx context.Context, owner string) ([]core.Category, error) {
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

// Close closes the database connection
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func (s *MySQLStore) scanEmail(scanner rowScanner) (*core.Email, error) {
	var email core.Email
	var threadID, subject, sender, snippet, body, category, clsJSON sql.NullString
	var date sql.NullTime

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
	email.Date = date.Time

	if clsJSON.Valid && clsJSON.String != "" {
		if err := json.Unmarshal([]byte(clsJSON.String), &email.Classification); err != nil {
			return nil, fmt.Errorf("failed to decode classification for email %s: %w", email.ID, err)
		}
	}
	return &email, nil
}

func (s *MySQLStore) scanEmails(rows *sql.Rows) ([]core.Email, error) {
	var emails []core.Email
	for rows.Next() {
		email, err := s.scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		emails = append(emails, *email)
	}
	return emails, rows.Err()
}
