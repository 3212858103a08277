// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrClosed        = errors.New("store is closed")
	ErrDatabaseError = errors.New("database error")
	ErrInvalidRecord = errors.New("invalid record")
)

// =============================================================================
// SCHEMA
// =============================================================================

// migrations run in order on every open. Each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		recipient TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		attendees TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		items TEXT NOT NULL DEFAULT '[]',
		total REAL,
		currency TEXT NOT NULL DEFAULT 'USD',
		created_at TEXT NOT NULL
	)`,
}

// =============================================================================
// RECORDS
// =============================================================================

// EmailRecord is one message in the outbox.
type EmailRecord struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// EventRecord is one calendar event.
type EventRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrderItem is one line of a food order.
type OrderItem struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

// OrderRecord is a recorded food order. Customer and payment details are
// never stored.
type OrderRecord struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Items     []OrderItem `json:"items"`
	Total     *float64    `json:"total,omitempty"`
	Currency  string      `json:"currency"`
	CreatedAt time.Time   `json:"created_at"`
}

// =============================================================================
// STORE
// =============================================================================

// Store is the connector database. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at path and applies migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty database path", ErrDatabaseError)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and applies migrations.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: nil database", ErrDatabaseError)
	}
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// =============================================================================
// OUTBOX
// =============================================================================

// SaveEmail inserts rec, assigning an ID, status and timestamp when unset.
func (s *Store) SaveEmail(ctx context.Context, rec *EmailRecord) error {
	if rec == nil || strings.TrimSpace(rec.To) == "" {
		return fmt.Errorf("%w: email needs a recipient", ErrInvalidRecord)
	}
	fillIdentity(&rec.ID, &rec.CreatedAt)
	if rec.Status == "" {
		rec.Status = "queued"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outbox (id, recipient, subject, body, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.To, rec.Subject, rec.Body, rec.Status, formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: insert email: %v", ErrDatabaseError, err)
	}
	return nil
}

// ListOutbox returns up to limit messages, newest first.
func (s *Store) ListOutbox(ctx context.Context, limit int) ([]EmailRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recipient, subject, body, status, created_at FROM outbox ORDER BY created_at DESC LIMIT ?`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list outbox: %v", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var out []EmailRecord
	for rows.Next() {
		var rec EmailRecord
		var created string
		if err := rows.Scan(&rec.ID, &rec.To, &rec.Subject, &rec.Body, &rec.Status, &created); err != nil {
			return nil, fmt.Errorf("%w: scan email: %v", ErrDatabaseError, err)
		}
		rec.CreatedAt = parseTime(created)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list outbox: %v", ErrDatabaseError, err)
	}
	return out, nil
}

// =============================================================================
// EVENTS
// =============================================================================

// SaveEvent inserts rec, assigning an ID and timestamp when unset.
func (s *Store) SaveEvent(ctx context.Context, rec *EventRecord) error {
	if rec == nil || rec.Start.IsZero() || !rec.End.After(rec.Start) {
		return fmt.Errorf("%w: event needs a start before its end", ErrInvalidRecord)
	}
	fillIdentity(&rec.ID, &rec.CreatedAt)
	if rec.Attendees == nil {
		rec.Attendees = []string{}
	}
	attendees, err := json.Marshal(rec.Attendees)
	if err != nil {
		return fmt.Errorf("%w: encode attendees: %v", ErrInvalidRecord, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, title, description, start_at, end_at, attendees, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, rec.Description, formatTime(rec.Start), formatTime(rec.End), string(attendees), formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: insert event: %v", ErrDatabaseError, err)
	}
	return nil
}

// ListEvents returns up to limit events ordered by start time.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, start_at, end_at, attendees, created_at FROM events ORDER BY start_at LIMIT ?`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list events: %v", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		var start, end, attendees, created string
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Description, &start, &end, &attendees, &created); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", ErrDatabaseError, err)
		}
		rec.Start, rec.End, rec.CreatedAt = parseTime(start), parseTime(end), parseTime(created)
		if err := json.Unmarshal([]byte(attendees), &rec.Attendees); err != nil {
			rec.Attendees = []string{}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list events: %v", ErrDatabaseError, err)
	}
	return out, nil
}

// =============================================================================
// ORDERS
// =============================================================================

// SaveOrder inserts rec, assigning an ID and timestamp when unset.
func (s *Store) SaveOrder(ctx context.Context, rec *OrderRecord) error {
	if rec == nil || len(rec.Items) == 0 {
		return fmt.Errorf("%w: order needs at least one item", ErrInvalidRecord)
	}
	fillIdentity(&rec.ID, &rec.CreatedAt)
	if rec.Currency == "" {
		rec.Currency = "USD"
	}
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return fmt.Errorf("%w: encode items: %v", ErrInvalidRecord, err)
	}

	var total sql.NullFloat64
	if rec.Total != nil {
		total = sql.NullFloat64{Float64: *rec.Total, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (id, status, items, total, currency, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Status, string(items), total, rec.Currency, formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: insert order: %v", ErrDatabaseError, err)
	}
	return nil
}

// ListOrders returns up to limit orders, newest first.
func (s *Store) ListOrders(ctx context.Context, limit int) ([]OrderRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, items, total, currency, created_at FROM orders ORDER BY created_at DESC LIMIT ?`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var out []OrderRecord
	for rows.Next() {
		var rec OrderRecord
		var items, created string
		var total sql.NullFloat64
		if err := rows.Scan(&rec.ID, &rec.Status, &items, &total, &rec.Currency, &created); err != nil {
			return nil, fmt.Errorf("%w: scan order: %v", ErrDatabaseError, err)
		}
		if total.Valid {
			v := total.Float64
			rec.Total = &v
		}
		rec.CreatedAt = parseTime(created)
		_ = json.Unmarshal([]byte(items), &rec.Items)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", ErrDatabaseError, err)
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func fillIdentity(id *string, created *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if created.IsZero() {
		*created = time.Now().UTC()
	}
}

// timeLayout has fixed-width fractions so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}
