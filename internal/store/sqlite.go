package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/orderline-io/orderline/pkg/protocol"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("call store: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("call store: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS calls (
			call_id    TEXT PRIMARY KEY,
			status     TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			ended_at   TEXT NOT NULL,
			transcript TEXT NOT NULL DEFAULT '',
			draft      TEXT NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS orders (
			id         TEXT PRIMARY KEY,
			call_id    TEXT NOT NULL REFERENCES calls(call_id),
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS order_items (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id  TEXT NOT NULL REFERENCES orders(id),
			item_name TEXT NOT NULL,
			quantity  INTEGER NOT NULL,
			modifiers TEXT NOT NULL DEFAULT '[]'
		);

		CREATE INDEX IF NOT EXISTS idx_orders_call ON orders(call_id);
		CREATE INDEX IF NOT EXISTS idx_items_order ON order_items(order_id);
		CREATE INDEX IF NOT EXISTS idx_calls_status ON calls(status);
	`)
	if err != nil {
		return fmt.Errorf("call store: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveCall(ctx context.Context, rec *protocol.CallRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("call store: begin: %w", err)
	}
	defer tx.Rollback()

	draft := "[]"
	if len(rec.Draft) > 0 {
		b, err := json.Marshal(rec.Draft)
		if err != nil {
			return fmt.Errorf("call store: marshal draft: %w", err)
		}
		draft = string(b)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO calls (call_id, status, reason, started_at, ended_at, transcript, draft)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(call_id) DO UPDATE SET
			status=excluded.status, reason=excluded.reason, ended_at=excluded.ended_at,
			transcript=excluded.transcript, draft=excluded.draft
	`, rec.CallID, string(rec.Status), string(rec.Reason),
		rec.StartedAt.UTC().Format(time.RFC3339), rec.EndedAt.UTC().Format(time.RFC3339),
		rec.Transcript, draft)
	if err != nil {
		return fmt.Errorf("call store: save call: %w", err)
	}

	if rec.Order != nil {
		_, err = tx.ExecContext(ctx, `INSERT INTO orders (id, call_id, created_at) VALUES (?, ?, ?)`,
			rec.Order.ID, rec.CallID, rec.Order.CreatedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("call store: save order: %w", err)
		}
		for _, item := range rec.Order.Items {
			modifiers, _ := json.Marshal(item.Modifiers)
			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, item_name, quantity, modifiers) VALUES (?, ?, ?, ?)`,
				rec.Order.ID, item.ItemName, item.Quantity, string(modifiers))
			if err != nil {
				return fmt.Errorf("call store: save order item: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("call store: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCall(ctx context.Context, callID string) (*protocol.CallRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT call_id, status, reason, started_at, ended_at, transcript, draft FROM calls WHERE call_id = ?`, callID)

	rec, err := scanCall(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, callID)
		}
		return nil, fmt.Errorf("call store: get: %w", err)
	}

	order, err := s.loadOrder(ctx, callID)
	if err != nil {
		return nil, err
	}
	rec.Order = order
	return rec, nil
}

func (s *SQLiteStore) ListCalls(ctx context.Context, filter Filter) ([]*protocol.CallRecord, error) {
	query := `SELECT call_id, status, reason, started_at, ended_at, transcript, draft FROM calls WHERE 1=1`
	var args []any

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*filter.Status))
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("call store: list: %w", err)
	}
	defer rows.Close()

	var records []*protocol.CallRecord
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("call store: list scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rec := range records {
		order, err := s.loadOrder(ctx, rec.CallID)
		if err != nil {
			return nil, err
		}
		rec.Order = order
	}
	return records, nil
}

func (s *SQLiteStore) CountCalls(ctx context.Context, filter Filter) (int, error) {
	query := "SELECT COUNT(*) FROM calls WHERE 1=1"
	var args []any
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*filter.Status))
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("call store: count: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection (for testing or direct access).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// --- helpers ---

func (s *SQLiteStore) loadOrder(ctx context.Context, callID string) (*protocol.OrderRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, created_at FROM orders WHERE call_id = ?`, callID)

	var order protocol.OrderRecord
	var createdAt string
	if err := row.Scan(&order.ID, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("call store: load order: %w", err)
	}
	order.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_name, quantity, modifiers FROM order_items WHERE order_id = ? ORDER BY id`, order.ID)
	if err != nil {
		return nil, fmt.Errorf("call store: load items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item protocol.OrderDraftItem
		var modifiersJSON string
		if err := rows.Scan(&item.ItemName, &item.Quantity, &modifiersJSON); err != nil {
			return nil, fmt.Errorf("call store: scan item: %w", err)
		}
		json.Unmarshal([]byte(modifiersJSON), &item.Modifiers)
		item.Status = protocol.ValidationAccepted
		order.Items = append(order.Items, item)
	}
	return &order, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCall(s scannable) (*protocol.CallRecord, error) {
	var rec protocol.CallRecord
	var status, reason, startedAt, endedAt, draft string

	if err := s.Scan(&rec.CallID, &status, &reason, &startedAt, &endedAt, &rec.Transcript, &draft); err != nil {
		return nil, err
	}
	rec.Status = protocol.CallStatus(status)
	rec.Reason = protocol.EndReason(reason)
	rec.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	rec.EndedAt, _ = time.Parse(time.RFC3339, endedAt)
	if draft != "" && draft != "[]" {
		json.Unmarshal([]byte(draft), &rec.Draft)
	}
	return &rec, nil
}
