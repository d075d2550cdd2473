package ticket

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/SpaceTimerAPI-Admin/christmastech/pkg/protocol"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ticket store: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ticket store: wal: %w", err)
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
		CREATE TABLE IF NOT EXISTS tickets (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			tech_name         TEXT NOT NULL,
			location_friendly TEXT NOT NULL,
			description       TEXT NOT NULL DEFAULT '',
			lat               REAL,
			lon               REAL,
			status            TEXT NOT NULL DEFAULT 'open',
			photo_url         TEXT NOT NULL DEFAULT '',
			created_at        TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS ticket_comments (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			ticket_id  INTEGER NOT NULL REFERENCES tickets(id),
			author     TEXT NOT NULL DEFAULT '',
			body       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS ticket_photos (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			ticket_id   INTEGER NOT NULL REFERENCES tickets(id),
			photo_url   TEXT NOT NULL,
			uploaded_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
		CREATE INDEX IF NOT EXISTS idx_tickets_created ON tickets(created_at);
		CREATE INDEX IF NOT EXISTS idx_comments_ticket ON ticket_comments(ticket_id);
		CREATE INDEX IF NOT EXISTS idx_photos_ticket ON ticket_photos(ticket_id);
	`)
	if err != nil {
		return fmt.Errorf("ticket store: migrate: %w", err)
	}
	return nil
}

const ticketColumns = "id, tech_name, location_friendly, description, lat, lon, status, photo_url, created_at"

func (s *SQLiteStore) Create(ctx context.Context, report protocol.Report) (*protocol.Ticket, error) {
	createdAt := report.SubmittedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var lat, lon *float64
	if report.Coordinate != nil {
		lat, lon = &report.Coordinate.Lat, &report.Coordinate.Lon
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (tech_name, location_friendly, description, lat, lon, status, photo_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, report.TechName, report.Location, report.Description, lat, lon,
		string(protocol.StatusOpen), report.PhotoURL, createdAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("ticket store: create: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("ticket store: create: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*protocol.Ticket, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id = ?", id)
	t, err := scanTicket(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("ticket %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("ticket store: get: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*protocol.Ticket, error) {
	query := "SELECT " + ticketColumns + " FROM tickets WHERE 1=1"
	var args []any

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*filter.Status))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	return s.queryTickets(ctx, query, args...)
}

func (s *SQLiteStore) ListOpenSince(ctx context.Context, since time.Time) ([]*protocol.Ticket, error) {
	return s.queryTickets(ctx,
		"SELECT "+ticketColumns+" FROM tickets WHERE status = ? AND created_at >= ? ORDER BY created_at ASC, id ASC",
		string(protocol.StatusOpen), since.UTC().Format(time.RFC3339))
}

func (s *SQLiteStore) ListMissingPhoto(ctx context.Context) ([]*protocol.Ticket, error) {
	return s.queryTickets(ctx,
		"SELECT "+ticketColumns+" FROM tickets WHERE photo_url = '' ORDER BY created_at ASC, id ASC")
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id int64, status protocol.TicketStatus) error {
	result, err := s.db.ExecContext(ctx, "UPDATE tickets SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("ticket store: update status: %w", err)
	}
	return affectedOne(result, id)
}

func (s *SQLiteStore) AttachPhoto(ctx context.Context, id int64, url string) error {
	result, err := s.db.ExecContext(ctx, "UPDATE tickets SET photo_url = ? WHERE id = ?", url, id)
	if err != nil {
		return fmt.Errorf("ticket store: attach photo: %w", err)
	}
	if err := affectedOne(result, id); err != nil {
		return err
	}
	// Keep the photo history in step with the primary reference.
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO ticket_photos (ticket_id, photo_url, uploaded_at) VALUES (?, ?, ?)",
		id, url, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("ticket store: attach photo row: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddPhoto(ctx context.Context, ticketID int64, url string) (*protocol.Photo, error) {
	if _, err := s.Get(ctx, ticketID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO ticket_photos (ticket_id, photo_url, uploaded_at) VALUES (?, ?, ?)",
		ticketID, url, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("ticket store: add photo: %w", err)
	}
	id, _ := res.LastInsertId()
	return &protocol.Photo{ID: id, TicketID: ticketID, URL: url, UploadedAt: now}, nil
}

func (s *SQLiteStore) ListPhotos(ctx context.Context, ticketID int64) ([]*protocol.Photo, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, ticket_id, photo_url, uploaded_at FROM ticket_photos WHERE ticket_id = ? ORDER BY uploaded_at ASC, id ASC",
		ticketID)
	if err != nil {
		return nil, fmt.Errorf("ticket store: list photos: %w", err)
	}
	defer rows.Close()

	var photos []*protocol.Photo
	for rows.Next() {
		var p protocol.Photo
		var uploadedAt string
		if err := rows.Scan(&p.ID, &p.TicketID, &p.URL, &uploadedAt); err != nil {
			return nil, fmt.Errorf("ticket store: scan photo: %w", err)
		}
		p.UploadedAt, _ = time.Parse(time.RFC3339, uploadedAt)
		photos = append(photos, &p)
	}
	return photos, rows.Err()
}

func (s *SQLiteStore) AddComment(ctx context.Context, ticketID int64, author, body string) (*protocol.Comment, error) {
	if _, err := s.Get(ctx, ticketID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO ticket_comments (ticket_id, author, body, created_at) VALUES (?, ?, ?, ?)",
		ticketID, author, body, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("ticket store: add comment: %w", err)
	}
	id, _ := res.LastInsertId()
	return &protocol.Comment{ID: id, TicketID: ticketID, Author: author, Body: body, CreatedAt: now}, nil
}

func (s *SQLiteStore) ListComments(ctx context.Context, ticketID int64) ([]*protocol.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, ticket_id, author, body, created_at FROM ticket_comments WHERE ticket_id = ? ORDER BY created_at ASC, id ASC",
		ticketID)
	if err != nil {
		return nil, fmt.Errorf("ticket store: list comments: %w", err)
	}
	defer rows.Close()

	var comments []*protocol.Comment
	for rows.Next() {
		var c protocol.Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.TicketID, &c.Author, &c.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("ticket store: scan comment: %w", err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

func (s *SQLiteStore) CommentedTicketIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	commented := make(map[int64]bool)
	if len(ids) == 0 {
		return commented, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT ticket_id FROM ticket_comments WHERE ticket_id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("ticket store: commented ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ticket store: scan commented id: %w", err)
		}
		commented[id] = true
	}
	return commented, rows.Err()
}

func (s *SQLiteStore) SetCoordinate(ctx context.Context, id int64, coord *protocol.Coordinate) error {
	var lat, lon *float64
	if coord != nil {
		lat, lon = &coord.Lat, &coord.Lon
	}
	result, err := s.db.ExecContext(ctx, "UPDATE tickets SET lat = ?, lon = ? WHERE id = ?", lat, lon, id)
	if err != nil {
		return fmt.Errorf("ticket store: set coordinate: %w", err)
	}
	return affectedOne(result, id)
}

func (s *SQLiteStore) AppendDescription(ctx context.Context, id int64, note string) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	merged := note
	if t.Description != "" {
		merged = t.Description + "\n\n" + note
	}
	result, err := s.db.ExecContext(ctx, "UPDATE tickets SET description = ? WHERE id = ?", merged, id)
	if err != nil {
		return fmt.Errorf("ticket store: append description: %w", err)
	}
	return affectedOne(result, id)
}

// DB returns the underlying database connection (for testing or direct access).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// --- helpers ---

func (s *SQLiteStore) queryTickets(ctx context.Context, query string, args ...any) ([]*protocol.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ticket store: list: %w", err)
	}
	defer rows.Close()

	var tickets []*protocol.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("ticket store: list scan: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func affectedOne(result sql.Result, id int64) error {
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("ticket %d: %w", id, ErrNotFound)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTicket(row scannable) (*protocol.Ticket, error) {
	var t protocol.Ticket
	var lat, lon *float64
	var status, createdAt string

	err := row.Scan(&t.ID, &t.TechName, &t.Location, &t.Description, &lat, &lon,
		&status, &t.PhotoURL, &createdAt)
	if err != nil {
		return nil, err
	}

	t.Status = protocol.TicketStatus(status)
	t.Coordinate = protocol.NewCoordinate(lat, lon)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &t, nil
}
