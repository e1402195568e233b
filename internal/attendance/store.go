package attendance

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists attendance records in sqlite. A single connection
// serializes all writes, so concurrent submissions cannot corrupt the log.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if needed creates) the attendance database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open attendance database: %w", err)
	}
	// Single writer discipline: appends from the stream and single-shot
	// paths go through one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping attendance database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS attendance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		mode TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attendance_name ON attendance(name);
	`
	_, err := s.db.Exec(query)
	return err
}

// Append adds one record to the log.
func (s *Store) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attendance (name, date, time, mode) VALUES (?, ?, ?, ?)`,
		rec.Name, rec.Date, rec.Time, rec.Mode)
	if err != nil {
		return fmt.Errorf("appending attendance record: %w", err)
	}
	return nil
}

// List enumerates all records in append order.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	return s.query(ctx, `SELECT id, name, date, time, mode FROM attendance ORDER BY id`)
}

// ListByName enumerates one person's records in append order.
func (s *Store) ListByName(ctx context.Context, name string) ([]Record, error) {
	return s.query(ctx,
		`SELECT id, name, date, time, mode FROM attendance WHERE name = ? ORDER BY id`, name)
}

// ListByIdentity enumerates the records of the person the label refers to,
// tolerating case, diacritic and dash differences between the label and the
// stored gallery name. Records are stored under gallery names while logins
// use usernames, so the two rarely match byte for byte.
func (s *Store) ListByIdentity(ctx context.Context, name string) ([]Record, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var records []Record
	for _, rec := range all {
		if sameIdentity(rec.Name, name) {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying attendance records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Date, &rec.Time, &rec.Mode); err != nil {
			return nil, fmt.Errorf("scanning attendance record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attendance records: %w", err)
	}
	return records, nil
}

// NameCount is one row of the attendance summary.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary returns per-identity record counts, most frequent first.
func (s *Store) Summary(ctx context.Context) ([]NameCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, COUNT(*) FROM attendance GROUP BY name ORDER BY COUNT(*) DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("querying attendance summary: %w", err)
	}
	defer rows.Close()

	var summary []NameCount
	for rows.Next() {
		var nc NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, fmt.Errorf("scanning summary row: %w", err)
		}
		summary = append(summary, nc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating summary rows: %w", err)
	}
	return summary, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
