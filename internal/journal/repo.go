package journal

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/agevault/internal/models"
)

// DefaultLimit caps Recent when the caller passes a non-positive limit.
const DefaultLimit = 50

// Entry represents a row in the transcodes table.
type Entry struct {
	ID        string    `json:"id"`
	TickID    string    `json:"tick_id"`
	Op        string    `json:"op"`
	Source    string    `json:"source"`
	Output    string    `json:"output,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Record stores one outcome.
func (db *DB) Record(o models.Outcome) error {
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := db.conn.Exec(`
		INSERT INTO transcodes (id, tick_id, op, source, output, status, error, size, checksum, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), o.TickID, string(o.Op), o.Source, o.Output, o.Status, o.Error(), o.Size, o.Checksum, at.UTC())
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (db *DB) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := db.conn.Query(`
		SELECT id, tick_id, op, source, output, status, error, size, checksum, created_at
		FROM transcodes ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TickID, &e.Op, &e.Source, &e.Output, &e.Status, &e.Error, &e.Size, &e.Checksum, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counts returns the number of entries per status.
func (db *DB) Counts() (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT status, count(*) FROM transcodes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("journal: counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
