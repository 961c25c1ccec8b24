package journal

import "github.com/starford/agevault/internal/models"

// Ledger defines the journal operations consumers depend on.
type Ledger interface {
	Record(o models.Outcome) error
	Recent(limit int) ([]Entry, error)
	Counts() (map[string]int, error)
	Close() error
}

// Verify *DB satisfies Ledger at compile time.
var _ Ledger = (*DB)(nil)
