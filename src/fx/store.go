package fx

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Store is the durable cache of closed-year exchange rates. Rates for closed
// years are immutable once published, so rows are written once and never
// updated.
type Store struct {
	db *sql.DB
}

func OpenStore(databasePath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(databasePath), 0o700); err != nil {
		return nil, fmt.Errorf("creating rate store directory: %w", err)
	}
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("opening rate store at %s: %w", databasePath, err)
	}

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS exchange_rates (
		currency TEXT NOT NULL,
		day TEXT NOT NULL,
		rate TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (currency, day)
	);`
	if _, err := db.Exec(createTableStatement); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating exchange_rates table: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the stored rate for a currency and day, if present.
func (s *Store) Get(currency string, day time.Time) (decimal.Decimal, bool, error) {
	var raw string
	err := s.db.QueryRow(
		`SELECT rate FROM exchange_rates WHERE currency = ? AND day = ?`,
		currency, day.Format("2006-01-02"),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("reading stored rate for %s on %s: %w", currency, day.Format("2006-01-02"), err)
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parsing stored rate %q: %w", raw, err)
	}
	return rate, true, nil
}

// Put stores a rate. Existing rows are left untouched so a published
// closed-year rate can never be overwritten.
func (s *Store) Put(currency string, day time.Time, rate decimal.Decimal) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO exchange_rates (currency, day, rate) VALUES (?, ?, ?)`,
		currency, day.Format("2006-01-02"), rate.String(),
	)
	if err != nil {
		return fmt.Errorf("storing rate for %s on %s: %w", currency, day.Format("2006-01-02"), err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
