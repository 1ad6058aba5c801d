package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal db: %w", err)
	}

	// WAL lets export-journal read while the bot writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func (j *SQLiteJournal) RecordCycle(ctx context.Context, c Cycle) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO cycles (
			run, timestamp, price_a, price_b, diff_rate, buy_venue, decision,
			secondary_amount, max_spend, min_return, profit,
			buy_ok, sell_ok, post_price_a, post_price_b, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Run, c.Timestamp, c.PriceA, c.PriceB, c.DiffRate, c.BuyVenue, string(c.Decision),
		c.SecondaryAmount, c.MaxSpend, c.MinReturn, c.Profit,
		c.BuyOK, c.SellOK, c.PostPriceA, c.PostPriceB, c.Error,
	)
	if err != nil {
		return fmt.Errorf("insert cycle %d: %w", c.Run, err)
	}
	return nil
}

// ListCycles returns cycles recorded at or after since, oldest first.
func (j *SQLiteJournal) ListCycles(ctx context.Context, since int64) ([]Cycle, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run, timestamp, price_a, price_b, diff_rate, buy_venue, decision,
			secondary_amount, max_spend, min_return, profit,
			buy_ok, sell_ok, post_price_a, post_price_b, error
		FROM cycles WHERE timestamp >= ? ORDER BY id`, since)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []Cycle
	for rows.Next() {
		var c Cycle
		var decision string
		if err := rows.Scan(
			&c.Run, &c.Timestamp, &c.PriceA, &c.PriceB, &c.DiffRate, &c.BuyVenue, &decision,
			&c.SecondaryAmount, &c.MaxSpend, &c.MinReturn, &c.Profit,
			&c.BuyOK, &c.SellOK, &c.PostPriceA, &c.PostPriceB, &c.Error,
		); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		c.Decision = Decision(decision)
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// Stats counts recorded cycles per decision.
func (j *SQLiteJournal) Stats(ctx context.Context) (map[Decision]int64, error) {
	rows, err := j.db.QueryContext(ctx, "SELECT decision, COUNT(*) FROM cycles GROUP BY decision")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[Decision]int64)
	for rows.Next() {
		var decision string
		var count int64
		if err := rows.Scan(&decision, &count); err != nil {
			return nil, err
		}
		stats[Decision(decision)] = count
	}
	return stats, rows.Err()
}
