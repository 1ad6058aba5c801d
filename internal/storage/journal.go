// Package storage keeps the per-cycle journal of the arbitrage bot.
package storage

import "context"

// Decision is how a cycle ended.
type Decision string

const (
	DecisionNoTradeThreshold Decision = "no_trade_threshold"
	DecisionNoSolution       Decision = "no_solution"
	DecisionBelowMinProfit   Decision = "below_min_profit"
	DecisionDryRun           Decision = "dry_run"
	DecisionExecuted         Decision = "executed"
	DecisionAborted          Decision = "aborted"
)

// Cycle is one journal row. Decimal fields hold their canonical string form
// and are empty when the cycle ended before computing them.
type Cycle struct {
	Run             int
	Timestamp       int64
	PriceA          string
	PriceB          string
	DiffRate        string
	BuyVenue        string
	Decision        Decision
	SecondaryAmount string
	MaxSpend        string
	MinReturn       string
	Profit          string
	BuyOK           bool
	SellOK          bool
	PostPriceA      string
	PostPriceB      string
	Error           string
}

type Recorder interface {
	RecordCycle(ctx context.Context, c Cycle) error
	Close() error
}

// NoopJournal drops every record.
type NoopJournal struct{}

func (NoopJournal) RecordCycle(context.Context, Cycle) error { return nil }
func (NoopJournal) Close() error                             { return nil }
