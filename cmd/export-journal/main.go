package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/pulkyeet/xchain-arb/internal/storage"
)

func main() {
	_ = godotenv.Load()

	dbPath := flag.String("db", "data/journal.db", "path to the journal database")
	out := flag.String("out", "", "parquet file to write")
	since := flag.Int64("since", 0, "only export cycles at or after this timestamp")
	flag.Parse()

	if *out == "" {
		fmt.Fprintln(os.Stderr, "Usage: export-journal --out <file.parquet> [--db data/journal.db] [--since ts]")
		os.Exit(2)
	}
	if v := os.Getenv("JOURNAL_PATH"); v != "" && !isFlagSet("db") {
		*dbPath = v
	}

	ctx := context.Background()
	journal, err := storage.NewSQLiteJournal(*dbPath)
	if err != nil {
		fail(err)
	}
	defer journal.Close()

	fmt.Printf("📥 Reading journal %s...\n", *dbPath)
	start := time.Now()
	cycles, err := journal.ListCycles(ctx, *since)
	if err != nil {
		fail(err)
	}
	if err := storage.ExportParquet(*out, cycles); err != nil {
		fail(err)
	}

	fmt.Printf("\n✅ Export complete!\n")
	fmt.Printf("  Cycles: %d\n", len(cycles))
	fmt.Printf("  File:   %s\n", *out)
	fmt.Printf("  Time:   %s\n", time.Since(start))

	stats, err := journal.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get stats: %v\n", err)
		return
	}
	fmt.Printf("\n📊 Decisions:\n")
	for _, d := range []storage.Decision{
		storage.DecisionNoTradeThreshold,
		storage.DecisionNoSolution,
		storage.DecisionBelowMinProfit,
		storage.DecisionDryRun,
		storage.DecisionExecuted,
		storage.DecisionAborted,
	} {
		fmt.Printf("  %-20s %d\n", d, stats[d])
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "export-journal: %v\n", err)
	os.Exit(1)
}
