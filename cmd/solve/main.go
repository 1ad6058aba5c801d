package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pulkyeet/xchain-arb/internal/arbitrage"
	"github.com/pulkyeet/xchain-arb/internal/dec"
)

func main() {
	cB := flag.String("cB", "1000", "central reserve of the buy pool")
	sB := flag.String("sB", "2000", "secondary reserve of the buy pool")
	fB := flag.String("fB", "0.003", "swap fee of the buy pool")
	cS := flag.String("cS", "1200", "central reserve of the sell pool")
	sS := flag.String("sS", "1800", "secondary reserve of the sell pool")
	fS := flag.String("fS", "0.003", "swap fee of the sell pool")
	smooth := flag.String("smooth", "0.005", "smooth trade rate applied to leg limits")
	decimals := flag.Int("decimals", 6, "decimals of the base units legs are sent in")
	flag.Parse()

	vals := make([]dec.Dec, 0, 7)
	for _, s := range []string{*cB, *sB, *fB, *cS, *sS, *fS, *smooth} {
		d, err := dec.NewDecFromStr(s)
		if err != nil {
			fail(err)
		}
		vals = append(vals, d)
	}

	sol, ok, err := arbitrage.CalcOptimalTradeAmount(vals[0], vals[1], vals[2], vals[3], vals[4], vals[5])
	if err != nil {
		fail(err)
	}

	fmt.Println("Solver:")
	fmt.Println("=======")
	fmt.Printf("  buy pool:  c=%s s=%s fee=%s\n", vals[0], vals[1], vals[2])
	fmt.Printf("  sell pool: c=%s s=%s fee=%s\n", vals[3], vals[4], vals[5])
	if !ok {
		fmt.Println("\nNo profitable trade size")
		return
	}
	fmt.Printf("\n  x (secondary amount): %s\n", sol.SecondaryAmount)
	fmt.Printf("  central in (buy):     %s\n", sol.CentralBuyMaxAmount)
	fmt.Printf("  central out (sell):   %s\n", sol.CentralSellMinAmount)
	fmt.Printf("  profit:               %s\n", sol.Profit)

	params, err := arbitrage.BuildTradeParams(sol, vals[6], *decimals)
	if err != nil {
		fail(err)
	}
	fmt.Println("\nLegs (base units):")
	fmt.Println("==================")
	fmt.Printf("  amount:     %s\n", params.SecondaryAmount)
	fmt.Printf("  max spend:  %s\n", params.MaxSpend)
	fmt.Printf("  min return: %s\n", params.MinReturn)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "solve: %v\n", err)
	os.Exit(1)
}
