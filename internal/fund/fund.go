// Package fund holds the agent's custodial balances on the local venue.
package fund

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/pulkyeet/xchain-arb/internal/dec"
)

// Wallet takes balances back when the fund shuts down.
type Wallet interface {
	Deposit(ctx context.Context, p *Payment) error
}

// Balances is a point-in-time copy of the fund.
type Balances struct {
	Central   dec.Dec
	Secondary dec.Dec
}

// Fund tracks one balance per asset class. Every method updates the
// balances in a single critical section, so concurrent legs never observe a
// half-applied withdraw or deposit.
type Fund struct {
	mu       sync.Mutex
	balances map[AssetClass]dec.Dec
	wallet   Wallet
	closed   bool
	log      log.Logger
}

// New consumes the two funding payments.
func New(wallet Wallet, central, secondary *Payment) (*Fund, error) {
	if wallet == nil {
		return nil, errors.New("fund needs a wallet")
	}
	if central == nil || secondary == nil {
		return nil, errors.New("fund needs both a central and a secondary funding payment")
	}
	if central.Class() != Central {
		return nil, fmt.Errorf("central funding has class %s", central.Class())
	}
	if secondary.Class() != Secondary {
		return nil, fmt.Errorf("secondary funding has class %s", secondary.Class())
	}
	c, err := central.Claim()
	if err != nil {
		return nil, fmt.Errorf("claim central funding: %w", err)
	}
	s, err := secondary.Claim()
	if err != nil {
		return nil, fmt.Errorf("claim secondary funding: %w", err)
	}

	return &Fund{
		balances: map[AssetClass]dec.Dec{Central: c, Secondary: s},
		wallet:   wallet,
		log:      log.Root().With("component", "fund"),
	}, nil
}

// AmountOf returns the held balance, zero once the fund is closed.
func (f *Fund) AmountOf(class AssetClass) dec.Dec {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return dec.ZeroDec()
	}
	return f.balances[class]
}

func (f *Fund) Balances() Balances {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Balances{Central: f.balances[Central], Secondary: f.balances[Secondary]}
}

// Withdraw splits amount off the held balance.
func (f *Fund) Withdraw(class AssetClass, amount dec.Dec) (*Payment, error) {
	if !class.valid() {
		return nil, fmt.Errorf("unknown asset class %d", int(class))
	}
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrFundClosed
	}
	held := f.balances[class]
	if amount.GT(held) {
		return nil, fmt.Errorf("withdraw %s %s from %s: %w", amount, class, held, ErrInsufficientFunds)
	}
	f.balances[class] = held.Sub(amount)
	return &Payment{class: class, amount: amount}, nil
}

// Deposit merges p into the balance of its class and returns the amount.
func (f *Fund) Deposit(p *Payment) (dec.Dec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return dec.Dec{}, ErrFundClosed
	}
	amount, err := p.Claim()
	if err != nil {
		return dec.Dec{}, err
	}
	f.balances[p.Class()] = f.balances[p.Class()].Add(amount)
	return amount, nil
}

// Cleanup returns everything to the wallet. The fund is unusable afterwards.
func (f *Fund) Cleanup(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFundClosed
	}
	f.closed = true
	payouts := make([]*Payment, 0, 2)
	for _, class := range []AssetClass{Central, Secondary} {
		payouts = append(payouts, &Payment{class: class, amount: f.balances[class]})
		f.balances[class] = dec.ZeroDec()
	}
	f.mu.Unlock()

	var errs []error
	for _, p := range payouts {
		if err := f.wallet.Deposit(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("return %s: %w", p, err))
			continue
		}
		f.log.Info("returned funds to wallet", "class", p.Class(), "amount", p.Amount().StringFixed(6))
	}
	return errors.Join(errs...)
}
