package fund

import (
	"context"
	"fmt"
	"sync"

	"github.com/pulkyeet/xchain-arb/internal/dec"
)

// Purse is an in-process wallet holding both asset classes.
type Purse struct {
	mu       sync.Mutex
	balances map[AssetClass]dec.Dec
}

func NewPurse(central, secondary dec.Dec) *Purse {
	return &Purse{balances: map[AssetClass]dec.Dec{Central: central, Secondary: secondary}}
}

func (p *Purse) Balance(class AssetClass) dec.Dec {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[class]
}

func (p *Purse) Withdraw(class AssetClass, amount dec.Dec) (*Payment, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	held := p.balances[class]
	if amount.GT(held) {
		return nil, fmt.Errorf("purse withdraw %s %s: %w", amount, class, ErrInsufficientFunds)
	}
	p.balances[class] = held.Sub(amount)
	return NewPayment(class, amount)
}

func (p *Purse) Deposit(_ context.Context, pay *Payment) error {
	amount, err := pay.Claim()
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[pay.Class()] = p.balances[pay.Class()].Add(amount)
	return nil
}
