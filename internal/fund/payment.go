package fund

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pulkyeet/xchain-arb/internal/dec"
)

var (
	ErrInvalidAmount     = errors.New("amount must not be negative")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPaymentSpent      = errors.New("payment already spent")
	ErrFundClosed        = errors.New("fund is closed")
)

// AssetClass is one side of the traded pair.
type AssetClass int

const (
	Central AssetClass = iota
	Secondary
)

func (c AssetClass) String() string {
	switch c {
	case Central:
		return "central"
	case Secondary:
		return "secondary"
	default:
		return fmt.Sprintf("AssetClass(%d)", int(c))
	}
}

func (c AssetClass) valid() bool {
	return c == Central || c == Secondary
}

// Payment carries an amount of one asset class between the wallet, the fund
// and the venues. It can be consumed once.
type Payment struct {
	class  AssetClass
	amount dec.Dec

	mu    sync.Mutex
	spent bool
}

// NewPayment mints a payment. Venues use it for trade payouts.
func NewPayment(class AssetClass, amount dec.Dec) (*Payment, error) {
	if !class.valid() {
		return nil, fmt.Errorf("unknown asset class %d", int(class))
	}
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	return &Payment{class: class, amount: amount}, nil
}

func (p *Payment) Class() AssetClass { return p.class }
func (p *Payment) Amount() dec.Dec   { return p.amount }

func (p *Payment) IsSpent() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spent
}

// Claim consumes the payment and returns its amount.
func (p *Payment) Claim() (dec.Dec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spent {
		return dec.Dec{}, ErrPaymentSpent
	}
	p.spent = true
	return p.amount, nil
}

func (p *Payment) String() string {
	return p.amount.String() + " " + p.class.String()
}
