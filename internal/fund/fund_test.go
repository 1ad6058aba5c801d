package fund

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulkyeet/xchain-arb/internal/dec"
)

func d(s string) dec.Dec { return dec.MustNewDecFromStr(s) }

func newTestFund(t *testing.T, central, secondary string) (*Fund, *Purse) {
	t.Helper()
	purse := NewPurse(d(central), d(secondary))
	c, err := purse.Withdraw(Central, d(central))
	require.NoError(t, err)
	s, err := purse.Withdraw(Secondary, d(secondary))
	require.NoError(t, err)
	f, err := New(purse, c, s)
	require.NoError(t, err)
	return f, purse
}

func TestNewConsumesFunding(t *testing.T) {
	purse := NewPurse(d("10"), d("20"))
	c, _ := purse.Withdraw(Central, d("10"))
	s, _ := purse.Withdraw(Secondary, d("20"))

	f, err := New(purse, c, s)
	require.NoError(t, err)
	assert.True(t, c.IsSpent())
	assert.True(t, s.IsSpent())
	assert.Equal(t, "10.000000000000000000", f.AmountOf(Central).String())
	assert.Equal(t, "20.000000000000000000", f.AmountOf(Secondary).String())

	_, err = New(purse, c, s)
	assert.ErrorIs(t, err, ErrPaymentSpent)
}

func TestNewRejectsSwappedClasses(t *testing.T) {
	c, _ := NewPayment(Central, d("1"))
	s, _ := NewPayment(Secondary, d("1"))
	_, err := New(NewPurse(d("0"), d("0")), s, c)
	assert.Error(t, err)
}

func TestNewRejectsMissingInputs(t *testing.T) {
	purse := NewPurse(d("1"), d("1"))
	c, _ := NewPayment(Central, d("1"))
	s, _ := NewPayment(Secondary, d("1"))

	tests := []struct {
		name      string
		wallet    Wallet
		central   *Payment
		secondary *Payment
	}{
		{"no central", purse, nil, s},
		{"no secondary", purse, c, nil},
		{"no payments", purse, nil, nil},
		{"no wallet", nil, c, s},
	}
	for _, tc := range tests {
		assert.NotPanics(t, func() {
			_, err := New(tc.wallet, tc.central, tc.secondary)
			assert.Error(t, err, tc.name)
		}, tc.name)
	}
	assert.False(t, c.IsSpent(), "rejected funding stays unclaimed")
	assert.False(t, s.IsSpent())
}

func TestWithdraw(t *testing.T) {
	f, _ := newTestFund(t, "100", "50")

	p, err := f.Withdraw(Central, d("40"))
	require.NoError(t, err)
	assert.Equal(t, Central, p.Class())
	assert.True(t, p.Amount().Equal(d("40")))
	assert.True(t, f.AmountOf(Central).Equal(d("60")))

	_, err = f.Withdraw(Central, d("60.000000000000000001"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, f.AmountOf(Central).Equal(d("60")), "failed withdraw must not change the balance")

	_, err = f.Withdraw(Secondary, d("-1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDeposit(t *testing.T) {
	f, _ := newTestFund(t, "100", "50")

	p, err := NewPayment(Secondary, d("2.5"))
	require.NoError(t, err)
	got, err := f.Deposit(p)
	require.NoError(t, err)
	assert.True(t, got.Equal(d("2.5")))
	assert.True(t, f.AmountOf(Secondary).Equal(d("52.5")))

	_, err = f.Deposit(p)
	assert.ErrorIs(t, err, ErrPaymentSpent)
	assert.True(t, f.AmountOf(Secondary).Equal(d("52.5")))
}

func TestConservation(t *testing.T) {
	f, _ := newTestFund(t, "1000", "1000")
	rng := rand.New(rand.NewSource(7))

	withdrawn := map[AssetClass]dec.Dec{Central: dec.ZeroDec(), Secondary: dec.ZeroDec()}
	deposited := map[AssetClass]dec.Dec{Central: dec.ZeroDec(), Secondary: dec.ZeroDec()}
	start := f.Balances()

	for i := 0; i < 500; i++ {
		class := AssetClass(rng.Intn(2))
		amount := dec.NewDecWithPrec(rng.Int63n(5_000_000), 6)
		if rng.Intn(2) == 0 {
			if amount.GT(f.AmountOf(class)) {
				continue
			}
			p, err := f.Withdraw(class, amount)
			require.NoError(t, err)
			withdrawn[class] = withdrawn[class].Add(p.Amount())
			continue
		}
		p, err := NewPayment(class, amount)
		require.NoError(t, err)
		got, err := f.Deposit(p)
		require.NoError(t, err)
		deposited[class] = deposited[class].Add(got)
	}

	end := f.Balances()
	assert.True(t, start.Central.Sub(withdrawn[Central]).Add(deposited[Central]).Equal(end.Central))
	assert.True(t, start.Secondary.Sub(withdrawn[Secondary]).Add(deposited[Secondary]).Equal(end.Secondary))
}

func TestConcurrentWithdrawDeposit(t *testing.T) {
	f, _ := newTestFund(t, "100", "100")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := f.Withdraw(Central, d("1"))
			if err != nil {
				return
			}
			_, _ = f.Deposit(p)
		}()
	}
	wg.Wait()
	assert.True(t, f.AmountOf(Central).Equal(d("100")))
}

func TestCleanupReturnsEverything(t *testing.T) {
	f, purse := newTestFund(t, "100", "50")
	p, _ := NewPayment(Secondary, d("5"))
	_, err := f.Deposit(p)
	require.NoError(t, err)

	require.NoError(t, f.Cleanup(context.Background()))
	assert.True(t, purse.Balance(Central).Equal(d("100")))
	assert.True(t, purse.Balance(Secondary).Equal(d("55")))
	assert.True(t, f.AmountOf(Central).IsZero())

	_, err = f.Withdraw(Central, d("1"))
	assert.ErrorIs(t, err, ErrFundClosed)
	_, err = f.Deposit(p)
	assert.ErrorIs(t, err, ErrFundClosed)
	assert.ErrorIs(t, f.Cleanup(context.Background()), ErrFundClosed)
}

type failingWallet struct{}

func (failingWallet) Deposit(context.Context, *Payment) error { return errors.New("wallet offline") }

func TestCleanupReportsWalletErrors(t *testing.T) {
	c, _ := NewPayment(Central, d("1"))
	s, _ := NewPayment(Secondary, d("1"))
	f, err := New(failingWallet{}, c, s)
	require.NoError(t, err)

	err = f.Cleanup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet offline")
}
