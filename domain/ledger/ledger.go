// Package ledger keeps the balances of a curve-backed bonding token.
//
// Buying deposits reserve and mints supply priced by the curve. Selling burns
// supply and queues the released reserve as a claim that unlocks after the
// unbonding period. Every operation validates first and commits a single
// changeset, so a failed call leaves the store untouched.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"curvebond/domain/curve"
	"curvebond/domain/model"
)

var (
	ErrInvalidZeroAmount   = errors.New("invalid zero amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNothingToClaim      = errors.New("nothing to claim")

	ErrArithmeticOverflow  = model.ErrArithmeticOverflow
	ErrArithmeticUnderflow = model.ErrArithmeticUnderflow
)

// Clock supplies the current time to the ledger.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

var SystemClock Clock = ClockFunc(time.Now)

// Recipients of a donor-matched buy.
type Recipients struct {
	Donor     string `json:"donor"`
	Endowment string `json:"endowment"`
	Dao       string `json:"dao"`
}

// Distribution reports how the tokens minted by a donor-matched buy were split.
type Distribution struct {
	Minted    model.Amount `json:"minted"`
	Donor     model.Amount `json:"donor"`
	Endowment model.Amount `json:"endowment"`
	Dao       model.Amount `json:"dao"`
}

type Ledger struct {
	mu        sync.Mutex
	curve     *curve.Curve
	store     Store
	clock     Clock
	unbonding time.Duration
}

func New(c *curve.Curve, store Store, clock Clock, unbonding time.Duration) *Ledger {
	if clock == nil {
		clock = SystemClock
	}
	return &Ledger{
		curve:     c,
		store:     store,
		clock:     clock,
		unbonding: unbonding,
	}
}

func (l *Ledger) Curve() *curve.Curve {
	return l.curve
}

func (l *Ledger) BalanceOf(holder string) model.Amount {
	return l.store.Balance(holder)
}

func (l *Ledger) TotalSupply() model.Amount {
	return l.store.TotalSupply()
}

func (l *Ledger) TotalReserve() model.Amount {
	return l.store.TotalReserve()
}

func (l *Ledger) PendingClaims(holder string) []model.Claim {
	return l.store.Claims(holder)
}

// Buy deposits reserveIn and credits the buyer with the supply it mints.
func (l *Ledger) Buy(buyer string, reserveIn model.Amount) (model.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := newView(l.store)
	minted, err := l.mint(v, reserveIn)
	if err != nil {
		return model.Amount{}, err
	}
	if err := l.credit(v, buyer, minted); err != nil {
		return model.Amount{}, err
	}
	if err := l.store.Commit(v.cs); err != nil {
		return model.Amount{}, err
	}
	return minted, nil
}

// DonorMatch buys with reserveIn and splits the minted supply between the
// recipients. Rounding dust goes to the dao.
func (l *Ledger) DonorMatch(reserveIn model.Amount, to Recipients, split model.Split) (Distribution, error) {
	if err := split.Validate(); err != nil {
		return Distribution{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	v := newView(l.store)
	minted, err := l.mint(v, reserveIn)
	if err != nil {
		return Distribution{}, err
	}

	d := Distribution{Minted: minted}
	if d.Donor, err = percentOf(minted, split.Donor); err != nil {
		return Distribution{}, err
	}
	if d.Endowment, err = percentOf(minted, split.Endowment); err != nil {
		return Distribution{}, err
	}
	if d.Dao, err = minted.Sub(d.Donor); err != nil {
		return Distribution{}, err
	}
	if d.Dao, err = d.Dao.Sub(d.Endowment); err != nil {
		return Distribution{}, err
	}

	for _, part := range []struct {
		holder string
		amount model.Amount
	}{
		{to.Donor, d.Donor},
		{to.Endowment, d.Endowment},
		{to.Dao, d.Dao},
	} {
		if part.amount.IsZero() {
			continue
		}
		if err := l.credit(v, part.holder, part.amount); err != nil {
			return Distribution{}, err
		}
	}

	if err := l.store.Commit(v.cs); err != nil {
		return Distribution{}, err
	}
	return d, nil
}

// Sell burns supply from the seller and queues the released reserve as a claim
// unlocking after the unbonding period. No reserve leaves the ledger here.
func (l *Ledger) Sell(seller string, burn model.Amount) (model.Claim, error) {
	if burn.IsZero() {
		return model.Claim{}, ErrInvalidZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	v := newView(l.store)
	balance := v.balance(seller)
	if balance.Lt(burn) {
		return model.Claim{}, fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, seller, balance, burn)
	}
	newBalance, err := balance.Sub(burn)
	if err != nil {
		return model.Claim{}, err
	}
	newSupply, err := v.cs.TotalSupply.Sub(burn)
	if err != nil {
		return model.Claim{}, err
	}
	newReserve, err := l.curve.ReserveForSupply(newSupply)
	if err != nil {
		return model.Claim{}, err
	}
	released, err := v.cs.TotalReserve.Sub(newReserve)
	if err != nil {
		return model.Claim{}, err
	}

	claim := model.Claim{
		ReleaseAt: l.clock.Now().Add(l.unbonding),
		Amount:    released,
	}

	v.setBalance(seller, newBalance)
	v.cs.TotalSupply = newSupply
	v.cs.TotalReserve = newReserve
	if !released.IsZero() {
		v.setClaims(seller, append(v.claims(seller), claim))
	}

	if err := l.store.Commit(v.cs); err != nil {
		return model.Claim{}, err
	}
	return claim, nil
}

// Claim releases every claim of the holder whose unlock time has passed.
// Claims still locked stay queued.
func (l *Ledger) Claim(holder string) (model.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	v := newView(l.store)

	released := model.ZeroAmount()
	kept := make([]model.Claim, 0)
	for _, c := range v.claims(holder) {
		if !c.IsReleased(now) {
			kept = append(kept, c)
			continue
		}
		var err error
		if released, err = released.Add(c.Amount); err != nil {
			return model.Amount{}, err
		}
	}
	if released.IsZero() {
		return model.Amount{}, ErrNothingToClaim
	}

	v.setClaims(holder, kept)
	v.cs.Released[holder] = released

	if err := l.store.Commit(v.cs); err != nil {
		return model.Amount{}, err
	}
	return released, nil
}

// Transfer moves supply between holders. The curve is not involved.
func (l *Ledger) Transfer(from, to string, amount model.Amount) error {
	if amount.IsZero() {
		return ErrInvalidZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	v := newView(l.store)
	balance := v.balance(from)
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, balance, amount)
	}
	newBalance, err := balance.Sub(amount)
	if err != nil {
		return err
	}
	v.setBalance(from, newBalance)
	if err := l.credit(v, to, amount); err != nil {
		return err
	}
	return l.store.Commit(v.cs)
}

// mint adds reserveIn to the reserve and moves the supply to what the new
// reserve backs. It fails when nothing would be minted.
func (l *Ledger) mint(v *view, reserveIn model.Amount) (model.Amount, error) {
	if reserveIn.IsZero() {
		return model.Amount{}, ErrInvalidZeroAmount
	}
	newReserve, err := v.cs.TotalReserve.Add(reserveIn)
	if err != nil {
		return model.Amount{}, err
	}
	newSupply, err := l.curve.SupplyForReserve(newReserve)
	if err != nil {
		return model.Amount{}, err
	}
	minted, err := newSupply.Sub(v.cs.TotalSupply)
	if err != nil {
		return model.Amount{}, err
	}
	if minted.IsZero() {
		return model.Amount{}, fmt.Errorf("%w: deposit of %s mints nothing", ErrInvalidZeroAmount, reserveIn)
	}
	v.cs.TotalSupply = newSupply
	v.cs.TotalReserve = newReserve
	return minted, nil
}

func (l *Ledger) credit(v *view, holder string, amount model.Amount) error {
	balance, err := v.balance(holder).Add(amount)
	if err != nil {
		return err
	}
	v.setBalance(holder, balance)
	return nil
}

func percentOf(a model.Amount, percent uint32) (model.Amount, error) {
	part, err := a.Mul(model.NewAmount(uint64(percent)))
	if err != nil {
		return model.Amount{}, err
	}
	return part.Quo(model.NewAmount(100))
}
