package usecase

import (
	"errors"
	"fmt"
	"time"

	"curvebond/domain"
	"curvebond/domain/curve"
	"curvebond/domain/ledger"
	"curvebond/domain/model"
	"curvebond/interface/exporter"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts = 5
)

// LedgerSource hands out single-use ledger stores loaded with the given
// holders. A store whose state went stale by commit time must fail with
// domain.ErrorStaleLedger.
type LedgerSource interface {
	Store(holders ...string) (ledger.Store, error)
	ReleasedHolders(now time.Time) ([]string, error)
}

// Deposit is reserve sent to the ledger by Sender.
type Deposit struct {
	Sender string       `json:"sender"`
	Denom  string       `json:"denom"`
	Amount model.Amount `json:"amount"`
}

type Totals struct {
	Supply    model.Amount    `json:"supply"`
	Reserve   model.Amount    `json:"reserve"`
	SpotPrice decimal.Decimal `json:"spot_price"`
}

type HolderState struct {
	Holder  string        `json:"holder"`
	Balance model.Amount  `json:"balance"`
	Claims  []model.Claim `json:"claims"`
}

type Quote struct {
	Supply    model.Amount    `json:"supply"`
	SpotPrice decimal.Decimal `json:"spot_price"`
	Reserve   model.Amount    `json:"reserve"`
}

type BondingInteractor struct {
	curve        *curve.Curve
	source       LedgerSource
	clock        ledger.Clock
	unbonding    time.Duration
	reserveDenom string
	split        model.Split
	maxAttempts  int
	logger       *zap.Logger
}

func NewBondingInteractor(c *curve.Curve,
	source LedgerSource,
	clock ledger.Clock,
	unbonding time.Duration,
	reserveDenom string,
	split model.Split,
	logger *zap.Logger) *BondingInteractor {
	if clock == nil {
		clock = ledger.SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	interactor := &BondingInteractor{
		curve:        c,
		source:       source,
		clock:        clock,
		unbonding:    unbonding,
		reserveDenom: reserveDenom,
		split:        split,
		maxAttempts:  defaultMaxAttempts,
		logger:       logger,
	}
	return interactor
}

func (interactor *BondingInteractor) Curve() *curve.Curve {
	return interactor.curve
}

func (interactor *BondingInteractor) ReserveDenom() string {
	return interactor.reserveDenom
}

// Deposit buys with reserve received from the sender. Only the configured
// reserve denom is accepted.
func (interactor *BondingInteractor) Deposit(d Deposit) (model.Amount, error) {
	if err := interactor.checkDenom(d.Denom); err != nil {
		return model.Amount{}, err
	}
	if err := checkHolders(d.Sender); err != nil {
		return model.Amount{}, err
	}

	var minted model.Amount
	err := interactor.run("buy", []string{d.Sender}, func(l *ledger.Ledger) error {
		var err error
		minted, err = l.Buy(d.Sender, d.Amount)
		return err
	})
	if err != nil {
		return model.Amount{}, err
	}

	exporter.IncBuyCount()
	interactor.logger.Info("🟢 minted",
		zap.String("holder", d.Sender),
		zap.Stringer("reserve", d.Amount),
		zap.Stringer("minted", minted))
	return minted, nil
}

// DonorMatch buys with a donation and splits the minted tokens between the
// recipients by the configured split.
func (interactor *BondingInteractor) DonorMatch(denom string, amount model.Amount, to ledger.Recipients) (ledger.Distribution, error) {
	if err := interactor.checkDenom(denom); err != nil {
		return ledger.Distribution{}, err
	}
	if err := checkHolders(to.Donor, to.Endowment, to.Dao); err != nil {
		return ledger.Distribution{}, err
	}

	var d ledger.Distribution
	err := interactor.run("donor-match", []string{to.Donor, to.Endowment, to.Dao}, func(l *ledger.Ledger) error {
		var err error
		d, err = l.DonorMatch(amount, to, interactor.split)
		return err
	})
	if err != nil {
		return ledger.Distribution{}, err
	}

	exporter.IncBuyCount()
	interactor.logger.Info("🟢 donor match",
		zap.Stringer("reserve", amount),
		zap.Stringer("minted", d.Minted),
		zap.String("split", interactor.split.String()))
	return d, nil
}

func (interactor *BondingInteractor) Sell(holder string, amount model.Amount) (model.Claim, error) {
	if err := checkHolders(holder); err != nil {
		return model.Claim{}, err
	}

	var claim model.Claim
	err := interactor.run("sell", []string{holder}, func(l *ledger.Ledger) error {
		var err error
		claim, err = l.Sell(holder, amount)
		return err
	})
	if err != nil {
		return model.Claim{}, err
	}

	exporter.IncSellCount()
	interactor.logger.Info("🟠 burned",
		zap.String("holder", holder),
		zap.Stringer("burned", amount),
		zap.Stringer("claim", claim.Amount),
		zap.Time("release_at", claim.ReleaseAt))
	return claim, nil
}

// Claim releases the holder's unlocked claims and queues them for payout.
func (interactor *BondingInteractor) Claim(holder string) (model.Amount, error) {
	if err := checkHolders(holder); err != nil {
		return model.Amount{}, err
	}

	var released model.Amount
	err := interactor.run("claim", []string{holder}, func(l *ledger.Ledger) error {
		var err error
		released, err = l.Claim(holder)
		return err
	})
	if err != nil {
		return model.Amount{}, err
	}

	exporter.IncClaimCount()
	interactor.logger.Info("🔵 claimed",
		zap.String("holder", holder),
		zap.Stringer("released", released))
	return released, nil
}

func (interactor *BondingInteractor) Transfer(from, to string, amount model.Amount) error {
	if err := checkHolders(from, to); err != nil {
		return err
	}

	err := interactor.run("transfer", []string{from, to}, func(l *ledger.Ledger) error {
		return l.Transfer(from, to, amount)
	})
	if err != nil {
		return err
	}

	exporter.IncTransferCount()
	interactor.logger.Debug("transferred",
		zap.String("from", from),
		zap.String("to", to),
		zap.Stringer("amount", amount))
	return nil
}

func (interactor *BondingInteractor) Balance(holder string) (*HolderState, error) {
	if err := checkHolders(holder); err != nil {
		return nil, err
	}
	store, err := interactor.source.Store(holder)
	if err != nil {
		return nil, err
	}
	return &HolderState{
		Holder:  holder,
		Balance: store.Balance(holder),
		Claims:  store.Claims(holder),
	}, nil
}

func (interactor *BondingInteractor) Totals() (*Totals, error) {
	store, err := interactor.source.Store()
	if err != nil {
		return nil, err
	}
	supply := store.TotalSupply()
	return &Totals{
		Supply:    supply,
		Reserve:   store.TotalReserve(),
		SpotPrice: interactor.curve.SpotPrice(supply),
	}, nil
}

// Quote prices a hypothetical supply without touching the ledger.
func (interactor *BondingInteractor) Quote(supply model.Amount) (*Quote, error) {
	reserve, err := interactor.curve.ReserveForSupply(supply)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Supply:    supply,
		SpotPrice: interactor.curve.SpotPrice(supply),
		Reserve:   reserve,
	}, nil
}

// run executes op on a fresh ledger over a store loaded with holders, and
// starts over when another writer committed first.
func (interactor *BondingInteractor) run(op string, holders []string, fn func(l *ledger.Ledger) error) error {
	for attempt := 1; ; attempt++ {
		store, err := interactor.source.Store(holders...)
		if err != nil {
			exporter.IncErrorCount()
			interactor.logger.Error("🔴 loading ledger", zap.String("op", op), zap.Error(err))
			return err
		}

		err = fn(ledger.New(interactor.curve, store, interactor.clock, interactor.unbonding))
		if errors.Is(err, domain.ErrorStaleLedger) && attempt < interactor.maxAttempts {
			interactor.logger.Warn("🟡 stale ledger, retrying", zap.String("op", op), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			exporter.IncErrorCount()
			interactor.logger.Warn("❌ operation failed", zap.String("op", op), zap.Strings("holders", holders), zap.Error(err))
			return err
		}

		places := interactor.curve.Places()
		exporter.SetTotals(places.FromSupply(store.TotalSupply()), places.FromReserve(store.TotalReserve()))
		return nil
	}
}

func (interactor *BondingInteractor) checkDenom(denom string) error {
	if denom != interactor.reserveDenom {
		exporter.IncErrorCount()
		return fmt.Errorf("%w: denom %q is not the reserve denom %q", domain.ErrorUnauthorized, denom, interactor.reserveDenom)
	}
	return nil
}

func checkHolders(holders ...string) error {
	for _, h := range holders {
		if h == "" {
			return domain.ErrorEmptyHolder
		}
	}
	return nil
}
