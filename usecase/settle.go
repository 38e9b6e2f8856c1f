package usecase

import (
	"context"
	"errors"

	"curvebond/domain/ledger"

	"go.uber.org/zap"
)

// SettleInteractor claims on behalf of holders whose claims have unlocked, so
// released reserve reaches the payout queue without a manual claim.
type SettleInteractor struct {
	bondingInteractor *BondingInteractor
	source            LedgerSource
	clock             ledger.Clock
	logger            *zap.Logger
}

func NewSettleInteractor(bondingInteractor *BondingInteractor, source LedgerSource, clock ledger.Clock, logger *zap.Logger) *SettleInteractor {
	if clock == nil {
		clock = ledger.SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettleInteractor{
		bondingInteractor: bondingInteractor,
		source:            source,
		clock:             clock,
		logger:            logger,
	}
}

// Settle returns how many holders had reserve released.
func (interactor *SettleInteractor) Settle(ctx context.Context) (int, error) {
	holders, err := interactor.source.ReleasedHolders(interactor.clock.Now())
	if err != nil {
		interactor.logger.Error("🔴 loading released holders", zap.Error(err))
		return 0, err
	}

	settled := 0
	for _, holder := range holders {
		if err := ctx.Err(); err != nil {
			return settled, err
		}

		_, err := interactor.bondingInteractor.Claim(holder)
		if errors.Is(err, ledger.ErrNothingToClaim) {
			// claimed by the holder in the meantime
			continue
		}
		if err != nil {
			interactor.logger.Warn("❌ settling", zap.String("holder", holder), zap.Error(err))
			continue
		}
		settled++
	}

	if settled > 0 {
		interactor.logger.Info("settled", zap.Int("holders", settled))
	}
	return settled, nil
}
