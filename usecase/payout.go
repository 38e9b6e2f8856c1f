package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"curvebond/domain"
	"curvebond/domain/util"
	"curvebond/interface/exporter"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	payoutConcurrency = 4
)

type PayoutRepository interface {
	Find(id int64) (*domain.Payout, error)
	FindByHolder(holder string) ([]domain.Payout, error)
	FindAllTriable(maxRetry int) ([]domain.Payout, error)
	FindAllInterrupted(before time.Time) ([]domain.Payout, error)
	SetRetrying(id int64, timestamp time.Time) error
	SetState(id int64, state string) error
	SetInterrupted(id int64, before time.Time) error
	SetSuccess(id int64, timestamp time.Time) error
}

// Withdrawer moves released reserve to its holder.
type Withdrawer interface {
	Withdraw(ctx context.Context, payout domain.Payout) error
}

// Verifier is implemented by withdrawers that can tell whether an interrupted
// payout reached its holder anyway.
type Verifier interface {
	Delivered(ctx context.Context, payout domain.Payout) (bool, error)
}

// LogWithdrawer only records the payout. It stands in wherever the host moves
// the reserve tokens itself.
type LogWithdrawer struct {
	Denom  string
	Places uint32
	Logger *zap.Logger
}

func (w LogWithdrawer) Withdraw(ctx context.Context, payout domain.Payout) error {
	w.Logger.Info("💸 payout",
		zap.Int64("id", payout.Id),
		zap.String("holder", payout.Holder),
		zap.String("amount", util.HumanAmount(payout.Amount, w.Places, w.Denom)))
	return nil
}

type PayoutInteractor struct {
	payoutRepository PayoutRepository
	withdrawer       Withdrawer
	maxRetry         int
	timeout          time.Duration
	now              func() time.Time
	logger           *zap.Logger
}

func NewPayoutInteractor(payoutRepository PayoutRepository,
	withdrawer Withdrawer,
	maxRetry int,
	timeout time.Duration,
	logger *zap.Logger) *PayoutInteractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PayoutInteractor{
		payoutRepository: payoutRepository,
		withdrawer:       withdrawer,
		maxRetry:         maxRetry,
		timeout:          timeout,
		now:              time.Now,
		logger:           logger,
	}
}

// Send hands every triable payout to the withdrawer and returns how many went
// through. A failed payout is marked as error and retried on a later run
// until maxRetry is reached.
func (interactor *PayoutInteractor) Send(ctx context.Context) (int, error) {
	payouts, err := interactor.payoutRepository.FindAllTriable(interactor.maxRetry)
	if err != nil {
		interactor.logger.Error("🔴 loading payouts", zap.Error(err))
		return 0, err
	}

	var sent atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(payoutConcurrency)
	for _, payout := range payouts {
		payout := payout
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if interactor.send(gctx, payout) {
				sent.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	return int(sent.Load()), ctx.Err()
}

func (interactor *PayoutInteractor) send(ctx context.Context, payout domain.Payout) bool {
	log := interactor.logger.With(zap.Int64("payout", payout.Id), zap.String("holder", payout.Holder))

	if err := interactor.payoutRepository.SetRetrying(payout.Id, interactor.now()); err != nil {
		log.Error("🔴 marking payout in progress", zap.Error(err))
		return false
	}

	if err := interactor.withdrawer.Withdraw(ctx, payout); err != nil {
		exporter.IncErrorCount()
		log.Warn("❌ payout failed", zap.Int("retried", payout.Retried+1), zap.Error(err))
		if err := interactor.payoutRepository.SetState(payout.Id, domain.PayoutStateError); err != nil {
			log.Error("🔴 marking payout failed", zap.Error(err))
		}
		return false
	}

	if err := interactor.payoutRepository.SetSuccess(payout.Id, interactor.now()); err != nil {
		log.Error("🔴 marking payout done", zap.Error(err))
		return false
	}
	exporter.IncPayoutCount()
	return true
}

// Recover finds payouts that stayed in progress longer than the timeout,
// which happens when the process stops between marking and finishing them.
// Delivered ones are marked done, the rest go back to the retry loop.
func (interactor *PayoutInteractor) Recover(ctx context.Context) (int, error) {
	before := interactor.now().Add(-interactor.timeout)
	payouts, err := interactor.payoutRepository.FindAllInterrupted(before)
	if err != nil {
		exporter.IncErrorCount()
		interactor.logger.Error("🔴 loading interrupted payouts", zap.Error(err))
		return 0, err
	}

	verifier, canVerify := interactor.withdrawer.(Verifier)
	recovered := 0
	for _, payout := range payouts {
		if err := ctx.Err(); err != nil {
			return recovered, err
		}
		log := interactor.logger.With(zap.Int64("payout", payout.Id), zap.String("holder", payout.Holder))

		if canVerify {
			delivered, err := verifier.Delivered(ctx, payout)
			if err != nil {
				exporter.IncErrorCount()
				log.Warn("❌ verifying interrupted payout", zap.Error(err))
				continue
			}
			if delivered {
				if err := interactor.payoutRepository.SetSuccess(payout.Id, interactor.now()); err != nil {
					log.Error("🔴 marking payout done", zap.Error(err))
					continue
				}
				exporter.IncPayoutCount()
				log.Info("✅ interrupted payout was delivered")
				recovered++
				continue
			}
		}

		if err := interactor.payoutRepository.SetInterrupted(payout.Id, before); err != nil {
			log.Error("🔴 releasing interrupted payout", zap.Error(err))
			continue
		}
		log.Warn("🟡 interrupted payout is back in the retry queue", zap.Int("retried", payout.Retried))
		recovered++
	}
	return recovered, nil
}

// History lists every payout of the holder, oldest first.
func (interactor *PayoutInteractor) History(holder string) ([]domain.Payout, error) {
	if err := checkHolders(holder); err != nil {
		return nil, err
	}
	return interactor.payoutRepository.FindByHolder(holder)
}

func (interactor *PayoutInteractor) Get(id int64) (*domain.Payout, error) {
	payout, err := interactor.payoutRepository.Find(id)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, fmt.Errorf("%w: payout %d", domain.ErrorNotFound, id)
	}
	return payout, nil
}
