package usecase

import (
	"fmt"

	"curvebond/domain"
	"curvebond/domain/curve"

	"go.uber.org/zap"
)

const (
	CurveMemoKey = "curve"
)

type MemoRepository interface {
	InsertIfNotExists(key string, memo domain.Memorable) (*domain.Memo, error)
	Find(key string) (*domain.Memo, error)
}

type MemoInteractor struct {
	memoRepository MemoRepository
	logger         *zap.Logger
}

func NewMemoInteractor(memoRepository MemoRepository, logger *zap.Logger) *MemoInteractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	interactor := &MemoInteractor{
		memoRepository: memoRepository,
		logger:         logger,
	}
	return interactor
}

// PinCurve records the configured curve on the first start and refuses any
// later start whose curve or reserve denom differs from the recorded one.
func (interactor *MemoInteractor) PinCurve(c *curve.Curve, reserveDenom string) error {
	configured := domain.NewCurveMemo(c, reserveDenom)

	memo, err := interactor.memoRepository.InsertIfNotExists(CurveMemoKey, configured)
	if err != nil {
		interactor.logger.Error("🔴 pinning curve", zap.Error(err))
		return err
	}
	if memo == nil {
		return fmt.Errorf("curve memo is missing after insert")
	}

	var pinned domain.CurveMemo
	if err := pinned.FromJson(memo.Memo); err != nil {
		return fmt.Errorf("decoding pinned curve: %w", err)
	}
	if !pinned.Matches(configured) {
		return fmt.Errorf("%w: pinned %v, configured %v", domain.ErrorCurveChanged, memo.Memo, configured.ToJson())
	}

	interactor.logger.Info("📌 curve pinned", zap.String("curve", memo.Memo))
	return nil
}

func (interactor *MemoInteractor) GetPinnedCurve() (*domain.CurveMemo, error) {
	memo, err := interactor.memoRepository.Find(CurveMemoKey)
	if err != nil || memo == nil {
		return nil, err
	}

	var pinned domain.CurveMemo
	if err := pinned.FromJson(memo.Memo); err != nil {
		return nil, err
	}
	return &pinned, nil
}
