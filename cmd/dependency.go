package cmd

import (
	"database/sql"
	"log"
	"time"

	"curvebond/domain/config"
	"curvebond/domain/ledger"
	"curvebond/infrastructure/dbhandler"
	"curvebond/interface/repository"
	"curvebond/usecase"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		log.Fatalf("Unable to build logger - %v\n", err.Error())
	}
	return l
}

func openDatabase() {
	var err error
	dbURI := config.GetDbUri()
	dbPool, err = sql.Open("postgres", dbURI)
	if err != nil {
		logger.Fatal("Unable to open database", zap.Error(err))
	}
	dbPool.SetMaxOpenConns(20)
	dbPool.SetMaxIdleConns(5)
	dbPool.SetConnMaxIdleTime(1 * time.Minute)
	dbPool.SetConnMaxLifetime(4 * time.Hour)

	dbHandler = dbhandler.New(dbPool, logger)
}

func defaultDependencyInject() {
	logger = newLogger(config.GetLogLevel())
	openDatabase()

	ledgerRepository := repository.NewLedgerRepository(dbHandler)
	payoutRepository := repository.NewPayoutRepository(dbHandler)
	memoRepository := repository.NewMemoRepository(dbHandler)

	withdrawer := usecase.LogWithdrawer{
		Denom:  config.GetReserveDenom(),
		Places: config.GetDecimalPlaces().Reserve,
		Logger: logger,
	}

	memoInteractor = usecase.NewMemoInteractor(memoRepository, logger)
	bondingInteractor = usecase.NewBondingInteractor(config.GetCurve(), ledgerRepository, ledger.SystemClock,
		config.GetUnbondingPeriod(), config.GetReserveDenom(), config.GetDonorMatchSplit(), logger)
	settleInteractor = usecase.NewSettleInteractor(bondingInteractor, ledgerRepository, ledger.SystemClock, logger)
	payoutInteractor = usecase.NewPayoutInteractor(payoutRepository, withdrawer,
		config.GetMaxRetry(), config.GetPayoutTimeout(), logger)
}

var logger *zap.Logger = zap.NewNop()
var dbPool *sql.DB
var dbHandler dbhandler.DBHandler
var memoInteractor *usecase.MemoInteractor
var bondingInteractor *usecase.BondingInteractor
var settleInteractor *usecase.SettleInteractor
var payoutInteractor *usecase.PayoutInteractor
