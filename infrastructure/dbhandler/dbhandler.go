package dbhandler

import (
	"context"
	_ "embed"
	"errors"

	"database/sql"

	"github.com/behrang/sqlbatch"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

// DBHandler contains a connection to database.
type DBHandler struct {
	DB     *sql.DB
	Logger *zap.Logger
}

func New(db *sql.DB, logger *zap.Logger) DBHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return DBHandler{DB: db, Logger: logger}
}

// Batch creates a transaction and executes the batch of commands in that transaction.
// If a retryable error is received, the batch is retried.
func (handler DBHandler) Batch(opts *sql.TxOptions, commands []sqlbatch.Command) ([]interface{}, error) {

	for {
		results, err := handler.tryBatch(opts, commands)
		if IsRetryable(err) {
			handler.logger().Warn("🟡 Retryable Postgres error, retrying", zap.Error(err))
			continue
		}
		return results, err
	}
}

func (handler DBHandler) tryBatch(opts *sql.TxOptions, commands []sqlbatch.Command) (results []interface{}, err error) {

	results = make([]interface{}, len(commands))

	tx, err := handler.DB.BeginTx(context.Background(), opts)
	if err != nil {
		return
	}
	defer tx.Rollback()

	results, err = sqlbatch.Batch(tx, commands)

	if err == nil {
		err = tx.Commit()
	}

	return
}

// Migrate creates the tables and the single ledger row if they do not exist.
func (handler DBHandler) Migrate(ctx context.Context) error {
	_, err := handler.DB.ExecContext(ctx, schema)
	if err != nil {
		handler.logger().Error("🔴 applying schema", zap.Error(err))
		return err
	}
	handler.logger().Info("schema applied")
	return nil
}

func (handler DBHandler) logger() *zap.Logger {
	if handler.Logger == nil {
		return zap.NewNop()
	}
	return handler.Logger
}

// IsRetryable reports a Postgres serialization failure.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "40001"
}
