package repository

import (
	"time"

	"curvebond/domain"

	"github.com/behrang/sqlbatch"
)

const (
	sqlPayoutColumns = `id, holder, amount, state, retried, create_time, retry_time, success_time`

	sqlPayoutInsert = `
	insert into payouts (
			holder, amount, state, retried, create_time, retry_time, success_time
		)
		values (
			$1, $2, 'new', 0, $3, null, null
		)
`

	sqlPayoutFind = `
	select
		` + sqlPayoutColumns + `
	from payouts
	where id = $1
`

	sqlPayoutFindByHolder = `
	select
		` + sqlPayoutColumns + `
	from payouts
	where holder = $1
	order by id
`

	sqlPayoutFindAllTriable = `
	select
		` + sqlPayoutColumns + `
	from payouts
	where state in ('new', 'error') and retried < $1
	order by id
`

	sqlPayoutFindAllInterrupted = `
	select
		` + sqlPayoutColumns + `
	from payouts
	where state = 'inprogress' and retry_time < $1
	order by id
`

	sqlPayoutSetState = `
	update payouts
		set state = $2
	where id = $1
`

	sqlPayoutSetRetrying = `
	update payouts
		set retried = retried + 1, retry_time = $2, state = 'inprogress'
	where id = $1
`

	sqlPayoutSetInterrupted = `
	update payouts
		set state = 'error'
	where id = $1 and state = 'inprogress' and retry_time < $2
`

	sqlPayoutSetSucess = `
	update payouts
		set success_time = $2, state = 'done'
	where id = $1
`
)

type PayoutRepository struct {
	batchHandler BatchHandler
}

func NewPayoutRepository(db BatchHandler) *PayoutRepository {
	return &PayoutRepository{batchHandler: db}
}

func scanPayout(r *domain.Payout, scan func(...interface{}) error) error {
	return scan(
		&r.Id, &r.Holder, &r.Amount, &r.State, &r.Retried, &r.CreateTime, &r.RetryTime, &r.SuccessTime,
	)
}

func readPayout(scan func(...interface{}) error) (interface{}, error) {
	r := domain.Payout{}
	err := scanPayout(&r, scan)
	return &r, err
}

func readAllPayouts(all interface{}, scan func(...interface{}) error) (interface{}, error) {
	r := domain.Payout{}
	err := scanPayout(&r, scan)

	list := all.([]domain.Payout)
	list = append(list, r)
	return list, err
}

func (repo *PayoutRepository) Find(id int64) (*domain.Payout, error) {
	results, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:   sqlPayoutFind,
			Args:    []interface{}{id},
			ReadOne: readPayout,
		},
	})
	if err != nil {
		return nil, err
	}
	result, _ := results[0].(*domain.Payout)
	return result, nil
}

func (repo *PayoutRepository) FindByHolder(holder string) ([]domain.Payout, error) {
	results, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:   sqlPayoutFindByHolder,
			Args:    []interface{}{holder},
			Init:    make([]domain.Payout, 0),
			ReadAll: readAllPayouts,
		},
	})
	if err != nil {
		return nil, err
	}
	result, _ := results[0].([]domain.Payout)
	return result, nil
}

func (repo *PayoutRepository) FindAllTriable(maxRetry int) ([]domain.Payout, error) {
	results, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:   sqlPayoutFindAllTriable,
			Args:    []interface{}{maxRetry},
			Init:    make([]domain.Payout, 0),
			ReadAll: readAllPayouts,
		},
	})
	if err != nil {
		return nil, err
	}
	result, _ := results[0].([]domain.Payout)
	return result, nil
}

// FindAllInterrupted lists payouts that went in progress before the given time
// and never finished, e.g. because the process died while sending them.
func (repo *PayoutRepository) FindAllInterrupted(before time.Time) ([]domain.Payout, error) {
	results, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:   sqlPayoutFindAllInterrupted,
			Args:    []interface{}{before},
			Init:    make([]domain.Payout, 0),
			ReadAll: readAllPayouts,
		},
	})
	if err != nil {
		return nil, err
	}
	result, _ := results[0].([]domain.Payout)
	return result, nil
}

func (repo *PayoutRepository) SetState(id int64, state string) error {
	_, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:  sqlPayoutSetState,
			Args:   []interface{}{id, state},
			Affect: 1,
		},
	})
	return err
}

func (repo *PayoutRepository) SetRetrying(id int64, timestamp time.Time) error {
	_, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:  sqlPayoutSetRetrying,
			Args:   []interface{}{id, timestamp},
			Affect: 1,
		},
	})
	return err
}

// SetInterrupted hands an interrupted payout back to the retry loop. A payout
// that finished or restarted since it was listed is left alone.
func (repo *PayoutRepository) SetInterrupted(id int64, before time.Time) error {
	_, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query: sqlPayoutSetInterrupted,
			Args:  []interface{}{id, before},
		},
	})
	return err
}

func (repo *PayoutRepository) SetSuccess(id int64, timestamp time.Time) error {
	_, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:  sqlPayoutSetSucess,
			Args:   []interface{}{id, timestamp},
			Affect: 1,
		},
	})
	return err
}
