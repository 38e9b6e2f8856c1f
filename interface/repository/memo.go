package repository

import (
	"curvebond/domain"

	"github.com/behrang/sqlbatch"
)

const (
	sqlMemoInsertIfNotExists = `
	insert into memos (
			key, memo
		)
		values (
			$1, $2::jsonb
		)
	on conflict (key) do nothing
`

	sqlMemoFind = `
	select
		key, memo
	from memos
	where key = $1
`
)

type MemoRepository struct {
	batchHandler BatchHandler
}

func NewMemoRepository(db BatchHandler) *MemoRepository {
	return &MemoRepository{batchHandler: db}
}

func readMemo(scan func(...interface{}) error) (interface{}, error) {
	r := domain.Memo{}
	var jstr []byte
	err := scan(
		&r.Key, &jstr,
	)
	if err != nil {
		return &r, err
	}
	r.Memo = string(jstr)
	return &r, nil
}

// InsertIfNotExists keeps an existing memo and returns whichever is stored.
func (repo *MemoRepository) InsertIfNotExists(key string, memo domain.Memorable) (*domain.Memo, error) {
	jstr := memo.ToJson()
	results, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query: sqlMemoInsertIfNotExists,
			Args: []interface{}{
				key, jstr,
			},
		},
		{
			Query:   sqlMemoFind,
			Args:    []interface{}{key},
			ReadOne: readMemo,
		},
	})
	if err != nil {
		return nil, err
	}
	result, _ := results[1].(*domain.Memo)
	return result, nil
}

func (repo *MemoRepository) Find(key string) (*domain.Memo, error) {
	results, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:   sqlMemoFind,
			Args:    []interface{}{key},
			ReadOne: readMemo,
		},
	})
	if err != nil {
		return nil, err
	}
	result, _ := results[0].(*domain.Memo)
	return result, nil
}
