package repository

import (
	"fmt"
	"sort"
	"time"

	"curvebond/domain"
	"curvebond/domain/ledger"
	"curvebond/domain/model"

	"github.com/behrang/sqlbatch"
	"github.com/lib/pq"
)

const (
	sqlLedgerFind = `
	select
		total_supply, total_reserve, version
	from ledger
	where id = 1
`

	sqlLedgerVersion = `
	select
		version
	from ledger
	where id = 1
`

	sqlLedgerUpdate = `
	update ledger
		set total_supply = $1, total_reserve = $2, version = version + 1
	where id = 1 and version = $3
`

	sqlBalanceFindAny = `
	select
		holder, amount
	from balances
	where holder = any($1)
`

	sqlBalanceUpsert = `
	insert into balances (
			holder, amount
		)
		values (
			$1, $2
		)
	on conflict (holder) do
		update set
			amount = $2
`

	sqlBalanceRemove = `
	delete from balances where holder = $1
`

	sqlClaimFindAny = `
	select
		holder, release_time, amount
	from claims
	where holder = any($1)
	order by release_time, id
`

	sqlClaimRemoveAll = `
	delete from claims where holder = $1
`

	sqlClaimInsert = `
	insert into claims (
			holder, release_time, amount
		)
		values (
			$1, $2, $3
		)
`

	sqlClaimFindReleasedHolders = `
	select distinct
		holder
	from claims
	where release_time <= $1
	order by holder
`
)

var (
	ErrorLedgerNotFound  = fmt.Errorf("ledger row not found, run 'migrate' first")
	ErrorHolderNotLoaded = fmt.Errorf("holder was not loaded into the snapshot")
)

type LedgerRepository struct {
	batchHandler BatchHandler
	now          func() time.Time
}

func NewLedgerRepository(db BatchHandler) *LedgerRepository {
	return &LedgerRepository{batchHandler: db, now: time.Now}
}

type ledgerRow struct {
	supply  model.Amount
	reserve model.Amount
	version int64
}

func readLedgerRow(scan func(...interface{}) error) (interface{}, error) {
	r := ledgerRow{}
	err := scan(&r.supply, &r.reserve, &r.version)
	return &r, err
}

func readVersion(scan func(...interface{}) error) (interface{}, error) {
	var version int64
	err := scan(&version)
	return version, err
}

func readAllBalances(all interface{}, scan func(...interface{}) error) (interface{}, error) {
	var holder string
	var amount model.Amount
	err := scan(&holder, &amount)

	balances := all.(map[string]model.Amount)
	if err == nil {
		balances[holder] = amount
	}
	return balances, err
}

func readAllClaims(all interface{}, scan func(...interface{}) error) (interface{}, error) {
	var holder string
	var c model.Claim
	err := scan(&holder, &c.ReleaseAt, &c.Amount)

	claims := all.(map[string][]model.Claim)
	if err == nil {
		claims[holder] = append(claims[holder], c)
	}
	return claims, err
}

func readAllHolders(all interface{}, scan func(...interface{}) error) (interface{}, error) {
	var holder string
	err := scan(&holder)

	list := all.([]string)
	list = append(list, holder)
	return list, err
}

// Snapshot reads the totals plus the balances and claims of the given holders.
// Every holder an operation touches has to be listed.
func (repo *LedgerRepository) Snapshot(holders ...string) (*LedgerSnapshot, error) {
	loaded := make(map[string]bool, len(holders))
	list := make([]string, 0, len(holders))
	for _, h := range holders {
		if !loaded[h] {
			loaded[h] = true
			list = append(list, h)
		}
	}

	results, err := repo.batchHandler.Batch(&BatchOptionSnapshot, []sqlbatch.Command{
		{
			Query:   sqlLedgerFind,
			ReadOne: readLedgerRow,
		},
		{
			Query:   sqlBalanceFindAny,
			Args:    []interface{}{pq.Array(list)},
			Init:    make(map[string]model.Amount),
			ReadAll: readAllBalances,
		},
		{
			Query:   sqlClaimFindAny,
			Args:    []interface{}{pq.Array(list)},
			Init:    make(map[string][]model.Claim),
			ReadAll: readAllClaims,
		},
	})
	if err != nil {
		return nil, err
	}

	row, _ := results[0].(*ledgerRow)
	if row == nil {
		return nil, ErrorLedgerNotFound
	}
	balances, _ := results[1].(map[string]model.Amount)
	claims, _ := results[2].(map[string][]model.Claim)
	if balances == nil {
		balances = make(map[string]model.Amount)
	}
	if claims == nil {
		claims = make(map[string][]model.Claim)
	}

	return &LedgerSnapshot{
		repo:     repo,
		version:  row.version,
		supply:   row.supply,
		reserve:  row.reserve,
		balances: balances,
		claims:   claims,
		loaded:   loaded,
	}, nil
}

// Store is Snapshot typed as a ledger.Store.
func (repo *LedgerRepository) Store(holders ...string) (ledger.Store, error) {
	s, err := repo.Snapshot(holders...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (repo *LedgerRepository) Version() (int64, error) {
	results, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:   sqlLedgerVersion,
			ReadOne: readVersion,
		},
	})
	if err != nil {
		return 0, err
	}
	version, _ := results[0].(int64)
	return version, nil
}

// ReleasedHolders lists holders owning at least one claim released at now.
func (repo *LedgerRepository) ReleasedHolders(now time.Time) ([]string, error) {
	results, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query:   sqlClaimFindReleasedHolders,
			Args:    []interface{}{now},
			Init:    make([]string, 0),
			ReadAll: readAllHolders,
		},
	})
	if err != nil {
		return nil, err
	}
	result, _ := results[0].([]string)
	return result, nil
}

// LedgerSnapshot is a ledger.Store over the rows read by Snapshot. Commit
// writes the changeset in one transaction and fails with
// domain.ErrorStaleLedger when another writer committed in between.
type LedgerSnapshot struct {
	repo     *LedgerRepository
	version  int64
	supply   model.Amount
	reserve  model.Amount
	balances map[string]model.Amount
	claims   map[string][]model.Claim
	loaded   map[string]bool
}

var _ ledger.Store = (*LedgerSnapshot)(nil)

func (s *LedgerSnapshot) Version() int64 {
	return s.version
}

func (s *LedgerSnapshot) TotalSupply() model.Amount {
	return s.supply
}

func (s *LedgerSnapshot) TotalReserve() model.Amount {
	return s.reserve
}

func (s *LedgerSnapshot) Balance(holder string) model.Amount {
	return s.balances[holder]
}

func (s *LedgerSnapshot) Claims(holder string) []model.Claim {
	out := make([]model.Claim, len(s.claims[holder]))
	copy(out, s.claims[holder])
	return out
}

func (s *LedgerSnapshot) Commit(cs *ledger.Changeset) error {
	for _, holders := range [][]string{keys(cs.Balances), keys(cs.Claims), keys(cs.Released)} {
		for _, h := range holders {
			if !s.loaded[h] {
				return fmt.Errorf("%w: %q", ErrorHolderNotLoaded, h)
			}
		}
	}

	commands := []sqlbatch.Command{
		{
			Query:  sqlLedgerUpdate,
			Args:   []interface{}{cs.TotalSupply, cs.TotalReserve, s.version},
			Affect: 1,
		},
	}

	for _, holder := range keys(cs.Balances) {
		balance := cs.Balances[holder]
		if balance.IsZero() {
			commands = append(commands, sqlbatch.Command{
				Query: sqlBalanceRemove,
				Args:  []interface{}{holder},
			})
			continue
		}
		commands = append(commands, sqlbatch.Command{
			Query:  sqlBalanceUpsert,
			Args:   []interface{}{holder, balance},
			Affect: 1,
		})
	}

	for _, holder := range keys(cs.Claims) {
		commands = append(commands, sqlbatch.Command{
			Query: sqlClaimRemoveAll,
			Args:  []interface{}{holder},
		})
		for _, c := range cs.Claims[holder] {
			commands = append(commands, sqlbatch.Command{
				Query:  sqlClaimInsert,
				Args:   []interface{}{holder, c.ReleaseAt, c.Amount},
				Affect: 1,
			})
		}
	}

	now := s.repo.now()
	for _, holder := range keys(cs.Released) {
		commands = append(commands, sqlbatch.Command{
			Query:  sqlPayoutInsert,
			Args:   []interface{}{holder, cs.Released[holder], now},
			Affect: 1,
		})
	}

	if _, err := s.repo.batchHandler.Batch(&BatchOptionNormal, commands); err != nil {
		if version, verr := s.repo.Version(); verr == nil && version != s.version {
			return fmt.Errorf("%w: read at version %d, now at %d", domain.ErrorStaleLedger, s.version, version)
		}
		return err
	}

	s.apply(cs)
	return nil
}

func (s *LedgerSnapshot) apply(cs *ledger.Changeset) {
	s.version++
	s.supply = cs.TotalSupply
	s.reserve = cs.TotalReserve
	for holder, balance := range cs.Balances {
		if balance.IsZero() {
			delete(s.balances, holder)
		} else {
			s.balances[holder] = balance
		}
	}
	for holder, claims := range cs.Claims {
		if len(claims) == 0 {
			delete(s.claims, holder)
		} else {
			s.claims[holder] = claims
		}
	}
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
