package ledger

import (
	"sort"
	"sync"
	"time"

	"curvebond/domain/model"
)

// State is the read side of the ledger aggregate.
type State interface {
	TotalSupply() model.Amount
	TotalReserve() model.Amount
	Balance(holder string) model.Amount
	Claims(holder string) []model.Claim
}

// Store is a State that can atomically apply a Changeset.
type Store interface {
	State
	Commit(cs *Changeset) error
}

// Changeset carries the new values of everything one ledger operation touched.
// Balances and claim lists are complete replacements for the listed holders; a
// zero balance or an empty claim list means the entry is removed.
type Changeset struct {
	TotalSupply  model.Amount
	TotalReserve model.Amount
	Balances     map[string]model.Amount
	Claims       map[string][]model.Claim
	// Released holds, per holder, the reserve released by a claim.
	Released map[string]model.Amount
}

// view buffers writes over a State. Nothing reaches the store until the
// operation passed every check and the changeset is committed.
type view struct {
	state State
	cs    *Changeset
}

func newView(state State) *view {
	return &view{
		state: state,
		cs: &Changeset{
			TotalSupply:  state.TotalSupply(),
			TotalReserve: state.TotalReserve(),
			Balances:     make(map[string]model.Amount),
			Claims:       make(map[string][]model.Claim),
			Released:     make(map[string]model.Amount),
		},
	}
}

func (v *view) balance(holder string) model.Amount {
	if b, ok := v.cs.Balances[holder]; ok {
		return b
	}
	return v.state.Balance(holder)
}

func (v *view) setBalance(holder string, amount model.Amount) {
	v.cs.Balances[holder] = amount
}

func (v *view) claims(holder string) []model.Claim {
	src, ok := v.cs.Claims[holder]
	if !ok {
		src = v.state.Claims(holder)
	}
	out := make([]model.Claim, len(src))
	copy(out, src)
	return out
}

func (v *view) setClaims(holder string, claims []model.Claim) {
	v.cs.Claims[holder] = claims
}

// MemoryStore keeps the whole ledger in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	supply   model.Amount
	reserve  model.Amount
	balances map[string]model.Amount
	claims   map[string][]model.Claim
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]model.Amount),
		claims:   make(map[string][]model.Claim),
	}
}

func (s *MemoryStore) TotalSupply() model.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.supply
}

func (s *MemoryStore) TotalReserve() model.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reserve
}

func (s *MemoryStore) Balance(holder string) model.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[holder]
}

func (s *MemoryStore) Claims(holder string) []model.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Claim, len(s.claims[holder]))
	copy(out, s.claims[holder])
	return out
}

func (s *MemoryStore) Commit(cs *Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

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
	return nil
}

// Holders lists every holder with a non-zero balance, sorted.
func (s *MemoryStore) Holders() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	holders := make([]string, 0, len(s.balances))
	for h := range s.balances {
		holders = append(holders, h)
	}
	sort.Strings(holders)
	return holders
}

// ReleasedHolders lists the holders with at least one claim released at now.
func (s *MemoryStore) ReleasedHolders(now time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	holders := make([]string, 0)
	for h, claims := range s.claims {
		for _, c := range claims {
			if c.IsReleased(now) {
				holders = append(holders, h)
				break
			}
		}
	}
	sort.Strings(holders)
	return holders
}
