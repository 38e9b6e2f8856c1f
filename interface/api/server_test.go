package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"curvebond/domain"
	"curvebond/domain/curve"
	"curvebond/domain/ledger"
	"curvebond/domain/model"
	"curvebond/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memorySource struct {
	store   *ledger.MemoryStore
	payouts *fakePayouts
}

func (s memorySource) Store(holders ...string) (ledger.Store, error) {
	return payoutStore{MemoryStore: s.store, payouts: s.payouts}, nil
}

// payoutStore queues released reserve as payouts, like the Postgres snapshot.
type payoutStore struct {
	*ledger.MemoryStore
	payouts *fakePayouts
}

func (s payoutStore) Commit(cs *ledger.Changeset) error {
	if err := s.MemoryStore.Commit(cs); err != nil {
		return err
	}
	for holder, amount := range cs.Released {
		s.payouts.payouts = append(s.payouts.payouts, domain.Payout{
			Id:     int64(len(s.payouts.payouts) + 1),
			Holder: holder,
			Amount: amount,
			State:  domain.PayoutStateNew,
		})
	}
	return nil
}

type fakePayouts struct {
	payouts []domain.Payout
}

func (f *fakePayouts) Find(id int64) (*domain.Payout, error) {
	for _, p := range f.payouts {
		if p.Id == id {
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakePayouts) FindByHolder(holder string) ([]domain.Payout, error) {
	out := make([]domain.Payout, 0)
	for _, p := range f.payouts {
		if p.Holder == holder {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePayouts) FindAllTriable(maxRetry int) ([]domain.Payout, error) { return nil, nil }

func (f *fakePayouts) FindAllInterrupted(before time.Time) ([]domain.Payout, error) {
	return nil, nil
}

func (f *fakePayouts) SetRetrying(id int64, timestamp time.Time) error { return nil }

func (f *fakePayouts) SetState(id int64, state string) error { return nil }

func (f *fakePayouts) SetInterrupted(id int64, before time.Time) error { return nil }

func (f *fakePayouts) SetSuccess(id int64, timestamp time.Time) error { return nil }

type fakeMemos struct {
	memos map[string]domain.Memo
}

func (f *fakeMemos) InsertIfNotExists(key string, memo domain.Memorable) (*domain.Memo, error) {
	if _, ok := f.memos[key]; !ok {
		f.memos[key] = domain.Memo{Key: key, Memo: memo.ToJson()}
	}
	m := f.memos[key]
	return &m, nil
}

func (f *fakeMemos) Find(key string) (*domain.Memo, error) {
	m, ok := f.memos[key]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s memorySource) ReleasedHolders(now time.Time) ([]string, error) {
	return s.store.ReleasedHolders(now), nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestServer(t *testing.T) (*httptest.Server, *testClock) {
	t.Helper()
	c, err := curve.New(curve.Constant{Value: decimal.NewFromInt(10), Scale: 1}, curve.NewDecimalPlaces(6, 6))
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	logger := zaptest.NewLogger(t)
	payouts := &fakePayouts{}
	source := memorySource{store: ledger.NewMemoryStore(), payouts: payouts}
	bonding := usecase.NewBondingInteractor(c, source, clock,
		time.Hour, "ustake", model.Split{Donor: 40, Endowment: 40, Dao: 20}, logger)
	payout := usecase.NewPayoutInteractor(payouts, usecase.LogWithdrawer{Logger: logger}, 3, time.Minute, logger)
	memos := usecase.NewMemoInteractor(&fakeMemos{memos: make(map[string]domain.Memo)}, logger)
	require.NoError(t, memos.PinCurve(c, "ustake"))

	srv := httptest.NewServer(New(bonding, payout, memos, logger).Router())
	t.Cleanup(srv.Close)
	return srv, clock
}

func call(t *testing.T, srv *httptest.Server, method, path, body string, out interface{}) int {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestBondingLifecycle(t *testing.T) {
	require := require.New(t)
	srv, clock := newTestServer(t)

	var minted map[string]model.Amount
	status := call(t, srv, http.MethodPost, "/deposit", `{"sender":"alice","denom":"ustake","amount":"10000000"}`, &minted)
	require.Equal(http.StatusOK, status)
	require.Equal(model.NewAmount(10_000_000), minted["minted"])

	var claim model.Claim
	status = call(t, srv, http.MethodPost, "/sell", `{"holder":"alice","amount":"5000000"}`, &claim)
	require.Equal(http.StatusOK, status)
	require.Equal(model.NewAmount(5_000_000), claim.Amount)

	status = call(t, srv, http.MethodPost, "/transfer", `{"from":"alice","to":"bob","amount":"1000000"}`, nil)
	require.Equal(http.StatusNoContent, status)

	var holder usecase.HolderState
	status = call(t, srv, http.MethodGet, "/holders/alice", "", &holder)
	require.Equal(http.StatusOK, status)
	require.Equal(model.NewAmount(4_000_000), holder.Balance)
	require.Len(holder.Claims, 1)

	var failure errorResponse
	status = call(t, srv, http.MethodPost, "/claim", `{"holder":"alice"}`, &failure)
	require.Equal(http.StatusNotFound, status)
	require.Contains(failure.Error, "nothing to claim")

	clock.now = clock.now.Add(time.Hour)
	var released map[string]model.Amount
	status = call(t, srv, http.MethodPost, "/claim", `{"holder":"alice"}`, &released)
	require.Equal(http.StatusOK, status)
	require.Equal(model.NewAmount(5_000_000), released["released"])

	var info map[string]interface{}
	status = call(t, srv, http.MethodGet, "/curve", "", &info)
	require.Equal(http.StatusOK, status)
	require.Equal("5000000", info["supply"])
	require.Equal("5000000", info["reserve"])
	require.Equal("ustake", info["reserve_denom"])
	pinned, ok := info["pinned"].(map[string]interface{})
	require.True(ok, "pinned curve is reported")
	require.Equal("ustake", pinned["reserve_denom"])

	var history []domain.Payout
	status = call(t, srv, http.MethodGet, "/holders/alice/payouts", "", &history)
	require.Equal(http.StatusOK, status)
	require.Len(history, 1)
	require.Equal(model.NewAmount(5_000_000), history[0].Amount)
	require.Equal(domain.PayoutStateNew, history[0].State)

	var p domain.Payout
	status = call(t, srv, http.MethodGet, "/payouts/1", "", &p)
	require.Equal(http.StatusOK, status)
	require.Equal("alice", p.Holder)

	status = call(t, srv, http.MethodGet, "/payouts/9", "", &failure)
	require.Equal(http.StatusNotFound, status)
}

func TestDonorMatchEndpoint(t *testing.T) {
	require := require.New(t)
	srv, _ := newTestServer(t)

	var d ledger.Distribution
	status := call(t, srv, http.MethodPost, "/donor-match",
		`{"denom":"ustake","amount":"7","donor":"d","endowment":"e","dao":"x"}`, &d)
	require.Equal(http.StatusOK, status)
	require.Equal(ledger.Distribution{
		Minted:    model.NewAmount(7),
		Donor:     model.NewAmount(2),
		Endowment: model.NewAmount(2),
		Dao:       model.NewAmount(3),
	}, d)
}

func TestQuoteEndpoint(t *testing.T) {
	require := require.New(t)
	srv, _ := newTestServer(t)

	var q usecase.Quote
	status := call(t, srv, http.MethodGet, "/curve/quote?supply=2500000", "", &q)
	require.Equal(http.StatusOK, status)
	require.Equal(model.NewAmount(2_500_000), q.Reserve)
	require.True(q.SpotPrice.Equal(decimal.NewFromInt(1)))

	var failure errorResponse
	status = call(t, srv, http.MethodGet, "/curve/quote?supply=1.5", "", &failure)
	require.Equal(http.StatusBadRequest, status)
}

func TestErrorStatuses(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"wrong denom", "/deposit", `{"sender":"alice","denom":"uatom","amount":"10"}`, http.StatusUnauthorized},
		{"zero deposit", "/deposit", `{"sender":"alice","denom":"ustake","amount":"0"}`, http.StatusBadRequest},
		{"empty sender", "/deposit", `{"sender":"","denom":"ustake","amount":"10"}`, http.StatusBadRequest},
		{"unknown field", "/deposit", `{"sender":"alice","denom":"ustake","amount":"10","memo":"hi"}`, http.StatusBadRequest},
		{"malformed amount", "/sell", `{"holder":"alice","amount":"-3"}`, http.StatusBadRequest},
		{"insufficient balance", "/sell", `{"holder":"alice","amount":"10"}`, http.StatusBadRequest},
		{"claim with amount", "/claim", `{"holder":"alice","amount":"10"}`, http.StatusBadRequest},
		{"insufficient transfer", "/transfer", `{"from":"alice","to":"bob","amount":"10"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var failure errorResponse
			require.Equal(t, tt.status, call(t, srv, http.MethodPost, tt.path, tt.body, &failure))
			require.NotEmpty(t, failure.Error)
		})
	}

	require.Equal(t, http.StatusMethodNotAllowed, call(t, srv, http.MethodGet, "/sell", "", nil))
}
