package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"curvebond/domain"
	"curvebond/domain/curve"
	"curvebond/domain/ledger"
	"curvebond/domain/model"
	"curvebond/usecase"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

type Server struct {
	bonding *usecase.BondingInteractor
	payouts *usecase.PayoutInteractor
	memos   *usecase.MemoInteractor
	router  *mux.Router
	logger  *zap.Logger
}

func New(bonding *usecase.BondingInteractor,
	payouts *usecase.PayoutInteractor,
	memos *usecase.MemoInteractor,
	logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		bonding: bonding,
		payouts: payouts,
		memos:   memos,
		router:  mux.NewRouter(),
		logger:  logger,
	}
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	s.router.HandleFunc("/curve", s.handleCurve).Methods(http.MethodGet)
	s.router.HandleFunc("/curve/quote", s.handleQuote).Methods(http.MethodGet)
	s.router.HandleFunc("/holders/{holder}", s.handleHolder).Methods(http.MethodGet)
	s.router.HandleFunc("/holders/{holder}/payouts", s.handleHolderPayouts).Methods(http.MethodGet)
	s.router.HandleFunc("/payouts/{id:[0-9]+}", s.handlePayout).Methods(http.MethodGet)

	s.router.HandleFunc("/deposit", s.handleDeposit).Methods(http.MethodPost)
	s.router.HandleFunc("/donor-match", s.handleDonorMatch).Methods(http.MethodPost)
	s.router.HandleFunc("/sell", s.handleSell).Methods(http.MethodPost)
	s.router.HandleFunc("/claim", s.handleClaim).Methods(http.MethodPost)
	s.router.HandleFunc("/transfer", s.handleTransfer).Methods(http.MethodPost)
	return s
}

func (s *Server) Router() *mux.Router { return s.router }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

type curveResponse struct {
	Params       curve.Params        `json:"params"`
	Places       curve.DecimalPlaces `json:"places"`
	ReserveDenom string              `json:"reserve_denom"`
	Pinned       *domain.CurveMemo   `json:"pinned,omitempty"`
	*usecase.Totals
}

type claimRequest struct {
	Holder string `json:"holder"`
}

type holderRequest struct {
	Holder string       `json:"holder"`
	Amount model.Amount `json:"amount"`
}

type donorMatchRequest struct {
	Denom  string       `json:"denom"`
	Amount model.Amount `json:"amount"`
	ledger.Recipients
}

type transferRequest struct {
	From   string       `json:"from"`
	To     string       `json:"to"`
	Amount model.Amount `json:"amount"`
}

func (s *Server) handleCurve(w http.ResponseWriter, r *http.Request) {
	totals, err := s.bonding.Totals()
	if err != nil {
		s.writeError(w, err)
		return
	}
	pinned, err := s.memos.GetPinnedCurve()
	if err != nil {
		s.writeError(w, err)
		return
	}
	c := s.bonding.Curve()
	s.writeJSON(w, http.StatusOK, curveResponse{
		Params:       curve.ParamsOf(c.Shape()),
		Places:       c.Places(),
		ReserveDenom: s.bonding.ReserveDenom(),
		Pinned:       pinned,
		Totals:       totals,
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	supply, err := model.ParseAmount(r.URL.Query().Get("supply"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	quote, err := s.bonding.Quote(supply)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleHolder(w http.ResponseWriter, r *http.Request) {
	state, err := s.bonding.Balance(mux.Vars(r)["holder"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleHolderPayouts(w http.ResponseWriter, r *http.Request) {
	payouts, err := s.payouts.History(mux.Vars(r)["holder"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, payouts)
}

func (s *Server) handlePayout(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payout id"})
		return
	}
	payout, err := s.payouts.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, payout)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req usecase.Deposit
	if !s.decode(w, r, &req) {
		return
	}
	minted, err := s.bonding.Deposit(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]model.Amount{"minted": minted})
}

func (s *Server) handleDonorMatch(w http.ResponseWriter, r *http.Request) {
	var req donorMatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := s.bonding.DonorMatch(req.Denom, req.Amount, req.Recipients)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req holderRequest
	if !s.decode(w, r, &req) {
		return
	}
	claim, err := s.bonding.Sell(req.Holder, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, claim)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !s.decode(w, r, &req) {
		return
	}
	released, err := s.bonding.Claim(req.Holder)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]model.Amount{"released": released})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.bonding.Transfer(req.From, req.To, req.Amount); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		Time   string `json:"time"`
	}{"ok", time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("🔴 request failed", zap.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrNothingToClaim),
		errors.Is(err, domain.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrorStaleLedger):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidZeroAmount),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, model.ErrInvalidAmount),
		errors.Is(err, model.ErrInvalidSplit),
		errors.Is(err, model.ErrArithmeticOverflow),
		errors.Is(err, model.ErrArithmeticUnderflow),
		errors.Is(err, domain.ErrorEmptyHolder):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("writing response", zap.Error(err))
	}
}
