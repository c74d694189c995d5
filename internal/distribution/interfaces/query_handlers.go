package interfaces

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"rewardpool/internal/commitment"
	distribution "rewardpool/internal/distribution/domain"
	ledger "rewardpool/internal/ledger/domain"
)

const (
	defaultEntriesLimit = 100
	defaultPeriodsLimit = 30
	maxPeriodsLimit     = 366
)

// PeriodReader reads period states.
type PeriodReader interface {
	Get(ctx context.Context, key distribution.PeriodKey) (*distribution.PeriodState, error)
	ListRecent(ctx context.Context, limit int) ([]distribution.PeriodState, error)
}

// QueryHandler serves read-only period, proof and account endpoints.
type QueryHandler struct {
	periods       PeriodReader
	distributions distribution.DistributionRepository
	ledger        ledger.Ledger
	logger        *zap.Logger
}

// NewQueryHandler constructs a QueryHandler.
func NewQueryHandler(periods PeriodReader, distributions distribution.DistributionRepository, l ledger.Ledger, logger *zap.Logger) (*QueryHandler, error) {
	if periods == nil {
		return nil, errors.New("query handler: nil period reader")
	}
	if distributions == nil {
		return nil, errors.New("query handler: nil distribution repository")
	}
	if l == nil {
		return nil, errors.New("query handler: nil ledger")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{periods: periods, distributions: distributions, ledger: l, logger: logger}, nil
}

type periodResponse struct {
	Period            string  `json:"period"`
	Committed         bool    `json:"committed"`
	GrossPool         float64 `json:"gross_pool"`
	ReferencePrice    float64 `json:"reference_price"`
	PriceSource       string  `json:"price_source,omitempty"`
	TotalCapacity     float64 `json:"total_capacity"`
	NetworkCapacity   float64 `json:"network_capacity"`
	EntitiesProcessed int     `json:"entities_processed"`
	TotalDistributed  string  `json:"total_distributed"`
	Root              *string `json:"root"`
	CompletedAt       string  `json:"completed_at,omitempty"`
}

// HandlePeriod serves GET /api/v1/periods/{period}.
func (h *QueryHandler) HandlePeriod(w http.ResponseWriter, r *http.Request) {
	_, state, ok := h.loadPeriod(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPeriodResponse(state))
}

// HandlePeriods serves GET /api/v1/periods?limit=N, newest first.
func (h *QueryHandler) HandlePeriods(w http.ResponseWriter, r *http.Request) {
	limit := defaultPeriodsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(parsed, maxPeriodsLimit)
	}
	states, err := h.periods.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list periods failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query periods error")
		return
	}
	out := make([]periodResponse, 0, len(states))
	for i := range states {
		out = append(out, toPeriodResponse(&states[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"periods": out})
}

func toPeriodResponse(state *distribution.PeriodState) periodResponse {
	resp := periodResponse{
		Period:            state.Key.String(),
		Committed:         state.Committed(),
		GrossPool:         state.GrossPool,
		ReferencePrice:    state.ReferencePrice,
		PriceSource:       string(state.PriceSource),
		TotalCapacity:     state.TotalCapacity,
		NetworkCapacity:   state.NetworkCapacity,
		EntitiesProcessed: state.EntitiesProcessed,
		TotalDistributed:  state.TotalDistributed.StringFixed(distribution.AmountPrecision),
	}
	if state.HasRoot() {
		root := state.Root
		resp.Root = &root
	}
	if state.CompletedAt != nil {
		resp.CompletedAt = state.CompletedAt.UTC().Format(timeLayout)
	}
	return resp
}

type proofResponse struct {
	Period         string   `json:"period"`
	MinerID        string   `json:"miner_id"`
	OwnerID        string   `json:"owner_id"`
	OwnerValue     string   `json:"owner_value"`
	NetValue       string   `json:"net_value"`
	LeafHash       string   `json:"leaf_hash"`
	ProofAvailable bool     `json:"proof_available"`
	Root           string   `json:"root,omitempty"`
	LeafIndex      *int     `json:"leaf_index,omitempty"`
	Proof          []string `json:"proof,omitempty"`
	Verified       bool     `json:"verified"`
}

// HandleProof serves GET /api/v1/periods/{period}/distributions/{miner}/proof.
// A period without a root reports proof_available=false.
func (h *QueryHandler) HandleProof(w http.ResponseWriter, r *http.Request) {
	period, state, ok := h.loadPeriod(w, r)
	if !ok {
		return
	}
	minerID := mux.Vars(r)["miner"]
	if minerID == "" {
		writeError(w, http.StatusBadRequest, "miner is required")
		return
	}
	d, err := h.distributions.Find(r.Context(), period, minerID)
	if err != nil {
		h.logger.Error("find distribution failed", zap.String("period", period.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query distribution error")
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, distribution.ErrDistributionNotFound.Error())
		return
	}

	resp := proofResponse{
		Period:     period.String(),
		MinerID:    d.MinerID,
		OwnerID:    d.OwnerID,
		OwnerValue: d.OwnerValue.StringFixed(distribution.AmountPrecision),
		NetValue:   d.Net.StringFixed(distribution.AmountPrecision),
		LeafHash:   d.LeafHash,
	}
	if state.Committed() && state.HasRoot() && d.HasProof() {
		resp.ProofAvailable = true
		resp.Root = state.Root
		resp.LeafIndex = d.LeafIndex
		resp.Proof = d.Proof
		if resp.Proof == nil {
			resp.Proof = []string{}
		}
		resp.Verified = commitment.Verify(d.LeafHash, d.Proof, *d.LeafIndex, state.Root)
	}
	writeJSON(w, http.StatusOK, resp)
}

type balanceResponse struct {
	AccountID string `json:"account_id"`
	Kind      string `json:"kind"`
	OwnerID   string `json:"owner_id,omitempty"`
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
	Locked    string `json:"locked"`
	Available string `json:"available"`
}

// HandleBalance serves GET /api/v1/accounts/{id}/balance.
func (h *QueryHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		AccountID: account.ID,
		Kind:      string(account.Kind),
		OwnerID:   account.OwnerID,
		Currency:  account.Currency,
		Balance:   account.Balance.StringFixed(distribution.AmountPrecision),
		Locked:    account.Locked.StringFixed(distribution.AmountPrecision),
		Available: account.Available().StringFixed(distribution.AmountPrecision),
	})
}

type entryResponse struct {
	ID           string `json:"id"`
	Debit        string `json:"debit"`
	Credit       string `json:"credit"`
	BalanceAfter string `json:"balance_after"`
	RefType      string `json:"ref_type,omitempty"`
	RefID        string `json:"ref_id,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// HandleEntries serves GET /api/v1/accounts/{id}/entries?limit=N, newest last.
func (h *QueryHandler) HandleEntries(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}
	limit := defaultEntriesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := h.ledger.Entries(r.Context(), account.ID)
	if err != nil {
		h.logger.Error("list entries failed", zap.String("account", account.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query entries error")
		return
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:           e.ID,
			Debit:        e.Debit.StringFixed(distribution.AmountPrecision),
			Credit:       e.Credit.StringFixed(distribution.AmountPrecision),
			BalanceAfter: e.BalanceAfter.StringFixed(distribution.AmountPrecision),
			RefType:      e.RefType,
			RefID:        e.RefID,
			CreatedAt:    e.CreatedAt.UTC().Format(timeLayout),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_id": account.ID, "entries": out})
}

func (h *QueryHandler) loadPeriod(w http.ResponseWriter, r *http.Request) (distribution.PeriodKey, *distribution.PeriodState, bool) {
	period, err := distribution.ParsePeriodKey(mux.Vars(r)["period"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", nil, false
	}
	state, err := h.periods.Get(r.Context(), period)
	if errors.Is(err, distribution.ErrPeriodNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return "", nil, false
	}
	if err != nil {
		h.logger.Error("get period failed", zap.String("period", period.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query period error")
		return "", nil, false
	}
	return period, state, true
}

func (h *QueryHandler) loadAccount(w http.ResponseWriter, r *http.Request) (*ledger.Account, bool) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, ledger.ErrEmptyAccountID.Error())
		return nil, false
	}
	account, err := h.ledger.Account(r.Context(), id)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	if err != nil {
		h.logger.Error("get account failed", zap.String("account", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query account error")
		return nil, false
	}
	return account, true
}
