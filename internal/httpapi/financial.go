package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/peterson-htn252/HTN252/internal/api"
	"github.com/peterson-htn252/HTN252/internal/ledger"
	"github.com/peterson-htn252/HTN252/internal/models"
)

func (s *Service) QuoteHandler(w http.ResponseWriter, r *http.Request) {
	var req models.QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}

	quote, err := s.rates.NewQuote(req.FromCurrency, req.ToCurrency, req.AmountMinor)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_quote", err.Error(), "")
		return
	}
	api.WriteSuccess(w, http.StatusOK, quote)
}

func (s *Service) RedeemHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}
	if req.RecipientID == "" || req.StoreID == "" || req.VoucherID == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "voucher_id, store_id, and recipient_id are required", "")
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	if s.gateway == nil {
		api.WriteError(w, http.StatusServiceUnavailable, "ledger_unavailable", "Ledger connection not available", "")
		return
	}

	result, err := s.engine.Redeem(r.Context(), req)
	if err != nil {
		writeSettlementError(w, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, result)
}

// StorePayoutHandler records an off-ramp payout request for a store. The
// actual bank transfer happens out of band; the row starts as processing.
func (s *Service) StorePayoutHandler(w http.ResponseWriter, r *http.Request) {
	var req models.StorePayoutBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}
	if req.StoreID == "" || req.AmountMinor <= 0 {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "store_id and a positive amount_minor are required", "")
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	quote, err := s.rates.NewQuote(ledger.NativeCurrency, req.Currency, req.AmountMinor)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_quote", err.Error(), "")
		return
	}

	payout := &models.Payout{
		PayoutID:    uuid.NewString(),
		StoreID:     req.StoreID,
		ProgramID:   req.ProgramID,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		QuoteID:     quote.QuoteID,
		Status:      "processing",
	}
	if err := s.store.CreatePayout(r.Context(), payout); err != nil {
		log.Printf("Failed to create payout: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}

	api.WriteSuccess(w, http.StatusOK, map[string]string{
		"payout_id": payout.PayoutID,
		"status":    payout.Status,
	})
}

func (s *Service) StorePayoutMethodHandler(w http.ResponseWriter, r *http.Request) {
	storeID := mux.Vars(r)["id"]

	var req struct {
		Method   string            `json:"method"`
		Currency string            `json:"currency"`
		Detail   map[string]string `json:"detail"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}
	if req.Method == "" || req.Currency == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "method and currency are required", "")
		return
	}

	err := s.store.UpsertStorePayoutMethod(r.Context(), &models.StorePayoutMethod{
		StoreID:  storeID,
		Method:   req.Method,
		Currency: req.Currency,
		Detail:   req.Detail,
	})
	if err != nil {
		log.Printf("Failed to upsert payout method: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Service) ListStorePayoutsHandler(w http.ResponseWriter, r *http.Request) {
	storeID := mux.Vars(r)["id"]

	payouts, err := s.store.ListPayoutsByStore(r.Context(), storeID)
	if err != nil {
		log.Printf("Failed to list payouts: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{"items": payouts})
}

// WalletBalanceHandler reports the USD balance behind a public key. An
// unreachable ledger or unfunded address reads as zero so terminals do not
// break on network hiccups.
func (s *Service) WalletBalanceHandler(w http.ResponseWriter, r *http.Request) {
	var req models.WalletBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}

	address, err := ledger.DeriveAddress(req.PublicKey)
	if err != nil {
		api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
			"address": nil, "balance_drops": 0, "balance_usd": 0.0,
		})
		return
	}
	if s.gateway == nil {
		api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
			"address": address, "balance_drops": 0, "balance_usd": 0.0,
		})
		return
	}

	drops, err := s.gateway.GetBalance(r.Context(), address)
	if err != nil {
		if !errors.Is(err, ledger.ErrUnreachable) {
			log.Printf("Balance lookup failed for %s: %v", address, err)
		}
		api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
			"address": address, "balance_drops": 0, "balance_usd": 0.0,
		})
		return
	}

	usd, err := s.rates.DropsToUSD(drops)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Conversion failed", "")
		return
	}
	usdFloat, _ := usd.Float64()
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"address":       address,
		"balance_drops": drops,
		"balance_usd":   usdFloat,
	})
}
