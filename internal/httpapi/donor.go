package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/peterson-htn252/HTN252/internal/api"
	"github.com/peterson-htn252/HTN252/internal/ledger"
	"github.com/peterson-htn252/HTN252/internal/models"
	"github.com/peterson-htn252/HTN252/internal/store"
)

// DonationHandler credits a donation to an NGO program wallet. The card
// processor is an upstream boundary; by the time this endpoint is called the
// payment has already settled, so the handler mints the equivalent value
// onto the ledger and updates the lifetime counter.
func (s *Service) DonationHandler(w http.ResponseWriter, r *http.Request) {
	var req models.DonationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}
	if req.NGOID == "" || req.AmountMinor <= 0 {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "ngo_id and a positive amount_minor are required", "")
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	ngo, err := s.store.GetAccount(r.Context(), req.NGOID)
	if err == store.ErrNotFound {
		api.WriteError(w, http.StatusNotFound, "account_not_found", "NGO not found", "")
		return
	}
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}
	if ngo.Address == "" {
		api.WriteError(w, http.StatusConflict, "wallet_not_configured", "NGO wallet not configured", "")
		return
	}

	if s.gateway == nil {
		api.WriteError(w, http.StatusServiceUnavailable, "ledger_unavailable", "Ledger connection not available", "")
		return
	}

	drops, err := s.rates.CentsToDrops(req.AmountMinor)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_amount", "Amount must be positive", "")
		return
	}

	donationID := uuid.NewString()
	txHash, err := s.gateway.Issue(r.Context(), ngo.Address, drops, []ledger.Memo{
		{Type: "Program", Value: req.ProgramID},
		{Type: "DonationId", Value: donationID},
	})
	if err != nil || txHash == "" {
		log.Printf("Donation issue failed for NGO %s: %v", req.NGOID, err)
		api.WriteError(w, http.StatusBadGateway, "ledger_error", "Failed to credit donation on ledger", "")
		return
	}

	donation := &models.Donation{
		DonationID:  donationID,
		NGOID:       req.NGOID,
		ProgramID:   req.ProgramID,
		DonorEmail:  req.DonorEmail,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		TxHash:      txHash,
	}
	if err := s.store.CreateDonation(r.Context(), donation); err != nil {
		log.Printf("Failed to record donation %s: %v", donationID, err)
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}
	if err := s.store.IncrementLifetimeDonations(r.Context(), req.NGOID, req.AmountMinor); err != nil {
		log.Printf("Failed to bump lifetime donations for %s: %v", req.NGOID, err)
	}

	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"donation_id": donationID,
		"tx_hash":     txHash,
		"to_address":  ngo.Address,
		"ngo_id":      req.NGOID,
	})
}

const maxTrackingSamples = 20

// TrackingSamplesHandler returns recent payout ids donors can paste into the
// tracking page. Falls back to raw ledger movements when no payouts exist yet.
func (s *Service) TrackingSamplesHandler(w http.ResponseWriter, r *http.Request) {
	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxTrackingSamples {
		limit = maxTrackingSamples
	}

	samples := make([]models.TrackingSample, 0, limit)
	payouts, err := s.store.ListRecentPayouts(r.Context(), limit)
	if err != nil {
		log.Printf("Tracking sample query failed: %v", err)
	}
	for _, p := range payouts {
		samples = append(samples, models.TrackingSample{
			DonationID:   p.PayoutID,
			BlockchainID: p.TxHash,
			NGOID:        p.NGOID,
			Amount:       float64(p.AmountMinor) / 100,
			Currency:     p.Currency,
			Status:       p.Status,
			CreatedAt:    p.CreatedAt,
		})
	}

	if len(samples) == 0 {
		moves, err := s.store.ListRecentMovements(r.Context(), limit)
		if err != nil {
			log.Printf("Tracking movement query failed: %v", err)
		}
		for _, m := range moves {
			usd, _ := s.rates.DropsToUSD(m.DeliveredDrops)
			amount, _ := usd.Float64()
			id := m.TxHash
			if len(id) > 12 {
				id = id[:12]
			}
			samples = append(samples, models.TrackingSample{
				DonationID:   "TX-" + id,
				BlockchainID: m.TxHash,
				NGOID:        m.NGOID,
				Amount:       amount,
				Currency:     "USD",
				Status:       "confirmed",
				CreatedAt:    m.CreatedAt,
			})
		}
	}

	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{"samples": samples})
}

// trackingStatus maps payout states onto donor-facing labels.
func trackingStatus(payoutStatus string) string {
	switch payoutStatus {
	case "processing":
		return "processing"
	case "pending":
		return "received"
	case "failed":
		return "failed"
	default:
		return "distributed"
	}
}

// TrackingHandler resolves a payout id or ledger transaction hash into the
// donation detail a donor page renders.
func (s *Service) TrackingHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Tracking ID is required", "")
		return
	}

	payout, err := s.store.GetPayout(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		payout, err = s.store.GetPayoutByTxHash(r.Context(), id)
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}

	var movement *models.Movement
	if payout == nil {
		movement, err = s.store.GetMovementByTxHash(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			api.WriteError(w, http.StatusNotFound, "tracking_not_found", "Tracking ID not found", "")
			return
		}
		if err != nil {
			api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
			return
		}
	}

	tracking := models.DonationTracking{Currency: "USD", Program: "General Aid Program"}
	if payout != nil {
		tracking.DonationID = payout.PayoutID
		tracking.BlockchainID = payout.TxHash
		tracking.Amount = float64(payout.AmountMinor) / 100
		if payout.Currency != "" {
			tracking.Currency = payout.Currency
		}
		if payout.ProgramID != "" {
			tracking.Program = payout.ProgramID
		}
		tracking.Status = trackingStatus(payout.Status)
		tracking.NGOID = payout.NGOID
	} else {
		tracking.DonationID = movement.TxHash
		tracking.BlockchainID = movement.TxHash
		usd, _ := s.rates.DropsToUSD(movement.DeliveredDrops)
		tracking.Amount, _ = usd.Float64()
		if p := movement.Memos["program_id"]; p != "" {
			tracking.Program = p
		}
		tracking.Status = "distributed"
		tracking.NGOID = movement.NGOID
	}

	if tracking.NGOID != "" {
		if ngo, err := s.store.GetAccount(r.Context(), tracking.NGOID); err == nil {
			tracking.NGOName = ngo.Name
		}
	}

	api.WriteSuccess(w, http.StatusOK, tracking)
}
