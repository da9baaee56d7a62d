package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/peterson-htn252/HTN252/internal/api"
	"github.com/peterson-htn252/HTN252/internal/auth"
	"github.com/peterson-htn252/HTN252/internal/ledger"
	"github.com/peterson-htn252/HTN252/internal/models"
	"github.com/peterson-htn252/HTN252/internal/settlement"
	"github.com/peterson-htn252/HTN252/internal/store"
)

func (s *Service) CreateRecipientHandler(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())

	var req models.RecipientCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}
	if req.Name == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "name is required", "")
		return
	}

	cred, err := ledger.NewCredential()
	if err != nil {
		log.Printf("Failed to generate recipient wallet: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to generate wallet", "")
		return
	}

	recipient := &models.Recipient{
		RecipientID: uuid.NewString(),
		NGOID:       claims.AccountID,
		Name:        req.Name,
		Location:    req.Location,
		Status:      "active",
		Balance:     decimal.Zero,
		PublicKey:   cred.PublicKey,
		PrivateKey:  cred.PrivateKey,
		Address:     cred.Address,
	}
	if err := s.store.CreateRecipient(r.Context(), recipient); err != nil {
		log.Printf("Failed to create recipient: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}

	api.WriteSuccess(w, http.StatusCreated, map[string]interface{}{
		"recipient_id": recipient.RecipientID,
		"status":       "created",
		"public_key":   recipient.PublicKey,
		"address":      recipient.Address,
		"balance":      0.0,
	})
}

func (s *Service) ListRecipientsHandler(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())

	recipients, err := s.store.ListRecipients(r.Context(), claims.AccountID, r.URL.Query().Get("search"))
	if err != nil {
		log.Printf("Failed to list recipients: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"recipients": recipients,
		"count":      len(recipients),
	})
}

func (s *Service) GetRecipientHandler(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())
	id := mux.Vars(r)["id"]

	recipient, err := s.store.GetRecipientForNGO(r.Context(), id, claims.AccountID)
	if err == store.ErrNotFound {
		api.WriteError(w, http.StatusNotFound, "recipient_not_found", "Recipient not found", "")
		return
	}
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}
	api.WriteSuccess(w, http.StatusOK, recipient)
}

func (s *Service) UpdateRecipientHandler(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())
	id := mux.Vars(r)["id"]

	var req models.RecipientUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}

	err := s.store.UpdateRecipientFields(r.Context(), id, claims.AccountID, req)
	if err == store.ErrNotFound {
		api.WriteError(w, http.StatusNotFound, "recipient_not_found", "Recipient not found", "")
		return
	}
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]string{"status": "updated"})
}

// BalanceOperationHandler runs a deposit or withdrawal through the
// settlement engine on behalf of the authenticated NGO.
func (s *Service) BalanceOperationHandler(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())
	id := mux.Vars(r)["id"]

	var req models.BalanceOperation
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}

	if s.gateway == nil {
		api.WriteError(w, http.StatusServiceUnavailable, "ledger_unavailable", "Ledger connection not available", "")
		return
	}

	amount := decimal.NewFromFloat(req.Amount)
	var result *settlement.Result
	var err error
	switch req.OperationType {
	case "deposit":
		result, err = s.engine.Deposit(r.Context(), claims.AccountID, id, amount, req.ProgramID, req.Description)
	case "withdraw":
		result, err = s.engine.Withdraw(r.Context(), claims.AccountID, id, amount, req.ProgramID, req.Description)
	default:
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "operation_type must be deposit or withdraw", "")
		return
	}
	if err != nil {
		writeSettlementError(w, err)
		return
	}

	prev, _ := result.PreviousBalance.Float64()
	newBal, _ := result.NewBalance.Float64()
	amt, _ := result.Amount.Float64()
	api.WriteSuccess(w, http.StatusOK, models.BalanceOperationResponse{
		PreviousBalance: prev,
		NewBalance:      newBal,
		Operation:       result.Operation,
		Amount:          amt,
		TxHash:          result.TxHash,
	})
}

// PublicRecipientHandler serves payment terminals; no auth, no keys exposed.
func (s *Service) PublicRecipientHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	recipient, err := s.store.GetRecipient(r.Context(), id)
	if err == store.ErrNotFound {
		api.WriteError(w, http.StatusNotFound, "recipient_not_found", "Recipient not found", "")
		return
	}
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}

	balance, _ := recipient.Balance.Float64()
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"recipient_id": recipient.RecipientID,
		"name":         recipient.Name,
		"balance":      balance,
		"status":       recipient.Status,
		"created_at":   recipient.CreatedAt,
	})
}

func (s *Service) PublicBalanceHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	recipient, err := s.store.GetRecipient(r.Context(), id)
	if err == store.ErrNotFound {
		api.WriteError(w, http.StatusNotFound, "recipient_not_found", "Recipient not found", "")
		return
	}
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}

	balance, _ := recipient.Balance.Float64()
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"recipient_id": id,
		"balance":      balance,
	})
}

func (s *Service) WalletLinkStartHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req models.WalletLinkStart
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "address is required", "")
		return
	}

	api.WriteSuccess(w, http.StatusOK, map[string]string{
		"challenge": s.challenger.Make(id, req.Address),
	})
}

func (s *Service) WalletLinkConfirmHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req models.WalletLinkConfirm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "address and signature are required", "")
		return
	}

	if !s.challenger.Verify(req.Signature, id, req.Address) {
		api.WriteError(w, http.StatusUnauthorized, "invalid_challenge", "Invalid signature/challenge", "")
		return
	}

	wallet := &models.Wallet{
		WalletID:       uuid.NewString(),
		OwnerAccountID: id,
		Role:           "recipient",
		Address:        req.Address,
		Custody:        "non_custodial",
		Network:        s.ledgerNetwork,
		Status:         "activated",
	}
	if err := s.store.CreateWallet(r.Context(), wallet); err != nil {
		log.Printf("Failed to link wallet: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}

	api.WriteSuccess(w, http.StatusOK, map[string]string{
		"wallet_id": wallet.WalletID,
		"address":   wallet.Address,
	})
}
