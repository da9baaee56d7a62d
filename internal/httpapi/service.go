// Package httpapi is the HTTP surface over the settlement engine and the
// supporting store, ledger, face, and identity components.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/peterson-htn252/HTN252/internal/api"
	"github.com/peterson-htn252/HTN252/internal/auth"
	"github.com/peterson-htn252/HTN252/internal/credentials"
	"github.com/peterson-htn252/HTN252/internal/face"
	"github.com/peterson-htn252/HTN252/internal/identity"
	"github.com/peterson-htn252/HTN252/internal/ledger"
	"github.com/peterson-htn252/HTN252/internal/settlement"
	"github.com/peterson-htn252/HTN252/internal/store"
)

type Service struct {
	store      *store.Store
	engine     *settlement.Engine
	gateway    ledger.Gateway
	rates      *ledger.Rates
	auth       *auth.Authenticator
	challenger *ledger.Challenger
	faces      face.Provider
	identity   *identity.Client
	creds      *credentials.Issuer

	ledgerNetwork string
}

func NewService(
	st *store.Store,
	engine *settlement.Engine,
	gateway ledger.Gateway,
	rates *ledger.Rates,
	authenticator *auth.Authenticator,
	challenger *ledger.Challenger,
	faces face.Provider,
	idClient *identity.Client,
	creds *credentials.Issuer,
	ledgerNetwork string,
) *Service {
	return &Service{
		store:         st,
		engine:        engine,
		gateway:       gateway,
		rates:         rates,
		auth:          authenticator,
		challenger:    challenger,
		faces:         faces,
		identity:      idClient,
		creds:         creds,
		ledgerNetwork: ledgerNetwork,
	}
}

// Router wires every route. NGO-scoped routes sit behind the bearer-token
// middleware; recipient balance reads, redemption, and donor routes are open
// for payment terminals and donor pages.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.HealthHandler).Methods("GET")

	r.HandleFunc("/accounts/register", s.RegisterHandler).Methods("POST")
	r.HandleFunc("/accounts/login", s.LoginHandler).Methods("POST")
	r.HandleFunc("/accounts/ngos", s.ListNGOsHandler).Methods("GET")

	// Payment-terminal surface, no auth.
	r.HandleFunc("/recipients/{id}", s.PublicRecipientHandler).Methods("GET")
	r.HandleFunc("/recipients/{id}/balance", s.PublicBalanceHandler).Methods("GET")
	r.HandleFunc("/recipients/{id}/wallet-link/start", s.WalletLinkStartHandler).Methods("POST")
	r.HandleFunc("/recipients/{id}/wallet-link/confirm", s.WalletLinkConfirmHandler).Methods("POST")

	r.HandleFunc("/quotes", s.QuoteHandler).Methods("POST")
	r.HandleFunc("/redeem", s.RedeemHandler).Methods("POST")
	r.HandleFunc("/payouts", s.StorePayoutHandler).Methods("POST")
	r.HandleFunc("/stores/{id}/payout-method", s.StorePayoutMethodHandler).Methods("PUT")
	r.HandleFunc("/stores/{id}/payouts", s.ListStorePayoutsHandler).Methods("GET")
	r.HandleFunc("/wallets/balance-usd", s.WalletBalanceHandler).Methods("POST")

	r.HandleFunc("/donor/donations", s.DonationHandler).Methods("POST")
	r.HandleFunc("/donor/track", s.TrackingSamplesHandler).Methods("GET")
	r.HandleFunc("/donor/track/{id}", s.TrackingHandler).Methods("GET")

	r.HandleFunc("/credentials/issue", s.CredentialIssueHandler).Methods("POST")
	r.HandleFunc("/credentials/verify", s.CredentialVerifyHandler).Methods("POST")
	r.HandleFunc("/credentials/revoke", s.CredentialRevokeHandler).Methods("POST")

	r.HandleFunc("/identity/hosted-link", s.IdentityHostedLinkHandler).Methods("POST")
	r.HandleFunc("/identity/inquiries", s.IdentityInquiryHandler).Methods("POST")

	// NGO console surface.
	ngo := r.PathPrefix("/ngo").Subrouter()
	ngo.Use(s.auth.Middleware)
	ngo.HandleFunc("/me", s.MeHandler).Methods("GET")
	ngo.HandleFunc("/dashboard/stats", s.DashboardStatsHandler).Methods("GET")
	ngo.HandleFunc("/recipients", s.CreateRecipientHandler).Methods("POST")
	ngo.HandleFunc("/recipients", s.ListRecipientsHandler).Methods("GET")
	ngo.HandleFunc("/recipients/{id}", s.GetRecipientHandler).Methods("GET")
	ngo.HandleFunc("/recipients/{id}", s.UpdateRecipientHandler).Methods("PUT")
	ngo.HandleFunc("/recipients/{id}/balance", s.BalanceOperationHandler).Methods("POST")
	ngo.HandleFunc("/face/enroll", s.FaceEnrollHandler).Methods("POST")
	ngo.HandleFunc("/face/identify", s.FaceIdentifyHandler).Methods("POST")

	return r
}

// writeSettlementError maps engine errors onto HTTP status codes.
func writeSettlementError(w http.ResponseWriter, err error) {
	var insufficient *settlement.InsufficientBalanceError
	var sourceFunds *settlement.InsufficientSourceFundsError
	var ledgerErr *settlement.LedgerError

	switch {
	case errors.Is(err, settlement.ErrRecipientNotFound):
		api.WriteError(w, http.StatusNotFound, "recipient_not_found", "Recipient not found", "")
	case errors.Is(err, settlement.ErrAccountNotFound):
		api.WriteError(w, http.StatusNotFound, "account_not_found", "Account not found", "")
	case errors.Is(err, settlement.ErrNotAuthorized):
		api.WriteError(w, http.StatusForbidden, "not_authorized", "Recipient belongs to another NGO", "")
	case errors.Is(err, settlement.ErrInvalidAmount):
		api.WriteError(w, http.StatusBadRequest, "invalid_amount", "Amount must be positive", "")
	case errors.Is(err, settlement.ErrWalletNotConfigured):
		api.WriteError(w, http.StatusConflict, "wallet_not_configured", "Wallet keys not properly configured", "")
	case errors.Is(err, settlement.ErrOffRampNotConfigured):
		api.WriteError(w, http.StatusServiceUnavailable, "offramp_not_configured", "Off-ramp address not configured", "")
	case errors.Is(err, settlement.ErrConflict):
		api.WriteError(w, http.StatusConflict, "conflict", "Balance changed concurrently, retry", "")
	case errors.As(err, &insufficient):
		api.WriteError(w, http.StatusBadRequest, "insufficient_balance", err.Error(), "")
	case errors.As(err, &sourceFunds):
		api.WriteError(w, http.StatusBadRequest, "insufficient_funds", err.Error(), "")
	case errors.As(err, &ledgerErr):
		api.WriteError(w, http.StatusBadGateway, "ledger_error", "Ledger transfer failed", "")
	default:
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error", "")
	}
}
