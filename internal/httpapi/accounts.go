package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/peterson-htn252/HTN252/internal/api"
	"github.com/peterson-htn252/HTN252/internal/auth"
	"github.com/peterson-htn252/HTN252/internal/ledger"
	"github.com/peterson-htn252/HTN252/internal/models"
	"github.com/peterson-htn252/HTN252/internal/store"
)

func (s *Service) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "name, email, and password are required", "")
		return
	}
	if req.AccountType == "" {
		req.AccountType = "NGO"
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to hash password", "")
		return
	}

	cred, err := ledger.NewCredential()
	if err != nil {
		log.Printf("Failed to generate wallet keypair: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to generate wallet", "")
		return
	}

	account := &models.Account{
		AccountID:    uuid.NewString(),
		AccountType:  req.AccountType,
		Status:       "active",
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		NGOID:        req.NGOID,
		Goal:         req.Goal,
		Description:  req.Description,
		PublicKey:    cred.PublicKey,
		PrivateKey:   cred.PrivateKey,
		Address:      cred.Address,
	}
	if err := s.store.CreateAccount(r.Context(), account); err != nil {
		if err == store.ErrAlreadyExists {
			api.WriteError(w, http.StatusConflict, "account_exists", "Email already registered", "")
			return
		}
		log.Printf("Failed to create account: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}

	token, expires, err := s.auth.Mint(account.AccountID, account.AccountType, account.Email)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to generate token", "")
		return
	}

	api.WriteSuccess(w, http.StatusCreated, models.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		AccountID:   account.AccountID,
		AccountType: account.AccountType,
		Name:        account.Name,
		ExpiresAt:   expires.Unix(),
	})
}

func (s *Service) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}

	account, err := s.store.GetAccountByEmail(r.Context(), req.Email)
	if err == store.ErrNotFound {
		api.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password", "")
		return
	}
	if err != nil {
		log.Printf("DB error on login: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}

	if account.Status != "active" {
		api.WriteError(w, http.StatusForbidden, "account_inactive", "Account is not active", "")
		return
	}
	if !auth.VerifyPassword(account.PasswordHash, req.Password) {
		api.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password", "")
		return
	}

	token, expires, err := s.auth.Mint(account.AccountID, account.AccountType, account.Email)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to generate token", "")
		return
	}

	api.WriteSuccess(w, http.StatusOK, models.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		AccountID:   account.AccountID,
		AccountType: account.AccountType,
		Name:        account.Name,
		ExpiresAt:   expires.Unix(),
	})
}

func (s *Service) MeHandler(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())
	account, err := s.store.GetAccount(r.Context(), claims.AccountID)
	if err == store.ErrNotFound {
		api.WriteError(w, http.StatusNotFound, "account_not_found", "Account not found", "")
		return
	}
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}
	api.WriteSuccess(w, http.StatusOK, account)
}

// ListNGOsHandler exposes the public donor-facing NGO directory.
func (s *Service) ListNGOsHandler(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListNGOAccounts(r.Context())
	if err != nil {
		log.Printf("Failed to list NGOs: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"ngos":  accounts,
		"count": len(accounts),
	})
}

func (s *Service) DashboardStatsHandler(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())
	ctx := r.Context()

	account, err := s.store.GetAccount(ctx, claims.AccountID)
	if err == store.ErrNotFound {
		api.WriteError(w, http.StatusNotFound, "account_not_found", "NGO account not found", "")
		return
	}
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}

	active, err := s.store.CountActiveRecipients(ctx, account.AccountID)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}
	expenses, err := s.store.NGOExpenses(ctx, account.AccountID)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Database error", "")
		return
	}

	// Wallet balance is the source of truth for available funds. An
	// unreachable ledger reads as zero rather than failing the dashboard.
	var availableFunds int64
	if account.Address != "" && s.gateway != nil {
		if drops, err := s.gateway.GetBalance(ctx, account.Address); err == nil {
			if cents, err := s.rates.DropsToCents(drops); err == nil {
				availableFunds = cents
			}
		}
	}

	var utilization float64
	if account.LifetimeDonations > 0 {
		utilization = float64(expenses) / float64(account.LifetimeDonations) * 100
	}

	api.WriteSuccess(w, http.StatusOK, models.DashboardStats{
		ActiveRecipients:  active,
		TotalExpenses:     expenses,
		AvailableFunds:    availableFunds,
		LifetimeDonations: account.LifetimeDonations,
		Goal:              account.Goal,
		UtilizationRate:   utilization,
		LastUpdated:       time.Now().UTC().Format(time.RFC3339),
	})
}
