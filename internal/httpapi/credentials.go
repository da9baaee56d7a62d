package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/peterson-htn252/HTN252/internal/api"
	"github.com/peterson-htn252/HTN252/internal/credentials"
	"github.com/peterson-htn252/HTN252/internal/models"
)

// CredentialIssueHandler signs a role credential for a program participant.
func (s *Service) CredentialIssueHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CredentialIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}

	issued, err := s.creds.Issue(r.Context(), req)
	if errors.Is(err, credentials.ErrInvalidRequest) {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), "")
		return
	}
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to issue credential", "")
		return
	}

	api.WriteSuccess(w, http.StatusOK, issued)
}

func (s *Service) CredentialVerifyHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CredentialVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JWT == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "jwt is required", "")
		return
	}

	claims, err := s.creds.Verify(r.Context(), req.JWT)
	switch {
	case err == nil:
	case errors.Is(err, credentials.ErrMalformed):
		api.WriteError(w, http.StatusBadRequest, "malformed_credential", "Malformed JWT", "")
		return
	case errors.Is(err, credentials.ErrRevoked):
		api.WriteError(w, http.StatusUnauthorized, "credential_revoked", "Credential revoked", "")
		return
	case errors.Is(err, credentials.ErrExpired):
		api.WriteError(w, http.StatusUnauthorized, "credential_expired", "Credential expired", "")
		return
	case errors.Is(err, credentials.ErrNotYetValid):
		api.WriteError(w, http.StatusUnauthorized, "credential_not_yet_valid", "Credential not yet valid", "")
		return
	case errors.Is(err, credentials.ErrInvalidSignature):
		api.WriteError(w, http.StatusUnauthorized, "invalid_signature", "Invalid signature", "")
		return
	default:
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Verification failed", "")
		return
	}

	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"valid":   true,
		"payload": claims,
	})
}

func (s *Service) CredentialRevokeHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CredentialRevokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CredentialID == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "credential_id is required", "")
		return
	}

	if err := s.creds.Revoke(r.Context(), req.CredentialID); err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to revoke credential", "")
		return
	}

	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{"ok": true})
}
