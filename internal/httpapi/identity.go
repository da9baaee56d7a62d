package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/peterson-htn252/HTN252/internal/api"
	"github.com/peterson-htn252/HTN252/internal/identity"
)

func (s *Service) IdentityHostedLinkHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NGOID       string `json:"ngo_id"`
		ReferenceID string `json:"reference_id"`
		RedirectURI string `json:"redirect_uri"`
		State       string `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}

	reference := req.ReferenceID
	if reference == "" {
		reference = req.NGOID
	}
	link, err := s.identity.NewHostedLink(reference, req.RedirectURI, req.State)
	if errors.Is(err, identity.ErrNotConfigured) {
		api.WriteError(w, http.StatusServiceUnavailable, "identity_not_configured", "Identity verification not configured", "")
		return
	}
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to build hosted link", "")
		return
	}
	api.WriteSuccess(w, http.StatusOK, link)
}

func (s *Service) IdentityInquiryHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InquiryID   string `json:"inquiry_id"`
		ReferenceID string `json:"reference_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}
	if req.InquiryID == "" && req.ReferenceID == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Provide inquiry_id or reference_id", "")
		return
	}

	var summary *identity.Summary
	var err error
	if req.InquiryID != "" {
		summary, err = s.identity.FetchInquiry(r.Context(), req.InquiryID)
	} else {
		summary, err = s.identity.FetchLatestByReference(r.Context(), req.ReferenceID)
	}

	switch {
	case errors.Is(err, identity.ErrNotConfigured):
		api.WriteError(w, http.StatusServiceUnavailable, "identity_not_configured", "Identity verification not configured", "")
	case errors.Is(err, identity.ErrInquiryNotFound):
		api.WriteError(w, http.StatusNotFound, "inquiry_not_found", "Inquiry not found", "")
	case err != nil:
		log.Printf("Identity inquiry fetch failed: %v", err)
		api.WriteError(w, http.StatusBadGateway, "identity_error", "Identity verification request failed", "")
	default:
		api.WriteSuccess(w, http.StatusOK, summary)
	}
}
