package httpapi

import (
	"net/http"

	"github.com/peterson-htn252/HTN252/internal/api"
)

func (s *Service) HealthHandler(w http.ResponseWriter, r *http.Request) {
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"ok":             true,
		"ledger_network": s.ledgerNetwork,
		"ledger":         s.gateway != nil,
		"face":           s.faces != nil,
		"identity":       s.identity != nil && s.identity.Configured(),
	})
}
