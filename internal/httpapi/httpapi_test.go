package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/peterson-htn252/HTN252/internal/auth"
	"github.com/peterson-htn252/HTN252/internal/credentials"
	"github.com/peterson-htn252/HTN252/internal/identity"
	"github.com/peterson-htn252/HTN252/internal/ledger"
	"github.com/peterson-htn252/HTN252/internal/ledger/ledgertest"
	"github.com/peterson-htn252/HTN252/internal/models"
)

// credStore is an in-memory credentials.Store for handler tests.
type credStore struct {
	revoked map[string]bool
}

func (c *credStore) CreateCredential(ctx context.Context, cred *models.IssuedCredential) error {
	return nil
}

func (c *credStore) RevokeCredential(ctx context.Context, credentialID string) error {
	c.revoked[credentialID] = true
	return nil
}

func (c *credStore) IsCredentialRevoked(ctx context.Context, credentialID string) (bool, error) {
	return c.revoked[credentialID], nil
}

// newTestService wires a Service with a fake ledger and no database. Routes
// that touch Postgres are covered by the e2e suite instead.
func newTestService(t *testing.T) (*Service, *ledgertest.Fake) {
	t.Helper()
	rates, err := ledger.NewRates(2.0)
	require.NoError(t, err)

	gw := ledgertest.New()
	svc := NewService(
		nil,
		nil,
		gw,
		rates,
		auth.New("test-secret", 1),
		ledger.NewChallenger("app-secret"),
		nil,
		identity.NewClient("", "", "sandbox"),
		credentials.NewIssuer("app-secret", &credStore{revoked: make(map[string]bool)}),
		"TESTNET",
	)
	return svc, gw
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	svc, _ := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["ok"])
	require.Equal(t, "TESTNET", body["ledger_network"])
	require.Equal(t, true, body["ledger"])
	require.Equal(t, false, body["face"])
	require.Equal(t, false, body["identity"])
}

func TestQuoteHandler(t *testing.T) {
	svc, _ := newTestService(t)
	router := svc.Router()

	rec := postJSON(t, router, "/quotes", map[string]interface{}{
		"from_currency": ledger.NativeCurrency,
		"to_currency":   "USD",
		"amount_minor":  1234,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var quote ledger.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	require.Equal(t, int64(1234), quote.AmountMinor)
	require.LessOrEqual(t, quote.DeliverMin, quote.AmountMinor)
	require.LessOrEqual(t, quote.AmountMinor, quote.SendMax)

	rec = postJSON(t, router, "/quotes", map[string]interface{}{
		"from_currency": "USD",
		"to_currency":   "EUR",
		"amount_minor":  100,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWalletLinkChallengeFlow(t *testing.T) {
	svc, _ := newTestService(t)
	router := svc.Router()

	rec := postJSON(t, router, "/recipients/rec-1/wallet-link/start", map[string]string{
		"address": "wabc123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["challenge"])

	// A tampered signature is rejected before any storage write.
	rec = postJSON(t, router, "/recipients/rec-1/wallet-link/confirm", map[string]string{
		"address":   "wabc123",
		"signature": "not-the-challenge",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong recipient id invalidates a genuine challenge too.
	rec = postJSON(t, router, "/recipients/rec-2/wallet-link/confirm", map[string]string{
		"address":   "wabc123",
		"signature": body["challenge"],
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWalletBalanceHandler(t *testing.T) {
	svc, gw := newTestService(t)
	router := svc.Router()

	cred, err := ledger.NewCredential()
	require.NoError(t, err)
	gw.SetBalance(cred.Address, 12_500_000)

	rec := postJSON(t, router, "/wallets/balance-usd", map[string]string{
		"public_key": cred.PublicKey,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, cred.Address, body["address"])
	require.InDelta(t, 12_500_000, body["balance_drops"].(float64), 0.1)
	require.InDelta(t, 25.0, body["balance_usd"].(float64), 0.001)

	// Undecodable public keys report zero instead of erroring.
	rec = postJSON(t, router, "/wallets/balance-usd", map[string]string{
		"public_key": "not hex",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Nil(t, body["address"])
	require.Zero(t, body["balance_usd"].(float64))

	// Unreachable ledger reads as zero too.
	gw.Unreachable = true
	rec = postJSON(t, router, "/wallets/balance-usd", map[string]string{
		"public_key": cred.PublicKey,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Zero(t, body["balance_usd"].(float64))
}

func TestNGORoutesRequireAuth(t *testing.T) {
	svc, _ := newTestService(t)
	router := svc.Router()

	for _, path := range []string{"/ngo/me", "/ngo/dashboard/stats", "/ngo/recipients"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "path %s", path)
	}

	req := httptest.NewRequest(http.MethodGet, "/ngo/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCredentialLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	router := svc.Router()

	rec := postJSON(t, router, "/credentials/issue", map[string]interface{}{
		"issuer_did":  "did:web:relief.example",
		"subject_id":  "rec-1",
		"role":        "Recipient",
		"ttl_minutes": 30,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var issued struct {
		CredentialID string `json:"credential_id"`
		JWT          string `json:"jwt"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	require.NotEmpty(t, issued.JWT)

	rec = postJSON(t, router, "/credentials/verify", map[string]string{"jwt": issued.JWT})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/credentials/revoke", map[string]string{
		"credential_id": issued.CredentialID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/credentials/verify", map[string]string{"jwt": issued.JWT})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Missing issuer is rejected, garbage tokens are malformed.
	rec = postJSON(t, router, "/credentials/issue", map[string]string{"role": "Recipient"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = postJSON(t, router, "/credentials/verify", map[string]string{"jwt": "nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRedeemValidation(t *testing.T) {
	svc, _ := newTestService(t)
	router := svc.Router()

	// Missing identifiers are rejected before touching engine or store.
	rec := postJSON(t, router, "/redeem", map[string]interface{}{
		"amount_minor": 100,
		"currency":     "USD",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
