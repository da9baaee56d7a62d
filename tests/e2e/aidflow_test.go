package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"
)

// End-to-end smoke test against a locally running stack: API on :8080 with
// Postgres and a funded ledger network behind it. Set E2E=1 to run.

const apiURL = "http://localhost:8080"

func TestAidDistributionFlow(t *testing.T) {
	if os.Getenv("E2E") == "" {
		t.Skip("set E2E=1 to run against a local stack")
	}

	// 1. Register an NGO account.
	email := fmt.Sprintf("ngo-%d@example.org", time.Now().Unix())
	token, ngoID := register(t, email)

	// 2. Create a recipient under it.
	recipientID := createRecipient(t, token, "Amara", "Freetown")

	// 3. Donor tops up the NGO wallet.
	donate(t, ngoID, 5000)

	// 4. Deposit $10 to the recipient.
	deposit(t, token, recipientID, 10)

	// 5. Verify the public balance endpoint agrees.
	if got := publicBalance(t, recipientID); got != 10 {
		t.Fatalf("expected balance 10, got %v", got)
	}
}

func register(t *testing.T, email string) (token, accountID string) {
	payload := map[string]interface{}{
		"account_type": "NGO",
		"name":         "Relief Root",
		"email":        email,
		"password":     "correct horse battery staple",
	}
	var out struct {
		AccessToken string `json:"access_token"`
		AccountID   string `json:"account_id"`
	}
	post(t, "/accounts/register", "", payload, http.StatusCreated, &out)
	if out.AccessToken == "" {
		t.Fatal("no access token returned")
	}
	return out.AccessToken, out.AccountID
}

func createRecipient(t *testing.T, token, name, location string) string {
	var out struct {
		RecipientID string `json:"recipient_id"`
	}
	post(t, "/ngo/recipients", token, map[string]string{
		"name":     name,
		"location": location,
	}, http.StatusCreated, &out)
	if out.RecipientID == "" {
		t.Fatal("no recipient id returned")
	}
	return out.RecipientID
}

func donate(t *testing.T, ngoID string, amountMinor int64) {
	post(t, "/donor/donations", "", map[string]interface{}{
		"ngo_id":       ngoID,
		"donor_email":  "donor@example.org",
		"amount_minor": amountMinor,
		"currency":     "USD",
	}, http.StatusOK, nil)
}

func deposit(t *testing.T, token, recipientID string, amount float64) {
	post(t, "/ngo/recipients/"+recipientID+"/balance", token, map[string]interface{}{
		"operation_type": "deposit",
		"amount":         amount,
	}, http.StatusOK, nil)
}

func publicBalance(t *testing.T, recipientID string) float64 {
	resp, err := http.Get(apiURL + "/recipients/" + recipientID + "/balance")
	if err != nil {
		t.Fatalf("balance request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("balance request returned %d", resp.StatusCode)
	}
	var out struct {
		Balance float64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	return out.Balance
}

func post(t *testing.T, path, token string, payload interface{}, wantStatus int, out interface{}) {
	t.Helper()
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, apiURL+path, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("POST %s returned %d, want %d", path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response from %s: %v", path, err)
		}
	}
}
