package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is an NGO or recipient login account. NGO accounts operate
// recipients and hold the program wallet that funds deposits.
type Account struct {
	AccountID         string    `json:"account_id"`
	AccountType       string    `json:"account_type"` // NGO, RECIPIENT
	Status            string    `json:"status"`       // active, blocked
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	NGOID             string    `json:"ngo_id,omitempty"`
	Goal              int64     `json:"goal"`               // fundraising goal, whole dollars
	LifetimeDonations int64     `json:"lifetime_donations"` // minor units, only ever incremented
	Description       string    `json:"description"`
	PublicKey         string    `json:"public_key"`
	PrivateKey        string    `json:"-"`
	Address           string    `json:"address"`
	CreatedAt         time.Time `json:"created_at"`
}

// Recipient is an aid beneficiary. Balance is the off-ledger bookkeeping
// figure; Version guards it against concurrent writes.
type Recipient struct {
	RecipientID string          `json:"recipient_id"`
	NGOID       string          `json:"ngo_id"`
	Name        string          `json:"name"`
	Location    string          `json:"location"`
	Status      string          `json:"status"` // active, inactive
	Balance     decimal.Decimal `json:"balance"`
	Version     int64           `json:"-"`
	PublicKey   string          `json:"public_key"`
	PrivateKey  string          `json:"-"`
	Address     string          `json:"address"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Payout is the immutable settlement record written once per value movement.
type Payout struct {
	PayoutID       string    `json:"payout_id"`
	NGOID          string    `json:"ngo_id,omitempty"`
	StoreID        string    `json:"store_id,omitempty"`
	ProgramID      string    `json:"program_id,omitempty"`
	VoucherID      string    `json:"voucher_id,omitempty"`
	AmountMinor    int64     `json:"amount_minor"`
	Currency       string    `json:"currency"`
	QuoteID        string    `json:"quote_id,omitempty"`
	TxHash         string    `json:"tx_hash"`
	IdempotencyKey string    `json:"idempotency_key"`
	Status         string    `json:"status"` // processing, paid, completed
	CreatedAt      time.Time `json:"created_at"`
}

// Movement mirrors one ledger transaction for the audit trail. Append-only.
type Movement struct {
	TxHash         string            `json:"tx_hash"`
	Address        string            `json:"address"`
	NGOID          string            `json:"ngo_id,omitempty"`
	Direction      string            `json:"direction"` // in, out
	DeliveredDrops int64             `json:"delivered_drops"`
	Memos          map[string]string `json:"memos,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

type StorePayoutMethod struct {
	StoreID   string            `json:"store_id"`
	Method    string            `json:"method"` // bank_transfer, mobile_money
	Currency  string            `json:"currency"`
	Detail    map[string]string `json:"detail"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Wallet is an externally held address linked to a recipient through the
// challenge flow. Custodial program wallets live on the account and
// recipient rows instead.
type Wallet struct {
	WalletID       string    `json:"wallet_id"`
	OwnerAccountID string    `json:"owner_account_id"`
	Role           string    `json:"role"`
	Address        string    `json:"address"`
	Custody        string    `json:"custody"` // custodial, non_custodial
	Network        string    `json:"network"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type Donation struct {
	DonationID  string    `json:"donation_id"`
	NGOID       string    `json:"ngo_id"`
	ProgramID   string    `json:"program_id,omitempty"`
	DonorEmail  string    `json:"donor_email"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	TxHash      string    `json:"tx_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// IssuedCredential is the stored record of one signed verifiable
// credential. The compact JWT is kept so issuers can re-fetch it.
type IssuedCredential struct {
	CredentialID string    `json:"credential_id"`
	IssuerDID    string    `json:"issuer_did"`
	Role         string    `json:"role"`
	JWT          string    `json:"jwt"`
	Status       string    `json:"status"` // active, revoked
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// FaceMap stores one enrolled face centroid for an account.
type FaceMap struct {
	FaceID     string    `json:"face_id"`
	AccountID  string    `json:"account_id"`
	NGOID      string    `json:"ngo_id"`
	Embedding  []float32 `json:"-"`
	Model      string    `json:"model"`
	FramesUsed int       `json:"frames_used"`
	CreatedAt  time.Time `json:"created_at"`
}

// --- Request/response bodies ---

type RegisterRequest struct {
	AccountType string `json:"account_type"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	NGOID       string `json:"ngo_id,omitempty"`
	Goal        int64  `json:"goal,omitempty"`
	Description string `json:"description,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	AccountID   string `json:"account_id"`
	AccountType string `json:"account_type"`
	Name        string `json:"name"`
	ExpiresAt   int64  `json:"expires_at"`
}

type RecipientCreate struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

type RecipientUpdate struct {
	Name     *string `json:"name,omitempty"`
	Location *string `json:"location,omitempty"`
}

type BalanceOperation struct {
	OperationType string  `json:"operation_type"` // deposit, withdraw
	Amount        float64 `json:"amount"`
	Description   string  `json:"description,omitempty"`
	ProgramID     string  `json:"program_id,omitempty"`
}

type BalanceOperationResponse struct {
	PreviousBalance float64 `json:"previous_balance"`
	NewBalance      float64 `json:"new_balance"`
	Operation       string  `json:"operation"`
	Amount          float64 `json:"amount"`
	TxHash          string  `json:"tx_hash"`
}

type QuoteRequest struct {
	FromCurrency string `json:"from_currency"`
	ToCurrency   string `json:"to_currency"`
	AmountMinor  int64  `json:"amount_minor"`
}

type RedeemRequest struct {
	VoucherID   string `json:"voucher_id"`
	StoreID     string `json:"store_id"`
	RecipientID string `json:"recipient_id"`
	ProgramID   string `json:"program_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

type StorePayoutBody struct {
	StoreID     string `json:"store_id"`
	ProgramID   string `json:"program_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

type WalletBalanceRequest struct {
	PublicKey string `json:"public_key"`
}

type WalletLinkStart struct {
	Address string `json:"address"`
}

type WalletLinkConfirm struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

type DonationRequest struct {
	NGOID       string `json:"ngo_id"`
	ProgramID   string `json:"program_id,omitempty"`
	DonorEmail  string `json:"donor_email"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

type CredentialIssueRequest struct {
	IssuerDID     string `json:"issuer_did"`
	SubjectID     string `json:"subject_id,omitempty"`
	SubjectWallet string `json:"subject_wallet,omitempty"`
	Role          string `json:"role"`
	ProgramID     string `json:"program_id,omitempty"`
	TTLMinutes    int    `json:"ttl_minutes,omitempty"`
}

type CredentialVerifyRequest struct {
	JWT string `json:"jwt"`
}

type CredentialRevokeRequest struct {
	CredentialID string `json:"credential_id"`
}

// TrackingSample is one recent distribution a donor page can offer as a
// tracking starting point.
type TrackingSample struct {
	DonationID   string    `json:"donationId"`
	BlockchainID string    `json:"blockchainId"`
	NGOID        string    `json:"ngoId"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// DonationTracking resolves a donor-facing tracking id to the underlying
// ledger movement.
type DonationTracking struct {
	DonationID   string  `json:"donationId"`
	BlockchainID string  `json:"blockchainId"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Program      string  `json:"program"`
	Status       string  `json:"status"`
	NGOID        string  `json:"ngoId"`
	NGOName      string  `json:"ngoName,omitempty"`
}

type DashboardStats struct {
	ActiveRecipients  int     `json:"active_recipients"`
	TotalExpenses     int64   `json:"total_expenses"`
	AvailableFunds    int64   `json:"available_funds"`
	LifetimeDonations int64   `json:"lifetime_donations"`
	Goal              int64   `json:"goal"`
	UtilizationRate   float64 `json:"utilization_rate"`
	LastUpdated       string  `json:"last_updated"`
}
