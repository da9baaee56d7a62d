// Package store is the Postgres data-access layer. Every method is one
// statement; no cross-call transactional guarantee is assumed. The
// recipient balance column is guarded by a version counter checked at
// write time.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/peterson-htn252/HTN252/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("version conflict")
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- Accounts ---

func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (
			account_id, account_type, status, name, email, password_hash,
			ngo_id, goal, lifetime_donations, description,
			public_key, private_key, address
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.AccountID, a.AccountType, a.Status, a.Name, a.Email, a.PasswordHash,
		a.NGOID, a.Goal, a.LifetimeDonations, a.Description,
		a.PublicKey, a.PrivateKey, a.Address)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, `
		SELECT account_id, account_type, status, name, email, password_hash,
		       ngo_id, goal, lifetime_donations, description,
		       public_key, private_key, address, created_at
		FROM accounts WHERE account_id = $1`, accountID))
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, `
		SELECT account_id, account_type, status, name, email, password_hash,
		       ngo_id, goal, lifetime_donations, description,
		       public_key, private_key, address, created_at
		FROM accounts WHERE email = $1`, email))
}

func (s *Store) scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	var ngoID, description sql.NullString
	err := row.Scan(&a.AccountID, &a.AccountType, &a.Status, &a.Name, &a.Email, &a.PasswordHash,
		&ngoID, &a.Goal, &a.LifetimeDonations, &description,
		&a.PublicKey, &a.PrivateKey, &a.Address, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.NGOID = ngoID.String
	a.Description = description.String
	return &a, nil
}

func (s *Store) ListNGOAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id, name, description, goal, status, lifetime_donations, public_key, address, created_at
		FROM accounts WHERE account_type = 'NGO' ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		var description sql.NullString
		if err := rows.Scan(&a.AccountID, &a.Name, &description, &a.Goal, &a.Status,
			&a.LifetimeDonations, &a.PublicKey, &a.Address, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.AccountType = "NGO"
		a.Description = description.String
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// IncrementLifetimeDonations adds to the monotonically non-decreasing
// donation counter. Amounts are minor units and must be positive.
func (s *Store) IncrementLifetimeDonations(ctx context.Context, accountID string, amountMinor int64) error {
	if amountMinor <= 0 {
		return errors.New("donation amount must be positive")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET lifetime_donations = lifetime_donations + $1
		WHERE account_id = $2`, amountMinor, accountID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Recipients ---

func (s *Store) CreateRecipient(ctx context.Context, r *models.Recipient) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recipients (
			recipient_id, ngo_id, name, location, status, balance, version,
			public_key, private_key, address
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.RecipientID, r.NGOID, r.Name, r.Location, r.Status, r.Balance, r.Version,
		r.PublicKey, r.PrivateKey, r.Address)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *Store) GetRecipient(ctx context.Context, recipientID string) (*models.Recipient, error) {
	return s.scanRecipient(s.db.QueryRowContext(ctx, `
		SELECT recipient_id, ngo_id, name, location, status, balance, version,
		       public_key, private_key, address, created_at
		FROM recipients WHERE recipient_id = $1`, recipientID))
}

// GetRecipientForNGO resolves a recipient scoped to its owning NGO.
// A recipient owned by another NGO reads as not found.
func (s *Store) GetRecipientForNGO(ctx context.Context, recipientID, ngoID string) (*models.Recipient, error) {
	return s.scanRecipient(s.db.QueryRowContext(ctx, `
		SELECT recipient_id, ngo_id, name, location, status, balance, version,
		       public_key, private_key, address, created_at
		FROM recipients WHERE recipient_id = $1 AND ngo_id = $2`, recipientID, ngoID))
}

func (s *Store) scanRecipient(row *sql.Row) (*models.Recipient, error) {
	var r models.Recipient
	var balance string
	err := row.Scan(&r.RecipientID, &r.NGOID, &r.Name, &r.Location, &r.Status, &balance, &r.Version,
		&r.PublicKey, &r.PrivateKey, &r.Address, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListRecipients(ctx context.Context, ngoID, search string) ([]models.Recipient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT recipient_id, ngo_id, name, location, status, balance, version,
		       public_key, private_key, address, created_at
		FROM recipients WHERE ngo_id = $1 ORDER BY created_at DESC`, ngoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	search = strings.ToLower(search)
	var recipients []models.Recipient
	for rows.Next() {
		var r models.Recipient
		var balance string
		if err := rows.Scan(&r.RecipientID, &r.NGOID, &r.Name, &r.Location, &r.Status, &balance, &r.Version,
			&r.PublicKey, &r.PrivateKey, &r.Address, &r.CreatedAt); err != nil {
			return nil, err
		}
		if r.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, err
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.Name), search) &&
			!strings.Contains(strings.ToLower(r.Location), search) {
			continue
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}

func (s *Store) UpdateRecipientFields(ctx context.Context, recipientID, ngoID string, upd models.RecipientUpdate) error {
	sets := []string{}
	args := []interface{}{}
	i := 1
	if upd.Name != nil {
		sets = append(sets, "name = $"+strconv.Itoa(i))
		args = append(args, *upd.Name)
		i++
	}
	if upd.Location != nil {
		sets = append(sets, "location = $"+strconv.Itoa(i))
		args = append(args, *upd.Location)
		i++
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, recipientID, ngoID)
	query := "UPDATE recipients SET " + strings.Join(sets, ", ") +
		" WHERE recipient_id = $" + strconv.Itoa(i) + " AND ngo_id = $" + strconv.Itoa(i+1)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRecipientBalance writes a new balance only if the row still carries
// the version the caller read. A concurrent write surfaces as ErrConflict.
func (s *Store) UpdateRecipientBalance(ctx context.Context, recipientID string, version int64, balance decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE recipients SET balance = $1, version = version + 1
		WHERE recipient_id = $2 AND version = $3`,
		balance, recipientID, version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Distinguish a stale version from a missing row.
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT 1 FROM recipients WHERE recipient_id = $1", recipientID).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (s *Store) CountActiveRecipients(ctx context.Context, ngoID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM recipients WHERE ngo_id = $1 AND status = 'active'", ngoID).Scan(&count)
	return count, err
}

// --- Payouts and movements ---

func (s *Store) CreatePayout(ctx context.Context, p *models.Payout) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payouts (
			payout_id, ngo_id, store_id, program_id, voucher_id,
			amount_minor, currency, quote_id, tx_hash, idempotency_key, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.PayoutID, p.NGOID, p.StoreID, p.ProgramID, p.VoucherID,
		p.AmountMinor, p.Currency, p.QuoteID, p.TxHash, p.IdempotencyKey, p.Status)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// UpdatePayout transitions a payout's status, attaching the transaction hash
// once the ledger submission settles. An empty txHash leaves the stored hash
// untouched.
func (s *Store) UpdatePayout(ctx context.Context, payoutID, status, txHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payouts SET status = $1,
			tx_hash = CASE WHEN $2 <> '' THEN $2 ELSE tx_hash END
		WHERE payout_id = $3`, status, txHash, payoutID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const payoutColumns = `payout_id, ngo_id, store_id, program_id, voucher_id,
	amount_minor, currency, quote_id, tx_hash, idempotency_key, status, created_at`

func scanPayoutRows(rows *sql.Rows) ([]models.Payout, error) {
	defer rows.Close()

	var payouts []models.Payout
	for rows.Next() {
		var p models.Payout
		var ngoID, storeID, programID, voucherID, quoteID sql.NullString
		if err := rows.Scan(&p.PayoutID, &ngoID, &storeID, &programID, &voucherID,
			&p.AmountMinor, &p.Currency, &quoteID, &p.TxHash, &p.IdempotencyKey, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.NGOID = ngoID.String
		p.StoreID = storeID.String
		p.ProgramID = programID.String
		p.VoucherID = voucherID.String
		p.QuoteID = quoteID.String
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}

func (s *Store) ListPayoutsByStore(ctx context.Context, storeID string) ([]models.Payout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+payoutColumns+`
		FROM payouts WHERE store_id = $1 ORDER BY created_at DESC`, storeID)
	if err != nil {
		return nil, err
	}
	return scanPayoutRows(rows)
}

func (s *Store) ListRecentPayouts(ctx context.Context, limit int) ([]models.Payout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+payoutColumns+`
		FROM payouts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanPayoutRows(rows)
}

func (s *Store) GetPayout(ctx context.Context, payoutID string) (*models.Payout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+payoutColumns+`
		FROM payouts WHERE payout_id = $1`, payoutID)
	if err != nil {
		return nil, err
	}
	return firstPayout(rows)
}

// GetPayoutByTxHash resolves a payout from its ledger transaction hash,
// case-insensitively, since callers paste hashes from explorers.
func (s *Store) GetPayoutByTxHash(ctx context.Context, txHash string) (*models.Payout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+payoutColumns+`
		FROM payouts WHERE UPPER(tx_hash) = UPPER($1) LIMIT 1`, txHash)
	if err != nil {
		return nil, err
	}
	return firstPayout(rows)
}

func firstPayout(rows *sql.Rows) (*models.Payout, error) {
	payouts, err := scanPayoutRows(rows)
	if err != nil {
		return nil, err
	}
	if len(payouts) == 0 {
		return nil, ErrNotFound
	}
	return &payouts[0], nil
}

// NGOExpenses sums settled payout amounts for an NGO, in minor units.
func (s *Store) NGOExpenses(ctx context.Context, ngoID string) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(amount_minor) FROM payouts
		WHERE ngo_id = $1 AND status IN ('paid', 'completed')`, ngoID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}

func (s *Store) CreateMovement(ctx context.Context, m *models.Movement) error {
	memos, err := json.Marshal(m.Memos)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO movements (tx_hash, address, ngo_id, direction, delivered_drops, memos)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.TxHash, m.Address, m.NGOID, m.Direction, m.DeliveredDrops, memos)
	return err
}

const movementColumns = `tx_hash, address, ngo_id, direction, delivered_drops, memos, created_at`

func scanMovementRows(rows *sql.Rows) ([]models.Movement, error) {
	defer rows.Close()

	var moves []models.Movement
	for rows.Next() {
		var m models.Movement
		var ngoID sql.NullString
		var memos []byte
		if err := rows.Scan(&m.TxHash, &m.Address, &ngoID, &m.Direction, &m.DeliveredDrops, &memos, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.NGOID = ngoID.String
		if len(memos) > 0 {
			if err := json.Unmarshal(memos, &m.Memos); err != nil {
				return nil, err
			}
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

func (s *Store) ListRecentMovements(ctx context.Context, limit int) ([]models.Movement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+movementColumns+`
		FROM movements ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanMovementRows(rows)
}

func (s *Store) GetMovementByTxHash(ctx context.Context, txHash string) (*models.Movement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+movementColumns+`
		FROM movements WHERE UPPER(tx_hash) = UPPER($1) LIMIT 1`, txHash)
	if err != nil {
		return nil, err
	}
	moves, err := scanMovementRows(rows)
	if err != nil {
		return nil, err
	}
	if len(moves) == 0 {
		return nil, ErrNotFound
	}
	return &moves[0], nil
}

// --- Store payout methods ---

func (s *Store) UpsertStorePayoutMethod(ctx context.Context, m *models.StorePayoutMethod) error {
	detail, err := json.Marshal(m.Detail)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO store_payout_methods (store_id, method, currency, detail, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (store_id) DO UPDATE SET
			method = EXCLUDED.method,
			currency = EXCLUDED.currency,
			detail = EXCLUDED.detail,
			updated_at = NOW()`,
		m.StoreID, m.Method, m.Currency, detail)
	return err
}

// --- Linked wallets ---

func (s *Store) CreateWallet(ctx context.Context, w *models.Wallet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (wallet_id, owner_account_id, role, address, custody, network, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.WalletID, w.OwnerAccountID, w.Role, w.Address, w.Custody, w.Network, w.Status)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// --- Donations ---

func (s *Store) CreateDonation(ctx context.Context, d *models.Donation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donations (donation_id, ngo_id, program_id, donor_email, amount_minor, currency, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.DonationID, d.NGOID, d.ProgramID, d.DonorEmail, d.AmountMinor, d.Currency, d.TxHash)
	return err
}

// --- Face maps ---

func (s *Store) CreateFaceMap(ctx context.Context, f *models.FaceMap) error {
	embedding, err := json.Marshal(f.Embedding)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO face_maps (face_id, account_id, ngo_id, embedding, model, frames_used)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		f.FaceID, f.AccountID, f.NGOID, embedding, f.Model, f.FramesUsed)
	return err
}

func (s *Store) ListFaceMapsByNGO(ctx context.Context, ngoID string) ([]models.FaceMap, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT face_id, account_id, ngo_id, embedding, model, frames_used, created_at
		FROM face_maps WHERE ngo_id = $1`, ngoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var maps []models.FaceMap
	for rows.Next() {
		var f models.FaceMap
		var embedding []byte
		if err := rows.Scan(&f.FaceID, &f.AccountID, &f.NGOID, &embedding, &f.Model, &f.FramesUsed, &f.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(embedding, &f.Embedding); err != nil {
			return nil, err
		}
		maps = append(maps, f)
	}
	return maps, rows.Err()
}

// --- Verifiable credentials ---

func (s *Store) CreateCredential(ctx context.Context, c *models.IssuedCredential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (credential_id, issuer_did, role, jwt, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.CredentialID, c.IssuerDID, c.Role, c.JWT, c.Status, c.ExpiresAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// RevokeCredential is idempotent: revoking an already-revoked or unknown
// credential id records the revocation either way.
func (s *Store) RevokeCredential(ctx context.Context, credentialID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credential_revocations (credential_id) VALUES ($1)
		ON CONFLICT (credential_id) DO NOTHING`, credentialID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE credentials SET status = 'revoked' WHERE credential_id = $1", credentialID)
	return err
}

func (s *Store) IsCredentialRevoked(ctx context.Context, credentialID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM credential_revocations WHERE credential_id = $1)",
		credentialID).Scan(&exists)
	return exists, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
