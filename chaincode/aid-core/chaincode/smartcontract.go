package chaincode

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// issuerMSP is the only organization allowed to mint value.
const issuerMSP = "ReliefRootMSP"

// Account is one wallet's on-ledger state, keyed by its address.
type Account struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"` // drops
}

// Transaction is the append-only record written for every movement.
type Transaction struct {
	ID        string `json:"id"`
	Type      string `json:"type"` // Mint, Transfer
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    int64  `json:"amount"`
	Memos     string `json:"memos,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// SmartContract manages aid token accounts.
type SmartContract struct {
	contractapi.Contract
}

func (s *SmartContract) InitLedger(ctx contractapi.TransactionContextInterface) error {
	return nil
}

// Issue mints drops to an address, creating the account on first use. Only
// the issuing organization may call it.
func (s *SmartContract) Issue(ctx contractapi.TransactionContextInterface, toAddress string, dropsStr string, memoJSON string) (string, error) {
	mspID, err := ctx.GetClientIdentity().GetMSPID()
	if err != nil {
		return "", fmt.Errorf("failed to get MSP ID: %v", err)
	}
	if mspID != issuerMSP {
		return "", fmt.Errorf("unauthorized: only %s can issue", issuerMSP)
	}

	drops, err := strconv.ParseInt(dropsStr, 10, 64)
	if err != nil || drops <= 0 {
		return "", fmt.Errorf("amount must be a positive integer")
	}

	account, err := s.loadOrCreate(ctx, toAddress)
	if err != nil {
		return "", err
	}
	account.Balance += drops
	if err := s.save(ctx, account); err != nil {
		return "", err
	}

	return s.record(ctx, Transaction{
		Type:   "Mint",
		From:   issuerMSP,
		To:     toAddress,
		Amount: drops,
		Memos:  memoJSON,
	})
}

// Transfer moves drops between addresses. The sender proves control of the
// source address with an ed25519 signature over "from:to:drops"; the source
// address must derive from the signing key.
func (s *SmartContract) Transfer(ctx contractapi.TransactionContextInterface, fromAddress, toAddress, dropsStr, memoJSON, publicKeyHex, signatureHex string) (string, error) {
	drops, err := strconv.ParseInt(dropsStr, 10, 64)
	if err != nil || drops <= 0 {
		return "", fmt.Errorf("amount must be a positive integer")
	}
	if fromAddress == toAddress {
		return "", fmt.Errorf("sender and destination are the same address")
	}

	if err := verifySender(fromAddress, toAddress, drops, publicKeyHex, signatureHex); err != nil {
		return "", err
	}

	sender, err := s.load(ctx, fromAddress)
	if err != nil {
		return "", err
	}
	if sender.Balance < drops {
		return "", fmt.Errorf("insufficient funds")
	}

	receiver, err := s.loadOrCreate(ctx, toAddress)
	if err != nil {
		return "", err
	}

	sender.Balance -= drops
	receiver.Balance += drops
	if err := s.save(ctx, sender); err != nil {
		return "", err
	}
	if err := s.save(ctx, receiver); err != nil {
		return "", err
	}

	tx := Transaction{
		Type:   "Transfer",
		From:   fromAddress,
		To:     toAddress,
		Amount: drops,
		Memos:  memoJSON,
	}
	txID, err := s.record(ctx, tx)
	if err != nil {
		return "", err
	}

	eventBytes, _ := json.Marshal(tx)
	ctx.GetStub().SetEvent("TransferEvent", eventBytes)

	return txID, nil
}

// BalanceOf reports an address's balance in drops. Unknown addresses read
// as zero.
func (s *SmartContract) BalanceOf(ctx contractapi.TransactionContextInterface, address string) (string, error) {
	raw, err := ctx.GetStub().GetState(address)
	if err != nil {
		return "", fmt.Errorf("failed to read account: %v", err)
	}
	var balance int64
	if raw != nil {
		var account Account
		if err := json.Unmarshal(raw, &account); err != nil {
			return "", err
		}
		balance = account.Balance
	}
	out, _ := json.Marshal(map[string]int64{"balance": balance})
	return string(out), nil
}

func verifySender(from, to string, drops int64, publicKeyHex, signatureHex string) error {
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid public key")
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return fmt.Errorf("invalid signature encoding")
	}

	sum := sha256.Sum256(pub)
	if from != "w"+hex.EncodeToString(sum[:20]) {
		return fmt.Errorf("sender address does not match signing key")
	}

	payload := fmt.Sprintf("%s:%s:%d", from, to, drops)
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(payload), sig) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

func (s *SmartContract) load(ctx contractapi.TransactionContextInterface, address string) (*Account, error) {
	raw, err := ctx.GetStub().GetState(address)
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %v", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("account %s does not exist", address)
	}
	var account Account
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *SmartContract) loadOrCreate(ctx contractapi.TransactionContextInterface, address string) (*Account, error) {
	raw, err := ctx.GetStub().GetState(address)
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %v", err)
	}
	if raw == nil {
		return &Account{Address: address}, nil
	}
	var account Account
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *SmartContract) save(ctx contractapi.TransactionContextInterface, account *Account) error {
	raw, err := json.Marshal(account)
	if err != nil {
		return err
	}
	return ctx.GetStub().PutState(account.Address, raw)
}

// record writes the transaction row and returns the response envelope the
// backend gateway expects.
func (s *SmartContract) record(ctx contractapi.TransactionContextInterface, tx Transaction) (string, error) {
	tx.ID = ctx.GetStub().GetTxID()
	tx.Timestamp = time.Now().Unix()

	raw, err := json.Marshal(tx)
	if err != nil {
		return "", err
	}
	if err := ctx.GetStub().PutState("TX_"+tx.ID, raw); err != nil {
		return "", err
	}

	out, _ := json.Marshal(map[string]string{"tx_id": tx.ID})
	return string(out), nil
}
