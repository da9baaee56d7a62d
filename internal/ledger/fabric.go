package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	fabconfig "github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/gateway"

	"github.com/peterson-htn252/HTN252/internal/config"
)

// FabricGateway submits transfers to the aid-core chaincode through the
// Fabric gateway. It satisfies Gateway.
type FabricGateway struct {
	gw       *gateway.Gateway
	contract *gateway.Contract
	timeout  time.Duration
}

// Connect opens the Fabric gateway connection described by cfg.
func Connect(cfg config.LedgerConfig) (*FabricGateway, error) {
	wallet, err := gateway.NewFileSystemWallet("wallet")
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %v", err)
	}

	if !wallet.Exists("appUser") {
		if err := populateWallet(wallet, cfg.MSPID, cfg.CertPath, cfg.KeyPath); err != nil {
			return nil, fmt.Errorf("failed to populate wallet: %v", err)
		}
	}

	gw, err := gateway.Connect(
		gateway.WithConfig(fabconfig.FromFile(filepath.Clean(cfg.ConfigPath))),
		gateway.WithIdentity(wallet, "appUser"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gateway: %v", err)
	}

	network, err := gw.GetNetwork(cfg.Channel)
	if err != nil {
		gw.Close()
		return nil, fmt.Errorf("failed to get network: %v", err)
	}

	timeout := time.Duration(cfg.SubmitWaitS) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &FabricGateway{
		gw:       gw,
		contract: network.GetContract(cfg.Contract),
		timeout:  timeout,
	}, nil
}

func (g *FabricGateway) Close() {
	g.gw.Close()
}

// submitResult is the chaincode response envelope. A missing tx id means
// the transfer did not happen, regardless of the error value.
type submitResult struct {
	TxID string `json:"tx_id"`
}

func (g *FabricGateway) SubmitTransfer(ctx context.Context, sender Credential, destination string, drops int64, memos []Memo) (string, error) {
	if !sender.Complete() {
		return "", &SubmissionError{Err: ErrMissingKeys}
	}

	payload := fmt.Sprintf("%s:%s:%d", sender.Address, destination, drops)
	sig, err := sender.Sign([]byte(payload))
	if err != nil {
		return "", &SubmissionError{Err: err}
	}

	memoJSON, err := json.Marshal(memos)
	if err != nil {
		return "", &SubmissionError{Err: err}
	}

	return g.submit(ctx, "Transfer",
		sender.Address, destination, strconv.FormatInt(drops, 10),
		string(memoJSON), sender.PublicKey, sig)
}

func (g *FabricGateway) Issue(ctx context.Context, destination string, drops int64, memos []Memo) (string, error) {
	memoJSON, err := json.Marshal(memos)
	if err != nil {
		return "", &SubmissionError{Err: err}
	}
	return g.submit(ctx, "Issue", destination, strconv.FormatInt(drops, 10), string(memoJSON))
}

func (g *FabricGateway) GetBalance(ctx context.Context, address string) (int64, error) {
	type evalResult struct {
		raw []byte
		err error
	}
	done := make(chan evalResult, 1)
	go func() {
		raw, err := g.contract.EvaluateTransaction("BalanceOf", address)
		done <- evalResult{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, ErrUnreachable
	case res := <-done:
		if res.err != nil {
			return 0, ErrUnreachable
		}
		var out struct {
			Balance int64 `json:"balance"`
		}
		if err := json.Unmarshal(res.raw, &out); err != nil {
			return 0, ErrUnreachable
		}
		return out.Balance, nil
	}
}

// submit runs a chaincode submission under the gateway timeout. The SDK call
// is not cancellable; on deadline the goroutine is abandoned and the result
// discarded, so callers must treat a timeout as "outcome unknown" and never
// blindly retry.
func (g *FabricGateway) submit(ctx context.Context, fn string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type txResult struct {
		raw []byte
		err error
	}
	done := make(chan txResult, 1)
	go func() {
		raw, err := g.contract.SubmitTransaction(fn, args...)
		done <- txResult{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", &SubmissionError{Err: ctx.Err()}
	case res := <-done:
		if res.err != nil {
			return "", &SubmissionError{Err: res.err}
		}
		var out submitResult
		if err := json.Unmarshal(res.raw, &out); err != nil {
			return "", &SubmissionError{Err: fmt.Errorf("unparsable chaincode response: %v", err)}
		}
		if out.TxID == "" {
			return "", &SubmissionError{Err: fmt.Errorf("submission returned no transaction id")}
		}
		return out.TxID, nil
	}
}

func populateWallet(wallet *gateway.Wallet, mspID, certPath, keyPath string) error {
	cert, err := os.ReadFile(filepath.Clean(certPath))
	if err != nil {
		return err
	}

	key, err := os.ReadFile(filepath.Clean(keyPath))
	if err != nil {
		return err
	}

	identity := gateway.NewX509Identity(mspID, string(cert), string(key))

	return wallet.Put("appUser", identity)
}
