// Package ledger wraps the Hyperledger Fabric gateway that holds
// authoritative voucher state. Only the execution dispatcher talks to it.
package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/gateway"
)

// Error is a ledger failure. Retryable errors are transient (network,
// timeout, endorsement unavailability); fatal ones will not succeed on retry.
type Error struct {
	Fn        string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("ledger %s failed (%s): %v", e.Fn, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Client submits transactions to the voucher chaincode.
type Client interface {
	// Submit invokes a chaincode function and returns its payload.
	Submit(ctx context.Context, fn string, args ...string) ([]byte, error)
	// Evaluate runs a read-only query.
	Evaluate(ctx context.Context, fn string, args ...string) ([]byte, error)
	Close()
}

// Config locates the gateway connection profile and the client identity.
type Config struct {
	ConnectionProfile string
	Channel           string
	Chaincode         string
	MSPID             string
	CertPath          string
	KeyPath           string
	WalletDir         string
	Identity          string
}

type fabricClient struct {
	gw       *gateway.Gateway
	contract *gateway.Contract
}

// NewClient connects to the Fabric gateway described by cfg.
func NewClient(cfg Config) (Client, error) {
	wallet, err := gateway.NewFileSystemWallet(cfg.WalletDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	if !wallet.Exists(cfg.Identity) {
		if err := populateWallet(wallet, cfg); err != nil {
			return nil, fmt.Errorf("failed to populate wallet: %w", err)
		}
	}

	gw, err := gateway.Connect(
		gateway.WithConfig(config.FromFile(filepath.Clean(cfg.ConnectionProfile))),
		gateway.WithIdentity(wallet, cfg.Identity),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gateway: %w", err)
	}

	network, err := gw.GetNetwork(cfg.Channel)
	if err != nil {
		gw.Close()
		return nil, fmt.Errorf("failed to get network: %w", err)
	}

	return &fabricClient{
		gw:       gw,
		contract: network.GetContract(cfg.Chaincode),
	}, nil
}

func (c *fabricClient) Submit(ctx context.Context, fn string, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Fn: fn, Retryable: true, Err: err}
	}
	out, err := c.contract.SubmitTransaction(fn, args...)
	if err != nil {
		return nil, &Error{Fn: fn, Retryable: isTransient(err), Err: err}
	}
	return out, nil
}

func (c *fabricClient) Evaluate(ctx context.Context, fn string, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Fn: fn, Retryable: true, Err: err}
	}
	out, err := c.contract.EvaluateTransaction(fn, args...)
	if err != nil {
		return nil, &Error{Fn: fn, Retryable: isTransient(err), Err: err}
	}
	return out, nil
}

func (c *fabricClient) Close() { c.gw.Close() }

func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "timed out", "unavailable", "connection refused", "deadline exceeded"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func populateWallet(wallet *gateway.Wallet, cfg Config) error {
	cert, err := os.ReadFile(filepath.Clean(cfg.CertPath))
	if err != nil {
		return err
	}

	key, err := os.ReadFile(filepath.Clean(cfg.KeyPath))
	if err != nil {
		return err
	}

	identity := gateway.NewX509Identity(cfg.MSPID, string(cert), string(key))
	return wallet.Put(cfg.Identity, identity)
}
