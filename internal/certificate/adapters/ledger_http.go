// Package adapters holds outbound clients for the certificate lifecycle's
// external collaborators.
package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"veritag/internal/certificate/ports"
	"veritag/internal/platform/config"
	id "veritag/pkg/domain"
	"veritag/pkg/platform/circuit"
	"veritag/pkg/platform/sentinel"
)

// LedgerClient talks to the token-issuance service over HTTP. Every call is a
// single attempt bounded by the configured timeout; any transport failure or
// non-2xx status surfaces as sentinel.ErrUnavailable so the lifecycle service
// can map it to a 503 without inspecting transport details. A circuit breaker
// fails calls fast while the ledger is known to be down.
type LedgerClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

var _ ports.Ledger = (*LedgerClient)(nil)

// NewLedgerClient builds a ledger adapter from collaborator config.
func NewLedgerClient(cfg config.CollaboratorConfig, logger *slog.Logger) *LedgerClient {
	return &LedgerClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    circuit.New("ledger"),
		logger:     logger,
	}
}

type mintRequest struct {
	OwnerRef string            `json:"owner_ref"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type transferRequest struct {
	TokenID  string            `json:"token_id"`
	OwnerRef string            `json:"owner_ref"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type burnRequest struct {
	TokenID string `json:"token_id"`
}

type receiptResponse struct {
	TokenID  string `json:"token_id"`
	TxRef    string `json:"tx_ref"`
	Contract string `json:"contract"`
	Network  string `json:"network"`
}

func (c *LedgerClient) Mint(ctx context.Context, ownerRef id.AccountID, metadata map[string]string) (ports.MintReceipt, error) {
	var out receiptResponse
	err := c.post(ctx, "/v1/tokens/mint", mintRequest{OwnerRef: ownerRef.String(), Metadata: metadata}, &out)
	if err != nil {
		return ports.MintReceipt{}, err
	}
	return ports.MintReceipt{TokenID: out.TokenID, TxRef: out.TxRef, Contract: out.Contract, Network: out.Network}, nil
}

func (c *LedgerClient) Transfer(ctx context.Context, oldTokenID string, newOwnerRef id.AccountID, metadata map[string]string) (ports.MintReceipt, error) {
	var out receiptResponse
	err := c.post(ctx, "/v1/tokens/transfer", transferRequest{
		TokenID:  oldTokenID,
		OwnerRef: newOwnerRef.String(),
		Metadata: metadata,
	}, &out)
	if err != nil {
		return ports.MintReceipt{}, err
	}
	return ports.MintReceipt{TokenID: out.TokenID, TxRef: out.TxRef, Contract: out.Contract, Network: out.Network}, nil
}

func (c *LedgerClient) Burn(ctx context.Context, tokenID string) (ports.BurnReceipt, error) {
	var out receiptResponse
	if err := c.post(ctx, "/v1/tokens/burn", burnRequest{TokenID: tokenID}, &out); err != nil {
		return ports.BurnReceipt{}, err
	}
	return ports.BurnReceipt{TxRef: out.TxRef}, nil
}

func (c *LedgerClient) post(ctx context.Context, path string, payload, out any) error {
	if c.breaker.IsOpen() {
		return fmt.Errorf("ledger circuit open: %w", sentinel.ErrUnavailable)
	}
	err := c.doPost(ctx, path, payload, out)
	if err != nil && errors.Is(err, sentinel.ErrUnavailable) {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.Warn("ledger circuit opened", "path", path)
		}
		return err
	}
	if err == nil {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.Info("ledger circuit closed")
		}
	}
	return err
}

func (c *LedgerClient) doPost(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode ledger request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build ledger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ledger call failed", "path", path, "error", err)
		return fmt.Errorf("ledger %s: %v: %w", path, err, sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.logger.Error("ledger returned error status", "path", path, "status", resp.StatusCode)
		return fmt.Errorf("ledger %s returned status %d: %w", path, resp.StatusCode, sentinel.ErrUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode ledger response: %v: %w", err, sentinel.ErrUnavailable)
	}
	return nil
}
