// Package ledgertest provides a configurable in-memory ledger for tests.
package ledgertest

import (
	"context"
	"fmt"
	"sync"

	"veritag/internal/certificate/ports"
	id "veritag/pkg/domain"
	"veritag/pkg/platform/sentinel"
)

// Fake implements ports.Ledger with deterministic receipts and optional
// failure injection. Safe for concurrent use.
type Fake struct {
	mu sync.Mutex

	seq int

	// FailMint, FailTransfer and FailBurn make the corresponding call return
	// an error wrapping sentinel.ErrUnavailable.
	FailMint     bool
	FailTransfer bool
	FailBurn     bool

	MintCalls     int
	TransferCalls int
	BurnCalls     int

	// Burned records every token id passed to Burn.
	Burned []string
}

var _ ports.Ledger = (*Fake)(nil)

// New returns an empty fake ledger.
func New() *Fake {
	return &Fake{}
}

func (f *Fake) Mint(_ context.Context, _ id.AccountID, _ map[string]string) (ports.MintReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MintCalls++
	if f.FailMint {
		return ports.MintReceipt{}, fmt.Errorf("fake ledger mint: %w", sentinel.ErrUnavailable)
	}
	return f.nextReceipt(), nil
}

func (f *Fake) Transfer(_ context.Context, _ string, _ id.AccountID, _ map[string]string) (ports.MintReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TransferCalls++
	if f.FailTransfer {
		return ports.MintReceipt{}, fmt.Errorf("fake ledger transfer: %w", sentinel.ErrUnavailable)
	}
	return f.nextReceipt(), nil
}

func (f *Fake) Burn(_ context.Context, tokenID string) (ports.BurnReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BurnCalls++
	if f.FailBurn {
		return ports.BurnReceipt{}, fmt.Errorf("fake ledger burn: %w", sentinel.ErrUnavailable)
	}
	f.Burned = append(f.Burned, tokenID)
	f.seq++
	return ports.BurnReceipt{TxRef: fmt.Sprintf("tx-%04d", f.seq)}, nil
}

func (f *Fake) nextReceipt() ports.MintReceipt {
	f.seq++
	return ports.MintReceipt{
		TokenID:  fmt.Sprintf("tok-%04d", f.seq),
		TxRef:    fmt.Sprintf("tx-%04d", f.seq),
		Contract: "0xfake",
		Network:  "testnet",
	}
}
