package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "veritag/pkg/domain"
	"veritag/pkg/platform/sentinel"
)

func newTestCertificate() *Certificate {
	return &Certificate{
		InternalID: id.NewCertificateID(),
		PublicID:   "VT-2026-AAAAAAAAAA",
		OwnerRef:   id.NewAccountID(),
		Product:    ProductInfo{Brand: "Aurelia", Model: "Classic 36", Category: "watch"},
		Verification: VerificationRecord{
			Status:     StatusVerified,
			Confidence: 0.91,
			VerifiedAt: time.Now(),
		},
		Token: TokenBinding{TokenID: "tok-1", TxRef: "tx-1", Contract: "0xabc", Network: "testnet"},
	}
}

func TestRotate(t *testing.T) {
	t.Run("replaces identity and appends history", func(t *testing.T) {
		cert := newTestCertificate()
		oldPublicID := cert.PublicID
		oldOwner := cert.OwnerRef
		newOwner := id.NewAccountID()
		now := time.Now()

		err := cert.Rotate("VT-2026-BBBBBBBBBB", newOwner, TokenBinding{TokenID: "tok-2", TxRef: "tx-2"}, now)
		require.NoError(t, err)

		assert.Equal(t, "VT-2026-BBBBBBBBBB", cert.PublicID)
		assert.Equal(t, newOwner, cert.OwnerRef)
		assert.Equal(t, "tok-2", cert.Token.TokenID)

		require.Len(t, cert.History, 1)
		assert.Equal(t, oldPublicID, cert.History[0].PrevPublicID)
		assert.Equal(t, oldOwner, cert.History[0].PrevOwnerRef)
		assert.Equal(t, "tx-2", cert.History[0].LedgerRef)
	})

	t.Run("history only grows", func(t *testing.T) {
		cert := newTestCertificate()
		for i := range 3 {
			err := cert.Rotate("VT-2026-CCCCCCCCC"+string(rune('A'+i)), id.NewAccountID(),
				TokenBinding{TokenID: "tok", TxRef: "tx"}, time.Now())
			require.NoError(t, err)
			assert.Len(t, cert.History, i+1)
		}
	})

	t.Run("burned certificate cannot rotate", func(t *testing.T) {
		cert := newTestCertificate()
		require.NoError(t, cert.MarkBurned("tx-burn", time.Now()))

		err := cert.Rotate("VT-2026-DDDDDDDDDD", id.NewAccountID(), TokenBinding{}, time.Now())
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})
}

func TestMarkBurned(t *testing.T) {
	t.Run("is terminal", func(t *testing.T) {
		cert := newTestCertificate()
		require.NoError(t, cert.MarkBurned("tx-burn", time.Now()))
		assert.True(t, cert.IsBurned())

		err := cert.MarkBurned("tx-again", time.Now())
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})

	t.Run("records the final identity in history", func(t *testing.T) {
		cert := newTestCertificate()
		publicID := cert.PublicID
		require.NoError(t, cert.MarkBurned("tx-burn", time.Now()))
		require.Len(t, cert.History, 1)
		assert.Equal(t, publicID, cert.History[0].PrevPublicID)
	})
}

func TestIsMinted(t *testing.T) {
	cert := newTestCertificate()
	assert.True(t, cert.IsMinted())
	cert.Token = TokenBinding{}
	assert.False(t, cert.IsMinted())
}

func TestClone(t *testing.T) {
	cert := newTestCertificate()
	require.NoError(t, cert.Rotate("VT-2026-EEEEEEEEEE", id.NewAccountID(),
		TokenBinding{TokenID: "tok-2", TxRef: "tx-2"}, time.Now()))

	clone := cert.Clone()
	clone.PublicID = "VT-2026-FFFFFFFFFF"
	clone.History = append(clone.History, HistoryEntry{PrevPublicID: "mutated"})

	assert.Equal(t, "VT-2026-EEEEEEEEEE", cert.PublicID)
	assert.Len(t, cert.History, 1, "clone mutation must not alias the original history")
}
