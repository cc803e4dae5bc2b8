// Package service orchestrates the certificate lifecycle: mint, transfer,
// burn and public reads. Handlers stay thin; stores stay pure I/O; the
// rotation and unlinkability rules live here and in the models.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"veritag/internal/certificate/models"
	"veritag/internal/certificate/ports"
	"veritag/internal/identifier"
	"veritag/internal/platform/metrics"
	id "veritag/pkg/domain"
	dErrors "veritag/pkg/domain-errors"
	"veritag/pkg/platform/audit"
	"veritag/pkg/platform/lock"
	"veritag/pkg/platform/sentinel"
	"veritag/pkg/requestcontext"
)

const lockKeyPrefix = "cert:"

// MintRequest asks for a ledger token to be bound to a certificate record.
// CertificateID identifies the underlying record so a repeated mint of the
// same certificate is answered idempotently instead of double-binding.
type MintRequest struct {
	CertificateID id.CertificateID
	OwnerRef      id.AccountID
	Product       models.ProductInfo
	Confidence    float64
}

// MintResult carries the post-mint state. AlreadyMinted reports that the
// certificate held a token before this call and nothing was changed.
type MintResult struct {
	Certificate   *models.Certificate
	AlreadyMinted bool
}

// BurnResult reports the terminal ledger reference.
type BurnResult struct {
	TxRef    string
	BurnedAt time.Time
}

// PublicCertificate is the read model handed to the response boundary. The
// display identifier is freshly generated on every read and is not
// resolvable; the stored public identifier never appears here.
type PublicCertificate struct {
	DisplayID    string
	Brand        string
	Model        string
	Category     string
	Status       string
	VerifiedDate string
	Confidence   float64
}

// Service implements the certificate lifecycle.
type Service struct {
	store   ports.Store
	ledger  ports.Ledger
	locker  lock.Locker
	ids     *identifier.Generator
	audit   ports.AuditPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	lockTTL time.Duration
	clock   func() time.Time
}

// New constructs the lifecycle service. metrics may be nil in tests.
func New(store ports.Store, ledger ports.Ledger, locker lock.Locker, ids *identifier.Generator,
	auditPub ports.AuditPublisher, m *metrics.Metrics, logger *slog.Logger, lockTTL time.Duration) *Service {
	return &Service{
		store:   store,
		ledger:  ledger,
		locker:  locker,
		ids:     ids,
		audit:   auditPub,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("veritag/certificate"),
		lockTTL: lockTTL,
		clock:   time.Now,
	}
}

// WithClock overrides the clock; tests only.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Mint binds a fresh ledger token and public identity to the certificate.
// The ledger call happens before any write, so a ledger failure leaves no
// partial record behind.
func (s *Service) Mint(ctx context.Context, req MintRequest) (MintResult, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.Mint",
		trace.WithAttributes(attribute.String("certificate.id", req.CertificateID.String())))
	defer span.End()

	if req.CertificateID.IsNil() {
		return MintResult{}, dErrors.New(dErrors.CodeBadRequest, "certificate id is required")
	}
	if req.OwnerRef.IsNil() {
		return MintResult{}, dErrors.New(dErrors.CodeBadRequest, "owner reference is required")
	}

	release, err := s.acquire(ctx, req.CertificateID)
	if err != nil {
		return MintResult{}, err
	}
	defer release()

	cert, err := s.store.Get(ctx, req.CertificateID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		cert = nil
	case err != nil:
		return MintResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "load certificate")
	case cert.IsMinted():
		// Idempotent answer: the binding already happened.
		return MintResult{Certificate: cert, AlreadyMinted: true}, nil
	default:
		if err := cert.EnsureMutable(); err != nil {
			return MintResult{}, dErrors.Wrap(err, dErrors.CodeConflict, "certificate is burned")
		}
	}

	publicID, err := s.ids.NewPublicID(ctx)
	if err != nil {
		return MintResult{}, err
	}

	receipt, err := s.ledgerMint(ctx, req)
	if err != nil {
		return MintResult{}, err
	}

	now := s.clock()
	expectedVersion := 0
	if cert == nil {
		cert = &models.Certificate{
			InternalID: req.CertificateID,
			OwnerRef:   req.OwnerRef,
			Product:    req.Product,
			CreatedAt:  now,
		}
	} else {
		expectedVersion = cert.Version
	}
	cert.PublicID = publicID
	cert.OwnerRef = req.OwnerRef
	cert.Token = models.TokenBinding{
		TokenID:  receipt.TokenID,
		TxRef:    receipt.TxRef,
		Contract: receipt.Contract,
		Network:  receipt.Network,
	}
	cert.Verification = models.VerificationRecord{
		Status:     models.StatusVerified,
		Confidence: req.Confidence,
		VerifiedAt: now,
	}
	cert.UpdatedAt = now

	if err := s.store.Put(ctx, cert, expectedVersion); err != nil {
		return MintResult{}, s.mapStoreErr(err, "persist minted certificate")
	}

	if s.metrics != nil {
		s.metrics.CertificatesMinted.Inc()
	}
	s.emit(ctx, audit.Event{
		Category:      audit.CategoryProvenance,
		CertificateID: cert.InternalID.String(),
		Action:        string(audit.EventCertificateMinted),
		Decision:      "allow",
		NewPublicID:   cert.PublicID,
		NewOwnerRef:   cert.OwnerRef.String(),
		LedgerRef:     receipt.TxRef,
	})
	s.logger.Info("certificate minted",
		"certificate_id", cert.InternalID.String(), "network", receipt.Network)

	return MintResult{Certificate: cert}, nil
}

// Transfer moves ownership and rotates the public identity in one atomic
// commit. An observer holding the old public identifier learns nothing about
// the new one.
func (s *Service) Transfer(ctx context.Context, certID id.CertificateID, newOwner id.AccountID) (*models.Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.Transfer",
		trace.WithAttributes(attribute.String("certificate.id", certID.String())))
	defer span.End()

	if newOwner.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "new owner reference is required")
	}

	release, err := s.acquire(ctx, certID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.noteTransferConflict(ctx, certID, "lock held by concurrent operation")
		}
		return nil, err
	}
	defer release()

	cert, err := s.store.Get(ctx, certID)
	if err != nil {
		return nil, s.mapStoreErr(err, "load certificate")
	}
	if !cert.IsMinted() {
		return nil, dErrors.New(dErrors.CodeConflict, "certificate has no bound token")
	}
	if err := cert.EnsureMutable(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, "certificate is burned")
	}

	newPublicID, err := s.ids.NewPublicID(ctx)
	if err != nil {
		return nil, err
	}

	prevPublicID, prevOwner := cert.PublicID, cert.OwnerRef

	receipt, err := s.ledgerTransfer(ctx, cert.Token.TokenID, newOwner, cert.Product)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if err := cert.Rotate(newPublicID, newOwner, models.TokenBinding{
		TokenID:  receipt.TokenID,
		TxRef:    receipt.TxRef,
		Contract: receipt.Contract,
		Network:  receipt.Network,
	}, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, "rotate identity")
	}

	if err := s.store.Put(ctx, cert, cert.Version); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.noteTransferConflict(ctx, certID, "stale version on commit")
		}
		return nil, s.mapStoreErr(err, "persist transferred certificate")
	}

	if s.metrics != nil {
		s.metrics.CertificatesTransferred.Inc()
	}
	s.emit(ctx, audit.Event{
		Category:      audit.CategoryProvenance,
		CertificateID: cert.InternalID.String(),
		Action:        string(audit.EventCertificateTransferred),
		Decision:      "allow",
		PrevPublicID:  prevPublicID,
		NewPublicID:   cert.PublicID,
		PrevOwnerRef:  prevOwner.String(),
		NewOwnerRef:   newOwner.String(),
		LedgerRef:     receipt.TxRef,
	})
	s.logger.Info("certificate transferred", "certificate_id", cert.InternalID.String())

	return cert, nil
}

// Burn retires the certificate permanently. Burned is terminal: any later
// mutation is rejected at the model layer.
func (s *Service) Burn(ctx context.Context, certID id.CertificateID) (BurnResult, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.Burn",
		trace.WithAttributes(attribute.String("certificate.id", certID.String())))
	defer span.End()

	release, err := s.acquire(ctx, certID)
	if err != nil {
		return BurnResult{}, err
	}
	defer release()

	cert, err := s.store.Get(ctx, certID)
	if err != nil {
		return BurnResult{}, s.mapStoreErr(err, "load certificate")
	}
	if !cert.IsMinted() {
		return BurnResult{}, dErrors.New(dErrors.CodeConflict, "certificate has no bound token")
	}
	if err := cert.EnsureMutable(); err != nil {
		return BurnResult{}, dErrors.Wrap(err, dErrors.CodeConflict, "certificate is burned")
	}

	prevPublicID := cert.PublicID

	receipt, err := s.ledgerBurn(ctx, cert.Token.TokenID)
	if err != nil {
		return BurnResult{}, err
	}

	now := s.clock()
	if err := cert.MarkBurned(receipt.TxRef, now); err != nil {
		return BurnResult{}, dErrors.Wrap(err, dErrors.CodeConflict, "mark burned")
	}
	if err := s.store.Put(ctx, cert, cert.Version); err != nil {
		return BurnResult{}, s.mapStoreErr(err, "persist burned certificate")
	}

	if s.metrics != nil {
		s.metrics.CertificatesBurned.Inc()
	}
	s.emit(ctx, audit.Event{
		Category:      audit.CategoryProvenance,
		CertificateID: cert.InternalID.String(),
		Action:        string(audit.EventCertificateBurned),
		Decision:      "allow",
		PrevPublicID:  prevPublicID,
		PrevOwnerRef:  cert.OwnerRef.String(),
		LedgerRef:     receipt.TxRef,
	})
	s.logger.Info("certificate burned", "certificate_id", cert.InternalID.String())

	return BurnResult{TxRef: receipt.TxRef, BurnedAt: now}, nil
}

// GetPublicView returns the outward-safe read model for a certificate. Each
// call carries a fresh display identifier so repeated reads are not
// correlatable by identifier alone.
func (s *Service) GetPublicView(ctx context.Context, certID id.CertificateID) (PublicCertificate, error) {
	cert, err := s.store.Get(ctx, certID)
	if err != nil {
		return PublicCertificate{}, s.mapStoreErr(err, "load certificate")
	}
	return s.publicView(cert)
}

// LookupByPublicID resolves the stored public identifier printed on the tag.
// Display identifiers from prior reads do not resolve here.
func (s *Service) LookupByPublicID(ctx context.Context, publicID string) (PublicCertificate, error) {
	cert, err := s.store.GetByPublicID(ctx, publicID)
	if err != nil {
		return PublicCertificate{}, s.mapStoreErr(err, "resolve public identifier")
	}
	return s.publicView(cert)
}

func (s *Service) publicView(cert *models.Certificate) (PublicCertificate, error) {
	displayID, err := s.ids.NewDisplayID()
	if err != nil {
		return PublicCertificate{}, err
	}
	view := PublicCertificate{
		DisplayID:  displayID,
		Brand:      cert.Product.Brand,
		Model:      cert.Product.Model,
		Category:   cert.Product.Category,
		Status:     string(cert.Verification.Status),
		Confidence: cert.Verification.Confidence,
	}
	if !cert.Verification.VerifiedAt.IsZero() {
		view.VerifiedDate = cert.Verification.VerifiedAt.UTC().Format("2006-01-02")
	}
	return view, nil
}

// acquire takes the per-certificate lock and returns its release func. A held
// lock surfaces as CodeConflict so the caller gets a 409, not a hang.
func (s *Service) acquire(ctx context.Context, certID id.CertificateID) (func(), error) {
	key := lockKeyPrefix + certID.String()
	token, err := s.locker.Acquire(ctx, key, s.lockTTL)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "certificate is busy, retry shortly")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "lock service unavailable")
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn("lock release failed", "key", key, "error", err)
		}
	}, nil
}

func (s *Service) ledgerMint(ctx context.Context, req MintRequest) (ports.MintReceipt, error) {
	start := s.clock()
	receipt, err := s.ledger.Mint(ctx, req.OwnerRef, productMetadata(req.Product))
	s.observeLedger("mint", start)
	if err != nil {
		return ports.MintReceipt{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger mint failed")
	}
	return receipt, nil
}

func (s *Service) ledgerTransfer(ctx context.Context, oldTokenID string, newOwner id.AccountID, product models.ProductInfo) (ports.MintReceipt, error) {
	start := s.clock()
	receipt, err := s.ledger.Transfer(ctx, oldTokenID, newOwner, productMetadata(product))
	s.observeLedger("transfer", start)
	if err != nil {
		return ports.MintReceipt{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger transfer failed")
	}
	return receipt, nil
}

func (s *Service) ledgerBurn(ctx context.Context, tokenID string) (ports.BurnReceipt, error) {
	start := s.clock()
	receipt, err := s.ledger.Burn(ctx, tokenID)
	s.observeLedger("burn", start)
	if err != nil {
		return ports.BurnReceipt{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger burn failed")
	}
	return receipt, nil
}

func (s *Service) observeLedger(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.LedgerCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func (s *Service) noteTransferConflict(ctx context.Context, certID id.CertificateID, reason string) {
	if s.metrics != nil {
		s.metrics.TransferConflicts.Inc()
	}
	s.emit(ctx, audit.Event{
		Category:      audit.CategorySecurity,
		CertificateID: certID.String(),
		Action:        string(audit.EventTransferConflict),
		Decision:      "deny",
		Reason:        reason,
	})
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	event.RequestID = requestcontext.RequestID(ctx)
	event.ClientIP = requestcontext.ClientIP(ctx)
	event.UserAgent = requestcontext.UserAgent(ctx)
	event.Device = requestcontext.Device(ctx)
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", event.Action, "error", err)
	}
}

func (s *Service) mapStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "certificate not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent update, retry")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func productMetadata(p models.ProductInfo) map[string]string {
	return map[string]string{
		"brand":    p.Brand,
		"model":    p.Model,
		"category": p.Category,
	}
}
