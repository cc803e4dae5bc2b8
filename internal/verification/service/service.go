// Package service orchestrates the two-phase verification flow: a product
// scan opens a short-lived single-use session, and a certificate scan
// consumes it. Session tokens are capabilities: unguessable, stored hashed,
// and dead after one use or five minutes, whichever comes first.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	certmodels "veritag/internal/certificate/models"
	certservice "veritag/internal/certificate/service"
	"veritag/internal/identifier"
	"veritag/internal/platform/metrics"
	"veritag/internal/verification/models"
	"veritag/internal/verification/ports"
	id "veritag/pkg/domain"
	dErrors "veritag/pkg/domain-errors"
	"veritag/pkg/platform/audit"
	"veritag/pkg/platform/sentinel"
	"veritag/pkg/requestcontext"
)

// acceptanceThreshold is the minimum combined confidence (mean of product
// and document confidence) for the certificate phase to pass.
const acceptanceThreshold = 0.70

// Lifecycle is the slice of the certificate service the verification flow
// needs: minting on a passed scan and the public read model for the outcome.
type Lifecycle interface {
	Mint(ctx context.Context, req certservice.MintRequest) (certservice.MintResult, error)
	GetPublicView(ctx context.Context, certID id.CertificateID) (certservice.PublicCertificate, error)
}

// StartResult answers the product phase. SessionToken is returned exactly
// once and only when Passed is true; the service retains only its hash.
type StartResult struct {
	SessionToken string
	Brand        string
	Passed       bool
	Confidence   float64
}

// Outcome answers the certificate phase. Certificate is set only on a pass.
type Outcome struct {
	Passed      bool
	Confidence  float64
	Certificate *certservice.PublicCertificate
}

// Service implements the two-phase verification flow.
type Service struct {
	scorer    ports.Scorer
	extractor ports.Extractor
	sessions  ports.SessionStore
	lifecycle Lifecycle
	audit     ports.AuditPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	ttl       time.Duration
	clock     func() time.Time
}

// New constructs the verification service. metrics may be nil in tests.
func New(scorer ports.Scorer, extractor ports.Extractor, sessions ports.SessionStore,
	lifecycle Lifecycle, auditPub ports.AuditPublisher, m *metrics.Metrics,
	logger *slog.Logger, ttl time.Duration) *Service {
	return &Service{
		scorer:    scorer,
		extractor: extractor,
		sessions:  sessions,
		lifecycle: lifecycle,
		audit:     auditPub,
		metrics:   m,
		logger:    logger,
		tracer:    otel.Tracer("veritag/verification"),
		ttl:       ttl,
		clock:     time.Now,
	}
}

// WithClock overrides the clock; tests only.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// StartProductPhase scores the product image and, on a pass, opens a
// verification session. A failed scan returns Passed=false with no session
// and no error: rejection is an outcome, not a fault.
func (s *Service) StartProductPhase(ctx context.Context, image []byte) (StartResult, error) {
	ctx, span := s.tracer.Start(ctx, "verification.StartProductPhase")
	defer span.End()

	if len(image) == 0 {
		return StartResult{}, dErrors.New(dErrors.CodeBadRequest, "product image is required")
	}

	score, err := s.scorer.Score(ctx, image)
	if err != nil {
		return StartResult{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "product scoring failed")
	}

	if !score.Passed {
		if s.metrics != nil {
			s.metrics.ScanRejections.Inc()
		}
		s.emit(ctx, audit.Event{
			Category: audit.CategorySecurity,
			Action:   string(audit.EventScanRejected),
			Decision: "deny",
			Reason:   "product scan below acceptance",
		})
		return StartResult{Passed: false, Brand: score.Brand, Confidence: score.Confidence}, nil
	}

	token, err := identifier.NewSessionToken()
	if err != nil {
		return StartResult{}, err
	}
	now := s.clock()
	session := &models.Session{
		TokenHash: identifier.HashSessionToken(token),
		Phase:     models.PhaseProductVerified,
		Findings: models.Findings{
			Brand:      score.Brand,
			Confidence: score.Confidence,
		},
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session, s.ttl); err != nil {
		return StartResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "open verification session")
	}

	if s.metrics != nil {
		s.metrics.ScanSessionsStarted.Inc()
	}
	s.emit(ctx, audit.Event{
		Category: audit.CategoryOperations,
		Action:   string(audit.EventScanSessionStarted),
		Decision: "allow",
	})
	s.logger.Info("verification session opened", "brand", score.Brand)

	return StartResult{
		SessionToken: token,
		Brand:        score.Brand,
		Passed:       true,
		Confidence:   score.Confidence,
	}, nil
}

// CompleteCertificatePhase consumes the session and scores the certificate
// document against the product findings. The consume happens before the
// extractor call: a session buys exactly one attempt, successful or not.
func (s *Service) CompleteCertificatePhase(ctx context.Context, token string, image []byte) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "verification.CompleteCertificatePhase")
	defer span.End()

	if token == "" {
		return Outcome{}, dErrors.New(dErrors.CodeBadRequest, "session token is required")
	}
	if len(image) == 0 {
		return Outcome{}, dErrors.New(dErrors.CodeBadRequest, "certificate image is required")
	}

	now := s.clock()
	session, err := s.sessions.Consume(ctx, identifier.HashSessionToken(token), now)
	if err != nil {
		return Outcome{}, s.mapConsumeErr(ctx, err)
	}
	if s.metrics != nil {
		s.metrics.ScanSessionsConsumed.Inc()
	}
	s.emit(ctx, audit.Event{
		Category: audit.CategoryOperations,
		Action:   string(audit.EventScanSessionConsumed),
		Decision: "allow",
	})

	extract, err := s.extractor.Extract(ctx, image)
	if err != nil {
		// The session is spent either way; the caller must rescan the
		// product to try again.
		return Outcome{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "certificate extraction failed")
	}

	combined := (session.Findings.Confidence + extract.Confidence) / 2
	if combined < acceptanceThreshold {
		if s.metrics != nil {
			s.metrics.ScanRejections.Inc()
		}
		s.emit(ctx, audit.Event{
			Category: audit.CategorySecurity,
			Action:   string(audit.EventScanRejected),
			Decision: "deny",
			Reason:   "combined confidence below acceptance",
		})
		return Outcome{Passed: false, Confidence: combined}, nil
	}

	// Raw extracted identifiers stay here; only aggregate product info and
	// the combined confidence move on to the certificate.
	mintRes, err := s.lifecycle.Mint(ctx, certservice.MintRequest{
		CertificateID: id.NewCertificateID(),
		OwnerRef:      id.NewAccountID(),
		Product:    productInfo(session.Findings.Brand, extract.Fields),
		Confidence: combined,
	})
	if err != nil {
		return Outcome{}, err
	}

	view, err := s.lifecycle.GetPublicView(ctx, mintRes.Certificate.InternalID)
	if err != nil {
		return Outcome{}, err
	}

	s.logger.Info("verification completed", "brand", session.Findings.Brand)
	return Outcome{Passed: true, Confidence: combined, Certificate: &view}, nil
}

func (s *Service) mapConsumeErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "unknown verification session")
	case errors.Is(err, sentinel.ErrExpired):
		s.emit(ctx, audit.Event{
			Category: audit.CategoryOperations,
			Action:   string(audit.EventScanSessionExpired),
			Decision: "deny",
			Reason:   "session ttl elapsed",
		})
		return dErrors.Wrap(err, dErrors.CodeExpired, "verification session expired")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		s.emit(ctx, audit.Event{
			Category: audit.CategorySecurity,
			Action:   string(audit.EventScanRejected),
			Decision: "deny",
			Reason:   "session already consumed",
		})
		return dErrors.Wrap(err, dErrors.CodeConflict, "verification session already used")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "consume verification session")
	}
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

// productInfo folds extracted document fields into the public product shape.
// Only the curated keys cross over; everything else (serials, document
// numbers) is dropped here.
func productInfo(brand string, fields map[string]string) certmodels.ProductInfo {
	return certmodels.ProductInfo{
		Brand:    brand,
		Model:    fields["model"],
		Category: fields["category"],
	}
}
