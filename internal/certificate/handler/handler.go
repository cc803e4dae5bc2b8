// Package handler is the HTTP surface of the certificate lifecycle.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"veritag/internal/boundary"
	"veritag/internal/certificate/models"
	certservice "veritag/internal/certificate/service"
	"veritag/internal/platform/middleware"
	id "veritag/pkg/domain"
	dErrors "veritag/pkg/domain-errors"
	"veritag/pkg/platform/httputil"
	"veritag/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/certificate-mocks.go -package=mocks Service

// publicIDPattern matches the stored public identifier printed on a tag.
var publicIDPattern = regexp.MustCompile(`^VT-\d{4}-[A-HJ-NP-Z2-9]{10}$`)

// Service defines the lifecycle operations the handler exposes.
type Service interface {
	Transfer(ctx context.Context, certID id.CertificateID, newOwner id.AccountID) (*models.Certificate, error)
	Burn(ctx context.Context, certID id.CertificateID) (certservice.BurnResult, error)
	LookupByPublicID(ctx context.Context, publicID string) (certservice.PublicCertificate, error)
}

// Handler handles certificate endpoints.
type Handler struct {
	logger    *slog.Logger
	svc       Service
	validator middleware.AdminValidator
}

func New(svc Service, logger *slog.Logger, validator middleware.AdminValidator) *Handler {
	return &Handler{logger: logger, svc: svc, validator: validator}
}

// Register mounts the certificate routes. Lookup is public; transfer and
// burn sit behind admin auth. The path param is shared by all three routes
// (chi allows one name per segment): lookup reads it as a public identifier,
// the admin routes as the internal UUID.
func (h *Handler) Register(r chi.Router) {
	r.Route("/certificates/{certificateRef}", func(cr chi.Router) {
		cr.Get("/", h.handleLookup)

		cr.Group(func(admin chi.Router) {
			admin.Use(middleware.RequireAdmin(h.validator, h.logger))
			admin.Use(middleware.Timeout(30 * time.Second))
			admin.Post("/transfer", h.handleTransfer)
			admin.Post("/burn", h.handleBurn)
		})
	})
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	publicID := chi.URLParam(r, "certificateRef")
	if !publicIDPattern.MatchString(publicID) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed certificate identifier"))
		return
	}

	view, err := h.svc.LookupByPublicID(ctx, publicID)
	if err != nil {
		h.logger.WarnContext(ctx, "certificate lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, boundary.Certificate(view))
}

type transferRequest struct {
	NewOwnerRef string `json:"newOwnerRef"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	certID, ok := h.certificateID(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if !govalidator.IsUUID(req.NewOwnerRef) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "newOwnerRef must be a UUID"))
		return
	}
	newOwner, err := id.ParseAccountID(req.NewOwnerRef)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cert, err := h.svc.Transfer(ctx, certID, newOwner)
	if err != nil {
		h.logger.WarnContext(ctx, "transfer failed",
			"request_id", requestcontext.RequestID(ctx),
			"admin", requestcontext.AdminSubject(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, boundary.AdminTransfer(cert))
}

func (h *Handler) handleBurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	certID, ok := h.certificateID(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Burn(ctx, certID)
	if err != nil {
		h.logger.WarnContext(ctx, "burn failed",
			"request_id", requestcontext.RequestID(ctx),
			"admin", requestcontext.AdminSubject(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, boundary.AdminBurn(res))
}

func (h *Handler) certificateID(w http.ResponseWriter, r *http.Request) (id.CertificateID, bool) {
	raw := chi.URLParam(r, "certificateRef")
	if !govalidator.IsUUID(raw) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "certificate id must be a UUID"))
		return id.CertificateID{}, false
	}
	certID, err := id.ParseCertificateID(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return id.CertificateID{}, false
	}
	return certID, true
}
