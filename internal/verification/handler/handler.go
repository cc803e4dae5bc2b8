// Package handler is the HTTP surface of the two-phase verification flow.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"veritag/internal/boundary"
	"veritag/internal/platform/middleware"
	verifservice "veritag/internal/verification/service"
	dErrors "veritag/pkg/domain-errors"
	"veritag/pkg/platform/httputil"
	"veritag/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/verification-mocks.go -package=mocks Service

// maxImageBytes bounds the decoded scan image. Collaborators reject bigger
// payloads anyway; failing early keeps the limit in one place.
const maxImageBytes = 8 << 20

// Service defines the verification operations the handler exposes.
type Service interface {
	StartProductPhase(ctx context.Context, image []byte) (verifservice.StartResult, error)
	CompleteCertificatePhase(ctx context.Context, token string, image []byte) (verifservice.Outcome, error)
}

// Handler handles the scan endpoints.
type Handler struct {
	logger    *slog.Logger
	svc       Service
	scanRate  float64
	scanBurst int
}

func New(svc Service, logger *slog.Logger, scanRate float64, scanBurst int) *Handler {
	return &Handler{logger: logger, svc: svc, scanRate: scanRate, scanBurst: scanBurst}
}

// Register mounts the scan routes. Both are anonymous and rate limited per
// client IP.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(scan chi.Router) {
		scan.Use(middleware.ScanRateLimit(h.scanRate, h.scanBurst))
		scan.Use(middleware.Timeout(30 * time.Second))
		scan.Post("/scan/product", h.handleScanProduct)
		scan.Post("/scan/certificate", h.handleScanCertificate)
	})
}

type scanProductRequest struct {
	// Image is base64 in the JSON wire format; encoding/json decodes it.
	Image []byte `json:"image"`
}

func (h *Handler) handleScanProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req scanProductRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImageBytes)).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if len(req.Image) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "image is required"))
		return
	}

	res, err := h.svc.StartProductPhase(ctx, req.Image)
	if err != nil {
		h.logger.WarnContext(ctx, "product scan failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, boundary.SessionStart(res))
}

type scanCertificateRequest struct {
	SessionToken string `json:"sessionToken"`
	Image        []byte `json:"image"`
}

func (h *Handler) handleScanCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req scanCertificateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImageBytes)).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if !strings.HasPrefix(req.SessionToken, "vts_") ||
		!govalidator.StringLength(req.SessionToken, "40", "64") {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed session token"))
		return
	}
	if len(req.Image) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "image is required"))
		return
	}

	outcome, err := h.svc.CompleteCertificatePhase(ctx, req.SessionToken, req.Image)
	if err != nil {
		h.logger.WarnContext(ctx, "certificate scan failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, boundary.Outcome(outcome))
}
