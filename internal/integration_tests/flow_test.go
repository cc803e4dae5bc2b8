// Package integrationtests exercises the full HTTP surface end to end:
// product scan, certificate scan, public lookup, and the admin lifecycle,
// wired through the real router with in-memory backends.
package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"veritag/internal/boundary"
	certhandler "veritag/internal/certificate/handler"
	"veritag/internal/certificate/ledgertest"
	certmodels "veritag/internal/certificate/models"
	certservice "veritag/internal/certificate/service"
	certmem "veritag/internal/certificate/store/memory"
	"veritag/internal/identifier"
	"veritag/internal/jwttoken"
	httpapi "veritag/internal/transport/http"
	verifhandler "veritag/internal/verification/handler"
	verifports "veritag/internal/verification/ports"
	verifservice "veritag/internal/verification/service"
	sessmem "veritag/internal/verification/store/memory"
	"veritag/pkg/platform/audit/publisher"
	auditmem "veritag/pkg/platform/audit/store/memory"
	"veritag/pkg/platform/lock"
)

var displayIDPattern = regexp.MustCompile(`^VT-\d{4}-[A-HJ-NP-Z2-9]{10}$`)

type scorerFunc func(ctx context.Context, image []byte) (verifports.ScoreResult, error)

func (f scorerFunc) Score(ctx context.Context, image []byte) (verifports.ScoreResult, error) {
	return f(ctx, image)
}

type extractorFunc func(ctx context.Context, image []byte) (verifports.ExtractResult, error)

func (f extractorFunc) Extract(ctx context.Context, image []byte) (verifports.ExtractResult, error) {
	return f(ctx, image)
}

// recordingStore captures the internal identity of every freshly created
// certificate so tests can drive the admin routes, which take the UUID the
// public flow never exposes.
type recordingStore struct {
	*certmem.InMemoryStore

	mu     sync.Mutex
	minted []*certmodels.Certificate
}

func (r *recordingStore) Put(ctx context.Context, cert *certmodels.Certificate, expectedVersion int) error {
	err := r.InMemoryStore.Put(ctx, cert, expectedVersion)
	if err == nil && expectedVersion == 0 {
		r.mu.Lock()
		r.minted = append(r.minted, cert.Clone())
		r.mu.Unlock()
	}
	return err
}

func (r *recordingStore) lastMinted() *certmodels.Certificate {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.minted) == 0 {
		return nil
	}
	return r.minted[len(r.minted)-1]
}

type FlowSuite struct {
	suite.Suite

	server     *httptest.Server
	store      *recordingStore
	ledger     *ledgertest.Fake
	publisher  *publisher.Publisher
	scorer     scorerFunc
	extractor  extractorFunc
	adminToken string
}

func TestFlowSuite(t *testing.T) {
	suite.Run(t, new(FlowSuite))
}

func (s *FlowSuite) SetupTest() {
	log := slog.New(slog.DiscardHandler)

	s.store = &recordingStore{InMemoryStore: certmem.New()}
	s.ledger = &ledgertest.Fake{}
	s.publisher = publisher.NewPublisher(auditmem.NewInMemoryStore())

	s.scorer = func(context.Context, []byte) (verifports.ScoreResult, error) {
		return verifports.ScoreResult{Passed: true, Confidence: 0.92, Brand: "Meridian"}, nil
	}
	s.extractor = func(context.Context, []byte) (verifports.ExtractResult, error) {
		return verifports.ExtractResult{
			Confidence: 0.88,
			Fields:     map[string]string{"model": "Mariner 40", "category": "watch"},
		}, nil
	}

	lifecycle := certservice.New(
		s.store,
		s.ledger,
		lock.NewMemoryLocker(),
		identifier.New(s.store),
		s.publisher,
		nil,
		log,
		5*time.Second,
	)
	verification := verifservice.New(
		scorerFunc(func(ctx context.Context, img []byte) (verifports.ScoreResult, error) { return s.scorer(ctx, img) }),
		extractorFunc(func(ctx context.Context, img []byte) (verifports.ExtractResult, error) { return s.extractor(ctx, img) }),
		sessmem.New(),
		lifecycle,
		s.publisher,
		nil,
		log,
		5*time.Minute,
	)

	tokens := jwttoken.NewService("integration-test-key", "veritag", "veritag-admin")
	adminToken, err := tokens.GenerateAdminToken("ops@veritag.test", time.Hour)
	s.Require().NoError(err)
	s.adminToken = adminToken

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:       log,
		Certificates: certhandler.New(lifecycle, log, tokens),
		Verification: verifhandler.New(verification, log, 100, 100),
	})
	s.server = httptest.NewServer(router)
	s.T().Cleanup(s.server.Close)
	s.T().Cleanup(s.publisher.Close)
}

func (s *FlowSuite) post(path string, payload any, headers map[string]string) (int, map[string]any) {
	s.T().Helper()
	body, err := json.Marshal(payload)
	s.Require().NoError(err)

	req, err := http.NewRequest(http.MethodPost, s.server.URL+path, bytes.NewReader(body))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var decoded map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func (s *FlowSuite) get(path string) (int, map[string]any) {
	s.T().Helper()
	resp, err := s.server.Client().Get(s.server.URL + path)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var decoded map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func (s *FlowSuite) adminHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.adminToken}
}

func (s *FlowSuite) scanProduct() string {
	s.T().Helper()
	status, body := s.post("/scan/product", map[string]any{"image": []byte("product-shot")}, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Require().Equal(true, body["passed"])
	token, ok := body["sessionToken"].(string)
	s.Require().True(ok, "session token missing from product-phase response")
	return token
}

func (s *FlowSuite) TestTwoPhaseFlowMintsCertificate() {
	token := s.scanProduct()
	s.Regexp("^vts_", token)

	status, body := s.post("/scan/certificate",
		map[string]any{"sessionToken": token, "image": []byte("certificate-shot")}, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal(true, body["passed"])
	s.InDelta(0.90, body["confidence"].(float64), 0.0001)

	cert, ok := body["certificate"].(map[string]any)
	s.Require().True(ok, "passing outcome must embed the public certificate")
	s.Regexp(displayIDPattern, cert["displayId"])
	s.Equal("Meridian", cert["brand"])
	s.Equal("Mariner 40", cert["model"])
	s.Equal("verified", cert["status"])
	s.NotContains(cert, "ownerRef")
	s.NotContains(cert, "history")

	s.Equal(1, s.ledger.MintCalls)
}

func (s *FlowSuite) TestSessionTokenIsSingleUse() {
	token := s.scanProduct()
	payload := map[string]any{"sessionToken": token, "image": []byte("certificate-shot")}

	status, _ := s.post("/scan/certificate", payload, nil)
	s.Require().Equal(http.StatusOK, status)

	status, body := s.post("/scan/certificate", payload, nil)
	s.Equal(http.StatusConflict, status)
	s.Equal("conflict", body["error"])
	s.Equal(1, s.ledger.MintCalls)
}

func (s *FlowSuite) TestRejectedProductScanOpensNoSession() {
	s.scorer = func(context.Context, []byte) (verifports.ScoreResult, error) {
		return verifports.ScoreResult{Passed: false, Confidence: 0.31}, nil
	}

	status, body := s.post("/scan/product", map[string]any{"image": []byte("knockoff")}, nil)
	s.Equal(http.StatusOK, status)
	s.Equal(false, body["passed"])
	s.NotContains(body, "sessionToken")
}

func (s *FlowSuite) TestDisplayIDNeverResolvesButStoredIDDoes() {
	token := s.scanProduct()
	status, body := s.post("/scan/certificate",
		map[string]any{"sessionToken": token, "image": []byte("certificate-shot")}, nil)
	s.Require().Equal(http.StatusOK, status)

	displayID := body["certificate"].(map[string]any)["displayId"].(string)
	status, _ = s.get("/certificates/" + displayID)
	s.Equal(http.StatusNotFound, status, "display identifiers are single-read, never resolvable")

	stored := s.store.lastMinted()
	s.Require().NotNil(stored)
	status, view := s.get("/certificates/" + stored.PublicID)
	s.Equal(http.StatusOK, status)
	s.NotEqual(stored.PublicID, view["displayId"], "lookup must answer with a fresh display identity")
	s.Equal("verified", view["status"])
}

func (s *FlowSuite) TestAdminTransferRotatesPublicIdentity() {
	token := s.scanProduct()
	status, _ := s.post("/scan/certificate",
		map[string]any{"sessionToken": token, "image": []byte("certificate-shot")}, nil)
	s.Require().Equal(http.StatusOK, status)

	stored := s.store.lastMinted()
	s.Require().NotNil(stored)
	path := fmt.Sprintf("/certificates/%s/transfer", stored.InternalID)

	status, _ = s.post(path, map[string]any{"newOwnerRef": uuid.NewString()}, nil)
	s.Require().Equal(http.StatusUnauthorized, status, "transfer must require admin auth")

	status, body := s.post(path, map[string]any{"newOwnerRef": uuid.NewString()}, s.adminHeaders())
	s.Require().Equal(http.StatusOK, status)
	newPublicID, _ := body["publicId"].(string)
	s.Regexp(displayIDPattern, newPublicID)
	s.NotEqual(stored.PublicID, newPublicID)

	status, _ = s.get("/certificates/" + stored.PublicID)
	s.Equal(http.StatusNotFound, status, "retired identity must stop resolving after transfer")

	status, view := s.get("/certificates/" + newPublicID)
	s.Equal(http.StatusOK, status)
	s.Equal("verified", view["status"])
}

func (s *FlowSuite) TestAdminBurnIsTerminal() {
	token := s.scanProduct()
	status, _ := s.post("/scan/certificate",
		map[string]any{"sessionToken": token, "image": []byte("certificate-shot")}, nil)
	s.Require().Equal(http.StatusOK, status)

	stored := s.store.lastMinted()
	s.Require().NotNil(stored)

	status, body := s.post(fmt.Sprintf("/certificates/%s/burn", stored.InternalID), map[string]any{}, s.adminHeaders())
	s.Require().Equal(http.StatusOK, status)
	s.NotEmpty(body["txRef"])
	s.Len(s.ledger.Burned, 1)

	status, view := s.get("/certificates/" + stored.PublicID)
	s.Equal(http.StatusOK, status)
	s.Equal("burned", view["status"])

	status, _ = s.post(fmt.Sprintf("/certificates/%s/transfer", stored.InternalID),
		map[string]any{"newOwnerRef": uuid.NewString()}, s.adminHeaders())
	s.Equal(http.StatusConflict, status, "burn is terminal")
}

func (s *FlowSuite) TestOutboundPayloadsCarryNoRedactedKeys() {
	token := s.scanProduct()
	status, body := s.post("/scan/certificate",
		map[string]any{"sessionToken": token, "image": []byte("certificate-shot")}, nil)
	s.Require().Equal(http.StatusOK, status)

	raw, err := json.Marshal(body)
	s.Require().NoError(err)
	for _, leak := range []string{"ownerRef", "walletAddress", "tokenId", "txRef"} {
		s.NotContains(string(raw), leak)
	}

	// Same shape the handler builds; the sanitizer must leave the safe keys.
	sealed := boundary.Outcome(verifservice.Outcome{Passed: true, Confidence: 0.9})
	s.Equal(true, sealed["passed"])
}
