// Package adapters holds outbound clients for the verification flow's
// external collaborators. Each client is a single-attempt JSON-over-HTTP
// call bounded by the configured timeout; failures wrap
// sentinel.ErrUnavailable. Production wiring never substitutes a fabricated
// success for a collaborator failure.
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

	"veritag/internal/platform/config"
	"veritag/internal/verification/ports"
	"veritag/pkg/platform/circuit"
	"veritag/pkg/platform/sentinel"
)

// ScoringClient calls the product-authentication collaborator.
type ScoringClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

var _ ports.Scorer = (*ScoringClient)(nil)

func NewScoringClient(cfg config.CollaboratorConfig, logger *slog.Logger) *ScoringClient {
	return &ScoringClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    circuit.New("scoring"),
		logger:     logger,
	}
}

func (c *ScoringClient) Score(ctx context.Context, image []byte) (ports.ScoreResult, error) {
	var out struct {
		Passed     bool    `json:"passed"`
		Confidence float64 `json:"confidence"`
		Brand      string  `json:"brand"`
	}
	err := postJSON(ctx, c.httpClient, c.breaker, c.logger, c.baseURL+"/v1/score", c.apiKey,
		map[string]any{"image": image}, &out)
	if err != nil {
		return ports.ScoreResult{}, err
	}
	return ports.ScoreResult{Passed: out.Passed, Confidence: out.Confidence, Brand: out.Brand}, nil
}

func postJSON(ctx context.Context, client *http.Client, breaker *circuit.Breaker, logger *slog.Logger, url, apiKey string, payload, out any) error {
	if breaker.IsOpen() {
		return fmt.Errorf("%s circuit open: %w", breaker.Name(), sentinel.ErrUnavailable)
	}
	err := doPostJSON(ctx, client, logger, url, apiKey, payload, out)
	switch {
	case err == nil:
		if _, change := breaker.RecordSuccess(); change.Closed {
			logger.Info("collaborator circuit closed", "name", breaker.Name())
		}
	case errors.Is(err, sentinel.ErrUnavailable):
		if _, change := breaker.RecordFailure(); change.Opened {
			logger.Warn("collaborator circuit opened", "name", breaker.Name())
		}
	}
	return err
}

func doPostJSON(ctx context.Context, client *http.Client, logger *slog.Logger, url, apiKey string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("collaborator call failed", "url", url, "error", err)
		return fmt.Errorf("collaborator: %v: %w", err, sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		logger.Error("collaborator returned error status", "url", url, "status", resp.StatusCode)
		return fmt.Errorf("collaborator returned status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %v: %w", err, sentinel.ErrUnavailable)
	}
	return nil
}
