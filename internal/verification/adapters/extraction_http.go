package adapters

import (
	"context"
	"log/slog"
	"net/http"

	"veritag/internal/platform/config"
	"veritag/internal/verification/ports"
	"veritag/pkg/platform/circuit"
)

// ExtractionClient calls the certificate-document reading collaborator. The
// fields it returns are raw identifiers; the verification service keeps them
// internal.
type ExtractionClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

var _ ports.Extractor = (*ExtractionClient)(nil)

func NewExtractionClient(cfg config.CollaboratorConfig, logger *slog.Logger) *ExtractionClient {
	return &ExtractionClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    circuit.New("extraction"),
		logger:     logger,
	}
}

func (c *ExtractionClient) Extract(ctx context.Context, image []byte) (ports.ExtractResult, error) {
	var out struct {
		Confidence float64           `json:"confidence"`
		Fields     map[string]string `json:"fields"`
	}
	err := postJSON(ctx, c.httpClient, c.breaker, c.logger, c.baseURL+"/v1/extract", c.apiKey,
		map[string]any{"image": image}, &out)
	if err != nil {
		return ports.ExtractResult{}, err
	}
	return ports.ExtractResult{Confidence: out.Confidence, Fields: out.Fields}, nil
}
