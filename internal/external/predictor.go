package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agroia/internal/predictor"
	"agroia/internal/types"
)

// PredictorClientConfig configures the remote yield-model client.
type PredictorClientConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds a single Predict call, retries included.
	Timeout time.Duration
	Logger  *slog.Logger
}

type predictRequest struct {
	Features []float64 `json:"features"`
}

type predictResponse struct {
	Prediction *float64 `json:"prediction"`
}

// PredictorClient calls a hosted regression model:
// POST {base}/predict with {"features":[risk, rain, temp, cost, soil]},
// answered by {"prediction": <score>}.
type PredictorClient struct {
	base    *BaseClient
	url     string
	apiKey  string
	timeout time.Duration
	logger  *slog.Logger
}

var _ predictor.YieldPredictor = (*PredictorClient)(nil)

// NewPredictorClient creates a PredictorClient with the default resilience
// settings.
func NewPredictorClient(httpClient *http.Client, cfg PredictorClientConfig) *PredictorClient {
	base := NewBaseClient(httpClient, BaseClientConfig{
		Name:         "yield-predictor",
		UserAgent:    "AgroIA/1.0",
		Retry:        DefaultRetryPolicy(),
		UpstreamCode: types.ErrCodeUpstreamPredictor,
	})
	return NewPredictorClientWithBase(base, cfg)
}

// NewPredictorClientWithBase creates a PredictorClient over a preconfigured
// BaseClient.
func NewPredictorClientWithBase(base *BaseClient, cfg PredictorClientConfig) *PredictorClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictorClient{
		base:    base,
		url:     strings.TrimSuffix(cfg.BaseURL, "/") + "/predict",
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Predict implements predictor.YieldPredictor.
func (c *PredictorClient) Predict(ctx context.Context, f predictor.Features) (float64, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(predictRequest{Features: f.Vector()})
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalUnexpected, "encode predict request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalUnexpected, "build predict request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamPredictor, "read predict response", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "yield predictor rejected request",
			"status", resp.StatusCode,
			"body", truncate(string(body), 200),
		)
		return 0, types.NewAppErrorWithDetails(types.ErrCodeUpstreamPredictor,
			fmt.Sprintf("yield predictor returned %d", resp.StatusCode), nil,
			map[string]any{"status": resp.StatusCode})
	}

	var out predictResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamPredictor, "decode predict response", err)
	}
	if out.Prediction == nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamPredictor, "predict response has no prediction", nil)
	}
	return *out.Prediction, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
