package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tradebazaar/finance-backend/pkg/config"
	pkgerrors "github.com/tradebazaar/finance-backend/pkg/errors"
	"github.com/tradebazaar/finance-backend/pkg/logger"
)

// Submitter is the contract the withdrawal processor depends on. The bank
// partner accepts an operation keyed by the withdrawal id and later
// delivers a completion callback keyed by the same id.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error)
}

// SubmitRequest carries one payout instruction.
type SubmitRequest struct {
	OperationID   string          `json:"operation_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	BankReference string          `json:"bank_reference"`
}

// SubmitResult reports whether the partner accepted the instruction.
type SubmitResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Client calls the external bank payout partner over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *logger.Logger
}

// NewClient validates the configuration and builds the payout client.
func NewClient(cfg config.PayoutConfig, logg *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("payout base url is required")
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logg,
	}, nil
}

// Submit sends the payout instruction. A transport failure or 5xx maps to
// EXTERNAL_SERVICE_ERROR so the processor can retry with backoff; an
// explicit rejection comes back as Accepted=false without an error.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if req.OperationID == "" {
		return SubmitResult{}, pkgerrors.New(pkgerrors.CodeValidation, "operation id is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("marshal payout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payouts", bytes.NewReader(body))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("build payout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.OperationID)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return SubmitResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payout partner unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return SubmitResult{}, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("payout partner returned %d", resp.StatusCode))
	}

	var result SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return SubmitResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payout response")
	}

	if c.logger != nil {
		ctx = c.logger.WithFields(ctx, map[string]any{
			"operation_id": req.OperationID,
			"accepted":     result.Accepted,
		})
		c.logger.Info(ctx, "payout.submitted")
	}
	return result, nil
}
