package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tradebazaar/finance-backend/pkg/config"
	pkgerrors "github.com/tradebazaar/finance-backend/pkg/errors"
	"github.com/tradebazaar/finance-backend/pkg/logger"
)

// Booker schedules a physical pickup with the courier partner. The
// partner is keyed by the return id so a retried booking is a no-op on
// their side.
type Booker interface {
	BookPickup(ctx context.Context, req BookingRequest) (BookingResult, error)
}

// BookingRequest carries one pickup instruction.
type BookingRequest struct {
	OperationID    string `json:"operation_id"`
	Date           string `json:"date"`
	TimeSlot       string `json:"time_slot"`
	Address        string `json:"address"`
	CourierPartner string `json:"courier_partner"`
}

// BookingResult reports acceptance plus the assigned tracking number.
type BookingResult struct {
	Accepted       bool   `json:"accepted"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Client calls the courier partner over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *logger.Logger
}

// NewClient validates the configuration and builds the courier client.
func NewClient(cfg config.CourierConfig, logg *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("courier base url is required")
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logg,
	}, nil
}

// BookPickup submits the pickup booking. Transport failures and 5xx map
// to EXTERNAL_SERVICE_ERROR; explicit rejections return Accepted=false.
func (c *Client) BookPickup(ctx context.Context, req BookingRequest) (BookingResult, error) {
	if req.OperationID == "" {
		return BookingResult{}, pkgerrors.New(pkgerrors.CodeValidation, "operation id is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return BookingResult{}, fmt.Errorf("marshal booking request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/pickups", bytes.NewReader(body))
	if err != nil {
		return BookingResult{}, fmt.Errorf("build booking request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.OperationID)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return BookingResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "courier partner unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return BookingResult{}, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("courier partner returned %d", resp.StatusCode))
	}

	var result BookingResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return BookingResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode booking response")
	}

	if c.logger != nil {
		ctx = c.logger.WithFields(ctx, map[string]any{
			"operation_id": req.OperationID,
			"accepted":     result.Accepted,
		})
		c.logger.Info(ctx, "courier.pickup_booked")
	}
	return result, nil
}
