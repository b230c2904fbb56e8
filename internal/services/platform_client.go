package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coinpay/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrPlatform is wrapped by every non-2xx platform response.
var ErrPlatform = errors.New("platform request failed")

// PlatformClient calls the app's internal API: settlement, payment
// forwarding and escrow creation. Every call carries the internal bearer key.
type PlatformClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

func NewPlatformClient(baseURL, apiKey string, timeout time.Duration, log *zap.Logger) *PlatformClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PlatformClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// TriggerSettlement asks the platform to move escrowed funds on chain. With
// refund set the funds go back to the depositor. The endpoint keys its
// broadcast on the escrow id, so repeating a call after a timeout is safe.
func (c *PlatformClient) TriggerSettlement(ctx context.Context, escrowID uuid.UUID, refund bool) error {
	var body any
	if refund {
		body = map[string]string{"action": "refund"}
	}
	url := fmt.Sprintf("%s/api/escrow/%s/settle", c.baseURL, escrowID)
	return c.post(ctx, url, body, nil)
}

// ForwardPayment moves a confirmed payment from its deposit address to the merchant wallet.
func (c *PlatformClient) ForwardPayment(ctx context.Context, paymentID uuid.UUID) error {
	url := fmt.Sprintf("%s/api/payments/%s/forward", c.baseURL, paymentID)
	return c.post(ctx, url, nil, nil)
}

// CreateEscrowParams describes one period of a recurring escrow series.
type CreateEscrowParams struct {
	SeriesID           uuid.UUID  `json:"series_id"`
	Period             int        `json:"period"`
	MerchantID         uuid.UUID  `json:"merchant_id"`
	BusinessID         *uuid.UUID `json:"business_id,omitempty"`
	Chain              string     `json:"chain"`
	Amount             float64    `json:"amount"`
	DepositorAddress   string     `json:"depositor_address"`
	BeneficiaryAddress string     `json:"beneficiary_address"`
	PaidTier           bool       `json:"is_paid_tier"`
}

// CreateEscrowResult mirrors the platform's {success, escrow|error} reply.
type CreateEscrowResult struct {
	Success bool           `json:"success"`
	Escrow  *models.Escrow `json:"escrow,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// CreateEscrow creates the next escrow of a series. A reply with
// success=false is returned as an error.
func (c *PlatformClient) CreateEscrow(ctx context.Context, params CreateEscrowParams, paidTier bool) (*CreateEscrowResult, error) {
	params.PaidTier = paidTier

	var result CreateEscrowResult
	if err := c.post(ctx, c.baseURL+"/api/escrow", params, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return &result, fmt.Errorf("%w: create escrow: %s", ErrPlatform, result.Error)
	}
	return &result, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("platform returned %d: %s", e.code, e.body)
}

func (e *statusError) Unwrap() error { return ErrPlatform }

func (c *PlatformClient) post(ctx context.Context, url string, payload any, out any) error {
	var reader io.Reader = http.NoBody
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("platform unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Debug("platform call rejected", zap.String("url", url), zap.Int("status", resp.StatusCode))
		return &statusError{code: resp.StatusCode, body: string(b)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode platform response: %w", err)
	}
	return nil
}
