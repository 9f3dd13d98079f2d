package infra

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Gateway result statuses.
const (
	ChargeCompleted = "completed"
	ChargeFailed    = "failed"
	ChargePending   = "pending"
)

type ChargeRequest struct {
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Method      string          `json:"method"`
	Provider    string          `json:"provider"`
	CustomerID  uint            `json:"customerId"`
	Description string          `json:"description"`
}

type ChargeResult struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
}

type RefundRequest struct {
	TransactionID string          `json:"transactionId"`
	Reference     string          `json:"reference"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason"`
}

type RefundResult struct {
	RefundTransactionID string `json:"refundTransactionId"`
	Status              string `json:"status"`
	Reason              string `json:"reason,omitempty"`
}

type gatewayError struct {
	Message string `json:"message"`
}

// PaymentGateway talks to the external payment provider over HTTP. It only
// relays the provider's declared result.
type PaymentGateway struct {
	client *resty.Client
}

func NewPaymentGateway(baseURL, apiKey string, timeout time.Duration) *PaymentGateway {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &PaymentGateway{client: client}
}

func (g *PaymentGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	var result ChargeResult
	var apiErr gatewayError
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", req.Reference).
		SetBody(req).
		SetResult(&result).
		SetError(&apiErr).
		Post("/charges")
	if err != nil {
		return nil, errors.Wrap(err, "charge request")
	}
	if resp.IsError() {
		return nil, errors.Errorf("gateway returned %d: %s", resp.StatusCode(), apiErr.Message)
	}
	return &result, nil
}

func (g *PaymentGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	var result RefundResult
	var apiErr gatewayError
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", req.Reference).
		SetBody(req).
		SetResult(&result).
		SetError(&apiErr).
		Post("/refunds")
	if err != nil {
		return nil, errors.Wrap(err, "refund request")
	}
	if resp.IsError() {
		return nil, errors.Errorf("gateway returned %d: %s", resp.StatusCode(), apiErr.Message)
	}
	return &result, nil
}
