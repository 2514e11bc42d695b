// Package gateway is the HTTP client for the external payment vendor. It
// translates domain charge intents into vendor calls and vendor failures
// into RequestError values; transport details never leak to callers.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// ErrNotConfigured is returned by every operation when the client was built
// without credentials. Callers can branch on it without a vendor round trip.
var ErrNotConfigured = errors.New("payment gateway is not configured")

// RequestError carries the vendor's first reported reason for a failed call.
type RequestError struct {
	StatusCode int
	Reason     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("gateway request failed (%d): %s", e.StatusCode, e.Reason)
}

// PaymentGateway is the stable adapter interface the services depend on.
type PaymentGateway interface {
	ReconcileCustomer(ctx context.Context, profile CustomerProfile) (string, error)
	OpenCharge(ctx context.Context, spec ChargeSpec) (*Charge, error)
	PayWithCard(ctx context.Context, chargeID string, card CardDetails, holder CardHolderInfo) (*Charge, error)
	GetInstantTransferCode(ctx context.Context, chargeID string) (*InstantTransferCode, error)
	CancelCharge(ctx context.Context, chargeID string) error
	Refund(ctx context.Context, chargeID string, amount int) error
}

const (
	maxAttempts    = 3
	retryBaseDelay = 250 * time.Millisecond
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a gateway client with injected credentials. An empty API
// key produces a client whose operations all return ErrNotConfigured.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// ReconcileCustomer looks the payer up by tax id and updates the existing
// vendor customer, or creates one when none exists. Returns the vendor
// customer reference.
func (c *Client) ReconcileCustomer(ctx context.Context, profile CustomerProfile) (string, error) {
	if !c.configured() {
		return "", ErrNotConfigured
	}

	var list customerListResponse
	path := "/customers?cpfCnpj=" + url.QueryEscape(profile.TaxID)
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return "", err
	}

	body := customerRequest{
		Name:        profile.Name,
		Email:       profile.Email,
		CpfCnpj:     profile.TaxID,
		MobilePhone: profile.Phone,
	}

	if len(list.Data) > 0 {
		existing := list.Data[0]
		var updated customerResponse
		if err := c.do(ctx, http.MethodPost, "/customers/"+existing.ID, body, &updated); err != nil {
			return "", err
		}
		return updated.ID, nil
	}

	var created customerResponse
	if err := c.do(ctx, http.MethodPost, "/customers", body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// OpenCharge creates a charge correlated to the order via ExternalReference.
func (c *Client) OpenCharge(ctx context.Context, spec ChargeSpec) (*Charge, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}

	body := chargeRequest{
		Customer:          spec.CustomerRef,
		BillingType:       string(spec.BillingType),
		DueDate:           spec.DueDate.Format("2006-01-02"),
		ExternalReference: spec.ExternalReference,
		Description:       spec.Description,
	}
	// A count of 1 must not reach the wire: the vendor treats an explicit
	// single installment as a proratable plan, not a plain charge. Plans
	// carry installmentCount plus the full totalValue; the vendor does the
	// per-installment split, so a non-divisible total keeps its remainder.
	if spec.InstallmentCount > 1 {
		body.InstallmentCount = spec.InstallmentCount
		body.TotalValue = centsToValue(spec.Value)
	} else {
		body.Value = centsToValue(spec.Value)
	}

	var resp chargeResponse
	if err := c.do(ctx, http.MethodPost, "/payments", body, &resp); err != nil {
		return nil, err
	}
	return chargeFromResponse(resp), nil
}

// PayWithCard submits card details against an open charge. This is the only
// synchronous settlement path; the returned status may already be terminal.
func (c *Client) PayWithCard(ctx context.Context, chargeID string, card CardDetails, holder CardHolderInfo) (*Charge, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}

	var body cardPayRequest
	body.CreditCard.HolderName = card.HolderName
	body.CreditCard.Number = card.Number
	body.CreditCard.ExpiryMonth = card.ExpiryMonth
	body.CreditCard.ExpiryYear = card.ExpiryYear
	body.CreditCard.Ccv = card.CCV
	body.CreditCardHolderInfo.Name = holder.Name
	body.CreditCardHolderInfo.Email = holder.Email
	body.CreditCardHolderInfo.CpfCnpj = holder.TaxID
	body.CreditCardHolderInfo.Phone = holder.Phone
	body.CreditCardHolderInfo.PostalCode = holder.PostalCode
	body.CreditCardHolderInfo.AddressNumber = holder.AddressNumber

	var resp chargeResponse
	if err := c.do(ctx, http.MethodPost, "/payments/"+chargeID+"/payWithCreditCard", body, &resp); err != nil {
		return nil, err
	}
	return chargeFromResponse(resp), nil
}

// GetInstantTransferCode fetches the PIX payload, QR image and expiry for a
// pending charge.
func (c *Client) GetInstantTransferCode(ctx context.Context, chargeID string) (*InstantTransferCode, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}

	var resp pixQrCodeResponse
	if err := c.do(ctx, http.MethodGet, "/payments/"+chargeID+"/pixQrCode", nil, &resp); err != nil {
		return nil, err
	}

	code := &InstantTransferCode{
		Payload:      resp.Payload,
		EncodedImage: resp.EncodedImage,
	}
	if resp.ExpirationDate != "" {
		if t, err := time.Parse("2006-01-02 15:04:05", resp.ExpirationDate); err == nil {
			code.ExpirationDate = t
		}
	}
	return code, nil
}

func (c *Client) CancelCharge(ctx context.Context, chargeID string) error {
	if !c.configured() {
		return ErrNotConfigured
	}
	return c.do(ctx, http.MethodDelete, "/payments/"+chargeID, nil, nil)
}

// Refund refunds a charge. A zero amount refunds the full value.
func (c *Client) Refund(ctx context.Context, chargeID string, amount int) error {
	if !c.configured() {
		return ErrNotConfigured
	}
	var body interface{}
	if amount > 0 {
		body = refundRequest{Value: centsToValue(amount)}
	}
	return c.do(ctx, http.MethodPost, "/payments/"+chargeID+"/refund", body, nil)
}

// do performs one vendor call with bounded retries on transient failures
// (network errors, 429, 5xx). Non-retryable vendor rejections are translated
// into RequestError with the vendor's first reported description.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal gateway request: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBaseDelay * time.Duration(attempt-1)):
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("failed to build gateway request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("access_token", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("gateway call failed",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out != nil && len(respBody) > 0 {
				if err := json.Unmarshal(respBody, out); err != nil {
					return fmt.Errorf("failed to decode gateway response: %w", err)
				}
			}
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &RequestError{StatusCode: resp.StatusCode, Reason: vendorReason(respBody)}
			continue
		}

		return &RequestError{StatusCode: resp.StatusCode, Reason: vendorReason(respBody)}
	}

	if reqErr, ok := lastErr.(*RequestError); ok {
		return reqErr
	}
	return &RequestError{StatusCode: 0, Reason: fmt.Sprintf("gateway unreachable: %v", lastErr)}
}

// vendorReason extracts the first human-readable description from a vendor
// error body, falling back to the raw body.
func vendorReason(body []byte) string {
	var parsed vendorErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		return parsed.Errors[0].Description
	}
	if len(body) > 0 {
		return string(body)
	}
	return "unknown vendor error"
}

func chargeFromResponse(resp chargeResponse) *Charge {
	return &Charge{
		ID:          resp.ID,
		Status:      resp.Status,
		InvoiceURL:  resp.InvoiceURL,
		BankSlipURL: resp.BankSlipURL,
		Barcode:     resp.IdentificationField,
	}
}

func centsToValue(cents int) float64 {
	return float64(cents) / 100
}

var _ PaymentGateway = (*Client)(nil)
