package nowpayments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/escrowbot/payments/internal/application"
	"github.com/escrowbot/payments/internal/config"
	"github.com/google/uuid"
)

type HTTPGatewayClient struct {
	baseURL    string
	apiKey     string
	successURL string
	cancelURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewGatewayClient(cfg config.GatewayConfig, logger *slog.Logger) *HTTPGatewayClient {
	return &HTTPGatewayClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		logger: logger,
	}
}

type invoiceRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayCurrency      string  `json:"pay_currency"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description"`
	SuccessURL       string  `json:"success_url,omitempty"`
	CancelURL        string  `json:"cancel_url,omitempty"`
	IsFixedRate      bool    `json:"is_fixed_rate"`
	IsFeePaidByUser  bool    `json:"is_fee_paid_by_user"`
}

func (c *HTTPGatewayClient) CreateInvoice(ctx context.Context, req application.InvoiceRequest) (*application.Invoice, error) {
	orderID := fmt.Sprintf("user_%d_%s", req.UserID, uuid.NewString())

	body := invoiceRequest{
		PriceAmount:      float64(req.AmountCents) / 100,
		PriceCurrency:    "usd",
		PayCurrency:      strings.ToLower(req.PayCurrency),
		OrderID:          orderID,
		OrderDescription: fmt.Sprintf("Deposit for escrow bot - user %d", req.UserID),
		SuccessURL:       c.successURL,
		CancelURL:        c.cancelURL,
		IsFixedRate:      true,
		IsFeePaidByUser:  true,
	}

	data, err := c.sendRequest(ctx, http.MethodPost, c.baseURL+"/invoice", &body)
	if err != nil {
		return nil, err
	}

	paymentID, invoiceURL, err := ValidateInvoiceResponse(data)
	if err != nil {
		c.logger.Error("invalid invoice response", "order_id", orderID, "error", err)
		return nil, err
	}

	status, _ := ExtractStatus(data)

	c.logger.Info("invoice created",
		"payment_id", paymentID,
		"order_id", orderID,
		"pay_currency", body.PayCurrency,
	)

	return &application.Invoice{
		PaymentID:  paymentID,
		InvoiceURL: invoiceURL,
		Status:     status,
		OrderID:    orderID,
	}, nil
}

func (c *HTTPGatewayClient) GetPaymentStatus(ctx context.Context, paymentID string) (*application.PaymentState, error) {
	data, err := c.sendRequest(ctx, http.MethodGet, c.baseURL+"/payment/"+paymentID, nil)
	if err != nil {
		return nil, err
	}

	status, ok := ExtractStatus(data)
	if !ok {
		return nil, application.NewValidationError("missing payment status in response")
	}

	// Some response shapes echo the id back, some don't.
	if id, ok := ExtractPaymentID(data); ok {
		paymentID = id
	}

	c.logger.Debug("payment status fetched", "payment_id", paymentID, "status", status)

	return &application.PaymentState{
		PaymentID: paymentID,
		Status:    status,
	}, nil
}

func (c *HTTPGatewayClient) sendRequest(ctx context.Context, method, url string, reqBody *invoiceRequest) (map[string]any, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("x-api-key", c.apiKey)
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var errResp apiErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil || errResp.Message == "" {
			errResp.Message = strings.TrimSpace(string(body))
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       errResp.Code,
			Message:    errResp.Message,
		}
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, application.NewValidationError("malformed response body")
	}

	return data, nil
}
