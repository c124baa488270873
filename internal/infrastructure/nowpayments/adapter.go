package nowpayments

import (
	"strings"

	"github.com/escrowbot/payments/internal/application"
	"github.com/spf13/cast"
)

// The provider has shipped two response shapes over time. Each logical field
// is resolved through an ordered alias table, new-format key first; the first
// present non-empty value wins. Absence of all aliases is a validation
// failure, never a crash.
var (
	paymentIDAliases  = []string{"payment_id", "id"}
	statusAliases     = []string{"payment_status", "status"}
	invoiceURLAliases = []string{"invoice_url"}
)

// probe consults an alias table against a decoded payload. Values are
// coerced to strings because the provider sends numeric ids in some shapes.
func probe(data map[string]any, aliases []string) (string, bool) {
	for _, key := range aliases {
		v, ok := data[key]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(cast.ToString(v))
		if s != "" {
			return s, true
		}
	}
	return "", false
}

func ExtractPaymentID(data map[string]any) (string, bool) {
	return probe(data, paymentIDAliases)
}

func ExtractStatus(data map[string]any) (string, bool) {
	return probe(data, statusAliases)
}

func ExtractInvoiceURL(data map[string]any) (string, bool) {
	return probe(data, invoiceURLAliases)
}

// ValidateInvoiceResponse checks an invoice-creation response for the fields
// the ledger needs.
func ValidateInvoiceResponse(data map[string]any) (paymentID, invoiceURL string, err error) {
	paymentID, ok := ExtractPaymentID(data)
	if !ok {
		return "", "", application.NewValidationError("missing payment ID in response")
	}

	invoiceURL, ok = ExtractInvoiceURL(data)
	if !ok {
		return "", "", application.NewValidationError("missing invoice URL in response")
	}

	return paymentID, invoiceURL, nil
}

// ValidateWebhookPayload checks a webhook payload for identifier and status.
func ValidateWebhookPayload(data map[string]any) (paymentID, status string, err error) {
	paymentID, ok := ExtractPaymentID(data)
	if !ok {
		return "", "", application.NewValidationError("missing payment ID in webhook payload")
	}

	status, ok = ExtractStatus(data)
	if !ok {
		return "", "", application.NewValidationError("missing payment status in webhook payload")
	}

	return paymentID, status, nil
}

// PaymentInfo is the normalized view of a raw provider payload. The
// informational fields are passed through unmodified.
type PaymentInfo struct {
	PaymentID     string
	Status        string
	InvoiceURL    string
	OrderID       string
	PriceAmount   string
	PriceCurrency string
	PayCurrency   string
}

// Normalize flattens a raw payload for logging and diagnostics. Missing
// fields come back empty.
func Normalize(data map[string]any) PaymentInfo {
	id, _ := ExtractPaymentID(data)
	status, _ := ExtractStatus(data)
	url, _ := ExtractInvoiceURL(data)

	return PaymentInfo{
		PaymentID:     id,
		Status:        status,
		InvoiceURL:    url,
		OrderID:       cast.ToString(data["order_id"]),
		PriceAmount:   cast.ToString(data["price_amount"]),
		PriceCurrency: cast.ToString(data["price_currency"]),
		PayCurrency:   cast.ToString(data["pay_currency"]),
	}
}
