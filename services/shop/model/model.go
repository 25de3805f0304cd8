// Package model provides data that the shop service operates on.
package model

import (
	"encoding/json"
	"math"
)

const (
	// Currency is the only currency orders are created in.
	Currency = "INR"
	// ReceiptPrefix prefixes the timestamp receipts sent to the gateway.
	ReceiptPrefix = "receipt_order_"

	// KeyNotConfiguredDetails is the operator hint returned with ErrKeyNotConfigured.
	KeyNotConfiguredDetails = "Please set NEXT_PUBLIC_RAZORPAY_KEY_ID or RAZORPAY_KEY_ID in your .env.local file"
	// RestartTip is returned with configuration debug data.
	RestartTip = "Make sure you have restarted your development server after creating/updating .env.local"

	// maxSafeAmount is the largest integer a json number carries exactly.
	maxSafeAmount = 1<<53 - 1
)

// The text of the following errors is shown to shoppers as is.
const (
	ErrInvalidAmount        Error = "Invalid amount. Amount must be a positive number in paise."
	ErrGatewayNotConfigured Error = "Razorpay is not configured. Please set RAZORPAY_KEY_ID and RAZORPAY_SECRET in your environment variables."
	ErrSecretNotConfigured  Error = "Razorpay is not configured. Please set RAZORPAY_SECRET in your environment variables."
	ErrKeyNotConfigured     Error = "Razorpay key not configured"
	ErrMissingPaymentParams Error = "Missing required payment parameters"
	ErrInvalidSignature     Error = "Invalid signature"
	ErrVerifyingPayment     Error = "Error verifying payment"
	ErrCreatingOrder        Error = "Error creating order"

	ErrProductNotFound Error = "model: product not found"
)

// Order is a gateway order. Raw keeps the gateway object verbatim.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
	Raw      map[string]interface{}
}

// OrderFromGateway reads the known fields of a gateway order object.
func OrderFromGateway(raw map[string]interface{}) *Order {
	result := &Order{Raw: raw}

	result.ID, _ = raw["id"].(string)
	result.Currency, _ = raw["currency"].(string)
	result.Receipt, _ = raw["receipt"].(string)
	result.Status, _ = raw["status"].(string)

	switch v := raw["amount"].(type) {
	case float64:
		result.Amount = int64(v)
	case json.Number:
		result.Amount, _ = v.Int64()
	case int64:
		result.Amount = v
	case int:
		result.Amount = int64(v)
	}

	return result
}

// MarshalJSON renders the gateway object verbatim when there is one.
func (o Order) MarshalJSON() ([]byte, error) {
	if o.Raw != nil {
		return json.Marshal(o.Raw)
	}

	return json.Marshal(map[string]interface{}{
		"id":       o.ID,
		"amount":   o.Amount,
		"currency": o.Currency,
		"receipt":  o.Receipt,
		"status":   o.Status,
	})
}

// UnmarshalJSON keeps every field of the gateway object.
func (o *Order) UnmarshalJSON(b []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*o = *OrderFromGateway(raw)

	return nil
}

// CreateOrderRequest is the body of a create order call.
// Amount is kept untyped so that a non numeric value is reported as an invalid amount.
type CreateOrderRequest struct {
	Amount interface{} `json:"amount"`
}

// ParseAmount returns the amount as a positive integer in minor units.
func (r CreateOrderRequest) ParseAmount() (int64, error) {
	v, ok := r.Amount.(float64)
	if !ok {
		return 0, ErrInvalidAmount
	}

	if v <= 0 || v > maxSafeAmount || v != math.Trunc(v) {
		return 0, ErrInvalidAmount
	}

	return int64(v), nil
}

// PaymentConfirmation is produced by the widget once the payer completes payment.
type PaymentConfirmation struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

// VerificationResult is the terminal value of a checkout attempt.
type VerificationResult struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"paymentId,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// KeyResponse carries the public gateway key.
type KeyResponse struct {
	KeyID string `json:"keyId"`
}

// CredentialsDebug tells an operator which gateway credentials are missing.
type CredentialsDebug struct {
	HasKeyID  bool   `json:"hasKeyId"`
	HasSecret bool   `json:"hasSecret"`
	Tip       string `json:"tip,omitempty"`
}

// KeyDebug tells an operator which key sources are set.
type KeyDebug struct {
	HasNextPublic bool `json:"hasNextPublic"`
	HasRegular    bool `json:"hasRegular"`
}

// Product is an item of the catalog.
type Product struct {
	ID           string `json:"id" yaml:"id"`
	Title        string `json:"title" yaml:"title"`
	Description  string `json:"description" yaml:"description"`
	ImageURL     string `json:"imageUrl" yaml:"image_url"`
	Amount       int64  `json:"amount" yaml:"amount"`
	PriceDisplay string `json:"priceDisplay" yaml:"-"`
}

type Error string

func (e Error) Error() string {
	return string(e)
}
