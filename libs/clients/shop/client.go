// Package shop is a client of the storefront api.
package shop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/folioshop/storefront/libs/clients"
	appctx "github.com/folioshop/storefront/libs/context"
)

const keyCacheKey = "razorpay_key"

// Client abstracts over the underlying client
type Client interface {
	CreateOrder(ctx context.Context, amount int64) (*Order, error)
	ResolveKey(ctx context.Context) (string, error)
	VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResponse, error)
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
}

// HTTPClient wraps http.Client for interacting with the storefront api
type HTTPClient struct {
	client *clients.SimpleHTTPClient
	cache  *cache.Cache
}

// NewWithContext returns a new client, retrieving the base URL and cache durations from the context
func NewWithContext(ctx context.Context) (Client, error) {
	serverURL, err := appctx.GetStringFromContext(ctx, appctx.ShopServerCTXKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get ShopServer from context: %w", err)
	}

	expires, err := appctx.GetDurationFromContext(ctx, appctx.KeyCacheExpiryDurationCTXKey)
	if err != nil {
		expires = 5 * time.Minute
	}

	purge, err := appctx.GetDurationFromContext(ctx, appctx.KeyCachePurgeDurationCTXKey)
	if err != nil {
		purge = 10 * time.Minute
	}

	return newInstrumented(serverURL, expires, purge, "shop_context_client")
}

// New returns a new client, retrieving the base URL from the environment
func New() (Client, error) {
	serverEnvKey := "SHOP_SERVER"

	serverURL := os.Getenv(serverEnvKey)
	if len(serverURL) == 0 {
		return nil, errors.New(serverEnvKey + " was empty")
	}

	return newInstrumented(serverURL, 5*time.Minute, 10*time.Minute, "shop_client")
}

// NewHTTPClient returns an uninstrumented client using hc for transport
func NewHTTPClient(serverURL string, hc *http.Client, expires, purge time.Duration) (*HTTPClient, error) {
	client, err := clients.NewWithHTTPClient(serverURL, "", hc)
	if err != nil {
		return nil, err
	}

	result := &HTTPClient{
		client: client,
		cache:  cache.New(expires, purge),
	}

	return result, nil
}

func newInstrumented(serverURL string, expires, purge time.Duration, name string) (Client, error) {
	client, err := clients.NewInstrumented(name, serverURL, "")
	if err != nil {
		return nil, err
	}

	return NewClientWithPrometheus(&HTTPClient{client: client, cache: cache.New(expires, purge)}, name), nil
}

// Order is an order as issued by the gateway
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type createOrderRequest struct {
	Amount int64 `json:"amount"`
}

// VerifyRequest is the confirmation produced by the payment widget
type VerifyRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// VerifyResponse is the outcome of a verification
type VerifyResponse struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"paymentId,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Product is an item of the catalog
type Product struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ImageURL     string `json:"imageUrl"`
	Amount       int64  `json:"amount"`
	PriceDisplay string `json:"priceDisplay"`
}

type keyResponse struct {
	KeyID string `json:"keyId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// APIError is a non 2xx response of the storefront api
type APIError struct {
	Status  int
	Message string
	Cause   error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("shop: status %d", e.Status)
	}

	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// CreateOrder creates an order of amount minor units
func (c *HTTPClient) CreateOrder(ctx context.Context, amount int64) (*Order, error) {
	req, err := c.client.NewRequest(ctx, http.MethodPost, "/api/create-order", createOrderRequest{Amount: amount}, nil)
	if err != nil {
		return nil, err
	}

	var resp Order
	if _, err := c.client.Do(ctx, req, &resp); err != nil {
		return nil, apiErrorOf(err)
	}

	return &resp, nil
}

// ResolveKey fetches the public gateway key, caching it
func (c *HTTPClient) ResolveKey(ctx context.Context) (string, error) {
	if key, found := c.cache.Get(keyCacheKey); found {
		return key.(string), nil
	}

	req, err := c.client.NewRequest(ctx, http.MethodGet, "/api/razorpay-key", nil, nil)
	if err != nil {
		return "", err
	}

	var resp keyResponse
	if _, err := c.client.Do(ctx, req, &resp); err != nil {
		return "", apiErrorOf(err)
	}

	if resp.KeyID != "" {
		c.cache.Set(keyCacheKey, resp.KeyID, cache.DefaultExpiration)
	}

	return resp.KeyID, nil
}

// VerifyPayment asks the api to verify a confirmation.
// A rejection is returned as a response with Success false, not as an error.
func (c *HTTPClient) VerifyPayment(ctx context.Context, vr VerifyRequest) (*VerifyResponse, error) {
	req, err := c.client.NewRequest(ctx, http.MethodPost, "/api/verify-payment", vr, nil)
	if err != nil {
		return nil, err
	}

	var resp VerifyResponse
	if _, err := c.client.Do(ctx, req, &resp); err != nil {
		body, ok := clients.ResponseBodyOf(err)
		if !ok {
			return nil, err
		}

		var rejected VerifyResponse
		if jerr := json.Unmarshal([]byte(body), &rejected); jerr != nil {
			return nil, err
		}

		return &rejected, nil
	}

	return &resp, nil
}

// ListProducts lists the catalog
func (c *HTTPClient) ListProducts(ctx context.Context) ([]Product, error) {
	req, err := c.client.NewRequest(ctx, http.MethodGet, "/api/products", nil, nil)
	if err != nil {
		return nil, err
	}

	var resp []Product
	if _, err := c.client.Do(ctx, req, &resp); err != nil {
		return nil, apiErrorOf(err)
	}

	return resp, nil
}

// GetProduct gets a product of the catalog
func (c *HTTPClient) GetProduct(ctx context.Context, id string) (*Product, error) {
	req, err := c.client.NewRequest(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}

	var resp Product
	if _, err := c.client.Do(ctx, req, &resp); err != nil {
		return nil, apiErrorOf(err)
	}

	return &resp, nil
}

// apiErrorOf extracts the api error message of a failed call.
// Errors without a response are returned as is.
func apiErrorOf(err error) error {
	state, ok := clients.HTTPStateOf(err)
	if !ok {
		return err
	}

	result := &APIError{Status: state.Status, Cause: err}

	if body, ok := clients.ResponseBodyOf(err); ok {
		var resp errorResponse
		if jerr := json.Unmarshal([]byte(body), &resp); jerr == nil {
			result.Message = strings.TrimSpace(resp.Error)
		}
	}

	return result
}
