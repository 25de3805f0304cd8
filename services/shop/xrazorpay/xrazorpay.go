// Package xrazorpay wraps the razorpay sdk behind a context aware client.
package xrazorpay

import (
	"context"
	"errors"
	"time"

	"github.com/razorpay/razorpay-go"
)

// DefaultTimeout bounds a single gateway call.
const DefaultTimeout = 10 * time.Second

// ErrMissingOrderID is returned when the gateway answers without an order id.
var ErrMissingOrderID = errors.New("gateway returned an order without an id")

// OrderParams describes an order to create.
type OrderParams struct {
	Amount   int64
	Currency string
	Receipt  string
}

func (p OrderParams) data() map[string]interface{} {
	return map[string]interface{}{
		"amount":   p.Amount,
		"currency": p.Currency,
		"receipt":  p.Receipt,
	}
}

type Client struct {
	cl      *razorpay.Client
	timeout time.Duration
}

func NewClient(keyID, secret string) *Client {
	cl := razorpay.NewClient(keyID, secret)
	cl.SetTimeout(int16(DefaultTimeout / time.Second))

	return &Client{cl: cl, timeout: DefaultTimeout}
}

// CreateOrder creates an order and returns the gateway object verbatim.
// The sdk call is not cancellable, so the wait for it is bounded by ctx and the client timeout.
func (c *Client) CreateOrder(ctx context.Context, params OrderParams) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		order map[string]interface{}
		err   error
	}

	ch := make(chan result, 1)
	go func() {
		order, err := c.cl.Order.Create(params.data(), nil)
		ch <- result{order: order, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}

		// bad request errors without an error code decode to an empty order
		if id, _ := res.order["id"].(string); id == "" {
			return nil, ErrMissingOrderID
		}

		return res.order, nil
	}
}
