package xrazorpay

import (
	"context"
)

type MockClient struct {
	FnCreateOrder func(ctx context.Context, params OrderParams) (map[string]interface{}, error)
}

func (c *MockClient) CreateOrder(ctx context.Context, params OrderParams) (map[string]interface{}, error) {
	if c.FnCreateOrder == nil {
		result := map[string]interface{}{
			"id":          "order_test_id",
			"entity":      "order",
			"amount":      float64(params.Amount),
			"amount_paid": float64(0),
			"amount_due":  float64(params.Amount),
			"currency":    params.Currency,
			"receipt":     params.Receipt,
			"status":      "created",
			"attempts":    float64(0),
		}

		return result, nil
	}

	return c.FnCreateOrder(ctx, params)
}
