package shop

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ClientWithPrometheus implements Client interface with all methods wrapped
// with Prometheus metrics
type ClientWithPrometheus struct {
	base         Client
	instanceName string
}

var clientDurationSummaryVec = promauto.NewSummaryVec(
	prometheus.SummaryOpts{
		Name:       "shop_client_duration_seconds",
		Help:       "client runtime duration and result",
		MaxAge:     time.Minute,
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	},
	[]string{"instance_name", "method", "result"})

// NewClientWithPrometheus returns an instance of the Client decorated with prometheus summary metric
func NewClientWithPrometheus(base Client, instanceName string) ClientWithPrometheus {
	return ClientWithPrometheus{
		base:         base,
		instanceName: instanceName,
	}
}

// CreateOrder implements Client
func (_d ClientWithPrometheus) CreateOrder(ctx context.Context, amount int64) (op1 *Order, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		clientDurationSummaryVec.WithLabelValues(_d.instanceName, "CreateOrder", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.CreateOrder(ctx, amount)
}

// ResolveKey implements Client
func (_d ClientWithPrometheus) ResolveKey(ctx context.Context) (s1 string, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		clientDurationSummaryVec.WithLabelValues(_d.instanceName, "ResolveKey", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.ResolveKey(ctx)
}

// VerifyPayment implements Client
func (_d ClientWithPrometheus) VerifyPayment(ctx context.Context, req VerifyRequest) (vp1 *VerifyResponse, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		clientDurationSummaryVec.WithLabelValues(_d.instanceName, "VerifyPayment", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.VerifyPayment(ctx, req)
}

// ListProducts implements Client
func (_d ClientWithPrometheus) ListProducts(ctx context.Context) (pa1 []Product, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		clientDurationSummaryVec.WithLabelValues(_d.instanceName, "ListProducts", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.ListProducts(ctx)
}

// GetProduct implements Client
func (_d ClientWithPrometheus) GetProduct(ctx context.Context, id string) (pp1 *Product, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		clientDurationSummaryVec.WithLabelValues(_d.instanceName, "GetProduct", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.GetProduct(ctx, id)
}
