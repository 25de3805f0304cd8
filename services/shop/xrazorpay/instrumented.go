package xrazorpay

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type orderCreator interface {
	CreateOrder(ctx context.Context, params OrderParams) (map[string]interface{}, error)
}

var clientDurationSummaryVec = promauto.NewSummaryVec(
	prometheus.SummaryOpts{
		Name:       "razorpay_client_duration_seconds",
		Help:       "client runtime duration and result",
		MaxAge:     time.Minute,
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	},
	[]string{"instance_name", "method", "result"})

// InstrumentedClient decorates a gateway client with a prometheus summary metric.
type InstrumentedClient struct {
	name string
	cl   orderCreator
}

func NewInstrumentedClient(name string, cl orderCreator) *InstrumentedClient {
	return &InstrumentedClient{name: name, cl: cl}
}

func (_d *InstrumentedClient) CreateOrder(ctx context.Context, params OrderParams) (m1 map[string]interface{}, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		clientDurationSummaryVec.WithLabelValues(_d.name, "CreateOrder", result).Observe(time.Since(_since).Seconds())
	}()

	return _d.cl.CreateOrder(ctx, params)
}
