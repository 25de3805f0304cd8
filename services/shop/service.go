// Package shop creates gateway orders and verifies payment confirmations.
package shop

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/folioshop/storefront/libs/logging"
	"github.com/folioshop/storefront/services/shop/model"
	"github.com/folioshop/storefront/services/shop/xrazorpay"

	errorutils "github.com/folioshop/storefront/libs/errors"
)

var (
	ordersCreatedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Number of order creation attempts by result",
		},
		[]string{"result"},
	)

	paymentVerificationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_payment_verifications_total",
			Help: "Number of payment verifications by result",
		},
		[]string{"result"},
	)
)

type gatewayClient interface {
	CreateOrder(ctx context.Context, params xrazorpay.OrderParams) (map[string]interface{}, error)
}

// Config holds the gateway credentials.
// PublicKeyID is the public-prefixed alias of KeyID and wins when both are set.
type Config struct {
	KeyID       string
	PublicKeyID string
	Secret      string
}

// Service implements order creation, key resolution and payment verification.
type Service struct {
	cfg     Config
	gateway gatewayClient
	now     func() time.Time
}

// NewService creates a service. The gateway may be nil when credentials are missing.
func NewService(cfg Config, gateway gatewayClient) *Service {
	return &Service{
		cfg:     cfg,
		gateway: gateway,
		now:     time.Now,
	}
}

// NewServiceWithGateway builds the razorpay client from cfg when both credentials are present.
func NewServiceWithGateway(cfg Config) *Service {
	var gateway gatewayClient
	if cfg.KeyID != "" && cfg.Secret != "" {
		gateway = xrazorpay.NewInstrumentedClient("razorpay", xrazorpay.NewClient(cfg.KeyID, cfg.Secret))
	}

	return NewService(cfg, gateway)
}

// IsConfigured reports whether orders can be created.
func (s *Service) IsConfigured() bool {
	return s.cfg.KeyID != "" && s.cfg.Secret != "" && s.gateway != nil
}

// CreateOrder creates a gateway order for amount minor units of INR.
func (s *Service) CreateOrder(ctx context.Context, amount int64) (*model.Order, error) {
	if amount <= 0 {
		ordersCreatedCounter.WithLabelValues("invalid").Inc()
		return nil, errorutils.NewFault(errorutils.ErrInvalidArgument, model.ErrInvalidAmount.Error(), model.ErrInvalidAmount)
	}

	lg := logging.Logger(ctx, "shop").With().Str("func", "CreateOrder").Logger()

	if !s.IsConfigured() {
		lg.Error().
			Bool("has_key_id", s.cfg.KeyID != "").
			Bool("has_secret", s.cfg.Secret != "").
			Msg("gateway credentials are missing")

		ordersCreatedCounter.WithLabelValues("not_configured").Inc()

		f := errorutils.NewFault(errorutils.ErrNotConfigured, model.ErrGatewayNotConfigured.Error(), model.ErrGatewayNotConfigured)
		return nil, f.WithData(model.CredentialsDebug{
			HasKeyID:  s.cfg.KeyID != "",
			HasSecret: s.cfg.Secret != "",
			Tip:       model.RestartTip,
		})
	}

	// TODO: millisecond receipts can collide under concurrent checkouts, switch to a random id once the
	// gateway dashboards no longer sort on the receipt.
	params := xrazorpay.OrderParams{
		Amount:   amount,
		Currency: model.Currency,
		Receipt:  model.ReceiptPrefix + strconv.FormatInt(s.now().UnixMilli(), 10),
	}

	raw, err := s.gateway.CreateOrder(ctx, params)
	if err != nil {
		lg.Error().Err(err).Int64("amount", amount).Msg("failed to create gateway order")
		ordersCreatedCounter.WithLabelValues("error").Inc()

		return nil, errorutils.NewFault(errorutils.ErrUpstream, gatewayMessage(err), err)
	}

	ordersCreatedCounter.WithLabelValues("ok").Inc()

	result := model.OrderFromGateway(raw)
	lg.Debug().Str("order_id", result.ID).Str("receipt", params.Receipt).Msg("order created")

	return result, nil
}

// ResolveKey returns the public gateway key.
func (s *Service) ResolveKey() (string, error) {
	if s.cfg.PublicKeyID != "" {
		return s.cfg.PublicKeyID, nil
	}

	if s.cfg.KeyID != "" {
		return s.cfg.KeyID, nil
	}

	f := errorutils.NewFault(errorutils.ErrNotConfigured, model.ErrKeyNotConfigured.Error(), model.ErrKeyNotConfigured)

	return "", f.WithData(model.KeyDebug{})
}

// VerifyPayment checks that the confirmation was signed with the gateway secret.
func (s *Service) VerifyPayment(ctx context.Context, req model.PaymentConfirmation) (*model.VerificationResult, error) {
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		paymentVerificationsCounter.WithLabelValues("invalid").Inc()
		return nil, errorutils.NewFault(errorutils.ErrInvalidArgument, model.ErrMissingPaymentParams.Error(), model.ErrMissingPaymentParams)
	}

	lg := logging.Logger(ctx, "shop").With().
		Str("func", "VerifyPayment").
		Str("order_id", req.OrderID).
		Str("payment_id", req.PaymentID).
		Logger()

	if s.cfg.Secret == "" {
		lg.Error().Msg("gateway secret is missing")
		paymentVerificationsCounter.WithLabelValues("not_configured").Inc()

		return nil, errorutils.NewFault(errorutils.ErrNotConfigured, model.ErrSecretNotConfigured.Error(), model.ErrSecretNotConfigured)
	}

	if !VerifySignature(s.cfg.Secret, req.OrderID, req.PaymentID, req.Signature) {
		lg.Warn().Msg("payment signature mismatch")
		paymentVerificationsCounter.WithLabelValues("rejected").Inc()

		return nil, errorutils.NewFault(errorutils.ErrVerificationFailed, model.ErrInvalidSignature.Error(), model.ErrInvalidSignature)
	}

	paymentVerificationsCounter.WithLabelValues("ok").Inc()

	result := &model.VerificationResult{
		Success:   true,
		PaymentID: req.PaymentID,
		OrderID:   req.OrderID,
	}

	return result, nil
}

func gatewayMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Gateway request timed out"
	}

	if msg := err.Error(); msg != "" {
		return msg
	}

	return model.ErrCreatingOrder.Error()
}
