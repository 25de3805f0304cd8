package shop

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"

	"github.com/folioshop/storefront/services/shop/model"
	"github.com/folioshop/storefront/services/shop/xrazorpay"

	errorutils "github.com/folioshop/storefront/libs/errors"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func TestService_CreateOrder(t *testing.T) {
	type tcGiven struct {
		cfg    Config
		amount int64
		gw     *xrazorpay.MockClient
	}

	type tcExpected struct {
		order  *model.Order
		kind   errorutils.Kind
		msg    string
		data   interface{}
		called bool
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   tcExpected
	}

	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	tests := []testCase{
		{
			name: "zero_amount",
			given: tcGiven{
				cfg:    Config{KeyID: "rzp_test_key", Secret: "s3cret"},
				amount: 0,
			},
			exp: tcExpected{
				kind: errorutils.ErrInvalidArgument,
				msg:  "Invalid amount. Amount must be a positive number in paise.",
			},
		},

		{
			name: "negative_amount",
			given: tcGiven{
				cfg:    Config{KeyID: "rzp_test_key", Secret: "s3cret"},
				amount: -100,
			},
			exp: tcExpected{
				kind: errorutils.ErrInvalidArgument,
				msg:  "Invalid amount. Amount must be a positive number in paise.",
			},
		},

		{
			name: "missing_secret",
			given: tcGiven{
				cfg:    Config{KeyID: "rzp_test_key"},
				amount: 399900,
			},
			exp: tcExpected{
				kind: errorutils.ErrNotConfigured,
				msg:  "Razorpay is not configured. Please set RAZORPAY_KEY_ID and RAZORPAY_SECRET in your environment variables.",
				data: model.CredentialsDebug{HasKeyID: true, Tip: model.RestartTip},
			},
		},

		{
			name: "missing_key_id",
			given: tcGiven{
				cfg:    Config{Secret: "s3cret"},
				amount: 399900,
			},
			exp: tcExpected{
				kind: errorutils.ErrNotConfigured,
				msg:  "Razorpay is not configured. Please set RAZORPAY_KEY_ID and RAZORPAY_SECRET in your environment variables.",
				data: model.CredentialsDebug{HasSecret: true, Tip: model.RestartTip},
			},
		},

		{
			name: "gateway_error",
			given: tcGiven{
				cfg:    Config{KeyID: "rzp_test_key", Secret: "s3cret"},
				amount: 399900,
				gw: &xrazorpay.MockClient{
					FnCreateOrder: func(ctx context.Context, params xrazorpay.OrderParams) (map[string]interface{}, error) {
						return nil, errors.New("Authentication failed")
					},
				},
			},
			exp: tcExpected{
				kind:   errorutils.ErrUpstream,
				msg:    "Authentication failed",
				called: true,
			},
		},

		{
			name: "gateway_timeout",
			given: tcGiven{
				cfg:    Config{KeyID: "rzp_test_key", Secret: "s3cret"},
				amount: 399900,
				gw: &xrazorpay.MockClient{
					FnCreateOrder: func(ctx context.Context, params xrazorpay.OrderParams) (map[string]interface{}, error) {
						return nil, context.DeadlineExceeded
					},
				},
			},
			exp: tcExpected{
				kind:   errorutils.ErrUpstream,
				msg:    "Gateway request timed out",
				called: true,
			},
		},

		{
			name: "success",
			given: tcGiven{
				cfg:    Config{KeyID: "rzp_test_key", Secret: "s3cret"},
				amount: 399900,
				gw: &xrazorpay.MockClient{
					FnCreateOrder: func(ctx context.Context, params xrazorpay.OrderParams) (map[string]interface{}, error) {
						if params.Amount != 399900 || params.Currency != "INR" || params.Receipt != "receipt_order_1709294400000" {
							return nil, errors.New("unexpected params")
						}

						return map[string]interface{}{
							"id":       "order_abc",
							"entity":   "order",
							"amount":   float64(399900),
							"currency": "INR",
							"receipt":  params.Receipt,
							"status":   "created",
						}, nil
					},
				},
			},
			exp: tcExpected{
				order: &model.Order{
					ID:       "order_abc",
					Amount:   399900,
					Currency: "INR",
					Receipt:  "receipt_order_1709294400000",
					Status:   "created",
					Raw: map[string]interface{}{
						"id":       "order_abc",
						"entity":   "order",
						"amount":   float64(399900),
						"currency": "INR",
						"receipt":  "receipt_order_1709294400000",
						"status":   "created",
					},
				},
				called: true,
			},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			var called bool

			var gw gatewayClient
			if tc.given.gw != nil || (tc.given.cfg.KeyID != "" && tc.given.cfg.Secret != "") {
				mock := tc.given.gw
				if mock == nil {
					mock = &xrazorpay.MockClient{}
				}

				gw = &recordingGateway{cl: mock, called: &called}
			}

			svc := NewService(tc.given.cfg, gw)
			svc.now = func() time.Time { return now }

			act, err := svc.CreateOrder(context.Background(), tc.given.amount)
			should.Equal(t, tc.exp.called, called)

			if tc.exp.kind != "" {
				must.Error(t, err)
				should.ErrorIs(t, err, tc.exp.kind)
				should.Equal(t, tc.exp.msg, err.Error())

				var f *errorutils.Fault
				must.True(t, errors.As(err, &f))
				should.Equal(t, tc.exp.data, f.Data)

				return
			}

			must.NoError(t, err)
			should.Equal(t, tc.exp.order, act)
		})
	}
}

func TestService_ResolveKey(t *testing.T) {
	type tcExpected struct {
		key  string
		kind errorutils.Kind
	}

	type testCase struct {
		name  string
		given Config
		exp   tcExpected
	}

	tests := []testCase{
		{
			name:  "public_preferred",
			given: Config{KeyID: "rzp_regular", PublicKeyID: "rzp_public"},
			exp:   tcExpected{key: "rzp_public"},
		},

		{
			name:  "regular_fallback",
			given: Config{KeyID: "rzp_regular"},
			exp:   tcExpected{key: "rzp_regular"},
		},

		{
			name:  "public_only",
			given: Config{PublicKeyID: "rzp_public"},
			exp:   tcExpected{key: "rzp_public"},
		},

		{
			name:  "neither",
			given: Config{Secret: "s3cret"},
			exp:   tcExpected{kind: errorutils.ErrNotConfigured},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(tc.given, nil)

			act, err := svc.ResolveKey()
			if tc.exp.kind != "" {
				should.ErrorIs(t, err, tc.exp.kind)
				should.Equal(t, "Razorpay key not configured", err.Error())
				should.Equal(t, "", act)
				return
			}

			must.NoError(t, err)
			should.Equal(t, tc.exp.key, act)
		})
	}
}

func TestService_VerifyPayment(t *testing.T) {
	valid := ComputeSignature("s3cret", "order_abc", "pay_xyz")

	type tcGiven struct {
		secret string
		req    model.PaymentConfirmation
	}

	type tcExpected struct {
		result *model.VerificationResult
		kind   errorutils.Kind
		msg    string
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   tcExpected
	}

	tests := []testCase{
		{
			name: "missing_signature",
			given: tcGiven{
				secret: "s3cret",
				req:    model.PaymentConfirmation{OrderID: "order_abc", PaymentID: "pay_xyz"},
			},
			exp: tcExpected{
				kind: errorutils.ErrInvalidArgument,
				msg:  "Missing required payment parameters",
			},
		},

		{
			name: "missing_fields_checked_before_secret",
			given: tcGiven{
				req: model.PaymentConfirmation{OrderID: "order_abc"},
			},
			exp: tcExpected{
				kind: errorutils.ErrInvalidArgument,
				msg:  "Missing required payment parameters",
			},
		},

		{
			name: "missing_secret",
			given: tcGiven{
				req: model.PaymentConfirmation{OrderID: "order_abc", PaymentID: "pay_xyz", Signature: valid},
			},
			exp: tcExpected{
				kind: errorutils.ErrNotConfigured,
				msg:  "Razorpay is not configured. Please set RAZORPAY_SECRET in your environment variables.",
			},
		},

		{
			name: "invalid_signature",
			given: tcGiven{
				secret: "s3cret",
				req:    model.PaymentConfirmation{OrderID: "order_abc", PaymentID: "pay_xyz", Signature: "deadbeef"},
			},
			exp: tcExpected{
				kind: errorutils.ErrVerificationFailed,
				msg:  "Invalid signature",
			},
		},

		{
			name: "valid",
			given: tcGiven{
				secret: "s3cret",
				req:    model.PaymentConfirmation{OrderID: "order_abc", PaymentID: "pay_xyz", Signature: valid},
			},
			exp: tcExpected{
				result: &model.VerificationResult{Success: true, PaymentID: "pay_xyz", OrderID: "order_abc"},
			},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(Config{KeyID: "rzp_test_key", Secret: tc.given.secret}, nil)

			act, err := svc.VerifyPayment(context.Background(), tc.given.req)
			if tc.exp.kind != "" {
				should.ErrorIs(t, err, tc.exp.kind)
				should.Equal(t, tc.exp.msg, errorutils.MessageOf(err))
				should.Nil(t, act)
				return
			}

			must.NoError(t, err)
			should.Equal(t, tc.exp.result, act)
		})
	}
}

type recordingGateway struct {
	cl     gatewayClient
	called *bool
}

func (g *recordingGateway) CreateOrder(ctx context.Context, params xrazorpay.OrderParams) (map[string]interface{}, error) {
	*g.called = true
	return g.cl.CreateOrder(ctx, params)
}
