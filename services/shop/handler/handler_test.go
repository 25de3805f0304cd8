package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"

	"github.com/folioshop/storefront/services/shop/handler"
	"github.com/folioshop/storefront/services/shop/model"

	errorutils "github.com/folioshop/storefront/libs/errors"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type mockPaymentService struct {
	fnCreateOrder   func(ctx context.Context, amount int64) (*model.Order, error)
	fnResolveKey    func() (string, error)
	fnVerifyPayment func(ctx context.Context, req model.PaymentConfirmation) (*model.VerificationResult, error)
}

func (s *mockPaymentService) CreateOrder(ctx context.Context, amount int64) (*model.Order, error) {
	if s.fnCreateOrder == nil {
		return &model.Order{ID: "order_abc", Amount: amount, Currency: model.Currency, Receipt: "receipt_order_1", Status: "created"}, nil
	}

	return s.fnCreateOrder(ctx, amount)
}

func (s *mockPaymentService) ResolveKey() (string, error) {
	if s.fnResolveKey == nil {
		return "rzp_test_key", nil
	}

	return s.fnResolveKey()
}

func (s *mockPaymentService) VerifyPayment(ctx context.Context, req model.PaymentConfirmation) (*model.VerificationResult, error) {
	if s.fnVerifyPayment == nil {
		return &model.VerificationResult{Success: true, PaymentID: req.PaymentID, OrderID: req.OrderID}, nil
	}

	return s.fnVerifyPayment(ctx, req)
}

func TestPayment_CreateOrder(t *testing.T) {
	type tcGiven struct {
		svc  *mockPaymentService
		body string
	}

	type tcExpected struct {
		code int
		body string
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   tcExpected
	}

	tests := []testCase{
		{
			name: "empty_body",
			given: tcGiven{
				svc: &mockPaymentService{},
			},
			exp: tcExpected{
				code: http.StatusBadRequest,
				body: `{"error":"Invalid amount. Amount must be a positive number in paise."}`,
			},
		},

		{
			name: "malformed_body",
			given: tcGiven{
				svc:  &mockPaymentService{},
				body: `{"amount":`,
			},
			exp: tcExpected{
				code: http.StatusBadRequest,
				body: `{"error":"Invalid amount. Amount must be a positive number in paise."}`,
			},
		},

		{
			name: "string_amount",
			given: tcGiven{
				svc:  &mockPaymentService{},
				body: `{"amount":"399900"}`,
			},
			exp: tcExpected{
				code: http.StatusBadRequest,
				body: `{"error":"Invalid amount. Amount must be a positive number in paise."}`,
			},
		},

		{
			name: "zero_amount",
			given: tcGiven{
				svc:  &mockPaymentService{},
				body: `{"amount":0}`,
			},
			exp: tcExpected{
				code: http.StatusBadRequest,
				body: `{"error":"Invalid amount. Amount must be a positive number in paise."}`,
			},
		},

		{
			name: "not_configured",
			given: tcGiven{
				svc: &mockPaymentService{
					fnCreateOrder: func(ctx context.Context, amount int64) (*model.Order, error) {
						f := errorutils.NewFault(errorutils.ErrNotConfigured, model.ErrGatewayNotConfigured.Error(), nil)
						return nil, f.WithData(model.CredentialsDebug{HasKeyID: true, Tip: model.RestartTip})
					},
				},
				body: `{"amount":399900}`,
			},
			exp: tcExpected{
				code: http.StatusInternalServerError,
				body: `{
					"error":"Razorpay is not configured. Please set RAZORPAY_KEY_ID and RAZORPAY_SECRET in your environment variables.",
					"debug":{
						"hasKeyId":true,
						"hasSecret":false,
						"tip":"Make sure you have restarted your development server after creating/updating .env.local"
					}
				}`,
			},
		},

		{
			name: "gateway_error",
			given: tcGiven{
				svc: &mockPaymentService{
					fnCreateOrder: func(ctx context.Context, amount int64) (*model.Order, error) {
						return nil, errorutils.NewFault(errorutils.ErrUpstream, "Authentication failed", errors.New("401"))
					},
				},
				body: `{"amount":399900}`,
			},
			exp: tcExpected{
				code: http.StatusInternalServerError,
				body: `{"error":"Authentication failed"}`,
			},
		},

		{
			name: "success",
			given: tcGiven{
				svc: &mockPaymentService{
					fnCreateOrder: func(ctx context.Context, amount int64) (*model.Order, error) {
						raw := map[string]interface{}{
							"id":       "order_abc",
							"entity":   "order",
							"amount":   float64(amount),
							"currency": "INR",
							"receipt":  "receipt_order_1",
							"status":   "created",
						}

						return model.OrderFromGateway(raw), nil
					},
				},
				body: `{"amount":399900}`,
			},
			exp: tcExpected{
				code: http.StatusOK,
				body: `{"id":"order_abc","entity":"order","amount":399900,"currency":"INR","receipt":"receipt_order_1","status":"created"}`,
			},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			h := handler.NewPayment(tc.given.svc)

			req := httptest.NewRequest(http.MethodPost, "http://localhost", bytes.NewBufferString(tc.given.body))
			if tc.given.body == "" {
				req.Body = http.NoBody
			}

			rw := httptest.NewRecorder()
			rw.Header().Set("content-type", "application/json")

			if act := h.CreateOrder(rw, req); act != nil {
				must.Equal(t, tc.exp.code, act.Code)
				act.ServeHTTP(rw, req)
			}

			should.Equal(t, tc.exp.code, rw.Code)
			should.JSONEq(t, tc.exp.body, rw.Body.String())
		})
	}
}

func TestPayment_Key(t *testing.T) {
	type tcExpected struct {
		code int
		body string
	}

	type testCase struct {
		name  string
		given *mockPaymentService
		exp   tcExpected
	}

	tests := []testCase{
		{
			name:  "success",
			given: &mockPaymentService{},
			exp: tcExpected{
				code: http.StatusOK,
				body: `{"keyId":"rzp_test_key"}`,
			},
		},

		{
			name: "not_configured",
			given: &mockPaymentService{
				fnResolveKey: func() (string, error) {
					f := errorutils.NewFault(errorutils.ErrNotConfigured, model.ErrKeyNotConfigured.Error(), model.ErrKeyNotConfigured)
					return "", f.WithData(model.KeyDebug{})
				},
			},
			exp: tcExpected{
				code: http.StatusInternalServerError,
				body: `{
					"error":"Razorpay key not configured",
					"details":"Please set NEXT_PUBLIC_RAZORPAY_KEY_ID or RAZORPAY_KEY_ID in your .env.local file",
					"debug":{"hasNextPublic":false,"hasRegular":false}
				}`,
			},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			h := handler.NewPayment(tc.given)

			req := httptest.NewRequest(http.MethodGet, "http://localhost", nil)

			rw := httptest.NewRecorder()
			rw.Header().Set("content-type", "application/json")

			if act := h.Key(rw, req); act != nil {
				act.ServeHTTP(rw, req)
			}

			should.Equal(t, tc.exp.code, rw.Code)
			should.JSONEq(t, tc.exp.body, rw.Body.String())
		})
	}
}

func TestPayment_VerifyPayment(t *testing.T) {
	type tcGiven struct {
		svc  *mockPaymentService
		body string
	}

	type tcExpected struct {
		code int
		body string
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   tcExpected
	}

	tests := []testCase{
		{
			name: "malformed_body",
			given: tcGiven{
				svc:  &mockPaymentService{},
				body: `not json`,
			},
			exp: tcExpected{
				code: http.StatusBadRequest,
				body: `{"success":false,"error":"Missing required payment parameters"}`,
			},
		},

		{
			name: "missing_signature",
			given: tcGiven{
				svc:  &mockPaymentService{},
				body: `{"razorpay_order_id":"order_abc","razorpay_payment_id":"pay_xyz"}`,
			},
			exp: tcExpected{
				code: http.StatusBadRequest,
				body: `{"success":false,"error":"Missing required payment parameters"}`,
			},
		},

		{
			name: "invalid_signature",
			given: tcGiven{
				svc: &mockPaymentService{
					fnVerifyPayment: func(ctx context.Context, req model.PaymentConfirmation) (*model.VerificationResult, error) {
						return nil, errorutils.NewFault(errorutils.ErrVerificationFailed, model.ErrInvalidSignature.Error(), nil)
					},
				},
				body: `{"razorpay_order_id":"order_abc","razorpay_payment_id":"pay_xyz","razorpay_signature":"deadbeef"}`,
			},
			exp: tcExpected{
				code: http.StatusBadRequest,
				body: `{"success":false,"error":"Invalid signature"}`,
			},
		},

		{
			name: "not_configured",
			given: tcGiven{
				svc: &mockPaymentService{
					fnVerifyPayment: func(ctx context.Context, req model.PaymentConfirmation) (*model.VerificationResult, error) {
						return nil, errorutils.NewFault(errorutils.ErrNotConfigured, model.ErrSecretNotConfigured.Error(), nil)
					},
				},
				body: `{"razorpay_order_id":"order_abc","razorpay_payment_id":"pay_xyz","razorpay_signature":"deadbeef"}`,
			},
			exp: tcExpected{
				code: http.StatusInternalServerError,
				body: `{"success":false,"error":"Razorpay is not configured. Please set RAZORPAY_SECRET in your environment variables."}`,
			},
		},

		{
			name: "unexpected_error",
			given: tcGiven{
				svc: &mockPaymentService{
					fnVerifyPayment: func(ctx context.Context, req model.PaymentConfirmation) (*model.VerificationResult, error) {
						return nil, model.Error("something went wrong")
					},
				},
				body: `{"razorpay_order_id":"order_abc","razorpay_payment_id":"pay_xyz","razorpay_signature":"deadbeef"}`,
			},
			exp: tcExpected{
				code: http.StatusInternalServerError,
				body: `{"success":false,"error":"Error verifying payment"}`,
			},
		},

		{
			name: "success",
			given: tcGiven{
				svc:  &mockPaymentService{},
				body: `{"razorpay_order_id":"order_abc","razorpay_payment_id":"pay_xyz","razorpay_signature":"cafe"}`,
			},
			exp: tcExpected{
				code: http.StatusOK,
				body: `{"success":true,"paymentId":"pay_xyz","orderId":"order_abc"}`,
			},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			h := handler.NewPayment(tc.given.svc)

			req := httptest.NewRequest(http.MethodPost, "http://localhost", bytes.NewBufferString(tc.given.body))

			rw := httptest.NewRecorder()
			rw.Header().Set("content-type", "application/json")

			if act := h.VerifyPayment(rw, req); act != nil {
				act.ServeHTTP(rw, req)
			}

			should.Equal(t, tc.exp.code, rw.Code)
			should.JSONEq(t, tc.exp.body, rw.Body.String())
		})
	}
}

type mockCatalog struct {
	products []model.Product
}

func (c *mockCatalog) List() []model.Product {
	return c.products
}

func (c *mockCatalog) Get(id string) (model.Product, error) {
	for _, p := range c.products {
		if p.ID == id {
			return p, nil
		}
	}

	return model.Product{}, fmt.Errorf("%w: %w", model.ErrProductNotFound, errorutils.ErrNotFound)
}

func TestProduct_Get(t *testing.T) {
	cat := &mockCatalog{
		products: []model.Product{
			{ID: "n8n-data-sync", Title: "Data Synchronization Workflow", Amount: 599900, PriceDisplay: "₹5,999"},
		},
	}

	h := handler.NewProduct(cat)

	t.Run("found", func(t *testing.T) {
		req := newRequestWithProductID("n8n-data-sync")

		rw := httptest.NewRecorder()
		rw.Header().Set("content-type", "application/json")

		must.Nil(t, h.Get(rw, req))
		must.Equal(t, http.StatusOK, rw.Code)

		act := model.Product{}
		must.NoError(t, json.Unmarshal(rw.Body.Bytes(), &act))

		should.Equal(t, cat.products[0], act)
	})

	t.Run("not_found", func(t *testing.T) {
		req := newRequestWithProductID("missing")

		rw := httptest.NewRecorder()
		rw.Header().Set("content-type", "application/json")

		act := h.Get(rw, req)
		must.NotNil(t, act)

		should.Equal(t, http.StatusNotFound, act.Code)
		should.Equal(t, "Product not found", act.Message)
	})
}

func newRequestWithProductID(id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("productID", id)

	req := httptest.NewRequest(http.MethodGet, "http://localhost", nil)

	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
