// Package handler provides the http handlers of the storefront api.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"

	"github.com/folioshop/storefront/libs/handlers"
	"github.com/folioshop/storefront/libs/logging"
	"github.com/folioshop/storefront/libs/requestutils"

	"github.com/folioshop/storefront/services/shop/model"

	errorutils "github.com/folioshop/storefront/libs/errors"
)

type paymentService interface {
	CreateOrder(ctx context.Context, amount int64) (*model.Order, error)
	ResolveKey() (string, error)
	VerifyPayment(ctx context.Context, req model.PaymentConfirmation) (*model.VerificationResult, error)
}

type productCatalog interface {
	List() []model.Product
	Get(id string) (model.Product, error)
}

type Payment struct {
	svc   paymentService
	valid *validator.Validate
}

func NewPayment(svc paymentService) *Payment {
	result := &Payment{
		svc:   svc,
		valid: validator.New(),
	}

	return result
}

func (h *Payment) CreateOrder(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()

	var req model.CreateOrderRequest
	if err := requestutils.ReadJSON(ctx, r.Body, &req); err != nil {
		return handlers.WrapError(err, model.ErrInvalidAmount.Error(), http.StatusBadRequest)
	}

	amount, err := req.ParseAmount()
	if err != nil {
		return handlers.WrapError(err, err.Error(), http.StatusBadRequest)
	}

	lg := logging.Logger(ctx, "shop").With().Str("func", "CreateOrderHandler").Logger()

	order, err := h.svc.CreateOrder(ctx, amount)
	if err != nil {
		lg.Error().Err(err).Int64("amount", amount).Msg("failed to create order")

		return handlers.WrapFault(err)
	}

	return handlers.RenderContent(ctx, order, w, http.StatusOK)
}

func (h *Payment) Key(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()

	key, err := h.svc.ResolveKey()
	if err != nil {
		lg := logging.Logger(ctx, "shop").With().Str("func", "KeyHandler").Logger()
		lg.Error().Err(err).Msg("failed to resolve key")

		result := handlers.WrapFault(err)
		if errors.Is(err, model.ErrKeyNotConfigured) {
			result.Details = model.KeyNotConfiguredDetails
		}

		return result
	}

	return handlers.RenderContent(ctx, model.KeyResponse{KeyID: key}, w, http.StatusOK)
}

func (h *Payment) VerifyPayment(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()

	lg := logging.Logger(ctx, "shop").With().Str("func", "VerifyPaymentHandler").Logger()

	var req model.PaymentConfirmation
	if err := requestutils.ReadJSON(ctx, r.Body, &req); err != nil {
		lg.Warn().Err(err).Msg("failed to read request body")

		return handlers.WrapError(err, model.ErrMissingPaymentParams.Error(), http.StatusBadRequest).WithSuccess(false)
	}

	if err := h.valid.StructCtx(ctx, &req); err != nil {
		if verrs, ok := collectValidationErrors(err); ok {
			lg.Warn().Interface("validation_errors", verrs).Msg("invalid payment confirmation")
		}

		return handlers.ValidationError(model.ErrMissingPaymentParams.Error(), nil).WithSuccess(false)
	}

	result, err := h.svc.VerifyPayment(ctx, req)
	if err != nil {
		lg.Error().Err(err).Str("order_id", req.OrderID).Str("payment_id", req.PaymentID).Msg("failed to verify payment")

		if _, ok := errorutils.KindOf(err); !ok {
			return handlers.WrapError(err, model.ErrVerifyingPayment.Error(), http.StatusInternalServerError).WithSuccess(false)
		}

		return handlers.WrapFault(err).WithSuccess(false)
	}

	return handlers.RenderContent(ctx, result, w, http.StatusOK)
}

type Product struct {
	cat productCatalog
}

func NewProduct(cat productCatalog) *Product {
	return &Product{cat: cat}
}

func (h *Product) List(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	return handlers.RenderContent(r.Context(), h.cat.List(), w, http.StatusOK)
}

func (h *Product) Get(w http.ResponseWriter, r *http.Request) *handlers.AppError {
	ctx := r.Context()

	id := chi.URLParamFromCtx(ctx, "productID")

	result, err := h.cat.Get(id)
	if err != nil {
		if errors.Is(err, errorutils.ErrNotFound) {
			return handlers.WrapError(err, "Product not found", http.StatusNotFound)
		}

		return handlers.WrapError(err, "Error getting product", http.StatusInternalServerError)
	}

	return handlers.RenderContent(ctx, result, w, http.StatusOK)
}

func collectValidationErrors(err error) (map[string]string, bool) {
	var verr validator.ValidationErrors
	if !errors.As(err, &verr) {
		return nil, false
	}

	result := make(map[string]string, len(verr))
	for i := range verr {
		result[verr[i].Field()] = verr[i].Error()
	}

	return result, true
}
