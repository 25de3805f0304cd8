// Package checkout drives a purchase from key resolution to payment verification.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/folioshop/storefront/libs/backoff"
	"github.com/folioshop/storefront/libs/backoff/retrypolicy"
	"github.com/folioshop/storefront/libs/clients/shop"
	"github.com/folioshop/storefront/libs/logging"

	errorutils "github.com/folioshop/storefront/libs/errors"
)

const (
	shopName   = "My Portfolio Shop"
	themeColor = "#6366f1"
	currency   = "INR"

	defaultPollInterval = 100 * time.Millisecond
	defaultPollAttempts = 20
	defaultCallTimeout  = 10 * time.Second
)

const (
	msgWidgetNotReady   = "Razorpay is still loading. Please wait a moment and try again."
	msgKeyNotConfigured = "Razorpay is not configured. Please set NEXT_PUBLIC_RAZORPAY_KEY_ID or RAZORPAY_KEY_ID and restart the server."
	msgOrderIDMissing   = "Error creating order. Order ID is missing."
	msgUnknownError     = "Unknown error"
	msgTryAgain         = "Please try again"
	msgInProgress       = "A checkout is already in progress. Please finish or close it first."
)

var (
	ErrCheckoutInProgress = errors.New("checkout: an attempt is already in progress")
	errWidgetNotReady     = errors.New("checkout: widget not ready")
)

// Product is what is being bought.
type Product struct {
	ID     string
	Title  string
	Amount int64
}

// Prefill is the payer data shown prefilled in the widget.
type Prefill struct {
	Name  string
	Email string
}

// Options configure the widget for one order.
type Options struct {
	Key         string
	Amount      int64
	Currency    string
	Name        string
	Description string
	OrderID     string
	Prefill     Prefill
	ThemeColor  string
}

// Result is the end of an attempt.
type Result struct {
	State     State
	OrderID   string
	PaymentID string
	Message   string
}

// Widget is the gateway payment ui.
type Widget interface {
	Loaded() bool
	Open(ctx context.Context, opts Options) (*Pending, error)
}

// Notifier shows a message to the payer.
type Notifier interface {
	Notify(ctx context.Context, msg string)
}

type orderAPI interface {
	CreateOrder(ctx context.Context, amount int64) (*shop.Order, error)
	VerifyPayment(ctx context.Context, req shop.VerifyRequest) (*shop.VerifyResponse, error)
}

type keyResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// TransitionObserver is called after every state change.
type TransitionObserver func(from, to State)

type Option func(o *Orchestrator)

// WithTransitionObserver registers fn for state changes.
func WithTransitionObserver(fn TransitionObserver) Option {
	return func(o *Orchestrator) {
		o.observers = append(o.observers, fn)
	}
}

// WithReadinessPoll sets how often and how many times the widget is checked before giving up.
func WithReadinessPoll(interval time.Duration, attempts int) Option {
	return func(o *Orchestrator) {
		o.pollInterval = interval
		o.pollAttempts = attempts
	}
}

// WithCallTimeout bounds each call to the storefront api.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.callTimeout = d
	}
}

func WithPrefill(p Prefill) Option {
	return func(o *Orchestrator) {
		o.prefill = p
	}
}

// Orchestrator runs checkout attempts one at a time.
type Orchestrator struct {
	api    orderAPI
	keys   keyResolver
	widget Widget
	notify Notifier

	pollInterval time.Duration
	pollAttempts int
	callTimeout  time.Duration
	prefill      Prefill
	observers    []TransitionObserver

	mu    sync.Mutex
	state State
}

func New(api orderAPI, keys keyResolver, widget Widget, notify Notifier, opts ...Option) *Orchestrator {
	result := &Orchestrator{
		api:          api,
		keys:         keys,
		widget:       widget,
		notify:       notify,
		pollInterval: defaultPollInterval,
		pollAttempts: defaultPollAttempts,
		callTimeout:  defaultCallTimeout,
		prefill:      Prefill{Name: "Customer Name", Email: "customer@example.com"},
	}

	for _, opt := range opts {
		opt(result)
	}

	return result
}

// State returns the state of the current or last attempt.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.state
}

// Checkout buys product. Every failure is also reported through the notifier.
// A dismissed widget returns to idle with a nil error.
func (o *Orchestrator) Checkout(ctx context.Context, product Product) (*Result, error) {
	if err := o.begin(); err != nil {
		o.notify.Notify(ctx, msgInProgress)
		return nil, err
	}

	lg := logging.Logger(ctx, "checkout").With().Str("func", "Checkout").Str("product_id", product.ID).Logger()

	if err := o.waitForWidget(ctx); err != nil {
		if errors.Is(err, errWidgetNotReady) {
			lg.Error().Msg("widget not loaded after waiting")
			return o.fail(ctx, errorutils.NewFault(errorutils.ErrDependencyUnavailable, msgWidgetNotReady, err))
		}

		lg.Warn().Err(err).Msg("readiness poll cancelled")
		o.transition(StateIdle)

		return &Result{State: StateIdle}, err
	}

	key, err := o.keys.Resolve(ctx)
	if err != nil {
		lg.Error().Err(err).Msg("gateway key is not set")
		return o.fail(ctx, err)
	}

	o.transition(StateOrderCreating)

	order, err := o.createOrder(ctx, product.Amount)
	if err != nil {
		lg.Error().Err(err).Msg("order creation failed")
		return o.fail(ctx, err)
	}

	opts := Options{
		Key:         key,
		Amount:      order.Amount,
		Currency:    currency,
		Name:        shopName,
		Description: "Purchase: " + product.Title,
		OrderID:     order.ID,
		Prefill:     o.prefill,
		ThemeColor:  themeColor,
	}

	pending, err := o.widget.Open(ctx, opts)
	if err != nil {
		lg.Error().Err(err).Msg("failed to open widget")
		return o.fail(ctx, errorutils.NewFault(errorutils.ErrDependencyUnavailable, startFailedMessage(err), err))
	}

	o.transition(StateWidgetOpen)

	outcome, err := pending.Wait(ctx)
	if err != nil {
		lg.Warn().Err(err).Str("order_id", order.ID).Msg("stopped waiting for widget")
		o.transition(StateIdle)

		return &Result{State: StateIdle, OrderID: order.ID}, err
	}

	switch outcome.Kind {
	case OutcomeDismissed:
		lg.Info().Str("order_id", order.ID).Msg("payment widget dismissed")
		o.transition(StateIdle)

		return &Result{State: StateIdle, OrderID: order.ID}, nil

	case OutcomePaymentFailed:
		lg.Error().Str("order_id", order.ID).Str("description", outcome.Description).Msg("payment failed")

		msg := "Payment failed: " + orDefault(outcome.Description, msgTryAgain)
		res, ferr := o.fail(ctx, errorutils.NewFault(errorutils.ErrUpstream, msg, nil))
		res.OrderID = order.ID

		return res, ferr
	}

	return o.verify(ctx, outcome.Confirmation)
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	if !o.state.IsTerminal() {
		o.mu.Unlock()
		return ErrCheckoutInProgress
	}

	from := o.state
	o.state = StateKeyResolving
	o.mu.Unlock()

	o.observe(from, StateKeyResolving)

	return nil
}

// waitForWidget checks readiness once and then retries on a constant interval.
func (o *Orchestrator) waitForWidget(ctx context.Context) error {
	policy, err := retrypolicy.Constant(o.pollInterval, o.pollAttempts)
	if err != nil {
		return err
	}

	check := func() (interface{}, error) {
		if o.widget.Loaded() {
			return true, nil
		}

		return nil, errWidgetNotReady
	}

	isNotReady := func(err error) bool {
		return errors.Is(err, errWidgetNotReady)
	}

	_, err = backoff.Retry(ctx, check, policy, isNotReady)

	return err
}

func (o *Orchestrator) createOrder(ctx context.Context, amount int64) (*shop.Order, error) {
	cctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	order, err := o.api.CreateOrder(cctx, amount)
	if err != nil {
		var apiErr *shop.APIError
		if errors.As(err, &apiErr) {
			return nil, errorutils.NewFault(errorutils.ErrUpstream, "Failed to create order: "+orDefault(apiErr.Message, msgUnknownError), err)
		}

		return nil, errorutils.NewFault(errorutils.ErrUpstream, startFailedMessage(err), err)
	}

	if order == nil || order.ID == "" {
		return nil, errorutils.NewFault(errorutils.ErrUpstream, msgOrderIDMissing, nil)
	}

	return order, nil
}

func (o *Orchestrator) verify(ctx context.Context, conf Confirmation) (*Result, error) {
	o.transition(StateVerifying)

	lg := logging.Logger(ctx, "checkout").With().
		Str("func", "verify").
		Str("order_id", conf.OrderID).
		Str("payment_id", conf.PaymentID).
		Logger()

	cctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	req := shop.VerifyRequest{
		OrderID:   conf.OrderID,
		PaymentID: conf.PaymentID,
		Signature: conf.Signature,
	}

	resp, err := o.api.VerifyPayment(cctx, req)
	if err != nil {
		lg.Error().Err(err).Msg("failed to call verification")

		msg := "Error verifying payment. Please contact support with your payment ID: " + conf.PaymentID
		res, ferr := o.fail(ctx, errorutils.NewFault(errorutils.ErrUpstream, msg, err))
		res.OrderID, res.PaymentID = conf.OrderID, conf.PaymentID

		return res, ferr
	}

	if !resp.Success {
		lg.Error().Str("error", resp.Error).Msg("payment verification failed")

		msg := "Payment verification failed: " + orDefault(resp.Error, msgUnknownError)
		res, ferr := o.fail(ctx, errorutils.NewFault(errorutils.ErrVerificationFailed, msg, nil))
		res.OrderID, res.PaymentID = conf.OrderID, conf.PaymentID

		return res, ferr
	}

	paymentID := orDefault(resp.PaymentID, conf.PaymentID)
	msg := "Payment Successful! Your payment ID is " + paymentID

	o.transition(StateSuccess)
	o.notify.Notify(ctx, msg)

	result := &Result{
		State:     StateSuccess,
		OrderID:   orDefault(resp.OrderID, conf.OrderID),
		PaymentID: paymentID,
		Message:   msg,
	}

	return result, nil
}

// fail moves to FAILED and shows the message of err.
func (o *Orchestrator) fail(ctx context.Context, err error) (*Result, error) {
	msg := errorutils.MessageOf(err)

	o.transition(StateFailed)
	o.notify.Notify(ctx, msg)

	return &Result{State: StateFailed, Message: msg}, err
}

func (o *Orchestrator) transition(to State) {
	o.mu.Lock()
	from := o.state
	o.state = to
	o.mu.Unlock()

	o.observe(from, to)
}

func (o *Orchestrator) observe(from, to State) {
	for _, fn := range o.observers {
		fn(from, to)
	}
}

func startFailedMessage(err error) string {
	reason := msgUnknownError
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "request timed out"
	}

	return fmt.Sprintf("Failed to start checkout: %s. Please check the logs for details.", reason)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}

	return s
}
