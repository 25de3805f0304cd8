package checkout

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/folioshop/storefront/libs/clients"
	"github.com/folioshop/storefront/libs/logging"
	"github.com/folioshop/storefront/libs/prompt"
	"github.com/folioshop/storefront/services/shop"
)

// DefaultScriptURL is where the gateway widget is served from.
const DefaultScriptURL = "https://checkout.razorpay.com/v1/checkout.js"

// TerminalWidget collects the outcome of a payment made in the gateway hosted page from the terminal.
type TerminalWidget struct {
	p      *prompt.Prompter
	loaded atomic.Bool
}

func NewTerminalWidget(p *prompt.Prompter) *TerminalWidget {
	return &TerminalWidget{p: p}
}

// Load fetches the widget script in the background and marks the widget loaded on success.
func (w *TerminalWidget) Load(ctx context.Context, scriptURL string) {
	go func() {
		lg := logging.Logger(ctx, "checkout").With().Str("func", "Load").Str("url", scriptURL).Logger()

		client, err := clients.New(scriptURL, "")
		if err != nil {
			lg.Error().Err(err).Msg("invalid widget script url")
			return
		}

		req, err := client.NewRequest(ctx, http.MethodGet, "", nil, nil)
		if err != nil {
			lg.Error().Err(err).Msg("failed to create widget script request")
			return
		}

		if _, err := client.Do(ctx, req, nil); err != nil {
			lg.Error().Err(err).Msg("failed to load widget script")
			return
		}

		w.MarkLoaded()
	}()
}

func (w *TerminalWidget) MarkLoaded() {
	w.loaded.Store(true)
}

func (w *TerminalWidget) Loaded() bool {
	return w.loaded.Load()
}

// Open shows the order and asks for the confirmation the gateway returned.
// An empty payment id reports a failed payment.
// A prompt already waiting for input is not interrupted when ctx is done, but no further questions are asked.
func (w *TerminalWidget) Open(ctx context.Context, opts Options) (*Pending, error) {
	w.p.Println(opts.Name)
	w.p.Println(opts.Description)
	w.p.Println("Order:", opts.OrderID, "Amount:", shop.FormatPrice(opts.Amount), opts.Currency)
	w.p.Println("Key:", opts.Key)

	pending := NewPending()

	go func() {
		pending.Resolve(w.collect(ctx, opts))
	}()

	return pending, nil
}

func (w *TerminalWidget) collect(ctx context.Context, opts Options) Outcome {
	pay, err := w.p.Bool("Complete payment now?")
	if err != nil || !pay || ctx.Err() != nil {
		return Outcome{Kind: OutcomeDismissed}
	}

	paymentID, err := w.p.String("razorpay_payment_id")
	if err != nil || ctx.Err() != nil {
		return Outcome{Kind: OutcomeDismissed}
	}

	if paymentID == "" {
		reason, _ := w.p.String("failure reason")
		return Outcome{Kind: OutcomePaymentFailed, Description: reason}
	}

	signature, err := w.p.String("razorpay_signature")
	if err != nil {
		return Outcome{Kind: OutcomeDismissed}
	}

	result := Outcome{
		Kind: OutcomeConfirmed,
		Confirmation: Confirmation{
			OrderID:   opts.OrderID,
			PaymentID: paymentID,
			Signature: signature,
		},
	}

	return result
}

// TerminalNotifier prints notifications.
type TerminalNotifier struct {
	p *prompt.Prompter
}

func NewTerminalNotifier(p *prompt.Prompter) *TerminalNotifier {
	return &TerminalNotifier{p: p}
}

func (n *TerminalNotifier) Notify(_ context.Context, msg string) {
	n.p.Println(msg)
}
