package checkout

import (
	"context"
	"sync"
)

// State is the step a checkout attempt is at.
type State int

const (
	StateIdle State = iota
	StateKeyResolving
	StateOrderCreating
	StateWidgetOpen
	StateVerifying
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateKeyResolving:
		return "KEY_RESOLVING"
	case StateOrderCreating:
		return "ORDER_CREATING"
	case StateWidgetOpen:
		return "WIDGET_OPEN"
	case StateVerifying:
		return "VERIFYING"
	case StateSuccess:
		return "SUCCESS"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether a new attempt may start from s.
func (s State) IsTerminal() bool {
	return s == StateIdle || s == StateSuccess || s == StateFailed
}

// OutcomeKind is how the payer left the widget.
type OutcomeKind int

const (
	OutcomeConfirmed OutcomeKind = iota
	OutcomePaymentFailed
	OutcomeDismissed
)

// Confirmation is the signed proof of payment handed over by the widget.
type Confirmation struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Outcome is the single result of an opened widget.
type Outcome struct {
	Kind         OutcomeKind
	Confirmation Confirmation
	// Description is the gateway reason of a failed payment.
	Description string
}

// Pending is resolved by the widget exactly once.
type Pending struct {
	ch   chan Outcome
	once sync.Once
}

func NewPending() *Pending {
	return &Pending{ch: make(chan Outcome, 1)}
}

// Resolve settles p with o. Only the first call has an effect; it reports whether it was the first.
func (p *Pending) Resolve(o Outcome) bool {
	var first bool

	p.once.Do(func() {
		first = true
		p.ch <- o
	})

	return first
}

// Wait blocks until p is resolved or ctx is done.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case o := <-p.ch:
		return o, nil
	}
}
