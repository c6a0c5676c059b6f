package stripe

import (
	"context"

	stripeapi "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
)

// SessionCreator exposes the Stripe Checkout call so the gateway can be tested.
type SessionCreator interface {
	New(ctx context.Context, params *stripeapi.CheckoutSessionParams) (*stripeapi.CheckoutSession, error)
}

type sessionClient struct{}

// NewSessionCreator returns the live Stripe Checkout client. The API key is
// installed by pkg/stripe.NewClient.
func NewSessionCreator() SessionCreator {
	return sessionClient{}
}

func (sessionClient) New(ctx context.Context, params *stripeapi.CheckoutSessionParams) (*stripeapi.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}
