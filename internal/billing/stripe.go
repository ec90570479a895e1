package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"workblix/internal/domain"
)

// ErrMissingSecret means the webhook signing secret is not configured.
var ErrMissingSecret = errors.New("webhook secret not configured")

// VerifyWebhook checks the signature header against secret before the payload
// is trusted, then converts the event.
func VerifyWebhook(payload []byte, header, secret string) (Event, error) {
	if secret == "" {
		return Event{}, ErrMissingSecret
	}
	if header == "" {
		return Event{}, fmt.Errorf("%w: missing signature header", domain.ErrSignature)
	}
	se, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", domain.ErrSignature, err)
	}
	return EventFromStripe(se)
}

type CheckoutInput struct {
	UserID     string
	Email      string
	CustomerID string
	SuccessURL string
	CancelURL  string
}

// StripeGateway creates sessions and reads subscriptions through the Stripe
// API.
type StripeGateway struct {
	api     *client.API
	priceID string
}

// NewStripeGateway builds a gateway; backends may be nil for the default
// Stripe endpoints.
func NewStripeGateway(secretKey, priceID string, backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{api: client.New(secretKey, backends), priceID: priceID}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(g.priceID), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{UserMetadataKey: in.UserID},
		},
	}
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	} else if in.Email != "" {
		params.CustomerEmail = stripe.String(in.Email)
	}
	params.AddMetadata(UserMetadataKey, in.UserID)
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create checkout session: %v", domain.ErrExternalService, err)
	}
	return s.URL, nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	s, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create portal session: %v", domain.ErrExternalService, err)
	}
	return s.URL, nil
}

// Subscription returns the auth user id stored in the subscription metadata
// and its current period end.
func (g *StripeGateway) Subscription(ctx context.Context, id string) (string, *time.Time, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := g.api.Subscriptions.Get(id, params)
	if err != nil {
		return "", nil, err
	}
	var end *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		end = &t
	}
	return sub.Metadata[UserMetadataKey], end, nil
}
