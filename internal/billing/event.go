// Package billing keeps profile plan fields in sync with the payment
// processor and creates checkout and portal sessions.
package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"

	"workblix/internal/domain"
)

const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventInvoiceSucceeded    = "invoice.payment_succeeded"
	EventInvoiceFailed       = "invoice.payment_failed"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionCreated = "customer.subscription.created"
)

// UserMetadataKey is the metadata key checkout sessions and subscriptions
// carry the auth user id under.
const UserMetadataKey = "supabase_user_id"

// Event is the processor-independent view of a verified webhook event.
type Event struct {
	ID             string
	Type           string
	Created        time.Time
	UserID         string
	CustomerID     string
	SubscriptionID string
	// Status is the processor's raw subscription status.
	Status    string
	PeriodEnd *time.Time
}

// Handled reports whether the event type drives a state change.
func (e Event) Handled() bool {
	switch e.Type {
	case EventCheckoutCompleted, EventInvoiceSucceeded, EventInvoiceFailed,
		EventSubscriptionDeleted, EventSubscriptionUpdated, EventSubscriptionCreated:
		return true
	}
	return false
}

// MapStatus translates a processor subscription status. Unknown statuses
// pass through unchanged.
func MapStatus(s string) domain.PlanStatus {
	switch s {
	case "active":
		return domain.StatusActive
	case "past_due":
		return domain.StatusPastDue
	case "canceled", "cancelled":
		return domain.StatusCancelled
	case "unpaid":
		return domain.StatusUnpaid
	case "trialing":
		return domain.StatusTrialing
	}
	return domain.PlanStatus(s)
}

// Transition is the billing state machine: the profile billing fields after
// applying ev to cur. Guard fields (version, last event) are left to the
// caller.
func Transition(cur domain.Billing, ev Event) domain.Billing {
	next := cur
	switch ev.Type {
	case EventCheckoutCompleted:
		next.Plan = domain.PlanPro
		next.PlanStatus = domain.StatusActive
		if ev.CustomerID != "" {
			next.StripeCustomerID = ev.CustomerID
		}
		if ev.SubscriptionID != "" {
			next.StripeSubscriptionID = ev.SubscriptionID
			next.CurrentPeriodEnd = ev.PeriodEnd
		}

	case EventInvoiceSucceeded:
		next.PlanStatus = domain.StatusActive
		if ev.PeriodEnd != nil {
			next.CurrentPeriodEnd = ev.PeriodEnd
		}

	case EventInvoiceFailed:
		next.PlanStatus = domain.StatusPastDue

	case EventSubscriptionDeleted:
		next.Plan = domain.PlanFree
		next.PlanStatus = domain.StatusCancelled
		next.StripeSubscriptionID = ""
		next.CurrentPeriodEnd = nil

	case EventSubscriptionUpdated:
		next.PlanStatus = MapStatus(ev.Status)

	case EventSubscriptionCreated:
		next.Plan = domain.PlanPro
		next.PlanStatus = MapStatus(ev.Status)
		if ev.CustomerID != "" {
			next.StripeCustomerID = ev.CustomerID
		}
		next.StripeSubscriptionID = ev.SubscriptionID
		next.CurrentPeriodEnd = ev.PeriodEnd
	}
	return next
}

// EventFromStripe extracts the fields the state machine needs from a
// verified Stripe event.
func EventFromStripe(se stripe.Event) (Event, error) {
	ev := Event{ID: se.ID, Type: string(se.Type), Created: time.Unix(se.Created, 0).UTC()}
	if !ev.Handled() {
		return ev, nil
	}
	if se.Data == nil {
		return ev, fmt.Errorf("event %s has no data", se.ID)
	}

	switch ev.Type {
	case EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(se.Data.Raw, &s); err != nil {
			return ev, fmt.Errorf("decode checkout session: %w", err)
		}
		ev.UserID = s.Metadata[UserMetadataKey]
		if ev.UserID == "" {
			ev.UserID = s.ClientReferenceID
		}
		if s.Customer != nil {
			ev.CustomerID = s.Customer.ID
		}
		if s.Subscription != nil {
			ev.SubscriptionID = s.Subscription.ID
		}

	case EventInvoiceSucceeded, EventInvoiceFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(se.Data.Raw, &inv); err != nil {
			return ev, fmt.Errorf("decode invoice: %w", err)
		}
		if inv.Customer != nil {
			ev.CustomerID = inv.Customer.ID
		}
		if inv.Subscription != nil {
			ev.SubscriptionID = inv.Subscription.ID
		}
		if inv.Lines != nil {
			for _, line := range inv.Lines.Data {
				if line.Period != nil && line.Period.End > 0 {
					t := time.Unix(line.Period.End, 0).UTC()
					ev.PeriodEnd = &t
					break
				}
			}
		}

	default:
		var sub stripe.Subscription
		if err := json.Unmarshal(se.Data.Raw, &sub); err != nil {
			return ev, fmt.Errorf("decode subscription: %w", err)
		}
		ev.UserID = sub.Metadata[UserMetadataKey]
		ev.SubscriptionID = sub.ID
		ev.Status = string(sub.Status)
		if sub.Customer != nil {
			ev.CustomerID = sub.Customer.ID
		}
		if sub.CurrentPeriodEnd > 0 {
			t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
			ev.PeriodEnd = &t
		}
	}
	return ev, nil
}
