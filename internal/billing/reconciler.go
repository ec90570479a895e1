package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"workblix/internal/domain"
)

// Store is the profile persistence the reconciler needs.
type Store interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	FindUserBySubscription(ctx context.Context, subscriptionID string) (uuid.UUID, error)
	EventSeen(ctx context.Context, eventID string) (bool, error)
	ApplyBilling(ctx context.Context, userID uuid.UUID, eventType string, next domain.Billing) error
}

// SubscriptionSource looks a subscription up at the processor.
type SubscriptionSource interface {
	Subscription(ctx context.Context, id string) (userID string, periodEnd *time.Time, err error)
}

type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeStale      Outcome = "stale"
	OutcomeIgnored    Outcome = "ignored"
	OutcomeUnresolved Outcome = "unresolved"
)

// applyAttempts bounds retries after a concurrent billing write.
const applyAttempts = 2

// Reconciler applies verified webhook events to profile billing fields, one
// event per call. Each update is a single conditional write recorded together
// with the event id, so redeliveries and out-of-order events are no-ops.
type Reconciler struct {
	store  Store
	subs   SubscriptionSource
	notify Notifier
	log    zerolog.Logger
}

func NewReconciler(store Store, subs SubscriptionSource, notify Notifier, log zerolog.Logger) *Reconciler {
	if notify == nil {
		notify = NoopNotifier{}
	}
	return &Reconciler{store: store, subs: subs, notify: notify, log: log}
}

func (r *Reconciler) Handle(ctx context.Context, ev Event) (Outcome, error) {
	log := r.log.With().Str("event", ev.ID).Str("type", ev.Type).Logger()

	if !ev.Handled() {
		log.Info().Msg("ignoring unhandled billing event")
		return OutcomeIgnored, nil
	}

	seen, err := r.store.EventSeen(ctx, ev.ID)
	if err != nil {
		return "", err
	}
	if seen {
		log.Info().Msg("billing event already processed")
		return OutcomeDuplicate, nil
	}

	uid, ok, err := r.resolveUser(ctx, &ev)
	if err != nil {
		return "", err
	}
	if !ok {
		log.Warn().Str("subscription", ev.SubscriptionID).Msg("billing event has no resolvable user")
		return OutcomeUnresolved, nil
	}
	log = log.With().Str("user", uid.String()).Logger()

	if ev.Type == EventCheckoutCompleted && ev.SubscriptionID != "" && ev.PeriodEnd == nil && r.subs != nil {
		if _, end, err := r.subs.Subscription(ctx, ev.SubscriptionID); err == nil {
			ev.PeriodEnd = end
		} else {
			log.Warn().Err(err).Msg("could not fetch subscription period end")
		}
	}

	for attempt := 1; attempt <= applyAttempts; attempt++ {
		profile, err := r.store.GetProfile(ctx, uid)
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Msg("billing event for unknown profile")
			return OutcomeUnresolved, nil
		}
		if err != nil {
			return "", err
		}

		cur := profile.Billing
		if cur.LastEventAt != nil && ev.Created.Before(*cur.LastEventAt) {
			log.Info().Time("last_applied", *cur.LastEventAt).Msg("skipping stale billing event")
			return OutcomeStale, nil
		}

		next := Transition(cur, ev)
		next.Version = cur.Version
		next.LastEventID = ev.ID
		created := ev.Created
		next.LastEventAt = &created

		err = r.store.ApplyBilling(ctx, uid, ev.Type, next)
		switch {
		case err == nil:
			log.Info().Str("plan", string(next.Plan)).Str("status", string(next.PlanStatus)).Msg("billing updated")
			r.sendNotice(ctx, log, ev, profile)
			return OutcomeApplied, nil
		case errors.Is(err, domain.ErrDuplicateEvent):
			return OutcomeDuplicate, nil
		case errors.Is(err, domain.ErrVersionConflict):
			log.Warn().Int("attempt", attempt).Msg("billing version conflict, re-reading profile")
			continue
		default:
			return "", err
		}
	}
	return "", fmt.Errorf("apply %s: %w", ev.ID, domain.ErrVersionConflict)
}

// resolveUser finds the profile an event belongs to. Invoices carry no user
// metadata, so they go through the stored subscription id and then through the
// subscription itself.
func (r *Reconciler) resolveUser(ctx context.Context, ev *Event) (uuid.UUID, bool, error) {
	if ev.UserID != "" {
		id, err := uuid.Parse(ev.UserID)
		if err != nil {
			return uuid.Nil, false, nil
		}
		return id, true, nil
	}
	if ev.SubscriptionID == "" {
		return uuid.Nil, false, nil
	}

	id, err := r.store.FindUserBySubscription(ctx, ev.SubscriptionID)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return uuid.Nil, false, err
	}
	if r.subs == nil {
		return uuid.Nil, false, nil
	}

	userID, end, err := r.subs.Subscription(ctx, ev.SubscriptionID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("%w: fetch subscription: %v", domain.ErrExternalService, err)
	}
	if ev.PeriodEnd == nil {
		ev.PeriodEnd = end
	}
	id, err = uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

func (r *Reconciler) sendNotice(ctx context.Context, log zerolog.Logger, ev Event, p *domain.Profile) {
	var kind NoticeKind
	switch ev.Type {
	case EventInvoiceFailed:
		kind = NoticePaymentFailed
	case EventSubscriptionDeleted:
		kind = NoticeSubscriptionEnded
	default:
		return
	}
	if p.Email == "" {
		return
	}
	n := Notice{Kind: kind, Email: p.Email, Name: p.FirstName}
	if err := r.notify.Notify(ctx, n); err != nil {
		log.Warn().Err(err).Str("notice", string(kind)).Msg("billing notice not sent")
	}
}
