package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workblix/internal/domain"
)

type memStore struct {
	profiles map[uuid.UUID]*domain.Profile
	events   map[string]bool
	applies  int
	// conflicts makes the next n ApplyBilling calls lose a concurrent write
	conflicts int
}

func newMemStore(ps ...*domain.Profile) *memStore {
	s := &memStore{profiles: map[uuid.UUID]*domain.Profile{}, events: map[string]bool{}}
	for _, p := range ps {
		s.profiles[p.ID] = p
	}
	return s
}

func (s *memStore) GetProfile(_ context.Context, id uuid.UUID) (*domain.Profile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) FindUserBySubscription(_ context.Context, sub string) (uuid.UUID, error) {
	for id, p := range s.profiles {
		if p.StripeSubscriptionID == sub {
			return id, nil
		}
	}
	return uuid.Nil, domain.ErrNotFound
}

func (s *memStore) EventSeen(_ context.Context, id string) (bool, error) {
	return s.events[id], nil
}

func (s *memStore) ApplyBilling(_ context.Context, id uuid.UUID, _ string, next domain.Billing) error {
	s.applies++
	if s.events[next.LastEventID] {
		return domain.ErrDuplicateEvent
	}
	p := s.profiles[id]
	if s.conflicts > 0 {
		s.conflicts--
		p.Version++
		return domain.ErrVersionConflict
	}
	if p.Version != next.Version {
		return domain.ErrVersionConflict
	}
	s.events[next.LastEventID] = true
	next.Version++
	p.Billing = next
	return nil
}

type stubSubs struct {
	userID string
	end    *time.Time
	err    error
	calls  int
}

func (s *stubSubs) Subscription(context.Context, string) (string, *time.Time, error) {
	s.calls++
	return s.userID, s.end, s.err
}

type recordingNotifier struct{ notices []Notice }

func (n *recordingNotifier) Notify(_ context.Context, notice Notice) error {
	n.notices = append(n.notices, notice)
	return nil
}

var t0 = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func proProfile() *domain.Profile {
	p := &domain.Profile{ID: uuid.New(), FirstName: "Anna", Email: "anna@example.com"}
	end := t0.AddDate(0, 1, 0)
	p.Billing = domain.Billing{
		Plan:                 domain.PlanPro,
		PlanStatus:           domain.StatusActive,
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		CurrentPeriodEnd:     &end,
		Version:              2,
	}
	return p
}

func newTestReconciler(s Store, subs SubscriptionSource, n Notifier) *Reconciler {
	return NewReconciler(s, subs, n, zerolog.Nop())
}

func TestReconciler_SubscriptionDeleted(t *testing.T) {
	p := proProfile()
	store := newMemStore(p)
	notes := &recordingNotifier{}
	r := newTestReconciler(store, nil, notes)

	out, err := r.Handle(context.Background(), Event{
		ID: "evt_del", Type: EventSubscriptionDeleted, Created: t0,
		UserID: p.ID.String(), SubscriptionID: "sub_1", Status: "canceled",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	got := store.profiles[p.ID]
	assert.Equal(t, domain.PlanFree, got.Plan)
	assert.Equal(t, domain.StatusCancelled, got.PlanStatus)
	assert.Empty(t, got.StripeSubscriptionID)
	assert.Nil(t, got.CurrentPeriodEnd)
	assert.Equal(t, "cus_1", got.StripeCustomerID)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, "evt_del", got.LastEventID)

	require.Len(t, notes.notices, 1)
	assert.Equal(t, NoticeSubscriptionEnded, notes.notices[0].Kind)
	assert.Equal(t, "anna@example.com", notes.notices[0].Email)
}

func TestReconciler_SubscriptionUpdatedTwiceEqualsOnce(t *testing.T) {
	ev := func(id string) Event {
		return Event{ID: id, Type: EventSubscriptionUpdated, Created: t0, Status: "past_due", SubscriptionID: "sub_1"}
	}

	once := proProfile()
	onceStore := newMemStore(once)
	ev1 := ev("evt_1")
	ev1.UserID = once.ID.String()
	_, err := newTestReconciler(onceStore, nil, nil).Handle(context.Background(), ev1)
	require.NoError(t, err)

	twice := proProfile()
	twice.ID = once.ID
	twiceStore := newMemStore(twice)
	r := newTestReconciler(twiceStore, nil, nil)
	_, err = r.Handle(context.Background(), ev1)
	require.NoError(t, err)
	// redelivery of the same event
	out, err := r.Handle(context.Background(), ev1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out)
	// the same change carried by a second event
	ev2 := ev("evt_2")
	ev2.UserID = once.ID.String()
	_, err = r.Handle(context.Background(), ev2)
	require.NoError(t, err)

	a, b := onceStore.profiles[once.ID].Billing, twiceStore.profiles[once.ID].Billing
	assert.Equal(t, a.Plan, b.Plan)
	assert.Equal(t, a.PlanStatus, b.PlanStatus)
	assert.Equal(t, a.StripeCustomerID, b.StripeCustomerID)
	assert.Equal(t, a.StripeSubscriptionID, b.StripeSubscriptionID)
	assert.Equal(t, a.CurrentPeriodEnd, b.CurrentPeriodEnd)
	assert.Equal(t, domain.StatusPastDue, b.PlanStatus)
}

func TestReconciler_StaleEventSkipped(t *testing.T) {
	p := proProfile()
	store := newMemStore(p)
	r := newTestReconciler(store, nil, nil)

	// payment succeeded arrives first, the older failure afterwards
	_, err := r.Handle(context.Background(), Event{ID: "evt_ok", Type: EventInvoiceSucceeded, Created: t0, SubscriptionID: "sub_1"})
	require.NoError(t, err)
	out, err := r.Handle(context.Background(), Event{ID: "evt_fail", Type: EventInvoiceFailed, Created: t0.Add(-time.Minute), SubscriptionID: "sub_1"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeStale, out)
	assert.Equal(t, domain.StatusActive, store.profiles[p.ID].PlanStatus)
	assert.Equal(t, 1, store.applies)
}

func TestReconciler_InvoiceResolvesThroughProcessor(t *testing.T) {
	p := proProfile()
	p.StripeSubscriptionID = ""
	store := newMemStore(p)
	end := t0.AddDate(0, 2, 0)
	subs := &stubSubs{userID: p.ID.String(), end: &end}
	notes := &recordingNotifier{}

	out, err := newTestReconciler(store, subs, notes).Handle(context.Background(), Event{
		ID: "evt_inv", Type: EventInvoiceFailed, Created: t0, SubscriptionID: "sub_new",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	assert.Equal(t, 1, subs.calls)
	assert.Equal(t, domain.StatusPastDue, store.profiles[p.ID].PlanStatus)
	require.Len(t, notes.notices, 1)
	assert.Equal(t, NoticePaymentFailed, notes.notices[0].Kind)
}

func TestReconciler_Unresolvable(t *testing.T) {
	store := newMemStore(proProfile())
	r := newTestReconciler(store, nil, nil)

	out, err := r.Handle(context.Background(), Event{ID: "evt_x", Type: EventInvoiceFailed, Created: t0, SubscriptionID: "sub_unknown"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnresolved, out)

	out, err = r.Handle(context.Background(), Event{ID: "evt_y", Type: EventSubscriptionUpdated, Created: t0, UserID: "not-a-uuid"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnresolved, out)

	out, err = r.Handle(context.Background(), Event{ID: "evt_z", Type: EventSubscriptionUpdated, Created: t0, UserID: uuid.NewString()})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnresolved, out)
	assert.Equal(t, 0, store.applies)
}

func TestReconciler_ProcessorLookupFailure(t *testing.T) {
	store := newMemStore()
	_, err := newTestReconciler(store, &stubSubs{err: errors.New("timeout")}, nil).
		Handle(context.Background(), Event{ID: "evt_x", Type: EventInvoiceSucceeded, Created: t0, SubscriptionID: "sub_9"})
	assert.ErrorIs(t, err, domain.ErrExternalService)
}

func TestReconciler_IgnoresUnknownTypes(t *testing.T) {
	store := newMemStore()
	out, err := newTestReconciler(store, nil, nil).Handle(context.Background(), Event{ID: "evt_1", Type: "charge.refunded"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out)
}

func TestReconciler_RetriesOnceAfterVersionConflict(t *testing.T) {
	p := proProfile()
	store := newMemStore(p)
	store.conflicts = 1
	r := newTestReconciler(store, nil, nil)

	out, err := r.Handle(context.Background(), Event{ID: "evt_1", Type: EventSubscriptionUpdated, Created: t0, UserID: p.ID.String(), Status: "unpaid"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	assert.Equal(t, 2, store.applies)
	assert.Equal(t, domain.StatusUnpaid, store.profiles[p.ID].PlanStatus)

	store.conflicts = 2
	_, err = r.Handle(context.Background(), Event{ID: "evt_2", Type: EventSubscriptionUpdated, Created: t0, UserID: p.ID.String(), Status: "active"})
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestReconciler_CheckoutFetchesPeriodEnd(t *testing.T) {
	p := &domain.Profile{ID: uuid.New()}
	p.Plan = domain.PlanFree
	store := newMemStore(p)
	end := t0.AddDate(0, 1, 0)
	subs := &stubSubs{userID: p.ID.String(), end: &end}

	out, err := newTestReconciler(store, subs, nil).Handle(context.Background(), Event{
		ID: "evt_co", Type: EventCheckoutCompleted, Created: t0,
		UserID: p.ID.String(), CustomerID: "cus_9", SubscriptionID: "sub_9",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	got := store.profiles[p.ID]
	assert.Equal(t, domain.PlanPro, got.Plan)
	assert.Equal(t, domain.StatusActive, got.PlanStatus)
	assert.Equal(t, "cus_9", got.StripeCustomerID)
	assert.Equal(t, "sub_9", got.StripeSubscriptionID)
	require.NotNil(t, got.CurrentPeriodEnd)
	assert.Equal(t, end, *got.CurrentPeriodEnd)
}
