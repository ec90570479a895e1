package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"workblix/internal/domain"
)

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	qSelectProfile = `SELECT id, first_name, last_name, email, phone, address, city, country,
		linkedin, github, website, title, summary, experience, education, skills, languages,
		plan, plan_status, stripe_customer_id, stripe_subscription_id, current_period_end,
		billing_version, last_billing_event_id, last_billing_event_at, created_at, updated_at
		FROM profiles WHERE id = $1`

	qUpsertProfile = `INSERT INTO profiles (id, first_name, last_name, email, phone, address, city, country,
		linkedin, github, website, title, summary, experience, education, skills, languages, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now(),now())
		ON CONFLICT (id) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
		email = EXCLUDED.email, phone = EXCLUDED.phone, address = EXCLUDED.address, city = EXCLUDED.city,
		country = EXCLUDED.country, linkedin = EXCLUDED.linkedin, github = EXCLUDED.github,
		website = EXCLUDED.website, title = EXCLUDED.title, summary = EXCLUDED.summary,
		experience = EXCLUDED.experience, education = EXCLUDED.education, skills = EXCLUDED.skills,
		languages = EXCLUDED.languages, updated_at = now()`

	qUserBySubscription = `SELECT id FROM profiles WHERE stripe_subscription_id = $1`

	qUserByCustomer = `SELECT id FROM profiles WHERE stripe_customer_id = $1`

	qInsertBillingEvent = `INSERT INTO billing_events (id, type, user_id, created_at, processed_at)
		VALUES ($1,$2,$3,$4,now()) ON CONFLICT (id) DO NOTHING`

	qEventSeen = `SELECT EXISTS (SELECT 1 FROM billing_events WHERE id = $1)`

	qUpdateBilling = `UPDATE profiles SET plan = $2, plan_status = $3, stripe_customer_id = $4,
		stripe_subscription_id = $5, current_period_end = $6, last_billing_event_id = $7,
		last_billing_event_at = $8, billing_version = billing_version + 1, updated_at = now()
		WHERE id = $1 AND billing_version = $9`

	qSelectUsage = `SELECT scans_used FROM usage_records WHERE user_id = $1 AND month_start = $2`

	qIncrementUsage = `INSERT INTO usage_records (user_id, month_start, scans_used) VALUES ($1,$2,1)
		ON CONFLICT (user_id, month_start) DO UPDATE SET scans_used = usage_records.scans_used + 1
		RETURNING scans_used`
)

type ProfilesRepo struct {
	db DB
}

func NewProfilesRepo(db DB) *ProfilesRepo {
	return &ProfilesRepo{db: db}
}

func (r *ProfilesRepo) GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	var (
		p                      domain.Profile
		exp, edu, skills, lang []byte
		plan, status           string
		customer, sub, lastEv  *string
	)
	err := r.db.QueryRow(ctx, qSelectProfile, id).Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.Address, &p.City, &p.Country,
		&p.LinkedIn, &p.GitHub, &p.Website, &p.Title, &p.Summary, &exp, &edu, &skills, &lang,
		&plan, &status, &customer, &sub, &p.CurrentPeriodEnd,
		&p.Version, &lastEv, &p.LastEventAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}

	p.Plan = domain.Plan(plan)
	p.PlanStatus = domain.PlanStatus(status)
	p.StripeCustomerID = deref(customer)
	p.StripeSubscriptionID = deref(sub)
	p.LastEventID = deref(lastEv)

	for _, col := range []struct {
		raw []byte
		dst interface{}
	}{{exp, &p.Experience}, {edu, &p.Education}, {skills, &p.Skills}, {lang, &p.Languages}} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("decode profile lists: %w", err)
		}
	}
	return &p, nil
}

// SaveProfile replaces the user-editable fields and lists wholesale. Billing
// columns are never written here.
func (r *ProfilesRepo) SaveProfile(ctx context.Context, p *domain.Profile) error {
	lists := make([][]byte, 0, 4)
	for _, v := range []interface{}{nonNil(p.Experience), nonNil(p.Education), nonNil(p.Skills), nonNil(p.Languages)} {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		lists = append(lists, b)
	}
	_, err := r.db.Exec(ctx, qUpsertProfile,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.Address, p.City, p.Country,
		p.LinkedIn, p.GitHub, p.Website, p.Title, p.Summary, lists[0], lists[1], lists[2], lists[3])
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *ProfilesRepo) FindUserBySubscription(ctx context.Context, subscriptionID string) (uuid.UUID, error) {
	return r.findUser(ctx, qUserBySubscription, subscriptionID)
}

func (r *ProfilesRepo) FindUserByCustomer(ctx context.Context, customerID string) (uuid.UUID, error) {
	return r.findUser(ctx, qUserByCustomer, customerID)
}

func (r *ProfilesRepo) findUser(ctx context.Context, q, key string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, q, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("profile for %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("find profile: %w", err)
	}
	return id, nil
}

func (r *ProfilesRepo) EventSeen(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	if err := r.db.QueryRow(ctx, qEventSeen, eventID).Scan(&seen); err != nil {
		return false, fmt.Errorf("check billing event: %w", err)
	}
	return seen, nil
}

// ApplyBilling records the event and writes next in one transaction. The
// update only succeeds while the row still has version next.Version; the
// event record makes redeliveries fail with ErrDuplicateEvent.
func (r *ProfilesRepo) ApplyBilling(ctx context.Context, userID uuid.UUID, eventType string, next domain.Billing) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin billing tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var at time.Time
	if next.LastEventAt != nil {
		at = *next.LastEventAt
	}
	tag, err := tx.Exec(ctx, qInsertBillingEvent, next.LastEventID, eventType, userID, at)
	if err != nil {
		return fmt.Errorf("record billing event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", next.LastEventID, domain.ErrDuplicateEvent)
	}

	tag, err = tx.Exec(ctx, qUpdateBilling, userID,
		string(next.Plan), string(next.PlanStatus), nullable(next.StripeCustomerID), nullable(next.StripeSubscriptionID),
		next.CurrentPeriodEnd, nullable(next.LastEventID), next.LastEventAt, next.Version)
	if err != nil {
		return fmt.Errorf("update billing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s: %w", userID, domain.ErrVersionConflict)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit billing tx: %w", err)
	}
	return nil
}

func (r *ProfilesRepo) GetUsage(ctx context.Context, userID uuid.UUID, monthStart time.Time) (domain.UsageRecord, error) {
	rec := domain.UsageRecord{UserID: userID, MonthStart: monthStart}
	err := r.db.QueryRow(ctx, qSelectUsage, userID, monthStart).Scan(&rec.ScansUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		// a new month has no row yet
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("select usage: %w", err)
	}
	return rec, nil
}

func (r *ProfilesRepo) IncrementUsage(ctx context.Context, userID uuid.UUID, monthStart time.Time) (domain.UsageRecord, error) {
	rec := domain.UsageRecord{UserID: userID, MonthStart: monthStart}
	if err := r.db.QueryRow(ctx, qIncrementUsage, userID, monthStart).Scan(&rec.ScansUsed); err != nil {
		return rec, fmt.Errorf("increment usage: %w", err)
	}
	return rec, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(v interface{}) interface{} {
	switch l := v.(type) {
	case []domain.Experience:
		if l == nil {
			return []domain.Experience{}
		}
	case []domain.Education:
		if l == nil {
			return []domain.Education{}
		}
	case []domain.Skill:
		if l == nil {
			return []domain.Skill{}
		}
	case []domain.Language:
		if l == nil {
			return []domain.Language{}
		}
	}
	return v
}
