package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPro     Plan = "pro"
	PlanPremium Plan = "premium"
)

// Valid reports whether p is one of the known plan tiers.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanPremium:
		return true
	}
	return false
}

// Paying reports whether the tier is a paid one. Unknown and empty plans
// are treated as free.
func (p Plan) Paying() bool {
	return p == PlanPro || p == PlanPremium
}

type PlanStatus string

const (
	StatusNone      PlanStatus = ""
	StatusActive    PlanStatus = "active"
	StatusPastDue   PlanStatus = "past_due"
	StatusCancelled PlanStatus = "cancelled"
	StatusUnpaid    PlanStatus = "unpaid"
	StatusTrialing  PlanStatus = "trialing"
)

type Experience struct {
	Company     string `json:"company"`
	Position    string `json:"position"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate,omitempty"`
	Current     bool   `json:"current"`
	Description string `json:"description,omitempty"`
}

type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Field       string `json:"field,omitempty"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate,omitempty"`
	Ongoing     bool   `json:"ongoing"`
	Description string `json:"description,omitempty"`
}

type Skill struct {
	Name  string `json:"name"`
	Level string `json:"level,omitempty"`
}

type Language struct {
	Name   string `json:"name"`
	Level  string `json:"level,omitempty"`
	Native bool   `json:"native,omitempty"`
}

// Billing holds the subscription fields of a profile. Only the webhook
// reconciler writes them. Version, LastEventID and LastEventAt guard against
// concurrent and out-of-order webhook deliveries.
type Billing struct {
	Plan                 Plan       `json:"plan"`
	PlanStatus           PlanStatus `json:"plan_status,omitempty"`
	StripeCustomerID     string     `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	Version              int64      `json:"-"`
	LastEventID          string     `json:"-"`
	LastEventAt          *time.Time `json:"-"`
}

type Profile struct {
	ID         uuid.UUID    `json:"id"`
	FirstName  string       `json:"first_name"`
	LastName   string       `json:"last_name"`
	Email      string       `json:"email"`
	Phone      string       `json:"phone,omitempty"`
	Address    string       `json:"address,omitempty"`
	City       string       `json:"city,omitempty"`
	Country    string       `json:"country,omitempty"`
	LinkedIn   string       `json:"linkedin,omitempty"`
	GitHub     string       `json:"github,omitempty"`
	Website    string       `json:"website,omitempty"`
	Title      string       `json:"title,omitempty"`
	Summary    string       `json:"summary,omitempty"`
	Experience []Experience `json:"experience"`
	Education  []Education  `json:"education"`
	Skills     []Skill      `json:"skills"`
	Languages  []Language   `json:"languages"`
	Billing
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the invariants a user edit must keep. Billing fields are
// not checked here because users cannot write them.
func (p *Profile) Validate() error {
	var problems []string
	for i, e := range p.Experience {
		if e.Current && strings.TrimSpace(e.EndDate) != "" {
			problems = append(problems, fmt.Sprintf("experience[%d]: current entry cannot have an endDate", i))
		}
	}
	for i, e := range p.Education {
		if e.Ongoing && strings.TrimSpace(e.EndDate) != "" {
			problems = append(problems, fmt.Sprintf("education[%d]: ongoing entry cannot have an endDate", i))
		}
	}
	if p.Plan != "" && !p.Plan.Valid() {
		problems = append(problems, fmt.Sprintf("unknown plan %q", p.Plan))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

type UsageRecord struct {
	UserID     uuid.UUID `json:"user_id"`
	ScansUsed  int       `json:"scans_used"`
	MonthStart time.Time `json:"month_start"`
}

// MonthStart returns the first day of t's calendar month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
