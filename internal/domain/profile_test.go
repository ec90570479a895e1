package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlan(t *testing.T) {
	assert.True(t, PlanPro.Paying())
	assert.True(t, PlanPremium.Paying())
	assert.False(t, PlanFree.Paying())
	assert.False(t, Plan("").Paying())
	assert.False(t, Plan("gold").Valid())
}

func TestProfileValidate(t *testing.T) {
	p := &Profile{
		Experience: []Experience{{Company: "Acme", Current: true, EndDate: "2020-01"}},
		Education:  []Education{{Institution: "Uni", Ongoing: true}},
	}
	err := p.Validate()
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "experience[0]")

	p.Experience[0].EndDate = ""
	assert.NoError(t, p.Validate())
}

func TestMonthStart(t *testing.T) {
	got := MonthStart(time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), got)
}
