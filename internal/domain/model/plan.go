package model

import (
	"strings"
	"time"

	"telegram-subscription-checkout/internal/domain"
)

// PlanTerm is the explicit billing term of a plan. Legacy rows created before the
// term column existed carry an empty term; TermOf falls back to matching the plan
// name for those.
type PlanTerm string

const (
	TermMonthly    PlanTerm = "monthly"
	TermQuarterly  PlanTerm = "quarterly"
	TermSemiannual PlanTerm = "semiannual"
)

// Plan is an immutable catalog entry. Read-only to this service.
type Plan struct {
	ID       string
	Name     string
	Term     PlanTerm
	PriceUSD float64
	Features []string
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs a plan.
func NewPlan(id, name string, term PlanTerm, priceUSD float64, features []string) (*Plan, error) {
	if id == "" || name == "" || priceUSD <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{ID: id, Name: name, Term: term, PriceUSD: priceUSD, Features: features}, nil
}

// TermOf resolves the plan's billing term, using the explicit field when set and
// otherwise matching the plan name case-insensitively (migration shim for rows
// that predate the term column).
func (p *Plan) TermOf() (PlanTerm, error) {
	if p.Term != "" {
		return p.Term, nil
	}
	name := strings.ToLower(p.Name)
	for _, t := range []PlanTerm{TermMonthly, TermQuarterly, TermSemiannual} {
		if strings.Contains(name, string(t)) {
			return t, nil
		}
	}
	return "", domain.ErrUnmappedPlanTerm
}

// ExpiryFrom computes the subscription expiry for an activation on the given date.
func (t PlanTerm) ExpiryFrom(activatedOn time.Time) (time.Time, error) {
	switch t {
	case TermMonthly:
		return activatedOn.AddDate(0, 1, 0), nil
	case TermQuarterly:
		return activatedOn.AddDate(0, 3, 0), nil
	case TermSemiannual:
		return activatedOn.AddDate(0, 6, 0), nil
	}
	return time.Time{}, domain.ErrUnmappedPlanTerm
}
