/*
prorate.go - Standardized 30-day-month salary pro-ration

PURPOSE:
  Pro-rates salary across the probation-to-regular transition month and
  the partial first month of employment. Every calendar month counts as
  exactly 30 days regardless of actual length.

  This is a separate numeric path consumed by the payroll layer; it never
  touches allocation amounts.

RULES:
  Transition month, probation ending on day d:
    probation_days = d - 1
    post_days      = 30 - probation_days
    month_salary   = probation_days x (probation_salary / 30)
                   + post_days x (post_salary / 30)
    Each component is rounded to cents before summing.

  First month, hire starting on day s:
    working_days       = 31 - s, capped at 30
    first_month_salary = round((salary / 30) x working_days, 2)
*/
package funding

import (
	"github.com/shopspring/decimal"
)

// MonthSplit is the transition-month breakdown, exposed so payroll can
// display both halves of the crossover month.
type MonthSplit struct {
	ProbationDays     int
	PostProbationDays int
	ProbationPortion  decimal.Decimal
	PostPortion       decimal.Decimal
	Total             decimal.Decimal
}

type Prorater struct {
	settings Settings
}

func NewProrater(settings Settings) *Prorater {
	return &Prorater{settings: settings}
}

// TransitionMonthSalary splits the crossover month between the probation
// and post-probation daily rates. probationEndDay is the day of month the
// probation ends on.
func (p *Prorater) TransitionMonthSalary(probationSalary, postSalary decimal.Decimal, probationEndDay int) (*MonthSplit, error) {
	if probationEndDay < 1 || probationEndDay > 31 {
		return nil, ErrInvalidDayOfMonth
	}
	if probationSalary.LessThanOrEqual(decimal.Zero) {
		return nil, &MissingSalaryError{Basis: BasisProbation}
	}
	if postSalary.LessThanOrEqual(decimal.Zero) {
		return nil, &MissingSalaryError{Basis: BasisPostProbation}
	}

	probationDays := probationEndDay - 1
	if probationDays > 30 {
		probationDays = 30
	}
	postDays := 30 - probationDays

	probationPortion := p.dailyPortion(probationSalary, probationDays)
	postPortion := p.dailyPortion(postSalary, postDays)

	return &MonthSplit{
		ProbationDays:     probationDays,
		PostProbationDays: postDays,
		ProbationPortion:  probationPortion,
		PostPortion:       postPortion,
		Total:             probationPortion.Add(postPortion),
	}, nil
}

// FirstMonthSalary pro-rates the partial first month for a mid-month hire
// starting on day startDay. salary is the figure applicable during that
// month (probation salary when configured, post-probation otherwise).
func (p *Prorater) FirstMonthSalary(salary decimal.Decimal, startDay int) (decimal.Decimal, error) {
	if startDay < 1 || startDay > 31 {
		return decimal.Zero, ErrInvalidDayOfMonth
	}
	if salary.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, &MissingSalaryError{Basis: BasisProbation}
	}

	workingDays := 31 - startDay
	if workingDays > 30 {
		workingDays = 30
	}

	return p.dailyPortion(salary, workingDays), nil
}

// dailyPortion computes days x (salary / DaysPerMonth) rounded to cents.
func (p *Prorater) dailyPortion(salary decimal.Decimal, days int) decimal.Decimal {
	return salary.Div(p.settings.DaysPerMonth).
		Mul(decimal.NewFromInt(int64(days))).
		Round(p.settings.MoneyPlaces)
}
