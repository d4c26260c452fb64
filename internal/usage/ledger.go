// Package usage meters AI generation calls per user per calendar month.
package usage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Unlimited is the sentinel limit for plans without a monthly ceiling.
const Unlimited = -1

// ErrLimitExceeded is returned by Check when the plan ceiling has been reached.
// The counter is never incremented on this path.
var ErrLimitExceeded = errors.New("AI usage limit exceeded for your plan")

// PlanLimits maps a subscription plan to its monthly AI-call ceiling.
// Injected rather than a package global so deployments and tests can override it.
type PlanLimits map[string]int

func DefaultPlanLimits() PlanLimits {
	return PlanLimits{
		"free":       50,
		"pro":        500,
		"enterprise": Unlimited,
	}
}

// Kind distinguishes which monthly counters a successful generation bumps.
type Kind int

const (
	// KindAICall bumps ai_calls_this_month only.
	KindAICall Kind = iota
	// KindCaption additionally bumps content_generated.
	KindCaption
)

// Snapshot is the usage state reported alongside generation responses.
type Snapshot struct {
	Current int    `json:"current"`
	Limit   int    `json:"limit"`
	Plan    string `json:"plan"`
}

// Stats is the payload of the usage endpoint.
type Stats struct {
	Current    int       `json:"current"`
	Limit      int       `json:"limit"`
	Percentage float64   `json:"percentage"`
	Plan       string    `json:"plan"`
	ResetDate  time.Time `json:"resetDate"`
}

type Ledger struct {
	DB     *sql.DB
	Limits PlanLimits
}

func NewLedger(db *sql.DB, limits PlanLimits) *Ledger {
	if limits == nil {
		limits = DefaultPlanLimits()
	}
	return &Ledger{DB: db, Limits: limits}
}

// LimitFor resolves the monthly ceiling for a plan. Unknown plans get the
// free-tier ceiling rather than a free pass.
func (l *Ledger) LimitFor(plan string) int {
	if v, ok := l.Limits[plan]; ok {
		return v
	}
	return l.Limits["free"]
}

// ResetIfNewMonth zeroes the monthly counters when the last reset happened in
// a different calendar month than now. Must run before any usage check; a
// caller that skips it leaves a stale counter that never resets.
func (l *Ledger) ResetIfNewMonth(ctx context.Context, userID string, now time.Time) error {
	var last time.Time
	err := l.DB.QueryRowContext(ctx, `SELECT last_reset_date FROM public.users WHERE id = $1`, userID).Scan(&last)
	if err != nil {
		return err
	}

	last, now = last.UTC(), now.UTC()
	if last.Year() == now.Year() && last.Month() == now.Month() {
		return nil
	}

	_, err = l.DB.ExecContext(ctx, `
		UPDATE public.users
		   SET ai_calls_this_month = 0,
		       content_generated = 0,
		       posts_scheduled = 0,
		       last_reset_date = $2
		 WHERE id = $1
	`, userID, now)
	return err
}

// Check reads the current usage and fails with ErrLimitExceeded when the
// ceiling has been reached. It never increments.
//
// Check followed by Consume is intentionally not atomic: two concurrent
// generations from the same user can both pass the ceiling check before either
// increment lands, letting the counter overshoot by the degree of concurrency.
// The Consume step itself is a single UPDATE so no increment is ever lost.
func (l *Ledger) Check(ctx context.Context, userID string) (Snapshot, error) {
	var plan string
	var current int
	err := l.DB.QueryRowContext(ctx, `SELECT plan, ai_calls_this_month FROM public.users WHERE id = $1`, userID).
		Scan(&plan, &current)
	if err != nil {
		return Snapshot{}, err
	}

	limit := l.LimitFor(plan)
	snap := Snapshot{Current: current, Limit: limit, Plan: plan}
	if limit != Unlimited && current >= limit {
		return snap, ErrLimitExceeded
	}
	return snap, nil
}

// Consume records one successful generation call. Callers invoke it only after
// the provider confirmed success, so a failed generation never burns quota.
func (l *Ledger) Consume(ctx context.Context, userID string, kind Kind) (Snapshot, error) {
	query := `
		UPDATE public.users
		   SET ai_calls_this_month = ai_calls_this_month + 1
		 WHERE id = $1
		 RETURNING plan, ai_calls_this_month
	`
	if kind == KindCaption {
		query = `
		UPDATE public.users
		   SET ai_calls_this_month = ai_calls_this_month + 1,
		       content_generated = content_generated + 1
		 WHERE id = $1
		 RETURNING plan, ai_calls_this_month
	`
	}

	var plan string
	var current int
	if err := l.DB.QueryRowContext(ctx, query, userID).Scan(&plan, &current); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Current: current, Limit: l.LimitFor(plan), Plan: plan}, nil
}

// Stats builds the usage-endpoint payload. ResetDate is the first day of the
// month following the last reset; percentage is 0 for unlimited plans.
func (l *Ledger) Stats(ctx context.Context, userID string) (Stats, error) {
	var plan string
	var current int
	var last time.Time
	err := l.DB.QueryRowContext(ctx, `SELECT plan, ai_calls_this_month, last_reset_date FROM public.users WHERE id = $1`, userID).
		Scan(&plan, &current, &last)
	if err != nil {
		return Stats{}, err
	}

	limit := l.LimitFor(plan)
	pct := 0.0
	if limit != Unlimited && limit > 0 {
		pct = float64(current) / float64(limit) * 100
	}
	last = last.UTC()
	return Stats{
		Current:    current,
		Limit:      limit,
		Percentage: pct,
		Plan:       plan,
		// time.Date normalizes month 13 into January of the next year.
		ResetDate: time.Date(last.Year(), last.Month()+1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}
