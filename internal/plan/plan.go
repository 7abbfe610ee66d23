// Package plan resolves a caller's entitlement against a requested
// interview duration.
package plan

import (
	"context"

	"github.com/rs/zerolog"
)

// Limits is the read-only entitlement of a caller, resolved once per session
type Limits struct {
	MonthlyInterviewCap    int `json:"monthly_interview_cap"`
	MaxMinutesPerInterview int `json:"max_minutes_per_interview"`
}

// Budget is the effective time budget of a session
type Budget struct {
	RequestedMinutes int
	AllowedMinutes   int
	WasClamped       bool
}

// EntitlementLookup resolves the plan limits of a user
type EntitlementLookup interface {
	Lookup(ctx context.Context, userID string) (Limits, error)
}

// Resolve clamps requestedMinutes to the plan maximum.
// A nil limits value, or a non-positive maximum, means the entitlement is
// unknown: the full requested duration is allowed and nothing is clamped.
func Resolve(requestedMinutes int, limits *Limits) Budget {
	budget := Budget{
		RequestedMinutes: requestedMinutes,
		AllowedMinutes:   requestedMinutes,
	}
	if limits == nil || limits.MaxMinutesPerInterview <= 0 {
		return budget
	}

	budget.AllowedMinutes = min(requestedMinutes, limits.MaxMinutesPerInterview)
	budget.WasClamped = budget.AllowedMinutes != requestedMinutes
	return budget
}

// ResolveFor looks up the user's limits and resolves the budget.
// Lookup failures are logged and fail open; they never block an interview.
func ResolveFor(ctx context.Context, lookup EntitlementLookup, userID string, requestedMinutes int, logger zerolog.Logger) (Budget, *Limits) {
	if lookup == nil {
		return Resolve(requestedMinutes, nil), nil
	}

	limits, err := lookup.Lookup(ctx, userID)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("user_id", userID).
			Int("requested_minutes", requestedMinutes).
			Msg("Entitlement lookup failed, allowing requested duration")
		return Resolve(requestedMinutes, nil), nil
	}

	return Resolve(requestedMinutes, &limits), &limits
}

// Static returns the same limits for every user
type Static struct {
	Limits Limits
}

// Lookup implements EntitlementLookup
func (s Static) Lookup(ctx context.Context, userID string) (Limits, error) {
	return s.Limits, nil
}
