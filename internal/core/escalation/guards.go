package escalation

import "fmt"

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string // Human-readable reason (populated when not allowed)
}

// Error returns the guard result as an error if not allowed, nil otherwise.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// transitions is the legal status graph. Terminal statuses have no entry.
var transitions = map[Status][]Status{
	StatusInitiated:    {StatusAcknowledged, StatusInProgress, StatusCancelled, StatusFailed},
	StatusAcknowledged: {StatusInProgress, StatusCancelled, StatusFailed},
	StatusInProgress:   {StatusResolved, StatusCancelled, StatusFailed},
}

// TransitionContext provides context for status transition guards.
type TransitionContext struct {
	EscalationID string
	From         Status
	To           Status
}

// CanTransition evaluates whether an escalation may move From -> To.
// Rules:
// - target must be a known status
// - terminal statuses (resolved, cancelled, failed) accept no transition
// - self-transitions are rejected
// - otherwise the pair must appear in the transition table
func CanTransition(ctx TransitionContext) GuardResult {
	if !ctx.To.Valid() {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("unknown status %q for escalation %s", ctx.To, ctx.EscalationID),
		}
	}
	if ctx.From.IsTerminal() {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("escalation %s is %s and cannot change status", ctx.EscalationID, ctx.From),
		}
	}
	for _, next := range transitions[ctx.From] {
		if next == ctx.To {
			return GuardResult{Allowed: true}
		}
	}
	return GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("cannot move escalation %s from %s to %s", ctx.EscalationID, ctx.From, ctx.To),
	}
}

// OverrideContext provides context for manual tier override guards.
type OverrideContext struct {
	EscalationID string
	Status       Status
	Current      Tier
	Target       Tier
	Reason       string
}

// CanOverrideTier evaluates whether a manual override may be applied.
// Rules:
// - target tier must be known
// - a reason is mandatory (the override is audited)
// - closed escalations cannot be re-tiered
// - the target must differ from the current tier
func CanOverrideTier(ctx OverrideContext) GuardResult {
	if !ctx.Target.Valid() {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("unknown tier %s for escalation %s", ctx.Target, ctx.EscalationID),
		}
	}
	if ctx.Reason == "" {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("a reason is required to override the tier of escalation %s", ctx.EscalationID),
		}
	}
	if ctx.Status.IsTerminal() {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("escalation %s is %s; tier can no longer change", ctx.EscalationID, ctx.Status),
		}
	}
	if ctx.Current == ctx.Target {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("escalation %s is already at %s", ctx.EscalationID, ctx.Target),
		}
	}
	return GuardResult{Allowed: true}
}
