package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/triage/internal/core/escalation"
	"github.com/example/triage/internal/ctxutil"
	"github.com/example/triage/internal/ports/secondary"
)

// DefaultSweepInterval is how often the sweeper looks for overdue escalations.
const DefaultSweepInterval = 30 * time.Second

// SweeperConfig tunes the timeout sweep.
type SweeperConfig struct {
	Interval time.Duration
	SLA      escalation.SLA
	// RenotifyPerMinute caps re-notifications for escalations already at the top tier.
	RenotifyPerMinute int
}

// DefaultSweeperConfig returns the production defaults.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:          DefaultSweepInterval,
		SLA:               escalation.DefaultSLA(),
		RenotifyPerMinute: 30,
	}
}

// SweepResult reports what one sweep did.
type SweepResult struct {
	Checked    int
	Escalated  int
	Renotified int
	Throttled  int
}

// Sweeper raises escalations that wait too long for a responder. It guarantees
// that no escalation stays unanswered below the top tier for longer than its SLA.
type Sweeper struct {
	svc     *EscalationServiceImpl
	cfg     SweeperConfig
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewSweeper creates a Sweeper over the escalations owned by svc.
func NewSweeper(svc *EscalationServiceImpl, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	if cfg.SLA.Validate() != nil {
		cfg.SLA = escalation.DefaultSLA()
	}
	if cfg.RenotifyPerMinute <= 0 {
		cfg.RenotifyPerMinute = 30
	}
	return &Sweeper{
		svc:     svc,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RenotifyPerMinute)/60.0), cfg.RenotifyPerMinute),
		log:     svc.log.Named("sweeper"),
	}
}

// Run sweeps every interval until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.log.Info("timeout sweep started", zap.Duration("interval", w.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("timeout sweep stopped")
			return ctx.Err()
		case <-ticker.C:
			res := w.SweepOnce(ctx, w.svc.now())
			if res.Escalated+res.Renotified > 0 {
				w.log.Info("timeout sweep acted",
					zap.Int("checked", res.Checked),
					zap.Int("escalated", res.Escalated),
					zap.Int("renotified", res.Renotified),
					zap.Int("throttled", res.Throttled))
			}
		}
	}
}

// SweepOnce reloads active escalations from the repository and evaluates
// each one against the SLA at now. Escalations opened or answered by other
// processes since the last pass are seen as stored.
func (w *Sweeper) SweepOnce(ctx context.Context, now time.Time) SweepResult {
	var res SweepResult
	ctx = ctxutil.WithActorID(ctx, ctxutil.SystemActor)

	if _, err := w.svc.LoadActive(ctx); err != nil {
		w.log.Warn("failed to reload active escalations; sweeping resident copies", zap.Error(err))
	}

	for _, ent := range w.svc.resident() {
		if ctx.Err() != nil {
			break
		}
		switch w.sweepEntry(ctx, ent, now) {
		case escalation.TimeoutEscalate:
			res.Escalated++
		case escalation.TimeoutRenotify:
			res.Renotified++
		case throttled:
			res.Throttled++
		}
		res.Checked++
	}
	return res
}

// throttled marks a renotify that the rate limiter suppressed.
const throttled = escalation.TimeoutAction(-1)

func (w *Sweeper) sweepEntry(ctx context.Context, ent *entry, now time.Time) escalation.TimeoutAction {
	ent.mu.Lock()
	defer ent.mu.Unlock()
	e := ent.esc.Clone()

	action := escalation.EvaluateTimeout(escalation.TimeoutContext{
		Status:        e.Status,
		Tier:          e.Tier,
		LastEscalated: e.Timeline.LastEscalated,
		Now:           now,
	}, w.cfg.SLA)

	waited := now.Sub(e.Timeline.LastEscalated).Round(time.Second)
	switch action {
	case escalation.TimeoutEscalate:
		from := e.Tier
		e.Tier = from.Next()
		e.ResponderType = escalation.Responder(e.Tier)
		e.Timeline.LastEscalated = now

		note := escalation.Note{
			Tag:   escalation.NoteTimeoutEscalation,
			Text:  fmt.Sprintf("no response after %s at %s; raised to %s", waited, from, e.Tier),
			At:    now,
			Actor: ctxutil.SystemActor,
		}
		e.Notes = append(e.Notes, note)
		if err := w.svc.commit(ctx, ent, e, note); err != nil {
			w.log.Info("escalation changed during sweep; skipped", zap.String("escalation_id", e.ID), zap.Error(err))
			return escalation.TimeoutNone
		}
		w.svc.metrics.RecordTimeout()
		w.svc.audit(ctx, e.ID, secondary.AuditActionTimeout, "tier", from.String(), e.Tier.String())
		w.svc.dispatch(ctx, e.Clone(), "response timeout")

		w.log.Warn("escalation timed out",
			zap.String("escalation_id", e.ID),
			zap.Stringer("from", from),
			zap.Stringer("to", e.Tier))
		return action

	case escalation.TimeoutRenotify:
		e.Timeline.LastEscalated = now
		allowed := w.limiter.AllowN(now, 1)

		text := fmt.Sprintf("no response after %s at %s; responders re-notified", waited, e.Tier)
		if !allowed {
			text = fmt.Sprintf("no response after %s at %s; re-notification throttled", waited, e.Tier)
		}
		note := escalation.Note{Tag: escalation.NoteTimeoutRenotify, Text: text, At: now, Actor: ctxutil.SystemActor}
		e.Notes = append(e.Notes, note)
		if err := w.svc.commit(ctx, ent, e, note); err != nil {
			w.log.Info("escalation changed during sweep; skipped", zap.String("escalation_id", e.ID), zap.Error(err))
			return escalation.TimeoutNone
		}
		w.svc.metrics.RecordTimeout()
		w.svc.audit(ctx, e.ID, secondary.AuditActionTimeout, "last_escalated", "", now.UTC().Format(time.RFC3339))

		if !allowed {
			return throttled
		}
		w.svc.dispatch(ctx, e.Clone(), "response timeout at top tier")
		return action
	}
	return escalation.TimeoutNone
}
