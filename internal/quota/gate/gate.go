// Package gate holds the quota decision logic. A Gate arbitrates every
// upstream generation call against the campaign policy table and the durable
// usage counter, and is the only writer of that counter.
package gate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cardmill/internal/quota/metrics"
	"cardmill/internal/quota/models"
	"cardmill/internal/quota/policy"
	"cardmill/internal/quota/ports"
	"cardmill/pkg/domain"
	dErrors "cardmill/pkg/domain-errors"
)

// Gate decides whether one more upstream call may be made right now.
//
// The check-then-increment sequence runs inside a single mutex so that two
// callers racing for the last slot cannot both observe it free. The counter
// store itself needs no locking guarantees beyond durable writes.
type Gate struct {
	store  ports.CounterStore
	policy *policy.Policy
	loc    *time.Location

	logger  *slog.Logger
	metrics *metrics.Metrics

	mu sync.Mutex
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithLocation sets the timezone used to derive the calendar date from an
// instant. Defaults to UTC; campaigns pinned to a local midnight should set
// the campaign's zone.
func WithLocation(loc *time.Location) Option {
	return func(g *Gate) {
		g.loc = loc
	}
}

func New(store ports.CounterStore, pol *policy.Policy, opts ...Option) *Gate {
	g := &Gate{
		store:  store,
		policy: pol,
		loc:    time.UTC,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TryConsume attempts to consume one unit of quota for the calendar date of
// now. A granted decision is final: the consumed unit is never refunded, even
// if the caller's upstream request later fails.
//
// Any store fault denies the attempt and returns the wrapped error alongside
// the decision. Granting while blind to the real count could overshoot a paid
// ceiling, so the gate fails closed.
func (g *Gate) TryConsume(ctx context.Context, now time.Time) (models.Decision, error) {
	today := domain.DateOf(now.In(g.loc))

	if g.policy.HardWindow() && !g.policy.InWindow(today) {
		return g.deny(today, models.ReasonOutsideWindow, 0, 0), nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	todayCount, err := g.store.Get(ctx, today)
	if err != nil {
		return g.failClosed(today, err)
	}

	ceiling, used, unlimited, err := g.effective(ctx, today, todayCount)
	if err != nil {
		return g.failClosed(today, err)
	}

	if !unlimited && used >= ceiling {
		return g.deny(today, models.ReasonQuotaExhausted, used, ceiling), nil
	}

	if err := g.store.Set(ctx, today, todayCount+1); err != nil {
		return g.failClosed(today, err)
	}

	decision := models.Decision{
		Allowed:   true,
		Date:      today,
		Used:      used + 1,
		Ceiling:   ceiling,
		Unlimited: unlimited,
	}
	if !unlimited {
		decision.Remaining = ceiling - decision.Used
	}
	if g.metrics != nil {
		g.metrics.RecordGrant(decision.Used)
	}
	g.logger.InfoContext(ctx, "quota granted",
		"date", today.String(),
		"used", decision.Used,
		"ceiling", decision.Ceiling,
		"unlimited", decision.Unlimited,
	)
	return decision, nil
}

// effective resolves the ceiling and current usage for today under the
// configured accounting mode. Dates absent from the table resolve to a zero
// ceiling unless the policy allows unknown dates, which makes them unlimited.
func (g *Gate) effective(ctx context.Context, today domain.Date, todayCount int) (ceiling, used int, unlimited bool, err error) {
	_, known := g.policy.AllowanceFor(today)
	if !known && g.policy.AllowsUnknownDates() {
		return 0, todayCount, true, nil
	}

	switch g.policy.Mode() {
	case policy.ModeCumulative:
		used, err = g.store.SumUpTo(ctx, today)
		if err != nil {
			return 0, 0, false, err
		}
		return g.policy.CumulativeAllowanceThrough(today), used, false, nil
	default:
		quota, _ := g.policy.AllowanceFor(today)
		return quota, todayCount, false, nil
	}
}

func (g *Gate) deny(date domain.Date, reason models.DenyReason, used, ceiling int) models.Decision {
	if g.metrics != nil {
		g.metrics.RecordDenial(reason)
	}
	remaining := ceiling - used
	if remaining < 0 {
		remaining = 0
	}
	g.logger.Info("quota denied",
		"date", date.String(),
		"reason", string(reason),
		"used", used,
		"ceiling", ceiling,
	)
	return models.Decision{
		Allowed:   false,
		Reason:    reason,
		Date:      date,
		Used:      used,
		Ceiling:   ceiling,
		Remaining: remaining,
	}
}

func (g *Gate) failClosed(date domain.Date, cause error) (models.Decision, error) {
	if g.metrics != nil {
		g.metrics.RecordDenial(models.ReasonStorageUnavailable)
	}
	g.logger.Error("quota check failed, denying",
		"date", date.String(),
		"error", cause,
	)
	return models.Decision{
		Allowed: false,
		Reason:  models.ReasonStorageUnavailable,
		Date:    date,
	}, dErrors.Wrap(cause, dErrors.CodeStorageUnavailable, "quota check")
}
