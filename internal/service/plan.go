package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/user/linkpulse/internal/database"
	"github.com/user/linkpulse/internal/metrics"
	"github.com/user/linkpulse/internal/repository"
	"go.uber.org/zap"
)

// ===========================================
// Plan Limiter
// ===========================================
// Plans gate link creation only. Clicks are always recorded whatever
// the owner's plan.

// Plan tiers.
const (
	TierAnonymous = "anonymous"
	TierFree      = "free"
	TierPro       = "pro"
	TierBusiness  = "business"
)

// PlanPolicy is what a tier may do.
type PlanPolicy struct {
	LinksPerDay int64
	CustomCodes bool
	Passwords   bool
	Expiry      bool
}

var planPolicies = map[string]PlanPolicy{
	TierAnonymous: {LinksPerDay: 5, Expiry: true},
	TierFree:      {LinksPerDay: 25, Expiry: true},
	TierPro:       {LinksPerDay: 500, CustomCodes: true, Passwords: true, Expiry: true},
	TierBusiness:  {LinksPerDay: 5000, CustomCodes: true, Passwords: true, Expiry: true},
}

// PolicyFor returns the policy of tier. Unknown tiers get the free policy.
func PolicyFor(tier string) PlanPolicy {
	if p, ok := planPolicies[tier]; ok {
		return p
	}
	return planPolicies[TierFree]
}

// PlanRequest describes a link creation to be checked against a plan.
type PlanRequest struct {
	OwnerID    *uuid.UUID // nil for anonymous callers
	ClientIP   string     // quota subject for anonymous callers
	CustomCode bool
	Password   bool
	Expiry     bool
}

// Reservation is one unit of daily quota taken by Reserve.
type Reservation struct {
	counter Counter
	key     string
	log     *zap.Logger
}

// Cancel returns the quota unit, for creations that failed after Reserve.
func (r *Reservation) Cancel(ctx context.Context) {
	if r == nil || r.key == "" {
		return
	}
	if err := r.counter.DecrementCounter(ctx, r.key); err != nil {
		r.log.Warn("Failed to release plan quota", zap.String("key", r.key), zap.Error(err))
	}
}

// PlanLimiter enforces plan features and daily creation quotas.
type PlanLimiter struct {
	users   UserLookup
	counter Counter
	log     *zap.Logger
	now     func() time.Time
}

// NewPlanLimiter creates a limiter. A nil counter disables quotas.
func NewPlanLimiter(users UserLookup, counter Counter, log *zap.Logger) *PlanLimiter {
	return &PlanLimiter{users: users, counter: counter, log: log, now: time.Now}
}

// Reserve checks req against the caller's plan and takes one unit of
// daily quota. Quota counting fails open: if the counter store is down
// the creation is allowed.
func (p *PlanLimiter) Reserve(ctx context.Context, req PlanRequest) (*Reservation, error) {
	tier := TierAnonymous
	subject := "ip:" + req.ClientIP

	if req.OwnerID != nil {
		plan, err := p.users.GetPlan(ctx, *req.OwnerID)
		if errors.Is(err, repository.ErrNotFound) {
			metrics.PlanRejections.WithLabelValues("inactive").Inc()
			return nil, ErrAccountInactive
		}
		if err != nil {
			return nil, storageError("get plan", err)
		}
		if !plan.IsActive {
			metrics.PlanRejections.WithLabelValues("inactive").Inc()
			return nil, ErrAccountInactive
		}
		tier = plan.Tier
		subject = req.OwnerID.String()
	}

	policy := PolicyFor(tier)
	if err := checkFeatures(policy, req); err != nil {
		metrics.PlanRejections.WithLabelValues("feature").Inc()
		return nil, fmt.Errorf("%w (%s)", err, tier)
	}

	if p.counter == nil {
		return &Reservation{}, nil
	}

	key := database.QuotaKey(subject, p.now().UTC())
	count, err := p.counter.IncrementCounter(ctx, key, 25*time.Hour)
	if err != nil {
		p.log.Warn("Plan quota check failed, allowing", zap.String("key", key), zap.Error(err))
		if count == 0 {
			return &Reservation{}, nil
		}
	}

	res := &Reservation{counter: p.counter, key: key, log: p.log}
	if count > policy.LinksPerDay {
		res.Cancel(ctx)
		metrics.PlanRejections.WithLabelValues("quota").Inc()
		return nil, fmt.Errorf("%w (%s: %d per day)", ErrPlanLimitExceeded, tier, policy.LinksPerDay)
	}
	return res, nil
}

func checkFeatures(policy PlanPolicy, req PlanRequest) error {
	switch {
	case req.CustomCode && !policy.CustomCodes:
		return fmt.Errorf("%w: custom short codes", ErrFeatureNotInPlan)
	case req.Password && !policy.Passwords:
		return fmt.Errorf("%w: password protection", ErrFeatureNotInPlan)
	case req.Expiry && !policy.Expiry:
		return fmt.Errorf("%w: link expiry", ErrFeatureNotInPlan)
	}
	return nil
}
