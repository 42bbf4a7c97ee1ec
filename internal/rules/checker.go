package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JerryGgzm/SEO-TOOL/pkg/cache"
	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
)

// HistorySource supplies the founder data the checks need.
type HistorySource interface {
	RecentPosts(ctx context.Context, founderID string, since time.Time) ([]models.RecentPost, error)
	CountInRateWindow(ctx context.Context, founderID string, windowStart, windowEnd time.Time) (int, error)
	GetPolicy(ctx context.Context, founderID string, fallback models.TenantPolicy) (models.TenantPolicy, error)
}

// Checker loads a founder's policy and posting history and runs the engine
// over them. Policies are cached briefly so batch scheduling does not hit
// the database once per item.
type Checker struct {
	source   HistorySource
	engine   *Engine
	defaults models.TenantPolicy
	policies *cache.Cache
	logger   *logrus.Logger
}

func NewChecker(source HistorySource, defaults models.TenantPolicy, logger *logrus.Logger) *Checker {
	return &Checker{
		source:   source,
		engine:   NewEngine(logger),
		defaults: defaults,
		policies: cache.New(cache.Options{
			TTL:                  30 * time.Second,
			StaleWhileRevalidate: 30 * time.Second,
			MaxEntries:           1024,
		}),
		logger: logger,
	}
}

// Check validates a candidate for the founder. A nil violation with a nil
// error means the candidate may be scheduled.
func (c *Checker) Check(ctx context.Context, founderID string, candidate Candidate, now time.Time) (*models.RuleViolation, error) {
	policy, err := c.policy(ctx, founderID)
	if err != nil {
		return nil, err
	}

	history, err := c.source.RecentPosts(ctx, founderID, now.Add(-policy.DuplicateLookback))
	if err != nil {
		return nil, fmt.Errorf("failed to load posting history: %w", err)
	}

	// The rate window is anchored on when the candidate would go out, so
	// scheduling far ahead counts against that day, not today.
	effective := now
	if candidate.PostTime != nil {
		effective = *candidate.PostTime
	}
	count, err := c.source.CountInRateWindow(ctx, founderID, effective.Add(-policy.RateWindow), effective.Add(time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to count posts in rate window: %w", err)
	}

	return c.engine.Validate(candidate, history, count, policy, now), nil
}

// CheckTiming validates only the schedule-sanity rules. Used on reschedule,
// where the item itself already sits in the rate window and a full check
// would count it against its own limit.
func (c *Checker) CheckTiming(ctx context.Context, founderID string, postTime time.Time, now time.Time) (*models.RuleViolation, error) {
	policy, err := c.policy(ctx, founderID)
	if err != nil {
		return nil, err
	}
	return c.engine.checkSchedule(Candidate{PostTime: &postTime}, policy, now), nil
}

// CheckText validates only the content-policy rules, for text edits.
func (c *Checker) CheckText(ctx context.Context, founderID, text string) (*models.RuleViolation, error) {
	policy, err := c.policy(ctx, founderID)
	if err != nil {
		return nil, err
	}
	return c.engine.checkContentPolicy(Candidate{Text: text}, policy), nil
}

// Policy returns the founder's effective policy.
func (c *Checker) Policy(ctx context.Context, founderID string) (models.TenantPolicy, error) {
	return c.policy(ctx, founderID)
}

// InvalidatePolicy drops the cached policy after an update.
func (c *Checker) InvalidatePolicy(founderID string) {
	c.policies.Delete(founderID)
}

func (c *Checker) policy(ctx context.Context, founderID string) (models.TenantPolicy, error) {
	val, _, err := c.policies.Get(ctx, founderID, func(ctx context.Context, key string) (interface{}, bool, error) {
		policy, err := c.source.GetPolicy(ctx, key, c.defaults)
		if err != nil {
			return nil, false, err
		}
		return policy, true, nil
	})
	if err != nil {
		return c.defaults, fmt.Errorf("failed to load tenant policy: %w", err)
	}
	policy, ok := val.(models.TenantPolicy)
	if !ok {
		return c.defaults, nil
	}
	return policy, nil
}
