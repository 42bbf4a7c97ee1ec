package rules

import (
	"testing"
	"time"

	"github.com/JerryGgzm/SEO-TOOL/pkg/logging"
	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
)

func testPolicy() models.TenantPolicy {
	return models.TenantPolicy{
		SimilarityThreshold: 0.8,
		DuplicateLookback:   7 * 24 * time.Hour,
		MaxPostsPerWindow:   5,
		RateWindow:          24 * time.Hour,
		BannedTerms:         []string{"forbidden"},
		ClockSkewTolerance:  2 * time.Minute,
		MaxLookahead:        90 * 24 * time.Hour,
	}
}

func TestValidate_PassesCleanCandidate(t *testing.T) {
	engine := NewEngine(logging.NewLogger())
	now := time.Now()
	postTime := now.Add(time.Hour)

	v := engine.Validate(Candidate{Text: "launching our new analytics dashboard today", PostTime: &postTime},
		[]models.RecentPost{{ContentID: "a", Text: "completely different words here", PostedAt: now.Add(-time.Hour)}},
		2, testPolicy(), now)
	if v != nil {
		t.Fatalf("expected no violation, got %v", v)
	}
}

func TestValidate_ViolationOrder(t *testing.T) {
	engine := NewEngine(logging.NewLogger())
	now := time.Now()
	past := now.Add(-time.Hour)
	history := []models.RecentPost{
		{ContentID: "dup", Text: "launching our brand new forbidden dashboard", PostedAt: now.Add(-2 * time.Hour)},
	}

	tests := []struct {
		name          string
		candidate     Candidate
		history       []models.RecentPost
		postsInWindow int
		wantCode      string
	}{
		{
			// Duplicate and content policy both apply; duplicate is checked first.
			name:      "duplicate wins over content policy",
			candidate: Candidate{Text: "launching our brand new forbidden dashboard"},
			history:   history,
			wantCode:  models.ViolationDuplicateContent,
		},
		{
			// Rate limit and content policy both apply; rate limit is checked first.
			name:          "rate limit wins over content policy",
			candidate:     Candidate{Text: "a forbidden announcement"},
			postsInWindow: 5,
			wantCode:      models.ViolationRateLimited,
		},
		{
			name:      "banned term",
			candidate: Candidate{Text: "a Forbidden announcement"},
			wantCode:  models.ViolationContentPolicy,
		},
		{
			name:      "schedule in the past",
			candidate: Candidate{Text: "a clean announcement", PostTime: &past},
			wantCode:  models.ViolationScheduleInPast,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := engine.Validate(tt.candidate, tt.history, tt.postsInWindow, testPolicy(), now)
			if v == nil {
				t.Fatal("expected a violation")
			}
			if v.Code != tt.wantCode {
				t.Fatalf("expected code %s, got %s (%s)", tt.wantCode, v.Code, v.Message)
			}
		})
	}
}

func TestCheckSchedule_ToleratesClockSkew(t *testing.T) {
	engine := NewEngine(logging.NewLogger())
	now := time.Now()
	slightlyPast := now.Add(-time.Minute)

	v := engine.Validate(Candidate{Text: "near-immediate post", PostTime: &slightlyPast},
		nil, 0, testPolicy(), now)
	if v != nil {
		t.Fatalf("expected skew-tolerant pass, got %v", v)
	}
}

func TestCheckSchedule_RejectsTooFarAhead(t *testing.T) {
	engine := NewEngine(logging.NewLogger())
	now := time.Now()
	farFuture := now.Add(91 * 24 * time.Hour)

	v := engine.Validate(Candidate{Text: "way ahead", PostTime: &farFuture}, nil, 0, testPolicy(), now)
	if v == nil || v.Code != models.ViolationScheduleTooFar {
		t.Fatalf("expected ViolationScheduleTooFar, got %v", v)
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "hello world", "hello world", 1.0},
		{"disjoint", "alpha beta", "gamma delta", 0.0},
		{"punctuation ignored", "Hello, world!", "hello world", 1.0},
		{"partial overlap", "a b c d", "c d e f", 1.0 / 3.0},
		{"both empty", "", "", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := jaccard(wordSet(tt.a), wordSet(tt.b))
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("expected %.3f, got %.3f", tt.want, got)
			}
		})
	}
}
