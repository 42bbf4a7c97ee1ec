package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
)

// Candidate is a piece of content proposed for publication.
type Candidate struct {
	Text     string
	PostTime *time.Time
}

// Engine evaluates a candidate against a founder's policy. Checks run in a
// fixed order and the first violation wins: duplicate content, rate limit,
// content policy, then schedule sanity.
type Engine struct {
	logger *logrus.Logger
}

func NewEngine(logger *logrus.Logger) *Engine {
	return &Engine{logger: logger}
}

// Validate returns nil when the candidate passes every check.
// postsInWindow is the founder's post count inside the current rate window,
// history the founder's recently published texts.
func (e *Engine) Validate(candidate Candidate, history []models.RecentPost, postsInWindow int, policy models.TenantPolicy, now time.Time) *models.RuleViolation {
	if v := e.checkDuplicate(candidate, history, policy); v != nil {
		return v
	}
	if v := e.checkRateLimit(postsInWindow, policy); v != nil {
		return v
	}
	if v := e.checkContentPolicy(candidate, policy); v != nil {
		return v
	}
	return e.checkSchedule(candidate, policy, now)
}

func (e *Engine) checkDuplicate(candidate Candidate, history []models.RecentPost, policy models.TenantPolicy) *models.RuleViolation {
	candidateWords := wordSet(candidate.Text)
	for _, post := range history {
		score := jaccard(candidateWords, wordSet(post.Text))
		if score >= policy.SimilarityThreshold {
			e.logger.WithFields(logrus.Fields{
				"matched_content_id": post.ContentID,
				"similarity":         score,
			}).Debug("Candidate rejected as duplicate")
			return &models.RuleViolation{
				Code: models.ViolationDuplicateContent,
				Message: fmt.Sprintf("content is %.0f%% similar to post %s published at %s",
					score*100, post.ContentID, post.PostedAt.Format(time.RFC3339)),
			}
		}
	}
	return nil
}

func (e *Engine) checkRateLimit(postsInWindow int, policy models.TenantPolicy) *models.RuleViolation {
	if postsInWindow >= policy.MaxPostsPerWindow {
		return &models.RuleViolation{
			Code: models.ViolationRateLimited,
			Message: fmt.Sprintf("limit of %d posts per %s reached",
				policy.MaxPostsPerWindow, policy.RateWindow),
		}
	}
	return nil
}

func (e *Engine) checkContentPolicy(candidate Candidate, policy models.TenantPolicy) *models.RuleViolation {
	lowered := strings.ToLower(candidate.Text)
	for _, term := range policy.BannedTerms {
		if term == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(term)) {
			return &models.RuleViolation{
				Code:    models.ViolationContentPolicy,
				Message: fmt.Sprintf("content contains banned term %q", term),
			}
		}
	}
	return nil
}

func (e *Engine) checkSchedule(candidate Candidate, policy models.TenantPolicy, now time.Time) *models.RuleViolation {
	if candidate.PostTime == nil {
		return nil
	}
	if candidate.PostTime.Before(now.Add(-policy.ClockSkewTolerance)) {
		return &models.RuleViolation{
			Code:    models.ViolationScheduleInPast,
			Message: fmt.Sprintf("post time %s is in the past", candidate.PostTime.Format(time.RFC3339)),
		}
	}
	if candidate.PostTime.After(now.Add(policy.MaxLookahead)) {
		return &models.RuleViolation{
			Code:    models.ViolationScheduleTooFar,
			Message: fmt.Sprintf("post time %s is more than %s ahead", candidate.PostTime.Format(time.RFC3339), policy.MaxLookahead),
		}
	}
	return nil
}

// wordSet lowercases and tokenizes text into its distinct words.
func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]{}#@")
		if word != "" {
			set[word] = struct{}{}
		}
	}
	return set
}

// jaccard computes word-overlap similarity between two sets: the size of the
// intersection over the size of the union. Two empty texts count as
// identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	for word := range a {
		if _, ok := b[word]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
