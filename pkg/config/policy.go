package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
)

// policyFile is the on-disk shape of the default publishing policy.
// Durations are strings in time.ParseDuration format ("24h", "90m").
type policyFile struct {
	Policy struct {
		SimilarityThreshold *float64 `yaml:"similarity_threshold"`
		DuplicateLookback   string   `yaml:"duplicate_lookback"`
		MaxPostsPerWindow   *int     `yaml:"max_posts_per_window"`
		RateWindow          string   `yaml:"rate_window"`
		BannedTerms         []string `yaml:"banned_terms"`
		ClockSkewTolerance  string   `yaml:"clock_skew_tolerance"`
		MaxLookahead        string   `yaml:"max_lookahead"`
	} `yaml:"policy"`
}

// LoadPolicyDefaults reads the default tenant policy from a YAML file.
// A missing path returns the built-in defaults rather than an error so the
// service can run without a policy file. Fields absent from the file keep
// their built-in values.
func LoadPolicyDefaults(path string) (models.TenantPolicy, error) {
	defaults := models.DefaultTenantPolicy()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults, nil
		}
		return defaults, fmt.Errorf("failed to read policy file: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return defaults, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}

	policy := defaults
	if file.Policy.SimilarityThreshold != nil {
		policy.SimilarityThreshold = *file.Policy.SimilarityThreshold
	}
	if file.Policy.MaxPostsPerWindow != nil {
		policy.MaxPostsPerWindow = *file.Policy.MaxPostsPerWindow
	}
	if file.Policy.BannedTerms != nil {
		policy.BannedTerms = file.Policy.BannedTerms
	}
	if err := setDuration(&policy.DuplicateLookback, file.Policy.DuplicateLookback, "duplicate_lookback"); err != nil {
		return defaults, err
	}
	if err := setDuration(&policy.RateWindow, file.Policy.RateWindow, "rate_window"); err != nil {
		return defaults, err
	}
	if err := setDuration(&policy.ClockSkewTolerance, file.Policy.ClockSkewTolerance, "clock_skew_tolerance"); err != nil {
		return defaults, err
	}
	if err := setDuration(&policy.MaxLookahead, file.Policy.MaxLookahead, "max_lookahead"); err != nil {
		return defaults, err
	}

	if policy.SimilarityThreshold <= 0 || policy.SimilarityThreshold > 1 {
		return defaults, fmt.Errorf("similarity_threshold must be in (0,1], got %v", policy.SimilarityThreshold)
	}
	if policy.MaxPostsPerWindow <= 0 {
		return defaults, fmt.Errorf("max_posts_per_window must be positive, got %d", policy.MaxPostsPerWindow)
	}
	if policy.RateWindow <= 0 {
		return defaults, fmt.Errorf("rate_window must be positive, got %v", policy.RateWindow)
	}

	return policy, nil
}

func setDuration(dst *time.Duration, raw, field string) error {
	if raw == "" {
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	*dst = parsed
	return nil
}
