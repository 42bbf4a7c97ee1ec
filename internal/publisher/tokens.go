package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/JerryGgzm/SEO-TOOL/pkg/secrets"
)

// ErrNoToken means the founder has no stored credential for the platform.
var ErrNoToken = errors.New("no access token for founder")

// TokenSource yields the access token to publish on a founder's behalf.
type TokenSource interface {
	AccessToken(ctx context.Context, founderID string) (string, error)
}

// SecretsTokenSource reads per-founder OAuth tokens from a secrets store.
// Tokens land there via the account-linking flow and carry their own TTL.
type SecretsTokenSource struct {
	store  secrets.Store
	prefix string
}

func NewSecretsTokenSource(store secrets.Store, platform string) *SecretsTokenSource {
	return &SecretsTokenSource{store: store, prefix: "token:" + platform + ":"}
}

func (s *SecretsTokenSource) AccessToken(ctx context.Context, founderID string) (string, error) {
	token, err := s.store.Get(ctx, s.prefix+founderID)
	if errors.Is(err, secrets.ErrNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}
	return token, nil
}

// StaticTokenSource serves a single token for every founder. Used for
// single-account deployments and tests.
type StaticTokenSource string

func (s StaticTokenSource) AccessToken(ctx context.Context, founderID string) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}
