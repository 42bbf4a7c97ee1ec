package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/timeout"
	"github.com/sirupsen/logrus"
)

const (
	defaultTwitterBaseURL = "https://api.twitter.com"
	// X counts a tweet as at most 280 characters.
	maxTweetLength = 280
)

// TwitterAdapter publishes tweets through the X API v2. Each Publish call is
// a single attempt; attempt-level scheduling and backoff live in the
// dispatcher. The adapter guards the upstream with a per-attempt timeout and
// a circuit breaker so a dead API fails fast instead of tying up workers.
type TwitterAdapter struct {
	baseURL  string
	tokens   TokenSource
	client   *http.Client
	executor failsafe.Executor[*http.Response]
	breaker  circuitbreaker.CircuitBreaker[*http.Response]
	logger   *logrus.Logger
}

// TwitterConfig tunes the adapter. Zero values get defaults.
type TwitterConfig struct {
	BaseURL        string
	AttemptTimeout time.Duration
	BreakerDelay   time.Duration
}

func NewTwitterAdapter(tokens TokenSource, cfg TwitterConfig, logger *logrus.Logger) *TwitterAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTwitterBaseURL
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 15 * time.Second
	}
	if cfg.BreakerDelay <= 0 {
		cfg.BreakerDelay = 30 * time.Second
	}

	breaker := circuitbreaker.NewBuilder[*http.Response]().
		WithFailureThresholdRatio(5, 10).
		WithDelay(cfg.BreakerDelay).
		WithSuccessThreshold(1).
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && resp.StatusCode >= 500
		}).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			logger.WithFields(logrus.Fields{
				"from_state": breakerStateName(event.OldState),
				"to_state":   breakerStateName(event.NewState),
			}).Warn("Twitter circuit breaker state change")
		}).
		Build()

	return &TwitterAdapter{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		tokens:   tokens,
		client:   &http.Client{Timeout: cfg.AttemptTimeout + time.Second},
		executor: failsafe.With(timeout.New[*http.Response](cfg.AttemptTimeout), breaker),
		breaker:  breaker,
		logger:   logger,
	}
}

func (a *TwitterAdapter) Platform() string {
	return "twitter"
}

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

func (a *TwitterAdapter) Publish(ctx context.Context, req Request) (*Result, error) {
	if utf8.RuneCountInString(req.Text) > maxTweetLength {
		return nil, fatalError(CodeContentTooLong,
			fmt.Sprintf("tweet is %d characters, limit is %d", utf8.RuneCountInString(req.Text), maxTweetLength))
	}

	token, err := a.tokens.AccessToken(ctx, req.FounderID)
	if errors.Is(err, ErrNoToken) {
		return nil, fatalError(CodeAuthFailed, "founder has no linked Twitter account")
	}
	if err != nil {
		return nil, retryableError(CodeNetworkError, err.Error())
	}

	body, err := json.Marshal(tweetRequest{Text: req.Text})
	if err != nil {
		return nil, fatalError(CodeContentRejected, err.Error())
	}

	resp, err := a.executor.WithContext(ctx).GetWithExecution(func(exec failsafe.Execution[*http.Response]) (*http.Response, error) {
		httpReq, reqErr := http.NewRequestWithContext(exec.Context(), http.MethodPost,
			a.baseURL+"/2/tweets", bytes.NewReader(body))
		if reqErr != nil {
			return nil, reqErr
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-Idempotency-Key", req.IdempotencyKey)
		return a.client.Do(httpReq)
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return nil, retryableError(CodePlatformError, "Twitter circuit breaker is open")
		}
		if errors.Is(err, timeout.ErrExceeded) {
			return nil, retryableError(CodeNetworkError, "Twitter request timed out")
		}
		return nil, retryableError(CodeNetworkError, err.Error())
	}
	defer resp.Body.Close()

	return a.classify(req, resp)
}

// classify maps an X API response to a Result or a classified Error.
// Auth and validation failures are fatal; rate limits and server errors
// retry.
func (a *TwitterAdapter) classify(req Request, resp *http.Response) (*Result, error) {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var parsed tweetResponse
	_ = json.Unmarshal(raw, &parsed)

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		if parsed.Data.ID == "" {
			return nil, retryableError(CodePlatformError, "Twitter response missing tweet id")
		}
		return &Result{PlatformID: parsed.Data.ID}, nil

	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fatalError(CodeAuthFailed, "Twitter rejected the access token")

	case resp.StatusCode == http.StatusForbidden:
		if strings.Contains(strings.ToLower(parsed.Detail), "duplicate") {
			return nil, fatalError(CodeDuplicatePost, "Twitter rejected the tweet as a duplicate")
		}
		return nil, fatalError(CodeAuthFailed, apiDetail(parsed, "Twitter denied the request"))

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, retryableError(CodeRateLimited, "Twitter rate limit reached")

	case resp.StatusCode >= 500:
		return nil, retryableError(CodePlatformError,
			fmt.Sprintf("Twitter returned status %d", resp.StatusCode))

	default:
		a.logger.WithFields(logrus.Fields{
			"content_id": req.ContentID,
			"status":     resp.StatusCode,
		}).Warn("Unexpected Twitter response")
		return nil, fatalError(CodeContentRejected, apiDetail(parsed,
			fmt.Sprintf("Twitter returned status %d", resp.StatusCode)))
	}
}

func apiDetail(parsed tweetResponse, fallback string) string {
	if parsed.Detail != "" {
		return parsed.Detail
	}
	if parsed.Title != "" {
		return parsed.Title
	}
	return fallback
}

func breakerStateName(state circuitbreaker.State) string {
	switch state {
	case circuitbreaker.ClosedState:
		return "closed"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	case circuitbreaker.OpenState:
		return "open"
	default:
		return "unknown"
	}
}

// BreakerOpen reports whether the circuit breaker is currently rejecting
// requests, for health reporting.
func (a *TwitterAdapter) BreakerOpen() bool {
	return a.breaker.IsOpen()
}
