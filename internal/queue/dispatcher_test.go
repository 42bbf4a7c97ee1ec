package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JerryGgzm/SEO-TOOL/internal/analytics"
	"github.com/JerryGgzm/SEO-TOOL/internal/publisher"
	"github.com/JerryGgzm/SEO-TOOL/pkg/kafka"
	"github.com/JerryGgzm/SEO-TOOL/pkg/logging"
	"github.com/JerryGgzm/SEO-TOOL/pkg/models"
)

func scheduledItem(id string, priority int, due time.Time) *models.ContentItem {
	return &models.ContentItem{
		ID:            id,
		FounderID:     uuid.New().String(),
		Text:          "content for " + id,
		Status:        models.StatusScheduled,
		NextAttemptAt: &due,
		Priority:      priority,
		MaxRetries:    models.DefaultMaxRetries,
	}
}

func newTestDispatcher(s Store, adapter publisher.Adapter, recorder analytics.Recorder, cfg Config) *Dispatcher {
	if recorder == nil {
		recorder = analytics.NopRecorder{}
	}
	return NewDispatcher(s, adapter, recorder, nil, cfg, logging.NewLogger())
}

func TestPoll_DispatchesInPriorityOrder(t *testing.T) {
	ms := newMemStore()
	stub := publisher.NewStubAdapter()
	due := time.Now().Add(-time.Minute)

	// Same due time; priority breaks the tie, then id.
	ms.add(scheduledItem("c-low", 2, due))
	ms.add(scheduledItem("a-high", 1, due))
	ms.add(scheduledItem("b-high", 1, due))

	d := newTestDispatcher(ms, stub, nil, Config{WorkerCount: 1, BatchSize: 10})
	d.Poll(context.Background())
	d.Wait()

	reqs := stub.Requests()
	if len(reqs) != 3 {
		t.Fatalf("expected 3 dispatches, got %d", len(reqs))
	}
	want := []string{"a-high", "b-high", "c-low"}
	for i, id := range want {
		if reqs[i].ContentID != id {
			t.Fatalf("dispatch %d: expected %s, got %s", i, id, reqs[i].ContentID)
		}
	}
	for _, id := range want {
		if got := ms.get(id); got.Status != models.StatusPosted {
			t.Fatalf("expected %s posted, got %s", id, got.Status)
		}
	}
}

func TestDispatch_RetryBackoffThenExhausted(t *testing.T) {
	ms := newMemStore()
	stub := publisher.NewStubAdapter()
	due := time.Now().Add(-time.Second)

	item := scheduledItem("flaky", 1, due)
	item.MaxRetries = 2
	ms.add(item)

	rateLimited := &publisher.Error{Code: publisher.CodeRateLimited, Message: "429", Retryable: true}
	stub.Script("flaky", rateLimited, rateLimited, rateLimited)

	now := due
	d := newTestDispatcher(ms, stub, nil, Config{
		WorkerCount:    1,
		BaseRetryDelay: time.Minute,
		MaxRetryDelay:  time.Hour,
	})
	d.now = func() time.Time { return now }

	// First attempt fails, next attempt lands base delay out.
	d.Poll(context.Background())
	d.Wait()
	after := ms.get("flaky")
	if after.Status != models.StatusScheduled || after.RetryCount != 1 {
		t.Fatalf("expected scheduled retry_count=1, got %s retry_count=%d", after.Status, after.RetryCount)
	}
	firstDelay := after.NextAttemptAt.Sub(now)
	if firstDelay != time.Minute {
		t.Fatalf("expected first delay 1m, got %s", firstDelay)
	}

	// Second attempt: the delay doubles.
	now = *after.NextAttemptAt
	d.Poll(context.Background())
	d.Wait()
	after = ms.get("flaky")
	if after.RetryCount != 2 {
		t.Fatalf("expected retry_count=2, got %d", after.RetryCount)
	}
	if secondDelay := after.NextAttemptAt.Sub(now); secondDelay != 2*time.Minute {
		t.Fatalf("expected second delay 2m, got %s", secondDelay)
	}

	// Third failure exceeds max_retries=2 and the item lands in error.
	now = *after.NextAttemptAt
	d.Poll(context.Background())
	d.Wait()
	after = ms.get("flaky")
	if after.Status != models.StatusError {
		t.Fatalf("expected error status, got %s", after.Status)
	}
	if after.ErrorCode == nil || *after.ErrorCode != ErrorCodeRetriesExhausted {
		t.Fatalf("expected RETRIES_EXHAUSTED, got %v", after.ErrorCode)
	}
}

func TestDispatch_FatalErrorRejectsImmediately(t *testing.T) {
	ms := newMemStore()
	stub := publisher.NewStubAdapter()
	due := time.Now().Add(-time.Second)
	ms.add(scheduledItem("denied", 1, due))

	stub.Script("denied", &publisher.Error{Code: publisher.CodeAuthFailed, Message: "bad token", Retryable: false})

	recorder := &analytics.CaptureRecorder{}
	d := newTestDispatcher(ms, stub, recorder, Config{WorkerCount: 1})
	d.Poll(context.Background())
	d.Wait()

	after := ms.get("denied")
	if after.Status != models.StatusError {
		t.Fatalf("expected error status, got %s", after.Status)
	}
	if after.RetryCount != 0 {
		t.Fatalf("expected no retries for fatal error, got %d", after.RetryCount)
	}
	if after.ErrorCode == nil || *after.ErrorCode != ErrorCodePublishRejected {
		t.Fatalf("expected PUBLISH_REJECTED, got %v", after.ErrorCode)
	}

	events := recorder.Events()
	if len(events) != 1 || events[0].Type != kafka.EventContentFailed {
		t.Fatalf("expected one content_failed event, got %+v", events)
	}
}

func TestPoll_ConcurrentDispatchersNeverDoublePost(t *testing.T) {
	ms := newMemStore()
	stub := publisher.NewStubAdapter()
	due := time.Now().Add(-time.Second)
	for i := 0; i < 10; i++ {
		ms.add(scheduledItem(uuid.New().String(), 1, due))
	}

	d1 := newTestDispatcher(ms, stub, nil, Config{WorkerCount: 4})
	d2 := newTestDispatcher(ms, stub, nil, Config{WorkerCount: 4})

	done := make(chan struct{}, 2)
	for _, d := range []*Dispatcher{d1, d2} {
		go func(d *Dispatcher) {
			d.Poll(context.Background())
			d.Wait()
			done <- struct{}{}
		}(d)
	}
	<-done
	<-done

	if got := len(stub.Requests()); got != 10 {
		t.Fatalf("expected exactly 10 publish attempts across both dispatchers, got %d", got)
	}
}

func TestDispatch_IdempotencyKeyStableAcrossAttempts(t *testing.T) {
	ms := newMemStore()
	stub := publisher.NewStubAdapter()
	due := time.Now().Add(-time.Second)
	ms.add(scheduledItem("retry-me", 1, due))

	stub.Script("retry-me", &publisher.Error{Code: publisher.CodePlatformError, Message: "503", Retryable: true})

	now := due
	d := newTestDispatcher(ms, stub, nil, Config{WorkerCount: 1, BaseRetryDelay: time.Second})
	d.now = func() time.Time { return now }

	d.Poll(context.Background())
	d.Wait()
	now = now.Add(time.Minute)
	d.Poll(context.Background())
	d.Wait()

	reqs := stub.RequestsFor("retry-me")
	if len(reqs) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(reqs))
	}
	if reqs[0].IdempotencyKey == "" || reqs[0].IdempotencyKey != reqs[1].IdempotencyKey {
		t.Fatalf("expected stable idempotency key, got %q and %q", reqs[0].IdempotencyKey, reqs[1].IdempotencyKey)
	}
}

func TestPoll_ReapsStaleClaims(t *testing.T) {
	ms := newMemStore()
	stub := publisher.NewStubAdapter()
	due := time.Now().Add(-time.Hour)

	item := scheduledItem("orphaned", 1, due)
	claimedAt := time.Now().Add(-time.Hour)
	worker := "dead-worker"
	item.ClaimedAt = &claimedAt
	item.ClaimedBy = &worker
	ms.add(item)

	d := newTestDispatcher(ms, stub, nil, Config{WorkerCount: 1, ClaimLease: 5 * time.Minute})
	d.Poll(context.Background())
	d.Wait()

	after := ms.get("orphaned")
	if after.Status != models.StatusPosted {
		t.Fatalf("expected reaped item to be picked up and posted, got %s", after.Status)
	}
}

func TestPoll_RestartNeverRepostsFinishedItems(t *testing.T) {
	ms := newMemStore()
	stub := publisher.NewStubAdapter()
	due := time.Now().Add(-time.Minute)

	// A previous process already posted this item. The due time is left
	// populated so only the status filter can keep it out of selection.
	done := scheduledItem("already-posted", 1, due)
	done.Status = models.StatusPosted
	platformID := "tweet-999"
	done.PostedPlatformID = &platformID
	ms.add(done)
	ms.add(scheduledItem("still-waiting", 1, due))

	// Fresh dispatcher, as after a restart.
	d := newTestDispatcher(ms, stub, nil, Config{WorkerCount: 1, BatchSize: 10})
	d.Poll(context.Background())
	d.Wait()

	if got := stub.RequestsFor("already-posted"); len(got) != 0 {
		t.Fatalf("expected no publishes for posted item, got %d", len(got))
	}
	if got := stub.RequestsFor("still-waiting"); len(got) != 1 {
		t.Fatalf("expected one publish for waiting item, got %d", len(got))
	}

	after := ms.get("already-posted")
	if after.Status != models.StatusPosted {
		t.Fatalf("expected posted item untouched, got %s", after.Status)
	}
	if after.PostedPlatformID == nil || *after.PostedPlatformID != platformID {
		t.Fatalf("expected platform id preserved, got %v", after.PostedPlatformID)
	}
}
