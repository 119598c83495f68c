package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/threshingfloor/roastery-backend/pkg/logger"
)

var fixedNow = time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)

type recordingPurger struct {
	cutoff time.Time
	calls  int
	err    error
}

func (r *recordingPurger) DeletePublishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.calls++
	r.cutoff = cutoff
	return 7, r.err
}

func (r *recordingPurger) DeleteFailedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.calls++
	r.cutoff = cutoff
	return 2, r.err
}

func (r *recordingPurger) PrunePast(_ context.Context, before time.Time) (int64, error) {
	r.calls++
	r.cutoff = before
	return 3, r.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test"})
}

func TestOutboxRetentionJobUsesRetentionWindow(t *testing.T) {
	repo := &recordingPurger{}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		Repository: repo,
		Clock:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := fixedNow.Add(-defaultOutboxRetention); !repo.cutoff.Equal(want) || repo.calls != 1 {
		t.Fatalf("expected one call with cutoff %s, got %d calls cutoff %s", want, repo.calls, repo.cutoff)
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	job, _ := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		Repository: &recordingPurger{err: errors.New("boom")},
	})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestOutboxRetentionJobPurgesDeadLettersOnLongerWindow(t *testing.T) {
	published := &recordingPurger{}
	deadLetters := &recordingPurger{}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:              testLogger(),
		Repository:          published,
		DeadLetters:         deadLetters,
		Retention:           24 * time.Hour,
		DeadLetterRetention: 72 * time.Hour,
		Clock:               func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := fixedNow.Add(-24 * time.Hour); !published.cutoff.Equal(want) {
		t.Fatalf("published cutoff = %v, want %v", published.cutoff, want)
	}
	if want := fixedNow.Add(-72 * time.Hour); !deadLetters.cutoff.Equal(want) || deadLetters.calls != 1 {
		t.Fatalf("dead letter cutoff = %v (calls %d), want %v", deadLetters.cutoff, deadLetters.calls, want)
	}
}

func TestOutboxRetentionJobStillPurgesDeadLettersAfterFailure(t *testing.T) {
	deadLetters := &recordingPurger{}
	job, _ := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      testLogger(),
		Repository:  &recordingPurger{err: errors.New("boom")},
		DeadLetters: deadLetters,
		Clock:       func() time.Time { return fixedNow },
	})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if deadLetters.calls != 1 {
		t.Fatalf("dead letters purged %d times, want 1", deadLetters.calls)
	}
}

func TestSlotPruneJob(t *testing.T) {
	calendar := &recordingPurger{}
	job, err := NewSlotPruneJob(SlotPruneJobParams{
		Logger:    testLogger(),
		Calendar:  calendar,
		Retention: 48 * time.Hour,
		Clock:     func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewSlotPruneJob: %v", err)
	}
	if job.Name() != "slot_prune" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := fixedNow.Add(-48 * time.Hour); !calendar.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, calendar.cutoff)
	}

	if _, err := NewSlotPruneJob(SlotPruneJobParams{Logger: testLogger(), Calendar: calendar, Retention: -time.Hour}); err == nil {
		t.Fatal("expected negative retention to be rejected")
	}
	if _, err := NewSlotPruneJob(SlotPruneJobParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected missing calendar to be rejected")
	}
}
