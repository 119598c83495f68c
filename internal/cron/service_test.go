package cron

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/threshingfloor/roastery-backend/pkg/logger"
	"github.com/threshingfloor/roastery-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

func (f *fakeLock) Holder(context.Context) (string, error) {
	if f.held {
		return "other", nil
	}
	return "", nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func newTestService(t *testing.T, lock Lock, reg prometheus.Registerer, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRunCycleRunsEveryJobDespiteFailures(t *testing.T) {
	ok := &countingJob{name: "slot_prune"}
	failing := &countingJob{name: "outbox_retention", err: errors.New("boom")}
	lock := &fakeLock{}
	svc := newTestService(t, lock, nil, failing, ok)

	err := svc.runCycle(context.Background())
	if err == nil || !strings.Contains(err.Error(), "outbox_retention: boom") {
		t.Fatalf("expected aggregated job error, got %v", err)
	}
	if len(multierr.Errors(err)) != 1 {
		t.Fatalf("expected one job error, got %v", multierr.Errors(err))
	}
	if ok.runs != 1 || failing.runs != 1 {
		t.Fatalf("expected each job once, got ok=%d failing=%d", ok.runs, failing.runs)
	}
	if lock.held || lock.releases != 1 {
		t.Fatalf("expected lock released once, held=%v releases=%d", lock.held, lock.releases)
	}
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := &countingJob{name: "slot_prune"}
	lock := &fakeLock{held: true}
	svc := newTestService(t, lock, reg, job)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job ran without the lock")
	}
	if lock.releases != 0 {
		t.Fatalf("released a lock it did not own")
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var skipped float64
	for _, mf := range mfs {
		if mf.GetName() != "roastery_cron_job_skipped_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			skipped += m.GetCounter().GetValue()
		}
	}
	if skipped != 1 {
		t.Fatalf("expected one skipped run recorded, got %v", skipped)
	}
}

func TestNewServiceRequiresLoggerAndLock(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewService(ServiceParams{Logger: logger.New(logger.Options{})}); err == nil {
		t.Fatal("expected lock error")
	}
}

type panickingJob struct{}

func (panickingJob) Name() string { return "broken" }

func (panickingJob) Run(context.Context) error { panic("nil calendar") }

type deadlineJob struct{ sawDeadline bool }

func (j *deadlineJob) Name() string { return "deadline" }

func (j *deadlineJob) Run(ctx context.Context) error {
	_, j.sawDeadline = ctx.Deadline()
	return nil
}

func TestRunCycleRecoversFromPanickingJob(t *testing.T) {
	after := &countingJob{name: "slot_prune"}
	lock := &fakeLock{}
	svc := newTestService(t, lock, nil, panickingJob{}, after)

	err := svc.runCycle(context.Background())
	if err == nil || !strings.Contains(err.Error(), "broken: panic: nil calendar") {
		t.Fatalf("expected recovered panic, got %v", err)
	}
	if after.runs != 1 {
		t.Fatalf("job after the panic should still run")
	}
	if lock.releases != 1 {
		t.Fatalf("lock should be released after a panic")
	}
}

func TestRunJobAppliesTimeout(t *testing.T) {
	job := &deadlineJob{}
	svc := newTestService(t, &fakeLock{}, nil, job)
	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if !job.sawDeadline {
		t.Fatal("job context should carry a deadline")
	}
}

func TestRunCycleReleasesLockAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := &countingJob{name: "slot_prune"}
	lock := &fakeLock{}
	svc := newTestService(t, lock, nil, job)

	err := svc.runCycle(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if job.runs != 0 || lock.releases != 1 {
		t.Fatalf("runs=%d releases=%d", job.runs, lock.releases)
	}
}
