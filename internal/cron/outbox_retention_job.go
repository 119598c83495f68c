package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/threshingfloor/roastery-backend/pkg/logger"
)

const (
	defaultOutboxRetention     = 30 * 24 * time.Hour
	defaultDeadLetterRetention = 90 * 24 * time.Hour
)

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxPurger
	// DeadLetters is optional. When set, dead-lettered events older than
	// DeadLetterRetention are dropped in the same run.
	DeadLetters         deadLetterPurger
	Retention           time.Duration
	DeadLetterRetention time.Duration
	Clock               func() time.Time
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type deadLetterPurger interface {
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob deletes order events that were published longer ago
// than the retention window. Unpublished rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:         params.Logger,
		repo:         params.Repository,
		deadLetters:  params.DeadLetters,
		retention:    params.Retention,
		dlqRetention: params.DeadLetterRetention,
		now:          params.Clock,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.dlqRetention <= 0 {
		job.dlqRetention = defaultDeadLetterRetention
	}
	if job.now == nil {
		job.now = time.Now
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	repo         outboxPurger
	deadLetters  deadLetterPurger
	retention    time.Duration
	dlqRetention time.Duration
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox_retention" }

// Run purges both tables even if the first purge fails, and reports every failure.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	fields := map[string]any{}
	var errs error

	cutoff := now.Add(-j.retention)
	deleted, err := j.repo.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("outbox retention: %w", err))
	}
	fields["cutoff"] = cutoff
	fields["rows_deleted"] = deleted

	if j.deadLetters != nil {
		dlqCutoff := now.Add(-j.dlqRetention)
		dropped, err := j.deadLetters.DeleteFailedBefore(ctx, dlqCutoff)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dead letter retention: %w", err))
		}
		fields["dlq_cutoff"] = dlqCutoff
		fields["dlq_rows_deleted"] = dropped
	}

	if errs != nil {
		return errs
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "outbox events purged")
	return nil
}
