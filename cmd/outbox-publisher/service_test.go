package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/threshingfloor/roastery-backend/pkg/config"
	"github.com/threshingfloor/roastery-backend/pkg/db/models"
	"github.com/threshingfloor/roastery-backend/pkg/enums"
	"github.com/threshingfloor/roastery-backend/pkg/logger"
	"github.com/threshingfloor/roastery-backend/pkg/metrics"
	"github.com/threshingfloor/roastery-backend/pkg/outbox"
	"github.com/threshingfloor/roastery-backend/pkg/outbox/payloads"
	"github.com/threshingfloor/roastery-backend/pkg/outbox/registry"
	"github.com/threshingfloor/roastery-backend/pkg/types"
)

func orderEvent(t *testing.T, orderID uuid.UUID, eventType enums.OutboxEventType) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       mustEnvelopePayload(t, uuid.NewString()),
		CreatedAt:     time.Date(2026, 11, 2, 16, 0, 0, 0, time.UTC),
	}
}

func ordersRegistry() *fakeRegistry {
	return &fakeRegistry{resolved: &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "roastery-order-events", AggregateType: enums.AggregateOrder},
		Payload:    &payloads.OrderPlacedEvent{},
	}}
}

func TestProcessBatchContinuesWithOtherOrdersAfterFailure(t *testing.T) {
	first := orderEvent(t, uuid.New(), enums.EventOrderPlaced)
	second := orderEvent(t, uuid.New(), enums.EventOrderPlaced)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("unavailable")},
		fakePublishResult{},
	}}
	svc := newTestService(t, repo, pub, ordersRegistry(), &fakeDLQRepo{}, nil)

	progressed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, progressed)
	require.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	require.Equal(t, []uuid.UUID{second.ID}, repo.published)
	require.Equal(t, []string{first.AggregateID.String()}, pub.resumed)
}

func TestProcessBatchHoldsLaterEventsOfAStalledOrder(t *testing.T) {
	orderID := uuid.New()
	placed := orderEvent(t, orderID, enums.EventOrderPlaced)
	confirmed := orderEvent(t, orderID, enums.EventOrderConfirmed)
	repo := &fakeRepo{events: []models.OutboxEvent{placed, confirmed}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("deadline exceeded")}}}
	reg := prometheus.NewRegistry()
	svc := newTestService(t, repo, pub, ordersRegistry(), &fakeDLQRepo{}, nil)
	svc.metrics = metrics.NewOutboxMetrics(reg)

	progressed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.False(t, progressed, "a batch with only retries should wait for the next poll")
	require.Len(t, pub.sent, 1, "confirmed must not be sent before placed")
	require.Equal(t, []uuid.UUID{placed.ID}, repo.failed)
	require.Empty(t, repo.published)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	results := map[string]string{}
	for _, mf := range mfs {
		if mf.GetName() != "roastery_outbox_rows_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			results[labels["event_type"]] = labels["result"]
		}
	}
	require.Equal(t, map[string]string{"order.placed": "retried", "order.confirmed": "held"}, results)
}

func TestPublishKeysMessagesByOrder(t *testing.T) {
	event := orderEvent(t, uuid.New(), enums.EventOrderConfirmed)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	svc := newTestService(t, repo, pub, ordersRegistry(), &fakeDLQRepo{}, nil)
	var topics []string
	svc.publisherFactory = func(topic string) publisher {
		topics = append(topics, topic)
		return pub
	}

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"roastery-order-events"}, topics)
	require.Len(t, pub.sent, 1)

	msg := pub.sent[0]
	require.True(t, bytes.Equal(msg.Data, event.Payload), "message body should be the stored envelope")
	require.Equal(t, event.AggregateID.String(), msg.OrderingKey)
	require.Equal(t, "order.confirmed", msg.Attributes["event_type"])
	require.Equal(t, event.AggregateID.String(), msg.Attributes["order_id"])
	require.Equal(t, "1", msg.Attributes["schema_version"])
	require.Equal(t, "2026-11-02T16:00:00Z", msg.Attributes["occurred_at"])
	require.Equal(t, []uuid.UUID{event.ID}, repo.published)
}

func TestProcessBatchDeadLettersUnknownEvents(t *testing.T) {
	event := orderEvent(t, uuid.New(), enums.OutboxEventType("order.shipped"))
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	reg := &fakeRegistry{err: registry.NonRetryableError{Reason: enums.OutboxDLQReasonUnknownEvent, Err: errors.New("unsupported")}}
	dlq := &fakeDLQRepo{}
	svc := newTestService(t, repo, &fakePublisher{}, reg, dlq, nil)

	progressed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, progressed)
	require.Len(t, dlq.entries, 1)
	require.Equal(t, enums.OutboxDLQReasonUnknownEvent, dlq.entries[0].ErrorReason)
	require.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
}

func TestProcessBatchDeadLettersWhenNoPublisher(t *testing.T) {
	event := orderEvent(t, uuid.New(), enums.EventOrderPlaced)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	svc := newTestService(t, repo, nil, ordersRegistry(), dlq, nil)
	svc.publisherFactory = func(string) publisher { return nil }

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	entry := dlq.entries[0]
	require.Equal(t, event.ID, entry.EventID)
	require.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	require.True(t, bytes.Equal(entry.Payload, event.Payload))
}

func TestProcessBatchDeadLettersAtMaxAttempts(t *testing.T) {
	event := orderEvent(t, uuid.New(), enums.EventOrderCancelled)
	event.AttemptCount = 1
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("unavailable")}}}
	dlq := &fakeDLQRepo{}
	svc := newTestService(t, repo, pub, ordersRegistry(), dlq, &config.OutboxConfig{BatchSize: 1, PollIntervalMS: 100, MaxAttempts: 2})

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	require.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlq.entries[0].ErrorReason)
	require.Empty(t, repo.failed)
}

func TestNextBackoffCaps(t *testing.T) {
	base := 500 * time.Millisecond
	require.Equal(t, time.Second, nextBackoff(0, base, maxBackoff))
	require.Equal(t, maxBackoff, nextBackoff(8*time.Second, base, maxBackoff))

	got := withJitter(time.Second)
	require.GreaterOrEqual(t, got, time.Second)
	require.Less(t, got, time.Second+jitterWindow)
}

func TestRunStopsOnCancel(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{}, ordersRegistry(), &fakeDLQRepo{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, svc.Run(ctx), context.DeadlineExceeded)
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, reg registryResolver, dlq dlqRepository, override *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{BatchSize: 2, PollIntervalMS: 100, MaxAttempts: 5}
	if override != nil {
		outboxCfg = *override
	}
	svc, err := NewService(ServiceParams{
		Config:           &config.Config{Outbox: outboxCfg},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               fakeDB{},
		PubSub:           fakePubSubClient{},
		Repository:       repo,
		Registry:         reg,
		PublisherFactory: func(string) publisher { return pub },
		DLQRepository:    dlq,
	})
	require.NoError(t, err)
	return svc
}

func mustEnvelopePayload(tb testing.TB, eventID string) types.JSON {
	tb.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Date(2026, 11, 2, 16, 0, 0, 0, time.UTC),
		Data:       json.RawMessage(`{}`),
	})
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error { return nil }

func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results []publishResult
	sent    []*gcppubsub.Message
	resumed []string
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

func (f *fakePublisher) ResumePublish(key string) {
	f.resumed = append(f.resumed, key)
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "server-id", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, err
	}
	resolved.Envelope = envelope
	return &resolved, nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
