package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/timecredit-backend/pkg/config"
	"github.com/angelmondragon/timecredit-backend/pkg/db/models"
	"github.com/angelmondragon/timecredit-backend/pkg/enums"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
	"github.com/angelmondragon/timecredit-backend/pkg/metrics"
	"github.com/angelmondragon/timecredit-backend/pkg/outbox"
	"github.com/angelmondragon/timecredit-backend/pkg/outbox/registry"
)

const testTopic = "booking-events"

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			bookingEvent(t, 0),
			bookingEvent(t, 0),
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newTestService(t, repo, pub, nil)
	reg := prometheus.NewRegistry()
	service.metrics = metrics.NewOutboxMetrics(reg)

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, []uuid.UUID{repo.events[0].ID}, repo.failed)
	require.Equal(t, []uuid.UUID{repo.events[1].ID}, repo.published)
	require.Empty(t, repo.terminal)

	require.Len(t, pub.messages, 2)
	msg := pub.messages[1]
	require.Equal(t, string(enums.EventBookingStatusChanged), msg.Attributes["event_type"])
	require.Equal(t, repo.events[1].AggregateID.String(), msg.Attributes["aggregate_id"])

	series, err := testutil.GatherAndCount(reg, "timecredit_outbox_events_total")
	require.NoError(t, err)
	require.Equal(t, 2, series)
}

func TestServiceProcessBatchEmptyReportsIdle(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, nil)

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
}

func TestServiceParksUnresolvableRows(t *testing.T) {
	event := bookingEvent(t, 0)
	event.AggregateType = enums.AggregateReview
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{}
	service := newTestService(t, repo, pub, nil)

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
	require.Empty(t, pub.messages)
}

func TestServiceParksAfterMaxAttempts(t *testing.T) {
	event := bookingEvent(t, 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{
		results: []publishResult{fakePublishResult{err: errors.New("transient")}},
	}
	service := newTestService(t, repo, pub, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
	require.Empty(t, repo.failed)
}

func TestServiceParksWhenPublisherMissing(t *testing.T) {
	event := bookingEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	service := newTestService(t, repo, nil, nil)
	service.publisherFactory = func(string) publisher { return nil }

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
}

func TestServiceSurfacesBookkeepingErrors(t *testing.T) {
	repo := &fakeRepo{
		events:     []models.OutboxEvent{bookingEvent(t, 0)},
		publishErr: errors.New("db gone"),
	}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, nil)

	_, err := service.processBatch(context.Background())
	require.ErrorContains(t, err, "mark published")
}

func TestNextBackoffCaps(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, 200*time.Millisecond, nextBackoff(0, base, time.Second))
	require.Equal(t, 800*time.Millisecond, nextBackoff(400*time.Millisecond, base, time.Second))
	require.Equal(t, time.Second, nextBackoff(800*time.Millisecond, base, time.Second))

	d := withJitter(base)
	require.GreaterOrEqual(t, d, base)
	require.Less(t, d, base+jitterWindow)
	require.Zero(t, withJitter(0))
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, outboxCfgOverride *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
		PubSub: config.PubSubConfig{BookingTopic: testTopic},
	}
	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	require.NoError(t, err)

	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         &fakeDB{},
		PubSub:     &fakePubSubClient{},
		Repository: repo,
		Registry:   eventRegistry,
		PublisherFactory: func(topic string) publisher {
			if topic != testTopic {
				t.Fatalf("unexpected topic %q", topic)
			}
			return pub
		},
	})
	require.NoError(t, err)
	return service
}

func bookingEvent(tb testing.TB, attempts int) models.OutboxEvent {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"from":"pending","to":"confirmed"}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventBookingStatusChanged,
		AggregateType: enums.AggregateBooking,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Now().UTC(),
	}
}

type fakeRepo struct {
	events     []models.OutboxEvent
	published  []uuid.UUID
	failed     []uuid.UUID
	terminal   []uuid.UUID
	publishErr error
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.publishErr != nil {
		return f.publishErr
	}
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

func (f *fakeDB) Ping(context.Context) error { return nil }

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error { return nil }

func (f *fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}
