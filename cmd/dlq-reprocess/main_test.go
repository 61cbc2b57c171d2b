package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
)

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger.WithField("component", "dlq-test")
}

func mapLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestParseBrokers(t *testing.T) {
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, parseBrokers(" broker-1:9092, ,broker-2:9092 "))
	require.Empty(t, parseBrokers(""))
}

func TestParseConfig_EnvFallback(t *testing.T) {
	cfg, err := parseConfig(nil, mapLookup(map[string]string{
		envKafkaBrokers:  "kafka:9092",
		envKafkaTopic:    "orders",
		envKafkaDLQTopic: "orders.dlq",
	}), io.Discard)
	require.NoError(t, err)

	require.Equal(t, []string{"kafka:9092"}, cfg.brokers)
	require.Equal(t, "orders.dlq", cfg.sourceTopic)
	require.Equal(t, "orders", cfg.targetTopic)
	require.Equal(t, defaultReplayLimit, cfg.limit)
	require.Equal(t, defaultIdleTimeout, cfg.idleTimeout)
	require.False(t, cfg.execute)
}

func TestParseConfig_FlagsOverrideEnv(t *testing.T) {
	cfg, err := parseConfig([]string{
		"-brokers", "a:9092,b:9092",
		"-source-topic", "custom.dlq",
		"-limit", "5",
		"-execute",
		"-from-newest",
		"-idle-timeout", "500ms",
	}, mapLookup(map[string]string{envKafkaBrokers: "ignored:9092"}), io.Discard)
	require.NoError(t, err)

	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.brokers)
	require.Equal(t, "custom.dlq", cfg.sourceTopic)
	require.Equal(t, kafka.TopicOrderEvents, cfg.targetTopic)
	require.Equal(t, 5, cfg.limit)
	require.True(t, cfg.execute)
	require.True(t, cfg.fromNewest)
	require.Equal(t, 500*time.Millisecond, cfg.idleTimeout)
}

func TestParseConfig_Invalid(t *testing.T) {
	withBrokers := mapLookup(map[string]string{envKafkaBrokers: "kafka:9092"})
	cases := []struct {
		args   []string
		lookup func(string) (string, bool)
		want   string
	}{
		{nil, mapLookup(nil), "kafka brokers are required (-brokers or SHOP_KAFKA_BROKERS)"},
		{[]string{"-source-topic", " "}, withBrokers, "source-topic is required"},
		{[]string{"-target-topic", " "}, withBrokers, "target-topic is required"},
		{[]string{"-target-topic", kafka.TopicDeadLetterQueue}, withBrokers, "source-topic and target-topic must differ"},
		{[]string{"-limit", "0"}, withBrokers, "limit must be > 0"},
		{[]string{"-idle-timeout", "0s"}, withBrokers, "idle-timeout must be > 0"},
	}
	for _, tc := range cases {
		_, err := parseConfig(tc.args, tc.lookup, io.Discard)
		require.EqualError(t, err, tc.want)
	}
}

func deadLetterFor(id string) outbox.DeadLetter {
	return outbox.DeadLetter{
		OutboxID:      id,
		AggregateType: domain.AggregateOrder,
		AggregateID:   "order-" + id,
		EventType:     domain.EventOrderPlaced,
		Payload:       json.RawMessage(`{"status":"placed"}`),
		PublishError:  "broker down",
	}
}

// dlqMessage публикует dead letter через DLQ publisher сервиса и возвращает
// то, что ушло бы в topic.
func dlqMessage(t *testing.T, letter outbox.DeadLetter) []byte {
	t.Helper()

	payload, err := json.Marshal(letter)
	require.NoError(t, err)

	var captured []byte
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		value, err := msg.Value.Encode()
		captured = value
		return err
	})

	publisher := kafka.NewDLQPublisher(kafka.NewProducerFrom(mockProducer, quietLogger()), "")
	require.NoError(t, publisher.Publish(domain.OutboxMessage{
		ID:            letter.OutboxID,
		AggregateType: letter.AggregateType,
		AggregateID:   letter.AggregateID,
		EventType:     letter.EventType,
		Payload:       payload,
	}))
	require.NoError(t, mockProducer.Close())
	return captured
}

func TestExtractReplayMessage_RestoresOriginalEvent(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	replay, err := extractReplayMessage(dlqMessage(t, deadLetterFor("msg-1")), now)
	require.NoError(t, err)

	require.Equal(t, "order-msg-1", replay.key)
	require.Equal(t, domain.EventOrderPlaced, replay.headers[kafka.HeaderEventType])
	require.Equal(t, "msg-1", replay.headers[kafka.HeaderOutboxID])
	require.Equal(t, domain.AggregateOrder, replay.headers[kafka.HeaderAggregateType])

	envelope, err := kafka.DecodeEnvelope(replay.value)
	require.NoError(t, err)
	require.Equal(t, "msg-1", envelope.ID)
	require.JSONEq(t, `{"status":"placed"}`, string(envelope.Payload))
	require.True(t, envelope.PublishedAt.Equal(now))
}

func TestExtractReplayMessage_Unsupported(t *testing.T) {
	noPayload := deadLetterFor("msg-2")
	noPayload.Payload = nil

	blankPayload := deadLetterFor("msg-3")
	blankPayload.Payload = json.RawMessage("  null ")

	cases := map[string][]byte{
		"not json":         []byte("plain text"),
		"no event type":    []byte(`{"id":"x","payload":{}}`),
		"not dead letter":  []byte(`{"id":"x","event_type":"order.placed","payload":"text"}`),
		"no original data": dlqMessage(t, noPayload),
		"null payload":     dlqMessage(t, blankPayload),
	}
	for name, value := range cases {
		_, err := extractReplayMessage(value, time.Now())
		require.Error(t, err, name)
	}
}

func TestPayloadMissing(t *testing.T) {
	require.True(t, payloadMissing(nil))
	require.True(t, payloadMissing(json.RawMessage(" null\n")))
	require.False(t, payloadMissing(json.RawMessage(`{"order_id":"o-1"}`)))
	require.False(t, payloadMissing(json.RawMessage(`"null"`)))
}

type fakeOffsetClient struct {
	partitions    []int32
	partitionsErr error
	offsets       map[int32][2]int64
}

func (f *fakeOffsetClient) GetOffset(_ string, partition int32, at int64) (int64, error) {
	bounds, ok := f.offsets[partition]
	if !ok {
		return 0, errors.New("unknown partition")
	}
	if at == sarama.OffsetOldest {
		return bounds[0], nil
	}
	return bounds[1], nil
}

func (f *fakeOffsetClient) Partitions(string) ([]int32, error) {
	return f.partitions, f.partitionsErr
}

func (f *fakeOffsetClient) Close() error { return nil }

type fakePartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
	closed   bool
}

func newFakePartitionConsumer(msgs ...*sarama.ConsumerMessage) *fakePartitionConsumer {
	pc := &fakePartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage, len(msgs)),
		errors:   make(chan *sarama.ConsumerError),
	}
	for _, msg := range msgs {
		pc.messages <- msg
	}
	return pc
}

func (f *fakePartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return f.messages }
func (f *fakePartitionConsumer) Errors() <-chan *sarama.ConsumerError { return f.errors }
func (f *fakePartitionConsumer) Close() error {
	f.closed = true
	return nil
}

type fakeConsumerSource struct {
	consumers map[int32]*fakePartitionConsumer
	starts    map[int32]int64
}

func (f *fakeConsumerSource) ConsumePartition(_ string, partition int32, offset int64) (partitionConsumer, error) {
	pc, ok := f.consumers[partition]
	if !ok {
		return nil, errors.New("no consumer for partition")
	}
	if f.starts == nil {
		f.starts = make(map[int32]int64)
	}
	f.starts[partition] = offset
	return pc, nil
}

func (f *fakeConsumerSource) Close() error { return nil }

func consumerMessage(partition int32, offset int64, value []byte) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Partition: partition, Offset: offset, Value: value}
}

func replayConfig(execute bool) config {
	return config{
		brokers:     []string{"kafka:9092"},
		sourceTopic: kafka.TopicDeadLetterQueue,
		targetTopic: kafka.TopicOrderEvents,
		limit:       10,
		execute:     execute,
		idleTimeout: 200 * time.Millisecond,
	}
}

func TestRunReplay_ExecutePublishesToTarget(t *testing.T) {
	client := &fakeOffsetClient{
		partitions: []int32{1, 0},
		offsets:    map[int32][2]int64{0: {0, 2}, 1: {5, 6}},
	}
	p0 := newFakePartitionConsumer(
		consumerMessage(0, 0, dlqMessage(t, deadLetterFor("a"))),
		consumerMessage(0, 1, []byte("garbage")),
	)
	p1 := newFakePartitionConsumer(consumerMessage(1, 5, dlqMessage(t, deadLetterFor("b"))))
	source := &fakeConsumerSource{consumers: map[int32]*fakePartitionConsumer{0: p0, 1: p1}}

	mockProducer := mocks.NewSyncProducer(t, nil)
	var keys []string
	for range 2 {
		mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			if msg.Topic != kafka.TopicOrderEvents {
				return errors.New("unexpected topic " + msg.Topic)
			}
			key, err := msg.Key.Encode()
			keys = append(keys, string(key))
			return err
		})
	}
	sender := kafka.NewProducerFrom(mockProducer, quietLogger())

	stats, err := runReplay(context.Background(), replayConfig(true), client, source, sender, quietLogger())
	require.NoError(t, err)
	require.Equal(t, replayStats{processed: 3, replayed: 2, skipped: 1}, stats)
	require.Equal(t, []string{"order-a", "order-b"}, keys)
	require.True(t, p0.closed)
	require.True(t, p1.closed)
	require.NoError(t, sender.Close())
}

func TestRunReplay_DryRunOnlyCounts(t *testing.T) {
	client := &fakeOffsetClient{partitions: []int32{0}, offsets: map[int32][2]int64{0: {0, 1}}}
	source := &fakeConsumerSource{consumers: map[int32]*fakePartitionConsumer{
		0: newFakePartitionConsumer(consumerMessage(0, 0, dlqMessage(t, deadLetterFor("a")))),
	}}

	stats, err := runReplay(context.Background(), replayConfig(false), client, source, nil, quietLogger())
	require.NoError(t, err)
	require.Equal(t, replayStats{processed: 1, replayed: 1}, stats)
}

func TestRunReplay_FromNewestRespectsLimit(t *testing.T) {
	client := &fakeOffsetClient{partitions: []int32{0, 1}, offsets: map[int32][2]int64{0: {0, 10}, 1: {0, 10}}}
	source := &fakeConsumerSource{consumers: map[int32]*fakePartitionConsumer{
		0: newFakePartitionConsumer(
			consumerMessage(0, 8, dlqMessage(t, deadLetterFor("a"))),
			consumerMessage(0, 9, dlqMessage(t, deadLetterFor("b"))),
		),
	}}

	cfg := replayConfig(false)
	cfg.limit = 2
	cfg.fromNewest = true

	stats, err := runReplay(context.Background(), cfg, client, source, nil, quietLogger())
	require.NoError(t, err)
	require.Equal(t, 2, stats.processed)
	require.Equal(t, int64(8), source.starts[0])
	require.NotContains(t, source.starts, int32(1))
}

func TestRunReplay_IdlePartitionEnds(t *testing.T) {
	client := &fakeOffsetClient{partitions: []int32{0}, offsets: map[int32][2]int64{0: {0, 3}}}
	source := &fakeConsumerSource{consumers: map[int32]*fakePartitionConsumer{0: newFakePartitionConsumer()}}

	cfg := replayConfig(false)
	cfg.idleTimeout = 10 * time.Millisecond

	stats, err := runReplay(context.Background(), cfg, client, source, nil, quietLogger())
	require.NoError(t, err)
	require.Zero(t, stats.processed)
}

func TestRunReplay_Errors(t *testing.T) {
	source := &fakeConsumerSource{}

	_, err := runReplay(context.Background(), replayConfig(false), nil, source, nil, quietLogger())
	require.EqualError(t, err, "kafka client and consumer are required")

	_, err = runReplay(context.Background(), replayConfig(true), &fakeOffsetClient{}, source, nil, quietLogger())
	require.EqualError(t, err, "producer is required in execute mode")

	_, err = runReplay(context.Background(), replayConfig(false), &fakeOffsetClient{partitionsErr: sarama.ErrOutOfBrokers}, source, nil, quietLogger())
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	stats, err := runReplay(context.Background(), replayConfig(false), &fakeOffsetClient{}, source, nil, quietLogger())
	require.NoError(t, err)
	require.Zero(t, stats)

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
	client := &fakeOffsetClient{partitions: []int32{0}, offsets: map[int32][2]int64{0: {0, 1}}}
	failing := &fakeConsumerSource{consumers: map[int32]*fakePartitionConsumer{
		0: newFakePartitionConsumer(consumerMessage(0, 0, dlqMessage(t, deadLetterFor("a")))),
	}}
	_, err = runReplay(context.Background(), replayConfig(true), client, failing, kafka.NewProducerFrom(mockProducer, quietLogger()), quietLogger())
	require.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, mockProducer.Close())
}

func TestRun_UsesInjectedDependencies(t *testing.T) {
	original := newReplayDependencies
	t.Cleanup(func() { newReplayDependencies = original })

	client := &fakeOffsetClient{partitions: []int32{0}, offsets: map[int32][2]int64{0: {0, 1}}}
	newReplayDependencies = func(config) (offsetClient, partitionConsumerSource, replaySender, error) {
		return client, &fakeConsumerSource{consumers: map[int32]*fakePartitionConsumer{
			0: newFakePartitionConsumer(consumerMessage(0, 0, []byte("garbage"))),
		}}, nil, nil
	}
	require.NoError(t, run(context.Background(), replayConfig(false), quietLogger()))

	newReplayDependencies = func(config) (offsetClient, partitionConsumerSource, replaySender, error) {
		return nil, nil, nil, errors.New("dial failed")
	}
	require.EqualError(t, run(context.Background(), replayConfig(false), quietLogger()), "dial failed")
}
