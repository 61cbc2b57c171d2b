package kafka

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger.WithField("component", "kafka-test")
}

func TestProducer_SendCarriesKeyAndHeaders(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "order-1" {
			return errors.New("unexpected key " + string(key))
		}
		if msg.Topic != TopicOrderEvents {
			return errors.New("unexpected topic " + msg.Topic)
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Key) != HeaderEventType {
			return errors.New("event type header is missing")
		}
		return nil
	})

	producer := NewProducerFrom(mockProducer, quietLogger())
	err := producer.Send(TopicOrderEvents, "order-1", []byte(`{}`), map[string]string{HeaderEventType: "order.placed"})
	require.NoError(t, err)
	require.NoError(t, producer.Close())
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := NewProducerFrom(mockProducer, quietLogger())
	err := producer.PublishEvent(TopicOrderEvents, "order-1", map[string]string{"status": "placed"})
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, producer.Close())
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFrom(mockProducer, quietLogger())

	err := producer.PublishEvent(TopicOrderEvents, "order-1", make(chan int))
	require.ErrorContains(t, err, "marshal")
	require.NoError(t, producer.Close())
}

func TestNewProducerConfig(t *testing.T) {
	config := NewProducerConfig()
	require.NoError(t, config.Validate())
	require.True(t, config.Producer.Idempotent)
	require.Equal(t, sarama.WaitForAll, config.Producer.RequiredAcks)
	require.Equal(t, 1, config.Net.MaxOpenRequests)
}

func TestDecodeEnvelope(t *testing.T) {
	envelope, err := DecodeEnvelope([]byte(`{"id":"e-1","aggregate_id":"order-1","event_type":"order.placed","payload":{"order_id":"order-1"}}`))
	require.NoError(t, err)
	require.Equal(t, "order-1", envelope.Key())
	require.JSONEq(t, `{"order_id":"order-1"}`, string(envelope.Payload))

	_, err = DecodeEnvelope([]byte(`{"id":"e-1","payload":{}}`))
	require.ErrorContains(t, err, "event_type")

	_, err = DecodeEnvelope([]byte(`{"id":"e-1","event_type":"order.placed"}`))
	require.ErrorContains(t, err, "payload")

	_, err = DecodeEnvelope([]byte(`nope`))
	require.Error(t, err)

	require.Equal(t, "e-2", Envelope{ID: "e-2"}.Key())
}
