package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	producer, err := initKafkaProducer(nil, testLogger())
	require.NoError(t, err)
	require.Nil(t, producer)
}

func TestInitKafkaProducer_UnreachableBroker(t *testing.T) {
	producer, err := initKafkaProducer([]string{"127.0.0.1:1"}, testLogger())
	require.Error(t, err)
	require.Nil(t, producer)
}

func TestCloseKafka_NilProducer(t *testing.T) {
	require.NotPanics(t, func() { closeKafka(nil, testLogger()) })
}
