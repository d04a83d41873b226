package app

import (
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

func TestInitKafkaProducer_NoBrokers(t *testing.T) {
	producer, err := initKafkaProducer(nil, "storefront", quietLogger())

	require.NoError(t, err)
	assert.Nil(t, producer)
}

func TestInitKafkaProducer_UnreachableBrokers(t *testing.T) {
	producer, err := initKafkaProducer([]string{"127.0.0.1:1"}, "storefront", quietLogger())

	require.Error(t, err)
	assert.Nil(t, producer)
}

func TestCloseKafka(t *testing.T) {
	closeKafka(nil, quietLogger())

	mock := mocks.NewSyncProducer(t, nil)
	closeKafka(kafka.NewProducerFromSync(mock, quietLogger()), quietLogger())
}
