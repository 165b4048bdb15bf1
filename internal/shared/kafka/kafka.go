package kafka

import (
	"github.com/segmentio/kafka-go"
)

// NewWriter cria um writer Kafka para o tópico informado
func NewWriter(brokers string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}
