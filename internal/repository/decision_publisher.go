package repository

import (
	"context"
	"fmt"

	"MeanRev/internal/domain/models"
	domrepo "MeanRev/internal/domain/repository"
	pkgkafka "MeanRev/pkg/kafka"
)

// KafkaDecisionPublisher fans per-tick topic messages out to Kafka, one
// Kafka topic per decision topic, keyed by pair so consumers see each
// instrument in order.
type KafkaDecisionPublisher struct {
	producer    *pkgkafka.Producer
	topicPrefix string
}

// NewKafkaDecisionPublisher creates the Kafka publisher. topicPrefix
// namespaces the decision topics, e.g. "meanrev.decisions".
func NewKafkaDecisionPublisher(producer *pkgkafka.Producer, topicPrefix string) *KafkaDecisionPublisher {
	if topicPrefix == "" {
		topicPrefix = "meanrev.decisions"
	}
	return &KafkaDecisionPublisher{producer: producer, topicPrefix: topicPrefix}
}

func (p *KafkaDecisionPublisher) Publish(ctx context.Context, pair string, msg models.TopicMessage) error {
	topic := fmt.Sprintf("%s.%s", p.topicPrefix, msg.Type)
	return p.producer.Publish(ctx, topic, []byte(pair), msg)
}

func (p *KafkaDecisionPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.Publisher = (*KafkaDecisionPublisher)(nil)
