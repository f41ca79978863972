package repository

import (
	"context"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
	pkgkafka "github.com/vpnsgde/gold-quant/pkg/kafka"
)

// KafkaPublisher emits forecast tables as JSON keyed by symbol.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPublisher(p *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

func (k *KafkaPublisher) Publish(ctx context.Context, t *models.ForecastTable) error {
	return k.producer.Publish(ctx, k.topic, []byte(t.Symbol), t)
}

func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}
