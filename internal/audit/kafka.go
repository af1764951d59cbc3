package audit

import (
	"context"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/twmb/franz-go/pkg/kgo"

	"lifeshield/internal/platform/config"
)

// KafkaPublisher produces transition events to a Kafka topic, keyed by
// session ID so one session's trail stays ordered within a partition.
// Delivery failures are logged, not surfaced; the trail is operational,
// not transactional.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{client: client, topic: cfg.Topic, logger: logger}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("audit event marshal failed", slog.String("error", err.Error()))
		return
	}

	record := &kgo.Record{
		Key:   []byte(event.SessionID.String()),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("audit event produce failed",
				slog.String("session_id", event.SessionID.String()),
				slog.String("error", err.Error()))
		}
	})
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
