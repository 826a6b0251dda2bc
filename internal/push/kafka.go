package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSender produces push messages to the delivery topic. The actual
// device delivery worker consumes that topic; from here on the engine has
// no further responsibility for the message.
type KafkaSender struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaSender connects to the brokers and ensures the push topic exists.
func NewKafkaSender(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*KafkaSender, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 6, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure push topic: %w", err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure push topic %s: %w", topic, resp.Err)
	}
	logger.InfoContext(ctx, "push topic ready", "topic", topic)

	return &KafkaSender{client: client, topic: topic, logger: logger}, nil
}

// Send produces one batch of messages synchronously. Callers cap batches at
// the provider ceiling.
func (s *KafkaSender) Send(ctx context.Context, msgs []Message) error {
	records := make([]*kgo.Record, 0, len(msgs))
	for _, msg := range msgs {
		value, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal push message: %w", err)
		}
		records = append(records, &kgo.Record{
			Topic: s.topic,
			Key:   []byte(msg.RecipientToken),
			Value: value,
		})
	}
	if err := s.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce push batch: %w", err)
	}
	return nil
}

// Close flushes and closes the producer.
func (s *KafkaSender) Close() {
	s.client.Close()
}
