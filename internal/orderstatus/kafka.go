package orderstatus

import (
	"context"
	"log"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"

	"cafeconnect/internal/model"
)

// kafkaMessageReader abstracts kafka.Reader for testability.
type kafkaMessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSource reads status events pushed by the kitchen to a topic keyed by
// order id. Each subscription opens its own reader from the start of the
// topic, so events published before Subscribe are still seen.
type KafkaSource struct {
	newReader func() kafkaMessageReader
	logger    *log.Logger
}

func splitBrokers(bootstrap string) []string {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			brokers = append(brokers, a)
		}
	}
	return brokers
}

// NewKafkaSource creates a source reading topic.
// bootstrap can be a comma-separated list of host:port.
func NewKafkaSource(bootstrap string, topic string, logger *log.Logger) *KafkaSource {
	brokers := splitBrokers(bootstrap)
	return &KafkaSource{
		newReader: func() kafkaMessageReader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:   brokers,
				Topic:     topic,
				Partition: 0,
				MinBytes:  1,
				MaxBytes:  10e6,
			})
		},
		logger: logger,
	}
}

// NewKafkaSourceWith is only for tests to inject a fake reader.
func NewKafkaSourceWith(newReader func() kafkaMessageReader, logger *log.Logger) *KafkaSource {
	return &KafkaSource{newReader: newReader, logger: logger}
}

func (k *KafkaSource) Subscribe(ctx context.Context, order model.Order) (<-chan Event, error) {
	r := k.newReader()
	out := make(chan Event)
	go func() {
		defer close(out)
		defer r.Close()
		for {
			m, err := r.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() == nil && k.logger != nil {
					k.logger.Printf("orderstatus: kafka read: %v", err)
				}
				return
			}
			if len(m.Key) > 0 && string(m.Key) != order.ID {
				continue
			}
			ev, err := decodeEvent(m.Value)
			if err != nil {
				if k.logger != nil {
					k.logger.Printf("orderstatus: skipping kafka message at offset %d: %v", m.Offset, err)
				}
				continue
			}
			if ev.OrderID != order.ID {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- ev:
			}
		}
	}()
	return out, nil
}

// KafkaPublisher publishes status events keyed by order id.
type KafkaPublisher struct {
	writer kafkaMessageWriter
}

// NewKafkaPublisher creates a Kafka writer for topic.
func NewKafkaPublisher(bootstrap string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(splitBrokers(bootstrap)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}}
}

// NewKafkaPublisherWith is only for tests to inject a fake writer.
func NewKafkaPublisherWith(w kafkaMessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (k *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	b, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.OrderID), Value: b}); err != nil {
		return errors.Wrapf(err, "publish %s %s", ev.OrderID, ev.Status)
	}
	return nil
}

// Close releases the underlying writer when it owns one.
func (k *KafkaPublisher) Close() error {
	if c, ok := k.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
