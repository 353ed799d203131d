package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/nats-io/nats.go"

	"cafeconnect/internal/model"
	"cafeconnect/internal/orderstatus"
)

// statusfeed plays the kitchen: it publishes the status timeline of one
// order so cafe -status-source kafka|nats can follow it.
func main() {
	var (
		orderID   string
		sink      string
		bootstrap string
		topic     string
		natsURL   string
		prefix    string
		schedule  string
		from      string
	)
	flag.StringVar(&orderID, "order", "", "order id to advance")
	flag.StringVar(&sink, "sink", "kafka", "kafka|nats")
	flag.StringVar(&bootstrap, "bootstrap", "localhost:9092", "kafka bootstrap servers")
	flag.StringVar(&topic, "topic", "cafe.orders.status", "kafka topic")
	flag.StringVar(&natsURL, "nats-url", nats.DefaultURL, "nats server url")
	flag.StringVar(&prefix, "prefix", orderstatus.DefaultSubjectPrefix, "nats subject prefix")
	flag.StringVar(&schedule, "schedule", "0s,5s,10s,15s", "offsets for confirmed,preparing,ready,completed")
	flag.StringVar(&from, "from", "confirmed", "first status to publish")
	flag.Parse()

	if orderID == "" {
		log.Fatalf("statusfeed: -order is required")
	}
	steps, err := parseSchedule(schedule, from)
	if err != nil {
		log.Fatalf("statusfeed: %v", err)
	}
	pub, closePub, err := newPublisher(sink, bootstrap, topic, natsURL, prefix)
	if err != nil {
		log.Fatalf("statusfeed: %v", err)
	}
	defer closePub()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := feed(ctx, pub, orderID, steps); err != nil {
		log.Fatalf("statusfeed failed: %v", err)
	}
}

func newPublisher(sink, bootstrap, topic, natsURL, prefix string) (orderstatus.Publisher, func(), error) {
	switch sink {
	case "kafka":
		p := orderstatus.NewKafkaPublisher(bootstrap, topic)
		return p, func() { _ = p.Close() }, nil
	case "nats":
		nc, err := nats.Connect(natsURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "nats connect")
		}
		return orderstatus.NewNATSPublisher(nc, prefix), nc.Close, nil
	}
	return nil, nil, errors.Newf("unknown sink %q", sink)
}

// parseSchedule turns "0s,5s,10s,15s" into steps, dropping those before from.
func parseSchedule(s string, from string) ([]orderstatus.Step, error) {
	var offsets []time.Duration
	for _, part := range strings.Split(s, ",") {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrap(err, "schedule")
		}
		offsets = append(offsets, d)
	}
	steps, err := orderstatus.ScheduleFromOffsets(offsets)
	if err != nil {
		return nil, err
	}
	start, err := model.ParseStatus(from)
	if err != nil {
		return nil, err
	}
	return steps[start.Index():], nil
}

func feed(ctx context.Context, pub orderstatus.Publisher, orderID string, steps []orderstatus.Step) error {
	begin := time.Now()
	for _, s := range steps {
		if wait := s.After - time.Since(begin); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		ev := orderstatus.Event{OrderID: orderID, Status: s.Status, At: time.Now().UTC()}
		if err := pub.Publish(ctx, ev); err != nil {
			return err
		}
		log.Printf("published order=%s status=%s", orderID, s.Status)
	}
	return nil
}
