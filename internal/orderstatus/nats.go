package orderstatus

import (
	"context"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/nats-io/nats.go"

	"cafeconnect/internal/model"
)

// DefaultSubjectPrefix is prepended to the order id to form the subject.
const DefaultSubjectPrefix = "cafe.orders.status"

// Subject returns the NATS subject carrying events for orderID.
func Subject(prefix, orderID string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + "." + orderID
}

// eventFor decodes data and checks it belongs to orderID.
func eventFor(data []byte, orderID string) (Event, error) {
	ev, err := decodeEvent(data)
	if err != nil {
		return Event{}, err
	}
	if ev.OrderID != orderID {
		return Event{}, errors.Newf("event for order %s, want %s", ev.OrderID, orderID)
	}
	return ev, nil
}

// NATSSource subscribes to <prefix>.<orderID> on an open connection.
type NATSSource struct {
	conn   *nats.Conn
	prefix string
	logger *log.Logger
}

func NewNATSSource(conn *nats.Conn, prefix string, logger *log.Logger) *NATSSource {
	return &NATSSource{conn: conn, prefix: prefix, logger: logger}
}

func (n *NATSSource) Subscribe(ctx context.Context, order model.Order) (<-chan Event, error) {
	msgs := make(chan *nats.Msg, 16)
	sub, err := n.conn.ChanSubscribe(Subject(n.prefix, order.ID), msgs)
	if err != nil {
		return nil, errors.Wrap(err, "nats subscribe")
	}
	out := make(chan Event)
	go func() {
		defer close(out)
		defer func() { _ = sub.Unsubscribe() }()
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-msgs:
				ev, err := eventFor(m.Data, order.ID)
				if err != nil {
					if n.logger != nil {
						n.logger.Printf("orderstatus: skipping nats message on %s: %v", m.Subject, err)
					}
					continue
				}
				select {
				case <-ctx.Done():
					return
				case out <- ev:
				}
			}
		}
	}()
	return out, nil
}

// NATSPublisher publishes status events on <prefix>.<orderID>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSPublisher(conn *nats.Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

func (p *NATSPublisher) Publish(_ context.Context, ev Event) error {
	b, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(Subject(p.prefix, ev.OrderID), b); err != nil {
		return errors.Wrapf(err, "publish %s %s", ev.OrderID, ev.Status)
	}
	return errors.Wrap(p.conn.Flush(), "nats flush")
}
