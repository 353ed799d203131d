package orderstatus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"cafeconnect/internal/model"
)

// fakeKafkaReader replays msgs and then blocks until ctx is done.
type fakeKafkaReader struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
		return m, nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeKafkaReader) Close() error {
	f.closed = true
	return nil
}

// fakeKafkaWriter implements kafkaMessageWriter for tests
type fakeKafkaWriter struct {
	msgs []kafka.Message
	fail bool
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.fail {
		return errors.New("fail")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func eventMsg(t *testing.T, key, orderID string, st model.Status) kafka.Message {
	t.Helper()
	b, err := json.Marshal(Event{OrderID: orderID, Status: st})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{Key: []byte(key), Value: b}
}

func TestKafkaSource_FiltersByOrder(t *testing.T) {
	fr := &fakeKafkaReader{msgs: []kafka.Message{
		eventMsg(t, "o-2", "o-2", model.StatusPreparing),
		eventMsg(t, "o-1", "o-1", model.StatusPreparing),
		{Key: []byte("o-1"), Value: []byte("not json")},
		eventMsg(t, "", "o-3", model.StatusReady),
		eventMsg(t, "", "o-1", model.StatusReady),
	}}
	src := NewKafkaSourceWith(func() kafkaMessageReader { return fr }, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := src.Subscribe(ctx, testOrder())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	var got []model.Status
	for len(got) < 2 {
		select {
		case ev := <-ch:
			if ev.OrderID != "o-1" {
				t.Fatalf("event for %s leaked through", ev.OrderID)
			}
			got = append(got, ev.Status)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %v", got)
		}
	}
	if got[0] != model.StatusPreparing || got[1] != model.StatusReady {
		t.Fatalf("got %v", got)
	}

	cancel()
	for range ch {
	}
	if !fr.closed {
		t.Fatalf("reader not closed")
	}
}

func TestKafkaPublisher_Publish_Success(t *testing.T) {
	fk := &fakeKafkaWriter{}
	p := NewKafkaPublisherWith(fk)
	ev := Event{OrderID: "o-1", Status: model.StatusReady, At: time.Unix(10, 0).UTC()}
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fk.msgs) != 1 {
		t.Fatalf("want 1 msg, got %d", len(fk.msgs))
	}
	if string(fk.msgs[0].Key) != "o-1" {
		t.Fatalf("key=%q", fk.msgs[0].Key)
	}
	got, err := decodeEvent(fk.msgs[0].Value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.OrderID != ev.OrderID || got.Status != ev.Status || !got.At.Equal(ev.At) {
		t.Fatalf("got %+v want %+v", got, ev)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestKafkaPublisher_Publish_Fail(t *testing.T) {
	p := NewKafkaPublisherWith(&fakeKafkaWriter{fail: true})
	if err := p.Publish(context.Background(), Event{OrderID: "o-1", Status: model.StatusReady}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSplitBrokers(t *testing.T) {
	got := splitBrokers(" a:9092, ,b:9092,")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("got %v", got)
	}
}
