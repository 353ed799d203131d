package orderstatus

import (
	"context"
	"strings"
	"testing"
	"time"

	"cafeconnect/internal/model"
)

func TestScheduleFromOffsets(t *testing.T) {
	steps, err := ScheduleFromOffsets([]time.Duration{0, time.Second, time.Second, 3 * time.Second})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	for i, s := range steps {
		if s.Status != model.Statuses[i] {
			t.Fatalf("step %d status=%s", i, s.Status)
		}
	}
	if _, err := ScheduleFromOffsets([]time.Duration{0, time.Second}); err == nil {
		t.Fatalf("short schedule accepted")
	}
	if _, err := ScheduleFromOffsets([]time.Duration{0, 2 * time.Second, time.Second, 3 * time.Second}); err == nil {
		t.Fatalf("decreasing schedule accepted")
	}
}

func TestSimulatedSource_DefaultSchedule(t *testing.T) {
	s := NewSimulatedSource(nil)
	if len(s.schedule) != 4 || s.schedule[3].After != 15*time.Second {
		t.Fatalf("unexpected default schedule: %+v", s.schedule)
	}
}

func TestSimulatedSource_EmitsInOrder(t *testing.T) {
	steps, _ := ScheduleFromOffsets([]time.Duration{0, time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond})
	ch, err := NewSimulatedSource(steps).Subscribe(context.Background(), testOrder())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	var got []model.Status
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case ev, ok := <-ch:
			if !ok {
				done = true
				break
			}
			if ev.OrderID != "o-1" {
				t.Fatalf("order id=%s", ev.OrderID)
			}
			got = append(got, ev.Status)
		case <-timeout:
			t.Fatalf("timed out after %v", got)
		}
	}
	if len(got) != len(model.Statuses) {
		t.Fatalf("got %v", got)
	}
	for i, st := range got {
		if st != model.Statuses[i] {
			t.Fatalf("got %v", got)
		}
	}
}

func TestSimulatedSource_CancelStopsSchedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := NewSimulatedSource(DefaultSchedule).Subscribe(ctx, testOrder())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if ev := <-ch; ev.Status != model.StatusConfirmed {
		t.Fatalf("first event=%s", ev.Status)
	}
	cancel()
	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("event after cancel: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("channel not closed after cancel")
	}
}

func TestDecodeEvent(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"orderId":"o-9","status":"ready","at":"2024-01-02T03:04:05Z"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.OrderID != "o-9" || ev.Status != model.StatusReady {
		t.Fatalf("got %+v", ev)
	}
	if _, err := decodeEvent([]byte(`{"status":"ready"}`)); err == nil {
		t.Fatalf("event without order id accepted")
	}
	if _, err := decodeEvent([]byte(`{"orderId":"o-9","status":"burnt"}`)); err == nil {
		t.Fatalf("unknown status accepted")
	}
}

func TestSubject(t *testing.T) {
	if got := Subject("", "o-1"); got != "cafe.orders.status.o-1" {
		t.Fatalf("got %s", got)
	}
	if got := Subject("kitchen", "o-1"); got != "kitchen.o-1" {
		t.Fatalf("got %s", got)
	}
}

func TestEventFor(t *testing.T) {
	ev, err := eventFor([]byte(`{"orderId":"o-1","status":"preparing"}`), "o-1")
	if err != nil || ev.Status != model.StatusPreparing {
		t.Fatalf("ev=%+v err=%v", ev, err)
	}
	_, err = eventFor([]byte(`{"orderId":"o-2","status":"preparing"}`), "o-1")
	if err == nil || !strings.Contains(err.Error(), "o-2") {
		t.Fatalf("mismatch should name the other order, got %v", err)
	}
	if _, err := eventFor([]byte(`nope`), "o-1"); err == nil {
		t.Fatalf("garbage accepted")
	}
}
