package main

import (
	"context"
	"testing"
	"time"

	"cafeconnect/internal/model"
	"cafeconnect/internal/orderstatus"
)

type recordingPublisher struct {
	events []orderstatus.Event
}

func (r *recordingPublisher) Publish(ctx context.Context, ev orderstatus.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func TestParseSchedule(t *testing.T) {
	steps, err := parseSchedule("0s, 1s,2s,3s", "preparing")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(steps) != 3 || steps[0].Status != model.StatusPreparing || steps[2].After != 3*time.Second {
		t.Fatalf("steps=%+v", steps)
	}
	if _, err := parseSchedule("0s,1s", "confirmed"); err == nil {
		t.Fatalf("short schedule accepted")
	}
	if _, err := parseSchedule("0s,1s,2s,3s", "served"); err == nil {
		t.Fatalf("unknown status accepted")
	}
}

func TestFeed_PublishesInOrder(t *testing.T) {
	steps, err := parseSchedule("0s,1ms,2ms,3ms", "confirmed")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	pub := &recordingPublisher{}
	if err := feed(context.Background(), pub, "o-1", steps); err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(pub.events) != 4 {
		t.Fatalf("events=%d", len(pub.events))
	}
	for i, ev := range pub.events {
		if ev.OrderID != "o-1" || ev.Status != model.Statuses[i] {
			t.Fatalf("event %d = %+v", i, ev)
		}
	}
}

func TestFeed_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub := &recordingPublisher{}
	if err := feed(ctx, pub, "o-1", orderstatus.DefaultSchedule); err == nil {
		t.Fatalf("expected context error")
	}
	if len(pub.events) != 1 {
		t.Fatalf("only the immediate step should publish, got %d", len(pub.events))
	}
}
