package orderstatus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"

	"cafeconnect/internal/model"
)

// Event announces that an order reached a status.
type Event struct {
	OrderID string       `json:"orderId"`
	Status  model.Status `json:"status"`
	At      time.Time    `json:"at"`
}

// Source delivers status events for one order. The channel is closed when
// the source has nothing more to say or ctx is done.
type Source interface {
	Subscribe(ctx context.Context, order model.Order) (<-chan Event, error)
}

// Publisher is the pushing side of a Source, used by the kitchen simulator.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

func encodeEvent(ev Event) ([]byte, error) {
	b, err := json.Marshal(&ev)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event")
	}
	return b, nil
}

func decodeEvent(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, errors.Wrap(err, "unmarshal event")
	}
	if ev.OrderID == "" {
		return Event{}, errors.New("event without order id")
	}
	return ev, nil
}

// Step is one scheduled status change, After the order was created.
type Step struct {
	Status model.Status
	After  time.Duration
}

// DefaultSchedule mirrors a short kitchen turnaround.
var DefaultSchedule = []Step{
	{Status: model.StatusConfirmed, After: 0},
	{Status: model.StatusPreparing, After: 5 * time.Second},
	{Status: model.StatusReady, After: 10 * time.Second},
	{Status: model.StatusCompleted, After: 15 * time.Second},
}

// SimulatedSource emits a fixed schedule measured from subscription time.
type SimulatedSource struct {
	schedule []Step
	now      func() time.Time
}

func NewSimulatedSource(schedule []Step) *SimulatedSource {
	if len(schedule) == 0 {
		schedule = DefaultSchedule
	}
	return &SimulatedSource{schedule: schedule, now: time.Now}
}

// ScheduleFromOffsets builds a schedule for the statuses in order.
func ScheduleFromOffsets(offsets []time.Duration) ([]Step, error) {
	if len(offsets) != len(model.Statuses) {
		return nil, errors.Newf("want %d offsets, got %d", len(model.Statuses), len(offsets))
	}
	steps := make([]Step, len(offsets))
	for i, d := range offsets {
		if i > 0 && d < offsets[i-1] {
			return nil, errors.Newf("offset %d (%s) is before offset %d (%s)", i, d, i-1, offsets[i-1])
		}
		steps[i] = Step{Status: model.Statuses[i], After: d}
	}
	return steps, nil
}

func (s *SimulatedSource) Subscribe(ctx context.Context, order model.Order) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		start := s.now()
		for _, step := range s.schedule {
			wait := step.After - s.now().Sub(start)
			if wait > 0 {
				t := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
			}
			ev := Event{OrderID: order.ID, Status: step.Status, At: s.now().UTC()}
			select {
			case <-ctx.Done():
				return
			case out <- ev:
			}
		}
	}()
	return out, nil
}
