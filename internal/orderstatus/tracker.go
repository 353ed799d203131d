package orderstatus

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"cafeconnect/internal/metrics"
	"cafeconnect/internal/model"
)

var (
	ErrInvalidTransition = errors.New("status transition out of sequence")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
	ErrNotCompleted      = errors.New("order not completed")
	ErrAlreadyRated      = errors.New("order already rated")
)

// Transition is reported for every applied status change.
type Transition struct {
	OrderID          string
	From             model.Status
	To               model.Status
	At               time.Time
	EstimatedMinutes int
}

// Rating is the guest's feedback once the order is completed.
type Rating struct {
	OrderID string
	Stars   int
	At      time.Time
}

type Option func(*Tracker)

// OnTransition is called on the tracker goroutine after each applied change.
func OnTransition(fn func(Transition)) Option { return func(t *Tracker) { t.onTransition = fn } }

// OnRating receives the one rating a completed order can get.
func OnRating(fn func(Rating)) Option { return func(t *Tracker) { t.onRating = fn } }

func WithLogger(lg *log.Logger) Option { return func(t *Tracker) { t.logger = lg } }

func WithMetrics(m *metrics.Registry) Option { return func(t *Tracker) { t.metrics = m } }

// Tracker runs the forward-only status machine for one order.
type Tracker struct {
	// step is held while an event is applied and its callback runs, so Stop
	// can wait for an in-flight transition.
	step     sync.Mutex
	mu       sync.Mutex
	order    model.Order
	rated    bool
	disposed bool

	cancel context.CancelFunc
	done   chan struct{}

	onTransition func(Transition)
	onRating     func(Rating)
	logger       *log.Logger
	metrics      *metrics.Registry
	now          func() time.Time
}

// Track subscribes to src and applies its events to order until the order
// completes, the source closes, ctx is done or Stop is called.
func Track(ctx context.Context, order model.Order, src Source, opts ...Option) (*Tracker, error) {
	t := &Tracker{
		order:  order,
		done:   make(chan struct{}),
		logger: log.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	if !order.Status.Valid() {
		return nil, errors.Newf("order %s has invalid status %d", order.ID, int(order.Status))
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	if order.Status.Terminal() {
		close(t.done)
		return t, nil
	}
	events, err := src.Subscribe(ctx, order)
	if err != nil {
		cancel()
		return nil, errors.Wrapf(err, "subscribe order %s", order.ID)
	}
	go t.run(ctx, events)
	return t, nil
}

func (t *Tracker) run(ctx context.Context, events <-chan Event) {
	defer close(t.done)
	defer t.cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			tr, applied, err := t.advance(ev)
			if err != nil {
				t.metrics.TransitionRejected()
				t.logger.Printf("orderstatus: order %s: %v", t.order.ID, err)
				continue
			}
			if !applied {
				continue
			}
			if tr.To.Terminal() {
				return
			}
		}
	}
}

// advance applies ev and reports the transition, both while holding step.
func (t *Tracker) advance(ev Event) (Transition, bool, error) {
	t.step.Lock()
	defer t.step.Unlock()
	tr, applied, err := t.apply(ev)
	if err != nil || !applied {
		return tr, applied, err
	}
	t.metrics.StatusTransition(tr.To.String())
	if t.onTransition != nil {
		t.onTransition(tr)
	}
	return tr, true, nil
}

// apply moves the order one step forward. Repeats of the current status are
// ignored; anything else out of sequence is rejected.
func (t *Tracker) apply(ev Event) (Transition, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return Transition{}, false, nil
	}
	if ev.OrderID != t.order.ID {
		return Transition{}, false, errors.Newf("event for order %s", ev.OrderID)
	}
	cur := t.order.Status
	if ev.Status == cur {
		return Transition{}, false, nil
	}
	next, ok := cur.Next()
	if !ok || ev.Status != next {
		return Transition{}, false, errors.Wrapf(ErrInvalidTransition, "%s -> %s", cur, ev.Status)
	}
	t.order.Status = next
	at := ev.At
	if at.IsZero() {
		at = t.now().UTC()
	}
	return Transition{
		OrderID:          t.order.ID,
		From:             cur,
		To:               next,
		At:               at,
		EstimatedMinutes: model.EstimatedMinutes(next),
	}, true, nil
}

// Stop cancels pending transitions. It waits for a transition callback that
// is already running; once it returns no transition is applied or reported.
// OnTransition callbacks must not call Stop.
func (t *Tracker) Stop() {
	t.step.Lock()
	t.mu.Lock()
	t.disposed = true
	t.mu.Unlock()
	t.step.Unlock()
	t.cancel()
}

// Done is closed once the tracker stops consuming events.
func (t *Tracker) Done() <-chan struct{} { return t.done }

// Order returns a copy of the tracked order with its current status.
func (t *Tracker) Order() model.Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	o := t.order
	o.Lines = o.Lines.Clone()
	return o
}

func (t *Tracker) Status() model.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Status
}

func (t *Tracker) EstimatedMinutes() int { return model.EstimatedMinutes(t.Status()) }

// SubmitRating records stars (1-5) once the order is completed. It does not
// touch the order.
func (t *Tracker) SubmitRating(stars int) (Rating, error) {
	if stars < 1 || stars > 5 {
		return Rating{}, errors.Wrapf(ErrInvalidRating, "got %d", stars)
	}
	t.mu.Lock()
	if !t.order.Status.Terminal() {
		t.mu.Unlock()
		return Rating{}, errors.Wrapf(ErrNotCompleted, "order %s is %s", t.order.ID, t.order.Status)
	}
	if t.rated {
		t.mu.Unlock()
		return Rating{}, errors.Wrapf(ErrAlreadyRated, "order %s", t.order.ID)
	}
	t.rated = true
	r := Rating{OrderID: t.order.ID, Stars: stars, At: t.now().UTC()}
	t.mu.Unlock()

	t.metrics.Rating(strconv.Itoa(stars))
	if t.onRating != nil {
		t.onRating(r)
	}
	return r, nil
}
