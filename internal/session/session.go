// Package session ties one table's ordering flow together: it owns the
// cart for the table, checks it out and follows the resulting orders.
package session

import (
	"context"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"cafeconnect/internal/cart"
	"cafeconnect/internal/catalog"
	"cafeconnect/internal/checkout"
	"cafeconnect/internal/metrics"
	"cafeconnect/internal/model"
	"cafeconnect/internal/orderstatus"
	"cafeconnect/internal/state"
	"cafeconnect/internal/table"
)

var ErrSessionEnded = errors.New("session ended")

// Deps are the collaborators a session is built from. Store and Catalog are
// required; the rest fall back to defaults. A nil TaxRate means the
// default rate; a zero rate is honoured.
type Deps struct {
	Store   state.Store
	Catalog *catalog.Catalog
	Builder *checkout.Builder
	Source  orderstatus.Source
	TaxRate *decimal.Decimal
	Logger  *log.Logger
	Metrics *metrics.Registry
}

type Session struct {
	mu       sync.Mutex
	table    string
	ledger   *cart.Ledger
	catalog  *catalog.Catalog
	builder  *checkout.Builder
	source   orderstatus.Source
	logger   *log.Logger
	metrics  *metrics.Registry
	trackers []*orderstatus.Tracker
	ended    bool
}

// New opens a session for tableNumber and restores the saved cart. When the
// saved cart cannot be read the session is still returned, with an empty
// cart and an error matching cart.ErrPersistenceFailed.
func New(tableNumber string, d Deps) (*Session, error) {
	tn, err := table.FromInput(tableNumber)
	if err != nil {
		return nil, err
	}
	if d.Store == nil || d.Catalog == nil {
		return nil, errors.New("session needs a store and a catalog")
	}
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.Builder == nil {
		d.Builder = checkout.NewBuilder(checkout.WithLogger(d.Logger), checkout.WithMetrics(d.Metrics))
	}
	if d.Source == nil {
		d.Source = orderstatus.NewSimulatedSource(nil)
	}
	ledgerOpts := []cart.Option{cart.WithLogger(d.Logger), cart.WithMetrics(d.Metrics)}
	if d.TaxRate != nil {
		ledgerOpts = append(ledgerOpts, cart.WithTaxRate(*d.TaxRate))
	}
	s := &Session{
		table:   tn,
		ledger:  cart.NewLedger(d.Store, ledgerOpts...),
		catalog: d.Catalog,
		builder: d.Builder,
		source:  d.Source,
		logger:  d.Logger,
		metrics: d.Metrics,
	}
	if err := s.ledger.Load(); err != nil {
		return s, err
	}
	return s, nil
}

func (s *Session) Table() string { return s.table }

func (s *Session) Cart() *cart.Ledger { return s.ledger }

func (s *Session) Catalog() *catalog.Catalog { return s.catalog }

// Add puts qty of the catalog item itemID in the cart at its current price.
func (s *Session) Add(itemID string, qty int) error {
	if err := s.alive(); err != nil {
		return err
	}
	item, err := s.catalog.Lookup(itemID)
	if err != nil {
		return err
	}
	return s.ledger.AddItem(item, qty)
}

// Checkout builds the order for the current cart. Warnings are returned
// together with a valid order; see checkout.IsWarning.
func (s *Session) Checkout(tip checkout.TipPolicy, method model.PaymentMethod) (model.Order, error) {
	if err := s.alive(); err != nil {
		return model.Order{}, err
	}
	return s.builder.Build(s.ledger, s.table, tip, method)
}

// Track follows order with the session's status source. The tracker is
// stopped when the session ends.
func (s *Session) Track(ctx context.Context, order model.Order, opts ...orderstatus.Option) (*orderstatus.Tracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, ErrSessionEnded
	}
	base := []orderstatus.Option{orderstatus.WithLogger(s.logger), orderstatus.WithMetrics(s.metrics)}
	t, err := orderstatus.Track(ctx, order, s.source, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	s.trackers = append(s.trackers, t)
	return t, nil
}

// End stops every tracker the session started. It is safe to call twice.
func (s *Session) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	trackers := s.trackers
	s.trackers = nil
	s.mu.Unlock()

	for _, t := range trackers {
		t.Stop()
	}
}

func (s *Session) alive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	return nil
}
