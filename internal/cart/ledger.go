package cart

import (
	"encoding/json"
	"log"
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"cafeconnect/internal/metrics"
	"cafeconnect/internal/model"
	"cafeconnect/internal/state"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrItemNotFound    = errors.New("item not in cart")
	// ErrPersistenceFailed marks a mutation that was applied in memory but
	// could not be written to local storage.
	ErrPersistenceFailed = errors.New("cart not persisted")
)

// Ledger owns the cart of the active table session. Every mutation is
// written through to the store under state.KeyCart before returning.
type Ledger struct {
	mu      sync.Mutex
	store   state.Store
	lines   model.Cart
	taxRate decimal.Decimal
	logger  *log.Logger
	metrics *metrics.Registry
}

type Option func(*Ledger)

// WithTaxRate overrides model.DefaultTaxRate.
func WithTaxRate(rate decimal.Decimal) Option { return func(l *Ledger) { l.taxRate = rate } }

func WithLogger(lg *log.Logger) Option { return func(l *Ledger) { l.logger = lg } }

func WithMetrics(m *metrics.Registry) Option { return func(l *Ledger) { l.metrics = m } }

func NewLedger(store state.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		taxRate: model.DefaultTaxRate,
		logger:  log.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load replaces the in-memory cart with the persisted one. A missing record
// is an empty cart. An unreadable record leaves the cart empty.
func (l *Ledger) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = nil
	raw, ok, err := l.store.Get(state.KeyCart)
	if err != nil {
		return l.failed(errors.Wrap(err, "load cart"))
	}
	if !ok || raw == "" {
		return nil
	}
	var lines model.Cart
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return l.failed(errors.Wrap(err, "decode cart"))
	}
	// Drop anything a foreign writer left that breaks the line invariants.
	for _, ln := range lines {
		if ln.Quantity < 1 || ln.ItemID == "" || ln.UnitPrice.IsNegative() || l.lines.Index(ln.ItemID) >= 0 {
			l.logger.Printf("cart: dropping invalid persisted line %+v", ln)
			continue
		}
		l.lines = append(l.lines, ln)
	}
	return nil
}

// AddItem adds qty of item, merging into an existing line for the same id.
// New lines take the catalog price at the time of the call.
func (l *Ledger) AddItem(item model.MenuItem, qty int) error {
	if qty <= 0 {
		return errors.Wrapf(ErrInvalidQuantity, "add %s qty=%d", item.ID, qty)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.lines.Index(item.ID); i >= 0 {
		cur := l.lines[i].Quantity
		if qty > math.MaxInt-cur {
			return errors.Wrapf(ErrInvalidQuantity, "add %s qty=%d overflows %d", item.ID, qty, cur)
		}
		l.lines[i].Quantity = cur + qty
	} else {
		l.lines = append(l.lines, model.CartLine{
			ItemID:    item.ID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  qty,
		})
	}
	l.metrics.CartMutation("add")
	return l.persist()
}

// ChangeQuantity adds delta to the line for itemID and removes the line when
// the result is zero or less.
func (l *Ledger) ChangeQuantity(itemID string, delta int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.lines.Index(itemID)
	if i < 0 {
		return errors.Wrapf(ErrItemNotFound, "change %s", itemID)
	}
	cur := l.lines[i].Quantity
	if delta > 0 && delta > math.MaxInt-cur {
		return errors.Wrapf(ErrInvalidQuantity, "change %s delta=%d overflows %d", itemID, delta, cur)
	}
	q := cur + delta
	if q <= 0 {
		l.removeAt(i)
	} else {
		l.lines[i].Quantity = q
	}
	l.metrics.CartMutation("change")
	return l.persist()
}

// RemoveItem deletes the line for itemID. Absent ids are a no-op.
func (l *Ledger) RemoveItem(itemID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.lines.Index(itemID)
	if i < 0 {
		return nil
	}
	l.removeAt(i)
	l.metrics.CartMutation("remove")
	return l.persist()
}

// Clear empties the cart and removes its record.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = nil
	l.metrics.CartMutation("clear")
	if err := l.store.Remove(state.KeyCart); err != nil {
		return l.failed(errors.Wrap(err, "remove cart record"))
	}
	return nil
}

// Lines returns a copy of the current lines.
func (l *Ledger) Lines() model.Cart {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines.Clone()
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

func (l *Ledger) ItemCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines.ItemCount()
}

func (l *Ledger) TaxRate() decimal.Decimal { return l.taxRate }

// Subtotal is recomputed from the lines on every call.
func (l *Ledger) Subtotal() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines.Subtotal()
}

func (l *Ledger) Tax() decimal.Decimal { return l.TaxAt(l.taxRate) }

func (l *Ledger) TaxAt(rate decimal.Decimal) decimal.Decimal {
	return model.Tax(l.Subtotal(), rate)
}

func (l *Ledger) Total() decimal.Decimal {
	sub := l.Subtotal()
	return sub.Add(model.Tax(sub, l.taxRate))
}

func (l *Ledger) removeAt(i int) {
	l.lines = append(l.lines[:i], l.lines[i+1:]...)
	if len(l.lines) == 0 {
		l.lines = nil
	}
}

// persist writes the whole cart. The in-memory state is kept on failure.
func (l *Ledger) persist() error {
	lines := l.lines
	if lines == nil {
		lines = model.Cart{}
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return l.failed(errors.Wrap(err, "encode cart"))
	}
	if err := l.store.Set(state.KeyCart, string(b)); err != nil {
		return l.failed(errors.Wrap(err, "save cart"))
	}
	return nil
}

func (l *Ledger) failed(err error) error {
	l.metrics.PersistenceFailure(state.KeyCart)
	l.logger.Printf("cart: %v", err)
	return errors.Mark(err, ErrPersistenceFailed)
}
