package checkout

import (
	"log"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cafeconnect/internal/cart"
	"cafeconnect/internal/history"
	"cafeconnect/internal/metrics"
	"cafeconnect/internal/model"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidTip           = errors.New("invalid tip")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	// ErrCartClearFailed means the order was built but the consumed cart is
	// still on disk and may come back on the next load.
	ErrCartClearFailed = errors.New("cart record not cleared")
	// ErrHistoryFailed means the order was built but not appended to the
	// order history.
	ErrHistoryFailed = errors.New("order not saved to history")
)

// IsWarning reports whether err came with a valid order.
func IsWarning(err error) bool {
	return errors.Is(err, ErrCartClearFailed) || errors.Is(err, ErrHistoryFailed)
}

// Builder turns a cart into an Order at payment time.
type Builder struct {
	history history.Log
	now     func() time.Time
	newID   func() string
	logger  *log.Logger
	metrics *metrics.Registry
}

type Option func(*Builder)

// WithHistory appends every built order to h.
func WithHistory(h history.Log) Option { return func(b *Builder) { b.history = h } }

func WithClock(now func() time.Time) Option { return func(b *Builder) { b.now = now } }

func WithIDs(newID func() string) Option { return func(b *Builder) { b.newID = newID } }

func WithLogger(lg *log.Logger) Option { return func(b *Builder) { b.logger = lg } }

func WithMetrics(m *metrics.Registry) Option { return func(b *Builder) { b.metrics = m } }

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
		logger: log.Default(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build snapshots the ledger into an Order, then clears the ledger and its
// record and appends the order to history. The returned order is valid
// whenever err is nil or IsWarning(err) is true. A consumed ledger is empty,
// so building twice fails with ErrEmptyCart.
func (b *Builder) Build(ledger *cart.Ledger, tableNumber string, tip TipPolicy, method model.PaymentMethod) (model.Order, error) {
	if !method.Valid() {
		return model.Order{}, errors.Wrapf(ErrInvalidPaymentMethod, "%q", method)
	}
	if tip == nil {
		return model.Order{}, errors.Wrap(ErrInvalidTip, "no tip policy")
	}
	lines := ledger.Lines()
	if len(lines) == 0 {
		return model.Order{}, ErrEmptyCart
	}

	subtotal := lines.Subtotal()
	tax := model.Tax(subtotal, ledger.TaxRate())
	tipAmount, err := tip.Tip(subtotal)
	if err != nil {
		return model.Order{}, err
	}
	order := model.Order{
		ID:            b.newID(),
		TableNumber:   tableNumber,
		Lines:         lines,
		Subtotal:      subtotal,
		Tax:           tax,
		Tip:           tipAmount,
		Total:         subtotal.Add(tax).Add(tipAmount),
		PaymentMethod: method,
		CreatedAt:     b.now(),
		Status:        model.StatusConfirmed,
	}
	total, _ := order.Total.Float64()
	b.metrics.OrderBuilt(string(method), total)

	var warn error
	if err := ledger.Clear(); err != nil {
		b.logger.Printf("checkout: order %s built but cart not cleared: %v", order.ID, err)
		warn = errors.Mark(errors.Wrap(err, "clear cart"), ErrCartClearFailed)
	}
	if b.history != nil {
		if err := b.history.Append(order); err != nil {
			b.logger.Printf("checkout: order %s not saved to history: %v", order.ID, err)
			herr := errors.Mark(errors.Wrap(err, "append history"), ErrHistoryFailed)
			if warn == nil {
				warn = herr
			} else {
				warn = errors.CombineErrors(warn, herr)
			}
		}
	}
	return order, warn
}

// TipPolicy computes the tip from the subtotal.
type TipPolicy interface {
	Tip(subtotal decimal.Decimal) (decimal.Decimal, error)
}

// PercentTip is a fraction of the subtotal, e.g. 0.15, rounded to cents.
type PercentTip decimal.Decimal

func (p PercentTip) Tip(subtotal decimal.Decimal) (decimal.Decimal, error) {
	f := decimal.Decimal(p)
	if f.IsNegative() {
		return decimal.Zero, errors.Wrapf(ErrInvalidTip, "negative fraction %s", f)
	}
	return model.RoundCents(subtotal.Mul(f)), nil
}

func (p PercentTip) String() string { return decimal.Decimal(p).Shift(2).String() + "%" }

// CustomTip is a literal amount. It may exceed the subtotal.
type CustomTip decimal.Decimal

func (c CustomTip) Tip(decimal.Decimal) (decimal.Decimal, error) {
	a := decimal.Decimal(c)
	if a.IsNegative() {
		return decimal.Zero, errors.Wrapf(ErrInvalidTip, "negative amount %s", a)
	}
	return a, nil
}

func (c CustomTip) String() string { return model.FormatMoney(decimal.Decimal(c)) }

// TipOptions are the preset fractions offered at payment.
var TipOptions = []PercentTip{
	PercentTip(decimal.RequireFromString("0.10")),
	PercentTip(decimal.RequireFromString("0.15")),
	PercentTip(decimal.RequireFromString("0.20")),
}
