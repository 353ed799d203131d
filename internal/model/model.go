package model

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// Category groups menu items for browsing.
type Category string

const (
	CategoryCoffee Category = "Coffee"
	CategoryFood   Category = "Food"
	CategoryDrinks Category = "Drinks"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryCoffee, CategoryFood, CategoryDrinks}

func (c Category) Valid() bool {
	switch c {
	case CategoryCoffee, CategoryFood, CategoryDrinks:
		return true
	}
	return false
}

// MenuItem is a purchasable catalog entry. Never mutated after load.
type MenuItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category Category        `json:"category"`
}

// CartLine is one selected item in the cart. Quantity is always >= 1.
type CartLine struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// LineTotal returns UnitPrice * Quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an ordered list of lines keyed by unique ItemID.
type Cart []CartLine

// Subtotal sums the line totals.
func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c {
		sum = sum.Add(l.LineTotal())
	}
	return sum
}

// ItemCount sums the quantities.
func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c {
		n += l.Quantity
	}
	return n
}

// Index returns the position of itemID or -1.
func (c Cart) Index(itemID string) int {
	for i, l := range c {
		if l.ItemID == itemID {
			return i
		}
	}
	return -1
}

func (c Cart) Clone() Cart {
	if c == nil {
		return nil
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// PaymentMethod is how the guest settles the order.
type PaymentMethod string

const (
	PaymentCard          PaymentMethod = "card"
	PaymentApplePay      PaymentMethod = "applePay"
	PaymentGooglePay     PaymentMethod = "googlePay"
	PaymentCashAtCounter PaymentMethod = "cashAtCounter"
)

// PaymentMethods lists the accepted methods in display order.
var PaymentMethods = []PaymentMethod{PaymentCard, PaymentApplePay, PaymentGooglePay, PaymentCashAtCounter}

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCard, PaymentApplePay, PaymentGooglePay, PaymentCashAtCounter:
		return true
	}
	return false
}

// Label is the human readable name shown on the confirmation prompt.
func (p PaymentMethod) Label() string {
	switch p {
	case PaymentCard:
		return "Credit/Debit Card"
	case PaymentApplePay:
		return "Apple Pay"
	case PaymentGooglePay:
		return "Google Pay"
	case PaymentCashAtCounter:
		return "Pay at Counter"
	}
	return string(p)
}

// ParsePaymentMethod accepts the canonical names.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	p := PaymentMethod(s)
	if !p.Valid() {
		return "", errors.Newf("unknown payment method %q", s)
	}
	return p, nil
}

// Order is the receipt produced at payment time. Only Status changes afterwards.
type Order struct {
	ID            string          `json:"id"`
	TableNumber   string          `json:"tableNumber"`
	Lines         Cart            `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Tip           decimal.Decimal `json:"tip"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	CreatedAt     time.Time       `json:"timestamp"`
	Status        Status          `json:"status"`
}

// Preferences is the userPreferences record.
type Preferences struct {
	Notifications bool            `json:"notifications"`
	Vibration     bool            `json:"vibration"`
	DefaultTip    decimal.Decimal `json:"defaultTip"`
}

// DefaultPreferences is used when nothing was saved yet.
func DefaultPreferences() Preferences {
	return Preferences{
		Notifications: true,
		Vibration:     true,
		DefaultTip:    decimal.RequireFromString("0.15"),
	}
}
