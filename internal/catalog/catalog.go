package catalog

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"cafeconnect/internal/model"
)

// ErrUnknownItem is returned by Lookup for ids not on the menu.
var ErrUnknownItem = errors.New("unknown menu item")

// Catalog is the immutable menu for the lifetime of the process.
type Catalog struct {
	items []model.MenuItem
	byID  map[string]int
}

// New validates items and builds a catalog. Ids must be unique, names
// non-empty, prices non-negative and categories known.
func New(items []model.MenuItem) (*Catalog, error) {
	c := &Catalog{
		items: make([]model.MenuItem, 0, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	for _, it := range items {
		switch {
		case it.ID == "":
			return nil, errors.Newf("menu item %q: empty id", it.Name)
		case strings.TrimSpace(it.Name) == "":
			return nil, errors.Newf("menu item %s: empty name", it.ID)
		case it.Price.IsNegative():
			return nil, errors.Newf("menu item %s: negative price %s", it.ID, it.Price)
		case !it.Category.Valid():
			return nil, errors.Newf("menu item %s: unknown category %q", it.ID, it.Category)
		}
		if _, dup := c.byID[it.ID]; dup {
			return nil, errors.Newf("menu item %s: duplicate id", it.ID)
		}
		c.byID[it.ID] = len(c.items)
		c.items = append(c.items, it)
	}
	return c, nil
}

// Default is the house menu.
func Default() *Catalog {
	price := decimal.RequireFromString
	c, err := New([]model.MenuItem{
		{ID: "1", Name: "Espresso", Price: price("3.50"), Category: model.CategoryCoffee},
		{ID: "2", Name: "Cappuccino", Price: price("4.25"), Category: model.CategoryCoffee},
		{ID: "3", Name: "Latte", Price: price("4.75"), Category: model.CategoryCoffee},
		{ID: "4", Name: "Americano", Price: price("3.25"), Category: model.CategoryCoffee},
		{ID: "5", Name: "Croissant", Price: price("2.50"), Category: model.CategoryFood},
		{ID: "6", Name: "Muffin", Price: price("3.00"), Category: model.CategoryFood},
		{ID: "7", Name: "Sandwich", Price: price("6.50"), Category: model.CategoryFood},
		{ID: "8", Name: "Orange Juice", Price: price("3.75"), Category: model.CategoryDrinks},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Items returns a copy of every item in menu order.
func (c *Catalog) Items() []model.MenuItem {
	out := make([]model.MenuItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Catalog) Lookup(id string) (model.MenuItem, error) {
	i, ok := c.byID[id]
	if !ok {
		return model.MenuItem{}, errors.Wrapf(ErrUnknownItem, "id %s", id)
	}
	return c.items[i], nil
}

// Filter returns items in category (empty means all) whose name contains
// search, case-insensitively.
func (c *Catalog) Filter(category model.Category, search string) []model.MenuItem {
	needle := strings.ToLower(strings.TrimSpace(search))
	var out []model.MenuItem
	for _, it := range c.items {
		if category != "" && it.Category != category {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(it.Name), needle) {
			continue
		}
		out = append(out, it)
	}
	return out
}

type fileItem struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	Category string `yaml:"category"`
}

type fileMenu struct {
	Items []fileItem `yaml:"items"`
}

// Load reads a menu from a YAML file of the form
//
//	items:
//	  - {id: "1", name: Espresso, price: "3.50", category: Coffee}
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}
	return Parse(b)
}

func Parse(b []byte) (*Catalog, error) {
	var fm fileMenu
	if err := yaml.Unmarshal(b, &fm); err != nil {
		return nil, errors.Wrap(err, "unmarshal catalog")
	}
	items := make([]model.MenuItem, 0, len(fm.Items))
	for _, fi := range fm.Items {
		p, err := decimal.NewFromString(fi.Price)
		if err != nil {
			return nil, errors.Wrapf(err, "menu item %s: price", fi.ID)
		}
		items = append(items, model.MenuItem{
			ID:       fi.ID,
			Name:     fi.Name,
			Price:    p,
			Category: model.Category(fi.Category),
		})
	}
	return New(items)
}
