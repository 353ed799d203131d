package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"cafeconnect/internal/model"
)

func TestDefault_LookupAndFilter(t *testing.T) {
	c := Default()
	if n := len(c.Items()); n != 8 {
		t.Fatalf("items=%d want=8", n)
	}

	esp, err := c.Lookup("1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if esp.Name != "Espresso" || !esp.Price.Equal(decimal.RequireFromString("3.50")) {
		t.Fatalf("unexpected espresso: %+v", esp)
	}
	if _, err := c.Lookup("99"); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("want ErrUnknownItem, got %v", err)
	}

	tests := []struct {
		name     string
		category model.Category
		search   string
		want     int
	}{
		{"all", "", "", 8},
		{"coffee", model.CategoryCoffee, "", 4},
		{"food", model.CategoryFood, "", 3},
		{"drinks", model.CategoryDrinks, "", 1},
		{"searchCaseInsensitive", "", "LAT", 1},
		{"searchWithinCategory", model.CategoryFood, "muf", 1},
		{"searchNoMatch", model.CategoryDrinks, "espresso", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(c.Filter(tt.category, tt.search)); got != tt.want {
				t.Fatalf("Filter(%q,%q)=%d want=%d", tt.category, tt.search, got, tt.want)
			}
		})
	}
}

func TestItems_ReturnsCopy(t *testing.T) {
	c := Default()
	items := c.Items()
	items[0].Name = "Changed"
	if got, _ := c.Lookup("1"); got.Name != "Espresso" {
		t.Fatalf("catalog mutated through Items(): %q", got.Name)
	}
}

func TestNew_Validation(t *testing.T) {
	price := decimal.RequireFromString
	tests := []struct {
		name  string
		items []model.MenuItem
	}{
		{"emptyID", []model.MenuItem{{Name: "X", Price: price("1"), Category: model.CategoryFood}}},
		{"emptyName", []model.MenuItem{{ID: "1", Price: price("1"), Category: model.CategoryFood}}},
		{"negativePrice", []model.MenuItem{{ID: "1", Name: "X", Price: price("-1"), Category: model.CategoryFood}}},
		{"badCategory", []model.MenuItem{{ID: "1", Name: "X", Price: price("1"), Category: "Dessert"}}},
		{"duplicate", []model.MenuItem{
			{ID: "1", Name: "X", Price: price("1"), Category: model.CategoryFood},
			{ID: "1", Name: "Y", Price: price("2"), Category: model.CategoryFood},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.items); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.yaml")
	body := `items:
  - id: "a"
    name: Flat White
    price: "4.10"
    category: Coffee
  - id: "b"
    name: Bagel
    price: "2.95"
    category: Food
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	it, err := c.Lookup("a")
	if err != nil || !it.Price.Equal(decimal.RequireFromString("4.10")) {
		t.Fatalf("lookup a: %+v err=%v", it, err)
	}

	if _, err := Parse([]byte("items:\n  - {id: x, name: X, price: abc, category: Food}\n")); err == nil {
		t.Fatalf("expected price parse error")
	}
}
