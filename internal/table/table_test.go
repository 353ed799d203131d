package table

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestFromScan(t *testing.T) {
	cases := []struct {
		payload string
		want    string
		err     error
	}{
		{"table=12", "12", nil},
		{"7", "7", nil},
		{"https://cafe.example/order?table=4&lang=en", "4", nil},
		{"xyz", "", ErrInvalidCode},
		{"table=", "", ErrInvalidCode},
		{"table=abc", "", ErrInvalidCode},
		{"", "", ErrInvalidCode},
		{"12a", "", ErrInvalidCode},
	}
	for _, c := range cases {
		got, err := FromScan(c.payload)
		if c.err != nil {
			if !errors.Is(err, c.err) {
				t.Fatalf("%q: want %v, got %v", c.payload, c.err, err)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Fatalf("%q: got %q err=%v want %q", c.payload, got, err, c.want)
		}
	}
}

func TestFromInput(t *testing.T) {
	if got, err := FromInput("  A5 "); err != nil || got != "A5" {
		t.Fatalf("got %q err=%v", got, err)
	}
	for _, in := range []string{"", "   ", "\t\n"} {
		if _, err := FromInput(in); !errors.Is(err, ErrMissingTableNumber) {
			t.Fatalf("%q: want ErrMissingTableNumber, got %v", in, err)
		}
	}
}
