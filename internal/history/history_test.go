package history

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"cafeconnect/internal/model"
	"cafeconnect/internal/state"
)

func sampleOrder(id string) model.Order {
	return model.Order{
		ID:          id,
		TableNumber: "12",
		Lines: model.Cart{
			{ItemID: "1", Name: "Espresso", UnitPrice: decimal.RequireFromString("3.50"), Quantity: 1},
		},
		Subtotal:      decimal.RequireFromString("3.50"),
		Tax:           decimal.RequireFromString("0.28"),
		Tip:           decimal.RequireFromString("0.53"),
		Total:         decimal.RequireFromString("4.31"),
		PaymentMethod: model.PaymentCard,
		CreatedAt:     time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
		Status:        model.StatusConfirmed,
	}
}

func TestStoreLog_AppendAndList(t *testing.T) {
	st := state.NewInMemoryStore()
	l := NewStoreLog(st)

	if got, err := l.List(); err != nil || len(got) != 0 {
		t.Fatalf("empty list: %v err=%v", got, err)
	}
	if err := l.Append(sampleOrder("o1")); err != nil {
		t.Fatalf("append1: %v", err)
	}
	if err := l.Append(sampleOrder("o2")); err != nil {
		t.Fatalf("append2: %v", err)
	}

	got, err := l.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "o1" || got[1].ID != "o2" {
		t.Fatalf("unexpected order log: %+v", got)
	}
	if !got[0].Total.Equal(decimal.RequireFromString("4.31")) || got[0].Status != model.StatusConfirmed {
		t.Fatalf("round trip lost fields: %+v", got[0])
	}

	raw, _, _ := st.Get(state.KeyOrders)
	var generic []map[string]any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		t.Fatalf("orders record is not a JSON array: %v", err)
	}
	if generic[0]["status"] != "confirmed" || generic[0]["paymentMethod"] != "card" {
		t.Fatalf("unexpected wire fields: %v", generic[0])
	}
}

func TestStoreLog_CorruptRecord(t *testing.T) {
	st := state.NewInMemoryStore()
	_ = st.Set(state.KeyOrders, "{")
	if err := NewStoreLog(st).Append(sampleOrder("o1")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestFileLog_Append(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileLog(dir, "receipts.jsonl")
	if err != nil {
		t.Fatalf("NewFileLog: %v", err)
	}
	if err := w.Append(sampleOrder("o1")); err != nil {
		t.Fatalf("append1: %v", err)
	}
	if err := w.Append(sampleOrder("o2")); err != nil {
		t.Fatalf("append2: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "receipts.jsonl"))
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	var ids []string
	for s.Scan() {
		var o model.Order
		if err := json.Unmarshal(s.Bytes(), &o); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		ids = append(ids, o.ID)
	}
	if len(ids) != 2 || ids[0] != "o1" || ids[1] != "o2" {
		t.Fatalf("unexpected receipts: %v", ids)
	}
}

type failingLog struct{ calls int }

func (f *failingLog) Append(model.Order) error {
	f.calls++
	return errors.New("fail")
}

func TestMultiLog_StopsAtFirstFailure(t *testing.T) {
	st := state.NewInMemoryStore()
	first := NewStoreLog(st)
	bad := &failingLog{}
	after := &failingLog{}

	m := NewMultiLog(first, bad, after)
	if err := m.Append(sampleOrder("o1")); err == nil {
		t.Fatalf("expected error")
	}
	if bad.calls != 1 || after.calls != 0 {
		t.Fatalf("calls bad=%d after=%d", bad.calls, after.calls)
	}
	if got, _ := first.List(); len(got) != 1 {
		t.Fatalf("first log should have the order")
	}
}
