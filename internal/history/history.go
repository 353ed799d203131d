package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"

	"cafeconnect/internal/model"
	"cafeconnect/internal/state"
)

// Log records built orders. Entries are never rewritten.
type Log interface {
	Append(o model.Order) error
}

// MultiLog fans out appends to multiple underlying logs and stops at the
// first failure.
type MultiLog struct {
	logs []Log
}

func NewMultiLog(logs ...Log) *MultiLog {
	return &MultiLog{logs: logs}
}

func (m *MultiLog) Append(o model.Order) error {
	for _, l := range m.logs {
		if err := l.Append(o); err != nil {
			return err
		}
	}
	return nil
}

// StoreLog keeps the history as a JSON array under state.KeyOrders. Each
// append is a read-modify-write of that one record.
type StoreLog struct {
	mu    sync.Mutex
	store state.Store
}

func NewStoreLog(st state.Store) *StoreLog {
	return &StoreLog{store: st}
}

func (s *StoreLog) Append(o model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders, err := s.list()
	if err != nil {
		return err
	}
	orders = append(orders, o)
	b, err := json.Marshal(orders)
	if err != nil {
		return errors.Wrap(err, "encode orders")
	}
	if err := s.store.Set(state.KeyOrders, string(b)); err != nil {
		return errors.Wrap(err, "save orders")
	}
	return nil
}

// List returns every recorded order, oldest first.
func (s *StoreLog) List() ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list()
}

func (s *StoreLog) list() ([]model.Order, error) {
	raw, ok, err := s.store.Get(state.KeyOrders)
	if err != nil {
		return nil, errors.Wrap(err, "load orders")
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var orders []model.Order
	if err := json.Unmarshal([]byte(raw), &orders); err != nil {
		return nil, errors.Wrap(err, "decode orders")
	}
	return orders, nil
}

// FileLog appends one JSON receipt per line to a file.
type FileLog struct {
	mu   sync.Mutex
	path string
}

func NewFileLog(dir string, filename string) (*FileLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "mkdir")
	}
	return &FileLog{path: filepath.Join(dir, filename)}, nil
}

func (w *FileLog) Path() string { return w.path }

func (w *FileLog) Append(o model.Order) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(&o); err != nil {
		return errors.Wrap(err, "encode")
	}
	return nil
}
