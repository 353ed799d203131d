package snapshot

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cafeconnect/internal/state"
)

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func seeded(t *testing.T) *state.InMemoryStore {
	t.Helper()
	s := state.NewInMemoryStore()
	for k, v := range map[string]string{
		state.KeyCart:        `[{"itemId":"1","name":"Espresso","unitPrice":"3.5","quantity":2}]`,
		state.KeyPreferences: `{"notifications":true,"vibration":false,"defaultTip":"0.2"}`,
	} {
		if err := s.Set(k, v); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	return s
}

func TestWriteSnapshot_WritesStateJSON(t *testing.T) {
	dir := t.TempDir()
	snap := NewFilesystemSnapshotter(dir, quiet())
	n, err := snap.WriteSnapshot("sid", seeded(t))
	if err != nil {
		t.Fatalf("WriteSnapshot error: %v", err)
	}
	if n != 2 {
		t.Fatalf("keys=%d", n)
	}

	b, err := os.ReadFile(filepath.Join(dir, "sid", "state.json"))
	if err != nil {
		t.Fatalf("state.json missing: %v", err)
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if len(m) != 2 || m[state.KeyCart] == "" {
		t.Fatalf("unexpected keys: %v", m)
	}
}

func TestPublishAndReadLatest(t *testing.T) {
	snap := NewFilesystemSnapshotter(t.TempDir(), quiet())
	if err := snap.PublishLatest("sid-123", 3); err != nil {
		t.Fatalf("PublishLatest error: %v", err)
	}
	got, err := snap.ReadLatest()
	if err != nil {
		t.Fatalf("ReadLatest error: %v", err)
	}
	if got.SnapshotID != "sid-123" || got.Keys != 3 || got.CreatedAtEpochSecond == 0 {
		t.Fatalf("unexpected manifest: %+v", got)
	}
}

func TestBackupAndRestoreLatest(t *testing.T) {
	snap := NewFilesystemSnapshotter(t.TempDir(), quiet())
	snap.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	src := seeded(t)
	m, err := snap.Backup(src)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if m.Keys != 2 || m.SnapshotID == "" {
		t.Fatalf("manifest=%+v", m)
	}

	dst := state.NewInMemoryStore()
	_ = dst.Set(state.KeyOrders, "[]") // replaced by the restore
	n, err := snap.RestoreLatest(dst)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n != 2 {
		t.Fatalf("restored=%d", n)
	}
	if _, ok, _ := dst.Get(state.KeyOrders); ok {
		t.Fatalf("restore must replace the store contents")
	}
	want, _, _ := src.Get(state.KeyPreferences)
	got, ok, _ := dst.Get(state.KeyPreferences)
	if !ok || got != want {
		t.Fatalf("preferences=%q want %q", got, want)
	}
}

func TestRestoreLatest_NoManifest(t *testing.T) {
	snap := NewFilesystemSnapshotter(t.TempDir(), quiet())
	st := seeded(t)
	n, err := snap.RestoreLatest(st)
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if _, ok, _ := st.Get(state.KeyCart); !ok {
		t.Fatalf("store touched without a manifest")
	}
}

func TestRestore_MissingSnapshot(t *testing.T) {
	snap := NewFilesystemSnapshotter(t.TempDir(), quiet())
	if err := snap.PublishLatest("gone", 1); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := snap.RestoreLatest(state.NewInMemoryStore()); err == nil {
		t.Fatalf("expected error for missing snapshot file")
	}
}

func TestRestore_IntoPebble(t *testing.T) {
	dir := t.TempDir()
	snap := NewFilesystemSnapshotter(filepath.Join(dir, "snapshots"), quiet())
	if _, err := snap.Backup(seeded(t)); err != nil {
		t.Fatalf("backup: %v", err)
	}
	ps, err := state.NewPebbleStore(filepath.Join(dir, "pebble"))
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	defer ps.Close()
	if n, err := snap.RestoreLatest(ps); err != nil || n != 2 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if _, ok, err := ps.Get(state.KeyCart); err != nil || !ok {
		t.Fatalf("cart missing after restore: ok=%v err=%v", ok, err)
	}
}
