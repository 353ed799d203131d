// Package snapshot exports the device's records to a directory and restores
// them. Each snapshot lives in <dir>/<id>/state.json; manifest.latest.json
// names the newest one.
package snapshot

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"

	"cafeconnect/internal/state"
)

const (
	stateFile    = "state.json"
	manifestFile = "manifest.latest.json"
)

type Manifest struct {
	SnapshotID           string `json:"snapshotId"`
	Keys                 int    `json:"keys"`
	CreatedAtEpochSecond int64  `json:"createdAt"`
}

type Snapshotter interface {
	WriteSnapshot(snapshotID string, st state.Store) (int, error)
}

type FilesystemSnapshotter struct {
	baseDir string
	now     func() time.Time
	logger  *log.Logger
}

func NewFilesystemSnapshotter(baseDir string, logger *log.Logger) *FilesystemSnapshotter {
	if logger == nil {
		logger = log.Default()
	}
	return &FilesystemSnapshotter{baseDir: baseDir, now: time.Now, logger: logger}
}

// WriteSnapshot dumps every record of st and returns how many were written.
func (f *FilesystemSnapshotter) WriteSnapshot(snapshotID string, st state.Store) (int, error) {
	if snapshotID == "" {
		return 0, errors.New("empty snapshot id")
	}
	dump := make(map[string]string)
	if err := st.Range(func(key string, value string) error {
		dump[key] = value
		return nil
	}); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Join(f.baseDir, snapshotID), 0o755); err != nil {
		return 0, errors.Wrap(err, "mkdir")
	}
	if err := writeJSON(filepath.Join(f.baseDir, snapshotID, stateFile), dump); err != nil {
		return 0, err
	}
	return len(dump), nil
}

// PublishLatest points the manifest at snapshotID.
func (f *FilesystemSnapshotter) PublishLatest(snapshotID string, keys int) error {
	if err := os.MkdirAll(f.baseDir, 0o755); err != nil {
		return errors.Wrap(err, "mkdir")
	}
	m := Manifest{
		SnapshotID:           snapshotID,
		Keys:                 keys,
		CreatedAtEpochSecond: f.now().UTC().Unix(),
	}
	return writeJSON(filepath.Join(f.baseDir, manifestFile), &m)
}

// Backup writes a snapshot named after the current time and publishes it.
func (f *FilesystemSnapshotter) Backup(st state.Store) (Manifest, error) {
	id := f.now().UTC().Format("20060102T150405.000000000Z")
	n, err := f.WriteSnapshot(id, st)
	if err != nil {
		return Manifest{}, errors.Wrapf(err, "write snapshot %s", id)
	}
	if err := f.PublishLatest(id, n); err != nil {
		return Manifest{}, errors.Wrapf(err, "publish snapshot %s", id)
	}
	f.logger.Printf("snapshot: wrote %d keys to %s", n, id)
	return f.ReadLatest()
}

// ReadLatest returns the published manifest. A missing manifest is returned
// as the zero Manifest.
func (f *FilesystemSnapshotter) ReadLatest() (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(f.baseDir, manifestFile))
	if err != nil {
		if oserror.IsNotExist(err) {
			return Manifest{}, nil
		}
		return Manifest{}, errors.Wrap(err, "read manifest")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.Wrap(err, "unmarshal manifest")
	}
	return m, nil
}

// Restore replaces the contents of st with snapshot snapshotID and returns
// the number of keys loaded.
func (f *FilesystemSnapshotter) Restore(snapshotID string, st state.Store) (int, error) {
	path := filepath.Join(f.baseDir, snapshotID, stateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrap(err, "read snapshot")
	}
	var dump map[string]string
	if err := json.Unmarshal(data, &dump); err != nil {
		return 0, errors.Wrap(err, "unmarshal snapshot")
	}
	if err := st.LoadAll(dump); err != nil {
		return 0, errors.Wrap(err, "load snapshot")
	}
	f.logger.Printf("restore: loaded %d keys from snapshot %s", len(dump), snapshotID)
	return len(dump), nil
}

// RestoreLatest restores the snapshot named by the manifest. Without a
// manifest nothing is touched and zero keys are reported.
func (f *FilesystemSnapshotter) RestoreLatest(st state.Store) (int, error) {
	m, err := f.ReadLatest()
	if err != nil {
		return 0, err
	}
	if m.SnapshotID == "" {
		f.logger.Printf("restore: no manifest in %s, skipping", f.baseDir)
		return 0, nil
	}
	return f.Restore(m.SnapshotID, st)
}

func writeJSON(file string, v interface{}) error {
	out, err := os.Create(file)
	if err != nil {
		return errors.Wrap(err, "create")
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = out.Close()
		return errors.Wrap(err, "encode")
	}
	return errors.Wrap(out.Close(), "close")
}
