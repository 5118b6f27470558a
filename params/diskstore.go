package params

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jacentio/plinth/internal/paramkey"
)

// diskEntry is the on-disk document for one persistent parameter.
type diskEntry struct {
	Value     string    `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// diskStore holds persistent entries as one JSON file per parameter name,
// keyed by the paramkey encoding of the name. Writes go through a temp
// file and rename so readers never observe a torn document; racing writers
// for the same name resolve as last-write-wins.
type diskStore struct {
	dir string
}

func (s *diskStore) path(name string) string {
	return filepath.Join(s.dir, paramkey.Encode(name)+".json")
}

func (s *diskStore) load(name string) (Value, bool, error) {
	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return Value{}, false, nil
	}
	if err != nil {
		return Value{}, false, err
	}

	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Value{}, false, fmt.Errorf("decode %s: %w", s.path(name), err)
	}
	return Value{String: entry.Value, FetchedAt: entry.FetchedAt}, true, nil
}

func (s *diskStore) store(name string, v Value) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	data, err := json.Marshal(diskEntry{Value: v.String, FetchedAt: v.FetchedAt})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".param-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(name))
}

func (s *diskStore) delete(name string) error {
	err := os.Remove(s.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
