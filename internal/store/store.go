// Package store persists the workspace's JSON records (session history, the live
// conversation snapshot, theme and landing flag) in a versioned envelope on top of
// a key/value backend.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// SchemaVersion is written into every envelope. Bump it together with a migration.
const SchemaVersion = 1

var (
	// ErrWriteFailed wraps any failure to durably store a value.
	ErrWriteFailed = errors.New("store write failed")
	// ErrUnsupportedVersion is returned for records written by a newer schema.
	ErrUnsupportedVersion = errors.New("unsupported schema version")
)

type envelope struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// migration upgrades the payload of one key from version-1 to version.
type migration func(key string, data json.RawMessage) (json.RawMessage, error)

// migrations[v] upgrades a version v payload to v+1.
var migrations = map[int]migration{
	0: migrateLegacy,
}

// Store serializes values to JSON and keeps each key independent: a failed write
// leaves every other key untouched.
type Store struct {
	mu sync.Mutex
	kv KV
}

func New(kv KV) *Store {
	return &Store{kv: kv}
}

// Save overwrites key with value.
func (s *Store) Save(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", ErrWriteFailed, key, err)
	}
	raw, err := json.Marshal(envelope{Version: SchemaVersion, Data: data})
	if err != nil {
		return fmt.Errorf("%w: wrap %s: %v", ErrWriteFailed, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Put(key, raw); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWriteFailed, key, err)
	}
	return nil
}

// Load decodes the value saved under key into dst. It returns false with a nil
// error when nothing is stored; callers then use their defaults.
func (s *Store) Load(key string, dst any) (bool, error) {
	s.mu.Lock()
	raw, ok, err := s.kv.Get(key)
	s.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	data, err := upgrade(key, raw)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// upgrade unwraps raw and runs migrations until the payload is current.
func upgrade(key string, raw []byte) (json.RawMessage, error) {
	version, data := unwrap(raw)
	if version > SchemaVersion {
		return nil, fmt.Errorf("%w: %s has version %d, newest known is %d", ErrUnsupportedVersion, key, version, SchemaVersion)
	}
	for version < SchemaVersion {
		m, ok := migrations[version]
		if !ok {
			return nil, fmt.Errorf("%w: no migration for %s from version %d", ErrUnsupportedVersion, key, version)
		}
		var err error
		if data, err = m(key, data); err != nil {
			return nil, fmt.Errorf("migrate %s from version %d: %w", key, version, err)
		}
		version++
	}
	return data, nil
}

// unwrap returns the envelope's version and payload. Records without an envelope
// predate versioning and are reported as version 0.
func unwrap(raw []byte) (int, json.RawMessage) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err == nil {
			v, hasVersion := fields["version"]
			d, hasData := fields["data"]
			var version int
			if hasVersion && hasData && json.Unmarshal(v, &version) == nil {
				return version, d
			}
		}
	}
	return 0, json.RawMessage(trimmed)
}

// migrateLegacy accepts values written by the browser build, which stored the
// theme and landing flag as bare strings rather than JSON.
func migrateLegacy(key string, data json.RawMessage) (json.RawMessage, error) {
	if json.Valid(data) {
		if key == KeySkipLanding {
			var s string
			if json.Unmarshal(data, &s) == nil {
				return json.Marshal(s == "true")
			}
		}
		return data, nil
	}
	if key == KeySkipLanding {
		return json.Marshal(string(data) == "true")
	}
	return json.Marshal(string(data))
}
