// Package datastore is a JSON-file-backed key-value store shared by every
// process-wide concern that needs atomic state: the GCRA rate limiter, the
// pending-authentication registry and the credential store. Keys may carry a
// TTL; expired keys behave as absent and are swept in the background. All
// read-modify-write access goes through Update, which runs the caller's
// function under the store lock so concurrent callers can never interleave.
package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config holds tuning options for the store.
type Config struct {
	FilePath         string
	AutoSaveInterval time.Duration
	SweepInterval    time.Duration
}

// DefaultConfig returns the configuration used by the bot and the dashboard.
func DefaultConfig(filePath string) *Config {
	return &Config{
		FilePath:         filePath,
		AutoSaveInterval: 10 * time.Second,
		SweepInterval:    time.Minute,
	}
}

type entry struct {
	Value     json.RawMessage `json:"v"`
	ExpiresAt time.Time       `json:"exp,omitzero"`
}

func (e entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// DataStore is the shared store. Safe for concurrent use.
type DataStore struct {
	mu           sync.RWMutex
	data         map[string]entry
	file         string
	config       *Config
	lastChecksum string

	now func() time.Time // injectable for TTL tests

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeMu sync.RWMutex
	closed  bool
}

// New creates a store with default configuration.
func New(filePath string) (*DataStore, error) {
	return NewWithConfig(DefaultConfig(filePath))
}

// NewWithConfig creates a store, loading existing data from disk if present.
func NewWithConfig(config *Config) (*DataStore, error) {
	if config == nil || config.FilePath == "" {
		return nil, fmt.Errorf("datastore: file path is required")
	}

	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("datastore: create directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ds := &DataStore{
		data:   make(map[string]entry),
		file:   config.FilePath,
		config: config,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := os.Stat(config.FilePath); os.IsNotExist(err) {
		if err := ds.writeFileAtomic([]byte("{}")); err != nil {
			cancel()
			return nil, fmt.Errorf("datastore: init file: %w", err)
		}
	} else if err == nil {
		if err := ds.loadFromFile(); err != nil {
			cancel()
			return nil, fmt.Errorf("datastore: load: %w", err)
		}
	} else {
		cancel()
		return nil, fmt.Errorf("datastore: stat file: %w", err)
	}

	ds.wg.Add(2)
	go ds.autoSave()
	go ds.sweepExpired()

	return ds, nil
}

// Set stores value under key, replacing any previous value. A zero ttl means
// the key never expires.
func (ds *DataStore) Set(key string, value any, ttl time.Duration) error {
	return ds.Update(key, ttl, func(json.RawMessage, bool) (any, bool) {
		return value, true
	})
}

// SetIfAbsent stores value only when the key has no live value. Returns true
// if the value was stored. This is the compare-and-set used to claim a
// per-user slot (e.g. a pending authentication marker).
func (ds *DataStore) SetIfAbsent(key string, value any, ttl time.Duration) (bool, error) {
	stored := false
	err := ds.Update(key, ttl, func(_ json.RawMessage, exists bool) (any, bool) {
		if exists {
			return nil, false
		}
		stored = true
		return value, true
	})
	return stored, err
}

// Get unmarshals the live value for key into out. Returns false when the key
// is absent or expired.
func (ds *DataStore) Get(key string, out any) (bool, error) {
	if ds.isClosed() {
		return false, fmt.Errorf("datastore: closed")
	}

	ds.mu.RLock()
	e, exists := ds.data[key]
	ds.mu.RUnlock()

	if !exists || e.expired(ds.now()) {
		return false, nil
	}
	if out != nil {
		if err := json.Unmarshal(e.Value, out); err != nil {
			return false, fmt.Errorf("datastore: unmarshal %q: %w", key, err)
		}
	}
	return true, nil
}

// Update runs fn as a single atomic unit against the key. fn receives the
// current live value (raw JSON) and whether one exists; it returns the next
// value and whether to write it. When fn declines to write, the key is left
// untouched. This is the only read-modify-write primitive the store offers,
// so races like two rate-limit checks both observing the same state cannot
// happen within a process.
func (ds *DataStore) Update(key string, ttl time.Duration, fn func(cur json.RawMessage, exists bool) (next any, write bool)) error {
	if ds.isClosed() {
		return fmt.Errorf("datastore: closed")
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	e, exists := ds.data[key]
	if exists && e.expired(ds.now()) {
		delete(ds.data, key)
		exists = false
		e = entry{}
	}

	next, write := fn(e.Value, exists)
	if !write {
		return nil
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("datastore: marshal %q: %w", key, err)
	}

	var expires time.Time
	if ttl > 0 {
		expires = ds.now().Add(ttl)
	}
	ds.data[key] = entry{Value: raw, ExpiresAt: expires}
	return nil
}

// Delete removes a key.
func (ds *DataStore) Delete(key string) {
	if ds.isClosed() {
		return
	}
	ds.mu.Lock()
	delete(ds.data, key)
	ds.mu.Unlock()
}

// Keys returns all live keys with the given prefix.
func (ds *DataStore) Keys(prefix string) []string {
	if ds.isClosed() {
		return nil
	}
	now := ds.now()

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	var keys []string
	for k, e := range ds.data {
		if e.expired(now) {
			continue
		}
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys
}

// SaveToFile forces an immediate save to disk.
func (ds *DataStore) SaveToFile() error {
	if ds.isClosed() {
		return fmt.Errorf("datastore: closed")
	}
	return ds.saveToFile()
}

// Close stops background routines and performs a final save.
func (ds *DataStore) Close() error {
	ds.closeMu.Lock()
	if ds.closed {
		ds.closeMu.Unlock()
		return nil
	}
	ds.closed = true
	ds.closeMu.Unlock()

	ds.cancel()
	ds.wg.Wait()
	return ds.saveToFile()
}

func (ds *DataStore) isClosed() bool {
	ds.closeMu.RLock()
	defer ds.closeMu.RUnlock()
	return ds.closed
}

func (ds *DataStore) saveToFile() error {
	ds.mu.RLock()
	data, err := json.MarshalIndent(ds.data, "", "  ")
	ds.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("datastore: marshal: %w", err)
	}

	checksum := calculateChecksum(data)
	if checksum == ds.lastChecksum {
		return nil
	}

	if err := ds.writeFileAtomic(data); err != nil {
		return err
	}
	ds.lastChecksum = checksum
	return nil
}

func (ds *DataStore) loadFromFile() error {
	raw, err := os.ReadFile(ds.file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var data map[string]entry
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	ds.mu.Lock()
	ds.data = data
	ds.mu.Unlock()
	ds.lastChecksum = calculateChecksum(raw)
	return nil
}

// writeFileAtomic writes via a temp file and rename so a crash mid-save never
// leaves a truncated store on disk.
func (ds *DataStore) writeFileAtomic(data []byte) error {
	tmp := ds.file + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("datastore: write temp file: %w", err)
	}

	f, err := os.OpenFile(tmp, os.O_RDWR, 0644)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("datastore: open temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("datastore: sync temp file: %w", err)
	}
	f.Close()

	if err := os.Rename(tmp, ds.file); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("datastore: rename temp file: %w", err)
	}
	return nil
}

// sweepExpired periodically drops expired keys so idle keys self-clean rather
// than accumulating until their next read.
func (ds *DataStore) sweepExpired() {
	defer ds.wg.Done()

	ticker := time.NewTicker(ds.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ds.ctx.Done():
			return
		case <-ticker.C:
			now := ds.now()
			ds.mu.Lock()
			for k, e := range ds.data {
				if e.expired(now) {
					delete(ds.data, k)
				}
			}
			ds.mu.Unlock()
		}
	}
}

func (ds *DataStore) autoSave() {
	defer ds.wg.Done()

	ticker := time.NewTicker(ds.config.AutoSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ds.ctx.Done():
			return
		case <-ticker.C:
			_ = ds.saveToFile()
		}
	}
}

func calculateChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
