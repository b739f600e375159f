// /internal/storage/storage.go
package storage

import (
	"encoding/json"
	"fmt"

	"game-buddy/datastore"
)

const prefsKeyPrefix = "prefs:"

// Storage wraps the shared datastore with the typed records the handlers
// use. The raw store is exposed for components that need its atomic
// primitives directly (rate limiter, correlator, credentials).
type Storage struct {
	ds *datastore.DataStore
}

// userPrefs is the per-user record: last-used server per game, so the server
// parameter becomes optional after first use.
type userPrefs struct {
	Servers map[string]string `json:"servers"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// DataStore returns the underlying shared store.
func (s *Storage) DataStore() *datastore.DataStore {
	return s.ds
}

// LastServer returns the server userID last used for game.
func (s *Storage) LastServer(userID, game string) (string, bool, error) {
	var prefs userPrefs
	found, err := s.ds.Get(prefsKeyPrefix+userID, &prefs)
	if err != nil {
		return "", false, fmt.Errorf("storage: read prefs: %w", err)
	}
	if !found || prefs.Servers == nil {
		return "", false, nil
	}
	server, ok := prefs.Servers[game]
	return server, ok, nil
}

// SetLastServer records the server userID used for game.
func (s *Storage) SetLastServer(userID, game, server string) error {
	return s.ds.Update(prefsKeyPrefix+userID, 0, func(cur json.RawMessage, exists bool) (any, bool) {
		prefs := userPrefs{Servers: map[string]string{}}
		if exists {
			// A corrupt record is replaced rather than kept.
			_ = json.Unmarshal(cur, &prefs)
			if prefs.Servers == nil {
				prefs.Servers = map[string]string{}
			}
		}
		prefs.Servers[game] = server
		return prefs, true
	})
}
