// Package store persists the poller's key-value state.
//
// State is split in two areas, mirroring the extension storage it replaces:
// the sync area holds the Bridgy token and the local area holds per-silo
// bookkeeping and alarm registrations. Values are stored as JSON.
package store

import (
	"context"
	"fmt"
	"strings"

	"bridgypoll/pkg/config"
)

const (
	// AreaSync holds values that follow the user (the Bridgy token)
	AreaSync = "sync"
	// AreaLocal holds per-installation state
	AreaLocal = "local"
)

// Area is a flat JSON key-value namespace
type Area interface {
	// Get decodes the value at key into dst and reports whether it existed
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	// Set stores v as JSON at key
	Set(ctx context.Context, key string, v interface{}) error
	// Remove deletes key; removing a missing key is not an error
	Remove(ctx context.Context, key string) error
	// Keys lists the keys starting with prefix in lexical order
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Stores bundles the two areas used by the poller
type Stores struct {
	Sync  Area
	Local Area

	closeFn func() error
}

// Close releases the backend connection, if any
func (s *Stores) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// Open builds the areas for the configured backend
func Open(ctx context.Context, cfg config.StorageConfig) (*Stores, error) {
	switch strings.ToLower(cfg.Backend) {
	case "file", "":
		syncArea, err := NewFileArea(cfg.Directory, AreaSync)
		if err != nil {
			return nil, err
		}
		localArea, err := NewFileArea(cfg.Directory, AreaLocal)
		if err != nil {
			return nil, err
		}
		return &Stores{Sync: syncArea, Local: localArea}, nil
	case "redis":
		client, err := Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Sync:    NewRedisArea(client, cfg.Redis.Prefix, AreaSync),
			Local:   NewRedisArea(client, cfg.Redis.Prefix, AreaLocal),
			closeFn: client.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
