package silo

import (
	"context"
	"fmt"
	"time"

	errs "bridgypoll/pkg/errors"
	"bridgypoll/pkg/logger"
	"bridgypoll/pkg/store"
)

const (
	Facebook  = "facebook"
	Instagram = "instagram"
)

var (
	// ErrNoToken means login has not stored a Bridgy token yet
	ErrNoToken = errs.New(errs.ErrorTypeAuth, 0, "no Bridgy token")
	// ErrNoSourceKey means the silo was never connected to a Bridgy source
	ErrNoSourceKey = errs.New(errs.ErrorTypeNotFound, 0, "no Bridgy source key")
)

// Poller asks Bridgy to poll a source
type Poller interface {
	Poll(ctx context.Context, silo, token, key string) error
}

// Source is a silo backed by a Bridgy browser source. Its poll reads the
// token and source key from storage, records the start time, asks Bridgy
// to poll and records the success time.
type Source struct {
	name   string
	sync   store.Area
	local  store.Area
	bridgy Poller
	logger logger.Logger
	now    func() time.Time
}

// NewSource creates the silo called name
func NewSource(name string, stores *store.Stores, bridgy Poller, log logger.Logger) *Source {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Source{
		name:   name,
		sync:   stores.Sync,
		local:  stores.Local,
		bridgy: bridgy,
		logger: log.WithField("silo", name),
		now:    time.Now,
	}
}

// Sources builds a constructor for NewCatalog that backs every silo with a Source
func Sources(stores *store.Stores, bridgy Poller, log logger.Logger) func(string) Silo {
	return func(name string) Silo {
		return NewSource(name, stores, bridgy, log)
	}
}

func (s *Source) Name() string { return s.name }

func (s *Source) AlarmName() string { return AlarmName(s.name) }

func (s *Source) Poll(ctx context.Context) error {
	var token string
	ok, err := s.sync.Get(ctx, store.TokenKey, &token)
	if err != nil {
		return fmt.Errorf("%s: failed to read token: %w", s.name, err)
	}
	if !ok || token == "" {
		return fmt.Errorf("%s: %w", s.name, ErrNoToken)
	}

	var key string
	ok, err = s.local.Get(ctx, store.SourceKeyKey(s.name), &key)
	if err != nil {
		return fmt.Errorf("%s: failed to read source key: %w", s.name, err)
	}
	if !ok || key == "" {
		return fmt.Errorf("%s: %w", s.name, ErrNoSourceKey)
	}

	if err := store.SetTime(ctx, s.local, store.LastStartKey(s.name), s.now()); err != nil {
		return fmt.Errorf("%s: failed to record poll start: %w", s.name, err)
	}

	s.logger.Debug("Asking Bridgy to poll")
	if err := s.bridgy.Poll(ctx, s.name, token, key); err != nil {
		return fmt.Errorf("%s: bridgy poll failed: %w", s.name, err)
	}

	if err := store.SetTime(ctx, s.local, store.LastSuccessKey(s.name), s.now()); err != nil {
		return fmt.Errorf("%s: failed to record poll success: %w", s.name, err)
	}
	return nil
}
