package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// GetTime reads a timestamp key; ok is false when it was never written
func GetTime(ctx context.Context, a Area, key string) (t time.Time, ok bool, err error) {
	ok, err = a.Get(ctx, key, &t)
	return t, ok, err
}

// SetTime writes a timestamp key
func SetTime(ctx context.Context, a Area, key string, t time.Time) error {
	return a.Set(ctx, key, t.UTC())
}

// GetPost returns the stored counts for a post, zero if unknown
func GetPost(ctx context.Context, a Area, silo, id string) (PostStats, error) {
	var stats PostStats
	if _, err := a.Get(ctx, PostKey(silo, id), &stats); err != nil {
		return PostStats{}, err
	}
	return stats, nil
}

// UpdatePost stores next for a post and reports whether it grew since the last update
func UpdatePost(ctx context.Context, a Area, silo, id string, next PostStats) (bool, error) {
	prev, err := GetPost(ctx, a, silo, id)
	if err != nil {
		return false, err
	}
	if err := a.Set(ctx, PostKey(silo, id), next); err != nil {
		return false, err
	}
	return prev.Changed(next), nil
}

// LoadSiloState collects every local key belonging to silo
func LoadSiloState(ctx context.Context, a Area, silo string) (*SiloState, error) {
	state := &SiloState{Silo: silo, Posts: make(map[string]PostStats)}

	if _, err := a.Get(ctx, SourceKeyKey(silo), &state.SourceKey); err != nil {
		return nil, err
	}

	if t, ok, err := GetTime(ctx, a, LastStartKey(silo)); err != nil {
		return nil, err
	} else if ok {
		state.LastStart = &t
	}

	if t, ok, err := GetTime(ctx, a, LastSuccessKey(silo)); err != nil {
		return nil, err
	} else if ok {
		state.LastSuccess = &t
	}

	keys, err := a.Keys(ctx, PostPrefix(silo))
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		var stats PostStats
		if _, err := a.Get(ctx, key, &stats); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", key, err)
		}
		state.Posts[strings.TrimPrefix(key, PostPrefix(silo))] = stats
	}

	return state, nil
}
