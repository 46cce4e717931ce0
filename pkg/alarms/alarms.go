// Package alarms is a persistent registry of named, recurring timers.
//
// Registrations are written to a store.Area so they outlive the process: a
// restarted Manager re-arms every alarm it finds, firing overdue ones once and
// then resuming their period. Fired alarms are delivered on a single channel.
package alarms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bridgypoll/pkg/logger"
	"bridgypoll/pkg/store"
)

const keyPrefix = "alarm-"

// AlarmInfo describes when a new alarm fires
type AlarmInfo struct {
	DelayInMinutes  float64 `json:"delay_in_minutes"`
	PeriodInMinutes float64 `json:"period_in_minutes,omitempty"`
}

// Alarm is a registered timer
type Alarm struct {
	Name            string    `json:"name"`
	ScheduledTime   time.Time `json:"scheduled_time"`
	PeriodInMinutes float64   `json:"period_in_minutes,omitempty"`
}

// Period returns the alarm period, zero for one-shot alarms
func (a Alarm) Period() time.Duration {
	return minutes(a.PeriodInMinutes)
}

// Registry is the timer registry the scheduler depends on
type Registry interface {
	// Get returns the alarm registered under name, or nil when there is none
	Get(ctx context.Context, name string) (*Alarm, error)
	// Create registers an alarm, replacing any alarm with the same name
	Create(ctx context.Context, name string, info AlarmInfo) error
	// All lists the registered alarms ordered by name
	All(ctx context.Context) ([]Alarm, error)
	// Fired delivers alarms as they go off
	Fired() <-chan Alarm
}

type armed struct {
	timer *time.Timer
	gen   uint64
}

// Manager implements Registry on top of a store area
type Manager struct {
	area   store.Area
	logger logger.Logger
	now    func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	timers map[string]armed
	gen    uint64
	fired  chan Alarm
}

// NewManager creates a registry persisting its alarms in area
func NewManager(area store.Area, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		area:   area,
		logger: log.WithField("component", "alarms"),
		now:    time.Now,
		timers: make(map[string]armed),
		fired:  make(chan Alarm, 16),
	}
}

// Start arms every persisted alarm; timers stop when ctx is done
func (m *Manager) Start(ctx context.Context) error {
	all, err := m.All(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.ctx = ctx
	for _, a := range all {
		m.armLocked(a)
	}
	m.mu.Unlock()

	m.logger.InfoWithFields("Alarm registry started", map[string]interface{}{
		"alarms": len(all),
	})

	go func() {
		<-ctx.Done()
		m.stopAll()
	}()
	return nil
}

// Fired delivers alarms as they go off, one at a time in firing order
func (m *Manager) Fired() <-chan Alarm {
	return m.fired
}

func (m *Manager) Get(ctx context.Context, name string) (*Alarm, error) {
	var a Alarm
	ok, err := m.area.Get(ctx, keyPrefix+name, &a)
	if err != nil {
		return nil, fmt.Errorf("failed to read alarm %q: %w", name, err)
	}
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Manager) Create(ctx context.Context, name string, info AlarmInfo) error {
	if name == "" {
		return errors.New("alarm name is required")
	}
	if info.DelayInMinutes < 0 || info.PeriodInMinutes < 0 {
		return fmt.Errorf("alarm %q: delay and period cannot be negative", name)
	}
	if info.PeriodInMinutes > 0 && minutes(info.PeriodInMinutes) <= 0 {
		return fmt.Errorf("alarm %q: period %g minutes is too short", name, info.PeriodInMinutes)
	}

	a := Alarm{
		Name:            name,
		ScheduledTime:   m.now().Add(minutes(info.DelayInMinutes)).UTC(),
		PeriodInMinutes: info.PeriodInMinutes,
	}
	if err := m.area.Set(ctx, keyPrefix+name, a); err != nil {
		return fmt.Errorf("failed to persist alarm %q: %w", name, err)
	}

	m.mu.Lock()
	if m.ctx != nil {
		m.armLocked(a)
	}
	m.mu.Unlock()

	m.logger.DebugWithFields("Alarm created", map[string]interface{}{
		"alarm":     name,
		"scheduled": a.ScheduledTime,
		"period":    a.Period(),
	})
	return nil
}

func (m *Manager) All(ctx context.Context) ([]Alarm, error) {
	keys, err := m.area.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list alarms: %w", err)
	}

	out := make([]Alarm, 0, len(keys))
	for _, key := range keys {
		a, err := m.Get(ctx, strings.TrimPrefix(key, keyPrefix))
		if err != nil {
			return nil, err
		}
		if a != nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

// Clear unregisters an alarm and reports whether it existed
func (m *Manager) Clear(ctx context.Context, name string) (bool, error) {
	a, err := m.Get(ctx, name)
	if err != nil || a == nil {
		return false, err
	}

	m.mu.Lock()
	if t, ok := m.timers[name]; ok {
		t.timer.Stop()
		delete(m.timers, name)
	}
	m.mu.Unlock()

	if err := m.area.Remove(ctx, keyPrefix+name); err != nil {
		return false, fmt.Errorf("failed to remove alarm %q: %w", name, err)
	}
	return true, nil
}

// armLocked (re)starts the timer for a; callers hold m.mu
func (m *Manager) armLocked(a Alarm) {
	if prev, ok := m.timers[a.Name]; ok {
		prev.timer.Stop()
	}

	m.gen++
	gen := m.gen
	delay := a.ScheduledTime.Sub(m.now())
	if delay < 0 {
		delay = 0
	}

	m.timers[a.Name] = armed{
		timer: time.AfterFunc(delay, func() { m.fire(a.Name, gen) }),
		gen:   gen,
	}
}

func (m *Manager) current(name string, gen uint64) (context.Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[name]
	if !ok || t.gen != gen || m.ctx == nil || m.ctx.Err() != nil {
		return nil, false
	}
	return m.ctx, true
}

func (m *Manager) fire(name string, gen uint64) {
	ctx, ok := m.current(name, gen)
	if !ok {
		return
	}

	a, err := m.Get(ctx, name)
	if err != nil {
		m.logger.WithError(err).ErrorWithFields("Failed to load fired alarm", map[string]interface{}{
			"alarm": name,
		})
		return
	}
	if a == nil {
		return
	}

	if period := a.Period(); period > 0 {
		updated := *a
		updated.ScheduledTime = nextFire(a.ScheduledTime, period, m.now()).UTC()
		if err := m.area.Set(ctx, keyPrefix+name, updated); err != nil {
			m.logger.WithError(err).ErrorWithFields("Failed to persist next alarm time", map[string]interface{}{
				"alarm": name,
			})
		}

		m.mu.Lock()
		if t, ok := m.timers[name]; ok && t.gen == gen && m.ctx.Err() == nil {
			m.armLocked(updated)
		}
		m.mu.Unlock()
	} else {
		m.mu.Lock()
		if t, ok := m.timers[name]; ok && t.gen == gen {
			delete(m.timers, name)
		}
		m.mu.Unlock()
		if err := m.area.Remove(ctx, keyPrefix+name); err != nil {
			m.logger.WithError(err).Warn("Failed to remove one-shot alarm")
		}
	}

	select {
	case m.fired <- *a:
	case <-ctx.Done():
	}
}

func (m *Manager) stopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, t := range m.timers {
		t.timer.Stop()
		delete(m.timers, name)
	}
}

// nextFire is the first point of the period grid anchored at scheduled that
// lies after now; missed periods collapse into the fire happening now
func nextFire(scheduled time.Time, period time.Duration, now time.Time) time.Time {
	next := scheduled.Add(period)
	if !next.After(now) {
		next = next.Add((now.Sub(next)/period + 1) * period)
	}
	return next
}

func minutes(v float64) time.Duration {
	return time.Duration(v * float64(time.Minute))
}
