// Package scheduler keeps one recurring poll alarm per enabled silo and
// dispatches fired alarms to the matching silo.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bridgypoll/pkg/alarms"
	"bridgypoll/pkg/config"
	"bridgypoll/pkg/logger"
	"bridgypoll/pkg/silo"
)

// Status is the outcome of a dispatched alarm
type Status string

const (
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// PollResult describes one dispatched poll
type PollResult struct {
	Silo     string
	Alarm    string
	Status   Status
	Err      error
	Started  time.Time
	Duration time.Duration
}

// Login obtains the Bridgy token before anything is scheduled
type Login interface {
	Login(ctx context.Context) (string, error)
}

// Observer receives poll and alarm events, typically a metrics.Recorder
type Observer interface {
	ObservePoll(silo, status string, d time.Duration)
	AlarmCreated()
}

// Scheduler registers poll alarms and handles them when they fire
type Scheduler struct {
	registry alarms.Registry
	catalog  *silo.Catalog
	poll     config.PollConfig
	logger   logger.Logger
	observer Observer
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool
	last     map[string]PollResult
	wg       sync.WaitGroup
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithObserver reports poll results and created alarms to o
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// New creates a scheduler for the enabled silos of catalog
func New(registry alarms.Registry, catalog *silo.Catalog, poll config.PollConfig, log logger.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if poll.FrequencyMinutes <= 0 {
		poll.FrequencyMinutes = config.FrequencyMinutes
	}
	if poll.InitialDelayMinutes < 0 {
		poll.InitialDelayMinutes = config.InitialDelayMinutes
	}

	s := &Scheduler{
		registry: registry,
		catalog:  catalog,
		poll:     poll,
		logger:   log.WithField("component", "scheduler"),
		now:      time.Now,
		inFlight: make(map[string]bool),
		last:     make(map[string]PollResult),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SchedulePoll makes sure every enabled silo has its poll alarm. Existing
// alarms are left untouched.
func (s *Scheduler) SchedulePoll(ctx context.Context) error {
	var errs []error
	for _, sl := range s.catalog.Enabled() {
		name := sl.AlarmName()

		existing, err := s.registry.Get(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to look up alarm %s: %w", name, err))
			continue
		}
		if existing != nil {
			s.logger.DebugWithFields("Poll alarm already registered", map[string]interface{}{
				"silo":      sl.Name(),
				"alarm":     name,
				"scheduled": existing.ScheduledTime,
			})
			continue
		}

		s.logger.InfoWithFields(fmt.Sprintf("Scheduling %s poll every %gm", sl.Name(), s.poll.FrequencyMinutes), map[string]interface{}{
			"silo":   sl.Name(),
			"alarm":  name,
			"period": s.poll.FrequencyMinutes,
		})
		err = s.registry.Create(ctx, name, alarms.AlarmInfo{
			DelayInMinutes:  s.poll.InitialDelayMinutes,
			PeriodInMinutes: s.poll.FrequencyMinutes,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to create alarm %s: %w", name, err))
			continue
		}
		if s.observer != nil {
			s.observer.AlarmCreated()
		}
	}
	return errors.Join(errs...)
}

// HandleAlarm polls the enabled silo whose alarm name matches exactly. It
// reports false, without polling, for alarms it does not own.
func (s *Scheduler) HandleAlarm(ctx context.Context, alarm alarms.Alarm) (PollResult, bool) {
	target := s.match(alarm.Name)
	if target == nil {
		s.logger.DebugWithFields("Ignoring unrelated alarm", map[string]interface{}{
			"alarm": alarm.Name,
		})
		return PollResult{}, false
	}

	result := PollResult{
		Silo:    target.Name(),
		Alarm:   alarm.Name,
		Started: s.now(),
	}

	if !s.acquire(result.Silo) {
		result.Status = StatusSkipped
		s.report(result)
		return result, true
	}
	defer s.release(result.Silo)

	err := target.Poll(ctx)
	result.Duration = s.now().Sub(result.Started)
	result.Err = err
	if err != nil {
		result.Status = StatusError
	} else {
		result.Status = StatusOK
	}
	s.report(result)
	return result, true
}

// Run logs in, schedules the poll alarms and dispatches fired alarms until
// ctx is done. Alarms left from a previous run are dispatched while login is
// still pending; nothing new is scheduled unless login succeeds.
func (s *Scheduler) Run(ctx context.Context, login Login) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.dispatch(ctx)
	}()
	defer func() {
		cancel()
		<-done
		s.wg.Wait()
	}()

	if _, err := login.Login(ctx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	s.logger.Info("Logged in to Bridgy")

	if err := s.SchedulePoll(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to schedule polls")
	}

	<-ctx.Done()
	return nil
}

// Wait blocks until every dispatched poll has finished
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// LastResult returns the most recent result recorded for a silo
func (s *Scheduler) LastResult(name string) (PollResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.last[name]
	return r, ok
}

func (s *Scheduler) dispatch(ctx context.Context) {
	fired := s.registry.Fired()
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-fired:
			if !ok {
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.HandleAlarm(ctx, a)
			}()
		}
	}
}

func (s *Scheduler) match(name string) silo.Silo {
	for _, sl := range s.catalog.Enabled() {
		if sl.AlarmName() == name {
			return sl
		}
	}
	return nil
}

func (s *Scheduler) acquire(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[name] {
		return false
	}
	s.inFlight[name] = true
	return true
}

func (s *Scheduler) release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, name)
}

func (s *Scheduler) report(r PollResult) {
	logger.LogPoll(s.logger, r.Silo, string(r.Status), r.Duration, r.Err)
	if s.observer != nil {
		s.observer.ObservePoll(r.Silo, string(r.Status), r.Duration)
	}
	if r.Status != StatusSkipped {
		s.mu.Lock()
		s.last[r.Silo] = r
		s.mu.Unlock()
	}
}
