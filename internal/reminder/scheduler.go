// Package reminder runs the daily sweep that turns incomplete challenges into
// notification events.
package reminder

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/go-co-op/gocron/v2"

	"example.com/challenge/internal/domain"
	"example.com/challenge/internal/observability"
)

// TargetSource computes the users still owing completions for a date.
type TargetSource interface {
	ReminderTargets(ctx context.Context, date domain.Date) (map[string][]domain.Challenge, error)
}

// Notifier pushes one reminder event per user onto the gateway channel.
// Delivery reliability is the gateway's problem; the scheduler never retries.
type Notifier interface {
	Notify(ctx context.Context, userID string, date domain.Date, challenges []domain.Challenge) error
}

// Option configures optional behaviour for the Scheduler.
type Option func(*Scheduler)

// WithLogger overrides the logger used to report sweep progress and failures.
func WithLogger(logger *log.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// Scheduler fires once daily at a fixed wall-clock time.
type Scheduler struct {
	service  TargetSource
	notifier Notifier
	clock    domain.Clock
	location *time.Location
	hour     int
	minute   int
	logger   *log.Logger
	cron     gocron.Scheduler
}

// NewScheduler constructs a Scheduler firing at hour:minute in the location.
func NewScheduler(service TargetSource, notifier Notifier, clock domain.Clock, location *time.Location, hour, minute int, opts ...Option) *Scheduler {
	s := &Scheduler{
		service:  service,
		notifier: notifier,
		clock:    clock,
		location: location,
		hour:     hour,
		minute:   minute,
		logger:   log.New(log.Writer(), "[reminder] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the daily job and launches the underlying scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	cron, err := gocron.NewScheduler(gocron.WithLocation(s.location))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = cron.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(s.hour), uint(s.minute), 0))),
		gocron.NewTask(func() {
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Printf("sweep failed: %v", err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("register daily job: %w", err)
	}

	s.cron = cron
	cron.Start()
	s.logger.Printf("daily reminder scheduled at %02d:%02d %s", s.hour, s.minute, s.location)
	return nil
}

// Shutdown stops the underlying scheduler.
func (s *Scheduler) Shutdown() error {
	if s.cron == nil {
		return nil
	}
	return s.cron.Shutdown()
}

// RunOnce performs a single sweep: collect today's targets first, then emit
// exactly one notification per user. No lock or transaction is held across
// the sends. Notifier failures are logged and counted, never retried, and
// never abort the remaining users.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	date := s.clock.Today()
	targets, err := s.service.ReminderTargets(ctx, date)
	if err != nil {
		return fmt.Errorf("compute reminder targets: %w", err)
	}
	observability.RecordReminderRun(s.clock.Now())

	users := make([]string, 0, len(targets))
	for userID := range targets {
		users = append(users, userID)
	}
	sort.Strings(users)

	for _, userID := range users {
		if err := s.notifier.Notify(ctx, userID, date, targets[userID]); err != nil {
			observability.RecordReminderFailure()
			s.logger.Printf("notify %s failed: %v", userID, err)
			continue
		}
		observability.RecordReminderEmitted()
	}

	s.logger.Printf("sweep for %s: %d users reminded", date, len(users))
	return nil
}
