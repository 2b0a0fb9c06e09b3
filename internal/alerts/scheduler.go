package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Schedule yields the next run time strictly after t.
type Schedule interface {
	Next(t time.Time) time.Time
}

// Weekly fires once a week on Day at Hour:Minute in Loc.
type Weekly struct {
	Day          time.Weekday
	Hour, Minute int
	Loc          *time.Location
}

func (w Weekly) Next(t time.Time) time.Time {
	local := t.In(w.Loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), w.Hour, w.Minute, 0, 0, w.Loc)
	next = next.AddDate(0, 0, (int(w.Day)-int(local.Weekday())+7)%7)
	if !next.After(t) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// Daily fires every day at Hour:Minute in Loc.
type Daily struct {
	Hour, Minute int
	Loc          *time.Location
}

func (d Daily) Next(t time.Time) time.Time {
	local := t.In(d.Loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, 0, 0, d.Loc)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Every fires at a fixed interval.
type Every time.Duration

func (e Every) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

// ParseSchedule builds a Schedule from its config form:
// kind weekly|daily|interval, weekday like "friday", at like "10:00".
func ParseSchedule(kind, weekday, at string, interval time.Duration, loc *time.Location) (Schedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "weekly":
		day, err := parseWeekday(weekday)
		if err != nil {
			return nil, err
		}
		h, m, err := parseClock(at)
		if err != nil {
			return nil, err
		}
		return Weekly{Day: day, Hour: h, Minute: m, Loc: loc}, nil
	case "daily":
		h, m, err := parseClock(at)
		if err != nil {
			return nil, err
		}
		return Daily{Hour: h, Minute: m, Loc: loc}, nil
	case "interval":
		if interval <= 0 {
			return nil, fmt.Errorf("schedule: interval must be positive")
		}
		return Every(interval), nil
	}
	return nil, fmt.Errorf("schedule: unknown kind %q", kind)
}

func parseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("schedule: unknown weekday %q", s)
}

func parseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("schedule: time %q is not HH:MM", s)
	}
	if hour, err = strconv.Atoi(h); err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("schedule: bad hour in %q", s)
	}
	if minute, err = strconv.Atoi(m); err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("schedule: bad minute in %q", s)
	}
	return hour, minute, nil
}

// Runner performs one scan.
type Runner interface {
	Run(ctx context.Context, now time.Time) (Result, error)
}

// Locker grants at most one holder at a time without blocking.
type Locker interface {
	TryAcquire(ctx context.Context) (func(context.Context) error, bool, error)
}

// ErrSkipped reports a trigger that found another scan in progress.
var ErrSkipped = errors.New("alert scan already running")

type Scheduler struct {
	runner   Runner
	schedule Schedule
	lock     Locker
	log      *slog.Logger
	now      func() time.Time
}

func NewScheduler(runner Runner, schedule Schedule, lock Locker, log *slog.Logger) *Scheduler {
	return &Scheduler{runner: runner, schedule: schedule, lock: lock, log: log, now: time.Now}
}

// Trigger runs one scan unless another one holds the lock, in which case it
// returns ErrSkipped without scanning.
func (s *Scheduler) Trigger(ctx context.Context) (Result, error) {
	release, ok, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("acquire scan lock: %w", err)
	}
	if !ok {
		s.log.Info("alert scan skipped, another run holds the lock")
		return Result{}, ErrSkipped
	}
	defer func() {
		// release with a fresh context so a cancelled trigger still frees the lock
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("release scan lock failed", "err", err)
		}
	}()
	return s.runner.Run(ctx, s.now())
}

// Run fires Trigger on every scheduled tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		now := s.now()
		next := s.schedule.Next(now)
		s.log.Info("next alert scan scheduled", "at", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := s.Trigger(ctx); err != nil && !errors.Is(err, ErrSkipped) {
			s.log.Error("scheduled alert scan failed", "err", err)
		}
	}
}
