package scheduler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultReset = "05:00"

// Settings provides the daily reset time as "HH:MM" UTC.
type Settings interface {
	GetDailyReset() (string, error)
}

type Scheduler struct {
	Settings     Settings
	Log          *zap.Logger
	OnDailyReset func(ctx context.Context)
	OnSweep      func(ctx context.Context, now time.Time)
	// Config
	SweepInterval time.Duration
	DisableDaily  bool
}

func New(settings Settings, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{Settings: settings, Log: log, SweepInterval: time.Minute}
}

// Start runs the daily reset loop and the result sweeper until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.DisableDaily {
		go s.loopDaily(ctx)
	}
	go s.loopSweep(ctx)
}

// parseDaily reads "HH:MM"; anything malformed falls back to 05:00.
func parseDaily(t string) (int, int) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(t), ":")
	if !ok {
		return 5, 0
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 5, 0
	}
	return h, m
}

// nextRun is the first hh:mm UTC strictly after from.
func nextRun(hh, mm int, from time.Time) time.Time {
	from = from.UTC()
	n := time.Date(from.Year(), from.Month(), from.Day(), hh, mm, 0, 0, time.UTC)
	if !n.After(from) {
		n = n.Add(24 * time.Hour)
	}
	return n
}

func (s *Scheduler) dailyTime() (int, int) {
	daily, err := s.Settings.GetDailyReset()
	if err != nil {
		s.Log.Warn("read daily reset time", zap.Error(err))
		daily = defaultReset
	}
	return parseDaily(daily)
}

func (s *Scheduler) loopDaily(ctx context.Context) {
	// re-read settings every minute and reschedule if the time changed
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	hh, mm := s.dailyTime()
	next := nextRun(hh, mm, time.Now())
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()
	s.Log.Info("daily reset scheduled", zap.Time("next", next))

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if s.OnDailyReset != nil {
				s.OnDailyReset(ctx)
			}
			hh, mm = s.dailyTime()
			next = nextRun(hh, mm, time.Now())
			timer.Reset(time.Until(next))
		case <-ticker.C:
			h2, m2 := s.dailyTime()
			newNext := nextRun(h2, m2, time.Now())
			if !newNext.Equal(next) {
				next = newNext
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(time.Until(next))
				s.Log.Info("daily reset rescheduled", zap.Time("next", next))
			}
		}
	}
}

func (s *Scheduler) loopSweep(ctx context.Context) {
	ticker := time.NewTicker(s.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if s.OnSweep != nil {
				s.OnSweep(ctx, now.UTC())
			}
		}
	}
}
