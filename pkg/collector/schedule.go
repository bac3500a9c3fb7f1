package collector

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule samples every ten seconds.
const DefaultSchedule = "@every 10s"

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule accepts a Go duration ("30s"), a descriptor ("@every 1m")
// or a cron expression with optional seconds field. Durations are rounded
// down to whole seconds, with a minimum of one second.
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultSchedule
	}
	if d, err := time.ParseDuration(expr); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("interval must be positive, got %s", d)
		}
		return cron.Every(d), nil
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return sched, nil
}

// nominalInterval is the gap between two consecutive runs after now.
func nominalInterval(sched cron.Schedule, now time.Time) time.Duration {
	next := sched.Next(now)
	return sched.Next(next).Sub(next)
}

// ticker is the subset of time.Ticker the collector needs.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

// cronTicker fires at every time the schedule yields. Like time.Ticker it
// drops ticks for slow receivers.
type cronTicker struct {
	c      chan time.Time
	stopCh chan struct{}
	once   sync.Once
}

func newCronTicker(sched cron.Schedule) ticker {
	t := &cronTicker{
		c:      make(chan time.Time, 1),
		stopCh: make(chan struct{}),
	}
	go t.run(sched)
	return t
}

func (t *cronTicker) C() <-chan time.Time { return t.c }

func (t *cronTicker) Stop() {
	t.once.Do(func() { close(t.stopCh) })
}

func (t *cronTicker) run(sched cron.Schedule) {
	for {
		timer := time.NewTimer(time.Until(sched.Next(time.Now())))
		select {
		case fired := <-timer.C:
			select {
			case t.c <- fired:
			default:
			}
		case <-t.stopCh:
			timer.Stop()
			return
		}
	}
}
