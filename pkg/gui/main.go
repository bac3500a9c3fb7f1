// Package gui is the menu bar status item.
package gui

import (
	"context"
	"fmt"
	"time"

	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"

	"github.com/devicedata/datacollector/pkg/collector"
	"github.com/devicedata/datacollector/pkg/events"
	"github.com/devicedata/datacollector/pkg/powerinfo"
)

const refreshInterval = 2 * time.Second

// API is the part of the daemon client the tray uses.
type API interface {
	GetState() (*collector.State, error)
	SetMonitoring(enabled bool) (string, error)
	Collect() (string, error)
	SubscribeEvents(ctx context.Context) (<-chan events.Event, error)
}

// Run blocks until the user quits from the menu.
func Run(api API) {
	ctx, cancel := context.WithCancel(context.Background())
	systray.Run(func() { onReady(ctx, api) }, func() {
		cancel()
		logrus.Info("tray exiting")
	})
}

type menu struct {
	status   *systray.MenuItem
	battery  *systray.MenuItem
	sent     *systray.MenuItem
	last     *systray.MenuItem
	failure  *systray.MenuItem
	toggle   *systray.MenuItem
	collect  *systray.MenuItem
	quit     *systray.MenuItem
	monitors bool
}

func onReady(ctx context.Context, api API) {
	systray.SetTitle("🔋 Loading...")
	systray.SetTooltip(trayTooltip)

	m := &menu{}
	m.status = systray.AddMenuItem("Status: Connecting...", "Collector status")
	m.status.Disable()
	m.battery = systray.AddMenuItem("Battery: -", "Current battery reading")
	m.battery.Disable()
	m.sent = systray.AddMenuItem("Sent: -", "Successful deliveries since the daemon started")
	m.sent.Disable()
	m.last = systray.AddMenuItem("Last Update: -", "Time of the last successful delivery")
	m.last.Disable()
	m.failure = systray.AddMenuItem("", "Most recent delivery failure")
	m.failure.Disable()
	m.failure.Hide()

	systray.AddSeparator()

	m.toggle = systray.AddMenuItem("Start Monitoring", "Start or stop periodic sampling")
	m.collect = systray.AddMenuItem("Collect Now", "Send one sample immediately")

	systray.AddSeparator()
	m.quit = systray.AddMenuItem("Quit", quitTooltip)

	refresh := make(chan struct{}, 1)
	poke := func() {
		select {
		case refresh <- struct{}{}:
		default:
		}
	}

	go bridgeEvents(ctx, api, m, poke)

	go func() {
		m.update(api.GetState())
		for {
			select {
			case <-m.toggle.ClickedCh:
				if _, err := api.SetMonitoring(!m.monitors); err != nil {
					logrus.Errorf("failed to toggle monitoring: %v", err)
				}
				poke()
			case <-m.collect.ClickedCh:
				if _, err := api.Collect(); err != nil {
					logrus.Errorf("failed to collect: %v", err)
				}
			case <-m.quit.ClickedCh:
				systray.Quit()
				return
			case <-refresh:
				m.update(api.GetState())
			case <-time.After(refreshInterval):
				m.update(api.GetState())
			}
		}
	}()
}

// bridgeEvents refreshes the menu on daemon events and surfaces failures.
func bridgeEvents(ctx context.Context, api API, m *menu, poke func()) {
	ch, err := api.SubscribeEvents(ctx)
	if err != nil {
		logrus.Debugf("event stream unavailable, relying on polling: %v", err)
		return
	}
	for ev := range ch {
		logrus.WithFields(logrus.Fields{
			"event": ev.Name,
			"data":  string(ev.Data),
		}).Debug("new event")

		if ev.Name == events.DeliveryFailed {
			payload, err := events.DecodeAs[events.DeliveryFailedEvent](ev)
			if err != nil {
				logrus.WithError(err).Error("failed to decode delivery.failed event")
				continue
			}
			m.failure.SetTitle(failureTitle(payload))
			m.failure.Show()
		}
		poke()
	}
}

func (m *menu) update(st *collector.State, err error) {
	if err != nil {
		systray.SetTitle("🚫 Offline")
		m.status.SetTitle("Status: Disconnected")
		m.battery.SetTitle("Battery: -")
		m.sent.SetTitle("Sent: -")
		m.last.SetTitle("Last Update: -")
		m.toggle.Disable()
		m.collect.Disable()
		logrus.Debugf("cannot connect to daemon: %v", err)
		return
	}

	v := summarize(st, time.Now())
	m.monitors = st.IsMonitoring
	systray.SetTitle(v.title)
	m.status.SetTitle(v.status)
	m.battery.SetTitle(v.battery)
	m.sent.SetTitle(v.sent)
	m.last.SetTitle(v.last)
	m.toggle.SetTitle(v.toggle)
	m.toggle.Enable()
	if st.IsMonitoring {
		m.collect.Enable()
	} else {
		m.collect.Disable()
	}
}

type summary struct {
	title   string
	status  string
	battery string
	sent    string
	last    string
	toggle  string
}

func summarize(st *collector.State, now time.Time) summary {
	s := summary{
		status: "Status: Stopped",
		toggle: "Start Monitoring",
		sent:   fmt.Sprintf("Sent: %d (failed: %d)", st.SentDataCount, st.FailedCount),
		last:   "Last Update: never",
	}
	if st.IsMonitoring {
		s.status = "Status: Monitoring (" + st.Interval + ")"
		s.toggle = "Stop Monitoring"
	}

	icon := "🔋"
	if st.CurrentBatteryState == powerinfo.Charging {
		icon = "⚡️"
	}
	if st.CurrentBatteryLevel < 0 {
		s.title = icon + " --"
		s.battery = fmt.Sprintf("Battery: unknown (%s)", st.CurrentBatteryState)
	} else {
		pct := int(st.CurrentBatteryLevel*100 + 0.5)
		s.title = fmt.Sprintf("%s %d%%", icon, pct)
		s.battery = fmt.Sprintf("Battery: %d%% (%s)", pct, st.CurrentBatteryState)
	}
	if st.IsLowPowerMode {
		s.battery += ", low power"
	}

	if st.LastUpdateTime != nil {
		ago := now.Sub(*st.LastUpdateTime).Round(time.Second)
		s.last = fmt.Sprintf("Last Update: %s ago", ago)
	}
	return s
}

func failureTitle(e events.DeliveryFailedEvent) string {
	at := time.Unix(e.Ts, 0).Format("15:04:05")
	if e.StatusCode != 0 {
		return fmt.Sprintf("Last Failure: HTTP %d at %s", e.StatusCode, at)
	}
	return fmt.Sprintf("Last Failure: %s at %s", e.Kind, at)
}
