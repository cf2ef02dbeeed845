// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package metrics defines Prometheus metrics exported by the bot.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a set of bot metrics registered on a single registry.
type Metrics struct {
	commands        *prometheus.CounterVec
	greetings       *prometheus.CounterVec
	sweeps          prometheus.Counter
	storeRecoveries *prometheus.CounterVec
	updates         prometheus.Counter
}

// New creates metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		commands: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bdaybot_commands_total",
				Help: "Chat commands handled, by command and result.",
			},
			[]string{"command", "result"},
		),
		greetings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bdaybot_greetings_total",
				Help: "Birthday greetings dispatched, by result.",
			},
			[]string{"result"},
		),
		sweeps: f.NewCounter(
			prometheus.CounterOpts{
				Name: "bdaybot_sweeps_total",
				Help: "Runs of the daily birthday sweep, scheduled and manual.",
			},
		),
		storeRecoveries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bdaybot_store_recoveries_total",
				Help: "Unreadable documents replaced by defaults, by document.",
			},
			[]string{"document"},
		),
		updates: f.NewCounter(
			prometheus.CounterOpts{
				Name: "bdaybot_telegram_updates_total",
				Help: "Updates received from Telegram.",
			},
		),
	}
}

// CommandHandled counts a handled command. result is one of "ok",
// "rejected", "unauthorized" or "error".
func (m *Metrics) CommandHandled(command, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, result).Inc()
}

// GreetingDispatched counts a greeting, failed if err is not nil.
func (m *Metrics) GreetingDispatched(err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.greetings.WithLabelValues(result).Inc()
}

// SweepStarted counts a sweep.
func (m *Metrics) SweepStarted() {
	if m == nil {
		return
	}
	m.sweeps.Inc()
}

// StoreRecovered counts a document that was replaced by its default.
func (m *Metrics) StoreRecovered(document string) {
	if m == nil {
		return
	}
	m.storeRecoveries.WithLabelValues(document).Inc()
}

// UpdateReceived counts an incoming Telegram update.
func (m *Metrics) UpdateReceived() {
	if m == nil {
		return
	}
	m.updates.Inc()
}
