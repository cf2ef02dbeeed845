// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package systemd implements the sd_notify protocol: readiness, status and
// watchdog notifications.
//
// See https://www.freedesktop.org/software/systemd/man/sd_notify.html.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"
)

// State is a sd_notify state line.
type State string

const (
	// Ready tells the service manager that startup is finished.
	Ready State = "READY=1"
	// Stopping tells the service manager that the service is shutting down.
	Stopping State = "STOPPING=1"
	// Watchdog updates the watchdog timestamp.
	Watchdog State = "WATCHDOG=1"
)

// Status returns a state that sets the free-form status shown by systemctl.
func Status(format string, args ...any) State {
	return State("STATUS=" + fmt.Sprintf(format, args...))
}

// Notifier sends notifications to the socket named by NOTIFY_SOCKET. Without
// it, all methods do nothing.
type Notifier struct {
	Getenv func(string) string
	Logger *slog.Logger
}

func (n *Notifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

// Notify sends state. Failures are logged and otherwise ignored.
func (n *Notifier) Notify(state State) {
	socket := n.Getenv("NOTIFY_SOCKET")
	if socket == "" {
		return
	}
	addr := &net.UnixAddr{Net: "unixgram", Name: socket}
	conn, err := net.DialUnix(addr.Net, nil, addr)
	if err != nil {
		n.logger().Warn("systemd notification failed", "state", state, "err", err)
		return
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(state)); err != nil {
		n.logger().Warn("systemd notification failed", "state", state, "err", err)
	}
}

// WatchdogLoop sends [Watchdog] at half of WATCHDOG_USEC until ctx is done.
// It returns immediately if the watchdog is not enabled.
func (n *Notifier) WatchdogLoop(ctx context.Context) {
	s := n.Getenv("WATCHDOG_USEC")
	if s == "" {
		return
	}
	interval, err := watchdogInterval(s)
	if err != nil {
		n.logger().Warn("systemd watchdog disabled", "err", err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.Notify(Watchdog)
		case <-ctx.Done():
			return
		}
	}
}

func watchdogInterval(usec string) (time.Duration, error) {
	v, err := strconv.Atoi(usec)
	if err != nil {
		return 0, fmt.Errorf("parsing WATCHDOG_USEC: %w", err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("WATCHDOG_USEC must be positive, got %d", v)
	}
	return time.Duration(v) * time.Microsecond / 2, nil
}
