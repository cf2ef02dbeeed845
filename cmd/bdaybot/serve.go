// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"cmp"
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.astrophena.name/bdaybot/internal/birthday"
	"go.astrophena.name/bdaybot/internal/cli"
	"go.astrophena.name/bdaybot/internal/commands"
	"go.astrophena.name/bdaybot/internal/logger"
	"go.astrophena.name/bdaybot/internal/schedule"
	"go.astrophena.name/bdaybot/internal/systemd"
	"go.astrophena.name/bdaybot/internal/telegram"
	"go.astrophena.name/bdaybot/internal/web"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const webhookPath = "/telegram"

func (b *bot) serve(ctx context.Context, env *cli.Env) error {
	if err := b.requireDelivery(); err != nil {
		return err
	}
	if b.mode == modeWebhook && (b.host == "" || b.secret == "") {
		return fmt.Errorf("%w: webhook mode requires -host and -secret", cli.ErrInvalidArgs)
	}

	release, err := b.lock()
	if err != nil {
		return err
	}
	defer release()

	me, err := b.tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("getting bot info: %w", err)
	}
	b.router.BotUsername = me.Username
	b.logger.Info("authorized", "username", me.Username, "mode", b.mode, "policy", b.policy, "at", b.at)

	mux := b.mux()

	sd := &systemd.Notifier{Getenv: env.Getenv, Logger: b.logger}
	defer sd.Notify(systemd.Stopping)

	var poller *telegram.Poller
	switch b.mode {
	case modePoll:
		// getUpdates doesn't work while a webhook is set.
		if err := b.tg.DeleteWebhook(ctx); err != nil {
			return fmt.Errorf("deleting webhook: %w", err)
		}
		poller = &telegram.Poller{
			Client:  b.tg,
			Handler: b.handleUpdate,
			Logger:  b.logger,
			Timeout: b.pollTimeout,
		}
	case modeWebhook:
		mux.Handle(webhookPath, telegram.WebhookHandler(b.secret, b.logger, b.handleUpdate))
		if err := b.tg.SetWebhook(ctx, "https://"+b.host+webhookPath, b.secret); err != nil {
			return fmt.Errorf("setting webhook: %w", err)
		}
	}

	daily := &schedule.Daily{
		At:     b.at,
		Job:    b.dailySweep,
		Clock:  b.clock,
		Logger: b.logger,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return web.ListenAndServe(ctx, &web.ListenAndServeConfig{
			Addr:      b.addr,
			Mux:       mux,
			Logger:    b.logger,
			DebugAuth: b.debugAuth,
			Ready: func(addr net.Addr) {
				sd.Notify(systemd.Ready)
				sd.Notify(systemd.Status("Listening on %s", addr))
				if b.ready != nil {
					b.ready(addr)
				}
			},
		})
	})
	g.Go(func() error { return daily.Run(ctx) })
	g.Go(func() error {
		sd.WatchdogLoop(ctx)
		return nil
	})
	if poller != nil {
		g.Go(func() error { return poller.Run(ctx) })
	}
	return g.Wait()
}

func (b *bot) mux() *http.ServeMux {
	mux := http.NewServeMux()

	health := web.Health(mux)
	health.RegisterFunc("store", func(ctx context.Context) (string, bool) {
		if _, err := b.roster.LoadRoster(ctx); err != nil {
			return b.scrubber.Replace(err.Error()), false
		}
		return "ok", true
	})

	dbg := web.Debugger(mux)
	dbg.Handle("logs", "Recent logs", b.logs)
	dbg.Handle("loglevel", "Log level (POST level=debug to change)", http.HandlerFunc(b.serveLogLevel))

	metrics := promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{})
	mux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !b.debugAuth(r) {
			web.RespondJSONError(b.logger, w, web.ErrNotFound)
			return
		}
		metrics.ServeHTTP(w, r)
	}))

	return mux
}

type logLevelResponse struct {
	Level string `json:"level"`
}

func (b *bot) serveLogLevel(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		name := r.FormValue("level")
		l, err := logger.ParseLevel(name)
		if name == "" || err != nil {
			web.RespondJSONError(b.logger, w, fmt.Errorf("%w: level must be one of debug, info, warn or error", web.ErrBadRequest))
			return
		}
		if old := b.level.Level(); old != l {
			b.level.Set(l)
			b.logger.Info("log level changed", "from", old, "to", l)
		}
	default:
		web.RespondJSONError(b.logger, w, web.ErrMethodNotAllowed)
		return
	}
	web.RespondJSON(w, logLevelResponse{Level: b.level.Level().String()})
}

func (b *bot) debugAuth(r *http.Request) bool {
	if b.debugToken == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(token), []byte(b.debugToken)) == 1
}

func (b *bot) dailySweep(ctx context.Context, now time.Time) {
	res, err := b.notifier.Sweep(ctx, birthday.Day(now))
	if err != nil {
		b.logger.Error("daily sweep failed", "day", res.Day, "sent", res.Sent, "matched", res.Matched, "err", err)
		return
	}
	b.logger.Info("daily sweep finished", "day", res.Day, "sent", res.Sent, "matched", res.Matched)
}

func (b *bot) handleUpdate(ctx context.Context, u telegram.Update) {
	b.metrics.UpdateReceived()

	m := u.Message
	if m == nil || m.From == nil || m.Text == "" {
		return
	}
	b.logger.Debug("received message",
		"from", cmp.Or(m.From.Username, m.From.FirstName),
		"user_id", m.From.ID,
		"chat_id", m.Chat.ID,
		"chat_type", m.Chat.Type,
	)

	reply, ok := b.router.Handle(ctx, commands.Request{
		Caller: commands.Caller{ID: m.From.ID, Username: m.From.Username},
		Chat:   commands.Chat{ID: m.Chat.ID, Private: m.Chat.IsPrivate()},
		Text:   m.Text,
	})
	if !ok {
		return
	}
	if err := b.tg.Send(ctx, strconv.FormatInt(m.Chat.ID, 10), reply); err != nil {
		b.logger.Error("sending reply failed", "chat_id", m.Chat.ID, "err", err)
	}
}
