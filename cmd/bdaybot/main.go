// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.astrophena.name/bdaybot/internal/birthday"
	"go.astrophena.name/bdaybot/internal/cli"
	"go.astrophena.name/bdaybot/internal/cli/envflag"
	"go.astrophena.name/bdaybot/internal/commands"
	"go.astrophena.name/bdaybot/internal/filelock"
	"go.astrophena.name/bdaybot/internal/httplogger"
	"go.astrophena.name/bdaybot/internal/logger"
	"go.astrophena.name/bdaybot/internal/metrics"
	"go.astrophena.name/bdaybot/internal/roster"
	"go.astrophena.name/bdaybot/internal/schedule"
	"go.astrophena.name/bdaybot/internal/store"
	"go.astrophena.name/bdaybot/internal/telegram"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/term"
)

func main() { cli.Main(new(bot)) }

const (
	modePoll    = "poll"
	modeWebhook = "webhook"

	// logLines is how many recent log lines are kept for /debug/logs.
	logLines = 300
	lockFile = "bdaybot.lock"
)

type bot struct {
	// configuration
	token       string
	admin       int64
	chatID      string
	greetAt     string
	authMode    string
	storeURL    string
	mode        string
	addr        string
	host        string
	secret      string
	debugToken  string
	logLevel    string
	logJSON     bool
	pollTimeout time.Duration
	stateDir    string

	// used in tests
	tgAPI string
	httpc *http.Client
	clock clockwork.Clock
	ready func(net.Addr)

	// initialized by init
	at       schedule.TimeOfDay
	policy   commands.Policy
	logger   *slog.Logger
	level    *slog.LevelVar
	logs     logger.Streamer
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	scrubber *strings.Replacer
	kv       store.Store
	roster   *roster.Store
	tg       *telegram.Client
	notifier *birthday.Notifier
	router   *commands.Router
}

func (b *bot) Flags(fs *flag.FlagSet, env *cli.Env) {
	getenv := env.Getenv
	envflag.Var(&b.token, "token", "TG_TOKEN", "", "Telegram Bot API token.", fs, getenv)
	envflag.Var(&b.admin, "admin", "ADMIN_ID", int64(0), "Telegram user ID of the administrator.", fs, getenv)
	envflag.Var(&b.chatID, "chat", "CHAT_ID", "", "Chat ID or @channel name where greetings are sent.", fs, getenv)
	envflag.Var(&b.greetAt, "at", "GREET_AT", "09:00", "Local time of the daily greeting, in HH:MM format.", fs, getenv)
	envflag.Var(&b.authMode, "auth", "AUTH_MODE", string(commands.DefaultPolicy), "Authorization `mode` for chat commands.", fs, getenv)
	envflag.Var(&b.storeURL, "store", "STORE_URL", "", "Storage `URL`. Defaults to files in the state directory.", fs, getenv)
	envflag.Var(&b.mode, "mode", "BOT_MODE", modePoll, "How to receive updates: poll or webhook.", fs, getenv)
	envflag.Var(&b.addr, "addr", "ADDR", "localhost:3000", "Listen on `host:port`.", fs, getenv)
	envflag.Var(&b.host, "host", "HOST", "", "Public host name of the webhook.", fs, getenv)
	envflag.Var(&b.secret, "secret", "TG_SECRET", "", "Webhook secret token.", fs, getenv)
	envflag.Var(&b.debugToken, "debug-token", "DEBUG_TOKEN", "", "Bearer token required for /debug/ and /metrics.", fs, getenv)
	envflag.Var(&b.logLevel, "log-level", "LOG_LEVEL", "info", "Log `level`.", fs, getenv)
	envflag.Var(&b.logJSON, "log-json", "LOG_JSON", false, "Write logs in JSON.", fs, getenv)
	envflag.Var(&b.pollTimeout, "poll-timeout", "POLL_TIMEOUT", telegram.DefaultPollTimeout, "Long polling timeout.", fs, getenv)
}

func (b *bot) Run(ctx context.Context, env *cli.Env) error {
	if len(env.Args) == 0 {
		return fmt.Errorf("%w: command is required, see -help for usage", cli.ErrInvalidArgs)
	}
	command, args := env.Args[0], env.Args[1:]

	var run func(context.Context, *cli.Env) error
	switch command {
	case "serve":
		if len(args) != 0 {
			return fmt.Errorf("%w: serve takes no arguments", cli.ErrInvalidArgs)
		}
		run = b.serve
	case "sweep":
		if len(args) > 1 {
			return fmt.Errorf("%w: sweep takes at most one MM-DD argument", cli.ErrInvalidArgs)
		}
		var day string
		if len(args) == 1 {
			day = args[0]
			if err := birthday.ValidateDate(day); err != nil {
				return fmt.Errorf("%w: %w", cli.ErrInvalidArgs, err)
			}
		}
		run = func(ctx context.Context, env *cli.Env) error { return b.sweep(ctx, env, day) }
	case "list":
		if len(args) != 0 {
			return fmt.Errorf("%w: list takes no arguments", cli.ErrInvalidArgs)
		}
		run = b.list
	case "import":
		if len(args) != 1 {
			return fmt.Errorf("%w: import expects a file name", cli.ErrInvalidArgs)
		}
		run = func(ctx context.Context, env *cli.Env) error { return b.importRoster(ctx, env, args[0]) }
	default:
		return fmt.Errorf("%w: no such command %q", cli.ErrInvalidArgs, command)
	}

	if err := b.init(ctx, env); err != nil {
		return err
	}
	defer b.close()

	return run(ctx, env)
}

func (b *bot) init(ctx context.Context, env *cli.Env) error {
	level, err := logger.ParseLevel(b.logLevel)
	if err != nil {
		return fmt.Errorf("%w: %w", cli.ErrInvalidArgs, err)
	}
	b.logs = logger.NewStreamer(logLines)
	b.logger, b.level = logger.New(io.MultiWriter(env.Stderr, b.logs), logger.Options{Level: level, JSON: b.logJSON})

	if b.policy, err = commands.ParsePolicy(b.authMode); err != nil {
		return fmt.Errorf("%w: %w", cli.ErrInvalidArgs, err)
	}
	if b.at, err = schedule.ParseTimeOfDay(b.greetAt); err != nil {
		return fmt.Errorf("%w: %w", cli.ErrInvalidArgs, err)
	}
	if b.mode != modePoll && b.mode != modeWebhook {
		return fmt.Errorf("%w: unknown mode %q, want %s or %s", cli.ErrInvalidArgs, b.mode, modePoll, modeWebhook)
	}
	if b.clock == nil {
		b.clock = clockwork.NewRealClock()
	}

	if b.stateDir == "" {
		b.stateDir = env.Getenv("STATE_DIRECTORY")
	}
	if b.stateDir == "" {
		xdgStateHome := env.Getenv("XDG_STATE_HOME")
		if xdgStateHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			xdgStateHome = filepath.Join(home, ".local", "state")
		}
		b.stateDir = filepath.Join(xdgStateHome, "bdaybot")
	}
	if b.storeURL == "" {
		b.storeURL = "files://" + b.stateDir
	}

	var pairs []string
	for _, secret := range []string{b.token, b.secret} {
		if secret != "" {
			pairs = append(pairs, secret, "[EXPUNGED]")
		}
	}
	b.scrubber = strings.NewReplacer(pairs...)

	b.registry = prometheus.NewRegistry()
	b.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	b.metrics = metrics.New(b.registry)

	if b.kv, err = store.Open(ctx, b.storeURL); err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	b.roster = roster.New(b.kv, roster.Options{Logger: b.logger, Metrics: b.metrics})

	httpc := b.httpc
	if httpc == nil {
		httpc = telegram.DefaultHTTPClient
	}
	httpc = httplogger.Client(httpc, b.logger, b.scrubber)

	b.tg = &telegram.Client{
		Token:      b.token,
		API:        b.tgAPI,
		HTTPClient: httpc,
		Scrubber:   b.scrubber,
	}
	b.notifier = &birthday.Notifier{
		Source: b.roster,
		// Greetings go to one chat, so they share its rate limit.
		Sender: &telegram.Client{
			Token:      b.token,
			API:        b.tgAPI,
			HTTPClient: httpc,
			Scrubber:   b.scrubber,
			Limiter:    telegram.NewSendLimiter(),
		},
		Destination: b.chatID,
		Logger:      b.logger,
		Metrics:     b.metrics,
	}
	b.router = &commands.Router{
		Store:   b.roster,
		Sweeper: b.notifier,
		Admin:   b.admin,
		Policy:  b.policy,
		Clock:   b.clock,
		Logger:  b.logger,
		Metrics: b.metrics,
	}
	return nil
}

func (b *bot) close() {
	if b.kv == nil {
		return
	}
	if err := b.kv.Close(); err != nil {
		b.logger.Warn("closing store failed", "err", err)
	}
}

// requireDelivery checks the configuration needed to talk to Telegram.
func (b *bot) requireDelivery() error {
	if b.token == "" {
		return fmt.Errorf("%w: -token or TG_TOKEN is required", cli.ErrInvalidArgs)
	}
	if b.chatID == "" {
		return fmt.Errorf("%w: -chat or CHAT_ID is required", cli.ErrInvalidArgs)
	}
	return nil
}

// lock takes the single instance lock when the store lives on the local disk.
func (b *bot) lock() (release func(), err error) {
	if !isLocalStore(b.storeURL) {
		return func() {}, nil
	}
	if err := os.MkdirAll(b.stateDir, 0o700); err != nil {
		return nil, err
	}
	path := filepath.Join(b.stateDir, lockFile)
	l, err := filelock.Acquire(path, fmt.Sprintf("pid=%d\n", os.Getpid()))
	if errors.Is(err, filelock.ErrAlreadyLocked) {
		owner, _ := filelock.Owner(path)
		return nil, fmt.Errorf("another instance is running (%s): %w", owner, err)
	}
	if err != nil {
		return nil, err
	}
	return func() {
		if err := l.Release(); err != nil {
			b.logger.Warn("releasing lock failed", "path", l.Path(), "err", err)
		}
	}, nil
}

func isLocalStore(rawURL string) bool {
	scheme, _, ok := strings.Cut(rawURL, "://")
	if !ok {
		return true
	}
	switch scheme {
	case "files", "jsonfile", "sqlite":
		return true
	}
	return false
}

func (b *bot) sweep(ctx context.Context, env *cli.Env, day string) error {
	if err := b.requireDelivery(); err != nil {
		return err
	}
	if day == "" {
		day = birthday.Day(b.clock.Now())
	}
	res, err := b.notifier.Sweep(ctx, day)
	fmt.Fprintf(env.Stdout, "Sent %d of %d greetings for %s.\n", res.Sent, res.Matched, res.Day)
	return err
}

func (b *bot) list(ctx context.Context, env *cli.Env) error {
	r, err := b.roster.LoadRoster(ctx)
	if err != nil {
		return err
	}
	if len(r) == 0 {
		fmt.Fprintln(env.Stdout, "Birthday list is empty.")
		return nil
	}
	for _, rec := range r {
		fmt.Fprintln(env.Stdout, rec)
	}
	return nil
}

func (b *bot) importRoster(ctx context.Context, env *cli.Env, name string) error {
	if name == "-" && isTerminal(env.Stdin) {
		return fmt.Errorf("%w: refusing to read birthdays from a terminal, pipe the file or pass its name", cli.ErrInvalidArgs)
	}

	release, err := b.lock()
	if err != nil {
		return err
	}
	defer release()

	r := env.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	var records birthday.Roster
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	if err := validateRoster(records); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	if err := b.roster.Update(ctx, func(birthday.Roster) (birthday.Roster, error) {
		return records, nil
	}); err != nil {
		return err
	}
	b.logger.Info("imported birthdays", "file", name, "records", len(records))
	fmt.Fprintf(env.Stdout, "Imported %d birthdays.\n", len(records))
	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func validateRoster(r birthday.Roster) error {
	for i, rec := range r {
		if rec.Name == "" || rec.Date == "" || rec.Handle == "" {
			return fmt.Errorf("record %d: %w: name, date and username are required", i, commands.ErrMalformed)
		}
		if err := birthday.ValidateDate(rec.Date); err != nil {
			return fmt.Errorf("record %d (%s): %w", i, rec.Name, err)
		}
		if j := r[:i].Index(rec.Name); j >= 0 {
			return fmt.Errorf("record %d (%s): %w of record %d", i, rec.Name, commands.ErrDuplicate, j)
		}
	}
	return nil
}
