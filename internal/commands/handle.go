// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.astrophena.name/bdaybot/internal/birthday"
)

// Caller is the user who sent a command.
type Caller struct {
	ID       int64
	Username string
}

// Chat is where a command was sent.
type Chat struct {
	ID      int64
	Private bool
}

// Request is an incoming text message.
type Request struct {
	Caller Caller
	Chat   Chat
	Text   string
}

// Replies.
const (
	replyStart        = "👋 Hi! I am a congratulator bot. Use /add, /remove, /update, /list, /setgreeting, /test etc."
	replyUnauthorized = "⛔ You are not allowed to use this command."
	replyStoreError   = "⚠ Something went wrong while saving, please try again later."
	replyAddFormat    = "❗ Format: /add Name MM-DD username"
	replyRemoveFormat = "❗ Format: /remove Name"
	replyUpdateFormat = "❗ Format: /update Name MM-DD username"
	replyDuplicate    = "⚠ This person already exists."
	replyNotFound     = "⚠ Person not found."
	replyEmpty        = "📭 Birthday list is empty."
	replyBadTemplate  = "❗ Template must contain " + birthday.NamePlaceholder + " and " + birthday.HandlePlaceholder
	replyGreetingSet  = "✅ Greeting template updated."
)

const help = `👋 Hi! I am a congratulator bot. Commands:

/add Name MM-DD username: remember a birthday
/remove Name: forget a birthday
/update Name MM-DD username: change a birthday
/list: show all birthdays
/setgreeting text: set the greeting, must contain {name} and {username}
/getgreeting: show the greeting
/test: send today's greetings now
/whoami: show your Telegram ID`

// handlerFunc returns the reply and, if the command did not succeed, the
// reason.
type handlerFunc func(r *Router, ctx context.Context, req Request, args string) (string, error)

type command struct {
	handle handlerFunc
	// public commands are not gated by the policy.
	public bool
}

var handlers = map[string]command{
	"start":       {handle: func(*Router, context.Context, Request, string) (string, error) { return replyStart, nil }, public: true},
	"help":        {handle: func(*Router, context.Context, Request, string) (string, error) { return help, nil }, public: true},
	"whoami":      {handle: (*Router).whoami, public: true},
	"add":         {handle: (*Router).add},
	"remove":      {handle: (*Router).remove},
	"update":      {handle: (*Router).update},
	"list":        {handle: (*Router).list},
	"setgreeting": {handle: (*Router).setGreeting},
	"getgreeting": {handle: (*Router).getGreeting},
	"test":        {handle: (*Router).test},
}

// Parse splits a message into a command name and its arguments. It reports
// false if text is not a command or is addressed to a bot other than
// botUsername.
func Parse(text, botUsername string) (name, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, args := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, args = text[:i], strings.TrimSpace(text[i:])
	}
	name, bot, addressed := strings.Cut(head[1:], "@")
	if addressed && botUsername != "" && !strings.EqualFold(bot, botUsername) {
		return "", "", false
	}
	if name == "" {
		return "", "", false
	}
	return name, args, true
}

// Handle runs the command in req and returns the reply. It reports false if
// req is not a known command for this bot; such messages need no reply.
func (r *Router) Handle(ctx context.Context, req Request) (reply string, ok bool) {
	name, args, ok := Parse(req.Text, r.BotUsername)
	if !ok {
		return "", false
	}
	cmd, ok := handlers[name]
	if !ok {
		return "", false
	}

	logger := r.logger().With("command", name, "user_id", req.Caller.ID, "chat_id", req.Chat.ID)
	if !cmd.public && !r.Policy.Allows(r.Admin, req) {
		logger.Warn("command denied", "err", ErrUnauthorized)
		r.Metrics.CommandHandled(name, "unauthorized")
		return replyUnauthorized, true
	}

	reply, err := cmd.handle(r, ctx, req, args)
	switch {
	case err == nil:
		r.Metrics.CommandHandled(name, "ok")
	case isRejection(err):
		logger.Info("command rejected", "err", err)
		r.Metrics.CommandHandled(name, "rejected")
	default:
		logger.Error("command failed", "err", err)
		r.Metrics.CommandHandled(name, "error")
	}
	return reply, true
}

func isRejection(err error) bool {
	return errors.Is(err, ErrMalformed) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicate) || errors.Is(err, birthday.ErrInvalidTemplate)
}

func (r *Router) whoami(_ context.Context, req Request, _ string) (string, error) {
	return fmt.Sprintf("🆔 Your Telegram ID: %d", req.Caller.ID), nil
}

func (r *Router) add(ctx context.Context, _ Request, args string) (string, error) {
	name, date, handle, ok := splitArgs(args)
	if !ok {
		return replyAddFormat, ErrMalformed
	}
	rec := birthday.Record{Name: name, Date: date, Handle: handle}
	switch err := r.Add(ctx, rec); {
	case err == nil:
		return fmt.Sprintf("✅ Added: %s (%s) — @%s", name, date, handle), nil
	case errors.Is(err, birthday.ErrInvalidDate):
		return invalidDate(date), err
	case errors.Is(err, ErrDuplicate):
		return replyDuplicate, err
	default:
		return replyStoreError, err
	}
}

func (r *Router) remove(ctx context.Context, _ Request, args string) (string, error) {
	name := strings.Join(strings.Fields(args), " ")
	if name == "" {
		return replyRemoveFormat, ErrMalformed
	}
	switch rec, err := r.Remove(ctx, name); {
	case err == nil:
		return "🗑 Removed: " + rec.Name, nil
	case errors.Is(err, ErrNotFound):
		return replyNotFound, err
	default:
		return replyStoreError, err
	}
}

func (r *Router) update(ctx context.Context, _ Request, args string) (string, error) {
	name, date, handle, ok := splitArgs(args)
	if !ok {
		return replyUpdateFormat, ErrMalformed
	}
	switch rec, err := r.Update(ctx, name, date, handle); {
	case err == nil:
		return fmt.Sprintf("✏ Updated: %s → %s, @%s", rec.Name, rec.Date, rec.Handle), nil
	case errors.Is(err, birthday.ErrInvalidDate):
		return invalidDate(date), err
	case errors.Is(err, ErrNotFound):
		return replyNotFound, err
	default:
		return replyStoreError, err
	}
}

func invalidDate(date string) string {
	return fmt.Sprintf("❗ %q is not a valid date, use MM-DD, for example 03-14.", date)
}

func (r *Router) list(ctx context.Context, _ Request, _ string) (string, error) {
	roster := r.List(ctx)
	if len(roster) == 0 {
		return replyEmpty, nil
	}
	var sb strings.Builder
	sb.WriteString("📋 Birthday list:")
	for _, rec := range roster {
		sb.WriteString("\n• " + rec.String())
	}
	return sb.String(), nil
}

func (r *Router) setGreeting(ctx context.Context, _ Request, args string) (string, error) {
	switch err := r.SetGreeting(ctx, args); {
	case err == nil:
		return replyGreetingSet, nil
	case errors.Is(err, birthday.ErrInvalidTemplate):
		return replyBadTemplate, err
	default:
		return replyStoreError, err
	}
}

func (r *Router) getGreeting(ctx context.Context, _ Request, _ string) (string, error) {
	return "📨 Current template:\n" + r.Greeting(ctx), nil
}

func (r *Router) test(ctx context.Context, _ Request, _ string) (string, error) {
	res, err := r.Test(ctx)
	if res.Matched == 0 {
		return fmt.Sprintf("✅ No birthdays on %s, nothing to send.", res.Day), nil
	}
	reply := fmt.Sprintf("✅ Test message sent to group: %d of %d greetings for %s delivered.", res.Sent, res.Matched, res.Day)
	if err != nil {
		return reply + "\n⚠ Some greetings failed, see logs.", err
	}
	return reply, nil
}
