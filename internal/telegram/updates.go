// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.astrophena.name/bdaybot/internal/web"
)

// Handler processes a single update.
type Handler func(ctx context.Context, u Update)

// DefaultPollTimeout is the long polling timeout used by [Poller].
const DefaultPollTimeout = 50 * time.Second

// Poller receives updates with getUpdates and hands them to Handler one at a
// time, in order.
type Poller struct {
	Client  *Client
	Handler Handler
	Logger  *slog.Logger
	// Timeout is the long polling timeout. Defaults to DefaultPollTimeout.
	Timeout time.Duration
	// ErrorDelay is the pause after a failed getUpdates call. Defaults to five
	// seconds.
	ErrorDelay time.Duration

	offset int64
}

// Run polls until ctx is done. Failed requests are logged and repeated after
// ErrorDelay.
func (p *Poller) Run(ctx context.Context) error {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = DefaultPollTimeout
	}
	delay := p.ErrorDelay
	if delay == 0 {
		delay = 5 * time.Second
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for {
		updates, err := p.Client.GetUpdates(ctx, p.offset, timeout)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			logger.Warn("getting updates failed", "err", err)
			if !sleep(ctx, delay) {
				return nil
			}
			continue
		}
		for _, u := range updates {
			p.offset = max(p.offset, u.UpdateID+1)
			p.Handler(ctx, u)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// SecretHeader carries the webhook secret in requests from Telegram.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// maxUpdateSize bounds the body of a webhook request.
const maxUpdateSize = 1 << 20

// WebhookHandler returns an [http.Handler] that accepts updates sent by
// Telegram to a webhook. Requests without the right secret get a 404.
func WebhookHandler(secret string, logger *slog.Logger, h Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			web.RespondJSONError(logger, w, web.ErrMethodNotAllowed)
			return
		}
		if r.Header.Get(SecretHeader) != secret {
			web.RespondJSONError(logger, w, web.ErrNotFound)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateSize))
		if err != nil {
			web.RespondJSONError(logger, w, err)
			return
		}
		var u Update
		if err := json.Unmarshal(body, &u); err != nil {
			web.RespondJSONError(logger, w, fmt.Errorf("%w: %v", web.ErrBadRequest, err))
			return
		}
		h(r.Context(), u)
		web.RespondJSON(w, map[string]string{"status": "ok"})
	})
}
