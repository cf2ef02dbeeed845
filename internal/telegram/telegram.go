// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package telegram is a small client for the parts of the Telegram Bot API the
// bot uses: sending messages, receiving updates by long polling or webhook and
// managing the webhook.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.astrophena.name/bdaybot/internal/request"

	"golang.org/x/time/rate"
)

// DefaultAPI is the Bot API endpoint.
const DefaultAPI = "https://api.telegram.org"

// MaxMessageLength is the maximum number of characters in a single message.
const MaxMessageLength = 4096

// ErrAPI is wrapped by errors reported in a response with "ok": false.
var ErrAPI = errors.New("telegram: request failed")

// DefaultHTTPClient allows long polling requests to outlive their timeout.
var DefaultHTTPClient = &http.Client{Timeout: 90 * time.Second}

// NewSendLimiter returns a limiter allowing bursts of 20 messages and 20
// messages per minute after that, which is what Telegram allows in a group.
func NewSendLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(3*time.Second), 20)
}

// Client makes Bot API requests.
type Client struct {
	// Token is the bot token.
	Token string
	// API is the Bot API endpoint. Defaults to DefaultAPI.
	API string
	// HTTPClient defaults to DefaultHTTPClient.
	HTTPClient *http.Client
	// Scrubber removes secrets from errors.
	Scrubber *strings.Replacer
	// Limiter throttles sendMessage calls. If nil, sending is not throttled.
	Limiter *rate.Limiter
}

type response[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func call[T any](ctx context.Context, c *Client, method string, args any) (T, error) {
	api := c.API
	if api == "" {
		api = DefaultAPI
	}
	httpc := c.HTTPClient
	if httpc == nil {
		httpc = DefaultHTTPClient
	}
	resp, err := request.Make[response[T]](ctx, request.Params{
		Method:     http.MethodPost,
		URL:        api + "/bot" + c.Token + "/" + method,
		Body:       args,
		HTTPClient: httpc,
		Scrubber:   c.Scrubber,
	})
	if err != nil {
		return resp.Result, err
	}
	if !resp.OK {
		return resp.Result, fmt.Errorf("%w: %s: %d %s", ErrAPI, method, resp.ErrorCode, resp.Description)
	}
	return resp.Result, nil
}

// GetMe returns the bot's own user.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	return call[User](ctx, c, "getMe", struct{}{})
}

type sendMessage struct {
	ChatID             string `json:"chat_id"`
	Text               string `json:"text"`
	LinkPreviewOptions struct {
		IsDisabled bool `json:"is_disabled"`
	} `json:"link_preview_options"`
}

// Send sends text as plain text to chatID, which is a numeric chat ID or an
// @channel name. Text longer than [MaxMessageLength] is split into several
// messages.
func (c *Client) Send(ctx context.Context, chatID, text string) error {
	for _, chunk := range splitMessage(text) {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return err
			}
		}
		msg := sendMessage{ChatID: chatID, Text: chunk}
		msg.LinkPreviewOptions.IsDisabled = true
		if _, err := call[Message](ctx, c, "sendMessage", msg); err != nil {
			return err
		}
	}
	return nil
}

// GetUpdates long polls for updates with IDs starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	return call[[]Update](ctx, c, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message"},
	})
}

// SetWebhook makes Telegram deliver updates to url, authenticated by secret in
// the X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	_, err := call[bool](ctx, c, "setWebhook", map[string]any{
		"url":             url,
		"secret_token":    secret,
		"allowed_updates": []string{"message"},
	})
	return err
}

// DeleteWebhook removes the webhook so that [Client.GetUpdates] works.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := call[bool](ctx, c, "deleteWebhook", struct{}{})
	return err
}
