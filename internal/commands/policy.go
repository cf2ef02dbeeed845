// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package commands

import "fmt"

// Policy decides who may run gated commands.
type Policy string

const (
	// AdminEverywhere lets only the administrator run gated commands, in any
	// chat.
	AdminEverywhere Policy = "admin-only-everywhere"
	// AdminInPrivate requires the administrator in private chats and lets
	// anyone run gated commands in groups.
	AdminInPrivate Policy = "admin-only-in-private"
	// OpenInPrivate lets anyone run gated commands in private chats and
	// nobody in groups.
	OpenInPrivate Policy = "open-in-private-blocked-in-group"
)

// DefaultPolicy is the policy used when none is configured.
const DefaultPolicy = AdminInPrivate

// ParsePolicy parses a policy name. The empty string means [DefaultPolicy].
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case "":
		return DefaultPolicy, nil
	case AdminEverywhere, AdminInPrivate, OpenInPrivate:
		return p, nil
	}
	return "", fmt.Errorf("unknown authorization mode %q, want one of %s, %s or %s", s, AdminEverywhere, AdminInPrivate, OpenInPrivate)
}

// Allows reports whether req may run a gated command when admin is the
// administrator's user ID. An admin of zero matches nobody.
func (p Policy) Allows(admin int64, req Request) bool {
	isAdmin := admin != 0 && req.Caller.ID == admin
	switch p {
	case AdminEverywhere:
		return isAdmin
	case OpenInPrivate:
		return req.Chat.Private
	default:
		return !req.Chat.Private || isAdmin
	}
}
