// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package birthday

import (
	"cmp"
	"slices"
	"strings"
)

type substitution struct {
	at       int
	old, new string
}

// Format fills the template with the record fields. Only the first occurrence
// of each placeholder in the template is replaced, and placeholders that
// appear inside the substituted values are left alone.
func Format(template string, r Record) string {
	var subs []substitution
	for _, s := range []substitution{
		{old: NamePlaceholder, new: r.Name},
		{old: HandlePlaceholder, new: r.Handle},
	} {
		if s.at = strings.Index(template, s.old); s.at >= 0 {
			subs = append(subs, s)
		}
	}
	slices.SortFunc(subs, func(a, b substitution) int { return cmp.Compare(a.at, b.at) })

	var (
		sb   strings.Builder
		last int
	)
	for _, s := range subs {
		sb.WriteString(template[last:s.at])
		sb.WriteString(s.new)
		last = s.at + len(s.old)
	}
	sb.WriteString(template[last:])
	return sb.String()
}
