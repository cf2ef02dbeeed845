// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package telegram

import (
	"strings"
	"unicode/utf8"
)

// splitMessage cuts text into chunks of at most MaxMessageLength characters,
// preferring to cut at line breaks.
func splitMessage(text string) []string {
	if utf8.RuneCountInString(text) <= MaxMessageLength {
		return []string{text}
	}

	var chunks []string
	for text != "" {
		if utf8.RuneCountInString(text) <= MaxMessageLength {
			chunks = append(chunks, text)
			break
		}
		// Byte offset of the first rune past the limit.
		limit, n := len(text), 0
		for i := range text {
			if n == MaxMessageLength {
				limit = i
				break
			}
			n++
		}
		cut := limit
		if nl := strings.LastIndexByte(text[:limit], '\n'); nl > 0 {
			cut = nl + 1
		}
		chunks = append(chunks, strings.TrimSuffix(text[:cut], "\n"))
		text = text[cut:]
	}
	return chunks
}
