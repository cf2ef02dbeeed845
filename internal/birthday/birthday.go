// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package birthday defines the roster of birthdays, the greeting template and
// the daily routine that congratulates people whose birthday is today.
package birthday

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Placeholders that a greeting template must contain.
const (
	NamePlaceholder   = "{name}"
	HandlePlaceholder = "{username}"
)

// DefaultTemplate is used when no greeting template has been saved yet.
const DefaultTemplate = "Happy birthday, " + NamePlaceholder + "! (@" + HandlePlaceholder + ")"

// DateLayout is the layout of [Record.Date] understood by [time.Time.Format].
const DateLayout = "01-02"

var (
	// ErrInvalidDate is returned by [ValidateDate] for strings that are not a
	// calendar day in "MM-DD" form.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidTemplate is returned by [GreetingConfig.Validate] when the
	// template misses one of the placeholders.
	ErrInvalidTemplate = errors.New("invalid template")
)

// Record is a person whose birthday the bot remembers.
type Record struct {
	// Name identifies the record. Names are compared case-insensitively.
	Name string `json:"name"`
	// Date is a birthday in "MM-DD" form.
	Date string `json:"date"`
	// Handle is a chat username, shown in greetings.
	Handle string `json:"username"`
}

func (r Record) String() string {
	return fmt.Sprintf("%s — %s — @%s", r.Name, r.Date, r.Handle)
}

// Roster is an ordered list of records. Insertion order is preserved.
type Roster []Record

// Index returns the index of the first record whose name is equal to name
// under Unicode case folding, or -1.
func (r Roster) Index(name string) int {
	return slices.IndexFunc(r, func(rec Record) bool {
		return strings.EqualFold(rec.Name, name)
	})
}

// BornOn returns the records whose date equals day exactly.
func (r Roster) BornOn(day string) []Record {
	var matched []Record
	for _, rec := range r {
		if rec.Date == day {
			matched = append(matched, rec)
		}
	}
	return matched
}

// Clone returns a copy of the roster that shares no memory with r.
func (r Roster) Clone() Roster {
	if r == nil {
		return Roster{}
	}
	return slices.Clone(r)
}

// GreetingConfig holds the greeting template.
type GreetingConfig struct {
	Template string `json:"template"`
}

// DefaultConfig returns the configuration used when none is saved.
func DefaultConfig() GreetingConfig {
	return GreetingConfig{Template: DefaultTemplate}
}

// Validate reports whether the template contains both placeholders.
func (c GreetingConfig) Validate() error {
	for _, p := range []string{NamePlaceholder, HandlePlaceholder} {
		if !strings.Contains(c.Template, p) {
			return fmt.Errorf("%w: must contain %s and %s", ErrInvalidTemplate, NamePlaceholder, HandlePlaceholder)
		}
	}
	return nil
}

// Day returns t as "MM-DD" in t's location.
func Day(t time.Time) string { return t.Format(DateLayout) }

// ValidateDate checks that s is a day of year in "MM-DD" form. February 29 is
// accepted.
func ValidateDate(s string) error {
	month, day, ok := strings.Cut(s, "-")
	if !ok || !twoDigits(month) || !twoDigits(day) {
		return fmt.Errorf("%w: %q is not in MM-DD form", ErrInvalidDate, s)
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return fmt.Errorf("%w: %q has no month %s", ErrInvalidDate, s, month)
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > daysIn(time.Month(m)) {
		return fmt.Errorf("%w: %q has no day %s", ErrInvalidDate, s, day)
	}
	return nil
}

func twoDigits(s string) bool {
	return len(s) == 2 && '0' <= s[0] && s[0] <= '9' && '0' <= s[1] && s[1] <= '9'
}

func daysIn(m time.Month) int {
	// 2024 is a leap year, so February has 29 days.
	return time.Date(2024, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
