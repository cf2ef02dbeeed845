// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package birthday

import (
	"context"
	"errors"
	"testing"

	"go.astrophena.name/bdaybot/internal/testutil"
)

type staticSource struct {
	roster Roster
	cfg    GreetingConfig
}

func (s staticSource) Roster(context.Context) Roster         { return s.roster.Clone() }
func (s staticSource) Config(context.Context) GreetingConfig { return s.cfg }

type sentMessage struct {
	Destination string
	Text        string
}

type recordingSender struct {
	sent []sentMessage
	fail map[string]bool // texts that fail to send
}

func (s *recordingSender) Send(_ context.Context, destination, text string) error {
	if s.fail[text] {
		return errors.New("chat not found")
	}
	s.sent = append(s.sent, sentMessage{Destination: destination, Text: text})
	return nil
}

func TestSweep(t *testing.T) {
	t.Parallel()

	bob := Roster{{Name: "Bob", Date: "03-14", Handle: "b"}}

	cases := map[string]struct {
		roster   Roster
		cfg      GreetingConfig
		day      string
		fail     map[string]bool
		want     []sentMessage
		wantRes  SweepResult
		wantFail bool
	}{
		"match": {
			roster:  bob,
			cfg:     DefaultConfig(),
			day:     "03-14",
			want:    []sentMessage{{Destination: "-100500", Text: "Happy birthday, Bob! (@b)"}},
			wantRes: SweepResult{Day: "03-14", Matched: 1, Sent: 1},
		},
		"no match": {
			roster:  bob,
			cfg:     DefaultConfig(),
			day:     "03-15",
			wantRes: SweepResult{Day: "03-15"},
		},
		"empty roster": {
			cfg:     DefaultConfig(),
			day:     "03-14",
			wantRes: SweepResult{Day: "03-14"},
		},
		"custom template": {
			roster: Roster{
				{Name: "Ana", Date: "01-01", Handle: "ana"},
				{Name: "Cid", Date: "01-01", Handle: "cid"},
			},
			cfg: GreetingConfig{Template: "🎂 {name} / {username}"},
			day: "01-01",
			want: []sentMessage{
				{Destination: "-100500", Text: "🎂 Ana / ana"},
				{Destination: "-100500", Text: "🎂 Cid / cid"},
			},
			wantRes: SweepResult{Day: "01-01", Matched: 2, Sent: 2},
		},
		"failure is isolated": {
			roster: Roster{
				{Name: "Ana", Date: "01-01", Handle: "ana"},
				{Name: "Cid", Date: "01-01", Handle: "cid"},
			},
			cfg:      DefaultConfig(),
			day:      "01-01",
			fail:     map[string]bool{"Happy birthday, Ana! (@ana)": true},
			want:     []sentMessage{{Destination: "-100500", Text: "Happy birthday, Cid! (@cid)"}},
			wantRes:  SweepResult{Day: "01-01", Matched: 2, Sent: 1},
			wantFail: true,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			sender := &recordingSender{fail: tc.fail}
			n := &Notifier{
				Source:      staticSource{roster: tc.roster, cfg: tc.cfg},
				Sender:      sender,
				Destination: "-100500",
			}

			res, err := n.Sweep(context.Background(), tc.day)
			if tc.wantFail != (err != nil) {
				t.Fatalf("Sweep() error = %v, wantFail %v", err, tc.wantFail)
			}
			testutil.AssertEqual(t, res, tc.wantRes)
			testutil.AssertEqual(t, sender.sent, tc.want)
		})
	}
}

func TestSweepTwiceGreetsTwice(t *testing.T) {
	t.Parallel()

	sender := new(recordingSender)
	n := &Notifier{
		Source:      staticSource{roster: Roster{{Name: "Bob", Date: "03-14", Handle: "b"}}, cfg: DefaultConfig()},
		Sender:      sender,
		Destination: "chat",
	}
	for range 2 {
		if _, err := n.Sweep(context.Background(), "03-14"); err != nil {
			t.Fatal(err)
		}
	}
	testutil.AssertEqual(t, len(sender.sent), 2)
}
