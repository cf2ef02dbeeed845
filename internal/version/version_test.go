// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package version

import (
	"runtime/debug"
	"testing"

	"go.astrophena.name/bdaybot/internal/testutil"
)

func TestLoadInfo(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		bi          *debug.BuildInfo
		ok          bool
		wantVersion string
		wantCommit  string
		wantBuiltAt string
	}{
		"no build info": {
			wantVersion: "devel",
		},
		"devel": {
			bi: &debug.BuildInfo{
				Main: debug.Module{Version: "(devel)"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "abcdef"},
					{Key: "vcs.time", Value: "2026-03-14T09:00:00Z"},
				},
			},
			ok:          true,
			wantVersion: "devel",
			wantCommit:  "abcdef",
			wantBuiltAt: "2026-03-14T09:00:00Z",
		},
		"tagged": {
			bi:          &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}},
			ok:          true,
			wantVersion: "v1.2.3",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			i := loadInfo(func() (*debug.BuildInfo, bool) { return tc.bi, tc.ok })
			testutil.AssertEqual(t, i.Version, tc.wantVersion)
			testutil.AssertEqual(t, i.Commit, tc.wantCommit)
			testutil.AssertEqual(t, i.BuiltAt, tc.wantBuiltAt)
		})
	}
}

func TestUserAgent(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		info Info
		want string
	}{
		"release": {
			info: Info{Name: "bdaybot", Version: "v1.0.0"},
			want: "bdaybot/v1.0.0 (+https://astrophena.name/bleep-bloop)",
		},
		"devel with commit": {
			info: Info{Name: "bdaybot", Version: "devel", Commit: "abcdef"},
			want: "bdaybot/abcdef (+https://astrophena.name/bleep-bloop)",
		},
		"devel": {
			info: Info{Name: "bdaybot", Version: "devel"},
			want: "bdaybot/devel (+https://astrophena.name/bleep-bloop)",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, userAgent(tc.info), tc.want)
		})
	}
}

func TestInfoString(t *testing.T) {
	t.Parallel()

	i := Info{
		Name:    "bdaybot",
		Version: "v1.0.0",
		Commit:  "abcdef",
		BuiltAt: "2026-03-14T09:00:00Z",
		Go:      "go1.24.0",
		OS:      "linux",
		Arch:    "amd64",
	}
	testutil.AssertEqual(t, i.String(), "bdaybot v1.0.0 (go1.24.0, linux/amd64)\ncommit abcdef\nbuilt at 2026-03-14T09:00:00Z\n")
}
