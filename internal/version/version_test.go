package version

import (
	"strings"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	tests := []struct {
		name        string
		settings    map[string]string
		wantVersion string
		wantCommit  string
	}{
		{
			name: "clean checkout",
			settings: map[string]string{
				"vcs.revision": "0123456789abcdef",
				"vcs.time":     "2024-07-01T10:00:00Z",
				"vcs.modified": "false",
			},
			wantVersion: "dev-20240701",
			wantCommit:  "0123456",
		},
		{
			name: "dirty tree",
			settings: map[string]string{
				"vcs.revision": "abc",
				"vcs.modified": "true",
			},
			wantCommit: "abc-dirty",
		},
		{
			name:     "no vcs info",
			settings: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldV, oldC := Version, Commit
			defer func() { Version, Commit = oldV, oldC }()
			Version, Commit = "", ""

			fromBuildInfo(tt.settings)

			if Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", Version, tt.wantVersion)
			}
			if Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", Commit, tt.wantCommit)
			}
		})
	}
}

func TestFromBuildInfo_KeepsLdflags(t *testing.T) {
	oldV, oldC := Version, Commit
	defer func() { Version, Commit = oldV, oldC }()
	Version, Commit = "v1.2.3", "feedbee"

	fromBuildInfo(map[string]string{"vcs.revision": "0123456789", "vcs.time": "2024-07-01T10:00:00Z"})

	if Version != "v1.2.3" || Commit != "feedbee" {
		t.Errorf("ldflags values overwritten: %s %s", Version, Commit)
	}
}

func TestGetAndFull(t *testing.T) {
	info := Get()
	if info.Version == "" || info.Commit == "" {
		t.Errorf("Get() = %+v, want populated fields", info)
	}
	if info.GoVersion == "" || !strings.Contains(info.Platform, "/") {
		t.Errorf("Get() = %+v, want runtime fields", info)
	}
	if !strings.Contains(Full(), "commit: ") {
		t.Errorf("Full() = %q", Full())
	}
}
