package version

import (
	"runtime/debug"
	"testing"
)

func withBuildInfo(t *testing.T, bi *debug.BuildInfo) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
	t.Cleanup(func() { readBuildInfo = orig })
}

func TestGetFallsBackToBuildInfo(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	})

	info := Get()
	if info.Version != "v1.2.3" {
		t.Errorf("Version = %q, want v1.2.3", info.Version)
	}
	if info.GitCommit != "abc123" {
		t.Errorf("GitCommit = %q, want abc123", info.GitCommit)
	}
	if info.BuildDate != "2026-01-02T03:04:05Z" {
		t.Errorf("BuildDate = %q", info.BuildDate)
	}
	if !info.Modified {
		t.Error("Modified = false, want true")
	}
	if String() != "v1.2.3" {
		t.Errorf("String() = %q", String())
	}
}

func TestGetPrefersLdflags(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	Version, GitCommit = "v9.9.9", "deadbeef"
	t.Cleanup(func() { Version, GitCommit = origVersion, origCommit })

	withBuildInfo(t, &debug.BuildInfo{
		Main:     debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}},
	})

	info := Get()
	if info.Version != "v9.9.9" || info.GitCommit != "deadbeef" {
		t.Errorf("got %s/%s, want ldflags values", info.Version, info.GitCommit)
	}
}

func TestGetDevelBuild(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})

	info := Get()
	if info.Version != "dev" {
		t.Errorf("Version = %q, want dev", info.Version)
	}
	if info.Platform == "" || info.GoVersion == "" {
		t.Errorf("runtime fields missing: %+v", info)
	}
}

func TestGetWithoutBuildInfo(t *testing.T) {
	withBuildInfo(t, nil)

	if info := Get(); info.Version != "dev" || info.GitCommit != "unknown" {
		t.Errorf("unexpected info: %+v", info)
	}
}
