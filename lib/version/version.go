// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/rootset/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// Info returns "version (commit[-dirty], build time)". Without
// ldflags the commit falls back to the VCS revision the Go toolchain
// embedded, when there is one.
func Info() string {
	commit, dirty := GitCommit, GitDirty == "true"
	if commit == "unknown" {
		if revision, modified, ok := vcsRevision(); ok {
			commit, dirty = revision, modified
		}
	}
	suffix := ""
	if dirty {
		suffix = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, commit, suffix, BuildTime)
}

// Full returns Info plus the Go version and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func vcsRevision() (revision string, modified bool, ok bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false, false
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if revision == "" {
		return "", false, false
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	return revision, modified, true
}
