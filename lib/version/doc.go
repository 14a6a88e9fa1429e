// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build version of the rootset binary.
//
// [GitCommit], [GitDirty], [BuildTime] and [Version] are set at build
// time with -ldflags -X and keep their development defaults otherwise.
// [Info] formats them for --version and [Full] adds the Go toolchain
// and platform.
package version
