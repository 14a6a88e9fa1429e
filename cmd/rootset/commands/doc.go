// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the rootset command tree.
//
// Every command that resolves names shares one set of flags
// (--config, --root, --bootstrap, --no-cache and friends). The
// configuration file named by --config or ROOTSET_CONFIG is loaded
// first and the flags override it; with --root and no configuration
// file the defaults from [config.Default] apply. A session built from
// the result owns the resolver, its persistent index store and the
// bootstrap archive, and closing it flushes changed indexes.
package commands
