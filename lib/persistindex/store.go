// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package persistindex

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bureau-foundation/rootset/lib/root"
)

// DisableEnv names the environment variable that turns persistent
// indexing off for a process regardless of configuration. Any value
// that strconv.ParseBool accepts as true disables it.
const DisableEnv = "ROOTSET_INDEX_DISABLED"

// Store loads and saves snapshots keyed by root identity. Both
// methods must be safe for concurrent use.
type Store interface {
	Load(identity root.Identity) (*Snapshot, error)
	Save(identity root.Identity, snapshot *Snapshot) error
}

// Snapshot is the persisted enumeration of one root.
type Snapshot struct {
	Stamp   root.Stamp `cbor:"stamp"`
	Dirs    []string   `cbor:"dirs"`
	Records []Record   `cbor:"records"`
	SavedAt time.Time  `cbor:"saved_at"`
}

// Record is one name found in a root. Ordinal is the root's position
// in the list of the resolver that saved it; it is informational,
// since the same root can sit at different positions in different
// resolvers. A record whose Stamp differs from the snapshot's is
// stale and ignored on load.
type Record struct {
	Name    string     `cbor:"name"`
	Ordinal int        `cbor:"ordinal"`
	Stamp   root.Stamp `cbor:"stamp"`
}

// CorruptError reports a stored snapshot that could not be decoded.
type CorruptError struct {
	Identity root.Identity
	Reason   string
	Err      error
}

func (e *CorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt index for %s: %s: %v", e.Identity, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt index for %s: %s", e.Identity, e.Reason)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// DisabledByEnvironment reports whether DisableEnv turns persistent
// indexing off.
func DisabledByEnvironment() bool {
	value, ok := os.LookupEnv(DisableEnv)
	if !ok {
		return false
	}
	disabled, err := strconv.ParseBool(value)
	if err != nil {
		// A set but unparsable value is taken as intent to disable.
		return value != ""
	}
	return disabled
}
